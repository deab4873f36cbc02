package tui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/dialloop/internal/automation"
	"github.com/verte-zerg/dialloop/internal/config"
	"github.com/verte-zerg/dialloop/internal/dialer"
	"github.com/verte-zerg/dialloop/internal/model"
	"github.com/verte-zerg/dialloop/internal/store"
)

func newTestModel(t *testing.T, settings model.Settings) *Model {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "dialloop.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	cfg, err := config.Open(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("open config: %v", err)
	}
	ctrl, err := dialer.New(context.Background(), dialer.Options{
		Settings: settings,
		Driver:   automation.NewSimulated(automation.SimulatedOptions{}),
		Stats:    st,
		Config:   cfg,
		Timing:   dialer.Timing{},
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	t.Cleanup(func() {
		_ = ctrl.Close(context.Background())
	})
	return NewModel(context.Background(), Options{Controller: ctrl, Config: cfg, Stats: st})
}

func press(t *testing.T, m *Model, key string) {
	t.Helper()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	if cmd == nil {
		t.Fatalf("expected a command for key %q", key)
	}
	m.Update(cmd())
}

func drainEvents(m *Model) {
	for {
		select {
		case ev := <-m.ctrl.Events():
			m.Update(eventMsg{event: ev})
		default:
			return
		}
	}
}

func TestStartWithoutConfigurationExplainsWhatIsMissing(t *testing.T) {
	m := newTestModel(t, model.Settings{DialerTitle: "Dialer", DailyGoal: 300, WeeklyGoal: 1500})
	press(t, m, "s")
	if !strings.Contains(m.errMsg, "Please configure DialLoop first!") {
		t.Fatalf("unexpected message %q", m.errMsg)
	}
	if strings.Contains(m.errMsg, "dialer-title") || !strings.Contains(m.errMsg, "spreadsheet-title") {
		t.Fatalf("missing fields not listed correctly: %q", m.errMsg)
	}
	if m.busy != "" {
		t.Fatalf("busy flag should clear, got %q", m.busy)
	}
}

func TestToggleCallShowsLiveNotice(t *testing.T) {
	m := newTestModel(t, model.Settings{DailyGoal: 300, WeeklyGoal: 1500})
	press(t, m, "c")
	drainEvents(m)

	if m.status.Text != "LIVE CALL" {
		t.Fatalf("expected live call status, got %q", m.status.Text)
	}
	if m.notice != "Live Call! Client answered!" {
		t.Fatalf("unexpected notice %q", m.notice)
	}
	if !m.snapshot.OnCall || m.snapshot.Connected != 1 {
		t.Fatalf("unexpected snapshot %+v", m.snapshot)
	}

	press(t, m, "x")
	if m.errMsg != "You are currently on a call! End the call first." {
		t.Fatalf("stop should be refused on call, got %q", m.errMsg)
	}
}

func TestStatsPaneRendersReport(t *testing.T) {
	m := newTestModel(t, model.Settings{DailyGoal: 300, WeeklyGoal: 1500})
	press(t, m, "i")
	if !m.showPane {
		t.Fatalf("expected stats pane to open")
	}
	if !containsAll(m.pane, []string{"Lifetime calls: 0", "Today: 0/300 (0%)", "No sessions found."}) {
		t.Fatalf("unexpected pane:\n%s", m.pane)
	}
	if !strings.Contains(m.View(), "Lifetime calls: 0") {
		t.Fatalf("pane not shown in view")
	}
}

func TestConfigReloadKeepsRunOverrides(t *testing.T) {
	m := newTestModel(t, model.Settings{WaitTimeMs: 20000, DailyGoal: 300, WeeklyGoal: 1500})
	m.overrides = func(s model.Settings) model.Settings {
		s.WaitTimeMs = 20000
		s.DialPrefix = "9"
		return s
	}

	m.Update(editorDoneMsg{})
	if m.errMsg != "" {
		t.Fatalf("unexpected error: %s", m.errMsg)
	}
	got := m.ctrl.Settings()
	if got.WaitTimeMs != 20000 || got.DialPrefix != "9" {
		t.Fatalf("overrides lost on reload: wait=%d prefix=%q", got.WaitTimeMs, got.DialPrefix)
	}
	if got.DailyGoal != config.DefaultDailyGoal {
		t.Fatalf("expected file values for the rest, got daily goal %d", got.DailyGoal)
	}
	if m.status.Text != "CONFIG UPDATED" {
		t.Fatalf("unexpected status %q", m.status.Text)
	}
}
