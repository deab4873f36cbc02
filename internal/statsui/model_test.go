package statsui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/dialloop/internal/model"
	"github.com/verte-zerg/dialloop/internal/store"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "dialloop.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	ctx := context.Background()
	if _, err := st.Save(ctx, model.StatsUpdate{AddCalls: 30}); err != nil {
		t.Fatalf("save: %v", err)
	}
	start := time.Date(2026, time.March, 4, 9, 0, 0, 0, time.Local)
	for i, calls := range []int{12, 40} {
		begin := start.Add(time.Duration(i) * 2 * time.Hour)
		if _, err := st.RecordSession(ctx, model.SessionRecord{
			StartedAt:  begin,
			EndedAt:    begin.Add(time.Hour),
			Calls:      calls,
			HourlyRate: float64(calls),
		}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	settings := model.Settings{DailyGoal: 300, WeeklyGoal: 1500, BestHourlyRate: 40}
	m := NewModel(st, settings, model.StatsConfig{})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m
}

func TestOverviewShowsCounters(t *testing.T) {
	m := newTestModel(t)
	if m.errMsg != "" {
		t.Fatalf("unexpected error: %s", m.errMsg)
	}
	view := m.View()
	for _, want := range []string{"Overview", "Lifetime", "30/300", "40.0/hr", "Calls per session"} {
		if !strings.Contains(view, want) {
			t.Fatalf("overview missing %q:\n%s", want, view)
		}
	}
}

func TestBestTabListsRankedSessions(t *testing.T) {
	m := newTestModel(t)
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if m.activeTab != tabBest {
		t.Fatalf("expected best tab, got %d", m.activeTab)
	}
	if len(m.report.Best) != 2 || m.report.Best[0].Calls != 40 {
		t.Fatalf("unexpected best sessions: %+v", m.report.Best)
	}
	if !strings.Contains(m.View(), "Top 5 sessions by hourly rate") {
		t.Fatalf("best tab not rendered:\n%s", m.View())
	}
}

func TestApplyFilterValidatesInput(t *testing.T) {
	m := newTestModel(t)
	m.filterInputs[0].SetValue("2026-13-01")
	if err := m.applyFilter(); err == nil {
		t.Fatalf("expected invalid date error")
	}
	m.filterInputs[0].SetValue("2026-03-04")
	m.filterInputs[1].SetValue("-1")
	if err := m.applyFilter(); err == nil {
		t.Fatalf("expected invalid last error")
	}
	m.filterInputs[1].SetValue("1")
	if err := m.applyFilter(); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if m.cfg.Last != 1 || m.cfg.Since == nil {
		t.Fatalf("filter not applied: %+v", m.cfg)
	}
	m.refreshReport()
	if len(m.report.Sessions) != 1 || m.report.Sessions[0].Calls != 40 {
		t.Fatalf("unexpected filtered sessions: %+v", m.report.Sessions)
	}
}

func TestFitAndTruncateLines(t *testing.T) {
	if got := truncateLine("abcdefgh", 6); got != "abc..." {
		t.Fatalf("unexpected truncation %q", got)
	}
	got := fitLines("a\nb\nc", 2, 2)
	if got != "a \nb " {
		t.Fatalf("unexpected fit %q", got)
	}
}
