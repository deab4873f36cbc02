package stats

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/dialloop/internal/model"
	"github.com/verte-zerg/dialloop/internal/store"
)

func TestBuildReport(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "dialloop.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	if _, err := st.Save(ctx, model.StatsUpdate{AddCalls: 150}); err != nil {
		t.Fatalf("save: %v", err)
	}
	for i := 0; i < 3; i++ {
		start := time.Unix(0, 0).Add(time.Duration(i) * time.Hour)
		if _, err := st.RecordSession(ctx, model.SessionRecord{
			StartedAt:  start,
			EndedAt:    start.Add(30 * time.Minute),
			Calls:      20 + i,
			HourlyRate: float64(40 + i),
		}); err != nil {
			t.Fatalf("record session: %v", err)
		}
	}

	settings := model.Settings{DailyGoal: 300, WeeklyGoal: 1500, BestHourlyRate: 42}
	report, err := BuildReport(ctx, st, settings, model.StatsConfig{Last: 2})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(report.Sessions))
	}
	if report.Stats.TotalCalls != 150 || report.Stats.DailyCalls != 150 {
		t.Fatalf("unexpected counters: %+v", report.Stats)
	}
	if len(report.Best) != 2 || report.Best[0].Calls != 22 {
		t.Fatalf("unexpected best sessions: %+v", report.Best)
	}

	var buf bytes.Buffer
	if err := RenderSummary(&buf, report); err != nil {
		t.Fatalf("render summary: %v", err)
	}
	for _, want := range []string{"Lifetime calls: 150", "Today: 150/300 (50%)", "Best rate: 42.0/hr"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("summary missing %q:\n%s", want, buf.String())
		}
	}
}
