package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/dialloop/internal/model"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func openTestStore(t *testing.T, clock *testClock) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "dialloop.db"), WithClock(clock.Now))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func intPtr(v int) *int {
	return &v
}

// 2026-03-04 is a Wednesday; 2026-03-09 is a Monday.
var (
	wednesday = time.Date(2026, time.March, 4, 10, 0, 0, 0, time.Local)
	monday    = time.Date(2026, time.March, 9, 8, 0, 0, 0, time.Local)
)

func TestLoadDefaults(t *testing.T) {
	clock := &testClock{now: wednesday}
	st := openTestStore(t, clock)

	stats, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stats.TotalCalls != 0 || stats.WeeklyCalls != 0 || stats.DailyCalls != 0 {
		t.Fatalf("expected zero counters, got %+v", stats)
	}
	if stats.LastSession != "Never" {
		t.Fatalf("expected LastSession=Never, got %q", stats.LastSession)
	}
	if stats.DailyResetDate != "20260304" {
		t.Fatalf("unexpected daily reset date %q", stats.DailyResetDate)
	}
}

func TestAddCallsIncrementsCountersIndependently(t *testing.T) {
	clock := &testClock{now: wednesday}
	st := openTestStore(t, clock)
	ctx := context.Background()

	if _, err := st.Save(ctx, model.StatsUpdate{TotalCalls: intPtr(40), WeeklyCalls: intPtr(7)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	stats, err := st.Save(ctx, model.StatsUpdate{AddCalls: 1})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if stats.TotalCalls != 41 || stats.WeeklyCalls != 8 || stats.DailyCalls != 1 {
		t.Fatalf("unexpected counters: %+v", stats)
	}
	if stats.LastSession != "2026-03-04 10:00:00" {
		t.Fatalf("unexpected last session %q", stats.LastSession)
	}
}

func TestDailyResetOncePerDate(t *testing.T) {
	clock := &testClock{now: wednesday}
	st := openTestStore(t, clock)
	ctx := context.Background()

	if _, err := st.Save(ctx, model.StatsUpdate{AddCalls: 5}); err != nil {
		t.Fatalf("save: %v", err)
	}

	clock.now = wednesday.Add(24 * time.Hour)
	stats, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stats.DailyCalls != 0 {
		t.Fatalf("expected daily reset on new date, got %d", stats.DailyCalls)
	}
	if stats.TotalCalls != 5 {
		t.Fatalf("lifetime counter must survive daily reset, got %d", stats.TotalCalls)
	}

	if _, err := st.Save(ctx, model.StatsUpdate{AddCalls: 2}); err != nil {
		t.Fatalf("save: %v", err)
	}
	clock.now = clock.now.Add(3 * time.Hour)
	for i := 0; i < 3; i++ {
		stats, err = st.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if stats.DailyCalls != 2 {
			t.Fatalf("repeat access %d on same date changed daily counter: %d", i, stats.DailyCalls)
		}
	}
}

func TestWeeklyResetOnlyOnMonday(t *testing.T) {
	clock := &testClock{now: wednesday}
	st := openTestStore(t, clock)
	ctx := context.Background()

	if _, err := st.Save(ctx, model.StatsUpdate{AddCalls: 12}); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Thursday through Sunday never reset the weekly counter.
	for day := 1; day <= 4; day++ {
		clock.now = wednesday.Add(time.Duration(day) * 24 * time.Hour)
		stats, err := st.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if stats.WeeklyCalls != 12 {
			t.Fatalf("%s: weekly counter changed to %d", clock.now.Weekday(), stats.WeeklyCalls)
		}
	}

	clock.now = monday
	stats, err := st.Save(ctx, model.StatsUpdate{AddCalls: 1})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if stats.WeeklyCalls != 1 {
		t.Fatalf("expected weekly reset before increment on Monday, got %d", stats.WeeklyCalls)
	}
	if stats.WeeklyResetDate != "20260309" {
		t.Fatalf("unexpected weekly reset date %q", stats.WeeklyResetDate)
	}
	if stats.TotalCalls != 13 {
		t.Fatalf("unexpected lifetime total %d", stats.TotalCalls)
	}

	clock.now = monday.Add(6 * time.Hour)
	stats, err = st.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stats.WeeklyCalls != 1 {
		t.Fatalf("second Monday access must not reset again, got %d", stats.WeeklyCalls)
	}
}

func TestSavePersistsAcrossReopen(t *testing.T) {
	clock := &testClock{now: wednesday}
	path := filepath.Join(t.TempDir(), "dialloop.db")
	st, err := Open(path, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	talk := int64(90000)
	if _, err := st.Save(ctx, model.StatsUpdate{AddCalls: 3, ConnectedCalls: intPtr(4), AccumulatedTimeMs: &talk}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() {
		_ = reopened.Close()
	})
	stats, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stats.TotalCalls != 3 || stats.ConnectedCalls != 4 || stats.AccumulatedTimeMs != 90000 {
		t.Fatalf("counters not persisted: %+v", stats)
	}
}

func TestSessionHistory(t *testing.T) {
	clock := &testClock{now: wednesday}
	st := openTestStore(t, clock)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		start := wednesday.Add(time.Duration(i) * time.Hour)
		id, err := st.RecordSession(ctx, model.SessionRecord{
			StartedAt:      start,
			EndedAt:        start.Add(30 * time.Minute),
			Calls:          10 + i,
			ConnectedCalls: 2,
			TalkTimeMs:     60000,
			HourlyRate:     20.5,
		})
		if err != nil {
			t.Fatalf("record session: %v", err)
		}
		if id == "" {
			t.Fatalf("expected generated session id")
		}
		ids = append(ids, id)
	}

	all, err := st.ListSessions(ctx, model.StatsConfig{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != ids[0] || all[2].Calls != 12 {
		t.Fatalf("unexpected sessions: %+v", all)
	}

	last, err := st.ListSessions(ctx, model.StatsConfig{Last: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(last) != 2 || last[0].ID != ids[1] || last[1].ID != ids[2] {
		t.Fatalf("unexpected last sessions: %+v", last)
	}
}

func TestRecordSessionReplacesSameID(t *testing.T) {
	clock := &testClock{now: wednesday}
	st := openTestStore(t, clock)
	ctx := context.Background()

	rec := model.SessionRecord{
		ID:        "session-a",
		StartedAt: wednesday,
		EndedAt:   wednesday.Add(10 * time.Minute),
		Calls:     4,
	}
	if _, err := st.RecordSession(ctx, rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	rec.EndedAt = wednesday.Add(40 * time.Minute)
	rec.Calls = 15
	if _, err := st.RecordSession(ctx, rec); err != nil {
		t.Fatalf("record again: %v", err)
	}

	all, err := st.ListSessions(ctx, model.StatsConfig{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].Calls != 15 {
		t.Fatalf("expected one updated session, got %+v", all)
	}
}
