package stats

import (
	"testing"
	"time"

	"github.com/verte-zerg/dialloop/internal/model"
)

func TestTopSessionsByRate(t *testing.T) {
	base := time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC)
	sessions := []model.SessionRecord{
		{ID: "a", Calls: 30, HourlyRate: 55.0, EndedAt: base},
		{ID: "b", Calls: 4, HourlyRate: 240.0, EndedAt: base.Add(time.Hour)},
		{ID: "c", Calls: 22, HourlyRate: 61.5, EndedAt: base.Add(2 * time.Hour)},
		{ID: "d", Calls: 15, HourlyRate: 55.0, EndedAt: base.Add(3 * time.Hour)},
	}
	top := TopSessionsByRate(sessions, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(top))
	}
	if top[0].ID != "c" || top[1].ID != "d" {
		t.Fatalf("unexpected order: %v, %v", top[0].ID, top[1].ID)
	}
	if all := TopSessionsByRate(sessions, 10); len(all) != 3 {
		t.Fatalf("short sessions must be excluded, got %d", len(all))
	}
}
