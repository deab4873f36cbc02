package stats

import (
	"context"

	"github.com/verte-zerg/dialloop/internal/model"
)

// Source is the persisted data a report is built from.
type Source interface {
	Load(ctx context.Context) (model.Statistics, error)
	ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionRecord, error)
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Stats      model.Statistics
	Sessions   []model.SessionRecord
	Best       []model.SessionRecord
	DailyGoal  int
	WeeklyGoal int
	BestRate   float64
}

// BuildReport loads counters and session history for rendering.
func BuildReport(ctx context.Context, src Source, settings model.Settings, cfg model.StatsConfig) (Report, error) {
	counters, err := src.Load(ctx)
	if err != nil {
		return Report{}, err
	}
	sessions, err := src.ListSessions(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Stats:      counters,
		Sessions:   sessions,
		Best:       TopSessionsByRate(sessions, 5),
		DailyGoal:  settings.DailyGoal,
		WeeklyGoal: settings.WeeklyGoal,
		BestRate:   settings.BestHourlyRate,
	}, nil
}
