package stats

import (
	"sort"

	"github.com/verte-zerg/dialloop/internal/model"
)

// TopSessionsByRate returns the n sessions with the highest hourly rate.
// Sessions under RecordMinCalls calls are left out.
func TopSessionsByRate(sessions []model.SessionRecord, n int) []model.SessionRecord {
	if n <= 0 || len(sessions) == 0 {
		return nil
	}
	items := make([]model.SessionRecord, 0, len(sessions))
	for _, s := range sessions {
		if s.Calls >= RecordMinCalls {
			items = append(items, s)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].HourlyRate == items[j].HourlyRate {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].HourlyRate > items[j].HourlyRate
	})
	if n < len(items) {
		items = items[:n]
	}
	return items
}
