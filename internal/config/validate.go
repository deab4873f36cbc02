package config

import (
	"fmt"
	"strings"

	"github.com/verte-zerg/dialloop/internal/model"
)

const (
	MinWaitTimeMs = 10000
	MaxWaitTimeMs = 120000
	MaxPrefixLen  = 10
	MaxCoordinate = 5000
	MaxDailyGoal  = 1000
	MaxWeeklyGoal = 5000
	minGoal       = 1
)

// Configured reports whether both windows and both click points are set.
func Configured(s model.Settings) bool {
	return strings.TrimSpace(s.DialerTitle) != "" &&
		strings.TrimSpace(s.SpreadsheetTitle) != "" &&
		s.Hangup.Set() &&
		s.Dial.Set()
}

// Missing lists the settings that keep Configured from returning true.
func Missing(s model.Settings) []string {
	var missing []string
	if strings.TrimSpace(s.DialerTitle) == "" {
		missing = append(missing, "dialer-title")
	}
	if strings.TrimSpace(s.SpreadsheetTitle) == "" {
		missing = append(missing, "spreadsheet-title")
	}
	if !s.Hangup.Set() {
		missing = append(missing, "hangup point")
	}
	if !s.Dial.Set() {
		missing = append(missing, "dial point")
	}
	return missing
}

// Validate checks value ranges. The store itself never validates.
func Validate(s model.Settings) error {
	if s.WaitTimeMs < MinWaitTimeMs || s.WaitTimeMs > MaxWaitTimeMs {
		return fmt.Errorf("wait-time must be between %d and %d ms", MinWaitTimeMs, MaxWaitTimeMs)
	}
	if len(s.DialPrefix) > MaxPrefixLen {
		return fmt.Errorf("dial-prefix must be at most %d characters", MaxPrefixLen)
	}
	coords := []struct {
		name  string
		value int
	}{
		{"hangup-x", s.Hangup.X},
		{"hangup-y", s.Hangup.Y},
		{"dial-x", s.Dial.X},
		{"dial-y", s.Dial.Y},
	}
	for _, c := range coords {
		if c.value < 0 || c.value > MaxCoordinate {
			return fmt.Errorf("%s must be between 0 and %d", c.name, MaxCoordinate)
		}
	}
	if s.DailyGoal < minGoal || s.DailyGoal > MaxDailyGoal {
		return fmt.Errorf("daily-goal must be between %d and %d", minGoal, MaxDailyGoal)
	}
	if s.WeeklyGoal < minGoal || s.WeeklyGoal > MaxWeeklyGoal {
		return fmt.Errorf("weekly-goal must be between %d and %d", minGoal, MaxWeeklyGoal)
	}
	if s.BestHourlyRate < 0 {
		return fmt.Errorf("best-hourly-rate must be >= 0")
	}
	if _, err := NormalizeLogLevel(s.LogLevel); err != nil {
		return err
	}
	return nil
}

// NormalizeLogLevel lower-cases a level name and rejects unknown ones.
func NormalizeLogLevel(level string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if normalized == "" {
		return DefaultLogLevel, nil
	}
	switch normalized {
	case "debug", "info", "warn", "error":
		return normalized, nil
	default:
		return "", fmt.Errorf("unsupported log level %q", level)
	}
}
