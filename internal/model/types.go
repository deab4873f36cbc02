// Package model defines shared data structures.
package model

import (
	"fmt"
	"time"
)

// Point is a screen coordinate.
type Point struct {
	X int
	Y int
}

// Set reports whether both coordinates have been picked.
func (p Point) Set() bool {
	return p.X != 0 && p.Y != 0
}

func (p Point) String() string {
	return fmt.Sprintf("%d,%d", p.X, p.Y)
}

// Settings is the full persisted configuration.
type Settings struct {
	DialerTitle      string
	SpreadsheetTitle string
	Hangup           Point
	Dial             Point
	WaitTimeMs       int
	DialPrefix       string

	DailyGoal      int
	WeeklyGoal     int
	BestHourlyRate float64

	Version  string
	Created  string
	Platform string

	LogLevel  string
	LogFormat string

	RequireActivation bool
}

// WaitTime returns the answer wait as a duration.
func (s Settings) WaitTime() time.Duration {
	return time.Duration(s.WaitTimeMs) * time.Millisecond
}

// SettingsUpdate carries a partial settings change. Nil fields keep their prior value.
type SettingsUpdate struct {
	DialerTitle      *string
	SpreadsheetTitle *string
	Hangup           *Point
	Dial             *Point
	WaitTimeMs       *int
	DialPrefix       *string

	DailyGoal      *int
	WeeklyGoal     *int
	BestHourlyRate *float64

	LogLevel  *string
	LogFormat *string

	RequireActivation *bool
}

// Statistics holds the persisted call counters.
type Statistics struct {
	TotalCalls  int
	LastSession string

	WeeklyCalls     int
	WeeklyResetDate string

	DailyCalls     int
	DailyResetDate string

	AccumulatedTimeMs int64
	ConnectedCalls    int
}

// StatsUpdate changes persisted counters. AddCalls is added to every call
// counter after boundary resets; set pointer fields overwrite.
type StatsUpdate struct {
	AddCalls int

	TotalCalls        *int
	WeeklyCalls       *int
	DailyCalls        *int
	ConnectedCalls    *int
	AccumulatedTimeMs *int64
}

// SessionRecord summarises one dialing session.
type SessionRecord struct {
	ID             string
	StartedAt      time.Time
	EndedAt        time.Time
	Calls          int
	ConnectedCalls int
	TalkTimeMs     int64
	HourlyRate     float64
}

// Snapshot is the stats mapping pushed to the display layer.
type Snapshot struct {
	Connected    int
	TalkTime     time.Duration
	SessionCalls int
	DailyCalls   int
	WeeklyCalls  int
	TotalCalls   int
	HourCalls    int
	SessionTime  time.Duration
	DailyGoal    int
	WeeklyGoal   int
	CurrentRate  float64
	BestRate     float64
	Running      bool
	OnCall       bool
}

// StatsConfig defines filters for the statistics views.
type StatsConfig struct {
	Since *time.Time
	Last  int
}
