package dialer

import "time"

// Timing holds the fixed pauses of the dial loop and the manual operations.
// A zero pause is skipped; zero poll and status intervals take the defaults.
type Timing struct {
	// ActivateSettle follows dialer activation.
	ActivateSettle time.Duration
	// PostCallPause follows the automatic hangup click.
	PostCallPause time.Duration
	// PollInterval bounds how long the answer wait sleeps between checks.
	PollInterval time.Duration
	// StatusInterval is the refresh cadence of the on-call timer.
	StatusInterval time.Duration
	// HangupSettle follows a manual hangup click.
	HangupSettle time.Duration
	// ToggleSettle follows the hangup click when a call is ended.
	ToggleSettle time.Duration
	// FailurePause precedes the retry after an abandoned cycle.
	FailurePause time.Duration
}

const (
	defaultPollInterval   = 100 * time.Millisecond
	defaultStatusInterval = time.Second
)

// DefaultTiming returns the pauses used against real applications.
func DefaultTiming() Timing {
	return Timing{
		ActivateSettle: 500 * time.Millisecond,
		PostCallPause:  1500 * time.Millisecond,
		PollInterval:   defaultPollInterval,
		StatusInterval: defaultStatusInterval,
		HangupSettle:   300 * time.Millisecond,
		ToggleSettle:   500 * time.Millisecond,
		FailurePause:   2 * time.Second,
	}
}

func (t Timing) withDefaults() Timing {
	if t.PollInterval <= 0 {
		t.PollInterval = defaultPollInterval
	}
	if t.StatusInterval <= 0 {
		t.StatusInterval = defaultStatusInterval
	}
	return t
}
