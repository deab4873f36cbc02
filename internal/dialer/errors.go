package dialer

import "errors"

var (
	// ErrNotConfigured means a window title or click point is still missing.
	ErrNotConfigured = errors.New("dialloop is not configured")
	// ErrOnCall rejects stop and hangup while a live call is in progress.
	ErrOnCall = errors.New("currently on a call, end the call first")
	// ErrAlreadyRunning is returned by Start when the loop is active.
	ErrAlreadyRunning = errors.New("dial loop already running")
	// ErrStepFailed wraps an automation step that reported failure.
	ErrStepFailed = errors.New("automation step failed")
)

// errStopped ends a cycle early after a stop request.
var errStopped = errors.New("dial loop stopped")
