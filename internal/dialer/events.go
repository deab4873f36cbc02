package dialer

import (
	"time"

	"github.com/verte-zerg/dialloop/internal/model"
)

// Phase is the current step of the dial loop.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseActivatingDialer
	PhaseOnCallWait
	PhaseCopyingNumber
	PhaseDialing
	PhaseWaitingForAnswer
	PhasePostCallPause
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseActivatingDialer:
		return "activating dialer"
	case PhaseOnCallWait:
		return "on call"
	case PhaseCopyingNumber:
		return "copying number"
	case PhaseDialing:
		return "dialing"
	case PhaseWaitingForAnswer:
		return "waiting for answer"
	case PhasePostCallPause:
		return "post-call pause"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Running reports whether p is one of the loop's active sub-phases.
func (p Phase) Running() bool {
	return p > PhaseIdle && p < PhaseStopped
}

// Event is pushed to the display layer. Sends never block; a full buffer drops the event.
type Event interface {
	event()
}

// StatusEvent carries the one-line status text.
type StatusEvent struct {
	Text  string
	Phase Phase
	// Remaining is set while waiting for an answer.
	Remaining time.Duration
}

// StatsEvent carries fresh counters and rates.
type StatsEvent struct {
	Snapshot model.Snapshot
}

// ProgressEvent carries goal progress percentages clamped to [0,100].
type ProgressEvent struct {
	Daily  int
	Weekly int
}

// NoticeEvent is a transient notification such as a live call alert.
type NoticeEvent struct {
	Title string
	Body  string
}

func (StatusEvent) event()   {}
func (StatsEvent) event()    {}
func (ProgressEvent) event() {}
func (NoticeEvent) event()   {}
