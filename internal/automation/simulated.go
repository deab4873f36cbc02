package automation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/verte-zerg/dialloop/internal/model"
)

// Action kinds recorded by the simulated driver.
const (
	ActionActivate = "activate"
	ActionCopy     = "copy"
	ActionPaste    = "paste"
	ActionMove     = "move"
	ActionClick    = "click"
)

// Action is one recorded driver call.
type Action struct {
	Kind   string
	Target string
	At     model.Point
	Prefix string
}

// SimulatedOptions configure a Simulated driver.
type SimulatedOptions struct {
	// Delay is slept before every call returns.
	Delay  time.Duration
	Logger *slog.Logger
}

// Simulated is a Driver that touches nothing and records every call.
// It backs --dry-run and the dial loop tests.
type Simulated struct {
	delay  time.Duration
	logger *slog.Logger

	mu         sync.Mutex
	actions    []Action
	activation map[string]ActivationResult
	failCopy   bool
	failPaste  bool
	pointer    model.Point
}

// NewSimulated returns a driver where every step succeeds.
func NewSimulated(opts SimulatedOptions) *Simulated {
	return &Simulated{
		delay:      opts.Delay,
		logger:     opts.Logger,
		activation: map[string]ActivationResult{},
	}
}

// SetActivation fixes the result reported for a window title.
func (s *Simulated) SetActivation(title string, result ActivationResult) {
	s.mu.Lock()
	s.activation[title] = result
	s.mu.Unlock()
}

// FailCopy makes CopyNextValue report failure.
func (s *Simulated) FailCopy(fail bool) {
	s.mu.Lock()
	s.failCopy = fail
	s.mu.Unlock()
}

// FailPaste makes PasteAndSubmit report failure.
func (s *Simulated) FailPaste(fail bool) {
	s.mu.Lock()
	s.failPaste = fail
	s.mu.Unlock()
}

// Actions returns a copy of the recorded calls.
func (s *Simulated) Actions() []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Action(nil), s.actions...)
}

// Count returns how many calls of kind were recorded.
func (s *Simulated) Count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.actions {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// Activate implements Driver.
func (s *Simulated) Activate(ctx context.Context, title string) ActivationResult {
	s.mu.Lock()
	result, ok := s.activation[title]
	if !ok {
		result = Succeeded
	}
	s.mu.Unlock()
	s.record(ctx, Action{Kind: ActionActivate, Target: title})
	return result
}

// CopyNextValue implements Driver.
func (s *Simulated) CopyNextValue(ctx context.Context, sourceTitle string) bool {
	s.mu.Lock()
	fail := s.failCopy
	s.mu.Unlock()
	s.record(ctx, Action{Kind: ActionCopy, Target: sourceTitle})
	return !fail && ctx.Err() == nil
}

// PasteAndSubmit implements Driver.
func (s *Simulated) PasteAndSubmit(ctx context.Context, targetTitle string, at model.Point, prefix string) bool {
	s.mu.Lock()
	fail := s.failPaste
	s.mu.Unlock()
	s.record(ctx, Action{Kind: ActionPaste, Target: targetTitle, At: at, Prefix: prefix})
	return !fail && ctx.Err() == nil
}

// MoveTo implements Driver.
func (s *Simulated) MoveTo(ctx context.Context, at model.Point) {
	s.record(ctx, Action{Kind: ActionMove, At: at})
}

// Click implements Driver.
func (s *Simulated) Click(ctx context.Context, at model.Point) {
	s.record(ctx, Action{Kind: ActionClick, At: at})
}

// Location implements Locator with the last moved or clicked point.
func (s *Simulated) Location() model.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pointer
}

func (s *Simulated) record(ctx context.Context, a Action) {
	s.mu.Lock()
	s.actions = append(s.actions, a)
	if a.Kind == ActionMove || a.Kind == ActionClick || a.Kind == ActionPaste {
		s.pointer = a.At
	}
	s.mu.Unlock()
	if s.logger != nil {
		s.logger.Debug("simulated action", "kind", a.Kind, "target", a.Target, "x", a.At.X, "y", a.At.Y)
	}
	_ = Sleep(ctx, s.delay)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
