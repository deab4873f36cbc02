// Package desktop drives real windows, mouse and keyboard through robotgo.
package desktop

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/go-vgo/robotgo"

	"github.com/verte-zerg/dialloop/internal/automation"
	"github.com/verte-zerg/dialloop/internal/model"
)

// Fixed step delays. The target applications give no completion signal.
const (
	activateSettle = 500 * time.Millisecond
	copySettle     = 300 * time.Millisecond
	afterCopy      = 500 * time.Millisecond
	clickSettle    = 200 * time.Millisecond
	prefixSettle   = 100 * time.Millisecond
	pasteSettle    = 300 * time.Millisecond
	submitSettle   = 500 * time.Millisecond
)

// Driver implements automation.Driver against the local desktop session.
type Driver struct {
	logger   *slog.Logger
	modifier string
}

// New returns a desktop driver. Clipboard shortcuts use cmd on macOS and ctrl elsewhere.
func New(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	modifier := "ctrl"
	if runtime.GOOS == "darwin" {
		modifier = "cmd"
	}
	return &Driver{logger: logger, modifier: modifier}
}

// Activate implements automation.Driver.
func (d *Driver) Activate(ctx context.Context, title string) automation.ActivationResult {
	title = strings.TrimSpace(title)
	if title == "" {
		return automation.NotFound
	}
	ids, err := robotgo.FindIds(title)
	if err != nil {
		d.logger.Warn("window lookup failed", "title", title, "error", err)
		return automation.NotFound
	}
	if len(ids) == 0 {
		return automation.NotFound
	}
	if err := robotgo.ActiveName(title); err != nil {
		d.logger.Warn("window activation failed", "title", title, "error", err)
		return automation.NotFound
	}
	if err := automation.Sleep(ctx, activateSettle); err != nil {
		return automation.NotFound
	}
	if len(ids) > 1 {
		return automation.Ambiguous
	}
	return automation.Succeeded
}

// CopyNextValue implements automation.Driver.
func (d *Driver) CopyNextValue(ctx context.Context, sourceTitle string) bool {
	if !d.Activate(ctx, sourceTitle).OK() {
		return false
	}
	steps := []func() error{
		func() error { return automation.Sleep(ctx, copySettle) },
		func() error { return robotgo.KeyTap("down") },
		func() error { return automation.Sleep(ctx, copySettle) },
		func() error { return robotgo.KeyTap("c", d.modifier) },
		func() error { return automation.Sleep(ctx, afterCopy) },
	}
	return d.run("copy next value", steps)
}

// PasteAndSubmit implements automation.Driver.
func (d *Driver) PasteAndSubmit(ctx context.Context, targetTitle string, at model.Point, prefix string) bool {
	if !d.Activate(ctx, targetTitle).OK() {
		return false
	}
	steps := []func() error{
		func() error {
			robotgo.Move(at.X, at.Y)
			return automation.Sleep(ctx, clickSettle)
		},
		func() error {
			robotgo.Click()
			return automation.Sleep(ctx, clickSettle)
		},
	}
	if prefix != "" {
		steps = append(steps, func() error {
			robotgo.TypeStr(prefix)
			return automation.Sleep(ctx, prefixSettle)
		})
	}
	steps = append(steps,
		func() error { return robotgo.KeyTap("v", d.modifier) },
		func() error { return automation.Sleep(ctx, pasteSettle) },
		func() error { return robotgo.KeyTap("enter") },
		func() error { return automation.Sleep(ctx, submitSettle) },
	)
	return d.run("paste and submit", steps)
}

// MoveTo implements automation.Driver.
func (d *Driver) MoveTo(ctx context.Context, at model.Point) {
	robotgo.Move(at.X, at.Y)
	_ = automation.Sleep(ctx, clickSettle)
}

// Click implements automation.Driver.
func (d *Driver) Click(_ context.Context, at model.Point) {
	robotgo.Move(at.X, at.Y)
	robotgo.Click()
}

// Location implements automation.Locator.
func (d *Driver) Location() model.Point {
	x, y := robotgo.Location()
	return model.Point{X: x, Y: y}
}

func (d *Driver) run(step string, steps []func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("automation step panicked", "step", step, "panic", r)
			ok = false
		}
	}()
	for _, fn := range steps {
		if err := fn(); err != nil {
			d.logger.Warn("automation step failed", "step", step, "error", err)
			return false
		}
	}
	return true
}
