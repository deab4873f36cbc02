// Package automation defines the window and input driver used by the dial loop.
package automation

import (
	"context"

	"github.com/verte-zerg/dialloop/internal/model"
)

// ActivationResult reports what happened when a window was brought to front.
type ActivationResult int

const (
	// Succeeded means exactly one matching window was activated.
	Succeeded ActivationResult = iota
	// NotFound means no window matched the identifier.
	NotFound
	// Ambiguous means several windows matched and the first was activated.
	Ambiguous
)

func (r ActivationResult) String() string {
	switch r {
	case Succeeded:
		return "succeeded"
	case NotFound:
		return "not found"
	case Ambiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// OK reports whether a window was activated at all.
func (r ActivationResult) OK() bool {
	return r == Succeeded || r == Ambiguous
}

// Driver performs the clicking and typing sequences against other applications.
// Each call runs with fixed internal delays and only reports success or failure.
type Driver interface {
	// Activate brings the window matching title to the front.
	Activate(ctx context.Context, title string) ActivationResult
	// CopyNextValue moves one row down in the source window and copies the cell.
	CopyNextValue(ctx context.Context, sourceTitle string) bool
	// PasteAndSubmit clicks at in the target window, types prefix, pastes and confirms.
	PasteAndSubmit(ctx context.Context, targetTitle string, at model.Point, prefix string) bool
	// MoveTo places the pointer without clicking.
	MoveTo(ctx context.Context, at model.Point)
	// Click presses the primary button at the given point.
	Click(ctx context.Context, at model.Point)
}

// Locator reads the current pointer position. Drivers that can track the
// pointer implement it for coordinate picking.
type Locator interface {
	Location() model.Point
}
