package automation

import (
	"context"
	"testing"
	"time"

	"github.com/verte-zerg/dialloop/internal/model"
)

func TestActivationResultOK(t *testing.T) {
	if !Succeeded.OK() || !Ambiguous.OK() {
		t.Fatalf("succeeded and ambiguous activations should count as activated")
	}
	if NotFound.OK() {
		t.Fatalf("not found must not count as activated")
	}
	if NotFound.String() != "not found" {
		t.Fatalf("unexpected string %q", NotFound.String())
	}
}

func TestSimulatedRecordsCalls(t *testing.T) {
	ctx := context.Background()
	d := NewSimulated(SimulatedOptions{})
	d.SetActivation("Sheet", Ambiguous)

	if got := d.Activate(ctx, "Dialer"); got != Succeeded {
		t.Fatalf("expected default success, got %v", got)
	}
	if got := d.Activate(ctx, "Sheet"); got != Ambiguous {
		t.Fatalf("expected configured result, got %v", got)
	}
	if !d.CopyNextValue(ctx, "Sheet") {
		t.Fatalf("expected copy to succeed")
	}
	dial := model.Point{X: 200, Y: 210}
	if !d.PasteAndSubmit(ctx, "Dialer", dial, "1") {
		t.Fatalf("expected paste to succeed")
	}
	d.MoveTo(ctx, model.Point{X: 100, Y: 110})
	d.Click(ctx, model.Point{X: 100, Y: 110})

	actions := d.Actions()
	if len(actions) != 6 {
		t.Fatalf("expected 6 actions, got %d", len(actions))
	}
	if actions[3].Prefix != "1" || actions[3].At != dial {
		t.Fatalf("unexpected paste action: %+v", actions[3])
	}
	if d.Count(ActionClick) != 1 {
		t.Fatalf("expected one click")
	}
	if loc := d.Location(); loc != (model.Point{X: 100, Y: 110}) {
		t.Fatalf("unexpected pointer location %v", loc)
	}
}

func TestSimulatedFailures(t *testing.T) {
	ctx := context.Background()
	d := NewSimulated(SimulatedOptions{})
	d.FailCopy(true)
	d.FailPaste(true)
	if d.CopyNextValue(ctx, "Sheet") {
		t.Fatalf("expected copy failure")
	}
	if d.PasteAndSubmit(ctx, "Dialer", model.Point{X: 1, Y: 1}, "") {
		t.Fatalf("expected paste failure")
	}
}

func TestSleepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := Sleep(ctx, time.Second); err == nil {
		t.Fatalf("expected cancellation error")
	}
	if time.Since(start) > 200*time.Millisecond {
		t.Fatalf("sleep did not return promptly after cancel")
	}
}
