package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/verte-zerg/dialloop/internal/automation"
	"github.com/verte-zerg/dialloop/internal/model"
)

func TestParseStatsConfig(t *testing.T) {
	cfg, err := parseStatsConfig("2026-03-02", 5)
	if err != nil {
		t.Fatalf("parseStatsConfig: %v", err)
	}
	if cfg.Last != 5 || cfg.Since == nil || cfg.Since.Day() != 2 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if _, err := parseStatsConfig("02/03/2026", 0); err == nil {
		t.Fatalf("expected error for bad date")
	}
	if _, err := parseStatsConfig("", -1); err == nil {
		t.Fatalf("expected error for negative --last")
	}
}

func TestPickPointReadsPointer(t *testing.T) {
	drv := automation.NewSimulated(automation.SimulatedOptions{})
	drv.MoveTo(context.Background(), model.Point{X: 120, Y: 340})
	point, err := pickPoint(drv)
	if err != nil {
		t.Fatalf("pickPoint: %v", err)
	}
	if point != (model.Point{X: 120, Y: 340}) {
		t.Fatalf("expected 120,340, got %s", point)
	}

	drv.MoveTo(context.Background(), model.Point{X: 0, Y: 50})
	if _, err := pickPoint(drv); err == nil {
		t.Fatalf("expected error for zero coordinate")
	}
	drv.MoveTo(context.Background(), model.Point{X: 6000, Y: 50})
	if _, err := pickPoint(drv); err == nil {
		t.Fatalf("expected error for out of range coordinate")
	}
}

func TestWindowTitle(t *testing.T) {
	s := model.Settings{DialerTitle: "Dialer", SpreadsheetTitle: ""}
	title, err := windowTitle(s, "Dialer")
	if err != nil || title != "Dialer" {
		t.Fatalf("expected Dialer, got %q (%v)", title, err)
	}
	if _, err := windowTitle(s, "spreadsheet"); err == nil {
		t.Fatalf("expected error for unset spreadsheet title")
	}
	if _, err := windowTitle(s, "browser"); err == nil {
		t.Fatalf("expected error for unknown window")
	}
}

func TestWriteSettings(t *testing.T) {
	var buf bytes.Buffer
	s := model.Settings{
		DialerTitle:      "Dialer",
		SpreadsheetTitle: "Sheet",
		Hangup:           model.Point{X: 100, Y: 100},
		Dial:             model.Point{X: 200, Y: 200},
		WaitTimeMs:       35000,
	}
	if err := writeSettings(&buf, "/tmp/config.toml", s); err != nil {
		t.Fatalf("writeSettings: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"/tmp/config.toml", "hangup point:", "100,100", "35000 ms", "configured:", "true"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestApplyConfigOnlyWhenFlagChanged(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.Flags().Set("prefix", "9"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	prefix := "1"
	wait := 35000
	applyStringConfig(cmd, "prefix", &prefix, "9")
	applyIntConfig(cmd, "wait", &wait, 20000)
	if prefix != "9" {
		t.Fatalf("expected changed flag to override, got %q", prefix)
	}
	if wait != 35000 {
		t.Fatalf("expected unchanged flag to keep file value, got %d", wait)
	}
}
