package stats

import "testing"

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"Ended", "Calls", "Rate/hr"}
	rows := [][]string{
		{"2026-03-04 10:30", "12", "41.2"},
		{"2026-03-05 09:00", "7", "120.0"},
	}
	rightAlign := map[int]bool{1: true, 2: true}

	lines := formatTable(headers, rows, rightAlign)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Ended            Calls Rate/hr" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "2026-03-04 10:30    12    41.2" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "2026-03-05 09:00     7   120.0" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestFormatTableWideRunes(t *testing.T) {
	lines := formatTable([]string{"Name", "N"}, [][]string{{"電話", "1"}, {"ab", "22"}}, map[int]bool{1: true})
	if lines[1] != "電話  1" {
		t.Fatalf("unexpected wide-rune row: %q", lines[1])
	}
	if lines[2] != "ab   22" {
		t.Fatalf("unexpected row: %q", lines[2])
	}
}
