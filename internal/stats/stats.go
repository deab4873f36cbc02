// Package stats contains call statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/verte-zerg/dialloop/internal/model"
)

const sparkChars = " .:-=+*#%@"

// RecordMinCalls is the session call count below which a rate is never
// recorded as the best.
const RecordMinCalls = 10

// HourlyRate returns calls per hour over elapsed, rounded to one decimal.
func HourlyRate(calls int, elapsed time.Duration) float64 {
	ms := elapsed.Milliseconds()
	if ms <= 0 || calls <= 0 {
		return 0
	}
	rate := float64(calls) * 3600000 / float64(ms)
	return math.Round(rate*10) / 10
}

// IsNewBest reports whether rate should replace best for a session with calls calls.
func IsNewBest(rate, best float64, calls int) bool {
	return calls >= RecordMinCalls && rate > best
}

// Progress returns count as a percentage of goal clamped to [0,100].
func Progress(count, goal int) int {
	if goal <= 0 || count <= 0 {
		return 0
	}
	pct := int(math.Round(float64(count) / float64(goal) * 100))
	if pct > 100 {
		return 100
	}
	return pct
}

// FormatTalkTime renders a duration as "1h 5m", "3m 20s" or "42s".
func FormatTalkTime(d time.Duration) string {
	seconds := int64(d / time.Second)
	switch {
	case seconds > 3600:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	case seconds > 60:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi-lo < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	last := len(sparkChars) - 1
	for _, v := range values {
		idx := int(math.Round((v - lo) / (hi - lo) * float64(last)))
		b.WriteByte(sparkChars[max(0, min(idx, last))])
	}
	return b.String()
}

// RenderSummary prints the persisted counters, goals and best rate.
func RenderSummary(w io.Writer, r Report) error {
	s := r.Stats
	lines := []string{
		"Summary",
		fmt.Sprintf("Lifetime calls: %d", s.TotalCalls),
		fmt.Sprintf("Last session: %s", s.LastSession),
		fmt.Sprintf("This week: %d/%d (%d%%)", s.WeeklyCalls, r.WeeklyGoal, Progress(s.WeeklyCalls, r.WeeklyGoal)),
		fmt.Sprintf("Today: %d/%d (%d%%)", s.DailyCalls, r.DailyGoal, Progress(s.DailyCalls, r.DailyGoal)),
		fmt.Sprintf("Connected: %d", s.ConnectedCalls),
		fmt.Sprintf("Best rate: %.1f/hr", r.BestRate),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderSessions prints the session history table and a calls sparkline.
func RenderSessions(w io.Writer, sessions []model.SessionRecord) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Sessions"); err != nil {
		return err
	}
	headers := []string{"Ended", "Length", "Calls", "Connected", "Talk", "Rate/hr"}
	rows := make([][]string, 0, len(sessions))
	calls := make([]float64, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, SessionRow(s))
		calls = append(calls, float64(s.Calls))
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "\nCalls per session: %s\n", Sparkline(calls)); err != nil {
		return err
	}
	return nil
}

// SessionRow formats one session for tabular output.
func SessionRow(s model.SessionRecord) []string {
	return []string{
		s.EndedAt.Local().Format("2006-01-02 15:04"),
		FormatTalkTime(s.EndedAt.Sub(s.StartedAt)),
		fmt.Sprintf("%d", s.Calls),
		fmt.Sprintf("%d", s.ConnectedCalls),
		FormatTalkTime(time.Duration(s.TalkTimeMs) * time.Millisecond),
		fmt.Sprintf("%.1f", s.HourlyRate),
	}
}
