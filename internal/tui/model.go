// Package tui provides the Bubble Tea control surface for the dial loop.
package tui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/dialloop/internal/config"
	"github.com/verte-zerg/dialloop/internal/dialer"
	"github.com/verte-zerg/dialloop/internal/model"
	"github.com/verte-zerg/dialloop/internal/stats"
)

const (
	tickInterval = time.Second
	barWidth     = 40
	historyRows  = 5
)

// Status colours.
var (
	colorRed    = lipgloss.Color("#FF3B30")
	colorOrange = lipgloss.Color("#FF9500")
	colorGreen  = lipgloss.Color("#34C759")
	colorPurple = lipgloss.Color("#5856D6")
	colorPink   = lipgloss.Color("#FF2D55")
	colorBlue   = lipgloss.Color("#007AFF")
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	statusStyle = lipgloss.NewStyle().Bold(true).Padding(1, 0)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	noticeStyle = lipgloss.NewStyle().Foreground(colorPink).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(colorRed)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	paneStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
)

// ConfigSource reloads settings after the configuration file was edited.
type ConfigSource interface {
	Path() string
	Load() (model.Settings, error)
}

// Options configure the control surface.
type Options struct {
	Controller *dialer.Controller
	Config     ConfigSource
	// Stats backs the statistics pane. Optional.
	Stats  stats.Source
	Editor string
	DryRun bool
	Logger *slog.Logger

	// Overrides reapplies per-run settings on top of a reloaded config file.
	Overrides func(model.Settings) model.Settings
}

type tickMsg time.Time

type eventMsg struct {
	event dialer.Event
}

type opDoneMsg struct {
	op  string
	err error
}

type editorDoneMsg struct {
	err error
}

type reportMsg struct {
	text string
	err  error
}

// Model implements the Bubble Tea control surface.
type Model struct {
	ctx    context.Context
	ctrl   *dialer.Controller
	cfg    ConfigSource
	source stats.Source
	editor    string
	dryRun    bool
	overrides func(model.Settings) model.Settings
	logger    *slog.Logger

	width  int
	height int

	status    dialer.StatusEvent
	snapshot  model.Snapshot
	daily     int
	weekly    int
	dailyBar  progress.Model
	weeklyBar progress.Model

	notice   string
	errMsg   string
	busy     string
	showPane bool
	pane     string
}

// NewModel constructs the control surface model. ctx bounds every
// controller operation started from the UI.
func NewModel(ctx context.Context, opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Model{
		ctx:       ctx,
		ctrl:      opts.Controller,
		cfg:       opts.Config,
		source:    opts.Stats,
		editor:    opts.Editor,
		dryRun:    opts.DryRun,
		overrides: opts.Overrides,
		logger:    logger,
		status:    dialer.StatusEvent{Text: "READY"},
		dailyBar:  progress.New(progress.WithSolidFill(string(colorBlue)), progress.WithWidth(barWidth)),
		weeklyBar: progress.New(progress.WithSolidFill(string(colorGreen)), progress.WithWidth(barWidth)),
	}
	m.applySnapshot(m.ctrl.Snapshot())
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("DialLoop"),
		tick(),
		waitEvent(m.ctrl.Events()),
	)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w := min(barWidth, max(10, msg.Width-20))
		m.dailyBar.Width = w
		m.weeklyBar.Width = w
		return m, nil
	case tickMsg:
		m.applySnapshot(m.ctrl.Tick(time.Time(msg)))
		return m, tick()
	case eventMsg:
		m.handleEvent(msg.event)
		return m, waitEvent(m.ctrl.Events())
	case opDoneMsg:
		return m.handleOpDone(msg)
	case editorDoneMsg:
		return m.handleEditorDone(msg)
	case reportMsg:
		if msg.err != nil {
			m.pane = "Failed to load stats: " + msg.err.Error()
		} else {
			m.pane = msg.text
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	sections := []string{
		m.renderHeader(),
		m.renderStatus(),
		m.renderCounters(),
		m.renderProgress(),
	}
	if m.showPane && m.pane != "" {
		sections = append(sections, paneStyle.Render(m.pane))
	}
	if line := m.renderMessage(); line != "" {
		sections = append(sections, line)
	}
	sections = append(sections, m.renderFooter())
	content := strings.Join(sections, "\n")
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "s":
		return m, m.run("start", m.ctrl.Start)
	case "x":
		return m, m.run("stop", m.ctrl.Stop)
	case "h":
		return m, m.run("hangup", m.ctrl.HangupNext)
	case "c":
		return m, m.run("toggle", func(ctx context.Context) error {
			_, err := m.ctrl.ToggleCall(ctx)
			return err
		})
	case "o":
		return m, m.openConfig()
	case "i":
		m.showPane = !m.showPane
		if m.showPane {
			return m, m.loadReport()
		}
		return m, nil
	}
	return m, nil
}

// run executes a blocking controller operation off the UI goroutine.
func (m *Model) run(op string, fn func(context.Context) error) tea.Cmd {
	if m.busy != "" && op != "toggle" {
		m.errMsg = fmt.Sprintf("%s still in progress", m.busy)
		return nil
	}
	m.errMsg = ""
	if m.busy == "" {
		m.busy = op
	}
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m *Model) handleOpDone(msg opDoneMsg) (tea.Model, tea.Cmd) {
	if m.busy == msg.op {
		m.busy = ""
	}
	m.applySnapshot(m.ctrl.Snapshot())
	if msg.err == nil {
		m.errMsg = ""
		return m, nil
	}
	m.logger.Warn("operation refused", "op", msg.op, "error", msg.err)
	switch {
	case errors.Is(msg.err, dialer.ErrNotConfigured):
		m.errMsg = "Please configure DialLoop first! Missing: " +
			strings.Join(config.Missing(m.ctrl.Settings()), ", ") + ". Press o to edit the configuration."
	case errors.Is(msg.err, dialer.ErrOnCall):
		m.errMsg = "You are currently on a call! End the call first."
	case errors.Is(msg.err, dialer.ErrAlreadyRunning):
		m.errMsg = "Dialing is already running."
	default:
		m.errMsg = msg.err.Error()
	}
	return m, nil
}

func (m *Model) openConfig() tea.Cmd {
	if m.cfg == nil {
		return nil
	}
	editor := m.editor
	if editor == "" {
		editor = "vi"
	}
	fields := strings.Fields(editor)
	args := append(fields[1:], m.cfg.Path())
	cmd := exec.Command(fields[0], args...)
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return editorDoneMsg{err: err}
	})
}

func (m *Model) handleEditorDone(msg editorDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.errMsg = "editor failed: " + msg.err.Error()
		return m, nil
	}
	settings, err := m.cfg.Load()
	if err != nil {
		m.errMsg = err.Error()
		return m, nil
	}
	if m.overrides != nil {
		settings = m.overrides(settings)
	}
	if err := config.Validate(settings); err != nil {
		m.errMsg = "configuration not applied: " + err.Error()
		return m, nil
	}
	m.ctrl.SetSettings(settings)
	m.errMsg = ""
	m.status = dialer.StatusEvent{Text: "CONFIG UPDATED"}
	m.applySnapshot(m.ctrl.Snapshot())
	m.logger.Info("configuration reloaded", "path", m.cfg.Path())
	return m, nil
}

func (m *Model) loadReport() tea.Cmd {
	if m.source == nil {
		return nil
	}
	src := m.source
	ctx := m.ctx
	settings := m.ctrl.Settings()
	return func() tea.Msg {
		report, err := stats.BuildReport(ctx, src, settings, model.StatsConfig{Last: historyRows})
		if err != nil {
			return reportMsg{err: err}
		}
		var buf bytes.Buffer
		if err := stats.RenderSummary(&buf, report); err != nil {
			return reportMsg{err: err}
		}
		if err := stats.RenderSessions(&buf, report.Sessions); err != nil {
			return reportMsg{err: err}
		}
		return reportMsg{text: strings.TrimRight(buf.String(), "\n")}
	}
}

func (m *Model) handleEvent(ev dialer.Event) {
	switch ev := ev.(type) {
	case dialer.StatusEvent:
		m.status = ev
	case dialer.StatsEvent:
		m.applySnapshot(ev.Snapshot)
	case dialer.ProgressEvent:
		m.daily = ev.Daily
		m.weekly = ev.Weekly
	case dialer.NoticeEvent:
		m.notice = ev.Title + " " + ev.Body
	}
}

func (m *Model) applySnapshot(s model.Snapshot) {
	m.snapshot = s
	m.daily = stats.Progress(s.DailyCalls, s.DailyGoal)
	m.weekly = stats.Progress(s.WeeklyCalls, s.WeeklyGoal)
	if !s.OnCall {
		m.notice = ""
	}
}

func (m *Model) renderHeader() string {
	title := titleStyle.Render("DialLoop")
	if m.dryRun {
		title += labelStyle.Render("  (dry run)")
	}
	return title
}

func (m *Model) renderStatus() string {
	return statusStyle.Foreground(statusColor(m.status)).Render(m.status.Text)
}

// statusColor picks the status colour: countdowns shift from green to red,
// call timers are purple, live calls pink, everything else blue.
func statusColor(ev dialer.StatusEvent) lipgloss.Color {
	switch {
	case strings.HasPrefix(ev.Text, "WAIT "):
		secs := int(ev.Remaining / time.Second)
		switch {
		case secs <= 5:
			return colorRed
		case secs <= 10:
			return colorOrange
		default:
			return colorGreen
		}
	case strings.HasPrefix(ev.Text, "CALL "):
		return colorPurple
	case strings.HasPrefix(ev.Text, "LIVE"):
		return colorPink
	default:
		return colorBlue
	}
}

func (m *Model) renderCounters() string {
	s := m.snapshot
	lines := []string{
		field("Connected", fmt.Sprintf("%d", s.Connected)) + "  " +
			field("Talk Time", stats.FormatTalkTime(s.TalkTime)) + "  " +
			field("Session", stats.FormatTalkTime(s.SessionTime)),
		field("Calls", fmt.Sprintf("%d", s.SessionCalls)) + "  " +
			field("This hour", fmt.Sprintf("%d", s.HourCalls)) + "  " +
			field("Lifetime", fmt.Sprintf("%d", s.TotalCalls)),
		field("Rate", fmt.Sprintf("%.1f/hr", s.CurrentRate)) + "  " +
			field("Best", fmt.Sprintf("%.1f/hr", s.BestRate)),
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderProgress() string {
	s := m.snapshot
	today := field("Today", fmt.Sprintf("%d/%d", s.DailyCalls, s.DailyGoal))
	week := field("Week", fmt.Sprintf("%d/%d", s.WeeklyCalls, s.WeeklyGoal))
	return strings.Join([]string{
		today,
		m.dailyBar.ViewAs(float64(m.daily) / 100),
		week,
		m.weeklyBar.ViewAs(float64(m.weekly) / 100),
	}, "\n")
}

func (m *Model) renderMessage() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	switch {
	case m.errMsg != "":
		return errorStyle.Render(wrapText(m.errMsg, width))
	case m.notice != "":
		return noticeStyle.Render(wrapText(m.notice, width))
	default:
		return ""
	}
}

func (m *Model) renderFooter() string {
	segments := []string{"s start", "x stop", "h hangup+next", "c call on/off", "o config", "i stats", "q quit"}
	if m.busy != "" {
		segments = append(segments, m.busy+"...")
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

func field(label, value string) string {
	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitEvent(ch <-chan dialer.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg{event: <-ch}
	}
}

// Editor returns the user's preferred editor command.
func Editor() string {
	for _, key := range []string{"VISUAL", "EDITOR"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}
