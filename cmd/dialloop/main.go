// Package main provides the CLI entrypoint for dialloop.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/dialloop/internal/automation"
	"github.com/verte-zerg/dialloop/internal/automation/desktop"
	"github.com/verte-zerg/dialloop/internal/config"
	"github.com/verte-zerg/dialloop/internal/dialer"
	"github.com/verte-zerg/dialloop/internal/logging"
	"github.com/verte-zerg/dialloop/internal/model"
	"github.com/verte-zerg/dialloop/internal/stats"
	"github.com/verte-zerg/dialloop/internal/statsui"
	"github.com/verte-zerg/dialloop/internal/store"
	"github.com/verte-zerg/dialloop/internal/tui"
)

const defaultPickDelay = 3 * time.Second

var (
	runDryRun            bool
	runWaitMs            int
	runPrefix            string
	runRequireActivation bool
	runLogLevel          string

	statsSince string
	statsLast  int
	statsPlain bool

	pickDelay time.Duration
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dialloop",
		Short:         "Automated dialing assistant",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runDialCmd,
	}

	rootCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "simulate mouse and keyboard actions instead of driving the desktop")
	rootCmd.Flags().IntVar(&runWaitMs, "wait", config.DefaultWaitTimeMs, "answer wait in milliseconds")
	rootCmd.Flags().StringVar(&runPrefix, "prefix", config.DefaultDialPrefix, "literal typed before each pasted number")
	rootCmd.Flags().BoolVar(&runRequireActivation, "require-activation", false, "abandon a cycle when the dialer window cannot be activated")
	rootCmd.Flags().StringVar(&runLogLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newPickCmd())
	rootCmd.AddCommand(newTestCmd())

	return rootCmd
}

func runDialCmd(cmd *cobra.Command, _ []string) error {
	cfgStore, err := config.Open(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	overrides := func(s model.Settings) model.Settings {
		applyIntConfig(cmd, "wait", &s.WaitTimeMs, runWaitMs)
		applyStringConfig(cmd, "prefix", &s.DialPrefix, runPrefix)
		applyBoolConfig(cmd, "require-activation", &s.RequireActivation, runRequireActivation)
		applyStringConfig(cmd, "log-level", &s.LogLevel, runLogLevel)
		return s
	}
	settings := overrides(cfgStore.Settings())
	if err := config.Validate(settings); err != nil {
		return err
	}

	logFile, err := logging.OpenFile(config.DefaultLogPath())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() {
		if cerr := logFile.Close(); cerr != nil {
			logErrf("failed to close log file: %v\n", cerr)
		}
	}()
	logger, err := logging.New(logging.Options{
		Level:  settings.LogLevel,
		Format: settings.LogFormat,
		Output: logFile,
	})
	if err != nil {
		return err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	var driver automation.Driver
	if runDryRun {
		driver = automation.NewSimulated(automation.SimulatedOptions{Logger: logger})
		logger.Info("dry run, desktop input is simulated")
	} else {
		driver = desktop.New(logger)
	}

	ctx := context.Background()
	ctrl, err := dialer.New(ctx, dialer.Options{
		Settings: settings,
		Driver:   driver,
		Stats:    st,
		Config:   cfgStore,
		Timing:   dialer.DefaultTiming(),
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to load statistics: %w", err)
	}

	ui := tui.NewModel(ctx, tui.Options{
		Controller: ctrl,
		Config:     cfgStore,
		Stats:      st,
		Editor:     tui.Editor(),
		DryRun:     runDryRun,
		Overrides:  overrides,
		Logger:     logger,
	})
	program := tea.NewProgram(ui, tea.WithAltScreen())
	_, runErr := program.Run()
	if err := ctrl.Close(ctx); err != nil {
		logErrf("failed to save session statistics: %v\n", err)
	}
	if runErr != nil {
		return fmt.Errorf("failed to run TUI: %w", runErr)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfigShowCmd,
	})
	return cmd
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	cfgStore, err := config.Open(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	editor := tui.Editor()
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], cfgStore.Path())...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}

	settings, err := cfgStore.Load()
	if err != nil {
		return err
	}
	if err := config.Validate(settings); err != nil {
		return fmt.Errorf("config saved but invalid: %w", err)
	}
	if missing := config.Missing(settings); len(missing) > 0 {
		logErrf("Still missing: %s\n", strings.Join(missing, ", "))
	}
	return nil
}

func runConfigShowCmd(cmd *cobra.Command, _ []string) error {
	cfgStore, err := config.Open(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return writeSettings(cmd.OutOrStdout(), cfgStore.Path(), cfgStore.Settings())
}

func writeSettings(w io.Writer, path string, s model.Settings) error {
	rows := [][2]string{
		{"file", path},
		{"dialer-title", s.DialerTitle},
		{"spreadsheet-title", s.SpreadsheetTitle},
		{"hangup point", s.Hangup.String()},
		{"dial point", s.Dial.String()},
		{"wait-time", fmt.Sprintf("%d ms", s.WaitTimeMs)},
		{"dial-prefix", s.DialPrefix},
		{"daily-goal", fmt.Sprintf("%d", s.DailyGoal)},
		{"weekly-goal", fmt.Sprintf("%d", s.WeeklyGoal)},
		{"best-hourly-rate", fmt.Sprintf("%.1f", s.BestHourlyRate)},
		{"require-activation", fmt.Sprintf("%t", s.RequireActivation)},
		{"configured", fmt.Sprintf("%t", config.Configured(s))},
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", row[0]+":", row[1]); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show call statistics",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N sessions")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a text report instead of the browser")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := parseStatsConfig(statsSince, statsLast)
	if err != nil {
		return err
	}

	cfgStore, err := config.Open(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	if statsPlain || !term.IsTerminal(int(os.Stdout.Fd())) {
		report, err := stats.BuildReport(cmd.Context(), st, cfgStore.Settings(), cfg)
		if err != nil {
			return fmt.Errorf("failed to build report: %w", err)
		}
		out := cmd.OutOrStdout()
		if err := stats.RenderSummary(out, report); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return stats.RenderSessions(out, report.Sessions)
	}

	ui := statsui.NewModel(st, cfgStore.Settings(), cfg)
	program := tea.NewProgram(ui, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func parseStatsConfig(since string, last int) (model.StatsConfig, error) {
	if last < 0 {
		return model.StatsConfig{}, fmt.Errorf("--last must be >= 0")
	}
	cfg := model.StatsConfig{Last: last}
	if since != "" {
		parsed, err := time.ParseInLocation("2006-01-02", since, time.Local)
		if err != nil {
			return model.StatsConfig{}, fmt.Errorf("invalid --since value: %w", err)
		}
		cfg.Since = &parsed
	}
	return cfg, nil
}

func newPickCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "pick hangup|dial",
		Short:     "Record a click point from the current pointer position",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"hangup", "dial"},
		RunE:      runPickCmd,
	}
	cmd.Flags().DurationVar(&pickDelay, "delay", defaultPickDelay, "countdown before the position is read")
	return cmd
}

func runPickCmd(cmd *cobra.Command, args []string) error {
	target := strings.ToLower(strings.TrimSpace(args[0]))
	if target != "hangup" && target != "dial" {
		return fmt.Errorf("unknown point %q (expected hangup or dial)", args[0])
	}
	cfgStore, err := config.Open(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logErrf("Move the pointer over the %s button.\n", target)
	for left := pickDelay.Round(time.Second); left > 0; left -= time.Second {
		logErrf("%d...\n", int(left.Seconds()))
		if err := automation.Sleep(cmd.Context(), time.Second); err != nil {
			return err
		}
	}

	var locator automation.Locator = desktop.New(stderrLogger())
	point, err := pickPoint(locator)
	if err != nil {
		return err
	}
	update := model.SettingsUpdate{}
	if target == "hangup" {
		update.Hangup = &point
	} else {
		update.Dial = &point
	}
	if err := cfgStore.Save(update); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s point set to %s\n", target, point)
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func pickPoint(locator automation.Locator) (model.Point, error) {
	point := locator.Location()
	if point.X < 0 || point.Y < 0 || point.X > config.MaxCoordinate || point.Y > config.MaxCoordinate {
		return model.Point{}, fmt.Errorf("pointer position %s is outside 0..%d", point, config.MaxCoordinate)
	}
	if !point.Set() {
		return model.Point{}, errors.New("pointer position has a zero coordinate, pick again")
	}
	return point, nil
}

func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "test dialer|spreadsheet",
		Short:     "Activate a configured window and report the result",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"dialer", "spreadsheet"},
		RunE:      runTestCmd,
	}
}

func runTestCmd(cmd *cobra.Command, args []string) error {
	cfgStore, err := config.Open(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	title, err := windowTitle(cfgStore.Settings(), args[0])
	if err != nil {
		return err
	}

	driver := desktop.New(stderrLogger())
	result := driver.Activate(cmd.Context(), title)
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s window %q: %s\n", args[0], title, result); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if !result.OK() {
		return fmt.Errorf("window %q %s", title, result)
	}
	return nil
}

func windowTitle(s model.Settings, which string) (string, error) {
	var title string
	switch strings.ToLower(strings.TrimSpace(which)) {
	case "dialer":
		title = s.DialerTitle
	case "spreadsheet":
		title = s.SpreadsheetTitle
	default:
		return "", fmt.Errorf("unknown window %q (expected dialer or spreadsheet)", which)
	}
	if strings.TrimSpace(title) == "" {
		return "", fmt.Errorf("%s-title is not configured", which)
	}
	return title, nil
}

func stderrLogger() *slog.Logger {
	logger, err := logging.New(logging.Options{Level: config.DefaultLogLevel, Output: os.Stderr})
	if err != nil {
		return slog.Default()
	}
	return logger
}

func applyStringConfig(cmd *cobra.Command, name string, target *string, value string) {
	if !cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func applyIntConfig(cmd *cobra.Command, name string, target *int, value int) {
	if !cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func applyBoolConfig(cmd *cobra.Command, name string, target *bool, value bool) {
	if !cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
