// Package config provides configuration helpers and TOML persistence.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/dialloop/internal/model"
)

// AppVersion is recorded in the [info] table of new config files.
const AppVersion = "4.4.0"

const (
	DefaultWaitTimeMs = 35000
	DefaultDialPrefix = "1"
	DefaultDailyGoal  = 300
	DefaultWeeklyGoal = 1500
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Configuration ConfigurationSection `toml:"configuration"`
	Goals         GoalsSection         `toml:"goals"`
	Info          InfoSection          `toml:"info"`
	Logging       LoggingSection       `toml:"logging"`
	Automation    AutomationSection    `toml:"automation"`
}

// ConfigurationSection maps window titles, click points and timing.
type ConfigurationSection struct {
	DialerTitle      string `toml:"dialer-title"`
	SpreadsheetTitle string `toml:"spreadsheet-title"`
	HangupX          int    `toml:"hangup-x"`
	HangupY          int    `toml:"hangup-y"`
	DialX            int    `toml:"dial-x"`
	DialY            int    `toml:"dial-y"`
	WaitTime         int    `toml:"wait-time"`
	DialPrefix       string `toml:"dial-prefix"`
}

// GoalsSection maps call goals and the best hourly rate record.
type GoalsSection struct {
	DailyGoal      int     `toml:"daily-goal"`
	WeeklyGoal     int     `toml:"weekly-goal"`
	BestHourlyRate float64 `toml:"best-hourly-rate"`
}

// InfoSection records where the file came from.
type InfoSection struct {
	Version  string `toml:"version"`
	Created  string `toml:"created"`
	Platform string `toml:"platform"`
}

// LoggingSection defines log verbosity and formatting.
type LoggingSection struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// AutomationSection tunes how the dial loop treats driver results.
type AutomationSection struct {
	RequireActivation bool `toml:"require-activation"`
}

// Default returns the configuration written on first load.
func Default(now time.Time) FileConfig {
	return FileConfig{
		Configuration: ConfigurationSection{
			WaitTime:   DefaultWaitTimeMs,
			DialPrefix: DefaultDialPrefix,
		},
		Goals: GoalsSection{
			DailyGoal:  DefaultDailyGoal,
			WeeklyGoal: DefaultWeeklyGoal,
		},
		Info: InfoSection{
			Version:  AppVersion,
			Created:  now.Format("2006-01-02"),
			Platform: runtime.GOOS,
		},
		Logging: LoggingSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Store keeps the configuration file and its in-memory copy in sync.
type Store struct {
	path string
	now  func() time.Time

	mu   sync.Mutex
	file FileConfig
}

// Open loads the config at path, writing defaults when the file does not exist.
func Open(path string) (*Store, error) {
	return OpenWithClock(path, time.Now)
}

// OpenWithClock is Open with an explicit clock for the creation date.
func OpenWithClock(path string, now func() time.Time) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}
	if now == nil {
		now = time.Now
	}
	s := &Store{path: path, now: now}
	if _, err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load re-reads the file from disk. Keys missing from the file keep their defaults.
func (s *Store) Load() (model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := Default(s.now())
	if _, err := os.Stat(s.path); err != nil {
		if !os.IsNotExist(err) {
			return model.Settings{}, fmt.Errorf("failed to stat config: %w", err)
		}
		if err := writeFile(s.path, cfg); err != nil {
			return model.Settings{}, err
		}
		s.file = cfg
		return toSettings(cfg), nil
	}
	if _, err := toml.DecodeFile(s.path, &cfg); err != nil {
		return model.Settings{}, fmt.Errorf("failed to decode config: %w", err)
	}
	s.file = cfg
	return toSettings(cfg), nil
}

// Settings returns the in-memory settings without touching disk.
func (s *Store) Settings() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return toSettings(s.file)
}

// Save merges the set fields into memory and rewrites the whole file.
func (s *Store) Save(update model.SettingsUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.file
	applyUpdate(&next, update)
	if err := writeFile(s.path, next); err != nil {
		return err
	}
	s.file = next
	return nil
}

func applyUpdate(cfg *FileConfig, u model.SettingsUpdate) {
	c := &cfg.Configuration
	if u.DialerTitle != nil {
		c.DialerTitle = *u.DialerTitle
	}
	if u.SpreadsheetTitle != nil {
		c.SpreadsheetTitle = *u.SpreadsheetTitle
	}
	if u.Hangup != nil {
		c.HangupX, c.HangupY = u.Hangup.X, u.Hangup.Y
	}
	if u.Dial != nil {
		c.DialX, c.DialY = u.Dial.X, u.Dial.Y
	}
	if u.WaitTimeMs != nil {
		c.WaitTime = *u.WaitTimeMs
	}
	if u.DialPrefix != nil {
		c.DialPrefix = *u.DialPrefix
	}
	if u.DailyGoal != nil {
		cfg.Goals.DailyGoal = *u.DailyGoal
	}
	if u.WeeklyGoal != nil {
		cfg.Goals.WeeklyGoal = *u.WeeklyGoal
	}
	if u.BestHourlyRate != nil {
		cfg.Goals.BestHourlyRate = *u.BestHourlyRate
	}
	if u.LogLevel != nil {
		cfg.Logging.Level = *u.LogLevel
	}
	if u.LogFormat != nil {
		cfg.Logging.Format = *u.LogFormat
	}
	if u.RequireActivation != nil {
		cfg.Automation.RequireActivation = *u.RequireActivation
	}
}

func toSettings(cfg FileConfig) model.Settings {
	c := cfg.Configuration
	return model.Settings{
		DialerTitle:       c.DialerTitle,
		SpreadsheetTitle:  c.SpreadsheetTitle,
		Hangup:            model.Point{X: c.HangupX, Y: c.HangupY},
		Dial:              model.Point{X: c.DialX, Y: c.DialY},
		WaitTimeMs:        c.WaitTime,
		DialPrefix:        c.DialPrefix,
		DailyGoal:         cfg.Goals.DailyGoal,
		WeeklyGoal:        cfg.Goals.WeeklyGoal,
		BestHourlyRate:    cfg.Goals.BestHourlyRate,
		Version:           cfg.Info.Version,
		Created:           cfg.Info.Created,
		Platform:          cfg.Info.Platform,
		LogLevel:          cfg.Logging.Level,
		LogFormat:         cfg.Logging.Format,
		RequireActivation: cfg.Automation.RequireActivation,
	}
}

func writeFile(path string, cfg FileConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "config-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	writer := bufio.NewWriter(tmpFile)
	if _, err := fmt.Fprintln(writer, "# dialloop configuration"); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := toml.NewEncoder(writer).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush config: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
