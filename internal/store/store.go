// Package store handles SQLite persistence of call statistics.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/dialloop/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

const (
	dateLayout        = "20060102"
	lastSessionLayout = "2006-01-02 15:04:05"
	neverSession      = "Never"
)

// Section and key names of the persisted counter groups.
const (
	sectionLifetime = "Lifetime"
	sectionWeekly   = "Weekly"
	sectionDaily    = "Daily"
	sectionSession  = "Session"

	keyTotalCalls      = "TotalCalls"
	keyLastSession     = "LastSession"
	keyLastResetDate   = "LastResetDate"
	keyCalls           = "Calls"
	keyAccumulatedTime = "AccumulatedTime"
	keyConnectedCalls  = "ConnectedCalls"
)

type entryKey struct {
	section string
	key     string
}

// Store wraps SQLite access for call statistics.
type Store struct {
	db  *sql.DB
	now func() time.Time
	mu  sync.Mutex
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the clock used for date-boundary resets.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string, opts ...Option) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer keeps read-modify-write cycles serialised.
	db.SetMaxOpenConns(1)
	store := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stats (
			section TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (section, key)
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			calls INTEGER NOT NULL,
			connected_calls INTEGER NOT NULL,
			talk_time_ms INTEGER NOT NULL,
			hourly_rate REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}

	today := s.now().Format(dateLayout)
	defaults := map[entryKey]string{
		{sectionLifetime, keyTotalCalls}:     "0",
		{sectionLifetime, keyLastSession}:    neverSession,
		{sectionWeekly, keyTotalCalls}:       "0",
		{sectionWeekly, keyLastResetDate}:    "0",
		{sectionDaily, keyLastResetDate}:     today,
		{sectionDaily, keyCalls}:             "0",
		{sectionSession, keyAccumulatedTime}: "0",
		{sectionSession, keyConnectedCalls}:  "0",
	}
	for k, v := range defaults {
		if _, err := s.db.Exec(`INSERT OR IGNORE INTO stats (section, key, value) VALUES (?, ?, ?)`, k.section, k.key, v); err != nil {
			return err
		}
	}
	return nil
}

// Load reads all counters after running the date-boundary maintenance pass.
func (s *Store) Load(ctx context.Context) (model.Statistics, error) {
	return s.update(ctx, model.StatsUpdate{})
}

// Save runs maintenance, applies the update and rewrites every counter.
// It returns the counters as persisted.
func (s *Store) Save(ctx context.Context, upd model.StatsUpdate) (model.Statistics, error) {
	return s.update(ctx, upd)
}

func (s *Store) update(ctx context.Context, upd model.StatsUpdate) (stats model.Statistics, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Statistics{}, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	values, err := readEntries(ctx, tx)
	if err != nil {
		return model.Statistics{}, err
	}
	stats, err = decodeStatistics(values)
	if err != nil {
		return model.Statistics{}, err
	}

	now := s.now()
	maintain(&stats, now)
	apply(&stats, upd, now)

	if err = writeEntries(ctx, tx, encodeStatistics(stats)); err != nil {
		return model.Statistics{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.Statistics{}, err
	}
	return stats, nil
}

// maintain applies the daily and weekly reset rules for the given instant.
func maintain(stats *model.Statistics, now time.Time) {
	today := now.Format(dateLayout)
	if stats.DailyResetDate != today {
		stats.DailyResetDate = today
		stats.DailyCalls = 0
	}
	if now.Weekday() == time.Monday && stats.WeeklyResetDate != today {
		stats.WeeklyResetDate = today
		stats.WeeklyCalls = 0
	}
}

func apply(stats *model.Statistics, upd model.StatsUpdate, now time.Time) {
	if upd.AddCalls != 0 {
		stats.TotalCalls += upd.AddCalls
		stats.WeeklyCalls += upd.AddCalls
		stats.DailyCalls += upd.AddCalls
	}
	if upd.TotalCalls != nil {
		stats.TotalCalls = *upd.TotalCalls
	}
	if upd.WeeklyCalls != nil {
		stats.WeeklyCalls = *upd.WeeklyCalls
	}
	if upd.DailyCalls != nil {
		stats.DailyCalls = *upd.DailyCalls
	}
	if upd.ConnectedCalls != nil {
		stats.ConnectedCalls = *upd.ConnectedCalls
	}
	if upd.AccumulatedTimeMs != nil {
		stats.AccumulatedTimeMs = *upd.AccumulatedTimeMs
	}
	if upd.AddCalls != 0 || upd.TotalCalls != nil || upd.AccumulatedTimeMs != nil {
		stats.LastSession = now.Format(lastSessionLayout)
	}
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readEntries(ctx context.Context, q queryer) (map[entryKey]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT section, key, value FROM stats`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	values := map[entryKey]string{}
	for rows.Next() {
		var k entryKey
		var v string
		if err := rows.Scan(&k.section, &k.key, &v); err != nil {
			return nil, err
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

func writeEntries(ctx context.Context, tx *sql.Tx, values map[entryKey]string) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO stats (section, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(section, key) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	for k, v := range values {
		if _, err := stmt.ExecContext(ctx, k.section, k.key, v); err != nil {
			return err
		}
	}
	return nil
}

func decodeStatistics(values map[entryKey]string) (model.Statistics, error) {
	var stats model.Statistics
	var err error
	intVal := func(section, key string) int {
		if err != nil {
			return 0
		}
		raw, ok := values[entryKey{section, key}]
		if !ok || strings.TrimSpace(raw) == "" {
			return 0
		}
		var n int
		n, err = strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			err = fmt.Errorf("invalid %s.%s value %q: %w", section, key, raw, err)
		}
		return n
	}
	stats.TotalCalls = intVal(sectionLifetime, keyTotalCalls)
	stats.WeeklyCalls = intVal(sectionWeekly, keyTotalCalls)
	stats.DailyCalls = intVal(sectionDaily, keyCalls)
	stats.ConnectedCalls = intVal(sectionSession, keyConnectedCalls)
	stats.AccumulatedTimeMs = int64(intVal(sectionSession, keyAccumulatedTime))
	if err != nil {
		return model.Statistics{}, err
	}
	stats.LastSession = values[entryKey{sectionLifetime, keyLastSession}]
	if stats.LastSession == "" {
		stats.LastSession = neverSession
	}
	stats.WeeklyResetDate = values[entryKey{sectionWeekly, keyLastResetDate}]
	stats.DailyResetDate = values[entryKey{sectionDaily, keyLastResetDate}]
	return stats, nil
}

func encodeStatistics(stats model.Statistics) map[entryKey]string {
	return map[entryKey]string{
		{sectionLifetime, keyTotalCalls}:     strconv.Itoa(stats.TotalCalls),
		{sectionLifetime, keyLastSession}:    stats.LastSession,
		{sectionWeekly, keyTotalCalls}:       strconv.Itoa(stats.WeeklyCalls),
		{sectionWeekly, keyLastResetDate}:    stats.WeeklyResetDate,
		{sectionDaily, keyLastResetDate}:     stats.DailyResetDate,
		{sectionDaily, keyCalls}:             strconv.Itoa(stats.DailyCalls),
		{sectionSession, keyAccumulatedTime}: strconv.FormatInt(stats.AccumulatedTimeMs, 10),
		{sectionSession, keyConnectedCalls}:  strconv.Itoa(stats.ConnectedCalls),
	}
}

// RecordSession writes a session to the history, replacing an earlier record
// with the same ID. An empty ID is filled in.
func (s *Store) RecordSession(ctx context.Context, rec model.SessionRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, ended_at, calls, connected_calls, talk_time_ms, hourly_rate)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			ended_at = excluded.ended_at,
			calls = excluded.calls,
			connected_calls = excluded.connected_calls,
			talk_time_ms = excluded.talk_time_ms,
			hourly_rate = excluded.hourly_rate`,
		rec.ID,
		rec.StartedAt.Format(time.RFC3339Nano),
		rec.EndedAt.Format(time.RFC3339Nano),
		rec.Calls,
		rec.ConnectedCalls,
		rec.TalkTimeMs,
		rec.HourlyRate,
	)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// ListSessions returns recorded sessions oldest first, filtered by cfg.
func (s *Store) ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionRecord, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, cfg.Since.Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(`SELECT id, started_at, ended_at, calls, connected_calls, talk_time_ms, hourly_rate
		FROM sessions
		WHERE %s
		ORDER BY ended_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.SessionRecord
	for rows.Next() {
		var rec model.SessionRecord
		var startedAt, endedAt string
		if err := rows.Scan(&rec.ID, &startedAt, &endedAt, &rec.Calls, &rec.ConnectedCalls, &rec.TalkTimeMs, &rec.HourlyRate); err != nil {
			return nil, err
		}
		if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, err
		}
		if rec.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if cfg.Last > 0 && len(sessions) > cfg.Last {
		sessions = sessions[len(sessions)-cfg.Last:]
	}
	return sessions, nil
}
