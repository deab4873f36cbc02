// Package dialer runs the dial loop and the manual call operations.
package dialer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/verte-zerg/dialloop/internal/automation"
	"github.com/verte-zerg/dialloop/internal/config"
	"github.com/verte-zerg/dialloop/internal/model"
	"github.com/verte-zerg/dialloop/internal/stats"
)

const eventBuffer = 64

// StatsStore persists call counters and session history.
type StatsStore interface {
	Load(ctx context.Context) (model.Statistics, error)
	Save(ctx context.Context, upd model.StatsUpdate) (model.Statistics, error)
	RecordSession(ctx context.Context, rec model.SessionRecord) (string, error)
}

// SettingsSaver persists a partial settings change.
type SettingsSaver interface {
	Save(update model.SettingsUpdate) error
}

// Options configure a Controller.
type Options struct {
	Settings model.Settings
	Driver   automation.Driver
	Stats    StatsStore
	// Config receives new best hourly rates. Optional.
	Config SettingsSaver
	Timing Timing
	// Clock stamps call and session times. Pauses always use real timers.
	Clock  func() time.Time
	Logger *slog.Logger
}

// Controller owns the run state shared by the loop worker and the control surface.
type Controller struct {
	driver automation.Driver
	store  StatsStore
	config SettingsSaver
	timing Timing
	clock  func() time.Time
	logger *slog.Logger
	events chan Event

	running       atomic.Bool
	onCall        atomic.Bool
	dialingActive atomic.Bool
	forceBreak    atomic.Bool
	phase         atomic.Int32

	// wake interrupts the loop's pauses after a flag change.
	wake   chan struct{}
	worker sync.WaitGroup
	// manual serialises hangup-next and toggle-call.
	manual sync.Mutex

	mu        sync.Mutex
	settings  model.Settings
	cancel    context.CancelFunc
	base      model.Statistics
	persisted model.Statistics

	sessionID    string
	firstStart   time.Time
	sessionCalls int
	hourStart    time.Time
	hourCalls    int
	rate         float64
	best         float64
	connected    int
	talkTime     time.Duration
	callStart    time.Time
}

// New loads the persisted counters and returns an idle controller.
func New(ctx context.Context, opts Options) (*Controller, error) {
	if opts.Driver == nil {
		return nil, errors.New("driver is required")
	}
	if opts.Stats == nil {
		return nil, errors.New("stats store is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	current, err := opts.Stats.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	return &Controller{
		driver:    opts.Driver,
		store:     opts.Stats,
		config:    opts.Config,
		timing:    opts.Timing.withDefaults(),
		clock:     clock,
		logger:    logger,
		events:    make(chan Event, eventBuffer),
		wake:      make(chan struct{}, 1),
		settings:  opts.Settings,
		base:      current,
		persisted: current,
		best:      opts.Settings.BestHourlyRate,
	}, nil
}

// Events returns the display update stream.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Phase reports the loop's current step.
func (c *Controller) Phase() Phase {
	return Phase(c.phase.Load())
}

// Running reports whether the loop has been started and not stopped.
func (c *Controller) Running() bool {
	return c.running.Load()
}

// OnCall reports whether a live call is in progress.
func (c *Controller) OnCall() bool {
	return c.onCall.Load()
}

// DialingActive reports whether a dialed number is waiting for an answer.
func (c *Controller) DialingActive() bool {
	return c.dialingActive.Load()
}

// Settings returns the settings the next cycle will use.
func (c *Controller) Settings() model.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// SetSettings replaces the settings after a reload. The running loop picks
// them up at its next cycle.
func (c *Controller) SetSettings(s model.Settings) {
	c.mu.Lock()
	c.settings = s
	c.best = s.BestHourlyRate
	c.mu.Unlock()
}

// Start launches the dial loop. The first start opens the session used for
// the hourly rate.
func (c *Controller) Start(ctx context.Context) error {
	settings := c.Settings()
	if !config.Configured(settings) {
		return ErrNotConfigured
	}
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	// A stopped worker may still be finishing its last driver call.
	c.worker.Wait()

	c.forceBreak.Store(false)
	c.dialingActive.Store(false)

	runCtx, cancel := context.WithCancel(ctx)
	now := c.clock()
	c.mu.Lock()
	c.cancel = cancel
	if c.firstStart.IsZero() {
		c.firstStart = now
		c.hourStart = now
		c.hourCalls = 0
	}
	c.mu.Unlock()

	c.logger.Info("dial loop started", "dialer", settings.DialerTitle, "wait", settings.WaitTime())
	c.status("DIALING NEXT...", 0)
	c.worker.Add(1)
	go c.run(runCtx)
	return nil
}

// Stop halts the loop and persists the session statistics. It is refused
// while a call is live.
func (c *Controller) Stop(ctx context.Context) error {
	if c.onCall.Load() {
		return ErrOnCall
	}
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	c.halt()
	c.status("DIALING PAUSED", 0)
	c.logger.Info("dial loop stopped")
	return c.saveSession(ctx)
}

// Close stops the loop even during a live call, waits for the worker and
// persists the session statistics.
func (c *Controller) Close(ctx context.Context) error {
	c.running.Store(false)
	c.halt()
	c.worker.Wait()
	return c.saveSession(ctx)
}

// Wait blocks until the loop worker has exited.
func (c *Controller) Wait() {
	c.worker.Wait()
}

// HangupNext clicks hangup, then dials the next number itself when the loop
// is idle or cuts the running loop's answer wait short.
func (c *Controller) HangupNext(ctx context.Context) error {
	c.manual.Lock()
	defer c.manual.Unlock()

	if c.onCall.Load() {
		return ErrOnCall
	}
	settings := c.Settings()
	if !config.Configured(settings) {
		return ErrNotConfigured
	}
	c.driver.Click(ctx, settings.Hangup)
	if err := automation.Sleep(ctx, c.timing.HangupSettle); err != nil {
		return err
	}
	c.status("HANGUP + NEXT...", 0)

	if !c.running.Load() {
		if err := c.manualDial(ctx, settings); err != nil {
			return err
		}
		c.status("MANUAL DIAL COMPLETE", 0)
		return nil
	}
	c.forceBreak.Store(true)
	c.dialingActive.Store(false)
	c.notify()
	c.status("DIALING NEXT...", 0)
	return nil
}

// ToggleCall flips the live-call flag and returns the new value. Ending a
// call clicks hangup and, when the loop is idle, dials the next number.
// Both edges count a connected call.
func (c *Controller) ToggleCall(ctx context.Context) (bool, error) {
	c.manual.Lock()
	defer c.manual.Unlock()

	if !c.onCall.Load() {
		c.mu.Lock()
		c.callStart = c.clock()
		c.connected++
		c.mu.Unlock()
		c.onCall.Store(true)
		c.notify()

		c.status("LIVE CALL", 0)
		c.emit(NoticeEvent{Title: "Live Call!", Body: "Client answered!"})
		c.emitStats(c.Snapshot())
		c.logger.Info("call connected")
		return true, nil
	}

	settings := c.Settings()
	c.driver.Click(ctx, settings.Hangup)
	if err := automation.Sleep(ctx, c.timing.ToggleSettle); err != nil {
		return true, err
	}
	c.mu.Lock()
	elapsed := c.clock().Sub(c.callStart)
	if elapsed > 0 {
		c.talkTime += elapsed
	}
	c.connected++
	c.mu.Unlock()
	c.onCall.Store(false)
	c.notify()

	c.status("CALL ENDED + HANGUP", 0)
	c.emitStats(c.Snapshot())
	c.logger.Info("call ended", "duration", elapsed)

	if c.running.Load() || !config.Configured(settings) {
		return false, nil
	}
	if err := automation.Sleep(ctx, c.timing.ToggleSettle); err != nil {
		return false, err
	}
	return false, c.manualDial(ctx, settings)
}

// Tick recomputes the hourly rate at now, records a new best rate once the
// session has enough calls, and pushes stats and progress to the display.
func (c *Controller) Tick(now time.Time) model.Snapshot {
	var (
		newBest float64
		record  bool
	)
	c.mu.Lock()
	if !c.firstStart.IsZero() {
		if now.Sub(c.hourStart) >= time.Hour {
			c.hourStart = now
			c.hourCalls = 0
		}
		c.rate = stats.HourlyRate(c.sessionCalls, now.Sub(c.firstStart))
		if stats.IsNewBest(c.rate, c.best, c.sessionCalls) {
			c.best = c.rate
			c.settings.BestHourlyRate = c.rate
			newBest = c.rate
			record = true
		}
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if record {
		c.logger.Info("new best hourly rate", "rate", newBest)
		if c.config != nil {
			if err := c.config.Save(model.SettingsUpdate{BestHourlyRate: &newBest}); err != nil {
				c.logger.Warn("failed to save best hourly rate", "error", err)
			}
		}
	}
	c.emitStats(snap)
	return snap
}

// Snapshot returns the counters shown by the display.
func (c *Controller) Snapshot() model.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() model.Snapshot {
	talk := c.talkTime
	if c.onCall.Load() && !c.callStart.IsZero() {
		if live := c.clock().Sub(c.callStart); live > 0 {
			talk += live
		}
	}
	var session time.Duration
	if !c.firstStart.IsZero() {
		session = max(c.clock().Sub(c.firstStart), 0)
	}
	return model.Snapshot{
		Connected:    c.connected,
		TalkTime:     talk,
		SessionCalls: c.sessionCalls,
		DailyCalls:   c.persisted.DailyCalls,
		WeeklyCalls:  c.persisted.WeeklyCalls,
		TotalCalls:   c.persisted.TotalCalls,
		HourCalls:    c.hourCalls,
		SessionTime:  session,
		DailyGoal:    c.settings.DailyGoal,
		WeeklyGoal:   c.settings.WeeklyGoal,
		CurrentRate:  c.rate,
		BestRate:     c.best,
		Running:      c.running.Load(),
		OnCall:       c.onCall.Load(),
	}
}

func (c *Controller) run(ctx context.Context) {
	defer c.worker.Done()
	for c.active(ctx) {
		err := c.cycle(ctx)
		if err == nil || errors.Is(err, errStopped) {
			continue
		}
		c.logger.Warn("dial cycle abandoned", "phase", c.Phase().String(), "error", err)
		if c.pause(ctx, c.timing.FailurePause) != nil {
			break
		}
	}
	c.dialingActive.Store(false)
	c.setPhase(PhaseStopped)
}

// cycle runs one count, dial, wait and hangup pass.
func (c *Controller) cycle(ctx context.Context) error {
	settings := c.Settings()

	c.countCall(ctx)
	if !c.active(ctx) {
		return errStopped
	}

	c.setPhase(PhaseActivatingDialer)
	result := c.driver.Activate(ctx, settings.DialerTitle)
	switch result {
	case automation.Succeeded:
	case automation.Ambiguous:
		c.logger.Debug("several windows match the dialer title", "title", settings.DialerTitle)
	default:
		if settings.RequireActivation {
			return fmt.Errorf("%w: activate %q: %s", ErrStepFailed, settings.DialerTitle, result)
		}
		c.logger.Warn("dialer activation failed, continuing", "title", settings.DialerTitle, "result", result.String())
	}
	if automation.Sleep(ctx, c.timing.ActivateSettle) != nil {
		return errStopped
	}

	if c.onCall.Load() {
		c.setPhase(PhaseOnCallWait)
		c.status("ON CALL - WAITING...", 0)
		if !c.waitOnCall(ctx) {
			return errStopped
		}
	}

	c.setPhase(PhaseCopyingNumber)
	c.status("COPYING NEXT NUMBER...", 0)
	copied := c.driver.CopyNextValue(ctx, settings.SpreadsheetTitle)
	if !c.active(ctx) {
		return errStopped
	}
	if !copied {
		return fmt.Errorf("%w: copy next number from %q", ErrStepFailed, settings.SpreadsheetTitle)
	}

	c.setPhase(PhaseDialing)
	c.status("DIALING...", 0)
	dialed := c.driver.PasteAndSubmit(ctx, settings.DialerTitle, settings.Dial, settings.DialPrefix)
	if !c.active(ctx) {
		return errStopped
	}
	if !dialed {
		return fmt.Errorf("%w: dial in %q", ErrStepFailed, settings.DialerTitle)
	}

	c.driver.MoveTo(ctx, settings.Hangup)
	c.dialingActive.Store(true)
	c.setPhase(PhaseWaitingForAnswer)
	c.status("WAITING FOR CALL...", settings.WaitTime())
	exit := c.waitForAnswer(ctx, settings.WaitTime())
	c.dialingActive.Store(false)

	switch exit {
	case exitStopped:
		return errStopped
	case exitElapsed, exitForceBreak:
		if c.onCall.Load() {
			break
		}
		c.driver.Click(ctx, settings.Hangup)
		c.setPhase(PhasePostCallPause)
		if automation.Sleep(ctx, c.timing.PostCallPause) != nil {
			return errStopped
		}
	}
	c.status("DIALING NEXT...", 0)
	return nil
}

type waitExit int

const (
	exitElapsed waitExit = iota
	exitForceBreak
	exitOnCall
	exitStopped
)

// waitForAnswer returns once wait has elapsed or an early exit fires.
// The one-shot force-break flag is consumed here.
func (c *Controller) waitForAnswer(ctx context.Context, wait time.Duration) waitExit {
	deadline := time.Now().Add(wait)
	shown := -1
	for {
		if c.forceBreak.CompareAndSwap(true, false) {
			return exitForceBreak
		}
		if c.onCall.Load() {
			return exitOnCall
		}
		if !c.active(ctx) {
			return exitStopped
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return exitElapsed
		}
		if secs := int(remaining / time.Second); secs != shown {
			shown = secs
			c.status(fmt.Sprintf("WAIT %02ds", secs), remaining)
		}
		if c.pause(ctx, min(c.timing.PollInterval, remaining)) != nil {
			return exitStopped
		}
	}
}

// waitOnCall refreshes the call timer until the call ends. It reports
// false when the loop was stopped meanwhile.
func (c *Controller) waitOnCall(ctx context.Context) bool {
	for c.onCall.Load() {
		if !c.active(ctx) {
			return false
		}
		c.mu.Lock()
		elapsed := c.clock().Sub(c.callStart)
		c.mu.Unlock()
		c.status(fmt.Sprintf("CALL %02ds", int(max(elapsed, 0)/time.Second)), 0)
		if c.pause(ctx, c.timing.StatusInterval) != nil {
			return false
		}
	}
	return c.active(ctx)
}

func (c *Controller) manualDial(ctx context.Context, settings model.Settings) error {
	c.status("MANUAL DIALING...", 0)
	if !c.driver.CopyNextValue(ctx, settings.SpreadsheetTitle) {
		return fmt.Errorf("%w: spreadsheet %q not found", ErrStepFailed, settings.SpreadsheetTitle)
	}
	if !c.driver.PasteAndSubmit(ctx, settings.DialerTitle, settings.Dial, settings.DialPrefix) {
		return fmt.Errorf("%w: dial in %q", ErrStepFailed, settings.DialerTitle)
	}
	c.countCall(ctx)
	c.status("MANUAL CALL DIALED", 0)
	return nil
}

// countCall adds one call to every counter and persists it. The count
// survives a stop that arrives during the write.
func (c *Controller) countCall(ctx context.Context) {
	c.mu.Lock()
	c.sessionCalls++
	c.hourCalls++
	c.mu.Unlock()

	updated, err := c.store.Save(context.WithoutCancel(ctx), model.StatsUpdate{AddCalls: 1})
	c.mu.Lock()
	if err != nil {
		c.persisted.TotalCalls++
		c.persisted.WeeklyCalls++
		c.persisted.DailyCalls++
	} else {
		c.persisted = updated
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if err != nil {
		c.logger.Warn("failed to persist call count", "error", err)
	}
	c.emitStats(snap)
}

// saveSession writes the session's connected calls and elapsed time and
// upserts its history record. It is a no-op before the first start.
func (c *Controller) saveSession(ctx context.Context) error {
	c.mu.Lock()
	if c.firstStart.IsZero() {
		c.mu.Unlock()
		return nil
	}
	now := c.clock()
	elapsed := max(now.Sub(c.firstStart), 0)
	rec := model.SessionRecord{
		ID:             c.sessionID,
		StartedAt:      c.firstStart,
		EndedAt:        now,
		Calls:          c.sessionCalls,
		ConnectedCalls: c.connected,
		TalkTimeMs:     c.talkTime.Milliseconds(),
		HourlyRate:     stats.HourlyRate(c.sessionCalls, elapsed),
	}
	connected := c.base.ConnectedCalls + c.connected
	accumulated := c.base.AccumulatedTimeMs + elapsed.Milliseconds()
	c.mu.Unlock()

	updated, err := c.store.Save(ctx, model.StatsUpdate{
		ConnectedCalls:    &connected,
		AccumulatedTimeMs: &accumulated,
	})
	if err != nil {
		return fmt.Errorf("save session stats: %w", err)
	}
	id, err := c.store.RecordSession(ctx, rec)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}

	c.mu.Lock()
	c.persisted = updated
	c.sessionID = id
	c.mu.Unlock()
	c.logger.Info("session saved", "session", id, "calls", rec.Calls, "connected", rec.ConnectedCalls)
	return nil
}

func (c *Controller) active(ctx context.Context) bool {
	return c.running.Load() && ctx.Err() == nil
}

func (c *Controller) halt() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.forceBreak.Store(false)
	c.dialingActive.Store(false)
	c.notify()
}

// pause sleeps for d unless ctx ends first. A flag change cuts it short.
func (c *Controller) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.wake:
		return nil
	case <-timer.C:
		return nil
	}
}

func (c *Controller) notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) setPhase(p Phase) {
	if Phase(c.phase.Swap(int32(p))) != p {
		c.logger.Debug("dial loop phase", "phase", p.String())
	}
}

func (c *Controller) status(text string, remaining time.Duration) {
	c.emit(StatusEvent{Text: text, Phase: c.Phase(), Remaining: remaining})
}

func (c *Controller) emitStats(snap model.Snapshot) {
	c.emit(StatsEvent{Snapshot: snap})
	c.emit(ProgressEvent{
		Daily:  stats.Progress(snap.DailyCalls, snap.DailyGoal),
		Weekly: stats.Progress(snap.WeeklyCalls, snap.WeeklyGoal),
	})
}

func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
	}
}
