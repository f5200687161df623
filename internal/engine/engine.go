// Package engine is the tracking orchestrator. It owns the session timer and
// serializes ticks, input events, screenshot results and flushes through a
// single lock, so a counter reset can never interleave with a flush read.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/theirongolddev/worklog/internal/model"
	"github.com/theirongolddev/worklog/internal/report"
	"github.com/theirongolddev/worklog/internal/screenshot"
	"github.com/theirongolddev/worklog/internal/session"
	"github.com/theirongolddev/worklog/internal/uploader"
)

// Store is the persistence the engine drives.
type Store interface {
	CreateRecord(ctx context.Context, snap model.Snapshot) (int64, error)
	ListRecords(ctx context.Context) ([]model.SessionRecord, error)
	AggregateDuration(ctx context.Context, from, to time.Time) (int64, error)
	CountPending(ctx context.Context) (int, error)
	SelectedProject(ctx context.Context) (*model.Project, error)
}

// InputSource reports cumulative input counters. Stop must close the
// channel returned by Start.
type InputSource interface {
	Start(ctx context.Context) (<-chan model.InputEvent, error)
	Reset() (<-chan model.InputEvent, error)
	Stop() error
}

// Syncer uploads pending records.
type Syncer interface {
	Sync(ctx context.Context) (uploader.Result, error)
}

// Identity resolves the signed-in user.
type Identity interface {
	UserID() string
}

// Config controls engine cadence.
type Config struct {
	FlushPeriod        time.Duration
	InactivityTimeout  time.Duration // zero disables auto-stop
	ScreenshotInterval time.Duration // zero disables screenshots
	SyncInterval       time.Duration // zero disables scheduled sync
	Tick               time.Duration
	EventsBuffer       int

	Now    func() time.Time
	Logger *slog.Logger
}

// Deps are the engine's collaborators. Only Store is required.
type Deps struct {
	Store    Store
	Inputs   InputSource
	Capturer screenshot.Capturer
	Syncer   Syncer
	Identity Identity
}

// SyncReport is the outcome of the most recent sync attempt.
type SyncReport struct {
	At       time.Time `json:"at"`
	Success  bool      `json:"success"`
	Uploaded int       `json:"uploaded"`
	Message  string    `json:"message"`
}

// Status is a point-in-time view of the engine.
type Status struct {
	State          string      `json:"state"`
	StartedAt      *time.Time  `json:"started_at,omitempty"`
	Elapsed        string      `json:"elapsed"`
	ElapsedSeconds int64       `json:"elapsed_seconds"`
	Counters       Counters    `json:"counters"`
	NextFlush      *time.Time  `json:"next_flush,omitempty"`
	LastActivity   time.Time   `json:"last_activity"`
	InputsLive     bool        `json:"inputs_live"`
	PendingRecords int         `json:"pending_records"`
	RetryQueue     int         `json:"retry_queue"`
	LastSync       *SyncReport `json:"last_sync,omitempty"`
	EventCount     int         `json:"event_count"`
	Subscribers    int         `json:"subscribers"`
}

// Engine coordinates the timer, input source, capturer, store and uploader.
type Engine struct {
	cfg    Config
	deps   Deps
	now    func() time.Time
	logger *slog.Logger
	events *hub

	// Background work outlives the request that triggered it.
	bg context.Context

	mu             sync.Mutex
	timer          *session.Timer
	retry          []model.Snapshot
	failing        bool
	sessionSeconds int64
	startedAt      time.Time
	lastShot       time.Time
	lastSyncTry    time.Time
	lastSync       *SyncReport
	lastCounters   Counters
	inputGen       int
	inputsLive     bool

	capturing atomic.Bool
	syncing   atomic.Bool
	wg        sync.WaitGroup
}

// New returns an idle engine.
func New(cfg Config, deps Deps) *Engine {
	if cfg.FlushPeriod <= 0 {
		cfg.FlushPeriod = 10 * time.Minute
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	now := cfg.Now()
	return &Engine{
		cfg:    cfg,
		deps:   deps,
		now:    cfg.Now,
		logger: cfg.Logger,
		events: newHub(cfg.EventsBuffer),
		bg:     context.Background(),
		timer: session.NewTimer(session.Config{
			FlushPeriod:       cfg.FlushPeriod,
			InactivityTimeout: cfg.InactivityTimeout,
		}, now),
		lastSyncTry: now,
	}
}

// Run drives the one-second tick until ctx is cancelled. On shutdown a
// running session is stopped with a final flush and in-flight captures and
// syncs are allowed to finish.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return nil
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Engine) shutdown() {
	e.mu.Lock()
	if e.timer.State() == session.Running {
		if snap, err := e.timer.Stop(e.now()); err == nil {
			e.flush(snap)
		}
	}
	e.stopInputs()
	e.mu.Unlock()

	e.wg.Wait()

	e.mu.Lock()
	if n := len(e.retry); n > 0 {
		e.drainRetry()
		if n = len(e.retry); n > 0 {
			e.logger.Error("unflushed windows lost at shutdown", "count", n)
		}
	}
	e.mu.Unlock()
}

func (e *Engine) tick() {
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.drainRetry()

	if e.timer.State() == session.Running {
		e.sessionSeconds++
		if snap, ok := e.timer.Tick(now); ok {
			e.flush(snap)
		}
		e.publishLocked(Event{Type: EventTick, Elapsed: report.FormatClock(e.sessionSeconds)}, false)

		if c := e.countersLocked(); c != e.lastCounters {
			e.lastCounters = c
			e.publishLocked(Event{Type: EventCounters, Counters: &c}, false)
		}
	}

	if snap, fired := e.timer.CheckInactivity(now); fired {
		e.flush(snap)
		e.logger.Info("tracking stopped after inactivity", "timeout", e.cfg.InactivityTimeout)
		e.publishLocked(Event{
			Type:    EventInactivity,
			Message: fmt.Sprintf("no input for %s, tracking stopped", e.cfg.InactivityTimeout),
		}, true)
		e.publishStateLocked()
	}

	if e.timer.State() == session.Running && e.deps.Capturer != nil && e.cfg.ScreenshotInterval > 0 &&
		now.Sub(e.lastShot) >= e.cfg.ScreenshotInterval {
		e.lastShot = now
		e.captureAsync()
	}

	if e.deps.Syncer != nil && e.cfg.SyncInterval > 0 && now.Sub(e.lastSyncTry) >= e.cfg.SyncInterval {
		e.lastSyncTry = now
		e.syncAsync()
	}
}

// StartTracking begins a session. Starting while running is a no-op.
func (e *Engine) StartTracking() model.Outcome {
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.timer.Start(now); err != nil {
		if errors.Is(err, session.ErrAlreadyRunning) {
			return model.Outcome{Success: true, Message: "already tracking"}
		}
		return model.Outcome{Message: err.Error()}
	}
	e.sessionSeconds = 0
	e.startedAt = now
	e.lastShot = now
	e.lastCounters = Counters{}

	msg := "tracking started"
	if err := e.startInputs(); err != nil {
		e.logger.Warn("input metrics unavailable", "err", err)
		msg = "tracking started without input metrics: " + err.Error()
	}
	e.logger.Info("tracking started", "next_flush", e.timer.NextFlush())
	e.publishStateLocked()
	return model.Outcome{Success: true, Message: msg}
}

// StopTracking ends the session with a final flush and stops the input
// source.
func (e *Engine) StopTracking() model.Outcome {
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.timer.Stop(now)
	if err != nil {
		// Inputs may still be live after an inactivity stop.
		e.stopInputs()
		return model.Outcome{Message: "not tracking"}
	}
	e.flush(snap)
	e.stopInputs()
	e.logger.Info("tracking stopped", "elapsed_seconds", e.sessionSeconds)
	e.publishStateLocked()
	return model.Outcome{Success: true, Message: "tracking stopped after " + report.FormatClock(e.sessionSeconds)}
}

// History returns every stored record, newest first.
func (e *Engine) History(ctx context.Context) ([]model.SessionRecord, error) {
	return e.deps.Store.ListRecords(ctx)
}

// ActivitySummary totals tracked time over the summary windows.
func (e *Engine) ActivitySummary(ctx context.Context) ([]report.Total, error) {
	return report.Summarize(ctx, e.deps.Store, e.now())
}

// RequestSync runs an upload now and reports the outcome.
func (e *Engine) RequestSync(ctx context.Context) model.Outcome {
	if e.deps.Syncer == nil {
		return model.Outcome{Message: "sync is not configured"}
	}

	res, err := e.deps.Syncer.Sync(ctx)
	if errors.Is(err, uploader.ErrSyncInProgress) {
		return model.Outcome{Message: "a sync is already in progress"}
	}

	rep := SyncReport{At: e.now(), Success: err == nil, Uploaded: res.Uploaded, Message: res.Message}
	if err != nil {
		rep.Message = syncMessage(err)
	}

	e.mu.Lock()
	e.lastSync = &rep
	e.publishLocked(Event{Type: EventSync, Message: rep.Message}, true)
	e.mu.Unlock()

	return model.Outcome{Success: rep.Success, Message: rep.Message}
}

func syncMessage(err error) string {
	if errors.Is(err, uploader.ErrNotAuthenticated) {
		return "not authenticated, log in and try again"
	}
	return err.Error()
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status(ctx context.Context) Status {
	e.mu.Lock()
	st := Status{
		State:          e.timer.State().String(),
		Elapsed:        report.FormatClock(e.sessionSeconds),
		ElapsedSeconds: e.sessionSeconds,
		Counters:       e.countersLocked(),
		LastActivity:   e.timer.LastActivity(),
		InputsLive:     e.inputsLive,
		RetryQueue:     len(e.retry),
	}
	if e.timer.State() == session.Running {
		started, next := e.startedAt, e.timer.NextFlush()
		st.StartedAt = &started
		st.NextFlush = &next
	}
	if e.lastSync != nil {
		rep := *e.lastSync
		st.LastSync = &rep
	}
	e.mu.Unlock()

	if n, err := e.deps.Store.CountPending(ctx); err == nil {
		st.PendingRecords = n
	}
	st.EventCount = len(e.events.recent())
	st.Subscribers = e.events.subscribers()
	return st
}

// Events returns the retained recent events, oldest first.
func (e *Engine) Events() []Event {
	return e.events.recent()
}

// Subscribe registers a live event channel. The channel is closed by
// Unsubscribe.
func (e *Engine) Subscribe(buffer int) (int, <-chan Event) {
	return e.events.subscribe(buffer)
}

// Unsubscribe removes a subscriber and closes its channel.
func (e *Engine) Unsubscribe(id int) {
	e.events.unsubscribe(id)
}

// flush queues snap for persistence and drains the queue in order. Empty
// windows are dropped.
func (e *Engine) flush(snap model.Snapshot) {
	if snap.IsEmpty() {
		return
	}
	e.attribute(&snap)
	e.retry = append(e.retry, snap)
	e.drainRetry()
}

// drainRetry persists queued windows oldest first, stopping at the first
// failure so order is preserved.
func (e *Engine) drainRetry() {
	for len(e.retry) > 0 {
		snap := e.retry[0]
		id, err := e.deps.Store.CreateRecord(e.bg, snap)
		if err != nil {
			if !e.failing {
				e.failing = true
				e.logger.Warn("flush failed", "err", err, "queued", len(e.retry))
				e.publishLocked(Event{Type: EventFlushFailed, Message: err.Error()}, true)
			}
			return
		}
		e.retry = e.retry[1:]
		if e.failing {
			e.failing = false
			e.logger.Info("flush recovered", "queued", len(e.retry))
		}
		e.logger.Info("flush persisted", "record", id, "seconds", snap.DurationSeconds)
		e.publishLocked(Event{
			Type:     EventFlush,
			RecordID: id,
			Message:  fmt.Sprintf("saved %s", report.FormatClock(snap.DurationSeconds)),
		}, true)
	}
}

// attribute stamps the selected project and signed-in user on snap.
func (e *Engine) attribute(snap *model.Snapshot) {
	if snap.ProjectID == nil {
		p, err := e.deps.Store.SelectedProject(e.bg)
		if err != nil {
			e.logger.Debug("resolving selected project", "err", err)
		} else if p != nil {
			id, name := p.ID, p.Name
			snap.ProjectID, snap.ProjectName = &id, &name
		}
	}
	if snap.UserID == nil && e.deps.Identity != nil {
		if uid := e.deps.Identity.UserID(); uid != "" {
			snap.UserID = &uid
		}
	}
}

func (e *Engine) startInputs() error {
	if e.deps.Inputs == nil {
		return nil
	}
	if e.inputsLive {
		// The source keeps running through an inactivity stop; zero it
		// instead of restarting. Counts queued before the reset stay on
		// the old channel and are dropped with its generation.
		if ch, err := e.deps.Inputs.Reset(); err == nil {
			e.consumeFrom(ch)
			return nil
		}
	}

	ch, err := e.deps.Inputs.Start(e.bg)
	if err != nil {
		e.inputsLive = false
		return err
	}
	e.consumeFrom(ch)
	return nil
}

func (e *Engine) consumeFrom(ch <-chan model.InputEvent) {
	e.inputGen++
	e.inputsLive = true
	e.timer.ResetInputBaseline()
	go e.consume(e.inputGen, ch)
}

func (e *Engine) stopInputs() {
	if e.deps.Inputs == nil || !e.inputsLive {
		return
	}
	e.inputGen++
	e.inputsLive = false
	if err := e.deps.Inputs.Stop(); err != nil {
		e.logger.Warn("stopping input metrics", "err", err)
	}
}

// consume applies events from one input generation until its channel closes.
func (e *Engine) consume(gen int, ch <-chan model.InputEvent) {
	for ev := range ch {
		e.observe(gen, ev)
	}

	e.mu.Lock()
	if e.inputGen == gen && e.inputsLive {
		e.inputsLive = false
		e.logger.Warn("input metrics ended, counters will not advance until tracking restarts")
	}
	e.mu.Unlock()
}

func (e *Engine) observe(gen int, ev model.InputEvent) {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.inputGen {
		return
	}
	e.timer.Observe(ev, now)
}

func (e *Engine) captureAsync() {
	if !e.capturing.CompareAndSwap(false, true) {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.capturing.Store(false)

		art, err := e.deps.Capturer.Capture(e.bg)
		if err != nil {
			e.logger.Warn("screenshot failed", "err", err)
			return
		}
		e.applyScreenshot(art)
	}()
}

// applyScreenshot attaches a finished capture to the running window. A
// capture that completes after the session ended is kept as its own record.
func (e *Engine) applyScreenshot(art screenshot.Artifact) {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.timer.AddScreenshot(art.Name) {
		e.flush(model.Snapshot{StartTime: now, ScreenshotRefs: []string{art.Name}})
	}
	e.logger.Info("screenshot captured", "name", art.Name)
	e.publishLocked(Event{Type: EventScreenshot, Screenshot: art.Name}, true)
}

func (e *Engine) syncAsync() {
	if !e.syncing.CompareAndSwap(false, true) {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.syncing.Store(false)

		if out := e.RequestSync(e.bg); !out.Success {
			e.logger.Debug("scheduled sync did not complete", "message", out.Message)
		}
	}()
}

func (e *Engine) countersLocked() Counters {
	c := e.timer.Counters()
	return Counters{
		Keystrokes:  c.Keystrokes,
		MouseMoves:  c.MouseMoves,
		MouseClicks: c.MouseClicks,
		Screenshots: len(c.ScreenshotRefs),
	}
}

func (e *Engine) publishStateLocked() {
	e.publishLocked(Event{Type: EventState, State: e.timer.State().String()}, true)
}

func (e *Engine) publishLocked(ev Event, keep bool) {
	ev.Timestamp = e.now()
	e.events.publish(ev, keep)
}
