// Package session implements the tracking timer state machine.
//
// A Timer is not safe for concurrent use. The engine owns exactly one and
// serializes every call through its own lock.
package session

import (
	"errors"
	"time"

	"github.com/theirongolddev/worklog/internal/model"
)

var (
	// ErrAlreadyRunning is returned by Start when a session is active.
	ErrAlreadyRunning = errors.New("session: already running")
	// ErrNotRunning is returned by Stop when no session is active.
	ErrNotRunning = errors.New("session: not running")
)

// State is the timer's tracking state.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Config controls flush cadence and inactivity detection.
type Config struct {
	FlushPeriod       time.Duration
	InactivityTimeout time.Duration // zero disables auto-stop
}

// Counters is the accumulation since the last flush.
type Counters struct {
	ElapsedSeconds int64
	Keystrokes     int64
	MouseMoves     int64
	MouseClicks    int64
	ScreenshotRefs []string
}

// Timer tracks whether a session is running and what it has accumulated
// since the last flush boundary.
type Timer struct {
	cfg Config

	state        State
	counters     Counters
	windowStart  time.Time
	nextFlush    time.Time
	lastActivity time.Time
	notified     bool

	// Last cumulative count seen per kind, used to turn the source's
	// running totals into deltas.
	lastSeen map[model.InputKind]int64
}

// NewTimer returns an idle timer.
func NewTimer(cfg Config, now time.Time) *Timer {
	return &Timer{
		cfg:          cfg,
		lastActivity: now,
		lastSeen:     make(map[model.InputKind]int64),
	}
}

// State returns the current state.
func (t *Timer) State() State { return t.state }

// LastActivity returns the time of the most recent input event or start.
func (t *Timer) LastActivity() time.Time { return t.lastActivity }

// NextFlush returns the pending flush boundary. Zero while idle.
func (t *Timer) NextFlush() time.Time {
	if t.state != Running {
		return time.Time{}
	}
	return t.nextFlush
}

// WindowStart returns the start of the current accumulation window.
func (t *Timer) WindowStart() time.Time { return t.windowStart }

// Counters returns a copy of the since-flush counters.
func (t *Timer) Counters() Counters {
	c := t.counters
	c.ScreenshotRefs = append([]string(nil), t.counters.ScreenshotRefs...)
	return c
}

// Start begins a session at now.
func (t *Timer) Start(now time.Time) error {
	if t.state == Running {
		return ErrAlreadyRunning
	}
	t.state = Running
	t.counters = Counters{}
	t.windowStart = now
	t.lastActivity = now
	t.notified = false
	t.nextFlush = NextBoundary(now, t.cfg.FlushPeriod)
	return nil
}

// Stop ends the session and returns whatever accumulated since the last
// flush. The returned window may be shorter than a flush period.
func (t *Timer) Stop(now time.Time) (model.Snapshot, error) {
	if t.state != Running {
		return model.Snapshot{}, ErrNotRunning
	}
	t.state = Idle
	return t.take(now), nil
}

// Tick accounts for one elapsed second. When now has reached the flush
// boundary the accumulated window is returned with ok set, the counters are
// cleared, and the next boundary is computed from now.
func (t *Timer) Tick(now time.Time) (snap model.Snapshot, ok bool) {
	if t.state != Running {
		return model.Snapshot{}, false
	}
	t.counters.ElapsedSeconds++
	if now.Before(t.nextFlush) {
		return model.Snapshot{}, false
	}
	snap = t.take(now)
	t.nextFlush = NextBoundary(now, t.cfg.FlushPeriod)
	return snap, true
}

// CheckInactivity stops a running session once no input has been seen for
// the configured timeout. It fires at most once per idle stretch; new input
// re-arms it.
func (t *Timer) CheckInactivity(now time.Time) (snap model.Snapshot, fired bool) {
	if t.cfg.InactivityTimeout <= 0 || t.state != Running || t.notified {
		return model.Snapshot{}, false
	}
	if now.Sub(t.lastActivity) < t.cfg.InactivityTimeout {
		return model.Snapshot{}, false
	}
	t.notified = true
	t.state = Idle
	return t.take(now), true
}

// Observe applies one input event. Activity is recorded in any state;
// counters only advance while running.
func (t *Timer) Observe(ev model.InputEvent, now time.Time) {
	t.lastActivity = now
	t.notified = false

	delta := ev.Count - t.lastSeen[ev.Type]
	if delta < 0 {
		// The source was reset or restarted; its count is the new total.
		delta = ev.Count
	}
	t.lastSeen[ev.Type] = ev.Count

	if t.state != Running {
		return
	}
	switch ev.Type {
	case model.Keystroke:
		t.counters.Keystrokes += delta
	case model.MouseMove:
		t.counters.MouseMoves += delta
	case model.MouseClick:
		t.counters.MouseClicks += delta
	}
}

// ResetInputBaseline forgets the last cumulative counts. Call it when the
// input source is restarted or told to reset.
func (t *Timer) ResetInputBaseline() {
	clear(t.lastSeen)
}

// AddScreenshot attaches an artifact to the current window. It reports
// false, leaving the timer untouched, when no session is running.
func (t *Timer) AddScreenshot(ref string) bool {
	if t.state != Running || ref == "" {
		return false
	}
	t.counters.ScreenshotRefs = append(t.counters.ScreenshotRefs, ref)
	return true
}

func (t *Timer) take(now time.Time) model.Snapshot {
	snap := model.Snapshot{
		StartTime:       t.windowStart,
		DurationSeconds: t.counters.ElapsedSeconds,
		Keystrokes:      t.counters.Keystrokes,
		MouseMoves:      t.counters.MouseMoves,
		MouseClicks:     t.counters.MouseClicks,
		ScreenshotRefs:  t.counters.ScreenshotRefs,
	}
	t.counters = Counters{}
	t.windowStart = now
	return snap
}
