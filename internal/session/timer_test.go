package session

import (
	"errors"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/theirongolddev/worklog/internal/model"
)

func at(t *testing.T, clock string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", "2026-03-02 "+clock, time.Local)
	if err != nil {
		t.Fatalf("parse %q: %v", clock, err)
	}
	return ts
}

func TestNextBoundary(t *testing.T) {
	cases := []struct {
		now  string
		want string
	}{
		{"10:00:00", "10:10:00"},
		{"10:03:12", "10:10:00"},
		{"10:09:59", "10:10:00"},
		{"23:55:00", "00:00:00"},
	}
	for _, c := range cases {
		got := NextBoundary(at(t, c.now), 10*time.Minute)
		if got.Format("15:04:05") != c.want {
			t.Errorf("NextBoundary(%s) = %s, want %s", c.now, got.Format("15:04:05"), c.want)
		}
	}
}

func TestTimerFlushScenario(t *testing.T) {
	start := at(t, "10:00:00")
	tm := NewTimer(Config{FlushPeriod: 10 * time.Minute}, start)
	if err := tm.Start(start); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var flushed []model.Snapshot
	now := start
	for now.Before(at(t, "10:13:00")) {
		now = now.Add(time.Second)
		if snap, ok := tm.Tick(now); ok {
			flushed = append(flushed, snap)
		}
	}
	if len(flushed) != 1 {
		t.Fatalf("flushes before stop = %d, want 1", len(flushed))
	}
	if flushed[0].DurationSeconds != 600 {
		t.Fatalf("first flush duration = %d, want 600", flushed[0].DurationSeconds)
	}
	if !flushed[0].StartTime.Equal(start) {
		t.Fatalf("first flush start = %v, want %v", flushed[0].StartTime, start)
	}

	last, err := tm.Stop(now)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if last.DurationSeconds != 180 {
		t.Fatalf("stop flush duration = %d, want 180", last.DurationSeconds)
	}
	if !last.StartTime.Equal(at(t, "10:10:00")) {
		t.Fatalf("stop flush start = %v, want 10:10:00", last.StartTime)
	}
	if tm.State() != Idle {
		t.Fatalf("state = %v, want idle", tm.State())
	}
}

func TestTimerStartStopValidity(t *testing.T) {
	now := at(t, "09:00:00")
	tm := NewTimer(Config{FlushPeriod: time.Minute}, now)

	if _, err := tm.Stop(now); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Stop while idle err = %v, want ErrNotRunning", err)
	}
	if err := tm.Start(now); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := tm.Start(now); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start err = %v, want ErrAlreadyRunning", err)
	}
}

func TestTimerObserveCumulativeCounts(t *testing.T) {
	now := at(t, "09:00:00")
	tm := NewTimer(Config{FlushPeriod: 10 * time.Minute}, now)
	_ = tm.Start(now)

	tm.Observe(model.InputEvent{Type: model.Keystroke, Count: 3}, now)
	tm.Observe(model.InputEvent{Type: model.Keystroke, Count: 7}, now)
	tm.Observe(model.InputEvent{Type: model.MouseClick, Count: 2}, now)
	tm.Observe(model.InputEvent{Type: model.MouseMove, Count: 40}, now)

	c := tm.Counters()
	if c.Keystrokes != 7 || c.MouseClicks != 2 || c.MouseMoves != 40 {
		t.Fatalf("counters = %+v, want keystrokes=7 clicks=2 moves=40", c)
	}

	// A reset source starts counting from zero again.
	tm.Observe(model.InputEvent{Type: model.Keystroke, Count: 2}, now)
	if got := tm.Counters().Keystrokes; got != 9 {
		t.Fatalf("keystrokes after source reset = %d, want 9", got)
	}
}

func TestTimerFlushDoesNotDoubleCount(t *testing.T) {
	now := at(t, "09:09:58")
	tm := NewTimer(Config{FlushPeriod: 10 * time.Minute}, now)
	_ = tm.Start(now)

	tm.Observe(model.InputEvent{Type: model.Keystroke, Count: 5}, now)
	now = now.Add(time.Second)
	tm.Tick(now)
	now = now.Add(time.Second)
	snap, ok := tm.Tick(now)
	if !ok {
		t.Fatal("expected flush at 09:10:00")
	}
	if snap.Keystrokes != 5 {
		t.Fatalf("flushed keystrokes = %d, want 5", snap.Keystrokes)
	}

	tm.Observe(model.InputEvent{Type: model.Keystroke, Count: 8}, now)
	rest, _ := tm.Stop(now)
	if rest.Keystrokes != 3 {
		t.Fatalf("second window keystrokes = %d, want 3", rest.Keystrokes)
	}
}

func TestTimerObserveWhileIdleOnlyTouchesActivity(t *testing.T) {
	now := at(t, "09:00:00")
	tm := NewTimer(Config{FlushPeriod: time.Minute}, now)

	later := now.Add(5 * time.Second)
	tm.Observe(model.InputEvent{Type: model.Keystroke, Count: 4}, later)
	if !tm.LastActivity().Equal(later) {
		t.Fatalf("LastActivity = %v, want %v", tm.LastActivity(), later)
	}
	if tm.Counters().Keystrokes != 0 {
		t.Fatalf("idle keystrokes = %d, want 0", tm.Counters().Keystrokes)
	}
}

func TestTimerInactivityFiresOnce(t *testing.T) {
	t0 := at(t, "09:00:00")
	tm := NewTimer(Config{FlushPeriod: 10 * time.Minute, InactivityTimeout: 60 * time.Second}, t0)
	_ = tm.Start(t0)

	now := t0
	fired := 0
	var snap model.Snapshot
	for i := 0; i < 120; i++ {
		now = now.Add(time.Second)
		tm.Tick(now)
		if s, ok := tm.CheckInactivity(now); ok {
			fired++
			snap = s
			if now.Sub(t0) != 60*time.Second {
				t.Fatalf("fired at +%s, want +60s", now.Sub(t0))
			}
		}
	}
	if fired != 1 {
		t.Fatalf("inactivity fired %d times, want 1", fired)
	}
	if snap.DurationSeconds != 60 {
		t.Fatalf("inactivity flush duration = %d, want 60", snap.DurationSeconds)
	}
	if tm.State() != Idle {
		t.Fatalf("state after inactivity = %v, want idle", tm.State())
	}

	// New activity followed by a fresh session re-arms the check.
	tm.Observe(model.InputEvent{Type: model.MouseMove, Count: 1}, now)
	_ = tm.Start(now)
	if _, ok := tm.CheckInactivity(now.Add(61 * time.Second)); !ok {
		t.Fatal("expected inactivity to fire again after new activity")
	}
}

func TestTimerAddScreenshot(t *testing.T) {
	now := at(t, "09:00:00")
	tm := NewTimer(Config{FlushPeriod: time.Minute}, now)
	if tm.AddScreenshot("a.png") {
		t.Fatal("AddScreenshot while idle should report false")
	}
	_ = tm.Start(now)
	tm.AddScreenshot("a.png")
	tm.AddScreenshot("b.png")
	snap, _ := tm.Stop(now)
	if len(snap.ScreenshotRefs) != 2 || snap.ScreenshotRefs[0] != "a.png" || snap.ScreenshotRefs[1] != "b.png" {
		t.Fatalf("ScreenshotRefs = %v, want [a.png b.png]", snap.ScreenshotRefs)
	}
}

// Total flushed duration always equals the number of seconds ticked while
// running, whatever the interleaving of starts, stops and ticks.
func TestTimerDurationConservation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		period := time.Duration(rapid.IntRange(1, 15).Draw(rt, "period_min")) * time.Minute
		now := time.Date(2026, 3, 2, rapid.IntRange(0, 23).Draw(rt, "hour"), 0, 0, 0, time.Local)
		tm := NewTimer(Config{FlushPeriod: period}, now)

		var runningTicks, flushed int64
		ops := rapid.IntRange(1, 300).Draw(rt, "ops")
		for i := 0; i < ops; i++ {
			switch rapid.IntRange(0, 9).Draw(rt, "op") {
			case 0:
				_ = tm.Start(now)
			case 1:
				if snap, err := tm.Stop(now); err == nil {
					flushed += snap.DurationSeconds
				}
			default:
				n := rapid.IntRange(1, 400).Draw(rt, "seconds")
				for j := 0; j < n; j++ {
					now = now.Add(time.Second)
					if tm.State() == Running {
						runningTicks++
					}
					if snap, ok := tm.Tick(now); ok {
						if snap.DurationSeconds < 0 {
							rt.Fatalf("negative duration %d", snap.DurationSeconds)
						}
						flushed += snap.DurationSeconds
					}
				}
			}
		}
		if snap, err := tm.Stop(now); err == nil {
			flushed += snap.DurationSeconds
		}
		if flushed != runningTicks {
			rt.Fatalf("flushed %d seconds, ticked %d while running", flushed, runningTicks)
		}
	})
}
