package tui

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/theirongolddev/worklog/internal/config"
	"github.com/theirongolddev/worklog/internal/daemon"
	"github.com/theirongolddev/worklog/internal/engine"
	"github.com/theirongolddev/worklog/internal/model"
	"github.com/theirongolddev/worklog/internal/report"
	"github.com/theirongolddev/worklog/internal/tui/components"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeClient struct {
	started int
	records []daemon.ReportRecord
	totals  []report.Total
	stream  []daemon.StreamEvent
	status  daemon.Status
}

func (f *fakeClient) StartTracking(context.Context) (model.Outcome, error) {
	f.started++
	return model.Outcome{Success: true, Message: "tracking started"}, nil
}

func (f *fakeClient) StopTracking(context.Context) (model.Outcome, error) {
	return model.Outcome{Message: "not tracking"}, nil
}

func (f *fakeClient) Sync(context.Context) (model.Outcome, error) {
	return model.Outcome{}, errors.New("daemon: not running")
}

func (f *fakeClient) Status(context.Context) (daemon.Status, error) { return f.status, nil }

func (f *fakeClient) Reports(context.Context) ([]daemon.ReportRecord, error) { return f.records, nil }

func (f *fakeClient) ActiveTimes(context.Context) ([]report.Total, error) { return f.totals, nil }

func (f *fakeClient) Stream(_ context.Context, fn func(daemon.StreamEvent)) error {
	for _, se := range f.stream {
		fn(se)
	}
	return errors.New("stream closed")
}

func sized(a App) App {
	m, _ := a.Update(tea.WindowSizeMsg{Width: 110, Height: 40})
	return m.(App)
}

func keyPress(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestStreamMessagesArriveInOrder(t *testing.T) {
	fc := &fakeClient{stream: []daemon.StreamEvent{
		{Type: "status", Data: mustJSON(t, engine.Status{State: "running", Elapsed: "00:03"})},
		{Type: "garbage", Data: []byte("{not json")},
		{Type: engine.EventTick, Data: mustJSON(t, engine.Event{Type: engine.EventTick, Elapsed: "00:04"})},
	}}
	a := NewApp(fc, 10*time.Minute)
	defer a.cancel()

	msg := a.connect()()
	live, ok := msg.(liveMsg)
	if !ok {
		t.Fatalf("first message = %T, want liveMsg", msg)
	}
	if live.status.State != "running" {
		t.Errorf("state = %q", live.status.State)
	}

	m, cmd := a.Update(live)
	a = m.(App)
	if !a.connected {
		t.Error("app should be connected after the status message")
	}

	msg = cmd()
	ev, ok := msg.(eventMsg)
	if !ok {
		t.Fatalf("second message = %T, want eventMsg", msg)
	}
	m, cmd = a.Update(ev)
	a = m.(App)
	if a.live.Elapsed != "00:04" {
		t.Errorf("elapsed = %q, want 00:04", a.live.Elapsed)
	}

	if msg := cmd(); msg == nil {
		t.Fatal("expected stream end message")
	} else if _, ok := msg.(streamEndedMsg); !ok {
		t.Fatalf("third message = %T, want streamEndedMsg", msg)
	} else {
		m, _ = a.Update(msg)
		a = m.(App)
	}
	if a.connected || a.connErr == nil {
		t.Error("app should record the dropped stream")
	}
}

func TestReconnectAfterTicks(t *testing.T) {
	a := NewApp(&fakeClient{}, time.Minute)
	defer a.cancel()

	m, _ := a.Update(streamEndedMsg{err: errors.New("refused")})
	a = m.(App)

	for i := 0; i < reconnectTicks; i++ {
		m, _ = a.Update(tickMsg(time.Now()))
		a = m.(App)
	}
	if !a.connecting {
		t.Error("expected a reconnect attempt after idle ticks")
	}
	if a.idleTicks != 0 {
		t.Errorf("idleTicks = %d, want reset", a.idleTicks)
	}
}

func TestApplyEvent(t *testing.T) {
	a := NewApp(&fakeClient{}, time.Minute)
	defer a.cancel()

	a.applyEvent(engine.Event{Type: engine.EventState, State: "running"})
	a.applyEvent(engine.Event{Type: engine.EventTick, Elapsed: "00:01"})
	a.applyEvent(engine.Event{Type: engine.EventCounters, Counters: &engine.Counters{Keystrokes: 7}})
	a.applyEvent(engine.Event{Type: engine.EventScreenshot, Screenshot: "a.png"})

	if a.live.Elapsed != "00:01" || a.live.ElapsedSeconds != 1 {
		t.Errorf("elapsed = %q/%d", a.live.Elapsed, a.live.ElapsedSeconds)
	}
	if a.live.Counters.Keystrokes != 7 || a.live.Counters.Screenshots != 1 {
		t.Errorf("counters = %+v", a.live.Counters)
	}
	// Tick and counter updates are not logged.
	if len(a.log) != 2 {
		t.Errorf("log has %d events, want 2", len(a.log))
	}

	a.applyEvent(engine.Event{Type: engine.EventState, State: "idle"})
	if a.live.Elapsed != "" || a.live.NextFlush != nil {
		t.Error("going idle should clear the session clock")
	}

	for i := 0; i < 20; i++ {
		a.applyEvent(engine.Event{Type: engine.EventFlush, Message: "saved"})
	}
	if len(a.log) != maxEventLog {
		t.Errorf("log length = %d, want %d", len(a.log), maxEventLog)
	}
}

func TestControlKeys(t *testing.T) {
	fc := &fakeClient{}
	a := sized(NewApp(fc, time.Minute))
	defer a.cancel()

	_, cmd := a.Update(keyPress('s'))
	if cmd == nil {
		t.Fatal("start key returned no command")
	}
	msg := cmd()
	if fc.started != 1 {
		t.Errorf("StartTracking called %d times", fc.started)
	}
	m, _ := a.Update(msg)
	a = m.(App)
	if a.flash != "tracking started" || !a.flashOK {
		t.Errorf("flash = %q ok=%v", a.flash, a.flashOK)
	}

	_, cmd = a.Update(keyPress('y'))
	m, _ = a.Update(cmd())
	a = m.(App)
	if a.flashOK || !strings.Contains(a.flash, "sync: daemon: not running") {
		t.Errorf("sync failure flash = %q ok=%v", a.flash, a.flashOK)
	}
}

func TestReportsTab(t *testing.T) {
	fc := &fakeClient{records: []daemon.ReportRecord{
		{SessionRecord: model.SessionRecord{ID: 2, StartTime: time.Now(), DurationSeconds: 600, Keystrokes: 1200}},
		{SessionRecord: model.SessionRecord{ID: 1, StartTime: time.Now(), DurationSeconds: 60}, ScreenshotPaths: []string{"/shots/a.png"}},
	}}
	a := sized(NewApp(fc, time.Minute))
	defer a.cancel()

	m, cmd := a.Update(keyPress('r'))
	a = m.(App)
	if a.activeTab != tabReports {
		t.Fatalf("activeTab = %d, want reports", a.activeTab)
	}
	m, _ = a.Update(cmd())
	a = m.(App)
	if len(a.records) != 2 {
		t.Fatalf("records = %d, want 2", len(a.records))
	}

	m, _ = a.Update(keyPress('j'))
	a = m.(App)
	if a.cursor != 1 {
		t.Errorf("cursor = %d, want 1", a.cursor)
	}
	view := a.View()
	if !strings.Contains(view, "Records (2)") || !strings.Contains(view, "/shots/a.png") {
		t.Errorf("reports view missing content:\n%s", view)
	}
}

func TestActiveTab(t *testing.T) {
	fc := &fakeClient{totals: []report.Total{
		{Label: "Today", Display: "1h 02m"},
		{Label: "Yesterday", Display: "0h 00m"},
	}}
	a := sized(NewApp(fc, time.Minute))
	defer a.cancel()

	m, cmd := a.Update(keyPress('a'))
	a = m.(App)
	m, _ = a.Update(cmd())
	a = m.(App)

	view := a.View()
	if !strings.Contains(view, "Today") || !strings.Contains(view, "1h 02m") {
		t.Errorf("active view missing totals:\n%s", view)
	}
}

func TestLiveView(t *testing.T) {
	a := sized(NewApp(&fakeClient{}, 10*time.Minute))
	defer a.cancel()

	now := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)
	next := now.Add(5 * time.Minute)
	a.now = func() time.Time { return now }
	a.live = engine.Status{
		State:     "running",
		Elapsed:   "05:00",
		NextFlush: &next,
		Counters:  engine.Counters{Keystrokes: 1234},
	}

	view := a.View()
	for _, want := range []string{"RUNNING", "05:00", "1,234", "save in 05:00", "Live"} {
		if !strings.Contains(view, want) {
			t.Errorf("live view missing %q", want)
		}
	}
}

func TestHelpToggle(t *testing.T) {
	a := sized(NewApp(&fakeClient{}, time.Minute))
	defer a.cancel()

	m, _ := a.Update(keyPress('?'))
	a = m.(App)
	if !a.showHelp || !strings.Contains(a.View(), "Keyboard shortcuts") {
		t.Fatal("help overlay not shown")
	}
	m, _ = a.Update(keyPress('s'))
	a = m.(App)
	if a.showHelp {
		t.Error("any key should close help")
	}
}

func TestTooNarrow(t *testing.T) {
	a := NewApp(&fakeClient{}, time.Minute)
	defer a.cancel()
	m, _ := a.Update(tea.WindowSizeMsg{Width: 40, Height: 20})
	if !strings.Contains(m.(App).View(), "too narrow") {
		t.Error("expected narrow-terminal notice")
	}
}

func TestTabAtXMatchesTabWidths(t *testing.T) {
	for active := range components.Tabs {
		a := App{activeTab: active}
		pos := 0
		for i, tab := range components.Tabs {
			w := components.TabVisualWidth(tab, i == active)
			if got := a.tabAtX(pos + w/2); got != i {
				t.Fatalf("active=%d x=%d -> tab=%d, want %d", active, pos+w/2, got, i)
			}
			pos += w + 1
		}
		if got := a.tabAtX(pos + 40); got != -1 {
			t.Errorf("x past the last tab = %d, want -1", got)
		}
	}
}

func TestSetupValuesApply(t *testing.T) {
	cfg := config.DefaultConfig()
	vals := NewSetupValues(cfg)
	if vals.FlushPeriod != 10*time.Minute || vals.Theme != "flexoki-dark" {
		t.Fatalf("seeded values = %+v", vals)
	}

	vals.Endpoint = "  https://example.com/batch "
	vals.FlushPeriod = 15 * time.Minute
	vals.ScreenshotInterval = 0
	vals.Theme = "terminal"
	vals.Apply(&cfg)

	if cfg.Sync.Endpoint != "https://example.com/batch" {
		t.Errorf("endpoint = %q", cfg.Sync.Endpoint)
	}
	if cfg.Tracking.FlushPeriod.Duration != 15*time.Minute || cfg.Tracking.ScreenshotInterval.Duration != 0 {
		t.Errorf("tracking = %+v", cfg.Tracking)
	}
	if cfg.Appearance.Theme != "terminal" {
		t.Errorf("theme = %q", cfg.Appearance.Theme)
	}
	if NewSetupForm(vals) == nil {
		t.Error("NewSetupForm returned nil")
	}
}

func TestValidateEndpoint(t *testing.T) {
	for in, ok := range map[string]bool{
		"":                         true,
		"https://example.com/sync": true,
		"http://127.0.0.1:9000/":   true,
		"ftp://example.com":        false,
		"example.com/sync":         false,
	} {
		if err := validateEndpoint(in); (err == nil) != ok {
			t.Errorf("validateEndpoint(%q) = %v, want ok=%v", in, err, ok)
		}
	}
}
