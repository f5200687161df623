// Package tui provides the interactive Bubble Tea view of a running worklog
// daemon.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/theirongolddev/worklog/internal/cli"
	"github.com/theirongolddev/worklog/internal/daemon"
	"github.com/theirongolddev/worklog/internal/engine"
	"github.com/theirongolddev/worklog/internal/model"
	"github.com/theirongolddev/worklog/internal/report"
	"github.com/theirongolddev/worklog/internal/tui/components"
	"github.com/theirongolddev/worklog/internal/tui/theme"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Client is the daemon API the TUI drives.
type Client interface {
	StartTracking(ctx context.Context) (model.Outcome, error)
	StopTracking(ctx context.Context) (model.Outcome, error)
	Sync(ctx context.Context) (model.Outcome, error)
	Status(ctx context.Context) (daemon.Status, error)
	Reports(ctx context.Context) ([]daemon.ReportRecord, error)
	ActiveTimes(ctx context.Context) ([]report.Total, error)
	Stream(ctx context.Context, fn func(daemon.StreamEvent)) error
}

const (
	tabLive = iota
	tabReports
	tabActive
)

const (
	minTerminalWidth = 60
	maxContentWidth  = 140
	maxEventLog      = 8
	reconnectTicks   = 3
	requestTimeout   = 10 * time.Second
)

type statusMsg struct {
	status daemon.Status
	err    error
}

// liveMsg carries the engine snapshot sent when a stream opens.
type liveMsg struct{ status engine.Status }

type eventMsg struct{ ev engine.Event }

type streamEndedMsg struct{ err error }

type outcomeMsg struct {
	action string
	out    model.Outcome
	err    error
}

type reportsMsg struct {
	records []daemon.ReportRecord
	err     error
}

type activeMsg struct {
	totals []report.Total
	err    error
}

type tickMsg time.Time

// App is the root Bubble Tea model.
type App struct {
	client      Client
	flushPeriod time.Duration
	now         func() time.Time

	// Stream state
	ctx        context.Context
	cancel     context.CancelFunc
	sub        chan tea.Msg
	connecting bool
	connected  bool
	connErr    error
	idleTicks  int
	daemonAddr string

	// Daemon data
	live    engine.Status
	log     []engine.Event
	records []daemon.ReportRecord
	totals  []report.Total
	dataErr error

	// Last control outcome
	flash   string
	flashOK bool

	// UI state
	width     int
	height    int
	activeTab int
	cursor    int
	showHelp  bool
	keys      keyMap
	help      help.Model
	spinner   spinner.Model
}

// NewApp returns a TUI bound to client. flushPeriod sizes the progress bar
// toward the next save.
func NewApp(client Client, flushPeriod time.Duration) App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent)

	ctx, cancel := context.WithCancel(context.Background())
	return App{
		client:      client,
		flushPeriod: flushPeriod,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		sub:         make(chan tea.Msg, 32),
		connecting:  true,
		keys:        defaultKeyMap(),
		help:        help.New(),
		spinner:     sp,
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.spinner.Tick,
		tickCmd(),
		a.connect(),
		a.fetchStatus(),
	)
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		return a, nil

	case tea.KeyMsg:
		return a.updateKey(msg)

	case tea.MouseMsg:
		if msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress && msg.Y == 0 {
			if tab := a.tabAtX(msg.X); tab >= 0 {
				return a.switchTab(tab)
			}
		}
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tickMsg:
		cmds := []tea.Cmd{tickCmd()}
		if !a.connected && !a.connecting {
			a.idleTicks++
			if a.idleTicks >= reconnectTicks {
				a.idleTicks = 0
				a.connecting = true
				cmds = append(cmds, a.connect())
			}
		}
		return a, tea.Batch(cmds...)

	case statusMsg:
		if msg.err != nil {
			a.connErr = msg.err
			return a, nil
		}
		a.daemonAddr = msg.status.Addr
		a.live = msg.status.Tracking
		return a, nil

	case liveMsg:
		a.connecting = false
		a.connected = true
		a.connErr = nil
		a.live = msg.status
		return a, a.waitForStream()

	case eventMsg:
		a.connecting = false
		a.connected = true
		a.applyEvent(msg.ev)
		switch msg.ev.Type {
		case engine.EventState, engine.EventFlush, engine.EventSync:
			return a, tea.Batch(a.waitForStream(), a.fetchStatus(), a.fetchTab(a.activeTab))
		}
		return a, a.waitForStream()

	case streamEndedMsg:
		a.connecting = false
		a.connected = false
		a.connErr = msg.err
		return a, nil

	case outcomeMsg:
		if msg.err != nil {
			a.flash, a.flashOK = fmt.Sprintf("%s: %v", msg.action, msg.err), false
		} else {
			a.flash, a.flashOK = msg.out.Message, msg.out.Success
		}
		return a, a.fetchStatus()

	case reportsMsg:
		a.records, a.dataErr = msg.records, msg.err
		if a.cursor >= len(a.records) {
			a.cursor = max(len(a.records)-1, 0)
		}
		return a, nil

	case activeMsg:
		a.totals, a.dataErr = msg.totals, msg.err
		return a, nil
	}

	return a, nil
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.showHelp {
		if key.Matches(msg, a.keys.Quit) && msg.String() == "ctrl+c" {
			a.cancel()
			return a, tea.Quit
		}
		a.showHelp = false
		return a, nil
	}

	switch {
	case key.Matches(msg, a.keys.Quit):
		a.cancel()
		return a, tea.Quit
	case key.Matches(msg, a.keys.Help):
		a.showHelp = true
		return a, nil
	case key.Matches(msg, a.keys.Start):
		return a, a.control("start", a.client.StartTracking)
	case key.Matches(msg, a.keys.Stop):
		return a, a.control("stop", a.client.StopTracking)
	case key.Matches(msg, a.keys.Sync):
		a.flash, a.flashOK = "syncing...", true
		return a, a.control("sync", a.client.Sync)
	case key.Matches(msg, a.keys.Refresh):
		return a, tea.Batch(a.fetchStatus(), a.fetchTab(a.activeTab))
	case key.Matches(msg, a.keys.NextTab):
		return a.switchTab((a.activeTab + 1) % len(components.Tabs))
	case key.Matches(msg, a.keys.PrevTab):
		return a.switchTab((a.activeTab + len(components.Tabs) - 1) % len(components.Tabs))
	case key.Matches(msg, a.keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
		return a, nil
	case key.Matches(msg, a.keys.Down):
		if a.cursor < len(a.records)-1 {
			a.cursor++
		}
		return a, nil
	}

	if runes := msg.Runes; len(runes) == 1 {
		if tab := components.TabIdxByKey(runes[0]); tab >= 0 {
			return a.switchTab(tab)
		}
	}
	return a, nil
}

func (a App) switchTab(tab int) (tea.Model, tea.Cmd) {
	a.activeTab = tab
	a.dataErr = nil
	return a, a.fetchTab(tab)
}

// applyEvent folds a streamed event into the live view.
func (a *App) applyEvent(ev engine.Event) {
	switch ev.Type {
	case engine.EventState:
		a.live.State = ev.State
		if ev.State != "running" {
			a.live.Elapsed = ""
			a.live.ElapsedSeconds = 0
			a.live.NextFlush = nil
		}
	case engine.EventTick:
		a.live.Elapsed = ev.Elapsed
		a.live.ElapsedSeconds++
		return
	case engine.EventCounters:
		if ev.Counters != nil {
			a.live.Counters = *ev.Counters
		}
		return
	case engine.EventScreenshot:
		a.live.Counters.Screenshots++
	}

	a.log = append(a.log, ev)
	if len(a.log) > maxEventLog {
		a.log = a.log[len(a.log)-maxEventLog:]
	}
}

// ─── Commands ───────────────────────────────────────────────────

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// connect opens the event stream in a background goroutine. Events are
// delivered one at a time through the subscription channel, which is
// shared by every connection attempt.
func (a App) connect() tea.Cmd {
	client, ctx, sub := a.client, a.ctx, a.sub

	return func() tea.Msg {
		go func() {
			err := client.Stream(ctx, func(se daemon.StreamEvent) {
				msg, ok := decodeStreamEvent(se)
				if !ok {
					return
				}
				select {
				case sub <- msg:
				case <-ctx.Done():
				}
			})
			select {
			case sub <- streamEndedMsg{err: err}:
			case <-ctx.Done():
			}
		}()
		return <-sub
	}
}

// waitForStream blocks until the next stream message arrives.
func (a App) waitForStream() tea.Cmd {
	sub := a.sub
	return func() tea.Msg {
		return <-sub
	}
}

func decodeStreamEvent(se daemon.StreamEvent) (tea.Msg, bool) {
	if se.Type == "status" {
		var st engine.Status
		if err := json.Unmarshal(se.Data, &st); err != nil {
			return nil, false
		}
		return liveMsg{status: st}, true
	}
	var ev engine.Event
	if err := json.Unmarshal(se.Data, &ev); err != nil {
		return nil, false
	}
	return eventMsg{ev: ev}, true
}

func (a App) fetchStatus() tea.Cmd {
	client, ctx := a.client, a.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		st, err := client.Status(ctx)
		return statusMsg{status: st, err: err}
	}
}

func (a App) fetchTab(tab int) tea.Cmd {
	client, ctx := a.client, a.ctx
	switch tab {
	case tabReports:
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(ctx, requestTimeout)
			defer cancel()
			recs, err := client.Reports(ctx)
			return reportsMsg{records: recs, err: err}
		}
	case tabActive:
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(ctx, requestTimeout)
			defer cancel()
			totals, err := client.ActiveTimes(ctx)
			return activeMsg{totals: totals, err: err}
		}
	}
	return nil
}

func (a App) control(action string, fn func(context.Context) (model.Outcome, error)) tea.Cmd {
	ctx := a.ctx
	return func() tea.Msg {
		out, err := fn(ctx)
		return outcomeMsg{action: action, out: out, err: err}
	}
}

// ─── View ───────────────────────────────────────────────────────

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return fmt.Sprintf("\n  Terminal too narrow (%d cols)\n\n  worklog needs at least %d columns.\n",
			a.width, minTerminalWidth)
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewHelp() string {
	t := theme.Active

	full := a.help
	full.ShowAll = true

	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Padding(1, 3).
		Render(lipgloss.NewStyle().Foreground(t.AccentBright).Bold(true).Render("Keyboard shortcuts") +
			"\n\n" + full.View(a.keys) + "\n\n" +
			lipgloss.NewStyle().Foreground(t.TextDim).Render("Press any key to close"))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card)
}

func (a App) viewMain() string {
	cw := a.contentWidth()

	header := components.RenderTabBar(a.activeTab)
	status := components.RenderStatusBar(a.width, a.help.ShortHelpView(a.keys.ShortHelp()), a.connectionLabel())

	var content string
	switch a.activeTab {
	case tabLive:
		content = a.renderLive(cw)
	case tabReports:
		content = a.renderReports(cw)
	case tabActive:
		content = a.renderActive(cw)
	}

	contentH := a.height - lipgloss.Height(header) - lipgloss.Height(status)
	if contentH < 1 {
		contentH = 1
	}
	content = padHeight(truncateHeight(content, contentH), contentH)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, status)
}

func (a App) connectionLabel() string {
	t := theme.Active
	switch {
	case a.connected:
		label := "connected"
		if a.daemonAddr != "" {
			label += " " + a.daemonAddr
		}
		return lipgloss.NewStyle().Foreground(t.Green).Render("● ") + label
	case a.connErr != nil:
		return a.spinner.View() + lipgloss.NewStyle().Foreground(t.Orange).Render(" daemon unreachable, retrying")
	default:
		return a.spinner.View() + " connecting"
	}
}

func (a App) renderLive(cw int) string {
	t := theme.Active
	var b strings.Builder

	state := a.live.State
	if state == "" {
		state = "unknown"
	}
	elapsed := a.live.Elapsed
	if elapsed == "" {
		elapsed = "00:00"
	}

	stateStyle := lipgloss.NewStyle().Foreground(theme.StateColor(state)).Bold(true)
	clockStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Bold(true)

	body := stateStyle.Render(strings.ToUpper(state)) + "  " + clockStyle.Render(elapsed)
	if a.live.NextFlush != nil && state == "running" {
		remaining := a.live.NextFlush.Sub(a.now())
		body += "\n" + components.FlushBar(remaining, a.flushPeriod, components.CardInnerWidth(cw))
	}
	b.WriteString(components.ContentCard("Session", body, cw, state == "running"))
	b.WriteString("\n")

	c := a.live.Counters
	b.WriteString(components.MetricCardRow([]components.Metric{
		{Label: "Keystrokes", Value: cli.FormatNumber(c.Keystrokes)},
		{Label: "Mouse clicks", Value: cli.FormatNumber(c.MouseClicks)},
		{Label: "Mouse moves", Value: cli.FormatNumber(c.MouseMoves)},
		{Label: "Screenshots", Value: cli.FormatNumber(int64(c.Screenshots))},
	}, cw))
	b.WriteString("\n")

	pending := fmt.Sprintf("%d pending", a.live.PendingRecords)
	if a.live.RetryQueue > 0 {
		pending += fmt.Sprintf(", %d awaiting save", a.live.RetryQueue)
	}
	lastSync := "never"
	if s := a.live.LastSync; s != nil {
		lastSync = cli.FormatTimestamp(s.At, a.now()) + " " + s.Message
	}
	b.WriteString(components.MetricCardRow([]components.Metric{
		{Label: "Records", Value: pending},
		{Label: "Last sync", Value: lastSync},
	}, cw))
	b.WriteString("\n")

	if a.flash != "" {
		style := lipgloss.NewStyle().Foreground(t.Green)
		if !a.flashOK {
			style = lipgloss.NewStyle().Foreground(t.Orange)
		}
		b.WriteString(" " + style.Render(a.flash) + "\n")
	}

	b.WriteString(components.ContentCard("Recent events", a.renderLog(components.CardInnerWidth(cw)), cw, false))
	return b.String()
}

func (a App) renderLog(width int) string {
	t := theme.Active
	if len(a.log) == 0 {
		return lipgloss.NewStyle().Foreground(t.TextDim).Render("no events yet")
	}

	timeStyle := lipgloss.NewStyle().Foreground(t.TextDim)
	typeStyle := lipgloss.NewStyle().Foreground(t.Accent)

	lines := make([]string, 0, len(a.log))
	for i := len(a.log) - 1; i >= 0; i-- {
		ev := a.log[i]
		line := timeStyle.Render(ev.Timestamp.Local().Format("15:04:05")) + " " +
			typeStyle.Render(fmt.Sprintf("%-12s", ev.Type)) + " " + truncStr(describeEvent(ev), width-22)
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func describeEvent(ev engine.Event) string {
	switch {
	case ev.Message != "":
		return ev.Message
	case ev.State != "":
		return ev.State
	case ev.Screenshot != "":
		return ev.Screenshot
	}
	return ""
}

func (a App) renderReports(cw int) string {
	if a.dataErr != nil {
		return "\n  " + a.dataErr.Error()
	}
	if len(a.records) == 0 {
		return "\n  No records yet."
	}

	t := theme.Active
	inner := components.CardInnerWidth(cw)
	header := lipgloss.NewStyle().Foreground(t.TextMuted).Bold(true).
		Render(fmt.Sprintf("%-19s %8s %8s %7s %7s %4s %s", "Start", "Duration", "Keys", "Clicks", "Moves", "Shot", "Sync"))

	rowStyle := lipgloss.NewStyle().Foreground(t.TextPrimary)
	selStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Bold(true)

	rows := []string{header}
	for i, rec := range a.records {
		line := fmt.Sprintf("%-19s %8s %8s %7s %7s %4d %s",
			rec.StartTime.Local().Format("2006-01-02 15:04:05"),
			cli.FormatDuration(rec.DurationSeconds),
			cli.FormatNumber(rec.Keystrokes),
			cli.FormatNumber(rec.MouseClicks),
			cli.FormatNumber(rec.MouseMoves),
			len(rec.ScreenshotPaths),
			rec.SyncStatus)
		style := rowStyle
		if i == a.cursor {
			style = selStyle
		}
		rows = append(rows, style.Render(truncStr(line, inner)))
	}

	list := components.ContentCard(fmt.Sprintf("Records (%d)", len(a.records)), strings.Join(rows, "\n"), cw, false)

	sel := a.records[min(a.cursor, len(a.records)-1)]
	var detail strings.Builder
	fmt.Fprintf(&detail, "project  %s\n", cli.FormatOptional(sel.ProjectName))
	for _, p := range sel.ScreenshotPaths {
		detail.WriteString(truncStr(p, inner) + "\n")
	}
	return list + "\n" + components.ContentCard("Selected", strings.TrimRight(detail.String(), "\n"), cw, true)
}

func (a App) renderActive(cw int) string {
	if a.dataErr != nil {
		return "\n  " + a.dataErr.Error()
	}
	if len(a.totals) == 0 {
		return "\n  Loading..."
	}

	metrics := make([]components.Metric, len(a.totals))
	for i, tot := range a.totals {
		metrics[i] = components.Metric{
			Label: tot.Label,
			Value: tot.Display,
			Note:  tot.From.Local().Format("Jan 2"),
		}
	}
	return components.MetricCardRow(metrics, cw)
}

// tabAtX returns the tab index under column x of the tab bar, or -1.
func (a App) tabAtX(x int) int {
	pos := 0
	for i, tab := range components.Tabs {
		w := components.TabVisualWidth(tab, i == a.activeTab)
		if x >= pos && x < pos+w {
			return i
		}
		pos += w + 1
	}
	return -1
}

// ─── Helpers ────────────────────────────────────────────────────

func truncStr(s string, limit int) string {
	if limit < 1 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	return s + strings.Repeat("\n", h-len(lines))
}
