// Package report computes the activity-summary windows and the duration
// formats shown to the user.
package report

import (
	"context"
	"fmt"
	"time"
)

// Window is a half-open [From, To) range of local calendar time.
type Window struct {
	Label string
	From  time.Time
	To    time.Time
}

// Windows returns the summary windows for the local calendar date of now:
// today, yesterday, the last 7 days including today, this month, and last
// month.
func Windows(now time.Time) []Window {
	y, m, d := now.Date()
	loc := now.Location()

	today := time.Date(y, m, d, 0, 0, 0, 0, loc)
	tomorrow := today.AddDate(0, 0, 1)
	monthStart := time.Date(y, m, 1, 0, 0, 0, 0, loc)

	return []Window{
		{Label: "Today", From: today, To: tomorrow},
		{Label: "Yesterday", From: today.AddDate(0, 0, -1), To: today},
		{Label: "Last 7 days", From: today.AddDate(0, 0, -6), To: tomorrow},
		{Label: "This month", From: monthStart, To: monthStart.AddDate(0, 1, 0)},
		{Label: "Last month", From: monthStart.AddDate(0, -1, 0), To: monthStart},
	}
}

// Total is the tracked time within one window.
type Total struct {
	Label   string    `json:"label"`
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Seconds int64     `json:"seconds"`
	Display string    `json:"display"`
}

// Aggregator sums recorded durations over a range.
type Aggregator interface {
	AggregateDuration(ctx context.Context, from, to time.Time) (int64, error)
}

// Summarize totals every window for now.
func Summarize(ctx context.Context, agg Aggregator, now time.Time) ([]Total, error) {
	windows := Windows(now)
	out := make([]Total, 0, len(windows))
	for _, w := range windows {
		secs, err := agg.AggregateDuration(ctx, w.From, w.To)
		if err != nil {
			return nil, fmt.Errorf("summing %s: %w", w.Label, err)
		}
		out = append(out, Total{
			Label:   w.Label,
			From:    w.From,
			To:      w.To,
			Seconds: secs,
			Display: FormatHoursMinutes(secs),
		})
	}
	return out, nil
}

// FormatHoursMinutes renders seconds as "3h 07m". Seconds are truncated.
func FormatHoursMinutes(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%dh %02dm", secs/3600, (secs%3600)/60)
}

// FormatClock renders seconds as mm:ss. Minutes keep counting past 59.
func FormatClock(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
