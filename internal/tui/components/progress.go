package components

import (
	"fmt"
	"time"

	"github.com/theirongolddev/worklog/internal/tui/theme"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// ColorForPct shades a fill level from accent to orange as it nears full.
func ColorForPct(pct float64) string {
	t := theme.Active
	switch {
	case pct >= 0.9:
		return string(t.Orange)
	case pct >= 0.5:
		return string(t.Yellow)
	default:
		return string(t.Accent)
	}
}

// FlushBar renders progress through the current flush window with the
// time remaining until the next save.
func FlushBar(remaining, period time.Duration, width int) string {
	t := theme.Active

	pct := 0.0
	if period > 0 {
		pct = 1 - float64(remaining)/float64(period)
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 1 {
		pct = 1
	}
	if remaining < 0 {
		remaining = 0
	}

	barW := width - 14
	if barW < 8 {
		barW = 8
	}

	bar := progress.New(
		progress.WithSolidFill(ColorForPct(pct)),
		progress.WithWidth(barW),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(t.TextDim)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	return bar.ViewAs(pct) + labelStyle.Render(" save in "+formatCountdown(remaining))
}

func formatCountdown(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", m, s)
}
