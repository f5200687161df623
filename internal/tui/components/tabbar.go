package components

import (
	"strings"

	"github.com/theirongolddev/worklog/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// Tab is a single entry in the tab bar.
type Tab struct {
	Name   string
	Key    rune
	KeyPos int // index of the shortcut letter in Name
}

// Tabs defines the available tabs in display order.
var Tabs = []Tab{
	{Name: "Live", Key: 'l', KeyPos: 0},
	{Name: "Reports", Key: 'r', KeyPos: 0},
	{Name: "Active times", Key: 'a', KeyPos: 0},
}

// RenderTabBar renders a single row of tabs with the given one active.
func RenderTabBar(activeIdx int) string {
	parts := make([]string, len(Tabs))
	for i, tab := range Tabs {
		parts[i] = renderTab(tab, i == activeIdx)
	}
	return strings.Join(parts, " ")
}

// TabVisualWidth returns the rendered width of a tab, matching RenderTabBar.
func TabVisualWidth(tab Tab, active bool) int {
	return lipgloss.Width(renderTab(tab, active))
}

func renderTab(tab Tab, active bool) string {
	t := theme.Active

	if active {
		return lipgloss.NewStyle().
			Foreground(t.AccentBright).
			Bold(true).
			Padding(0, 1).
			Render(tab.Name)
	}

	inactive := lipgloss.NewStyle().Foreground(t.TextMuted)
	key := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	pad := lipgloss.NewStyle().Padding(0, 1)

	if tab.KeyPos < 0 || tab.KeyPos >= len(tab.Name) {
		return pad.Render(inactive.Render(tab.Name))
	}
	return pad.Render(inactive.Render(tab.Name[:tab.KeyPos]) +
		key.Render(tab.Name[tab.KeyPos:tab.KeyPos+1]) +
		inactive.Render(tab.Name[tab.KeyPos+1:]))
}

// TabIdxByKey returns the tab index for a shortcut key, or -1.
func TabIdxByKey(key rune) int {
	for i, tab := range Tabs {
		if tab.Key == key {
			return i
		}
	}
	return -1
}
