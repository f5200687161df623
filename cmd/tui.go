package cmd

import (
	"fmt"

	"github.com/theirongolddev/worklog/internal/tui"
	"github.com/theirongolddev/worklog/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the live dashboard for the running daemon",
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(_ *cobra.Command, _ []string) error {
	theme.SetActive(appCfg.Appearance.Theme)

	// Without a forced profile lipgloss may pick Ascii and drop all color.
	lipgloss.SetColorProfile(termenv.TrueColor)

	app := tui.NewApp(newClient(), appCfg.Tracking.FlushPeriod.Duration)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
