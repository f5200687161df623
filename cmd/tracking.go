package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/theirongolddev/worklog/internal/cli"
	"github.com/theirongolddev/worklog/internal/model"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start tracking time",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runControl(cmd.Context(), newClient().StartTracking)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop tracking and save the current window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runControl(cmd.Context(), newClient().StopTracking)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload pending records now",
	RunE: func(cmd *cobra.Command, _ []string) error {
		infof("  Uploading pending records...\n")
		return runControl(cmd.Context(), newClient().Sync)
	},
}

func init() {
	rootCmd.AddCommand(startCmd, stopCmd, syncCmd)
}

// runControl prints a control outcome. An unsuccessful outcome is reported
// but is not a command failure; only an unreachable daemon is.
func runControl(ctx context.Context, fn func(context.Context) (model.Outcome, error)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	out, err := fn(ctx)
	if err != nil {
		return err
	}
	fmt.Println("  " + cli.RenderOutcome(out.Success, out.Message))
	return nil
}
