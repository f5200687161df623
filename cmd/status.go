package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/theirongolddev/worklog/internal/cli"
	"github.com/theirongolddev/worklog/internal/daemon"
	"github.com/theirongolddev/worklog/internal/report"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session, counters and pending uploads",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	st, err := newClient().Status(ctx)
	if errors.Is(err, daemon.ErrUnavailable) {
		fmt.Println()
		fmt.Println("  The worklog daemon is not running.")
		fmt.Println()
		fmt.Println("  Start it with:")
		fmt.Println("    worklog daemon --detach")
		fmt.Println()
		return nil
	}
	if err != nil {
		return err
	}

	now := time.Now()
	tr := st.Tracking

	fmt.Println()
	fmt.Println(cli.RenderTitle("WORKLOG STATUS"))
	fmt.Println()

	elapsed := tr.Elapsed
	if elapsed == "" {
		elapsed = report.FormatClock(0)
	}
	pairs := [][2]string{
		{"State", tr.State},
		{"Session", elapsed},
	}
	if tr.StartedAt != nil {
		pairs = append(pairs, [2]string{"Started", cli.FormatTimestamp(*tr.StartedAt, now)})
	}
	pairs = append(pairs,
		[2]string{"Keystrokes", cli.FormatNumber(tr.Counters.Keystrokes)},
		[2]string{"Mouse clicks", cli.FormatNumber(tr.Counters.MouseClicks)},
		[2]string{"Mouse moves", cli.FormatNumber(tr.Counters.MouseMoves)},
		[2]string{"Screenshots", cli.FormatNumber(int64(tr.Counters.Screenshots))},
		[2]string{"Last activity", cli.FormatTimestamp(tr.LastActivity, now)},
		[2]string{"Pending", fmt.Sprintf("%d records", tr.PendingRecords)},
	)
	if tr.RetryQueue > 0 {
		pairs = append(pairs, [2]string{"Unsaved", fmt.Sprintf("%d windows awaiting retry", tr.RetryQueue)})
	}
	if tr.LastSync != nil {
		pairs = append(pairs, [2]string{"Last sync", fmt.Sprintf("%s  %s",
			cli.FormatTimestamp(tr.LastSync.At, now), cli.RenderOutcome(tr.LastSync.Success, tr.LastSync.Message))})
	}
	fmt.Print(cli.RenderKV(pairs))

	if tr.NextFlush != nil {
		period := appCfg.Tracking.FlushPeriod.Duration
		remaining := tr.NextFlush.Sub(now)
		fmt.Println()
		fmt.Printf("  Next save %s  %s\n",
			cli.FormatTimestamp(*tr.NextFlush, now),
			cli.RenderProgressBar(period-remaining, period, 30))
	}
	fmt.Println()
	return nil
}
