package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/theirongolddev/worklog/internal/cli"
	"github.com/theirongolddev/worklog/internal/config"
	"github.com/theirongolddev/worklog/internal/daemon"
	"github.com/theirongolddev/worklog/internal/report"
	"github.com/theirongolddev/worklog/internal/screenshot"
	"github.com/theirongolddev/worklog/internal/store"

	"github.com/spf13/cobra"
)

var (
	flagReportsLimit int
	flagReportsShots bool
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List saved records, newest first",
	RunE:  runReports,
}

var activeCmd = &cobra.Command{
	Use:   "active",
	Short: "Show tracked time for today, yesterday, this week and month",
	RunE:  runActive,
}

func init() {
	reportsCmd.Flags().IntVarP(&flagReportsLimit, "limit", "n", 50, "Maximum records to show (0 for all)")
	reportsCmd.Flags().BoolVar(&flagReportsShots, "screenshots", false, "List screenshot paths under each record")
	rootCmd.AddCommand(reportsCmd, activeCmd)
}

// loadReports asks the daemon, falling back to reading the store directly
// when no daemon is running.
func loadReports(ctx context.Context) ([]daemon.ReportRecord, error) {
	recs, err := newClient().Reports(ctx)
	if !errors.Is(err, daemon.ErrUnavailable) {
		return recs, err
	}

	st, err := store.Open(config.DBPath())
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	dir := appCfg.ScreenshotDir()
	for rec, err := range st.Records(ctx) {
		if err != nil {
			return nil, err
		}
		recs = append(recs, daemon.ReportRecord{
			SessionRecord:   rec,
			ScreenshotPaths: screenshot.Resolve(dir, rec.ScreenshotRefs),
		})
		if flagReportsLimit > 0 && len(recs) >= flagReportsLimit {
			break
		}
	}
	return recs, nil
}

func runReports(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	recs, err := loadReports(ctx)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("\n  No records yet.")
		return nil
	}
	if flagReportsLimit > 0 && len(recs) > flagReportsLimit {
		recs = recs[:flagReportsLimit]
	}

	now := time.Now()
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			cli.FormatTimestamp(r.StartTime, now),
			cli.FormatDuration(r.DurationSeconds),
			cli.FormatCount(r.Keystrokes),
			cli.FormatCount(r.MouseClicks),
			cli.FormatCount(r.MouseMoves),
			cli.FormatCount(int64(len(r.ScreenshotPaths))),
			cli.FormatOptional(r.ProjectName),
			cli.FormatSyncStatus(r.SyncStatus),
		})
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("RECORDS  %d shown", len(recs))))
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Start", "Duration", "Keys", "Clicks", "Moves", "Shots", "Project", "Sync"},
		Rows:    rows,
	}))

	if flagReportsShots {
		for _, r := range recs {
			if len(r.ScreenshotPaths) == 0 {
				continue
			}
			fmt.Printf("\n  #%d %s\n", r.ID, cli.FormatTimestamp(r.StartTime, now))
			for _, p := range r.ScreenshotPaths {
				fmt.Printf("    %s\n", p)
			}
		}
	}
	fmt.Println()
	return nil
}

func runActive(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	totals, err := newClient().ActiveTimes(ctx)
	if errors.Is(err, daemon.ErrUnavailable) {
		totals, err = localActiveTimes(ctx)
	}
	if err != nil {
		return err
	}

	rows := make([][]string, len(totals))
	for i, t := range totals {
		rows[i] = []string{t.Label, t.Display, cli.FormatDuration(t.Seconds)}
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("ACTIVE TIME"))
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Window", "Tracked", "Exact"},
		Rows:    rows,
	}))
	fmt.Println()
	return nil
}

func localActiveTimes(ctx context.Context) ([]report.Total, error) {
	st, err := store.Open(config.DBPath())
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()
	return report.Summarize(ctx, st, time.Now())
}
