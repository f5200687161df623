// Package cmd implements the worklog CLI commands.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/theirongolddev/worklog/internal/config"
	"github.com/theirongolddev/worklog/internal/daemon"

	"github.com/spf13/cobra"
)

var (
	flagDebug bool
	flagQuiet bool
	flagAddr  string

	// appCfg is loaded once before any command runs.
	appCfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "worklog",
	Short: "Local activity tracker",
	Long:  "Track working time and input activity locally, and upload it in batches.",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		appCfg = cfg
		if flagAddr == "" {
			flagAddr = cfg.Daemon.Addr
		}
		setupLogger(os.Stderr, false)
		return nil
	},
	RunE:          runStatus,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress informational output")
	rootCmd.PersistentFlags().StringVar(&flagAddr, "addr", "", "Daemon address (default from config)")
}

// setupLogger installs the default slog logger. Detached daemons log JSON.
func setupLogger(w io.Writer, asJSON bool) *slog.Logger {
	level := slog.LevelInfo
	if flagDebug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler = slog.NewTextHandler(w, opts)
	if asJSON {
		h = slog.NewJSONHandler(w, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func newClient() *daemon.Client {
	return daemon.NewClient(flagAddr)
}

func infof(format string, args ...any) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
