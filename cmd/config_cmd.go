package cmd

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/worklog/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

var configSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write the effective configuration to the config file",
	RunE:  runConfigSave,
}

func init() {
	configCmd.AddCommand(configSaveCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg := appCfg

	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [Tracking]")
	fmt.Printf("    Flush period:        %s\n", cfg.Tracking.FlushPeriod)
	fmt.Printf("    Inactivity timeout:  %s\n", disabledIfZero(cfg.Tracking.InactivityTimeout))
	fmt.Printf("    Screenshot interval: %s\n", disabledIfZero(cfg.Tracking.ScreenshotInterval))
	fmt.Println()

	fmt.Println("  [Metrics]")
	fmt.Printf("    Command: %s\n", strings.Join(cfg.Metrics.Command, " "))
	fmt.Println()

	fmt.Println("  [Screenshots]")
	fmt.Printf("    Directory: %s\n", cfg.ScreenshotDir())
	fmt.Printf("    Command:   %s\n", strings.Join(cfg.Screenshots.Command, " "))
	fmt.Println()

	fmt.Println("  [Sync]")
	if endpoint := config.SyncEndpoint(cfg); endpoint != "" {
		fmt.Printf("    Endpoint:    %s\n", endpoint)
	} else {
		fmt.Println("    Endpoint:    not configured (records stay local)")
	}
	fmt.Printf("    Interval:    %s\n", disabledIfZero(cfg.Sync.Interval))
	fmt.Printf("    Credentials: %s\n", cfg.CredentialsPath())
	fmt.Println()

	fmt.Println("  [Daemon]")
	fmt.Printf("    Address: %s\n", cfg.Daemon.Addr)
	fmt.Printf("    Records: %s\n", config.DBPath())
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  Run `worklog setup` to reconfigure.")
	return nil
}

func runConfigSave(_ *cobra.Command, _ []string) error {
	if err := config.Save(appCfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("  Saved to %s\n", config.ConfigPath())
	return nil
}

func disabledIfZero(d config.Duration) string {
	if d.Duration == 0 {
		return "disabled"
	}
	return d.String()
}
