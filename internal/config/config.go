// Package config loads and saves the worklog TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const appName = "worklog"

// Config holds all worklog configuration.
type Config struct {
	Tracking    TrackingConfig    `toml:"tracking"`
	Metrics     MetricsConfig     `toml:"metrics"`
	Screenshots ScreenshotsConfig `toml:"screenshots"`
	Sync        SyncConfig        `toml:"sync"`
	Daemon      DaemonConfig      `toml:"daemon"`
	Appearance  AppearanceConfig  `toml:"appearance"`
}

// TrackingConfig controls the session timer.
type TrackingConfig struct {
	FlushPeriod        Duration `toml:"flush_period"`
	InactivityTimeout  Duration `toml:"inactivity_timeout"`
	ScreenshotInterval Duration `toml:"screenshot_interval"`
}

// MetricsConfig describes the input-metrics process.
type MetricsConfig struct {
	Command      []string `toml:"command"`
	EventsBuffer int      `toml:"events_buffer"`
}

// ScreenshotsConfig describes the capture tool. Command must contain the
// {path} placeholder.
type ScreenshotsConfig struct {
	Dir     string   `toml:"dir,omitempty"`
	Command []string `toml:"command"`
	Timeout Duration `toml:"timeout"`
}

// SyncConfig controls uploads to the remote service.
type SyncConfig struct {
	Endpoint        string   `toml:"endpoint,omitempty"`
	Interval        Duration `toml:"interval"`
	Timeout         Duration `toml:"timeout"`
	CredentialsFile string   `toml:"credentials_file,omitempty"`
}

// DaemonConfig controls the background agent.
type DaemonConfig struct {
	Addr         string `toml:"addr"`
	EventsBuffer int    `toml:"events_buffer"`
}

// AppearanceConfig holds TUI appearance settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// Duration is a time.Duration written as a Go duration string ("10m").
type Duration struct {
	time.Duration
}

// D is shorthand for building a Duration.
func D(d time.Duration) Duration { return Duration{d} }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	d.Duration = v
	return nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Tracking: TrackingConfig{
			FlushPeriod:        D(10 * time.Minute),
			InactivityTimeout:  D(9 * time.Minute),
			ScreenshotInterval: D(3 * time.Minute),
		},
		Metrics: MetricsConfig{
			Command:      []string{"python3", "input_tracker.py"},
			EventsBuffer: 256,
		},
		Screenshots: ScreenshotsConfig{
			Command: []string{"gnome-screenshot", "-f", "{path}"},
			Timeout: D(20 * time.Second),
		},
		Sync: SyncConfig{
			Interval: D(15 * time.Minute),
			Timeout:  D(30 * time.Second),
		},
		Daemon: DaemonConfig{
			Addr:         "127.0.0.1:8797",
			EventsBuffer: 200,
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// Validate rejects settings the agent cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Tracking.FlushPeriod.Duration < time.Minute {
		errs = append(errs, fmt.Errorf("tracking.flush_period must be at least 1m, got %s", c.Tracking.FlushPeriod))
	}
	if c.Tracking.InactivityTimeout.Duration < 0 {
		errs = append(errs, errors.New("tracking.inactivity_timeout must not be negative"))
	}
	if c.Tracking.ScreenshotInterval.Duration < 0 {
		errs = append(errs, errors.New("tracking.screenshot_interval must not be negative"))
	}
	if c.Sync.Interval.Duration < 0 {
		errs = append(errs, errors.New("sync.interval must not be negative"))
	}
	if c.Daemon.Addr == "" {
		errs = append(errs, errors.New("daemon.addr must be set"))
	}
	return errors.Join(errs...)
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName)
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DataDir returns the XDG-compliant data directory.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appName)
}

// DBPath returns the record store location.
func DBPath() string {
	return filepath.Join(DataDir(), appName+".db")
}

// ScreenshotDir returns the configured screenshot directory or the default.
func (c Config) ScreenshotDir() string {
	if c.Screenshots.Dir != "" {
		return c.Screenshots.Dir
	}
	return filepath.Join(DataDir(), "screenshots")
}

// CredentialsPath returns the configured credentials file or the default.
func (c Config) CredentialsPath() string {
	if c.Sync.CredentialsFile != "" {
		return c.Sync.CredentialsFile
	}
	return filepath.Join(ConfigDir(), "credentials.json")
}

// SyncEndpoint returns the upload URL from env var or config, in that order.
func SyncEndpoint(cfg Config) string {
	if u := os.Getenv("WORKLOG_SYNC_ENDPOINT"); u != "" {
		return u
	}
	return cfg.Sync.Endpoint
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", ConfigPath(), err)
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}
