package tui

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/theirongolddev/worklog/internal/config"
	"github.com/theirongolddev/worklog/internal/tui/theme"

	"github.com/charmbracelet/huh"
)

// SetupValues holds the answers collected by the setup form.
type SetupValues struct {
	Endpoint           string
	FlushPeriod        time.Duration
	InactivityTimeout  time.Duration
	ScreenshotInterval time.Duration
	Theme              string
}

// NewSetupValues seeds the form from cfg.
func NewSetupValues(cfg config.Config) *SetupValues {
	return &SetupValues{
		Endpoint:           cfg.Sync.Endpoint,
		FlushPeriod:        cfg.Tracking.FlushPeriod.Duration,
		InactivityTimeout:  cfg.Tracking.InactivityTimeout.Duration,
		ScreenshotInterval: cfg.Tracking.ScreenshotInterval.Duration,
		Theme:              cfg.Appearance.Theme,
	}
}

// Apply copies the answers into cfg.
func (v *SetupValues) Apply(cfg *config.Config) {
	cfg.Sync.Endpoint = strings.TrimSpace(v.Endpoint)
	cfg.Tracking.FlushPeriod = config.D(v.FlushPeriod)
	cfg.Tracking.InactivityTimeout = config.D(v.InactivityTimeout)
	cfg.Tracking.ScreenshotInterval = config.D(v.ScreenshotInterval)
	cfg.Appearance.Theme = v.Theme
}

// NewSetupForm builds the first-run wizard writing into vals.
func NewSetupForm(vals *SetupValues) *huh.Form {
	themeOpts := make([]huh.Option[string], 0, len(theme.All))
	for _, name := range theme.Names() {
		themeOpts = append(themeOpts, huh.NewOption(name, name))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to worklog").
				Description("Tracked time is saved locally and uploaded in batches.\n\nPress Enter to continue."),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Upload endpoint").
				Description("Where pending records are sent. Leave blank to keep records local.").
				Placeholder("https://example.com/api/v1/tracking/batch").
				Value(&vals.Endpoint).
				Validate(validateEndpoint),

			huh.NewSelect[time.Duration]().
				Title("Save a record every").
				Options(durationOptions(5*time.Minute, 10*time.Minute, 15*time.Minute, 30*time.Minute)...).
				Value(&vals.FlushPeriod),

			huh.NewSelect[time.Duration]().
				Title("Stop tracking after no input for").
				Options(append([]huh.Option[time.Duration]{huh.NewOption("never", time.Duration(0))},
					durationOptions(5*time.Minute, 9*time.Minute, 15*time.Minute, 30*time.Minute)...)...).
				Value(&vals.InactivityTimeout),

			huh.NewSelect[time.Duration]().
				Title("Take a screenshot every").
				Options(append([]huh.Option[time.Duration]{huh.NewOption("never", time.Duration(0))},
					durationOptions(1*time.Minute, 3*time.Minute, 5*time.Minute, 10*time.Minute)...)...).
				Value(&vals.ScreenshotInterval),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themeOpts...).
				Value(&vals.Theme),
		),
	).WithTheme(huh.ThemeDracula())
}

func durationOptions(ds ...time.Duration) []huh.Option[time.Duration] {
	opts := make([]huh.Option[time.Duration], len(ds))
	for i, d := range ds {
		opts[i] = huh.NewOption(fmt.Sprintf("%d minutes", int(d.Minutes())), d)
	}
	return opts
}

func validateEndpoint(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("enter an http(s) URL")
	}
	return nil
}
