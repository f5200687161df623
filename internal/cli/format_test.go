package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/theirongolddev/worklog/internal/model"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		secs int64
		want string
	}{
		{0, "0s"},
		{45, "45s"},
		{125, "2m"},
		{3725, "1h 2m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.secs); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-4200, "-4,200"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.n); got != tt.want {
			t.Errorf("FormatNumber(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 4, 15, 0, 0, 0, time.Local)
	if got := FormatTimestamp(now.Add(-time.Hour), now); got != "14:00:00" {
		t.Errorf("same day = %q", got)
	}
	if got := FormatTimestamp(now.AddDate(0, 0, -1), now); got != "2026-03-03 15:00" {
		t.Errorf("yesterday = %q", got)
	}
	if got := FormatTimestamp(time.Time{}, now); got != "-" {
		t.Errorf("zero = %q", got)
	}
}

func TestFormatOptionalAndStatus(t *testing.T) {
	name := "Website"
	empty := ""
	if FormatOptional(nil) != "-" || FormatOptional(&empty) != "-" || FormatOptional(&name) != "Website" {
		t.Fatal("FormatOptional mismatch")
	}
	if !strings.Contains(FormatSyncStatus(model.Synced), "synced") {
		t.Fatal("synced status text missing")
	}
	if !strings.Contains(FormatSyncStatus(model.Pending), "pending") {
		t.Fatal("pending status text missing")
	}
}
