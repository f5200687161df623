// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/theirongolddev/worklog/internal/model"
)

// FormatDuration formats seconds into a human-readable duration.
// e.g., 3725 -> "1h 2m", 125 -> "2m", 45 -> "45s"
func FormatDuration(secs int64) string {
	if secs <= 0 {
		return "0s"
	}

	hours := secs / 3600
	mins := (secs % 3600) / 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	if mins > 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%ds", secs)
}

// FormatNumber adds comma separators to an integer.
// e.g., 1234567 -> "1,234,567"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}

	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// FormatTimestamp renders t in local time, dropping the date when it is
// today relative to now.
func FormatTimestamp(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	t = t.Local()
	ny, nm, nd := now.Local().Date()
	if y, m, d := t.Date(); y == ny && m == nm && d == nd {
		return t.Format("15:04:05")
	}
	return t.Format("2006-01-02 15:04")
}

// FormatOptional renders a nullable string column.
func FormatOptional(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

// FormatSyncStatus renders a sync status with a color hint.
func FormatSyncStatus(s model.SyncStatus) string {
	if s == model.Synced {
		return okStyle.Render(s.String())
	}
	return warnStyle.Render(s.String())
}

// FormatCount renders a counter, showing zero as a dim dash.
func FormatCount(n int64) string {
	if n == 0 {
		return dimStyle.Render("-")
	}
	return FormatNumber(n)
}
