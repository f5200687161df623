package session

import "time"

// NextBoundary returns the first wall-clock instant strictly after now that
// falls on a multiple of period, counted from local midnight. A flush at
// 10:00:00 with a 10 minute period is therefore due at 10:10:00, and a start
// at 10:03:12 flushes at 10:10:00.
func NextBoundary(now time.Time, period time.Duration) time.Time {
	if period <= 0 {
		return now
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	elapsed := now.Sub(midnight)
	return midnight.Add((elapsed/period + 1) * period)
}
