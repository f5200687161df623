// Package model defines domain types for tracked work sessions.
package model

import (
	"fmt"
	"time"
)

// SyncStatus is the remote-delivery status of a SessionRecord.
// It only ever moves from Pending to Synced.
type SyncStatus int

const (
	Pending SyncStatus = iota
	Synced
)

func (s SyncStatus) String() string {
	if s == Synced {
		return "synced"
	}
	return "pending"
}

// Snapshot is the accumulation window handed to the store at a flush.
type Snapshot struct {
	StartTime       time.Time
	DurationSeconds int64
	Keystrokes      int64
	MouseMoves      int64
	MouseClicks     int64
	ScreenshotRefs  []string

	ProjectID   *string
	ProjectName *string
	UserID      *string
}

// IsEmpty reports whether the window carries nothing worth persisting.
func (s Snapshot) IsEmpty() bool {
	return s.DurationSeconds == 0 &&
		s.Keystrokes == 0 &&
		s.MouseMoves == 0 &&
		s.MouseClicks == 0 &&
		len(s.ScreenshotRefs) == 0
}

// SessionRecord is one persisted interval between two flush boundaries.
type SessionRecord struct {
	ID              int64      `json:"id"`
	StartTime       time.Time  `json:"start_time"`
	DurationSeconds int64      `json:"duration_seconds"`
	Keystrokes      int64      `json:"keystrokes"`
	MouseMoves      int64      `json:"mouse_moves"`
	MouseClicks     int64      `json:"mouse_clicks"`
	ScreenshotRefs  []string   `json:"screenshot_refs"`
	ProjectID       *string    `json:"project_id,omitempty"`
	ProjectName     *string    `json:"project_name,omitempty"`
	UserID          *string    `json:"user_id,omitempty"`
	SyncStatus      SyncStatus `json:"sync_status"`
}

// Project is a locally known project the user can track time against.
type Project struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
}

// Outcome is the structured result returned across the control surface.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MarshalText encodes the status as "pending" or "synced".
func (s SyncStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the forms produced by MarshalText.
func (s *SyncStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "synced":
		*s = Synced
	case "pending", "":
		*s = Pending
	default:
		return fmt.Errorf("unknown sync status %q", b)
	}
	return nil
}
