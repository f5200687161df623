package uploader

import (
	"strings"

	"github.com/theirongolddev/worklog/internal/model"
)

// wireTimeLayout is the remote's datetime column format, always UTC.
const wireTimeLayout = "2006-01-02 15:04:05"

// Batch is the upload request body.
type Batch struct {
	Data []Entry `json:"data"`
}

// Entry is one session record as the remote stores it.
type Entry struct {
	StartTime     string  `json:"starttime"`
	TimerSeconds  int64   `json:"timerseconds"`
	Keystrokes    int64   `json:"keystrokes"`
	MouseMovement int64   `json:"mousemovement"`
	MouseClick    int64   `json:"mouseclick"`
	Screenshots   *string `json:"screenshots"`
	ProjectID     *string `json:"project_id"`
	ProjectName   *string `json:"project_name"`
	UserID        *string `json:"user_id"`
}

// Response is the remote's reply. Only Status "success" counts.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// NewEntry converts a stored record to its wire form.
func NewEntry(rec model.SessionRecord) Entry {
	e := Entry{
		StartTime:     rec.StartTime.UTC().Format(wireTimeLayout),
		TimerSeconds:  rec.DurationSeconds,
		Keystrokes:    rec.Keystrokes,
		MouseMovement: rec.MouseMoves,
		MouseClick:    rec.MouseClicks,
		ProjectID:     rec.ProjectID,
		ProjectName:   rec.ProjectName,
		UserID:        rec.UserID,
	}
	if len(rec.ScreenshotRefs) > 0 {
		s := strings.Join(rec.ScreenshotRefs, ",")
		e.Screenshots = &s
	}
	return e
}
