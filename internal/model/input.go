package model

// InputKind names a counter reported by the input metrics source.
type InputKind string

const (
	Keystroke  InputKind = "keystroke"
	MouseClick InputKind = "mouseclick"
	MouseMove  InputKind = "mousemove"
)

// InputEvent carries the source's cumulative count for one kind.
// Counts are totals since the source last reset, not deltas.
type InputEvent struct {
	Type  InputKind `json:"type"`
	Count int64     `json:"count"`
}

// Valid reports whether the event names a known counter with a sane count.
func (e InputEvent) Valid() bool {
	switch e.Type {
	case Keystroke, MouseClick, MouseMove:
		return e.Count >= 0
	}
	return false
}
