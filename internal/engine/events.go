package engine

import (
	"sync"
	"time"
)

// Event types published to subscribers.
const (
	EventState       = "state"
	EventTick        = "tick"
	EventCounters    = "counters"
	EventScreenshot  = "screenshot"
	EventInactivity  = "inactivity"
	EventFlush       = "flush"
	EventFlushFailed = "flush_failed"
	EventSync        = "sync"
)

// Counters is the since-flush accumulation shown to the user.
type Counters struct {
	Keystrokes  int64 `json:"keystrokes"`
	MouseMoves  int64 `json:"mouse_moves"`
	MouseClicks int64 `json:"mouse_clicks"`
	Screenshots int   `json:"screenshots"`
}

// Event is one notification for the UI.
type Event struct {
	ID         int64     `json:"id"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	State      string    `json:"state,omitempty"`
	Elapsed    string    `json:"elapsed,omitempty"`
	Counters   *Counters `json:"counters,omitempty"`
	Screenshot string    `json:"screenshot,omitempty"`
	RecordID   int64     `json:"record_id,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// hub keeps a bounded ring of recent events and fans new ones out to
// subscribers. Slow subscribers miss events rather than block publishers.
type hub struct {
	size int

	mu      sync.RWMutex
	nextID  int64
	events  []Event
	nextSub int
	subs    map[int]chan Event
}

func newHub(size int) *hub {
	if size < 1 {
		size = 200
	}
	return &hub{size: size, subs: make(map[int]chan Event)}
}

// publish assigns the next id and delivers ev. Events with keep unset are
// delivered live but not retained in the ring.
func (h *hub) publish(ev Event, keep bool) Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	ev.ID = h.nextID
	if keep {
		h.events = append(h.events, ev)
		if len(h.events) > h.size {
			h.events = h.events[len(h.events)-h.size:]
		}
	}

	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return ev
}

func (h *hub) recent() []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Event, len(h.events))
	copy(out, h.events)
	return out
}

func (h *hub) subscribe(buffer int) (int, <-chan Event) {
	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSub++
	h.subs[h.nextSub] = ch
	return h.nextSub, ch
}

func (h *hub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

func (h *hub) subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
