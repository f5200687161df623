package engine

import "testing"

func TestHubRingBuffer(t *testing.T) {
	h := newHub(2)

	h.publish(Event{Type: EventState}, true)
	h.publish(Event{Type: EventFlush}, true)
	h.publish(Event{Type: EventTick}, false)
	h.publish(Event{Type: EventSync}, true)

	events := h.recent()
	if len(events) != 2 {
		t.Fatalf("events len = %d, want 2", len(events))
	}
	if events[0].ID != 2 || events[1].ID != 4 {
		t.Fatalf("events ring contains IDs [%d, %d], want [2, 4]", events[0].ID, events[1].ID)
	}
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	h := newHub(10)
	id, ch := h.subscribe(1)

	for i := 0; i < 5; i++ {
		h.publish(Event{Type: EventFlush}, true)
	}
	ev := <-ch
	if ev.ID != 1 {
		t.Fatalf("first delivered ID = %d, want 1", ev.ID)
	}

	h.unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	if h.subscribers() != 0 {
		t.Fatalf("subscribers = %d, want 0", h.subscribers())
	}
	h.unsubscribe(id)
}
