package events

import (
	"sync"
	"testing"

	"github.com/R3E-Network/mode_orchestrator/internal/mode"
)

func TestRingBuffer_Log(t *testing.T) {
	rb := NewRingBuffer(10)

	rb.Log(Event{
		Type:    EventTransitionStarted,
		From:    mode.ModeStandard,
		To:      mode.ModeGame,
		Message: "switching",
	})

	if rb.Count() != 1 {
		t.Errorf("Count() = %d, want 1", rb.Count())
	}

	recent := rb.Recent(1)
	if len(recent) != 1 {
		t.Fatalf("Recent(1) len = %d, want 1", len(recent))
	}
	if recent[0].To != mode.ModeGame {
		t.Errorf("To = %q, want game", recent[0].To)
	}
	if recent[0].ID == "" {
		t.Error("ID should be auto-generated")
	}
	if recent[0].Timestamp.IsZero() {
		t.Error("Timestamp should be auto-set")
	}
	if recent[0].Severity != SeverityInfo {
		t.Errorf("Severity = %q, want info", recent[0].Severity)
	}
}

func TestRingBuffer_Overflow(t *testing.T) {
	rb := NewRingBuffer(5)

	for i := 0; i < 10; i++ {
		rb.Log(Event{Type: EventModeCommitted, Message: string(rune('A' + i))})
	}

	if rb.Count() != 5 {
		t.Errorf("Count() = %d, want 5 (capped)", rb.Count())
	}

	recent := rb.Recent(5)
	if len(recent) != 5 {
		t.Fatalf("Recent(5) len = %d, want 5", len(recent))
	}
	if recent[0].Message != "J" {
		t.Errorf("Most recent message = %q, want 'J'", recent[0].Message)
	}
	if recent[4].Message != "F" {
		t.Errorf("Oldest message = %q, want 'F'", recent[4].Message)
	}
}

func TestRingBuffer_RecentEdgeCases(t *testing.T) {
	rb := NewRingBuffer(10)
	if rb.Recent(3) != nil {
		t.Error("Recent on empty buffer should be nil")
	}

	rb.Log(Event{Type: EventModeCommitted})
	if rb.Recent(0) != nil {
		t.Error("Recent(0) should return nil")
	}
	if rb.Recent(-1) != nil {
		t.Error("Recent(-1) should return nil")
	}
	if got := len(rb.Recent(100)); got != 1 {
		t.Errorf("Recent(100) len = %d, want 1", got)
	}
}

func TestRingBuffer_RecentByType(t *testing.T) {
	rb := NewRingBuffer(100)

	rb.Log(Event{Type: EventTransitionStarted})
	rb.Log(Event{Type: EventCleanupFailed, Handler: "a"})
	rb.Log(Event{Type: EventTransitionCompleted})
	rb.Log(Event{Type: EventCleanupFailed, Handler: "b"})

	failed := rb.RecentByType(EventCleanupFailed, 10)
	if len(failed) != 2 {
		t.Fatalf("len = %d, want 2", len(failed))
	}
	if failed[0].Handler != "b" || failed[1].Handler != "a" {
		t.Errorf("order = %q,%q, want b,a", failed[0].Handler, failed[1].Handler)
	}
}

func TestRingBuffer_SubscribeFiltered(t *testing.T) {
	rb := NewRingBuffer(10)

	var mu sync.Mutex
	var got []EventType
	unsubscribe := rb.SubscribeFiltered(
		func(e Event) bool { return e.Type == EventTransitionFailed },
		func(e Event) {
			mu.Lock()
			got = append(got, e.Type)
			mu.Unlock()
		},
	)

	rb.Log(Event{Type: EventTransitionStarted})
	rb.Log(Event{Type: EventTransitionFailed})
	unsubscribe()
	rb.Log(Event{Type: EventTransitionFailed})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Errorf("handler called %d times, want 1", len(got))
	}
}

func TestNoOpJournal(t *testing.T) {
	var j Journal = NoOpJournal{}
	j.Log(Event{Type: EventModeCommitted})
	j.Subscribe(func(Event) {})()
	if j.Recent(10) != nil {
		t.Error("NoOpJournal should not retain events")
	}
}
