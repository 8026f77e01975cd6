// Package observer fans mode and transition-state changes out to subscribers.
package observer

import (
	"fmt"
	"sync"

	"github.com/R3E-Network/mode_orchestrator/internal/events"
	"github.com/R3E-Network/mode_orchestrator/internal/metrics"
	"github.com/R3E-Network/mode_orchestrator/internal/mode"
	"github.com/R3E-Network/mode_orchestrator/pkg/logger"
)

// Channel names used in logs and metrics.
const (
	ChannelMode       = "mode"
	ChannelTransition = "transition"
)

// ModeFunc receives committed mode changes.
type ModeFunc func(mode.AppMode)

// TransitionFunc receives transition state changes.
type TransitionFunc func(mode.TransitionState)

type modeEntry struct {
	id int64
	fn ModeFunc
}

type transitionEntry struct {
	id int64
	fn TransitionFunc
}

// Hub dispatches notifications synchronously, in registration order. A
// panicking subscriber is recovered and logged and the remaining subscribers
// are still notified.
type Hub struct {
	mu          sync.RWMutex
	nextID      int64
	modeSubs    []modeEntry
	transitions []transitionEntry

	log     *logger.Logger
	journal events.Journal
	metrics metrics.Recorder
}

// NewHub creates a hub with no subscribers.
func NewHub(log *logger.Logger, journal events.Journal, rec metrics.Recorder) *Hub {
	if log == nil {
		log = logger.NewDefault("observer")
	}
	if journal == nil {
		journal = events.NoOpJournal{}
	}
	if rec == nil {
		rec = metrics.NoOpCollector{}
	}
	return &Hub{log: log, journal: journal, metrics: rec}
}

// SubscribeMode registers fn for committed mode changes.
func (h *Hub) SubscribeMode(fn ModeFunc) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.modeSubs = append(h.modeSubs, modeEntry{id: id, fn: fn})
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.modeSubs {
			if s.id == id {
				h.modeSubs = append(h.modeSubs[:i:i], h.modeSubs[i+1:]...)
				return
			}
		}
	}
}

// SubscribeTransition registers fn for transition state changes.
func (h *Hub) SubscribeTransition(fn TransitionFunc) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.transitions = append(h.transitions, transitionEntry{id: id, fn: fn})
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.transitions {
			if s.id == id {
				h.transitions = append(h.transitions[:i:i], h.transitions[i+1:]...)
				return
			}
		}
	}
}

// NotifyMode delivers m to every mode subscriber.
func (h *Hub) NotifyMode(m mode.AppMode) {
	h.mu.RLock()
	subs := make([]modeEntry, len(h.modeSubs))
	copy(subs, h.modeSubs)
	h.mu.RUnlock()

	for _, s := range subs {
		h.deliver(ChannelMode, func() { s.fn(m) })
	}
}

// NotifyTransition delivers s to every transition subscriber.
func (h *Hub) NotifyTransition(state mode.TransitionState) {
	h.mu.RLock()
	subs := make([]transitionEntry, len(h.transitions))
	copy(subs, h.transitions)
	h.mu.RUnlock()

	for _, s := range subs {
		h.deliver(ChannelTransition, func() { s.fn(state) })
	}
}

func (h *Hub) deliver(channel string, call func()) {
	defer func() {
		if p := recover(); p != nil {
			h.log.WithField("channel", channel).WithField("panic", fmt.Sprint(p)).
				Error("subscriber panicked")
			h.metrics.RecordSubscriberPanic(channel)
			h.journal.Log(events.Event{
				Type:     events.EventSubscriberPanicked,
				Severity: events.SeverityError,
				Error:    fmt.Sprint(p),
				Metadata: map[string]string{"channel": channel},
			})
		}
	}()
	call()
}

// Counts returns the number of mode and transition subscribers.
func (h *Hub) Counts() (modeSubs, transitionSubs int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.modeSubs), len(h.transitions)
}
