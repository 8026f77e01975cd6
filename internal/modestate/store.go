// Package modestate holds the current application mode and keeps it
// persisted through a storage.Storage backend.
package modestate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/R3E-Network/mode_orchestrator/internal/events"
	"github.com/R3E-Network/mode_orchestrator/internal/metrics"
	"github.com/R3E-Network/mode_orchestrator/internal/mode"
	"github.com/R3E-Network/mode_orchestrator/internal/storage"
	"github.com/R3E-Network/mode_orchestrator/pkg/logger"
)

// DefaultKey is the storage key holding the serialized mode.
const DefaultKey = "app_mode"

// Store is the in-memory source of truth for the current mode.
type Store struct {
	mu      sync.RWMutex
	current mode.AppMode

	storage storage.Storage
	key     string
	log     *logger.Logger
	journal events.Journal
	metrics metrics.Recorder
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithJournal sets the event journal.
func WithJournal(j events.Journal) Option {
	return func(s *Store) {
		if j != nil {
			s.journal = j
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New creates a store holding the default mode. Call Load to read the
// persisted value.
func New(backend storage.Storage, opts ...Option) *Store {
	if backend == nil {
		backend = storage.NewMemory()
	}
	s := &Store{
		current: mode.DefaultMode,
		storage: backend,
		key:     DefaultKey,
		log:     logger.NewDefault("modestate"),
		journal: events.NoOpJournal{},
		metrics: metrics.NoOpCollector{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the in-memory mode.
func (s *Store) Current() mode.AppMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Key returns the storage key in use.
func (s *Store) Key() string {
	return s.key
}

// Storage returns the backend.
func (s *Store) Storage() storage.Storage {
	return s.storage
}

// Load reads the persisted mode. A missing, unreadable or invalid record
// leaves the store on the default mode; the failure is logged, never returned.
func (s *Store) Load(ctx context.Context) mode.AppMode {
	loaded := mode.DefaultMode

	raw, err := s.storage.Get(ctx, s.key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.log.WithField("key", s.key).Debug("no persisted mode, using default")
	case err != nil:
		s.log.WithError(err).WithField("key", s.key).Warn("failed to read persisted mode, using default")
		s.metrics.RecordPersistenceFailure("read")
		s.journal.Log(events.Event{
			Type:     events.EventPersistenceReadFailed,
			Severity: events.SeverityWarning,
			Error:    err.Error(),
			Message:  "falling back to default mode",
		})
	default:
		parsed, perr := mode.ParseAppMode(raw)
		if perr != nil {
			s.log.WithError(perr).WithField("key", s.key).Warn("persisted mode is invalid, using default")
			s.metrics.RecordPersistenceFailure("read")
			s.journal.Log(events.Event{
				Type:     events.EventPersistenceReadFailed,
				Severity: events.SeverityWarning,
				Error:    perr.Error(),
				Message:  "corrupt persisted mode",
			})
		} else {
			loaded = parsed
		}
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
	s.metrics.RecordMode(loaded)
	return loaded
}

// Commit makes m the current mode and persists it. A persistence failure is
// logged and counted but does not roll back the in-memory value.
func (s *Store) Commit(ctx context.Context, m mode.AppMode) error {
	if !m.Valid() {
		return fmt.Errorf("commit %q: %w", m, mode.ErrUnknownMode)
	}

	s.mu.Lock()
	previous := s.current
	s.current = m
	s.mu.Unlock()
	s.metrics.RecordMode(m)

	s.journal.Log(events.Event{
		Type: events.EventModeCommitted,
		From: previous,
		To:   m,
	})

	if err := s.storage.Set(ctx, s.key, m.String()); err != nil {
		s.log.WithError(err).WithField("key", s.key).WithField("mode", m.String()).
			Error("failed to persist mode, keeping in-memory value")
		s.metrics.RecordPersistenceFailure("write")
		s.journal.Log(events.Event{
			Type:     events.EventPersistenceWriteFailed,
			Severity: events.SeverityError,
			To:       m,
			Error:    err.Error(),
		})
	}
	return nil
}
