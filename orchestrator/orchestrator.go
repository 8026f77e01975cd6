// Package orchestrator is the entry point for applications that switch
// between a standard mode and a game mode.
//
// A Service owns one mode store, one cleanup registry, one observer hub and
// one transition engine. Construct as many independent instances as needed;
// nothing is shared between them.
package orchestrator

import (
	"context"

	"github.com/R3E-Network/mode_orchestrator/internal/cleanup"
	"github.com/R3E-Network/mode_orchestrator/internal/events"
	"github.com/R3E-Network/mode_orchestrator/internal/facade"
	"github.com/R3E-Network/mode_orchestrator/internal/metrics"
	"github.com/R3E-Network/mode_orchestrator/internal/mode"
	"github.com/R3E-Network/mode_orchestrator/internal/modestate"
	"github.com/R3E-Network/mode_orchestrator/internal/observer"
	"github.com/R3E-Network/mode_orchestrator/internal/storage"
	"github.com/R3E-Network/mode_orchestrator/internal/transition"
	"github.com/R3E-Network/mode_orchestrator/pkg/logger"
)

// Re-exported types so callers need a single import.
type (
	AppMode         = mode.AppMode
	TransitionState = mode.TransitionState
	CleanupHandler  = cleanup.Handler
	Options         = transition.Options
	TransitionError = transition.TransitionError
	View            = facade.View
)

const (
	ModeStandard = mode.ModeStandard
	ModeGame     = mode.ModeGame

	StateIdle          = mode.StateIdle
	StateTransitioning = mode.StateTransitioning
	StateCompleted     = mode.StateCompleted
)

var (
	ErrInvalidMode          = transition.ErrInvalidMode
	ErrTransitionInProgress = transition.ErrTransitionInProgress
	ErrClosed               = transition.ErrClosed
)

// Deps are optional collaborators. Zero values get in-memory defaults.
type Deps struct {
	Storage storage.Storage
	Logger  *logger.Logger
	Journal events.Journal

	// Metrics defaults to a fresh Collector so Metrics() is always usable.
	Metrics *metrics.Collector
}

// Config tunes a Service.
type Config struct {
	StorageKey         string
	Transition         transition.Config
	CleanupConcurrency int
	JournalSize        int
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		StorageKey:  modestate.DefaultKey,
		Transition:  transition.DefaultConfig(),
		JournalSize: 256,
	}
}

// Service is a mode orchestrator instance.
type Service struct {
	log      *logger.Logger
	journal  events.Journal
	metrics  *metrics.Collector
	store    *modestate.Store
	registry *cleanup.Registry
	hub      *observer.Hub
	engine   *transition.Engine
	facade   *facade.Facade
}

// New wires a Service and loads the persisted mode. A missing or unreadable
// record leaves the service in standard mode.
func New(ctx context.Context, deps Deps, cfg Config) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewDefault("orchestrator")
	}
	journal := deps.Journal
	if journal == nil {
		journal = events.NewRingBuffer(cfg.JournalSize)
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NewCollector("")
	}

	store := modestate.New(deps.Storage,
		modestate.WithKey(cfg.StorageKey),
		modestate.WithLogger(log.Named("modestate")),
		modestate.WithJournal(journal),
		modestate.WithMetrics(collector),
	)
	registry := cleanup.NewRegistry(
		cleanup.Config{MaxConcurrency: cfg.CleanupConcurrency},
		log.Named("cleanup"), journal, collector,
	)
	hub := observer.NewHub(log.Named("observer"), journal, collector)

	loaded := store.Load(ctx)

	engine := transition.New(cfg.Transition, transition.Deps{
		Store:    store,
		Registry: registry,
		Hub:      hub,
		Journal:  journal,
		Metrics:  collector,
		Logger:   log.Named("transition"),
	})

	log.WithField("mode", loaded.String()).Info("mode orchestrator ready")

	return &Service{
		log:      log,
		journal:  journal,
		metrics:  collector,
		store:    store,
		registry: registry,
		hub:      hub,
		engine:   engine,
		facade:   facade.New(engine, hub, log.Named("facade")),
	}
}

// GetCurrentMode returns the committed mode.
func (s *Service) GetCurrentMode() AppMode {
	return s.store.Current()
}

// GetTransitionState returns the transition state.
func (s *Service) GetTransitionState() TransitionState {
	return s.engine.State()
}

// SwitchMode transitions to target. See transition.Engine.SwitchMode.
func (s *Service) SwitchMode(ctx context.Context, target AppMode, opts Options) error {
	return s.engine.SwitchMode(ctx, target, opts)
}

// ToggleMode transitions to the other mode.
func (s *Service) ToggleMode(ctx context.Context, opts Options) error {
	return s.engine.ToggleMode(ctx, opts)
}

// RegisterCleanupHandler adds a handler run before each mode change.
func (s *Service) RegisterCleanupHandler(h CleanupHandler) func() {
	return s.registry.Register(h)
}

// RegisterCleanupHandlers adds several handlers at once.
func (s *Service) RegisterCleanupHandlers(handlers ...CleanupHandler) func() {
	return s.registry.RegisterMany(handlers...)
}

// Subscribe calls fn with every committed mode.
func (s *Service) Subscribe(fn func(AppMode)) func() {
	return s.hub.SubscribeMode(fn)
}

// SubscribeToTransition calls fn with every transition state change.
func (s *Service) SubscribeToTransition(fn func(TransitionState)) func() {
	return s.hub.SubscribeTransition(fn)
}

// Facade returns the derived view binding.
func (s *Service) Facade() *facade.Facade {
	return s.facade
}

// Journal returns the event journal.
func (s *Service) Journal() events.Journal {
	return s.journal
}

// Metrics returns the metrics collector.
func (s *Service) Metrics() *metrics.Collector {
	return s.metrics
}

// Close detaches the facade and stops the engine. Storage is closed when it
// implements storage.Closer.
func (s *Service) Close() error {
	s.facade.Close()
	s.engine.Close()
	if c, ok := s.store.Storage().(storage.Closer); ok {
		return c.Close()
	}
	return nil
}
