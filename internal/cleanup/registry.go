// Package cleanup keeps the prioritized teardown callbacks that release
// mode-scoped resources before a new mode becomes active.
//
// Handlers are kept sorted ascending by priority. RunAll executes them in
// priority groups: every handler sharing a priority starts concurrently, and
// the next group starts only after the current one has settled. A failing or
// panicking handler is logged and reported but never stops the batch.
package cleanup

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/R3E-Network/mode_orchestrator/internal/events"
	"github.com/R3E-Network/mode_orchestrator/internal/metrics"
	"github.com/R3E-Network/mode_orchestrator/pkg/logger"
)

// DefaultPriority is assigned to handlers registered without a priority.
const DefaultPriority = 100

// PriorityZero requests an explicit priority of 0, which a zero Priority
// field cannot express.
const PriorityZero = math.MinInt

// Func releases a resource. It should honour ctx cancellation.
type Func func(ctx context.Context) error

// Handler is a named teardown callback.
type Handler struct {
	// Name identifies the handler for removal and logging.
	Name string

	// Priority orders execution; lower runs first. Zero means
	// DefaultPriority; use PriorityZero for an actual priority of 0.
	Priority int

	// Cleanup releases the resource.
	Cleanup Func
}

// HandlerError records a failed cleanup handler.
type HandlerError struct {
	Name     string
	Priority int
	Err      error
}

// Error implements error.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("cleanup handler %q (priority %d): %v", e.Name, e.Priority, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Report summarizes one RunAll invocation.
type Report struct {
	Ran      int
	Failures []*HandlerError
	Duration time.Duration
}

// OK reports whether every handler succeeded.
func (r Report) OK() bool {
	return len(r.Failures) == 0
}

// Config holds registry configuration.
type Config struct {
	// MaxConcurrency caps handlers running at once within a priority group.
	// 0 means unlimited.
	MaxConcurrency int
}

// Registry is a prioritized collection of cleanup handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers []Handler
	config   Config

	log     *logger.Logger
	journal events.Journal
	metrics metrics.Recorder
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config, log *logger.Logger, journal events.Journal, rec metrics.Recorder) *Registry {
	if log == nil {
		log = logger.NewDefault("cleanup")
	}
	if journal == nil {
		journal = events.NoOpJournal{}
	}
	if rec == nil {
		rec = metrics.NoOpCollector{}
	}
	return &Registry{
		config:  cfg,
		log:     log,
		journal: journal,
		metrics: rec,
	}
}

// Register adds a handler and returns a function removing the first handler
// with the same name. With duplicate names that may be an entry registered
// by a different call.
func (r *Registry) Register(h Handler) func() {
	switch h.Priority {
	case 0:
		h.Priority = DefaultPriority
	case PriorityZero:
		h.Priority = 0
	}

	r.mu.Lock()
	r.handlers = append(r.handlers, h)
	sort.SliceStable(r.handlers, func(i, j int) bool {
		return r.handlers[i].Priority < r.handlers[j].Priority
	})
	r.mu.Unlock()

	name := h.Name
	return func() {
		r.unregister(name)
	}
}

// RegisterMany registers each handler and returns a function unregistering
// all of them.
func (r *Registry) RegisterMany(handlers ...Handler) func() {
	unregisters := make([]func(), 0, len(handlers))
	for _, h := range handlers {
		unregisters = append(unregisters, r.Register(h))
	}
	return func() {
		for _, unregister := range unregisters {
			unregister()
		}
	}
}

func (r *Registry) unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, h := range r.handlers {
		if h.Name == name {
			r.handlers = append(r.handlers[:i], r.handlers[i+1:]...)
			return
		}
	}
}

// Handlers returns a snapshot of the registered handlers in priority order.
func (r *Registry) Handlers() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handler, len(r.handlers))
	copy(out, r.handlers)
	return out
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// RunAll invokes every registered handler exactly once. It never fails; use
// the report to inspect individual handler errors.
func (r *Registry) RunAll(ctx context.Context) Report {
	start := time.Now()
	handlers := r.Handlers()

	report := Report{}
	for _, group := range groupByPriority(handlers) {
		report.Failures = append(report.Failures, r.runGroup(ctx, group)...)
		report.Ran += len(group)
	}
	report.Duration = time.Since(start)

	r.metrics.RecordCleanupRun(report.Duration, len(report.Failures))
	if len(report.Failures) > 0 {
		r.log.WithField("handlers", report.Ran).WithField("failures", len(report.Failures)).
			Warn("cleanup finished with failures")
	}
	return report
}

func (r *Registry) runGroup(ctx context.Context, group []Handler) []*HandlerError {
	var permits chan struct{}
	if r.config.MaxConcurrency > 0 {
		permits = make(chan struct{}, r.config.MaxConcurrency)
	}

	results := make([]*HandlerError, len(group))
	var wg sync.WaitGroup
	for i, h := range group {
		wg.Add(1)
		go func(i int, h Handler) {
			defer wg.Done()
			if permits != nil {
				permits <- struct{}{}
				defer func() { <-permits }()
			}
			if err := invoke(ctx, h); err != nil {
				results[i] = &HandlerError{Name: h.Name, Priority: h.Priority, Err: err}
			}
		}(i, h)
	}
	wg.Wait()

	var failures []*HandlerError
	for _, herr := range results {
		if herr == nil {
			continue
		}
		failures = append(failures, herr)
		r.log.WithError(herr.Err).WithField("handler", herr.Name).
			WithField("priority", herr.Priority).Error("cleanup handler failed")
		r.metrics.RecordCleanupFailure(herr.Name)
		r.journal.Log(events.Event{
			Type:     events.EventCleanupFailed,
			Severity: events.SeverityError,
			Handler:  herr.Name,
			Error:    herr.Err.Error(),
		})
	}
	return failures
}

func invoke(ctx context.Context, h Handler) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	if h.Cleanup == nil {
		return nil
	}
	return h.Cleanup(ctx)
}

// groupByPriority splits a priority-sorted slice into runs of equal priority.
func groupByPriority(handlers []Handler) [][]Handler {
	var groups [][]Handler
	for i := 0; i < len(handlers); {
		j := i + 1
		for j < len(handlers) && handlers[j].Priority == handlers[i].Priority {
			j++
		}
		groups = append(groups, handlers[i:j])
		i = j
	}
	return groups
}
