// Package transition sequences mode switches: it moves the state machine to
// transitioning, runs the cleanup registry, waits out the animation, commits
// the new mode, notifies observers and finally settles back to idle.
//
// At most one transition is in flight. A request for the mode already being
// switched to joins the running transition and shares its result; a request
// for any other mode is rejected with ErrTransitionInProgress.
package transition

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/mode_orchestrator/internal/cleanup"
	"github.com/R3E-Network/mode_orchestrator/internal/events"
	"github.com/R3E-Network/mode_orchestrator/internal/metrics"
	"github.com/R3E-Network/mode_orchestrator/internal/mode"
	"github.com/R3E-Network/mode_orchestrator/internal/modestate"
	"github.com/R3E-Network/mode_orchestrator/internal/observer"
	"github.com/R3E-Network/mode_orchestrator/pkg/logger"
)

// Deps are the collaborators an Engine drives.
type Deps struct {
	Store    *modestate.Store
	Registry *cleanup.Registry
	Hub      *observer.Hub
	Journal  events.Journal
	Metrics  metrics.Recorder
	Logger   *logger.Logger
}

// flight is a transition in progress. done is closed once err is final.
type flight struct {
	id     string
	from   mode.AppMode
	target mode.AppMode
	done   chan struct{}
	err    error
}

func (f *flight) wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Engine is the transition state machine.
type Engine struct {
	config Config

	store    *modestate.Store
	registry *cleanup.Registry
	hub      *observer.Hub
	journal  events.Journal
	metrics  metrics.Recorder
	log      *logger.Logger

	// notifyMu serializes state changes with their notifications so
	// subscribers observe states in the order they were entered.
	notifyMu sync.Mutex

	mu         sync.Mutex
	state      mode.TransitionState
	inflight   *flight
	generation uint64
	graceTimer *time.Timer
	closed     bool
	closing    chan struct{}
}

// New creates an engine in the idle state.
func New(cfg Config, deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger = logger.NewDefault("transition")
	}
	if deps.Journal == nil {
		deps.Journal = events.NoOpJournal{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoOpCollector{}
	}
	if deps.Store == nil {
		deps.Store = modestate.New(nil, modestate.WithLogger(deps.Logger))
	}
	if deps.Registry == nil {
		deps.Registry = cleanup.NewRegistry(cleanup.Config{}, deps.Logger, deps.Journal, deps.Metrics)
	}
	if deps.Hub == nil {
		deps.Hub = observer.NewHub(deps.Logger, deps.Journal, deps.Metrics)
	}

	e := &Engine{
		config:   cfg.withDefaults(),
		store:    deps.Store,
		registry: deps.Registry,
		hub:      deps.Hub,
		journal:  deps.Journal,
		metrics:  deps.Metrics,
		log:      deps.Logger,
		state:    mode.StateIdle,
		closing:  make(chan struct{}),
	}
	e.metrics.RecordTransitionState(mode.StateIdle)
	return e
}

// State returns the current transition state.
func (e *Engine) State() mode.TransitionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// InFlight returns the target of the running transition, if any.
func (e *Engine) InFlight() (mode.AppMode, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight == nil {
		return "", false
	}
	return e.inflight.target, true
}

// Current returns the committed mode.
func (e *Engine) Current() mode.AppMode {
	return e.store.Current()
}

// SwitchMode transitions to target and returns once the new mode is committed
// and the state is completed. Switching to the current mode is a no-op.
// Once started, a transition runs to completion even if ctx is cancelled;
// only Close aborts the animation wait. A caller joining a running
// transition stops waiting when its own ctx ends.
// Observer callbacks must not call SwitchMode synchronously.
func (e *Engine) SwitchMode(ctx context.Context, target mode.AppMode, opts Options) error {
	if !target.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, target)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if f := e.inflight; f != nil {
		e.mu.Unlock()
		return e.joinOrReject(ctx, f, target)
	}
	current := e.store.Current()
	if target == current {
		e.mu.Unlock()
		return nil
	}

	f := &flight{
		id:     uuid.New().String(),
		from:   current,
		target: target,
		done:   make(chan struct{}),
	}
	e.inflight = f
	e.generation++
	gen := e.generation
	if e.graceTimer != nil {
		e.graceTimer.Stop()
		e.graceTimer = nil
	}
	e.mu.Unlock()

	f.err = e.run(context.WithoutCancel(ctx), f, gen, opts)
	close(f.done)
	return f.err
}

// ToggleMode switches to the complement of the current mode. While a
// transition is running it joins that transition.
func (e *Engine) ToggleMode(ctx context.Context, opts Options) error {
	e.mu.Lock()
	var target mode.AppMode
	if e.inflight != nil {
		target = e.inflight.target
	} else {
		target = e.store.Current().Complement()
	}
	e.mu.Unlock()
	return e.SwitchMode(ctx, target, opts)
}

// Close stops a pending grace timer and aborts a transition waiting on its
// animation. Subsequent switches fail with ErrClosed.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.closing)
	if e.graceTimer != nil {
		e.graceTimer.Stop()
		e.graceTimer = nil
	}
}

func (e *Engine) joinOrReject(ctx context.Context, f *flight, target mode.AppMode) error {
	if f.target != target {
		e.log.WithField("transition_id", f.id).WithField("in_flight", f.target.String()).
			WithField("requested", target.String()).Warn("rejecting switch while another transition is in flight")
		e.metrics.RecordTransition(target, 0, metrics.ResultRejected)
		e.journal.Log(events.Event{
			Type:         events.EventTransitionRejected,
			Severity:     events.SeverityWarning,
			TransitionID: f.id,
			From:         f.from,
			To:           target,
		})
		return ErrTransitionInProgress
	}

	e.log.WithField("transition_id", f.id).Debug("joining in-flight transition")
	e.metrics.RecordTransition(target, 0, metrics.ResultJoined)
	e.journal.Log(events.Event{
		Type:         events.EventTransitionJoined,
		TransitionID: f.id,
		From:         f.from,
		To:           target,
	})
	return f.wait(ctx)
}

func (e *Engine) run(ctx context.Context, f *flight, gen uint64, opts Options) error {
	start := time.Now()
	log := e.log.WithFields(logrus.Fields{
		"transition_id": f.id,
		"from":          f.from.String(),
		"to":            f.target.String(),
	})

	e.moveTo(mode.StateTransitioning, nil)
	log.Info("transition started")
	e.journal.Log(events.Event{
		Type:         events.EventTransitionStarted,
		TransitionID: f.id,
		From:         f.from,
		To:           f.target,
	})
	e.callback(log, "OnTransitionStart", opts.OnTransitionStart)

	if stage, err := e.execute(ctx, f, opts); err != nil {
		terr := &TransitionError{ID: f.id, From: f.from, Target: f.target, Stage: stage, Err: err}
		e.moveTo(mode.StateIdle, func() bool {
			e.inflight = nil
			return true
		})

		duration := time.Since(start)
		log.WithError(err).WithField("stage", string(stage)).Error("transition aborted")
		e.metrics.RecordTransition(f.target, duration, metrics.ResultError)
		e.journal.Log(events.Event{
			Type:         events.EventTransitionFailed,
			Severity:     events.SeverityError,
			TransitionID: f.id,
			From:         f.from,
			To:           f.target,
			Error:        err.Error(),
			Duration:     duration,
			Metadata:     map[string]string{"stage": string(stage)},
		})
		if opts.OnError != nil {
			e.callback(log, "OnError", func() { opts.OnError(terr) })
		}
		return terr
	}

	e.moveTo(mode.StateCompleted, func() bool {
		e.inflight = nil
		return true
	})

	duration := time.Since(start)
	log.WithField("duration", duration).Info("transition completed")
	e.metrics.RecordTransition(f.target, duration, metrics.ResultSuccess)
	e.journal.Log(events.Event{
		Type:         events.EventTransitionCompleted,
		TransitionID: f.id,
		From:         f.from,
		To:           f.target,
		Duration:     duration,
	})
	e.callback(log, "OnTransitionComplete", opts.OnTransitionComplete)

	e.scheduleIdle(gen)
	return nil
}

// execute runs the fallible steps. A panic is reported as an error of the
// stage that was running.
func (e *Engine) execute(ctx context.Context, f *flight, opts Options) (stage Stage, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	stage = StageCleanup
	if opts.runCleanup() {
		e.registry.RunAll(ctx)
	}

	stage = StageAnimation
	if d := opts.animation(e.config.DefaultAnimation); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-e.closing:
			return stage, ErrClosed
		}
	}

	stage = StageCommit
	if err := e.store.Commit(ctx, f.target); err != nil {
		return stage, err
	}

	stage = StageNotify
	e.hub.NotifyMode(f.target)
	return stage, nil
}

// moveTo enters next and notifies transition subscribers. guard runs under
// the engine lock and may veto the change by returning false.
func (e *Engine) moveTo(next mode.TransitionState, guard func() bool) bool {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()

	e.mu.Lock()
	if guard != nil && !guard() {
		e.mu.Unlock()
		return false
	}
	prev := e.state
	e.state = next
	e.mu.Unlock()

	if !mode.CanTransition(prev, next) {
		e.log.WithError(mode.StateTransitionError{From: prev, To: next}).Warn("unexpected state change")
	}
	e.metrics.RecordTransitionState(next)
	e.hub.NotifyTransition(next)
	return true
}

func (e *Engine) scheduleIdle(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.generation != gen {
		return
	}
	e.graceTimer = time.AfterFunc(e.config.GraceDelay, func() {
		e.moveTo(mode.StateIdle, func() bool {
			if e.generation != gen || e.state != mode.StateCompleted {
				return false
			}
			e.graceTimer = nil
			return true
		})
	})
}

func (e *Engine) callback(log *logrus.Entry, name string, fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			log.WithField("callback", name).WithField("panic", fmt.Sprint(p)).Error("transition callback panicked")
		}
	}()
	fn()
}
