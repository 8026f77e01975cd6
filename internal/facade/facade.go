// Package facade exposes a read-through view of the orchestrator for UI
// layers: the committed mode, the transition state and the booleans derived
// from them, recomputed on every change.
package facade

import (
	"context"
	"fmt"
	"sync"

	"github.com/R3E-Network/mode_orchestrator/internal/mode"
	"github.com/R3E-Network/mode_orchestrator/internal/observer"
	"github.com/R3E-Network/mode_orchestrator/internal/transition"
	"github.com/R3E-Network/mode_orchestrator/pkg/logger"
)

// View is a derived snapshot of orchestrator state.
type View struct {
	CurrentMode     mode.AppMode         `json:"current_mode"`
	TransitionState mode.TransitionState `json:"transition_state"`
	IsGameMode      bool                 `json:"is_game_mode"`
	IsStandardMode  bool                 `json:"is_standard_mode"`
	IsTransitioning bool                 `json:"is_transitioning"`
}

// NewView derives a View from the mode and transition state.
func NewView(m mode.AppMode, s mode.TransitionState) View {
	return View{
		CurrentMode:     m,
		TransitionState: s,
		IsGameMode:      m == mode.ModeGame,
		IsStandardMode:  m == mode.ModeStandard,
		IsTransitioning: s == mode.StateTransitioning,
	}
}

// Facade binds an engine to a cached View.
type Facade struct {
	engine *transition.Engine
	log    *logger.Logger

	mu       sync.RWMutex
	view     View
	nextID   int
	watchers map[int]func(View)

	unsubscribe []func()
	closeOnce   sync.Once
}

// New creates a facade and subscribes it to both hub channels.
func New(engine *transition.Engine, hub *observer.Hub, log *logger.Logger) *Facade {
	if log == nil {
		log = logger.NewDefault("facade")
	}
	f := &Facade{
		engine:   engine,
		log:      log,
		view:     NewView(engine.Current(), engine.State()),
		watchers: make(map[int]func(View)),
	}
	f.unsubscribe = []func(){
		hub.SubscribeMode(func(m mode.AppMode) { f.refresh(m, f.engine.State()) }),
		hub.SubscribeTransition(func(s mode.TransitionState) { f.refresh(f.engine.Current(), s) }),
	}
	return f
}

func (f *Facade) refresh(m mode.AppMode, s mode.TransitionState) {
	v := NewView(m, s)

	f.mu.Lock()
	f.view = v
	watchers := make([]func(View), 0, len(f.watchers))
	for id := 0; id < f.nextID; id++ {
		if w, ok := f.watchers[id]; ok {
			watchers = append(watchers, w)
		}
	}
	f.mu.Unlock()

	for _, w := range watchers {
		f.notify(w, v)
	}
}

// notify calls one watcher; a panic is logged and does not reach the others.
func (f *Facade) notify(w func(View), v View) {
	defer func() {
		if p := recover(); p != nil {
			f.log.WithField("panic", fmt.Sprint(p)).WithField("mode", v.CurrentMode.String()).
				Error("view watcher panicked")
		}
	}()
	w(v)
}

// View returns the latest derived snapshot.
func (f *Facade) View() View {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.view
}

// Watch calls cb with every recomputed View until the returned function is
// called.
func (f *Facade) Watch(cb func(View)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.watchers[id] = cb
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.watchers, id)
		f.mu.Unlock()
	}
}

// CurrentMode returns the committed mode.
func (f *Facade) CurrentMode() mode.AppMode {
	return f.engine.Current()
}

// TransitionState returns the engine state.
func (f *Facade) TransitionState() mode.TransitionState {
	return f.engine.State()
}

// SwitchMode delegates to the engine.
func (f *Facade) SwitchMode(ctx context.Context, target mode.AppMode, opts transition.Options) error {
	return f.engine.SwitchMode(ctx, target, opts)
}

// ToggleMode delegates to the engine.
func (f *Facade) ToggleMode(ctx context.Context, opts transition.Options) error {
	return f.engine.ToggleMode(ctx, opts)
}

// Close detaches the facade from the hub.
func (f *Facade) Close() {
	f.closeOnce.Do(func() {
		for _, unsubscribe := range f.unsubscribe {
			unsubscribe()
		}
	})
}
