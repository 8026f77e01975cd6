// Package testutil provides common testing utilities and fake implementations.
package testutil

import (
	"context"
	"sync"

	"github.com/R3E-Network/mode_orchestrator/internal/mode"
	"github.com/R3E-Network/mode_orchestrator/internal/storage"
)

// FlakyStorage is an in-memory storage.Storage whose reads and writes can be
// made to fail or panic.
type FlakyStorage struct {
	*storage.Memory

	mu         sync.RWMutex
	getErr     error
	setErr     error
	setPanic   interface{}
	setCalls   int
	lastValues map[string]string
}

// NewFlakyStorage creates a FlakyStorage that behaves normally until told
// otherwise.
func NewFlakyStorage() *FlakyStorage {
	return &FlakyStorage{
		Memory:     storage.NewMemory(),
		lastValues: make(map[string]string),
	}
}

// FailGets makes every Get return err. Nil restores normal reads.
func (f *FlakyStorage) FailGets(err error) *FlakyStorage {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
	return f
}

// FailSets makes every Set return err. Nil restores normal writes.
func (f *FlakyStorage) FailSets(err error) *FlakyStorage {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setErr = err
	return f
}

// PanicOnSet makes every Set panic with v.
func (f *FlakyStorage) PanicOnSet(v interface{}) *FlakyStorage {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setPanic = v
	return f
}

// Get implements storage.Storage.
func (f *FlakyStorage) Get(ctx context.Context, key string) (string, error) {
	f.mu.RLock()
	err := f.getErr
	f.mu.RUnlock()
	if err != nil {
		return "", err
	}
	return f.Memory.Get(ctx, key)
}

// Set implements storage.Storage. Attempted values are recorded even when
// the write fails.
func (f *FlakyStorage) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	f.setCalls++
	f.lastValues[key] = value
	err, p := f.setErr, f.setPanic
	f.mu.Unlock()

	if p != nil {
		panic(p)
	}
	if err != nil {
		return err
	}
	return f.Memory.Set(ctx, key, value)
}

// SetCalls returns the number of Set attempts.
func (f *FlakyStorage) SetCalls() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.setCalls
}

// Attempted returns the last value passed to Set for key.
func (f *FlakyStorage) Attempted(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.lastValues[key]
	return v, ok
}

// Recorder collects mode and transition-state notifications. Its OnMode and
// OnState methods can be passed directly as subscriber callbacks.
type Recorder struct {
	mu     sync.Mutex
	modes  []mode.AppMode
	states []mode.TransitionState
}

// OnMode records a committed mode.
func (r *Recorder) OnMode(m mode.AppMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modes = append(r.modes, m)
}

// OnState records a transition state.
func (r *Recorder) OnState(s mode.TransitionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

// Modes returns a copy of the recorded modes.
func (r *Recorder) Modes() []mode.AppMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mode.AppMode(nil), r.modes...)
}

// States returns a copy of the recorded states.
func (r *Recorder) States() []mode.TransitionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mode.TransitionState(nil), r.states...)
}
