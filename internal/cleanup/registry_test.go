package cleanup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/mode_orchestrator/internal/events"
	"github.com/R3E-Network/mode_orchestrator/pkg/logger"
)

func newRegistry(cfg Config, journal events.Journal) *Registry {
	return NewRegistry(cfg, logger.NewNop(), journal, nil)
}

func noop(context.Context) error { return nil }

func names(hs []Handler) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.Name
	}
	return out
}

func TestRegister_DefaultPriorityAndOrder(t *testing.T) {
	r := newRegistry(Config{}, nil)

	r.Register(Handler{Name: "late", Priority: 200, Cleanup: noop})
	r.Register(Handler{Name: "default", Cleanup: noop})
	r.Register(Handler{Name: "early", Priority: 10, Cleanup: noop})
	r.Register(Handler{Name: "default-2", Cleanup: noop})

	hs := r.Handlers()
	assert.Equal(t, []string{"early", "default", "default-2", "late"}, names(hs))
	assert.Equal(t, DefaultPriority, hs[1].Priority)
}

func TestRegister_ExplicitZeroPriority(t *testing.T) {
	r := newRegistry(Config{}, nil)

	r.Register(Handler{Name: "negative", Priority: -5, Cleanup: noop})
	r.Register(Handler{Name: "default", Cleanup: noop})
	r.Register(Handler{Name: "zero", Priority: PriorityZero, Cleanup: noop})
	r.Register(Handler{Name: "one", Priority: 1, Cleanup: noop})

	hs := r.Handlers()
	assert.Equal(t, []string{"negative", "zero", "one", "default"}, names(hs))
	assert.Equal(t, 0, hs[1].Priority)
}

func TestUnregister_RemovesOneByName(t *testing.T) {
	r := newRegistry(Config{}, nil)

	unregister := r.Register(Handler{Name: "audio", Cleanup: noop})
	r.Register(Handler{Name: "socket", Cleanup: noop})

	unregister()
	assert.Equal(t, []string{"socket"}, names(r.Handlers()))

	// A second call finds nothing left to remove.
	unregister()
	assert.Equal(t, 1, r.Len())
}

func TestUnregister_DuplicateNamesRemoveFirstMatch(t *testing.T) {
	r := newRegistry(Config{}, nil)

	r.Register(Handler{Name: "dup", Priority: 50, Cleanup: noop})
	unregisterSecond := r.Register(Handler{Name: "dup", Priority: 150, Cleanup: noop})

	// The closure returned for the priority-150 entry removes the first
	// matching entry in list order, which is the priority-50 one.
	unregisterSecond()

	hs := r.Handlers()
	require.Len(t, hs, 1)
	assert.Equal(t, 150, hs[0].Priority)
}

func TestRegisterMany(t *testing.T) {
	r := newRegistry(Config{}, nil)
	r.Register(Handler{Name: "keep", Cleanup: noop})

	unregisterAll := r.RegisterMany(
		Handler{Name: "a", Cleanup: noop},
		Handler{Name: "b", Priority: 5, Cleanup: noop},
	)
	assert.Equal(t, 3, r.Len())

	unregisterAll()
	assert.Equal(t, []string{"keep"}, names(r.Handlers()))
}

func TestRunAll_EveryHandlerOnceDespiteFailures(t *testing.T) {
	journal := events.NewRingBuffer(10)
	r := newRegistry(Config{}, journal)

	var calls [4]int32
	for i := range calls {
		i := i
		r.Register(Handler{
			Name: string(rune('a' + i)),
			Cleanup: func(context.Context) error {
				atomic.AddInt32(&calls[i], 1)
				if i%2 == 0 {
					return errors.New("boom")
				}
				return nil
			},
		})
	}

	report := r.RunAll(context.Background())

	for i := range calls {
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls[i]), "handler %d", i)
	}
	assert.Equal(t, 4, report.Ran)
	assert.Len(t, report.Failures, 2)
	assert.False(t, report.OK())
	assert.Len(t, journal.RecentByType(events.EventCleanupFailed, 10), 2)
}

func TestRunAll_PanicIsIsolated(t *testing.T) {
	r := newRegistry(Config{}, nil)

	var ran int32
	r.Register(Handler{Name: "panics", Cleanup: func(context.Context) error { panic("bad handler") }})
	r.Register(Handler{Name: "fine", Cleanup: func(context.Context) error {
		atomic.AddInt32(&ran, 1)
		return nil
	}})
	r.Register(Handler{Name: "nil-func"})

	report := r.RunAll(context.Background())
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "panics", report.Failures[0].Name)
	assert.Contains(t, report.Failures[0].Error(), "panic: bad handler")
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

func TestRunAll_PriorityGroupsRunInOrder(t *testing.T) {
	r := newRegistry(Config{}, nil)

	var mu sync.Mutex
	var order []string
	record := func(name string, d time.Duration) Func {
		return func(context.Context) error {
			time.Sleep(d)
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	// The slow low-priority handler must still finish before the fast
	// high-priority one starts.
	r.Register(Handler{Name: "second", Priority: 20, Cleanup: record("second", 0)})
	r.Register(Handler{Name: "first", Priority: 10, Cleanup: record("first", 30*time.Millisecond)})

	r.RunAll(context.Background())
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestRunAll_SamePriorityRunsConcurrently(t *testing.T) {
	r := newRegistry(Config{}, nil)

	release := make(chan struct{})
	var started int32
	blocker := func(context.Context) error {
		if atomic.AddInt32(&started, 1) == 2 {
			close(release)
		}
		select {
		case <-release:
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("peer never started")
		}
	}
	r.Register(Handler{Name: "x", Cleanup: blocker})
	r.Register(Handler{Name: "y", Cleanup: blocker})

	report := r.RunAll(context.Background())
	assert.True(t, report.OK(), "handlers in one group should overlap")
}

func TestRunAll_MaxConcurrency(t *testing.T) {
	r := newRegistry(Config{MaxConcurrency: 1}, nil)

	var active, peak int32
	h := func(context.Context) error {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return nil
	}
	for _, name := range []string{"a", "b", "c"} {
		r.Register(Handler{Name: name, Cleanup: h})
	}

	r.RunAll(context.Background())
	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
}

func TestRunAll_Empty(t *testing.T) {
	r := newRegistry(Config{}, nil)
	report := r.RunAll(context.Background())
	assert.Equal(t, 0, report.Ran)
	assert.True(t, report.OK())
}

func TestHandlerError_Unwrap(t *testing.T) {
	cause := errors.New("socket busy")
	err := &HandlerError{Name: "socket", Priority: 100, Err: cause}
	assert.ErrorIs(t, err, cause)
}
