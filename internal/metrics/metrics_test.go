package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/R3E-Network/mode_orchestrator/internal/mode"
)

func TestNewCollector(t *testing.T) {
	c := NewCollector("test")
	if c == nil {
		t.Fatal("NewCollector returned nil")
	}
	if c.Registry() == nil {
		t.Error("registry should not be nil")
	}
}

func TestCollector_RecordMode(t *testing.T) {
	c := NewCollector("test")

	c.RecordMode(mode.ModeGame)
	if got := testutil.ToFloat64(c.modeCurrent.WithLabelValues("game")); got != 1 {
		t.Errorf("game gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.modeCurrent.WithLabelValues("standard")); got != 0 {
		t.Errorf("standard gauge = %v, want 0", got)
	}

	c.RecordMode(mode.ModeStandard)
	if got := testutil.ToFloat64(c.modeCurrent.WithLabelValues("game")); got != 0 {
		t.Errorf("game gauge = %v, want 0", got)
	}
}

func TestCollector_TransitionMetrics(t *testing.T) {
	c := NewCollector("test")

	c.RecordTransitionState(mode.StateTransitioning)
	if got := testutil.ToFloat64(c.transitionState); got != 1 {
		t.Errorf("state gauge = %v, want 1", got)
	}

	c.RecordTransition(mode.ModeGame, 10*time.Millisecond, ResultSuccess)
	c.RecordTransition(mode.ModeGame, 0, ResultRejected)
	c.RecordTransition(mode.ModeGame, 0, ResultRejected)

	if got := testutil.ToFloat64(c.transitionsTotal.WithLabelValues("game", ResultRejected)); got != 2 {
		t.Errorf("rejected = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.transitionsTotal.WithLabelValues("game", ResultSuccess)); got != 1 {
		t.Errorf("success = %v, want 1", got)
	}
}

func TestCollector_FailureCounters(t *testing.T) {
	c := NewCollector("test")

	c.RecordCleanupRun(5*time.Millisecond, 1)
	c.RecordCleanupFailure("audio")
	c.RecordPersistenceFailure("write")
	c.RecordSubscriberPanic("mode")

	if got := testutil.ToFloat64(c.cleanupFailures.WithLabelValues("audio")); got != 1 {
		t.Errorf("cleanup failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.persistenceFailure.WithLabelValues("write")); got != 1 {
		t.Errorf("persistence failures = %v, want 1", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("test")
	c.RecordMode(mode.ModeStandard)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `test_current{mode="standard"} 1`) {
		t.Errorf("exposition missing mode gauge:\n%s", rec.Body.String())
	}
}

func TestNoOpCollector(t *testing.T) {
	var r Recorder = NoOpCollector{}
	r.RecordMode(mode.ModeGame)
	r.RecordTransition(mode.ModeGame, time.Second, ResultError)
	r.RecordCleanupFailure("x")
}
