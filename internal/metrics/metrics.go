// Package metrics provides orchestrator metrics collection.
// It wraps Prometheus collectors for transitions, cleanup handlers,
// persistence and observer fan-out.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/R3E-Network/mode_orchestrator/internal/mode"
)

// Recorder is the interface components record metrics through.
type Recorder interface {
	RecordMode(current mode.AppMode)
	RecordTransitionState(state mode.TransitionState)
	RecordTransition(target mode.AppMode, duration time.Duration, result string)
	RecordCleanupRun(duration time.Duration, failures int)
	RecordCleanupFailure(handler string)
	RecordPersistenceFailure(op string)
	RecordSubscriberPanic(channel string)
}

// Transition results.
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultRejected = "rejected"
	ResultJoined   = "joined"
)

// Collector provides orchestrator metrics collection.
type Collector struct {
	registry *prometheus.Registry

	modeCurrent        *prometheus.GaugeVec
	transitionState    prometheus.Gauge
	transitionsTotal   *prometheus.CounterVec
	transitionLatency  *prometheus.HistogramVec
	cleanupLatency     prometheus.Histogram
	cleanupFailures    *prometheus.CounterVec
	persistenceFailure *prometheus.CounterVec
	subscriberPanics   *prometheus.CounterVec
}

// NewCollector creates a collector registered on a private registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "mode"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.modeCurrent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current",
			Help:      "1 for the currently committed app mode, 0 otherwise",
		},
		[]string{"mode"},
	)

	c.transitionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transition",
			Name:      "state",
			Help:      "Current transition state (0=idle, 1=transitioning, 2=completed)",
		},
	)

	c.transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transition",
			Name:      "total",
			Help:      "Total number of mode switch requests by outcome",
		},
		[]string{"target", "result"},
	)

	c.transitionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transition",
			Name:      "duration_seconds",
			Help:      "Time from transition start to commit or abort",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"target", "result"},
	)

	c.cleanupLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "duration_seconds",
			Help:      "Time taken to run all cleanup handlers for a transition",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)

	c.cleanupFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "handler_failures_total",
			Help:      "Total number of cleanup handler failures",
		},
		[]string{"handler"},
	)

	c.persistenceFailure = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "failures_total",
			Help:      "Total number of persisted mode read/write failures",
		},
		[]string{"op"},
	)

	c.subscriberPanics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "observer",
			Name:      "subscriber_panics_total",
			Help:      "Total number of recovered subscriber panics",
		},
		[]string{"channel"},
	)

	c.registry.MustRegister(
		c.modeCurrent,
		c.transitionState,
		c.transitionsTotal,
		c.transitionLatency,
		c.cleanupLatency,
		c.cleanupFailures,
		c.persistenceFailure,
		c.subscriberPanics,
	)

	return c
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordMode marks current as the committed mode.
func (c *Collector) RecordMode(current mode.AppMode) {
	for _, m := range []mode.AppMode{mode.ModeStandard, mode.ModeGame} {
		v := 0.0
		if m == current {
			v = 1
		}
		c.modeCurrent.WithLabelValues(m.String()).Set(v)
	}
}

// RecordTransitionState records the transition state.
func (c *Collector) RecordTransitionState(state mode.TransitionState) {
	c.transitionState.Set(float64(state))
}

// RecordTransition records the outcome of a switch request.
func (c *Collector) RecordTransition(target mode.AppMode, duration time.Duration, result string) {
	c.transitionsTotal.WithLabelValues(target.String(), result).Inc()
	if result == ResultSuccess || result == ResultError {
		c.transitionLatency.WithLabelValues(target.String(), result).Observe(duration.Seconds())
	}
}

// RecordCleanupRun records a full cleanup batch.
func (c *Collector) RecordCleanupRun(duration time.Duration, _ int) {
	c.cleanupLatency.Observe(duration.Seconds())
}

// RecordCleanupFailure counts a failed handler.
func (c *Collector) RecordCleanupFailure(handler string) {
	c.cleanupFailures.WithLabelValues(handler).Inc()
}

// RecordPersistenceFailure counts a failed read or write.
func (c *Collector) RecordPersistenceFailure(op string) {
	c.persistenceFailure.WithLabelValues(op).Inc()
}

// RecordSubscriberPanic counts a recovered subscriber panic.
func (c *Collector) RecordSubscriberPanic(channel string) {
	c.subscriberPanics.WithLabelValues(channel).Inc()
}

// NoOpCollector discards all metrics.
type NoOpCollector struct{}

func (NoOpCollector) RecordMode(mode.AppMode)                              {}
func (NoOpCollector) RecordTransitionState(mode.TransitionState)           {}
func (NoOpCollector) RecordTransition(mode.AppMode, time.Duration, string) {}
func (NoOpCollector) RecordCleanupRun(time.Duration, int)                  {}
func (NoOpCollector) RecordCleanupFailure(string)                          {}
func (NoOpCollector) RecordPersistenceFailure(string)                      {}
func (NoOpCollector) RecordSubscriberPanic(string)                         {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = NoOpCollector{}
)
