// Package metrics exposes test lifecycle events as Prometheus metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/giantswarm/testhooks/internal/api"
	"github.com/giantswarm/testhooks/internal/framework"
)

// WatcherName is the name the watcher is registered under.
const WatcherName = "metrics"

// Outcome label values.
const (
	OutcomePassed           = "passed"
	OutcomeFailed           = "failed"
	OutcomeAssumptionFailed = "assumption_failed"
	OutcomeIgnored          = "ignored"
	OutcomeRetried          = "retried"
)

var (
	defaultOnce    sync.Once
	defaultWatcher *Watcher
)

func init() {
	api.RegisterWatcher(WatcherName, func() any { return Default() })
}

// Default returns the process-wide watcher handed out by the registry.
func Default() *Watcher {
	defaultOnce.Do(func() {
		defaultWatcher = New()
	})
	return defaultWatcher
}

// Watcher counts test outcomes, attempts, runs and method invocations. Each
// watcher owns its Prometheus registry.
type Watcher struct {
	registry *prometheus.Registry

	started     *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	runs        *prometheus.CounterVec
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec

	mu      sync.Mutex
	startAt map[api.Test]time.Time
}

var (
	_ api.RunWatcher    = (*Watcher)(nil)
	_ api.RunnerWatcher = (*Watcher)(nil)
	_ api.MethodWatcher = (*Watcher)(nil)
)

// New creates a watcher with its own registry.
func New() *Watcher {
	w := &Watcher{
		registry: prometheus.NewRegistry(),
		started: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "testhooks",
				Subsystem: "test",
				Name:      "attempts_total",
				Help:      "Test attempts started.",
			},
			[]string{"class"},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "testhooks",
				Subsystem: "test",
				Name:      "outcomes_total",
				Help:      "Test outcomes, including attempts that were retried.",
			},
			[]string{"class", "outcome"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "testhooks",
				Subsystem: "runner",
				Name:      "runs_total",
				Help:      "Runner executions.",
			},
			[]string{"runner", "phase"},
		),
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "testhooks",
				Subsystem: "method",
				Name:      "invocations_total",
				Help:      "Method body invocations, including setup and teardown.",
			},
			[]string{"method", "success"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "testhooks",
				Subsystem: "test",
				Name:      "attempt_duration_seconds",
				Help:      "Duration of test attempts in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"class"},
		),
		startAt: make(map[api.Test]time.Time),
	}
	w.registry.MustRegister(w.started, w.outcomes, w.runs, w.invocations, w.duration)
	return w
}

// Registry returns the registry the metrics are registered with.
func (w *Watcher) Registry() *prometheus.Registry {
	return w.registry
}

// WriteToTextfile writes the metrics in the text exposition format, for the
// node exporter textfile collector.
func (w *Watcher) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, w.registry)
}

func className(t api.Test) string {
	if d := t.Description(); d != nil {
		return d.ClassName
	}
	if c := t.Class(); c != nil {
		return c.Name
	}
	return ""
}

func (w *Watcher) TestStarted(t api.Test) error {
	w.started.WithLabelValues(className(t)).Inc()
	w.mu.Lock()
	w.startAt[t] = time.Now()
	w.mu.Unlock()
	return nil
}

func (w *Watcher) observe(t api.Test) {
	w.mu.Lock()
	start, ok := w.startAt[t]
	delete(w.startAt, t)
	w.mu.Unlock()
	if ok {
		w.duration.WithLabelValues(className(t)).Observe(time.Since(start).Seconds())
	}
}

func (w *Watcher) TestFinished(t api.Test) error {
	w.observe(t)
	outcome := OutcomePassed
	if thrown := t.Thrown(); thrown != nil {
		outcome = OutcomeFailed
		if framework.IsAssumptionViolated(thrown) {
			outcome = OutcomeAssumptionFailed
		}
	}
	w.outcomes.WithLabelValues(className(t), outcome).Inc()
	return nil
}

// TestFailure and TestAssumptionFailure are counted when the test finishes.
func (w *Watcher) TestFailure(api.Test, error) error { return nil }

func (w *Watcher) TestAssumptionFailure(api.Test, error) error { return nil }

func (w *Watcher) TestIgnored(t api.Test, retried bool) error {
	if retried {
		w.observe(t)
		w.outcomes.WithLabelValues(className(t), OutcomeRetried).Inc()
		return nil
	}
	w.outcomes.WithLabelValues(className(t), OutcomeIgnored).Inc()
	return nil
}

func (w *Watcher) RunStarted(r framework.Runner) error {
	w.runs.WithLabelValues(r.Name(), "started").Inc()
	return nil
}

func (w *Watcher) RunFinished(r framework.Runner) error {
	w.runs.WithLabelValues(r.Name(), "finished").Inc()
	return nil
}

func (w *Watcher) BeforeInvocation(*api.Invocation) error { return nil }

func (w *Watcher) AfterInvocation(inv *api.Invocation, err error) error {
	success := "true"
	if err != nil {
		success = "false"
	}
	w.invocations.WithLabelValues(inv.Method.Name, success).Inc()
	return nil
}
