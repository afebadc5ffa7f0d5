// Package metrics exposes Prometheus instrumentation for the Skitter
// runtime substrate: connect attempts, deploy duration, emit/deliver
// volume, worker restarts and registry size.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectAttempts counts connect protocol attempts by outcome.
	ConnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skitter",
		Subsystem: "connect",
		Name:      "attempts_total",
		Help:      "Connect protocol attempts by outcome.",
	}, []string{"outcome"})

	// RegistrySize reports the number of connected remotes by mode.
	RegistrySize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "skitter",
		Subsystem: "registry",
		Name:      "connected",
		Help:      "Connected remotes by mode.",
	}, []string{"mode"})

	// DeployDuration records how long a deploy pipeline run takes.
	DeployDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "skitter",
		Subsystem: "deploy",
		Name:      "duration_seconds",
		Help:      "Time to flatten, replicate and install a workflow.",
		Buckets:   prometheus.DefBuckets,
	})

	// DeploymentsActive reports the number of installed deployments.
	DeploymentsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "skitter",
		Subsystem: "deploy",
		Name:      "active",
		Help:      "Deployments currently installed on this runtime.",
	})

	// EmitTotal counts values emitted on a port.
	EmitTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skitter",
		Subsystem: "emit",
		Name:      "values_total",
		Help:      "Values emitted across all out-ports.",
	})

	// DeliverTotal counts values delivered to a destination worker.
	DeliverTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skitter",
		Subsystem: "emit",
		Name:      "delivered_total",
		Help:      "Values delivered to destination workers.",
	})

	// WorkerRestarts counts supervisor-triggered worker restarts.
	WorkerRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skitter",
		Subsystem: "worker",
		Name:      "restarts_total",
		Help:      "Worker processes restarted after a callback failure.",
	})

	// WorkersActive reports the number of live worker processes.
	WorkersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "skitter",
		Subsystem: "worker",
		Name:      "active",
		Help:      "Worker processes currently hosted on this runtime.",
	})

	// TaskDuration records fan-out task execution time.
	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "skitter",
		Subsystem: "task",
		Name:      "duration_seconds",
		Help:      "Fan-out task RPC duration.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
)

// Timer measures elapsed wall-clock time for a histogram observation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}
