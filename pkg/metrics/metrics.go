// Package metrics exposes the reactive core's instrumentation hooks as
// Prometheus metrics.
//
// Attach once near startup and serve the registry however the embedding
// application prefers:
//
//	detach := metrics.Attach(metrics.WithNamespace("myapp"))
//	defer detach()
//	http.Handle("/metrics", promhttp.Handler())
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/reva-ui/reva/pkg/reva"
)

// Config configures the Prometheus collector.
type Config struct {
	// Namespace is the metrics namespace (default: "reva").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for watcher run duration.
	// Default: prometheus.DefBuckets.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// Option configures the Prometheus collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "reva",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// collector holds the Prometheus metrics backed by core hooks.
type collector struct {
	observersTotal  *prometheus.CounterVec
	cellWritesTotal prometheus.Counter
	notifyFanout    prometheus.Histogram
	watchersActive  prometheus.Gauge
	watcherRuns     *prometheus.CounterVec
	watcherDuration prometheus.Histogram
	flushesTotal    prometheus.Counter
	flushBatchSize  prometheus.Histogram
	flushDuration   prometheus.Histogram
}

func newCollector(config Config) *collector {
	factory := promauto.With(config.Registry)

	return &collector{
		observersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "observers_total",
			Help:        "Total value-graph nodes instrumented, by container kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		cellWritesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cell_writes_total",
			Help:        "Total accepted writes to reactive slots",
			ConstLabels: config.ConstLabels,
		}),

		notifyFanout: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notify_fanout",
			Help:        "Subscribers notified per dependency change",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),

		watchersActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "watchers_active",
			Help:        "Watchers currently alive",
			ConstLabels: config.ConstLabels,
		}),

		watcherRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "watcher_runs_total",
			Help:        "Total watcher evaluations by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		watcherDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "watcher_run_duration_seconds",
			Help:        "Watcher evaluation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		flushesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "scheduler_flushes_total",
			Help:        "Total scheduler flushes",
			ConstLabels: config.ConstLabels,
		}),

		flushBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "scheduler_flush_batch_size",
			Help:        "Distinct watchers run per flush",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		}),

		flushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "scheduler_flush_duration_seconds",
			Help:        "Scheduler flush duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),
	}
}

// hooks builds the core hook set feeding this collector.
func (m *collector) hooks() *reva.Hooks {
	return &reva.Hooks{
		ObserverInstalled: func(kind string) {
			m.observersTotal.WithLabelValues(kind).Inc()
		},
		CellWrite: func(depID uint64, key string) {
			m.cellWritesTotal.Inc()
		},
		DepNotify: func(depID uint64, fanout int) {
			m.notifyFanout.Observe(float64(fanout))
		},
		WatcherCreated: func(id uint64, lazy bool) {
			m.watchersActive.Inc()
		},
		WatcherTorndown: func(id uint64) {
			m.watchersActive.Dec()
		},
		WatcherRun: func(id uint64, d time.Duration, failed bool) {
			status := "success"
			if failed {
				status = "error"
			}
			m.watcherRuns.WithLabelValues(status).Inc()
			m.watcherDuration.Observe(d.Seconds())
		},
		SchedulerFlush: func(n int, d time.Duration) {
			m.flushesTotal.Inc()
			m.flushBatchSize.Observe(float64(n))
			m.flushDuration.Observe(d.Seconds())
		},
	}
}

// Attach registers a Prometheus collector on the core's instrumentation
// hooks. The returned function detaches it; the metrics stay registered on
// the registry, counting nothing further.
//
// Metrics collected:
//   - reva_observers_total: Counter of instrumented containers by kind
//   - reva_cell_writes_total: Counter of accepted slot writes
//   - reva_notify_fanout: Histogram of subscribers per change
//   - reva_watchers_active: Gauge of live watchers
//   - reva_watcher_runs_total: Counter of evaluations by outcome
//   - reva_watcher_run_duration_seconds: Histogram of evaluation duration
//   - reva_scheduler_flushes_total: Counter of flushes
//   - reva_scheduler_flush_batch_size: Histogram of watchers per flush
//   - reva_scheduler_flush_duration_seconds: Histogram of flush duration
func Attach(opts ...Option) (detach func()) {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}
	if config.Buckets == nil {
		config.Buckets = prometheus.DefBuckets
	}

	return reva.RegisterHooks(newCollector(config).hooks())
}
