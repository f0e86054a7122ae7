package instrument

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/rescache/pkg/cache"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "rescache").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for stage durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// Metrics holds the Prometheus collectors for one (or several) caches.
type Metrics struct {
	transitions *prometheus.CounterVec
	deliveries  prometheus.Counter
	inFlight    prometheus.Gauge

	fetchDuration     prometheus.Histogram
	transformDuration prometheus.Histogram
}

// NewMetrics creates and registers the collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	cfg := MetricsConfig{
		Namespace: "rescache",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	factory := promauto.With(cfg.Registry)

	return &Metrics{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "transitions_total",
			Help:        "State transitions, labelled by source and destination state.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"from", "to"}),
		deliveries: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "deliveries_total",
			Help:        "Transitions into the fetched state, i.e. observer fan-outs.",
			ConstLabels: cfg.ConstLabels,
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "in_flight",
			Help:        "1 while a fetch/transform cycle is in flight, 0 otherwise.",
			ConstLabels: cfg.ConstLabels,
		}),
		fetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "fetch_duration_seconds",
			Help:        "Wall time from fetch start to its completion callback.",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}),
		transformDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "transform_duration_seconds",
			Help:        "Wall time from transform start to its completion callback.",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}),
	}
}

// ObserveCache attaches the transition and in-flight collectors to a cache
// and returns the registration handle for a later Forget.
//
// The observer registers at the lowest possible priority, so it never
// raises the cache's aggregate priority above what real consumers ask
// for. It does keep the aggregate defined: once attached, an in-flight
// state always carries a priority.
func ObserveCache[P, I, R any](m *Metrics, c *cache.Cache[P, I, R]) cache.Handle {
	return c.Request().
		Priority(cache.Priority(minInt)).
		ObserveState(func(old, next cache.State[P, I, R]) {
			m.transitions.WithLabelValues(old.Kind.String(), next.Kind.String()).Inc()
			if next.Kind == cache.Fetched {
				m.deliveries.Inc()
			}
			if next.InFlight() {
				m.inFlight.Set(1)
			} else {
				m.inFlight.Set(0)
			}
		})
}

const minInt = -int(^uint(0)>>1) - 1

// WrapFetcher times each fetch cycle.
func WrapFetcher[P, I, R any](m *Metrics, f cache.Fetcher[P, I, R]) cache.Fetcher[P, I, R] {
	return func(s cache.State[P, I, R], done func(*I)) {
		start := time.Now()
		f(s, func(input *I) {
			m.fetchDuration.Observe(time.Since(start).Seconds())
			done(input)
		})
	}
}

// WrapTransformer times each transform cycle.
func WrapTransformer[P, I, R any](m *Metrics, t cache.Transformer[P, I, R]) cache.Transformer[P, I, R] {
	return func(s cache.State[P, I, R], done func(*R)) {
		start := time.Now()
		t(s, func(res *R) {
			m.transformDuration.Observe(time.Since(start).Seconds())
			done(res)
		})
	}
}
