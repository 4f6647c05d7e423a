// Package telemetry provides observability instruments for strata stores:
// Prometheus collectors and OpenTelemetry tracing, both attached via
// strata.WithInstrument.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/strata-dev/strata/pkg/strata"
)

// MetricsConfig configures the Prometheus instrument.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "strata").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for notification duration.
	// Default: prometheus.DefBuckets.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus instrument.
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

// WithBuckets sets the notification duration histogram buckets.
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

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "strata",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics is a strata.Instrument backed by Prometheus collectors.
type Metrics struct {
	mutationsTotal      *prometheus.CounterVec
	notificationsTotal  prometheus.Counter
	callbacksTotal      prometheus.Counter
	notifyDuration      prometheus.Histogram
	subscribesTotal     prometheus.Counter
	activeSubscriptions prometheus.Gauge
}

// Prometheus creates a Prometheus-backed instrument. Attach it at store
// construction:
//
//	m := telemetry.Prometheus(telemetry.WithSubsystem("cart"))
//	store, _ := strata.New("cart", data, strata.WithInstrument(m))
func Prometheus(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		mutationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "mutations_total",
			Help:        "Total number of store mutations, by node kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		notificationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notifications_total",
			Help:        "Total number of notification waves",
			ConstLabels: config.ConstLabels,
		}),

		callbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "callbacks_total",
			Help:        "Total number of subscriber callbacks delivered",
			ConstLabels: config.ConstLabels,
		}),

		notifyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notify_duration_seconds",
			Help:        "Notification wave duration in seconds",
			Buckets:     config.Buckets,
			ConstLabels: config.ConstLabels,
		}),

		subscribesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "subscribes_total",
			Help:        "Total number of subscriptions ever registered",
			ConstLabels: config.ConstLabels,
		}),

		activeSubscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_subscriptions",
			Help:        "Currently registered subscriptions",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// MutationObserved implements strata.Instrument.
func (m *Metrics) MutationObserved(path string, kind strata.Kind) {
	m.mutationsTotal.WithLabelValues(kind.String()).Inc()
}

// SubscriptionAdded implements strata.Instrument.
func (m *Metrics) SubscriptionAdded(path string, active int) {
	m.subscribesTotal.Inc()
	m.activeSubscriptions.Set(float64(active))
}

// SubscriptionRemoved implements strata.Instrument.
func (m *Metrics) SubscriptionRemoved(path string, active int) {
	m.activeSubscriptions.Set(float64(active))
}

// NotifyCompleted implements strata.Instrument.
func (m *Metrics) NotifyCompleted(path string, delivered int, elapsed time.Duration) {
	m.notificationsTotal.Inc()
	m.callbacksTotal.Add(float64(delivered))
	m.notifyDuration.Observe(elapsed.Seconds())
}
