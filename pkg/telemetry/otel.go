package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/strata-dev/strata/pkg/strata"
)

// Default tracer name for strata instrumentation.
const defaultTracerName = "strata"

// TracingConfig configures the OpenTelemetry instrument.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "strata").
	TracerName string

	// StoreName is recorded as an attribute on every span, when set.
	StoreName string

	// Filter determines which notification waves to trace, by changed path.
	// If nil, all waves are traced.
	Filter func(path string) bool

	tracer trace.Tracer
}

// TracingOption configures the OpenTelemetry instrument.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithStoreName records the store name on every span.
func WithStoreName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.StoreName = name
	}
}

// WithPathFilter traces only notification waves whose changed path passes
// the filter.
func WithPathFilter(filter func(path string) bool) TracingOption {
	return func(c *TracingConfig) {
		c.Filter = filter
	}
}

// Tracing is a strata.Instrument that emits one span per notification wave.
// Spans are retroactive: the wave is synchronous and has already completed
// when the span is recorded, so the span's bounds are reconstructed from the
// measured duration.
type Tracing struct {
	config TracingConfig
}

// OpenTelemetry creates a tracing instrument.
func OpenTelemetry(opts ...TracingOption) *Tracing {
	config := TracingConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)
	return &Tracing{config: config}
}

// MutationObserved implements strata.Instrument.
func (t *Tracing) MutationObserved(path string, kind strata.Kind) {}

// SubscriptionAdded implements strata.Instrument.
func (t *Tracing) SubscriptionAdded(path string, active int) {}

// SubscriptionRemoved implements strata.Instrument.
func (t *Tracing) SubscriptionRemoved(path string, active int) {}

// NotifyCompleted implements strata.Instrument.
func (t *Tracing) NotifyCompleted(path string, delivered int, elapsed time.Duration) {
	if t.config.Filter != nil && !t.config.Filter(path) {
		return
	}

	end := time.Now()
	attrs := []attribute.KeyValue{
		attribute.String("strata.path", path),
		attribute.Int("strata.delivered", delivered),
	}
	if t.config.StoreName != "" {
		attrs = append(attrs, attribute.String("strata.store", t.config.StoreName))
	}

	_, span := t.config.tracer.Start(context.Background(), "strata.notify",
		trace.WithTimestamp(end.Add(-elapsed)),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	span.End(trace.WithTimestamp(end))
}
