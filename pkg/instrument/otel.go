package instrument

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/rescache/pkg/cache"
)

// Default tracer name for rescache instrumentation.
const defaultTracerName = "rescache"

// TraceConfig configures the OpenTelemetry decorators.
type TraceConfig struct {
	// TracerName is the name of the tracer (default: "rescache").
	TracerName string

	// Attributes are added to every span.
	Attributes []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// TraceOption configures the OpenTelemetry decorators.
type TraceOption func(*TraceConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TraceOption {
	return func(c *TraceConfig) {
		c.TracerName = name
	}
}

// WithAttributes adds attributes to every span.
func WithAttributes(attrs ...attribute.KeyValue) TraceOption {
	return func(c *TraceConfig) {
		c.Attributes = append(c.Attributes, attrs...)
	}
}

func resolveTraceConfig(opts []TraceOption) *TraceConfig {
	cfg := &TraceConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.tracer = otel.Tracer(cfg.TracerName)
	return cfg
}

// TraceFetcher wraps a fetcher so each fetch cycle is recorded as a span,
// open from hook invocation until the completion callback fires.
func TraceFetcher[P, I, R any](f cache.Fetcher[P, I, R], opts ...TraceOption) cache.Fetcher[P, I, R] {
	cfg := resolveTraceConfig(opts)
	return func(s cache.State[P, I, R], done func(*I)) {
		_, span := cfg.tracer.Start(context.Background(), "rescache.fetch",
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(cycleAttributes(s, cfg)...))
		f(s, func(input *I) {
			span.SetAttributes(attribute.Bool("rescache.absent", input == nil))
			span.End()
			done(input)
		})
	}
}

// TraceTransformer wraps a transformer the same way TraceFetcher wraps a
// fetcher.
func TraceTransformer[P, I, R any](t cache.Transformer[P, I, R], opts ...TraceOption) cache.Transformer[P, I, R] {
	cfg := resolveTraceConfig(opts)
	return func(s cache.State[P, I, R], done func(*R)) {
		_, span := cfg.tracer.Start(context.Background(), "rescache.transform",
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(cycleAttributes(s, cfg)...))
		t(s, func(res *R) {
			span.SetAttributes(attribute.Bool("rescache.absent", res == nil))
			span.End()
			done(res)
		})
	}
}

func cycleAttributes[P, I, R any](s cache.State[P, I, R], cfg *TraceConfig) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int64("rescache.task_id", int64(s.TaskID)),
		attribute.String("rescache.state", s.Kind.String()),
	}
	if s.HasPriority {
		attrs = append(attrs, attribute.Int("rescache.priority", int(s.Priority)))
	}
	attrs = append(attrs, cfg.Attributes...)
	return attrs
}
