// Package tracing exports watcher evaluations and scheduler flushes as
// OpenTelemetry spans.
//
// The tracer uses the global OpenTelemetry tracer provider. Configure it
// in your main() before attaching:
//
//	tp := sdktrace.NewTracerProvider(
//	    sdktrace.WithBatcher(exporter),
//	    sdktrace.WithResource(resource.NewWithAttributes(
//	        semconv.SchemaURL,
//	        semconv.ServiceName("my-app"),
//	    )),
//	)
//	otel.SetTracerProvider(tp)
//
//	detach := tracing.Attach(tracing.WithTracerName("my-app"))
//	defer detach()
package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/reva-ui/reva/pkg/reva"
)

// Default tracer name.
const defaultTracerName = "reva"

// Config configures the tracing hooks.
type Config struct {
	// TracerName is the name of the tracer (default: "reva").
	TracerName string

	// MinDuration drops watcher-run spans shorter than this. Zero traces
	// every run.
	MinDuration time.Duration

	// Filter determines which watcher runs to trace, by watcher id.
	// If nil, all runs are traced.
	Filter func(watcherID uint64) bool

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// Option configures the tracing hooks.
type Option func(*Config)

// WithTracerName sets the tracer name.
func WithTracerName(name string) Option {
	return func(c *Config) {
		c.TracerName = name
	}
}

// WithMinDuration sets the minimum watcher-run duration worth a span.
func WithMinDuration(d time.Duration) Option {
	return func(c *Config) {
		c.MinDuration = d
	}
}

// WithWatcherFilter sets a filter over watcher ids.
func WithWatcherFilter(filter func(watcherID uint64) bool) Option {
	return func(c *Config) {
		c.Filter = filter
	}
}

func defaultConfig() Config {
	return Config{
		TracerName: defaultTracerName,
	}
}

// Attach registers span-producing hooks on the reactive core. The hooks
// learn of a run only after it completes, so spans are emitted
// retroactively: started at now-duration, ended at now. That keeps span
// durations truthful while the core stays free of tracing imports.
func Attach(opts ...Option) (detach func()) {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)

	return reva.RegisterHooks(&reva.Hooks{
		WatcherRun: func(id uint64, d time.Duration, failed bool) {
			if config.Filter != nil && !config.Filter(id) {
				return
			}
			if d < config.MinDuration {
				return
			}

			end := time.Now()
			_, span := config.tracer.Start(
				context.Background(),
				"reva.watcher.run",
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithTimestamp(end.Add(-d)),
				trace.WithAttributes(
					attribute.Int64("reva.watcher_id", int64(id)),
				),
			)
			if failed {
				span.SetStatus(codes.Error, "getter panicked")
			} else {
				span.SetStatus(codes.Ok, "")
			}
			span.End(trace.WithTimestamp(end))
		},

		SchedulerFlush: func(n int, d time.Duration) {
			end := time.Now()
			_, span := config.tracer.Start(
				context.Background(),
				"reva.scheduler.flush",
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithTimestamp(end.Add(-d)),
				trace.WithAttributes(
					attribute.Int("reva.flush_watchers", n),
				),
			)
			span.SetStatus(codes.Ok, "")
			span.End(trace.WithTimestamp(end))
		},
	})
}
