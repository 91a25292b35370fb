// Package telemetry wires OpenTelemetry tracing for the checkin binary.
package telemetry

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config is read from CHECKIN_OTEL_* environment variables.
type Config struct {
	Enabled     bool    `env:"CHECKIN_OTEL_ENABLED" envDefault:"true"`
	Endpoint    string  `env:"CHECKIN_OTEL_ENDPOINT"`
	ServiceName string  `env:"CHECKIN_OTEL_SERVICE_NAME" envDefault:"checkin"`
	SampleRatio float64 `env:"CHECKIN_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// ConfigFromEnv parses the tracing configuration.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse telemetry env: %w", err)
	}
	return cfg, nil
}

// Active reports whether traces will be exported.
func (c Config) Active() bool {
	return c.Enabled && c.Endpoint != ""
}

// Setup installs a global tracer provider exporting over OTLP/HTTP.
//
// Tracing is opt-in: without an endpoint, or with CHECKIN_OTEL_ENABLED=false,
// Setup returns a no-op shutdown function and leaves the global provider
// alone. The returned shutdown flushes pending spans and should be deferred.
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Active() {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.Endpoint),
	)
	if err != nil {
		return noop, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return noop, fmt.Errorf("build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
