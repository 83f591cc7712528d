// Package telemetry wires OpenTelemetry tracing into heapql.
//
// Tracing is off unless OTEL_ENABLED=true. The remaining settings follow the
// standard OTEL_* environment variables (service name, OTLP endpoint,
// protocol, headers, sampler and extra resource attributes). When tracing is
// disabled the global no-op provider stays in place and StartSpan costs
// almost nothing.
//
//	shutdown, err := telemetry.Init(ctx)
//	if err != nil {
//	    logger.Warn("tracing disabled: %v", err)
//	}
//	defer shutdown(ctx)
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var (
	globalConfig *Config
	configOnce   sync.Once
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init installs the global tracer provider. It is a no-op when tracing is
// disabled.
func Init(ctx context.Context) (ShutdownFunc, error) {
	cfg := loadConfig()
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return noopShutdown, err
	}
	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return noopShutdown, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(createSampler(cfg)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// Enabled reports whether tracing is enabled.
func Enabled() bool {
	return loadConfig().Enabled
}

// GetConfig returns the telemetry configuration read at first use.
func GetConfig() *Config {
	return loadConfig()
}

func loadConfig() *Config {
	configOnce.Do(func() {
		globalConfig = LoadFromEnv()
	})
	return globalConfig
}
