// Package tracing installs the OpenTelemetry tracer and helps close spans.
package tracing

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.7.0"
)

// InstallOpenTelemetryTracer sets the global tracer provider when an endpoint
// is configured. The returned func flushes and stops it.
func InstallOpenTelemetryTracer(config *Config, logger *slog.Logger, appName, version string) (func(), error) {
	if config.OtelEndpoint == "" {
		return func() {}, nil
	}

	logger.Info("initializing OpenTelemetry tracer", "endpoint", config.OtelEndpoint)

	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(appName),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithHost(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize trace resource")
	}

	options := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(config.OtelEndpoint),
		otlptracegrpc.WithInsecure(),
	}
	if config.OrgID != "" {
		options = append(options,
			otlptracegrpc.WithHeaders(map[string]string{"X-Scope-OrgID": config.OrgID}))
	}

	traceExporter, err := otlptracegrpc.New(ctx, options...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create trace exporter")
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp),
	)
	otel.SetTracerProvider(tracerProvider)

	// set global propagator to tracecontext (the default is no-op).
	otel.SetTextMapPropagator(propagation.TraceContext{})

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			logger.Error("OpenTelemetry trace provider failed to shutdown", "err", err)
		}
	}

	return shutdown, nil
}
