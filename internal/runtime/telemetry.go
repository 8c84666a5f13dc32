package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohammad-safakhou/leaksight/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry encapsulates the tracer provider and the run's metrics registry.
type Telemetry struct {
	tp          *sdktrace.TracerProvider
	registry    *prometheus.Registry
	metricsFile string

	Metrics *Metrics
	Tracer  trace.Tracer
}

// TelemetryOptions configures telemetry initialization.
type TelemetryOptions struct {
	ServiceVersion string
}

// SetupTelemetry initializes tracing and metrics for a run. Metrics are always
// collected; spans are exported over OTLP only when telemetry is enabled.
func SetupTelemetry(ctx context.Context, cfg config.TelemetryConfig, opts TelemetryOptions) (*Telemetry, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "leaksight"
	}
	registry := prometheus.NewRegistry()
	t := &Telemetry{
		registry:    registry,
		metricsFile: cfg.MetricsFile,
		Metrics:     NewMetrics(registry),
		Tracer:      otel.Tracer(name),
	}
	if !cfg.Enabled {
		return t, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(name),
			attribute.String("service.namespace", "leaksight"),
			attribute.String("service.version", opts.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("resource init: %w", err)
	}

	endpoint := cfg.OTLPEndpoint
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp init: %w", err)
	}

	t.tp = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(t.tp)
	t.Tracer = t.tp.Tracer(name)
	return t, nil
}

// Shutdown flushes spans and writes the metrics textfile when configured.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.tp != nil {
		if e := t.tp.Shutdown(ctx); e != nil {
			errs = append(errs, fmt.Errorf("trace shutdown: %w", e))
		}
	}
	if t.metricsFile != "" {
		if e := prometheus.WriteToTextfile(t.metricsFile, t.registry); e != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", e))
		}
	}
	return errors.Join(errs...)
}
