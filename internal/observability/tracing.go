// Package observability wires the OpenTelemetry tracer provider the tracing
// middleware emits into.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SetupTracing installs a global tracer provider for the given exporter
// ("otlp", "stdout", or "" for none) and returns a flush/shutdown func.
func SetupTracing(ctx context.Context, exporter string) (func(context.Context) error, error) {
	var exp sdktrace.SpanExporter
	var err error
	switch exporter {
	case "otlp":
		exp, err = otlptracehttp.New(ctx)
	case "stdout":
		exp, err = stdouttrace.New()
	default:
		// Tracing middleware still runs; spans go to the default no-op provider.
		return func(context.Context) error { return nil }, nil
	}
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "quicktask-api"),
		)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
