// Package tracing bootstraps the OTel TracerProvider every worker uses to
// correlate spans across a reading's processing stages. It wires the SDK
// provider with a resource but no external exporter: spans still propagate
// trace/span IDs into logging.Logger, they just aren't shipped anywhere yet.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// Shutdown flushes and releases the TracerProvider's resources.
type Shutdown func(ctx context.Context) error

// Init installs a process-wide TracerProvider tagged with serviceName and
// environment and returns a named Tracer plus a Shutdown to call before exit.
func Init(serviceName, environment string) (trace.Tracer, Shutdown, error) {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.DeploymentEnvironmentKey.String(environment),
		)),
	)
	otel.SetTracerProvider(tp)

	return tp.Tracer(serviceName), tp.Shutdown, nil
}
