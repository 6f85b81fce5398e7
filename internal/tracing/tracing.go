// Package tracing wires OpenTelemetry spans around HTTP requests; event-bus
// mutations get no spans of their own. fluxor's cmd/enterprise references a
// pkg/observability/otel package for this same job but it ships no
// exporter selection logic of its own, so the exporter switch here
// follows the otel SDK's own documented wiring directly, selecting among
// the jaeger/zipkin/stdouttrace exporters config.TracingConfig names.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config selects and configures the trace exporter.
type Config struct {
	Enabled  bool
	Exporter string // stdout | jaeger | zipkin
	Endpoint string
}

// Provider owns the process-wide TracerProvider and its shutdown hook.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// Noop returns a Provider whose Tracer produces no-op spans, used when
// tracing is disabled.
func Noop() *Provider {
	return &Provider{tracer: otel.Tracer("kissvdb")}
}

// New builds a Provider from cfg and installs it as the global
// TracerProvider.
func New(ctx context.Context, serviceName string, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return Noop(), nil
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("tracing: build exporter %q: %w", cfg.Exporter, err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp, tracer: tp.Tracer("kissvdb")}, nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "", "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "jaeger":
		return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Endpoint)))
	case "zipkin":
		return zipkin.New(cfg.Endpoint)
	default:
		return nil, fmt.Errorf("unknown exporter %q", cfg.Exporter)
	}
}

// Tracer returns the provider's Tracer, usable even when tracing is
// disabled (in which case it returns no-op spans).
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Shutdown flushes and stops the exporter, if one was started.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
