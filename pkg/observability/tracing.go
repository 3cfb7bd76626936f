// Package observability holds the Prometheus recorders and OpenTelemetry
// tracing shared by the tool-bridge client and tool servers.
package observability

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ajitpratap0/mcp-toolbridge/pkg/config"
)

const tracerName = "github.com/ajitpratap0/mcp-toolbridge"

// TracingConfig configures OpenTelemetry tracing
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	ExporterType ExporterType
	Endpoint     string // OTLP endpoint
	Headers      map[string]string
	Insecure     bool

	SampleRate float64 // 0.0 to 1.0

	// Exporter overrides ExporterType; tests pass an in-memory exporter
	Exporter sdktrace.SpanExporter
}

// ExporterType defines the type of trace exporter
type ExporterType string

const (
	ExporterTypeOTLPGRPC ExporterType = "otlp-grpc"
	ExporterTypeOTLPHTTP ExporterType = "otlp-http"
	ExporterTypeNoop     ExporterType = "noop"
)

// Tracer starts the spans around client tool calls and server tool
// handlers. A nil *Tracer is valid and records nothing.
type Tracer struct {
	tracer   trace.Tracer
	mu       sync.Mutex
	shutdown func(context.Context) error
}

// NoopTracer returns a Tracer whose spans are never recorded.
func NoopTracer() *Tracer {
	return &Tracer{tracer: noop.NewTracerProvider().Tracer(tracerName)}
}

// NewTracer creates a tracer backed by its own SDK provider. The provider is
// not installed globally.
func NewTracer(config TracingConfig) (*Tracer, error) {
	if config.ServiceName == "" {
		config.ServiceName = "mcp-toolbridge"
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = "unknown"
	}
	if config.Environment == "" {
		config.Environment = "development"
	}
	if config.SampleRate == 0 {
		config.SampleRate = 1.0
	}

	// a caller-supplied exporter is fed synchronously
	processor := sdktrace.WithSyncer(config.Exporter)
	if config.Exporter == nil {
		exporter, err := createExporter(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create exporter: %w", err)
		}
		processor = sdktrace.WithBatcher(exporter)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
		semconv.DeploymentEnvironment(config.Environment),
	)

	tp := sdktrace.NewTracerProvider(
		processor,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(createSampler(config.SampleRate)),
	)

	return &Tracer{
		tracer:   tp.Tracer(tracerName),
		shutdown: tp.Shutdown,
	}, nil
}

// TracerFromConfig builds the tracer cfg selects. The noop exporter yields
// NoopTracer, so nothing is batched when tracing is off.
func TracerFromConfig(cfg *config.Config, service, version string) (*Tracer, error) {
	kind := ExporterType(cfg.TraceExporter)
	if kind == ExporterTypeNoop || kind == "" {
		return NoopTracer(), nil
	}
	return NewTracer(TracingConfig{
		ServiceName:    service,
		ServiceVersion: version,
		ExporterType:   kind,
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
		SampleRate:     cfg.TraceSampleRate,
	})
}

func createExporter(config TracingConfig) (sdktrace.SpanExporter, error) {
	switch config.ExporterType {
	case ExporterTypeOTLPGRPC:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(config.Endpoint),
			otlptracegrpc.WithHeaders(config.Headers),
		}
		if config.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptrace.New(context.Background(), otlptracegrpc.NewClient(opts...))
	case ExporterTypeOTLPHTTP:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(config.Endpoint),
			otlptracehttp.WithHeaders(config.Headers),
		}
		if config.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptrace.New(context.Background(), otlptracehttp.NewClient(opts...))
	case ExporterTypeNoop, "":
		return noopExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", config.ExporterType)
	}
}

func createSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
}

// StartCall starts a "toolbridge.call" span for one client tool call.
func (t *Tracer) StartCall(ctx context.Context, server, tool string) (context.Context, trace.Span) {
	return t.start(ctx, "toolbridge.call", trace.SpanKindClient,
		attribute.String("toolbridge.server", server),
		attribute.String("toolbridge.tool", tool),
	)
}

// StartTool starts a "toolbridge.tool" span for one server-side handler.
func (t *Tracer) StartTool(ctx context.Context, side, tool string) (context.Context, trace.Span) {
	return t.start(ctx, "toolbridge.tool", trace.SpanKindServer,
		attribute.String("toolbridge.side", side),
		attribute.String("toolbridge.tool", tool),
	)
}

func (t *Tracer) start(ctx context.Context, name string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return noop.NewTracerProvider().Tracer(tracerName).Start(ctx, name)
	}
	return t.tracer.Start(ctx, name, trace.WithSpanKind(kind), trace.WithAttributes(attrs...))
}

// EndSpan records the outcome and ends span.
func EndSpan(span trace.Span, transport, status string, err error) {
	span.SetAttributes(
		attribute.String("toolbridge.transport", transport),
		attribute.String("toolbridge.status", status),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Shutdown flushes and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.shutdown != nil {
		err := t.shutdown(ctx)
		t.shutdown = nil
		return err
	}
	return nil
}

type noopExporter struct{}

func (noopExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (noopExporter) Shutdown(context.Context) error { return nil }
