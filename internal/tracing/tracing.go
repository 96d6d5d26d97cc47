// Package tracing sets up OpenTelemetry tracing for the ranking service and
// provides span helpers for the request path and bundle storage.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Supported exporters.
const (
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// exporterTimeout bounds exporter construction.
const exporterTimeout = 10 * time.Second

// Provider errors
var (
	ErrMissingServiceName  = errors.New("service name is required")
	ErrInvalidSamplingRate = errors.New("sampling rate must be between 0 and 1")
	ErrUnknownExporter     = errors.New("unsupported exporter type")
)

// Config holds the tracing configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Enabled        bool
	Environment    string

	// Exporter is ExporterOTLPHTTP (default) or ExporterOTLPGRPC.
	Exporter string

	// OTLPEndpoint overrides the exporter's default host:port.
	OTLPEndpoint string

	// SamplingRate is the fraction of root traces sampled, 0 to 1. Child
	// spans follow their parent's decision.
	SamplingRate float64

	// Insecure disables TLS towards the collector.
	Insecure bool
}

// Validate checks the fields NewProvider depends on. A disabled config is
// always valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ServiceName == "" {
		return ErrMissingServiceName
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("%w, got %f", ErrInvalidSamplingRate, c.SamplingRate)
	}
	switch c.Exporter {
	case "", ExporterOTLPHTTP, ExporterOTLPGRPC:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownExporter, c.Exporter)
	}
}

// Provider owns the SDK tracer provider. A disabled Provider is a no-op.
type Provider struct {
	tp     *sdktrace.TracerProvider
	config Config
}

// NewProvider builds the tracer provider and installs it, with the W3C trace
// context and baggage propagators, as the global default.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		slog.Info("tracing disabled")
		return &Provider{config: cfg}, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg.SamplingRate)),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxExportBatchSize(512),
		),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	slog.Info("tracing initialized",
		"service", cfg.ServiceName,
		"exporter", exporterName(cfg.Exporter),
		"endpoint", cfg.OTLPEndpoint,
		"sampling_rate", cfg.SamplingRate,
	)
	return &Provider{tp: tp, config: cfg}, nil
}

func exporterName(e string) string {
	if e == "" {
		return ExporterOTLPHTTP
	}
	return e
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(ctx, exporterTimeout)
	defer cancel()

	switch exporterName(cfg.Exporter) {
	case ExporterOTLPGRPC:
		var opts []otlptracegrpc.Option
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case ExporterOTLPHTTP:
		var opts []otlptracehttp.Option
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.Exporter)
	}
}

// newSampler samples root spans at rate and lets children inherit.
func newSampler(rate float64) sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case rate >= 1:
		root = sdktrace.AlwaysSample()
	case rate <= 0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(rate)
	}
	return sdktrace.ParentBased(root)
}

// Shutdown flushes pending spans and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	slog.Info("shutting down tracer provider")
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	return nil
}

// Tracer returns a named tracer, falling back to the global provider when
// tracing is disabled.
func (p *Provider) Tracer(name string) trace.Tracer {
	if p.tp == nil {
		return otel.Tracer(name)
	}
	return p.tp.Tracer(name)
}

// IsEnabled reports whether spans are exported.
func (p *Provider) IsEnabled() bool {
	return p.tp != nil
}
