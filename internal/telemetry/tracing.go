// Package telemetry sets up OpenTelemetry tracing for a run.
package telemetry

import (
	"context"
	"fmt"
	"io"

	texporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// Span exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterGCP    = "gcp"
)

// Config selects where finished spans go.
type Config struct {
	Exporter  string `mapstructure:"exporter"`
	// ProjectID is the Cloud Trace project for the gcp exporter.
	ProjectID string `mapstructure:"project_id"`
}

// Validate checks the exporter name and its required settings.
func (c Config) Validate() error {
	switch c.Exporter {
	case "", ExporterNone, ExporterStdout:
		return nil
	case ExporterGCP:
		if c.ProjectID == "" {
			return fmt.Errorf("tracing.project_id is required for the gcp exporter")
		}
		return nil
	default:
		return fmt.Errorf("tracing.exporter must be one of none, stdout, gcp; got %q", c.Exporter)
	}
}

// NewExporter builds the configured span exporter. It returns nil for "none".
// The stdout exporter writes pretty-printed spans to w.
func NewExporter(cfg Config, w io.Writer) (sdktrace.SpanExporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Exporter {
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		return exp, nil
	case ExporterGCP:
		exp, err := texporter.New(texporter.WithProjectID(cfg.ProjectID))
		if err != nil {
			return nil, fmt.Errorf("create cloud trace exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, nil
	}
}

// Setup builds the configured exporter and installs a tracer provider that
// batches spans into it.
func Setup(ctx context.Context, serviceName string, cfg Config, w io.Writer) (*sdktrace.TracerProvider, error) {
	exp, err := NewExporter(cfg, w)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return InitTracerProvider(ctx, serviceName)
	}
	return InitTracerProvider(ctx, serviceName, sdktrace.NewBatchSpanProcessor(exp))
}

// InitTracerProvider installs a global tracer provider and the W3C
// propagators. Extra span processors (exporters) may be supplied; with none,
// spans are recorded but not exported. Callers must Shutdown the provider.
func InitTracerProvider(ctx context.Context, serviceName string, processors ...sdktrace.SpanProcessor) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	for _, p := range processors {
		opts = append(opts, sdktrace.WithSpanProcessor(p))
	}
	tp := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}
