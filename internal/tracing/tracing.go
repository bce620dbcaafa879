// Package tracing installs the OpenTelemetry tracer provider used for
// pipeline stage spans.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kyleking/hr-insight/internal/config"
	"github.com/kyleking/hr-insight/internal/logging"
)

// InstrumentationName is the tracer name used by the pipeline
const InstrumentationName = "github.com/kyleking/hr-insight/internal/pipeline"

// Shutdown flushes and stops the exporter
type Shutdown func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Setup returns a tracer provider for cfg. With tracing disabled the provider
// is a no-op and so is the shutdown.
func Setup(ctx context.Context, cfg config.TracingConfig, logger *logging.Logger) (trace.TracerProvider, Shutdown, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	if !cfg.Enabled {
		return noop.NewTracerProvider(), noopShutdown, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp := NewProvider(cfg, sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)

	logger.WithFields(map[string]interface{}{
		"endpoint": cfg.Endpoint,
		"service":  cfg.ServiceName,
	}).Debug("OpenTelemetry tracer initialized")

	return tp, tp.Shutdown, nil
}

// NewProvider builds an SDK provider carrying the service resource and the
// configured sampler. Extra options attach span processors.
func NewProvider(cfg config.TracingConfig, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	name := cfg.ServiceName
	if name == "" {
		name = "hr-insight"
	}

	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	base := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}

	return sdktrace.NewTracerProvider(append(base, opts...)...)
}
