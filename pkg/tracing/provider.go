package tracing

import (
	"context"
	"errors"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

var (
	errNoSvcName                 = errors.New("service name is empty")
	errUnsupportedTraceURLScheme = errors.New("unsupported tracing url scheme")
)

type ProviderConfig struct {
	ServiceName string
	URL         string
	InstanceID  string
}

// NewProvider builds the process-wide span sink. Finished spans are shipped
// by a batch processor so request completion never waits on export. An
// empty URL disables export.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*sdktrace.TracerProvider, error) {
	if cfg.ServiceName == "" {
		return nil, errNoSvcName
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}

	if cfg.URL != "" {
		u, err := url.Parse(cfg.URL)
		if err != nil {
			return nil, err
		}

		exporterOpts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(u.Host),
			otlptracehttp.WithURLPath(u.Path),
		}
		switch u.Scheme {
		case "http":
			exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
		case "https":
		default:
			return nil, errUnsupportedTraceURLScheme
		}

		exporter, err := otlptracehttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	attributes := []attribute.KeyValue{
		semconv.ServiceNameKey.String(cfg.ServiceName),
	}
	if cfg.InstanceID != "" {
		attributes = append(attributes, attribute.String("host.id", cfg.InstanceID))
	}
	opts = append(opts, sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, attributes...)))

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp, nil
}
