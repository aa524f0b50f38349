package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/harborlight/townfeed/internal/config"
	"github.com/harborlight/townfeed/internal/support/logger"
)

// InitTracing configures the global tracer provider against the
// configured OTLP/HTTP collector. When telemetry is disabled the returned
// shutdown function is a no-op.
func InitTracing(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	tele := cfg.Townfeed.Telemetry
	if !tele.Enabled {
		logger.Debugf("Tracing disabled by configuration.")
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(tele.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
	if tele.OTLPEndpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(tele.OTLPEndpoint))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Infof("Tracing initialized for service '%s' (endpoint: %s).", tele.ServiceName, tele.OTLPEndpoint)
	return tp.Shutdown, nil
}
