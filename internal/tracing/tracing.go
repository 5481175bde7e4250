// tracing — настройка OpenTelemetry для исходящих запросов к API.
//
// Спаны создаёт otelhttp-транспорт authclient; здесь только провайдер,
// OTLP/HTTP-экспортёр и пропагаторы.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Options struct {
	Enabled     bool
	Endpoint    string // host:port коллектора
	URLPath     string
	Insecure    bool
	SampleRatio float64
	ServiceName string
	Env         string
}

// Shutdown сбрасывает буфер спанов и останавливает экспортёр.
type Shutdown func(ctx context.Context) error

// Setup регистрирует глобальный TracerProvider. При Enabled=false ничего
// не меняет и возвращает пустой Shutdown.
func Setup(ctx context.Context, o Options) (Shutdown, error) {
	const op = "tracing.Setup"

	if !o.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(o.Endpoint)}
	if o.URLPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(o.URLPath))
	}
	if o.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: exporter: %w", op, err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", o.ServiceName),
		attribute.String("deployment.environment", o.Env),
	))
	if err != nil {
		return nil, fmt.Errorf("%s: resource: %w", op, err)
	}

	ratio := o.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}
