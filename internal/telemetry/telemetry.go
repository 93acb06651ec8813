// Package telemetry exports generation counters over OTLP.
package telemetry

import (
	"context"
	"fmt"

	"github.com/theirongolddev/qaid/internal/config"
	"github.com/theirongolddev/qaid/internal/model"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	serviceName    = "qaid"
	serviceVersion = "1.0.0"
)

// Recorder receives every tracked generation event.
type Recorder interface {
	RecordGeneration(ctx context.Context, ev model.GenerationEvent)
	Close(ctx context.Context) error
}

// Exporter records generation metrics into an OpenTelemetry meter.
type Exporter struct {
	provider    *sdkmetric.MeterProvider
	generations metric.Int64Counter
	tokens      metric.Int64Counter
	cost        metric.Float64Counter
	timeSaved   metric.Float64Counter
	latency     metric.Float64Histogram
}

// New creates an OTLP/gRPC exporter from config. Callers should fall back
// to Noop when it returns an error.
func New(ctx context.Context, cfg config.TelemetryConfig) (*Exporter, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil, fmt.Errorf("telemetry is disabled or endpoint not configured")
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	return newExporter(provider)
}

func newExporter(provider *sdkmetric.MeterProvider) (*Exporter, error) {
	meter := provider.Meter(serviceName)

	generations, err := meter.Int64Counter(
		"qaid_generations_total",
		metric.WithDescription("Generation attempts by kind, provider and outcome"),
		metric.WithUnit("{generation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating generations counter: %w", err)
	}

	tokens, err := meter.Int64Counter(
		"qaid_generation_tokens_total",
		metric.WithDescription("Tokens consumed by successful generations"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tokens counter: %w", err)
	}

	cost, err := meter.Float64Counter(
		"qaid_generation_cost_usd",
		metric.WithDescription("Estimated generation cost in USD"),
		metric.WithUnit("USD"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating cost counter: %w", err)
	}

	timeSaved, err := meter.Float64Counter(
		"qaid_time_saved_minutes",
		metric.WithDescription("Estimated manual authoring minutes saved"),
		metric.WithUnit("min"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating time saved counter: %w", err)
	}

	latency, err := meter.Float64Histogram(
		"qaid_generation_duration_ms",
		metric.WithDescription("Generation call latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating latency histogram: %w", err)
	}

	return &Exporter{
		provider:    provider,
		generations: generations,
		tokens:      tokens,
		cost:        cost,
		timeSaved:   timeSaved,
		latency:     latency,
	}, nil
}

// RecordGeneration adds one event to the counters.
func (e *Exporter) RecordGeneration(ctx context.Context, ev model.GenerationEvent) {
	opt := metric.WithAttributes(
		attribute.String("kind", string(ev.Kind)),
		attribute.String("provider", ev.Provider),
		attribute.String("model", ev.Model),
		attribute.Bool("successful", ev.Successful),
	)

	e.generations.Add(ctx, 1, opt)
	e.tokens.Add(ctx, ev.TokensUsed, opt)
	e.cost.Add(ctx, ev.Cost, opt)
	e.timeSaved.Add(ctx, ev.EstimatedTimeSavedMinutes, opt)
	e.latency.Record(ctx, float64(ev.ResponseTimeMs), opt)
}

// Close flushes pending metrics and shuts the provider down.
func (e *Exporter) Close(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}

// Noop discards everything.
type Noop struct{}

func (Noop) RecordGeneration(context.Context, model.GenerationEvent) {}

func (Noop) Close(context.Context) error { return nil }
