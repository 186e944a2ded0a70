// Package observability provides optional OpenTelemetry metrics for
// validation runs: violation counters and a convergence iteration
// histogram. A disabled provider is a no-op; correctness never depends
// on it.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config configures the metrics provider.
type Config struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string // e.g. "localhost:4317"
	ExportInterval time.Duration
	Enabled        bool
	Insecure       bool
}

// DefaultConfig returns a disabled provider configuration; metrics are
// opt-in for a CLI.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "lousy-iam",
		ServiceVersion: "1.0.0",
		OTLPEndpoint:   "localhost:4317",
		ExportInterval: 10 * time.Second,
		Enabled:        false,
	}
}

// Provider records validation metrics. It satisfies the orchestrator's
// Recorder interface.
type Provider struct {
	config        *Config
	meterProvider *sdkmetric.MeterProvider

	violationErrors   metric.Int64Counter
	violationWarnings metric.Int64Counter
	fixIterations     metric.Int64Histogram
}

// New creates a provider. When config.Enabled is false the provider
// records nothing and Shutdown is a no-op.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}
	p := &Provider{config: config}
	if !config.Enabled {
		return p, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("observability: resource: %w", err)
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(config.OTLPEndpoint)}
	if config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("observability: metric exporter: %w", err)
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(config.ExportInterval))),
	)
	otel.SetMeterProvider(p.meterProvider)

	meter := p.meterProvider.Meter("lousy-iam/validation")
	p.violationErrors, err = meter.Int64Counter("policy.violations.errors",
		metric.WithDescription("Error-severity violations in final validation passes"))
	if err != nil {
		return nil, fmt.Errorf("observability: counter: %w", err)
	}
	p.violationWarnings, err = meter.Int64Counter("policy.violations.warnings",
		metric.WithDescription("Warning-severity violations in final validation passes"))
	if err != nil {
		return nil, fmt.Errorf("observability: counter: %w", err)
	}
	p.fixIterations, err = meter.Int64Histogram("policy.fix.iterations",
		metric.WithDescription("Fix passes applied per policy before convergence"))
	if err != nil {
		return nil, fmt.Errorf("observability: histogram: %w", err)
	}
	return p, nil
}

// RecordPolicy records one policy's terminal convergence state.
func (p *Provider) RecordPolicy(policyType string, errors, warnings, iterations int) {
	if p == nil || p.meterProvider == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("policy.type", policyType))
	p.violationErrors.Add(ctx, int64(errors), attrs)
	p.violationWarnings.Add(ctx, int64(warnings), attrs)
	p.fixIterations.Record(ctx, int64(iterations), attrs)
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.meterProvider == nil {
		return nil
	}
	return p.meterProvider.Shutdown(ctx)
}
