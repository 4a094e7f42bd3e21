package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.MetricsInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.MetricsInterval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Metrics records plan node executions. The stage attribute carries the
// node kind (source, step, split or join).
type Metrics struct {
	total    metric.Int64Counter
	duration metric.Float64Histogram
	active   metric.Int64UpDownCounter
	errors   metric.Int64Counter
}

// NewMetrics creates the recflow instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.total, err = meter.Int64Counter("recflow.node.total",
		metric.WithDescription("Executed plan nodes by stage and status")); err != nil {
		return nil, fmt.Errorf("recflow.node.total: %w", err)
	}
	if m.duration, err = meter.Float64Histogram("recflow.node.duration",
		metric.WithDescription("Plan node run time"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("recflow.node.duration: %w", err)
	}
	if m.active, err = meter.Int64UpDownCounter("recflow.node.active",
		metric.WithDescription("Plan nodes currently running")); err != nil {
		return nil, fmt.Errorf("recflow.node.active: %w", err)
	}
	if m.errors, err = meter.Int64Counter("recflow.error.total",
		metric.WithDescription("Failed plan nodes by stage")); err != nil {
		return nil, fmt.Errorf("recflow.error.total: %w", err)
	}
	return &m, nil
}

// NodeStarted marks one more node as running.
func (m *Metrics) NodeStarted(ctx context.Context) { m.active.Add(ctx, 1) }

// NodeFinished records the outcome and run time of a node.
func (m *Metrics) NodeFinished(ctx context.Context, stage, status string, took time.Duration) {
	m.active.Add(ctx, -1)
	st := attribute.String("stage", stage)
	m.total.Add(ctx, 1, metric.WithAttributes(st, attribute.String("status", status)))
	m.duration.Record(ctx, took.Seconds(), metric.WithAttributes(st))
}

// RecordError counts a failed node.
func (m *Metrics) RecordError(ctx context.Context, stage string) {
	m.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}
