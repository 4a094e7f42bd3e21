package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/recflow/logger"
)

// Config is the observability section of the workspace configuration.
type Config struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	Endpoint        string        `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure        bool          `mapstructure:"insecure" yaml:"insecure"`
	Environment     string        `mapstructure:"environment" yaml:"environment"`
	SampleRate      float64       `mapstructure:"sample_rate" yaml:"sample_rate" validate:"gte=0,lte=1"`
	MetricsInterval time.Duration `mapstructure:"metrics_interval" yaml:"metrics_interval"`
	Metrics         bool          `mapstructure:"metrics" yaml:"metrics"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.MetricsInterval == 0 {
		c.MetricsInterval = 15 * time.Second
	}
}

// Providers owns the installed tracer and meter providers.
type Providers struct {
	tracer  *sdktrace.TracerProvider
	meter   *sdkmetric.MeterProvider
	Metrics *Metrics
}

// Setup installs OTLP/HTTP providers according to cfg. With cfg.Enabled
// false it installs nothing and returns empty Providers.
func Setup(ctx context.Context, cfg Config, service, version string, log *logger.Logger) (*Providers, error) {
	p := &Providers{}
	if !cfg.Enabled {
		return p, nil
	}
	cfg.ApplyDefaults()
	log = logger.OrNop(log).WithComponent("observability")

	res, err := newResource(service, version, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("resource: %w", err)
	}
	if p.tracer, err = newTracerProvider(ctx, cfg, res); err != nil {
		return nil, err
	}
	log.Info("tracing enabled", logger.Fields("endpoint", cfg.Endpoint, "sample_rate", cfg.SampleRate))

	if !cfg.Metrics {
		return p, nil
	}
	if p.meter, err = newMeterProvider(ctx, cfg, res); err == nil {
		p.Metrics, err = NewMetrics(p.meter.Meter(instrumentation))
	}
	if err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}
	log.Info("metrics enabled", logger.Fields("endpoint", cfg.Endpoint, "interval", cfg.MetricsInterval.String()))
	return p, nil
}

// Shutdown flushes and stops the providers. Safe on empty Providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.tracer != nil {
		errs = append(errs, p.tracer.Shutdown(ctx))
	}
	if p.meter != nil {
		errs = append(errs, p.meter.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
