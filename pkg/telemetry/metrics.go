package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/resiliencelab/chaos-go/pkg/types"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const MeterName = "resiliencelab.io/chaos-go"

// Metrics records experiment outcomes through otel, exported into a prometheus registry
type Metrics struct {
	Registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	experiments     metric.Int64Counter
	harnessFailures metric.Int64Counter
	anomalies       metric.Int64Counter
	score           metric.Float64Histogram
	recoverySeconds metric.Float64Histogram
}

// NewMetrics creates the meter provider and every instrument
func NewMetrics(ctx context.Context, serviceName string) (*Metrics, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}
	res, err := newResource(ctx, serviceName)
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter), sdkmetric.WithResource(res))
	meter := provider.Meter(MeterName)

	m := &Metrics{Registry: registry, provider: provider}
	if m.experiments, err = meter.Int64Counter("chaos_experiments",
		metric.WithDescription("Experiments run, by fault type and recovery outcome")); err != nil {
		return nil, err
	}
	if m.harnessFailures, err = meter.Int64Counter("chaos_harness_failures",
		metric.WithDescription("Experiments where the harness itself failed")); err != nil {
		return nil, err
	}
	if m.anomalies, err = meter.Int64Counter("chaos_anomalies",
		metric.WithDescription("Anomalies detected while monitoring")); err != nil {
		return nil, err
	}
	if m.score, err = meter.Float64Histogram("chaos_resilience_score",
		metric.WithDescription("Resilience score of finished experiments"),
		metric.WithExplicitBucketBoundaries(2, 4, 6, 7, 8, 9, 10)); err != nil {
		return nil, err
	}
	if m.recoverySeconds, err = meter.Float64Histogram("chaos_recovery_time",
		metric.WithDescription("Confirmed recovery time"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

// Record adds one finished experiment. A nil receiver records nothing.
func (m *Metrics) Record(ctx context.Context, r types.ExperimentResult) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("experiment", r.Experiment.Name),
		attribute.String("fault_type", string(r.Experiment.FaultType())),
		attribute.Bool("recovered", r.RecoverySuccessful),
	)
	m.experiments.Add(ctx, 1, attrs)
	m.score.Record(ctx, r.ResilienceScore, attrs)
	m.anomalies.Add(ctx, int64(len(r.AnomaliesDetected)), attrs)
	if d, ok := r.RecoveryDuration(); ok {
		m.recoverySeconds.Record(ctx, d.Seconds(), attrs)
	}
	if r.Degraded() {
		m.harnessFailures.Add(ctx, 1, attrs)
	}
}

// Shutdown flushes and stops the meter provider
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
