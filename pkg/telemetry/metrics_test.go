package telemetry

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/resiliencelab/chaos-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	ctx := context.Background()
	m, err := NewMetrics(ctx, OTELSuiteServiceName)
	require.NoError(t, err)
	defer m.Shutdown(ctx)

	r := types.NewExperimentResult(types.ExperimentDefinition{Name: "kill-auth", Fault: types.ServiceFailure{}}, time.Now())
	r.RecoverySuccessful = true
	r.SetRecoveryTime(12 * time.Second)
	r.ResilienceScore = 9.5
	r.AnomaliesDetected = append(r.AnomaliesDetected, "High CPU usage")
	m.Record(ctx, *r)

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	joined := strings.Join(names, ",")
	assert.Contains(t, joined, "chaos_experiments")
	assert.Contains(t, joined, "chaos_resilience_score")
	assert.Contains(t, joined, "chaos_recovery_time")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Record(context.Background(), types.ExperimentResult{})
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestStartSpanWithoutProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "experiment", "name", "kill-auth")
	assert.NotNil(t, ctx)
	EndSpan(span, nil)
}
