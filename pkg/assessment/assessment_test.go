package assessment

import (
	"fmt"
	"testing"
	"time"

	"github.com/resiliencelab/chaos-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func critical(name string) bool {
	return name == "api-gateway" || name == "auth-service"
}

func result(recovered bool, recoverySeconds float64, anomalies int, level types.ImpactLevel, degradation float64) types.ExperimentResult {
	r := types.NewExperimentResult(types.ExperimentDefinition{Name: "exp", Fault: types.ServiceFailure{}, RecoveryTimeLimit: 30 * time.Second}, time.Now())
	r.RecoverySuccessful = recovered
	if recovered {
		r.SetRecoveryTime(time.Duration(recoverySeconds * float64(time.Second)))
	}
	for i := 0; i < anomalies; i++ {
		r.AnomaliesDetected = append(r.AnomaliesDetected, fmt.Sprintf("anomaly %d", i))
	}
	r.ImpactAssessment.UserImpactLevel = level
	r.ImpactAssessment.PerformanceDegradation = degradation
	return *r
}

func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		result types.ExperimentResult
		want   float64
	}{
		{name: "perfect", result: result(true, 10, 0, types.ImpactLow, 0), want: 10},
		{name: "recovery failed", result: result(false, 0, 0, types.ImpactLow, 0), want: 6},
		{name: "recovery slow", result: result(true, 45, 0, types.ImpactLow, 0), want: 8},
		{name: "anomalies", result: result(true, 10, 3, types.ImpactLow, 0), want: 8.5},
		{name: "anomalies capped", result: result(true, 10, 20, types.ImpactLow, 0), want: 7},
		{name: "medium impact", result: result(true, 10, 0, types.ImpactMedium, 0), want: 9},
		{name: "high impact", result: result(true, 10, 0, types.ImpactHigh, 0), want: 8},
		{name: "degraded", result: result(true, 10, 0, types.ImpactLow, 1.5), want: 9},
		{name: "degradation at limit", result: result(true, 10, 0, types.ImpactLow, 1.0), want: 10},
		{name: "everything", result: result(false, 0, 10, types.ImpactHigh, 3), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Score(tt.result), 1e-9)
		})
	}
}

func TestAnomalyPenaltyIsCapped(t *testing.T) {
	for n := 6; n <= 40; n++ {
		assert.Equal(t, -3.0, Deductions(result(true, 1, n, types.ImpactLow, 0)).Anomalies)
	}
	assert.Equal(t, -2.5, Deductions(result(true, 1, 5, types.ImpactLow, 0)).Anomalies)
}

func TestImpact(t *testing.T) {
	a := New(critical, 0)
	def := types.ExperimentDefinition{Name: "exp", Fault: types.ServiceFailure{}}
	baseline := types.MetricsSnapshot{AvgResponseTime: 0.1}

	tests := []struct {
		name   string
		health map[string]bool
		level  types.ImpactLevel
	}{
		{name: "all healthy", health: map[string]bool{"api-gateway": true, "a": true}, level: types.ImpactLow},
		{name: "two non critical", health: map[string]bool{"a": false, "b": false, "c": true}, level: types.ImpactLow},
		{name: "three non critical", health: map[string]bool{"a": false, "b": false, "c": false}, level: types.ImpactMedium},
		{name: "critical", health: map[string]bool{"auth-service": false, "a": true}, level: types.ImpactHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			impact := a.Impact(def, baseline, types.MetricsSnapshot{ServiceHealth: tt.health, AvgResponseTime: 0.1}, true)
			assert.Equal(t, tt.level, impact.UserImpactLevel)
			assert.NotNil(t, impact.ServicesAffected)
			assert.True(t, impact.DataIntegrityPreserved)
		})
	}

	impact := a.Impact(def, baseline, types.MetricsSnapshot{ServiceHealth: map[string]bool{"c": false, "a": false}}, true)
	assert.Equal(t, []string{"a", "c"}, impact.ServicesAffected)
}

func TestDegradation(t *testing.T) {
	assert.InDelta(t, 1.5, Degradation(types.MetricsSnapshot{AvgResponseTime: 0.2}, types.MetricsSnapshot{AvgResponseTime: 0.5}), 1e-9)
	assert.Equal(t, 0.0, Degradation(types.MetricsSnapshot{AvgResponseTime: 0.2}, types.MetricsSnapshot{AvgResponseTime: 0.1}))
	assert.Equal(t, 0.0, Degradation(types.MetricsSnapshot{}, types.MetricsSnapshot{AvgResponseTime: 1}))
}

func TestDataIntegrity(t *testing.T) {
	db := types.ExperimentDefinition{Fault: types.DatabaseFailure{Datastore: "postgres"}}
	assert.True(t, DataIntegrityPreserved(db, true))
	assert.False(t, DataIntegrityPreserved(db, false))
	assert.True(t, DataIntegrityPreserved(types.ExperimentDefinition{Fault: types.ServiceFailure{}}, false))
}

func TestLessons(t *testing.T) {
	a := New(critical, time.Minute)

	lessons := a.Lessons(result(true, 5, 0, types.ImpactLow, 0))
	assert.Equal(t, []string{PositiveLesson}, lessons)

	r := result(false, 0, 6, types.ImpactHigh, 0)
	r.ImpactAssessment.ServicesAffected = []string{"api-gateway", "orchestrator-service"}
	lessons = a.Lessons(r)
	require.Len(t, lessons, 4)
	assert.Contains(t, lessons[0], "Improve recovery mechanisms")
	assert.Contains(t, lessons[1], "Improve monitoring and alerting")
	assert.Contains(t, lessons[2], "Implement graceful degradation")
	assert.Equal(t, "Improve redundancy and failover for critical services: api-gateway", lessons[3])

	lessons = a.Lessons(result(true, 75, 0, types.ImpactLow, 0))
	require.Len(t, lessons, 1)
	assert.Equal(t, "Optimize restart procedures: recovery took 75.0s", lessons[0])

	assert.Equal(t, lessons, a.Lessons(result(true, 75, 0, types.ImpactLow, 0)))
}
