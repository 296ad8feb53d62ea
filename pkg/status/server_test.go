package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/resiliencelab/chaos-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	s := NewServer(":0", NewTracker(), prometheus.NewRegistry())
	rec := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestStatusFollowsTheSuite(t *testing.T) {
	tracker := NewTracker()
	s := NewServer(":0", tracker, prometheus.NewRegistry())

	var snap Snapshot
	require.NoError(t, json.Unmarshal(get(t, s, "/status").Body.Bytes(), &snap))
	assert.Equal(t, 0, snap.Completed)
	assert.Empty(t, snap.Experiment)
	assert.Nil(t, snap.LastScore)

	def := types.ExperimentDefinition{Name: "auth-kill", Fault: types.ServiceFailure{}}
	tracker.ExperimentStarted(def, func() types.Phase { return types.PhaseMonitoring })
	require.NoError(t, json.Unmarshal(get(t, s, "/status").Body.Bytes(), &snap))
	assert.Equal(t, "auth-kill", snap.Experiment)
	assert.Equal(t, string(types.ServiceFailureType), snap.FaultType)
	assert.Equal(t, types.PhaseMonitoring, snap.Phase)

	tracker.ExperimentFinished(types.ExperimentResult{Experiment: def, RecoverySuccessful: true, ResilienceScore: 8.5})
	tracker.ExperimentFinished(types.ExperimentResult{Experiment: def, Error: "boom"})
	snap = Snapshot{}
	require.NoError(t, json.Unmarshal(get(t, s, "/status").Body.Bytes(), &snap))
	assert.Empty(t, snap.Experiment)
	assert.Empty(t, snap.Phase)
	assert.Equal(t, 2, snap.Completed)
	assert.Equal(t, 1, snap.Recovered)
	assert.Equal(t, 1, snap.Degraded)
	require.NotNil(t, snap.LastScore)
	assert.Equal(t, 0.0, *snap.LastScore)
}

func TestMetricsServesTheRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "chaos_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	rec := get(t, NewServer(":0", NewTracker(), registry), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chaos_test_total 1")
}

func TestUnknownRoute(t *testing.T) {
	rec := get(t, NewServer(":0", NewTracker(), nil), "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
