package environment

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/resiliencelab/chaos-go/pkg/stress"
	"github.com/resiliencelab/chaos-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chaos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, RuntimeDocker, c.Runtime.Backend)
	assert.Len(t, c.ServiceTargets(), 4)
	assert.Len(t, c.DatastoreTargets(), 2)
	assert.Equal(t, []string{"api-gateway", "auth-service"}, c.CriticalServices)
	assert.Equal(t, 60*time.Second, c.Timing.Stabilization)
	assert.Equal(t, DefaultPassThreshold, c.PassThreshold)

	defs, err := c.Definitions()
	require.NoError(t, err)
	assert.Len(t, defs, 6)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
runtime:
  backend: kubernetes
  namespace: staging
services:
  - name: svc-a
    baseURL: http://svc-a:8080
    runtimeRef: staging/svc-a
datastores:
  - name: db
    runtimeRef: staging/db
dependencyChain: [db, svc-a]
timing:
  stabilization: 5s
  pollInterval: 500ms
faultFlags:
  backend: redis
  redisAddr: redis:6379
passThreshold: 8.5
experiments:
  - name: kill-a
    faultType: service_failure
    target: svc-a
    duration: 10s
    recoveryTimeLimit: 30s
  - name: partition-a
    faultType: network_partition
    target: svc-a
    duration: 20s
    recoveryTimeLimit: 40s
    impactRadius: [all]
    portFrom: 5432
    portTo: 5432
  - name: cascade-a
    faultType: cascading_failure
    target: svc-a
    duration: 20s
    recoveryTimeLimit: 40s
    secondary: svc-b
    settleWindow: 3s
    secondaryStress: true
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, RuntimeKubernetes, c.Runtime.Backend)
	assert.Equal(t, "staging", c.Runtime.Namespace)
	assert.Equal(t, []types.ServiceTarget{{Name: "svc-a", BaseURL: "http://svc-a:8080", RuntimeRef: "staging/svc-a"}}, c.ServiceTargets())
	assert.Equal(t, 5*time.Second, c.Timing.Stabilization)
	assert.Equal(t, 500*time.Millisecond, c.Timing.PollInterval)
	// untouched fields keep their defaults
	assert.Equal(t, 10*time.Second, c.Timing.SamplingInterval)
	assert.Equal(t, FlagsRedis, c.Flags.Backend)
	assert.Equal(t, 8.5, c.PassThreshold)

	defs, err := c.Definitions()
	require.NoError(t, err)
	require.Len(t, defs, 3)
	assert.Equal(t, []string{"svc-a"}, defs[0].ImpactRadius)
	assert.Equal(t, 10*time.Second, defs[0].Duration)
	assert.Equal(t, types.NetworkPartition{Ports: types.PortRange{From: 5432, To: 5432}}, defs[1].Fault)
	assert.Equal(t, types.CascadingFailure{Secondary: "svc-b", SettleWindow: 3 * time.Second, SecondaryStress: true}, defs[2].Fault)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("CHAOS_RUNTIME", RuntimeKubernetes)
	t.Setenv("REPORT_DIR", "/reports")
	t.Setenv("PASS_THRESHOLD", "6")
	t.Setenv("STATUS_LISTEN", ":9090")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, RuntimeKubernetes, c.Runtime.Backend)
	assert.Equal(t, "/reports", c.Report.Dir)
	assert.Equal(t, 6.0, c.PassThreshold)
	assert.Equal(t, ":9090", c.Status.Listen)
	assert.Equal(t, "otel:4317", c.Telemetry.Endpoint)
}

func TestLoadRejects(t *testing.T) {
	tests := map[string]struct {
		body string
		env  map[string]string
	}{
		"unknown runtime":      {body: "runtime:\n  backend: podman\n"},
		"unknown field":        {body: "runtme:\n  backend: docker\n"},
		"bad threshold":        {env: map[string]string{"PASS_THRESHOLD": "high"}},
		"threshold range":      {body: "passThreshold: 11\n"},
		"helper without path":  {body: "stress:\n  mode: helper\n"},
		"duplicate target":     {body: "services:\n  - {name: a, baseURL: http://a}\n  - {name: a, baseURL: http://b}\ndependencyChain: []\n"},
		"unknown chain target": {body: "dependencyChain: [ghost]\n"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.body != "" {
				path = writeConfig(t, tt.body)
			}
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestDefinitionsRejectsBadExperiment(t *testing.T) {
	c := Default()
	c.Experiments = []ExperimentConfig{{Name: "db", FaultType: types.DatabaseFailureType, Target: "api-gateway", RecoveryTimeLimit: time.Second}}
	_, err := c.Definitions()
	assert.Error(t, err)

	c.Experiments = []ExperimentConfig{{Name: "kill", FaultType: types.ServiceFailureType, Target: "api-gateway"}}
	_, err = c.Definitions()
	assert.Error(t, err)
}

func TestStressHelperMode(t *testing.T) {
	path := writeConfig(t, "stress:\n  mode: helper\n  helperPath: /chaos/chaos-runner\n")
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, stress.ModeHelper, c.Stress.Mode)
}
