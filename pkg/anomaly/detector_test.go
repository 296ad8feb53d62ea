package anomaly

import (
	"testing"

	"github.com/resiliencelab/chaos-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseline = types.MetricsSnapshot{CPUPercent: 20, MemoryPercent: 40, AvgResponseTime: 0.1, ErrorRate: 0}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		current  types.MetricsSnapshot
		prefixes []string
	}{
		{
			name:    "steady",
			current: types.MetricsSnapshot{CPUPercent: 40, MemoryPercent: 60, AvgResponseTime: 0.3, ErrorRate: 0.5},
		},
		{
			name:     "cpu only",
			current:  types.MetricsSnapshot{CPUPercent: 40.1, MemoryPercent: 40, AvgResponseTime: 0.1},
			prefixes: []string{"High CPU usage"},
		},
		{
			name:     "everything",
			current:  types.MetricsSnapshot{CPUPercent: 90, MemoryPercent: 61, AvgResponseTime: 0.5, ErrorRate: 0.75},
			prefixes: []string{"High CPU usage", "High memory usage", "Slow response time", "High error rate"},
		},
		{
			name:     "error rate is absolute",
			current:  types.MetricsSnapshot{CPUPercent: 20, MemoryPercent: 40, AvgResponseTime: 0.1, ErrorRate: 1},
			prefixes: []string{"High error rate"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(baseline, tt.current)
			require.NotNil(t, got)
			require.Len(t, got, len(tt.prefixes))
			for i, prefix := range tt.prefixes {
				assert.Contains(t, got[i], prefix)
			}
		})
	}
}

func TestDetectMessagesCarryBothValues(t *testing.T) {
	got := Detect(baseline, types.MetricsSnapshot{CPUPercent: 55, MemoryPercent: 40, AvgResponseTime: 0.1})
	require.Len(t, got, 1)
	assert.Equal(t, "High CPU usage: 55.0% (baseline: 20.0%)", got[0])
}

func TestDetectIsDeterministic(t *testing.T) {
	current := types.MetricsSnapshot{CPUPercent: 90, MemoryPercent: 90, AvgResponseTime: 2, ErrorRate: 0.9}
	first := Detect(baseline, current)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Detect(baseline, current))
	}
}

func TestDetectZeroBaseline(t *testing.T) {
	got := Detect(types.MetricsSnapshot{}, types.MetricsSnapshot{})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
