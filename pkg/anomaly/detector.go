// Package anomaly compares live snapshots with the suite baseline.
package anomaly

import (
	"fmt"

	"github.com/resiliencelab/chaos-go/pkg/types"
)

const (
	// CPUFactor flags cpu usage above this multiple of the baseline
	CPUFactor = 2.0
	// MemoryFactor flags memory usage above this multiple of the baseline
	MemoryFactor = 1.5
	// ResponseFactor flags average response time above this multiple of the baseline
	ResponseFactor = 3.0
	// ErrorRateLimit is absolute, more than half of the services down
	ErrorRateLimit = 0.5
)

// Detect returns one message per threshold current exceeds, in a fixed order:
// cpu, memory, response time, error rate. It never returns nil.
func Detect(baseline, current types.MetricsSnapshot) []string {
	anomalies := []string{}
	if current.CPUPercent > baseline.CPUPercent*CPUFactor {
		anomalies = append(anomalies, fmt.Sprintf("High CPU usage: %.1f%% (baseline: %.1f%%)", current.CPUPercent, baseline.CPUPercent))
	}
	if current.MemoryPercent > baseline.MemoryPercent*MemoryFactor {
		anomalies = append(anomalies, fmt.Sprintf("High memory usage: %.1f%% (baseline: %.1f%%)", current.MemoryPercent, baseline.MemoryPercent))
	}
	if current.AvgResponseTime > baseline.AvgResponseTime*ResponseFactor {
		anomalies = append(anomalies, fmt.Sprintf("Slow response time: %.3fs (baseline: %.3fs)", current.AvgResponseTime, baseline.AvgResponseTime))
	}
	if current.ErrorRate > ErrorRateLimit {
		anomalies = append(anomalies, fmt.Sprintf("High error rate: %.1f%% of services unhealthy (baseline: %.1f%%)", current.ErrorRate*100, baseline.ErrorRate*100))
	}
	return anomalies
}
