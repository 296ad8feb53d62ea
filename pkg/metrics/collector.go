// Package metrics samples the system under test into point-in-time snapshots.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/resiliencelab/chaos-go/pkg/log"
	"github.com/resiliencelab/chaos-go/pkg/math"
	"github.com/resiliencelab/chaos-go/pkg/probe"
	"github.com/resiliencelab/chaos-go/pkg/types"
)

// ServiceSource lists the services a snapshot covers
type ServiceSource interface {
	Services() []types.ServiceTarget
}

// Collector gathers host stats and the health of every registered service
type Collector struct {
	services ServiceSource
	checker  probe.Checker
	host     HostSampler
}

// NewCollector returns a collector, host may be nil to skip host stats
func NewCollector(services ServiceSource, checker probe.Checker, host HostSampler) *Collector {
	return &Collector{services: services, checker: checker, host: host}
}

type probeResult struct {
	healthy bool
	latency time.Duration
}

// Collect takes one snapshot. Services are probed concurrently so a call
// lasts about one probe timeout in the worst case.
func (c *Collector) Collect(ctx context.Context) types.MetricsSnapshot {
	services := c.services.Services()
	results := make([]probeResult, len(services))

	var wg sync.WaitGroup
	for i, svc := range services {
		wg.Add(1)
		go func(i int, svc types.ServiceTarget) {
			defer wg.Done()
			healthy, latency := c.checker.Check(ctx, svc)
			results[i] = probeResult{healthy: healthy, latency: latency}
		}(i, svc)
	}

	var stats HostStats
	if c.host != nil {
		var err error
		if stats, err = c.host.Sample(ctx); err != nil {
			log.Warnf("[Status]: Unable to sample host stats, err: %v", err)
		}
	}
	wg.Wait()

	snapshot := types.MetricsSnapshot{
		Timestamp:     time.Now(),
		CPUPercent:    stats.CPUPercent,
		MemoryPercent: stats.MemoryPercent,
		DiskPercent:   stats.DiskPercent,
		ServiceHealth: make(map[string]bool, len(services)),
	}

	var latencies []float64
	for i, svc := range services {
		snapshot.ServiceHealth[svc.Name] = results[i].healthy
		if results[i].healthy {
			snapshot.ServicesHealthy++
			latencies = append(latencies, results[i].latency.Seconds())
		}
	}
	snapshot.ErrorRate = math.Fraction(len(services)-snapshot.ServicesHealthy, len(services))
	snapshot.AvgResponseTime = math.Mean(latencies)
	return snapshot
}
