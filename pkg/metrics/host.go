package metrics

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats is the host-level part of a snapshot, in percent
type HostStats struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
}

// HostSampler reads host CPU, memory and disk usage
type HostSampler interface {
	Sample(ctx context.Context) (HostStats, error)
}

// GopsutilSampler samples the local host through gopsutil
type GopsutilSampler struct {
	// CPUWindow is how long cpu usage is measured over
	CPUWindow time.Duration
	// DiskPath is the mount point whose usage is reported
	DiskPath string
}

// NewGopsutilSampler returns a sampler measuring cpu over 500ms on the root filesystem
func NewGopsutilSampler() *GopsutilSampler {
	return &GopsutilSampler{CPUWindow: 500 * time.Millisecond, DiskPath: "/"}
}

// Sample reads every stat it can, the first failure is returned alongside the partial stats
func (g *GopsutilSampler) Sample(ctx context.Context) (HostStats, error) {
	var (
		stats    HostStats
		firstErr error
	)

	cpuPercent, err := cpu.PercentWithContext(ctx, g.CPUWindow, false)
	if err != nil {
		firstErr = errors.Wrapf(err, "unable to read cpu usage")
	} else if len(cpuPercent) > 0 {
		stats.CPUPercent = cpuPercent[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		if firstErr == nil {
			firstErr = errors.Wrapf(err, "unable to read memory usage")
		}
	} else {
		stats.MemoryPercent = vm.UsedPercent
	}

	path := g.DiskPath
	if path == "" {
		path = "/"
	}
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		if firstErr == nil {
			firstErr = errors.Wrapf(err, "unable to read disk usage of %v", path)
		}
	} else {
		stats.DiskPercent = usage.UsedPercent
	}

	return stats, firstErr
}
