package experiment

import (
	"context"
	"sync"
	"time"

	"github.com/resiliencelab/chaos-go/pkg/anomaly"
	"github.com/resiliencelab/chaos-go/pkg/log"
	"github.com/resiliencelab/chaos-go/pkg/types"
)

// monitor is the handle of a running monitoring loop.
// While it runs, the loop is the only writer of the result's snapshots and anomalies.
type monitor struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// startMonitoring samples every interval until stopped. Each tick sleeps
// before collecting, so snapshot timestamps only grow.
func startMonitoring(ctx context.Context, collector Collector, baseline types.MetricsSnapshot, res *types.ExperimentResult, interval time.Duration) *monitor {
	ctx, cancel := context.WithCancel(ctx)
	m := &monitor{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(m.done)
		defer func() {
			if p := recover(); p != nil {
				log.Errorf("[Status]: Monitoring of %v stopped after a panic: %v", res.Experiment.Name, p)
			}
		}()
		for tick := 1; ctx.Err() == nil; tick++ {
			if err := sleep(ctx, interval); err != nil {
				return
			}
			snapshot := collector.Collect(ctx)
			if ctx.Err() != nil {
				// cancelled mid-collection, the probes were cut short
				return
			}
			res.SystemBehavior = append(res.SystemBehavior, snapshot)
			found := anomaly.Detect(baseline, snapshot)
			res.AnomaliesDetected = append(res.AnomaliesDetected, found...)
			log.Infof("[Status]: Tick %v of %v: %v services healthy, error rate %.2f", tick, res.Experiment.Name, snapshot.ServicesHealthy, snapshot.ErrorRate)
			for _, a := range found {
				log.Warnf("[Status]: Anomaly detected: %v", a)
			}
		}
	}()
	return m
}

// stop cancels the loop and waits for it to exit, safe to call more than once
func (m *monitor) stop() {
	m.once.Do(m.cancel)
	<-m.done
}
