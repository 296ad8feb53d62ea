// Package suite runs a list of experiments in order against one baseline.
package suite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/resiliencelab/chaos-go/pkg/cerrors"
	"github.com/resiliencelab/chaos-go/pkg/experiment"
	"github.com/resiliencelab/chaos-go/pkg/log"
	"github.com/resiliencelab/chaos-go/pkg/metrics"
	"github.com/resiliencelab/chaos-go/pkg/result"
	"github.com/resiliencelab/chaos-go/pkg/telemetry"
	"github.com/resiliencelab/chaos-go/pkg/types"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultBaselineSettle is waited before the baseline snapshot
	DefaultBaselineSettle = 10 * time.Second
	// DefaultStabilization is waited between two experiments
	DefaultStabilization = 60 * time.Second
)

// ReportSink persists the suite report
type ReportSink interface {
	SaveSuite(ctx context.Context, report types.SuiteReport) (string, error)
}

// Observer is told about experiment progress, e.g. the status server
type Observer interface {
	ExperimentStarted(def types.ExperimentDefinition, phase func() types.Phase)
	ExperimentFinished(res types.ExperimentResult)
}

// Options wires a driver
type Options struct {
	Services  metrics.ServiceSource
	Collector experiment.Collector
	// NewRunner returns a fresh runner for every experiment
	NewRunner func() *experiment.Runner
	// Sink and Observer may be nil
	Sink     ReportSink
	Observer Observer
	// Emergency restores every registered target after a panic escaped the runner, may be nil
	Emergency func(ctx context.Context)

	BaselineSettle time.Duration
	Stabilization  time.Duration
}

// Driver runs experiment suites
type Driver struct {
	opts Options
}

// NewDriver returns a driver, zero durations take the defaults
func NewDriver(opts Options) *Driver {
	if opts.BaselineSettle == 0 {
		opts.BaselineSettle = DefaultBaselineSettle
	}
	if opts.Stabilization == 0 {
		opts.Stabilization = DefaultStabilization
	}
	return &Driver{opts: opts}
}

// EstablishBaseline waits for the system to settle and takes the snapshot every
// experiment of the suite is compared against
func (d *Driver) EstablishBaseline(ctx context.Context) (types.MetricsSnapshot, error) {
	if len(d.opts.Services.Services()) == 0 {
		return types.MetricsSnapshot{}, cerrors.FatalSuite{Reason: "no services are registered, there is nothing to baseline"}
	}
	log.Infof("[Wait]: Waiting %v for the system to settle before the baseline", d.opts.BaselineSettle)
	if err := sleep(ctx, d.opts.BaselineSettle); err != nil {
		return types.MetricsSnapshot{}, cerrors.FatalSuite{Reason: "interrupted while establishing the baseline"}
	}
	baseline := d.opts.Collector.Collect(ctx)
	log.InfoWithValues("[Status]: Baseline established", logrus.Fields{
		"ServicesHealthy": baseline.ServicesHealthy,
		"CPU":             fmt.Sprintf("%.1f%%", baseline.CPUPercent),
		"Memory":          fmt.Sprintf("%.1f%%", baseline.MemoryPercent),
		"AvgResponse":     fmt.Sprintf("%.3fs", baseline.AvgResponseTime),
	})
	return baseline, nil
}

// Run executes defs in order and returns the aggregated report.
// Only a FatalSuite error is returned, a failing experiment is recorded and the suite goes on.
func (d *Driver) Run(ctx context.Context, defs []types.ExperimentDefinition) (report types.SuiteReport, err error) {
	ctx, span := telemetry.StartSpan(ctx, "suite")
	defer func() { telemetry.EndSpan(span, err) }()

	runID := uuid.NewString()
	log.Infof("[PreReq]: Starting chaos suite %v with %v experiments", runID, len(defs))

	baseline, err := d.EstablishBaseline(ctx)
	if err != nil {
		return types.SuiteReport{}, err
	}

	results := make([]types.ExperimentResult, 0, len(defs))
	for i, def := range defs {
		if i > 0 {
			log.Infof("[Wait]: Waiting %v for the system to stabilize", d.opts.Stabilization)
			if err := sleep(ctx, d.opts.Stabilization); err != nil {
				log.Warnf("[Status]: Suite interrupted, %v of %v experiments ran", i, len(defs))
				break
			}
		}
		log.Infof("[Chaos]: Running experiment %v/%v: %v", i+1, len(defs), def.Name)
		res := d.runOne(ctx, baseline, def)
		results = append(results, res)
		if d.opts.Observer != nil {
			d.opts.Observer.ExperimentFinished(res)
		}
	}

	report = result.NewSuiteReport(runID, time.Now(), results)
	log.InfoWithValues("[Summary]: Chaos suite finished", logrus.Fields{
		"RunID":                  runID,
		"Experiments":            report.TotalExperiments,
		"AverageResilienceScore": fmt.Sprintf("%.2f", report.AverageResilienceScore),
		"RecoverySuccessRate":    fmt.Sprintf("%.0f%%", report.RecoverySuccessRate*100),
	})
	if d.opts.Sink != nil {
		if path, serr := d.opts.Sink.SaveSuite(context.WithoutCancel(ctx), report); serr != nil {
			log.Errorf("[Summary]: Unable to write the suite report, err: %v", serr)
		} else {
			log.Infof("[Summary]: Suite report written to %v", path)
		}
	}
	return report, nil
}

// runOne isolates one experiment, a panic escaping the runner still yields a result
func (d *Driver) runOne(ctx context.Context, baseline types.MetricsSnapshot, def types.ExperimentDefinition) (res types.ExperimentResult) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("[Error]: Experiment %v crashed the harness: %v", def.Name, p)
			degraded := types.NewExperimentResult(def, start)
			degraded.EndTime = time.Now()
			degraded.Error = fmt.Sprintf("%v: %v", result.HarnessPanicked, p)
			degraded.ErrorType = cerrors.ErrorTypePanic
			degraded.AnomaliesDetected = append(degraded.AnomaliesDetected, "Experiment error: "+degraded.Error)
			degraded.LessonsLearned = append(degraded.LessonsLearned, "Fix the chaos harness before trusting this experiment")
			res = *degraded
			if d.opts.Emergency != nil {
				log.Warnf("[Recovery]: %v", result.EmergencyRecoveryRun)
				d.opts.Emergency(context.WithoutCancel(ctx))
			}
		}
	}()

	runner := d.opts.NewRunner()
	if d.opts.Observer != nil {
		d.opts.Observer.ExperimentStarted(def, runner.Phase)
	}
	out, err := runner.Run(ctx, baseline, def)
	if err != nil {
		// the harness broke, not the system under test
		log.Errorf("[Error]: Experiment %v is degraded, err: %v", def.Name, err)
	}
	if out == nil {
		panic(fmt.Sprintf("runner returned no result for %v", def.Name))
	}
	return *out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
