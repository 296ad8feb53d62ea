package suite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/resiliencelab/chaos-go/chaoslib/faults"
	"github.com/resiliencelab/chaos-go/pkg/assessment"
	"github.com/resiliencelab/chaos-go/pkg/cerrors"
	"github.com/resiliencelab/chaos-go/pkg/chaostest"
	"github.com/resiliencelab/chaos-go/pkg/experiment"
	"github.com/resiliencelab/chaos-go/pkg/metrics"
	"github.com/resiliencelab/chaos-go/pkg/result"
	"github.com/resiliencelab/chaos-go/pkg/targets"
	"github.com/resiliencelab/chaos-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// throwingInjector fails the injection of one named experiment
type throwingInjector struct {
	next experiment.FaultInjector
	fail string
}

func (t throwingInjector) Inject(ctx context.Context, def types.ExperimentDefinition) error {
	if def.Name == t.fail {
		return errors.New("runtime handle not found")
	}
	return t.next.Inject(ctx, def)
}

type panickingSink struct{}

func (panickingSink) SaveExperiment(r types.ExperimentResult) (string, error) {
	panic("disk vanished")
}

// panickingObserver crashes when the named experiment starts, outside the runner
type panickingObserver struct {
	recordingObserver
	crash string
}

func (o *panickingObserver) ExperimentStarted(def types.ExperimentDefinition, phase func() types.Phase) {
	if def.Name == o.crash {
		panic("status tracker corrupted")
	}
	o.recordingObserver.ExperimentStarted(def, phase)
}

type recordingReportSink struct {
	reports []types.SuiteReport
}

func (s *recordingReportSink) SaveSuite(ctx context.Context, report types.SuiteReport) (string, error) {
	s.reports = append(s.reports, report)
	return "memory", nil
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []string
	finished []string
}

func (o *recordingObserver) ExperimentStarted(def types.ExperimentDefinition, phase func() types.Phase) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, def.Name+":"+string(phase()))
}

func (o *recordingObserver) ExperimentFinished(res types.ExperimentResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, res.Experiment.Name)
}

type fixture struct {
	rt        *chaostest.FakeRuntime
	registry  *targets.Registry
	collector *metrics.Collector
	injector  experiment.FaultInjector
	recovery  *faults.Recovery
	sink      experiment.ResultSink
}

func newFixture(services ...string) *fixture {
	rt := chaostest.NewFakeRuntime()
	registry := targets.NewRegistry(chaostest.Services(services...), nil, nil)
	checker := chaostest.NewFakeChecker(services...)
	collector := metrics.NewCollector(registry, checker, chaostest.NewFakeHostSampler(metrics.HostStats{CPUPercent: 5, MemoryPercent: 20}))
	injector, recovery := faults.New(faults.Config{
		Runtime:      rt,
		Registry:     registry,
		Checker:      checker,
		PollInterval: 10 * time.Millisecond,
		RetryWait:    time.Millisecond,
	})
	return &fixture{rt: rt, registry: registry, collector: collector, injector: injector, recovery: recovery}
}

func (f *fixture) driver(sink ReportSink, observer Observer) *Driver {
	return NewDriver(Options{
		Services:  f.registry,
		Collector: f.collector,
		NewRunner: func() *experiment.Runner {
			return experiment.NewRunner(experiment.Options{
				Injector:         f.injector,
				Recovery:         f.recovery,
				Collector:        f.collector,
				Assessor:         assessment.New(f.registry.IsCritical, time.Second),
				Sink:             f.sink,
				SamplingInterval: 20 * time.Millisecond,
			})
		},
		Sink:           sink,
		Observer:       observer,
		BaselineSettle: time.Millisecond,
		Stabilization:  10 * time.Millisecond,
	})
}

func definitions(names ...string) []types.ExperimentDefinition {
	var defs []types.ExperimentDefinition
	for _, name := range names {
		defs = append(defs, types.ExperimentDefinition{
			Name:              name,
			Fault:             types.ServiceFailure{},
			Target:            "svc-a",
			Duration:          10 * time.Millisecond,
			ImpactRadius:      []string{types.AllServices},
			RecoveryTimeLimit: 200 * time.Millisecond,
		})
	}
	return defs
}

func TestFailingExperimentDoesNotStopTheSuite(t *testing.T) {
	f := newFixture("svc-a", "svc-b")
	f.injector = throwingInjector{next: f.injector, fail: "exp-2"}
	sink := &recordingReportSink{}
	observer := &recordingObserver{}

	report, err := f.driver(sink, observer).Run(context.Background(), definitions("exp-1", "exp-2", "exp-3"))
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	assert.Equal(t, 3, report.TotalExperiments)
	assert.False(t, report.Results[0].Degraded())
	assert.True(t, report.Results[1].Degraded())
	assert.Contains(t, report.Results[1].Error, result.InjectionFailed)
	assert.False(t, report.Results[2].Degraded())
	assert.Empty(t, report.Results[0].AnomaliesDetected)
	assert.Empty(t, report.Results[2].AnomaliesDetected)
	assert.Equal(t, 10.0, report.Results[0].ResilienceScore)
	assert.Equal(t, 10.0, report.Results[2].ResilienceScore)
	assert.Equal(t, 1.0, report.RecoverySuccessRate)
	assert.NotEmpty(t, report.RunID)

	require.Len(t, sink.reports, 1)
	assert.Equal(t, []string{"exp-1:Idle", "exp-2:Idle", "exp-3:Idle"}, observer.started)
	assert.Equal(t, []string{"exp-1", "exp-2", "exp-3"}, observer.finished)
}

func TestNoServicesIsFatal(t *testing.T) {
	f := newFixture()
	_, err := f.driver(nil, nil).Run(context.Background(), definitions("exp-1"))
	require.Error(t, err)
	assert.True(t, cerrors.IsFatal(err))
}

func TestPanicOutsideRunnerIsIsolated(t *testing.T) {
	f := newFixture("svc-a")
	observer := &panickingObserver{crash: "exp-1"}
	d := f.driver(nil, observer)
	emergencies := 0
	d.opts.Emergency = func(ctx context.Context) {
		emergencies++
		f.recovery.Emergency(ctx)
	}

	report, err := d.Run(context.Background(), definitions("exp-1", "exp-2"))
	require.NoError(t, err)
	require.Len(t, report.Results, 2)

	assert.True(t, report.Results[0].Degraded())
	assert.Contains(t, report.Results[0].Error, "status tracker corrupted")
	assert.Equal(t, cerrors.ErrorTypePanic, report.Results[0].ErrorType)
	assert.False(t, report.Results[1].Degraded())
	assert.Equal(t, 1, emergencies)
	assert.GreaterOrEqual(t, f.rt.Count("restart", chaostest.Handle("svc-a")), 2, "emergency restart plus the recovery of exp-2")
	assert.Equal(t, []string{"exp-1", "exp-2"}, observer.finished)
}

func TestPanickingResultSinkKeepsResults(t *testing.T) {
	f := newFixture("svc-a")
	f.sink = panickingSink{}

	report, err := f.driver(nil, nil).Run(context.Background(), definitions("exp-1", "exp-2"))
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	for _, r := range report.Results {
		assert.False(t, r.Degraded())
		assert.True(t, r.RecoverySuccessful)
		assert.Equal(t, 10.0, r.ResilienceScore)
	}
}

func TestCancelledSuiteKeepsGatheredResults(t *testing.T) {
	f := newFixture("svc-a")
	d := f.driver(nil, nil)
	d.opts.Stabilization = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	report, err := d.Run(ctx, definitions("exp-1", "exp-2"))
	require.NoError(t, err)
	assert.Len(t, report.Results, 1)
}

func TestEstablishBaseline(t *testing.T) {
	f := newFixture("svc-a", "svc-b")
	baseline, err := f.driver(nil, nil).EstablishBaseline(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, baseline.ServicesHealthy)
	assert.Equal(t, 5.0, baseline.CPUPercent)
}
