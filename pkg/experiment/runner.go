// Package experiment drives one chaos experiment through its lifecycle.
package experiment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/resiliencelab/chaos-go/pkg/assessment"
	"github.com/resiliencelab/chaos-go/pkg/cerrors"
	"github.com/resiliencelab/chaos-go/pkg/log"
	"github.com/resiliencelab/chaos-go/pkg/result"
	"github.com/resiliencelab/chaos-go/pkg/telemetry"
	"github.com/resiliencelab/chaos-go/pkg/types"
	"github.com/sirupsen/logrus"
)

// DefaultSamplingInterval is the monitoring cadence, larger than the worst case of one collection
const DefaultSamplingInterval = 10 * time.Second

// ErrRunnerUsed is returned by Run on a runner that already executed an experiment
var ErrRunnerUsed = errors.New("runner already executed an experiment, reset it first")

// FaultInjector applies the fault of an experiment
type FaultInjector interface {
	Inject(ctx context.Context, def types.ExperimentDefinition) error
}

// RecoveryController remediates a fault and confirms the system healed
type RecoveryController interface {
	Recover(ctx context.Context, def types.ExperimentDefinition) error
	AwaitRecovery(ctx context.Context, def types.ExperimentDefinition, timeout time.Duration) (bool, time.Duration)
	Emergency(ctx context.Context)
}

// Collector takes a snapshot of the system under test
type Collector interface {
	Collect(ctx context.Context) types.MetricsSnapshot
}

// ResultSink persists finished results
type ResultSink interface {
	SaveExperiment(r types.ExperimentResult) (string, error)
}

// Options wires a runner
type Options struct {
	Injector  FaultInjector
	Recovery  RecoveryController
	Collector Collector
	Assessor  *assessment.Assessor
	// Sink may be nil, results are then only returned
	Sink ResultSink
	// Metrics may be nil
	Metrics          *telemetry.Metrics
	SamplingInterval time.Duration
}

// Runner executes exactly one experiment, Reset makes it reusable
type Runner struct {
	opts Options

	mu    sync.Mutex
	phase types.Phase
	used  bool
}

// NewRunner returns an idle runner
func NewRunner(opts Options) *Runner {
	if opts.SamplingInterval <= 0 {
		opts.SamplingInterval = DefaultSamplingInterval
	}
	if opts.Assessor == nil {
		opts.Assessor = assessment.New(nil, 0)
	}
	return &Runner{opts: opts, phase: types.PhaseIdle}
}

// Phase returns the current lifecycle phase
func (r *Runner) Phase() types.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *Runner) setPhase(p types.Phase) {
	r.mu.Lock()
	r.phase = p
	r.mu.Unlock()
	log.Debugf("[Status]: Runner phase %v", p)
}

// Reset returns a finished runner to Idle
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phase = types.PhaseIdle
	r.used = false
}

func (r *Runner) claim() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.used {
		return false
	}
	r.used = true
	return true
}

// Run executes def against the suite baseline. The returned result is never nil
// unless the runner was reused; err reports a failure of the harness itself, in
// which case the result is degraded and emergency recovery already ran.
func (r *Runner) Run(ctx context.Context, baseline types.MetricsSnapshot, def types.ExperimentDefinition) (res *types.ExperimentResult, err error) {
	if !r.claim() {
		return nil, ErrRunnerUsed
	}
	ctx, span := telemetry.StartSpan(ctx, "experiment", "experiment", def.Name, "fault_type", string(def.FaultType()))
	defer func() { telemetry.EndSpan(span, err) }()

	res = types.NewExperimentResult(def, time.Now())
	r.setPhase(types.PhaseBaselineEstablished)
	log.InfoWithValues("[Info]: The experiment details are as follows:", logrus.Fields{
		"Experiment":        def.Name,
		"Fault":             def.FaultType(),
		"Target":            def.Target,
		"Duration":          def.Duration,
		"ImpactRadius":      def.ImpactRadius,
		"RecoveryTimeLimit": def.RecoveryTimeLimit,
	})

	if err = def.Validate(); err != nil {
		err = errors.Wrap(err, result.ExperimentInvalid)
	} else {
		err = protect(func() error { return r.execute(ctx, baseline, def, res) })
	}
	res.Phase = r.Phase()
	if err != nil {
		r.degrade(ctx, res, err)
	}

	if aerr := protect(func() error { return r.assess(ctx, baseline, def, res) }); aerr != nil {
		if err == nil {
			err = aerr
			r.degrade(ctx, res, err)
		} else {
			log.Errorf("[Status]: Assessment of %v failed as well, err: %v", def.Name, aerr)
		}
	}

	res.EndTime = time.Now()
	if perr := protect(func() error { return r.persist(ctx, *res) }); perr != nil {
		log.Errorf("[Status]: %v, err: %v", result.ResultPersistFailed, perr)
	}
	r.setPhase(types.PhaseDone)
	return res, err
}

// persist hands the finished result to the sink and the metrics
func (r *Runner) persist(ctx context.Context, res types.ExperimentResult) error {
	r.opts.Metrics.Record(ctx, res)
	if r.opts.Sink == nil {
		return nil
	}
	path, err := r.opts.Sink.SaveExperiment(res)
	if err != nil {
		return err
	}
	log.Infof("[Status]: Result of %v written to %v", res.Experiment.Name, path)
	return nil
}

// degrade records a harness failure and runs the emergency recovery, once per Run
func (r *Runner) degrade(ctx context.Context, res *types.ExperimentResult, err error) {
	reason, errType := cerrors.GetRootCauseAndErrorCode(err)
	log.ErrorWithValues("[Error]: Experiment failed", logrus.Fields{
		"Experiment": res.Experiment.Name,
		"ErrorType":  errType,
		"Reason":     reason,
	})
	res.Error = err.Error()
	res.ErrorType = errType
	res.AnomaliesDetected = append(res.AnomaliesDetected, "Experiment error: "+err.Error())

	log.Warnf("[Recovery]: %v", result.EmergencyRecoveryRun)
	ectx, span := telemetry.StartSpan(context.WithoutCancel(ctx), "emergency-recovery")
	defer span.End()
	r.opts.Recovery.Emergency(ectx)
}

// execute runs the pre-chaos snapshot, injection, monitoring and recovery phases
func (r *Runner) execute(ctx context.Context, baseline types.MetricsSnapshot, def types.ExperimentDefinition, res *types.ExperimentResult) error {
	r.setPhase(types.PhaseInjecting)
	res.SystemBehavior = append(res.SystemBehavior, r.opts.Collector.Collect(ctx))

	mon := startMonitoring(ctx, r.opts.Collector, baseline, res, r.opts.SamplingInterval)
	defer mon.stop()

	var harnessErr error
	ictx, span := telemetry.StartSpan(ctx, "inject", "experiment", def.Name)
	ierr := r.opts.Injector.Inject(ictx, def)
	telemetry.EndSpan(span, ierr)
	if ierr != nil {
		// the fault may be partially applied, recovery still runs
		harnessErr = errors.Wrap(typed(ierr, func(reason string) error {
			return cerrors.Injection{Experiment: def.Name, Fault: string(def.FaultType()), Target: def.Target, Reason: reason}
		}), result.InjectionFailed)
		log.Errorf("[Chaos]: Injection of %v failed, proceeding to recovery, err: %v", def.Name, ierr)
	}

	r.setPhase(types.PhaseMonitoring)
	log.Infof("[Wait]: Keeping the fault live for %v", def.Duration)
	if err := sleep(ctx, def.Duration); err != nil {
		return errors.Wrapf(err, "experiment %v interrupted while the fault was live", def.Name)
	}

	r.setPhase(types.PhaseRecoveryInitiated)
	recoveryStart := time.Now()
	rctx, span := telemetry.StartSpan(ctx, "recover", "experiment", def.Name)
	rerr := r.opts.Recovery.Recover(rctx, def)
	telemetry.EndSpan(span, rerr)
	if rerr != nil {
		mon.stop()
		r.setPhase(types.PhaseRecoveryTimedOut)
		res.SteadyStateMaintained = len(res.AnomaliesDetected) == 0
		rerr = typed(rerr, func(reason string) error {
			return cerrors.Recovery{Experiment: def.Name, Fault: string(def.FaultType()), Target: def.Target, Reason: reason}
		})
		if harnessErr != nil {
			return errors.Wrapf(rerr, "%v; %v", harnessErr.Error(), result.RecoveryFailed)
		}
		return errors.Wrap(rerr, result.RecoveryFailed)
	}

	// the await gets the whole limit, recovery time still counts from the remediation
	actx, span := telemetry.StartSpan(ctx, "await-recovery", "experiment", def.Name)
	recovered, _ := r.opts.Recovery.AwaitRecovery(actx, def, def.RecoveryTimeLimit)
	span.End()
	recoveryTime := time.Since(recoveryStart)

	mon.stop()
	res.SteadyStateMaintained = len(res.AnomaliesDetected) == 0
	res.RecoverySuccessful = recovered
	if recovered {
		res.SetRecoveryTime(recoveryTime)
		r.setPhase(types.PhaseRecovered)
		log.Infof("[Recovery]: %v recovered in %.1fs", def.Name, recoveryTime.Seconds())
	} else {
		r.setPhase(types.PhaseRecoveryTimedOut)
		log.Warnf("[Recovery]: %v did not recover within %v", def.Name, def.RecoveryTimeLimit)
	}
	return harnessErr
}

// assess computes impact, score and lessons from a fresh snapshot
func (r *Runner) assess(ctx context.Context, baseline types.MetricsSnapshot, def types.ExperimentDefinition, res *types.ExperimentResult) error {
	post := r.opts.Collector.Collect(context.WithoutCancel(ctx))
	res.ImpactAssessment = r.opts.Assessor.Impact(def, baseline, post, res.RecoverySuccessful)
	res.ResilienceScore = assessment.Score(*res)
	res.LessonsLearned = r.opts.Assessor.Lessons(*res)
	r.setPhase(types.PhaseAssessed)

	log.InfoWithValues("[Summary]: Experiment assessed", logrus.Fields{
		"Experiment":         def.Name,
		"RecoverySuccessful": res.RecoverySuccessful,
		"Anomalies":          len(res.AnomaliesDetected),
		"UserImpact":         res.ImpactAssessment.UserImpactLevel,
		"ResilienceScore":    fmt.Sprintf("%.1f", res.ResilienceScore),
	})
	return nil
}

// protect converts a panic in fn into an error
func protect(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = cerrors.Panic{Reason: fmt.Sprintf("%v: %v", result.HarnessPanicked, p)}
		}
	}()
	return fn()
}

// typed keeps err if it already carries an error type, otherwise wraps its message with wrap
func typed(err error, wrap func(reason string) error) error {
	if cerrors.IsUserFriendly(err) {
		return err
	}
	return wrap(err.Error())
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
