package faults

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/resiliencelab/chaos-go/pkg/cerrors"
	"github.com/resiliencelab/chaos-go/pkg/log"
	"github.com/resiliencelab/chaos-go/pkg/runtime"
	"github.com/resiliencelab/chaos-go/pkg/stress"
	"github.com/resiliencelab/chaos-go/pkg/types"
	"github.com/resiliencelab/chaos-go/pkg/utils/retry"
)

// Recovery issues the remediation of each fault kind and confirms the system healed
type Recovery struct {
	cfg   Config
	tasks *tasks
}

func recoveryError(def types.ExperimentDefinition, target, reason string) error {
	return cerrors.Recovery{Experiment: def.Name, Fault: string(def.FaultType()), Target: target, Reason: reason}
}

// Recover dispatches the inverse action of the fault in def
func (r *Recovery) Recover(ctx context.Context, def types.ExperimentDefinition) error {
	r.tasks.cancel(def.Name)

	target, ok := r.cfg.Registry.Service(def.Target)
	if !ok {
		return recoveryError(def, def.Target, "target service is not registered")
	}
	log.Infof("[Recovery]: Recovering from %v in %v", def.FaultType(), target.Name)

	switch f := def.Fault.(type) {
	case types.ServiceFailure:
		return r.restart(ctx, def, target.Name, target.Handle)
	case types.DatabaseFailure:
		ds, ok := r.cfg.Registry.Datastore(f.Datastore)
		if !ok {
			return recoveryError(def, f.Datastore, "datastore is not registered")
		}
		return r.restart(ctx, def, ds.Name, ds.Handle)
	case types.ResourceExhaustion:
		r.killStress(ctx, target)
		return r.restart(ctx, def, target.Name, target.Handle)
	case types.DependencyFailure:
		if r.cfg.Flags == nil {
			return recoveryError(def, target.Name, "no fault flag store configured")
		}
		if err := r.cfg.Flags.Clear(ctx, target, f.Dependency); err != nil {
			return recoveryError(def, target.Name, err.Error())
		}
		log.Infof("[Recovery]: Cleared %v fault flag of %v", f.Dependency, target.Name)
		return nil
	case types.NetworkPartition:
		return r.unpartition(ctx, def, target, f)
	case types.CascadingFailure:
		return r.recoverCascade(ctx, def, target, f)
	default:
		return recoveryError(def, target.Name, fmt.Sprintf("unsupported fault %T", def.Fault))
	}
}

// restart restarts one handle with retries
func (r *Recovery) restart(ctx context.Context, def types.ExperimentDefinition, name, handle string) error {
	err := retry.
		Times(r.cfg.RetryTimes).
		Wait(r.cfg.RetryWait).
		Try(ctx, func(attempt uint) error {
			if attempt > 0 {
				log.Warnf("[Recovery]: Retrying restart of %v, attempt %v", name, attempt+1)
			}
			err := r.cfg.Runtime.Restart(ctx, handle)
			if runtime.IsNotFound(err) {
				return retry.Stop(err)
			}
			return err
		})
	if err != nil {
		return recoveryError(def, name, err.Error())
	}
	log.Infof("[Recovery]: Restarted %v", name)
	return nil
}

// killStress is best effort, the restart that follows ends the workload anyway
func (r *Recovery) killStress(ctx context.Context, target types.ServiceTarget) {
	if _, err := r.cfg.Runtime.Exec(ctx, target.Handle, stress.KillCommand(r.cfg.StressMode, r.cfg.HelperPath)); err != nil {
		log.Warnf("[Recovery]: Unable to kill stress processes in %v, err: %v", target.Name, err)
	}
}

// unpartition removes every copy of the drop rule, the scheduled cleanup may already have done it
func (r *Recovery) unpartition(ctx context.Context, def types.ExperimentDefinition, target types.ServiceTarget, f types.NetworkPartition) error {
	rule := partitionRule(f)
	script := fmt.Sprintf("while iptables -C %s 2>/dev/null; do iptables -D %s || exit 1; done", rule, rule)
	if _, err := r.cfg.Runtime.Exec(ctx, target.Handle, []string{"sh", "-c", script}); err != nil {
		return recoveryError(def, target.Name, err.Error())
	}
	log.Infof("[Recovery]: Restored network rules of %v", target.Name)
	return nil
}

// recoverCascade restarts the dependency chain in order, then whatever the cascade touched outside it
func (r *Recovery) recoverCascade(ctx context.Context, def types.ExperimentDefinition, target types.ServiceTarget, f types.CascadingFailure) error {
	var secondary types.ServiceTarget
	hasSecondary := false
	if f.Secondary != "" {
		secondary, hasSecondary = r.cfg.Registry.Service(f.Secondary)
	}
	if hasSecondary && f.SecondaryStress {
		r.killStress(ctx, secondary)
	}

	restarted := map[string]bool{}
	for _, name := range r.cfg.DependencyChain {
		handle, ok := r.handleOf(name)
		if !ok {
			log.Warnf("[Recovery]: %v in the dependency chain is not registered, skipping", name)
			continue
		}
		if err := r.restart(ctx, def, name, handle); err != nil {
			return err
		}
		restarted[name] = true
	}
	if !restarted[target.Name] {
		if err := r.restart(ctx, def, target.Name, target.Handle); err != nil {
			return err
		}
	}
	if hasSecondary && !restarted[secondary.Name] {
		if err := r.restart(ctx, def, secondary.Name, secondary.Handle); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recovery) handleOf(name string) (string, bool) {
	if ds, ok := r.cfg.Registry.Datastore(name); ok {
		return ds.Handle, true
	}
	if svc, ok := r.cfg.Registry.Service(name); ok {
		return svc.Handle, true
	}
	return "", false
}

// AwaitRecovery polls the impact radius until every service is healthy in the
// same tick. It returns (true, elapsed) on success and (false, timeout) once the
// timeout elapses, even if a poll is still in flight.
func (r *Recovery) AwaitRecovery(ctx context.Context, def types.ExperimentDefinition, timeout time.Duration) (bool, time.Duration) {
	services, unknown := r.cfg.Registry.Expand(def.ImpactRadius)
	if len(unknown) > 0 {
		log.Warnf("[Wait]: Impact radius of %v names unregistered services %v, they are not polled", def.Name, unknown)
	}
	if len(services) == 0 {
		if target, ok := r.cfg.Registry.Service(def.Target); ok {
			services = append(services, target)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()

	for tick := 1; ; tick++ {
		healthy, down := r.pollOnce(ctx, services)
		if healthy && ctx.Err() == nil {
			elapsed := time.Since(start)
			log.Infof("[Wait]: Impact radius of %v healthy after %v", def.Name, elapsed.Round(time.Millisecond))
			return true, elapsed
		}
		if ctx.Err() != nil {
			break
		}
		log.Infof("[Wait]: Tick %v, still unhealthy: %v", tick, down)
		if err := sleep(ctx, r.cfg.PollInterval); err != nil {
			break
		}
	}
	log.Warnf("[Wait]: %v did not recover within %v", def.Name, timeout)
	return false, timeout
}

// pollOnce probes every service concurrently and gives up when ctx is done
func (r *Recovery) pollOnce(ctx context.Context, services []types.ServiceTarget) (bool, []string) {
	type outcome struct {
		healthy bool
		down    []string
	}
	done := make(chan outcome, 1)
	go func() {
		var (
			mu   sync.Mutex
			wg   sync.WaitGroup
			down []string
		)
		for _, svc := range services {
			wg.Add(1)
			go func(svc types.ServiceTarget) {
				defer wg.Done()
				if ok, _ := r.cfg.Checker.Check(ctx, svc); !ok {
					mu.Lock()
					down = append(down, svc.Name)
					mu.Unlock()
				}
			}(svc)
		}
		wg.Wait()
		done <- outcome{healthy: len(down) == 0, down: down}
	}()

	select {
	case <-ctx.Done():
		return false, nil
	case o := <-done:
		return o.healthy, o.down
	}
}

// Emergency restarts every registered service and datastore regardless of
// the experiment. Failures are logged, never returned.
func (r *Recovery) Emergency(ctx context.Context) {
	log.Warn("[Recovery]: Starting emergency recovery of every registered target")
	r.tasks.cancelAll()

	for _, ds := range r.cfg.Registry.Datastores() {
		if err := r.cfg.Runtime.Restart(ctx, ds.Handle); err != nil {
			log.Errorf("[Recovery]: Emergency restart of %v datastore failed, err: %v", ds.Name, err)
			continue
		}
		log.Infof("[Recovery]: Emergency restarted %v datastore", ds.Name)
	}
	for _, svc := range r.cfg.Registry.Services() {
		if err := r.cfg.Runtime.Restart(ctx, svc.Handle); err != nil {
			log.Errorf("[Recovery]: Emergency restart of %v failed, err: %v", svc.Name, err)
			continue
		}
		log.Infof("[Recovery]: Emergency restarted %v", svc.Name)
	}
}
