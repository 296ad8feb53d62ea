package faults

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/resiliencelab/chaos-go/pkg/cerrors"
	"github.com/resiliencelab/chaos-go/pkg/faultflags"
	"github.com/resiliencelab/chaos-go/pkg/log"
	"github.com/resiliencelab/chaos-go/pkg/stress"
	"github.com/resiliencelab/chaos-go/pkg/types"
	"github.com/sirupsen/logrus"
)

// Injector applies faults. Inject returns once the fault has been initiated,
// the caller owns waiting out the experiment duration.
type Injector struct {
	cfg   Config
	tasks *tasks
}

// Wait blocks until every asynchronous fault task has finished
func (i *Injector) Wait() {
	i.tasks.wg.Wait()
}

func injectionError(def types.ExperimentDefinition, target, reason string) error {
	return cerrors.Injection{Experiment: def.Name, Fault: string(def.FaultType()), Target: target, Reason: reason}
}

// Inject dispatches on the fault kind of def
func (i *Injector) Inject(ctx context.Context, def types.ExperimentDefinition) error {
	target, ok := i.cfg.Registry.Service(def.Target)
	if !ok {
		return injectionError(def, def.Target, "target service is not registered")
	}

	log.InfoWithValues("[Chaos]: Injecting fault", logrus.Fields{
		"Experiment": def.Name,
		"Fault":      def.FaultType(),
		"Target":     target.Name,
		"Duration":   def.Duration,
	})

	switch f := def.Fault.(type) {
	case types.ServiceFailure:
		return i.killService(ctx, def, target)
	case types.DatabaseFailure:
		return i.stopDatastore(ctx, def, f)
	case types.ResourceExhaustion:
		i.startStress(ctx, def, target, f, def.Duration)
		return nil
	case types.DependencyFailure:
		return i.setDependencyFault(ctx, def, target, f)
	case types.NetworkPartition:
		return i.partition(ctx, def, target, f)
	case types.CascadingFailure:
		return i.cascade(ctx, def, target, f)
	default:
		return injectionError(def, target.Name, fmt.Sprintf("unsupported fault %T", def.Fault))
	}
}

// killService kills the process without any graceful shutdown
func (i *Injector) killService(ctx context.Context, def types.ExperimentDefinition, target types.ServiceTarget) error {
	if err := i.cfg.Runtime.Kill(ctx, target.Handle); err != nil {
		return injectionError(def, target.Name, err.Error())
	}
	log.Infof("[Chaos]: Killed %v service", target.Name)
	return nil
}

func (i *Injector) stopDatastore(ctx context.Context, def types.ExperimentDefinition, f types.DatabaseFailure) error {
	ds, ok := i.cfg.Registry.Datastore(f.Datastore)
	if !ok {
		return injectionError(def, f.Datastore, "datastore is not registered")
	}
	if err := i.cfg.Runtime.Stop(ctx, ds.Handle); err != nil {
		return injectionError(def, ds.Name, err.Error())
	}
	log.Infof("[Chaos]: Stopped %v datastore", ds.Name)
	return nil
}

// startStress execs a workload that carries its own deadline, the exec runs in the background
func (i *Injector) startStress(ctx context.Context, def types.ExperimentDefinition, target types.ServiceTarget, f types.ResourceExhaustion, d time.Duration) {
	command := stress.Command(i.cfg.StressMode, i.cfg.HelperPath, d, f.CPUWorkers, f.MemoryMB)
	log.Infof("[Chaos]: Starting stress in %v service: %v", target.Name, strings.Join(command, " "))

	i.tasks.spawn(ctx, def.Name, d+30*time.Second, func(ctx context.Context) {
		if _, err := i.cfg.Runtime.Exec(ctx, target.Handle, command); err != nil && ctx.Err() == nil {
			// 137 is the stress being killed by recovery or the oom killer
			if strings.Contains(err.Error(), "137") {
				log.Warnf("[Chaos]: Stress process in %v service was killed", target.Name)
				return
			}
			log.Errorf("[Chaos]: Stress in %v service failed, err: %v", target.Name, injectionError(def, target.Name, err.Error()))
		}
	})
}

func (i *Injector) setDependencyFault(ctx context.Context, def types.ExperimentDefinition, target types.ServiceTarget, f types.DependencyFailure) error {
	if i.cfg.Flags == nil {
		return injectionError(def, target.Name, "no fault flag store configured")
	}
	flag := faultflags.Flag{
		Service:     target.Name,
		Dependency:  f.Dependency,
		FailureRate: f.FailureRate,
		LatencyMS:   f.LatencyMS,
		ExpiresAt:   time.Now().Add(def.Duration),
	}
	if err := i.cfg.Flags.Set(ctx, target, flag, def.Duration); err != nil {
		return injectionError(def, target.Name, err.Error())
	}
	log.Infof("[Chaos]: Calls from %v to %v now fail at %.0f%% with %vms latency", target.Name, f.Dependency, f.FailureRate*100, f.LatencyMS)
	return nil
}

// partitionRule is the iptables rule spec dropping egress to the port range
func partitionRule(f types.NetworkPartition) string {
	return fmt.Sprintf("OUTPUT -p tcp --dport %d:%d -j DROP", f.Ports.From, f.Ports.To)
}

// partition inserts the drop rule and schedules its removal inside the target
func (i *Injector) partition(ctx context.Context, def types.ExperimentDefinition, target types.ServiceTarget, f types.NetworkPartition) error {
	rule := partitionRule(f)
	seconds := int(def.Duration.Seconds() + 0.5)
	script := fmt.Sprintf("iptables -I %s && (nohup sh -c 'sleep %d; iptables -D %s' >/dev/null 2>&1 &)", rule, seconds, rule)
	if _, err := i.cfg.Runtime.Exec(ctx, target.Handle, []string{"sh", "-c", script}); err != nil {
		return injectionError(def, target.Name, err.Error())
	}
	log.Infof("[Chaos]: Egress of %v service to ports %d-%d blocked for %vs", target.Name, f.Ports.From, f.Ports.To, seconds)
	return nil
}

// cascade kills the target, then after the settle window stresses the secondary service
func (i *Injector) cascade(ctx context.Context, def types.ExperimentDefinition, target types.ServiceTarget, f types.CascadingFailure) error {
	if err := i.killService(ctx, def, target); err != nil {
		return err
	}
	if f.Secondary == "" || !f.SecondaryStress {
		return nil
	}
	secondary, ok := i.cfg.Registry.Service(f.Secondary)
	if !ok {
		return injectionError(def, f.Secondary, "secondary service is not registered")
	}

	stressFor := def.Duration - f.SettleWindow
	if stressFor <= 0 {
		stressFor = def.Duration
	}
	i.tasks.spawn(ctx, def.Name, f.SettleWindow+time.Second, func(ctx context.Context) {
		log.Infof("[Wait]: Waiting %v before the failure spreads to %v", f.SettleWindow, secondary.Name)
		if err := sleep(ctx, f.SettleWindow); err != nil {
			log.Infof("[Chaos]: Cascade to %v cancelled", secondary.Name)
			return
		}
		i.startStress(ctx, def, secondary, types.DefaultStress(), stressFor)
	})
	return nil
}
