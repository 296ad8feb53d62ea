package main

import (
	"context"

	"github.com/resiliencelab/chaos-go/chaoslib/faults"
	"github.com/resiliencelab/chaos-go/pkg/assessment"
	"github.com/resiliencelab/chaos-go/pkg/clients"
	"github.com/resiliencelab/chaos-go/pkg/environment"
	"github.com/resiliencelab/chaos-go/pkg/experiment"
	"github.com/resiliencelab/chaos-go/pkg/faultflags"
	"github.com/resiliencelab/chaos-go/pkg/log"
	"github.com/resiliencelab/chaos-go/pkg/metrics"
	"github.com/resiliencelab/chaos-go/pkg/probe"
	"github.com/resiliencelab/chaos-go/pkg/result"
	"github.com/resiliencelab/chaos-go/pkg/runtime"
	"github.com/resiliencelab/chaos-go/pkg/suite"
	"github.com/resiliencelab/chaos-go/pkg/targets"
	"github.com/resiliencelab/chaos-go/pkg/telemetry"
)

// app holds every component of one suite run
type app struct {
	cfg       *environment.Config
	registry  *targets.Registry
	collector *metrics.Collector
	injector  *faults.Injector
	recovery  *faults.Recovery
	assessor  *assessment.Assessor
	store     *result.Store
	metrics   *telemetry.Metrics

	shutdownTracing func(context.Context) error
}

func newApp(ctx context.Context, cfg *environment.Config) (*app, error) {
	rt, err := newRuntime(cfg.Runtime)
	if err != nil {
		return nil, err
	}

	registry := targets.NewRegistry(cfg.ServiceTargets(), cfg.DatastoreTargets(), cfg.CriticalServices)
	log.Info("[PreReq]: Resolving the runtime handles of every target")
	if err := registry.Resolve(ctx, rt); err != nil {
		return nil, err
	}

	checker := probe.NewHTTPProbe(cfg.Timing.ProbeTimeout)
	injector, recovery := faults.New(faults.Config{
		Runtime:         rt,
		Registry:        registry,
		Checker:         checker,
		Flags:           newFlagStore(cfg.Flags, rt),
		StressMode:      cfg.Stress.Mode,
		HelperPath:      cfg.Stress.HelperPath,
		DependencyChain: cfg.DependencyChain,
		PollInterval:    cfg.Timing.PollInterval,
		RetryWait:       cfg.Timing.RetryWait,
	})

	var uploader result.Uploader
	if cfg.Report.S3Bucket != "" {
		log.Infof("[PreReq]: Suite reports will be uploaded to s3://%v/%v", cfg.Report.S3Bucket, cfg.Report.S3Prefix)
		uploader = result.NewS3Uploader(cfg.Report.S3Region, cfg.Report.S3Bucket, cfg.Report.S3Prefix)
	}

	shutdown, err := telemetry.InitOTelSDK(ctx, telemetry.OTELSuiteServiceName, cfg.Telemetry.Endpoint)
	if err != nil {
		return nil, err
	}
	m, err := telemetry.NewMetrics(ctx, telemetry.OTELSuiteServiceName)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	return &app{
		cfg:             cfg,
		registry:        registry,
		collector:       metrics.NewCollector(registry, checker, metrics.NewGopsutilSampler()),
		injector:        injector,
		recovery:        recovery,
		assessor:        assessment.New(registry.IsCritical, cfg.Timing.SlowRecovery),
		store:           result.NewStore(cfg.Report.Dir, uploader),
		metrics:         m,
		shutdownTracing: shutdown,
	}, nil
}

func newRuntime(cfg environment.RuntimeConfig) (runtime.Runtime, error) {
	if cfg.Backend == environment.RuntimeKubernetes {
		clientSets := clients.ClientSets{}
		if err := clientSets.GenerateClientSetFromKubeConfig(cfg.KubeConfig); err != nil {
			return nil, err
		}
		return runtime.NewKubernetes(clientSets, cfg.Namespace), nil
	}
	return runtime.NewDocker(cfg.DockerBinary, cfg.DockerSocket, nil), nil
}

func newFlagStore(cfg environment.FlagConfig, rt runtime.Runtime) faultflags.Store {
	if cfg.Backend == environment.FlagsRedis {
		return faultflags.NewRedisStore(faultflags.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), cfg.Prefix)
	}
	return faultflags.NewFileStore(rt, cfg.Dir)
}

func (a *app) newRunner() *experiment.Runner {
	return experiment.NewRunner(experiment.Options{
		Injector:         a.injector,
		Recovery:         a.recovery,
		Collector:        a.collector,
		Assessor:         a.assessor,
		Sink:             a.store,
		Metrics:          a.metrics,
		SamplingInterval: a.cfg.Timing.SamplingInterval,
	})
}

func (a *app) driver(observer suite.Observer) *suite.Driver {
	opts := suite.Options{
		Services:       a.registry,
		Collector:      a.collector,
		NewRunner:      a.newRunner,
		Sink:           a.store,
		Observer:       observer,
		Emergency:      a.recovery.Emergency,
		BaselineSettle: a.cfg.Timing.BaselineSettle,
		Stabilization:  a.cfg.Timing.Stabilization,
	}
	return suite.NewDriver(opts)
}

// close waits for detached fault tasks and flushes telemetry
func (a *app) close(ctx context.Context) {
	a.injector.Wait()
	if err := a.metrics.Shutdown(ctx); err != nil {
		log.Warnf("[Status]: Unable to flush metrics, err: %v", err)
	}
	if err := a.shutdownTracing(ctx); err != nil {
		log.Warnf("[Status]: Unable to flush traces, err: %v", err)
	}
}
