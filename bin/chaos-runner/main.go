package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kyokomi/emoji"
	"github.com/pkg/errors"
	"github.com/resiliencelab/chaos-go/experiments"
	"github.com/resiliencelab/chaos-go/pkg/cerrors"
	"github.com/resiliencelab/chaos-go/pkg/environment"
	"github.com/resiliencelab/chaos-go/pkg/log"
	"github.com/resiliencelab/chaos-go/pkg/status"
	"github.com/resiliencelab/chaos-go/pkg/stress"
	"github.com/resiliencelab/chaos-go/pkg/telemetry"
	"github.com/resiliencelab/chaos-go/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is set at build time
var Version = "dev"

// errBelowThreshold is returned when the suite ran but scored under the pass threshold
var errBelowThreshold = errors.New("mean resilience score is below the pass threshold")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logExit(err)
		os.Exit(1)
	}
}

// logExit tells a suite that could not run apart from one that ran and scored poorly,
// the verdict already logged the latter
func logExit(err error) {
	switch {
	case errors.Is(err, errBelowThreshold):
		return
	case cerrors.IsFatal(err):
		reason, errType := cerrors.GetRootCauseAndErrorCode(err)
		log.ErrorWithValues("[Error]: Chaos suite aborted, no resilience verdict", logrus.Fields{
			"ErrorType": errType,
			"Reason":    reason,
		})
	default:
		log.Errorf("[Error]: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, logLevel string

	root := &cobra.Command{
		Use:           "chaos-runner",
		Short:         "Run chaos experiments against a running system and score its resilience",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", environment.Getenv("CHAOS_CONFIG", ""), "path of the chaos configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides LOG_LEVEL and the config file")

	load := func() (*environment.Config, error) {
		cfg, err := environment.Load(configPath)
		if err != nil {
			log.Configure(logLevel)
			return nil, err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		log.Configure(cfg.LogLevel)
		return cfg, nil
	}

	root.AddCommand(newSuiteCmd(load), newExperimentCmd(load), newStressCmd(), newVersionCmd())
	return root
}

func newSuiteCmd(load func() (*environment.Config, error)) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "suite",
		Short: "Run every configured experiment and write the suite report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Status.Listen = listen
			}
			defs, err := cfg.Definitions()
			if err != nil {
				return err
			}
			return runSuite(cfg, defs)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address of the status server, e.g. :8080")
	return cmd
}

func newExperimentCmd(load func() (*environment.Config, error)) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "experiment",
		Short: "Run a single experiment by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			defs, err := cfg.Definitions()
			if err != nil {
				return err
			}
			def, ok := experiments.Find(defs, name)
			if !ok {
				return cerrors.Generic{Phase: "Config", Reason: "no experiment named '" + name + "'"}
			}
			return runSuite(cfg, []types.ExperimentDefinition{def})
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "name of the experiment to run")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newStressCmd() *cobra.Command {
	var until string
	var duration time.Duration
	opts := stress.Options{}

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Burn CPU and memory until a deadline, used inside targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Configure(environment.Getenv("LOG_LEVEL", "info"))
			deadline, err := stressDeadline(until, duration, time.Now())
			if err != nil {
				return err
			}
			opts.Until = deadline

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			shutdown, err := telemetry.InitOTelSDK(ctx, telemetry.OTELStressServiceName, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
			if err != nil {
				return err
			}
			defer func() { _ = shutdown(context.Background()) }()

			ctx, span := telemetry.StartSpan(ctx, "stress")
			err = stress.Run(ctx, opts)
			telemetry.EndSpan(span, err)
			return err
		},
	}
	cmd.Flags().StringVar(&until, "until", "", "RFC3339 deadline of the workload")
	cmd.Flags().DurationVar(&duration, "duration", 0, "workload duration, used when --until is not set")
	cmd.Flags().IntVar(&opts.CPUWorkers, "cpu", 1, "number of cpu burning workers")
	cmd.Flags().IntVar(&opts.MemoryMB, "memory-mb", 0, "resident memory to hold, in MB")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the chaos-runner version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(Version)
		},
	}
}

// stressDeadline picks the explicit deadline, or now+duration
func stressDeadline(until string, duration time.Duration, now time.Time) (time.Time, error) {
	if until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return time.Time{}, errors.Wrapf(err, "invalid --until '%v'", until)
		}
		return t, nil
	}
	if duration <= 0 {
		return time.Time{}, errors.New("stress needs --until or a positive --duration")
	}
	return now.Add(duration), nil
}

func runSuite(cfg *environment.Config, defs []types.ExperimentDefinition) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	tracker := status.NewTracker()
	if cfg.Status.Listen != "" {
		srv := status.NewServer(cfg.Status.Listen, tracker, a.metrics.Registry)
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	report, err := a.driver(tracker).Run(ctx, defs)
	if err != nil {
		return err
	}
	return verdict(report, cfg.PassThreshold)
}

// verdict logs the outcome, harness failures apart from poor resilience
func verdict(report types.SuiteReport, threshold float64) error {
	for _, r := range report.Results {
		if r.Degraded() {
			log.ErrorWithValues("[Error]: The chaos harness failed during an experiment", logrus.Fields{
				"Experiment": r.Experiment.Name,
				"Error":      r.Error,
			})
		}
	}
	passed := report.TotalExperiments > 0 && report.AverageResilienceScore >= threshold
	mark := emoji.Sprint(":white_check_mark:")
	if !passed {
		mark = emoji.Sprint(":x:")
	}
	log.InfoWithValues("[Summary]: Resilience verdict "+mark, logrus.Fields{
		"AverageResilienceScore": report.AverageResilienceScore,
		"PassThreshold":          threshold,
		"RecoverySuccessRate":    report.RecoverySuccessRate,
		"Passed":                 passed,
	})
	if !passed {
		return errBelowThreshold
	}
	return nil
}
