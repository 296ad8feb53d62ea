// Package environment loads the chaos-runner configuration: a YAML file
// followed by environment variable overrides.
package environment

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/resiliencelab/chaos-go/experiments"
	"github.com/resiliencelab/chaos-go/pkg/cerrors"
	"github.com/resiliencelab/chaos-go/pkg/stress"
	"github.com/resiliencelab/chaos-go/pkg/types"
	"gopkg.in/yaml.v2"
)

const (
	RuntimeDocker     = "docker"
	RuntimeKubernetes = "kubernetes"

	FlagsRedis = "redis"
	FlagsFile  = "file"

	// DefaultPassThreshold is the mean resilience score a suite needs to pass
	DefaultPassThreshold = 7.0
)

// Config is the complete runner configuration
type Config struct {
	Runtime          RuntimeConfig      `yaml:"runtime"`
	Services         []ServiceConfig    `yaml:"services"`
	Datastores       []DatastoreConfig  `yaml:"datastores"`
	CriticalServices []string           `yaml:"criticalServices"`
	DependencyChain  []string           `yaml:"dependencyChain"`
	Timing           Timing             `yaml:"timing"`
	Flags            FlagConfig         `yaml:"faultFlags"`
	Stress           StressConfig       `yaml:"stress"`
	Report           ReportConfig       `yaml:"report"`
	Telemetry        TelemetryConfig    `yaml:"telemetry"`
	Status           StatusConfig       `yaml:"status"`
	PassThreshold    float64            `yaml:"passThreshold"`
	LogLevel         string             `yaml:"logLevel"`
	Experiments      []ExperimentConfig `yaml:"experiments"`
}

type RuntimeConfig struct {
	Backend      string `yaml:"backend"`
	DockerBinary string `yaml:"dockerBinary"`
	DockerSocket string `yaml:"dockerSocket"`
	KubeConfig   string `yaml:"kubeconfig"`
	Namespace    string `yaml:"namespace"`
}

type ServiceConfig struct {
	Name       string `yaml:"name"`
	BaseURL    string `yaml:"baseURL"`
	RuntimeRef string `yaml:"runtimeRef"`
}

type DatastoreConfig struct {
	Name       string `yaml:"name"`
	RuntimeRef string `yaml:"runtimeRef"`
}

// Timing holds every wait of the suite, tests scale them down
type Timing struct {
	BaselineSettle   time.Duration `yaml:"baselineSettle"`
	Stabilization    time.Duration `yaml:"stabilization"`
	SamplingInterval time.Duration `yaml:"samplingInterval"`
	PollInterval     time.Duration `yaml:"pollInterval"`
	ProbeTimeout     time.Duration `yaml:"probeTimeout"`
	SlowRecovery     time.Duration `yaml:"slowRecovery"`
	RetryWait        time.Duration `yaml:"retryWait"`
}

type FlagConfig struct {
	Backend       string `yaml:"backend"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	Prefix        string `yaml:"prefix"`
	Dir           string `yaml:"dir"`
}

type StressConfig struct {
	Mode       stress.Mode `yaml:"mode"`
	HelperPath string      `yaml:"helperPath"`
}

type ReportConfig struct {
	Dir      string `yaml:"dir"`
	S3Bucket string `yaml:"s3Bucket"`
	S3Region string `yaml:"s3Region"`
	S3Prefix string `yaml:"s3Prefix"`
}

type TelemetryConfig struct {
	// Endpoint of the OTLP collector, tracing is disabled when empty
	Endpoint string `yaml:"endpoint"`
}

type StatusConfig struct {
	// Listen address of the status server, disabled when empty
	Listen string `yaml:"listen"`
}

// ExperimentConfig is one experiment as written in the file, durations are
// Go duration strings such as "30s"
type ExperimentConfig struct {
	Name                  string            `yaml:"name"`
	FaultType             types.FaultType   `yaml:"faultType"`
	Target                string            `yaml:"target"`
	Duration              time.Duration     `yaml:"duration"`
	ImpactRadius          []string          `yaml:"impactRadius"`
	RecoveryTimeLimit     time.Duration     `yaml:"recoveryTimeLimit"`
	SteadyStateHypothesis string            `yaml:"steadyStateHypothesis"`
	ExpectedBehavior      string            `yaml:"expectedBehavior"`
	RollbackStrategy      string            `yaml:"rollbackStrategy"`
	Params                types.FaultParams `yaml:",inline"`
}

// Default returns the configuration of the reference deployment
func Default() *Config {
	return &Config{
		Runtime: RuntimeConfig{Backend: RuntimeDocker, DockerBinary: "docker", Namespace: "default"},
		Services: []ServiceConfig{
			{Name: "api-gateway", BaseURL: "http://localhost:8000", RuntimeRef: "api-gateway"},
			{Name: "auth-service", BaseURL: "http://localhost:8001", RuntimeRef: "auth-service"},
			{Name: "orchestrator-service", BaseURL: "http://localhost:8002", RuntimeRef: "orchestrator-service"},
			{Name: "airtable-gateway", BaseURL: "http://localhost:8003", RuntimeRef: "airtable-gateway"},
		},
		Datastores: []DatastoreConfig{
			{Name: "postgres", RuntimeRef: "postgres"},
			{Name: "redis", RuntimeRef: "redis"},
		},
		CriticalServices: []string{"api-gateway", "auth-service"},
		DependencyChain:  []string{"postgres", "redis", "auth-service", "api-gateway"},
		Timing: Timing{
			BaselineSettle:   10 * time.Second,
			Stabilization:    60 * time.Second,
			SamplingInterval: 10 * time.Second,
			PollInterval:     5 * time.Second,
			ProbeTimeout:     5 * time.Second,
			SlowRecovery:     60 * time.Second,
			RetryWait:        2 * time.Second,
		},
		Flags:         FlagConfig{Backend: FlagsFile, RedisAddr: "localhost:6379", Prefix: "chaos:fault:"},
		Stress:        StressConfig{Mode: stress.ModeStressNG},
		Report:        ReportConfig{Dir: "."},
		PassThreshold: DefaultPassThreshold,
		LogLevel:      "info",
	}
}

// Load reads path over the defaults, applies the environment overrides and
// validates the result. An empty path only uses defaults and environment.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to read the config file '%v'", path)
		}
		if err := yaml.UnmarshalStrict(raw, c); err != nil {
			return nil, errors.Wrapf(err, "unable to parse the config file '%v'", path)
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	c.Runtime.Backend = Getenv("CHAOS_RUNTIME", c.Runtime.Backend)
	c.Runtime.KubeConfig = Getenv("KUBECONFIG", c.Runtime.KubeConfig)
	c.Runtime.Namespace = Getenv("CHAOS_NAMESPACE", c.Runtime.Namespace)
	c.Runtime.DockerSocket = Getenv("DOCKER_SOCKET", c.Runtime.DockerSocket)
	c.Flags.Backend = Getenv("FAULT_FLAG_BACKEND", c.Flags.Backend)
	c.Flags.RedisAddr = Getenv("REDIS_ADDR", c.Flags.RedisAddr)
	c.Flags.RedisPassword = Getenv("REDIS_PASSWORD", c.Flags.RedisPassword)
	c.Stress.Mode = stress.Mode(Getenv("STRESS_MODE", string(c.Stress.Mode)))
	c.Stress.HelperPath = Getenv("STRESS_HELPER_PATH", c.Stress.HelperPath)
	c.Report.Dir = Getenv("REPORT_DIR", c.Report.Dir)
	c.Report.S3Bucket = Getenv("REPORT_S3_BUCKET", c.Report.S3Bucket)
	c.Report.S3Region = Getenv("AWS_REGION", c.Report.S3Region)
	c.Telemetry.Endpoint = Getenv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.Endpoint)
	c.Status.Listen = Getenv("STATUS_LISTEN", c.Status.Listen)
	c.LogLevel = Getenv("LOG_LEVEL", c.LogLevel)

	if v := os.Getenv("PASS_THRESHOLD"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cerrors.Generic{Phase: "Config", Reason: "PASS_THRESHOLD is not a number: " + v}
		}
		c.PassThreshold = threshold
	}
	return nil
}

// Validate checks the configuration can drive a suite
func (c *Config) Validate() error {
	switch c.Runtime.Backend {
	case RuntimeDocker, RuntimeKubernetes:
	default:
		return invalid("unsupported runtime backend '%v'", c.Runtime.Backend)
	}
	switch c.Flags.Backend {
	case FlagsRedis, FlagsFile:
	default:
		return invalid("unsupported fault flag backend '%v'", c.Flags.Backend)
	}
	switch c.Stress.Mode {
	case stress.ModeStressNG:
	case stress.ModeHelper:
		if c.Stress.HelperPath == "" {
			return invalid("stress mode '%v' requires a helper path", c.Stress.Mode)
		}
	default:
		return invalid("unsupported stress mode '%v'", c.Stress.Mode)
	}
	if c.PassThreshold < 0 || c.PassThreshold > 10 {
		return invalid("pass threshold %v is outside [0, 10]", c.PassThreshold)
	}

	known := map[string]bool{}
	for _, s := range c.Services {
		if s.Name == "" || s.BaseURL == "" {
			return invalid("every service needs a name and a baseURL")
		}
		if known[s.Name] {
			return invalid("target '%v' is declared twice", s.Name)
		}
		known[s.Name] = true
	}
	for _, d := range c.Datastores {
		if d.Name == "" {
			return invalid("every datastore needs a name")
		}
		if known[d.Name] {
			return invalid("target '%v' is declared twice", d.Name)
		}
		known[d.Name] = true
	}
	for _, name := range c.DependencyChain {
		if !known[name] {
			return invalid("dependency chain names unknown target '%v'", name)
		}
	}
	return nil
}

// ServiceTargets returns the configured services, handles are resolved later
func (c *Config) ServiceTargets() []types.ServiceTarget {
	out := make([]types.ServiceTarget, 0, len(c.Services))
	for _, s := range c.Services {
		out = append(out, types.ServiceTarget{Name: s.Name, BaseURL: s.BaseURL, RuntimeRef: s.RuntimeRef})
	}
	return out
}

// DatastoreTargets returns the configured datastores
func (c *Config) DatastoreTargets() []types.DatastoreTarget {
	out := make([]types.DatastoreTarget, 0, len(c.Datastores))
	for _, d := range c.Datastores {
		out = append(out, types.DatastoreTarget{Name: d.Name, RuntimeRef: d.RuntimeRef})
	}
	return out
}

// Definitions builds the experiments to run, the built-in catalogue when none are configured
func (c *Config) Definitions() ([]types.ExperimentDefinition, error) {
	if len(c.Experiments) == 0 {
		return experiments.DefaultSuite(), nil
	}
	defs := make([]types.ExperimentDefinition, 0, len(c.Experiments))
	for _, e := range c.Experiments {
		fault, err := types.BuildFault(e.FaultType, e.Params)
		if err != nil {
			return nil, errors.Wrapf(err, "experiment '%v'", e.Name)
		}
		def := types.ExperimentDefinition{
			Name:                  e.Name,
			Fault:                 fault,
			Target:                e.Target,
			Duration:              e.Duration,
			ImpactRadius:          e.ImpactRadius,
			RecoveryTimeLimit:     e.RecoveryTimeLimit,
			SteadyStateHypothesis: e.SteadyStateHypothesis,
			ExpectedBehavior:      e.ExpectedBehavior,
			RollbackStrategy:      e.RollbackStrategy,
		}
		if len(def.ImpactRadius) == 0 {
			def.ImpactRadius = []string{def.Target}
		}
		if err := def.Validate(); err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Getenv fetch the env and set the default value, if any
func Getenv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	return value
}

func invalid(format string, args ...interface{}) error {
	return cerrors.Generic{Phase: "Config", Reason: fmt.Sprintf(format, args...)}
}
