package types

import (
	"encoding/json"
	"time"

	"github.com/resiliencelab/chaos-go/pkg/cerrors"
)

// FaultType names one of the supported fault kinds
type FaultType string

const (
	ServiceFailureType     FaultType = "service_failure"
	DatabaseFailureType    FaultType = "database_failure"
	ResourceExhaustionType FaultType = "resource_exhaustion"
	DependencyFailureType  FaultType = "dependency_failure"
	NetworkPartitionType   FaultType = "network_partition"
	CascadingFailureType   FaultType = "cascading_failure"
)

// Fault is the closed set of faults the injector understands.
// Only the variants declared in this file implement it.
type Fault interface {
	Kind() FaultType
	isFault()
}

// ServiceFailure forcibly kills the target's container, no graceful shutdown
type ServiceFailure struct{}

// DatabaseFailure stops the named backing datastore
type DatabaseFailure struct {
	Datastore string `json:"datastore"`
}

// ResourceExhaustion runs a CPU and memory stress workload inside the target
// for the experiment duration
type ResourceExhaustion struct {
	CPUWorkers int `json:"cpu_workers"`
	MemoryMB   int `json:"memory_mb"`
}

// DependencyFailure makes the target's outbound calls to Dependency fail at
// FailureRate with an added latency
type DependencyFailure struct {
	Dependency  string  `json:"dependency"`
	FailureRate float64 `json:"failure_rate"`
	LatencyMS   int     `json:"latency_ms"`
}

// PortRange is an inclusive tcp port range
type PortRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// NetworkPartition blocks the target's egress to Ports
type NetworkPartition struct {
	Ports PortRange `json:"ports"`
}

// CascadingFailure kills the target then, after SettleWindow, optionally
// stresses the Secondary service
type CascadingFailure struct {
	Secondary       string        `json:"secondary"`
	SettleWindow    time.Duration `json:"-"`
	SecondaryStress bool          `json:"secondary_stress"`
}

func (ServiceFailure) Kind() FaultType     { return ServiceFailureType }
func (DatabaseFailure) Kind() FaultType    { return DatabaseFailureType }
func (ResourceExhaustion) Kind() FaultType { return ResourceExhaustionType }
func (DependencyFailure) Kind() FaultType  { return DependencyFailureType }
func (NetworkPartition) Kind() FaultType   { return NetworkPartitionType }
func (CascadingFailure) Kind() FaultType   { return CascadingFailureType }

func (ServiceFailure) isFault()     {}
func (DatabaseFailure) isFault()    {}
func (ResourceExhaustion) isFault() {}
func (DependencyFailure) isFault()  {}
func (NetworkPartition) isFault()   {}
func (CascadingFailure) isFault()   {}

// MarshalJSON reports the settle window in seconds
func (c CascadingFailure) MarshalJSON() ([]byte, error) {
	type alias CascadingFailure
	return json.Marshal(struct {
		alias
		SettleWindow float64 `json:"settle_window"`
	}{alias: alias(c), SettleWindow: c.SettleWindow.Seconds()})
}

// FaultParams is the flat, configuration-side view of every fault parameter.
// BuildFault picks the fields relevant to one kind.
type FaultParams struct {
	Datastore       string        `yaml:"datastore"`
	CPUWorkers      int           `yaml:"cpuWorkers"`
	MemoryMB        int           `yaml:"memoryMB"`
	Dependency      string        `yaml:"dependency"`
	FailureRate     float64       `yaml:"failureRate"`
	LatencyMS       int           `yaml:"latencyMS"`
	PortFrom        int           `yaml:"portFrom"`
	PortTo          int           `yaml:"portTo"`
	Secondary       string        `yaml:"secondary"`
	SettleWindow    time.Duration `yaml:"settleWindow"`
	SecondaryStress bool          `yaml:"secondaryStress"`
}

const (
	defaultCPUWorkers   = 2
	defaultMemoryMB     = 256
	defaultSettleWindow = 10 * time.Second
)

// BuildFault maps a fault kind and its parameters onto the matching variant
func BuildFault(kind FaultType, p FaultParams) (Fault, error) {
	switch kind {
	case ServiceFailureType:
		return ServiceFailure{}, nil
	case DatabaseFailureType:
		if p.Datastore == "" {
			return nil, cerrors.Generic{Phase: "Config", Reason: "database_failure requires a datastore"}
		}
		return DatabaseFailure{Datastore: p.Datastore}, nil
	case ResourceExhaustionType:
		return ResourceExhaustion{
			CPUWorkers: orDefault(p.CPUWorkers, defaultCPUWorkers),
			MemoryMB:   orDefault(p.MemoryMB, defaultMemoryMB),
		}, nil
	case DependencyFailureType:
		if p.Dependency == "" {
			return nil, cerrors.Generic{Phase: "Config", Reason: "dependency_failure requires a dependency"}
		}
		rate := p.FailureRate
		if rate <= 0 || rate > 1 {
			rate = 1
		}
		return DependencyFailure{Dependency: p.Dependency, FailureRate: rate, LatencyMS: p.LatencyMS}, nil
	case NetworkPartitionType:
		ports := PortRange{From: orDefault(p.PortFrom, 1), To: orDefault(p.PortTo, 65535)}
		if ports.From > ports.To || ports.To > 65535 {
			return nil, cerrors.Generic{Phase: "Config", Reason: "network_partition port range is invalid"}
		}
		return NetworkPartition{Ports: ports}, nil
	case CascadingFailureType:
		settle := p.SettleWindow
		if settle <= 0 {
			settle = defaultSettleWindow
		}
		return CascadingFailure{Secondary: p.Secondary, SettleWindow: settle, SecondaryStress: p.SecondaryStress && p.Secondary != ""}, nil
	default:
		return nil, cerrors.Generic{Phase: "Config", Reason: "unsupported fault type '" + string(kind) + "'"}
	}
}

// DefaultStress is the workload used when a cascade spreads to its secondary service
func DefaultStress() ResourceExhaustion {
	return ResourceExhaustion{CPUWorkers: defaultCPUWorkers, MemoryMB: defaultMemoryMB}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
