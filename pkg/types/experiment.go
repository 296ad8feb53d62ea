package types

import (
	"encoding/json"
	"time"

	"github.com/resiliencelab/chaos-go/pkg/cerrors"
)

// ExperimentDefinition is a static fault-injection plan, never mutated while it runs
type ExperimentDefinition struct {
	Name                  string
	Fault                 Fault
	Target                string
	Duration              time.Duration
	ImpactRadius          []string
	RecoveryTimeLimit     time.Duration
	SteadyStateHypothesis string
	ExpectedBehavior      string
	RollbackStrategy      string
}

// FaultType returns the kind of the planned fault
func (d ExperimentDefinition) FaultType() FaultType {
	if d.Fault == nil {
		return ""
	}
	return d.Fault.Kind()
}

// Validate checks the definition is runnable
func (d ExperimentDefinition) Validate() error {
	switch {
	case d.Name == "":
		return cerrors.Generic{Phase: "Config", Reason: "experiment name is required"}
	case d.Fault == nil:
		return cerrors.Generic{Phase: "Config", Reason: "experiment '" + d.Name + "' has no fault"}
	case d.Target == "":
		return cerrors.Generic{Phase: "Config", Reason: "experiment '" + d.Name + "' has no target service"}
	case d.Duration < 0 || d.RecoveryTimeLimit <= 0:
		return cerrors.Generic{Phase: "Config", Reason: "experiment '" + d.Name + "' needs a positive recovery time limit and a non-negative duration"}
	case len(d.ImpactRadius) == 0:
		return cerrors.Generic{Phase: "Config", Reason: "experiment '" + d.Name + "' has an empty impact radius"}
	}
	return nil
}

type definitionJSON struct {
	Name                  string    `json:"name"`
	FaultType             FaultType `json:"fault_type"`
	Fault                 Fault     `json:"fault"`
	TargetService         string    `json:"target_service"`
	Duration              float64   `json:"duration"`
	ImpactRadius          []string  `json:"impact_radius"`
	RecoveryTimeLimit     float64   `json:"recovery_time_limit"`
	SteadyStateHypothesis string    `json:"steady_state_hypothesis"`
	ExpectedBehavior      string    `json:"expected_behavior"`
	RollbackStrategy      string    `json:"rollback_strategy"`
}

// MarshalJSON writes durations in seconds and the fault as fault_type plus its parameters
func (d ExperimentDefinition) MarshalJSON() ([]byte, error) {
	return json.Marshal(definitionJSON{
		Name:                  d.Name,
		FaultType:             d.FaultType(),
		Fault:                 d.Fault,
		TargetService:         d.Target,
		Duration:              d.Duration.Seconds(),
		ImpactRadius:          d.ImpactRadius,
		RecoveryTimeLimit:     d.RecoveryTimeLimit.Seconds(),
		SteadyStateHypothesis: d.SteadyStateHypothesis,
		ExpectedBehavior:      d.ExpectedBehavior,
		RollbackStrategy:      d.RollbackStrategy,
	})
}
