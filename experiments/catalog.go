// Package experiments holds the built-in experiment catalogue run when the
// configuration does not list its own experiments.
package experiments

import (
	"time"

	"github.com/resiliencelab/chaos-go/pkg/types"
)

// DefaultSuite returns the built-in experiments in the order they run
func DefaultSuite() []types.ExperimentDefinition {
	return []types.ExperimentDefinition{
		{
			Name:                  "auth-service-failure",
			Fault:                 types.ServiceFailure{},
			Target:                "auth-service",
			Duration:              30 * time.Second,
			ImpactRadius:          []string{"auth-service", "api-gateway"},
			RecoveryTimeLimit:     60 * time.Second,
			SteadyStateHypothesis: "Authenticated requests keep succeeding once auth-service is back",
			ExpectedBehavior:      "api-gateway rejects logins while auth-service is down and recovers without manual action",
			RollbackStrategy:      "Restart the auth-service container",
		},
		{
			Name:                  "database-failure",
			Fault:                 types.DatabaseFailure{Datastore: "postgres"},
			Target:                "orchestrator-service",
			Duration:              60 * time.Second,
			ImpactRadius:          []string{types.AllServices},
			RecoveryTimeLimit:     120 * time.Second,
			SteadyStateHypothesis: "No committed workflow is lost while postgres is unavailable",
			ExpectedBehavior:      "Services report degraded health and reconnect once postgres is back",
			RollbackStrategy:      "Restart the postgres datastore",
		},
		{
			Name:                  "gateway-resource-exhaustion",
			Fault:                 types.ResourceExhaustion{CPUWorkers: 2, MemoryMB: 256},
			Target:                "api-gateway",
			Duration:              60 * time.Second,
			ImpactRadius:          []string{"api-gateway"},
			RecoveryTimeLimit:     60 * time.Second,
			SteadyStateHypothesis: "api-gateway keeps answering health checks under CPU and memory pressure",
			ExpectedBehavior:      "Response times rise but requests are still served",
			RollbackStrategy:      "Kill the stress workload and restart api-gateway",
		},
		{
			Name:                  "airtable-dependency-failure",
			Fault:                 types.DependencyFailure{Dependency: "airtable", FailureRate: 1, LatencyMS: 5000},
			Target:                "airtable-gateway",
			Duration:              45 * time.Second,
			ImpactRadius:          []string{"airtable-gateway", "orchestrator-service"},
			RecoveryTimeLimit:     60 * time.Second,
			SteadyStateHypothesis: "Callers of airtable-gateway degrade gracefully when Airtable is unreachable",
			ExpectedBehavior:      "Requests to Airtable fail fast and the gateway stays up",
			RollbackStrategy:      "Clear the injected dependency fault",
		},
		{
			Name:                  "orchestrator-network-partition",
			Fault:                 types.NetworkPartition{Ports: types.PortRange{From: 8000, To: 8010}},
			Target:                "orchestrator-service",
			Duration:              30 * time.Second,
			ImpactRadius:          []string{"orchestrator-service"},
			RecoveryTimeLimit:     60 * time.Second,
			SteadyStateHypothesis: "The orchestrator resumes its calls once the partition heals",
			ExpectedBehavior:      "Calls from the orchestrator to peer services time out during the partition",
			RollbackStrategy:      "Remove the iptables rule",
		},
		{
			Name: "auth-cascading-failure",
			Fault: types.CascadingFailure{
				Secondary:       "api-gateway",
				SettleWindow:    10 * time.Second,
				SecondaryStress: true,
			},
			Target:                "auth-service",
			Duration:              60 * time.Second,
			ImpactRadius:          []string{types.AllServices},
			RecoveryTimeLimit:     180 * time.Second,
			SteadyStateHypothesis: "A failing auth-service does not take the whole platform down",
			ExpectedBehavior:      "api-gateway absorbs the extra load and every service recovers in dependency order",
			RollbackStrategy:      "Restart the dependency chain in order",
		},
	}
}

// Find returns the catalogued experiment called name
func Find(defs []types.ExperimentDefinition, name string) (types.ExperimentDefinition, bool) {
	for _, def := range defs {
		if def.Name == name {
			return def, true
		}
	}
	return types.ExperimentDefinition{}, false
}
