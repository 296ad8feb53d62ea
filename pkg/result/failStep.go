package result

// Failure steps recorded in a degraded experiment result
const (
	InjectionFailed      = "[chaos]: failed to inject the fault"
	RecoveryFailed       = "[recovery]: failed to issue the remediation"
	HarnessPanicked      = "[chaos]: experiment harness panicked"
	ExperimentInvalid    = "[pre-chaos]: invalid experiment definition"
	PreChaosSnapshot     = "[pre-chaos]: failed to take the pre-chaos snapshot"
	ResultPersistFailed  = "[post-chaos]: failed to persist the experiment result"
	EmergencyRecoveryRun = "[recovery]: emergency recovery triggered"
)
