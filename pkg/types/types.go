package types

import (
	"strings"
	"time"

	"github.com/resiliencelab/chaos-go/pkg/cerrors"
)

// AllServices is the impact-radius sentinel that expands to every registered service
const AllServices = "all"

// Phase is a state of the experiment runner
type Phase string

const (
	// PhaseIdle runner created, nothing executed yet
	PhaseIdle Phase = "Idle"
	// PhaseBaselineEstablished the suite-wide baseline is available to the runner
	PhaseBaselineEstablished Phase = "BaselineEstablished"
	// PhaseInjecting pre-chaos snapshot taken, fault being injected
	PhaseInjecting Phase = "Injecting"
	// PhaseMonitoring the fault is live and the monitoring loop samples the system
	PhaseMonitoring Phase = "Monitoring"
	// PhaseRecoveryInitiated remediation issued, waiting for the impact radius to turn healthy
	PhaseRecoveryInitiated Phase = "RecoveryInitiated"
	// PhaseRecovered every service of the impact radius reported healthy in one tick
	PhaseRecovered Phase = "Recovered"
	// PhaseRecoveryTimedOut the recovery time limit elapsed without a fully healthy tick
	PhaseRecoveryTimedOut Phase = "RecoveryTimedOut"
	// PhaseAssessed impact, score and lessons computed
	PhaseAssessed Phase = "Assessed"
	// PhaseDone result persisted
	PhaseDone Phase = "Done"
)

// ImpactLevel is the qualitative user impact of an experiment
type ImpactLevel string

const (
	ImpactLow    ImpactLevel = "low"
	ImpactMedium ImpactLevel = "medium"
	ImpactHigh   ImpactLevel = "high"
)

// ServiceTarget identifies one controllable application service
type ServiceTarget struct {
	Name       string `json:"name"`
	BaseURL    string `json:"base_url"`
	RuntimeRef string `json:"runtime_ref"`
	Handle     string `json:"handle,omitempty"`
}

// HealthEndpoint returns the liveness URL of the service
func (s ServiceTarget) HealthEndpoint() string {
	return strings.TrimRight(s.BaseURL, "/") + "/health"
}

// DatastoreTarget identifies a backing datastore, controlled separately from the application containers
type DatastoreTarget struct {
	Name       string `json:"name"`
	RuntimeRef string `json:"runtime_ref"`
	Handle     string `json:"handle,omitempty"`
}

// MetricsSnapshot is a point-in-time measurement of the system under test
type MetricsSnapshot struct {
	Timestamp       time.Time       `json:"timestamp"`
	CPUPercent      float64         `json:"cpu_percent"`
	MemoryPercent   float64         `json:"memory_percent"`
	DiskPercent     float64         `json:"disk_percent"`
	NetworkLatency  float64         `json:"network_latency"`
	ServicesHealthy int             `json:"services_healthy"`
	ErrorRate       float64         `json:"error_rate"`
	AvgResponseTime float64         `json:"avg_response_time"`
	ServiceHealth   map[string]bool `json:"service_health"`
}

// ImpactAssessment records what the experiment actually did to the system
type ImpactAssessment struct {
	ServicesAffected       []string    `json:"services_affected"`
	UserImpactLevel        ImpactLevel `json:"user_impact_level"`
	DataIntegrityPreserved bool        `json:"data_integrity_preserved"`
	PerformanceDegradation float64     `json:"performance_degradation"`
}

// ExperimentResult is the outcome of one experiment run
type ExperimentResult struct {
	Experiment            ExperimentDefinition `json:"experiment"`
	StartTime             time.Time            `json:"start_time"`
	EndTime               time.Time            `json:"end_time"`
	SteadyStateMaintained bool                 `json:"steady_state_maintained"`
	RecoveryTime          *float64             `json:"recovery_time"`
	ImpactAssessment      ImpactAssessment     `json:"impact_assessment"`
	SystemBehavior        []MetricsSnapshot    `json:"system_behavior"`
	AnomaliesDetected     []string             `json:"anomalies_detected"`
	RecoverySuccessful    bool                 `json:"recovery_successful"`
	ResilienceScore       float64              `json:"resilience_score"`
	LessonsLearned        []string             `json:"lessons_learned"`
	// Phase is the last phase reached before assessment, Recovered or RecoveryTimedOut unless the harness broke
	Phase     Phase             `json:"phase"`
	Error     string            `json:"error,omitempty"`
	ErrorType cerrors.ErrorType `json:"error_type,omitempty"`
}

// NewExperimentResult initialise the result of an experiment about to start
func NewExperimentResult(def ExperimentDefinition, start time.Time) *ExperimentResult {
	return &ExperimentResult{
		Experiment:        def,
		StartTime:         start,
		SystemBehavior:    []MetricsSnapshot{},
		AnomaliesDetected: []string{},
		LessonsLearned:    []string{},
		ImpactAssessment: ImpactAssessment{
			ServicesAffected:       []string{},
			UserImpactLevel:        ImpactLow,
			DataIntegrityPreserved: true,
		},
		Phase: PhaseIdle,
	}
}

// SetRecoveryTime stores the confirmed recovery duration in seconds
func (r *ExperimentResult) SetRecoveryTime(d time.Duration) {
	seconds := d.Seconds()
	r.RecoveryTime = &seconds
}

// RecoveryDuration returns the confirmed recovery duration, false if recovery never confirmed
func (r *ExperimentResult) RecoveryDuration() (time.Duration, bool) {
	if r.RecoveryTime == nil {
		return 0, false
	}
	return time.Duration(*r.RecoveryTime * float64(time.Second)), true
}

// Degraded reports whether the harness itself failed while running the experiment
func (r *ExperimentResult) Degraded() bool {
	return r.Error != ""
}

// SuiteReport is the persisted outcome of one suite run
type SuiteReport struct {
	RunID                  string             `json:"run_id"`
	Timestamp              time.Time          `json:"timestamp"`
	TotalExperiments       int                `json:"total_experiments"`
	AverageResilienceScore float64            `json:"average_resilience_score"`
	RecoverySuccessRate    float64            `json:"recovery_success_rate"`
	Results                []ExperimentResult `json:"results"`
}
