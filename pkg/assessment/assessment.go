package assessment

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/resiliencelab/chaos-go/pkg/types"
)

// DefaultSlowRecovery is the recovery time above which restarts are considered slow
const DefaultSlowRecovery = 60 * time.Second

// PositiveLesson is emitted when no other lesson applies
const PositiveLesson = "System demonstrated good resilience to this failure scenario"

// Assessor holds the policy used to judge impact
type Assessor struct {
	isCritical   func(name string) bool
	slowRecovery time.Duration
}

// New returns an assessor, isCritical tells whether a service outage is user facing
func New(isCritical func(name string) bool, slowRecovery time.Duration) *Assessor {
	if isCritical == nil {
		isCritical = func(string) bool { return false }
	}
	if slowRecovery <= 0 {
		slowRecovery = DefaultSlowRecovery
	}
	return &Assessor{isCritical: isCritical, slowRecovery: slowRecovery}
}

// Impact compares the post-recovery snapshot with the baseline.
// Every unhealthy service is affected; a critical one makes the impact high,
// more than two affected services make it medium.
func (a *Assessor) Impact(def types.ExperimentDefinition, baseline, current types.MetricsSnapshot, recovered bool) types.ImpactAssessment {
	affected := []string{}
	for name, healthy := range current.ServiceHealth {
		if !healthy {
			affected = append(affected, name)
		}
	}
	sort.Strings(affected)

	level := types.ImpactLow
	switch {
	case a.anyCritical(affected):
		level = types.ImpactHigh
	case len(affected) > 2:
		level = types.ImpactMedium
	}

	return types.ImpactAssessment{
		ServicesAffected:       affected,
		UserImpactLevel:        level,
		DataIntegrityPreserved: DataIntegrityPreserved(def, recovered),
		PerformanceDegradation: Degradation(baseline, current),
	}
}

func (a *Assessor) anyCritical(names []string) bool {
	for _, name := range names {
		if a.isCritical(name) {
			return true
		}
	}
	return false
}

// Degradation is the relative growth of the average response time, zero when it did not grow
func Degradation(baseline, current types.MetricsSnapshot) float64 {
	if baseline.AvgResponseTime <= 0 {
		return 0
	}
	ratio := (current.AvgResponseTime - baseline.AvgResponseTime) / baseline.AvgResponseTime
	if ratio < 0 {
		return 0
	}
	return ratio
}

// DataIntegrityPreserved is false only when a stopped datastore never came back
func DataIntegrityPreserved(def types.ExperimentDefinition, recovered bool) bool {
	if _, ok := def.Fault.(types.DatabaseFailure); ok {
		return recovered
	}
	return true
}

// Lessons evaluates the lesson rules in a fixed order
func (a *Assessor) Lessons(r types.ExperimentResult) []string {
	lessons := []string{}

	recoveryTime, confirmed := r.RecoveryDuration()
	if !r.RecoverySuccessful || !confirmed {
		lessons = append(lessons, "Improve recovery mechanisms: the system did not recover within the time limit")
	} else if recoveryTime > a.slowRecovery {
		lessons = append(lessons, fmt.Sprintf("Optimize restart procedures: recovery took %.1fs", recoveryTime.Seconds()))
	}

	if n := len(r.AnomaliesDetected); n > 5 {
		lessons = append(lessons, fmt.Sprintf("Improve monitoring and alerting: %d anomalies detected", n))
	}

	if r.ImpactAssessment.UserImpactLevel == types.ImpactHigh {
		lessons = append(lessons, "Implement graceful degradation: user impact was high")
	}

	var critical []string
	for _, name := range r.ImpactAssessment.ServicesAffected {
		if a.isCritical(name) {
			critical = append(critical, name)
		}
	}
	if len(critical) > 0 {
		lessons = append(lessons, "Improve redundancy and failover for critical services: "+strings.Join(critical, ", "))
	}

	if len(lessons) == 0 {
		lessons = append(lessons, PositiveLesson)
	}
	return lessons
}
