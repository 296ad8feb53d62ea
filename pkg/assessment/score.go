// Package assessment turns a finished experiment into an impact assessment,
// a resilience score and a list of lessons learned.
package assessment

import (
	"github.com/resiliencelab/chaos-go/pkg/math"
	"github.com/resiliencelab/chaos-go/pkg/types"
)

const (
	// MaxScore is the score of an experiment without any deduction
	MaxScore = 10.0
	// MinScore is the floor every score is clamped to
	MinScore = 0.0

	recoveryFailedPenalty = -4.0
	recoverySlowPenalty   = -2.0
	anomalyPenalty        = -0.5
	anomalyPenaltyCap     = -3.0
	highImpactPenalty     = -2.0
	mediumImpactPenalty   = -1.0
	degradationPenalty    = -1.0
	// degradationLimit is a response time more than doubled
	degradationLimit = 1.0
)

// Breakdown holds each deduction of a score, all zero or negative
type Breakdown struct {
	Recovery    float64 `json:"recovery"`
	Anomalies   float64 `json:"anomalies"`
	Impact      float64 `json:"impact"`
	Performance float64 `json:"performance"`
}

// Total is the sum of every deduction
func (b Breakdown) Total() float64 {
	return b.Recovery + b.Anomalies + b.Impact + b.Performance
}

// Deductions computes each independent deduction of the result
func Deductions(r types.ExperimentResult) Breakdown {
	var b Breakdown

	switch d, ok := r.RecoveryDuration(); {
	case !r.RecoverySuccessful || !ok:
		b.Recovery = recoveryFailedPenalty
	case d > r.Experiment.RecoveryTimeLimit:
		b.Recovery = recoverySlowPenalty
	}

	b.Anomalies = math.Maximum(anomalyPenalty*float64(len(r.AnomaliesDetected)), anomalyPenaltyCap)

	switch r.ImpactAssessment.UserImpactLevel {
	case types.ImpactHigh:
		b.Impact = highImpactPenalty
	case types.ImpactMedium:
		b.Impact = mediumImpactPenalty
	}

	if r.ImpactAssessment.PerformanceDegradation > degradationLimit {
		b.Performance = degradationPenalty
	}
	return b
}

// Score is 10 minus every deduction, clamped to [0, 10]
func Score(r types.ExperimentResult) float64 {
	return math.Clamp(MaxScore+Deductions(r).Total(), MinScore, MaxScore)
}
