package result

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/resiliencelab/chaos-go/pkg/types"
)

// RenderMarkdown narrates a suite report for humans
func RenderMarkdown(report types.SuiteReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Chaos Engineering Report\n\n")
	fmt.Fprintf(&b, "- Run: `%s`\n", report.RunID)
	fmt.Fprintf(&b, "- Generated: %s\n", report.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- Experiments: %s\n", humanize.Comma(int64(report.TotalExperiments)))
	fmt.Fprintf(&b, "- Average resilience score: %.1f/10\n", report.AverageResilienceScore)
	fmt.Fprintf(&b, "- Recovery success rate: %.0f%%\n\n", report.RecoverySuccessRate*100)

	b.WriteString("| # | Experiment | Fault | Recovered | Recovery time | Anomalies | Impact | Score |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|\n")
	for i, r := range report.Results {
		recovery := "-"
		if d, ok := r.RecoveryDuration(); ok {
			recovery = fmt.Sprintf("%.1fs", d.Seconds())
		}
		recovered := "no"
		if r.RecoverySuccessful {
			recovered = "yes"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %d | %s | %.1f |\n",
			humanize.Ordinal(i+1), r.Experiment.Name, r.Experiment.FaultType(), recovered, recovery,
			len(r.AnomaliesDetected), r.ImpactAssessment.UserImpactLevel, r.ResilienceScore)
	}

	for _, r := range report.Results {
		fmt.Fprintf(&b, "\n## %s\n\n", r.Experiment.Name)
		fmt.Fprintf(&b, "Ran for %s, %d snapshots taken.\n", humanize.RelTime(r.StartTime, r.EndTime, "", ""), len(r.SystemBehavior))
		if r.Degraded() {
			fmt.Fprintf(&b, "\n**Harness failure:** %s\n", r.Error)
		}
		if len(r.ImpactAssessment.ServicesAffected) > 0 {
			fmt.Fprintf(&b, "\nAffected services: %s\n", strings.Join(r.ImpactAssessment.ServicesAffected, ", "))
		}
		if len(r.AnomaliesDetected) > 0 {
			b.WriteString("\nAnomalies:\n")
			for _, a := range r.AnomaliesDetected {
				fmt.Fprintf(&b, "- %s\n", a)
			}
		}
		b.WriteString("\nLessons learned:\n")
		for _, l := range r.LessonsLearned {
			fmt.Fprintf(&b, "- %s\n", l)
		}
	}
	return b.String()
}
