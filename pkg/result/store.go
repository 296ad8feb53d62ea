// Package result persists experiment results and suite reports.
package result

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"github.com/resiliencelab/chaos-go/pkg/log"
	"github.com/resiliencelab/chaos-go/pkg/types"
)

// timestampLayout is used in every file name
const timestampLayout = "20060102_150405"

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// Uploader ships a finished report somewhere outside the local disk
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) error
}

// Store writes results under Dir, and uploads suite reports when an Uploader is set
type Store struct {
	Dir      string
	Uploader Uploader
}

// NewStore returns a store writing under dir, the working directory when empty
func NewStore(dir string, uploader Uploader) *Store {
	if dir == "" {
		dir = "."
	}
	return &Store{Dir: dir, Uploader: uploader}
}

func (s *Store) write(name string, body []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "unable to create report directory %v", s.Dir)
	}
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", errors.Wrapf(err, "unable to write %v", path)
	}
	return path, nil
}

// SaveExperiment writes one experiment result as JSON and returns its path
func (s *Store) SaveExperiment(r types.ExperimentResult) (string, error) {
	body, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", errors.Wrapf(err, "unable to encode result of %v", r.Experiment.Name)
	}
	name := fmt.Sprintf("chaos-experiment-%s-%s.json", unsafeChars.ReplaceAllString(r.Experiment.Name, "_"), r.StartTime.Format(timestampLayout))
	return s.write(name, body)
}

// SaveSuite writes the JSON report and its Markdown narration and returns the JSON path.
// An upload failure is logged, the local report is authoritative.
func (s *Store) SaveSuite(ctx context.Context, report types.SuiteReport) (string, error) {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", errors.Wrapf(err, "unable to encode suite report")
	}
	base := "chaos-report-" + report.Timestamp.Format(timestampLayout)
	jsonPath, err := s.write(base+".json", body)
	if err != nil {
		return "", err
	}
	if _, err := s.write(base+".md", []byte(RenderMarkdown(report))); err != nil {
		log.Warnf("[Summary]: Unable to write the markdown summary, err: %v", err)
	}

	if s.Uploader != nil {
		if err := s.Uploader.Upload(ctx, base+".json", body, "application/json"); err != nil {
			log.Warnf("[Summary]: Unable to upload the suite report, err: %v", err)
		} else {
			log.Infof("[Summary]: Uploaded %v.json", base)
		}
	}
	return jsonPath, nil
}

// NewSuiteReport aggregates results into a report
func NewSuiteReport(runID string, at time.Time, results []types.ExperimentResult) types.SuiteReport {
	report := types.SuiteReport{
		RunID:            runID,
		Timestamp:        at,
		TotalExperiments: len(results),
		Results:          results,
	}
	if report.Results == nil {
		report.Results = []types.ExperimentResult{}
	}
	if len(results) == 0 {
		return report
	}
	var total float64
	recovered := 0
	for _, r := range results {
		total += r.ResilienceScore
		if r.RecoverySuccessful {
			recovered++
		}
	}
	report.AverageResilienceScore = total / float64(len(results))
	report.RecoverySuccessRate = float64(recovered) / float64(len(results))
	return report
}
