package pipeline

import (
	"time"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/normalize"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/recognition"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/submission"
)

// StageOutcome is the per-stage line of a Summary. Ran is false for stages
// that had nothing to do.
type StageOutcome struct {
	Name     string
	Ran      bool
	Success  bool
	Err      error
	Detail   string
	Duration time.Duration
}

// Summary is the result of one run. Stage results are nil when the stage
// did not run.
type Summary struct {
	RunID       string
	OutputDir   string
	StartedAt   time.Time
	FinishedAt  time.Time
	Stages      []StageOutcome
	Normalize   *normalize.Result
	Recognition *recognition.Result
	Submission  *submission.Result
}

func (s *Summary) add(outcome StageOutcome) {
	s.Stages = append(s.Stages, outcome)
}

// Stage returns the outcome named name.
func (s Summary) Stage(name string) (StageOutcome, bool) {
	for _, outcome := range s.Stages {
		if outcome.Name == name {
			return outcome, true
		}
	}
	return StageOutcome{}, false
}

// Markdown counts the markdown files produced by this run.
func (s Summary) Markdown() int {
	if s.Submission == nil {
		return 0
	}
	return s.Submission.Succeeded
}
