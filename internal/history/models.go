package history

import "time"

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one pipeline invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	OutputDir  string
	Folder     string
	Status     RunStatus
	Error      string
	Stages     []StageRecord
}

// StageRecord is the outcome of one stage within a run.
type StageRecord struct {
	RunID     string
	Stage     string
	Success   bool
	Processed int
	Succeeded int
	Failed    int
	Detail    string
	Error     string
	Duration  time.Duration
}
