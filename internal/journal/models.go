package journal

import (
	"encoding/json"
	"errors"
	"time"
)

// RunStatus is the lifecycle state of a maintenance run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunAborted   RunStatus = "aborted"
	RunCancelled RunStatus = "cancelled"
)

// StepState tracks one step of a multi-call mutation.
type StepState string

const (
	StepStarted     StepState = "started"
	StepDone        StepState = "done"
	StepFailed      StepState = "failed"
	StepCompensated StepState = "compensated"
	// StepStranded marks a step whose compensation also failed; the remote
	// data needs a manual `journal restore`.
	StepStranded StepState = "stranded"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one invocation of a maintenance command.
type Run struct {
	ID           string          `json:"id"`
	Command      string          `json:"command"`
	DryRun       bool            `json:"dry_run"`
	Status       RunStatus       `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	Summary      json.RawMessage `json:"summary,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// Backup is a copy of a remote row captured before it was deleted or rewritten.
type Backup struct {
	ID         int64           `json:"id"`
	RunID      string          `json:"run_id"`
	Table      string          `json:"table"`
	RowID      string          `json:"row_id"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
	RestoredAt *time.Time      `json:"restored_at,omitempty"`
}

// Step is a journaled saga step.
type Step struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Saga      string    `json:"saga"`
	SubjectID string    `json:"subject_id"`
	Name      string    `json:"step"`
	State     StepState `json:"state"`
	Detail    string    `json:"detail,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Export is the machine-readable report of a run.
type Export struct {
	Run     Run      `json:"run"`
	Backups []Backup `json:"backups"`
	Steps   []Step   `json:"steps"`
}
