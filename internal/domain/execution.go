// internal/domain/execution.go
package domain

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// JobState is a state of the per-job state machine.
type JobState string

const (
	JobStatePreparing          JobState = "preparing"
	JobStateRunning            JobState = "running"
	JobStateAwaitingCompletion JobState = "awaiting_completion"
	JobStateSucceeded          JobState = "succeeded"
	JobStateTimedOut           JobState = "timed_out"
	JobStateExtractionFailed   JobState = "extraction_failed"
	JobStateLaunchFailed       JobState = "launch_failed" // working directory or process could not be set up
	JobStateCancelled          JobState = "cancelled"     // batch stopped before the job was launched
)

// Terminal reports whether no further transition can follow the state.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateSucceeded, JobStateTimedOut, JobStateExtractionFailed, JobStateLaunchFailed, JobStateCancelled:
		return true
	}
	return false
}

// Failed reports whether the state produces an error row.
func (s JobState) Failed() bool {
	return s.Terminal() && s != JobStateSucceeded
}

// ExecutionRecord represents a single simulation job of a batch.
// Process exit and report finality are tracked separately: the engine's exit
// status is informational only.
type ExecutionRecord struct {
	ID              string    `json:"id"`                  // Unique ID for this job
	BatchID         string    `json:"batch_id"`            // Batch the job belongs to
	Structure       string    `json:"structure"`           // Structure name
	Pressure        string    `json:"pressure,omitempty"`  // Pressure of the condition
	Temperature     string    `json:"temperature"`         // Temperature of the condition
	State           JobState  `json:"state"`               // Current state
	WorkDir         string    `json:"work_dir"`            // Job-owned working directory
	ProcessExited   bool      `json:"process_exited"`      // Whether the engine had exited when the job settled
	ExitCode        int       `json:"exit_code"`           // Engine exit code, valid when ProcessExited
	ReportFinalized bool      `json:"report_finalized"`    // Whether the completion marker was observed
	StartTime       time.Time `json:"start_time"`          // When the job started
	EndTime         time.Time `json:"end_time,omitempty"`  // When the job settled
	Error           string    `json:"error,omitempty"`     // Failure cause, if any
}

// Validate checks if the execution record is valid.
func (r *ExecutionRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("execution record ID cannot be empty")
	}
	if r.BatchID == "" {
		return fmt.Errorf("execution record batch ID cannot be empty")
	}
	if r.Structure == "" {
		return fmt.Errorf("execution record structure cannot be empty")
	}
	if r.StartTime.IsZero() {
		return fmt.Errorf("execution record start time cannot be zero")
	}
	if r.State == "" {
		return fmt.Errorf("execution record state cannot be empty")
	}
	return nil
}

// ExecutionRepository defines the interface for persisting and retrieving execution records.
type ExecutionRepository interface {
	// Save persists a single execution record, replacing any previous version.
	Save(ctx context.Context, record *ExecutionRecord) error
	// Get retrieves a single execution record of a batch.
	Get(ctx context.Context, batchID, executionID string) (*ExecutionRecord, error)
	// List retrieves every record of a batch.
	List(ctx context.Context, batchID string) ([]*ExecutionRecord, error)
	// ListByStructure retrieves the records of one structure, newest first, with pagination.
	ListByStructure(ctx context.Context, batchID, structure string, page, pageSize int) ([]*ExecutionRecord, error)
	// Close releases the backend.
	Close() error
}

// SortByStart orders records oldest first.
func SortByStart(records []*ExecutionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartTime.Before(records[j].StartTime)
	})
}

// Paginate returns the page-th slice of pageSize records, newest first.
// page starts at 1.
func Paginate(records []*ExecutionRecord, page, pageSize int) []*ExecutionRecord {
	sorted := append([]*ExecutionRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime.After(sorted[j].StartTime)
	})
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if pageSize <= 0 || start >= len(sorted) {
		return []*ExecutionRecord{}
	}
	end := start + pageSize
	if end > len(sorted) {
		end = len(sorted)
	}
	return sorted[start:end]
}
