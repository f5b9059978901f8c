// internal/batch/state.go
package batch

import (
	"sync"
	"sync/atomic"

	"gcmc-batch/internal/domain"
	"gcmc-batch/internal/limiter"
	"gcmc-batch/internal/results"
)

// State is the run-scoped context shared by every job of one batch. It is
// created by Prepare and torn down at the end of Run.
type State struct {
	BatchID string

	limiter *limiter.Limiter
	results *results.Aggregator
	ledger  domain.ExecutionRepository
	jobs    []*job
	wg      sync.WaitGroup

	submitted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

// Progress returns a snapshot of the batch counters.
func (s *State) Progress() domain.Progress {
	return domain.Progress{
		BatchID:   s.BatchID,
		Total:     len(s.jobs),
		Submitted: int(s.submitted.Load()),
		InFlight:  s.limiter.InFlight(),
		Succeeded: int(s.succeeded.Load()),
		Failed:    int(s.failed.Load()),
	}
}

// PeakInFlight is the highest number of jobs that ever ran at once.
func (s *State) PeakInFlight() int {
	return s.limiter.Peak()
}

// ResultFiles lists the declared result files.
func (s *State) ResultFiles() []string {
	return s.results.Paths()
}

func (s *State) settle(state domain.JobState) {
	if state == domain.JobStateSucceeded {
		s.succeeded.Add(1)
		return
	}
	s.failed.Add(1)
}
