// internal/infra/memory/memory_execution_repository.go
package memory

import (
	"context"
	"fmt"
	"sync"

	"gcmc-batch/internal/domain"
)

// memoryExecutionRepository keeps execution records for the lifetime of the process.
type memoryExecutionRepository struct {
	mu      sync.RWMutex
	records map[string]map[string]*domain.ExecutionRecord // batch -> id -> record
}

// NewMemoryExecutionRepository creates an empty in-process ledger.
func NewMemoryExecutionRepository() domain.ExecutionRepository {
	return &memoryExecutionRepository{records: make(map[string]map[string]*domain.ExecutionRecord)}
}

func (r *memoryExecutionRepository) Save(_ context.Context, record *domain.ExecutionRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	cp := *record
	r.mu.Lock()
	defer r.mu.Unlock()
	batch, ok := r.records[record.BatchID]
	if !ok {
		batch = make(map[string]*domain.ExecutionRecord)
		r.records[record.BatchID] = batch
	}
	batch[record.ID] = &cp
	return nil
}

func (r *memoryExecutionRepository) Get(_ context.Context, batchID, executionID string) (*domain.ExecutionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[batchID][executionID]
	if !ok {
		return nil, fmt.Errorf("execution record %s/%s: %w", batchID, executionID, domain.ErrExecutionNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (r *memoryExecutionRepository) List(_ context.Context, batchID string) ([]*domain.ExecutionRecord, error) {
	out := r.snapshot(batchID, "")
	domain.SortByStart(out)
	return out, nil
}

func (r *memoryExecutionRepository) ListByStructure(_ context.Context, batchID, structure string, page, pageSize int) ([]*domain.ExecutionRecord, error) {
	return domain.Paginate(r.snapshot(batchID, structure), page, pageSize), nil
}

func (r *memoryExecutionRepository) snapshot(batchID, structure string) []*domain.ExecutionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.ExecutionRecord, 0, len(r.records[batchID]))
	for _, rec := range r.records[batchID] {
		if structure != "" && rec.Structure != structure {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	return out
}

func (r *memoryExecutionRepository) Close() error { return nil }
