package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcmc-batch/internal/domain"
)

func TestMemoryLedger(t *testing.T) {
	repo := NewMemoryExecutionRepository()
	defer repo.Close()
	ctx := context.Background()
	base := time.Now()

	first := &domain.ExecutionRecord{ID: "1", BatchID: "b", Structure: "MOF-5", State: domain.JobStateRunning, StartTime: base}
	second := &domain.ExecutionRecord{ID: "2", BatchID: "b", Structure: "ZIF-8", State: domain.JobStateRunning, StartTime: base.Add(time.Second)}
	require.NoError(t, repo.Save(ctx, second))
	require.NoError(t, repo.Save(ctx, first))

	// mutating the caller's copy must not leak into the ledger
	first.State = domain.JobStateTimedOut
	got, err := repo.Get(ctx, "b", "1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateRunning, got.State)

	all, err := repo.List(ctx, "b")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "1", all[0].ID)

	zif, err := repo.ListByStructure(ctx, "b", "ZIF-8", 1, 20)
	require.NoError(t, err)
	require.Len(t, zif, 1)
	assert.Equal(t, "2", zif[0].ID)

	empty, err := repo.ListByStructure(ctx, "b", "ZIF-8", 2, 20)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = repo.Get(ctx, "b", "3")
	assert.ErrorIs(t, err, domain.ErrExecutionNotFound)
}
