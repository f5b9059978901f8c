package badger

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcmc-batch/internal/domain"
)

func newRecord(batchID, structure string, start time.Time) *domain.ExecutionRecord {
	return &domain.ExecutionRecord{
		ID:        uuid.NewString(),
		BatchID:   batchID,
		Structure: structure,
		Pressure:  "100000",
		State:     domain.JobStateRunning,
		StartTime: start,
	}
}

func openTestLedger(t *testing.T, path string) domain.ExecutionRepository {
	t.Helper()
	repo, err := Open(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestBadgerLedger_SaveOverwritesAndGets(t *testing.T) {
	repo := openTestLedger(t, "")
	ctx := context.Background()

	rec := newRecord("batch-1", "MOF-5", time.Now())
	require.NoError(t, repo.Save(ctx, rec))
	rec.State = domain.JobStateSucceeded
	rec.ReportFinalized = true
	require.NoError(t, repo.Save(ctx, rec))

	got, err := repo.Get(ctx, "batch-1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateSucceeded, got.State)
	assert.True(t, got.ReportFinalized)

	all, err := repo.List(ctx, "batch-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = repo.Get(ctx, "batch-1", "nope")
	assert.ErrorIs(t, err, domain.ErrExecutionNotFound)
}

func TestBadgerLedger_ListByStructurePaginatesNewestFirst(t *testing.T) {
	repo := openTestLedger(t, "")
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 5; i++ {
		rec := newRecord("b", "MOF-5", base.Add(time.Duration(i)*time.Minute))
		ids = append(ids, rec.ID)
		require.NoError(t, repo.Save(ctx, rec))
	}
	require.NoError(t, repo.Save(ctx, newRecord("b", "MOF-50", base)))
	require.NoError(t, repo.Save(ctx, newRecord("other", "MOF-5", base)))

	page1, err := repo.ListByStructure(ctx, "b", "MOF-5", 1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, ids[4], page1[0].ID)
	assert.Equal(t, ids[3], page1[1].ID)

	page3, err := repo.ListByStructure(ctx, "b", "MOF-5", 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, ids[0], page3[0].ID)

	all, err := repo.List(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestBadgerLedger_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	repo, err := Open(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	rec := newRecord("b", "ZIF-8", time.Now())
	require.NoError(t, repo.Save(ctx, rec))
	require.NoError(t, repo.Close())
	require.NoError(t, repo.Close())

	reopened := openTestLedger(t, dir)
	got, err := reopened.Get(ctx, "b", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "ZIF-8", got.Structure)
}

func TestBadgerLedger_RejectsInvalidRecord(t *testing.T) {
	repo := openTestLedger(t, "")
	assert.Error(t, repo.Save(context.Background(), &domain.ExecutionRecord{ID: "x"}))
}
