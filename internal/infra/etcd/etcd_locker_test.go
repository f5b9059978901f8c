package etcd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcmc-batch/internal/domain"
)

func TestRunLockName(t *testing.T) {
	dir := t.TempDir()
	name := RunLockName(filepath.Join(dir, "cmd", "..", "cmd"))
	assert.False(t, strings.HasPrefix(name, "/"))
	assert.True(t, strings.HasSuffix(name, "/cmd"))
	assert.Equal(t, name, RunLockName(filepath.Join(dir, "cmd")))
}

// TestEtcdLocker runs against a live cluster named by GCMC_TEST_ETCD_ENDPOINTS.
func TestEtcdLocker(t *testing.T) {
	endpoints := os.Getenv("GCMC_TEST_ETCD_ENDPOINTS")
	if endpoints == "" {
		t.Skip("GCMC_TEST_ETCD_ENDPOINTS not set")
	}
	cli, err := NewClient(strings.Split(endpoints, ","), 5*time.Second)
	require.NoError(t, err)
	defer cli.Close()

	locker := NewEtcdLocker(cli)
	ctx := context.Background()
	name := "test/" + uuid.NewString()

	lock, err := locker.Lock(ctx, name)
	require.NoError(t, err)

	_, err = locker.Lock(ctx, name)
	assert.ErrorIs(t, err, domain.ErrLockNotAcquired)

	require.NoError(t, lock.Unlock(ctx))
	again, err := locker.Lock(ctx, name)
	require.NoError(t, err)
	require.NoError(t, again.Unlock(ctx))
}
