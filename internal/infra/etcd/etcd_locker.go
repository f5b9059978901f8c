// internal/infra/etcd/etcd_locker.go
package etcd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gcmc-batch/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

const (
	// LockPrefix is the etcd root of the run locks.
	LockPrefix = "/gcmc/locks/"
	// LockSessionTTL is the lease TTL of a lock session, in seconds. A crashed
	// node loses its lock after this long.
	LockSessionTTL = 10
)

// RunLockName derives the lock name of a batch from its working directory.
func RunLockName(workDir string) string {
	abs, err := filepath.Abs(workDir)
	if err != nil {
		abs = workDir
	}
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(abs)), "/")
}

// etcdLock implements domain.Lock.
type etcdLock struct {
	mutex   *concurrency.Mutex
	session *concurrency.Session
	name    string
}

// Unlock releases the lock and its session lease.
func (l *etcdLock) Unlock(ctx context.Context) error {
	defer func() {
		if l.session != nil {
			_ = l.session.Close()
		}
	}()

	if err := l.mutex.Unlock(ctx); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.name, err)
	}
	return nil
}

// etcdLocker implements domain.Locker.
type etcdLocker struct {
	client *clientv3.Client
}

// NewEtcdLocker creates a locker backed by etcd sessions.
func NewEtcdLocker(client *clientv3.Client) domain.Locker {
	return &etcdLocker{client: client}
}

// Lock tries to acquire name once. The lock lives as long as its session
// lease is kept alive.
func (l *etcdLocker) Lock(ctx context.Context, name string) (domain.Lock, error) {
	session, err := concurrency.NewSession(l.client, concurrency.WithTTL(LockSessionTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd session for lock %s: %w", name, err)
	}

	mutex := concurrency.NewMutex(session, LockPrefix+name)

	tryCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	if err := mutex.TryLock(tryCtx); err != nil {
		_ = session.Close()
		if errors.Is(err, concurrency.ErrLocked) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", name, domain.ErrLockNotAcquired)
		}
		return nil, fmt.Errorf("failed to try acquiring etcd lock %s: %w", name, err)
	}

	return &etcdLock{
		mutex:   mutex,
		session: session,
		name:    name,
	}, nil
}
