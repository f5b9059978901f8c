// internal/infra/etcd/client.go
package etcd

import (
	"context"
	"fmt"
	"time"

	"gcmc-batch/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// NewClient connects to the etcd cluster holding the shared ledger and the
// run lock. clientv3 dials lazily, so the first endpoint is asked for its
// status within timeout to fail before any work directory is claimed.
func NewClient(endpoints []string, timeout time.Duration) (*clientv3.Client, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("%w: etcd ledger needs at least one endpoint", domain.ErrConfiguration)
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := cli.Status(ctx, endpoints[0]); err != nil {
		cli.Close()
		return nil, fmt.Errorf("etcd endpoint %s unreachable: %w", endpoints[0], err)
	}
	return cli, nil
}
