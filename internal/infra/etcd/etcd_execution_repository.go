// internal/infra/etcd/etcd_execution_repository.go
package etcd

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"gcmc-batch/internal/domain"
	"gcmc-batch/internal/xjson"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	ExecutionHistoryDir = "/gcmc/history/"
)

type etcdExecutionRepository struct {
	client *clientv3.Client
	logger *slog.Logger
	tracer trace.Tracer
}

// NewEtcdExecutionRepository creates a new repository for execution records backed by etcd.
func NewEtcdExecutionRepository(client *clientv3.Client, logger *slog.Logger) domain.ExecutionRepository {
	return &etcdExecutionRepository{
		client: client,
		logger: logger.With("component", "etcd-ledger"),
		tracer: otel.Tracer("gcmc-batch-etcd-ledger"),
	}
}

// executionKey is /gcmc/history/{batchID}/{structure}/{executionID}.
func executionKey(record *domain.ExecutionRecord) string {
	return path.Join(ExecutionHistoryDir, record.BatchID, record.Structure, record.ID)
}

// Save persists a single execution record to etcd.
func (r *etcdExecutionRepository) Save(ctx context.Context, record *domain.ExecutionRecord) error {
	ctx, span := r.tracer.Start(ctx, "ledger.etcd.Save")
	defer span.End()

	if err := record.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid execution record")
		return err
	}

	recordJSON, err := xjson.Marshal(record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal execution record")
		return fmt.Errorf("failed to marshal execution record %s to JSON: %w", record.ID, err)
	}

	key := executionKey(record)
	span.SetAttributes(
		attribute.String("execution.id", record.ID),
		attribute.String("batch.id", record.BatchID),
		attribute.String("etcd.key", key),
	)

	if _, err := r.client.Put(ctx, key, string(recordJSON)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put execution record to etcd")
		return fmt.Errorf("failed to save execution record %s to etcd: %w", record.ID, err)
	}
	return nil
}

// Get retrieves a single execution record of a batch by its ID.
func (r *etcdExecutionRepository) Get(ctx context.Context, batchID, executionID string) (*domain.ExecutionRecord, error) {
	ctx, span := r.tracer.Start(ctx, "ledger.etcd.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("batch.id", batchID),
		attribute.String("execution.id", executionID),
	)

	prefix := path.Join(ExecutionHistoryDir, batchID) + "/"
	resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to scan execution records")
		return nil, fmt.Errorf("failed to scan execution records of batch %s: %w", batchID, err)
	}

	for _, kv := range resp.Kvs {
		if path.Base(string(kv.Key)) != executionID {
			continue
		}
		full, err := r.client.Get(ctx, string(kv.Key))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to get execution record from etcd")
			return nil, fmt.Errorf("failed to get execution record %s/%s from etcd: %w", batchID, executionID, err)
		}
		if len(full.Kvs) == 0 {
			break
		}
		var record domain.ExecutionRecord
		if err := xjson.Unmarshal(full.Kvs[0].Value, &record); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to unmarshal execution record")
			return nil, fmt.Errorf("failed to unmarshal execution record %s/%s from JSON: %w", batchID, executionID, err)
		}
		return &record, nil
	}
	return nil, fmt.Errorf("execution record %s/%s: %w", batchID, executionID, domain.ErrExecutionNotFound)
}

// List retrieves every record of a batch, oldest first.
func (r *etcdExecutionRepository) List(ctx context.Context, batchID string) ([]*domain.ExecutionRecord, error) {
	ctx, span := r.tracer.Start(ctx, "ledger.etcd.List")
	defer span.End()
	span.SetAttributes(attribute.String("batch.id", batchID))

	records, err := r.listPrefix(ctx, path.Join(ExecutionHistoryDir, batchID)+"/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list execution records from etcd")
		return nil, err
	}
	domain.SortByStart(records)
	span.SetAttributes(attribute.Int("records_returned", len(records)))
	return records, nil
}

// ListByStructure retrieves the records of one structure, newest first, with pagination.
func (r *etcdExecutionRepository) ListByStructure(ctx context.Context, batchID, structure string, page, pageSize int) ([]*domain.ExecutionRecord, error) {
	ctx, span := r.tracer.Start(ctx, "ledger.etcd.ListByStructure")
	defer span.End()
	span.SetAttributes(
		attribute.String("batch.id", batchID),
		attribute.String("structure", structure),
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)

	records, err := r.listPrefix(ctx, path.Join(ExecutionHistoryDir, batchID, structure)+"/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list execution records from etcd")
		return nil, err
	}
	// Manual pagination. Etcd Get with Limit is for key-count, not index-based.
	paged := domain.Paginate(records, page, pageSize)
	span.SetAttributes(attribute.Int("records_returned", len(paged)))
	return paged, nil
}

func (r *etcdExecutionRepository) listPrefix(ctx context.Context, prefix string) ([]*domain.ExecutionRecord, error) {
	resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list execution records under %s from etcd: %w", prefix, err)
	}
	records := make([]*domain.ExecutionRecord, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var record domain.ExecutionRecord
		if err := xjson.Unmarshal(kv.Value, &record); err != nil {
			r.logger.Warn("failed to unmarshal execution record from etcd", "key", string(kv.Key), "error", err)
			continue
		}
		records = append(records, &record)
	}
	return records, nil
}

// Close is a no-op: the client is owned by the caller.
func (r *etcdExecutionRepository) Close() error {
	return nil
}
