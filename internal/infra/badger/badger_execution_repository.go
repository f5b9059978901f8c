// internal/infra/badger/badger_execution_repository.go
package badger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gcmc-batch/internal/domain"
	"gcmc-batch/internal/xjson"

	"github.com/dgraph-io/badger/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const keyPrefix = "history/"

type badgerExecutionRepository struct {
	db        *badger.DB
	logger    *slog.Logger
	tracer    trace.Tracer
	closeOnce sync.Once
}

// Open opens (or creates) a badger ledger at path. An empty path keeps the
// ledger in memory.
func Open(path string, logger *slog.Logger) (domain.ExecutionRepository, error) {
	logger = logger.With("component", "badger-ledger")
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: logger}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger ledger: %w", err)
	}
	return &badgerExecutionRepository{
		db:     db,
		logger: logger,
		tracer: otel.Tracer("gcmc-batch-badger-ledger"),
	}, nil
}

// executionKey is history/{batchID}/{structure}/{executionID}.
func executionKey(record *domain.ExecutionRecord) []byte {
	return []byte(keyPrefix + record.BatchID + "/" + record.Structure + "/" + record.ID)
}

func (r *badgerExecutionRepository) Save(ctx context.Context, record *domain.ExecutionRecord) error {
	_, span := r.tracer.Start(ctx, "ledger.badger.Save")
	defer span.End()
	span.SetAttributes(attribute.String("execution.id", record.ID), attribute.String("batch.id", record.BatchID))

	if err := record.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid execution record")
		return err
	}
	value, err := xjson.Marshal(record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal execution record")
		return fmt.Errorf("failed to marshal execution record %s: %w", record.ID, err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(executionKey(record), value)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write execution record")
		return fmt.Errorf("failed to save execution record %s: %w", record.ID, err)
	}
	return nil
}

func (r *badgerExecutionRepository) Get(ctx context.Context, batchID, executionID string) (*domain.ExecutionRecord, error) {
	_, span := r.tracer.Start(ctx, "ledger.badger.Get")
	defer span.End()

	records, err := r.scan(keyPrefix+batchID+"/", func(key string) bool {
		return strings.HasSuffix(key, "/"+executionID)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read execution record")
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("execution record %s/%s: %w", batchID, executionID, domain.ErrExecutionNotFound)
	}
	return records[0], nil
}

func (r *badgerExecutionRepository) List(ctx context.Context, batchID string) ([]*domain.ExecutionRecord, error) {
	_, span := r.tracer.Start(ctx, "ledger.badger.List")
	defer span.End()

	records, err := r.scan(keyPrefix+batchID+"/", nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list execution records")
		return nil, err
	}
	domain.SortByStart(records)
	return records, nil
}

func (r *badgerExecutionRepository) ListByStructure(ctx context.Context, batchID, structure string, page, pageSize int) ([]*domain.ExecutionRecord, error) {
	_, span := r.tracer.Start(ctx, "ledger.badger.ListByStructure")
	defer span.End()
	span.SetAttributes(attribute.String("structure", structure), attribute.Int("page", page), attribute.Int("page_size", pageSize))

	records, err := r.scan(keyPrefix+batchID+"/"+structure+"/", nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list execution records")
		return nil, err
	}
	return domain.Paginate(records, page, pageSize), nil
}

func (r *badgerExecutionRepository) scan(prefix string, match func(key string) bool) ([]*domain.ExecutionRecord, error) {
	var records []*domain.ExecutionRecord
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 100
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			if match != nil && !match(key) {
				continue
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				r.logger.Error("failed to copy value", "key", key, "error", err)
				continue
			}
			var record domain.ExecutionRecord
			if err := xjson.Unmarshal(value, &record); err != nil {
				r.logger.Warn("failed to unmarshal execution record", "key", key, "error", err)
				continue
			}
			records = append(records, &record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", prefix, err)
	}
	return records, nil
}

func (r *badgerExecutionRepository) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if cerr := r.db.Close(); cerr != nil {
			err = fmt.Errorf("failed to close badger ledger: %w", cerr)
		}
	})
	return err
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(f, v...))
}

func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(f, v...))
}

func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(f, v...))
}

func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(f, v...))
}
