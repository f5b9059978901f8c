// internal/results/aggregator.go
package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gcmc-batch/internal/domain"
	"gcmc-batch/internal/metrics"
)

// Aggregator owns the tabular result files of one batch. Every file has a
// fixed header declared before any row is appended.
type Aggregator struct {
	mu     sync.Mutex
	files  map[string]*table
	closed bool
	logger *slog.Logger
}

type table struct {
	mu      sync.Mutex
	headers []string
	f       *os.File
	w       *csv.Writer
	rows    int
}

// NewAggregator creates an empty aggregator.
func NewAggregator(logger *slog.Logger) *Aggregator {
	return &Aggregator{
		files:  make(map[string]*table),
		logger: logger.With("component", "aggregator"),
	}
}

// Declare creates path, truncating any previous content, and writes the
// header row. Declaring the same path twice is an error.
func (a *Aggregator) Declare(path string, headers []string) error {
	if len(headers) == 0 {
		return fmt.Errorf("no headers declared for %s", path)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errors.New("aggregator is closed")
	}
	if _, ok := a.files[path]; ok {
		return fmt.Errorf("result file %s already declared", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create result directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create result file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		f.Close()
		return fmt.Errorf("failed to write header to %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush header to %s: %w", path, err)
	}
	a.files[path] = &table{headers: append([]string(nil), headers...), f: f, w: w}
	a.logger.Info("declared result file", "path", path, "columns", len(headers))
	return nil
}

// Headers returns the declared header of path.
func (a *Aggregator) Headers(path string) ([]string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.files[path]
	if !ok {
		return nil, false
	}
	return append([]string(nil), t.headers...), true
}

// Append renders rec against the header of path and writes it as one row.
// Rows are flushed immediately so a crashed batch keeps every settled job.
func (a *Aggregator) Append(path string, rec domain.ResultRecord) error {
	a.mu.Lock()
	t, ok := a.files[path]
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return errors.New("aggregator is closed")
	}
	if !ok {
		return fmt.Errorf("result file %s was not declared", path)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.w.Write(rec.Row(t.headers)); err != nil {
		return fmt.Errorf("failed to write row to %s: %w", path, err)
	}
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		return fmt.Errorf("failed to flush row to %s: %w", path, err)
	}
	t.rows++
	metrics.RowsWritten.WithLabelValues(filepath.Base(path)).Inc()
	return nil
}

// Rows returns the number of rows appended to path, header excluded.
func (a *Aggregator) Rows(path string) int {
	a.mu.Lock()
	t, ok := a.files[path]
	a.mu.Unlock()
	if !ok {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rows
}

// Paths returns every declared file in lexical order.
func (a *Aggregator) Paths() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	paths := make([]string, 0, len(a.files))
	for p := range a.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Close flushes and closes every file. Further calls to Append fail.
func (a *Aggregator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	var errs []error
	for path, t := range a.files {
		t.mu.Lock()
		t.w.Flush()
		if err := t.w.Error(); err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", path, err))
		}
		if err := t.f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", path, err))
		}
		t.mu.Unlock()
	}
	return errors.Join(errs...)
}
