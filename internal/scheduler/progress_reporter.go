// internal/scheduler/progress_reporter.go
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"gcmc-batch/internal/domain"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ProgressSource is anything that can report the progress of a batch.
type ProgressSource interface {
	Progress() domain.Progress
}

// ProgressReporter logs batch progress on a cron schedule.
type ProgressReporter struct {
	cron   *cron.Cron
	source ProgressSource
	logger *slog.Logger
	tracer trace.Tracer
}

// NewProgressReporter creates a reporter for source. Nothing is logged until Start.
func NewProgressReporter(source ProgressSource, logger *slog.Logger) *ProgressReporter {
	return &ProgressReporter{
		cron:   cron.New(),
		source: source,
		logger: logger.With("component", "progress-reporter"),
		tracer: otel.Tracer("gcmc-batch-scheduler"),
	}
}

// Start reports on schedule until ctx is done, then logs a final snapshot.
// schedule accepts standard five-field expressions and descriptors such as
// "@every 30s".
func (r *ProgressReporter) Start(ctx context.Context, schedule string) error {
	if _, err := r.cron.AddJob(schedule, cron.FuncJob(r.Report)); err != nil {
		return fmt.Errorf("invalid progress schedule %q: %w", schedule, err)
	}
	r.logger.Info("progress reporter started", "schedule", schedule)
	r.cron.Start()
	<-ctx.Done()
	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
	r.Report()
	r.logger.Info("progress reporter stopped")
	return nil
}

// Report logs one progress snapshot.
func (r *ProgressReporter) Report() {
	p := r.source.Progress()
	_, span := r.tracer.Start(context.Background(), "scheduler.ReportProgress",
		trace.WithAttributes(
			attribute.String("batch.id", p.BatchID),
			attribute.Int("batch.finished", p.Finished()),
		))
	defer span.End()

	r.logger.Info("batch progress",
		"batch_id", p.BatchID,
		"total", p.Total,
		"submitted", p.Submitted,
		"in_flight", p.InFlight,
		"finished", p.Finished(),
		"succeeded", p.Succeeded,
		"failed", p.Failed,
	)
}
