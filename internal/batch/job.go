// internal/batch/job.go
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gcmc-batch/internal/completion"
	"gcmc-batch/internal/domain"
	"gcmc-batch/internal/forcefield"
	"gcmc-batch/internal/input"
	"gcmc-batch/internal/metrics"
	"gcmc-batch/internal/structure"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// job is one condition of the batch together with the resources it owns.
type job struct {
	cond       domain.SimulationCondition
	key        string // value of the first result column
	workDir    string
	resultFile string
}

func (j *job) newRecord(batchID string) *domain.ExecutionRecord {
	return &domain.ExecutionRecord{
		ID:          uuid.NewString(),
		BatchID:     batchID,
		Structure:   j.cond.Structure,
		Pressure:    j.cond.Pressure,
		Temperature: j.cond.Temperature,
		State:       domain.JobStatePreparing,
		WorkDir:     j.workDir,
		StartTime:   time.Now(),
	}
}

// runJob drives one job to a terminal state and writes its row. It never
// panics and never returns an error: every failure becomes an error row.
func (d *Driver) runJob(ctx context.Context, st *State, j *job) {
	record := j.newRecord(st.BatchID)
	ctx, span := d.tracer.Start(ctx, "job.Run", trace.WithAttributes(
		attribute.String("job.structure", j.cond.Structure),
		attribute.String("job.pressure", j.cond.Pressure),
		attribute.String("execution.id", record.ID),
	))
	defer span.End()

	logger := d.logger.With("structure", j.cond.Structure, "pressure", j.cond.Pressure, "execution_id", record.ID)
	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()

	d.save(ctx, st, record, logger)

	var values map[string]string
	defer func() {
		if r := recover(); r != nil {
			values = nil
			record.State = domain.JobStateExtractionFailed
			record.Error = fmt.Sprintf("panic: %v", r)
			logger.Error("job panicked", "panic", r)
		}
		record.EndTime = time.Now()
		if record.State.Failed() {
			span.SetStatus(codes.Error, string(record.State))
			span.RecordError(fmt.Errorf("%s", record.Error))
		} else {
			span.SetStatus(codes.Ok, "job succeeded")
		}
		d.complete(context.Background(), st, j, record, values, logger)
	}()

	var err error
	values, record.State, err = d.execute(ctx, st, j, record, logger)
	if err != nil {
		record.Error = err.Error()
	}
}

// execute walks Preparing, Running and AwaitingCompletion and returns the
// terminal state with the extracted values on success.
func (d *Driver) execute(ctx context.Context, st *State, j *job, record *domain.ExecutionRecord, logger *slog.Logger) (map[string]string, domain.JobState, error) {
	if err := d.prepareWorkDir(j); err != nil {
		logger.Error("failed to prepare working directory", "error", err)
		return nil, domain.JobStateLaunchFailed, err
	}

	record.State = domain.JobStateRunning
	d.save(ctx, st, record, logger)
	process, err := d.launcher.Launch(ctx, domain.LaunchSpec{
		Name:        j.cond.ID(),
		Binary:      d.opts.Binary,
		Args:        d.opts.Args,
		Dir:         j.workDir,
		Env:         d.opts.Env,
		CapturePath: filepath.Join(j.workDir, d.opts.CaptureFile),
	})
	if err != nil {
		logger.Error("failed to launch engine", "error", err)
		return nil, domain.JobStateLaunchFailed, fmt.Errorf("failed to launch engine: %w", err)
	}

	record.State = domain.JobStateAwaitingCompletion
	d.save(ctx, st, record, logger)
	waitStart := time.Now()
	finalized := completion.AwaitCompletion(ctx, j.workDir, d.opts.CompletionFile, d.opts.CompletionMarker, d.opts.Timeout, d.opts.PollInterval)
	record.ReportFinalized = finalized
	observeExit(process, record)

	result := "finalized"
	if !finalized {
		result = "timeout"
	}
	metrics.CompletionWait.WithLabelValues(string(d.opts.Mode), result).Observe(time.Since(waitStart).Seconds())

	if !finalized {
		if ctx.Err() != nil {
			return nil, domain.JobStateCancelled, fmt.Errorf("batch cancelled while awaiting completion: %w", ctx.Err())
		}
		logger.Warn("completion marker not observed, engine is left running",
			"marker", d.opts.CompletionMarker,
			"timeout", d.opts.Timeout.String(),
			"process_exited", record.ProcessExited,
		)
		return nil, domain.JobStateTimedOut, fmt.Errorf("completion marker %q not observed within %s", d.opts.CompletionMarker, d.opts.Timeout)
	}

	values, err := d.extract(j)
	if err != nil {
		logger.Error("failed to extract report", "error", err)
		return nil, domain.JobStateExtractionFailed, err
	}
	return values, domain.JobStateSucceeded, nil
}

// prepareWorkDir creates the job's working directory and stages the force
// field, the structure and the rendered input into it.
func (d *Driver) prepareWorkDir(j *job) error {
	if err := os.MkdirAll(j.workDir, 0o755); err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}
	if err := forcefield.Stage(d.opts.ForcefieldDir, j.workDir); err != nil {
		return err
	}
	if err := forcefield.CopyFile(j.cond.CIFPath, filepath.Join(j.workDir, j.cond.Structure+".cif")); err != nil {
		return err
	}
	cell, err := structure.ReadCell(j.cond.CIFPath)
	if err != nil {
		return err
	}
	rendered := d.opts.Template.Render(input.Values{
		CIFName:     j.cond.Structure,
		UnitCells:   cell.UnitCells(j.cond.CutoffVDW),
		Cutoff:      j.cond.CutoffVDW,
		Temperature: j.cond.Temperature,
		Pressure:    j.cond.Pressure,
	})
	if err := os.WriteFile(filepath.Join(j.workDir, input.FileName), []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("failed to write simulation input: %w", err)
	}
	if d.opts.Mode.IsGRASPA() {
		if err := forcefield.PruneForSystem(j.workDir, input.Frameworks(rendered), input.Adsorbates(rendered)); err != nil {
			return fmt.Errorf("failed to prune force field: %w", err)
		}
	}
	return nil
}

func (d *Driver) extract(j *job) (map[string]string, error) {
	path, err := completion.FirstMatch(j.workDir, d.opts.ReportFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}
	return d.extractor.Extract(string(text), d.components)
}

// observeExit records the process exit without waiting for it.
func observeExit(p domain.Process, record *domain.ExecutionRecord) {
	select {
	case <-p.Done():
		record.ProcessExited = true
		record.ExitCode = p.Result().ExitCode
	default:
	}
}

// complete writes the job's row, settles the counters and persists the
// terminal record.
func (d *Driver) complete(ctx context.Context, st *State, j *job, record *domain.ExecutionRecord, values map[string]string, logger *slog.Logger) {
	row := domain.FailedRecord(j.key)
	if record.State == domain.JobStateSucceeded {
		row = domain.ResultRecord{Key: j.key, Values: values}
	}
	if err := st.results.Append(j.resultFile, row); err != nil {
		logger.Error("failed to append result row", "file", j.resultFile, "error", err)
	}

	st.settle(record.State)
	metrics.JobExecutionTotal.WithLabelValues(string(d.opts.Mode), string(record.State)).Inc()
	metrics.JobDuration.WithLabelValues(string(d.opts.Mode)).Observe(record.EndTime.Sub(record.StartTime).Seconds())
	d.save(ctx, st, record, logger)

	if record.State.Failed() {
		logger.Warn("job failed", "state", record.State, "error", record.Error)
		return
	}
	logger.Info("job succeeded", "duration", record.EndTime.Sub(record.StartTime).String())
}

// save persists a snapshot of record. Ledger failures never fail the job.
func (d *Driver) save(ctx context.Context, st *State, record *domain.ExecutionRecord, logger *slog.Logger) {
	if st.ledger == nil {
		return
	}
	snapshot := *record
	if err := st.ledger.Save(ctx, &snapshot); err != nil {
		logger.Error("failed to save execution record", "state", record.State, "error", err)
	}
}
