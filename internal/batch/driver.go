// internal/batch/driver.go
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gcmc-batch/internal/domain"
	"gcmc-batch/internal/infra/memory"
	"gcmc-batch/internal/limiter"
	"gcmc-batch/internal/report"
	"gcmc-batch/internal/results"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HenryResultFile is the per-batch result file of the RASPA2 Widom mode.
const HenryResultFile = "heat_of_adsorption_widom_insertion.csv"

// Driver enumerates the conditions of a batch and runs one job per condition.
type Driver struct {
	opts       Options
	launcher   domain.Launcher
	extractor  report.Extractor
	components []string
	headers    []string
	state      *State
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewDriver checks the batch-level settings that do not touch the filesystem.
// An unknown loading unit is reported as domain.ErrInvalidUnit, any other
// problem as domain.ErrConfiguration.
func NewDriver(opts Options, launcher domain.Launcher, logger *slog.Logger) (*Driver, error) {
	extractor, err := report.ExtractorFor(opts.Mode)
	if err != nil {
		return nil, err
	}
	if opts.Mode == domain.ModeIsotherm && len(opts.LoadingUnits) > 0 {
		if extractor, err = report.NewIsothermExtractor(opts.LoadingUnits...); err != nil {
			return nil, err
		}
	}
	if opts.Template == nil {
		return nil, fmt.Errorf("%w: no input template", domain.ErrConfiguration)
	}
	if len(opts.Structures) == 0 {
		return nil, fmt.Errorf("%w: no structures to simulate", domain.ErrConfiguration)
	}
	if opts.MaxTasks < 1 {
		return nil, fmt.Errorf("%w: max_tasks must be at least 1, got %d", domain.ErrConfiguration, opts.MaxTasks)
	}
	if opts.Mode.Grouping() == domain.GroupPerStructure && len(opts.Pressures) == 0 {
		return nil, fmt.Errorf("%w: mode %s needs at least one pressure", domain.ErrConfiguration, opts.Mode)
	}
	// Per-batch modes key rows and work dirs by structure alone.
	if opts.Mode.Grouping() == domain.GroupPerBatch && len(opts.Pressures) > 1 {
		return nil, fmt.Errorf("%w: mode %s accepts at most one pressure, got %d", domain.ErrConfiguration, opts.Mode, len(opts.Pressures))
	}
	components := opts.Template.Components()
	if len(components) == 0 {
		return nil, fmt.Errorf("%w: input template declares no MoleculeName", domain.ErrConfiguration)
	}
	if opts.Mode == domain.ModeGRASPAIsotherm && len(components) != 1 {
		return nil, fmt.Errorf("%w: mode %s supports exactly one adsorbate, template declares %d", domain.ErrConfiguration, opts.Mode, len(components))
	}
	return &Driver{
		opts:       opts,
		launcher:   launcher,
		extractor:  extractor,
		components: components,
		headers:    extractor.Headers(components),
		logger:     logger.With("component", "batch-driver", "mode", string(opts.Mode)),
		tracer:     otel.Tracer("gcmc-batch"),
	}, nil
}

// Components returns the adsorbates that name the result columns.
func (d *Driver) Components() []string {
	return append([]string(nil), d.components...)
}

// State returns the run state once Prepare has succeeded, nil before.
func (d *Driver) State() *State {
	return d.state
}

// Prepare rejects leftovers of a previous batch, creates the output roots,
// enumerates every condition and declares the result files. It is called by
// Run when the caller has not done so.
func (d *Driver) Prepare() (*State, error) {
	if d.state != nil {
		return d.state, nil
	}
	for _, dir := range []string{d.opts.WorkDir, d.opts.ResultsDir} {
		if _, err := os.Stat(dir); err == nil {
			return nil, fmt.Errorf("%w: %s, delete it and try again", domain.ErrOutputExists, dir)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to inspect %s: %w", dir, err)
		}
	}
	for _, dir := range []string{d.opts.WorkDir, d.opts.ResultsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	gate, err := limiter.New(d.opts.MaxTasks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	st := &State{
		BatchID: uuid.NewString(),
		limiter: gate,
		results: results.NewAggregator(d.logger),
		jobs:    d.enumerate(),
	}
	for _, j := range st.jobs {
		if _, declared := st.results.Headers(j.resultFile); declared {
			continue
		}
		if err := st.results.Declare(j.resultFile, d.headers); err != nil {
			st.results.Close()
			return nil, err
		}
	}
	d.state = st
	d.logger.Info("batch prepared", "batch_id", st.BatchID, "jobs", len(st.jobs), "result_files", len(st.results.Paths()))
	return st, nil
}

// enumerate builds one job per (structure, pressure), structure-major.
// Per-batch modes without a pressure get one job per structure.
func (d *Driver) enumerate() []*job {
	pressures := d.opts.Pressures
	if len(pressures) == 0 {
		pressures = []string{""}
	}
	var jobs []*job
	for _, cif := range d.opts.Structures {
		name := domain.StructureName(filepath.Base(cif))
		for _, p := range pressures {
			cond := domain.SimulationCondition{
				Structure:   name,
				CIFPath:     cif,
				Pressure:    p,
				Temperature: d.opts.Temperature,
				CutoffVDW:   d.opts.CutoffVDW,
			}
			jobs = append(jobs, &job{
				cond:       cond,
				key:        d.key(cond),
				workDir:    d.workDir(cond),
				resultFile: d.resultFile(cond),
			})
		}
	}
	return jobs
}

func (d *Driver) key(c domain.SimulationCondition) string {
	if d.opts.Mode.Grouping() == domain.GroupPerStructure {
		return c.Pressure
	}
	return c.Structure
}

func (d *Driver) workDir(c domain.SimulationCondition) string {
	if d.opts.Mode.Grouping() == domain.GroupPerStructure {
		return filepath.Join(d.opts.WorkDir, c.Structure, c.Pressure)
	}
	return filepath.Join(d.opts.WorkDir, c.Structure)
}

func (d *Driver) resultFile(c domain.SimulationCondition) string {
	switch d.opts.Mode {
	case domain.ModeHenry:
		return filepath.Join(d.opts.ResultsDir, HenryResultFile)
	case domain.ModeGRASPAHenry:
		name := d.components[0] + "_" + d.opts.Temperature
		if c.Pressure != "" {
			name += "_" + c.Pressure
		}
		return filepath.Join(d.opts.ResultsDir, name+".csv")
	}
	return filepath.Join(d.opts.ResultsDir, c.Structure+".csv")
}

// Run submits every job in enumeration order, at most MaxTasks at once, and
// blocks until each one has written its row. A nil ledger keeps records in
// memory. Once ctx is done, jobs not yet submitted are written as error rows.
func (d *Driver) Run(ctx context.Context, ledger domain.ExecutionRepository) (domain.Progress, error) {
	st, err := d.Prepare()
	if err != nil {
		return domain.Progress{}, err
	}
	if ledger == nil {
		ledger = memory.NewMemoryExecutionRepository()
	}
	st.ledger = ledger

	ctx, span := d.tracer.Start(ctx, "batch.Run", trace.WithAttributes(
		attribute.String("batch.id", st.BatchID),
		attribute.String("batch.mode", string(d.opts.Mode)),
		attribute.Int("batch.jobs", len(st.jobs)),
	))
	defer span.End()

	start := time.Now()
	d.logger.Info("batch started", "batch_id", st.BatchID, "max_tasks", d.opts.MaxTasks)

	for i, j := range st.jobs {
		if i > 0 && !d.stagger(ctx) {
			d.cancelRemaining(st, st.jobs[i:])
			break
		}
		slot, err := st.limiter.Acquire(ctx)
		if err != nil {
			d.logger.Warn("batch interrupted, remaining jobs are not launched", "error", err, "remaining", len(st.jobs)-i)
			d.cancelRemaining(st, st.jobs[i:])
			break
		}
		st.submitted.Add(1)
		st.wg.Add(1)
		go func(j *job) {
			defer st.wg.Done()
			defer slot.Release()
			d.runJob(ctx, st, j)
		}(j)
	}
	st.wg.Wait()

	progress := st.Progress()
	if err := st.results.Close(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to close result files")
		return progress, fmt.Errorf("failed to close result files: %w", err)
	}
	span.SetAttributes(
		attribute.Int("batch.succeeded", progress.Succeeded),
		attribute.Int("batch.failed", progress.Failed),
	)
	if ctx.Err() != nil {
		span.SetStatus(codes.Error, "batch interrupted")
	} else {
		span.SetStatus(codes.Ok, "batch finished")
	}
	d.logger.Info("batch finished",
		"batch_id", st.BatchID,
		"succeeded", progress.Succeeded,
		"failed", progress.Failed,
		"peak_in_flight", st.PeakInFlight(),
		"duration", time.Since(start).String(),
	)
	return progress, ctx.Err()
}

// stagger waits LaunchDelay between submissions. It returns false if ctx
// ended first.
func (d *Driver) stagger(ctx context.Context) bool {
	if d.opts.LaunchDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d.opts.LaunchDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// cancelRemaining settles jobs that were never launched so the batch still
// yields one row per condition.
func (d *Driver) cancelRemaining(st *State, jobs []*job) {
	for _, j := range jobs {
		record := j.newRecord(st.BatchID)
		record.State = domain.JobStateCancelled
		record.Error = "batch cancelled before launch"
		record.EndTime = record.StartTime
		d.complete(context.Background(), st, j, record, nil, d.logger.With("structure", j.cond.Structure, "pressure", j.cond.Pressure))
	}
}
