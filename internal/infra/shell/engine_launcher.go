// internal/infra/shell/engine_launcher.go
package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"gcmc-batch/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// engineLauncher implements domain.Launcher by starting local processes.
type engineLauncher struct {
	logger *slog.Logger
	tracer trace.Tracer
}

// NewEngineLauncher creates a launcher for local engine processes.
func NewEngineLauncher(logger *slog.Logger) domain.Launcher {
	return &engineLauncher{
		logger: logger.With("component", "launcher"),
		tracer: otel.Tracer("gcmc-batch-launcher"),
	}
}

// Launch starts the engine described by spec and returns as soon as the
// process is running. The process is not bound to ctx: a job that gives up
// waiting leaves the engine running.
func (l *engineLauncher) Launch(ctx context.Context, spec domain.LaunchSpec) (domain.Process, error) {
	_, span := l.tracer.Start(ctx, "launcher.Launch",
		trace.WithAttributes(
			attribute.String("launch.name", spec.Name),
			attribute.String("launch.binary", spec.Binary),
			attribute.String("launch.dir", spec.Dir),
		))
	defer span.End()

	cmd := exec.Command(spec.Binary, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)

	var capture *os.File
	if spec.CapturePath != "" {
		f, err := os.Create(spec.CapturePath)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to create capture file")
			return nil, fmt.Errorf("failed to create capture file: %w", err)
		}
		capture = f
		cmd.Stdout = f
		cmd.Stderr = f
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if capture != nil {
			capture.Close()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "engine failed to start")
		return nil, fmt.Errorf("failed to start %s: %w", spec.Binary, err)
	}

	p := &process{pid: cmd.Process.Pid, done: make(chan struct{})}
	span.SetAttributes(attribute.Int("launch.pid", p.pid))
	l.logger.Info("engine started", "name", spec.Name, "pid", p.pid, "dir", spec.Dir)

	go func() {
		err := cmd.Wait()
		if capture != nil {
			capture.Close()
		}
		res := domain.ProcessResult{ExitCode: -1, Err: err, Duration: time.Since(start)}
		if cmd.ProcessState != nil {
			res.ExitCode = cmd.ProcessState.ExitCode()
		}
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			l.logger.Warn("engine wait failed", "name", spec.Name, "pid", p.pid, "error", err)
		}
		p.finish(res)
	}()

	return p, nil
}

type process struct {
	pid    int
	done   chan struct{}
	mu     sync.Mutex
	result domain.ProcessResult
}

func (p *process) Done() <-chan struct{} { return p.done }

func (p *process) Result() domain.ProcessResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

func (p *process) finish(res domain.ProcessResult) {
	p.mu.Lock()
	p.result = res
	p.mu.Unlock()
	close(p.done)
}
