// cmd/gcmcbatch/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	http_api "gcmc-batch/internal/api/http"
	"gcmc-batch/internal/batch"
	"gcmc-batch/internal/config"
	"gcmc-batch/internal/domain"
	"gcmc-batch/internal/infra/badger"
	"gcmc-batch/internal/infra/etcd"
	"gcmc-batch/internal/infra/memory"
	"gcmc-batch/internal/infra/shell"
	"gcmc-batch/internal/report"
	"gcmc-batch/internal/results"
	"gcmc-batch/internal/scheduler"
	"gcmc-batch/internal/tracing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel/attribute"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const usage = `usage:
  gcmcbatch [run] [flags]              run a simulation batch
  gcmcbatch loadings <dir> [flags]     summarize RASPA3 output*.txt loadings into one CSV
  gcmcbatch parse <report>... [flags]  summarize finished RASPA2 reports into one CSV
  gcmcbatch zeo <dir> [flags]          collect Zeo++ .res/.sa/.vol descriptors into one CSV`

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	command, args := "run", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	switch command {
	case "run":
		if err := runBatch(args); err != nil {
			log.Fatalf("%v", err)
		}
	case "loadings":
		runLoadings(args, logger)
	case "parse":
		runParse(args, logger)
	case "zeo":
		runZeo(args, logger)
	case "help":
		fmt.Println(usage)
	default:
		log.Fatalf("unknown command %q\n%s", command, usage)
	}
}

// runBatch runs one batch. Errors are returned rather than fatal so that the
// run lock and the etcd client are released on every path.
func runBatch(args []string) error {
	// 1. Load configuration
	fs := config.NewFlagSet("run")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	cfg, err := config.Load(fs)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	// 2. Build the batch and claim its output directories
	opts, err := batch.OptionsFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to resolve batch inputs: %w", err)
	}
	driver, err := batch.NewDriver(opts, shell.NewEngineLauncher(logger), logger)
	if err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	// Nodes sharing an etcd ledger take a lock on the working directory
	// before claiming it.
	var etcdClient *clientv3.Client
	if cfg.Ledger.Backend == "etcd" {
		etcdClient, err = etcd.NewClient(cfg.Ledger.EtcdEndpoints, cfg.Ledger.EtcdTimeout)
		if err != nil {
			return fmt.Errorf("failed to connect to etcd: %w", err)
		}
		defer etcdClient.Close()
		logger.Info("connected to etcd", "endpoints", cfg.Ledger.EtcdEndpoints)

		lock, err := etcd.NewEtcdLocker(etcdClient).Lock(context.Background(), etcd.RunLockName(cfg.WorkDir))
		if err != nil {
			return fmt.Errorf("another batch is using %s: %w", cfg.WorkDir, err)
		}
		defer func() {
			if err := lock.Unlock(context.Background()); err != nil {
				logger.Error("failed to release run lock", "error", err)
			}
		}()
	}

	state, err := driver.Prepare()
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	// 3. Tracing writes under the results directory, which exists from here on
	tracerShutdown, err := initTracing(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerShutdown(context.Background()); err != nil {
			log.Printf("failed to shutdown tracer: %v", err)
		}
	}()

	// 4. Execution ledger
	ledger, closeLedger, err := openLedger(cfg, etcdClient, logger)
	if err != nil {
		return fmt.Errorf("failed to open execution ledger: %w", err)
	}
	defer closeLedger()

	// 5. Root context, cancelled on SIGINT/SIGTERM
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupGracefulShutdown(cancel)

	// 6. Status API and metrics
	var server *http.Server
	if cfg.StatusListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		http_api.NewRunHandler(ledger, state, logger).RegisterRoutes(mux)
		server = &http.Server{Addr: cfg.StatusListenAddr, Handler: mux}
		go func() {
			logger.Info("starting status server", "addr", cfg.StatusListenAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("status server failed", "error", err)
			}
		}()
	}

	// 7. Progress reporter
	var reporterWG sync.WaitGroup
	reporterCtx, stopReporter := context.WithCancel(rootCtx)
	if cfg.ProgressSchedule != "" {
		reporter := scheduler.NewProgressReporter(state, logger)
		reporterWG.Add(1)
		go func() {
			defer reporterWG.Done()
			if err := reporter.Start(reporterCtx, cfg.ProgressSchedule); err != nil {
				logger.Error("progress reporter stopped with error", "error", err)
			}
		}()
	}

	// 8. Run until every job has written its row
	progress, runErr := driver.Run(rootCtx, ledger)
	stopReporter()
	reporterWG.Wait()

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("status server shutdown failed", "error", err)
		}
		shutdownCancel()
	}

	logger.Info("batch summary",
		"batch_id", progress.BatchID,
		"total", progress.Total,
		"succeeded", progress.Succeeded,
		"failed", progress.Failed,
		"result_files", state.ResultFiles(),
	)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("batch failed: %w", runErr)
	}
	return nil
}

func runLoadings(args []string, logger *slog.Logger) {
	fs := pflag.NewFlagSet("loadings", pflag.ContinueOnError)
	out := fs.String("out", "raspa3_loadings.csv", "CSV file receiving the summary")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}
	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}

	summary, err := report.SummarizeLoadings(dir)
	if err != nil {
		log.Fatalf("Failed to summarize loadings: %v", err)
	}
	if err := writeSummary(*out, summary, logger); err != nil {
		log.Fatalf("%v", err)
	}
	logger.Info("loadings summarized", "dir", dir, "file", *out, "rows", len(summary.Records))
}

func runParse(args []string, logger *slog.Logger) {
	fs := pflag.NewFlagSet("parse", pflag.ContinueOnError)
	out := fs.String("out", "raspa2_reports.csv", "CSV file receiving the summary")
	unit := fs.String("surface-unit", string(report.SurfaceM2PerCm3), "surface area unit: A^2, m^2/g or m^2/cm^3")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}
	surface, err := report.ParseSurfaceUnit(*unit)
	if err != nil {
		log.Fatalf("Invalid surface unit: %v", err)
	}

	summary, err := report.SummarizeReports(fs.Args(), surface)
	if err != nil {
		log.Fatalf("Failed to summarize reports: %v", err)
	}
	if err := writeSummary(*out, summary, logger); err != nil {
		log.Fatalf("%v", err)
	}
	logger.Info("reports summarized", "reports", fs.NArg(), "file", *out)
}

func runZeo(args []string, logger *slog.Logger) {
	fs := pflag.NewFlagSet("zeo", pflag.ContinueOnError)
	out := fs.String("out", "zeo_descriptors.csv", "CSV file receiving the descriptors")
	cifs := fs.String("cifs", "", "directory of CIF files naming the structures to collect; default is every structure found")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}
	dir := "zeo_results"
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}

	var names []string
	if *cifs != "" {
		paths, err := (&config.Config{CIFLocation: *cifs}).Structures()
		if err != nil {
			log.Fatalf("Failed to list structures: %v", err)
		}
		for _, p := range paths {
			names = append(names, domain.StructureName(filepath.Base(p)))
		}
	}

	summary, err := report.SummarizeZeo(dir, names)
	if err != nil {
		log.Fatalf("Failed to collect Zeo++ descriptors: %v", err)
	}
	if err := writeSummary(*out, summary, logger); err != nil {
		log.Fatalf("%v", err)
	}
	logger.Info("zeo++ descriptors collected", "dir", dir, "file", *out, "rows", len(summary.Records))
}

// writeSummary writes a summary through the result aggregator so it follows
// the same row layout as batch results.
func writeSummary(out string, summary *report.Summary, logger *slog.Logger) error {
	agg := results.NewAggregator(logger)
	if err := agg.Declare(out, summary.Headers); err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	for _, rec := range summary.Records {
		if err := agg.Append(out, rec); err != nil {
			agg.Close()
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
	}
	if err := agg.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", out, err)
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}

// initTracing exports spans to the configured file, or discards them when
// tracing is disabled.
func initTracing(cfg *config.Config) (func(context.Context) error, error) {
	attrs := []attribute.KeyValue{
		attribute.String("gcmc.mode", string(cfg.SimulationMode())),
		attribute.String("gcmc.work_dir", cfg.WorkDir),
	}
	if !cfg.Tracing.Enabled {
		return tracing.InitTracer("gcmc-batch", version, io.Discard, attrs...)
	}
	path := cfg.Tracing.File
	if path == "" {
		path = filepath.Join(cfg.ResultsDir, "traces.json")
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	shutdown, err := tracing.InitTracer("gcmc-batch", version, f, attrs...)
	if err != nil {
		f.Close()
		return nil, err
	}
	return func(ctx context.Context) error {
		err := shutdown(ctx)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		return err
	}, nil
}

// openLedger opens the configured execution ledger backend. client is only
// used by the etcd backend.
func openLedger(cfg *config.Config, client *clientv3.Client, logger *slog.Logger) (domain.ExecutionRepository, func(), error) {
	switch cfg.Ledger.Backend {
	case "badger":
		repo, err := badger.Open(cfg.Ledger.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { closeRepo(repo, logger) }, nil
	case "etcd":
		repo := etcd.NewEtcdExecutionRepository(client, logger)
		return repo, func() { closeRepo(repo, logger) }, nil
	}
	repo := memory.NewMemoryExecutionRepository()
	return repo, func() { closeRepo(repo, logger) }, nil
}

func closeRepo(repo domain.ExecutionRepository, logger *slog.Logger) {
	if err := repo.Close(); err != nil {
		logger.Error("failed to close execution ledger", "error", err)
	}
}

func setupGracefulShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v. Stopping batch; running engines are left to finish...", sig)
		cancel()
	}()
}
