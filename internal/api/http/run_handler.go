// internal/api/http/run_handler.go
package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"gcmc-batch/internal/domain"
	"gcmc-batch/internal/metrics"
	"gcmc-batch/internal/xjson"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ProgressSource reports the counters of the running batch.
type ProgressSource interface {
	Progress() domain.Progress
}

// RunHandler serves the read-only status of the current batch.
type RunHandler struct {
	ledger   domain.ExecutionRepository
	progress ProgressSource
	logger   *slog.Logger
	validate *validator.Validate
	tracer   trace.Tracer
}

// NewRunHandler creates a RunHandler over the batch's ledger.
func NewRunHandler(ledger domain.ExecutionRepository, progress ProgressSource, logger *slog.Logger) *RunHandler {
	return &RunHandler{
		ledger:   ledger,
		progress: progress,
		logger:   logger.With("component", "run-handler"),
		validate: validator.New(),
		tracer:   otel.Tracer("gcmc-batch-api"),
	}
}

// A helper struct to capture the status code
type instrumentedResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *instrumentedResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// RegisterRoutes registers the run routes to the http.ServeMux.
func (h *RunHandler) RegisterRoutes(mux *http.ServeMux) {
	baseHandler := http.HandlerFunc(h.handleRuns)

	instrumentedHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := "/runs/"
		switch parts := splitPath(r.URL.Path); len(parts) {
		case 2:
			path = "/runs/{structure}"
		case 3:
			path = "/runs/{structure}/{id}"
		}

		ctx, span := h.tracer.Start(r.Context(), "HTTP "+r.Method+" "+path, trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		))
		defer span.End()

		r = r.WithContext(ctx)

		iw := &instrumentedResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		baseHandler.ServeHTTP(iw, r)

		metrics.HttpRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(iw.statusCode)).Inc()

		span.SetAttributes(attribute.Int("http.status_code", iw.statusCode))
		if iw.statusCode >= 500 {
			span.SetStatus(codes.Error, "Server Error")
		}
	})

	mux.Handle("/runs/", instrumentedHandler)
}

func splitPath(p string) []string {
	return strings.Split(strings.Trim(p, "/"), "/")
}

// handleRuns dispatches /runs/, /runs/{structure} and /runs/{structure}/{id}.
func (h *RunHandler) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	parts := splitPath(r.URL.Path)
	if len(parts) < 1 || parts[0] != "runs" {
		http.NotFound(w, r)
		return
	}
	switch len(parts) {
	case 1:
		h.handleListRuns(w, r)
	case 2:
		h.handleStructureHistory(w, r, parts[1])
	case 3:
		h.handleGetExecution(w, r, parts[2])
	default:
		http.NotFound(w, r)
	}
}

// handleListRuns handles GET /runs/: progress plus every record of the batch.
func (h *RunHandler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.ListRuns")
	defer span.End()

	progress := h.progress.Progress()
	records, err := h.ledger.List(ctx, progress.BatchID)
	if err != nil {
		span.SetStatus(codes.Error, "Failed to list executions")
		span.RecordError(err)
		h.logger.Error("error listing executions", "batch_id", progress.BatchID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, RunResponse{Progress: progress, Executions: fromRecords(records)})
}

// handleStructureHistory handles GET /runs/{structure}?page=&pageSize=
func (h *RunHandler) handleStructureHistory(w http.ResponseWriter, r *http.Request, structure string) {
	ctx, span := h.tracer.Start(r.Context(), "handler.StructureHistory")
	defer span.End()
	span.SetAttributes(attribute.String("job.structure", structure))

	query := ParseHistoryQuery(r.URL.Query())
	if err := h.validate.Struct(query); err != nil {
		span.SetStatus(codes.Error, "Validation failed")
		span.RecordError(err)
		var validationErrors []string
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				validationErrors = append(validationErrors,
					"Field '"+fe.Field()+"' failed on the '"+fe.Tag()+"' tag.",
				)
			}
		}
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "Validation failed",
			"details": validationErrors,
		})
		return
	}
	span.SetAttributes(attribute.Int("page", query.Page), attribute.Int("page_size", query.PageSize))

	batchID := h.progress.Progress().BatchID
	records, err := h.ledger.ListByStructure(ctx, batchID, structure, query.Page, query.PageSize)
	if err != nil {
		span.SetStatus(codes.Error, "Failed to list structure history")
		span.RecordError(err)
		h.logger.Error("error listing structure history", "structure", structure, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, fromRecords(records))
}

// handleGetExecution handles GET /runs/{structure}/{id}.
func (h *RunHandler) handleGetExecution(w http.ResponseWriter, r *http.Request, id string) {
	ctx, span := h.tracer.Start(r.Context(), "handler.GetExecution")
	defer span.End()
	span.SetAttributes(attribute.String("execution.id", id))

	record, err := h.ledger.Get(ctx, h.progress.Progress().BatchID, id)
	if err != nil {
		span.SetStatus(codes.Error, "Failed to get execution")
		span.RecordError(err)
		h.logger.Warn("error getting execution", "execution_id", id, "error", err)
		if errors.Is(err, domain.ErrExecutionNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, FromRecord(record))
}

func (h *RunHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := xjson.Marshal(v)
	if err != nil {
		h.logger.Error("failed to encode response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
