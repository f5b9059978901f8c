package http

import (
	"net/url"
	"strconv"
	"time"

	"gcmc-batch/internal/domain"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
)

// HistoryQuery is the DTO for the pagination parameters of /runs/{structure}.
type HistoryQuery struct {
	Page     int `validate:"gte=1"`
	PageSize int `validate:"gte=1,lte=100"`
}

// ParseHistoryQuery reads page and pageSize, defaulting the absent ones.
// Malformed numbers are kept as zero so validation rejects them.
func ParseHistoryQuery(q url.Values) HistoryQuery {
	return HistoryQuery{
		Page:     intParam(q, "page", defaultPage),
		PageSize: intParam(q, "pageSize", defaultPageSize),
	}
}

func intParam(q url.Values, key string, def int) int {
	raw := q.Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

// ExecutionResponse is the DTO of one job in the status API.
type ExecutionResponse struct {
	ID              string          `json:"id"`
	Structure       string          `json:"structure"`
	Pressure        string          `json:"pressure,omitempty"`
	Temperature     string          `json:"temperature"`
	State           domain.JobState `json:"state"`
	Terminal        bool            `json:"terminal"`
	ProcessExited   bool            `json:"process_exited"`
	ExitCode        int             `json:"exit_code"`
	ReportFinalized bool            `json:"report_finalized"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         *time.Time      `json:"end_time,omitempty"`
	DurationSeconds float64         `json:"duration_seconds,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// FromRecord converts a domain.ExecutionRecord to its response DTO.
func FromRecord(r *domain.ExecutionRecord) ExecutionResponse {
	resp := ExecutionResponse{
		ID:              r.ID,
		Structure:       r.Structure,
		Pressure:        r.Pressure,
		Temperature:     r.Temperature,
		State:           r.State,
		Terminal:        r.State.Terminal(),
		ProcessExited:   r.ProcessExited,
		ExitCode:        r.ExitCode,
		ReportFinalized: r.ReportFinalized,
		StartTime:       r.StartTime,
		Error:           r.Error,
	}
	if !r.EndTime.IsZero() {
		end := r.EndTime
		resp.EndTime = &end
		resp.DurationSeconds = end.Sub(r.StartTime).Seconds()
	}
	return resp
}

// RunResponse is the body of GET /runs/.
type RunResponse struct {
	Progress   domain.Progress     `json:"progress"`
	Executions []ExecutionResponse `json:"executions"`
}

func fromRecords(records []*domain.ExecutionRecord) []ExecutionResponse {
	out := make([]ExecutionResponse, 0, len(records))
	for _, r := range records {
		out = append(out, FromRecord(r))
	}
	return out
}
