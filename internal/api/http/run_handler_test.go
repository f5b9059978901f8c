package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcmc-batch/internal/domain"
	"gcmc-batch/internal/infra/memory"
	"gcmc-batch/internal/xjson"
)

type fixedProgress domain.Progress

func (p fixedProgress) Progress() domain.Progress { return domain.Progress(p) }

func newTestServer(t *testing.T) (*httptest.Server, domain.ExecutionRepository) {
	t.Helper()
	ledger := memory.NewMemoryExecutionRepository()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	records := []*domain.ExecutionRecord{
		{ID: "e1", BatchID: "b1", Structure: "MOF-5", Pressure: "1000", State: domain.JobStateSucceeded, StartTime: base, EndTime: base.Add(time.Minute)},
		{ID: "e2", BatchID: "b1", Structure: "MOF-5", Pressure: "2000", State: domain.JobStateTimedOut, StartTime: base.Add(time.Second), EndTime: base.Add(time.Hour), Error: "completion marker not observed"},
		{ID: "e3", BatchID: "b1", Structure: "ZIF-8", Pressure: "1000", State: domain.JobStateRunning, StartTime: base.Add(2 * time.Second)},
		{ID: "x1", BatchID: "other", Structure: "MOF-5", State: domain.JobStateSucceeded, StartTime: base},
	}
	for _, r := range records {
		require.NoError(t, ledger.Save(context.Background(), r))
	}

	h := NewRunHandler(ledger, fixedProgress{BatchID: "b1", Total: 4, Submitted: 3, Succeeded: 1, Failed: 1}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, ledger
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, xjson.Unmarshal(body, v))
	}
	return resp.StatusCode
}

func TestRunHandler_ListRuns(t *testing.T) {
	srv, _ := newTestServer(t)

	var got RunResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/runs/", &got))
	assert.Equal(t, "b1", got.Progress.BatchID)
	assert.Equal(t, 4, got.Progress.Total)
	require.Len(t, got.Executions, 3)
	assert.Equal(t, "e1", got.Executions[0].ID)
	assert.True(t, got.Executions[0].Terminal)
	assert.Equal(t, 60.0, got.Executions[0].DurationSeconds)
	assert.False(t, got.Executions[2].Terminal)
	assert.Nil(t, got.Executions[2].EndTime)
}

func TestRunHandler_StructureHistory(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name   string
		query  string
		status int
		ids    []string
	}{
		{"defaults", "", http.StatusOK, []string{"e2", "e1"}},
		{"second page", "?page=2&pageSize=1", http.StatusOK, []string{"e1"}},
		{"past the end", "?page=3&pageSize=5", http.StatusOK, []string{}},
		{"page zero", "?page=0", http.StatusBadRequest, nil},
		{"page size too large", "?pageSize=500", http.StatusBadRequest, nil},
		{"not a number", "?page=abc", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []ExecutionResponse
			status := getJSON(t, srv.URL+"/runs/MOF-5"+tt.query, &got)
			require.Equal(t, tt.status, status)
			if tt.status != http.StatusOK {
				return
			}
			ids := []string{}
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestRunHandler_GetExecution(t *testing.T) {
	srv, _ := newTestServer(t)

	var got ExecutionResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/runs/MOF-5/e2", &got))
	assert.Equal(t, domain.JobStateTimedOut, got.State)
	assert.Equal(t, "completion marker not observed", got.Error)

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/runs/MOF-5/x1", nil))
}

func TestRunHandler_RejectsWrites(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Post(srv.URL+"/runs/", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
