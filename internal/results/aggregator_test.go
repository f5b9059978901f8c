package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcmc-batch/internal/domain"
)

func newTestAggregator() *Aggregator {
	return NewAggregator(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestAggregator_HeaderThenRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "MOF-5.csv")
	headers := []string{"pressure", "finished", "CO2_absolute_mol/kg", "warning"}
	a := newTestAggregator()

	require.NoError(t, a.Declare(path, headers))
	require.NoError(t, a.Append(path, domain.ResultRecord{Key: "100000", Values: map[string]string{
		"finished":            "True",
		"CO2_absolute_mol/kg": "1.789",
	}}))
	require.NoError(t, a.Append(path, domain.FailedRecord("200000")))
	require.NoError(t, a.Close())

	assert.Equal(t, [][]string{
		headers,
		{"100000", "True", "1.789", ""},
		{"200000", "Error", "", ""},
	}, readCSV(t, path))
}

func TestAggregator_DeclareTwiceFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.csv")
	a := newTestAggregator()
	defer a.Close()

	require.NoError(t, a.Declare(path, []string{"name", "warning"}))
	assert.Error(t, a.Declare(path, []string{"name", "warning"}))
}

func TestAggregator_AppendUndeclaredFails(t *testing.T) {
	a := newTestAggregator()
	defer a.Close()
	assert.Error(t, a.Append(filepath.Join(t.TempDir(), "nope.csv"), domain.FailedRecord("x")))
}

func TestAggregator_AppendAfterCloseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.csv")
	a := newTestAggregator()
	require.NoError(t, a.Declare(path, []string{"name", "warning"}))
	require.NoError(t, a.Close())
	assert.Error(t, a.Append(path, domain.FailedRecord("x")))
}

func TestAggregator_ConcurrentAppendsDoNotInterleave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "henry.csv")
	headers := []string{"name", "finished", "warning"}
	a := newTestAggregator()
	require.NoError(t, a.Declare(path, headers))

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := domain.ResultRecord{Key: fmt.Sprintf("cif-%03d", i), Values: map[string]string{
				"finished": "True",
				"warning":  "a warning, with a comma",
			}}
			assert.NoError(t, a.Append(path, rec))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, n, a.Rows(path))
	require.NoError(t, a.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, n+1)
	assert.Equal(t, headers, rows[0])
	seen := make(map[string]bool)
	for _, row := range rows[1:] {
		require.Len(t, row, len(headers))
		assert.False(t, seen[row[0]], "duplicate row %s", row[0])
		seen[row[0]] = true
	}
}
