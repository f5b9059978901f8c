package completion

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marker = "Simulation finished"

func TestAwaitCompletion_MarkerAlreadyPresent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "output.txt"), []byte("...\nSimulation finished, 0 warnings\n"), 0o644))

	start := time.Now()
	assert.True(t, AwaitCompletion(context.Background(), dir, "output.txt", marker, time.Second, 100*time.Millisecond))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestAwaitCompletion_TimeoutBounds(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, path string)
	}{
		{name: "missing artifact", prepare: func(t *testing.T, path string) {}},
		{name: "empty artifact", prepare: func(t *testing.T, path string) {
			require.NoError(t, os.WriteFile(path, nil, 0o644))
		}},
		{name: "marker never written", prepare: func(t *testing.T, path string) {
			require.NoError(t, os.WriteFile(path, []byte("Cycle 1000 of 5000\n"), 0o644))
		}},
		{name: "invalid encoding", prepare: func(t *testing.T, path string) {
			require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x81}, 0o644))
		}},
	}
	const (
		timeout = 200 * time.Millisecond
		poll    = 50 * time.Millisecond
		slack   = 100 * time.Millisecond
	)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.prepare(t, filepath.Join(dir, "output.txt"))

			start := time.Now()
			got := AwaitCompletion(context.Background(), dir, "output.txt", marker, timeout, poll)
			elapsed := time.Since(start)

			assert.False(t, got)
			assert.GreaterOrEqual(t, elapsed, timeout)
			assert.LessOrEqual(t, elapsed, timeout+poll+slack)
		})
	}
}

func TestAwaitCompletion_ObservesMarkerAtNextPoll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "output.txt")
	require.NoError(t, os.WriteFile(path, []byte("running\n"), 0o644))

	const (
		appearAt = 120 * time.Millisecond
		poll     = 40 * time.Millisecond
	)
	go func() {
		time.Sleep(appearAt)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = f.WriteString("Simulation finished, 0 warnings\n")
	}()

	start := time.Now()
	got := AwaitCompletion(context.Background(), dir, "output.txt", marker, 5*time.Second, poll)
	elapsed := time.Since(start)

	assert.True(t, got)
	assert.GreaterOrEqual(t, elapsed, appearAt)
	assert.Less(t, elapsed, appearAt+poll+150*time.Millisecond)
}

func TestAwaitCompletion_Glob(t *testing.T) {
	dir := t.TempDir()
	systemDir := filepath.Join(dir, "Output", "System_0")
	require.NoError(t, os.MkdirAll(systemDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(systemDir, "output_MOF_1.1.1_298.000000_100000.data"), []byte("Simulation finished"), 0o644))

	assert.True(t, AwaitCompletion(context.Background(), dir, "Output/System_0/*", marker, time.Second, 10*time.Millisecond))
}

func TestAwaitCompletion_GlobSyntaxInDirectory(t *testing.T) {
	for _, name := range []string{"MOF[1]", "a*b", "ZIF?8"} {
		t.Run(name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), name)
			systemDir := filepath.Join(dir, "Output", "System_0")
			require.NoError(t, os.MkdirAll(systemDir, 0o755))
			report := filepath.Join(systemDir, "output_MOF.data")
			require.NoError(t, os.WriteFile(report, []byte("Simulation finished"), 0o644))

			assert.True(t, AwaitCompletion(context.Background(), dir, "Output/System_0/*", marker, 200*time.Millisecond, 50*time.Millisecond))
			got, err := FirstMatch(dir, "Output/System_0/*")
			require.NoError(t, err)
			assert.Equal(t, report, got)
		})
	}
}

func TestAwaitCompletion_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	assert.False(t, AwaitCompletion(ctx, t.TempDir(), "output.txt", marker, 10*time.Second, 20*time.Millisecond))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFirstMatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Output", "System_0_sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Output", "System_0b.data"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Output", "System_0a.data"), []byte("a"), 0o644))

	got, err := FirstMatch(dir, "Output/System_0*")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Output", "System_0a.data"), got)

	_, err = FirstMatch(dir, "Missing/*")
	assert.Error(t, err)
}
