package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcmc-batch/internal/domain"
	"gcmc-batch/internal/infra/etcd"
)

// writeBatchConfig lays out a minimal isotherm batch whose results directory
// already exists, so the run is rejected while preparing.
func writeBatchConfig(t *testing.T, extra string) (configPath, workDir string) {
	t.Helper()
	root := t.TempDir()
	for _, d := range []string{"RASPA", "cifs", "forcefield", "results"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "cifs", "MOF-5.cif"), []byte("data_MOF-5\n"), 0o644))
	template := filepath.Join(root, "simulation.input")
	require.NoError(t, os.WriteFile(template, []byte("FrameworkName {cif_name}\nComponent 0 MoleculeName CO2\n"), 0o644))

	workDir = filepath.Join(root, "cmd")
	configPath = filepath.Join(root, "config.yaml")
	body := "mode: isotherm\ntemperature: 298\npressures: [1e5]\n" +
		"engine_dir: " + filepath.Join(root, "RASPA") + "\n" +
		"cif_location: " + filepath.Join(root, "cifs") + "\n" +
		"template_path: " + template + "\n" +
		"forcefield_dir: " + filepath.Join(root, "forcefield") + "\n" +
		"work_dir: " + workDir + "\n" +
		"results_dir: " + filepath.Join(root, "results") + "\n" +
		"progress_schedule: \"\"\n" +
		extra
	require.NoError(t, os.WriteFile(configPath, []byte(body), 0o644))
	return configPath, workDir
}

func TestRunBatch_ExistingOutputIsReturned(t *testing.T) {
	path, workDir := writeBatchConfig(t, "")

	err := runBatch([]string{"--config", path})
	assert.ErrorIs(t, err, domain.ErrOutputExists)
	assert.NoDirExists(t, workDir)
}

func TestRunBatch_FailedPrepareReleasesRunLock(t *testing.T) {
	endpoints := os.Getenv("GCMC_TEST_ETCD_ENDPOINTS")
	if endpoints == "" {
		t.Skip("GCMC_TEST_ETCD_ENDPOINTS not set")
	}
	list := strings.Split(endpoints, ",")
	path, workDir := writeBatchConfig(t, "ledger:\n  backend: etcd\n  etcd_endpoints: ["+strings.Join(list, ", ")+"]\n")

	err := runBatch([]string{"--config", path})
	require.ErrorIs(t, err, domain.ErrOutputExists)

	cli, err := etcd.NewClient(list, 5*time.Second)
	require.NoError(t, err)
	defer cli.Close()

	lock, err := etcd.NewEtcdLocker(cli).Lock(context.Background(), etcd.RunLockName(workDir))
	require.NoError(t, err, "run lock must be free once the failed run returns")
	require.NoError(t, lock.Unlock(context.Background()))
}
