package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcmc-batch/internal/domain"
)

type fixture struct {
	root      string
	engineDir string
	cifDir    string
	template  string
	ffDir     string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		root:      root,
		engineDir: filepath.Join(root, "RASPA"),
		cifDir:    filepath.Join(root, "cifs"),
		template:  filepath.Join(root, "simulation.input"),
		ffDir:     filepath.Join(root, "forcefield"),
	}
	for _, d := range []string{f.engineDir, f.cifDir, f.ffDir} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	require.NoError(t, os.WriteFile(f.template, []byte("FrameworkName {cif_name}\n"), 0o644))
	for _, name := range []string{"ZIF-8.cif", "MOF-5.cif", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(f.cifDir, name), []byte("data_x\n"), 0o644))
	}
	return f
}

func (f fixture) writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(f.root, "config.yaml")
	base := "engine_dir: " + f.engineDir + "\n" +
		"cif_location: " + f.cifDir + "\n" +
		"template_path: " + f.template + "\n" +
		"forcefield_dir: " + f.ffDir + "\n" +
		"work_dir: " + filepath.Join(f.root, "cmd") + "\n" +
		"results_dir: " + filepath.Join(f.root, "results") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(base+body), 0o644))
	return path
}

func loadWith(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := NewFlagSet("test")
	require.NoError(t, fs.Parse(args))
	return Load(fs)
}

func TestLoad_FileWithProfileDefaults(t *testing.T) {
	f := newFixture(t)
	path := f.writeConfig(t, "mode: isotherm\ntemperature: 298\npressures: [1e4, 100000]\nmax_tasks: 4\n")

	cfg, err := loadWith(t, "--config", path)
	require.NoError(t, err)

	assert.Equal(t, domain.ModeIsotherm, cfg.SimulationMode())
	assert.Equal(t, "298", cfg.Temperature)
	assert.Equal(t, []string{"10000", "100000"}, cfg.Pressures)
	assert.Len(t, cfg.LoadingUnits, 5)
	assert.Equal(t, 4, cfg.MaxTasks)
	assert.Equal(t, 12.8, cfg.CutoffVDW)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, time.Hour, cfg.Timeout)
	assert.Equal(t, 300*time.Millisecond, cfg.LaunchDelay)
	assert.Equal(t, "Simulation finished", cfg.CompletionMarker)
	assert.Equal(t, "Output/System_0/*", cfg.ReportFile)
	assert.Equal(t, []string{"simulation.input"}, cfg.Args)
	assert.Equal(t, filepath.Join(f.engineDir, "bin", "simulate"), cfg.EngineCommand())
	assert.Equal(t, []string{"RASPA_DIR=" + f.engineDir, "LD_LIBRARY_PATH=" + filepath.Join(f.engineDir, "lib")}, cfg.EngineEnv())
	assert.Equal(t, "memory", cfg.Ledger.Backend)
}

func TestLoad_ExplicitEngineSettingsWinOverProfile(t *testing.T) {
	f := newFixture(t)
	path := f.writeConfig(t, "mode: graspa-henry\ntemperature: 298\ncompletion_marker: DONE\n")

	cfg, err := loadWith(t, "--config", path)
	require.NoError(t, err)

	assert.Equal(t, "DONE", cfg.CompletionMarker)
	assert.Equal(t, "gRASPA", cfg.EngineCommand())
	assert.Equal(t, "output.txt", cfg.CompletionFile)
	assert.Equal(t, "Output/System_0*.data", cfg.ReportFile)
}

func TestLoad_EnvAndFlagsOverride(t *testing.T) {
	f := newFixture(t)
	path := f.writeConfig(t, "mode: isotherm\ntemperature: 298\npressures: [1e5]\nmax_tasks: 2\n")
	t.Setenv("GCMC_MAX_TASKS", "8")
	t.Setenv("GCMC_LEDGER_BACKEND", "badger")
	t.Setenv("GCMC_TIMEOUT", "90s")

	cfg, err := loadWith(t, "--config", path, "--timeout", "2m", "--pressures", "1e5,2e5", "--loading-units", "mol/kg")
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.MaxTasks)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.Equal(t, []string{"1e5", "2e5"}, cfg.Pressures)
	assert.Equal(t, []string{"mol/kg"}, cfg.LoadingUnits)
	assert.Equal(t, "badger", cfg.Ledger.Backend)
	assert.Equal(t, filepath.Join(f.root, "results", ".ledger"), cfg.Ledger.Path)
}

func TestLoad_ValidationListsEveryProblem(t *testing.T) {
	f := newFixture(t)
	path := f.writeConfig(t, "mode: gcmc\ntemperature: hot\nmax_tasks: 0\ntimeout: 0s\n")

	_, err := loadWith(t, "--config", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	for _, field := range []string{"Mode", "Temperature", "MaxTasks", "Timeout"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := loadWith(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestValidate_PressureRulesPerMode(t *testing.T) {
	f := newFixture(t)

	t.Run("isotherm needs a pressure", func(t *testing.T) {
		_, err := loadWith(t, "--config", f.writeConfig(t, "mode: isotherm\ntemperature: 298\n"))
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("henry takes at most one", func(t *testing.T) {
		_, err := loadWith(t, "--config", f.writeConfig(t, "mode: henry\ntemperature: 298\npressures: [1e5, 2e5]\n"))
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("henry without pressure", func(t *testing.T) {
		cfg, err := loadWith(t, "--config", f.writeConfig(t, "mode: henry\ntemperature: 298\n"))
		require.NoError(t, err)
		assert.Empty(t, cfg.Pressures)
	})
}

func TestValidate_ProgressSchedule(t *testing.T) {
	f := newFixture(t)
	_, err := loadWith(t, "--config", f.writeConfig(t, "mode: henry\ntemperature: 298\nprogress_schedule: every now and then\n"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestConfig_Structures(t *testing.T) {
	f := newFixture(t)

	cfg := &Config{CIFLocation: f.cifDir}
	files, err := cfg.Structures()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(f.cifDir, "MOF-5.cif"), filepath.Join(f.cifDir, "ZIF-8.cif")}, files)

	cfg.CIFLocation = filepath.Join(f.cifDir, "ZIF-8.cif")
	files, err = cfg.Structures()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(f.cifDir, "ZIF-8.cif")}, files)

	cfg.CIFLocation = f.ffDir
	_, err = cfg.Structures()
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
