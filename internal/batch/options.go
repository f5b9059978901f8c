// internal/batch/options.go
package batch

import (
	"fmt"
	"path/filepath"
	"time"

	"gcmc-batch/internal/config"
	"gcmc-batch/internal/domain"
	"gcmc-batch/internal/input"
)

// Options is everything the driver needs to run one batch.
type Options struct {
	Mode          domain.Mode
	Structures    []string // absolute CIF paths, in enumeration order
	Template      *input.Template
	ForcefieldDir string
	Temperature   string
	Pressures     []string
	LoadingUnits  []string // isotherm mode only; empty means every unit
	CutoffVDW     float64
	MaxTasks      int
	WorkDir       string
	ResultsDir    string

	Binary           string
	Args             []string
	Env              []string
	CaptureFile      string
	CompletionFile   string
	CompletionMarker string
	ReportFile       string

	PollInterval time.Duration
	Timeout      time.Duration
	LaunchDelay  time.Duration
}

// OptionsFromConfig resolves the structures and the input template named by cfg.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	structures, err := cfg.Structures()
	if err != nil {
		return Options{}, err
	}
	tmpl, err := input.Load(cfg.TemplatePath)
	if err != nil {
		return Options{}, err
	}
	forcefieldDir, err := filepath.Abs(cfg.ForcefieldDir)
	if err != nil {
		return Options{}, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	return Options{
		Mode:             cfg.SimulationMode(),
		Structures:       structures,
		Template:         tmpl,
		ForcefieldDir:    forcefieldDir,
		Temperature:      cfg.Temperature,
		Pressures:        cfg.Pressures,
		LoadingUnits:     cfg.LoadingUnits,
		CutoffVDW:        cfg.CutoffVDW,
		MaxTasks:         cfg.MaxTasks,
		WorkDir:          cfg.WorkDir,
		ResultsDir:       cfg.ResultsDir,
		Binary:           cfg.EngineCommand(),
		Args:             cfg.Args,
		Env:              cfg.EngineEnv(),
		CaptureFile:      cfg.CaptureFile,
		CompletionFile:   cfg.CompletionFile,
		CompletionMarker: cfg.CompletionMarker,
		ReportFile:       cfg.ReportFile,
		PollInterval:     cfg.PollInterval,
		Timeout:          cfg.Timeout,
		LaunchDelay:      cfg.LaunchDelay,
	}, nil
}
