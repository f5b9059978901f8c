// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"gcmc-batch/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. GCMC_MAX_TASKS.
const EnvPrefix = "GCMC"

// Config holds all configuration for one batch run.
// The mapstructure tags are used by Viper to unmarshal the data.
type Config struct {
	Mode          string   `mapstructure:"mode" validate:"required,mode"`
	EngineDir     string   `mapstructure:"engine_dir" validate:"required,dir"`
	CIFLocation   string   `mapstructure:"cif_location" validate:"required,file|dir"`
	TemplatePath  string   `mapstructure:"template_path" validate:"required,file"`
	ForcefieldDir string   `mapstructure:"forcefield_dir" validate:"required,dir"`
	Temperature   string   `mapstructure:"temperature" validate:"required,real"`
	Pressures     []string `mapstructure:"pressures" validate:"dive,real"`
	LoadingUnits  []string `mapstructure:"loading_units"`
	CutoffVDW     float64  `mapstructure:"cutoff_vdw" validate:"gt=0"`
	MaxTasks      int      `mapstructure:"max_tasks" validate:"gte=1"`
	WorkDir       string   `mapstructure:"work_dir" validate:"required"`
	ResultsDir    string   `mapstructure:"results_dir" validate:"required"`

	Engine `mapstructure:",squash"`

	PollInterval time.Duration `mapstructure:"poll_interval" validate:"duration_positive"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"duration_positive"`
	LaunchDelay  time.Duration `mapstructure:"launch_delay" validate:"gte=0"`

	Ledger           LedgerConfig  `mapstructure:"ledger"`
	StatusListenAddr string        `mapstructure:"status_listen_addr"`
	ProgressSchedule string        `mapstructure:"progress_schedule" validate:"omitempty,cron"`
	Tracing          TracingConfig `mapstructure:"tracing"`
	LogLevel         string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

// Engine describes how the simulation engine is launched and observed.
// Zero fields are filled from the mode's profile.
type Engine struct {
	Binary           string   `mapstructure:"engine_binary"`
	Args             []string `mapstructure:"engine_args"`
	CaptureFile      string   `mapstructure:"capture_file"`
	CompletionMarker string   `mapstructure:"completion_marker"`
	CompletionFile   string   `mapstructure:"completion_file"`
	ReportFile       string   `mapstructure:"report_file"`
}

// LedgerConfig selects where execution records are kept.
type LedgerConfig struct {
	Backend       string        `mapstructure:"backend" validate:"oneof=memory badger etcd"`
	Path          string        `mapstructure:"path"`
	EtcdEndpoints []string      `mapstructure:"etcd_endpoints" validate:"required_if=Backend etcd"`
	EtcdTimeout   time.Duration `mapstructure:"etcd_timeout"`
}

// TracingConfig controls the stdout span exporter.
type TracingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	File    string `mapstructure:"file"`
}

// SimulationMode returns the validated mode.
func (c *Config) SimulationMode() domain.Mode {
	return domain.Mode(c.Mode)
}

// EngineCommand resolves the engine binary. A binary given as a relative
// path with a directory part is taken relative to engine_dir; a bare name is
// looked up on PATH.
func (c *Config) EngineCommand() string {
	if filepath.IsAbs(c.Binary) || !strings.ContainsRune(c.Binary, filepath.Separator) {
		return c.Binary
	}
	return filepath.Join(c.EngineDir, c.Binary)
}

// EngineEnv returns the environment entries the engine needs.
func (c *Config) EngineEnv() []string {
	return []string{
		"RASPA_DIR=" + c.EngineDir,
		"LD_LIBRARY_PATH=" + filepath.Join(c.EngineDir, "lib"),
	}
}

// NewFlagSet declares the command-line flags understood by Load.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "path to the config file")
	fs.String("mode", "", "simulation mode: isotherm, henry, graspa-isotherm, graspa-henry")
	fs.String("engine-dir", "", "installation directory of the simulation engine")
	fs.String("cif-location", "", "CIF file or directory of CIF files")
	fs.String("template", "", "simulation input template")
	fs.String("forcefield-dir", "", "directory of force field files")
	fs.String("temperature", "", "temperature in K")
	fs.StringSlice("pressures", nil, "comma-separated pressures in Pa")
	fs.StringSlice("loading-units", nil, "isotherm loading units: mol/uc, cm^3/g, mol/kg, mg/g, cm^3/cm^3")
	fs.Float64("cutoff-vdw", 0, "van der Waals cutoff in Angstrom")
	fs.Int("max-tasks", 0, "maximum number of concurrent simulations")
	fs.String("work-dir", "", "root of the per-job working directories")
	fs.String("results-dir", "", "directory receiving result CSV files")
	fs.Duration("timeout", 0, "completion timeout per job")
	fs.Duration("poll-interval", 0, "completion polling interval")
	fs.String("status-addr", "", "listen address of the status API, empty disables it")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	return fs
}

var flagKeys = map[string]string{
	"mode":           "mode",
	"engine-dir":     "engine_dir",
	"cif-location":   "cif_location",
	"template":       "template_path",
	"forcefield-dir": "forcefield_dir",
	"temperature":    "temperature",
	"pressures":      "pressures",
	"loading-units":  "loading_units",
	"cutoff-vdw":     "cutoff_vdw",
	"max-tasks":      "max_tasks",
	"work-dir":       "work_dir",
	"results-dir":    "results_dir",
	"timeout":        "timeout",
	"poll-interval":  "poll_interval",
	"status-addr":    "status_listen_addr",
	"log-level":      "log_level",
}

// Load loads configuration from file, environment variables and the parsed
// flags in fs. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("mode", string(domain.ModeIsotherm))
	v.SetDefault("engine_dir", "")
	v.SetDefault("cif_location", "")
	v.SetDefault("template_path", "")
	v.SetDefault("forcefield_dir", "")
	v.SetDefault("temperature", "")
	v.SetDefault("pressures", []string{})
	v.SetDefault("loading_units", []string{"mol/uc", "cm^3/g", "mol/kg", "mg/g", "cm^3/cm^3"})
	v.SetDefault("cutoff_vdw", 12.8)
	v.SetDefault("max_tasks", 1)
	v.SetDefault("work_dir", "./cmd")
	v.SetDefault("results_dir", "./results")
	v.SetDefault("engine_binary", "")
	v.SetDefault("engine_args", []string{})
	v.SetDefault("capture_file", "")
	v.SetDefault("completion_marker", "")
	v.SetDefault("completion_file", "")
	v.SetDefault("report_file", "")
	v.SetDefault("poll_interval", "5s")
	v.SetDefault("timeout", "1h")
	v.SetDefault("launch_delay", "300ms")
	v.SetDefault("ledger.backend", "memory")
	v.SetDefault("ledger.path", "")
	v.SetDefault("ledger.etcd_endpoints", []string{"localhost:2379"})
	v.SetDefault("ledger.etcd_timeout", "5s")
	v.SetDefault("status_listen_addr", "")
	v.SetDefault("progress_schedule", "@every 30s")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.file", "")
	v.SetDefault("log_level", "info")

	// Set config file details
	configFile := ""
	if fs != nil {
		configFile, _ = fs.GetString("config")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Read environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for flag, key := range flagKeys {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
				}
			}
		}
	}

	// Read the config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}

	if err := cfg.applyProfile(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyProfile fills engine settings left blank with the mode's defaults.
func (c *Config) applyProfile() error {
	profile, ok := profiles[domain.Mode(c.Mode)]
	if !ok {
		// unknown modes are reported by Validate
		return nil
	}
	if err := mergo.Merge(&c.Engine, profile); err != nil {
		return fmt.Errorf("failed to apply %s profile: %w", c.Mode, err)
	}
	if c.Ledger.Backend == "badger" && c.Ledger.Path == "" {
		c.Ledger.Path = filepath.Join(c.ResultsDir, ".ledger")
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	_ = v.RegisterValidation("mode", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseMode(fl.Field().String())
		return err == nil
	})

	_ = v.RegisterValidation("real", func(fl validator.FieldLevel) bool {
		_, err := strconv.ParseFloat(strings.TrimSpace(fl.Field().String()), 64)
		return err == nil
	})

	_ = v.RegisterValidation("duration_positive", func(fl validator.FieldLevel) bool {
		return time.Duration(fl.Field().Int()) > 0
	})

	_ = v.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		_, err := parser.Parse(fl.Field().String())
		return err == nil
	})

	return v
}

// Validate checks field constraints and the rules that depend on the mode.
// Every failing field is listed in the returned error.
func (c *Config) Validate() error {
	var problems []string
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("field '%s' failed on the '%s' tag", fe.Namespace(), fe.Tag()))
		}
	}

	mode := domain.Mode(c.Mode)
	switch mode.Grouping() {
	case domain.GroupPerStructure:
		if len(c.Pressures) == 0 {
			problems = append(problems, fmt.Sprintf("mode %s needs at least one pressure", c.Mode))
		}
	case domain.GroupPerBatch:
		if len(c.Pressures) > 1 {
			problems = append(problems, fmt.Sprintf("mode %s accepts at most one pressure, got %d", c.Mode, len(c.Pressures)))
		}
	}
	if c.Binary == "" {
		problems = append(problems, "engine_binary is empty")
	}
	if c.CompletionMarker == "" {
		problems = append(problems, "completion_marker is empty")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// Structures returns the CIF files of the batch in lexical order.
func (c *Config) Structures() ([]string, error) {
	info, err := os.Stat(c.CIFLocation)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	if !info.IsDir() {
		if !strings.EqualFold(filepath.Ext(c.CIFLocation), ".cif") {
			return nil, fmt.Errorf("%w: %s is not a .cif file", domain.ErrConfiguration, c.CIFLocation)
		}
		abs, err := filepath.Abs(c.CIFLocation)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
		}
		return []string{abs}, nil
	}

	entries, err := os.ReadDir(c.CIFLocation)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".cif") {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(c.CIFLocation, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
		}
		files = append(files, abs)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no .cif files in %s", domain.ErrConfiguration, c.CIFLocation)
	}
	// os.ReadDir returns entries sorted by file name
	return files, nil
}
