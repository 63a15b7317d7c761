// Package config loads the YAML run configuration, fills in portal
// defaults for the chosen workflow and reads credentials from the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/portalrunner/pkg/lander"
	"github.com/entrhq/portalrunner/pkg/modal"
	"github.com/entrhq/portalrunner/pkg/workflow"
)

// ConfigError is a fatal configuration problem found before any browser
// is launched.
type ConfigError struct {
	// Field is the dotted path of the offending setting, if any
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func invalid(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// Config is the complete configuration of one run.
type Config struct {
	// Workflow is chosen by the CLI subcommand, not the file.
	Workflow string `yaml:"-"`

	Portal      PortalConfig      `yaml:"portal"`
	Run         RunConfig         `yaml:"run"`
	Workflows   WorkflowsConfig   `yaml:"workflows"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// PortalConfig describes the portal and the browser driving it.
type PortalConfig struct {
	Login  lander.Config `yaml:"login"`
	Dialog modal.Config  `yaml:"dialog"`

	// Headless hides the browser window. The CAPTCHA still has to be solved
	// by a person, so this is mostly useful with a pre-authenticated profile.
	Headless bool `yaml:"headless"`

	Viewport    ViewportConfig `yaml:"viewport"`
	Timeout     time.Duration  `yaml:"timeout"`
	BrowserArgs []string       `yaml:"browser_args"`
}

// ViewportConfig is the browser window size.
type ViewportConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// RunConfig controls input, output and pacing.
type RunConfig struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`

	// CheckpointInterval saves the output every N processed items
	CheckpointInterval int `yaml:"checkpoint_interval"`

	// Pace is the minimum spacing between items
	Pace time.Duration `yaml:"pace"`

	// Resume skips rows whose status column already records a success
	Resume bool `yaml:"resume"`

	// DisabledControl is "skip" or "fail"
	DisabledControl string `yaml:"disabled_control"`

	// WriteSummary writes <output>.summary.json next to the workbook
	WriteSummary bool `yaml:"write_summary"`
}

// WorkflowsConfig holds the per-workflow selectors and columns.
type WorkflowsConfig struct {
	PEN     workflow.PENConfig     `yaml:"pen"`
	School  workflow.SchoolConfig  `yaml:"school"`
	Release workflow.ReleaseConfig `yaml:"release"`
	Export  workflow.ExportConfig  `yaml:"export_pending"`
}

// CredentialsConfig names the environment variables holding the login.
type CredentialsConfig struct {
	UserEnv string `yaml:"user_env"`
	PassEnv string `yaml:"pass_env"`

	Username string `yaml:"-"`
	Password string `yaml:"-"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls logging level: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity"`

	// Dir holds the run logs. Empty means ~/.portalrunner/logs.
	Dir string `yaml:"dir"`
}

// MetricsConfig enables the Prometheus listener.
type MetricsConfig struct {
	// Addr is the listen address, e.g. ":9090". Empty disables it.
	Addr string `yaml:"addr"`
}

// Default returns the configuration the original scripts ran with.
func Default(name string) *Config {
	cfg := &Config{
		Workflow: name,
		Portal: PortalConfig{
			Login:    lander.DefaultConfig(),
			Dialog:   modal.DefaultConfig(),
			Viewport: ViewportConfig{Width: 1280, Height: 720},
			Timeout:  60 * time.Second,
		},
		Run: RunConfig{
			CheckpointInterval: 25,
			Pace:               250 * time.Millisecond,
			DisabledControl:    workflow.DisabledSkip,
			WriteSummary:       true,
		},
		Workflows: WorkflowsConfig{
			PEN:     workflow.DefaultPENConfig(),
			School:  workflow.DefaultSchoolConfig(),
			Release: workflow.DefaultReleaseConfig(),
			Export:  workflow.DefaultExportConfig(),
		},
		Credentials: CredentialsConfig{
			UserEnv: "SSG_USER",
			PassEnv: "SSG_PASS",
		},
		Logging: LoggingConfig{Verbosity: "normal"},
	}

	switch name {
	case workflow.PEN:
		cfg.Run.Input = "students_extracted.xlsx"
		cfg.Run.Output = "students_extracted_with_PEN.xlsx"
	case workflow.School:
		cfg.Run.Input = "students_extracted_with_PEN.xlsx"
		cfg.Run.Output = "students_extracted_with_PEN_school.xlsx"
	case workflow.Release:
		cfg.Run.Input = "students_extracted_with_PEN_school.xlsx"
		cfg.Run.Output = "students_release_requests.xlsx"
		cfg.Run.CheckpointInterval = 20
	case workflow.Export:
		cfg.Run.Output = "UDISE.xlsx"
		cfg.Run.CheckpointInterval = exportCheckpointInterval
	}
	return cfg
}

// exportCheckpointInterval is shorter than the record workflows' cadence:
// each export item is a whole section sheet that takes minutes to load.
const exportCheckpointInterval = 5

// Load reads path over the defaults for workflow name. An empty path
// returns the defaults.
func Load(path, name string) (*Config, error) {
	cfg := Default(name)
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Field: "file", Err: fmt.Errorf("failed to read config file: %w", err)}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Field: "file", Err: fmt.Errorf("failed to parse config file: %w", err)}
	}
	return cfg, nil
}

// Save writes cfg as YAML to path atomically.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".portalrunner-config-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp config file: %w", err)
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Validate checks every setting the chosen workflow uses.
func (c *Config) Validate() error {
	known := false
	for _, n := range workflow.Names {
		if c.Workflow == n {
			known = true
		}
	}
	if !known {
		return invalid("workflow", "unknown workflow %q", c.Workflow)
	}

	if c.Workflow != workflow.Export && c.Run.Input == "" {
		return invalid("run.input", "an input workbook is required")
	}
	if c.Run.Output == "" {
		return invalid("run.output", "an output workbook is required")
	}
	if c.Run.CheckpointInterval < 0 {
		return invalid("run.checkpoint_interval", "cannot be negative")
	}
	if c.Run.Pace < 0 {
		return invalid("run.pace", "cannot be negative")
	}
	switch c.Run.DisabledControl {
	case "":
		c.Run.DisabledControl = workflow.DisabledSkip
	case workflow.DisabledSkip, workflow.DisabledFail:
	default:
		return invalid("run.disabled_control", "must be 'skip' or 'fail', got %q", c.Run.DisabledControl)
	}

	if c.Portal.Timeout < 0 {
		return invalid("portal.timeout", "cannot be negative")
	}
	login := c.LoginConfig()
	if err := login.Validate(); err != nil {
		return &ConfigError{Field: "portal.login", Err: err}
	}
	if _, err := modal.NewResolver(c.Portal.Dialog); err != nil {
		return &ConfigError{Field: "portal.dialog", Err: err}
	}
	if _, err := c.Build(); err != nil {
		return &ConfigError{Field: "workflows." + c.Workflow, Err: err}
	}

	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}
	validLevels := map[string]bool{
		"quiet":   true,
		"normal":  true,
		"verbose": true,
		"debug":   true,
	}
	if !validLevels[c.Logging.Verbosity] {
		return invalid("logging.verbosity", "invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}

	if c.Credentials.UserEnv == "" || c.Credentials.PassEnv == "" {
		return invalid("credentials", "user_env and pass_env are required")
	}
	return nil
}

// ResolveCredentials reads the login from the environment through getenv.
func (c *Config) ResolveCredentials(getenv func(string) string) error {
	c.Credentials.Username = getenv(c.Credentials.UserEnv)
	c.Credentials.Password = getenv(c.Credentials.PassEnv)

	var missing []string
	if c.Credentials.Username == "" {
		missing = append(missing, c.Credentials.UserEnv)
	}
	if c.Credentials.Password == "" {
		missing = append(missing, c.Credentials.PassEnv)
	}
	if len(missing) > 0 {
		return &ConfigError{Field: "credentials", Err: fmt.Errorf("set %v in the environment", missing)}
	}
	return nil
}
