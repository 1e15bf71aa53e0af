/*
PURPOSE:
  Defines the configuration structure and loading logic for gotest-jtl.
  Adheres to "Config IS Code" philosophy.

REQUIREMENTS:
  User-specified:
  - Two output paths (sample log, diagnostic document).
  - Control over the underlying go test invocation.

  Implementation-discovered:
  - Needs to support YAML parsing.
  - Needs to support Environment variables overrides (JTL_...), CI sets
    output locations through the environment.
  - Typos in the YAML file must fail loudly, so the file is checked against
    a CUE schema before decoding.

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/engine
  - Dependencies: gopkg.in/yaml.v3, cuelang.org/go, sethvargo/go-envconfig

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - A missing default file falls back to defaults.

IMPLEMENTATION RULES:
  - Config struct tags should support yaml and env.
  - Precedence: defaults < file < environment < CLI flags.

USAGE:
  cfg, err := config.Load(ctx, "gotest-jtl.yaml")

SELF-HEALING INSTRUCTIONS:
  - If new fields are needed, add to Config, configSchema and DefaultConfig().

RELATED FILES:
  - internal/config/schema.go
  - internal/cli/run.go

MAINTENANCE:
  - Update when adding new tuning parameters.
*/

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultFiles are searched, in order, when no config path is given.
var DefaultFiles = []string{"gotest-jtl.yaml", ".gotest-jtl.yaml"}

// Config represents the full configuration for gotest-jtl.
type Config struct {
	SamplesFile string `yaml:"samples_file" env:"JTL_SAMPLES_FILE,overwrite"`
	ErrorsFile  string `yaml:"errors_file" env:"JTL_ERRORS_FILE,overwrite"`
	OutputDir   string `yaml:"output_dir" env:"JTL_OUTPUT_DIR,overwrite"`
	// EventsFile keeps a copy of the raw go test -json stream when set.
	EventsFile string `yaml:"events_file" env:"JTL_EVENTS_FILE,overwrite"`
	// MetricsFile receives Prometheus textfile metrics when set.
	MetricsFile string `yaml:"metrics_file" env:"JTL_METRICS_FILE,overwrite"`

	GoBinary  string        `yaml:"go_binary" env:"JTL_GO_BINARY,overwrite"`
	Run       string        `yaml:"run" env:"JTL_RUN,overwrite"`
	Timeout   time.Duration `yaml:"timeout" env:"JTL_TIMEOUT,overwrite"`
	NoCache   bool          `yaml:"no_cache" env:"JTL_NO_CACHE,overwrite"`
	TestFlags []string      `yaml:"test_flags" env:"JTL_TEST_FLAGS,overwrite"`

	Summary   bool   `yaml:"summary" env:"JTL_SUMMARY,overwrite"`
	Progress  bool   `yaml:"progress" env:"JTL_PROGRESS,overwrite"`
	LogLevel  string `yaml:"log_level" env:"JTL_LOG_LEVEL,overwrite"`
	LogFormat string `yaml:"log_format" env:"JTL_LOG_FORMAT,overwrite"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SamplesFile: "samples.jtl",
		ErrorsFile:  "errors.jtl",
		OutputDir:   ".",
		GoBinary:    "go",
		NoCache:     true,
		Progress:    true,
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// Load reads configuration from a file and applies environment overrides.
// If path is empty, it searches DefaultFiles; if none exists the defaults are used.
func Load(ctx context.Context, path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	} else {
		for _, name := range DefaultFiles {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name // record which file we loaded
				break
			}
		}
	}

	if path != "" {
		if err := ValidateWithCue(path, data); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return cfg, nil
}

// Validate checks values that the schema cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.SamplesFile == "" {
		errs = append(errs, errors.New("samples_file must be set"))
	}
	if c.ErrorsFile == "" {
		errs = append(errs, errors.New("errors_file must be set"))
	}
	if c.SamplesFile != "" && c.SamplesPath() == c.ErrorsPath() {
		errs = append(errs, fmt.Errorf("samples_file and errors_file both point to %s", c.SamplesPath()))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	return errors.Join(errs...)
}

// SamplesPath returns the sample log path, resolved against OutputDir.
func (c *Config) SamplesPath() string {
	return c.resolve(c.SamplesFile)
}

// ErrorsPath returns the diagnostic document path, resolved against OutputDir.
func (c *Config) ErrorsPath() string {
	return c.resolve(c.ErrorsFile)
}

func (c *Config) resolve(name string) string {
	if name == "" || filepath.IsAbs(name) || c.OutputDir == "" {
		return name
	}
	return filepath.Join(c.OutputDir, name)
}
