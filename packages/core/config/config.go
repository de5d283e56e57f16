package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the project-level configuration merged under every run.
type Config struct {
	DefaultProfile string `yaml:"default_profile,omitempty"`

	TimeoutMs    int64 `yaml:"timeout_ms,omitempty"`
	RetryTimes   int   `yaml:"retry_times,omitempty"`
	RetryDelayMs int64 `yaml:"retry_delay_ms,omitempty"`

	// PoolCapacity bounds the worker pool shared across concurrent
	// groups; Concurrency bounds how many test files run at once.
	PoolCapacity int `yaml:"pool_capacity,omitempty"`
	Concurrency  int `yaml:"concurrency,omitempty"`

	Reporters []string `yaml:"reporters,omitempty"`
	OutputDir string   `yaml:"output_dir,omitempty"`

	// Variables seed the override scope for every run, below CLI
	// --set pairs.
	Variables map[string]any `yaml:"variables,omitempty"`

	Bail    *bool `yaml:"bail,omitempty"`
	Verbose *bool `yaml:"verbose,omitempty"`
	NoColor *bool `yaml:"no_color,omitempty"`
	Watch   *bool `yaml:"watch,omitempty"`
}

// BoolPtr returns a pointer to a bool, for building configs in code.
func BoolPtr(b bool) *bool {
	return &b
}

func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetBail reports whether a run stops at the first failing file.
func (c *Config) GetBail() bool {
	return getBool(c.Bail, false)
}

// GetVerbose reports whether per-step detail goes to the console.
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor reports whether console output drops ANSI colors.
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// GetWatch reports whether the runner re-runs files on change.
func (c *Config) GetWatch() bool {
	return getBool(c.Watch, false)
}

// Filenames lists the config files searched for, in priority order.
var Filenames = []string{
	".flowspec.yaml",
	".flowspec.yml",
	"flowspec.yaml",
	"flowspec.yml",
}

// Load reads configuration from an explicit path, or searches the
// current directory when path is empty.
func Load(path string) (*Config, error) {
	if path != "" {
		return loadFile(path)
	}
	return FindAndLoad(".")
}

// FindAndLoad searches dir for a config file and falls back to
// defaults when none exists.
func FindAndLoad(dir string) (*Config, error) {
	for _, filename := range Filenames {
		p := filepath.Join(dir, filename)
		if _, err := os.Stat(p); err == nil {
			return loadFile(p)
		}
	}
	return Default(), nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Merge layers other on top of c, other winning where set. Neither
// receiver nor argument is mutated.
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.DefaultProfile != "" {
		result.DefaultProfile = other.DefaultProfile
	}
	if other.TimeoutMs > 0 {
		result.TimeoutMs = other.TimeoutMs
	}
	if other.RetryTimes > 0 {
		result.RetryTimes = other.RetryTimes
	}
	if other.RetryDelayMs > 0 {
		result.RetryDelayMs = other.RetryDelayMs
	}
	if other.PoolCapacity > 0 {
		result.PoolCapacity = other.PoolCapacity
	}
	if other.Concurrency > 0 {
		result.Concurrency = other.Concurrency
	}
	if other.OutputDir != "" {
		result.OutputDir = other.OutputDir
	}
	if len(other.Reporters) > 0 {
		result.Reporters = append([]string(nil), other.Reporters...)
	}

	if other.Bail != nil {
		result.Bail = other.Bail
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}
	if other.Watch != nil {
		result.Watch = other.Watch
	}

	if len(other.Variables) > 0 {
		merged := make(map[string]any, len(c.Variables)+len(other.Variables))
		for k, v := range c.Variables {
			merged[k] = v
		}
		for k, v := range other.Variables {
			merged[k] = v
		}
		result.Variables = merged
	}

	return &result
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
