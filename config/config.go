// Package config provides configuration loading and management for pybundle.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete pybundle configuration
type Config struct {
	Build BuildConfig `yaml:"build"`
	Scan  ScanConfig  `yaml:"scan"`
	Batch BatchConfig `yaml:"batch"`
	Log   LogConfig   `yaml:"log"`
}

// BuildConfig configures the packaging pipeline
type BuildConfig struct {
	// Compiler is the packaging executable to invoke (default: pyinstaller)
	Compiler string `yaml:"compiler"`
	// Format is the artifact flavor: exe, app, or binary
	Format string `yaml:"format"`
	// OutputDir receives compiled artifacts, relative to the project root
	OutputDir string `yaml:"output_dir"`
	// Timeout bounds the compiler subprocess
	Timeout time.Duration `yaml:"timeout"`
	// AutoValidate gates builds on structural validation (nil = enabled)
	AutoValidate *bool `yaml:"auto_validate"`
	// Python is the interpreter used for environment probing
	Python string `yaml:"python"`
}

// ScanConfig configures source discovery
type ScanConfig struct {
	// Exclude is a list of glob patterns skipped during scanning
	Exclude []string `yaml:"exclude"`
	// CacheSize is the parse memoization capacity (entries)
	CacheSize int `yaml:"cache_size"`
}

// BatchConfig configures multi-entry builds
type BatchConfig struct {
	// Workers is the number of parallel compiler processes
	Workers int `yaml:"workers"`
}

// LogConfig configures diagnostic output
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Build: BuildConfig{
			Compiler:  "pyinstaller",
			Format:    "binary",
			OutputDir: "output",
			Timeout:   5 * time.Minute,
			Python:    "python3",
		},
		Scan: ScanConfig{
			Exclude:   nil,
			CacheSize: 512,
		},
		Batch: BatchConfig{
			Workers: 2,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// AutoValidateEnabled resolves the tri-state auto-validation flag.
func (b BuildConfig) AutoValidateEnabled() bool {
	return b.AutoValidate == nil || *b.AutoValidate
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Build.Compiler == "" {
		return fmt.Errorf("build.compiler is required")
	}
	switch c.Build.Format {
	case "exe", "app", "binary":
	default:
		return fmt.Errorf("build.format must be exe, app, or binary, got %q", c.Build.Format)
	}
	if c.Build.Timeout <= 0 {
		return fmt.Errorf("build.timeout must be positive")
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be at least 1")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error, got %q", c.Log.Level)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Build
	if other.Build.Compiler != "" {
		c.Build.Compiler = other.Build.Compiler
	}
	if other.Build.Format != "" {
		c.Build.Format = other.Build.Format
	}
	if other.Build.OutputDir != "" {
		c.Build.OutputDir = other.Build.OutputDir
	}
	if other.Build.Timeout != 0 {
		c.Build.Timeout = other.Build.Timeout
	}
	if other.Build.Python != "" {
		c.Build.Python = other.Build.Python
	}
	if other.Build.AutoValidate != nil {
		c.Build.AutoValidate = other.Build.AutoValidate
	}

	// Scan
	if len(other.Scan.Exclude) > 0 {
		c.Scan.Exclude = other.Scan.Exclude
	}
	if other.Scan.CacheSize != 0 {
		c.Scan.CacheSize = other.Scan.CacheSize
	}

	// Batch
	if other.Batch.Workers != 0 {
		c.Batch.Workers = other.Batch.Workers
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
}
