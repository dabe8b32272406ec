package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"gocompare/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Analysis  AnalysisConfig
	Execution ExecutionConfig
	Memory    MemoryConfig
	Server    ServerConfig
	Database  DatabaseConfig
	LogLevel  string
}

// AnalysisConfig holds statistical thresholds
type AnalysisConfig struct {
	Alpha                  float64
	NormalityAlpha         float64
	VarianceAlpha          float64
	RandomSlopeMinSubjects int
	MixedMaxIterations     int
	Stratify               bool
}

// ExecutionConfig holds worker pool settings
type ExecutionConfig struct {
	Workers     int
	TaskTimeout time.Duration
	// MixedWeight is the pool weight of a mixed-model task; other tasks weigh 1.
	MixedWeight int
}

// MemoryConfig holds the governor thresholds, in estimate units
// (rows × subjects × outcomes).
type MemoryConfig struct {
	FullLimit          float64
	ChunkLimit         float64
	SampledCeiling     float64
	MaxSampledSubjects int
	Seed               int64
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr string
}

// DatabaseConfig holds the SQL data source
type DatabaseConfig struct {
	Driver string
	URL    string
	Table  string
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Alpha:                  0.05,
			NormalityAlpha:         0.05,
			VarianceAlpha:          0.05,
			RandomSlopeMinSubjects: 12,
			MixedMaxIterations:     2000,
		},
		Execution: ExecutionConfig{
			Workers:     4,
			TaskTimeout: 2 * time.Minute,
			MixedWeight: 2,
		},
		Memory: MemoryConfig{
			FullLimit:          5e8,
			ChunkLimit:         5e9,
			SampledCeiling:     5e9,
			MaxSampledSubjects: 2000,
			Seed:               42,
		},
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{Driver: "postgres"},
		LogLevel: "INFO",
	}
}

type yamlConfig struct {
	Analysis struct {
		Alpha                  float64 `yaml:"alpha"`
		NormalityAlpha         float64 `yaml:"normality_alpha"`
		VarianceAlpha          float64 `yaml:"variance_alpha"`
		RandomSlopeMinSubjects int     `yaml:"random_slope_min_subjects"`
		MixedMaxIterations     int     `yaml:"mixed_max_iterations"`
		Stratify               *bool   `yaml:"stratify"`
	} `yaml:"analysis"`
	Execution struct {
		Workers     int    `yaml:"workers"`
		TaskTimeout string `yaml:"task_timeout"`
		MixedWeight int    `yaml:"mixed_weight"`
	} `yaml:"execution"`
	Memory struct {
		FullLimit          float64 `yaml:"full_limit"`
		ChunkLimit         float64 `yaml:"chunk_limit"`
		SampledCeiling     float64 `yaml:"sampled_ceiling"`
		MaxSampledSubjects int     `yaml:"max_sampled_subjects"`
		Seed               *int64  `yaml:"seed"`
	} `yaml:"memory"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver"`
		URL    string `yaml:"url"`
		Table  string `yaml:"table"`
	} `yaml:"database"`
	LogLevel string `yaml:"log_level"`
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, errors.Wrap(err, "failed to apply environment overrides")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", path)
	}
	var y yamlConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("failed to parse config file: %w", err))
	}

	// Apply non-zero values from file (merging with defaults)
	setFloat(&c.Analysis.Alpha, y.Analysis.Alpha)
	setFloat(&c.Analysis.NormalityAlpha, y.Analysis.NormalityAlpha)
	setFloat(&c.Analysis.VarianceAlpha, y.Analysis.VarianceAlpha)
	setInt(&c.Analysis.RandomSlopeMinSubjects, y.Analysis.RandomSlopeMinSubjects)
	setInt(&c.Analysis.MixedMaxIterations, y.Analysis.MixedMaxIterations)
	if y.Analysis.Stratify != nil {
		c.Analysis.Stratify = *y.Analysis.Stratify
	}
	setInt(&c.Execution.Workers, y.Execution.Workers)
	setInt(&c.Execution.MixedWeight, y.Execution.MixedWeight)
	if y.Execution.TaskTimeout != "" {
		d, err := time.ParseDuration(y.Execution.TaskTimeout)
		if err != nil {
			return errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("invalid task_timeout %q: %w", y.Execution.TaskTimeout, err))
		}
		c.Execution.TaskTimeout = d
	}
	setFloat(&c.Memory.FullLimit, y.Memory.FullLimit)
	setFloat(&c.Memory.ChunkLimit, y.Memory.ChunkLimit)
	setFloat(&c.Memory.SampledCeiling, y.Memory.SampledCeiling)
	setInt(&c.Memory.MaxSampledSubjects, y.Memory.MaxSampledSubjects)
	if y.Memory.Seed != nil {
		c.Memory.Seed = *y.Memory.Seed
	}
	setString(&c.Server.Addr, y.Server.Addr)
	setString(&c.Database.Driver, y.Database.Driver)
	setString(&c.Database.URL, y.Database.URL)
	setString(&c.Database.Table, y.Database.Table)
	setString(&c.LogLevel, y.LogLevel)
	return nil
}

func (c *Config) applyEnv() error {
	var err error
	if c.Analysis.Alpha, err = getEnvFloatOrDefault("COMPARE_ALPHA", c.Analysis.Alpha); err != nil {
		return err
	}
	if c.Execution.Workers, err = getEnvIntOrDefault("COMPARE_WORKERS", c.Execution.Workers); err != nil {
		return err
	}
	if c.Execution.TaskTimeout, err = getEnvDurationOrDefault("COMPARE_TASK_TIMEOUT", c.Execution.TaskTimeout); err != nil {
		return err
	}
	if c.Memory.MaxSampledSubjects, err = getEnvIntOrDefault("COMPARE_MAX_SAMPLED_SUBJECTS", c.Memory.MaxSampledSubjects); err != nil {
		return err
	}
	seed, err := getEnvIntOrDefault("COMPARE_SEED", int(c.Memory.Seed))
	if err != nil {
		return err
	}
	c.Memory.Seed = int64(seed)
	if c.Analysis.Stratify, err = getEnvBoolOrDefault("COMPARE_STRATIFY", c.Analysis.Stratify); err != nil {
		return err
	}
	c.Server.Addr = getEnvOrDefault("COMPARE_ADDR", c.Server.Addr)
	c.Database.Driver = getEnvOrDefault("DATABASE_DRIVER", c.Database.Driver)
	c.Database.URL = getEnvOrDefault("DATABASE_URL", c.Database.URL)
	c.Database.Table = getEnvOrDefault("DATABASE_TABLE", c.Database.Table)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	return nil
}

// Validate checks value ranges and limit ordering
func (c *Config) Validate() error {
	alphas := []struct {
		name  string
		value float64
	}{
		{"alpha", c.Analysis.Alpha},
		{"normality alpha", c.Analysis.NormalityAlpha},
		{"variance alpha", c.Analysis.VarianceAlpha},
	}
	for _, a := range alphas {
		if a.value <= 0 || a.value >= 1 {
			return errors.ConfigInvalid(fmt.Sprintf("%s must be in (0, 1), got %g", a.name, a.value))
		}
	}
	if c.Execution.Workers < 1 {
		return errors.ConfigInvalid("workers must be at least 1")
	}
	if c.Execution.MixedWeight < 1 {
		return errors.ConfigInvalid("mixed weight must be at least 1")
	}
	// A task heavier than the whole pool could never acquire it.
	if c.Execution.MixedWeight > c.Execution.Workers {
		c.Execution.MixedWeight = c.Execution.Workers
	}
	if c.Execution.TaskTimeout <= 0 {
		return errors.ConfigInvalid("task timeout must be positive")
	}
	if c.Analysis.RandomSlopeMinSubjects < 2 {
		return errors.ConfigInvalid("random slope minimum subjects must be at least 2")
	}
	if c.Memory.FullLimit <= 0 || c.Memory.ChunkLimit < c.Memory.FullLimit {
		return errors.ConfigInvalid("memory limits must satisfy 0 < full <= chunk")
	}
	if c.Memory.SampledCeiling <= 0 {
		return errors.ConfigInvalid("sampled ceiling must be positive")
	}
	if c.Memory.MaxSampledSubjects < 2 {
		return errors.ConfigInvalid("max sampled subjects must be at least 2")
	}
	return nil
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s must be an integer, got %q", key, value))
	}
	return n, nil
}

func getEnvFloatOrDefault(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s must be a number, got %q", key, value))
	}
	return f, nil
}

func getEnvBoolOrDefault(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.ConfigInvalid(fmt.Sprintf("%s must be a boolean, got %q", key, value))
	}
	return b, nil
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s must be a duration, got %q", key, value))
	}
	return d, nil
}
