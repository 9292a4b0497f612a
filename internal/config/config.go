// Package config loads process-wide settings from the environment: an
// env-tag struct parsed by caarlos0/env, optional .env loading via
// godotenv, and explicit Validate/Print/LogConfig.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds the process-wide knobs: default buffer capacity, the
// shell's max-token cap, logging defaults, the metrics listener, and
// NodeGuard's admission thresholds.
type Config struct {
	// Shell / core
	DefaultBufferCapacity int    `env:"TOS_DEFAULT_BUFFER_CAPACITY" envDefault:"16"`
	MaxCommandTokens      int    `env:"TOS_MAX_TOKEN" envDefault:"32"`
	ScriptFile            string `env:"TOS_SCRIPT_FILE" envDefault:""`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Metrics
	MetricsAddr     string        `env:"TOS_METRICS_ADDR" envDefault:":9090"`
	MetricsInterval time.Duration `env:"TOS_METRICS_INTERVAL" envDefault:"15s"`

	// NodeGuard
	MaxNodes           int     `env:"TOS_MAX_NODES" envDefault:"10000"`
	MaxGoroutines      int     `env:"TOS_MAX_GOROUTINES" envDefault:"100000"`
	CPURejectThreshold float64 `env:"TOS_CPU_REJECT_THRESHOLD" envDefault:"90.0"`
	MemoryLimitBytes   int64   `env:"TOS_MEMORY_LIMIT_BYTES" envDefault:"0"`

	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// Load reads .env if present (log-only on failure: a missing .env is not
// an error in production), parses the environment into a Config, and
// validates it.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && logger != nil {
		logger.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

// Validate checks range and enum constraints a malformed environment could
// violate.
func (c *Config) Validate() error {
	if c.DefaultBufferCapacity < 1 {
		return fmt.Errorf("TOS_DEFAULT_BUFFER_CAPACITY must be >= 1, got %d", c.DefaultBufferCapacity)
	}
	if c.MaxCommandTokens < 1 {
		return fmt.Errorf("TOS_MAX_TOKEN must be >= 1, got %d", c.MaxCommandTokens)
	}
	switch c.LogLevel {
	case "none", "error", "warning", "info":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of none|error|warning|info, got %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "pretty":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or pretty, got %q", c.LogFormat)
	}
	if c.CPURejectThreshold < 0 || c.CPURejectThreshold > 100 {
		return fmt.Errorf("TOS_CPU_REJECT_THRESHOLD must be in [0,100], got %f", c.CPURejectThreshold)
	}
	if c.MaxNodes < 1 {
		return fmt.Errorf("TOS_MAX_NODES must be >= 1, got %d", c.MaxNodes)
	}
	return nil
}

// Print writes a human-readable sectioned dump to stdout, for `tos -s`
// startup and interactive debugging.
func (c *Config) Print() {
	fmt.Println("=== tOS configuration ===")
	fmt.Printf("  buffer capacity (default): %d\n", c.DefaultBufferCapacity)
	fmt.Printf("  max command tokens:        %d\n", c.MaxCommandTokens)
	fmt.Printf("  log level / format:        %s / %s\n", c.LogLevel, c.LogFormat)
	fmt.Printf("  metrics addr / interval:   %s / %s\n", c.MetricsAddr, c.MetricsInterval)
	fmt.Printf("  max nodes / goroutines:    %d / %d\n", c.MaxNodes, c.MaxGoroutines)
	fmt.Printf("  cpu reject threshold:      %.1f%%\n", c.CPURejectThreshold)
	fmt.Printf("  environment:               %s\n", c.Environment)
}

// LogConfig writes the same information as a structured zerolog event.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Int("default_buffer_capacity", c.DefaultBufferCapacity).
		Int("max_command_tokens", c.MaxCommandTokens).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Str("metrics_addr", c.MetricsAddr).
		Dur("metrics_interval", c.MetricsInterval).
		Int("max_nodes", c.MaxNodes).
		Int("max_goroutines", c.MaxGoroutines).
		Float64("cpu_reject_threshold", c.CPURejectThreshold).
		Str("environment", c.Environment).
		Msg("configuration loaded")
}
