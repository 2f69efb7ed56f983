// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml), with ${VAR} expansion
//  2. Environment variables (fallback), after loading a .env file if present
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	window := cfg.Matching.DateWindowDays
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/eshaffer321/expense-matcher/internal/domain/matcher"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	Matching      MatchingConfig      `yaml:"matching"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig holds database and file storage configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	ReceiptsDir  string `yaml:"receipts_dir"`
}

// MatchingConfig holds candidate generation and scoring settings
type MatchingConfig struct {
	DateWindowDays     int     `yaml:"date_window_days"`
	AmountTolerance    float64 `yaml:"amount_tolerance"`
	AmountTolerancePct float64 `yaml:"amount_tolerance_pct"`
	AmountWeight       float64 `yaml:"amount_weight"`
	DateWeight         float64 `yaml:"date_weight"`
	TextWeight         float64 `yaml:"text_weight"`
	WindowEdgeScore    float64 `yaml:"window_edge_score"`
	MinScore           float64 `yaml:"min_score"`
	AutoMatchThreshold float64 `yaml:"auto_match_threshold"`
	SweepConcurrency   int     `yaml:"sweep_concurrency"`
}

// MatcherConfig converts the scoring settings for matcher.NewMatcher
func (m MatchingConfig) MatcherConfig() matcher.Config {
	return matcher.Config{
		DateWindowDays:     m.DateWindowDays,
		AmountTolerance:    m.AmountTolerance,
		AmountTolerancePct: m.AmountTolerancePct,
		AmountWeight:       m.AmountWeight,
		DateWeight:         m.DateWeight,
		TextWeight:         m.TextWeight,
		WindowEdgeScore:    m.WindowEdgeScore,
		MinScore:           m.MinScore,
	}
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // maven (default), json or text
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			DatabasePath: "expenses.db",
			ReceiptsDir:  "uploads",
		},
		Matching: MatchingConfig{
			DateWindowDays:     5,
			AmountTolerance:    1.00,
			AmountTolerancePct: 0.05,
			AmountWeight:       0.45,
			DateWeight:         0.35,
			TextWeight:         0.20,
			WindowEdgeScore:    50,
			MinScore:           40,
			AutoMatchThreshold: 70,
			SweepConcurrency:   4,
		},
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "maven",
			},
		},
	}
}

// Load reads and parses the config file. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${EXPENSE_MATCHER_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	d := Default()
	return &Config{
		Storage: StorageConfig{
			DatabasePath: getEnv("EXPENSE_MATCHER_DB_PATH", d.Storage.DatabasePath),
			ReceiptsDir:  getEnv("EXPENSE_MATCHER_RECEIPTS_DIR", d.Storage.ReceiptsDir),
		},
		Matching: MatchingConfig{
			DateWindowDays:     getEnvInt("EXPENSE_MATCHER_DATE_WINDOW_DAYS", d.Matching.DateWindowDays),
			AmountTolerance:    getEnvFloat("EXPENSE_MATCHER_AMOUNT_TOLERANCE", d.Matching.AmountTolerance),
			AmountTolerancePct: getEnvFloat("EXPENSE_MATCHER_AMOUNT_TOLERANCE_PCT", d.Matching.AmountTolerancePct),
			AmountWeight:       getEnvFloat("EXPENSE_MATCHER_AMOUNT_WEIGHT", d.Matching.AmountWeight),
			DateWeight:         getEnvFloat("EXPENSE_MATCHER_DATE_WEIGHT", d.Matching.DateWeight),
			TextWeight:         getEnvFloat("EXPENSE_MATCHER_TEXT_WEIGHT", d.Matching.TextWeight),
			WindowEdgeScore:    getEnvFloat("EXPENSE_MATCHER_WINDOW_EDGE_SCORE", d.Matching.WindowEdgeScore),
			MinScore:           getEnvFloat("EXPENSE_MATCHER_MIN_SCORE", d.Matching.MinScore),
			AutoMatchThreshold: getEnvFloat("EXPENSE_MATCHER_AUTO_MATCH_THRESHOLD", d.Matching.AutoMatchThreshold),
			SweepConcurrency:   getEnvInt("EXPENSE_MATCHER_SWEEP_CONCURRENCY", d.Matching.SweepConcurrency),
		},
		Server: ServerConfig{
			Port:           getEnvInt("EXPENSE_MATCHER_PORT", getEnvInt("PORT", d.Server.Port)),
			AllowedOrigins: getEnvList("EXPENSE_MATCHER_ALLOWED_ORIGINS", d.Server.AllowedOrigins),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", d.Observability.Logging.Level),
				Format: getEnv("LOG_FORMAT", d.Observability.Logging.Format),
			},
		},
	}
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnv_WithPath("config.yaml")
}

// LoadOrEnv_WithPath tries to load from specified path, falls back to environment variables.
// A .env file in the working directory is loaded first; variables already set win.
func LoadOrEnv_WithPath(path string) *Config {
	_ = godotenv.Load()

	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// LoadPath is LoadOrEnv_WithPath for callers that need to know about a bad
// file: a missing file falls back to the environment, an invalid one is an error.
func LoadPath(path string) (*Config, error) {
	_ = godotenv.Load()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return LoadFromEnv(), nil
	}
	return Load(path)
}

// Validate checks values that would make the matcher or server misbehave
func (c *Config) Validate() error {
	var errs []error
	m := c.Matching
	if m.DateWindowDays < 0 {
		errs = append(errs, errors.New("matching.date_window_days must be >= 0"))
	}
	if !matcher.IsFinite(m.AutoMatchThreshold) || m.AutoMatchThreshold < 0 || m.AutoMatchThreshold > 100 {
		errs = append(errs, errors.New("matching.auto_match_threshold must be between 0 and 100"))
	}
	if m.SweepConcurrency < 1 {
		errs = append(errs, errors.New("matching.sweep_concurrency must be >= 1"))
	}
	if err := m.MatcherConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("matching: %w", err))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch strings.ToLower(c.Observability.Logging.Format) {
	case "", "maven", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Observability.Logging.Format))
	}
	return errors.Join(errs...)
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvFloat retrieves a float environment variable with a fallback default
func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvList splits a comma-separated environment variable
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
