// Package config loads pmeql configuration from a YAML file, PMEQL_*
// environment variables and an optional .env file.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PMEQL_"

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

// UnmarshalYAML parses "30s", "1m30s", etc.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Limits are the operational limits of a session.
type Limits struct {
	MaxRows         int      `yaml:"max_rows"`
	Timeout         Duration `yaml:"timeout"`
	HistoryCap      int      `yaml:"history_cap"`
	GridPageSize    int      `yaml:"grid_page_size"`
	HistoryPageSize int      `yaml:"history_page_size"`
}

// RateLimit bounds HTTP requests per client.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Config holds the configuration for the CLI and HTTP server.
type Config struct {
	Database    string    `yaml:"database"`     // SQLite file to explore
	Writable    bool      `yaml:"writable"`     // open without mode=ro (scratch databases only)
	CatalogDir  string    `yaml:"catalog_dir"`  // CUE column overlays (optional)
	LogLevel    string    `yaml:"log_level"`    // debug, info, warn, error
	ListenAddr  string    `yaml:"listen_addr"`  // HTTP listen address
	Limits      Limits    `yaml:"limits"`
	RateLimit   RateLimit `yaml:"rate_limit"`
	CORSOrigins []string  `yaml:"cors_origins"`

	// Warnings collects non-fatal problems found while loading.
	// The caller logs them once the logger is set up.
	Warnings []string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:   "info",
		ListenAddr: ":8080",
		Limits: Limits{
			MaxRows:         1000,
			Timeout:         Duration(30 * time.Second),
			HistoryCap:      200,
			GridPageSize:    20,
			HistoryPageSize: 20,
		},
		RateLimit:   RateLimit{RPS: 20, Burst: 40},
		CORSOrigins: []string{"*"},
	}
}

// Override adjusts a loaded configuration before validation.
// Command-line flags are applied this way.
type Override func(*Config)

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then PMEQL_* environment overrides, then overrides.
// The result is validated.
func Load(path string, overrides ...Override) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(cfg)
	}
	if len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*" {
		cfg.Warnings = append(cfg.Warnings, "CORS allows any origin; set cors_origins to restrict it")
	}
	if cfg.Writable {
		cfg.Warnings = append(cfg.Warnings, "database opened writable; the gateway still refuses mutations")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error

	str := func(key string, dst *string) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}

	str("DATABASE", &c.Database)
	str("CATALOG_DIR", &c.CatalogDir)
	str("LOG_LEVEL", &c.LogLevel)
	str("LISTEN_ADDR", &c.ListenAddr)
	num("MAX_ROWS", &c.Limits.MaxRows)
	num("HISTORY_CAP", &c.Limits.HistoryCap)
	num("GRID_PAGE_SIZE", &c.Limits.GridPageSize)
	num("HISTORY_PAGE_SIZE", &c.Limits.HistoryPageSize)
	num("RATE_LIMIT_BURST", &c.RateLimit.Burst)

	if v := os.Getenv(EnvPrefix + "WRITABLE"); v != "" {
		c.Writable = parseBool(v)
	}
	if v := os.Getenv(EnvPrefix + "TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err))
		} else {
			c.Limits.Timeout = Duration(d)
		}
	}
	if v := os.Getenv(EnvPrefix + "RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sRATE_LIMIT_RPS: %w", EnvPrefix, err))
		} else {
			c.RateLimit.RPS = f
		}
	}
	if v := os.Getenv(EnvPrefix + "CORS_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		c.CORSOrigins = compactNonEmpty(origins)
	}

	return errors.Join(errs...)
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Database) == "" {
		errs = append(errs, errors.New("database is required (set database or PMEQL_DATABASE)"))
	}
	if c.Limits.MaxRows <= 0 {
		errs = append(errs, fmt.Errorf("limits.max_rows must be positive, got %d", c.Limits.MaxRows))
	}
	if c.Limits.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("limits.timeout must be positive, got %s", time.Duration(c.Limits.Timeout)))
	}
	if c.Limits.HistoryCap <= 0 {
		errs = append(errs, fmt.Errorf("limits.history_cap must be positive, got %d", c.Limits.HistoryCap))
	}
	if c.Limits.GridPageSize <= 0 {
		errs = append(errs, fmt.Errorf("limits.grid_page_size must be positive, got %d", c.Limits.GridPageSize))
	}
	if c.Limits.HistoryPageSize <= 0 {
		errs = append(errs, fmt.Errorf("limits.history_page_size must be positive, got %d", c.Limits.HistoryPageSize))
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit rps and burst must be positive, got %g/%d", c.RateLimit.RPS, c.RateLimit.Burst))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

// Timeout returns the execution timeout as a time.Duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Limits.Timeout)
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseBool(v string) bool {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = stripQuotes(strings.TrimSpace(value))
		// Environment wins over the file.
		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes matching surrounding double or single quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
