// Package config provides configuration loading and validation for the
// relevance service. It uses koanf to merge environment variables with
// optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the relevance service.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// Redis (optional match cache backend)
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`

	// CacheBackend selects where precomputed matches are stored
	// ("postgres" or "redis").
	CacheBackend string `koanf:"cache_backend"`

	// Tenants warmed by the background cache job.
	WarmupTenants []string `koanf:"warmup_tenants"`

	// Warm-up job settings
	WarmupEnabled     bool          `koanf:"warmup_enabled"`
	WarmupInterval    time.Duration `koanf:"warmup_interval"`
	WarmupUserLimit   int           `koanf:"warmup_user_limit"`
	WarmupConcurrency int           `koanf:"warmup_concurrency"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporter     string  `koanf:"tracing_exporter"`
	TracingOTLPEndpoint string  `koanf:"tracing_otlp_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
	TracingInsecure     bool    `koanf:"tracing_insecure"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL  = errors.New("DATABASE_URL is required")
	ErrMissingRedisAddr    = errors.New("REDIS_ADDR is required when cache_backend is redis")
	ErrInvalidCacheBackend = errors.New("CACHE_BACKEND must be postgres or redis")
	ErrInvalidPort         = errors.New("PORT must be a valid integer")
	ErrInvalidSamplingRate = errors.New("TRACING_SAMPLING_RATE must be between 0 and 1")
)

// Default values for non-secret configuration.
const (
	DefaultPort              = 8080
	DefaultEnv               = "development"
	DefaultCacheBackend      = "postgres"
	DefaultWarmupEnabled     = true
	DefaultWarmupInterval    = 15 * time.Minute
	DefaultWarmupUserLimit   = 50
	DefaultWarmupConcurrency = 4
	DefaultSamplingRate      = 0.1
)

// Load reads configuration from environment variables and an optional
// config file. Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if
// valid). If a config file path is provided and the file cannot be
// loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefault("PORT", k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	userLimit, userLimitErr := getEnvIntOrDefault("WARMUP_USER_LIMIT", k.Int("warmup_user_limit"), DefaultWarmupUserLimit)
	if userLimitErr != nil {
		loadErrs = append(loadErrs, userLimitErr)
	}

	concurrency, concurrencyErr := getEnvIntOrDefault("WARMUP_CONCURRENCY", k.Int("warmup_concurrency"), DefaultWarmupConcurrency)
	if concurrencyErr != nil {
		loadErrs = append(loadErrs, concurrencyErr)
	}

	interval, intervalErr := getEnvDurationOrDefault("WARMUP_INTERVAL", k.Duration("warmup_interval"), DefaultWarmupInterval)
	if intervalErr != nil {
		loadErrs = append(loadErrs, intervalErr)
	}

	samplingRate, samplingErr := getEnvFloatOrDefault("TRACING_SAMPLING_RATE", k.Float64("tracing_sampling_rate"), DefaultSamplingRate)
	if samplingErr != nil {
		loadErrs = append(loadErrs, samplingErr)
	}

	cfg := &Config{
		Port:        port,
		Env:         getEnvOrDefault("ENV", k.String("env"), DefaultEnv),
		DatabaseURL: getEnvOrKoanf("DATABASE_URL", k, "database_url"),

		RedisAddr:     getEnvOrKoanf("REDIS_ADDR", k, "redis_addr"),
		RedisPassword: getEnvOrKoanf("REDIS_PASSWORD", k, "redis_password"),
		CacheBackend:  getEnvOrDefault("CACHE_BACKEND", k.String("cache_backend"), DefaultCacheBackend),

		WarmupTenants:     getEnvListOrKoanf("WARMUP_TENANTS", k, "warmup_tenants"),
		WarmupEnabled:     getEnvBoolOrDefault("WARMUP_ENABLED", k, "warmup_enabled", DefaultWarmupEnabled),
		WarmupInterval:    interval,
		WarmupUserLimit:   userLimit,
		WarmupConcurrency: concurrency,

		TracingEnabled:      getEnvBoolOrDefault("TRACING_ENABLED", k, "tracing_enabled", false),
		TracingExporter:     getEnvOrKoanf("TRACING_EXPORTER", k, "tracing_exporter"),
		TracingOTLPEndpoint: getEnvOrKoanf("TRACING_OTLP_ENDPOINT", k, "tracing_otlp_endpoint"),
		TracingSamplingRate: samplingRate,
		TracingInsecure:     getEnvBoolOrDefault("TRACING_INSECURE", k, "tracing_insecure", false),
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// Validate checks that all required configuration values are present
// and consistent. Returns a slice of validation errors (empty if
// valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	switch c.CacheBackend {
	case "postgres":
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, ErrMissingRedisAddr)
		}
	default:
		errs = append(errs, fmt.Errorf("%w: got %q", ErrInvalidCacheBackend, c.CacheBackend))
	}
	if c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1 {
		errs = append(errs, fmt.Errorf("%w: got %f", ErrInvalidSamplingRate, c.TracingSamplingRate))
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for
// logging. All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                  fmt.Sprintf("%d", c.Port),
		"env":                   c.Env,
		"database_url":          maskDatabaseURL(c.DatabaseURL),
		"redis_addr":            c.RedisAddr,
		"redis_password":        maskSecret(c.RedisPassword),
		"cache_backend":         c.CacheBackend,
		"warmup_tenants":        strings.Join(c.WarmupTenants, ","),
		"warmup_enabled":        fmt.Sprintf("%t", c.WarmupEnabled),
		"warmup_interval":       c.WarmupInterval.String(),
		"warmup_user_limit":     fmt.Sprintf("%d", c.WarmupUserLimit),
		"warmup_concurrency":    fmt.Sprintf("%d", c.WarmupConcurrency),
		"tracing_enabled":       fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_exporter":      c.TracingExporter,
		"tracing_otlp_endpoint": c.TracingOTLPEndpoint,
		"tracing_sampling_rate": fmt.Sprintf("%.2f", c.TracingSamplingRate),
	}
}

// getEnvOrKoanf returns the environment variable value if set,
// otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvListOrKoanf returns the environment variable as a
// comma-separated list if set, otherwise the koanf string slice.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	if val := os.Getenv(envKey); val != "" {
		var out []string
		for _, p := range strings.Split(val, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	return k.Strings(koanfKey)
}

// getEnvBoolOrDefault returns the environment variable as bool if set,
// otherwise the koanf value, or default.
func getEnvBoolOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal bool) bool {
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	if k.Exists(koanfKey) {
		return k.Bool(koanfKey)
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set,
// otherwise the koanf value, or default. Returns an error if the
// environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvDurationOrDefault returns the environment variable as a
// duration if set, otherwise the koanf value, or default. Returns an
// error if the environment variable is set but cannot be parsed.
func getEnvDurationOrDefault(envKey string, koanfVal time.Duration, defaultVal time.Duration) (time.Duration, error) {
	if val := os.Getenv(envKey); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid duration: %w", envKey, err)
		}
		return d, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if
// set, otherwise the koanf value, or default. Returns an error if the
// environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// maskSecret masks a secret value, showing only the first 4 characters
// followed by ****. If the secret is shorter than 8 characters, it's
// fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a database URL. Supports both
// postgres:// and postgresql:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
