// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// JWT Authentication. The previous secret is optional and only set
	// during a rotation window.
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`

	// Redis (rate limiting backend). Empty address falls back to the
	// in-memory store.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`

	// Calibration file overrides for scoring and ranking weights.
	TrustCalibrationPath   string `koanf:"trust_calibration_path"`
	RankingCalibrationPath string `koanf:"ranking_calibration_path"`

	// ReconcileIntervalSeconds is how often the reconcile job sweeps
	// dirty operators.
	ReconcileIntervalSeconds int `koanf:"reconcile_interval_seconds"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporter     string  `koanf:"tracing_exporter"`
	TracingOTLPEndpoint string  `koanf:"tracing_otlp_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL       = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret         = errors.New("JWT_SECRET is required")
	ErrInvalidPort              = errors.New("PORT must be a valid integer")
	ErrInvalidReconcileInterval = errors.New("RECONCILE_INTERVAL_SECONDS must be > 0")
	ErrInvalidSamplingRate      = errors.New("TRACING_SAMPLING_RATE must be between 0.0 and 1.0")
)

// Default values for non-secret configuration.
const (
	DefaultPort                     = 8080
	DefaultEnv                      = "development"
	DefaultReconcileIntervalSeconds = 30
	DefaultTracingExporter          = "otlp-grpc"
	DefaultTracingSamplingRate      = 0.1
)

// Load reads configuration from environment variables and an optional YAML
// file, with env vars taking precedence. It returns the loaded config plus
// every validation problem found, so the operator sees all misconfiguration
// at once instead of fixing one variable per restart.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	var loadErrs []error
	port, err := intSetting(k.Int("port"), DefaultPort, "LISTRANK_PORT", "PORT")
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	reconcileInterval, err := intSetting(k.Int("reconcile_interval_seconds"), DefaultReconcileIntervalSeconds, "RECONCILE_INTERVAL_SECONDS")
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	samplingRate, err := floatSetting(k.Float64("tracing_sampling_rate"), DefaultTracingSamplingRate, "TRACING_SAMPLING_RATE")
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	cfg := &Config{
		Port:                     port,
		Env:                      stringSetting(k.String("env"), DefaultEnv, "LISTRANK_ENV", "ENV", "GO_ENV"),
		DatabaseURL:              stringSetting(k.String("database_url"), "", "DATABASE_URL"),
		JWTSecret:                stringSetting(k.String("jwt_secret"), "", "JWT_SECRET"),
		JWTPreviousSecret:        stringSetting(k.String("jwt_previous_secret"), "", "JWT_PREVIOUS_SECRET"),
		RedisAddr:                stringSetting(k.String("redis_addr"), "", "REDIS_ADDR"),
		RedisPassword:            stringSetting(k.String("redis_password"), "", "REDIS_PASSWORD"),
		TrustCalibrationPath:     stringSetting(k.String("trust_calibration_path"), "", "TRUST_CALIBRATION_PATH"),
		RankingCalibrationPath:   stringSetting(k.String("ranking_calibration_path"), "", "RANKING_CALIBRATION_PATH"),
		ReconcileIntervalSeconds: reconcileInterval,
		TracingEnabled:           boolSetting(k, "tracing_enabled", "TRACING_ENABLED"),
		TracingExporter:          stringSetting(k.String("tracing_exporter"), DefaultTracingExporter, "TRACING_EXPORTER"),
		TracingOTLPEndpoint:      stringSetting(k.String("tracing_otlp_endpoint"), "", "TRACING_OTLP_ENDPOINT"),
		TracingSamplingRate:      samplingRate,
	}

	return cfg, append(loadErrs, cfg.Validate()...)
}

// firstEnv returns the first env var among envKeys holding a non-empty
// value, with its name for error reporting.
func firstEnv(envKeys []string) (key, val string, ok bool) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return key, val, true
		}
	}
	return "", "", false
}

// stringSetting resolves one string value: env vars in order, then the file
// value, then the default.
func stringSetting(fileVal, defaultVal string, envKeys ...string) string {
	if _, val, ok := firstEnv(envKeys); ok {
		return val
	}
	if fileVal != "" {
		return fileVal
	}
	return defaultVal
}

// intSetting resolves an integer the same way. A zero in the YAML file reads
// as unset and falls back to the default.
func intSetting(fileVal, defaultVal int, envKeys ...string) (int, error) {
	if key, val, ok := firstEnv(envKeys); ok {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
		}
		return i, nil
	}
	if fileVal != 0 {
		return fileVal, nil
	}
	return defaultVal, nil
}

func floatSetting(fileVal, defaultVal float64, envKeys ...string) (float64, error) {
	if key, val, ok := firstEnv(envKeys); ok {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", key, err)
		}
		return f, nil
	}
	if fileVal != 0 {
		return fileVal, nil
	}
	return defaultVal, nil
}

// boolSetting resolves a feature flag. The env var accepts the usual
// spellings (true/1/yes/on and their negations); anything else leaves the
// file value in force.
func boolSetting(k *koanf.Koanf, koanfKey, envKey string) bool {
	enabled := false
	if k.Exists(koanfKey) {
		enabled = k.Bool(koanfKey)
	}
	switch strings.ToLower(os.Getenv(envKey)) {
	case "true", "1", "yes", "on":
		enabled = true
	case "false", "0", "no", "off":
		enabled = false
	}
	return enabled
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.ReconcileIntervalSeconds <= 0 {
		errs = append(errs, ErrInvalidReconcileInterval)
	}
	if c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1 {
		errs = append(errs, ErrInvalidSamplingRate)
	}
	return errs
}

// LogSummary returns the configuration in loggable form, with every secret
// masked.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                       strconv.Itoa(c.Port),
		"env":                        c.Env,
		"database_url":               maskDatabaseURL(c.DatabaseURL),
		"jwt_secret":                 maskSecret(c.JWTSecret),
		"jwt_previous_secret":        maskSecret(c.JWTPreviousSecret),
		"redis_addr":                 c.RedisAddr,
		"redis_password":             maskSecret(c.RedisPassword),
		"trust_calibration_path":     c.TrustCalibrationPath,
		"ranking_calibration_path":   c.RankingCalibrationPath,
		"reconcile_interval_seconds": strconv.Itoa(c.ReconcileIntervalSeconds),
		"tracing_enabled":            strconv.FormatBool(c.TracingEnabled),
		"tracing_exporter":           c.TracingExporter,
		"tracing_otlp_endpoint":      c.TracingOTLPEndpoint,
		"tracing_sampling_rate":      strconv.FormatFloat(c.TracingSamplingRate, 'g', -1, 64),
	}
}

// maskSecret keeps the first 4 characters of secrets long enough to stay
// unguessable and fully masks shorter ones.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL hides the password portion of a connection URL while
// keeping user, host and database visible for debugging.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return maskSecret(s)
	}
	creds, hostAndPath, ok := strings.Cut(rest, "@")
	if !ok {
		// No credentials embedded in the URL.
		return s
	}
	user, _, ok := strings.Cut(creds, ":")
	if !ok {
		// Username only, nothing to hide.
		return s
	}
	return scheme + "://" + user + ":****@" + hostAndPath
}
