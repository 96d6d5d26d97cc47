// Package config provides configuration loading and validation for the ranking server.
// It uses koanf to merge an optional YAML file with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Storage backends.
const (
	StorageFS = "fs"
	StorageS3 = "s3"
)

// Config holds all configuration values for the ranking server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Model bundles
	StorageBackend string `koanf:"storage_backend"`
	ModelDir       string `koanf:"model_dir"`
	MaxModels      int    `koanf:"max_models"`
	MaxUploadMB    int    `koanf:"max_upload_mb"`

	// S3-compatible object storage (AWS S3, Cloudflare R2, MinIO)
	S3Bucket          string `koanf:"s3_bucket"`
	S3Prefix          string `koanf:"s3_prefix"`
	S3Endpoint        string `koanf:"s3_endpoint"`
	S3Region          string `koanf:"s3_region"`
	S3AccessKeyID     string `koanf:"s3_access_key_id"`
	S3SecretAccessKey string `koanf:"s3_secret_access_key"`

	// Prediction log
	PredictionLogPath string `koanf:"prediction_log_path"`

	// Redis backs the cross-replica admin lock and the rate limiter. Optional.
	RedisURL string `koanf:"redis_url"`

	// Admin API authentication. Admin routes are disabled when unset.
	AdminJWTSecret         string `koanf:"admin_jwt_secret"`
	AdminJWTPreviousSecret string `koanf:"admin_jwt_previous_secret"`

	// Rate limiting of the ranking endpoint, per client IP
	RateLimitRequests      int `koanf:"rate_limit_requests"`
	RateLimitWindowSeconds int `koanf:"rate_limit_window_seconds"`

	// CORS
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Tracing
	TracingEnabled    bool    `koanf:"tracing_enabled"`
	TracingExporter   string  `koanf:"tracing_exporter"`
	OTLPEndpoint      string  `koanf:"otlp_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
	TracingInsecure   bool    `koanf:"tracing_insecure"`

	// Profiling mounts /debug/pprof outside production.
	ProfilingEnabled bool `koanf:"profiling_enabled"`
}

// Configuration validation errors.
var (
	ErrInvalidPort              = errors.New("PORT must be a valid integer")
	ErrInvalidNumber            = errors.New("value must be a valid number")
	ErrPortOutOfRange           = errors.New("PORT must be between 1 and 65535")
	ErrUnknownStorageBackend    = errors.New("STORAGE_BACKEND must be fs or s3")
	ErrMissingModelDir          = errors.New("MODEL_DIR is required for the fs backend")
	ErrMissingS3Bucket          = errors.New("S3_BUCKET is required for the s3 backend")
	ErrMissingS3Credentials     = errors.New("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required for the s3 backend")
	ErrMissingS3AccessKeyID     = errors.New("S3_ACCESS_KEY_ID is required when S3_SECRET_ACCESS_KEY is set")
	ErrMissingS3SecretAccessKey = errors.New("S3_SECRET_ACCESS_KEY is required when S3_ACCESS_KEY_ID is set")
	ErrInvalidMaxModels         = errors.New("MAX_MODELS must be at least 1")
	ErrInvalidMaxUpload         = errors.New("MAX_UPLOAD_MB must be at least 1")
	ErrMissingPredictionLogPath = errors.New("PREDICTION_LOG_PATH is required")
	ErrInvalidRedisURL          = errors.New("REDIS_URL must be a redis:// or rediss:// URL")
	ErrWeakAdminSecret          = errors.New("ADMIN_JWT_SECRET must be at least 32 characters")
	ErrInvalidRateLimit         = errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW_SECONDS must be non-negative")
	ErrInvalidSampleRate        = errors.New("TRACING_SAMPLE_RATE must be between 0 and 1")
	ErrUnknownTracingExporter   = errors.New("TRACING_EXPORTER must be otlp-http or otlp-grpc")
)

// Default values for non-secret configuration.
const (
	DefaultPort                   = 8080
	DefaultEnv                    = "development"
	DefaultStorageBackend         = StorageFS
	DefaultModelDir               = "models"
	DefaultMaxModels              = 2
	DefaultMaxUploadMB            = 10
	DefaultPredictionLogPath      = "logs/predictions.log"
	DefaultRateLimitRequests      = 600
	DefaultRateLimitWindowSeconds = 60
	DefaultTracingExporter        = "otlp-http"
	DefaultTracingSampleRate      = 0.1

	minAdminSecretLength = 32
)

// Load reads configuration from an optional YAML file and environment variables.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, only that error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	intField := func(envKeys []string, key string, def int) int {
		v, err := getEnvIntOrDefaultMulti(envKeys, k, key, def)
		if err != nil {
			loadErrs = append(loadErrs, err)
		}
		return v
	}
	boolField := func(envKey, key string) bool {
		v, err := getEnvBool(envKey, k, key)
		if err != nil {
			loadErrs = append(loadErrs, err)
		}
		return v
	}

	sampleRate, err := getEnvFloatOrDefault("TRACING_SAMPLE_RATE", k, "tracing_sample_rate", DefaultTracingSampleRate)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	cfg := &Config{
		Port:                   intField([]string{"LISTRANK_PORT", "PORT"}, "port", DefaultPort),
		Env:                    getEnvOrDefaultMulti([]string{"LISTRANK_ENV", "ENV"}, k.String("env"), DefaultEnv),
		StorageBackend:         strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", k.String("storage_backend"), DefaultStorageBackend)),
		ModelDir:               getEnvOrDefault("MODEL_DIR", k.String("model_dir"), DefaultModelDir),
		MaxModels:              intField([]string{"MAX_MODELS"}, "max_models", DefaultMaxModels),
		MaxUploadMB:            intField([]string{"MAX_UPLOAD_MB"}, "max_upload_mb", DefaultMaxUploadMB),
		S3Bucket:               getEnvOrKoanf("S3_BUCKET", k, "s3_bucket"),
		S3Prefix:               getEnvOrKoanf("S3_PREFIX", k, "s3_prefix"),
		S3Endpoint:             getEnvOrKoanf("S3_ENDPOINT", k, "s3_endpoint"),
		S3Region:               getEnvOrKoanf("S3_REGION", k, "s3_region"),
		S3AccessKeyID:          getEnvOrKoanf("S3_ACCESS_KEY_ID", k, "s3_access_key_id"),
		S3SecretAccessKey:      getEnvOrKoanf("S3_SECRET_ACCESS_KEY", k, "s3_secret_access_key"),
		PredictionLogPath:      getEnvOrDefault("PREDICTION_LOG_PATH", k.String("prediction_log_path"), DefaultPredictionLogPath),
		RedisURL:               getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		AdminJWTSecret:         getEnvOrKoanf("ADMIN_JWT_SECRET", k, "admin_jwt_secret"),
		AdminJWTPreviousSecret: getEnvOrKoanf("ADMIN_JWT_PREVIOUS_SECRET", k, "admin_jwt_previous_secret"),
		RateLimitRequests:      intField([]string{"RATE_LIMIT_REQUESTS"}, "rate_limit_requests", DefaultRateLimitRequests),
		RateLimitWindowSeconds: intField([]string{"RATE_LIMIT_WINDOW_SECONDS"}, "rate_limit_window_seconds", DefaultRateLimitWindowSeconds),
		CORSAllowedOrigins:     getEnvListOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		TracingEnabled:         boolField("TRACING_ENABLED", "tracing_enabled"),
		TracingExporter:        getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter),
		OTLPEndpoint:           getEnvOrKoanf("OTLP_ENDPOINT", k, "otlp_endpoint"),
		TracingSampleRate:      sampleRate,
		TracingInsecure:        boolField("TRACING_INSECURE", "tracing_insecure"),
		ProfilingEnabled:       boolField("PROFILING_ENABLED", "profiling_enabled"),
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	return getEnvOrDefaultMulti([]string{envKey}, koanfVal, defaultVal)
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order,
// then the koanf key, then the default. An explicit 0 in the file is kept.
// Returns an error if an environment variable is set but is not an integer.
func getEnvIntOrDefaultMulti(envKeys []string, k *koanf.Koanf, koanfKey string, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				if key == "PORT" || key == "LISTRANK_PORT" {
					return defaultVal, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
				}
				return defaultVal, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidNumber)
			}
			return i, nil
		}
	}
	if k.Exists(koanfKey) {
		return k.Int(koanfKey), nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
func getEnvFloatOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return defaultVal, fmt.Errorf("%s must be a valid float: %w", envKey, ErrInvalidNumber)
		}
		return f, nil
	}
	if k.Exists(koanfKey) {
		return k.Float64(koanfKey), nil
	}
	return defaultVal, nil
}

// getEnvBool parses a boolean flag; the environment wins over the file.
func getEnvBool(envKey string, k *koanf.Koanf, koanfKey string) (bool, error) {
	val := os.Getenv(envKey)
	if val == "" {
		return k.Bool(koanfKey), nil
	}
	switch strings.ToLower(val) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%s must be a boolean, got %q", envKey, val)
}

// getEnvListOrKoanf reads a comma-separated environment variable or a YAML list.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	if val := os.Getenv(envKey); val != "" {
		var out []string
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return k.Strings(koanfKey)
}

// Validate checks that all configuration values are usable.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, ErrPortOutOfRange)
	}

	switch c.StorageBackend {
	case StorageFS:
		if c.ModelDir == "" {
			errs = append(errs, ErrMissingModelDir)
		}
	case StorageS3:
		if c.S3Bucket == "" {
			errs = append(errs, ErrMissingS3Bucket)
		}
		if c.S3AccessKeyID == "" && c.S3SecretAccessKey == "" {
			errs = append(errs, ErrMissingS3Credentials)
		}
	default:
		errs = append(errs, ErrUnknownStorageBackend)
	}

	// Half a key pair is always a mistake, whatever the backend.
	if c.S3AccessKeyID != "" && c.S3SecretAccessKey == "" {
		errs = append(errs, ErrMissingS3SecretAccessKey)
	}
	if c.S3SecretAccessKey != "" && c.S3AccessKeyID == "" {
		errs = append(errs, ErrMissingS3AccessKeyID)
	}

	if c.MaxModels < 1 {
		errs = append(errs, ErrInvalidMaxModels)
	}
	if c.MaxUploadMB < 1 {
		errs = append(errs, ErrInvalidMaxUpload)
	}
	if c.PredictionLogPath == "" {
		errs = append(errs, ErrMissingPredictionLogPath)
	}

	if c.RedisURL != "" {
		u, err := url.Parse(c.RedisURL)
		if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			errs = append(errs, ErrInvalidRedisURL)
		}
	}

	if c.AdminJWTSecret != "" && len(c.AdminJWTSecret) < minAdminSecretLength {
		errs = append(errs, ErrWeakAdminSecret)
	}

	if c.RateLimitRequests < 0 || c.RateLimitWindowSeconds < 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}

	if c.TracingEnabled {
		if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
			errs = append(errs, ErrInvalidSampleRate)
		}
		if c.TracingExporter != "otlp-http" && c.TracingExporter != "otlp-grpc" {
			errs = append(errs, ErrUnknownTracingExporter)
		}
	}

	return errs
}

// AdminEnabled reports whether admin routes can authenticate anyone.
func (c *Config) AdminEnabled() bool {
	return c.AdminJWTSecret != ""
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                      strconv.Itoa(c.Port),
		"env":                       c.Env,
		"storage_backend":           c.StorageBackend,
		"model_dir":                 c.ModelDir,
		"max_models":                strconv.Itoa(c.MaxModels),
		"max_upload_mb":             strconv.Itoa(c.MaxUploadMB),
		"s3_bucket":                 c.S3Bucket,
		"s3_prefix":                 c.S3Prefix,
		"s3_endpoint":               c.S3Endpoint,
		"s3_region":                 c.S3Region,
		"s3_access_key_id":          maskSecret(c.S3AccessKeyID),
		"s3_secret_access_key":      maskSecret(c.S3SecretAccessKey),
		"prediction_log_path":       c.PredictionLogPath,
		"redis_url":                 maskURL(c.RedisURL),
		"admin_jwt_secret":          maskSecret(c.AdminJWTSecret),
		"admin_jwt_previous_secret": maskSecret(c.AdminJWTPreviousSecret),
		"rate_limit_requests":       strconv.Itoa(c.RateLimitRequests),
		"rate_limit_window_seconds": strconv.Itoa(c.RateLimitWindowSeconds),
		"cors_allowed_origins":      strings.Join(c.CORSAllowedOrigins, ","),
		"tracing_enabled":           strconv.FormatBool(c.TracingEnabled),
		"tracing_exporter":          c.TracingExporter,
		"otlp_endpoint":             c.OTLPEndpoint,
		"tracing_sample_rate":       strconv.FormatFloat(c.TracingSampleRate, 'f', -1, 64),
		"profiling_enabled":         strconv.FormatBool(c.ProfilingEnabled),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskURL masks the password in a URL such as redis://:secret@host:6379/0.
func maskURL(s string) string {
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

	return s[:schemeEnd+3] + rest[:colonIndex] + ":****" + rest[atIndex:]
}
