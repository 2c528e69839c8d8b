// Package config loads the API server configuration. Values come from an
// optional YAML file and environment variables, with the environment winning.
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

	"github.com/onnwee/placereviews/internal/geo"
	"github.com/onnwee/placereviews/internal/validate"
)

// Config holds all configuration values for the API server.
type Config struct {
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// DatabaseURL selects the Postgres store. Empty means the seeded
	// in-memory store, which is only allowed outside production.
	DatabaseURL string `koanf:"database_url"`

	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`

	// S3-compatible object storage used to sign media URLs.
	StorageEndpoint        string `koanf:"storage_endpoint"`
	StorageRegion          string `koanf:"storage_region"`
	StorageAccessKeyID     string `koanf:"storage_access_key_id"`
	StorageSecretAccessKey string `koanf:"storage_secret_access_key"`
	SignedURLTTLSeconds    int    `koanf:"signed_url_ttl_seconds"`

	RoutingURL       string `koanf:"routing_url"`
	RoutingProfile   string `koanf:"routing_profile"`
	RoutingTimeoutMS int    `koanf:"routing_timeout_ms"`

	RedisURL string `koanf:"redis_url"`

	RankTiersPath string `koanf:"rank_tiers_path"`

	FallbackLat float64 `koanf:"fallback_lat"`
	FallbackLng float64 `koanf:"fallback_lng"`

	EnrichmentConcurrency int `koanf:"enrichment_concurrency"`
	SessionIdleMinutes    int `koanf:"session_idle_minutes"`
	MaxSessions           int `koanf:"max_sessions"`

	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	TracingEnabled    bool    `koanf:"tracing_enabled"`
	TracingExporter   string  `koanf:"tracing_exporter"`
	OTLPEndpoint      string  `koanf:"otlp_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL       = errors.New("DATABASE_URL is required in production")
	ErrMissingJWTSecret         = errors.New("JWT_SECRET is required")
	ErrIncompleteStorage        = errors.New("STORAGE_ENDPOINT, STORAGE_ACCESS_KEY_ID and STORAGE_SECRET_ACCESS_KEY must be set together")
	ErrInvalidPort              = errors.New("PORT must be a valid integer between 1 and 65535")
	ErrInvalidNumber            = errors.New("value must be a valid number")
	ErrInvalidSignedURLTTL      = errors.New("SIGNED_URL_TTL_SECONDS must be > 0")
	ErrInvalidRoutingURL        = errors.New("ROUTING_URL must be an http(s) URL")
	ErrInvalidRoutingTimeout    = errors.New("ROUTING_TIMEOUT_MS must be > 0")
	ErrInvalidFallbackOrigin    = errors.New("FALLBACK_LAT/FALLBACK_LNG must be a valid coordinate")
	ErrInvalidConcurrency       = errors.New("ENRICHMENT_CONCURRENCY must be > 0")
	ErrInvalidSessionIdle       = errors.New("SESSION_IDLE_MINUTES must be > 0")
	ErrInvalidMaxSessions       = errors.New("MAX_SESSIONS must be > 0")
	ErrInvalidTracingExporter   = errors.New("TRACING_EXPORTER must be otlp-http or otlp-grpc")
	ErrInvalidTracingSampleRate = errors.New("TRACING_SAMPLE_RATE must be between 0 and 1")
)

// Defaults for non-secret configuration.
const (
	DefaultPort                  = 8080
	DefaultEnv                   = "development"
	DefaultStorageRegion         = "auto"
	DefaultSignedURLTTLSeconds   = 3600
	DefaultRoutingURL            = "https://router.project-osrm.org"
	DefaultRoutingProfile        = "driving"
	DefaultRoutingTimeoutMS      = 8000
	DefaultRankTiersPath         = "configs/rank.tiers.json"
	DefaultEnrichmentConcurrency = 8
	DefaultSessionIdleMinutes    = 30
	DefaultMaxSessions           = 1000
	DefaultTracingExporter       = "otlp-http"
	DefaultTracingSampleRate     = 0.1
)

// Load reads the optional YAML file at configFilePath, then applies
// environment overrides. It returns the config and every problem found; a
// file that cannot be read is reported alone with a nil config.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	var errs []error
	intVal := func(envKeys []string, key string, def int) int {
		v, err := envInt(envKeys, k, key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	floatVal := func(envKey, key string, def float64) float64 {
		v, err := envFloat(envKey, k, key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		Port:                   intVal([]string{"PLACEREVIEWS_PORT", "PORT"}, "port", DefaultPort),
		Env:                    envString([]string{"PLACEREVIEWS_ENV", "ENV", "GO_ENV"}, k, "env", DefaultEnv),
		DatabaseURL:            envString([]string{"DATABASE_URL"}, k, "database_url", ""),
		JWTSecret:              envString([]string{"JWT_SECRET"}, k, "jwt_secret", ""),
		JWTPreviousSecret:      envString([]string{"JWT_PREVIOUS_SECRET"}, k, "jwt_previous_secret", ""),
		StorageEndpoint:        envString([]string{"STORAGE_ENDPOINT"}, k, "storage_endpoint", ""),
		StorageRegion:          envString([]string{"STORAGE_REGION"}, k, "storage_region", DefaultStorageRegion),
		StorageAccessKeyID:     envString([]string{"STORAGE_ACCESS_KEY_ID"}, k, "storage_access_key_id", ""),
		StorageSecretAccessKey: envString([]string{"STORAGE_SECRET_ACCESS_KEY"}, k, "storage_secret_access_key", ""),
		SignedURLTTLSeconds:    intVal([]string{"SIGNED_URL_TTL_SECONDS"}, "signed_url_ttl_seconds", DefaultSignedURLTTLSeconds),
		RoutingURL:             envString([]string{"ROUTING_URL"}, k, "routing_url", DefaultRoutingURL),
		RoutingProfile:         envString([]string{"ROUTING_PROFILE"}, k, "routing_profile", DefaultRoutingProfile),
		RoutingTimeoutMS:       intVal([]string{"ROUTING_TIMEOUT_MS"}, "routing_timeout_ms", DefaultRoutingTimeoutMS),
		RedisURL:               envString([]string{"REDIS_URL"}, k, "redis_url", ""),
		RankTiersPath:          envString([]string{"RANK_TIERS_PATH"}, k, "rank_tiers_path", DefaultRankTiersPath),
		FallbackLat:            floatVal("FALLBACK_LAT", "fallback_lat", geo.DefaultOrigin.Lat),
		FallbackLng:            floatVal("FALLBACK_LNG", "fallback_lng", geo.DefaultOrigin.Lng),
		EnrichmentConcurrency:  intVal([]string{"ENRICHMENT_CONCURRENCY"}, "enrichment_concurrency", DefaultEnrichmentConcurrency),
		SessionIdleMinutes:     intVal([]string{"SESSION_IDLE_MINUTES"}, "session_idle_minutes", DefaultSessionIdleMinutes),
		MaxSessions:            intVal([]string{"MAX_SESSIONS"}, "max_sessions", DefaultMaxSessions),
		CORSAllowedOrigins:     envList("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		TracingEnabled:         envBool("TRACING_ENABLED", k, "tracing_enabled", false),
		TracingExporter:        envString([]string{"TRACING_EXPORTER"}, k, "tracing_exporter", DefaultTracingExporter),
		OTLPEndpoint:           envString([]string{"OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"}, k, "otlp_endpoint", ""),
		TracingSampleRate:      floatVal("TRACING_SAMPLE_RATE", "tracing_sample_rate", DefaultTracingSampleRate),
	}

	return cfg, append(errs, cfg.Validate()...)
}

// envString returns the first non-empty env var in envKeys, then the file
// value at key, then def.
func envString(envKeys []string, k *koanf.Koanf, key, def string) string {
	for _, env := range envKeys {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	if v := k.String(key); v != "" {
		return v
	}
	return def
}

func envInt(envKeys []string, k *koanf.Koanf, key string, def int) (int, error) {
	for _, env := range envKeys {
		if v := os.Getenv(env); v != "" {
			i, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return def, fmt.Errorf("%s=%q: %w", env, v, ErrInvalidNumber)
			}
			return i, nil
		}
	}
	if k.Exists(key) {
		return k.Int(key), nil
	}
	return def, nil
}

func envFloat(envKey string, k *koanf.Koanf, key string, def float64) (float64, error) {
	if v := os.Getenv(envKey); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return def, fmt.Errorf("%s=%q: %w", envKey, v, ErrInvalidNumber)
		}
		return f, nil
	}
	if k.Exists(key) {
		return k.Float64(key), nil
	}
	return def, nil
}

// envBool accepts true/1/yes/on and false/0/no/off; anything else keeps the
// file value or def.
func envBool(envKey string, k *koanf.Koanf, key string, def bool) bool {
	val := def
	if k.Exists(key) {
		val = k.Bool(key)
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv(envKey))) {
	case "true", "1", "yes", "on":
		val = true
	case "false", "0", "no", "off":
		val = false
	}
	return val
}

// envList splits a comma separated env var, falling back to a YAML list.
func envList(envKey string, k *koanf.Koanf, key string) []string {
	raw := k.Strings(key)
	if v := os.Getenv(envKey); v != "" {
		raw = strings.Split(v, ",")
	}
	var out []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsProduction reports whether Env is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// StorageConfigured reports whether media URLs can be signed.
func (c *Config) StorageConfigured() bool {
	return c.StorageEndpoint != "" && c.StorageAccessKeyID != "" && c.StorageSecretAccessKey != ""
}

// SignedURLTTL returns the validity window of signed media URLs.
func (c *Config) SignedURLTTL() time.Duration {
	return time.Duration(c.SignedURLTTLSeconds) * time.Second
}

// RoutingTimeout returns the routing request timeout.
func (c *Config) RoutingTimeout() time.Duration {
	return time.Duration(c.RoutingTimeoutMS) * time.Millisecond
}

// SessionIdle returns how long a search session may stay unused before it is swept.
func (c *Config) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

// FallbackOrigin returns the origin used when the client reports no position.
func (c *Config) FallbackOrigin() geo.Point {
	return geo.Point{Lat: c.FallbackLat, Lng: c.FallbackLng}
}

// Validate checks required values and ranges. It returns every problem found.
func (c *Config) Validate() []error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}
	if c.DatabaseURL == "" && c.IsProduction() {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.StorageEndpoint != "" || c.StorageAccessKeyID != "" || c.StorageSecretAccessKey != "" {
		if !c.StorageConfigured() {
			errs = append(errs, ErrIncompleteStorage)
		} else if _, err := validate.ServiceURL(c.StorageEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("STORAGE_ENDPOINT: %w", err))
		}
	}
	if c.SignedURLTTLSeconds <= 0 {
		errs = append(errs, ErrInvalidSignedURLTTL)
	}
	if _, err := validate.ServiceURL(c.RoutingURL); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidRoutingURL, err))
	}
	if c.RoutingTimeoutMS <= 0 {
		errs = append(errs, ErrInvalidRoutingTimeout)
	}
	if !c.FallbackOrigin().Valid() {
		errs = append(errs, ErrInvalidFallbackOrigin)
	}
	if c.EnrichmentConcurrency <= 0 {
		errs = append(errs, ErrInvalidConcurrency)
	}
	if c.SessionIdleMinutes <= 0 {
		errs = append(errs, ErrInvalidSessionIdle)
	}
	if c.MaxSessions <= 0 {
		errs = append(errs, ErrInvalidMaxSessions)
	}
	if c.TracingExporter != DefaultTracingExporter && c.TracingExporter != "otlp-grpc" {
		errs = append(errs, ErrInvalidTracingExporter)
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		errs = append(errs, ErrInvalidTracingSampleRate)
	}

	return errs
}

// LogSummary returns the configuration with secrets masked, for startup logs.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                      strconv.Itoa(c.Port),
		"env":                       c.Env,
		"database_url":              maskURLPassword(c.DatabaseURL),
		"jwt_secret":                maskSecret(c.JWTSecret),
		"jwt_previous_secret":       maskSecret(c.JWTPreviousSecret),
		"storage_endpoint":          c.StorageEndpoint,
		"storage_region":            c.StorageRegion,
		"storage_access_key_id":     maskSecret(c.StorageAccessKeyID),
		"storage_secret_access_key": maskSecret(c.StorageSecretAccessKey),
		"signed_url_ttl_seconds":    strconv.Itoa(c.SignedURLTTLSeconds),
		"routing_url":               c.RoutingURL,
		"routing_profile":           c.RoutingProfile,
		"routing_timeout_ms":        strconv.Itoa(c.RoutingTimeoutMS),
		"redis_url":                 maskURLPassword(c.RedisURL),
		"rank_tiers_path":           c.RankTiersPath,
		"fallback_origin":           fmt.Sprintf("%.4f,%.4f", c.FallbackLat, c.FallbackLng),
		"enrichment_concurrency":    strconv.Itoa(c.EnrichmentConcurrency),
		"session_idle_minutes":      strconv.Itoa(c.SessionIdleMinutes),
		"max_sessions":              strconv.Itoa(c.MaxSessions),
		"cors_allowed_origins":      strings.Join(c.CORSAllowedOrigins, ","),
		"tracing_enabled":           strconv.FormatBool(c.TracingEnabled),
		"tracing_exporter":          c.TracingExporter,
		"otlp_endpoint":             c.OTLPEndpoint,
		"tracing_sample_rate":       strconv.FormatFloat(c.TracingSampleRate, 'f', -1, 64),
	}
}

// maskSecret keeps the first 4 characters of secrets of at least 8 characters.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskURLPassword replaces the password of user:password@host URLs
// (postgres://, redis://, rediss://).
func maskURLPassword(s string) string {
	if s == "" {
		return "<not set>"
	}
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	at := strings.LastIndex(rest, "@")
	if at == -1 {
		return s
	}
	colon := strings.Index(rest[:at], ":")
	if colon == -1 {
		return s
	}
	return s[:schemeEnd+3] + rest[:colon] + ":****" + rest[at:]
}
