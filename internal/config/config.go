package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Backend names.
const (
	BackendLocal    = "local"
	BackendSupabase = "supabase"
)

// Profile sources.
const (
	ProfileSourceBackend  = "backend"
	ProfileSourcePostgres = "postgres"
)

// DefaultLocalJWTSecret is what LOCAL_JWT_SECRET falls back to. Tokens signed with
// it can be forged by anyone who has read this file.
const DefaultLocalJWTSecret = "local-development-secret"

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"VERSION" default:"dev"`

	Backend            string `envconfig:"BACKEND" default:"local"`
	SupabaseURL        string `envconfig:"SUPABASE_URL"`
	SupabaseAnonKey    string `envconfig:"SUPABASE_ANON_KEY"`
	SupabaseServiceKey string `envconfig:"SUPABASE_SERVICE_KEY"`
	SupabaseJWTSecret  string `envconfig:"SUPABASE_JWT_SECRET"`

	ProfileSource         string        `envconfig:"PROFILE_SOURCE" default:"backend"`
	DatabaseURL           string        `envconfig:"DATABASE_URL"`
	DestinationsSeed      string        `envconfig:"DESTINATIONS_SEED" default:"seed/destinations.yaml"`
	DestinationsStaleTime time.Duration `envconfig:"DESTINATIONS_STALE_TIME" default:"5m"`

	SessionCacheSize  int           `envconfig:"SESSION_CACHE_SIZE" default:"1024"`
	SessionStorageTTL time.Duration `envconfig:"SESSION_STORAGE_TTL" default:"168h"`
	RefreshInterval   time.Duration `envconfig:"REFRESH_INTERVAL" default:"30s"`
	RefreshMargin     time.Duration `envconfig:"REFRESH_MARGIN" default:"60s"`
	GuardLoadTimeout  time.Duration `envconfig:"GUARD_LOAD_TIMEOUT" default:"2s"`

	CookieSecure       bool     `envconfig:"COOKIE_SECURE" default:"false"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`

	LocalJWTSecret     string        `envconfig:"LOCAL_JWT_SECRET" default:"local-development-secret"`
	LocalTokenTTL      time.Duration `envconfig:"LOCAL_TOKEN_TTL" default:"1h"`
	LocalAdminEmail    string        `envconfig:"LOCAL_ADMIN_EMAIL"`
	LocalAdminPassword string        `envconfig:"LOCAL_ADMIN_PASSWORD"`
	BcryptCost         int           `envconfig:"BCRYPT_COST" default:"12"`
}

// Load reads configuration from environment variables into a Config struct and
// validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that depend on each other.
func (c *Config) Validate() error {
	var errs []error

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel))
	}

	switch c.Backend {
	case BackendSupabase:
		if c.SupabaseURL == "" {
			errs = append(errs, errors.New("SUPABASE_URL is required when BACKEND=supabase"))
		}
		if c.SupabaseAnonKey == "" {
			errs = append(errs, errors.New("SUPABASE_ANON_KEY is required when BACKEND=supabase"))
		}
	case BackendLocal:
		if c.LocalJWTSecret == "" {
			errs = append(errs, errors.New("LOCAL_JWT_SECRET is required when BACKEND=local"))
		}
		if (c.LocalAdminEmail == "") != (c.LocalAdminPassword == "") {
			errs = append(errs, errors.New("LOCAL_ADMIN_EMAIL and LOCAL_ADMIN_PASSWORD must be set together"))
		}
	default:
		errs = append(errs, fmt.Errorf("BACKEND must be %s or %s, got %q", BackendLocal, BackendSupabase, c.Backend))
	}

	switch c.ProfileSource {
	case ProfileSourceBackend:
	case ProfileSourcePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when PROFILE_SOURCE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("PROFILE_SOURCE must be %s or %s, got %q", ProfileSourceBackend, ProfileSourcePostgres, c.ProfileSource))
	}

	if c.SessionCacheSize <= 0 {
		errs = append(errs, errors.New("SESSION_CACHE_SIZE must be positive"))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, errors.New("REFRESH_INTERVAL must be positive"))
	}
	if c.GuardLoadTimeout < 0 {
		errs = append(errs, errors.New("GUARD_LOAD_TIMEOUT must not be negative"))
	}

	return errors.Join(errs...)
}

// Warnings lists settings that are valid but unsafe outside local development.
func (c *Config) Warnings() []string {
	var warnings []string

	switch c.Backend {
	case BackendLocal:
		if c.LocalJWTSecret == DefaultLocalJWTSecret {
			warnings = append(warnings, "LOCAL_JWT_SECRET is the built-in development secret; access tokens can be forged")
		}
	case BackendSupabase:
		if c.SupabaseJWTSecret == "" {
			warnings = append(warnings, "SUPABASE_JWT_SECRET not set; access token signatures are not verified")
		}
		if c.ProfileSource == ProfileSourceBackend && c.SupabaseServiceKey == "" {
			warnings = append(warnings, "SUPABASE_SERVICE_KEY not set; role lookups run as the signed-in user and need a policy letting users read their own profile")
		}
	}

	return warnings
}
