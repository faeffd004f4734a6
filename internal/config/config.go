package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers selectable through STORAGE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config carries every runtime setting for the registry server. Values come
// from environment variables, with an optional .env file for local work.
type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	StorageDriver  string        `mapstructure:"STORAGE_DRIVER"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir  string        `mapstructure:"MIGRATIONS_DIR"`
	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	AuthIssuer     string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL    string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience   string        `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	MaxBodySize    string        `mapstructure:"MAX_BODY_SIZE"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

// settings lists every known key with its development default. Keys whose
// default is nil have no sensible fallback and stay unset unless the
// environment provides them.
var settings = map[string]any{
	"PORT":             "8000",
	"ENV":              "development",
	"LOG_LEVEL":        "info",
	"STORAGE_DRIVER":   DriverPostgres,
	"DATABASE_URL":     nil,
	"DB_MAX_CONNS":     20,
	"DB_MIN_CONNS":     5,
	"MIGRATIONS_DIR":   "migrations",
	"JWT_SECRET":       nil,
	"AUTH_ISSUER":      nil,
	"AUTH_JWKS_URL":    nil,
	"AUTH_AUDIENCE":    nil,
	"CORS_ORIGINS":     "http://localhost:3000",
	"RATE_LIMIT_RPS":   100,
	"RATE_LIMIT_BURST": 200,
	"MAX_BODY_SIZE":    "256K",
	"REQUEST_TIMEOUT":  "30s",
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	for key, def := range settings {
		v.BindEnv(key)
		if def != nil {
			v.SetDefault(key, def)
		}
	}

	// A missing .env file is fine; the environment is the primary source.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Unmarshal leaves the slice nil when CORS_ORIGINS arrived as a plain
	// env string; split it by hand.
	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.StorageDriver == DriverPostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER is %q", DriverPostgres)
	}

	if cfg.IsDev() {
		devWarning()
	}

	return cfg, nil
}

func devWarning() {
	for _, line := range []string{
		"============================================================",
		"Server is running in DEVELOPMENT mode (ENV=development).",
		"Every request is treated as an authenticated admin.",
		"Set ENV=production and configure JWT_SECRET or AUTH_ISSUER",
		"before exposing this server.",
		"============================================================",
	} {
		log.Println("WARNING: " + line)
	}
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// mode either JWT_SECRET (HMAC tokens) or AUTH_ISSUER (JWKS validation against
// an external identity provider) must be set so that real authentication is
// enforced on the registry API.
func (c *Config) Validate() error {
	if c.StorageDriver != DriverPostgres && c.StorageDriver != DriverMemory {
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.StorageDriver)
	}

	if !c.IsDev() && c.JWTSecret == "" && c.AuthIssuer == "" {
		return fmt.Errorf(
			"JWT_SECRET or AUTH_ISSUER must be set when ENV=%q. "+
				"Refusing to start without authentication configuration", c.Env)
	}

	if c.DBMaxConns > 0 && c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}

	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative, got %s", c.RequestTimeout)
	}

	return nil
}
