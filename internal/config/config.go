package config

import (
	"fmt"

	pkgconfig "github.com/utafrali/AuthGo/pkg/config"
)

// Default secrets accepted only in development mode.
const (
	devAccessSecret  = "change-this-access-token-secret-dev-only"
	devRefreshSecret = "change-this-refresh-token-secret-dev-only"
)

// Config holds all configuration for the auth service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"AUTH_HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"authgo"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"authgo_secret"`
	PostgresDB   string `env:"AUTH_DB_NAME" envDefault:"auth_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Connection pool tuning
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINS" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINS" envDefault:"15"`

	// Slow query logging threshold in milliseconds (0 disables).
	SlowQueryThresholdMs int `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// JWT. Access and refresh tokens are signed with distinct secrets.
	JWTAccessSecret  string `env:"JWT_ACCESS_SECRET" envDefault:"change-this-access-token-secret-dev-only"`
	JWTRefreshSecret string `env:"JWT_REFRESH_SECRET" envDefault:"change-this-refresh-token-secret-dev-only"`
	JWTAccessExpiry  string `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	JWTRefreshExpiry string `env:"JWT_REFRESH_TOKEN_EXPIRY" envDefault:"168h"`

	// Password hashing
	BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`

	// Janitor interval for purging expired refresh token records.
	TokenPurgeIntervalMins int `env:"TOKEN_PURGE_INTERVAL_MINS" envDefault:"60"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load auth config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}

	// In non-development environments, require explicitly set, strong secrets.
	if cfg.Environment != "development" {
		if cfg.JWTAccessSecret == devAccessSecret {
			return nil, fmt.Errorf("JWT_ACCESS_SECRET must be explicitly set via environment variable in %q mode", cfg.Environment)
		}
		if cfg.JWTRefreshSecret == devRefreshSecret {
			return nil, fmt.Errorf("JWT_REFRESH_SECRET must be explicitly set via environment variable in %q mode", cfg.Environment)
		}
		if len(cfg.JWTAccessSecret) < 32 {
			return nil, fmt.Errorf("JWT_ACCESS_SECRET must be at least 32 characters long, got %d", len(cfg.JWTAccessSecret))
		}
		if len(cfg.JWTRefreshSecret) < 32 {
			return nil, fmt.Errorf("JWT_REFRESH_SECRET must be at least 32 characters long, got %d", len(cfg.JWTRefreshSecret))
		}
	}

	// The two signing secrets must differ in every environment, or a refresh
	// token could be replayed as an access token.
	if cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	return cfg, nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}
