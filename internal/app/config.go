// Package app loads process configuration shared by the server, worker and seed binaries.
package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"

	"stockcore/internal/infrastructure/storage/postgres"
	"stockcore/pkg/logger"
)

// Activity delivery modes.
const (
	ActivityAsync = "async"
	ActivitySync  = "sync"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv          string        `envconfig:"APP_ENV" default:"development"`
	AppAddr         string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout  time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL        string        `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns         int32         `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns         int32         `envconfig:"DB_MIN_CONNS" default:"5"`
	DBStatementTimeout time.Duration `envconfig:"DB_STATEMENT_TIMEOUT" default:"30s"`
	TxMaxAttempts      int           `envconfig:"TX_MAX_ATTEMPTS" default:"3"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`

	JWTSecret      string        `envconfig:"JWT_SECRET"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
	ActivityMode   string        `envconfig:"ACTIVITY_MODE" default:"async"`
	PrefixCacheTTL time.Duration `envconfig:"PREFIX_CACHE_TTL" default:"5m"`

	WorkerConcurrency int `envconfig:"WORKER_CONCURRENCY" default:"5"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL must not be empty")
	}
	if c.ActivityMode != ActivityAsync && c.ActivityMode != ActivitySync {
		return fmt.Errorf("ACTIVITY_MODE must be %q or %q, got %q", ActivityAsync, ActivitySync, c.ActivityMode)
	}
	if c.TxMaxAttempts < 1 {
		return errors.New("TX_MAX_ATTEMPTS must be at least 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return errors.New("DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	}
	return nil
}

// RequireJWTSecret fails unless a signing secret is configured.
func (c *Config) RequireJWTSecret() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be provided")
	}
	return nil
}

// IsDevelopment returns true outside production-like environments.
func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}

// PoolConfig derives the database pool settings.
func (c *Config) PoolConfig() postgres.PoolConfig {
	pc := postgres.DefaultPoolConfig(c.DatabaseURL)
	pc.MaxConns = c.DBMaxConns
	pc.MinConns = c.DBMinConns
	pc.StatementTimeout = c.DBStatementTimeout
	return pc
}

// LedgerTxOptions derives the options every ledger unit of work runs with.
func (c *Config) LedgerTxOptions() postgres.TxOptions {
	opts := postgres.SerializableTxOptions()
	opts.StatementTimeout = c.DBStatementTimeout
	opts.MaxAttempts = c.TxMaxAttempts
	return opts
}

// NewLogger builds the process logger and installs it as the default.
func NewLogger(cfg *Config) *logger.Logger {
	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	return log
}
