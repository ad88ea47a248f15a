// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ftledger/internal/token/models"
	pstrings "ftledger/pkg/platform/strings"
)

// Snapshot backends.
const (
	SnapshotNone     = "none"
	SnapshotRedis    = "redis"
	SnapshotPostgres = "postgres"
)

// Config is the full process configuration.
type Config struct {
	Server   Server
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    Kafka
	Snapshot Snapshot
	Sweep    Sweep
	Limits   RateLimit

	LogLevel       string `env:"LOG_LEVEL,default=info"`
	InitConfigPath string `env:"LEDGER_INIT_CONFIG,default=ledger.yaml"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"LEDGER_ADDR,default=:8080"`
	JWTSigningKey   string        `env:"JWT_SIGNING_KEY"`
	JWTIssuer       string        `env:"JWT_ISSUER,default=ftledger"`
	JWTAudience     string        `env:"JWT_AUDIENCE,default=ftledger-api"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=15s"`
}

// RedisConfig configures the Redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE,default=10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS,default=2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT,default=5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT,default=3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT,default=3s"`
}

// PostgresConfig configures the database pool. An empty DSN disables it.
type PostgresConfig struct {
	DSN             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=30m"`
}

// Kafka configures the action consumer and reply producer. Empty brokers
// disable the Kafka transport.
type Kafka struct {
	RawBrokers   string `env:"KAFKA_BROKERS"`
	ClientID     string `env:"KAFKA_CLIENT_ID,default=ftledger"`
	Group        string `env:"KAFKA_GROUP,default=ftledger"`
	ActionsTopic string `env:"KAFKA_ACTIONS_TOPIC,default=ledger.actions"`
	RepliesTopic string `env:"KAFKA_REPLIES_TOPIC,default=ledger.replies"`
	Partitions   int32  `env:"KAFKA_TOPIC_PARTITIONS,default=1"`
	Replication  int16  `env:"KAFKA_TOPIC_REPLICATION,default=1"`

	// Brokers is RawBrokers split on commas, deduplicated.
	Brokers []string
}

// Enabled reports whether any broker is configured.
func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0
}

// Snapshot selects where full-state snapshots are persisted.
type Snapshot struct {
	Backend string `env:"SNAPSHOT_BACKEND,default=none"`
	Retain  int    `env:"SNAPSHOT_RETAIN,default=10"`
}

// Sweep schedules the journal sweeper.
type Sweep struct {
	Schedule string `env:"SWEEP_SCHEDULE,default=@every 30s"`
}

// RateLimit bounds HTTP action submissions per caller. A limit of zero
// disables it. Redis backs the window when REDIS_URL is set.
type RateLimit struct {
	Actions int           `env:"RATE_LIMIT_ACTIONS,default=600"`
	Window  time.Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
}

// Load reads an optional .env file and decodes the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv decodes the environment without touching .env files.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	cfg.Kafka.Brokers = pstrings.SplitList(cfg.Kafka.RawBrokers, ",")
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	switch c.Snapshot.Backend {
	case SnapshotNone:
	case SnapshotRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("SNAPSHOT_BACKEND=redis requires REDIS_URL")
		}
	case SnapshotPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("SNAPSHOT_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown SNAPSHOT_BACKEND %q", c.Snapshot.Backend)
	}
	if c.Server.JWTSigningKey == "" {
		return fmt.Errorf("JWT_SIGNING_KEY is required")
	}
	return nil
}

// LoadInitConfig reads the ledger initialization payload from a YAML file.
func LoadInitConfig(path string) (models.InitConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.InitConfig{}, fmt.Errorf("read init config: %w", err)
	}
	var cfg models.InitConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return models.InitConfig{}, fmt.Errorf("parse init config %s: %w", path, err)
	}
	return cfg, nil
}
