// Package config holds the service configuration and its loader.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/UninstallAll/AIDAscraper/internal/logger"
)

const (
	defaultServerPort      = 8060
	defaultServerTimeout   = 30
	defaultDatabasePort    = 5432
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5
	defaultRedisAddress    = "localhost:6379"
	defaultEventsStream    = "scraper-events"
	defaultDispatchStream  = "scrape-dispatch"
	defaultKafkaTopic      = "scrape-dispatch"
	defaultDispatchRetries = 3
	defaultSweepSchedule   = "@every 1m"
	defaultMaxRunTime      = 2 * time.Hour
	defaultTenant          = "default"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Auth modes. They are mutually exclusive deployment modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeJWT      = "jwt"
)

// Executor transports.
const (
	ExecutorNone  = "none"
	ExecutorRedis = "redis"
	ExecutorKafka = "kafka"
)

type Config struct {
	Debug      bool             `env:"APP_DEBUG" yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Executor   ExecutorConfig   `yaml:"executor"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Logging    logger.Config    `yaml:"logging"`
}

type ServerConfig struct {
	Host         string        `env:"SERVER_HOST"  yaml:"host"`
	Port         int           `env:"SERVER_PORT"  yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" yaml:"cors_origins"`
}

type StorageConfig struct {
	Driver string `env:"STORAGE_DRIVER" yaml:"driver"`
}

type DatabaseConfig struct {
	Host            string        `env:"DB_HOST"     yaml:"host"`
	Port            int           `env:"DB_PORT"     yaml:"port"`
	User            string        `env:"DB_USER"     yaml:"user"`
	Password        string        `env:"DB_PASSWORD" yaml:"password"`
	DBName          string        `env:"DB_NAME"     yaml:"dbname"`
	SSLMode         string        `env:"DB_SSLMODE"  yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `env:"DB_AUTO_MIGRATE" yaml:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisConfig holds Redis connection configuration for lifecycle events and dispatch.
type RedisConfig struct {
	Address      string `env:"REDIS_ADDRESS"        yaml:"address"`
	Password     string `env:"REDIS_PASSWORD"       yaml:"password"`
	DB           int    `env:"REDIS_DB"             yaml:"db"`
	EventsStream string `env:"REDIS_EVENTS_STREAM"  yaml:"events_stream"`
	Enabled      bool   `env:"REDIS_EVENTS_ENABLED" yaml:"enabled"`
}

type AuthConfig struct {
	Mode          string `env:"AUTH_MODE"           yaml:"mode"`
	JWTSecret     string `env:"AUTH_JWT_SECRET"     yaml:"jwt_secret"`
	DefaultTenant string `env:"AUTH_DEFAULT_TENANT" yaml:"default_tenant"`
	// ExecutorToken guards the executor callback routes when set. It is
	// mandatory in jwt mode.
	ExecutorToken string `env:"EXECUTOR_TOKEN" yaml:"executor_token"`
}

type ExecutorConfig struct {
	Transport       string        `env:"EXECUTOR_TRANSPORT"       yaml:"transport"`
	DispatchStream  string        `env:"EXECUTOR_DISPATCH_STREAM" yaml:"dispatch_stream"`
	KafkaBrokers    []string      `env:"EXECUTOR_KAFKA_BROKERS"   yaml:"kafka_brokers"`
	KafkaTopic      string        `env:"EXECUTOR_KAFKA_TOPIC"     yaml:"kafka_topic"`
	DispatchRetries int           `yaml:"dispatch_retries"`
	DispatchTimeout time.Duration `yaml:"dispatch_timeout"`
}

// SupervisorConfig configures the stalled-job sweep.
type SupervisorConfig struct {
	Enabled    bool          `env:"SUPERVISOR_ENABLED"      yaml:"enabled"`
	Schedule   string        `env:"SUPERVISOR_SCHEDULE"     yaml:"schedule"`
	MaxRunTime time.Duration `env:"SUPERVISOR_MAX_RUN_TIME" yaml:"max_run_time"`
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port is required and must be positive")
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Database.Host == "" {
			return errors.New("database.host is required")
		}
		if c.Database.User == "" {
			return errors.New("database.user is required")
		}
		if c.Database.DBName == "" {
			return errors.New("database.dbname is required")
		}
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage.Driver)
	}

	switch c.Auth.Mode {
	case AuthModeDisabled:
		if c.Auth.DefaultTenant == "" {
			return errors.New("auth.default_tenant is required when auth is disabled")
		}
	case AuthModeJWT:
		if c.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is required in jwt mode")
		}
		if c.Auth.ExecutorToken == "" {
			return errors.New("auth.executor_token is required in jwt mode")
		}
	default:
		return fmt.Errorf("auth.mode must be %q or %q, got %q", AuthModeDisabled, AuthModeJWT, c.Auth.Mode)
	}

	switch c.Executor.Transport {
	case ExecutorNone:
	case ExecutorRedis:
		if c.Redis.Address == "" {
			return errors.New("redis.address is required for the redis executor transport")
		}
	case ExecutorKafka:
		if len(c.Executor.KafkaBrokers) == 0 {
			return errors.New("executor.kafka_brokers is required for the kafka executor transport")
		}
	default:
		return fmt.Errorf("executor.transport must be one of none, redis, kafka, got %q", c.Executor.Transport)
	}

	if c.Supervisor.Enabled && c.Supervisor.MaxRunTime <= 0 {
		return errors.New("supervisor.max_run_time must be positive")
	}

	return nil
}

// Load reads configuration from path, applying defaults and environment overrides.
func Load(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path, setDefaults)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("invalid config: %w", validateErr)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultServerTimeout * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultServerTimeout * time.Second
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StoragePostgres
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = defaultDatabasePort
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = defaultMaxOpenConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = defaultConnMaxLifetime * time.Minute
	}
	if cfg.Redis.Address == "" {
		cfg.Redis.Address = defaultRedisAddress
	}
	if cfg.Redis.EventsStream == "" {
		cfg.Redis.EventsStream = defaultEventsStream
	}
	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = AuthModeDisabled
	}
	if cfg.Auth.DefaultTenant == "" {
		cfg.Auth.DefaultTenant = defaultTenant
	}
	if cfg.Executor.Transport == "" {
		cfg.Executor.Transport = ExecutorNone
	}
	if cfg.Executor.DispatchStream == "" {
		cfg.Executor.DispatchStream = defaultDispatchStream
	}
	if cfg.Executor.KafkaTopic == "" {
		cfg.Executor.KafkaTopic = defaultKafkaTopic
	}
	if cfg.Executor.DispatchRetries == 0 {
		cfg.Executor.DispatchRetries = defaultDispatchRetries
	}
	if cfg.Executor.DispatchTimeout == 0 {
		cfg.Executor.DispatchTimeout = 5 * time.Second
	}
	if cfg.Supervisor.Schedule == "" {
		cfg.Supervisor.Schedule = defaultSweepSchedule
	}
	if cfg.Supervisor.MaxRunTime == 0 {
		cfg.Supervisor.MaxRunTime = defaultMaxRunTime
	}
	cfg.Logging.SetDefaults()
	if cfg.Debug {
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
	}
}
