package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Counter backends.
const (
	CounterBackendMemory   = "memory"
	CounterBackendRedis    = "redis"
	CounterBackendPostgres = "postgres"
)

// Server captures process level configuration.
type Server struct {
	Addr              string        `env:"REGISTRY_ADDR" envDefault:":8080"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CounterBackend    string        `env:"COUNTER_BACKEND"`
	ProjectIDWidth    int           `env:"PROJECT_ID_WIDTH" envDefault:"4"`
	ConstantsSeedPath string        `env:"CONSTANTS_SEED_PATH"`

	Postgres   PostgresConfig
	Redis      RedisConfig      `envPrefix:"REDIS_"`
	Calculator CalculatorConfig `envPrefix:"CALCULATOR_"`
	Kafka      KafkaConfig      `envPrefix:"KAFKA_"`
}

// PostgresConfig configures the project, constants and counter tables.
// An empty URL selects the in-memory stores.
type PostgresConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// RedisConfig configures the Redis counter backend.
type RedisConfig struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
}

// CalculatorConfig points at the external credit calculator.
type CalculatorConfig struct {
	URL              string        `env:"URL"`
	Timeout          time.Duration `env:"TIMEOUT" envDefault:"5s"`
	FailureThreshold int           `env:"FAILURE_THRESHOLD" envDefault:"5"`
	Cooldown         time.Duration `env:"COOLDOWN" envDefault:"30s"`
}

// KafkaConfig configures transition event publishing. No brokers disables it.
type KafkaConfig struct {
	Brokers           []string `env:"BROKERS" envSeparator:","`
	Topic             string   `env:"TOPIC" envDefault:"registry.project.transitions"`
	Partitions        int32    `env:"PARTITIONS" envDefault:"3"`
	ReplicationFactor int16    `env:"REPLICATION_FACTOR" envDefault:"1"`
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// applyDefaults picks the counter backend when none is set: a shared database
// implies shared counters, otherwise the process keeps them in memory.
func (c *Server) applyDefaults() {
	if c.CounterBackend != "" {
		return
	}
	c.CounterBackend = CounterBackendMemory
	if c.Postgres.URL != "" {
		c.CounterBackend = CounterBackendPostgres
	}
}

// Validate checks cross-field constraints env tags cannot express.
func (c Server) Validate() error {
	switch c.CounterBackend {
	case CounterBackendMemory:
		// Process-local counters would hand out colliding ids across replicas
		// sharing one database.
		if c.Postgres.URL != "" {
			return fmt.Errorf("COUNTER_BACKEND=memory cannot be used with DATABASE_URL")
		}
	case CounterBackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("COUNTER_BACKEND=redis requires REDIS_URL")
		}
	case CounterBackendPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("COUNTER_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown COUNTER_BACKEND %q", c.CounterBackend)
	}
	if c.ProjectIDWidth < 1 {
		return fmt.Errorf("PROJECT_ID_WIDTH must be positive")
	}
	return nil
}
