package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, CounterBackendMemory, cfg.CounterBackend)
	assert.Equal(t, 4, cfg.ProjectIDWidth)
	assert.Equal(t, 5*time.Second, cfg.Calculator.Timeout)
	assert.Equal(t, "registry.project.transitions", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestFromEnvCounterBackendFollowsDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://registry@localhost/registry")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, CounterBackendPostgres, cfg.CounterBackend)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("REGISTRY_ADDR", ":9090")
	t.Setenv("COUNTER_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CALCULATOR_TIMEOUT", "750ms")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 750*time.Millisecond, cfg.Calculator.Timeout)
}

func TestValidate(t *testing.T) {
	t.Run("redis backend needs a url", func(t *testing.T) {
		t.Setenv("COUNTER_BACKEND", "redis")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "REDIS_URL")
	})

	t.Run("postgres backend needs a url", func(t *testing.T) {
		t.Setenv("COUNTER_BACKEND", "postgres")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "DATABASE_URL")
	})

	t.Run("memory backend refuses a shared database", func(t *testing.T) {
		t.Setenv("COUNTER_BACKEND", "memory")
		t.Setenv("DATABASE_URL", "postgres://registry@localhost/registry")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "DATABASE_URL")
	})

	t.Run("redis backend may share a database", func(t *testing.T) {
		t.Setenv("COUNTER_BACKEND", "redis")
		t.Setenv("REDIS_URL", "redis://localhost:6379/0")
		t.Setenv("DATABASE_URL", "postgres://registry@localhost/registry")
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, CounterBackendRedis, cfg.CounterBackend)
	})

	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("COUNTER_BACKEND", "etcd")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "etcd")
	})
}
