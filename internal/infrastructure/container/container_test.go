package container

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/alchemorsel/cookcard/internal/infrastructure/config"
	"github.com/alchemorsel/cookcard/internal/infrastructure/monitoring"
	"github.com/alchemorsel/cookcard/internal/infrastructure/persistence/memory"
	redisStore "github.com/alchemorsel/cookcard/internal/infrastructure/persistence/redis"
	"github.com/alchemorsel/cookcard/internal/infrastructure/telemetry"
	"github.com/alchemorsel/cookcard/pkg/healthcheck"
)

func TestModule_GraphIsComplete(t *testing.T) {
	require.NoError(t, fx.ValidateApp(WithConfigPath(""), Module, fx.NopLogger))
}

func TestCoreModule_GraphIsComplete(t *testing.T) {
	require.NoError(t, fx.ValidateApp(WithConfigPath(""), CoreModule, fx.NopLogger))
}

func TestNewCounterStore_MemoryWhenRedisDisabled(t *testing.T) {
	log := zaptest.NewLogger(t)
	lc := fxtest.NewLifecycle(t)
	health := healthcheck.New("test", log)

	cfg := &config.Config{}
	cfg.Redis.Enabled = false

	store, err := NewCounterStore(lc, cfg, log, health, monitoring.NewMetricsCollector(log))
	require.NoError(t, err)
	assert.IsType(t, &memory.CounterStore{}, store)

	lc.RequireStart()
	resp := health.Check(context.Background())
	assert.Equal(t, healthcheck.StatusHealthy, resp.Status)
	lc.RequireStop()
}

func gaugeValue(t *testing.T, metrics *monitoring.MetricsCollector, name string) float64 {
	t.Helper()
	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	return 0
}

func TestNewCounterStore_RedisRegistersClientHealthAndMetrics(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	lc := fxtest.NewLifecycle(t)
	health := healthcheck.New("test", log)
	metrics := monitoring.NewMetricsCollector(log)

	cfg := &config.Config{}
	cfg.Redis.Enabled = true
	cfg.Redis.Host = mr.Host()
	cfg.Redis.Port = port

	store, err := NewCounterStore(lc, cfg, log, health, metrics)
	require.NoError(t, err)
	assert.IsType(t, &redisStore.CounterStore{}, store)

	lc.RequireStart()
	defer lc.RequireStop()

	resp := health.Check(context.Background())
	require.Len(t, resp.Checks, 2)
	assert.Equal(t, "counter_store", resp.Checks[0].Name)
	assert.Equal(t, "redis_client", resp.Checks[1].Name)
	assert.Equal(t, healthcheck.StatusHealthy, resp.Status)

	assert.Eventually(t, func() bool {
		return gaugeValue(t, metrics, "cookcard_redis_commands") >= 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0.0, gaugeValue(t, metrics, "cookcard_redis_circuit_open"))
}

func TestNewPersistence(t *testing.T) {
	log := zaptest.NewLogger(t)

	t.Run("disabled", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Database.Driver = "none"

		p, err := NewPersistence(fxtest.NewLifecycle(t), cfg, log, healthcheck.New("test", log), monitoring.NewMetricsCollector(log))
		require.NoError(t, err)
		assert.Nil(t, p.DB)
		assert.Nil(t, p.Cards)
		assert.Nil(t, p.Tiers)
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Database.Driver = "sqlite"
		cfg.Database.Path = filepath.Join(t.TempDir(), "cookcard.db")

		lc := fxtest.NewLifecycle(t)
		health := healthcheck.New("test", log)
		p, err := NewPersistence(lc, cfg, log, health, monitoring.NewMetricsCollector(log))
		require.NoError(t, err)
		require.NotNil(t, p.DB)
		assert.NotNil(t, p.Cards)
		assert.NotNil(t, p.Tiers)

		lc.RequireStart()
		resp := health.Check(context.Background())
		require.Len(t, resp.Checks, 1)
		assert.Equal(t, "database", resp.Checks[0].Name)
		lc.RequireStop()
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Database.Driver = "mysql"

		_, err := NewPersistence(fxtest.NewLifecycle(t), cfg, log, healthcheck.New("test", log), monitoring.NewMetricsCollector(log))
		assert.ErrorContains(t, err, "unsupported database driver")
	})
}

func TestNewCollaborators(t *testing.T) {
	log := zap.NewNop()
	tracing, err := monitoring.NewTracingProvider(context.Background(), monitoring.TracingConfig{ServiceName: "test"}, log)
	require.NoError(t, err)

	t.Run("no text provider", func(t *testing.T) {
		cfg := &config.Config{}
		collab := NewCollaborators(cfg, log, tracing)
		assert.NotNil(t, collab.Metadata)
		assert.NotNil(t, collab.Comments)
		assert.NotNil(t, collab.Transcripts)
		assert.Nil(t, collab.Text)
		assert.Nil(t, collab.Vision)
	})

	t.Run("anthropic text with vision", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.AI.TextProvider = "anthropic"
		cfg.AI.EnableVisionModel = true

		collab := NewCollaborators(cfg, log, tracing)
		assert.NotNil(t, collab.Text)
		assert.NotNil(t, collab.Vision)
	})

	t.Run("openai text", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.AI.TextProvider = "openai"

		collab := NewCollaborators(cfg, log, tracing)
		assert.NotNil(t, collab.Text)
		assert.Nil(t, collab.Vision)
	})
}

func TestNewTelemetryEmitter_LogAndMetricsWithoutBrokers(t *testing.T) {
	log := zaptest.NewLogger(t)
	cfg := &config.Config{}

	emitter := NewTelemetryEmitter(fxtest.NewLifecycle(t), cfg, log, monitoring.NewMetricsCollector(log), healthcheck.New("test", log))
	multi, ok := emitter.(telemetry.Multi)
	require.True(t, ok)
	assert.Len(t, multi, 2)
}

func TestNewTelemetryEmitter_AddsKafkaCollector(t *testing.T) {
	log := zaptest.NewLogger(t)
	cfg := &config.Config{}
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Kafka.Topic = "cookcard.events"

	lc := fxtest.NewLifecycle(t)
	health := healthcheck.New("test", log)
	emitter := NewTelemetryEmitter(lc, cfg, log, monitoring.NewMetricsCollector(log), health)
	multi, ok := emitter.(telemetry.Multi)
	require.True(t, ok)
	require.Len(t, multi, 3)
	assert.IsType(t, &telemetry.Collector{}, multi[2])

	resp := health.Check(context.Background())
	require.Len(t, resp.Checks, 1)
	assert.Equal(t, "telemetry", resp.Checks[0].Name)
	assert.Equal(t, healthcheck.StatusHealthy, resp.Checks[0].Status)
}
