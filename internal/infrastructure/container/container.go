// Package container provides dependency injection using Uber FX
package container

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/alchemorsel/cookcard/internal/application/extraction"
	"github.com/alchemorsel/cookcard/internal/infrastructure/ai/anthropic"
	"github.com/alchemorsel/cookcard/internal/infrastructure/ai/openai"
	"github.com/alchemorsel/cookcard/internal/infrastructure/cache"
	"github.com/alchemorsel/cookcard/internal/infrastructure/config"
	"github.com/alchemorsel/cookcard/internal/infrastructure/http/server"
	"github.com/alchemorsel/cookcard/internal/infrastructure/monitoring"
	gormRepo "github.com/alchemorsel/cookcard/internal/infrastructure/persistence/gorm"
	"github.com/alchemorsel/cookcard/internal/infrastructure/persistence/memory"
	"github.com/alchemorsel/cookcard/internal/infrastructure/persistence/postgres"
	redisStore "github.com/alchemorsel/cookcard/internal/infrastructure/persistence/redis"
	"github.com/alchemorsel/cookcard/internal/infrastructure/persistence/sqlite"
	"github.com/alchemorsel/cookcard/internal/infrastructure/sources"
	"github.com/alchemorsel/cookcard/internal/infrastructure/telemetry"
	"github.com/alchemorsel/cookcard/internal/ports/inbound"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
	"github.com/alchemorsel/cookcard/pkg/healthcheck"
	"github.com/alchemorsel/cookcard/pkg/logger"
)

// ConfigPath is the optional config file handed to config.Load
type ConfigPath string

// CoreModule wires everything the extraction service needs, without the HTTP server.
// The CLI runs on this module alone.
var CoreModule = fx.Options(
	ConfigModule,
	LoggerModule,
	ObservabilityModule,
	StoreModule,
	DatabaseModule,
	CollaboratorModule,
	TelemetryModule,
	ServiceModule,
)

// Module provides the full API server graph
var Module = fx.Options(
	CoreModule,
	HTTPModule,
	LifecycleModule,
)

// WithConfigPath supplies the config file location
func WithConfigPath(path string) fx.Option {
	return fx.Supply(ConfigPath(path))
}

// ConfigModule provides configuration
var ConfigModule = fx.Provide(
	func(path ConfigPath) (*config.Config, error) {
		return config.Load(string(path))
	},
)

// LoggerModule provides logging
var LoggerModule = fx.Provide(
	func(cfg *config.Config) (*zap.Logger, error) {
		return logger.New(logger.Config{
			Level:       cfg.App.LogLevel,
			Format:      cfg.App.LogFormat,
			Development: cfg.App.Debug,
		})
	},
)

// ObservabilityModule provides metrics, tracing and the health registry
var ObservabilityModule = fx.Provide(
	monitoring.NewMetricsCollector,
	NewTracingProvider,
	func(cfg *config.Config, log *zap.Logger) *healthcheck.HealthCheck {
		return healthcheck.New(cfg.App.Version, log)
	},
)

// NewTracingProvider builds the tracer and flushes it on stop
func NewTracingProvider(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*monitoring.TracingProvider, error) {
	tp, err := monitoring.NewTracingProvider(context.Background(), monitoring.TracingConfig{
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		OTLPEndpoint:   cfg.Monitoring.OTLPEndpoint,
		Insecure:       cfg.Monitoring.OTLPInsecure,
		SamplingRate:   cfg.Monitoring.SamplingRate,
		Enabled:        cfg.Monitoring.EnableTracing,
	}, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: tp.Shutdown})
	return tp, nil
}

// StoreModule provides the shared counter store
var StoreModule = fx.Provide(NewCounterStore)

// NewCounterStore picks Redis when enabled and the in-memory store otherwise
func NewCounterStore(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	health *healthcheck.HealthCheck,
	metrics *monitoring.MetricsCollector,
) (outbound.CounterStore, error) {
	if !cfg.Redis.Enabled {
		log.Warn("Redis disabled, using in-memory counter store; quotas are per process")
		store := memory.NewCounterStore()
		stop := make(chan struct{})
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go sweep(store, time.Minute, stop)
				return nil
			},
			OnStop: func(context.Context) error {
				close(stop)
				return nil
			},
		})
		health.Register("counter_store", healthcheck.NewPingChecker(store, true))
		return store, nil
	}

	client, err := cache.NewRedisClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("counter store: %w", err)
	}
	stop := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go pollRedisStats(client, metrics, 15*time.Second, stop)
			return nil
		},
		OnStop: func(context.Context) error {
			close(stop)
			return client.Close()
		},
	})

	store := redisStore.NewCounterStore(client, log)
	health.Register("counter_store", healthcheck.NewPingChecker(store, true))
	health.Register("redis_client", healthcheck.NewCustomChecker(client.HealthStatus))
	return store, nil
}

func pollRedisStats(client *cache.RedisClient, metrics *monitoring.MetricsCollector, every time.Duration, stop <-chan struct{}) {
	publish := func() {
		m := client.GetMetrics()
		metrics.UpdateRedisStats(m.TotalCommands, m.FailedOps, m.AvgResponseTime, client.CircuitState() == cache.CircuitOpen)
	}
	publish()

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			publish()
		case <-stop:
			return
		}
	}
}

func sweep(store *memory.CounterStore, every time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			store.Sweep()
		case <-stop:
			return
		}
	}
}

// Persistence holds the card and tier repositories. Both are nil when the driver is "none".
type Persistence struct {
	DB    *gorm.DB
	Cards outbound.CookCardRepository
	Tiers outbound.TierRepository
}

// DatabaseModule provides card and tier persistence
var DatabaseModule = fx.Provide(NewPersistence)

// NewPersistence opens the configured database and registers its health check
func NewPersistence(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	health *healthcheck.HealthCheck,
	metrics *monitoring.MetricsCollector,
) (*Persistence, error) {
	var (
		db      *gorm.DB
		closeDB func() error
	)

	switch cfg.Database.Driver {
	case "none", "":
		log.Info("Card persistence disabled")
		return &Persistence{}, nil
	case "sqlite":
		gormLog := postgres.NewGORMLogger(log, cfg.Database.LogLevel, cfg.Database.SlowQueryThreshold)
		sqliteDB, err := sqlite.SetupDatabase(cfg.Database.Path, gormLog)
		if err != nil {
			return nil, err
		}
		sqlDB, err := sqliteDB.DB()
		if err != nil {
			return nil, err
		}
		db, closeDB = sqliteDB, sqlDB.Close
		log.Info("Connected to SQLite database", zap.String("path", cfg.Database.Path))
	case "postgres":
		cm, err := postgres.NewConnectionManager(cfg, log)
		if err != nil {
			return nil, err
		}
		db, closeDB = cm.GetDB(), cm.Close
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	health.Register("database", healthcheck.NewDatabaseChecker(sqlDB))

	stop := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				ticker := time.NewTicker(15 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						stats := sqlDB.Stats()
						metrics.UpdateDBConnections(stats.OpenConnections, stats.InUse)
					case <-stop:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			close(stop)
			return closeDB()
		},
	})

	return &Persistence{
		DB:    db,
		Cards: gormRepo.NewCookCardRepository(db),
		Tiers: gormRepo.NewTierRepository(db),
	}, nil
}

// CollaboratorModule provides the fetchers and models the ladder calls
var CollaboratorModule = fx.Provide(NewCollaborators)

// NewCollaborators builds the source fetchers and the configured model provider.
// Models are wrapped in tracing spans.
func NewCollaborators(cfg *config.Config, log *zap.Logger, tracing *monitoring.TracingProvider) extraction.Collaborators {
	fetcher := sources.NewFetcher(cfg.Sources, log)
	collab := extraction.Collaborators{
		Metadata:    sources.NewMetadataFetcher(fetcher, cfg.Sources, log),
		Comments:    sources.NewCommentFetcher(fetcher, cfg.Sources, log),
		Transcripts: sources.NewTranscriptFetcher(fetcher, cfg.Sources, log),
	}

	var oa *openai.Client
	switch cfg.AI.TextProvider {
	case "anthropic":
		collab.Text = tracing.TraceText(anthropic.NewTextModel(cfg.AI, log))
	case "openai":
		oa = openai.NewClient(cfg.AI, log)
		collab.Text = tracing.TraceText(oa)
	default:
		log.Warn("No text model configured; cards fall back to metadata only")
	}

	if cfg.AI.EnableVisionModel {
		if oa == nil {
			oa = openai.NewClient(cfg.AI, log)
		}
		collab.Vision = tracing.TraceVision(oa)
	}

	log.Info("Extraction collaborators ready",
		zap.String("text_provider", cfg.AI.TextProvider),
		zap.Bool("vision", collab.Vision != nil),
		zap.Bool("youtube_api", cfg.Sources.YouTubeAPIKey != ""),
	)
	return collab
}

// TelemetryModule provides the fan-out telemetry emitter
var TelemetryModule = fx.Provide(NewTelemetryEmitter)

// NewTelemetryEmitter always logs and updates metrics; Kafka is added when brokers are set
func NewTelemetryEmitter(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	metrics *monitoring.MetricsCollector,
	health *healthcheck.HealthCheck,
) outbound.TelemetryEmitter {
	emitters := telemetry.Multi{telemetry.NewLogEmitter(log), metrics}
	if len(cfg.Kafka.Brokers) == 0 {
		return emitters
	}

	collector := telemetry.NewCollector(
		telemetry.NewKafkaPublisher(cfg.Kafka, log),
		telemetry.CollectorOptions{
			Source:        cfg.App.Name,
			BatchSize:     cfg.Kafka.BatchSize,
			FlushInterval: cfg.Kafka.BatchTimeout,
		},
		log,
	)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			collector.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			return collector.Close()
		},
	})
	health.Register("telemetry", healthcheck.NewCustomChecker(func(context.Context) (healthcheck.Status, string, interface{}) {
		dropped := collector.Dropped()
		if dropped > 0 {
			return healthcheck.StatusDegraded, "telemetry buffer overflowed", map[string]int64{"dropped": dropped}
		}
		return healthcheck.StatusHealthy, "", nil
	}))

	return append(emitters, collector)
}

// ServiceModule provides the extraction service behind its inbound ports
var ServiceModule = fx.Provide(
	NewExtractionService,
	func(s *extraction.Service) inbound.ExtractionService { return s },
	func(s *extraction.Service) inbound.CardQueryService { return s },
)

// NewExtractionService assembles the pipeline
func NewExtractionService(
	cfg *config.Config,
	log *zap.Logger,
	store outbound.CounterStore,
	persistence *Persistence,
	collab extraction.Collaborators,
	emitter outbound.TelemetryEmitter,
) *extraction.Service {
	deps := extraction.Dependencies{
		Store:         store,
		Emitter:       emitter,
		Collaborators: collab,
	}
	if persistence.Tiers != nil {
		deps.Tiers = persistence.Tiers
	}
	if persistence.Cards != nil {
		deps.Cards = persistence.Cards
	}
	return extraction.NewService(cfg.PipelineConfig(), deps, log)
}

// HTTPModule provides the HTTP server
var HTTPModule = fx.Provide(
	func(
		cfg *config.Config,
		log *zap.Logger,
		svc inbound.ExtractionService,
		cards inbound.CardQueryService,
		health *healthcheck.HealthCheck,
		metrics *monitoring.MetricsCollector,
		tracing *monitoring.TracingProvider,
	) *server.Server {
		return server.NewServer(cfg, log, server.Dependencies{
			Extraction: svc,
			Cards:      cards,
			Health:     health,
			Metrics:    metrics,
			Tracing:    tracing,
		})
	},
)

// LifecycleModule provides lifecycle hooks
var LifecycleModule = fx.Invoke(RegisterLifecycleHooks)

// RegisterLifecycleHooks starts and stops the HTTP server
func RegisterLifecycleHooks(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Config,
	log *zap.Logger,
	srv *server.Server,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting CookCard API",
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
				zap.String("pipeline_version", cfg.Pipeline.Version),
			)

			go func() {
				if err := srv.Start(); err != nil {
					log.Error("HTTP server stopped unexpectedly", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down CookCard API")
			if err := srv.Shutdown(ctx); err != nil {
				log.Error("Failed to shutdown HTTP server", zap.Error(err))
			}
			_ = log.Sync()
			return nil
		},
	})
}
