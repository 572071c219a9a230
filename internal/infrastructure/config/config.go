// Package config provides centralized configuration management
// using Viper for configuration loading and validation
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/alchemorsel/cookcard/internal/application/extraction"
	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/domain/evidence"
)

// EnvPrefix is prepended to every environment override, e.g. COOKCARD_REDIS_HOST
const EnvPrefix = "COOKCARD"

// Config holds all application configuration
type Config struct {
	App        AppConfig                      `mapstructure:"app"`
	Server     ServerConfig                   `mapstructure:"server"`
	Database   DatabaseConfig                 `mapstructure:"database"`
	Redis      RedisConfig                    `mapstructure:"redis"`
	AI         AIConfig                       `mapstructure:"ai"`
	Sources    SourcesConfig                  `mapstructure:"sources"`
	Kafka      KafkaConfig                    `mapstructure:"kafka"`
	Monitoring MonitoringConfig               `mapstructure:"monitoring"`
	Cache      CacheConfig                    `mapstructure:"cache"`
	Pipeline   PipelineSettings               `mapstructure:"pipeline"`
	Tiers      map[string]cookcard.TierLimits `mapstructure:"tiers"`
	Budget     BudgetConfig                   `mapstructure:"budget"`
	Costs      CostConfig                     `mapstructure:"costs"`
	Features   FeatureFlags                   `mapstructure:"features"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	EnableCORS      bool          `mapstructure:"enable_cors"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// DatabaseConfig contains database configuration. Driver "none" disables card persistence.
type DatabaseConfig struct {
	Driver             string        `mapstructure:"driver"`
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	Database           string        `mapstructure:"database"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	SSLMode            string        `mapstructure:"ssl_mode"`
	Path               string        `mapstructure:"path"`
	MaxOpenConns       int           `mapstructure:"max_open_conns"`
	MaxIdleConns       int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel           string        `mapstructure:"log_level"`
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
	AutoMigrate        bool          `mapstructure:"auto_migrate"`
}

// RedisConfig contains Redis configuration. When disabled the in-memory store is used.
type RedisConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Password        string        `mapstructure:"password"`
	Database        int           `mapstructure:"database"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PoolSize        int           `mapstructure:"pool_size"`
	EnableCluster   bool          `mapstructure:"enable_cluster"`
	ClusterNodes    []string      `mapstructure:"cluster_nodes"`
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// AIConfig contains model provider configuration
type AIConfig struct {
	TextProvider      string  `mapstructure:"text_provider"`
	AnthropicKey      string  `mapstructure:"anthropic_key"`
	AnthropicModel    string  `mapstructure:"anthropic_model"`
	OpenAIKey         string  `mapstructure:"openai_key"`
	OpenAIBaseURL     string  `mapstructure:"openai_base_url"`
	OpenAIModel       string  `mapstructure:"openai_model"`
	VisionModel       string  `mapstructure:"vision_model"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	Temperature       float64 `mapstructure:"temperature"`
	MaxRetries        int     `mapstructure:"max_retries"`
	EnableVisionModel bool    `mapstructure:"enable_vision_model"`
}

// SourcesConfig configures the metadata, comment and transcript fetchers
type SourcesConfig struct {
	UserAgent        string  `mapstructure:"user_agent"`
	YouTubeAPIKey    string  `mapstructure:"youtube_api_key"`
	YouTubeAPIURL    string  `mapstructure:"youtube_api_url"`
	TranscriptURL    string  `mapstructure:"transcript_url"`
	RequestsPerSec   float64 `mapstructure:"requests_per_sec"`
	Burst            int     `mapstructure:"burst"`
	MaxResponseBytes int64   `mapstructure:"max_response_bytes"`
}

// KafkaConfig contains the telemetry sink configuration. No brokers means log-only telemetry.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	ClientID     string        `mapstructure:"client_id"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	RequiredAcks int           `mapstructure:"required_acks"`
}

// MonitoringConfig contains metrics and tracing configuration
type MonitoringConfig struct {
	EnableMetrics   bool    `mapstructure:"enable_metrics"`
	MetricsPath     string  `mapstructure:"metrics_path"`
	EnableTracing   bool    `mapstructure:"enable_tracing"`
	OTLPEndpoint    string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure    bool    `mapstructure:"otlp_insecure"`
	SamplingRate    float64 `mapstructure:"sampling_rate"`
	HealthCheckPath string  `mapstructure:"health_check_path"`
	ReadinessPath   string  `mapstructure:"readiness_path"`
}

// CacheConfig controls card cache lifetimes
type CacheConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	FallbackTTL time.Duration `mapstructure:"fallback_ttl"`
}

// PipelineSettings holds the ladder thresholds and timeouts
type PipelineSettings struct {
	Version               string        `mapstructure:"version"`
	PreGateMinChars       int           `mapstructure:"pregate_min_chars"`
	DescriptionMinChars   int           `mapstructure:"description_min_chars"`
	CommentLimit          int           `mapstructure:"comment_limit"`
	TranscriptMaxDuration time.Duration `mapstructure:"transcript_max_duration"`
	VisionMinConfidence   float64       `mapstructure:"vision_min_confidence"`
	MetadataTimeout       time.Duration `mapstructure:"metadata_timeout"`
	CommentTimeout        time.Duration `mapstructure:"comment_timeout"`
	TranscriptTimeout     time.Duration `mapstructure:"transcript_timeout"`
	TextModelTimeout      time.Duration `mapstructure:"text_model_timeout"`
	VisionTimeout         time.Duration `mapstructure:"vision_timeout"`
	KnownSections         []string      `mapstructure:"known_sections"`
	VideoPlatforms        []string      `mapstructure:"video_platforms"`
}

// BudgetConfig holds the global vision-minute cap. Negative is unlimited, zero disables vision.
type BudgetConfig struct {
	GlobalVisionMinutesDaily int64 `mapstructure:"global_vision_minutes_daily"`
}

// CostConfig prices model usage in cents
type CostConfig struct {
	TextInputPer1K    float64 `mapstructure:"text_input_per_1k"`
	TextOutputPer1K   float64 `mapstructure:"text_output_per_1k"`
	VisionInputPer1K  float64 `mapstructure:"vision_input_per_1k"`
	VisionOutputPer1K float64 `mapstructure:"vision_output_per_1k"`
	VisionPerMinute   float64 `mapstructure:"vision_per_minute"`
}

// FeatureFlags contains feature toggles
type FeatureFlags struct {
	FuzzyEvidence     bool    `mapstructure:"fuzzy_evidence"`
	FuzzyMinOverlap   float64 `mapstructure:"fuzzy_min_overlap"`
	TranscriptEnabled bool    `mapstructure:"transcript_enabled"`
	VisionEnabled     bool    `mapstructure:"vision_enabled"`
	PersistCards      bool    `mapstructure:"persist_cards"`
}

// loadEnvFiles reads ENV_FILE, or .env.local then .env. Missing files are ignored.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/cookcard")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we have defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	p := extraction.DefaultPipelineConfig()

	v.SetDefault("app.name", "cookcard")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "150s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.max_header_bytes", 1<<20)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.enable_cors", true)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_body_bytes", 64<<10)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "cookcard.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "cookcard")
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.slow_query_threshold", "200ms")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.conn_max_lifetime", "30m")

	v.SetDefault("ai.text_provider", "anthropic")
	v.SetDefault("ai.anthropic_key", "")
	v.SetDefault("ai.anthropic_model", "claude-3-5-haiku-latest")
	v.SetDefault("ai.openai_key", "")
	v.SetDefault("ai.openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.openai_model", "gpt-4o-mini")
	v.SetDefault("ai.vision_model", "gpt-4o")
	v.SetDefault("ai.max_tokens", 2048)
	v.SetDefault("ai.temperature", 0.0)
	v.SetDefault("ai.max_retries", 2)
	v.SetDefault("ai.enable_vision_model", false)

	v.SetDefault("sources.user_agent", "cookcard/1.0 (+https://cookcard.app)")
	v.SetDefault("sources.youtube_api_key", "")
	v.SetDefault("sources.youtube_api_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("sources.transcript_url", "")
	v.SetDefault("sources.requests_per_sec", 5.0)
	v.SetDefault("sources.burst", 10)
	v.SetDefault("sources.max_response_bytes", 2<<20)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "cookcard.events")
	v.SetDefault("kafka.client_id", "cookcard")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "1s")
	v.SetDefault("kafka.required_acks", 1)

	v.SetDefault("monitoring.enable_metrics", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.enable_tracing", false)
	v.SetDefault("monitoring.otlp_endpoint", "localhost:4318")
	v.SetDefault("monitoring.otlp_insecure", true)
	v.SetDefault("monitoring.sampling_rate", 0.1)
	v.SetDefault("monitoring.health_check_path", "/health")
	v.SetDefault("monitoring.readiness_path", "/ready")

	v.SetDefault("cache.ttl", p.CacheTTL)
	v.SetDefault("cache.fallback_ttl", p.CacheFallbackTTL)

	v.SetDefault("pipeline.version", p.Version)
	v.SetDefault("pipeline.pregate_min_chars", p.PreGateMinChars)
	v.SetDefault("pipeline.description_min_chars", p.DescriptionMinChars)
	v.SetDefault("pipeline.comment_limit", p.CommentLimit)
	v.SetDefault("pipeline.transcript_max_duration", p.TranscriptMaxDuration)
	v.SetDefault("pipeline.vision_min_confidence", p.VisionMinConfidence)
	v.SetDefault("pipeline.metadata_timeout", p.MetadataTimeout)
	v.SetDefault("pipeline.comment_timeout", p.CommentTimeout)
	v.SetDefault("pipeline.transcript_timeout", p.TranscriptTimeout)
	v.SetDefault("pipeline.text_model_timeout", p.TextModelTimeout)
	v.SetDefault("pipeline.vision_timeout", p.VisionTimeout)
	v.SetDefault("pipeline.known_sections", evidence.KnownSections)
	v.SetDefault("pipeline.video_platforms", []string{string(cookcard.PlatformYouTube)})

	for tier, limits := range cookcard.DefaultTierLimits() {
		prefix := "tiers." + string(tier) + "."
		v.SetDefault(prefix+"monthly_extractions", limits.MonthlyExtractions)
		v.SetDefault(prefix+"hourly_requests", limits.HourlyRequests)
		v.SetDefault(prefix+"vision_minutes_per_day", limits.VisionMinutesPerDay)
	}

	v.SetDefault("budget.global_vision_minutes_daily", p.GlobalVisionMinutesDaily)

	v.SetDefault("costs.text_input_per_1k", p.Costs.TextInputPer1K)
	v.SetDefault("costs.text_output_per_1k", p.Costs.TextOutputPer1K)
	v.SetDefault("costs.vision_input_per_1k", p.Costs.VisionInputPer1K)
	v.SetDefault("costs.vision_output_per_1k", p.Costs.VisionOutputPer1K)
	v.SetDefault("costs.vision_per_minute", p.Costs.VisionPerMinute)

	v.SetDefault("features.fuzzy_evidence", p.Flags.FuzzyEvidence)
	v.SetDefault("features.fuzzy_min_overlap", p.Flags.FuzzyMinOverlap)
	v.SetDefault("features.transcript_enabled", p.Flags.TranscriptEnabled)
	v.SetDefault("features.vision_enabled", p.Flags.VisionEnabled)
	v.SetDefault("features.persist_cards", p.Flags.PersistCards)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	switch c.Database.Driver {
	case "sqlite", "postgres", "none":
	default:
		return fmt.Errorf("database.driver must be sqlite, postgres or none, got %q", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.Database == "" {
		return fmt.Errorf("database.database is required for postgres")
	}

	switch c.AI.TextProvider {
	case "anthropic", "openai", "none":
	default:
		return fmt.Errorf("ai.text_provider must be anthropic, openai or none, got %q", c.AI.TextProvider)
	}
	if c.IsProduction() && c.AI.TextProvider == "anthropic" && c.AI.AnthropicKey == "" {
		return fmt.Errorf("ai.anthropic_key is required in production")
	}

	if c.Pipeline.Version == "" {
		return fmt.Errorf("pipeline.version is required")
	}
	if c.Pipeline.VisionMinConfidence < 0 || c.Pipeline.VisionMinConfidence > 1 {
		return fmt.Errorf("pipeline.vision_min_confidence must be within [0, 1]")
	}
	if c.Features.FuzzyEvidence && (c.Features.FuzzyMinOverlap <= 0 || c.Features.FuzzyMinOverlap > 1) {
		return fmt.Errorf("features.fuzzy_min_overlap must be within (0, 1]")
	}
	for _, p := range c.Pipeline.VideoPlatforms {
		if cookcard.Platform(strings.ToLower(p)) == cookcard.PlatformOther {
			return fmt.Errorf("pipeline.video_platforms cannot contain %q", p)
		}
	}

	if _, ok := c.Tiers[string(cookcard.TierFree)]; !ok {
		return fmt.Errorf("tiers.free is required")
	}
	for name := range c.Tiers {
		if _, err := cookcard.ParseTier(name); err != nil {
			return fmt.Errorf("tiers.%s: %w", name, err)
		}
	}

	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// GetDSN returns the postgres connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.Username,
		c.Database.Password,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// PipelineConfig maps the loaded settings onto the immutable pipeline configuration
func (c *Config) PipelineConfig() extraction.PipelineConfig {
	tiers := make(map[cookcard.Tier]cookcard.TierLimits, len(c.Tiers))
	for name, limits := range c.Tiers {
		if tier, err := cookcard.ParseTier(name); err == nil {
			tiers[tier] = limits
		}
	}
	platforms := make([]cookcard.Platform, 0, len(c.Pipeline.VideoPlatforms))
	for _, p := range c.Pipeline.VideoPlatforms {
		platforms = append(platforms, cookcard.Platform(strings.ToLower(p)))
	}

	return extraction.PipelineConfig{
		Version:                  c.Pipeline.Version,
		CacheTTL:                 c.Cache.TTL,
		CacheFallbackTTL:         c.Cache.FallbackTTL,
		PreGateMinChars:          c.Pipeline.PreGateMinChars,
		DescriptionMinChars:      c.Pipeline.DescriptionMinChars,
		CommentLimit:             c.Pipeline.CommentLimit,
		TranscriptMaxDuration:    c.Pipeline.TranscriptMaxDuration,
		VisionMinConfidence:      c.Pipeline.VisionMinConfidence,
		MetadataTimeout:          c.Pipeline.MetadataTimeout,
		CommentTimeout:           c.Pipeline.CommentTimeout,
		TranscriptTimeout:        c.Pipeline.TranscriptTimeout,
		TextModelTimeout:         c.Pipeline.TextModelTimeout,
		VisionTimeout:            c.Pipeline.VisionTimeout,
		KnownSections:            append([]string(nil), c.Pipeline.KnownSections...),
		VideoPlatforms:           platforms,
		Tiers:                    tiers,
		GlobalVisionMinutesDaily: c.Budget.GlobalVisionMinutesDaily,
		Costs: extraction.CostRates{
			TextInputPer1K:    c.Costs.TextInputPer1K,
			TextOutputPer1K:   c.Costs.TextOutputPer1K,
			VisionInputPer1K:  c.Costs.VisionInputPer1K,
			VisionOutputPer1K: c.Costs.VisionOutputPer1K,
			VisionPerMinute:   c.Costs.VisionPerMinute,
		},
		Flags: extraction.Flags{
			FuzzyEvidence:     c.Features.FuzzyEvidence,
			FuzzyMinOverlap:   c.Features.FuzzyMinOverlap,
			TranscriptEnabled: c.Features.TranscriptEnabled,
			VisionEnabled:     c.Features.VisionEnabled,
			PersistCards:      c.Features.PersistCards && c.Database.Driver != "none",
		},
	}
}
