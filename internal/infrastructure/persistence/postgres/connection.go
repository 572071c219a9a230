// Package postgres provides PostgreSQL database connection and management
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/alchemorsel/cookcard/internal/infrastructure/config"
	"github.com/alchemorsel/cookcard/internal/infrastructure/persistence/migrations"
)

// ConnectionManager manages the PostgreSQL connection pool
type ConnectionManager struct {
	config *config.Config
	logger *zap.Logger
	db     *gorm.DB
	sqlDB  *sql.DB
}

// ConnectionConfig holds connection pool configuration
type ConnectionConfig struct {
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`

	SlowQueryThreshold time.Duration `json:"slow_query_threshold"`
	LogLevel           string        `json:"log_level"`
}

// DefaultConnectionConfig returns default pool configuration
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		MaxOpenConns:       25,
		MaxIdleConns:       5,
		ConnMaxLifetime:    30 * time.Minute,
		ConnMaxIdleTime:    5 * time.Minute,
		SlowQueryThreshold: 200 * time.Millisecond,
		LogLevel:           "warn",
	}
}

// NewConnectionManager connects, configures the pool and optionally migrates
func NewConnectionManager(cfg *config.Config, log *zap.Logger) (*ConnectionManager, error) {
	connConfig := DefaultConnectionConfig()

	// Override defaults with config values
	if cfg.Database.MaxOpenConns > 0 {
		connConfig.MaxOpenConns = cfg.Database.MaxOpenConns
	}
	if cfg.Database.MaxIdleConns > 0 {
		connConfig.MaxIdleConns = cfg.Database.MaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		connConfig.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	}
	if cfg.Database.SlowQueryThreshold > 0 {
		connConfig.SlowQueryThreshold = cfg.Database.SlowQueryThreshold
	}
	if cfg.Database.LogLevel != "" {
		connConfig.LogLevel = cfg.Database.LogLevel
	}

	cm := &ConnectionManager{
		config: cfg,
		logger: log.Named("postgres"),
	}

	if err := cm.initializePrimaryConnection(connConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize primary connection: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := RunMigrations(cfg.GetDSN(), cm.logger); err != nil {
			_ = cm.Close()
			return nil, err
		}
	}

	cm.logger.Info("Database connection manager initialized",
		zap.Int("max_open_conns", connConfig.MaxOpenConns),
		zap.Int("max_idle_conns", connConfig.MaxIdleConns),
		zap.Duration("conn_max_lifetime", connConfig.ConnMaxLifetime),
		zap.Duration("slow_query_threshold", connConfig.SlowQueryThreshold),
	)

	return cm, nil
}

// initializePrimaryConnection sets up the database connection
func (cm *ConnectionManager) initializePrimaryConnection(config *ConnectionConfig) error {
	db, err := gorm.Open(postgres.Open(cm.config.GetDSN()), &gorm.Config{
		Logger:                 cm.createGORMLogger(config),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	cm.db = db
	cm.sqlDB = sqlDB
	return nil
}

// createGORMLogger routes GORM logs through zap
func (cm *ConnectionManager) createGORMLogger(config *ConnectionConfig) logger.Interface {
	return NewGORMLogger(cm.logger, config.LogLevel, config.SlowQueryThreshold)
}

// NewGORMLogger builds a GORM logger that writes through zap
func NewGORMLogger(log *zap.Logger, level string, slowThreshold time.Duration) logger.Interface {
	logLevel := logger.Silent
	switch level {
	case "debug":
		logLevel = logger.Info
	case "info", "warn":
		logLevel = logger.Warn
	case "error":
		logLevel = logger.Error
	}

	return logger.New(
		&GORMLogWriter{logger: log},
		logger.Config{
			SlowThreshold:             slowThreshold,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// GORMLogWriter implements GORM's Writer interface for query logging
type GORMLogWriter struct {
	logger *zap.Logger
}

// Printf implements the Writer interface
func (w *GORMLogWriter) Printf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)

	switch {
	case strings.Contains(msg, "SLOW SQL"):
		w.logger.Warn("GORM slow query", zap.String("message", msg))
	case strings.Contains(strings.ToLower(msg), "error"):
		w.logger.Error("GORM error", zap.String("message", msg))
	default:
		w.logger.Debug("GORM log", zap.String("message", msg))
	}
}

// GetDB returns the main database connection
func (cm *ConnectionManager) GetDB() *gorm.DB {
	return cm.db
}

// Close closes the pool
func (cm *ConnectionManager) Close() error {
	if cm.sqlDB != nil {
		if err := cm.sqlDB.Close(); err != nil {
			cm.logger.Error("Failed to close database", zap.Error(err))
			return err
		}
	}
	return nil
}

// RunMigrations applies the embedded schema on a short-lived connection
func RunMigrations(dsn string, log *zap.Logger) error {
	m, err := migrations.Open(dsn, log)
	if err != nil {
		return fmt.Errorf("failed to prepare migrations: %w", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Failed to close migration connection", zap.Error(err))
		}
	}()
	return m.Up()
}
