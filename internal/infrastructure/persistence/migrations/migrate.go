// Package migrations applies the versioned Postgres schema with golang-migrate
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

// MigrationsTable records the applied schema version
const MigrationsTable = "schema_migrations"

// Migrator runs the embedded migrations against one database
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// Source returns the embedded migration files as a golang-migrate source
func Source() (source.Driver, error) {
	src, err := iofs.New(sqlFiles, "sql")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}
	return src, nil
}

// Open connects to dsn on a dedicated pool. Close releases it.
func Open(dsn string, logger *zap.Logger) (*Migrator, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open migration connection: %w", err)
	}
	m, err := New(db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

// New takes ownership of db; Close closes it
func New(db *sql.DB, logger *zap.Logger) (*Migrator, error) {
	src, err := Source()
	if err != nil {
		return nil, err
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return &Migrator{migrate: m, logger: logger.Named("migrations")}, nil
}

// Up applies every pending migration
func (m *Migrator) Up() error {
	start := time.Now()

	from, _, err := m.Version()
	if err != nil {
		return err
	}

	if err := m.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("Schema is up to date", zap.Uint("version", from))
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	to, _, _ := m.Version()
	m.logger.Info("Migrations applied",
		zap.Uint("from_version", from),
		zap.Uint("to_version", to),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Down rolls back one migration
func (m *Migrator) Down() error {
	if err := m.migrate.Steps(-1); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	m.logger.Info("Rolled back one migration")
	return nil
}

// Version returns the applied version; zero before the first migration
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, dirty, nil
}

// Close releases the source and the database connection
func (m *Migrator) Close() error {
	srcErr, dbErr := m.migrate.Close()
	return errors.Join(srcErr, dbErr)
}
