// Package testutils provides common testing utilities and infrastructure setup
package testutils

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	pgconn "github.com/alchemorsel/cookcard/internal/infrastructure/persistence/postgres"
)

// NewSQLiteDB opens a private in-memory sqlite database for one test
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to open sqlite test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// TestRedis is a disposable Redis container
type TestRedis struct {
	Container testcontainers.Container
	Addr      string
}

// SetupTestRedis starts redis in a container; the container is removed when the test ends
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	})

	addr, err := container.PortEndpoint(ctx, "6379/tcp", "")
	require.NoError(t, err)

	return &TestRedis{Container: container, Addr: addr}
}

// TestPostgres is a disposable, migrated Postgres container
type TestPostgres struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// SetupTestPostgres starts postgres in a container, applies the schema migrations and connects gorm
func SetupTestPostgres(t *testing.T) *TestPostgres {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "cookcard_test",
				"POSTGRES_USER":     "test_user",
				"POSTGRES_PASSWORD": "test_password",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
			Tmpfs: map[string]string{
				"/var/lib/postgresql/data": "rw,noexec,nosuid,size=256m",
			},
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test_user password=test_password dbname=cookcard_test sslmode=disable",
		host, port.Port())
	require.NoError(t, pgconn.RunMigrations(dsn, zap.NewNop()), "Failed to migrate test database")

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to create GORM connection")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return &TestPostgres{Container: container, DB: db, DSN: dsn}
}
