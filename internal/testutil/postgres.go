package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/db"
)

const (
	dbUser     = "storefront"
	dbPassword = "storefront"
	dbName     = "storefront"
)

// Postgres is a migrated throwaway database reachable through both handles the
// service uses.
type Postgres struct {
	DSN  string
	Pool *pgxpool.Pool
	DB   *sql.DB
}

// StartPostgres launches a Postgres container, applies the embedded
// migrations and registers cleanup with t.Cleanup.
func StartPostgres(t *testing.T) *Postgres {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	req := testcontainers.ContainerRequest{
		Image: "postgres:16-alpine",
		Env: map[string]string{
			"POSTGRES_USER":     dbUser,
			"POSTGRES_PASSWORD": dbPassword,
			"POSTGRES_DB":       dbName,
		},
		ExposedPorts: []string{"5432/tcp"},
		// the server restarts once after initdb
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cleanupCancel()
		_ = container.Terminate(cleanupCtx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", dbUser, dbPassword, host, mappedPort.Port(), dbName)
	require.NoError(t, db.RunMigrations(dsn, zaptest.NewLogger(t)))

	pool, err := db.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	sqlDB, err := db.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return &Postgres{DSN: dsn, Pool: pool, DB: sqlDB}
}
