//go:build integration

package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"casedesk/internal/config"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresConfig returns a config pointing at a throwaway PostgreSQL instance.
// TEST_DB_HOST/TEST_DB_PORT reuse an existing server instead of starting a container.
func PostgresConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := &config.Config{
		Env:          "test",
		DBDriver:     "postgres",
		DBUser:       "casedesk",
		DBPassword:   "casedesk",
		DBName:       "casedesk_test",
		DBSSLMode:    "disable",
		DBSchemaMode: "sql",
	}

	if host := os.Getenv("TEST_DB_HOST"); host != "" {
		cfg.DBHost = host
		cfg.DBPort = os.Getenv("TEST_DB_PORT")
		return cfg
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image: "postgres:16-alpine",
		Env: map[string]string{
			"POSTGRES_USER":     cfg.DBUser,
			"POSTGRES_PASSWORD": cfg.DBPassword,
			"POSTGRES_DB":       cfg.DBName,
		},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg.DBHost = host
	cfg.DBPort = port.Port()
	return cfg
}
