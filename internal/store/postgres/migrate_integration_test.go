//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ralph-api/internal/logging"
	"ralph-api/internal/store/postgres"
	"ralph-api/internal/testutil"
)

func TestMigratorRunsOverPool(t *testing.T) {
	ctx := context.Background()
	m, err := postgres.NewMigrator(ctx, testutil.TestDSN(), logging.Discard())
	require.NoError(t, err)

	require.NoError(t, m.Ping(ctx))
	require.NoError(t, m.Up(ctx))
	require.NoError(t, m.Up(ctx), "a second run finds nothing pending")
	require.NoError(t, m.Status(ctx))

	m.Close()
	err = m.Up(ctx)
	require.Error(t, err, "migrations share the closed pool")
	assert.Contains(t, err.Error(), "ping sql connection")
}
