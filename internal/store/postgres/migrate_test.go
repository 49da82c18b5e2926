package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ralph-api/internal/logging"
)

func TestNewMigratorRejectsBadDSN(t *testing.T) {
	_, err := NewMigrator(context.Background(), "", logging.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty database dsn")

	_, err = NewMigrator(context.Background(), "postgres://ralph@localhost:5432/ralph?pool_max_conns=none", logging.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create pgxpool")
}
