package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// TEST_DB_URL points at a disposable database; the suite is skipped without it.
func TestPostgresStore_Contract(t *testing.T) {
	dbURL := os.Getenv("TEST_DB_URL")
	if dbURL == "" {
		t.Skip("TEST_DB_URL not set")
	}
	ctx := context.Background()

	s, err := NewPostgresStore(ctx, dbURL)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureSchema(ctx), "schema is idempotent")
	require.NoError(t, s.ReplaceAll(ctx, nil))

	exerciseStore(t, s)
}
