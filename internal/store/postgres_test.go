package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// Set MEDCURE_TEST_POSTGRES_URL to a disposable database to run these.
func TestPostgresStore(t *testing.T) {
	url := os.Getenv("MEDCURE_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("MEDCURE_TEST_POSTGRES_URL not set")
	}

	runStoreSuite(t, func(t *testing.T) Store {
		ctx := context.Background()
		s, err := NewPostgresStore(ctx, url, zaptest.NewLogger(t))
		require.NoError(t, err)
		_, err = s.pool.Exec(ctx, "TRUNCATE messages, conversations, embeddings, diseases, medicines RESTART IDENTITY CASCADE")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}
