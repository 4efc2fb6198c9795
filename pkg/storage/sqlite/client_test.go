package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenqi/lumen-core/pkg/storage"
	"github.com/lumenqi/lumen-core/pkg/storage/sqlite"
)

func TestClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "lumen.db")

	client, err := sqlite.NewClient(ctx, &sqlite.Config{DBPath: path})
	require.NoError(t, err)

	_, err = client.Load(ctx, storage.DocPatterns)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, client.Save(ctx, storage.DocPatterns, []byte(`[{"trigger":"tea"}]`)))
	require.NoError(t, client.Save(ctx, storage.DocPatterns, []byte(`[{"trigger":"coffee"}]`)))
	require.NoError(t, client.Close())

	reopened, err := sqlite.NewClient(ctx, &sqlite.Config{DBPath: path})
	require.NoError(t, err)
	defer reopened.Close()

	data, err := reopened.Load(ctx, storage.DocPatterns)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"trigger":"coffee"}]`, string(data))
}

func TestNewClient_RequiresPath(t *testing.T) {
	_, err := sqlite.NewClient(context.Background(), &sqlite.Config{})
	assert.Error(t, err)
}
