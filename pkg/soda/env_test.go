package soda_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucstore/nucstore_sdk_go/pkg/soda"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NUCSTORE_RUNTIME_MODE",
		"NUCSTORE_DB_URL",
		"NUCSTORE_DB_USERNAME",
		"NUCSTORE_DB_PASSWORD",
		"NUCSTORE_MOCK_SEED",
	} {
		t.Setenv(key, "")
	}
}

func TestNewFromEnvHTTPMode(t *testing.T) {
	clearEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[],"hasMore":false}`))
	}))
	defer srv.Close()

	t.Setenv("NUCSTORE_DB_URL", srv.URL)
	t.Setenv("NUCSTORE_DB_USERNAME", "nuclei")
	t.Setenv("NUCSTORE_DB_PASSWORD", "pw")

	client, mode, err := soda.NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "http", mode)

	names, err := client.ListCollections(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestNewFromEnvMissingCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("NUCSTORE_RUNTIME_MODE", "http")
	t.Setenv("NUCSTORE_DB_URL", "https://db.example.com")

	_, _, err := soda.NewFromEnv()
	assert.ErrorIs(t, err, soda.ErrConfiguration)

	t.Setenv("NUCSTORE_DB_USERNAME", "nuclei")
	_, _, err = soda.NewFromEnv()
	assert.ErrorIs(t, err, soda.ErrConfiguration)
}

func TestNewFromEnvHTTPModeRequiresURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("NUCSTORE_RUNTIME_MODE", "http")

	_, _, err := soda.NewFromEnv()
	assert.ErrorIs(t, err, soda.ErrConfiguration)
}

func TestNewFromEnvUnknownMode(t *testing.T) {
	clearEnv(t)
	t.Setenv("NUCSTORE_RUNTIME_MODE", "carrier-pigeon")

	_, _, err := soda.NewFromEnv()
	assert.ErrorIs(t, err, soda.ErrConfiguration)
}

func TestNewFromEnvAutoFallsBackToMock(t *testing.T) {
	clearEnv(t)

	client, mode, err := soda.NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "mock", mode)

	ctx := context.Background()
	require.NoError(t, client.CreateCollection(ctx, "c"))
	names, err := client.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, names)
}

func TestNewFromEnvMockSeed(t *testing.T) {
	clearEnv(t)
	seed := `{
		"collections": [
			{
				"name": "b1__p1",
				"metadata": {"block_name": "b1", "patch_id": "p1", "segmentation_model": "m"},
				"segments": [
					{
						"type": "Feature",
						"geometry": {"type": "Point", "coordinates": [5, 5, 0]},
						"properties": {"rle": "4097 4", "area": 4, "perimeter": 8}
					}
				]
			}
		]
	}`
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	t.Setenv("NUCSTORE_RUNTIME_MODE", "mock")
	t.Setenv("NUCSTORE_MOCK_SEED", path)

	client, mode, err := soda.NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "mock", mode)

	ctx := context.Background()
	segs, err := client.LayerSegments(ctx, "b1__p1", 0)
	require.NoError(t, err)
	require.Len(t, segs, 1)

	meta, err := client.GetMetadata(ctx, "b1__p1")
	require.NoError(t, err)
	assert.Equal(t, "b1", meta.BlockName)
}

func TestNewFromEnvBadSeedPath(t *testing.T) {
	clearEnv(t)
	t.Setenv("NUCSTORE_RUNTIME_MODE", "mock")
	t.Setenv("NUCSTORE_MOCK_SEED", filepath.Join(t.TempDir(), "missing.json"))

	_, _, err := soda.NewFromEnv()
	assert.ErrorIs(t, err, soda.ErrConfiguration)
}
