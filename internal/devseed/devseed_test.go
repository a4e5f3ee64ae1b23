package devseed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSeed(t *testing.T) {
	path := writeSeed(t, `{
		"collections": [
			{
				"name": "b1__p1",
				"metadata": {"block_name": "b1"},
				"segments": [{"type": "Feature"}, {"type": "Feature"}]
			},
			{"name": "b1__p2"}
		]
	}`)

	seeds, err := LoadSeed(path)
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.Equal(t, "b1__p1", seeds[0].Name)
	assert.Len(t, seeds[0].Segments, 2)
	assert.NotEmpty(t, seeds[0].Metadata)
	assert.Empty(t, seeds[1].Segments)
}

func TestLoadSeedMissingName(t *testing.T) {
	path := writeSeed(t, `{"collections": [{"segments": []}]}`)
	_, err := LoadSeed(path)
	assert.Error(t, err)
}

func TestLoadSeedMissingFile(t *testing.T) {
	_, err := LoadSeed(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadSeedMalformedJSON(t *testing.T) {
	path := writeSeed(t, `{"collections": [`)
	_, err := LoadSeed(path)
	assert.Error(t, err)
}
