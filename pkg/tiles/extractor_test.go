package tiles_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucstore/nucstore_sdk_go/pkg/soda"
	sodamock "github.com/nucstore/nucstore_sdk_go/pkg/soda/mock"
	"github.com/nucstore/nucstore_sdk_go/pkg/tiles"
)

// squareRLE encodes a solid size x size square with its top-left corner at
// (x0, y0) on a raster of the given width.
func squareRLE(x0, y0, size, width int) string {
	runs := make([]tiles.Run, 0, size)
	for y := y0; y < y0+size; y++ {
		runs = append(runs, tiles.Run{Start: y*width + x0 + 1, Length: size})
	}
	return tiles.EncodeRLE(runs)
}

func squareSegment(x0, y0, size, width, z int) soda.Segment {
	return soda.Segment{
		Type: "Feature",
		Geometry: soda.Geometry{
			Type:        "Point",
			Coordinates: [3]int{x0 + size/2, y0 + size/2, z},
		},
		Properties: soda.Properties{
			RLE:       squareRLE(x0, y0, size, width),
			Area:      size * size,
			Perimeter: 4 * (size - 1),
		},
	}
}

func newFixture(t *testing.T, collection string, opts ...tiles.Option) (*soda.Client, *tiles.Extractor, *sodamock.Mock) {
	t.Helper()
	store := sodamock.New()
	client := soda.NewWithBackend(store)
	require.NoError(t, client.CreateCollection(context.Background(), collection))
	extractor, err := tiles.New(client, opts...)
	require.NoError(t, err)
	return client, extractor, store
}

func TestExtractEmptyLayerReturnsAllZeroTile(t *testing.T) {
	_, extractor, _ := newFixture(t, "c")

	tile, err := extractor.Extract(context.Background(), "c", 7, tiles.NewBounds(100, 200, 32, 16))
	require.NoError(t, err)
	assert.Equal(t, 32, tile.Rect.Dx)
	assert.Equal(t, 16, tile.Rect.Dy)
	assert.Len(t, tile.Pix, 32*16)
	assert.Equal(t, 0, tile.Count())
}

func TestExtractTwoDisjointSquares(t *testing.T) {
	// The canonical scenario: two disjoint 10x10 nuclei at layer 3 inside a
	// 20x20 tile at the origin.
	client, extractor, _ := newFixture(t, "block12_patch7")
	ctx := context.Background()

	require.NoError(t, client.AddMetadata(ctx, "block12_patch7", soda.Metadata{
		BlockName: "block12", PatchID: "7", Model: "unet_v3",
	}))
	for _, origin := range [][2]int{{0, 0}, {10, 10}} {
		_, err := client.AddSegment(ctx, "block12_patch7",
			squareSegment(origin[0], origin[1], 10, tiles.DefaultPatchSize, 3))
		require.NoError(t, err)
	}

	tile, err := extractor.Extract(ctx, "block12_patch7", 3, tiles.NewBounds(0, 0, 20, 20))
	require.NoError(t, err)
	assert.Equal(t, 200, tile.Count())

	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			inFirst := x < 10 && y < 10
			inSecond := x >= 10 && y >= 10
			want := uint8(0)
			if inFirst || inSecond {
				want = 1
			}
			assert.Equal(t, want, tile.At(x, y), "pixel (%d,%d)", x, y)
		}
	}
}

func TestExtractClipsToBounds(t *testing.T) {
	client, extractor, _ := newFixture(t, "c")
	ctx := context.Background()

	// 10x10 square at (5,5); the tile only covers its top-left quarter.
	_, err := client.AddSegment(ctx, "c", squareSegment(5, 5, 10, tiles.DefaultPatchSize, 0))
	require.NoError(t, err)

	tile, err := extractor.Extract(ctx, "c", 0, tiles.NewBounds(0, 0, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, 25, tile.Count())
	assert.Equal(t, uint8(1), tile.At(5, 5))
	assert.Equal(t, uint8(1), tile.At(9, 9))
	assert.Equal(t, uint8(0), tile.At(4, 4))
}

func TestExtractIgnoresOtherLayers(t *testing.T) {
	client, extractor, _ := newFixture(t, "c")
	ctx := context.Background()

	_, err := client.AddSegment(ctx, "c", squareSegment(0, 0, 10, tiles.DefaultPatchSize, 2))
	require.NoError(t, err)

	tile, err := extractor.Extract(ctx, "c", 3, tiles.NewBounds(0, 0, 20, 20))
	require.NoError(t, err)
	assert.Equal(t, 0, tile.Count())
}

func TestExtractQueryPadFetchesOffCentroidSegments(t *testing.T) {
	client, extractor, _ := newFixture(t, "c")
	ctx := context.Background()

	// Centroid at (45,45) lies outside the 20x20 tile, but the mask
	// reaches back into it.
	seg := squareSegment(10, 10, 10, tiles.DefaultPatchSize, 0)
	seg.Geometry.Coordinates = [3]int{45, 45, 0}
	_, err := client.AddSegment(ctx, "c", seg)
	require.NoError(t, err)

	tile, err := extractor.Extract(ctx, "c", 0, tiles.NewBounds(0, 0, 20, 20))
	require.NoError(t, err)
	assert.Equal(t, 100, tile.Count())
}

func TestExtractZeroPadSkipsOffCentroidSegments(t *testing.T) {
	client, _, _ := newFixture(t, "c")
	extractor, err := tiles.New(client, tiles.WithQueryPad(0))
	require.NoError(t, err)
	ctx := context.Background()

	seg := squareSegment(10, 10, 10, tiles.DefaultPatchSize, 0)
	seg.Geometry.Coordinates = [3]int{45, 45, 0}
	_, err = client.AddSegment(ctx, "c", seg)
	require.NoError(t, err)

	tile, err := extractor.Extract(ctx, "c", 0, tiles.NewBounds(0, 0, 20, 20))
	require.NoError(t, err)
	assert.Equal(t, 0, tile.Count())
}

func TestExtractValidation(t *testing.T) {
	_, extractor, _ := newFixture(t, "c")
	ctx := context.Background()

	_, err := extractor.Extract(ctx, "c", -1, tiles.NewBounds(0, 0, 10, 10))
	assert.ErrorIs(t, err, soda.ErrValidation)

	_, err = extractor.Extract(ctx, "c", 0, tiles.NewBounds(0, 0, 0, 10))
	assert.ErrorIs(t, err, soda.ErrValidation)

	_, err = extractor.Extract(ctx, "c", 0, tiles.NewBounds(-5, 0, 10, 10))
	assert.ErrorIs(t, err, soda.ErrValidation)

	// Bounds beyond the far edge of the patch.
	_, err = extractor.Extract(ctx, "c", 0, tiles.NewBounds(tiles.DefaultPatchSize-5, 0, 10, 10))
	assert.ErrorIs(t, err, soda.ErrValidation)
}

func TestExtractMissingCollection(t *testing.T) {
	_, extractor, _ := newFixture(t, "c")

	_, err := extractor.Extract(context.Background(), "absent", 0, tiles.NewBounds(0, 0, 10, 10))
	assert.ErrorIs(t, err, soda.ErrNotFound)
}

func TestExtractRejectsCorruptStoredRLE(t *testing.T) {
	_, extractor, store := newFixture(t, "c")
	ctx := context.Background()

	// Bypass the client's insert validation: a zero run length passes the
	// schema's digits-only pattern but fails the decoder.
	doc := `{"type":"Feature","geometry":{"type":"Point","coordinates":[5,5,0]},"properties":{"rle":"4097 0","area":0,"perimeter":0}}`
	_, err := store.Insert(ctx, "c", []byte(doc))
	require.NoError(t, err)

	_, err = extractor.Extract(ctx, "c", 0, tiles.NewBounds(0, 0, 10, 10))
	assert.ErrorIs(t, err, soda.ErrValidation)
}

func TestExtractMetadataSizing(t *testing.T) {
	client, _, _ := newFixture(t, "c")
	ctx := context.Background()

	require.NoError(t, client.AddMetadata(ctx, "c", soda.Metadata{
		BlockName: "b", PatchID: "p", Model: "m",
		ROISize: []int{128, 128},
	}))
	_, err := client.AddSegment(ctx, "c", squareSegment(20, 20, 4, 128, 0))
	require.NoError(t, err)

	extractor, err := tiles.New(client,
		tiles.WithPatchSize(64, 64),
		tiles.WithMetadataSizing())
	require.NoError(t, err)

	// 100x100 bounds exceed the configured 64x64 fallback but fit the
	// 128x128 raster declared by the metadata.
	tile, err := extractor.Extract(ctx, "c", 0, tiles.NewBounds(0, 0, 100, 100))
	require.NoError(t, err)
	assert.Equal(t, 16, tile.Count())
	assert.Equal(t, uint8(1), tile.At(20, 20))
	assert.Equal(t, uint8(1), tile.At(23, 23))
}

func TestExtractLayerFullMask(t *testing.T) {
	client, _, _ := newFixture(t, "c")
	ctx := context.Background()

	extractor, err := tiles.New(client, tiles.WithPatchSize(32, 32))
	require.NoError(t, err)

	_, err = client.AddSegment(ctx, "c", squareSegment(4, 4, 4, 32, 1))
	require.NoError(t, err)
	_, err = client.AddSegment(ctx, "c", squareSegment(20, 20, 4, 32, 1))
	require.NoError(t, err)

	tile, err := extractor.ExtractLayer(ctx, "c", 1)
	require.NoError(t, err)
	assert.Equal(t, 32, tile.Rect.Dx)
	assert.Equal(t, 32, tile.Rect.Dy)
	assert.Equal(t, 32, tile.Count())
}

func TestRegionSegmentsPassthrough(t *testing.T) {
	client, extractor, _ := newFixture(t, "c")
	ctx := context.Background()

	_, err := client.AddSegment(ctx, "c", squareSegment(5, 5, 4, tiles.DefaultPatchSize, 0))
	require.NoError(t, err)
	_, err = client.AddSegment(ctx, "c", squareSegment(500, 500, 4, tiles.DefaultPatchSize, 0))
	require.NoError(t, err)

	segs, err := extractor.RegionSegments(ctx, "c", 0, 0, 0, 50, 50)
	require.NoError(t, err)
	assert.Len(t, segs, 1)
}
