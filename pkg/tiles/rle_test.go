package tiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRLE(t *testing.T) {
	runs, err := DecodeRLE("2098177 8 2100225 8 2102273 8")
	require.NoError(t, err)
	assert.Equal(t, []Run{
		{Start: 2098177, Length: 8},
		{Start: 2100225, Length: 8},
		{Start: 2102273, Length: 8},
	}, runs)
}

func TestEncodeRLERoundTrip(t *testing.T) {
	runs := []Run{{Start: 1, Length: 3}, {Start: 4097, Length: 3}}
	decoded, err := DecodeRLE(EncodeRLE(runs))
	require.NoError(t, err)
	assert.Equal(t, runs, decoded)
}

func TestDecodeRLERejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":            "",
		"whitespace only":  "   ",
		"odd value count":  "100 5 200",
		"non-numeric":      "100 five",
		"zero length":      "100 0",
		"negative start":   "-3 5",
		"zero-based start": "0 5",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRLE(input)
			assert.Error(t, err)
		})
	}
}

func TestRunExtent(t *testing.T) {
	// 3x2 block with top-left at (4, 1) on a width-16 raster.
	runs := []Run{
		{Start: 1*16 + 4 + 1, Length: 3},
		{Start: 2*16 + 4 + 1, Length: 3},
	}
	x0, y0, x1, y1 := runExtent(runs, 16)
	assert.Equal(t, 4, x0)
	assert.Equal(t, 1, y0)
	assert.Equal(t, 6, x1)
	assert.Equal(t, 2, y1)
}

func TestRunExtentWrapsRows(t *testing.T) {
	// A run longer than the remaining row spills onto the next one.
	runs := []Run{{Start: 15, Length: 4}}
	x0, y0, x1, y1 := runExtent(runs, 16)
	assert.Equal(t, 0, x0)
	assert.Equal(t, 0, y0)
	assert.Equal(t, 15, x1)
	assert.Equal(t, 1, y1)
}
