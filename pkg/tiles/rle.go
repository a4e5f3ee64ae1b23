package tiles

import (
	"fmt"
	"strconv"
	"strings"
)

// Run is one run of set pixels within a segment mask. Start is the 1-based
// row-major linear index of the first pixel over the full patch raster, the
// format the segmentation pipeline exports under properties.rle.
type Run struct {
	Start  int
	Length int
}

// DecodeRLE parses a whitespace-separated "start length" pair list.
func DecodeRLE(s string) ([]Run, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, fmt.Errorf("tiles: empty RLE string")
	}
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("tiles: RLE has %d values, expected start/length pairs", len(fields))
	}
	runs := make([]Run, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		start, err := strconv.Atoi(fields[i])
		if err != nil {
			return nil, fmt.Errorf("tiles: RLE start %q: %w", fields[i], err)
		}
		length, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return nil, fmt.Errorf("tiles: RLE length %q: %w", fields[i+1], err)
		}
		if start < 1 {
			return nil, fmt.Errorf("tiles: RLE start %d is not a 1-based index", start)
		}
		if length < 1 {
			return nil, fmt.Errorf("tiles: RLE length %d must be positive", length)
		}
		runs = append(runs, Run{Start: start, Length: length})
	}
	return runs, nil
}

// EncodeRLE renders runs back into the pipeline's string form.
func EncodeRLE(runs []Run) string {
	parts := make([]string, 0, len(runs)*2)
	for _, r := range runs {
		parts = append(parts, strconv.Itoa(r.Start), strconv.Itoa(r.Length))
	}
	return strings.Join(parts, " ")
}

// runExtent returns the inclusive pixel bounding box of the runs on a
// raster of the given width.
func runExtent(runs []Run, width int) (x0, y0, x1, y1 int) {
	x0, y0 = int(^uint(0)>>1), int(^uint(0)>>1)
	x1, y1 = -1, -1
	for _, r := range runs {
		for k := 0; k < r.Length; k++ {
			lin := r.Start - 1 + k
			x, y := lin%width, lin/width
			if x < x0 {
				x0 = x
			}
			if y < y0 {
				y0 = y
			}
			if x > x1 {
				x1 = x
			}
			if y > y1 {
				y1 = y
			}
		}
	}
	return x0, y0, x1, y1
}
