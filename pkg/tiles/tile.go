package tiles

import "fmt"

// Bounds is a rectangular sub-region of a layer in patch coordinates: an
// inclusive origin plus a size in pixels.
type Bounds struct {
	X  int
	Y  int
	Dx int
	Dy int
}

// NewBounds builds a Bounds from origin and size.
func NewBounds(x, y, dx, dy int) Bounds {
	return Bounds{X: x, Y: y, Dx: dx, Dy: dy}
}

func (b Bounds) validate() error {
	if b.X < 0 || b.Y < 0 {
		return fmt.Errorf("tiles: bounds origin (%d,%d) is negative", b.X, b.Y)
	}
	if b.Dx <= 0 || b.Dy <= 0 {
		return fmt.Errorf("tiles: bounds size %dx%d is empty", b.Dx, b.Dy)
	}
	return nil
}

// maxX and maxY are the inclusive far edges of the bounds.
func (b Bounds) maxX() int { return b.X + b.Dx - 1 }
func (b Bounds) maxY() int { return b.Y + b.Dy - 1 }

func (b Bounds) contains(x, y int) bool {
	return x >= b.X && x <= b.maxX() && y >= b.Y && y <= b.maxY()
}

func (b Bounds) intersects(x0, y0, x1, y1 int) bool {
	return x0 <= b.maxX() && x1 >= b.X && y0 <= b.maxY() && y1 >= b.Y
}

// Tile is a reconstructed binary mask over a Bounds. Pixels are row-major
// in the tile's local frame; values are 0 (background) or 1 (nucleus).
type Tile struct {
	Rect Bounds
	Pix  []uint8
}

func newTile(rect Bounds) *Tile {
	return &Tile{
		Rect: rect,
		Pix:  make([]uint8, rect.Dx*rect.Dy),
	}
}

// At returns the pixel at local coordinates (x, y).
func (t *Tile) At(x, y int) uint8 {
	return t.Pix[y*t.Rect.Dx+x]
}

// SetGlobal marks the pixel at patch coordinates (x, y), ignoring points
// outside the tile.
func (t *Tile) SetGlobal(x, y int) {
	if !t.Rect.contains(x, y) {
		return
	}
	t.Pix[(y-t.Rect.Y)*t.Rect.Dx+(x-t.Rect.X)] = 1
}

// Count returns the number of set pixels.
func (t *Tile) Count() int {
	n := 0
	for _, p := range t.Pix {
		if p != 0 {
			n++
		}
	}
	return n
}
