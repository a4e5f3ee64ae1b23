package tiles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nucstore/nucstore_sdk_go/internal/httpx"
	"github.com/nucstore/nucstore_sdk_go/pkg/soda"
)

const (
	// DefaultPatchSize is the raster edge of a capture patch in pixels.
	DefaultPatchSize = 4096
	// DefaultQueryPad widens the server-side centroid query so segments
	// whose centroid sits just outside the tile still contribute pixels.
	// It should be at least the largest segment radius the model produces.
	DefaultQueryPad = 64
)

// SegmentSource supplies segment documents and run metadata for a
// collection. *soda.Client satisfies it.
type SegmentSource interface {
	LayerSegments(ctx context.Context, collection string, z int) ([]soda.Segment, error)
	QueryRegion(ctx context.Context, collection string, z, x0, y0, x1, y1 int) ([]soda.Segment, error)
	GetMetadata(ctx context.Context, collection string) (*soda.Metadata, error)
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithPatchSize overrides the patch raster dimensions.
func WithPatchSize(width, height int) Option {
	return func(e *Extractor) {
		if width > 0 && height > 0 {
			e.patchWidth = width
			e.patchHeight = height
		}
	}
}

// WithQueryPad overrides the padding applied to the server-side query
// window around the requested bounds.
func WithQueryPad(pad int) Option {
	return func(e *Extractor) {
		if pad >= 0 {
			e.queryPad = pad
		}
	}
}

// WithMetadataSizing makes the extractor read the collection's metadata and
// use its roi_size as the patch dimensions, falling back to the configured
// size when no metadata document exists.
func WithMetadataSizing() Option {
	return func(e *Extractor) {
		e.metadataSizing = true
	}
}

// WithLogger attaches a structured logger for extraction debug output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// Extractor reconstructs rectangular sub-regions ("tiles") of a layer's
// segmentation mask without materializing the full layer client-side.
type Extractor struct {
	source         SegmentSource
	patchWidth     int
	patchHeight    int
	queryPad       int
	metadataSizing bool
	logger         *slog.Logger
}

// New builds an Extractor over the given source.
func New(source SegmentSource, opts ...Option) (*Extractor, error) {
	if source == nil {
		return nil, errors.New("tiles: segment source is required")
	}
	e := &Extractor{
		source:      source,
		patchWidth:  DefaultPatchSize,
		patchHeight: DefaultPatchSize,
		queryPad:    DefaultQueryPad,
		logger:      httpx.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Extract reconstructs the binary mask for bounds at layer z. Segments are
// fetched with a server-side filtered query, re-filtered by their decoded
// pixel extent and rasterized into the tile's local frame, clipped to
// bounds. A layer with no intersecting segments yields an all-zero tile; a
// missing collection fails with soda.ErrNotFound.
func (e *Extractor) Extract(ctx context.Context, collection string, z int, bounds Bounds) (*Tile, error) {
	if err := bounds.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", soda.ErrValidation, err)
	}
	if z < 0 {
		return nil, fmt.Errorf("%w: negative layer index %d", soda.ErrValidation, z)
	}

	width, height, err := e.patchDims(ctx, collection)
	if err != nil {
		return nil, err
	}
	if bounds.maxX() >= width || bounds.maxY() >= height {
		return nil, fmt.Errorf("%w: bounds %+v exceed the %dx%d patch", soda.ErrValidation, bounds, width, height)
	}

	// Push filtering to the query: only segments whose centroid lies within
	// the padded window are fetched.
	qx0 := max(0, bounds.X-e.queryPad)
	qy0 := max(0, bounds.Y-e.queryPad)
	qx1 := min(width-1, bounds.maxX()+e.queryPad)
	qy1 := min(height-1, bounds.maxY()+e.queryPad)

	segments, err := e.source.QueryRegion(ctx, collection, z, qx0, qy0, qx1, qy1)
	if err != nil {
		return nil, err
	}

	tile := newTile(bounds)
	drawn := 0
	for i := range segments {
		ok, err := e.rasterize(tile, &segments[i], width)
		if err != nil {
			return nil, err
		}
		if ok {
			drawn++
		}
	}
	e.logger.DebugContext(ctx, "tile extracted",
		slog.String("collection", collection),
		slog.Int("layer", z),
		slog.Int("fetched", len(segments)),
		slog.Int("drawn", drawn),
		slog.Int("pixels", tile.Count()))
	return tile, nil
}

// ExtractLayer reconstructs the full layer mask. Tiles are the preferred
// read unit; this is the fallback for callers that genuinely need all of a
// layer.
func (e *Extractor) ExtractLayer(ctx context.Context, collection string, z int) (*Tile, error) {
	if z < 0 {
		return nil, fmt.Errorf("%w: negative layer index %d", soda.ErrValidation, z)
	}
	width, height, err := e.patchDims(ctx, collection)
	if err != nil {
		return nil, err
	}
	segments, err := e.source.LayerSegments(ctx, collection, z)
	if err != nil {
		return nil, err
	}
	tile := newTile(Bounds{Dx: width, Dy: height})
	for i := range segments {
		if _, err := e.rasterize(tile, &segments[i], width); err != nil {
			return nil, err
		}
	}
	return tile, nil
}

// RegionSegments returns the raw segment records whose centroid falls in
// the inclusive rectangle, for callers that want documents rather than a
// raster.
func (e *Extractor) RegionSegments(ctx context.Context, collection string, z, x0, y0, x1, y1 int) ([]soda.Segment, error) {
	return e.source.QueryRegion(ctx, collection, z, x0, y0, x1, y1)
}

// rasterize draws one segment into the tile and reports whether any of its
// pixels landed inside the bounds.
func (e *Extractor) rasterize(tile *Tile, seg *soda.Segment, width int) (bool, error) {
	runs, err := DecodeRLE(seg.Properties.RLE)
	if err != nil {
		return false, fmt.Errorf("%w: segment %s: %v", soda.ErrValidation, seg.ID, err)
	}
	x0, y0, x1, y1 := runExtent(runs, width)
	if !tile.Rect.intersects(x0, y0, x1, y1) {
		return false, nil
	}
	before := tile.Count()
	for _, run := range runs {
		for k := 0; k < run.Length; k++ {
			lin := run.Start - 1 + k
			tile.SetGlobal(lin%width, lin/width)
		}
	}
	return tile.Count() > before, nil
}

func (e *Extractor) patchDims(ctx context.Context, collection string) (int, int, error) {
	if !e.metadataSizing {
		return e.patchWidth, e.patchHeight, nil
	}
	meta, err := e.source.GetMetadata(ctx, collection)
	if err != nil {
		if errors.Is(err, soda.ErrNotFound) {
			return e.patchWidth, e.patchHeight, nil
		}
		return 0, 0, err
	}
	if len(meta.ROISize) == 2 && meta.ROISize[0] > 0 && meta.ROISize[1] > 0 {
		return meta.ROISize[0], meta.ROISize[1], nil
	}
	return e.patchWidth, e.patchHeight, nil
}
