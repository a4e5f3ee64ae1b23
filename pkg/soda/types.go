package soda

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Segment is one nucleus segment record, shaped as the GeoJSON feature the
// segmentation pipeline emits. The point coordinates are the segment
// centroid as [x, y, z]; z doubles as the layer index within the 3D patch.
// Field names are the external pipeline contract and must not change.
type Segment struct {
	// ID is the server-assigned document identifier. It is not part of the
	// stored payload and is populated on reads.
	ID string `json:"-"`

	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

// Geometry locates a segment within the patch volume.
type Geometry struct {
	Type        string `json:"type"`
	Coordinates [3]int `json:"coordinates"`
}

// Properties carries the per-segment measurements, including the run-length
// encoded pixel mask over the full patch raster.
type Properties struct {
	RLE       string `json:"rle"`
	Area      int    `json:"area"`
	Perimeter int    `json:"perimeter"`
}

// X returns the centroid x coordinate.
func (s *Segment) X() int { return s.Geometry.Coordinates[0] }

// Y returns the centroid y coordinate.
func (s *Segment) Y() int { return s.Geometry.Coordinates[1] }

// Layer returns the z layer index the segment belongs to.
func (s *Segment) Layer() int { return s.Geometry.Coordinates[2] }

// Metadata describes one segmentation run. A collection holds exactly one
// metadata document, written after the segment documents.
type Metadata struct {
	BlockName           string         `json:"block_name"`
	PatchID             string         `json:"patch_id"`
	Model               string         `json:"segmentation_model"`
	RegistrationVersion string         `json:"registration_version,omitempty"`
	DeduplicationMethod string         `json:"deduplication_method,omitempty"`
	ROISize             []int          `json:"roi_size,omitempty"`
	ROIOffset           []int          `json:"roi_offset,omitempty"`
	Params              map[string]any `json:"params,omitempty"`
}

// metadataEnvelope is the stored form of a metadata document. The type tag
// is what queries discriminate on.
type metadataEnvelope struct {
	Type    string   `json:"type"`
	Content Metadata `json:"content"`
}

const metadataType = "Metadata"

// BulkResult reports the outcome of one document within a bulk insert.
// Index refers to the caller's input slice; exactly one of ID or Err is
// meaningful.
type BulkResult struct {
	Index int
	ID    string
	Err   error
}

// OK reports whether the document was inserted.
func (r BulkResult) OK() bool { return r.Err == nil }

func validateCollectionName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: collection name is required", ErrValidation)
	}
	return nil
}

func decodeSegment(id string, raw json.RawMessage) (Segment, error) {
	var seg Segment
	if err := json.Unmarshal(raw, &seg); err != nil {
		return Segment{}, fmt.Errorf("soda: decode segment document %s: %w", id, err)
	}
	seg.ID = id
	return seg, nil
}
