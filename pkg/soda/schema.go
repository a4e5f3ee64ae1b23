package soda

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// segmentSchema is the boundary contract for segment documents. It encodes
// the pipeline's GeoJSON feature shape: a Point with integral [x, y, z]
// coordinates and an RLE pixel mask under properties.
const segmentSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["type", "geometry", "properties"],
	"properties": {
		"type": {"const": "Feature"},
		"geometry": {
			"type": "object",
			"required": ["type", "coordinates"],
			"properties": {
				"type": {"const": "Point"},
				"coordinates": {
					"type": "array",
					"minItems": 3,
					"maxItems": 3,
					"items": {"type": "integer", "minimum": 0}
				}
			}
		},
		"properties": {
			"type": "object",
			"required": ["rle"],
			"properties": {
				"rle": {"type": "string", "pattern": "^[0-9]+( [0-9]+)*$"},
				"area": {"type": "integer", "minimum": 0},
				"perimeter": {"type": "integer", "minimum": 0}
			}
		}
	}
}`

// metadataSchema validates the content of a metadata document before it is
// wrapped into the stored envelope.
const metadataSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["block_name", "patch_id", "segmentation_model"],
	"properties": {
		"block_name": {"type": "string", "minLength": 1},
		"patch_id": {"type": "string", "minLength": 1},
		"segmentation_model": {"type": "string", "minLength": 1},
		"roi_size": {
			"type": "array",
			"minItems": 2,
			"maxItems": 2,
			"items": {"type": "integer", "minimum": 1}
		}
	}
}`

var (
	compiledSegmentSchema  = jsonschema.MustCompileString("segment.schema.json", segmentSchema)
	compiledMetadataSchema = jsonschema.MustCompileString("metadata.schema.json", metadataSchema)
)

// validateAgainst round-trips v through JSON and checks it against the
// compiled schema. Failures are reported as ErrValidation.
func validateAgainst(schema *jsonschema.Schema, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func validateSegment(seg *Segment) error {
	if seg == nil {
		return fmt.Errorf("%w: segment is nil", ErrValidation)
	}
	return validateAgainst(compiledSegmentSchema, seg)
}

func validateMetadata(meta *Metadata) error {
	if meta == nil {
		return fmt.Errorf("%w: metadata is nil", ErrValidation)
	}
	return validateAgainst(compiledMetadataSchema, meta)
}
