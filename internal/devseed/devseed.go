// Package devseed loads JSON seed files used to prime the mock database
// backend for local development and tests.
package devseed

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// CollectionSeed describes one collection to create in the mock, with its
// optional metadata document and initial segment documents.
type CollectionSeed struct {
	Name     string            `json:"name"`
	Metadata json.RawMessage   `json:"metadata,omitempty"`
	Segments []json.RawMessage `json:"segments,omitempty"`
}

type seedFile struct {
	Collections []CollectionSeed `json:"collections"`
}

// LoadSeed reads and validates a seed file.
func LoadSeed(path string) ([]CollectionSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("devseed: read %s: %w", path, err)
	}
	var file seedFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("devseed: parse %s: %w", path, err)
	}
	for i, coll := range file.Collections {
		if strings.TrimSpace(coll.Name) == "" {
			return nil, fmt.Errorf("devseed: collection %d is missing a name", i)
		}
	}
	return file.Collections, nil
}
