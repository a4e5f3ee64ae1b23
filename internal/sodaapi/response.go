// Package sodaapi implements the wire shapes of the SODA-for-REST document
// API: the paginated query envelope, per-document wrappers and the
// query-by-example (QBE) filter objects the service accepts.
package sodaapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Item wraps a single stored document as returned by the service. The
// caller's JSON payload sits under Value.
type Item struct {
	ID           string          `json:"id"`
	ETag         string          `json:"etag,omitempty"`
	LastModified string          `json:"lastModified,omitempty"`
	Value        json.RawMessage `json:"value,omitempty"`
}

// QueryResult is the envelope returned by ?action=query and by collection
// listings. HasMore signals that the caller must re-issue the request with
// Offset advanced by Count.
type QueryResult struct {
	Items   []Item `json:"items"`
	HasMore bool   `json:"hasMore"`
	Count   int    `json:"count"`
	Offset  int    `json:"offset"`
	Limit   int    `json:"limit,omitempty"`
}

// CollectionList is the envelope of GET {tenant}/soda/latest.
type CollectionList struct {
	Items []struct {
		Name string `json:"name"`
	} `json:"items"`
	HasMore bool `json:"hasMore"`
}

// DecodeQueryResult parses a query envelope. An empty body decodes to an
// empty result rather than an error: the service answers deletes and some
// inserts with no content.
func DecodeQueryResult(body []byte) (*QueryResult, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return &QueryResult{}, nil
	}
	var result QueryResult
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return nil, fmt.Errorf("sodaapi: decode query result: %w", err)
	}
	return &result, nil
}

// DecodeCollectionList parses a collection listing envelope into names.
func DecodeCollectionList(body []byte) ([]string, bool, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false, nil
	}
	var list CollectionList
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, false, fmt.Errorf("sodaapi: decode collection list: %w", err)
	}
	names := make([]string, 0, len(list.Items))
	for _, it := range list.Items {
		names = append(names, it.Name)
	}
	return names, list.HasMore, nil
}

// InsertedIDs extracts the server-assigned document IDs from an insert
// response. Responses without an items envelope yield an empty slice.
func InsertedIDs(body []byte) []string {
	result, err := DecodeQueryResult(body)
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(result.Items))
	for _, it := range result.Items {
		if it.ID != "" {
			ids = append(ids, it.ID)
		}
	}
	return ids
}
