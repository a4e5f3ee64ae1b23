// Package mock implements an in-memory replacement for the SODA document
// database, suitable for tests and local development. It emulates the
// service surface the HTTP backend talks to: collections of JSON documents
// with server-assigned IDs, QBE query evaluation and paginated results.
// Service-level failures are reported as *httpx.HTTPError so the client
// maps them onto its error taxonomy exactly as it would for the real
// service.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nucstore/nucstore_sdk_go/internal/devseed"
	"github.com/nucstore/nucstore_sdk_go/internal/httpx"
	"github.com/nucstore/nucstore_sdk_go/internal/sodaapi"
)

const defaultPageLimit = 25

type document struct {
	id    string
	value json.RawMessage
}

// Mock is an in-memory SODA database. The zero value is not usable; call
// New.
type Mock struct {
	mu          sync.RWMutex
	collections map[string][]document
	pageLimit   int
	newID       func() string
}

// Option configures the mock instance.
type Option func(*Mock)

// WithPageLimit overrides the page size of query results. Small limits are
// useful to exercise client-side pagination in tests.
func WithPageLimit(n int) Option {
	return func(m *Mock) {
		if n > 0 {
			m.pageLimit = n
		}
	}
}

// WithIDFunc overrides document ID minting (useful for deterministic tests).
func WithIDFunc(fn func() string) Option {
	return func(m *Mock) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// New creates an empty mock database.
func New(opts ...Option) *Mock {
	m := &Mock{
		collections: make(map[string][]document),
		pageLimit:   defaultPageLimit,
		newID:       func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Seed loads collections, segment documents and metadata from seed entries.
func (m *Mock) Seed(seeds []devseed.CollectionSeed) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, seed := range seeds {
		if strings.TrimSpace(seed.Name) == "" {
			return fmt.Errorf("mock soda: seed collection missing name")
		}
		docs := m.collections[seed.Name]
		for _, raw := range seed.Segments {
			docs = append(docs, document{id: m.newID(), value: append(json.RawMessage(nil), raw...)})
		}
		if len(seed.Metadata) > 0 {
			envelope, err := json.Marshal(map[string]json.RawMessage{
				"type":    json.RawMessage(`"Metadata"`),
				"content": seed.Metadata,
			})
			if err != nil {
				return fmt.Errorf("mock soda: seed metadata for %s: %w", seed.Name, err)
			}
			docs = append(docs, document{id: m.newID(), value: envelope})
		}
		m.collections[seed.Name] = docs
	}
	return nil
}

// CreateCollection creates the named collection. Like the service's PUT
// endpoint it is idempotent.
func (m *Mock) CreateCollection(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		m.collections[name] = nil
	}
	return nil
}

// ListCollections returns all collection names in sorted order.
func (m *Mock) ListCollections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// DropCollection removes the collection and all of its documents.
func (m *Mock) DropCollection(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		return notFound("collection %q does not exist", name)
	}
	delete(m.collections, name)
	return nil
}

// Insert stores a document and returns its minted ID.
func (m *Mock) Insert(ctx context.Context, collection string, doc []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !json.Valid(doc) {
		return "", badRequest("document is not valid JSON")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	docs, ok := m.collections[collection]
	if !ok {
		return "", notFound("collection %q does not exist", collection)
	}
	id := m.newID()
	m.collections[collection] = append(docs, document{
		id:    id,
		value: append(json.RawMessage(nil), doc...),
	})
	return id, nil
}

// Query evaluates a QBE filter over the collection and returns one page of
// matches starting at offset.
func (m *Mock) Query(ctx context.Context, collection string, filter sodaapi.Filter, offset int) (*sodaapi.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs, ok := m.collections[collection]
	if !ok {
		return nil, notFound("collection %q does not exist", collection)
	}

	matches := make([]document, 0, len(docs))
	for _, doc := range docs {
		ok, err := matchFilter(doc.value, filter)
		if err != nil {
			return nil, badRequest("filter evaluation: %v", err)
		}
		if ok {
			matches = append(matches, doc)
		}
	}

	if offset < 0 {
		offset = 0
	}
	if offset > len(matches) {
		offset = len(matches)
	}
	end := offset + m.pageLimit
	if end > len(matches) {
		end = len(matches)
	}

	page := matches[offset:end]
	result := &sodaapi.QueryResult{
		Items:   make([]sodaapi.Item, 0, len(page)),
		HasMore: end < len(matches),
		Count:   len(page),
		Offset:  offset,
	}
	for _, doc := range page {
		result.Items = append(result.Items, sodaapi.Item{
			ID:    doc.id,
			Value: append(json.RawMessage(nil), doc.value...),
		})
	}
	return result, nil
}

// Delete removes a document by ID.
func (m *Mock) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	docs, ok := m.collections[collection]
	if !ok {
		return notFound("collection %q does not exist", collection)
	}
	for i, doc := range docs {
		if doc.id == id {
			m.collections[collection] = append(docs[:i:i], docs[i+1:]...)
			return nil
		}
	}
	return notFound("document %q does not exist in %q", id, collection)
}

// Len reports the number of documents currently stored in a collection.
func (m *Mock) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

func notFound(format string, args ...any) error {
	return &httpx.HTTPError{
		StatusCode: http.StatusNotFound,
		Body:       []byte(fmt.Sprintf(format, args...)),
	}
}

func badRequest(format string, args ...any) error {
	return &httpx.HTTPError{
		StatusCode: http.StatusBadRequest,
		Body:       []byte(fmt.Sprintf(format, args...)),
	}
}

// matchFilter evaluates the subset of QBE the client emits: $eq and
// $between clauses on dotted field paths with optional [i] array indexing.
func matchFilter(doc json.RawMessage, filter sodaapi.Filter) (bool, error) {
	if len(filter) == 0 {
		return true, nil
	}
	var decoded any
	if err := json.Unmarshal(doc, &decoded); err != nil {
		return false, err
	}
	for field, clause := range filter {
		value, ok := lookupPath(decoded, field)
		if !ok {
			return false, nil
		}
		match, err := matchClause(value, clause)
		if err != nil {
			return false, fmt.Errorf("field %s: %w", field, err)
		}
		if !match {
			return false, nil
		}
	}
	return true, nil
}

func matchClause(value any, clause any) (bool, error) {
	ops, ok := clause.(map[string]any)
	if !ok {
		return false, fmt.Errorf("unsupported clause %T", clause)
	}
	for op, operand := range ops {
		switch op {
		case "$eq":
			if !jsonEqual(value, operand) {
				return false, nil
			}
		case "$between":
			bounds, ok := operand.([]any)
			if !ok || len(bounds) != 2 {
				return false, fmt.Errorf("$between needs [lo, hi]")
			}
			v, ok := asFloat(value)
			if !ok {
				return false, nil
			}
			lo, okLo := asFloat(bounds[0])
			hi, okHi := asFloat(bounds[1])
			if !okLo || !okHi {
				return false, fmt.Errorf("$between bounds must be numeric")
			}
			if v < lo || v > hi {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unsupported operator %s", op)
		}
	}
	return true, nil
}

// lookupPath resolves paths like "geometry.coordinates[2]" against decoded
// JSON.
func lookupPath(doc any, path string) (any, bool) {
	current := doc
	for _, part := range strings.Split(path, ".") {
		name := part
		index := -1
		if i := strings.IndexByte(part, '['); i >= 0 && strings.HasSuffix(part, "]") {
			name = part[:i]
			idx, err := strconv.Atoi(part[i+1 : len(part)-1])
			if err != nil {
				return nil, false
			}
			index = idx
		}

		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[name]
		if !ok {
			return nil, false
		}
		if index >= 0 {
			arr, ok := current.([]any)
			if !ok || index >= len(arr) {
				return nil, false
			}
			current = arr[index]
		}
	}
	return current, true
}

func jsonEqual(a, b any) bool {
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		return ok && af == bf
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
