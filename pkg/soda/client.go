package soda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nucstore/nucstore_sdk_go/internal/httpx"
	"github.com/nucstore/nucstore_sdk_go/internal/sodaapi"
)

const defaultBulkConcurrency = 8

// Option configures a Client.
type Option func(*config)

type config struct {
	tenant            string
	overwriteMetadata bool
	bulkConcurrency   int
	logger            *slog.Logger
	httpOpts          []httpx.Option
}

// WithTenant overrides the tenant path segment of the SODA endpoint. It
// defaults to the username, which is the usual schema owner layout.
func WithTenant(tenant string) Option {
	return func(c *config) {
		c.tenant = tenant
	}
}

// WithMetadataOverwrite makes AddMetadata replace an existing metadata
// document instead of failing with ErrConflict.
func WithMetadataOverwrite() Option {
	return func(c *config) {
		c.overwriteMetadata = true
	}
}

// WithBulkConcurrency bounds the number of in-flight requests during
// AddSegments. Values below 1 fall back to the default of 8.
func WithBulkConcurrency(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.bulkConcurrency = n
		}
	}
}

// WithLogger attaches a structured logger for client debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHTTPOptions forwards options to the underlying transport, e.g. an
// explicit retry policy or a custom http.Client.
func WithHTTPOptions(opts ...httpx.Option) Option {
	return func(c *config) {
		c.httpOpts = append(c.httpOpts, opts...)
	}
}

// Client provides collection and document operations against a SODA-style
// JSON document database holding nuclear-segmentation results.
type Client struct {
	backend           Backend
	logger            *slog.Logger
	overwriteMetadata bool
	bulkConcurrency   int
}

// New constructs a Client for the database at baseURL, authenticating every
// request with the supplied credentials.
func New(baseURL, username, password string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("%w: username is required", ErrConfiguration)
	}
	if strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("%w: password is required", ErrConfiguration)
	}

	cfg := newConfig(opts)
	if cfg.tenant == "" {
		cfg.tenant = username
	}

	httpOpts := append([]httpx.Option{httpx.WithBasicAuth(username, password)}, cfg.httpOpts...)
	cl, err := httpx.NewClient(baseURL, httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return newClient(&httpBackend{client: cl, tenant: cfg.tenant}, cfg), nil
}

// NewWithBackend wires a custom backend, typically the in-memory mock.
func NewWithBackend(b Backend, opts ...Option) *Client {
	return newClient(b, newConfig(opts))
}

func newConfig(opts []Option) *config {
	cfg := &config{
		bulkConcurrency: defaultBulkConcurrency,
		logger:          httpx.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func newClient(b Backend, cfg *config) *Client {
	return &Client{
		backend:           b,
		logger:            cfg.logger,
		overwriteMetadata: cfg.overwriteMetadata,
		bulkConcurrency:   cfg.bulkConcurrency,
	}
}

// CreateCollection creates a named collection. It fails with ErrConflict if
// a collection of that name already exists.
func (c *Client) CreateCollection(ctx context.Context, name string) error {
	if err := validateCollectionName(name); err != nil {
		return err
	}
	// The PUT endpoint is idempotent and will not report a duplicate, so
	// check the listing first, the way the pipeline always has.
	names, err := c.ListCollections(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(names, name) {
		return fmt.Errorf("%w: collection %q already exists", ErrConflict, name)
	}
	if err := c.backend.CreateCollection(ctx, name); err != nil {
		return wrapTransport(err)
	}
	c.logger.DebugContext(ctx, "collection created", slog.String("collection", name))
	return nil
}

// ListCollections returns the names of all collections. An empty database
// yields an empty slice.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	names, err := c.backend.ListCollections(ctx)
	if err != nil {
		return nil, wrapTransport(err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// DropCollection deletes a collection and every document it contains,
// metadata included. It fails with ErrNotFound if the collection is absent.
func (c *Client) DropCollection(ctx context.Context, name string) error {
	if err := validateCollectionName(name); err != nil {
		return err
	}
	names, err := c.ListCollections(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(names, name) {
		return fmt.Errorf("%w: collection %q", ErrNotFound, name)
	}
	if err := c.backend.DropCollection(ctx, name); err != nil {
		return wrapTransport(err)
	}
	c.logger.DebugContext(ctx, "collection dropped", slog.String("collection", name))
	return nil
}

// AddSegment inserts one segment document and returns its server-assigned
// document ID.
func (c *Client) AddSegment(ctx context.Context, collection string, seg Segment) (string, error) {
	if err := validateCollectionName(collection); err != nil {
		return "", err
	}
	return c.insertSegment(ctx, collection, &seg)
}

func (c *Client) insertSegment(ctx context.Context, collection string, seg *Segment) (string, error) {
	if err := validateSegment(seg); err != nil {
		return "", err
	}
	payload, err := json.Marshal(seg)
	if err != nil {
		return "", fmt.Errorf("%w: encode segment: %v", ErrValidation, err)
	}
	id, err := c.backend.Insert(ctx, collection, payload)
	if err != nil {
		return "", wrapTransport(err)
	}
	return id, nil
}

// AddSegments inserts every segment independently and reports one
// BulkResult per input, in input order. A failed document never aborts the
// rest of the batch; callers retry the failed subset.
func (c *Client) AddSegments(ctx context.Context, collection string, segs []Segment) ([]BulkResult, error) {
	if err := validateCollectionName(collection); err != nil {
		return nil, err
	}
	results := make([]BulkResult, len(segs))

	var g errgroup.Group
	g.SetLimit(c.bulkConcurrency)
	for i := range segs {
		i := i
		g.Go(func() error {
			id, err := c.insertSegment(ctx, collection, &segs[i])
			results[i] = BulkResult{Index: i, ID: id, Err: err}
			return nil
		})
	}
	// Per-document outcomes live in results; the group never carries errors.
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	c.logger.DebugContext(ctx, "bulk insert finished",
		slog.String("collection", collection),
		slog.Int("total", len(segs)),
		slog.Int("failed", failed))
	return results, nil
}

// LayerSegments returns every segment document at layer z. A layer with no
// segments yields an empty slice; a missing collection fails with
// ErrNotFound.
func (c *Client) LayerSegments(ctx context.Context, collection string, z int) ([]Segment, error) {
	if err := validateCollectionName(collection); err != nil {
		return nil, err
	}
	if z < 0 {
		return nil, fmt.Errorf("%w: negative layer index %d", ErrValidation, z)
	}
	filter := sodaapi.NewFilter().Eq(sodaapi.FieldZ, z)
	return c.querySegments(ctx, collection, filter)
}

// QueryRegion returns segments at layer z whose centroid lies within the
// inclusive rectangle [x0,x1]x[y0,y1]. Filtering happens server-side so a
// full layer is never materialized for a small region.
func (c *Client) QueryRegion(ctx context.Context, collection string, z, x0, y0, x1, y1 int) ([]Segment, error) {
	if err := validateCollectionName(collection); err != nil {
		return nil, err
	}
	if z < 0 {
		return nil, fmt.Errorf("%w: negative layer index %d", ErrValidation, z)
	}
	if x1 < x0 || y1 < y0 {
		return nil, fmt.Errorf("%w: empty region [%d,%d]x[%d,%d]", ErrValidation, x0, x1, y0, y1)
	}
	filter := sodaapi.NewFilter().
		Eq(sodaapi.FieldZ, z).
		Between(sodaapi.FieldX, x0, x1).
		Between(sodaapi.FieldY, y0, y1)
	return c.querySegments(ctx, collection, filter)
}

func (c *Client) querySegments(ctx context.Context, collection string, filter sodaapi.Filter) ([]Segment, error) {
	segments := []Segment{}
	offset := 0
	for {
		result, err := c.backend.Query(ctx, collection, filter, offset)
		if err != nil {
			return nil, wrapTransport(err)
		}
		for _, item := range result.Items {
			seg, err := decodeSegment(item.ID, item.Value)
			if err != nil {
				return nil, err
			}
			segments = append(segments, seg)
		}
		if !result.HasMore || result.Count == 0 {
			break
		}
		offset += result.Count
	}
	return segments, nil
}

// AddMetadata stores the collection's single metadata document. If one
// already exists the call fails with ErrConflict, unless the client was
// built with WithMetadataOverwrite, in which case the old document is
// replaced.
func (c *Client) AddMetadata(ctx context.Context, collection string, meta Metadata) error {
	if err := validateCollectionName(collection); err != nil {
		return err
	}
	if err := validateMetadata(&meta); err != nil {
		return err
	}

	existing, err := c.metadataItems(ctx, collection)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		if !c.overwriteMetadata {
			return fmt.Errorf("%w: collection %q already has a metadata document", ErrConflict, collection)
		}
		for _, item := range existing {
			if err := c.backend.Delete(ctx, collection, item.ID); err != nil {
				return wrapTransport(err)
			}
		}
	}

	payload, err := json.Marshal(metadataEnvelope{Type: metadataType, Content: meta})
	if err != nil {
		return fmt.Errorf("%w: encode metadata: %v", ErrValidation, err)
	}
	if _, err = c.backend.Insert(ctx, collection, payload); err != nil {
		return wrapTransport(err)
	}
	return nil
}

// GetMetadata returns the collection's metadata document. It fails with
// ErrNotFound when none exists.
func (c *Client) GetMetadata(ctx context.Context, collection string) (*Metadata, error) {
	if err := validateCollectionName(collection); err != nil {
		return nil, err
	}
	items, err := c.metadataItems(ctx, collection)
	if err != nil {
		return nil, err
	}
	switch len(items) {
	case 0:
		return nil, fmt.Errorf("%w: no metadata document in collection %q", ErrNotFound, collection)
	case 1:
	default:
		// Invariant violation on the service side: at most one is allowed.
		return nil, fmt.Errorf("%w: found %d metadata documents in collection %q", ErrConflict, len(items), collection)
	}

	var envelope metadataEnvelope
	if err := json.Unmarshal(items[0].Value, &envelope); err != nil {
		return nil, fmt.Errorf("soda: decode metadata document %s: %w", items[0].ID, err)
	}
	return &envelope.Content, nil
}

func (c *Client) metadataItems(ctx context.Context, collection string) ([]sodaapi.Item, error) {
	filter := sodaapi.NewFilter().Eq(sodaapi.FieldType, metadataType)
	items := []sodaapi.Item{}
	offset := 0
	for {
		result, err := c.backend.Query(ctx, collection, filter, offset)
		if err != nil {
			return nil, wrapTransport(err)
		}
		items = append(items, result.Items...)
		if !result.HasMore || result.Count == 0 {
			break
		}
		offset += result.Count
	}
	return items, nil
}

// Backend abstracts the SODA REST surface so the client can run against the
// real service or the in-memory mock.
type Backend interface {
	CreateCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]string, error)
	DropCollection(ctx context.Context, name string) error
	Insert(ctx context.Context, collection string, doc []byte) (string, error)
	Query(ctx context.Context, collection string, filter sodaapi.Filter, offset int) (*sodaapi.QueryResult, error)
	Delete(ctx context.Context, collection, id string) error
}

type httpBackend struct {
	client *httpx.Client
	tenant string
}

func (b *httpBackend) root() string {
	return b.tenant + "/soda/latest"
}

func (b *httpBackend) collectionPath(name string) string {
	return b.root() + "/" + url.PathEscape(name)
}

func (b *httpBackend) CreateCollection(ctx context.Context, name string) error {
	resp, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodPut,
		Path:   b.collectionPath(name),
	})
	if err != nil {
		return err
	}
	_, err = httpx.ReadAllAndClose(resp.Body)
	return err
}

func (b *httpBackend) ListCollections(ctx context.Context) ([]string, error) {
	names := []string{}
	offset := 0
	for {
		query := url.Values{}
		if offset > 0 {
			query.Set("offset", strconv.Itoa(offset))
		}
		resp, err := b.client.Do(ctx, &httpx.Request{
			Method: http.MethodGet,
			Path:   b.root(),
			Query:  query,
		})
		if err != nil {
			return nil, err
		}
		data, err := httpx.ReadAllAndClose(resp.Body)
		if err != nil {
			return nil, err
		}
		page, hasMore, err := sodaapi.DecodeCollectionList(data)
		if err != nil {
			return nil, err
		}
		names = append(names, page...)
		if !hasMore || len(page) == 0 {
			return names, nil
		}
		offset += len(page)
	}
}

func (b *httpBackend) DropCollection(ctx context.Context, name string) error {
	resp, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodDelete,
		Path:   b.collectionPath(name),
	})
	if err != nil {
		return err
	}
	_, err = httpx.ReadAllAndClose(resp.Body)
	return err
}

func (b *httpBackend) Insert(ctx context.Context, collection string, doc []byte) (string, error) {
	resp, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   b.collectionPath(collection),
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   bytes.NewReader(doc),
	})
	if err != nil {
		return "", err
	}
	data, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return "", err
	}
	if ids := sodaapi.InsertedIDs(data); len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}

func (b *httpBackend) Query(ctx context.Context, collection string, filter sodaapi.Filter, offset int) (*sodaapi.QueryResult, error) {
	body, _, err := httpx.JSONBody(filter)
	if err != nil {
		return nil, fmt.Errorf("%w: encode filter: %v", ErrValidation, err)
	}
	query := url.Values{"action": {"query"}}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}
	resp, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   b.collectionPath(collection),
		Query:  query,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	data, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, err
	}
	return sodaapi.DecodeQueryResult(data)
}

func (b *httpBackend) Delete(ctx context.Context, collection, id string) error {
	resp, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodDelete,
		Path:   b.collectionPath(collection) + "/" + url.PathEscape(id),
	})
	if err != nil {
		return err
	}
	_, err = httpx.ReadAllAndClose(resp.Body)
	return err
}
