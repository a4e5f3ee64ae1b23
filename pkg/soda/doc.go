// Package soda provides a thin client for a SODA-for-REST managed JSON
// document database used to store nuclear-segmentation results from the
// tissue-imaging pipeline. One collection holds the documents of one 3D
// patch: many segment documents (GeoJSON features with an RLE pixel mask)
// plus exactly one metadata document describing the segmentation run.
//
// The public API centres on the Client type, which exposes collection
// lifecycle (CreateCollection/ListCollections/DropCollection), document
// operations (AddSegment/AddSegments/LayerSegments/QueryRegion) and the
// per-collection metadata pair (AddMetadata/GetMetadata). All failures map
// onto the sentinel errors in errors.go and are testable with errors.Is.
// The client performs no automatic retries; callers may opt in through
// WithHTTPOptions(httpx.WithRetryPolicy(...)).
package soda
