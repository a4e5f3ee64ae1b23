// Package nucstore bundles the document client and the tile extractor
// behind a single environment-driven constructor, for pipeline stages that
// run unchanged against the managed database or the in-memory mock.
package nucstore
