// Package indexer implements arbor's indexing pipeline: analysis, optional
// chunking, stored/indexed field projection, and batched transactional
// writes through internal/storage. Documents are buffered for submission,
// with an explicit Flush and auto-flush at capacity.
package indexer

import (
	"github.com/arborsearch/arbor/internal/geo"
)

// Document is the caller-facing ingest document.
type Document struct {
	ID         string
	Content    map[string]any
	Metadata   map[string]any
	Language   string
	Type       string
	Timestamp  int64
	Geo        *geo.Point
	GeoBounds  *geo.Bounds
	Chunks     []ChunkInput
}

// ChunkInput is a caller-supplied chunk, overriding automatic chunking.
type ChunkInput struct {
	Content  string
	Metadata map[string]any
}

// Stats describes the indexer's view of a single index's contents.
type Stats struct {
	DocumentCount int
	Languages     map[string]int
	Types         map[string]int
}
