// Package storage implements arbor's SQL-capable key-value storage layer:
// schema management, batched transactional writes, FTS5 full-text search,
// R-tree spatial pre-filtering, and vocabulary retrieval for the fuzzy
// matcher. Schema is probed on open, WAL pragmas are applied once, writes
// are transactional batches using a delete-then-insert FTS5 update
// pattern, and relevance scoring negates SQLite's bm25() so higher is
// better.
package storage

import "time"

// Document is the storage-level representation of an indexed unit: one
// logical document, or one chunk of a larger parent document.
type Document struct {
	ID         string
	RouteID    string // id of the parent document this chunk belongs to; equals ID for unchunked docs
	Fields     map[string]string // field text persisted in the stored "fields" JSON blob and returned by GetDocument
	IndexText  map[string]string // field text contributing to FTS columns but not persisted to the stored blob; callers typically set this to Fields plus any index-only fields
	Metadata   map[string]any
	Language   string
	Type       string
	Timestamp  int64
	HasGeo     bool
	Lat        float64
	Lng        float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Operator is a metadata filter comparison operator.
type Operator string

const (
	OpEqual       Operator = "="
	OpNotEqual    Operator = "!="
	OpGreaterThan Operator = ">"
	OpLessThan    Operator = "<"
	OpGreaterEq   Operator = ">="
	OpLessEq      Operator = "<="
	OpIn          Operator = "in"
	OpContains    Operator = "contains"
	OpExists      Operator = "exists"
)

// Filter is a single metadata predicate, evaluated against
// metadata.<Field> (dotted-path into the document's Metadata map).
type Filter struct {
	Field    string
	Operator Operator
	Value    any
}

// SortDirection controls ascending/descending order.
type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// SortField is one field in a multi-field sort spec. Field "_score" sorts
// by relevance and "_distance" sorts by geo distance from a GeoFilter.Near
// point (only valid when one is set).
type SortField struct {
	Field     string
	Direction SortDirection
}

// GeoFilter restricts and/or orders results by location.
type GeoFilter struct {
	Near         *Point
	RadiusMeters float64 // used with Near for a "within radius" predicate
	Bounds       *Bounds // used for an explicit bounding-box predicate
	SortByDistance bool
	CandidateCap int // max rows considered by the spatial pre-filter before refinement
}

// Point is a geographic coordinate.
type Point struct {
	Lat float64
	Lng float64
}

// Bounds is a geographic bounding box, possibly crossing the antimeridian
// (West > East).
type Bounds struct {
	North, South, East, West float64
}

// SearchRequest is the storage layer's normalized query object.
type SearchRequest struct {
	MatchQuery string // pre-tokenized, FTS5 MATCH-ready query string (may be empty for filter-only/geo-only queries)
	Filters    []Filter
	Sort       []SortField
	Limit      int
	Offset     int
	Geo        *GeoFilter
	FieldWeights map[string]float64
}

// Hit is one storage-layer search result.
type Hit struct {
	Document Document
	Score    float64 // raw relevance score (positive, higher is better), 0 when the request has no MatchQuery
	Distance float64 // meters from GeoFilter.Near, -1 when not applicable
}

// SearchResult is the full result of a storage-layer search.
type SearchResult struct {
	Hits       []Hit
	TotalHits  int
}

// Stats describes a single index's storage-level statistics.
type Stats struct {
	DocumentCount  int
	TermCount      int
	SizeBytes      int64
	Languages      map[string]int
	Types          map[string]int
	SpatialEnabled bool
	SchemaMode     string
}

// VocabularyTerm is one entry of the term vocabulary used by the fuzzy
// matcher.
type VocabularyTerm struct {
	Term      string
	Frequency int
}
