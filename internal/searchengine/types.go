// Package searchengine implements arbor's query pipeline: result-cache
// lookup, query analysis/fuzzy/synonym expansion, storage search, score
// normalization, highlighting, route deduplication, facet computation, and
// query-miss suggestions, constructed with functional options.
package searchengine

import (
	"time"

	"github.com/arborsearch/arbor/internal/geo"
	"github.com/arborsearch/arbor/internal/storage"
)

// GeoFilter mirrors storage.GeoFilter at the query-engine boundary,
// expressed in caller-facing units.
type GeoFilter struct {
	Near           *geo.Point
	Radius         float64
	Units          geo.Unit // defaults to Meters
	Bounds         *geo.Bounds
	DistanceSort   bool
	Nearest        *NearestOptions
	CandidateCap   int
}

// NearestOptions sizes the candidate pool of a nearest-neighbour query: K*10
// rows, unless GeoFilter.CandidateCap is set. Results are not cut to K or
// ordered by distance by this option, and MaxDistance is not applied.
type NearestOptions struct {
	K           int
	MaxDistance float64 // meters; 0 means unbounded
}

// DistanceFacetOptions requests a distance-bucket facet.
type DistanceFacetOptions struct {
	From   geo.Point
	Ranges []float64 // cumulative upper bounds, in Units
	Units  geo.Unit
}

// FacetRequest configures one requested facet field.
type FacetRequest struct {
	Limit    int
	Distance *DistanceFacetOptions // when set, this facet is a distance bucket facet and Limit/field name are ignored
}

// Options is arbor's normalized query object, restricted to
// what the search engine and storage execute.
type Options struct {
	Filters         []storage.Filter
	ResultFields    []string // restricts returned document fields; empty means the configured default
	Sort            []storage.SortField
	Limit           int
	Offset          int
	Fuzzy           bool
	Fuzziness       int
	Highlight       bool
	HighlightLength int
	Language        string
	FieldWeights    map[string]float64
	Facets          map[string]FacetRequest
	Geo             *GeoFilter
	Synonyms        bool
	UniqueByRoute   bool
}

// Result is one scored, enriched search hit.
type Result struct {
	ID              string
	Content         map[string]any
	Metadata        map[string]any
	Language        string
	Type            string
	Score           float64 // normalized to [0, 100]
	Distance        float64 // -1 when not applicable
	DistanceUnits   string
	Bearing         float64
	BearingCardinal string
	Highlights      map[string]string
}

// FacetValue is one tallied value within a FacetResult.
type FacetValue struct {
	Value string
	Count int
}

// FacetResult is the tallied distribution for one requested facet field.
type FacetResult struct {
	Values []FacetValue
}

// Results is the complete outcome of Search.
type Results struct {
	Results    []Result
	Total      int
	SearchTime time.Duration
	Facets     map[string]FacetResult
	Suggestion string
}

// Suggestion is one ranked entry returned by Suggest.
type Suggestion struct {
	Text  string
	Score float64
}
