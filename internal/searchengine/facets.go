package searchengine

import (
	"context"
	"fmt"
	"sort"

	"github.com/arborsearch/arbor/internal/geo"
	"github.com/arborsearch/arbor/internal/storage"
)

const facetCandidatePool = 1000

// computeFacets tallies requested facet fields over the full matching
// candidate pool for req, ignoring pagination.
func (e *Engine) computeFacets(ctx context.Context, req storage.SearchRequest, requests map[string]FacetRequest) map[string]FacetResult {
	poolReq := req
	poolReq.Offset = 0
	poolReq.Limit = facetCandidatePool

	result, err := e.store.Search(ctx, poolReq)
	if err != nil {
		e.log.Warn("facet computation failed", "error", err)
		return nil
	}

	out := make(map[string]FacetResult, len(requests))
	for field, fr := range requests {
		if fr.Distance != nil {
			out[field] = e.distanceFacet(result.Hits, *fr.Distance)
			continue
		}
		out[field] = tallyFacet(result.Hits, field, fr.Limit, e.cfg.FacetMinCount)
	}
	return out
}

// tallyFacet counts distinct metadata.<field> values across hits, keeping
// only counts >= minCount and truncating to limit entries sorted by count
// descending.
func tallyFacet(hits []storage.Hit, field string, limit, minCount int) FacetResult {
	counts := map[string]int{}
	for _, h := range hits {
		v, ok := h.Document.Metadata[field]
		if !ok || v == nil {
			continue
		}
		counts[fmt.Sprintf("%v", v)]++
	}

	values := make([]FacetValue, 0, len(counts))
	for val, count := range counts {
		if count < minCount {
			continue
		}
		values = append(values, FacetValue{Value: val, Count: count})
	}
	sort.Slice(values, func(i, j int) bool {
		if values[i].Count != values[j].Count {
			return values[i].Count > values[j].Count
		}
		return values[i].Value < values[j].Value
	})
	if limit > 0 && len(values) > limit {
		values = values[:limit]
	}
	return FacetResult{Values: values}
}

// distanceFacet counts, for each range, the hits within that distance of
// opts.From (cumulative: a hit counts in every range it falls within);
// hits beyond the largest range are counted as "overflow".
func (e *Engine) distanceFacet(hits []storage.Hit, opts DistanceFacetOptions) FacetResult {
	units := opts.Units
	if units == "" {
		units = geo.Meters
	}

	ranges := append([]float64(nil), opts.Ranges...)
	sort.Float64s(ranges)

	labels := make([]string, len(ranges))
	for i, r := range ranges {
		labels[i] = fmt.Sprintf("<%g%s", r, units)
	}
	counts := make([]int, len(ranges))
	overflow := 0

	for _, h := range hits {
		if !h.Document.HasGeo {
			continue
		}
		d := units.FromMeters(geo.Haversine(opts.From, geo.Point{Lat: h.Document.Lat, Lng: h.Document.Lng}))
		placed := false
		for i, r := range ranges {
			if d <= r {
				counts[i]++
				placed = true
			}
		}
		if !placed {
			overflow++
		}
	}

	values := make([]FacetValue, 0, len(ranges)+1)
	for i, label := range labels {
		values = append(values, FacetValue{Value: label, Count: counts[i]})
	}
	if overflow > 0 {
		values = append(values, FacetValue{Value: "overflow", Count: overflow})
	}
	return FacetResult{Values: values}
}
