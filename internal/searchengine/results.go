package searchengine

import (
	"github.com/arborsearch/arbor/internal/geo"
	"github.com/arborsearch/arbor/internal/storage"
)

// processResults turns raw storage hits into enriched, scored Results:
// min_score filtering, 0-100 normalization (with a fuzzy-query score
// penalty), field projection, geo enrichment, and highlighting.
func (e *Engine) processResults(hits []storage.Hit, processed processedQuery, opts Options) []Result {
	if len(hits) == 0 {
		return nil
	}

	maxScore := 0.0
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}

	penalty := 1.0
	if opts.Fuzzy && e.cfg.EnableFuzzy && e.cfg.FuzzyScorePenalty > 0 && e.cfg.FuzzyScorePenalty < 1 {
		penalty = e.cfg.FuzzyScorePenalty
	}

	fields := opts.ResultFields
	if len(fields) == 0 {
		fields = e.cfg.ResultFields
	}

	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		normalized := 0.0
		if maxScore > 0 {
			normalized = (h.Score / maxScore) * 100 * penalty
		}
		if normalized < e.cfg.MinScore {
			continue
		}

		r := Result{
			ID:            h.Document.ID,
			Content:       projectFields(h.Document.Fields, fields),
			Metadata:      h.Document.Metadata,
			Language:      h.Document.Language,
			Type:          h.Document.Type,
			Score:         normalized,
			Distance:      -1,
			DistanceUnits: string(geoFilterUnits(opts.Geo)),
		}

		if opts.Geo != nil && opts.Geo.Near != nil && h.Document.HasGeo {
			docPoint := geo.Point{Lat: h.Document.Lat, Lng: h.Document.Lng}
			units := geoFilterUnits(opts.Geo)
			distanceMeters := h.Distance
			if distanceMeters < 0 {
				distanceMeters = geo.Haversine(*opts.Geo.Near, docPoint)
			}
			r.Distance = units.FromMeters(distanceMeters)
			bearing := geo.Bearing(*opts.Geo.Near, docPoint)
			r.Bearing = bearing
			r.BearingCardinal = geo.CardinalDirection(bearing)
		}

		if opts.Highlight {
			r.Highlights = highlightFields(r.Content, processed.tokens, e.cfg.HighlightTag, e.cfg.HighlightTagClose, opts.HighlightLength)
		}

		out = append(out, r)
	}
	return out
}

func geoFilterUnits(gf *GeoFilter) geo.Unit {
	if gf == nil || gf.Units == "" {
		return geo.Meters
	}
	return gf.Units
}

// projectFields restricts content to the requested fields. Keys stay the
// flat dot-path names storage holds (e.g. "author.name"); nested maps are
// not rebuilt. An empty fields list returns every stored field.
func projectFields(stored map[string]string, fields []string) map[string]any {
	selected := stored
	if len(fields) > 0 {
		selected = map[string]string{}
		set := make(map[string]struct{}, len(fields))
		for _, f := range fields {
			set[f] = struct{}{}
		}
		for k, v := range stored {
			if _, ok := set[k]; ok {
				selected[k] = v
			}
		}
	}

	out := map[string]any{}
	for k, v := range selected {
		out[k] = v
	}
	return out
}
