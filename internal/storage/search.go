package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/arborsearch/arbor/internal/arborerr"
)

const defaultCandidateCap = 2000

// Search executes req against the store: an FTS5 MATCH (if any), a coarse
// geo pre-filter (an R-tree row-id lookup when the spatial table is
// available, a lat/lng column scan otherwise), metadata filtering, exact
// geo refinement, scoring/sorting, and finally pagination. This is a
// two-pass search: SQL narrows to a candidate set, Go refines and orders
// it, because geo distance and arbitrary metadata-path filters can't
// cheaply live in a single FTS5 MATCH query.
func (s *Store) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return SearchResult{}, err
	}

	hits, err := s.gatherCandidates(ctx, req)
	if err != nil {
		return SearchResult{}, err
	}

	total := len(hits)

	start := req.Offset
	if start > len(hits) {
		start = len(hits)
	}
	end := len(hits)
	if req.Limit > 0 && start+req.Limit < end {
		end = start + req.Limit
	}

	return SearchResult{Hits: hits[start:end], TotalHits: total}, nil
}

// gatherCandidates runs the SQL candidate query, applies Go-side metadata
// and geo refinement, and sorts. Caller must hold s.mu for reading.
func (s *Store) gatherCandidates(ctx context.Context, req SearchRequest) ([]Hit, error) {
	cap := defaultCandidateCap
	if req.Geo != nil && req.Geo.CandidateCap > 0 {
		cap = req.Geo.CandidateCap
	}
	if req.Limit > 0 && req.Offset+req.Limit > cap {
		cap = req.Offset + req.Limit
	}

	var rowIDs map[int64]struct{}
	narrowedBySpatial := false
	if bounds, ok := effectiveBounds(req.Geo); ok {
		ids, hit, err := s.spatialPrefilterRowIDs(ctx, s.db, bounds)
		if err != nil {
			return nil, arborerr.Searchf(err, "spatial pre-filter")
		}
		if hit {
			rowIDs, narrowedBySpatial = ids, true
			if len(rowIDs) == 0 {
				return nil, nil
			}
		}
	}

	query, args, hasScore, err := s.buildCandidateQuery(req, cap, rowIDs, narrowedBySpatial)
	if err != nil {
		return nil, arborerr.Searchf(err, "building search query")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, arborerr.Searchf(err, "executing search query")
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		doc, score, err := scanSearchRow(rows, hasScore)
		if err != nil {
			return nil, arborerr.Searchf(err, "scanning search row")
		}

		if !matchesAllFilters(doc, req.Filters) {
			continue
		}

		distance, ok := passesGeoFilter(req.Geo, doc)
		if !ok {
			continue
		}

		hits = append(hits, Hit{Document: doc, Score: score, Distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, arborerr.Searchf(err, "iterating search results")
	}

	sortSpec := req.Sort
	if len(sortSpec) == 0 && req.Geo != nil && req.Geo.SortByDistance && req.Geo.Near != nil {
		sortSpec = []SortField{{Field: "_distance", Direction: Asc}}
	}
	sortHits(hits, sortSpec, req.FieldWeights)
	return hits, nil
}

func scanSearchRow(rows *sql.Rows, hasScore bool) (Document, float64, error) {
	var doc Document
	var fieldsJSON, metaJSON sql.NullString
	var lat, lng sql.NullFloat64
	var hasGeo int
	var createdAt, updatedAt int64
	var rawScore float64

	dest := []any{&doc.ID, &doc.RouteID, &fieldsJSON, &metaJSON, &doc.Language, &doc.Type,
		&doc.Timestamp, &hasGeo, &lat, &lng, &createdAt, &updatedAt}
	if hasScore {
		dest = append(dest, &rawScore)
	}
	if err := rows.Scan(dest...); err != nil {
		return Document{}, 0, err
	}

	doc.Fields = map[string]string{}
	if fieldsJSON.Valid {
		_ = jsonUnmarshalInto(fieldsJSON.String, &doc.Fields)
	}
	doc.Metadata = map[string]any{}
	if metaJSON.Valid {
		_ = jsonUnmarshalInto(metaJSON.String, &doc.Metadata)
	}
	doc.HasGeo = hasGeo != 0
	if lat.Valid {
		doc.Lat = lat.Float64
	}
	if lng.Valid {
		doc.Lng = lng.Float64
	}
	doc.CreatedAt = unixTime(createdAt)
	doc.UpdatedAt = unixTime(updatedAt)

	score := 0.0
	if hasScore {
		// FTS5's bm25() returns negative values where lower is a better
		// match; negate so higher is better.
		score = -rawScore
	}
	return doc, score, nil
}

// buildCandidateQuery assembles the SQL candidate query: an FTS5 MATCH
// join when req.MatchQuery is set, plus a coarse geo bounding-box
// predicate pushed to SQL. When rowIDsFromSpatial is true, the bounding
// box has already been resolved to a set of R-tree row ids by
// gatherCandidates and is applied as a "d.id IN (...)" predicate;
// otherwise (no spatial index) a lat/lng column range does the same job,
// just without the R-tree's log-time lookup.
func (s *Store) buildCandidateQuery(req SearchRequest, capRows int, rowIDs map[int64]struct{}, rowIDsFromSpatial bool) (string, []any, bool, error) {
	var b strings.Builder
	var args []any
	hasScore := req.MatchQuery != ""

	cols := "d.doc_id, d.route_id, d.fields, d.metadata, d.language, d.type, d.timestamp, d.has_geo, d.lat, d.lng, d.created_at, d.updated_at"
	if hasScore {
		cols += ", bm25(fts) as score"
	}

	b.WriteString("SELECT ")
	b.WriteString(cols)
	b.WriteString(" FROM documents d")

	if hasScore {
		if s.opts.ExternalContent {
			b.WriteString(" JOIN fts ON fts.rowid = d.id")
		} else {
			b.WriteString(" JOIN fts ON fts.doc_id = d.doc_id")
		}
	}

	var where []string
	if hasScore {
		where = append(where, "fts MATCH ?")
		args = append(args, req.MatchQuery)
	}

	if rowIDsFromSpatial {
		placeholders := make([]string, 0, len(rowIDs))
		for id := range rowIDs {
			placeholders = append(placeholders, "?")
			args = append(args, id)
		}
		where = append(where, "d.id IN ("+strings.Join(placeholders, ",")+")")
	} else if bounds, ok := effectiveBounds(req.Geo); ok {
		if bounds.CrossesAntimeridian() {
			where = append(where, "(d.has_geo = 1 AND d.lat >= ? AND d.lat <= ? AND (d.lng >= ? OR d.lng <= ?))")
			args = append(args, bounds.South, bounds.North, bounds.West, bounds.East)
		} else {
			where = append(where, "(d.has_geo = 1 AND d.lat >= ? AND d.lat <= ? AND d.lng >= ? AND d.lng <= ?)")
			args = append(args, bounds.South, bounds.North, bounds.West, bounds.East)
		}
	}

	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	if hasScore {
		b.WriteString(" ORDER BY score")
	} else {
		b.WriteString(" ORDER BY d.id")
	}
	b.WriteString(fmt.Sprintf(" LIMIT %d", capRows))

	return b.String(), args, hasScore, nil
}

// sortHits orders hits per spec (score desc by default, or the caller's
// explicit multi-field sort). Field weights multiply _score before sorting
// in both single- and multi-column FTS mode; bm25() itself is called
// without per-column weights.
func sortHits(hits []Hit, sortSpec []SortField, fieldWeights map[string]float64) {
	if len(fieldWeights) > 0 {
		for i := range hits {
			hits[i].Score *= weightFor(hits[i].Document, fieldWeights)
		}
	}

	if len(sortSpec) == 0 {
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
		return
	}

	sort.SliceStable(hits, func(i, j int) bool {
		for _, sf := range sortSpec {
			cmp := compareHits(hits[i], hits[j], sf.Field)
			if cmp == 0 {
				continue
			}
			if sf.Direction == Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func weightFor(doc Document, weights map[string]float64) float64 {
	total := 0.0
	count := 0
	for field, w := range weights {
		if _, ok := doc.Fields[field]; ok {
			total += w
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return total / float64(count)
}

func compareHits(a, b Hit, field string) int {
	switch field {
	case "_score":
		return floatCompare(a.Score, b.Score)
	case "_distance":
		return floatCompare(a.Distance, b.Distance)
	case "timestamp":
		return floatCompare(float64(a.Document.Timestamp), float64(b.Document.Timestamp))
	default:
		av, _ := metadataValue(a.Document.Metadata, field)
		bv, _ := metadataValue(b.Document.Metadata, field)
		return compareNumeric(av, bv)
	}
}

func floatCompare(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
