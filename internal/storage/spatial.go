package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/arborsearch/arbor/internal/geo"
)

// effectiveBounds resolves a GeoFilter into the Bounds used for the SQL
// pre-filter: an explicit Bounds wins; otherwise a bounding box is derived
// from Near+RadiusMeters.
func effectiveBounds(gf *GeoFilter) (geo.Bounds, bool) {
	if gf == nil {
		return geo.Bounds{}, false
	}
	if gf.Bounds != nil {
		return geo.Bounds{North: gf.Bounds.North, South: gf.Bounds.South, East: gf.Bounds.East, West: gf.Bounds.West}, true
	}
	if gf.Near != nil && gf.RadiusMeters > 0 {
		return geo.BoundingBox(geo.Point{Lat: gf.Near.Lat, Lng: gf.Near.Lng}, gf.RadiusMeters), true
	}
	return geo.Bounds{}, false
}

// spatialPrefilterRowIDs queries the R-tree table for candidate document
// rowids within bounds. Returns (nil, false) when the R-tree is
// unavailable, signaling the caller to fall back to a documents-table
// lat/lng column scan.
func (s *Store) spatialPrefilterRowIDs(ctx context.Context, tx queryer, bounds geo.Bounds) (map[int64]struct{}, bool, error) {
	if !s.spatial {
		return nil, false, nil
	}

	var query string
	var args []any
	if bounds.CrossesAntimeridian() {
		query = `SELECT id FROM geo_rtree WHERE min_lat >= ? AND max_lat <= ? AND (min_lng >= ? OR max_lng <= ?)`
		args = []any{bounds.South, bounds.North, bounds.West, bounds.East}
	} else {
		query = `SELECT id FROM geo_rtree WHERE min_lat >= ? AND max_lat <= ? AND min_lng >= ? AND max_lng <= ?`
		args = []any{bounds.South, bounds.North, bounds.West, bounds.East}
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("querying spatial index: %w", err)
	}
	defer rows.Close()

	ids := map[int64]struct{}{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, false, fmt.Errorf("scanning spatial row: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, true, rows.Err()
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// passesGeoFilter applies the exact (non-bounding-box) geo predicate and
// computes distance, refining past the coarse SQL/R-tree pre-filter.
// Returns (distance, ok); ok is false when the document should be dropped.
func passesGeoFilter(gf *GeoFilter, doc Document) (float64, bool) {
	if gf == nil {
		return -1, true
	}
	if !doc.HasGeo {
		return -1, false
	}
	p := geo.Point{Lat: doc.Lat, Lng: doc.Lng}

	if gf.Bounds != nil {
		b := geo.Bounds{North: gf.Bounds.North, South: gf.Bounds.South, East: gf.Bounds.East, West: gf.Bounds.West}
		if !b.Contains(p) {
			return -1, false
		}
	}

	distance := -1.0
	if gf.Near != nil {
		distance = geo.Haversine(geo.Point{Lat: gf.Near.Lat, Lng: gf.Near.Lng}, p)
		if gf.RadiusMeters > 0 && distance > gf.RadiusMeters {
			return distance, false
		}
	}
	return distance, true
}
