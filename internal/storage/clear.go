package storage

import (
	"context"

	"github.com/arborsearch/arbor/internal/arborerr"
)

// IDsByRoute returns the external ids of every document (parent and
// chunks) sharing routeID, used by the indexer to delete a whole
// chunked document by its parent id.
func (s *Store) IDsByRoute(ctx context.Context, routeID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT doc_id FROM documents WHERE route_id = ?", routeID)
	if err != nil {
		return nil, arborerr.Storagef(err, "listing documents for route %s", routeID)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, arborerr.Storagef(err, "scanning route row")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Clear empties every document, term, and spatial row while preserving the
// schema.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return arborerr.Storagef(err, "beginning clear transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return arborerr.Storagef(err, "clearing documents")
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM terms"); err != nil {
		return arborerr.Storagef(err, "clearing term vocabulary")
	}
	if s.spatial {
		if _, err := tx.ExecContext(ctx, "DELETE FROM geo_rtree"); err != nil {
			return arborerr.Storagef(err, "clearing spatial index")
		}
	}

	if s.opts.ExternalContent {
		if _, err := tx.ExecContext(ctx, "INSERT INTO fts(fts) VALUES('rebuild')"); err != nil {
			return arborerr.Storagef(err, "rebuilding external-content FTS index")
		}
	} else if _, err := tx.ExecContext(ctx, "DELETE FROM fts"); err != nil {
		return arborerr.Storagef(err, "clearing FTS index")
	}

	return tx.Commit()
}
