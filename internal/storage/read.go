package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arborsearch/arbor/internal/arborerr"
)

// GetDocument returns the document with id, or (Document{}, false, nil) if
// none exists — absence is modeled as an optional result, not an error.
func (s *Store) GetDocument(ctx context.Context, id string) (Document, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return Document{}, false, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT doc_id, route_id, fields, metadata, language, type, timestamp, has_geo, lat, lng, created_at, updated_at
		 FROM documents WHERE doc_id = ?`, id)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, arborerr.Storagef(err, "reading document %s", id)
	}
	return doc, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var fieldsJSON, metaJSON sql.NullString
	var lat, lng sql.NullFloat64
	var hasGeo int
	var createdAt, updatedAt int64

	err := row.Scan(&doc.ID, &doc.RouteID, &fieldsJSON, &metaJSON, &doc.Language, &doc.Type,
		&doc.Timestamp, &hasGeo, &lat, &lng, &createdAt, &updatedAt)
	if err != nil {
		return Document{}, err
	}

	doc.Fields = map[string]string{}
	if fieldsJSON.Valid && fieldsJSON.String != "" {
		_ = json.Unmarshal([]byte(fieldsJSON.String), &doc.Fields)
	}
	doc.Metadata = map[string]any{}
	if metaJSON.Valid && metaJSON.String != "" {
		_ = json.Unmarshal([]byte(metaJSON.String), &doc.Metadata)
	}
	doc.HasGeo = hasGeo != 0
	if lat.Valid {
		doc.Lat = lat.Float64
	}
	if lng.Valid {
		doc.Lng = lng.Float64
	}
	doc.CreatedAt = time.Unix(createdAt, 0).UTC()
	doc.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return doc, nil
}

// Count returns the number of documents matching req, ignoring Limit,
// Offset, and Sort. It shares gatherCandidates with Search so a count and
// its corresponding search never disagree over what "matches" means
// (metadata filters and geo refinement included).
func (s *Store) Count(ctx context.Context, req SearchRequest) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	hits, err := s.gatherCandidates(ctx, req)
	if err != nil {
		return 0, err
	}
	return len(hits), nil
}

// DocumentCount returns the total number of documents in the store.
func (s *Store) DocumentCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count)
	if err != nil {
		return 0, arborerr.Storagef(err, "counting documents")
	}
	return count, nil
}

// Stats returns storage-level statistics including per-language and
// per-type histograms.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Languages:      map[string]int{},
		Types:          map[string]int{},
		SpatialEnabled: s.spatial,
		SchemaMode:     s.schemaMode,
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&stats.DocumentCount); err != nil {
		return Stats{}, arborerr.Storagef(err, "counting documents")
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM terms").Scan(&stats.TermCount); err != nil {
		return Stats{}, arborerr.Storagef(err, "counting terms")
	}

	if err := fillHistogram(ctx, s.db, "SELECT language, COUNT(*) FROM documents WHERE language != '' GROUP BY language", stats.Languages); err != nil {
		return Stats{}, arborerr.Storagef(err, "building language histogram")
	}
	if err := fillHistogram(ctx, s.db, "SELECT type, COUNT(*) FROM documents WHERE type != '' GROUP BY type", stats.Types); err != nil {
		return Stats{}, arborerr.Storagef(err, "building type histogram")
	}

	if !s.opts.ExternalContent && s.opts.Path != ":memory:" {
		if fi, err := dbFileSize(s.opts.Path); err == nil {
			stats.SizeBytes = fi
		}
	}

	return stats, nil
}

// AllDocuments returns every parent and chunk row in the store, ordered by
// doc_id. It exists for whole-index operations that need every row at once
// — the façade's MigrateToExternalContent rebuild — and is
// not used by the query path, which always goes through Search.
func (s *Store) AllDocuments(ctx context.Context) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, route_id, fields, metadata, language, type, timestamp, has_geo, lat, lng, created_at, updated_at
		 FROM documents ORDER BY doc_id`)
	if err != nil {
		return nil, arborerr.Storagef(err, "reading all documents")
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, arborerr.Storagef(err, "scanning document row")
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func fillHistogram(ctx context.Context, db *sql.DB, query string, into map[string]int) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
	}
	return rows.Err()
}

// Vocabulary returns the term-frequency vocabulary used by the fuzzy
// matcher's Jaro-Winkler/Trigram/Levenshtein candidate scoring. Terms are populated from the "terms" table, bumped on every
// write batch; when maxTerms > 0, only the maxTerms most frequent terms are
// returned.
func (s *Store) Vocabulary(ctx context.Context, maxTerms int) ([]VocabularyTerm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := "SELECT term, frequency FROM terms ORDER BY frequency DESC"
	if maxTerms > 0 {
		query += fmt.Sprintf(" LIMIT %d", maxTerms)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, arborerr.Storagef(err, "reading term vocabulary")
	}
	defer rows.Close()

	var terms []VocabularyTerm
	for rows.Next() {
		var t VocabularyTerm
		if err := rows.Scan(&t.Term, &t.Frequency); err != nil {
			return nil, arborerr.Storagef(err, "scanning vocabulary row")
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}
