package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arborsearch/arbor/internal/arborerr"
)

// bulkLoadThreshold is the batch size above which UpsertBatch relaxes
// PRAGMA synchronous for the duration of the transaction: a power loss
// mid-batch can then corrupt the WAL, a trade only worth making when the
// batch is large enough that fsync-per-commit durability would dominate
// wall-clock time.
const bulkLoadThreshold = 200

// UpsertBatch writes docs inside a single transaction: any failure rolls
// back the whole batch. Each row is replaced with a delete-then-insert so
// stale FTS5/spatial rows never linger after an update. Batches at or
// above bulkLoadThreshold run with synchronous=OFF, restored to NORMAL
// once the transaction resolves either way.
func (s *Store) UpsertBatch(ctx context.Context, docs []Document, terms map[string]int) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	bulkLoad := len(docs) >= bulkLoadThreshold
	if bulkLoad {
		if err := setSynchronous(s.db, "OFF"); err != nil {
			return arborerr.Storagef(err, "relaxing synchronous for bulk load")
		}
		defer func() {
			if err := setSynchronous(s.db, "NORMAL"); err != nil {
				s.log.Warn("restoring synchronous=NORMAL after bulk load failed", "error", err)
			}
		}()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return arborerr.Storagef(err, "beginning batch transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for _, doc := range docs {
		if err := s.upsertOne(ctx, tx, doc); err != nil {
			return arborerr.Storagef(err, "writing document %s", doc.ID)
		}
	}

	if err := s.bumpTermFrequencies(ctx, tx, terms); err != nil {
		return arborerr.Storagef(err, "updating term vocabulary")
	}

	if err := tx.Commit(); err != nil {
		return arborerr.Storagef(err, "committing batch")
	}
	return nil
}

// Upsert writes a single document transactionally.
func (s *Store) Upsert(ctx context.Context, doc Document, terms map[string]int) error {
	return s.UpsertBatch(ctx, []Document{doc}, terms)
}

func (s *Store) upsertOne(ctx context.Context, tx *sql.Tx, doc Document) error {
	fieldsJSON, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("encoding fields: %w", err)
	}
	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	cols := s.ftsColumns()
	ftsValues := s.fieldTextForColumns(doc, cols)

	var existingID int64
	var oldFTSValues []any
	row := tx.QueryRowContext(ctx, "SELECT id FROM documents WHERE doc_id = ?", doc.ID)
	err = row.Scan(&existingID)
	exists := err == nil
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("looking up existing document: %w", err)
	}

	if exists && s.opts.ExternalContent {
		oldFTSValues, err = s.readFTSColumns(ctx, tx, existingID, cols)
		if err != nil {
			return fmt.Errorf("reading prior FTS values: %w", err)
		}
	}

	if exists {
		if err := s.deleteFTSRow(ctx, tx, existingID, doc.ID, cols, oldFTSValues); err != nil {
			return fmt.Errorf("removing stale FTS entry: %w", err)
		}
	}

	lat, lng := sql.NullFloat64{}, sql.NullFloat64{}
	if doc.HasGeo {
		lat = sql.NullFloat64{Float64: doc.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: doc.Lng, Valid: true}
	}

	var docRowID int64
	if exists {
		docRowID = existingID
		setClauses := []string{
			"route_id = ?", "fields = ?", "metadata = ?", "language = ?", "type = ?",
			"timestamp = ?", "has_geo = ?", "lat = ?", "lng = ?", "updated_at = ?",
		}
		args := []any{doc.RouteID, string(fieldsJSON), string(metaJSON), doc.Language, doc.Type,
			doc.Timestamp, boolToInt(doc.HasGeo), lat, lng, doc.UpdatedAt.Unix()}
		if s.opts.ExternalContent {
			for i, col := range cols {
				setClauses = append(setClauses, col+" = ?")
				args = append(args, ftsValues[i])
			}
		}
		args = append(args, doc.ID)
		query := fmt.Sprintf("UPDATE documents SET %s WHERE doc_id = ?", strings.Join(setClauses, ", "))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("updating document row: %w", err)
		}
	} else {
		insertCols := []string{"doc_id", "route_id", "fields", "metadata", "language", "type",
			"timestamp", "has_geo", "lat", "lng", "created_at", "updated_at"}
		args := []any{doc.ID, doc.RouteID, string(fieldsJSON), string(metaJSON), doc.Language, doc.Type,
			doc.Timestamp, boolToInt(doc.HasGeo), lat, lng, doc.CreatedAt.Unix(), doc.UpdatedAt.Unix()}
		if s.opts.ExternalContent {
			insertCols = append(insertCols, cols...)
			for _, v := range ftsValues {
				args = append(args, v)
			}
		}
		placeholders := strings.TrimRight(strings.Repeat("?,", len(insertCols)), ",")
		query := fmt.Sprintf("INSERT INTO documents(%s) VALUES(%s)", strings.Join(insertCols, ", "), placeholders)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("inserting document row: %w", err)
		}
		docRowID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading inserted row id: %w", err)
		}
	}

	if err := s.insertFTSRow(ctx, tx, docRowID, doc.ID, cols, ftsValues); err != nil {
		return fmt.Errorf("inserting FTS entry: %w", err)
	}

	if s.spatial && doc.HasGeo {
		if err := s.upsertSpatial(ctx, tx, docRowID, doc.Lat, doc.Lng); err != nil {
			// A spatial-table failure does not fail the write; the
			// document is stored without a spatial row, so geo queries,
			// which pre-filter through the R-tree, do not return it.
			s.log.Warn("spatial upsert failed, geo queries will not return this document", "doc_id", doc.ID, "error", err)
		}
	} else if s.spatial && exists {
		if _, err := tx.ExecContext(ctx, "DELETE FROM geo_rtree WHERE id = ?", docRowID); err != nil {
			s.log.Warn("removing stale spatial row failed", "doc_id", doc.ID, "error", err)
		}
	}

	return nil
}

// fieldTextForColumns returns the text to index for each FTS column, in the
// same order as cols. In single-column mode all fields are concatenated;
// in multi-column mode each column gets exactly its own field's text.
func (s *Store) fieldTextForColumns(doc Document, cols []string) []any {
	text := doc.IndexText
	if text == nil {
		text = doc.Fields
	}

	if !s.multiColumn {
		var parts []string
		for _, v := range text {
			parts = append(parts, v)
		}
		return []any{strings.Join(parts, " ")}
	}

	values := make([]any, len(cols))
	for i, field := range s.opts.MultiColumnFields {
		values[i] = text[field]
	}
	return values
}

func (s *Store) readFTSColumns(ctx context.Context, tx *sql.Tx, rowID int64, cols []string) ([]any, error) {
	query := fmt.Sprintf("SELECT %s FROM documents WHERE id = ?", strings.Join(cols, ", "))
	dest := make([]any, len(cols))
	destPtrs := make([]any, len(cols))
	for i := range dest {
		destPtrs[i] = &dest[i]
	}
	if err := tx.QueryRowContext(ctx, query, rowID).Scan(destPtrs...); err != nil {
		return nil, err
	}
	return dest, nil
}

func (s *Store) deleteFTSRow(ctx context.Context, tx *sql.Tx, rowID int64, docID string, cols []string, oldValues []any) error {
	if s.opts.ExternalContent {
		placeholders := strings.TrimRight(strings.Repeat("?,", len(cols)), ",")
		args := append([]any{"delete", rowID}, oldValues...)
		query := fmt.Sprintf("INSERT INTO fts(fts, rowid, %s) VALUES(?, ?, %s)", strings.Join(cols, ", "), placeholders)
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	}
	_, err := tx.ExecContext(ctx, "DELETE FROM fts WHERE doc_id = ?", docID)
	return err
}

func (s *Store) insertFTSRow(ctx context.Context, tx *sql.Tx, rowID int64, docID string, cols []string, values []any) error {
	if s.opts.ExternalContent {
		placeholders := strings.TrimRight(strings.Repeat("?,", len(cols)), ",")
		args := append([]any{rowID}, values...)
		query := fmt.Sprintf("INSERT INTO fts(rowid, %s) VALUES(?, %s)", strings.Join(cols, ", "), placeholders)
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(cols)), ",")
	args := append([]any{docID}, values...)
	query := fmt.Sprintf("INSERT INTO fts(doc_id, %s) VALUES(?, %s)", strings.Join(cols, ", "), placeholders)
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) upsertSpatial(ctx context.Context, tx *sql.Tx, rowID int64, lat, lng float64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO geo_rtree(id, min_lat, max_lat, min_lng, max_lng) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET min_lat=excluded.min_lat, max_lat=excluded.max_lat, min_lng=excluded.min_lng, max_lng=excluded.max_lng`,
		rowID, lat, lat, lng, lng)
	return err
}

// bumpTermFrequencies increments the term vocabulary table used by the
// fuzzy matcher's Levenshtein/frequency-aware variants.
func (s *Store) bumpTermFrequencies(ctx context.Context, tx *sql.Tx, terms map[string]int) error {
	if len(terms) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO terms(term, frequency) VALUES (?, ?)
		 ON CONFLICT(term) DO UPDATE SET frequency = frequency + excluded.frequency`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for term, count := range terms {
		if _, err := stmt.ExecContext(ctx, term, count); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes every row referencing id from the documents, FTS, and
// spatial tables.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.DeleteBatch(ctx, []string{id}, nil)
}

// DeleteBatch removes multiple documents transactionally, decrementing the
// term vocabulary by terms (the same per-term counts bumpTermFrequencies
// added at write time) so deleted content stops inflating fuzzy-match
// frequency scores.
func (s *Store) DeleteBatch(ctx context.Context, ids []string, terms map[string]int) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return arborerr.Storagef(err, "beginning delete transaction")
	}
	defer func() { _ = tx.Rollback() }()

	cols := s.ftsColumns()
	for _, id := range ids {
		var rowID int64
		err := tx.QueryRowContext(ctx, "SELECT id FROM documents WHERE doc_id = ?", id).Scan(&rowID)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return arborerr.Storagef(err, "looking up document %s for delete", id)
		}

		var oldValues []any
		if s.opts.ExternalContent {
			oldValues, err = s.readFTSColumns(ctx, tx, rowID, cols)
			if err != nil {
				return arborerr.Storagef(err, "reading FTS values before delete for %s", id)
			}
		}
		if err := s.deleteFTSRow(ctx, tx, rowID, id, cols, oldValues); err != nil {
			return arborerr.Storagef(err, "removing FTS entry for %s", id)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", rowID); err != nil {
			return arborerr.Storagef(err, "removing document row for %s", id)
		}
		if s.spatial {
			if _, err := tx.ExecContext(ctx, "DELETE FROM geo_rtree WHERE id = ?", rowID); err != nil {
				s.log.Warn("spatial delete failed", "doc_id", id, "error", err)
			}
		}
	}

	if err := s.decrementTermFrequencies(ctx, tx, terms); err != nil {
		return arborerr.Storagef(err, "updating term vocabulary")
	}

	return tx.Commit()
}

// decrementTermFrequencies subtracts terms from the vocabulary table,
// floored at zero, and prunes any term that reaches zero so Vocabulary
// doesn't keep serving candidates for content no longer in the corpus.
func (s *Store) decrementTermFrequencies(ctx context.Context, tx *sql.Tx, terms map[string]int) error {
	if len(terms) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `UPDATE terms SET frequency = MAX(frequency - ?, 0) WHERE term = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for term, count := range terms {
		if _, err := stmt.ExecContext(ctx, count, term); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM terms WHERE frequency <= 0")
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
