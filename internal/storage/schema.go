package storage

import (
	"fmt"
	"regexp"
	"strings"
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// sanitizeColumn turns a caller-supplied field name into a safe SQL
// identifier for use as an FTS5/documents column name. Field names that
// don't already look like identifiers are prefixed so they still round-
// trip deterministically.
func sanitizeColumn(field string) string {
	col := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, field)
	if col == "" || !identifierRegex.MatchString(col) {
		col = "f_" + col
	}
	return col
}

// ftsColumns returns the FTS5 (and, in external-content mode, documents)
// column names for this store's configured field set.
func (s *Store) ftsColumns() []string {
	if !s.multiColumn {
		return []string{"content"}
	}
	cols := make([]string, len(s.opts.MultiColumnFields))
	for i, f := range s.opts.MultiColumnFields {
		cols[i] = sanitizeColumn(f)
	}
	return cols
}

func (s *Store) initSchema() error {
	const baseSchema = `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY,
		doc_id TEXT UNIQUE NOT NULL,
		route_id TEXT NOT NULL,
		fields TEXT NOT NULL,
		metadata TEXT,
		language TEXT,
		type TEXT,
		timestamp INTEGER,
		has_geo INTEGER NOT NULL DEFAULT 0,
		lat REAL,
		lng REAL,
		created_at INTEGER,
		updated_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_documents_route ON documents(route_id);
	CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(type);
	CREATE INDEX IF NOT EXISTS idx_documents_language ON documents(language);
	CREATE INDEX IF NOT EXISTS idx_documents_geo ON documents(lat, lng);

	CREATE TABLE IF NOT EXISTS terms (
		term TEXT PRIMARY KEY,
		frequency INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`
	if _, err := s.db.Exec(baseSchema); err != nil {
		return fmt.Errorf("creating base schema: %w", err)
	}

	cols := s.ftsColumns()

	if s.opts.ExternalContent {
		for _, col := range cols {
			// SQLite has no "ADD COLUMN IF NOT EXISTS"; ignore the
			// duplicate-column error on repeated opens.
			_, err := s.db.Exec(fmt.Sprintf("ALTER TABLE documents ADD COLUMN %s TEXT", col))
			if err != nil && !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("adding documents column %s: %w", col, err)
			}
		}
		ddl := fmt.Sprintf(
			"CREATE VIRTUAL TABLE IF NOT EXISTS fts USING fts5(%s, content='documents', content_rowid='id', tokenize='unicode61', prefix='%s')",
			strings.Join(cols, ", "), prefixArg(s.opts.PrefixSizes),
		)
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("creating external-content FTS5 table: %w", err)
		}
		s.schemaMode = "external_content"
	} else {
		ddl := fmt.Sprintf(
			"CREATE VIRTUAL TABLE IF NOT EXISTS fts USING fts5(doc_id UNINDEXED, %s, tokenize='unicode61', prefix='%s')",
			strings.Join(cols, ", "), prefixArg(s.opts.PrefixSizes),
		)
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("creating standalone FTS5 table: %w", err)
		}
		s.schemaMode = "legacy"
	}

	s.spatial = s.probeSpatialSupport()

	_, err := s.db.Exec("INSERT OR IGNORE INTO meta(key, value) VALUES('schema_mode', ?)", s.schemaMode)
	return err
}

func prefixArg(sizes []int) string {
	if len(sizes) == 0 {
		return "2 3"
	}
	parts := make([]string, len(sizes))
	for i, n := range sizes {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, " ")
}

// probeSpatialSupport attempts to create the R-tree virtual table once at
// open time and remembers whether it succeeded. When the SQLite build lacks the R-tree extension,
// spatial writes are skipped and geo predicates fall back to a lat/lng
// column scan rather than erroring.
func (s *Store) probeSpatialSupport() bool {
	_, err := s.db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS geo_rtree USING rtree(
		id, min_lat, max_lat, min_lng, max_lng
	)`)
	if err != nil {
		s.log.Warn("R-tree module unavailable, spatial queries will degrade to linear scan", "error", err)
		return false
	}
	return true
}
