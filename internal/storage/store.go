package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/arborsearch/arbor/internal/arborerr"
)

// Options configures a Store at open time. It intentionally mirrors the
// subset of config.Config that affects schema shape — storage is
// config-agnostic; the root façade translates config.Config into Options.
type Options struct {
	// Path is the SQLite database file path, or ":memory:" for an
	// ephemeral index.
	Path string

	// ExternalContent selects the FTS5 "external content" schema mode,
	// which avoids duplicating stored field text inside the FTS index at
	// the cost of a join on lookup. When false, FTS5 keeps its own copy
	// (simpler, slightly larger on disk).
	ExternalContent bool

	// MultiColumnFields, when non-empty, creates one FTS5 column per
	// named field. When empty, all field text is concatenated into a
	// single "content" FTS5 column. In both modes bm25() is called without
	// per-column weights and field_weights is applied as a post-query
	// score adjustment.
	MultiColumnFields []string

	// PrefixSizes declares which FTS5 prefix indexes to materialize, a
	// subset of {2,3,4}.
	PrefixSizes []int

	Logger *slog.Logger
}

// Store is a single SQLite-backed arbor index: documents table, FTS5
// virtual table, optional R-tree spatial table, and a term vocabulary
// table for Levenshtein/frequency-aware fuzzy matching.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	opts   Options
	log    *slog.Logger
	closed bool

	multiColumn bool
	spatial     bool // whether the R-tree virtual table is available
	schemaMode  string
}

// Open creates or opens a Store at opts.Path, running the integrity probe,
// WAL pragma setup, and schema creation in one step.
func Open(opts Options) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	dsn, memory := dsnFor(opts.Path)
	if !memory {
		dir := filepath.Dir(opts.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, arborerr.Storagef(err, "creating storage directory %s", dir)
		}
		if err := probeIntegrity(opts.Path); err != nil {
			log.Warn("storage index failed integrity probe", "path", opts.Path, "error", err)
			return nil, arborerr.Storagef(err, "index at %s failed integrity check; surfacing rather than auto-deleting", opts.Path)
		}
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, arborerr.Storagef(err, "opening database %s", opts.Path)
	}

	// A single writer connection avoids SQLITE_BUSY under WAL by
	// serializing all writes through this *sql.DB.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db, memory); err != nil {
		_ = db.Close()
		return nil, arborerr.Storagef(err, "configuring pragmas for %s", opts.Path)
	}

	s := &Store{
		db:          db,
		opts:        opts,
		log:         log,
		multiColumn: len(opts.MultiColumnFields) > 0,
	}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, arborerr.Storagef(err, "initializing schema for %s", opts.Path)
	}

	return s, nil
}

func dsnFor(path string) (dsn string, memory bool) {
	if path == "" || path == ":memory:" {
		return ":memory:", true
	}
	return path + "?_pragma=busy_timeout(5000)", false
}

// probeIntegrity runs PRAGMA integrity_check against an existing database
// file before arbor opens it for writing. A failure here is surfaced to
// the caller as a StorageError rather than silently deleting and
// rebuilding the file.
func probeIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open(driverName, path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("opening for integrity check: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("running integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database integrity check failed: %s", result)
	}
	return nil
}

// mmapSizeBytes caps how much of the database file SQLite maps into the
// process's address space via mmap, trading address space for fewer
// read() syscalls on a warm cache.
const mmapSizeBytes = 256 * 1024 * 1024

func applyPragmas(db *sql.DB, memory bool) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA mmap_size = %d", mmapSizeBytes),
	}
	if !memory {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("exec %q: %w", p, err)
		}
	}
	return nil
}

// setSynchronous toggles PRAGMA synchronous between its steady-state
// NORMAL (safe under WAL: survives an application crash, only a full OS
// crash can lose the last commit) and OFF, used around large batches where
// the caller accepts that a power loss mid-batch can corrupt the WAL.
func setSynchronous(db *sql.DB, level string) error {
	_, err := db.Exec("PRAGMA synchronous = " + level)
	return err
}

// Close checkpoints the WAL and closes the underlying connection. Close is
// idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

func (s *Store) checkOpen() error {
	if s.closed {
		return arborerr.ErrIndexClosed
	}
	return nil
}

// Optimize runs FTS5 housekeeping and an ANALYZE pass.
func (s *Store) Optimize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	ftsTable := "fts"
	if _, err := s.db.Exec(fmt.Sprintf("INSERT INTO %s(%s) VALUES('optimize')", ftsTable, ftsTable)); err != nil {
		return arborerr.Storagef(err, "optimizing FTS index")
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return arborerr.Storagef(err, "checkpointing WAL")
	}
	if _, err := s.db.Exec("ANALYZE"); err != nil {
		return arborerr.Storagef(err, "running ANALYZE")
	}
	return nil
}

// errNoRows is not returned by any lookup in this package: GetDocument
// reports a missing row through its boolean result instead.
var errNoRows = errors.New("storage: no rows")
