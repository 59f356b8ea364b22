// Package arbor is an embeddable, single-process full-text and geospatial
// search library. It owns a set of named indices, each backed by its own
// SQLite-class storage file, and wires storage, analysis, fuzzy matching,
// and query processing into one façade: createIndex, index/update/delete,
// search/searchMultiple, count, suggest, listIndices, getStats, optimize,
// migrateToExternalContent.
//
// One long-lived struct owns a registry of per-index resources,
// constructed with functional options and a dependency-injected logger,
// with every mutating call invalidating the affected index's result
// cache.
package arbor

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/arborsearch/arbor/config"
	"github.com/arborsearch/arbor/internal/analyzer"
	"github.com/arborsearch/arbor/internal/arborerr"
	"github.com/arborsearch/arbor/internal/fuzzy"
	"github.com/arborsearch/arbor/internal/indexer"
	"github.com/arborsearch/arbor/internal/logging"
	"github.com/arborsearch/arbor/internal/searchengine"
	"github.com/arborsearch/arbor/internal/storage"
)

// Re-exported types so callers depend only on the root package for the
// common path; the internal packages remain usable directly for advanced
// wiring (custom Matcher, direct Store access, and so on).
type (
	Document    = indexer.Document
	ChunkInput  = indexer.ChunkInput
	Options     = searchengine.Options
	Results     = searchengine.Results
	Result      = searchengine.Result
	GeoFilter   = searchengine.GeoFilter
	Suggestion  = searchengine.Suggestion
	Filter      = storage.Filter
	SortField   = storage.SortField
)

// IndexSummary describes one registered index.
type IndexSummary struct {
	Name          string
	DocumentCount int
	Languages     map[string]int
	Types         map[string]int
}

// MultiResults is the outcome of SearchMultiple: a merged, score-sorted
// result set plus which indices actually ran.
type MultiResults struct {
	Results         []Result
	Total           int
	IndicesSearched []string
}

// index bundles one named index's storage, indexing, and query resources.
type index struct {
	name    string
	cfg     config.Config
	store   *storage.Store
	indexer *indexer.Indexer
	engine  *searchengine.Engine
	fcache  *fuzzy.Cache
}

// refreshVocabulary re-reads the store's term-frequency table into the
// index's fuzzy cache so JaroWinkler/Trigram/Levenshtein expansion sees
// live terms without hitting storage on every query. A failure here only
// degrades fuzzy matching (the query path falls back to a live storage
// read itself), so it's logged rather than propagated to the caller.
func (idx *index) refreshVocabulary(ctx context.Context, log *slog.Logger) {
	if idx.fcache == nil {
		return
	}
	terms, err := idx.store.Vocabulary(ctx, 0)
	if err != nil {
		log.Warn("refreshing fuzzy vocabulary cache failed", "index", idx.name, "error", err)
		return
	}
	vocab := make([]fuzzy.VocabularyTerm, len(terms))
	for i, t := range terms {
		vocab[i] = fuzzy.VocabularyTerm{Term: t.Term, Frequency: t.Frequency}
	}
	if err := idx.fcache.SetVocabulary(idx.name, vocab); err != nil {
		log.Warn("persisting fuzzy vocabulary cache failed", "index", idx.name, "error", err)
	}
}

// Arbor is the top-level handle owning every open index in a base
// directory. It is safe for concurrent use.
type Arbor struct {
	baseDir string
	log     *slog.Logger
	logClose func()

	mu      sync.RWMutex
	indices map[string]*index
}

// Option configures an Arbor at construction.
type Option func(*Arbor)

// WithLogger overrides the default logger used for every index that
// doesn't specify its own.
func WithLogger(log *slog.Logger) Option {
	return func(a *Arbor) { a.log = log }
}

// WithFileLogging replaces the default logger with a rotating-file logger
// built from cfg (see internal/logging), for embedders that want durable,
// on-disk arbor logs instead of whatever slog.Default() happens to be
// wired to. The file is flushed and closed on Close.
func WithFileLogging(cfg logging.Config) Option {
	return func(a *Arbor) {
		log, cleanup, err := logging.Setup(cfg)
		if err != nil {
			a.log.Error("file logging setup failed, falling back to the default logger", "error", err)
			return
		}
		a.log = log
		a.logClose = cleanup
	}
}

// Open returns an Arbor rooted at baseDir, where per-index database files
// and fuzzy-cache sidecars are stored. baseDir is created lazily by CreateIndex; Open itself
// performs no I/O.
func Open(baseDir string, opts ...Option) *Arbor {
	a := &Arbor{
		baseDir: baseDir,
		log:     slog.Default(),
		indices: map[string]*index{},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// CreateIndex opens (or creates) a named index under cfg, registering it
// for every subsequent façade call by name.
func (a *Arbor) CreateIndex(name string, cfg config.Config) error {
	if name == "" {
		return arborerr.InvalidArgumentf("arbor: index name must not be empty")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.indices[name]; exists {
		return arborerr.InvalidArgumentf("arbor: index %q already exists", name)
	}

	idx, err := a.openIndex(name, cfg)
	if err != nil {
		return err
	}
	a.indices[name] = idx
	return nil
}

// openIndex constructs the storage/indexer/engine trio for one index
// without registering it, so CreateIndex and MigrateToExternalContent can share
// the wiring logic.
func (a *Arbor) openIndex(name string, cfg config.Config) (*index, error) {
	path := cfg.Storage.Path
	if path != ":memory:" && !filepath.IsAbs(path) {
		path = filepath.Join(a.baseDir, path)
	}

	var multiColumnFields []string
	if cfg.Indexer.FTS.MultiColumn {
		for field := range cfg.Indexer.Fields {
			multiColumnFields = append(multiColumnFields, field)
		}
		sort.Strings(multiColumnFields)
	}

	st, err := storage.Open(storage.Options{
		Path:              path,
		ExternalContent:   cfg.Storage.ExternalContent,
		MultiColumnFields: multiColumnFields,
		PrefixSizes:       cfg.Indexer.FTS.Prefix,
		Logger:            a.log,
	})
	if err != nil {
		return nil, err
	}

	an := analyzer.New(analyzer.Options{
		MinWordLength:      cfg.Analyzer.MinWordLength,
		MaxWordLength:      cfg.Analyzer.MaxWordLength,
		RemoveNumbers:      cfg.Analyzer.RemoveNumbers,
		Lowercase:          cfg.Analyzer.Lowercase,
		StripHTML:          cfg.Analyzer.StripHTML,
		StripPunctuation:   cfg.Analyzer.StripPunctuation,
		ExpandContractions: cfg.Analyzer.ExpandContractions,
		CustomStopWords:    cfg.Analyzer.CustomStopWords,
		DisableStopWords:   cfg.Analyzer.DisableStopWords,
	})

	ix := indexer.New(st, an, cfg.Indexer, a.log)

	var fcache *fuzzy.Cache
	if path != ":memory:" {
		fcache, err = fuzzy.NewCache(filepath.Dir(path), name, 512)
		if err != nil {
			_ = st.Close()
			return nil, arborerr.Storagef(err, "opening fuzzy cache for index %s", name)
		}
	}

	engine := searchengine.New(st, an, fcache, cfg.Search, searchengine.WithLogger(a.log))

	return &index{name: name, cfg: cfg, store: st, indexer: ix, engine: engine, fcache: fcache}, nil
}

// DropIndex closes and removes a registered index's in-process handle. The
// underlying database file is left on disk; callers that want it gone
// remove cfg.Storage.Path themselves, keeping closing a resource and
// deleting the file backing it as separate concerns.
func (a *Arbor) DropIndex(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx, ok := a.indices[name]
	if !ok {
		return arborerr.NotFoundf("arbor: index %q not found", name)
	}
	delete(a.indices, name)
	if idx.fcache != nil {
		_ = idx.fcache.Close()
	}
	return idx.store.Close()
}

// Clear empties a registered index's documents without dropping it.
func (a *Arbor) Clear(ctx context.Context, name string) error {
	idx, err := a.lookup(name)
	if err != nil {
		return err
	}
	if err := idx.store.Clear(ctx); err != nil {
		return err
	}
	idx.engine.InvalidateCache()
	idx.refreshVocabulary(ctx, a.log)
	return nil
}

// IndexExists reports whether name is currently registered.
func (a *Arbor) IndexExists(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.indices[name]
	return ok
}

// ListIndices returns a summary of every registered index.
func (a *Arbor) ListIndices(ctx context.Context) ([]IndexSummary, error) {
	a.mu.RLock()
	names := make([]string, 0, len(a.indices))
	snapshot := make(map[string]*index, len(a.indices))
	for name, idx := range a.indices {
		names = append(names, name)
		snapshot[name] = idx
	}
	a.mu.RUnlock()
	sort.Strings(names)

	out := make([]IndexSummary, 0, len(names))
	for _, name := range names {
		stats, err := snapshot[name].store.Stats(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, IndexSummary{
			Name:          name,
			DocumentCount: stats.DocumentCount,
			Languages:     stats.Languages,
			Types:         stats.Types,
		})
	}
	return out, nil
}

// Close closes every registered index and, if WithFileLogging was used,
// flushes and closes the log file.
func (a *Arbor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var firstErr error
	for name, idx := range a.indices {
		if idx.fcache != nil {
			_ = idx.fcache.Close()
		}
		if err := idx.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(a.indices, name)
	}
	if a.logClose != nil {
		a.logClose()
	}
	return firstErr
}

func (a *Arbor) lookup(name string) (*index, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	idx, ok := a.indices[name]
	if !ok {
		return nil, arborerr.NotFoundf("arbor: index %q not found", name)
	}
	return idx, nil
}
