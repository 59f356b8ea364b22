package searchengine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/arborsearch/arbor/config"
	"github.com/arborsearch/arbor/internal/analyzer"
	"github.com/arborsearch/arbor/internal/arborerr"
	"github.com/arborsearch/arbor/internal/fuzzy"
	"github.com/arborsearch/arbor/internal/geo"
	"github.com/arborsearch/arbor/internal/storage"
)

const resultCacheCapacity = 100 // evicts least recently used entries once full

// Engine implements arbor's query pipeline: cache lookup, query
// processing (tokenize/stem/fuzzy/synonyms), storage search, result
// processing (score normalization, field filtering, highlighting,
// dedup), facets, and query-miss suggestions.
type Engine struct {
	store    *storage.Store
	analyzer *analyzer.Analyzer
	matcher  fuzzy.Matcher
	fcache   *fuzzy.Cache
	cfg      config.SearchConfig
	log      *slog.Logger

	cacheTTL time.Duration
	cacheMu  sync.Mutex
	cache    *lru.Cache[string, cacheEntry]
}

type cacheEntry struct {
	results Results
	storedAt time.Time
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithLogger overrides the engine's logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New constructs an Engine. store and an must not be nil; fcache may be
// nil, in which case fuzzy expansion and suggestions fall back to a live
// read of the store's term vocabulary on every call instead of the cached
// snapshot.
func New(store *storage.Store, an *analyzer.Analyzer, fcache *fuzzy.Cache, cfg config.SearchConfig, opts ...Option) *Engine {
	cache, _ := lru.New[string, cacheEntry](resultCacheCapacity)

	ttl, err := time.ParseDuration(cfg.CacheTTL)
	if err != nil || ttl <= 0 {
		ttl = 60 * time.Second
	}

	e := &Engine{
		store:    store,
		analyzer: an,
		matcher:  fuzzy.NewMatcher(fuzzy.Algorithm(cfg.FuzzyAlgorithm)),
		fcache:   fcache,
		cfg:      cfg,
		log:      slog.Default(),
		cacheTTL: ttl,
		cache:    cache,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// InvalidateCache drops every cached result, called after any write batch
// affecting this index.
func (e *Engine) InvalidateCache() {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.cache.Purge()
}

// Search executes the full query pipeline for queryText under opts.
func (e *Engine) Search(ctx context.Context, queryText string, opts Options) (Results, error) {
	start := time.Now()

	key := e.cacheKey(queryText, opts)
	if cached, ok := e.lookupCache(key); ok {
		return cached, nil
	}

	processed := e.processQuery(ctx, queryText, opts)

	req := storage.SearchRequest{
		MatchQuery:   processed.matchQuery,
		Filters:      opts.Filters,
		Sort:         opts.Sort,
		Limit:        opts.Limit,
		Offset:       opts.Offset,
		FieldWeights: opts.FieldWeights,
		Geo:          translateGeoFilter(opts.Geo),
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}

	dedup := opts.UniqueByRoute
	if dedup {
		// Fetch the whole candidate pool so dedup-then-paginate is
		// correct.
		req.Limit = e.maxResults()
		req.Offset = 0
	}

	result, err := e.store.Search(ctx, req)
	if err != nil {
		return Results{}, arborerr.Searchf(err, "search failed for query %q", queryText)
	}

	hits := result.Hits
	total := result.TotalHits
	if dedup {
		hits = dedupeByRoute(hits)
		total = len(hits)
		hits = paginate(hits, opts.Offset, opts.Limit)
	}

	results := e.processResults(hits, processed, opts)

	out := Results{
		Results:    results,
		Total:      total,
		SearchTime: time.Since(start),
	}

	if len(opts.Facets) > 0 {
		out.Facets = e.computeFacets(ctx, req, opts.Facets)
	}

	if len(out.Results) == 0 && e.cfg.EnableSuggestions {
		out.Suggestion = e.suggestCorrection(ctx, processed, req)
	}

	e.storeCache(key, out)
	return out, nil
}

// Count returns the number of matching rows, ignoring pagination; each
// matching chunk of a chunked document counts separately.
func (e *Engine) Count(ctx context.Context, queryText string, opts Options) (int, error) {
	processed := e.processQuery(ctx, queryText, opts)
	req := storage.SearchRequest{
		MatchQuery: processed.matchQuery,
		Filters:    opts.Filters,
		Geo:        translateGeoFilter(opts.Geo),
	}
	n, err := e.store.Count(ctx, req)
	if err != nil {
		return 0, arborerr.Searchf(err, "count failed for query %q", queryText)
	}
	return n, nil
}

// Stats proxies to the underlying store's statistics.
func (e *Engine) Stats(ctx context.Context) (storage.Stats, error) {
	return e.store.Stats(ctx)
}

func (e *Engine) maxResults() int {
	if e.cfg.MaxResults > 0 {
		return e.cfg.MaxResults
	}
	return 100
}

func (e *Engine) lookupCache(key string) (Results, bool) {
	e.cacheMu.Lock()
	entry, ok := e.cache.Get(key)
	e.cacheMu.Unlock()
	if !ok {
		return Results{}, false
	}
	if time.Since(entry.storedAt) >= e.cacheTTL {
		return Results{}, false
	}
	return entry.results, true
}

func (e *Engine) storeCache(key string, results Results) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.cache.Add(key, cacheEntry{results: results, storedAt: time.Now()})
}

// cacheKey hashes the normalized (queryText, opts) pair. encoding/json
// sorts map keys deterministically, so the hash is stable across calls
// with equivalent option maps regardless of iteration order.
func (e *Engine) cacheKey(queryText string, opts Options) string {
	type keyShape struct {
		Query string
		Opts  Options
	}
	data, err := json.Marshal(keyShape{Query: queryText, Opts: opts})
	if err != nil {
		return queryText
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func translateGeoFilter(gf *GeoFilter) *storage.GeoFilter {
	if gf == nil {
		return nil
	}
	units := gf.Units
	if units == "" {
		units = geo.Meters
	}
	out := &storage.GeoFilter{
		SortByDistance: gf.DistanceSort,
		CandidateCap:   gf.CandidateCap,
	}
	if gf.Near != nil {
		out.Near = &storage.Point{Lat: gf.Near.Lat, Lng: gf.Near.Lng}
		out.RadiusMeters = units.ToMeters(gf.Radius)
	}
	if gf.Bounds != nil {
		out.Bounds = &storage.Bounds{North: gf.Bounds.North, South: gf.Bounds.South, East: gf.Bounds.East, West: gf.Bounds.West}
	}
	if gf.Nearest != nil {
		out.CandidateCap = gf.Nearest.K * 10
		if gf.CandidateCap > 0 {
			out.CandidateCap = gf.CandidateCap
		}
	}
	return out
}

// dedupeByRoute keeps only the highest-scoring hit per RouteID, the
// storage layer's parent/chunk ownership column that the indexer already
// populates for every row. RouteID equals the document's own id for unchunked
// documents, so every hit participates in dedup.
func dedupeByRoute(hits []storage.Hit) []storage.Hit {
	best := map[string]storage.Hit{}
	var order []string

	for _, h := range hits {
		route := h.Document.RouteID
		if route == "" {
			route = h.Document.ID
		}
		if cur, ok := best[route]; !ok || h.Score > cur.Score {
			if !ok {
				order = append(order, route)
			}
			best[route] = h
		}
	}

	out := make([]storage.Hit, 0, len(order))
	for _, r := range order {
		out = append(out, best[r])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func paginate(hits []storage.Hit, offset, limit int) []storage.Hit {
	if offset > len(hits) {
		offset = len(hits)
	}
	end := len(hits)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return hits[offset:end]
}
