package arbor

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/arborsearch/arbor/internal/arborerr"
	"github.com/arborsearch/arbor/internal/storage"
)

// Search executes a query against one named index.
func (a *Arbor) Search(ctx context.Context, indexName, query string, opts Options) (Results, error) {
	idx, err := a.lookup(indexName)
	if err != nil {
		return Results{}, err
	}
	return idx.engine.Search(ctx, query, opts)
}

// SearchMultiple fans a query out across several indices in parallel,
// merging the combined, re-sorted result set. A failing index is logged
// and skipped rather than failing the whole call.
func (a *Arbor) SearchMultiple(ctx context.Context, indexNames []string, query string, opts Options) (MultiResults, error) {
	type partial struct {
		name    string
		results Results
	}

	parts := make([]partial, len(indexNames))
	var mu sync.Mutex
	var searched []string

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range indexNames {
		i, name := i, name
		g.Go(func() error {
			idx, err := a.lookup(name)
			if err != nil {
				a.log.Warn("searchMultiple: unknown index skipped", "index", name, "error", err)
				return nil
			}
			results, err := idx.engine.Search(gctx, query, opts)
			if err != nil {
				a.log.Warn("searchMultiple: index failed, skipping", "index", name, "error", err)
				return nil
			}
			parts[i] = partial{name: name, results: results}
			mu.Lock()
			searched = append(searched, name)
			mu.Unlock()
			return nil
		})
	}
	// errgroup.Group.Wait only ever returns a non-nil error if a Go func
	// returns one; every failure path above is swallowed and logged
	// instead, per the partial-result propagation policy, so the error
	// return is always nil here.
	_ = g.Wait()

	var merged []Result
	total := 0
	for _, p := range parts {
		if p.name == "" {
			continue
		}
		merged = append(merged, p.results.Results...)
		total += p.results.Total
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	sort.Strings(searched)

	if opts.Limit > 0 && len(merged) > opts.Limit {
		merged = merged[:opts.Limit]
	}

	return MultiResults{Results: merged, Total: total, IndicesSearched: searched}, nil
}

// Count returns the number of documents matching query in indexName,
// ignoring pagination.
func (a *Arbor) Count(ctx context.Context, indexName, query string, opts Options) (int, error) {
	idx, err := a.lookup(indexName)
	if err != nil {
		return 0, err
	}
	return idx.engine.Count(ctx, query, opts)
}

// Suggest returns ranked type-ahead completions for term.
func (a *Arbor) Suggest(ctx context.Context, indexName, term string, limit int) ([]Suggestion, error) {
	idx, err := a.lookup(indexName)
	if err != nil {
		return nil, err
	}
	return idx.engine.Suggest(ctx, term, limit)
}

// GetStats returns storage-level statistics for indexName.
func (a *Arbor) GetStats(ctx context.Context, indexName string) (storage.Stats, error) {
	idx, err := a.lookup(indexName)
	if err != nil {
		return storage.Stats{}, err
	}
	return idx.store.Stats(ctx)
}

// Optimize rebuilds FTS internal structures and runs ANALYZE.
func (a *Arbor) Optimize(indexName string) error {
	idx, err := a.lookup(indexName)
	if err != nil {
		return err
	}
	return idx.store.Optimize()
}

// MigrateToExternalContent rebuilds a registered index's storage file with
// the FTS5 external-content schema. Schema mode is fixed at Open time, so this
// reads every row out of the current store, reopens storage for the same
// path under the external-content schema, and rewrites every row and the
// term vocabulary into it before swapping the registered index in place.
func (a *Arbor) MigrateToExternalContent(ctx context.Context, indexName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx, ok := a.indices[indexName]
	if !ok {
		return arborerr.NotFoundf("arbor: index %q not found", indexName)
	}
	if idx.cfg.Storage.ExternalContent {
		return nil
	}

	docs, err := idx.store.AllDocuments(ctx)
	if err != nil {
		return err
	}
	vocab, err := idx.store.Vocabulary(ctx, 0)
	if err != nil {
		return err
	}
	terms := make(map[string]int, len(vocab))
	for _, v := range vocab {
		terms[v.Term] = v.Frequency
	}

	if idx.fcache != nil {
		_ = idx.fcache.Close()
	}
	if err := idx.store.Close(); err != nil {
		return err
	}

	newCfg := idx.cfg
	newCfg.Storage.ExternalContent = true
	rebuilt, err := a.openIndex(indexName, newCfg)
	if err != nil {
		return err
	}
	if len(docs) > 0 {
		if err := rebuilt.store.UpsertBatch(ctx, docs, terms); err != nil {
			_ = rebuilt.store.Close()
			return err
		}
	}

	a.indices[indexName] = rebuilt
	return nil
}
