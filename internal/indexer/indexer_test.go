package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arborsearch/arbor/config"
	"github.com/arborsearch/arbor/internal/analyzer"
	"github.com/arborsearch/arbor/internal/geo"
	"github.com/arborsearch/arbor/internal/storage"
)

func newTestIndexer(t *testing.T, cfg config.IndexerConfig) (*Indexer, *storage.Store) {
	t.Helper()
	st, err := storage.Open(storage.Options{Path: ":memory:", ExternalContent: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	an := analyzer.New(analyzer.DefaultOptions())
	return New(st, an, cfg, nil), st
}

func defaultCfg() config.IndexerConfig {
	return config.IndexerConfig{
		ChunkSize:    0,
		ChunkOverlap: 0,
		AutoFlush:    true,
		BatchSize:    1,
		Fields:       map[string]config.FieldConfig{},
	}
}

func TestInsert_RoundTripsContentAndMetadata(t *testing.T) {
	ix, st := newTestIndexer(t, defaultCfg())
	ctx := context.Background()

	err := ix.Insert(ctx, Document{
		ID:       "1",
		Content:  map[string]any{"title": "Star Wars"},
		Metadata: map[string]any{"year": 1977},
	})
	require.NoError(t, err)

	doc, found, err := st.GetDocument(ctx, "1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Star Wars", doc.Fields["title"])
	require.EqualValues(t, 1977, doc.Metadata["year"])
}

func TestInsert_StoreOnlyFieldExcludedFromIndex(t *testing.T) {
	cfg := defaultCfg()
	cfg.Fields["internal_note"] = config.FieldConfig{Store: true, Index: false}
	cfg.Fields["title"] = config.FieldConfig{Store: true, Index: true}
	ix, _ := newTestIndexer(t, cfg)
	ctx := context.Background()

	err := ix.Insert(ctx, Document{
		ID: "1",
		Content: map[string]any{
			"title":         "Gladiator",
			"internal_note": "do-not-search-me",
		},
	})
	require.NoError(t, err)

	rows, terms, err := ix.buildRows(Document{
		ID: "2",
		Content: map[string]any{
			"title":         "Gladiator",
			"internal_note": "do-not-search-me",
		},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "do-not-search-me", rows[0].Fields["internal_note"])
	_, indexed := rows[0].IndexText["internal_note"]
	require.False(t, indexed)
	require.NotEmpty(t, terms)
}

func TestInsert_ChunksLongField(t *testing.T) {
	cfg := defaultCfg()
	cfg.ChunkSize = 50
	cfg.ChunkOverlap = 5
	ix, st := newTestIndexer(t, cfg)
	ctx := context.Background()

	longText := "Sentence one is here. Sentence two follows right after. " +
		"Sentence three keeps going on. Sentence four wraps things up nicely."

	err := ix.Insert(ctx, Document{
		ID:      "doc-1",
		Content: map[string]any{"body": longText},
	})
	require.NoError(t, err)

	ids, err := st.IDsByRoute(ctx, "doc-1")
	require.NoError(t, err)
	require.Greater(t, len(ids), 1, "expected parent plus at least one chunk")

	parent, found, err := st.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, longText, parent.Fields["body"])
}

func TestDelete_RemovesParentAndChunks(t *testing.T) {
	cfg := defaultCfg()
	cfg.ChunkSize = 20
	ix, st := newTestIndexer(t, cfg)
	ctx := context.Background()

	require.NoError(t, ix.Insert(ctx, Document{
		ID:      "doc-1",
		Content: map[string]any{"body": "one two three four five six seven eight nine ten"},
	}))

	require.NoError(t, ix.Delete(ctx, "doc-1"))

	ids, err := st.IDsByRoute(ctx, "doc-1")
	require.NoError(t, err)
	require.Empty(t, ids)

	_, found, err := st.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestRebuild_ClearsAndReindexes(t *testing.T) {
	ix, st := newTestIndexer(t, defaultCfg())
	ctx := context.Background()

	require.NoError(t, ix.Insert(ctx, Document{ID: "1", Content: map[string]any{"title": "old"}}))
	require.NoError(t, ix.Rebuild(ctx, []Document{
		{ID: "2", Content: map[string]any{"title": "new"}},
	}))

	_, found, err := st.GetDocument(ctx, "1")
	require.NoError(t, err)
	require.False(t, found)

	doc, found, err := st.GetDocument(ctx, "2")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "new", doc.Fields["title"])
}

func TestInsertBatch_AutoFlushRespectsBatchSize(t *testing.T) {
	cfg := defaultCfg()
	cfg.AutoFlush = true
	cfg.BatchSize = 3
	ix, st := newTestIndexer(t, cfg)
	ctx := context.Background()

	require.NoError(t, ix.Insert(ctx, Document{ID: "1", Content: map[string]any{"title": "a"}}))
	require.NoError(t, ix.Insert(ctx, Document{ID: "2", Content: map[string]any{"title": "b"}}))

	_, found, err := st.GetDocument(ctx, "1")
	require.NoError(t, err)
	require.False(t, found, "buffered documents must not be visible before flush")

	require.NoError(t, ix.Insert(ctx, Document{ID: "3", Content: map[string]any{"title": "c"}}))

	_, found, err = st.GetDocument(ctx, "1")
	require.NoError(t, err)
	require.True(t, found, "reaching batch_size should auto-flush")
}

func TestInsert_GeoCarriesThroughToStorage(t *testing.T) {
	ix, st := newTestIndexer(t, defaultCfg())
	ctx := context.Background()

	require.NoError(t, ix.Insert(ctx, Document{
		ID:      "cafe-1",
		Content: map[string]any{"name": "Coffee"},
		Geo:     &geo.Point{Lat: 45.5152, Lng: -122.6734},
	}))

	doc, found, err := st.GetDocument(ctx, "cafe-1")
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, doc.HasGeo)
	require.InDelta(t, 45.5152, doc.Lat, 1e-6)
}

func TestStats_ReportsFlushedDocumentsOnly(t *testing.T) {
	ix, _ := newTestIndexer(t, defaultCfg())
	ctx := context.Background()

	require.NoError(t, ix.Insert(ctx, Document{ID: "1", Content: map[string]any{"title": "a"}, Type: "book"}))
	require.NoError(t, ix.Insert(ctx, Document{ID: "2", Content: map[string]any{"title": "b"}, Type: "book"}))

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.DocumentCount)
	require.Equal(t, 2, stats.Types["book"])
}
