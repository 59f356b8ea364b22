package arbor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arborsearch/arbor/config"
)

func memCfg() config.Config {
	cfg := *config.NewConfig()
	cfg.Storage.Path = ":memory:"
	return cfg
}

func TestArbor_CreateIndexAndLifecycle(t *testing.T) {
	a := Open(t.TempDir())
	defer a.Close()

	require.NoError(t, a.CreateIndex("books", memCfg()))
	require.True(t, a.IndexExists("books"))
	require.Error(t, a.CreateIndex("books", memCfg()))

	summaries, err := a.ListIndices(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, "books", summaries[0].Name)

	require.NoError(t, a.DropIndex("books"))
	require.False(t, a.IndexExists("books"))
	require.Error(t, a.DropIndex("books"))
}

func TestArbor_IndexAndSearchRoundTrip(t *testing.T) {
	a := Open(t.TempDir())
	defer a.Close()
	require.NoError(t, a.CreateIndex("articles", memCfg()))
	ctx := context.Background()

	require.NoError(t, a.Index(ctx, "articles", Document{
		ID:      "1",
		Content: map[string]any{"title": "The quick brown fox"},
	}))
	require.NoError(t, a.Index(ctx, "articles", Document{
		ID:      "2",
		Content: map[string]any{"title": "A lazy dog sleeps"},
	}))

	results, err := a.Search(ctx, "articles", "fox", Options{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results.Results, 1)
	require.Equal(t, "1", results.Results[0].ID)

	require.NoError(t, a.Delete(ctx, "articles", "1"))
	results, err = a.Search(ctx, "articles", "fox", Options{Limit: 10})
	require.NoError(t, err)
	require.Empty(t, results.Results)
}

func TestArbor_IndexBatchAndCount(t *testing.T) {
	a := Open(t.TempDir())
	defer a.Close()
	require.NoError(t, a.CreateIndex("widgets", memCfg()))
	ctx := context.Background()

	docs := make([]Document, 0, 5)
	for i := 0; i < 5; i++ {
		docs = append(docs, Document{ID: string(rune('a' + i)), Content: map[string]any{"title": "widget"}})
	}
	require.NoError(t, a.IndexBatch(ctx, "widgets", docs))

	n, err := a.Count(ctx, "widgets", "widget", Options{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func TestArbor_SearchMultipleMergesAndSkipsUnknown(t *testing.T) {
	a := Open(t.TempDir())
	defer a.Close()
	require.NoError(t, a.CreateIndex("a", memCfg()))
	require.NoError(t, a.CreateIndex("b", memCfg()))
	ctx := context.Background()

	require.NoError(t, a.Index(ctx, "a", Document{ID: "1", Content: map[string]any{"title": "golden retriever"}}))
	require.NoError(t, a.Index(ctx, "b", Document{ID: "2", Content: map[string]any{"title": "golden retriever puppy"}}))

	results, err := a.SearchMultiple(ctx, []string{"a", "b", "does-not-exist"}, "golden retriever", Options{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results.Results, 2)
	require.ElementsMatch(t, []string{"a", "b"}, results.IndicesSearched)
}

func TestArbor_GetStatsAndOptimize(t *testing.T) {
	a := Open(t.TempDir())
	defer a.Close()
	require.NoError(t, a.CreateIndex("stats", memCfg()))
	ctx := context.Background()

	require.NoError(t, a.Index(ctx, "stats", Document{ID: "1", Content: map[string]any{"title": "hello"}}))
	stats, err := a.GetStats(ctx, "stats")
	require.NoError(t, err)
	require.Equal(t, 1, stats.DocumentCount)
	require.NoError(t, a.Optimize("stats"))
}

func TestArbor_MigrateToExternalContentPreservesDocuments(t *testing.T) {
	a := Open(t.TempDir())
	defer a.Close()

	cfg := memCfg()
	cfg.Storage.Path = "migrate.db"
	cfg.Storage.ExternalContent = false
	require.NoError(t, a.CreateIndex("migrating", cfg))
	ctx := context.Background()

	require.NoError(t, a.Index(ctx, "migrating", Document{ID: "1", Content: map[string]any{"title": "portable database"}}))
	require.NoError(t, a.MigrateToExternalContent(ctx, "migrating"))

	results, err := a.Search(ctx, "migrating", "portable", Options{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results.Results, 1)
	require.Equal(t, "1", results.Results[0].ID)
}
