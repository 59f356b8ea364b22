package searchengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arborsearch/arbor/config"
	"github.com/arborsearch/arbor/internal/analyzer"
	"github.com/arborsearch/arbor/internal/geo"
	"github.com/arborsearch/arbor/internal/indexer"
	"github.com/arborsearch/arbor/internal/storage"
)

func newTestEngine(t *testing.T, cfg config.SearchConfig) (*Engine, *indexer.Indexer, *storage.Store) {
	t.Helper()
	st, err := storage.Open(storage.Options{Path: ":memory:", ExternalContent: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	an := analyzer.New(analyzer.DefaultOptions())
	ix := indexer.New(st, an, config.IndexerConfig{AutoFlush: true, BatchSize: 1, Fields: map[string]config.FieldConfig{}}, nil)
	eng := New(st, an, nil, cfg)
	return eng, ix, st
}

func defaultSearchCfg() config.SearchConfig {
	return config.NewConfig().Search
}

func TestSearch_RanksExactMatchAboveWeaker(t *testing.T) {
	eng, ix, _ := newTestEngine(t, defaultSearchCfg())
	ctx := context.Background()

	require.NoError(t, ix.Insert(ctx, indexer.Document{ID: "1", Content: map[string]any{"title": "The quick brown fox jumps over the lazy dog"}}))
	require.NoError(t, ix.Insert(ctx, indexer.Document{ID: "2", Content: map[string]any{"title": "A dog barks somewhere in the distance"}}))

	results, err := eng.Search(ctx, "quick fox", Options{Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, results.Results)
	require.Equal(t, "1", results.Results[0].ID)
}

func TestSearch_FuzzyToleratesTypo(t *testing.T) {
	cfg := defaultSearchCfg()
	cfg.FuzzyAlgorithm = "trigram"
	cfg.TrigramThreshold = 0.2 // trigram Jaccard of "elefant" and "elephant" is 2/9 ≈ 0.22, below the 0.4 default
	eng, ix, _ := newTestEngine(t, cfg)
	ctx := context.Background()

	require.NoError(t, ix.Insert(ctx, indexer.Document{ID: "1", Content: map[string]any{"title": "elephant sanctuary"}}))

	results, err := eng.Search(ctx, "elefant", Options{Fuzzy: true, Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, results.Results)
	require.Equal(t, "1", results.Results[0].ID)
}

func TestSearch_MetadataFilter(t *testing.T) {
	eng, ix, _ := newTestEngine(t, defaultSearchCfg())
	ctx := context.Background()

	require.NoError(t, ix.Insert(ctx, indexer.Document{ID: "1", Content: map[string]any{"title": "apple pie"}, Metadata: map[string]any{"category": "dessert"}}))
	require.NoError(t, ix.Insert(ctx, indexer.Document{ID: "2", Content: map[string]any{"title": "apple juice"}, Metadata: map[string]any{"category": "drink"}}))

	results, err := eng.Search(ctx, "apple", Options{
		Limit:   10,
		Filters: []storage.Filter{{Field: "category", Operator: storage.OpEqual, Value: "dessert"}},
	})
	require.NoError(t, err)
	require.Len(t, results.Results, 1)
	require.Equal(t, "1", results.Results[0].ID)
}

func TestSearch_GeoRadiusAndDistanceSort(t *testing.T) {
	eng, ix, _ := newTestEngine(t, defaultSearchCfg())
	ctx := context.Background()

	require.NoError(t, ix.Insert(ctx, indexer.Document{ID: "near", Content: map[string]any{"title": "cafe downtown"}, Geo: &geo.Point{Lat: 45.5152, Lng: -122.6734}}))
	require.NoError(t, ix.Insert(ctx, indexer.Document{ID: "far", Content: map[string]any{"title": "cafe uptown"}, Geo: &geo.Point{Lat: 48.8566, Lng: 2.3522}}))

	results, err := eng.Search(ctx, "cafe", Options{
		Limit: 10,
		Geo: &GeoFilter{
			Near:         &geo.Point{Lat: 45.5152, Lng: -122.6734},
			Radius:       50000,
			Units:        geo.Meters,
			DistanceSort: true,
		},
	})
	require.NoError(t, err)
	require.Len(t, results.Results, 1)
	require.Equal(t, "near", results.Results[0].ID)
	require.GreaterOrEqual(t, results.Results[0].Distance, 0.0)
}

func TestSearch_AntimeridianBounds(t *testing.T) {
	eng, ix, _ := newTestEngine(t, defaultSearchCfg())
	ctx := context.Background()

	require.NoError(t, ix.Insert(ctx, indexer.Document{ID: "fiji", Content: map[string]any{"title": "resort in fiji"}, Geo: &geo.Point{Lat: -17.7, Lng: 178.0}}))
	require.NoError(t, ix.Insert(ctx, indexer.Document{ID: "paris", Content: map[string]any{"title": "resort in paris"}, Geo: &geo.Point{Lat: 48.8, Lng: 2.3}}))

	results, err := eng.Search(ctx, "resort", Options{
		Limit: 10,
		Geo: &GeoFilter{
			Bounds: &geo.Bounds{North: -10, South: -20, East: -170, West: 170},
		},
	})
	require.NoError(t, err)
	require.Len(t, results.Results, 1)
	require.Equal(t, "fiji", results.Results[0].ID)
}

func TestSearch_DedupesChunksByRoute(t *testing.T) {
	eng, ix, _ := newTestEngine(t, defaultSearchCfg())
	ctx := context.Background()

	longText := "The history of aviation begins with early gliders. " +
		"Aviation pioneers tested wing designs for decades. " +
		"Modern aviation now spans supersonic and electric flight. " +
		"Aviation safety regulations evolved alongside the industry."

	require.NoError(t, ix.Insert(ctx, indexer.Document{
		ID:      "doc-1",
		Content: map[string]any{"body": longText},
		Chunks: []indexer.ChunkInput{
			{Content: "The history of aviation begins with early gliders."},
			{Content: "Aviation pioneers tested wing designs for decades."},
		},
	}))

	results, err := eng.Search(ctx, "aviation", Options{Limit: 10, UniqueByRoute: true})
	require.NoError(t, err)
	require.Len(t, results.Results, 1)
	// The parent row carries no FTS text, so the surviving hit is the best
	// chunk: both contain "aviation" once and chunk1 is the shorter row.
	require.Equal(t, "doc-1#chunk1", results.Results[0].ID)
}

func TestSearch_CacheServesRepeatedQuery(t *testing.T) {
	eng, ix, _ := newTestEngine(t, defaultSearchCfg())
	ctx := context.Background()
	require.NoError(t, ix.Insert(ctx, indexer.Document{ID: "1", Content: map[string]any{"title": "cacheable content"}}))

	first, err := eng.Search(ctx, "cacheable", Options{Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, first.Results)

	second, err := eng.Search(ctx, "cacheable", Options{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, first.Results[0].ID, second.Results[0].ID)

	eng.InvalidateCache()
	third, err := eng.Search(ctx, "cacheable", Options{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, first.Results[0].ID, third.Results[0].ID)
}

func TestSearch_FacetsTallyMetadataValues(t *testing.T) {
	eng, ix, _ := newTestEngine(t, defaultSearchCfg())
	ctx := context.Background()

	require.NoError(t, ix.Insert(ctx, indexer.Document{ID: "1", Content: map[string]any{"title": "red car"}, Metadata: map[string]any{"color": "red"}}))
	require.NoError(t, ix.Insert(ctx, indexer.Document{ID: "2", Content: map[string]any{"title": "blue car"}, Metadata: map[string]any{"color": "blue"}}))
	require.NoError(t, ix.Insert(ctx, indexer.Document{ID: "3", Content: map[string]any{"title": "red truck"}, Metadata: map[string]any{"color": "red"}}))

	results, err := eng.Search(ctx, "car truck", Options{
		Limit:  10,
		Facets: map[string]FacetRequest{"color": {}},
	})
	require.NoError(t, err)
	facet, ok := results.Facets["color"]
	require.True(t, ok)
	require.NotEmpty(t, facet.Values)
}

func TestSearch_NoResultsYieldsSuggestion(t *testing.T) {
	cfg := defaultSearchCfg()
	cfg.EnableSuggestions = true
	eng, ix, _ := newTestEngine(t, cfg)
	ctx := context.Background()
	require.NoError(t, ix.Insert(ctx, indexer.Document{ID: "1", Content: map[string]any{"title": "pineapple smoothie"}}))

	results, err := eng.Search(ctx, "pineaple", Options{Limit: 10})
	require.NoError(t, err)
	require.Empty(t, results.Results)
	require.Equal(t, "pineapple", results.Suggestion)
}

func TestCount_IgnoresPagination(t *testing.T) {
	eng, ix, _ := newTestEngine(t, defaultSearchCfg())
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, ix.Insert(ctx, indexer.Document{ID: string(rune('a' + i)), Content: map[string]any{"title": "widget"}}))
	}

	n, err := eng.Count(ctx, "widget", Options{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 5, n)
}
