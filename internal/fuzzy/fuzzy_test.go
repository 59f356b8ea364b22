package fuzzy

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicMatcher_IgnoresShortTerms(t *testing.T) {
	m := NewMatcher(Basic)
	got := m.Expand("cat", nil, DefaultOptions())
	assert.Empty(t, got)
}

func TestBasicMatcher_GeneratesDeletionsAndTransposition(t *testing.T) {
	m := NewMatcher(Basic)
	opts := DefaultOptions()
	opts.MaxVariations = 0 // uncapped: the default cap of 5 keeps only the 0.85 transpositions
	got := m.Expand("search", nil, opts)
	require.NotEmpty(t, got)

	var terms []string
	for _, v := range got {
		terms = append(terms, v.Term)
	}
	assert.Contains(t, terms, "earch")  // deletion of leading 's'
	assert.Contains(t, terms, "esarch") // transposition of 's' and 'e'
}

func TestJaroSimilarity_IdenticalStringsScoreOne(t *testing.T) {
	assert.Equal(t, 1.0, JaroSimilarity("martha", "martha"))
}

func TestJaroWinklerSimilarity_KnownPair(t *testing.T) {
	// Classic Winkler example: MARTHA / MARHTA.
	sim := JaroWinklerSimilarity("martha", "marhta", 0.1)
	assert.InDelta(t, 0.961, sim, 0.01)
}

func TestJaroWinklerMatcher_RespectsThreshold(t *testing.T) {
	m := NewMatcher(JaroWinkler)
	vocab := []VocabularyTerm{
		{Term: "martha", Frequency: 5},
		{Term: "completelydifferent", Frequency: 5},
	}
	opts := DefaultOptions()
	opts.JaroWinklerThreshold = 0.9
	got := m.Expand("marhta", vocab, opts)
	require.Len(t, got, 1)
	assert.Equal(t, "martha", got[0].Term)
}

func TestEditDistance_KnownValues(t *testing.T) {
	assert.Equal(t, 0, EditDistance("kitten", "kitten"))
	assert.Equal(t, 3, EditDistance("kitten", "sitting"))
	assert.Equal(t, 1, EditDistance("color", "colour"))
}

func TestLevenshteinMatcher_FindsCloseTerms(t *testing.T) {
	m := NewMatcher(Levenshtein)
	vocab := []VocabularyTerm{
		{Term: "color", Frequency: 10},
		{Term: "xylophone", Frequency: 10},
	}
	opts := DefaultOptions()
	opts.LevenshteinThreshold = 2
	got := m.Expand("colour", vocab, opts)
	require.Len(t, got, 1)
	assert.Equal(t, "color", got[0].Term)
}

func TestTrigramMatcher_UsesBigramsForShortTerms(t *testing.T) {
	m := NewMatcher(Trigram)
	vocab := []VocabularyTerm{{Term: "cat", Frequency: 3}, {Term: "dog", Frequency: 3}}
	opts := DefaultOptions()
	opts.TrigramThreshold = 0.3
	got := m.Expand("cats", vocab, opts)
	require.NotEmpty(t, got)
	assert.Equal(t, "cat", got[0].Term)
}

func TestNGramSet_AdaptiveSize(t *testing.T) {
	grams := nGramSet("cats", adaptiveGramSize("cats", 3))
	_, ok := grams["ca"]
	assert.True(t, ok)
}

func TestVariants_TruncatedToMaxVariations(t *testing.T) {
	m := NewMatcher(Trigram)
	vocab := []VocabularyTerm{
		{Term: "search"}, {Term: "search1"}, {Term: "search2"},
		{Term: "search3"}, {Term: "search4"}, {Term: "search5"},
	}
	opts := DefaultOptions()
	opts.TrigramThreshold = 0.1
	opts.MaxVariations = 2
	got := m.Expand("searchx", vocab, opts)
	assert.LessOrEqual(t, len(got), 2)
}

func TestCache_PersistsVocabularyAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	c1, err := NewCache(dir, "books", 64)
	require.NoError(t, err)
	require.NoError(t, c1.SetVocabulary("books", []VocabularyTerm{{Term: "hello", Frequency: 3}}))
	require.NoError(t, c1.Close())

	c2, err := NewCache(dir, "books", 64)
	require.NoError(t, err)
	vocab := c2.Vocabulary()
	require.Len(t, vocab, 1)
	assert.Equal(t, "hello", vocab[0].Term)
}

func TestCache_MissingSidecarIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCache(dir, "fresh-index", 64)
	require.NoError(t, err)
	assert.Empty(t, c.Vocabulary())
}

func TestCache_ExpandCachesPerAlgorithm(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCache(dir, "idx", 64)
	require.NoError(t, err)
	require.NoError(t, c.SetVocabulary("idx", []VocabularyTerm{{Term: "color", Frequency: 5}}))

	opts := DefaultOptions()
	opts.Algorithm = Levenshtein
	opts.LevenshteinThreshold = 2

	first := c.Expand(NewMatcher(Levenshtein), "colour", c.Vocabulary(), opts)
	second := c.Expand(NewMatcher(Levenshtein), "colour", c.Vocabulary(), opts)
	assert.Equal(t, first, second)
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
