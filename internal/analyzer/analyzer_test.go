package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_StripsHTMLAndPunctuation(t *testing.T) {
	a := New(DefaultOptions())
	got := a.Normalize("<p>Hello, World!</p> It's a test...")
	assert.Equal(t, "hello world it's a test", got)
}

func TestNormalize_ExpandsContractions(t *testing.T) {
	a := New(DefaultOptions())
	got := a.Normalize("don't think that")
	assert.Contains(t, got, "do not")
}

func TestNormalize_FoldsSmartQuotes(t *testing.T) {
	a := New(DefaultOptions())
	got := a.Normalize("“smart quotes” and ellipsis…")
	assert.NotContains(t, got, "“")
	assert.NotContains(t, got, "…")
}

func TestTokenize_FiltersShortAndLongTokens(t *testing.T) {
	a := New(DefaultOptions())
	tokens := a.Tokenize("a bb ccc " + repeat("d", 60))
	assert.NotContains(t, tokens, "a")
	assert.Contains(t, tokens, "bb")
	assert.Contains(t, tokens, "ccc")
	for _, tok := range tokens {
		assert.LessOrEqual(t, len(tok), 50)
	}
}

func TestTokenize_RemoveNumbers(t *testing.T) {
	opts := DefaultOptions()
	opts.RemoveNumbers = true
	a := New(opts)
	tokens := a.Tokenize("I have 42 apples and 7 oranges")
	assert.NotContains(t, tokens, "42")
	assert.NotContains(t, tokens, "7")
}

func TestRemoveStopWords_Disabled(t *testing.T) {
	opts := DefaultOptions()
	opts.DisableStopWords = true
	a := New(opts)
	tokens := []string{"the", "quick", "fox"}
	out := a.RemoveStopWords(tokens, "en")
	assert.Equal(t, tokens, out)
}

func TestRemoveStopWords_CustomMerge(t *testing.T) {
	opts := DefaultOptions()
	opts.CustomStopWords = []string{"quick"}
	a := New(opts)
	out := a.RemoveStopWords([]string{"the", "quick", "fox"}, "en")
	assert.Equal(t, []string{"fox"}, out)
}

func TestAnalyze_FullPipeline(t *testing.T) {
	a := New(DefaultOptions())
	res := a.Analyze("The Runners were running quickly", "en")
	require.NotEmpty(t, res.Tokens)
	assert.NotContains(t, res.Tokens, "the")
	assert.NotContains(t, res.Tokens, "were")
}

func TestStem_MemoizedPerLanguage(t *testing.T) {
	a := New(DefaultOptions())
	s1 := a.stemmerFor("en")
	s2 := a.stemmerFor("en")
	assert.Same(t, s1, s2)
}

func TestStem_UnknownLanguageFallsBackToEnglish(t *testing.T) {
	a := New(DefaultOptions())
	got := a.Stem("running", "xx")
	assert.Equal(t, "run", got)
}

func TestExtractKeywords_RanksByFrequency(t *testing.T) {
	a := New(DefaultOptions())
	kws := a.ExtractKeywords("search search search index index query", 2)
	require.Len(t, kws, 2)
	assert.Equal(t, "search", kws[0].Word)
	assert.Equal(t, 3, kws[0].Frequency)
	assert.Equal(t, "index", kws[1].Word)
}

func TestStopWordsFor_UnknownLanguageFallsBackToEnglish(t *testing.T) {
	assert.Equal(t, englishStopWords, StopWordsFor("zz"))
}

func repeat(s string, n int) string {
	out := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
