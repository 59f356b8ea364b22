// Package analyzer implements the text-normalization pipeline used at both
// index and query time: HTML stripping, contraction expansion, smart-quote
// folding, Unicode-aware lowercasing, stop-word removal, and stemming.
//
// The normalization order is fixed: strip HTML, expand contractions, fold
// smart quotes/ellipsis, collapse whitespace, lowercase, strip disallowed
// characters, split, drop numeric/too-short/too-long tokens, drop stop
// words, stem.
package analyzer

import (
	"regexp"
	"strings"
	"sync"
)

// Options configures a single Analyzer instance.
type Options struct {
	MinWordLength     int
	MaxWordLength     int
	RemoveNumbers     bool
	Lowercase         bool
	StripHTML         bool
	StripPunctuation  bool
	ExpandContractions bool
	CustomStopWords   []string
	DisableStopWords  bool
	StemmerFactory    StemmerFactory
}

// DefaultOptions returns arbor's default normalization settings.
func DefaultOptions() Options {
	return Options{
		MinWordLength:      2,
		MaxWordLength:      50,
		RemoveNumbers:      false,
		Lowercase:          true,
		StripHTML:          true,
		StripPunctuation:   true,
		ExpandContractions: true,
		DisableStopWords:   false,
		StemmerFactory:     DefaultStemmerFactory,
	}
}

// Result is the outcome of analyzing a piece of text.
type Result struct {
	Tokens   []string
	Original string
	Language string
}

// Analyzer tokenizes, normalizes, removes stop words, and stems text. It
// memoizes one Stemmer instance per language.
type Analyzer struct {
	opts Options

	mu       sync.Mutex
	stemmers map[string]Stemmer
	stopWords map[string]map[string]struct{} // language -> set, lazily built
}

// New creates an Analyzer with the given options, filling unset numeric
// fields with DefaultOptions' values.
func New(opts Options) *Analyzer {
	def := DefaultOptions()
	if opts.MinWordLength <= 0 {
		opts.MinWordLength = def.MinWordLength
	}
	if opts.MaxWordLength <= 0 {
		opts.MaxWordLength = def.MaxWordLength
	}
	if opts.StemmerFactory == nil {
		opts.StemmerFactory = def.StemmerFactory
	}
	return &Analyzer{
		opts:      opts,
		stemmers:  make(map[string]Stemmer),
		stopWords: make(map[string]map[string]struct{}),
	}
}

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
	allowedCharsRegex = regexp.MustCompile(`[^\p{L}\p{N}\s'-]`)
	numericTokenRegex = regexp.MustCompile(`^[0-9]+$`)
)

// contractions maps a trailing fragment to its expansion, applied as a
// simple suffix replace (e.g. "don't" -> "do not", "they're" -> "they are").
// The list is fixed; callers cannot extend it.
var contractions = []struct {
	suffix string
	expand string
}{
	{"n't", " not"},
	{"'re", " are"},
	{"'ve", " have"},
	{"'ll", " will"},
	{"'d", " would"},
	{"'m", " am"},
}

// Normalize applies the fixed normalization pipeline to text, up through
// splitting into whitespace-delimited words. It does not remove stop words
// or stem; that is the job of Analyze.
func (a *Analyzer) Normalize(text string) string {
	if a.opts.StripHTML {
		text = htmlTagRegex.ReplaceAllString(text, " ")
	}
	if a.opts.ExpandContractions {
		text = expandContractions(text)
	}
	text = foldSmartPunctuation(text)
	text = whitespaceRegex.ReplaceAllString(text, " ")
	if a.opts.Lowercase {
		text = strings.ToLower(text)
	}
	if a.opts.StripPunctuation {
		text = allowedCharsRegex.ReplaceAllString(text, " ")
	}
	return strings.Join(strings.Fields(text), " ")
}

// expandContractions rewrites common English contractions to their expanded
// form by scanning whitespace-delimited words for a matching suffix.
func expandContractions(text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		lower := strings.ToLower(w)
		for _, c := range contractions {
			if strings.HasSuffix(lower, c.suffix) {
				stem := w[:len(w)-len(c.suffix)]
				words[i] = stem + c.expand
				break
			}
		}
	}
	return strings.Join(words, " ")
}

var smartPunctuationReplacer = strings.NewReplacer(
	"‘", "'", "’", "'", // smart single quotes
	"“", "\"", "”", "\"", // smart double quotes
	"…", "...", // ellipsis
	"–", "-", "—", "-", // en/em dash
)

func foldSmartPunctuation(text string) string {
	return smartPunctuationReplacer.Replace(text)
}

// Tokenize splits text into normalized, filtered tokens without stemming.
func (a *Analyzer) Tokenize(text string) []string {
	normalized := a.Normalize(text)
	if normalized == "" {
		return []string{}
	}

	words := strings.Fields(normalized)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, "'-")
		if w == "" {
			continue
		}
		if a.opts.RemoveNumbers && numericTokenRegex.MatchString(w) {
			continue
		}
		runeLen := len([]rune(w))
		if runeLen < a.opts.MinWordLength || runeLen > a.opts.MaxWordLength {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// RemoveStopWords filters tokens against the per-language stop-word set.
// With DisableStopWords set it returns the tokens unmodified.
func (a *Analyzer) RemoveStopWords(tokens []string, language string) []string {
	if a.opts.DisableStopWords {
		return tokens
	}
	set := a.stopWordSet(language)
	if len(set) == 0 {
		return tokens
	}
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, stop := set[t]; !stop {
			out = append(out, t)
		}
	}
	return out
}

// stopWordSet returns the merged, lowercased, deduplicated stop-word set for
// language, building and caching it on first use.
func (a *Analyzer) stopWordSet(language string) map[string]struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()

	if set, ok := a.stopWords[language]; ok {
		return set
	}

	base := StopWordsFor(language)
	set := make(map[string]struct{}, len(base)+len(a.opts.CustomStopWords))
	for _, w := range base {
		set[strings.ToLower(w)] = struct{}{}
	}
	for _, w := range a.opts.CustomStopWords {
		set[strings.ToLower(w)] = struct{}{}
	}
	a.stopWords[language] = set
	return set
}

// Stem stems a single token using the per-language, memoized Stemmer.
func (a *Analyzer) Stem(token, language string) string {
	return a.stemmerFor(language).Stem(token)
}

func (a *Analyzer) stemmerFor(language string) Stemmer {
	a.mu.Lock()
	defer a.mu.Unlock()

	if s, ok := a.stemmers[language]; ok {
		return s
	}
	s := a.opts.StemmerFactory(language)
	a.stemmers[language] = s
	return s
}

// Analyze runs the complete pipeline: tokenize, remove stop words, stem.
func (a *Analyzer) Analyze(text, language string) Result {
	if language == "" {
		language = "en"
	}
	tokens := a.Tokenize(text)
	tokens = a.RemoveStopWords(tokens, language)

	stemmer := a.stemmerFor(language)
	stemmed := make([]string, len(tokens))
	for i, t := range tokens {
		stemmed[i] = stemmer.Stem(t)
	}

	return Result{
		Tokens:   stemmed,
		Original: text,
		Language: language,
	}
}

// Keyword is a candidate keyword with its raw frequency and a relative
// importance score.
type Keyword struct {
	Word      string
	Frequency int
	Score     float64
}

// ExtractKeywords returns up to limit keywords ranked by term frequency,
// using the same tokenization and stop-word removal as Analyze (but no
// stemming, so extracted keywords remain human-readable).
func (a *Analyzer) ExtractKeywords(text string, limit int) []Keyword {
	tokens := a.Tokenize(text)
	tokens = a.RemoveStopWords(tokens, "en")

	freq := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, seen := freq[t]; !seen {
			order = append(order, t)
		}
		freq[t]++
	}

	maxFreq := 1
	for _, f := range freq {
		if f > maxFreq {
			maxFreq = f
		}
	}

	keywords := make([]Keyword, 0, len(order))
	for _, w := range order {
		f := freq[w]
		keywords = append(keywords, Keyword{
			Word:      w,
			Frequency: f,
			Score:     float64(f) / float64(maxFreq),
		})
	}

	sortKeywordsByScoreDesc(keywords)

	if limit > 0 && len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords
}

func sortKeywordsByScoreDesc(k []Keyword) {
	// Small, stable insertion sort is sufficient: keyword lists are bounded
	// by the vocabulary of a single document.
	for i := 1; i < len(k); i++ {
		for j := i; j > 0 && k[j].Score > k[j-1].Score; j-- {
			k[j], k[j-1] = k[j-1], k[j]
		}
	}
}
