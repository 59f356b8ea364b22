// Package fuzzy implements the FuzzyMatcher subsystem: four typo-tolerant
// expansion algorithms (basic wildcard/edit, Jaro-Winkler, trigram
// Jaccard, Levenshtein edit distance) behind one Matcher capability
// interface, plus an in-memory/on-disk vocabulary cache. A single Matcher
// interface dispatches to one of four strategies selected by Algorithm,
// rather than a switch buried in the caller.
package fuzzy

import (
	"math"
	"sort"
	"strings"
)

// Algorithm selects which fuzzy-matching strategy a Matcher uses.
type Algorithm string

const (
	Basic       Algorithm = "basic"
	JaroWinkler Algorithm = "jaro_winkler"
	Trigram     Algorithm = "trigram"
	Levenshtein Algorithm = "levenshtein"
)

// Options configures every algorithm; only the fields relevant to the
// selected Algorithm are consulted.
type Options struct {
	Algorithm Algorithm

	MaxVariations int // max_fuzzy_variations

	JaroWinklerThreshold  float64
	JaroWinklerPrefixScale float64

	TrigramThreshold float64
	TrigramSize      int // 3, or 2 adaptively for short terms

	LevenshteinThreshold int
	MinTermFrequency     int
}

// DefaultOptions returns the recommended thresholds for each algorithm.
func DefaultOptions() Options {
	return Options{
		Algorithm:              Trigram,
		MaxVariations:          5,
		JaroWinklerThreshold:   0.92,
		JaroWinklerPrefixScale: 0.1,
		TrigramThreshold:       0.4,
		TrigramSize:            3,
		LevenshteinThreshold:   2,
		MinTermFrequency:       1,
	}
}

// Variant is a single fuzzy expansion candidate with a similarity score in
// [0, 1] (Basic variants that bypass vocabulary scoring use a fixed score).
type Variant struct {
	Term       string
	Similarity float64
}

// VocabularyTerm is one entry of the index's term vocabulary, used by the
// scoring algorithms (Jaro-Winkler, Trigram, Levenshtein).
type VocabularyTerm struct {
	Term      string
	Frequency int
}

// Matcher expands a surface term into ranked candidate variants drawn from
// vocab.
type Matcher interface {
	Expand(term string, vocab []VocabularyTerm, opts Options) []Variant
}

// NewMatcher returns the Matcher for opts.Algorithm.
func NewMatcher(algo Algorithm) Matcher {
	switch algo {
	case JaroWinkler:
		return jaroWinklerMatcher{}
	case Trigram:
		return trigramMatcher{}
	case Levenshtein:
		return levenshteinMatcher{}
	default:
		return basicMatcher{}
	}
}

// sortVariantsDesc orders variants by descending similarity score, truncated
// to max if max > 0.
func sortVariantsDesc(variants []Variant, max int) []Variant {
	sort.SliceStable(variants, func(i, j int) bool {
		return variants[i].Similarity > variants[j].Similarity
	})
	if max > 0 && len(variants) > max {
		variants = variants[:max]
	}
	return variants
}

// ---- basic ----

// basicMatcher produces wildcard variants, single-character deletions, and
// adjacent transpositions without consulting a vocabulary. Applied only to
// terms longer than 3 characters.
type basicMatcher struct{}

func (basicMatcher) Expand(term string, _ []VocabularyTerm, opts Options) []Variant {
	if len([]rune(term)) <= 3 {
		return nil
	}
	runes := []rune(term)
	n := len(runes)

	seen := make(map[string]struct{})
	var variants []Variant
	add := func(s string, score float64) {
		if s == term || s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		variants = append(variants, Variant{Term: s, Similarity: score})
	}

	// Wildcard variants: s* (first rune), s*h (first and last rune).
	add(string(runes[:1])+"*", 0.6)
	if n > 2 {
		add(string(runes[:1])+"*"+string(runes[n-1:]), 0.65)
	}

	// Single-character deletions.
	for i := 0; i < n; i++ {
		deleted := string(runes[:i]) + string(runes[i+1:])
		add(deleted, 0.8)
	}

	// Adjacent transpositions.
	for i := 0; i < n-1; i++ {
		swapped := make([]rune, n)
		copy(swapped, runes)
		swapped[i], swapped[i+1] = swapped[i+1], swapped[i]
		add(string(swapped), 0.85)
	}

	return sortVariantsDesc(variants, opts.MaxVariations)
}

// ---- jaro-winkler ----

type jaroWinklerMatcher struct{}

func (jaroWinklerMatcher) Expand(term string, vocab []VocabularyTerm, opts Options) []Variant {
	threshold := opts.JaroWinklerThreshold
	if threshold <= 0 {
		threshold = DefaultOptions().JaroWinklerThreshold
	}
	prefixScale := opts.JaroWinklerPrefixScale
	if prefixScale <= 0 {
		prefixScale = DefaultOptions().JaroWinklerPrefixScale
	}

	var variants []Variant
	for _, v := range vocab {
		if v.Term == term {
			continue
		}
		sim := JaroWinklerSimilarity(term, v.Term, prefixScale)
		if sim >= threshold {
			variants = append(variants, Variant{Term: v.Term, Similarity: sim})
		}
	}
	return sortVariantsDesc(variants, opts.MaxVariations)
}

// JaroSimilarity computes the Jaro similarity between a and b in [0, 1].
func JaroSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 && lb == 0 {
		return 1
	}
	if la == 0 || lb == 0 {
		return 0
	}

	matchDistance := int(math.Max(float64(la), float64(lb))/2) - 1
	if matchDistance < 0 {
		matchDistance = 0
	}

	aMatches := make([]bool, la)
	bMatches := make([]bool, lb)

	matches := 0
	for i := 0; i < la; i++ {
		start := max(0, i-matchDistance)
		end := min(i+matchDistance+1, lb)
		for j := start; j < end; j++ {
			if bMatches[j] || ra[i] != rb[j] {
				continue
			}
			aMatches[i] = true
			bMatches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	var transpositions int
	k := 0
	for i := 0; i < la; i++ {
		if !aMatches[i] {
			continue
		}
		for !bMatches[k] {
			k++
		}
		if ra[i] != rb[k] {
			transpositions++
		}
		k++
	}
	transpositions /= 2

	m := float64(matches)
	return (m/float64(la) + m/float64(lb) + (m-float64(transpositions))/m) / 3
}

// JaroWinklerSimilarity applies the Winkler common-prefix boost (up to 4
// characters) to the Jaro similarity, scaled by prefixScale.
func JaroWinklerSimilarity(a, b string, prefixScale float64) float64 {
	jaro := JaroSimilarity(a, b)

	ra, rb := []rune(a), []rune(b)
	prefixLen := 0
	maxPrefix := 4
	for prefixLen < maxPrefix && prefixLen < len(ra) && prefixLen < len(rb) && ra[prefixLen] == rb[prefixLen] {
		prefixLen++
	}

	return jaro + float64(prefixLen)*prefixScale*(1-jaro)
}

// ---- trigram ----

type trigramMatcher struct{}

func (trigramMatcher) Expand(term string, vocab []VocabularyTerm, opts Options) []Variant {
	threshold := opts.TrigramThreshold
	if threshold <= 0 {
		threshold = DefaultOptions().TrigramThreshold
	}
	size := opts.TrigramSize
	if size <= 0 {
		size = 3
	}

	termGrams := nGramSet(term, adaptiveGramSize(term, size))

	var variants []Variant
	for _, v := range vocab {
		if v.Term == term {
			continue
		}
		vocabGrams := nGramSet(v.Term, adaptiveGramSize(v.Term, size))
		sim := jaccardSimilarity(termGrams, vocabGrams)
		if sim >= threshold {
			variants = append(variants, Variant{Term: v.Term, Similarity: sim})
		}
	}
	return sortVariantsDesc(variants, opts.MaxVariations)
}

// adaptiveGramSize uses bigrams for terms of length <= 4, else the
// configured n-gram size.
func adaptiveGramSize(term string, size int) int {
	if len([]rune(term)) <= 4 {
		return 2
	}
	return size
}

// nGramSet returns the set of contiguous n-character substrings of term.
func nGramSet(term string, n int) map[string]struct{} {
	runes := []rune(term)
	set := make(map[string]struct{})
	if len(runes) < n {
		set[term] = struct{}{}
		return set
	}
	for i := 0; i+n <= len(runes); i++ {
		set[string(runes[i:i+n])] = struct{}{}
	}
	return set
}

func jaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for g := range a {
		if _, ok := b[g]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// ---- levenshtein ----

type levenshteinMatcher struct{}

func (levenshteinMatcher) Expand(term string, vocab []VocabularyTerm, opts Options) []Variant {
	threshold := opts.LevenshteinThreshold
	if threshold <= 0 {
		threshold = DefaultOptions().LevenshteinThreshold
	}
	minFreq := opts.MinTermFrequency

	termRunes := []rune(term)
	termBigrams := nGramSet(term, 2)
	requiredShared := (len(termRunes) + 1) / 2 // ceil(|term|/2)

	var variants []Variant
	for _, v := range vocab {
		if v.Term == term {
			continue
		}
		if v.Frequency < minFreq {
			continue
		}

		candRunes := []rune(v.Term)
		if abs(len(candRunes)-len(termRunes)) > threshold {
			continue
		}

		// First/last character prefilter when both terms are long enough.
		if len(termRunes) > 1 && len(candRunes) > 1 {
			if termRunes[0] != candRunes[0] && termRunes[len(termRunes)-1] != candRunes[len(candRunes)-1] {
				continue
			}
		}

		candBigrams := nGramSet(v.Term, 2)
		shared := 0
		for g := range termBigrams {
			if _, ok := candBigrams[g]; ok {
				shared++
			}
		}
		if shared < requiredShared {
			continue
		}

		dist := EditDistance(term, v.Term)
		if dist <= threshold {
			sim := 1 - float64(dist)/float64(max(len(termRunes), len(candRunes)))
			variants = append(variants, Variant{Term: v.Term, Similarity: sim})
		}
	}
	return sortVariantsDesc(variants, opts.MaxVariations)
}

// EditDistance computes the Levenshtein edit distance between a and b.
func EditDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// StripPunctuation strips characters commonly used for prefix-wildcard
// suggestion queries (used by callers assembling prefix_last_token
// expansion), removing everything but letters, digits, and the wildcard
// marker itself.
func StripPunctuation(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '*' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
