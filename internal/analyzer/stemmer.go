package analyzer

import "strings"

// Stemmer reduces a word to its root form. Implementations are expected to
// be cheap and allocation-light since they run per-token at both index and
// query time.
//
// The stemmer tables are a pluggable, external collaborator: arbor ships a
// lightweight English suffix-stripping default and lets callers register a
// real Porter/Snowball implementation per language via StemmerFactory.
type Stemmer interface {
	Stem(word string) string
}

// StemmerFactory returns a Stemmer for the given language tag, falling back
// to English for unrecognized languages.
type StemmerFactory func(language string) Stemmer

// DefaultStemmerFactory returns englishStemmer for every language; callers
// that need real per-language stemming (Snowball, Porter2, …) should
// provide their own StemmerFactory via Options.StemmerFactory.
func DefaultStemmerFactory(language string) Stemmer {
	return englishStemmer{}
}

// englishStemmer is a minimal Porter-style suffix stripper. It is not a
// complete Porter algorithm implementation — it covers the common
// inflectional suffixes (plurals, -ing, -ed, -ly) well enough for a default,
// and is meant to be replaced by a real stemmer library in production use.
type englishStemmer struct{}

func (englishStemmer) Stem(word string) string {
	w := strings.ToLower(word)
	if len(w) <= 3 {
		return w
	}

	switch {
	case strings.HasSuffix(w, "ies") && len(w) > 4:
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "sses"):
		return w[:len(w)-2]
	case strings.HasSuffix(w, "es") && isSibilantStem(w[:len(w)-2]):
		return w[:len(w)-2]
	case strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && !strings.HasSuffix(w, "us"):
		return w[:len(w)-1]
	}

	switch {
	case strings.HasSuffix(w, "ational") && len(w) > 8:
		return w[:len(w)-7] + "ate"
	case strings.HasSuffix(w, "ization") && len(w) > 8:
		return w[:len(w)-7] + "ize"
	case strings.HasSuffix(w, "fulness") && len(w) > 8:
		return w[:len(w)-5]
	case strings.HasSuffix(w, "ing") && len(w) > 5:
		return trimDoubledConsonant(w[:len(w)-3])
	case strings.HasSuffix(w, "edly") && len(w) > 6:
		return trimDoubledConsonant(w[:len(w)-4])
	case strings.HasSuffix(w, "ed") && len(w) > 4:
		return trimDoubledConsonant(w[:len(w)-2])
	case strings.HasSuffix(w, "ly") && len(w) > 4:
		return w[:len(w)-2]
	}

	return w
}

func isSibilantStem(stem string) bool {
	if stem == "" {
		return false
	}
	last := stem[len(stem)-1]
	switch last {
	case 's', 'x', 'z':
		return true
	}
	if len(stem) >= 2 && (stem[len(stem)-2:] == "ch" || stem[len(stem)-2:] == "sh") {
		return true
	}
	return false
}

// trimDoubledConsonant undoes a doubled trailing consonant left by
// inflection stripping (e.g. "running" -> "runn" -> "run").
func trimDoubledConsonant(stem string) string {
	if len(stem) < 2 {
		return stem
	}
	last := stem[len(stem)-1]
	secondLast := stem[len(stem)-2]
	if last == secondLast && isConsonant(rune(last)) {
		return stem[:len(stem)-1]
	}
	return stem
}

func isConsonant(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u':
		return false
	}
	return r >= 'a' && r <= 'z'
}
