package searchengine

import (
	"math"
	"strings"
)

const defaultHighlightLength = 150

// highlightFields locates, for every content field, the best matching
// snippet around query tokens and wraps matched words in tag/tagClose
//. Fields with no token occurrence are omitted.
func highlightFields(content map[string]any, tokens []string, tag, tagClose string, length int) map[string]string {
	if len(tokens) == 0 {
		return nil
	}
	if tag == "" {
		tag = "<mark>"
	}
	if tagClose == "" {
		tagClose = "</mark>"
	}
	if length <= 0 {
		length = defaultHighlightLength
	}

	out := map[string]string{}
	for field, v := range content {
		text, ok := v.(string)
		if !ok || text == "" {
			continue
		}
		snippet, ok := bestSnippet(text, tokens, length)
		if !ok {
			continue
		}
		out[field] = highlightSnippet(snippet, tokens, tag, tagClose)
	}
	return out
}

// bestSnippet finds the window of length runes around the token occurrence
// that minimizes 1/(pos+1). It expands to the
// nearest word boundary on both ends.
func bestSnippet(text string, tokens []string, length int) (string, bool) {
	lower := strings.ToLower(text)
	runes := []rune(text)
	lowerRunes := []rune(lower)

	bestPos := -1
	bestCost := math.Inf(1)
	for _, tok := range tokens {
		idx := indexRunes(lowerRunes, []rune(tok))
		if idx < 0 {
			continue
		}
		cost := 1.0 / float64(idx+1)
		if cost < bestCost {
			bestCost = cost
			bestPos = idx
		}
	}
	if bestPos < 0 {
		return "", false
	}

	half := length / 2
	start := bestPos - half
	if start < 0 {
		start = 0
	}
	end := start + length
	if end > len(runes) {
		end = len(runes)
		start = end - length
		if start < 0 {
			start = 0
		}
	}

	start = expandToWordStart(runes, start)
	end = expandToWordEnd(runes, end)

	snippet := string(runes[start:end])
	if start > 0 {
		snippet = "…" + snippet
	}
	if end < len(runes) {
		snippet = snippet + "…"
	}
	return snippet, true
}

func expandToWordStart(runes []rune, pos int) int {
	for pos > 0 && !isWordBoundary(runes[pos-1]) {
		pos--
	}
	return pos
}

func expandToWordEnd(runes []rune, pos int) int {
	for pos < len(runes) && !isWordBoundary(runes[pos]) {
		pos++
	}
	return pos
}

func isWordBoundary(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}

func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// highlightSnippet wraps every case-insensitive occurrence of any token (or
// its plural form) in snippet with tag/tagClose, preserving original casing
// and punctuation around the match.
func highlightSnippet(snippet string, tokens []string, tag, tagClose string) string {
	fields := splitPreservingDelimiters(snippet)
	var b strings.Builder
	for _, f := range fields {
		if matchesAnyToken(f, tokens) {
			b.WriteString(tag)
			b.WriteString(f)
			b.WriteString(tagClose)
		} else {
			b.WriteString(f)
		}
	}
	return b.String()
}

func matchesAnyToken(word string, tokens []string) bool {
	trimmed := strings.ToLower(strings.Trim(word, ".,!?;:\"'()[]{}"))
	if trimmed == "" {
		return false
	}
	for _, tok := range tokens {
		if trimmed == tok {
			return true
		}
		if strings.HasSuffix(trimmed, "s") && strings.TrimSuffix(trimmed, "s") == tok {
			return true
		}
		if trimmed+"s" == tok {
			return true
		}
	}
	return false
}

// splitPreservingDelimiters splits text into words and the whitespace runs
// between them, so reassembly preserves the original spacing exactly.
func splitPreservingDelimiters(text string) []string {
	var out []string
	var cur strings.Builder
	inSpace := false
	for i, r := range text {
		isSpace := r == ' ' || r == '\n' || r == '\t'
		if i == 0 {
			inSpace = isSpace
		}
		if isSpace != inSpace {
			out = append(out, cur.String())
			cur.Reset()
			inSpace = isSpace
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
