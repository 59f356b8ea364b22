package indexer

import (
	"regexp"
	"strings"
)

// sentenceBoundary matches the end of a sentence: terminal punctuation
// followed by whitespace (the next word's case is not checked), a simple
// heuristic for splitting prose on natural boundaries before falling back
// to a harder whitespace break.
var sentenceBoundary = regexp.MustCompile(`([.!?])\s+`)

// splitText divides text into chunks of about size runes, preferring to
// break on sentence boundaries and falling back to whitespace when a
// single sentence still exceeds size. Consecutive chunks share an overlap
// of the trailing overlap runes of the previous chunk; a chunk that starts
// with that tail is not re-checked against size, so it can exceed size by
// up to the overlap plus separating spaces.
func splitText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 || len([]rune(text)) <= size {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 10
	}

	sentences := splitSentences(text)

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		sentLen := len([]rune(sentence))

		if sentLen > size {
			// A single sentence is itself too long; fall back to
			// whitespace-bounded splitting for it.
			flush()
			current.Reset()
			currentLen = 0
			chunks = append(chunks, splitByWhitespace(sentence, size, overlap)...)
			continue
		}

		if currentLen+sentLen+1 > size && currentLen > 0 {
			flush()
			tail := overlapTail(current.String(), overlap)
			current.Reset()
			currentLen = 0
			if tail != "" {
				current.WriteString(tail)
				current.WriteString(" ")
				currentLen = len([]rune(tail))
			}
		}

		if currentLen > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
		currentLen += sentLen
	}
	flush()

	return chunks
}

func splitSentences(text string) []string {
	var sentences []string
	last := 0
	locs := sentenceBoundary.FindAllStringIndex(text, -1)
	for _, loc := range locs {
		sentences = append(sentences, text[last:loc[1]])
		last = loc[1]
	}
	if last < len(text) {
		sentences = append(sentences, text[last:])
	}
	if len(sentences) == 0 {
		return []string{text}
	}
	return sentences
}

// splitByWhitespace splits text that has no usable sentence boundaries
// into word-bounded chunks of at most size runes, with overlap.
func splitByWhitespace(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	currentLen := 0

	for _, w := range words {
		wLen := len([]rune(w))
		if currentLen+wLen+1 > size && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			overlapWords := wordOverlap(current, overlap)
			current = append([]string{}, overlapWords...)
			currentLen = 0
			for _, ow := range current {
				currentLen += len([]rune(ow)) + 1
			}
		}
		current = append(current, w)
		currentLen += wLen + 1
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// overlapTail returns up to overlap trailing runes of s, trimmed to a word
// boundary so the next chunk doesn't start mid-word.
func overlapTail(s string, overlap int) string {
	if overlap <= 0 {
		return ""
	}
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= overlap {
		return string(runes)
	}
	tail := string(runes[len(runes)-overlap:])
	if idx := strings.Index(tail, " "); idx >= 0 {
		tail = tail[idx+1:]
	}
	return tail
}

// wordOverlap returns the trailing words of words whose combined rune
// length is closest to (without much exceeding) overlap.
func wordOverlap(words []string, overlap int) []string {
	if overlap <= 0 {
		return nil
	}
	total := 0
	start := len(words)
	for i := len(words) - 1; i >= 0; i-- {
		total += len([]rune(words[i])) + 1
		if total > overlap {
			break
		}
		start = i
	}
	return words[start:]
}
