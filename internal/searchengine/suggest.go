package searchengine

import (
	"context"
	"sort"
	"strings"

	"github.com/arborsearch/arbor/internal/fuzzy"
	"github.com/arborsearch/arbor/internal/storage"
)

// Suggest returns ranked prefix/fuzzy completions for term drawn from the
// index's term vocabulary, scoring exact prefix matches highest and
// falling back to the configured fuzzy algorithm otherwise.
func (e *Engine) Suggest(ctx context.Context, term string, limit int) ([]Suggestion, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	vocab, err := e.vocabulary(ctx)
	if err != nil {
		return nil, err
	}

	scored := make([]Suggestion, 0, len(vocab))
	for _, v := range vocab {
		if v.Term == term {
			continue
		}
		score, ok := suggestScore(term, v, e.matcher)
		if !ok {
			continue
		}
		scored = append(scored, Suggestion{Text: v.Term, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func suggestScore(term string, v fuzzy.VocabularyTerm, matcher fuzzy.Matcher) (float64, bool) {
	if strings.HasPrefix(v.Term, term) {
		return 1.0, true
	}
	variants := matcher.Expand(term, []fuzzy.VocabularyTerm{v}, fuzzy.DefaultOptions())
	if len(variants) == 0 {
		return 0, false
	}
	return variants[0].Similarity, true
}

// suggestCorrection proposes a single "did you mean" correction when a
// query returns zero results, by fuzzy-matching the query's last token
// against the index vocabulary.
func (e *Engine) suggestCorrection(ctx context.Context, processed processedQuery, req storage.SearchRequest) string {
	if len(processed.tokens) == 0 {
		return ""
	}
	vocab, err := e.vocabulary(ctx)
	if err != nil || len(vocab) == 0 {
		return ""
	}

	last := processed.tokens[len(processed.tokens)-1]
	variants := e.matcher.Expand(last, vocab, fuzzy.DefaultOptions())
	if len(variants) == 0 {
		return ""
	}

	corrected := append([]string(nil), processed.tokens[:len(processed.tokens)-1]...)
	corrected = append(corrected, variants[0].Term)
	return strings.Join(corrected, " ")
}

func (e *Engine) vocabulary(ctx context.Context) ([]fuzzy.VocabularyTerm, error) {
	if e.fcache != nil {
		if v := e.fcache.Vocabulary(); len(v) > 0 {
			return v, nil
		}
	}
	terms, err := e.store.Vocabulary(ctx, 0)
	if err != nil {
		return nil, err
	}
	out := make([]fuzzy.VocabularyTerm, len(terms))
	for i, t := range terms {
		out[i] = fuzzy.VocabularyTerm{Term: t.Term, Frequency: t.Frequency}
	}
	return out, nil
}
