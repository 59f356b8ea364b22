package searchengine

import (
	"context"
	"sort"
	"strings"

	"github.com/arborsearch/arbor/internal/fuzzy"
)

// processedQuery holds every artifact the rest of the pipeline needs from
// query analysis: the FTS5 MATCH string, the raw tokens for highlighting,
// and the original query text.
type processedQuery struct {
	original   string
	tokens     []string
	matchQuery string
}

// processQuery tokenizes and stems queryText, optionally expands each
// token with fuzzy variants and configured synonyms, and assembles the
// FTS5 MATCH string.
func (e *Engine) processQuery(ctx context.Context, queryText string, opts Options) processedQuery {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return processedQuery{original: queryText}
	}

	language := opts.Language
	analyzed := e.analyzer.Analyze(queryText, language)
	tokens := dedupeStrings(analyzed.Tokens)
	if len(tokens) == 0 {
		return processedQuery{original: queryText}
	}

	type candidate struct {
		tokenIndex int
		term       string
		score      float64
	}

	clauses := make([]string, len(tokens))
	var fuzzyCandidates []candidate

	fuzzyEnabled := opts.Fuzzy && e.cfg.EnableFuzzy
	lastIdx := len(tokens) - 1

	for i, tok := range tokens {
		alternatives := map[string]struct{}{tok: {}}

		applyFuzzy := fuzzyEnabled && (!e.cfg.FuzzyLastTokenOnly || i == lastIdx)
		if applyFuzzy {
			variants := e.expand(ctx, tok)
			for _, v := range variants {
				if _, seen := alternatives[v.Term]; seen {
					continue
				}
				alternatives[v.Term] = struct{}{}
				fuzzyCandidates = append(fuzzyCandidates, candidate{tokenIndex: i, term: v.Term, score: v.Similarity})
			}
		}

		if opts.Synonyms && e.cfg.EnableSynonyms {
			for _, syn := range e.synonymsFor(tok) {
				if _, seen := alternatives[syn]; seen {
					continue
				}
				alternatives[syn] = struct{}{}
			}
		}

		if i == lastIdx && e.cfg.PrefixLastToken {
			alternatives[tok+"*"] = struct{}{}
		}

		clauses[i] = orClause(alternatives)
	}

	// Global cap on fuzzy-only variants across every token. Original tokens and
	// synonyms are never discarded by this cap.
	if cap := e.cfg.FuzzyTotalMaxVariations; cap > 0 && len(fuzzyCandidates) > cap {
		sort.SliceStable(fuzzyCandidates, func(i, j int) bool { return fuzzyCandidates[i].score > fuzzyCandidates[j].score })
		dropped := fuzzyCandidates[cap:]
		fuzzyCandidates = fuzzyCandidates[:cap]
		for _, d := range dropped {
			clauses[d.tokenIndex] = removeAlternative(clauses[d.tokenIndex], d.term)
		}
	}

	matchQuery := strings.Join(clauses, " OR ")

	return processedQuery{original: queryText, tokens: tokens, matchQuery: matchQuery}
}

// expand returns fuzzy variants for term against the index's term
// vocabulary. It prefers the fuzzy cache's snapshot, the same one Suggest
// uses, and falls back to a live read of the storage vocabulary table when
// the cache is absent or not yet populated (e.g. before the first write
// refreshes it) so Basic is never the only algorithm that can ever expand
// a typo.
func (e *Engine) expand(ctx context.Context, term string) []fuzzy.Variant {
	opts := fuzzy.Options{
		Algorithm:              fuzzy.Algorithm(e.cfg.FuzzyAlgorithm),
		MaxVariations:          e.cfg.MaxFuzzyVariations,
		JaroWinklerThreshold:   e.cfg.JaroWinklerThreshold,
		JaroWinklerPrefixScale: e.cfg.JaroWinklerPrefixScale,
		TrigramThreshold:       e.cfg.TrigramThreshold,
		TrigramSize:            e.cfg.TrigramSize,
		LevenshteinThreshold:   e.cfg.LevenshteinThreshold,
		MinTermFrequency:       e.cfg.MinTermFrequency,
	}

	vocab, err := e.vocabulary(ctx)
	if err != nil || len(vocab) == 0 {
		return e.matcher.Expand(term, nil, opts)
	}
	if e.fcache != nil {
		return e.fcache.Expand(e.matcher, term, vocab, opts)
	}
	return e.matcher.Expand(term, vocab, opts)
}

func (e *Engine) synonymsFor(token string) []string {
	syns := e.cfg.Synonyms[token]
	max := e.cfg.SynonymsMaxExpansions
	if max > 0 && len(syns) > max {
		syns = syns[:max]
	}
	out := make([]string, len(syns))
	for i, s := range syns {
		if strings.Contains(s, " ") {
			out[i] = `"` + s + `"`
		} else {
			out[i] = s
		}
	}
	return out
}

func orClause(alternatives map[string]struct{}) string {
	terms := make([]string, 0, len(alternatives))
	for t := range alternatives {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	if len(terms) == 1 {
		return terms[0]
	}
	return "(" + strings.Join(terms, " OR ") + ")"
}

func removeAlternative(clause, term string) string {
	clause = strings.TrimPrefix(clause, "(")
	clause = strings.TrimSuffix(clause, ")")
	parts := strings.Split(clause, " OR ")
	out := parts[:0]
	for _, p := range parts {
		if p != term {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return term // never drop the original token entirely
	}
	return orClause(toSet(out))
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, i := range items {
		set[i] = struct{}{}
	}
	return set
}

func dedupeStrings(items []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(items))
	for _, i := range items {
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	return out
}
