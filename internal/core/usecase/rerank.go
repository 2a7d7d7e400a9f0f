package usecase

import (
	"sort"
	"strings"
	"unicode"

	"github.com/mkarpov/plc-technical-assistant/internal/core/domain"
)

// Reranker reorders retrieval candidates by a blend of the stored similarity
// score and a lexical overlap signal. Deterministic for identical inputs.
type Reranker struct {
	blendWeight float64
}

// NewReranker builds a reranker; blendWeight is the share of the combined
// score taken from the normalized similarity, the remainder from lexical
// overlap with the query.
func NewReranker(blendWeight float64) *Reranker {
	if blendWeight <= 0 || blendWeight > 1 {
		blendWeight = 0.7
	}
	return &Reranker{blendWeight: blendWeight}
}

// Rerank returns the top k candidates by descending combined score. Ties are
// broken by preferring shorter source spans, then by original retrieval order
// (the sort is stable).
func (rr *Reranker) Rerank(query string, candidates []domain.RetrievedCandidate, k int) []domain.RetrievedCandidate {
	if len(candidates) == 0 {
		return nil
	}

	out := make([]domain.RetrievedCandidate, len(candidates))
	copy(out, candidates)

	minScore, maxScore := out[0].SimilarityScore, out[0].SimilarityScore
	for _, c := range out[1:] {
		if c.SimilarityScore < minScore {
			minScore = c.SimilarityScore
		}
		if c.SimilarityScore > maxScore {
			maxScore = c.SimilarityScore
		}
	}
	scoreRange := maxScore - minScore
	normalize := func(v float64) float64 {
		if scoreRange <= 0 {
			if v > 0 {
				return 1
			}
			return 0
		}
		return (v - minScore) / scoreRange
	}

	queryTokens := toTokenSet(query)
	for i := range out {
		overlap := tokenOverlap(queryTokens, toTokenSet(out[i].Text))
		out[i].RerankScore = rr.blendWeight*normalize(out[i].SimilarityScore) + (1-rr.blendWeight)*overlap
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RerankScore != out[j].RerankScore {
			return out[i].RerankScore > out[j].RerankScore
		}
		return len(out[i].Text) < len(out[j].Text)
	})

	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

func tokenOverlap(query, chunk map[string]struct{}) float64 {
	if len(query) == 0 || len(chunk) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := chunk[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
