package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mkarpov/plc-technical-assistant/internal/core/domain"
	"github.com/mkarpov/plc-technical-assistant/internal/core/ports"
)

// Retriever embeds query variants and runs the dual-scope searches. The two
// scopes are queried with the filter inside the store call itself, so a
// session can never observe another session's chunks, not even by rank or
// timing.
type Retriever struct {
	embedder ports.Embedder
	store    ports.ChunkStore
	logger   *slog.Logger
}

func NewRetriever(embedder ports.Embedder, store ports.ChunkStore, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// RetrievalResult carries the merged candidates plus a degradation marker for
// observability; a degraded result is still a success.
type RetrievalResult struct {
	Candidates   []domain.RetrievedCandidate
	Degraded     bool
	FailedScopes []string
}

type scopedHit struct {
	scope      domain.Scope
	candidates []domain.RetrievedCandidate
	err        error
}

// Retrieve runs one search per (variant, scope) pair concurrently, merges the
// hits, deduplicates by chunk id keeping the best similarity seen, and caps
// the merged set at k*2 to leave the re-ranker room to discard weak matches.
func (r *Retriever) Retrieve(ctx context.Context, variants []string, sessionID string, k int) (*RetrievalResult, error) {
	if len(variants) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidQuery, "retrieve", errors.New("no query variants"))
	}
	if k <= 0 {
		k = 5
	}

	vectors, err := r.embedder.Embed(ctx, variants)
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "embed query variants", err)
	}
	if len(vectors) != len(variants) {
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "embed query variants",
			fmt.Errorf("vectors/variants mismatch: %d/%d", len(vectors), len(variants)))
	}

	scopes := []domain.Scope{domain.SharedScope(), domain.SessionScope(sessionID)}

	results := make([]scopedHit, 0, len(vectors)*len(scopes))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, vector := range vectors {
		for _, scope := range scopes {
			wg.Add(1)
			go func(vec []float32, sc domain.Scope) {
				defer wg.Done()
				hits, searchErr := r.store.Search(ctx, vec, sc, k)
				mu.Lock()
				results = append(results, scopedHit{scope: sc, candidates: hits, err: searchErr})
				mu.Unlock()
			}(vector, scope)
		}
	}
	wg.Wait()

	// A scope counts as failed only when every search against it errored.
	succeeded := make(map[string]bool, len(scopes))
	failed := make(map[string]error, len(scopes))
	merged := make(map[string]domain.RetrievedCandidate)
	order := make(map[string]int)
	next := 0
	for _, res := range results {
		label := res.scope.String()
		if res.err != nil {
			if _, ok := failed[label]; !ok {
				failed[label] = res.err
			}
			continue
		}
		succeeded[label] = true
		for _, c := range res.candidates {
			prev, seen := merged[c.ChunkID]
			if !seen {
				merged[c.ChunkID] = c
				order[c.ChunkID] = next
				next++
				continue
			}
			if c.SimilarityScore > prev.SimilarityScore {
				prev.SimilarityScore = c.SimilarityScore
				merged[c.ChunkID] = prev
			}
		}
	}

	result := &RetrievalResult{}
	for label, scopeErr := range failed {
		if succeeded[label] {
			continue
		}
		result.FailedScopes = append(result.FailedScopes, label)
		r.logger.Warn("scoped_retrieval_failed", "scope", label, "error", scopeErr)
	}
	sort.Strings(result.FailedScopes)

	if len(result.FailedScopes) == len(scopes) {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "retrieve",
			fmt.Errorf("all scopes failed: %v", result.FailedScopes))
	}
	result.Degraded = len(result.FailedScopes) > 0

	out := make([]domain.RetrievedCandidate, 0, len(merged))
	for _, c := range merged {
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SimilarityScore != out[j].SimilarityScore {
			return out[i].SimilarityScore > out[j].SimilarityScore
		}
		return order[out[i].ChunkID] < order[out[j].ChunkID]
	})

	if limit := k * 2; len(out) > limit {
		out = out[:limit]
	}
	result.Candidates = out
	return result, nil
}
