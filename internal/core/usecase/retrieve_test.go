package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/mkarpov/plc-technical-assistant/internal/core/domain"
)

type embedderFake struct {
	err error
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i])), 0.5}
	}
	return vectors, nil
}

type mismatchedEmbedderFake struct{}

func (f *mismatchedEmbedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)+1), nil
}

// scopedStoreFake keys stored candidates by scope label, like the real index
// does with a payload filter. Searches run concurrently, so all state is
// mutex-protected.
type scopedStoreFake struct {
	mu        sync.Mutex
	byScope   map[string][]domain.RetrievedCandidate
	failScope map[string]error
	searches  []string
}

func (f *scopedStoreFake) Search(_ context.Context, _ []float32, scope domain.Scope, k int) ([]domain.RetrievedCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	label := scope.String()
	f.searches = append(f.searches, label)
	if err := f.failScope[label]; err != nil {
		return nil, err
	}
	hits := f.byScope[label]
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (f *scopedStoreFake) UpsertChunks(context.Context, []domain.Chunk) error { return nil }
func (f *scopedStoreFake) DeleteScope(context.Context, domain.Scope) error    { return nil }

func (f *scopedStoreFake) searchedScopes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.searches))
	copy(out, f.searches)
	return out
}

func TestRetrieverMergesBothScopes(t *testing.T) {
	store := &scopedStoreFake{
		byScope: map[string][]domain.RetrievedCandidate{
			"shared": {
				{ChunkID: "shared-1", Text: "manual page", SimilarityScore: 0.8},
			},
			"session:s1": {
				{ChunkID: "private-1", Text: "uploaded schematic", SimilarityScore: 0.9},
			},
		},
	}
	r := NewRetriever(&embedderFake{}, store, nil)

	result, err := r.Retrieve(context.Background(), []string{"query"}, "s1", 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if result.Degraded {
		t.Fatalf("unexpected degraded result")
	}
	if len(result.Candidates) != 2 {
		t.Fatalf("expected 2 merged candidates, got %v", result.Candidates)
	}
	if result.Candidates[0].ChunkID != "private-1" {
		t.Fatalf("expected highest-similarity candidate first, got %v", result.Candidates)
	}
}

func TestRetrieverSessionIsolation(t *testing.T) {
	// Two sessions with private chunks. Whatever is asked, a session must only
	// ever see shared chunks and its own.
	store := &scopedStoreFake{
		byScope: map[string][]domain.RetrievedCandidate{
			"shared": {
				{ChunkID: "shared-1", Text: "shared manual", SimilarityScore: 0.5},
			},
			"session:alpha": {
				{ChunkID: "alpha-private", Text: "alpha notes", SimilarityScore: 0.9},
			},
			"session:beta": {
				{ChunkID: "beta-private", Text: "beta notes", SimilarityScore: 0.95},
			},
		},
	}
	r := NewRetriever(&embedderFake{}, store, nil)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		session := "alpha"
		forbidden := "beta-private"
		if rng.Intn(2) == 1 {
			session = "beta"
			forbidden = "alpha-private"
		}
		query := fmt.Sprintf("random query %d %d", i, rng.Intn(1000))

		result, err := r.Retrieve(context.Background(), []string{query}, session, 5)
		if err != nil {
			t.Fatalf("Retrieve() error = %v", err)
		}
		for _, c := range result.Candidates {
			if c.ChunkID == forbidden {
				t.Fatalf("session %s retrieved foreign chunk %s", session, c.ChunkID)
			}
		}
	}

	for _, label := range store.searchedScopes() {
		if strings.HasPrefix(label, "session:") && label != "session:alpha" && label != "session:beta" {
			t.Fatalf("unexpected scope queried: %s", label)
		}
	}
}

// dedupeStoreFake returns the same chunk with a different similarity on every
// shared-scope search.
type dedupeStoreFake struct {
	mu     sync.Mutex
	scores []float64
	calls  int
}

func (f *dedupeStoreFake) Search(_ context.Context, _ []float32, scope domain.Scope, _ int) ([]domain.RetrievedCandidate, error) {
	if scope.Kind != domain.ScopeShared {
		return nil, nil
	}
	f.mu.Lock()
	score := f.scores[f.calls%len(f.scores)]
	f.calls++
	f.mu.Unlock()
	return []domain.RetrievedCandidate{
		{ChunkID: "dup", Text: "passage", SimilarityScore: score},
	}, nil
}

func (f *dedupeStoreFake) UpsertChunks(context.Context, []domain.Chunk) error { return nil }
func (f *dedupeStoreFake) DeleteScope(context.Context, domain.Scope) error    { return nil }

func TestRetrieverDedupeKeepsMaxSimilarity(t *testing.T) {
	store := &dedupeStoreFake{scores: []float64{0.4, 0.9}}
	r := NewRetriever(&embedderFake{}, store, nil)

	result, err := r.Retrieve(context.Background(), []string{"variant one", "a much longer variant two"}, "s1", 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected deduplicated single candidate, got %v", result.Candidates)
	}
	if result.Candidates[0].SimilarityScore != 0.9 {
		t.Fatalf("expected max similarity kept, got %v", result.Candidates[0].SimilarityScore)
	}
}

func TestRetrieverSingleScopeFailureDegrades(t *testing.T) {
	store := &scopedStoreFake{
		byScope: map[string][]domain.RetrievedCandidate{
			"shared": {
				{ChunkID: "shared-1", Text: "manual", SimilarityScore: 0.7},
			},
		},
		failScope: map[string]error{
			"session:s1": errors.New("collection unavailable"),
		},
	}
	r := NewRetriever(&embedderFake{}, store, nil)

	result, err := r.Retrieve(context.Background(), []string{"query"}, "s1", 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if !result.Degraded {
		t.Fatalf("expected degraded result")
	}
	if len(result.FailedScopes) != 1 || result.FailedScopes[0] != "session:s1" {
		t.Fatalf("expected session scope marked failed, got %v", result.FailedScopes)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected shared candidates to survive, got %v", result.Candidates)
	}
}

func TestRetrieverAllScopesFail(t *testing.T) {
	store := &scopedStoreFake{
		failScope: map[string]error{
			"shared":     errors.New("down"),
			"session:s1": errors.New("down"),
		},
	}
	r := NewRetriever(&embedderFake{}, store, nil)

	_, err := r.Retrieve(context.Background(), []string{"query"}, "s1", 5)
	if !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected ErrRetrievalUnavailable, got %v", err)
	}
}

func TestRetrieverEmbedFailure(t *testing.T) {
	r := NewRetriever(&embedderFake{err: errors.New("embedder offline")}, &scopedStoreFake{}, nil)
	_, err := r.Retrieve(context.Background(), []string{"query"}, "s1", 5)
	if !domain.IsKind(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestRetrieverEmbedCountMismatch(t *testing.T) {
	r := NewRetriever(&mismatchedEmbedderFake{}, &scopedStoreFake{}, nil)
	_, err := r.Retrieve(context.Background(), []string{"query"}, "s1", 5)
	if !domain.IsKind(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

// fanoutStoreFake returns k distinct chunks per search call so the merged set
// grows past the cap.
type fanoutStoreFake struct {
	mu    sync.Mutex
	calls int
}

func (f *fanoutStoreFake) Search(_ context.Context, _ []float32, _ domain.Scope, k int) ([]domain.RetrievedCandidate, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.mu.Unlock()

	hits := make([]domain.RetrievedCandidate, 0, k)
	for i := 0; i < k; i++ {
		hits = append(hits, domain.RetrievedCandidate{
			ChunkID:         fmt.Sprintf("chunk-%d-%d", call, i),
			Text:            "passage",
			SimilarityScore: 1 - float64(call*k+i)/100,
		})
	}
	return hits, nil
}

func (f *fanoutStoreFake) UpsertChunks(context.Context, []domain.Chunk) error { return nil }
func (f *fanoutStoreFake) DeleteScope(context.Context, domain.Scope) error    { return nil }

func TestRetrieverCapsMergedSet(t *testing.T) {
	r := NewRetriever(&embedderFake{}, &fanoutStoreFake{}, nil)

	result, err := r.Retrieve(context.Background(), []string{"one", "two", "three"}, "s1", 3)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(result.Candidates) != 6 {
		t.Fatalf("expected merged set capped at k*2=6, got %d", len(result.Candidates))
	}
}

func TestRetrieverNoVariants(t *testing.T) {
	r := NewRetriever(&embedderFake{}, &scopedStoreFake{}, nil)
	_, err := r.Retrieve(context.Background(), nil, "s1", 5)
	if !domain.IsKind(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}
