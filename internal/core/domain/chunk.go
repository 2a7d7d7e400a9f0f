package domain

import (
	"fmt"
	"strings"
	"time"
)

// Scope tags a chunk as belonging to the shared corpus or to exactly one session.
type Scope struct {
	Kind      ScopeKind `json:"kind"`
	SessionID string    `json:"session_id,omitempty"`
}

type ScopeKind string

const (
	ScopeShared  ScopeKind = "shared"
	ScopeSession ScopeKind = "session"
)

func SharedScope() Scope {
	return Scope{Kind: ScopeShared}
}

func SessionScope(sessionID string) Scope {
	return Scope{Kind: ScopeSession, SessionID: sessionID}
}

func (s Scope) Validate() error {
	switch s.Kind {
	case ScopeShared:
		if s.SessionID != "" {
			return fmt.Errorf("shared scope must not carry a session id")
		}
		return nil
	case ScopeSession:
		if strings.TrimSpace(s.SessionID) == "" {
			return fmt.Errorf("session scope requires a session id")
		}
		return nil
	default:
		return fmt.Errorf("unknown scope kind: %q", s.Kind)
	}
}

func (s Scope) String() string {
	if s.Kind == ScopeSession {
		return "session:" + s.SessionID
	}
	return string(ScopeShared)
}

// Chunk is an embedded passage as stored in the vector index. Immutable once stored.
type Chunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
	SourceRef string    `json:"source_ref"`
	Scope     Scope     `json:"scope"`
	CreatedAt time.Time `json:"created_at"`
}

// RetrievedCandidate is one retrieval hit. Produced per pass, never persisted.
type RetrievedCandidate struct {
	ChunkID         string  `json:"chunk_id"`
	Text            string  `json:"text"`
	SourceRef       string  `json:"source_ref"`
	SimilarityScore float64 `json:"similarity_score"`
	RerankScore     float64 `json:"rerank_score"`
}

// Answer is the final pipeline output returned to the caller.
type Answer struct {
	Text       string               `json:"text"`
	Sources    []RetrievedCandidate `json:"sources"`
	Iterations int                  `json:"iterations"`
	Degraded   bool                 `json:"degraded,omitempty"`
}
