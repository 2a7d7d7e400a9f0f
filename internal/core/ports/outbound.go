package ports

import (
	"context"
	"io"

	"github.com/mkarpov/plc-technical-assistant/internal/core/domain"
)

// Embedder turns texts into fixed-length vectors, preserving input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore is the vector index. The scope filter is mandatory on every search:
// isolation is enforced inside the store query, never as a post-filter.
type ChunkStore interface {
	Search(ctx context.Context, queryVector []float32, scope domain.Scope, k int) ([]domain.RetrievedCandidate, error)
	UpsertChunks(ctx context.Context, chunks []domain.Chunk) error
	DeleteScope(ctx context.Context, scope domain.Scope) error
}

// ChatHistoryStore is the per-session message log. Recent returns turns in
// chronological order.
type ChatHistoryStore interface {
	Append(ctx context.Context, turn domain.ChatTurn) error
	Recent(ctx context.Context, sessionID string, n int) ([]domain.ChatTurn, error)
}

// LanguageModel generates text from an ordered message list.
type LanguageModel interface {
	Generate(ctx context.Context, messages []domain.Message) (string, error)
}

// SessionEventQueue delivers session lifecycle notifications.
type SessionEventQueue interface {
	PublishSessionEnded(ctx context.Context, sessionID string) error
	SubscribeSessionEnded(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor pulls plain text out of an uploaded document body.
type TextExtractor interface {
	Extract(ctx context.Context, filename, mimeType string, body io.Reader) (string, error)
}

// Chunker splits extracted text into indexable passages.
type Chunker interface {
	Split(text string) []string
}
