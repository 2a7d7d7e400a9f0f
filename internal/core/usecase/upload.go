package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkarpov/plc-technical-assistant/internal/core/domain"
	"github.com/mkarpov/plc-technical-assistant/internal/core/ports"
)

// UploadUseCase indexes a private document into a session's scope: extract,
// chunk, embed, upsert. Upload and query are serialized per session by the
// external session manager, so no locking happens here.
type UploadUseCase struct {
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	store     ports.ChunkStore
}

func NewUploadUseCase(
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	store ports.ChunkStore,
) *UploadUseCase {
	return &UploadUseCase{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
	}
}

// Upload returns the number of chunks indexed for the session.
func (uc *UploadUseCase) Upload(ctx context.Context, sessionID, filename, mimeType string, body io.Reader) (int, error) {
	if strings.TrimSpace(sessionID) == "" {
		return 0, domain.WrapError(domain.ErrInvalidQuery, "upload", errors.New("session id is required"))
	}

	text, err := uc.extractor.Extract(ctx, filename, mimeType, body)
	if err != nil {
		return 0, fmt.Errorf("extract text: %w", err)
	}

	pieces := uc.chunker.Split(text)
	if len(pieces) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidQuery, "upload", errors.New("document produced zero chunks"))
	}

	vectors, err := uc.embedder.Embed(ctx, pieces)
	if err != nil {
		return 0, domain.WrapError(domain.ErrEmbeddingUnavailable, "embed document chunks", err)
	}
	if len(vectors) != len(pieces) {
		return 0, domain.WrapError(domain.ErrEmbeddingUnavailable, "embed document chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(pieces)))
	}

	scope := domain.SessionScope(sessionID)
	now := time.Now().UTC()
	chunks := make([]domain.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, domain.Chunk{
			ID:        uuid.NewString(),
			Text:      piece,
			Embedding: vectors[i],
			SourceRef: fmt.Sprintf("%s#%d", filename, i),
			Scope:     scope,
			CreatedAt: now,
		})
	}

	if err := uc.store.UpsertChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("index session chunks: %w", err)
	}
	return len(chunks), nil
}
