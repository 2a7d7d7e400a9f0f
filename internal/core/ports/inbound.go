package ports

import (
	"context"
	"io"

	"github.com/mkarpov/plc-technical-assistant/internal/core/domain"
)

// QueryService is the inbound contract for the query-to-answer pipeline.
type QueryService interface {
	Ask(ctx context.Context, sessionID, rawQuery string) (*domain.Answer, error)
}

// SessionDocumentIngestor indexes a private document into a session's scope.
type SessionDocumentIngestor interface {
	Upload(ctx context.Context, sessionID, filename, mimeType string, body io.Reader) (int, error)
}

// SessionJanitor removes everything a session left in the vector index.
type SessionJanitor interface {
	PurgeSession(ctx context.Context, sessionID string) error
}
