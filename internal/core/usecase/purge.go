package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkarpov/plc-technical-assistant/internal/core/domain"
	"github.com/mkarpov/plc-technical-assistant/internal/core/ports"
)

// PurgeUseCase deletes everything a session left in the vector index. Driven
// by session-ended lifecycle events.
type PurgeUseCase struct {
	store  ports.ChunkStore
	logger *slog.Logger
}

func NewPurgeUseCase(store ports.ChunkStore, logger *slog.Logger) *PurgeUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &PurgeUseCase{store: store, logger: logger}
}

func (uc *PurgeUseCase) PurgeSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return domain.WrapError(domain.ErrSessionNotFound, "purge session", errors.New("session id is required"))
	}
	if err := uc.store.DeleteScope(ctx, domain.SessionScope(sessionID)); err != nil {
		return fmt.Errorf("delete session scope: %w", err)
	}
	uc.logger.Info("session_chunks_purged", "session_id", sessionID)
	return nil
}
