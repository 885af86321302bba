package repository

import (
	"context"

	"vidboost/internal/domain/model"
)

// -----------------------------
// Chat Sessions
// -----------------------------

type ChatSessionRepository interface {
	Save(ctx context.Context, qx any, session *model.ChatSession) error
	SaveMessage(ctx context.Context, qx any, message *model.ChatMessage) error
	FindByID(ctx context.Context, qx any, id string) (*model.ChatSession, error)
	FindByUserAndVideo(ctx context.Context, qx any, userID, videoID string) (*model.ChatSession, error)
	// FindMessages returns the session's messages in insertion order.
	FindMessages(ctx context.Context, qx any, sessionID string) ([]model.ChatMessage, error)
}
