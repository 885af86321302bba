package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vidboost/internal/domain"
	"vidboost/internal/domain/model"
	"vidboost/internal/domain/ports/repository"
)

var _ repository.ChatSessionRepository = (*ChatSessionRepo)(nil)

// ChatSessionRepo persists sessions and their append-only message log.
// Message order is insertion order (seq column), not timestamps.
type ChatSessionRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresChatSessionRepo(pool *pgxpool.Pool) *ChatSessionRepo {
	return &ChatSessionRepo{pool: pool}
}

func (r *ChatSessionRepo) Save(ctx context.Context, qx any, session *model.ChatSession) error {
	const q = `
INSERT INTO chat_sessions (id, user_id, video_id, created_at)
VALUES ($1,$2,$3,COALESCE($4,NOW()));`
	_, err := execOn(ctx, r.pool, qx, q, session.ID, session.UserID, session.VideoID, session.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *ChatSessionRepo) SaveMessage(ctx context.Context, qx any, m *model.ChatMessage) error {
	toolCalls, err := json.Marshal(m.ToolCalls)
	if err != nil {
		return fmt.Errorf("marshal tool calls: %w", err)
	}
	const q = `
INSERT INTO chat_messages (id, session_id, role, content, tool_calls, created_at)
VALUES ($1,$2,$3,$4,$5,COALESCE($6,NOW()));`
	if _, err := execOn(ctx, r.pool, qx, q, m.ID, m.SessionID, m.Role, m.Content, toolCalls, m.Timestamp); err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

func (r *ChatSessionRepo) FindByID(ctx context.Context, qx any, id string) (*model.ChatSession, error) {
	const q = `SELECT id, user_id, video_id, created_at FROM chat_sessions WHERE id=$1;`
	row := pickRow(ctx, r.pool, qx, q, id)
	var s model.ChatSession
	if err := row.Scan(&s.ID, &s.UserID, &s.VideoID, &s.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *ChatSessionRepo) FindByUserAndVideo(ctx context.Context, qx any, userID, videoID string) (*model.ChatSession, error) {
	const q = `SELECT id, user_id, video_id, created_at FROM chat_sessions WHERE user_id=$1 AND video_id=$2;`
	row := pickRow(ctx, r.pool, qx, q, userID, videoID)
	var s model.ChatSession
	if err := row.Scan(&s.ID, &s.UserID, &s.VideoID, &s.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *ChatSessionRepo) FindMessages(ctx context.Context, qx any, sessionID string) ([]model.ChatMessage, error) {
	const q = `
SELECT id, session_id, role, content, tool_calls, created_at
  FROM chat_messages WHERE session_id=$1 ORDER BY seq;`
	rows, err := queryRows(ctx, r.pool, qx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ChatMessage
	for rows.Next() {
		var (
			m   model.ChatMessage
			raw []byte
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &raw, &m.Timestamp); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("unmarshal tool calls: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
