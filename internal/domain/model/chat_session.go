package model

import "time"

// ToolCall records one tool invocation made while producing an assistant
// message. Immutable once persisted.
type ToolCall struct {
	Tool   string         `json:"tool"`
	Input  map[string]any `json:"input"`
	Output string         `json:"output"`
}

// ChatMessage is one turn within a session. Insertion order is the only
// authoritative order; Timestamp is informational.
type ChatMessage struct {
	ID        string
	SessionID string
	Role      string // "user" | "assistant" | "system"
	Content   string
	ToolCalls []ToolCall
	Timestamp time.Time
}

// ChatSession binds a user to a video conversation. (user_id, video_id)
// is unique at the store. Messages are append-only.
type ChatSession struct {
	ID        string
	UserID    string
	VideoID   string
	Messages  []ChatMessage
	CreatedAt time.Time
}

func NewChatSession(id, userID, videoID string) *ChatSession {
	return &ChatSession{
		ID:        id,
		UserID:    userID,
		VideoID:   videoID,
		Messages:  make([]ChatMessage, 0, 8),
		CreatedAt: time.Now(),
	}
}

func (s *ChatSession) AddMessage(id, role, content string, toolCalls []ToolCall) *ChatMessage {
	s.Messages = append(s.Messages, ChatMessage{
		ID:        id,
		SessionID: s.ID,
		Role:      role,
		Content:   content,
		ToolCalls: toolCalls,
		Timestamp: time.Now(),
	})
	return &s.Messages[len(s.Messages)-1]
}
