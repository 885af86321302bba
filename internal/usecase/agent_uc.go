package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vidboost/internal/domain"
	"vidboost/internal/domain/model"
	"vidboost/internal/domain/ports/adapter"
	"vidboost/internal/domain/ports/repository"
	"vidboost/internal/infra/broadcast"
	"vidboost/internal/infra/metrics"
)

const (
	// maxAgentIterations bounds the think/act loop; the model gets this
	// many cycles to answer before the turn is forced to stop.
	maxAgentIterations = 5

	agentTurnTimeout = 120 * time.Second

	forcedStopReply = "I couldn't finish working through that within my step limit. " +
		"Try a more specific question, or ask again."
)

// Compile-time check
var _ AgentUseCase = (*agentUC)(nil)

// AgentUseCase drives one chat turn: persist the user message, loop the
// model over the tools, stream the reply onto the session's chat topic,
// and persist the assistant message.
type AgentUseCase interface {
	HandleMessage(ctx context.Context, sessionID, userID, content string) error
}

type agentUC struct {
	sessions repository.ChatSessionRepository
	videos   repository.VideoRepository
	ai       adapter.AIServiceAdapter
	tools    *ToolRegistry
	hub      *broadcast.Hub
	model    string
	active   sync.Map // sessionID -> struct{}; one running turn per session
	log      *zerolog.Logger
}

func NewAgentUseCase(
	sessions repository.ChatSessionRepository,
	videos repository.VideoRepository,
	ai adapter.AIServiceAdapter,
	tools *ToolRegistry,
	hub *broadcast.Hub,
	modelName string,
	log *zerolog.Logger,
) *agentUC {
	return &agentUC{
		sessions: sessions,
		videos:   videos,
		ai:       ai,
		tools:    tools,
		hub:      hub,
		model:    modelName,
		log:      log,
	}
}

func (a *agentUC) HandleMessage(ctx context.Context, sessionID, userID, content string) error {
	if content == "" {
		return domain.ErrInvalidArgument
	}
	if _, running := a.active.LoadOrStore(sessionID, struct{}{}); running {
		metrics.IncAgentTurn("rejected")
		return domain.ErrSessionBusy
	}
	defer a.active.Delete(sessionID)

	ctx, cancel := context.WithTimeout(ctx, agentTurnTimeout)
	defer cancel()

	session, err := a.sessions.FindByID(ctx, nil, sessionID)
	if err != nil {
		return err
	}
	if session.UserID != userID {
		return domain.ErrUnauthorized
	}
	video, err := a.videos.FindByID(ctx, nil, session.VideoID)
	if err != nil {
		return fmt.Errorf("session video: %w", err)
	}

	// The user message is durable before the model is consulted; a model
	// failure must not lose what the user said.
	userMsg := model.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      "user",
		Content:   content,
		Timestamp: time.Now(),
	}
	if err := a.sessions.SaveMessage(ctx, nil, &userMsg); err != nil {
		return fmt.Errorf("persist user message: %w", err)
	}

	topic := broadcast.ChatTopic(sessionID)
	reply, toolCalls, err := a.runLoop(ctx, video, sessionID, topic)
	if err != nil {
		metrics.IncAgentTurn("error")
		a.hub.Publish(topic, broadcast.Event{
			Type:    "error",
			Message: "Something went wrong while generating a reply. Please try again.",
		})
		return err
	}

	assistantMsg := model.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      "assistant",
		Content:   reply,
		ToolCalls: toolCalls,
		Timestamp: time.Now(),
	}
	if err := a.sessions.SaveMessage(ctx, nil, &assistantMsg); err != nil {
		metrics.IncAgentTurn("error")
		return fmt.Errorf("persist assistant message: %w", err)
	}

	a.hub.Publish(topic, broadcast.Event{
		Type:    "message_complete",
		Message: reply,
		Data:    assistantMsg.ToolCalls,
	})
	metrics.IncAgentTurn("completed")
	return nil
}

// runLoop feeds the full session history plus the growing scratchpad of
// tool calls back to the model, at most maxAgentIterations cycles. Text
// fragments go out as message_chunk events while they arrive.
func (a *agentUC) runLoop(ctx context.Context, video *model.Video, sessionID, topic string) (string, []model.ToolCall, error) {
	history, err := a.sessions.FindMessages(ctx, nil, sessionID)
	if err != nil {
		return "", nil, fmt.Errorf("load history: %w", err)
	}
	msgs := make([]adapter.Message, 0, len(history)+2*maxAgentIterations)
	for _, m := range history {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		msgs = append(msgs, adapter.Message{Role: m.Role, Content: m.Content})
	}

	system := a.systemPrompt(ctx, video)
	onChunk := func(fragment string) error {
		a.hub.Publish(topic, broadcast.Event{Type: "message_chunk", Content: fragment})
		return nil
	}

	var toolCalls []model.ToolCall
	var lastText string
	for i := 0; i < maxAgentIterations; i++ {
		start := time.Now()
		result, err := a.ai.StreamGenerate(ctx, adapter.GenerateRequest{
			Model:    a.model,
			System:   system,
			Messages: msgs,
			Tools:    a.tools.Decls(),
		}, onChunk)
		metrics.ObserveAICall(a.model, time.Since(start).Milliseconds(), err == nil)
		if err != nil {
			return "", nil, fmt.Errorf("model cycle %d: %w", i+1, err)
		}
		lastText = result.Text

		if len(result.ToolCalls) == 0 {
			if result.Text == "" {
				break
			}
			return result.Text, toolCalls, nil
		}

		for _, call := range result.ToolCalls {
			observation := a.tools.Dispatch(ctx, video, call)
			toolCalls = append(toolCalls, model.ToolCall{
				Tool:   call.Name,
				Input:  call.Args,
				Output: observation,
			})
			msgs = append(msgs,
				adapter.Message{Role: "assistant", Content: result.Text, ToolCall: &call},
				adapter.Message{Role: "tool", ToolName: call.Name, Content: observation},
			)
		}
	}

	// Forced stop: the model never produced a standalone answer. Fall back
	// to its last text, or a canned reply, so the client always gets one.
	reply := lastText
	if reply == "" {
		reply = forcedStopReply
		a.hub.Publish(topic, broadcast.Event{Type: "message_chunk", Content: reply})
	}
	a.log.Warn().
		Str("session_id", sessionID).
		Int("tool_calls", len(toolCalls)).
		Msg("agent turn hit iteration limit")
	return reply, toolCalls, nil
}

// systemPrompt is rebuilt every turn so metadata drift (title edits, count
// changes) reaches the model without a session restart.
func (a *agentUC) systemPrompt(ctx context.Context, video *model.Video) string {
	title := video.ProviderVideoID
	if info, err := a.tools.provider.FetchVideoInfo(ctx, video.ProviderVideoID); err == nil && info.Title != "" {
		title = info.Title
	}
	return fmt.Sprintf(
		"You are a YouTube content assistant working on the video %q (id %s). "+
			"Use the available tools to look up the video's metadata and transcript "+
			"before answering questions about its content, and to generate titles "+
			"or thumbnail images when asked. Answer concisely in the user's language.",
		title, video.ProviderVideoID,
	)
}
