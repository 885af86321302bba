// Package ws is the socket edge: it upgrades HTTP requests, authenticates
// them, bridges broadcast topics onto connections, and feeds chat input to
// the agent.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"vidboost/internal/domain"
	"vidboost/internal/domain/ports/repository"
	"vidboost/internal/infra/auth"
	"vidboost/internal/infra/broadcast"
	"vidboost/internal/infra/metrics"
)

// CloseUnauthorized is sent when the token query parameter is missing,
// malformed, or expired, or when the resource behind the route does not
// belong to the token's subject. Clients treat it as "re-login", not "retry".
const CloseUnauthorized = 4001

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	maxInboundBytes = 16 << 10
	eventBuffer     = 64
)

// AgentRunner drives one chat turn. Replies are published on the session's
// chat topic, not returned, so every attached socket sees them.
type AgentRunner interface {
	HandleMessage(ctx context.Context, sessionID, userID, content string) error
}

// AnalysisSubmitter enqueues an analysis job for a stored video.
type AnalysisSubmitter interface {
	Submit(ctx context.Context, videoID string) (string, error)
}

type Gateway struct {
	hub      *broadcast.Hub
	verifier *auth.TokenVerifier
	sessions repository.ChatSessionRepository
	videos   repository.VideoRepository
	agent    AgentRunner
	analyses AnalysisSubmitter
	upgrader websocket.Upgrader
	log      *zerolog.Logger
}

func NewGateway(
	hub *broadcast.Hub,
	verifier *auth.TokenVerifier,
	sessions repository.ChatSessionRepository,
	videos repository.VideoRepository,
	agent AgentRunner,
	analyses AnalysisSubmitter,
	log *zerolog.Logger,
) *Gateway {
	return &Gateway{
		hub:      hub,
		verifier: verifier,
		sessions: sessions,
		videos:   videos,
		agent:    agent,
		analyses: analyses,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

func (g *Gateway) Register(r chi.Router) {
	r.Get("/ws/tasks/{jobID}", g.handleTask)
	r.Get("/ws/videos/{videoID}/analysis", g.handleAnalysis)
	r.Get("/ws/chat/{sessionID}", g.handleChat)
}

// socket serializes writes: the topic pump, the ping ticker, and inline
// error replies all share the connection.
type socket struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *socket) writeJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

func (s *socket) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

func (s *socket) closeWith(code int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = s.conn.Close()
}

// authenticate upgrades the request and verifies the token query parameter.
// On failure the connection is closed with CloseUnauthorized before any
// event is sent, and (nil, "", false) is returned.
func (g *Gateway) authenticate(w http.ResponseWriter, r *http.Request) (*socket, string, bool) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn().Err(err).Str("path", r.URL.Path).Msg("websocket upgrade failed")
		return nil, "", false
	}
	sock := &socket{conn: conn}
	userID, err := g.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		sock.closeWith(CloseUnauthorized, "authentication failed")
		return nil, "", false
	}
	return sock, userID, true
}

func (g *Gateway) handleTask(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	sock, _, ok := g.authenticate(w, r)
	if !ok {
		return
	}
	metrics.IncWSConnections("task")
	defer metrics.DecWSConnections("task")

	_ = sock.writeJSON(broadcast.Event{
		Type:    "connection",
		TaskID:  jobID,
		Message: "Connected to task updates",
		Status:  "connected",
	})
	g.attach(r.Context(), sock, broadcast.TaskTopic(jobID), nil)
}

func (g *Gateway) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	sock, userID, ok := g.authenticate(w, r)
	if !ok {
		return
	}
	metrics.IncWSConnections("analysis")
	defer metrics.DecWSConnections("analysis")

	video, err := g.videos.FindByID(r.Context(), nil, videoID)
	if err != nil || video.UserID != userID {
		sock.closeWith(CloseUnauthorized, "unknown video")
		return
	}

	jobID, err := g.analyses.Submit(r.Context(), videoID)
	if err != nil {
		_ = sock.writeJSON(broadcast.Event{Type: "error", Message: "Could not start analysis"})
		sock.closeWith(websocket.CloseTryAgainLater, "queue saturated")
		return
	}

	_ = sock.writeJSON(broadcast.Event{
		Type:    "connection",
		TaskID:  jobID,
		Message: "Analysis started",
		Status:  "connected",
	})
	g.attach(r.Context(), sock, broadcast.TaskTopic(jobID), nil)
}

// chatInbound is the only client-to-server payload the chat socket accepts.
type chatInbound struct {
	Message string `json:"message"`
}

func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	sock, userID, ok := g.authenticate(w, r)
	if !ok {
		return
	}
	metrics.IncWSConnections("chat")
	defer metrics.DecWSConnections("chat")

	session, err := g.sessions.FindByID(r.Context(), nil, sessionID)
	if err != nil || session.UserID != userID {
		sock.closeWith(CloseUnauthorized, "unknown session")
		return
	}

	_ = sock.writeJSON(broadcast.Event{
		Type:      "connection",
		SessionID: sessionID,
		Message:   "Connected to chat",
		Status:    "connected",
	})
	g.attach(r.Context(), sock, broadcast.ChatTopic(sessionID), func(raw []byte) {
		var in chatInbound
		if err := json.Unmarshal(raw, &in); err != nil || in.Message == "" {
			return
		}
		go func() {
			if err := g.agent.HandleMessage(context.Background(), sessionID, userID, in.Message); err != nil {
				if errors.Is(err, domain.ErrSessionBusy) {
					_ = sock.writeJSON(broadcast.Event{
						Type:    "error",
						Message: "A reply is already being generated for this session",
					})
					return
				}
				g.log.Error().Err(err).Str("session_id", sessionID).Msg("chat turn failed")
			}
		}()
	})
}

// attach bridges a topic onto the socket until the client goes away. The
// subscription is released on every exit path. onMessage, when set, sees
// each inbound text frame; everything else inbound is discarded.
func (g *Gateway) attach(ctx context.Context, sock *socket, topic string, onMessage func([]byte)) {
	sub := g.hub.Subscribe(topic, eventBuffer)
	defer g.hub.Unsubscribe(topic, sub)

	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case ev, open := <-sub.Events():
				if !open {
					sock.closeWith(websocket.CloseGoingAway, "shutting down")
					return
				}
				if err := sock.writeJSON(ev); err != nil {
					return
				}
			case <-ticker.C:
				if err := sock.ping(); err != nil {
					return
				}
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	sock.conn.SetReadLimit(maxInboundBytes)
	_ = sock.conn.SetReadDeadline(time.Now().Add(pongWait))
	sock.conn.SetPongHandler(func(string) error {
		return sock.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, raw, err := sock.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				g.log.Debug().Err(err).Str("topic", topic).Msg("websocket read ended")
			}
			break
		}
		if kind == websocket.TextMessage && onMessage != nil {
			onMessage(raw)
		}
	}

	close(done)
	_ = sock.conn.Close()
}
