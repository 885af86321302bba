package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"vidboost/internal/domain"
	"vidboost/internal/domain/model"
	"vidboost/internal/infra/auth"
	"vidboost/internal/infra/broadcast"
)

// ---- Fakes ----

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.ChatSession
}

func (f *fakeSessionRepo) Save(ctx context.Context, qx any, s *model.ChatSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeSessionRepo) SaveMessage(ctx context.Context, qx any, m *model.ChatMessage) error {
	return nil
}

func (f *fakeSessionRepo) FindByID(ctx context.Context, qx any, id string) (*model.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeSessionRepo) FindByUserAndVideo(ctx context.Context, qx any, userID, videoID string) (*model.ChatSession, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeSessionRepo) FindMessages(ctx context.Context, qx any, sessionID string) ([]model.ChatMessage, error) {
	return nil, nil
}

type fakeVideoRepo struct {
	videos map[string]*model.Video
}

func (f *fakeVideoRepo) Save(ctx context.Context, qx any, v *model.Video) error { return nil }

func (f *fakeVideoRepo) FindByID(ctx context.Context, qx any, id string) (*model.Video, error) {
	v, ok := f.videos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (f *fakeVideoRepo) FindByProviderID(ctx context.Context, qx any, userID, pid string) (*model.Video, error) {
	return nil, domain.ErrNotFound
}

type fakeAgent struct {
	mu    sync.Mutex
	calls []string
	err   error
	hub   *broadcast.Hub
	reply string
}

func (f *fakeAgent) HandleMessage(ctx context.Context, sessionID, userID, content string) error {
	f.mu.Lock()
	f.calls = append(f.calls, content)
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if f.hub != nil && f.reply != "" {
		topic := broadcast.ChatTopic(sessionID)
		f.hub.Publish(topic, broadcast.Event{Type: "message_chunk", Content: f.reply})
		f.hub.Publish(topic, broadcast.Event{Type: "message_complete", Message: f.reply})
	}
	return nil
}

func (f *fakeAgent) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSubmitter struct {
	jobID string
	err   error
}

func (f *fakeSubmitter) Submit(ctx context.Context, videoID string) (string, error) {
	return f.jobID, f.err
}

// ---- Harness ----

type harness struct {
	server   *httptest.Server
	hub      *broadcast.Hub
	verifier *auth.TokenVerifier
	agent    *fakeAgent
}

func newHarness(t *testing.T, sessions *fakeSessionRepo, videos *fakeVideoRepo, submitter *fakeSubmitter) *harness {
	t.Helper()
	log := zerolog.Nop()
	hub := broadcast.NewHub(&log)
	verifier := auth.NewTokenVerifier("test-secret")
	agent := &fakeAgent{hub: hub, reply: "streamed reply"}

	if sessions == nil {
		sessions = &fakeSessionRepo{sessions: map[string]*model.ChatSession{}}
	}
	if videos == nil {
		videos = &fakeVideoRepo{videos: map[string]*model.Video{}}
	}
	if submitter == nil {
		submitter = &fakeSubmitter{jobID: "job-1"}
	}

	gw := NewGateway(hub, verifier, sessions, videos, agent, submitter, &log)
	r := chi.NewRouter()
	gw.Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)
	return &harness{server: srv, hub: hub, verifier: verifier, agent: agent}
}

func (h *harness) dial(t *testing.T, path, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + path
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (h *harness) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := h.verifier.Mint(userID, nil)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return tok
}

func readEvent(t *testing.T, conn *websocket.Conn) broadcast.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev broadcast.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func expectClose(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		t.Fatalf("expected close error, got %v", err)
	}
	if ce.Code != code {
		t.Fatalf("close code = %d, want %d", ce.Code, code)
	}
}

// ---- Tests ----

func TestRejectsBadTokenWithoutEvents(t *testing.T) {
	h := newHarness(t, nil, nil, nil)

	for _, token := range []string{"", "not-a-jwt"} {
		conn := h.dial(t, "/ws/tasks/job-1", token)
		expectClose(t, conn, CloseUnauthorized)
	}
}

func TestRejectsTokenSignedWithWrongSecret(t *testing.T) {
	h := newHarness(t, nil, nil, nil)
	other := auth.NewTokenVerifier("another-secret")
	tok, err := other.Mint("user-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	conn := h.dial(t, "/ws/tasks/job-1", tok)
	expectClose(t, conn, CloseUnauthorized)
}

func TestTaskSocketRelaysJobEvents(t *testing.T) {
	h := newHarness(t, nil, nil, nil)
	conn := h.dial(t, "/ws/tasks/job-1", h.token(t, "user-1"))

	if ev := readEvent(t, conn); ev.Type != "connection" || ev.TaskID != "job-1" || ev.Status != "connected" {
		t.Fatalf("first frame = %+v, want connected frame for job-1", ev)
	}

	// Subscription races the publish; retry briefly.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		h.hub.Publish(broadcast.TaskTopic("job-1"), broadcast.Event{
			Type: "task_update", TaskID: "job-1", Status: "PROCESSING", Message: "Fetching video information...",
		})
		_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		var ev broadcast.Event
		if err := conn.ReadJSON(&ev); err == nil {
			if ev.Type != "task_update" || ev.Status != "PROCESSING" {
				t.Fatalf("relayed frame = %+v", ev)
			}
			return
		}
	}
	t.Fatal("task update never reached the socket")
}

func TestAnalysisSocketSubmitsOnConnect(t *testing.T) {
	videos := &fakeVideoRepo{videos: map[string]*model.Video{
		"vid-1": {ID: "vid-1", UserID: "user-1", ProviderVideoID: "abc"},
	}}
	submitter := &fakeSubmitter{jobID: "job-xyz"}
	h := newHarness(t, nil, videos, submitter)

	conn := h.dial(t, "/ws/videos/vid-1/analysis", h.token(t, "user-1"))
	ev := readEvent(t, conn)
	if ev.Type != "connection" || ev.TaskID != "job-xyz" || ev.Status != "connected" {
		t.Fatalf("connection frame = %+v, want connected frame for job-xyz", ev)
	}
}

func TestAnalysisSocketRejectsForeignVideo(t *testing.T) {
	videos := &fakeVideoRepo{videos: map[string]*model.Video{
		"vid-1": {ID: "vid-1", UserID: "owner", ProviderVideoID: "abc"},
	}}
	h := newHarness(t, nil, videos, nil)

	conn := h.dial(t, "/ws/videos/vid-1/analysis", h.token(t, "intruder"))
	expectClose(t, conn, CloseUnauthorized)
}

func TestAnalysisSocketReportsSaturatedQueue(t *testing.T) {
	videos := &fakeVideoRepo{videos: map[string]*model.Video{
		"vid-1": {ID: "vid-1", UserID: "user-1", ProviderVideoID: "abc"},
	}}
	submitter := &fakeSubmitter{err: domain.ErrQueueSaturated}
	h := newHarness(t, nil, videos, submitter)

	conn := h.dial(t, "/ws/videos/vid-1/analysis", h.token(t, "user-1"))
	if ev := readEvent(t, conn); ev.Type != "error" {
		t.Fatalf("frame = %+v, want error event", ev)
	}
	expectClose(t, conn, websocket.CloseTryAgainLater)
}

func TestChatSocketRejectsForeignSession(t *testing.T) {
	sessions := &fakeSessionRepo{sessions: map[string]*model.ChatSession{
		"sess-1": model.NewChatSession("sess-1", "owner", "vid-1"),
	}}
	h := newHarness(t, sessions, nil, nil)

	conn := h.dial(t, "/ws/chat/sess-1", h.token(t, "intruder"))
	expectClose(t, conn, CloseUnauthorized)
}

func TestChatSocketStreamsAgentReply(t *testing.T) {
	sessions := &fakeSessionRepo{sessions: map[string]*model.ChatSession{
		"sess-1": model.NewChatSession("sess-1", "user-1", "vid-1"),
	}}
	h := newHarness(t, sessions, nil, nil)

	conn := h.dial(t, "/ws/chat/sess-1", h.token(t, "user-1"))
	ev := readEvent(t, conn)
	if ev.Type != "connection" || ev.SessionID != "sess-1" || ev.Status != "connected" {
		t.Fatalf("first frame = %+v, want connection frame for sess-1", ev)
	}

	if err := conn.WriteJSON(map[string]string{"message": "summarize this video"}); err != nil {
		t.Fatal(err)
	}

	// Chunk text travels in the "content" key on the wire; pin the raw frame.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read chunk frame: %v", err)
	}
	var chunk map[string]any
	if err := json.Unmarshal(raw, &chunk); err != nil {
		t.Fatalf("decode chunk frame: %v", err)
	}
	if chunk["type"] != "message_chunk" || chunk["content"] != "streamed reply" {
		t.Fatalf("chunk frame = %s", raw)
	}
	done := readEvent(t, conn)
	if done.Type != "message_complete" {
		t.Fatalf("final frame = %+v", done)
	}
}

func TestChatSocketIgnoresMalformedPayloads(t *testing.T) {
	sessions := &fakeSessionRepo{sessions: map[string]*model.ChatSession{
		"sess-1": model.NewChatSession("sess-1", "user-1", "vid-1"),
	}}
	h := newHarness(t, sessions, nil, nil)

	conn := h.dial(t, "/ws/chat/sess-1", h.token(t, "user-1"))
	readEvent(t, conn) // connection frame

	for _, payload := range []string{"not json", `{"message": ""}`, `{"other": "field"}`} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
			t.Fatal(err)
		}
	}
	// A valid message after the garbage still reaches the agent.
	if err := conn.WriteJSON(map[string]string{"message": "hello"}); err != nil {
		t.Fatal(err)
	}
	chunk := readEvent(t, conn)
	if chunk.Type != "message_chunk" {
		t.Fatalf("frame = %+v", chunk)
	}
	if got := h.agent.callCount(); got != 1 {
		t.Fatalf("agent calls = %d, want 1 (malformed payloads must be dropped)", got)
	}
}

func TestChatSocketReportsBusySession(t *testing.T) {
	sessions := &fakeSessionRepo{sessions: map[string]*model.ChatSession{
		"sess-1": model.NewChatSession("sess-1", "user-1", "vid-1"),
	}}
	h := newHarness(t, sessions, nil, nil)
	h.agent.err = domain.ErrSessionBusy

	conn := h.dial(t, "/ws/chat/sess-1", h.token(t, "user-1"))
	readEvent(t, conn) // connection frame

	if err := conn.WriteJSON(map[string]string{"message": "hi"}); err != nil {
		t.Fatal(err)
	}
	ev := readEvent(t, conn)
	if ev.Type != "error" {
		t.Fatalf("frame = %+v, want busy error event", ev)
	}
}
