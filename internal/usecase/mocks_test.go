package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"vidboost/internal/domain"
	"vidboost/internal/domain/model"
	"vidboost/internal/domain/ports/adapter"
)

// ---------------- in-memory repositories ----------------

type memVideoRepo struct {
	mu    sync.Mutex
	store map[string]*model.Video
	// saveErr lets tests exercise the duplicate-registration path
	saveErr error
}

func newMemVideoRepo() *memVideoRepo { return &memVideoRepo{store: map[string]*model.Video{}} }

func (m *memVideoRepo) Save(ctx context.Context, qx any, v *model.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	for _, existing := range m.store {
		if existing.UserID == v.UserID && existing.ProviderVideoID == v.ProviderVideoID {
			return domain.ErrAlreadyExists
		}
	}
	m.store[v.ID] = v
	return nil
}

func (m *memVideoRepo) FindByID(ctx context.Context, qx any, id string) (*model.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *memVideoRepo) FindByProviderID(ctx context.Context, qx any, userID, pid string) (*model.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.store {
		if v.UserID == userID && v.ProviderVideoID == pid {
			cp := *v
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

type memTranscriptRepo struct {
	mu    sync.Mutex
	store map[string]*model.Transcript
}

func newMemTranscriptRepo() *memTranscriptRepo {
	return &memTranscriptRepo{store: map[string]*model.Transcript{}}
}

func (m *memTranscriptRepo) SaveTranscript(ctx context.Context, qx any, t *model.Transcript) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[t.VideoID]; ok {
		return nil
	}
	cp := *t
	m.store[t.VideoID] = &cp
	return nil
}

func (m *memTranscriptRepo) FindTranscriptByVideoID(ctx context.Context, qx any, videoID string) (*model.Transcript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[videoID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

type memTitleRepo struct {
	mu     sync.Mutex
	titles []*model.GeneratedTitle
}

func (m *memTitleRepo) SaveTitle(ctx context.Context, qx any, t *model.GeneratedTitle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.titles = append(m.titles, t)
	return nil
}

func (m *memTitleRepo) FindTitlesByVideoID(ctx context.Context, qx any, videoID string) ([]*model.GeneratedTitle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.GeneratedTitle
	for _, t := range m.titles {
		if t.VideoID == videoID {
			out = append(out, t)
		}
	}
	return out, nil
}

type memImageRepo struct {
	mu     sync.Mutex
	images []*model.GeneratedImage
}

func (m *memImageRepo) SaveImage(ctx context.Context, qx any, img *model.GeneratedImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images = append(m.images, img)
	return nil
}

func (m *memImageRepo) FindImagesByVideoID(ctx context.Context, qx any, videoID string) ([]*model.GeneratedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.GeneratedImage
	for _, img := range m.images {
		if img.VideoID == videoID {
			out = append(out, img)
		}
	}
	return out, nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.ChatSession
	messages map[string][]model.ChatMessage
	// msgErr fails SaveMessage for the given role, "" disables
	msgErrRole string
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{
		sessions: map[string]*model.ChatSession{},
		messages: map[string][]model.ChatMessage{},
	}
}

func (m *memSessionRepo) Save(ctx context.Context, qx any, s *model.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.UserID == s.UserID && existing.VideoID == s.VideoID {
			return domain.ErrAlreadyExists
		}
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *memSessionRepo) SaveMessage(ctx context.Context, qx any, msg *model.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.msgErrRole != "" && msg.Role == m.msgErrRole {
		return errors.New("write failed")
	}
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], *msg)
	return nil
}

func (m *memSessionRepo) FindByID(ctx context.Context, qx any, id string) (*model.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionRepo) FindByUserAndVideo(ctx context.Context, qx any, userID, videoID string) (*model.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.UserID == userID && s.VideoID == videoID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSessionRepo) FindMessages(ctx context.Context, qx any, sessionID string) ([]model.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ChatMessage, len(m.messages[sessionID]))
	copy(out, m.messages[sessionID])
	return out, nil
}

func (m *memSessionRepo) messagesFor(sessionID string) []model.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ChatMessage, len(m.messages[sessionID]))
	copy(out, m.messages[sessionID])
	return out
}

// ---------------- adapter fakes ----------------

type fakeProvider struct {
	mu              sync.Mutex
	info            *model.VideoInfo
	infoErr         error
	segments        []model.TranscriptSegment
	transcriptErr   error
	infoCalls       int
	transcriptCalls int
}

func (f *fakeProvider) FetchVideoInfo(ctx context.Context, pid string) (*model.VideoInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infoCalls++
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	if f.info == nil {
		return &model.VideoInfo{Title: "Some Video"}, nil
	}
	cp := *f.info
	return &cp, nil
}

func (f *fakeProvider) FetchTranscript(ctx context.Context, pid string, langs []string) ([]model.TranscriptSegment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcriptCalls++
	if f.transcriptErr != nil {
		return nil, f.transcriptErr
	}
	return f.segments, nil
}

type fakeTitleModel struct {
	title string
	err   error
}

func (f *fakeTitleModel) GenerateTitle(ctx context.Context, summary, considerations string) (string, error) {
	return f.title, f.err
}

type fakeImageGen struct {
	err error
}

func (f *fakeImageGen) Generate(ctx context.Context, prompt string) (*adapter.GeneratedImage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &adapter.GeneratedImage{Bytes: []byte("png-bytes"), ContentType: "image/png"}, nil
}

type fakeStorage struct {
	mu       sync.Mutex
	uploaded map[string][]byte
}

func newFakeStorage() *fakeStorage { return &fakeStorage{uploaded: map[string][]byte{}} }

func (f *fakeStorage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded[key] = data
	return nil
}

func (f *fakeStorage) PresignURL(ctx context.Context, key string) (string, error) {
	return "https://storage.example/" + key + "?signed", nil
}

// scriptedAI replays a fixed sequence of cycle results. Streaming splits
// the text into word chunks so chunk accounting is observable.
type scriptedAI struct {
	mu      sync.Mutex
	script  []adapter.GenerateResult
	err     error // returned on first call when set
	cycles  int
	lastReq adapter.GenerateRequest
}

func (s *scriptedAI) ListModels(ctx context.Context) ([]string, error) {
	return []string{"scripted"}, nil
}

func (s *scriptedAI) next(req adapter.GenerateRequest) (adapter.GenerateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReq = req
	if s.err != nil {
		return adapter.GenerateResult{}, s.err
	}
	if s.cycles >= len(s.script) {
		return adapter.GenerateResult{}, nil
	}
	result := s.script[s.cycles]
	s.cycles++
	return result, nil
}

func (s *scriptedAI) Generate(ctx context.Context, req adapter.GenerateRequest) (adapter.GenerateResult, error) {
	return s.next(req)
}

func (s *scriptedAI) StreamGenerate(ctx context.Context, req adapter.GenerateRequest, onChunk func(string) error) (adapter.GenerateResult, error) {
	result, err := s.next(req)
	if err != nil {
		return adapter.GenerateResult{}, err
	}
	if onChunk != nil && result.Text != "" {
		for _, word := range strings.SplitAfter(result.Text, " ") {
			if err := onChunk(word); err != nil {
				return adapter.GenerateResult{}, err
			}
		}
	}
	return result, nil
}

func (s *scriptedAI) cycleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycles
}
