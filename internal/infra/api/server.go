// Package api is the REST edge: video registration, analysis submission,
// and chat session creation. Progress and replies are consumed over the
// websocket gateway, not here.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"vidboost/internal/domain"
	"vidboost/internal/infra/auth"
	"vidboost/internal/usecase"
)

type Server struct {
	videoUC  usecase.VideoUseCase
	verifier *auth.TokenVerifier
	log      *zerolog.Logger
}

func NewServer(videoUC usecase.VideoUseCase, verifier *auth.TokenVerifier, log *zerolog.Logger) *Server {
	return &Server{videoUC: videoUC, verifier: verifier, log: log}
}

// Register mounts the public routes on r. The websocket gateway registers
// its own routes; auth for those rides the token query parameter instead
// of the Authorization header.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuth(s.verifier))
		r.Post("/videos", s.handleRegisterVideo)
		r.Post("/videos/{videoID}/analysis", s.handleSubmitAnalysis)
		r.Post("/videos/{videoID}/chat-sessions", s.handleCreateSession)
	})
}

type registerVideoRequest struct {
	URL string `json:"url"`
}

type videoResponse struct {
	ID              string `json:"id"`
	ProviderVideoID string `json:"provider_video_id"`
}

func (s *Server) handleRegisterVideo(w http.ResponseWriter, r *http.Request) {
	var req registerVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	video, err := s.videoUC.RegisterVideo(r.Context(), UserID(r.Context()), req.URL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, videoResponse{
		ID:              video.ID,
		ProviderVideoID: video.ProviderVideoID,
	})
}

func (s *Server) handleSubmitAnalysis(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	jobID, err := s.videoUC.SubmitAnalysis(r.Context(), UserID(r.Context()), videoID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"task_id": jobID})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	session, err := s.videoUC.CreateSession(r.Context(), UserID(r.Context()), videoID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{
		"id":       session.ID,
		"video_id": session.VideoID,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("response encode failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, domain.ErrQueueSaturated):
		http.Error(w, "analysis queue is full, try again shortly", http.StatusServiceUnavailable)
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
