package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vidboost/internal/domain"
	"vidboost/internal/domain/model"
	"vidboost/internal/domain/ports/repository"
)

// Compile-time check
var _ VideoUseCase = (*videoUC)(nil)

// AnalysisSubmitter enqueues an analysis job for a stored video.
type AnalysisSubmitter interface {
	Submit(ctx context.Context, videoID string) (string, error)
}

type VideoUseCase interface {
	// RegisterVideo stores a user's reference to a provider video. It is
	// create-or-get: re-registering the same video returns the existing row.
	RegisterVideo(ctx context.Context, userID, videoURL string) (*model.Video, error)
	// SubmitAnalysis enqueues a background analysis job for an owned video
	// and returns the job id to watch.
	SubmitAnalysis(ctx context.Context, userID, videoID string) (string, error)
	// CreateSession opens (or returns) the user's chat session for a video.
	CreateSession(ctx context.Context, userID, videoID string) (*model.ChatSession, error)
	GetVideo(ctx context.Context, userID, videoID string) (*model.Video, error)
}

type videoUC struct {
	videos   repository.VideoRepository
	sessions repository.ChatSessionRepository
	analyses AnalysisSubmitter
	log      *zerolog.Logger
}

func NewVideoUseCase(
	videos repository.VideoRepository,
	sessions repository.ChatSessionRepository,
	analyses AnalysisSubmitter,
	log *zerolog.Logger,
) *videoUC {
	return &videoUC{videos: videos, sessions: sessions, analyses: analyses, log: log}
}

func (v *videoUC) RegisterVideo(ctx context.Context, userID, videoURL string) (*model.Video, error) {
	providerID, err := extractProviderVideoID(videoURL)
	if err != nil {
		return nil, err
	}
	if existing, err := v.videos.FindByProviderID(ctx, nil, userID, providerID); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	video := model.NewVideo(uuid.NewString(), providerID, userID)
	if err := v.videos.Save(ctx, nil, video); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Lost a concurrent registration race; the winner's row is ours.
			return v.videos.FindByProviderID(ctx, nil, userID, providerID)
		}
		return nil, err
	}
	v.log.Info().Str("user_id", userID).Str("video_id", video.ID).Msg("video registered")
	return video, nil
}

func (v *videoUC) SubmitAnalysis(ctx context.Context, userID, videoID string) (string, error) {
	if _, err := v.GetVideo(ctx, userID, videoID); err != nil {
		return "", err
	}
	return v.analyses.Submit(ctx, videoID)
}

func (v *videoUC) CreateSession(ctx context.Context, userID, videoID string) (*model.ChatSession, error) {
	if _, err := v.GetVideo(ctx, userID, videoID); err != nil {
		return nil, err
	}
	if existing, err := v.sessions.FindByUserAndVideo(ctx, nil, userID, videoID); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	session := model.NewChatSession(uuid.NewString(), userID, videoID)
	if err := v.sessions.Save(ctx, nil, session); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return v.sessions.FindByUserAndVideo(ctx, nil, userID, videoID)
		}
		return nil, err
	}
	v.log.Info().Str("user_id", userID).Str("session_id", session.ID).Msg("chat session opened")
	return session, nil
}

func (v *videoUC) GetVideo(ctx context.Context, userID, videoID string) (*model.Video, error) {
	video, err := v.videos.FindByID(ctx, nil, videoID)
	if err != nil {
		return nil, err
	}
	if video.UserID != userID {
		// Existence of another user's video is not disclosed.
		return nil, domain.ErrNotFound
	}
	return video, nil
}

// extractProviderVideoID accepts watch, share, shorts, and embed URL forms
// as well as a bare 11-character id.
func extractProviderVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.ErrInvalidArgument
	}
	if isVideoID(raw) {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: not a video url", domain.ErrInvalidArgument)
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	switch host {
	case "youtu.be":
		if id := strings.Trim(u.Path, "/"); isVideoID(id) {
			return id, nil
		}
	case "youtube.com", "m.youtube.com":
		if id := u.Query().Get("v"); isVideoID(id) {
			return id, nil
		}
		for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
			if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
				if id := strings.Trim(rest, "/"); isVideoID(id) {
					return id, nil
				}
			}
		}
	}
	return "", fmt.Errorf("%w: unrecognized video url", domain.ErrInvalidArgument)
}

func isVideoID(s string) bool {
	if len(s) != 11 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
