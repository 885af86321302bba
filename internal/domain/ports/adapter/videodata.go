package adapter

import (
	"context"

	"vidboost/internal/domain/model"
)

// VideoDataAdapter is the port for the external video-metadata and
// transcript provider. A missing video must surface domain.ErrNotFound
// (wrapped is fine); everything else is treated as transient.
type VideoDataAdapter interface {
	FetchVideoInfo(ctx context.Context, providerVideoID string) (*model.VideoInfo, error)
	FetchTranscript(ctx context.Context, providerVideoID string, languages []string) ([]model.TranscriptSegment, error)
}
