package repository

import (
	"context"

	"vidboost/internal/domain/model"
)

// -----------------------------
// Videos and derived artifacts
// -----------------------------

// qx is either pgx.Tx, *pgxpool.Conn, or nil (pool) at the Postgres layer;
// in-memory implementations ignore it.

type VideoRepository interface {
	Save(ctx context.Context, qx any, v *model.Video) error
	FindByID(ctx context.Context, qx any, id string) (*model.Video, error)
	FindByProviderID(ctx context.Context, qx any, userID, providerVideoID string) (*model.Video, error)
}

type TranscriptRepository interface {
	// SaveTranscript must be a no-op when a transcript for the video already
	// exists; uniqueness lives at the store, not in a check-then-act lock.
	SaveTranscript(ctx context.Context, qx any, t *model.Transcript) error
	FindTranscriptByVideoID(ctx context.Context, qx any, videoID string) (*model.Transcript, error)
}

type TitleRepository interface {
	SaveTitle(ctx context.Context, qx any, t *model.GeneratedTitle) error
	FindTitlesByVideoID(ctx context.Context, qx any, videoID string) ([]*model.GeneratedTitle, error)
}

type ImageRepository interface {
	SaveImage(ctx context.Context, qx any, img *model.GeneratedImage) error
	FindImagesByVideoID(ctx context.Context, qx any, videoID string) ([]*model.GeneratedImage, error)
}
