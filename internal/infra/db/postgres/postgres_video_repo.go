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

var (
	_ repository.VideoRepository      = (*PostgresVideoRepo)(nil)
	_ repository.TranscriptRepository = (*PostgresVideoRepo)(nil)
	_ repository.TitleRepository      = (*PostgresVideoRepo)(nil)
	_ repository.ImageRepository      = (*PostgresVideoRepo)(nil)
)

// PostgresVideoRepo persists videos together with their derived artifacts
// (transcript, generated titles, generated images).
type PostgresVideoRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresVideoRepo(pool *pgxpool.Pool) *PostgresVideoRepo {
	return &PostgresVideoRepo{pool: pool}
}

func (r *PostgresVideoRepo) Save(ctx context.Context, qx any, v *model.Video) error {
	const q = `
INSERT INTO videos (id, provider_video_id, user_id, created_at)
VALUES ($1,$2,$3,COALESCE($4,NOW()))
ON CONFLICT (provider_video_id, user_id) DO NOTHING;`
	tag, err := execOn(ctx, r.pool, qx, q, v.ID, v.ProviderVideoID, v.UserID, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("save video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *PostgresVideoRepo) FindByID(ctx context.Context, qx any, id string) (*model.Video, error) {
	const q = `SELECT id, provider_video_id, user_id, created_at FROM videos WHERE id=$1;`
	row := pickRow(ctx, r.pool, qx, q, id)
	var v model.Video
	if err := row.Scan(&v.ID, &v.ProviderVideoID, &v.UserID, &v.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *PostgresVideoRepo) FindByProviderID(ctx context.Context, qx any, userID, providerVideoID string) (*model.Video, error) {
	const q = `
SELECT id, provider_video_id, user_id, created_at
  FROM videos WHERE user_id=$1 AND provider_video_id=$2;`
	row := pickRow(ctx, r.pool, qx, q, userID, providerVideoID)
	var v model.Video
	if err := row.Scan(&v.ID, &v.ProviderVideoID, &v.UserID, &v.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// ---- Transcripts ----

// SaveTranscript relies on the primary key for create-or-keep under race:
// two workers fetching the same transcript concurrently both succeed and
// exactly one row remains.
func (r *PostgresVideoRepo) SaveTranscript(ctx context.Context, qx any, t *model.Transcript) error {
	segments, err := json.Marshal(t.Segments)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	const q = `
INSERT INTO transcripts (video_id, segments, created_at)
VALUES ($1,$2,COALESCE($3,NOW()))
ON CONFLICT (video_id) DO NOTHING;`
	if _, err := execOn(ctx, r.pool, qx, q, t.VideoID, segments, t.CreatedAt); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

func (r *PostgresVideoRepo) FindTranscriptByVideoID(ctx context.Context, qx any, videoID string) (*model.Transcript, error) {
	const q = `SELECT video_id, segments, created_at FROM transcripts WHERE video_id=$1;`
	row := pickRow(ctx, r.pool, qx, q, videoID)
	var (
		t   model.Transcript
		raw []byte
	)
	if err := row.Scan(&t.VideoID, &raw, &t.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &t.Segments); err != nil {
		return nil, fmt.Errorf("unmarshal transcript: %w", err)
	}
	return &t, nil
}

// ---- Generated titles ----

func (r *PostgresVideoRepo) SaveTitle(ctx context.Context, qx any, t *model.GeneratedTitle) error {
	const q = `
INSERT INTO generated_titles (id, video_id, title, created_at)
VALUES ($1,$2,$3,COALESCE($4,NOW()));`
	_, err := execOn(ctx, r.pool, qx, q, t.ID, t.VideoID, t.Title, t.CreatedAt)
	return err
}

func (r *PostgresVideoRepo) FindTitlesByVideoID(ctx context.Context, qx any, videoID string) ([]*model.GeneratedTitle, error) {
	const q = `SELECT id, video_id, title, created_at FROM generated_titles WHERE video_id=$1 ORDER BY created_at;`
	rows, err := queryRows(ctx, r.pool, qx, q, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.GeneratedTitle
	for rows.Next() {
		var t model.GeneratedTitle
		if err := rows.Scan(&t.ID, &t.VideoID, &t.Title, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// ---- Generated images ----

func (r *PostgresVideoRepo) SaveImage(ctx context.Context, qx any, img *model.GeneratedImage) error {
	const q = `
INSERT INTO generated_images (id, video_id, object_key, created_at)
VALUES ($1,$2,$3,COALESCE($4,NOW()));`
	_, err := execOn(ctx, r.pool, qx, q, img.ID, img.VideoID, img.ObjectKey, img.CreatedAt)
	return err
}

func (r *PostgresVideoRepo) FindImagesByVideoID(ctx context.Context, qx any, videoID string) ([]*model.GeneratedImage, error) {
	const q = `SELECT id, video_id, object_key, created_at FROM generated_images WHERE video_id=$1 ORDER BY created_at;`
	rows, err := queryRows(ctx, r.pool, qx, q, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.GeneratedImage
	for rows.Next() {
		var img model.GeneratedImage
		if err := rows.Scan(&img.ID, &img.VideoID, &img.ObjectKey, &img.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &img)
	}
	return out, rows.Err()
}
