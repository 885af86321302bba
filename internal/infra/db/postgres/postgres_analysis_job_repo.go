package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vidboost/internal/domain"
	"vidboost/internal/domain/model"
	"vidboost/internal/domain/ports/repository"
)

var _ repository.AnalysisJobRepository = (*PostgresAnalysisJobRepo)(nil)

type PostgresAnalysisJobRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresAnalysisJobRepo(pool *pgxpool.Pool) *PostgresAnalysisJobRepo {
	return &PostgresAnalysisJobRepo{pool: pool}
}

func (r *PostgresAnalysisJobRepo) Save(ctx context.Context, qx any, job *model.AnalysisJob) error {
	const q = `
INSERT INTO analysis_jobs (id, video_id, status, attempts, last_error, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,COALESCE($6,NOW()),NOW())
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  attempts = EXCLUDED.attempts,
  last_error = EXCLUDED.last_error,
  updated_at = NOW();`
	_, err := execOn(ctx, r.pool, qx, q, job.ID, job.VideoID, string(job.Status), job.Attempts, job.LastError, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("save analysis job: %w", err)
	}
	return nil
}

func (r *PostgresAnalysisJobRepo) FindByID(ctx context.Context, qx any, id string) (*model.AnalysisJob, error) {
	const q = `
SELECT id, video_id, status, attempts, last_error, created_at, updated_at
  FROM analysis_jobs WHERE id=$1;`
	row := pickRow(ctx, r.pool, qx, q, id)
	var (
		job    model.AnalysisJob
		status string
	)
	if err := row.Scan(&job.ID, &job.VideoID, &status, &job.Attempts, &job.LastError, &job.CreatedAt, &job.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.Status = model.AnalysisJobStatus(status)
	return &job, nil
}
