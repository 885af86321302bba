package repository

import (
	"context"

	"vidboost/internal/domain/model"
)

type AnalysisJobRepository interface {
	Save(ctx context.Context, qx any, job *model.AnalysisJob) error
	FindByID(ctx context.Context, qx any, id string) (*model.AnalysisJob, error)
}
