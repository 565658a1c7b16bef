package repo

import (
	"context"
	"dashboard"
	"dashboard/internal/api/models"

	"gorm.io/gorm"
)

type PipelineRepository struct {
	Db *gorm.DB
}

func NewPipelineRepository() *PipelineRepository {
	return &PipelineRepository{Db: dashboard.DB}
}

// FindByID retrieves a pipeline without its units
func (slf *PipelineRepository) FindByID(ctx context.Context, id uint) (models.Pipeline, error) {
	var pipeline models.Pipeline
	err := slf.Db.WithContext(ctx).First(&pipeline, id).Error
	return pipeline, err
}
