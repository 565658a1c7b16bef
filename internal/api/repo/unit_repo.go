package repo

import (
	"context"
	"dashboard"
	"dashboard/internal/api/models"

	"gorm.io/gorm"
)

type UnitRepository struct {
	Db *gorm.DB
}

func NewUnitRepository() *UnitRepository {
	return &UnitRepository{Db: dashboard.DB}
}

// FindByPipeline returns every unit of the pipeline ordered by id
func (slf *UnitRepository) FindByPipeline(ctx context.Context, pipelineID uint) ([]models.Unit, error) {
	var units []models.Unit
	err := slf.Db.WithContext(ctx).
		Where("pipeline_id = ?", pipelineID).
		Order("id").
		Find(&units).Error
	return units, err
}
