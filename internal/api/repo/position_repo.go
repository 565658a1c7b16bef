package repo

import (
	"context"
	"dashboard"
	"dashboard/internal/api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PositionRepository struct {
	Db *gorm.DB
}

func NewPositionRepository() *PositionRepository {
	return &PositionRepository{Db: dashboard.DB}
}

// FindByPipeline returns the saved positions of a pipeline
func (slf *PositionRepository) FindByPipeline(ctx context.Context, pipelineID uint) ([]models.NodePosition, error) {
	var positions []models.NodePosition
	err := slf.Db.WithContext(ctx).
		Where("pipeline_id = ?", pipelineID).
		Order("node_id").
		Find(&positions).Error
	return positions, err
}

// Upsert inserts the position or overwrites the coordinates of an existing one
func (slf *PositionRepository) Upsert(ctx context.Context, p models.NodePosition) error {
	return slf.Db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pipeline_id"}, {Name: "node_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"x", "y", "updated_at"}),
		}).
		Create(&p).Error
}

// DeleteByPipeline removes every saved position of a pipeline
func (slf *PositionRepository) DeleteByPipeline(ctx context.Context, pipelineID uint) (int64, error) {
	res := slf.Db.WithContext(ctx).
		Where("pipeline_id = ?", pipelineID).
		Delete(&models.NodePosition{})
	return res.RowsAffected, res.Error
}
