package models

import "time"

// NodePosition is a user-adjusted editor position for one unit of a pipeline.
// It overrides the default grid layout for that unit only.
type NodePosition struct {
	PipelineID uint      `gorm:"primaryKey;autoIncrement:false" json:"pipelineId"`
	NodeID     uint      `gorm:"primaryKey;autoIncrement:false" json:"nodeId"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}
