package request

// UpdatePosition moves one node of the pipeline. Both coordinates are logical.
type UpdatePosition struct {
	X *float64 `json:"x" validate:"required"`
	Y *float64 `json:"y" validate:"required"`
}
