package mapper

import (
	"dashboard/internal/api/handler/response"
	"dashboard/internal/engine/geom"
	"dashboard/internal/engine/layout"
	"slices"
)

type PositionMapper struct{}

func NewPositionMapper() PositionMapper {
	return PositionMapper{}
}

func (m PositionMapper) ToPositionResponse(nodeID uint, p geom.Point) response.Position {
	return response.Position{NodeID: nodeID, X: p.X, Y: p.Y}
}

// ToPositionsResponse sorts the overrides by node id so responses are stable
func (m PositionMapper) ToPositionsResponse(pipelineID uint, overrides layout.Overrides) response.Positions {
	ids := make([]uint, 0, len(overrides))
	for id := range overrides {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := response.Positions{PipelineID: pipelineID, Positions: make([]response.Position, 0, len(ids))}
	for _, id := range ids {
		out.Positions = append(out.Positions, m.ToPositionResponse(id, overrides[id]))
	}
	return out
}
