package response

type Position struct {
	NodeID uint    `json:"nodeId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Positions lists the user-adjusted node positions of a pipeline, by node id
type Positions struct {
	PipelineID uint       `json:"pipelineId"`
	Positions  []Position `json:"positions"`
}

type PositionsReset struct {
	PipelineID uint `json:"pipelineId"`
}
