package editor

import (
	"dashboard/internal/engine/geom"
	"dashboard/internal/engine/graph"
	"dashboard/internal/engine/position"
)

type StepOp string

const (
	StepMove   StepOp = "move"
	StepResize StepOp = "resize"
	StepRoute  StepOp = "route"
)

// Step is one mutation inside a frame, kept in the order it happened
type Step struct {
	Op     StepOp
	NodeID uint
	EdgeID graph.EdgeID
}

// Frame summarizes what one event changed
type Frame struct {
	State        State
	Steps        []Step
	Moved        []uint
	Routed       []graph.EdgeID
	Deferred     []graph.EdgeID
	Created      []graph.EdgeID
	Removed      []graph.EdgeID
	DeletedNodes []uint
	// Saved lists the position writes scheduled by this frame
	Saved           []position.Save
	ViewportChanged bool
	Redraw          bool
}

func (f *Frame) step(op StepOp, nodeID uint, edgeID graph.EdgeID) {
	f.Steps = append(f.Steps, Step{Op: op, NodeID: nodeID, EdgeID: edgeID})
}

// NodeView is a node ready to draw
type NodeView struct {
	ID     uint           `json:"id"`
	Label  string         `json:"label"`
	Kind   graph.KindName `json:"kind"`
	Level  int            `json:"level"`
	Order  int            `json:"order"`
	Orphan bool           `json:"orphan,omitempty"`
	// Position is the logical top-left corner, Screen its screen counterpart
	Position geom.Point `json:"position"`
	Screen   geom.Point `json:"screen"`
	// Bounds are nil until the node has been measured
	Bounds       *geom.Rect `json:"bounds,omitempty"`
	ScreenBounds *geom.Rect `json:"screenBounds,omitempty"`
	Selected     bool       `json:"selected,omitempty"`
	Hovered      bool       `json:"hovered,omitempty"`
	Comment      *string    `json:"comment,omitempty"`
}

// EdgeView is a routed edge in screen space
type EdgeView struct {
	ID       graph.EdgeID `json:"id"`
	ParentID uint         `json:"parentId"`
	ChildID  uint         `json:"childId"`
	Curve    geom.Curve   `json:"curve"`
	Path     string       `json:"path"`
}

// Scene is everything a presentation layer needs to draw the editor
type Scene struct {
	PipelineID  uint               `json:"pipelineId"`
	State       string             `json:"state"`
	Viewport    Viewport           `json:"viewport"`
	Nodes       []NodeView         `json:"nodes"`
	Edges       []EdgeView         `json:"edges"`
	Preview     *EdgeView          `json:"preview,omitempty"`
	Degraded    bool               `json:"degraded"`
	Diagnostics []graph.Diagnostic `json:"diagnostics,omitempty"`
}

// Scene renders the current graph through the viewport. Nodes come in
// traversal order; edges whose geometry is still deferred are left out.
func (c *Controller) Scene() Scene {
	return BuildScene(c.pipelineID, c.graph, c.viewport, c.selectedNode(), c.hover, c.preview, c.state)
}

// BuildScene renders any graph, used by hosts that do not run a controller
func BuildScene(pipelineID uint, g *graph.Graph, v Viewport, selected, hover uint, preview *geom.Curve, state State) Scene {
	scene := Scene{
		PipelineID:  pipelineID,
		State:       state.String(),
		Viewport:    v,
		Nodes:       make([]NodeView, 0, g.Len()),
		Edges:       make([]EdgeView, 0, g.EdgeCount()),
		Degraded:    g.Degraded(),
		Diagnostics: g.Diagnostics(),
	}

	for _, n := range g.Nodes() {
		view := NodeView{
			ID:       n.ID,
			Label:    n.Label,
			Kind:     n.Kind.Name(),
			Level:    n.Level,
			Order:    n.Order,
			Orphan:   n.Orphan,
			Position: n.Position,
			Screen:   v.LogicalToScreen(n.Position),
			Selected: n.ID == selected,
			Hovered:  n.ID == hover,
			Comment:  n.Unit.Comment,
		}
		if box, ok := n.Bounds(); ok {
			screenBox := v.RectToScreen(box)
			view.Bounds = &box
			view.ScreenBounds = &screenBox
		}
		scene.Nodes = append(scene.Nodes, view)
	}

	for _, e := range g.Edges() {
		if e.Geometry == nil {
			continue
		}
		curve := e.Geometry.Transform(v.LogicalToScreen)
		scene.Edges = append(scene.Edges, EdgeView{
			ID:       e.ID,
			ParentID: e.ParentID,
			ChildID:  e.ChildID,
			Curve:    curve,
			Path:     curve.Path(),
		})
	}

	if preview != nil {
		curve := preview.Transform(v.LogicalToScreen)
		scene.Preview = &EdgeView{ParentID: state.NodeID, Curve: curve, Path: curve.Path()}
	}
	return scene
}

func (c *Controller) selectedNode() uint {
	switch c.state.Kind {
	case Selected, DraggingNode, ConnectingEdge:
		return c.state.NodeID
	default:
		return 0
	}
}
