package editor

import (
	"dashboard/internal/engine/geom"
	"dashboard/internal/engine/layout"
)

// MoveNode places a node moved by another editor. Nothing is saved. A node
// this controller is dragging keeps its local position.
func (c *Controller) MoveNode(id uint, p geom.Point) Frame {
	c.beginFrame()
	if c.state.Kind == DraggingNode && c.state.NodeID == id {
		c.logger.Debug().Uint("nodeId", id).Msg("Remote move ignored during drag")
		return c.endFrame()
	}
	if n, ok := c.graph.Node(id); ok && !n.Position.Equal(p, 0) {
		c.moveNode(id, p)
		c.refreshPreview()
	}
	return c.endFrame()
}

// ResetLayout puts every node back on the grid except the overridden ones.
// A drag in progress is aborted first.
func (c *Controller) ResetLayout(overrides layout.Overrides) Frame {
	c.beginFrame()
	if c.session != nil && c.session.Kind == GestureDrag {
		c.abortGesture()
		c.setState(State{Kind: Selected, NodeID: c.state.NodeID})
	}

	positions := c.layout.Compute(c.graph.Order(), overrides)
	for _, id := range c.graph.Order() {
		n, _ := c.graph.Node(id)
		if p := positions[id]; !n.Position.Equal(p, 0) {
			c.moveNode(id, p)
		}
	}
	c.refreshPreview()
	return c.endFrame()
}
