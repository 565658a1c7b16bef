package graph

// ConnectResult tells what AddEdge did
type ConnectResult int

const (
	Connected ConnectResult = iota
	// Reparented means the child had another parent whose edge was replaced
	Reparented
	NoopDuplicate
	NoopSelf
	NoopMissingNode
	NoopCycle
)

// Changed reports whether the graph was modified
func (r ConnectResult) Changed() bool {
	return r == Connected || r == Reparented
}

func (r ConnectResult) String() string {
	switch r {
	case Connected:
		return "connected"
	case Reparented:
		return "reparented"
	case NoopDuplicate:
		return "duplicate"
	case NoopSelf:
		return "self"
	case NoopMissingNode:
		return "missing-node"
	case NoopCycle:
		return "cycle"
	default:
		return "unknown"
	}
}

// AddEdge makes parentID the rendering parent of childID. Connecting a node to
// itself, to a missing node, to its current parent or to one of its own
// descendants leaves the graph untouched. When the child already has another
// parent that edge is replaced and returned as the second edge.
func (g *Graph) AddEdge(parentID, childID uint) (ConnectResult, *Edge, *Edge) {
	if parentID == childID {
		return NoopSelf, nil, nil
	}
	if g.nodes[parentID] == nil || g.nodes[childID] == nil {
		return NoopMissingNode, nil, nil
	}
	if g.HasEdge(parentID, childID) {
		return NoopDuplicate, nil, nil
	}
	if g.isAncestor(childID, parentID) {
		return NoopCycle, nil, nil
	}

	result := Connected
	var replaced *Edge
	if oldParent, ok := g.parent[childID]; ok {
		replaced, _ = g.unlink(oldParent, childID)
		result = Reparented
	}
	e := g.link(parentID, childID)
	g.Reindex()

	g.logger.Debug().
		Str("edgeId", string(e.ID)).
		Str("result", result.String()).
		Msg("Edge added")
	return result, e, replaced
}

// RemoveEdge deletes an edge. The child becomes a root.
func (g *Graph) RemoveEdge(id EdgeID) (*Edge, bool) {
	e, ok := g.edges[id]
	if !ok {
		return nil, false
	}
	g.unlink(e.ParentID, e.ChildID)
	g.Reindex()
	return e, true
}

// RemoveNode deletes a node and every edge touching it. Its children become
// roots. The removed edges are returned parent edge first.
func (g *Graph) RemoveNode(id uint) ([]*Edge, bool) {
	if _, ok := g.nodes[id]; !ok {
		return nil, false
	}

	var removed []*Edge
	if p, ok := g.parent[id]; ok {
		if e, ok := g.unlink(p, id); ok {
			removed = append(removed, e)
		}
	}
	for _, c := range g.Children(id) {
		if e, ok := g.unlink(id, c); ok {
			removed = append(removed, e)
		}
	}
	delete(g.nodes, id)
	g.Reindex()

	g.logger.Debug().Uint("nodeId", id).Int("edges", len(removed)).Msg("Node removed")
	return removed, true
}

// isAncestor reports whether candidate is on the parent chain of id. The walk
// is guarded so existing cycles cannot loop forever.
func (g *Graph) isAncestor(candidate, id uint) bool {
	seen := make(map[uint]bool)
	for cur, ok := g.parent[id]; ok; cur, ok = g.parent[cur] {
		if cur == candidate {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
	}
	return false
}
