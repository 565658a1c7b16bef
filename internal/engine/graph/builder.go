package graph

import (
	"dashboard/internal/api/models"
	"fmt"
	"slices"
)

// Build turns the flat unit records of one pipeline into a Graph. It never
// fails: duplicate ids, dangling or cyclic parents and bad kind selectors are
// recorded as diagnostics and the graph is flagged degraded.
func Build(units []models.Unit, opts BuildOptions) *Graph {
	g := newGraph(opts)

	unique := make([]models.Unit, 0, len(units))
	for _, u := range units {
		if _, exists := g.nodes[u.ID]; exists {
			g.recordDiag(DiagDuplicateID, u.ID, fmt.Sprintf("unit %d appears more than once, keeping the first record", u.ID))
			continue
		}

		kind, ok := ResolveKind(u)
		if !ok {
			if unknown, isUnknown := kind.(Unknown); isUnknown && len(unknown.Candidates) > 1 {
				g.recordDiag(DiagAmbiguousKind, u.ID, fmt.Sprintf("unit %d has %d kind selectors set", u.ID, len(unknown.Candidates)))
			} else {
				g.recordDiag(DiagUnknownKind, u.ID, fmt.Sprintf("unit %d has no kind selector set", u.ID))
			}
		}

		g.nodes[u.ID] = &Node{
			ID:    u.ID,
			Label: Label(u, kind),
			Kind:  kind,
			Unit:  u,
		}
		unique = append(unique, u)
	}

	for _, u := range unique {
		if u.ParentID == nil {
			continue
		}
		parentID := *u.ParentID
		switch {
		case parentID == u.ID:
			g.recordDiag(DiagSelfParent, u.ID, fmt.Sprintf("unit %d references itself as parent", u.ID))
		case g.nodes[parentID] == nil:
			g.recordDiag(DiagDanglingParent, u.ID, fmt.Sprintf("unit %d references missing parent %d", u.ID, parentID))
		default:
			g.link(parentID, u.ID)
		}
	}

	g.Reindex()

	if g.Degraded() {
		g.logger.Warn().
			Int("units", len(units)).
			Int("nodes", len(g.nodes)).
			Int("diagnostics", len(g.recordDiags)+len(g.traversalDiags)).
			Msg("Pipeline graph is degraded")
	}
	return g
}

// Reindex recomputes the traversal order and the levels. It has to be called
// after every structural change; the mutation methods do it themselves.
func (g *Graph) Reindex() {
	g.traversalDiags = nil

	ids := g.sortedIDs()
	g.roots = g.roots[:0]
	for _, id := range ids {
		if _, hasParent := g.parent[id]; !hasParent {
			g.roots = append(g.roots, id)
		}
	}
	if len(g.roots) == 0 && len(ids) > 0 {
		g.traversalDiag(DiagNoRoot, 0, "no unit without parent, falling back to position order")
	}

	visited := make(map[uint]bool, len(ids))
	order := make([]uint, 0, len(ids))
	visit := func(start uint) {
		stack := []uint{start}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[id] {
				continue
			}
			visited[id] = true
			order = append(order, id)

			kids := g.children[id]
			for i := len(kids) - 1; i >= 0; i-- {
				if !visited[kids[i]] {
					stack = append(stack, kids[i])
				}
			}
		}
	}

	for _, id := range g.roots {
		visit(id)
	}

	orphanRoots := make(map[uint]bool)
	for _, id := range ids {
		if visited[id] {
			continue
		}
		orphanRoots[id] = true
		g.traversalDiag(DiagOrphan, id, fmt.Sprintf("unit %d is not reachable from any root", id))
		visit(id)
	}

	g.order = order
	for i, id := range order {
		n := g.nodes[id]
		n.Order = i
		n.Orphan = orphanRoots[id]
	}
	g.assignLevels(orphanRoots)
}

// assignLevels sweeps the traversal order, giving each node the level of its
// parent plus one once the parent level is known. The number of sweeps is
// bounded so malformed input always terminates.
func (g *Graph) assignLevels(orphanRoots map[uint]bool) {
	levels := make(map[uint]int, len(g.order))
	for _, id := range g.roots {
		levels[id] = 0
	}
	for id := range orphanRoots {
		levels[id] = 0
	}

	for pass := 0; pass < g.maxLevelPasses; pass++ {
		unresolved, progressed := false, false
		for _, id := range g.order {
			if _, done := levels[id]; done {
				continue
			}
			parentID, hasParent := g.parent[id]
			if !hasParent {
				levels[id] = 0
				progressed = true
				continue
			}
			if parentLevel, known := levels[parentID]; known {
				levels[id] = parentLevel + 1
				progressed = true
				continue
			}
			unresolved = true
		}
		if !unresolved || !progressed {
			break
		}
	}

	for _, id := range g.order {
		n := g.nodes[id]
		level, ok := levels[id]
		if !ok {
			level = 0
			n.Orphan = true
			g.traversalDiag(DiagLevelCap, id, fmt.Sprintf("level of unit %d unresolved after %d passes", id, g.maxLevelPasses))
		}
		n.Level = level
	}
}

// sortedIDs returns every node id in position order
func (g *Graph) sortedIDs() []uint {
	ids := make([]uint, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, g.comparePosition)
	return ids
}

// comparePosition orders units with explicit coordinates first, top to bottom
// then left to right, and breaks ties by id.
func (g *Graph) comparePosition(a, b uint) int {
	ua, ub := g.nodes[a].Unit, g.nodes[b].Unit
	pa, pb := ua.HasPosition(), ub.HasPosition()
	switch {
	case pa && !pb:
		return -1
	case !pa && pb:
		return 1
	case pa && pb:
		if *ua.Ypos != *ub.Ypos {
			if *ua.Ypos < *ub.Ypos {
				return -1
			}
			return 1
		}
		if *ua.Xpos != *ub.Xpos {
			if *ua.Xpos < *ub.Xpos {
				return -1
			}
			return 1
		}
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// link records parent -> child, keeping siblings in position order
func (g *Graph) link(parentID, childID uint) *Edge {
	e := &Edge{ID: MakeEdgeID(parentID, childID), ParentID: parentID, ChildID: childID}
	g.edges[e.ID] = e
	g.parent[childID] = parentID

	kids := append(g.children[parentID], childID)
	slices.SortFunc(kids, g.comparePosition)
	g.children[parentID] = kids
	return e
}

func (g *Graph) unlink(parentID, childID uint) (*Edge, bool) {
	id := MakeEdgeID(parentID, childID)
	e, ok := g.edges[id]
	if !ok {
		return nil, false
	}
	delete(g.edges, id)
	delete(g.parent, childID)
	kids := g.children[parentID]
	if i := slices.Index(kids, childID); i >= 0 {
		kids = slices.Delete(kids, i, i+1)
	}
	if len(kids) == 0 {
		delete(g.children, parentID)
	} else {
		g.children[parentID] = kids
	}
	return e, true
}

func (g *Graph) recordDiag(code DiagnosticCode, nodeID uint, msg string) {
	g.recordDiags = append(g.recordDiags, Diagnostic{Code: code, NodeID: nodeID, Message: msg})
	g.logger.Debug().Str("code", string(code)).Uint("nodeId", nodeID).Msg(msg)
}

func (g *Graph) traversalDiag(code DiagnosticCode, nodeID uint, msg string) {
	g.traversalDiags = append(g.traversalDiags, Diagnostic{Code: code, NodeID: nodeID, Message: msg})
	g.logger.Debug().Str("code", string(code)).Uint("nodeId", nodeID).Msg(msg)
}
