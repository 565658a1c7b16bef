package graph

import (
	"dashboard/internal/api/models"
	"dashboard/internal/engine/geom"
	"fmt"

	"github.com/rs/zerolog"
)

// DefaultMaxLevelPasses bounds the level assignment sweeps on malformed input.
const DefaultMaxLevelPasses = 10

// EdgeID is derived from the (parent, child) pair, see MakeEdgeID.
type EdgeID string

// MakeEdgeID returns the deterministic id of the edge parent -> child
func MakeEdgeID(parentID, childID uint) EdgeID {
	return EdgeID(fmt.Sprintf("%d-%d", parentID, childID))
}

// Node is the view counterpart of a unit.
type Node struct {
	ID    uint
	Label string
	Kind  Kind
	// Depth from the nearest root
	Level int
	// Index in the traversal order
	Order int
	// Orphan is set for nodes that were only reached after the regular
	// traversal: cyclic or dangling parent chains.
	Orphan bool

	// Position is the top-left corner in logical space
	Position geom.Point
	Size     geom.Size
	// Measured is false until a size is known for the node
	Measured bool

	Unit models.Unit
}

// Bounds returns the logical bounding box. ok is false until the node has
// been measured.
func (n *Node) Bounds() (geom.Rect, bool) {
	if !n.Measured {
		return geom.Rect{}, false
	}
	return geom.RectAt(n.Position, n.Size), true
}

// Edge links a child to its parent. Geometry is a cache filled by the router.
type Edge struct {
	ID       EdgeID
	ParentID uint
	ChildID  uint
	Geometry *geom.Curve
	// Pending is set when the last routing attempt was deferred because a box
	// was not known yet.
	Pending bool
}

type DiagnosticCode string

const (
	DiagDuplicateID    DiagnosticCode = "duplicate-id"
	DiagDanglingParent DiagnosticCode = "dangling-parent"
	DiagSelfParent     DiagnosticCode = "self-parent"
	DiagNoRoot         DiagnosticCode = "no-root"
	DiagOrphan         DiagnosticCode = "orphan"
	DiagLevelCap       DiagnosticCode = "level-cap"
	DiagUnknownKind    DiagnosticCode = "unknown-kind"
	DiagAmbiguousKind  DiagnosticCode = "ambiguous-kind"
)

// Diagnostic describes a problem found in the unit records
type Diagnostic struct {
	Code    DiagnosticCode `json:"code"`
	NodeID  uint           `json:"nodeId,omitempty"`
	Message string         `json:"message"`
}

// BuildOptions tunes Build. The zero value is valid.
type BuildOptions struct {
	MaxLevelPasses int
	Logger         *zerolog.Logger
}

// Graph is an arena of nodes keyed by id with edges stored as (parent, child)
// pairs. A node has at most one parent edge.
type Graph struct {
	nodes    map[uint]*Node
	edges    map[EdgeID]*Edge
	parent   map[uint]uint
	children map[uint][]uint
	order    []uint
	roots    []uint

	maxLevelPasses int
	logger         zerolog.Logger

	// diagnostics found in the records themselves
	recordDiags []Diagnostic
	// diagnostics of the last traversal
	traversalDiags []Diagnostic
}

func newGraph(opts BuildOptions) *Graph {
	g := &Graph{
		nodes:          make(map[uint]*Node),
		edges:          make(map[EdgeID]*Edge),
		parent:         make(map[uint]uint),
		children:       make(map[uint][]uint),
		maxLevelPasses: opts.MaxLevelPasses,
		logger:         zerolog.Nop(),
	}
	if g.maxLevelPasses <= 0 {
		g.maxLevelPasses = DefaultMaxLevelPasses
	}
	if opts.Logger != nil {
		g.logger = *opts.Logger
	}
	return g
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Node returns the node with the given id
func (g *Graph) Node(id uint) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns the nodes in traversal order
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Order returns a copy of the traversal order
func (g *Graph) Order() []uint {
	return append([]uint(nil), g.order...)
}

// Roots returns the regular roots in traversal order. Orphan roots are not included.
func (g *Graph) Roots() []uint {
	return append([]uint(nil), g.roots...)
}

// Levels returns the depth of every node
func (g *Graph) Levels() map[uint]int {
	out := make(map[uint]int, len(g.nodes))
	for id, n := range g.nodes {
		out[id] = n.Level
	}
	return out
}

// Edge returns the edge with the given id
func (g *Graph) Edge(id EdgeID) (*Edge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Edges returns every edge ordered by the traversal position of the child.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, 0, len(g.edges))
	for _, id := range g.order {
		if p, ok := g.parent[id]; ok {
			out = append(out, g.edges[MakeEdgeID(p, id)])
		}
	}
	return out
}

// Parent returns the parent id of a node
func (g *Graph) Parent(id uint) (uint, bool) {
	p, ok := g.parent[id]
	return p, ok
}

// Children returns the children of a node in sibling order
func (g *Graph) Children(id uint) []uint {
	return append([]uint(nil), g.children[id]...)
}

// HasEdge reports whether parent -> child exists
func (g *Graph) HasEdge(parentID, childID uint) bool {
	_, ok := g.edges[MakeEdgeID(parentID, childID)]
	return ok
}

// IncidentEdges returns the parent edge of the node followed by its child edges.
func (g *Graph) IncidentEdges(id uint) []EdgeID {
	var out []EdgeID
	if p, ok := g.parent[id]; ok {
		out = append(out, MakeEdgeID(p, id))
	}
	for _, c := range g.children[id] {
		out = append(out, MakeEdgeID(id, c))
	}
	return out
}

// SetPosition moves a node in logical space
func (g *Graph) SetPosition(id uint, p geom.Point) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	n.Position = p
	return true
}

// SetSize records the measured size of a node. An empty size marks the node
// as unmeasured again.
func (g *Graph) SetSize(id uint, s geom.Size) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	n.Size = s
	n.Measured = !s.Empty()
	return true
}

// Degraded reports whether the records were malformed in any way
func (g *Graph) Degraded() bool {
	return len(g.recordDiags) > 0 || len(g.traversalDiags) > 0
}

// Diagnostics returns every problem found, record problems first
func (g *Graph) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, 0, len(g.recordDiags)+len(g.traversalDiags))
	out = append(out, g.recordDiags...)
	return append(out, g.traversalDiags...)
}
