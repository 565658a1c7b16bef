// Package route computes the curves drawn between connected nodes.
package route

import (
	"dashboard/internal/engine/geom"
	"dashboard/internal/engine/graph"
	"math"

	"github.com/rs/zerolog"
)

// Config holds the routing constants
type Config struct {
	// MaxControlOffset caps how far control points move away from the anchors
	MaxControlOffset float64
	// HitSegments is the number of chords used when testing a point against a curve
	HitSegments int
}

func DefaultConfig() Config {
	return Config{
		MaxControlOffset: 80,
		HitSegments:      24,
	}
}

// Result lists what a routing pass did
type Result struct {
	Routed   []graph.EdgeID
	Deferred []graph.EdgeID
}

// Router computes edge geometry from node bounding boxes
type Router struct {
	config Config
	logger zerolog.Logger
}

func New(cfg Config, logger zerolog.Logger) *Router {
	if cfg.MaxControlOffset < 0 {
		cfg.MaxControlOffset = 0
	}
	if cfg.HitSegments <= 0 {
		cfg.HitSegments = DefaultConfig().HitSegments
	}
	return &Router{config: cfg, logger: logger}
}

func (slf *Router) Config() Config {
	return slf.config
}

// Connect returns the curve from parent to child. The dominant axis of the
// center to center delta picks the sides: left/right edges at their vertical
// middle, otherwise top/bottom edges at their horizontal middle.
func (slf *Router) Connect(parent, child geom.Rect) geom.Curve {
	delta := child.Center().Sub(parent.Center())

	var startSide geom.Side
	if math.Abs(delta.X) > math.Abs(delta.Y) {
		startSide = geom.SideRight
		if delta.X < 0 {
			startSide = geom.SideLeft
		}
	} else {
		startSide = geom.SideBottom
		if delta.Y < 0 {
			startSide = geom.SideTop
		}
	}
	endSide := startSide.Opposite()

	start := parent.Anchor(startSide)
	end := child.Anchor(endSide)
	return slf.bend(start, end, startSide, endSide)
}

// ConnectToPoint returns the preview curve from a node to a free point, used
// while an edge is being drawn.
func (slf *Router) ConnectToPoint(source geom.Rect, target geom.Point) geom.Curve {
	return slf.Connect(source, geom.Rect{X: target.X, Y: target.Y})
}

// bend places the control points along the dominant axis. The offset is the
// smallest of half the dominant distance, half the orthogonal distance and
// the cap, so long curves stay flat and close nodes do not overshoot.
func (slf *Router) bend(start, end geom.Point, startSide, endSide geom.Side) geom.Curve {
	span := end.Sub(start)
	dominant, orthogonal := math.Abs(span.Y), math.Abs(span.X)
	if startSide.Horizontal() {
		dominant, orthogonal = orthogonal, dominant
	}
	offset := math.Min(math.Min(dominant/2, orthogonal/2), slf.config.MaxControlOffset)

	dir := sideDirection(startSide)
	return geom.Curve{
		Start:     start,
		End:       end,
		Control1:  start.Add(dir.Scale(offset)),
		Control2:  end.Sub(dir.Scale(offset)),
		StartSide: startSide,
		EndSide:   endSide,
	}
}

func sideDirection(s geom.Side) geom.Point {
	switch s {
	case geom.SideLeft:
		return geom.Point{X: -1}
	case geom.SideRight:
		return geom.Point{X: 1}
	case geom.SideTop:
		return geom.Point{Y: -1}
	case geom.SideBottom:
		return geom.Point{Y: 1}
	default:
		return geom.Point{}
	}
}

// RouteEdge refreshes the cached geometry of one edge. It returns false, and
// leaves the edge pending, when either endpoint has not been measured yet.
func (slf *Router) RouteEdge(g *graph.Graph, id graph.EdgeID) bool {
	e, ok := g.Edge(id)
	if !ok {
		return false
	}
	parent, okParent := g.Node(e.ParentID)
	child, okChild := g.Node(e.ChildID)
	if !okParent || !okChild {
		return false
	}

	pb, okP := parent.Bounds()
	cb, okC := child.Bounds()
	if !okP || !okC {
		e.Geometry = nil
		e.Pending = true
		slf.logger.Trace().Str("edgeId", string(id)).Msg("Edge routing deferred, box not measured")
		return false
	}

	curve := slf.Connect(pb, cb)
	e.Geometry = &curve
	e.Pending = false
	return true
}

// RouteIncident refreshes every edge touching the node
func (slf *Router) RouteIncident(g *graph.Graph, nodeID uint) Result {
	return slf.routeAll(g, g.IncidentEdges(nodeID))
}

// RouteAll refreshes every edge of the graph
func (slf *Router) RouteAll(g *graph.Graph) Result {
	edges := g.Edges()
	ids := make([]graph.EdgeID, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.ID)
	}
	return slf.routeAll(g, ids)
}

// RoutePending retries the edges deferred by earlier passes
func (slf *Router) RoutePending(g *graph.Graph) Result {
	var ids []graph.EdgeID
	for _, e := range g.Edges() {
		if e.Pending || e.Geometry == nil {
			ids = append(ids, e.ID)
		}
	}
	return slf.routeAll(g, ids)
}

func (slf *Router) routeAll(g *graph.Graph, ids []graph.EdgeID) Result {
	var res Result
	for _, id := range ids {
		if slf.RouteEdge(g, id) {
			res.Routed = append(res.Routed, id)
		} else {
			res.Deferred = append(res.Deferred, id)
		}
	}
	return res
}

// HitEdge returns the routed edge closest to p in logical space, provided it
// is within tolerance.
func (slf *Router) HitEdge(g *graph.Graph, p geom.Point, tolerance float64) (graph.EdgeID, bool) {
	var best graph.EdgeID
	bestDist := math.Inf(1)
	for _, e := range g.Edges() {
		if e.Geometry == nil {
			continue
		}
		if !e.Geometry.Bounds().Inflate(tolerance).Contains(p) {
			continue
		}
		if d := e.Geometry.Distance(p, slf.config.HitSegments); d <= tolerance && d < bestDist {
			best, bestDist = e.ID, d
		}
	}
	return best, !math.IsInf(bestDist, 1)
}
