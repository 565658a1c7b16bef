// Package editor runs the pointer and keyboard state machine of the pipeline
// graph editor. A Controller is not safe for concurrent use: the host feeds it
// events one at a time.
package editor

import (
	"dashboard/internal/api/models"
	"dashboard/internal/engine/geom"
	"dashboard/internal/engine/graph"
	"dashboard/internal/engine/layout"
	"dashboard/internal/engine/position"
	"dashboard/internal/engine/route"
	"math"

	"github.com/rs/zerolog"
)

const (
	DefaultMinZoom = 0.1
	DefaultMaxZoom = 2.0
)

// Config holds the interaction constants
type Config struct {
	MinZoom float64
	MaxZoom float64
	// WheelStep is the zoom factor applied per 100 units of wheel delta
	WheelStep float64
	// FitPadding is the screen margin kept by the fit key
	FitPadding     float64
	MaxLevelPasses int
}

func DefaultConfig() Config {
	return Config{
		MinZoom:    DefaultMinZoom,
		MaxZoom:    DefaultMaxZoom,
		WheelStep:  1.2,
		FitPadding: 40,
	}
}

// Saver receives the final position of a dragged node. Enqueue must not block;
// position.Writer is the usual implementation.
type Saver interface {
	Enqueue(s position.Save) error
}

// Hooks let the host react to editor changes. Every field is optional.
type Hooks struct {
	StateChanged   func(from, to State)
	GestureStarted func(s Session)
	GestureEnded   func(s Session, outcome Outcome)
	NodeMoved      func(nodeID uint, from, to geom.Point)
	EdgeCreated    func(created *graph.Edge, replaced *graph.Edge)
	NodeDeleted    func(nodeID uint, removed []*graph.Edge)
}

// Options configure a Controller. Layout and Router default to their
// packages' default configs.
type Options struct {
	PipelineID uint
	Config     Config
	Layout     *layout.Engine
	Router     *route.Router
	Saver      Saver
	Hooks      Hooks
	Logger     *zerolog.Logger
}

// Controller owns the graph being edited, the viewport and the active gesture
type Controller struct {
	pipelineID uint
	config     Config
	graph      *graph.Graph
	layout     *layout.Engine
	router     *route.Router
	saver      Saver
	hooks      Hooks
	logger     zerolog.Logger

	viewport Viewport
	screen   geom.Size
	state    State
	session  *Session
	pointer  geom.Point
	hover    uint
	preview  *geom.Curve

	frame *Frame
}

func New(opts Options) *Controller {
	cfg := opts.Config
	if cfg.MinZoom <= 0 {
		cfg.MinZoom = DefaultMinZoom
	}
	if cfg.MaxZoom <= 0 {
		cfg.MaxZoom = DefaultMaxZoom
	}
	if cfg.WheelStep <= 1 {
		cfg.WheelStep = DefaultConfig().WheelStep
	}
	if cfg.FitPadding <= 0 {
		cfg.FitPadding = DefaultConfig().FitPadding
	}

	c := &Controller{
		pipelineID: opts.PipelineID,
		config:     cfg,
		layout:     opts.Layout,
		router:     opts.Router,
		saver:      opts.Saver,
		hooks:      opts.Hooks,
		logger:     zerolog.Nop(),
		viewport:   NewViewport(cfg.MinZoom, cfg.MaxZoom),
	}
	if opts.Logger != nil {
		c.logger = opts.Logger.With().Uint("pipelineId", opts.PipelineID).Logger()
	}
	if c.layout == nil {
		c.layout, _ = layout.New(layout.DefaultConfig())
	}
	if c.router == nil {
		c.router = route.New(route.DefaultConfig(), c.logger)
	}
	c.graph = graph.Build(nil, graph.BuildOptions{MaxLevelPasses: cfg.MaxLevelPasses, Logger: &c.logger})
	return c
}

// Reload rebuilds the graph from the unit records, seeds positions from the
// overrides or the grid, and routes every edge. Sizes measured for nodes that
// still exist are kept, so are the viewport and the selection when its node
// survives. Any gesture in progress is aborted.
func (c *Controller) Reload(units []models.Unit, overrides layout.Overrides) Frame {
	c.beginFrame()

	if c.session != nil {
		c.abortGesture()
	}

	sizes := make(map[uint]geom.Size, c.graph.Len())
	for _, n := range c.graph.Nodes() {
		if n.Measured {
			sizes[n.ID] = n.Size
		}
	}

	c.graph = graph.Build(units, graph.BuildOptions{MaxLevelPasses: c.config.MaxLevelPasses, Logger: &c.logger})
	c.layout.Apply(c.graph, overrides)
	for id, s := range sizes {
		c.graph.SetSize(id, s)
	}
	res := c.router.RouteAll(c.graph)
	c.recordRoute(res)

	if c.state.Kind == Selected {
		if _, ok := c.graph.Node(c.state.NodeID); !ok {
			c.setState(State{Kind: Idle})
		}
	} else if c.state.Kind != Idle {
		c.setState(State{Kind: Idle})
	}

	c.logger.Info().
		Int("nodes", c.graph.Len()).
		Int("edges", c.graph.EdgeCount()).
		Bool("degraded", c.graph.Degraded()).
		Msg("Editor graph loaded")
	return c.endFrame()
}

func (c *Controller) Graph() *graph.Graph {
	return c.graph
}

func (c *Controller) State() State {
	return c.state
}

func (c *Controller) Viewport() Viewport {
	return c.viewport
}

// Session returns a copy of the active gesture, if any
func (c *Controller) Session() (Session, bool) {
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// Preview returns the live connect curve in logical space
func (c *Controller) Preview() (geom.Curve, bool) {
	if c.preview == nil {
		return geom.Curve{}, false
	}
	return *c.preview, true
}

// SetViewport replaces the viewport, clamping the zoom
func (c *Controller) SetViewport(v Viewport) {
	v.MinZoom, v.MaxZoom = c.config.MinZoom, c.config.MaxZoom
	v.Zoom = geom.Clamp(v.Zoom, v.MinZoom, v.MaxZoom)
	c.viewport = v
}

// Dispatch feeds one input event to the state machine and returns what changed
func (c *Controller) Dispatch(ev Event) Frame {
	c.beginFrame()
	switch e := ev.(type) {
	case PointerDown:
		c.onPointerDown(e)
	case PointerMove:
		c.onPointerMove(e)
	case PointerUp:
		c.onPointerUp(e)
	case PointerLeave:
		c.onPointerLeave()
	case Wheel:
		c.onWheel(e)
	case Pinch:
		c.onPinch(e)
	case Key:
		c.onKey(e)
	case Measure:
		c.onMeasure(e)
	case Resize:
		c.screen = e.Size
	default:
		c.logger.Warn().Msgf("Unsupported editor event %T", ev)
	}
	return c.endFrame()
}

// MeasureAll records many node sizes in one frame, then routes every edge
// once, deferred ones included.
func (c *Controller) MeasureAll(sizes map[uint]geom.Size) Frame {
	c.beginFrame()
	for id, s := range sizes {
		if c.graph.SetSize(id, s) {
			c.frame.step(StepResize, id, "")
		}
	}
	c.recordRoute(c.router.RouteAll(c.graph))
	c.refreshPreview()
	return c.endFrame()
}

func (c *Controller) onPointerDown(e PointerDown) {
	c.pointer = e.Screen
	hit, onNode := c.HitNode(c.viewport.ScreenToLogical(e.Screen))

	switch c.state.Kind {
	case ConnectingEdge:
		if e.Button == ButtonSecondary || !onNode {
			c.cancelConnect(Cancelled)
			return
		}
		c.finishConnect(hit)
		return
	case DraggingNode, PanningCanvas:
		// a second button while a gesture is active is ignored
		return
	case Selected:
		if onNode && hit == c.state.NodeID && e.Modifiers.Has(ModConnect) {
			c.startConnect(hit, e.Screen)
			return
		}
	}

	if e.Button != ButtonPrimary {
		return
	}
	if onNode {
		c.startDrag(hit, e.Screen)
		return
	}
	c.startPan(e.Screen)
}

func (c *Controller) onPointerMove(e PointerMove) {
	delta := e.Screen.Sub(c.pointer)
	c.pointer = e.Screen

	switch c.state.Kind {
	case PanningCanvas:
		c.viewport.Pan(delta)
		c.session.LastScreen = e.Screen
		c.session.Moved = c.session.Moved || !delta.IsZero()
		c.frame.ViewportChanged = true
	case DraggingNode:
		n, ok := c.graph.Node(c.state.NodeID)
		if !ok {
			return
		}
		c.session.LastScreen = e.Screen
		if delta.IsZero() {
			return
		}
		c.session.Moved = true
		c.moveNode(n.ID, n.Position.Add(c.viewport.ScreenDelta(delta)))
	case ConnectingEdge:
		c.refreshPreview()
	default:
		hit, _ := c.HitNode(c.viewport.ScreenToLogical(e.Screen))
		if hit != c.hover {
			c.hover = hit
			c.frame.Redraw = true
		}
	}
}

func (c *Controller) onPointerUp(e PointerUp) {
	switch c.state.Kind {
	case PanningCanvas:
		c.session.LastScreen = e.Screen
		c.endGesture(Committed)
		c.setState(State{Kind: Idle})
	case DraggingNode:
		c.finishDrag()
	}
}

// onPointerLeave aborts drags and connects; a pan keeps the distance covered
func (c *Controller) onPointerLeave() {
	switch c.state.Kind {
	case PanningCanvas:
		c.endGesture(Committed)
		c.setState(State{Kind: Idle})
	case DraggingNode:
		c.abortGesture()
		c.setState(State{Kind: Idle})
	case ConnectingEdge:
		c.cancelConnect(Aborted)
	}
	if c.hover != 0 {
		c.hover = 0
		c.frame.Redraw = true
	}
}

func (c *Controller) onWheel(e Wheel) {
	factor := math.Pow(c.config.WheelStep, -e.DeltaY/100)
	c.zoomAt(e.Screen, c.viewport.Zoom*factor)
}

func (c *Controller) onPinch(e Pinch) {
	if e.Scale <= 0 {
		return
	}
	c.zoomAt(e.Center, c.viewport.Zoom*e.Scale)
}

func (c *Controller) zoomAt(anchor geom.Point, zoom float64) {
	if !c.viewport.ZoomAt(anchor, zoom) {
		return
	}
	c.frame.ViewportChanged = true
	if c.state.Kind == ConnectingEdge {
		c.refreshPreview()
	}
}

func (c *Controller) onKey(e Key) {
	switch e.Key {
	case KeyEscape:
		switch c.state.Kind {
		case DraggingNode:
			c.abortGesture()
			c.setState(State{Kind: Idle})
		case ConnectingEdge:
			c.cancelConnect(Cancelled)
		case PanningCanvas:
			c.endGesture(Committed)
			c.setState(State{Kind: Idle})
		case Selected:
			c.setState(State{Kind: Idle})
		}
	case KeyDelete, KeyBackspace:
		switch c.state.Kind {
		case Selected:
			c.deleteNode(c.state.NodeID)
		case DraggingNode:
			id := c.state.NodeID
			c.abortGesture()
			c.deleteNode(id)
		}
	case KeyConnect:
		if c.state.Kind == Selected {
			c.startConnect(c.state.NodeID, c.pointer)
		}
	case KeyFit:
		c.fit()
	}
}

func (c *Controller) onMeasure(e Measure) {
	if !c.graph.SetSize(e.NodeID, e.Size) {
		return
	}
	c.frame.step(StepResize, e.NodeID, "")
	c.recordRoute(c.router.RouteIncident(c.graph, e.NodeID))
	if c.state.Kind == ConnectingEdge && c.state.NodeID == e.NodeID {
		c.refreshPreview()
	}
}

func (c *Controller) startPan(screen geom.Point) {
	c.beginGesture(newSession(GesturePan, 0, screen))
	c.session.StartOrigin = c.viewport.Origin
	c.setState(State{Kind: PanningCanvas})
}

func (c *Controller) startDrag(id uint, screen geom.Point) {
	n, _ := c.graph.Node(id)
	c.beginGesture(newSession(GestureDrag, id, screen))
	c.session.StartPosition = n.Position
	c.setState(State{Kind: DraggingNode, NodeID: id})
}

// finishDrag commits the gesture: edges are routed for the final position and
// a single save is scheduled when the node actually moved.
func (c *Controller) finishDrag() {
	s := c.session
	id := c.state.NodeID
	n, ok := c.graph.Node(id)
	if !ok {
		c.endGesture(Aborted)
		c.setState(State{Kind: Idle})
		return
	}

	c.recordRoute(c.router.RouteIncident(c.graph, id))
	if s.Moved && !n.Position.Equal(s.StartPosition, geom.Epsilon) {
		c.scheduleSave(id, n.Position)
		if c.hooks.NodeMoved != nil {
			c.hooks.NodeMoved(id, s.StartPosition, n.Position)
		}
	}
	c.endGesture(Committed)
	c.setState(State{Kind: Selected, NodeID: id})
}

func (c *Controller) scheduleSave(id uint, p geom.Point) {
	save := position.Save{PipelineID: c.pipelineID, NodeID: id, Position: p}
	c.frame.Saved = append(c.frame.Saved, save)
	if c.saver == nil {
		return
	}
	if err := c.saver.Enqueue(save); err != nil {
		c.logger.Warn().Err(err).Uint("nodeId", id).Msg("Could not schedule position save")
	}
}

func (c *Controller) startConnect(source uint, screen geom.Point) {
	if _, ok := c.graph.Node(source); !ok {
		return
	}
	c.beginGesture(newSession(GestureConnect, source, screen))
	c.setState(State{Kind: ConnectingEdge, NodeID: source})
	c.refreshPreview()
}

// finishConnect links the source to the target. Self links, existing edges
// and cycles are silently ignored.
func (c *Controller) finishConnect(target uint) {
	source := c.state.NodeID
	result, created, replaced := c.graph.AddEdge(source, target)
	if result.Changed() {
		c.frame.Created = append(c.frame.Created, created.ID)
		if replaced != nil {
			c.frame.Removed = append(c.frame.Removed, replaced.ID)
		}
		if c.router.RouteEdge(c.graph, created.ID) {
			c.frame.step(StepRoute, 0, created.ID)
			c.frame.Routed = append(c.frame.Routed, created.ID)
		} else {
			c.frame.Deferred = append(c.frame.Deferred, created.ID)
		}
		if c.hooks.EdgeCreated != nil {
			c.hooks.EdgeCreated(created, replaced)
		}
		c.logger.Info().
			Uint("parentId", source).
			Uint("childId", target).
			Str("result", result.String()).
			Msg("Edge created")
	} else {
		c.logger.Debug().
			Uint("parentId", source).
			Uint("childId", target).
			Str("result", result.String()).
			Msg("Connect ignored")
	}
	c.clearPreview()
	c.endGesture(Committed)
	c.setState(State{Kind: Idle})
}

func (c *Controller) cancelConnect(outcome Outcome) {
	c.clearPreview()
	c.endGesture(outcome)
	c.setState(State{Kind: Idle})
}

func (c *Controller) deleteNode(id uint) {
	removed, ok := c.graph.RemoveNode(id)
	if !ok {
		c.setState(State{Kind: Idle})
		return
	}
	for _, e := range removed {
		c.frame.Removed = append(c.frame.Removed, e.ID)
	}
	c.frame.DeletedNodes = append(c.frame.DeletedNodes, id)
	if c.hover == id {
		c.hover = 0
	}
	if c.hooks.NodeDeleted != nil {
		c.hooks.NodeDeleted(id, removed)
	}
	c.logger.Info().Uint("nodeId", id).Int("edges", len(removed)).Msg("Node deleted")
	c.setState(State{Kind: Idle})
}

// moveNode sets the position first and routes the incident edges after, so a
// frame never carries geometry computed from a stale position.
func (c *Controller) moveNode(id uint, p geom.Point) {
	c.graph.SetPosition(id, p)
	c.frame.step(StepMove, id, "")
	c.frame.Moved = appendUnique(c.frame.Moved, id)
	c.recordRoute(c.router.RouteIncident(c.graph, id))
}

func (c *Controller) beginGesture(s *Session) {
	c.session = s
	if c.hooks.GestureStarted != nil {
		c.hooks.GestureStarted(*s)
	}
}

func (c *Controller) endGesture(outcome Outcome) {
	s := c.session
	c.session = nil
	if s == nil {
		return
	}
	if c.hooks.GestureEnded != nil {
		c.hooks.GestureEnded(*s, outcome)
	}
}

// abortGesture undoes the active gesture: a dragged node goes back to where
// it started and a pending edge is dropped.
func (c *Controller) abortGesture() {
	s := c.session
	if s == nil {
		return
	}
	switch s.Kind {
	case GestureDrag:
		if n, ok := c.graph.Node(s.NodeID); ok && !n.Position.Equal(s.StartPosition, 0) {
			c.moveNode(s.NodeID, s.StartPosition)
		}
	case GestureConnect:
		c.clearPreview()
	}
	c.logger.Debug().Str("gesture", s.Kind.String()).Uint("nodeId", s.NodeID).Msg("Gesture aborted")
	c.endGesture(Aborted)
}

func (c *Controller) refreshPreview() {
	if c.state.Kind != ConnectingEdge {
		return
	}
	n, ok := c.graph.Node(c.state.NodeID)
	if !ok {
		c.clearPreview()
		return
	}
	box, ok := n.Bounds()
	if !ok {
		c.clearPreview()
		return
	}
	curve := c.router.ConnectToPoint(box, c.viewport.ScreenToLogical(c.pointer))
	c.preview = &curve
	c.frame.Redraw = true
}

func (c *Controller) clearPreview() {
	if c.preview != nil {
		c.preview = nil
		c.frame.Redraw = true
	}
}

func (c *Controller) fit() {
	var bounds geom.Rect
	found := false
	for _, n := range c.graph.Nodes() {
		box, ok := n.Bounds()
		if !ok {
			continue
		}
		if !found {
			bounds, found = box, true
			continue
		}
		bounds = bounds.Union(box)
	}
	if found && c.viewport.Fit(bounds, c.screen, c.config.FitPadding) {
		c.frame.ViewportChanged = true
	}
}

// HitNode returns the topmost measured node containing the logical point.
// Nodes later in the render order are drawn on top.
func (c *Controller) HitNode(p geom.Point) (uint, bool) {
	nodes := c.graph.Nodes()
	for i := len(nodes) - 1; i >= 0; i-- {
		if box, ok := nodes[i].Bounds(); ok && box.Contains(p) {
			return nodes[i].ID, true
		}
	}
	return 0, false
}

func (c *Controller) setState(s State) {
	if s == c.state {
		return
	}
	from := c.state
	c.state = s
	c.frame.Redraw = true
	c.logger.Trace().Str("from", from.String()).Str("to", s.String()).Msg("Editor state changed")
	if c.hooks.StateChanged != nil {
		c.hooks.StateChanged(from, s)
	}
}

func (c *Controller) recordRoute(res route.Result) {
	for _, id := range res.Routed {
		c.frame.step(StepRoute, 0, id)
		c.frame.Routed = appendUnique(c.frame.Routed, id)
	}
	c.frame.Deferred = append(c.frame.Deferred, res.Deferred...)
}

func (c *Controller) beginFrame() {
	c.frame = &Frame{}
}

func (c *Controller) endFrame() Frame {
	f := *c.frame
	f.State = c.state
	if len(f.Steps) > 0 || len(f.Created) > 0 || len(f.Removed) > 0 || f.ViewportChanged {
		f.Redraw = true
	}
	c.frame = &Frame{}
	return f
}

func appendUnique[T comparable](s []T, v T) []T {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}
