package editor

import (
	"dashboard/internal/api/models"
	"dashboard/internal/engine/geom"
	"dashboard/internal/engine/graph"
	"dashboard/internal/engine/layout"
	"dashboard/internal/engine/position"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nodeSize = geom.Size{Width: 180, Height: 64}

type recordingSaver struct {
	saves []position.Save
	err   error
}

func (s *recordingSaver) Enqueue(save position.Save) error {
	if s.err != nil {
		return s.err
	}
	s.saves = append(s.saves, save)
	return nil
}

func ptr[T any](v T) *T {
	return &v
}

func unit(id uint, parent *uint) models.Unit {
	return models.Unit{ID: id, PipelineID: 1, ParentID: parent, CommandID: ptr(id)}
}

// chainUnits is A(1) -> B(2) -> C(3) plus D(4). The default grid puts them at
// x = 0, 240, 480 and 720 on the first row.
func chainUnits() []models.Unit {
	return []models.Unit{
		unit(1, nil),
		unit(2, ptr(uint(1))),
		unit(3, ptr(uint(2))),
		unit(4, nil),
	}
}

func newController(t *testing.T, units []models.Unit, saver Saver, hooks Hooks) *Controller {
	t.Helper()
	c := New(Options{PipelineID: 1, Saver: saver, Hooks: hooks})
	c.Reload(units, nil)

	sizes := map[uint]geom.Size{}
	for _, n := range c.Graph().Nodes() {
		sizes[n.ID] = nodeSize
	}
	c.MeasureAll(sizes)
	return c
}

func click(c *Controller, p geom.Point) Frame {
	c.Dispatch(PointerDown{Screen: p})
	return c.Dispatch(PointerUp{Screen: p})
}

func nodePosition(t *testing.T, c *Controller, id uint) geom.Point {
	t.Helper()
	n, ok := c.Graph().Node(id)
	require.True(t, ok, "node %d", id)
	return n.Position
}

func TestReload_DefersEdgesUntilMeasured(t *testing.T) {
	c := New(Options{PipelineID: 1})

	frame := c.Reload(chainUnits(), nil)

	assert.Empty(t, frame.Routed)
	assert.ElementsMatch(t, []graph.EdgeID{"1-2", "2-3"}, frame.Deferred)
	assert.Empty(t, c.Scene().Edges)
	assert.Equal(t, geom.Pt(720, 0), nodePosition(t, c, 4))

	frame = c.MeasureAll(map[uint]geom.Size{1: nodeSize, 2: nodeSize, 3: nodeSize})

	assert.Equal(t, []graph.EdgeID{"1-2", "2-3"}, frame.Routed)
	assert.Empty(t, frame.Deferred)
	assert.True(t, frame.Redraw)
	assert.Len(t, c.Scene().Edges, 2)
}

func TestReload_UsesOverridesAndKeepsSizes(t *testing.T) {
	c := newController(t, chainUnits(), nil, Hooks{})

	c.Reload(chainUnits(), layout.Overrides{3: geom.Pt(10, 400)})

	assert.Equal(t, geom.Pt(10, 400), nodePosition(t, c, 3))
	n, _ := c.Graph().Node(3)
	assert.True(t, n.Measured)
	e, _ := c.Graph().Edge("2-3")
	require.NotNil(t, e.Geometry)
	assert.Equal(t, geom.SideBottom, e.Geometry.StartSide)
}

func TestDrag_ScreenDeltaIsScaledByZoom(t *testing.T) {
	saver := &recordingSaver{}
	var moved []geom.Point
	c := newController(t, chainUnits(), saver, Hooks{
		NodeMoved: func(id uint, from, to geom.Point) { moved = append(moved, from, to) },
	})
	c.SetViewport(Viewport{Zoom: 2})

	frame := c.Dispatch(PointerDown{Screen: geom.Pt(500, 20)})
	require.Equal(t, State{Kind: DraggingNode, NodeID: 2}, frame.State)

	frame = c.Dispatch(PointerMove{Screen: geom.Pt(550, 0)})

	assert.Equal(t, geom.Pt(265, -10), nodePosition(t, c, 2))
	require.Len(t, frame.Steps, 3)
	assert.Equal(t, Step{Op: StepMove, NodeID: 2}, frame.Steps[0])
	assert.Equal(t, Step{Op: StepRoute, EdgeID: "1-2"}, frame.Steps[1])
	assert.Equal(t, Step{Op: StepRoute, EdgeID: "2-3"}, frame.Steps[2])
	e, _ := c.Graph().Edge("1-2")
	assert.Equal(t, geom.Pt(265, 22), e.Geometry.End)
	assert.Empty(t, saver.saves, "nothing is saved while dragging")

	frame = c.Dispatch(PointerUp{Screen: geom.Pt(550, 0)})

	assert.Equal(t, State{Kind: Selected, NodeID: 2}, frame.State)
	want := position.Save{PipelineID: 1, NodeID: 2, Position: geom.Pt(265, -10)}
	assert.Equal(t, []position.Save{want}, saver.saves)
	assert.Equal(t, []position.Save{want}, frame.Saved)
	assert.Equal(t, []geom.Point{geom.Pt(240, 0), geom.Pt(265, -10)}, moved)
}

func TestDrag_ClickWithoutMoveSelects(t *testing.T) {
	saver := &recordingSaver{}
	c := newController(t, chainUnits(), saver, Hooks{})

	frame := click(c, geom.Pt(250, 10))

	assert.Equal(t, State{Kind: Selected, NodeID: 2}, frame.State)
	assert.Empty(t, saver.saves)
	assert.Empty(t, frame.Saved)
}

func TestDrag_SaverErrorKeepsPosition(t *testing.T) {
	saver := &recordingSaver{err: position.ErrClosed}
	c := newController(t, chainUnits(), saver, Hooks{})

	c.Dispatch(PointerDown{Screen: geom.Pt(10, 10)})
	c.Dispatch(PointerMove{Screen: geom.Pt(10, 110)})
	frame := c.Dispatch(PointerUp{Screen: geom.Pt(10, 110)})

	assert.Equal(t, geom.Pt(0, 100), nodePosition(t, c, 1))
	assert.Len(t, frame.Saved, 1)
	assert.Equal(t, Selected, c.State().Kind)
}

func TestDrag_AbortRestoresPosition(t *testing.T) {
	tests := []struct {
		name  string
		event Event
	}{
		{"escape", Key{Key: KeyEscape}},
		{"pointer leaves", PointerLeave{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saver := &recordingSaver{}
			var outcomes []Outcome
			c := newController(t, chainUnits(), saver, Hooks{
				GestureEnded: func(_ Session, o Outcome) { outcomes = append(outcomes, o) },
			})

			c.Dispatch(PointerDown{Screen: geom.Pt(250, 10)})
			c.Dispatch(PointerMove{Screen: geom.Pt(400, 300)})
			require.Equal(t, geom.Pt(390, 290), nodePosition(t, c, 2))

			frame := c.Dispatch(tt.event)

			assert.Equal(t, State{Kind: Idle}, frame.State)
			assert.Equal(t, geom.Pt(240, 0), nodePosition(t, c, 2))
			assert.Contains(t, frame.Routed, graph.EdgeID("1-2"))
			assert.Empty(t, saver.saves)
			assert.Equal(t, []Outcome{Aborted}, outcomes)
			_, active := c.Session()
			assert.False(t, active)
		})
	}
}

func TestPan(t *testing.T) {
	c := newController(t, chainUnits(), nil, Hooks{})

	frame := c.Dispatch(PointerDown{Screen: geom.Pt(100, 300)})
	require.Equal(t, PanningCanvas, frame.State.Kind)

	frame = c.Dispatch(PointerMove{Screen: geom.Pt(130, 320)})
	assert.True(t, frame.ViewportChanged)
	assert.Equal(t, geom.Pt(30, 20), c.Viewport().Origin)

	frame = c.Dispatch(PointerUp{Screen: geom.Pt(130, 320)})
	assert.Equal(t, Idle, frame.State.Kind)
	assert.Equal(t, geom.Pt(0, 0), nodePosition(t, c, 1), "panning never moves nodes")
	assert.Equal(t, geom.Pt(0, 0), c.Viewport().ScreenToLogical(geom.Pt(30, 20)))
}

func TestSecondaryButtonOnCanvasIsIgnored(t *testing.T) {
	c := newController(t, chainUnits(), nil, Hooks{})

	frame := c.Dispatch(PointerDown{Screen: geom.Pt(100, 300), Button: ButtonSecondary})

	assert.Equal(t, Idle, frame.State.Kind)
	_, active := c.Session()
	assert.False(t, active)
}

func TestConnect_ExistingEdgeIsNoop(t *testing.T) {
	units := []models.Unit{
		unit(1, nil),
		unit(2, ptr(uint(1))),
		unit(3, ptr(uint(1))),
	}
	created := 0
	c := newController(t, units, nil, Hooks{
		EdgeCreated: func(*graph.Edge, *graph.Edge) { created++ },
	})

	click(c, geom.Pt(10, 10))
	frame := c.Dispatch(PointerDown{Screen: geom.Pt(10, 10), Modifiers: ModConnect})
	require.Equal(t, State{Kind: ConnectingEdge, NodeID: 1}, frame.State)

	frame = c.Dispatch(PointerDown{Screen: geom.Pt(490, 10)})

	assert.Equal(t, Idle, frame.State.Kind)
	assert.Empty(t, frame.Created)
	assert.Equal(t, 2, c.Graph().EdgeCount())
	assert.Zero(t, created)
	_, previewing := c.Preview()
	assert.False(t, previewing)
}

func TestConnect_CreatesEdge(t *testing.T) {
	var created []graph.EdgeID
	c := newController(t, chainUnits(), nil, Hooks{
		EdgeCreated: func(e *graph.Edge, replaced *graph.Edge) {
			created = append(created, e.ID)
			assert.Nil(t, replaced)
		},
	})

	click(c, geom.Pt(730, 10))
	frame := c.Dispatch(Key{Key: KeyConnect})
	require.Equal(t, State{Kind: ConnectingEdge, NodeID: 4}, frame.State)
	_, previewing := c.Preview()
	assert.True(t, previewing)

	frame = c.Dispatch(PointerMove{Screen: geom.Pt(300, 200)})
	assert.True(t, frame.Redraw)
	preview, _ := c.Preview()
	assert.Equal(t, geom.Pt(300, 200), preview.End)
	require.NotNil(t, c.Scene().Preview)

	frame = c.Dispatch(PointerDown{Screen: geom.Pt(10, 10)})

	assert.Equal(t, []graph.EdgeID{"4-1"}, frame.Created)
	assert.Contains(t, frame.Routed, graph.EdgeID("4-1"))
	assert.Equal(t, []graph.EdgeID{"4-1"}, created)
	assert.Equal(t, Idle, frame.State.Kind)
	assert.Equal(t, []uint{4, 1, 2, 3}, c.Graph().Order())
	assert.Nil(t, c.Scene().Preview)
}

func TestConnect_ClosingCycleIsIgnored(t *testing.T) {
	c := newController(t, chainUnits(), nil, Hooks{})

	click(c, geom.Pt(490, 10))
	c.Dispatch(Key{Key: KeyConnect})
	frame := c.Dispatch(PointerDown{Screen: geom.Pt(10, 10)})

	assert.Empty(t, frame.Created)
	assert.False(t, c.Graph().HasEdge(3, 1))
	assert.Equal(t, 2, c.Graph().EdgeCount())
}

func TestConnect_Cancel(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		outcome Outcome
	}{
		{"escape", Key{Key: KeyEscape}, Cancelled},
		{"empty canvas", PointerDown{Screen: geom.Pt(100, 500)}, Cancelled},
		{"secondary button", PointerDown{Screen: geom.Pt(250, 10), Button: ButtonSecondary}, Cancelled},
		{"pointer leaves", PointerLeave{}, Aborted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var outcomes []Outcome
			c := newController(t, chainUnits(), nil, Hooks{
				GestureEnded: func(_ Session, o Outcome) { outcomes = append(outcomes, o) },
			})
			click(c, geom.Pt(730, 10))
			c.Dispatch(Key{Key: KeyConnect})

			frame := c.Dispatch(tt.event)

			assert.Equal(t, Idle, frame.State.Kind)
			assert.Empty(t, frame.Created)
			assert.Equal(t, 2, c.Graph().EdgeCount())
			require.NotEmpty(t, outcomes)
			assert.Equal(t, tt.outcome, outcomes[len(outcomes)-1])
			_, previewing := c.Preview()
			assert.False(t, previewing)
		})
	}
}

func TestDelete_RemovesIncidentEdges(t *testing.T) {
	var deleted []uint
	c := newController(t, chainUnits(), nil, Hooks{
		NodeDeleted: func(id uint, removed []*graph.Edge) {
			deleted = append(deleted, id)
			assert.Len(t, removed, 2)
		},
	})

	click(c, geom.Pt(250, 10))
	frame := c.Dispatch(Key{Key: KeyDelete})

	assert.Equal(t, []uint{2}, frame.DeletedNodes)
	assert.Equal(t, []graph.EdgeID{"1-2", "2-3"}, frame.Removed)
	assert.Equal(t, []uint{2}, deleted)
	assert.Equal(t, Idle, frame.State.Kind)
	assert.Equal(t, 0, c.Graph().EdgeCount())
	assert.False(t, c.Graph().HasEdge(1, 3))
	_, exists := c.Graph().Node(2)
	assert.False(t, exists)
}

func TestDelete_WithoutSelectionDoesNothing(t *testing.T) {
	c := newController(t, chainUnits(), nil, Hooks{})

	frame := c.Dispatch(Key{Key: KeyBackspace})

	assert.Empty(t, frame.DeletedNodes)
	assert.Equal(t, 4, c.Graph().Len())
}

func TestZoom(t *testing.T) {
	c := newController(t, chainUnits(), nil, Hooks{})
	anchor := geom.Pt(100, 100)
	before := c.Viewport().ScreenToLogical(anchor)

	frame := c.Dispatch(Wheel{Screen: anchor, DeltaY: -100})

	assert.True(t, frame.ViewportChanged)
	assert.InDelta(t, 1.2, c.Viewport().Zoom, 1e-9)
	after := c.Viewport().ScreenToLogical(anchor)
	assert.InDelta(t, before.X, after.X, 1e-9)
	assert.InDelta(t, before.Y, after.Y, 1e-9)

	c.Dispatch(Pinch{Center: anchor, Scale: 100})
	assert.Equal(t, DefaultMaxZoom, c.Viewport().Zoom)

	frame = c.Dispatch(Pinch{Center: anchor, Scale: 3})
	assert.False(t, frame.ViewportChanged, "zoom is already at its maximum")

	c.Dispatch(Wheel{Screen: anchor, DeltaY: 100000})
	assert.Equal(t, DefaultMinZoom, c.Viewport().Zoom)
}

func TestFit(t *testing.T) {
	c := newController(t, chainUnits(), nil, Hooks{})
	c.Dispatch(Resize{Size: geom.Size{Width: 1000, Height: 600}})

	frame := c.Dispatch(Key{Key: KeyFit})

	require.True(t, frame.ViewportChanged)
	v := c.Viewport()
	// nodes span 0..900 x 0..64, the width limits the zoom
	assert.InDelta(t, 920.0/900.0, v.Zoom, 1e-9)
	center := v.LogicalToScreen(geom.Pt(450, 32))
	assert.InDelta(t, 500, center.X, 1e-9)
	assert.InDelta(t, 300, center.Y, 1e-9)
}

func TestNew_FillsZeroConfig(t *testing.T) {
	c := New(Options{PipelineID: 1})

	assert.Equal(t, DefaultConfig(), c.config)
}

func TestHitNode_TopmostWins(t *testing.T) {
	c := New(Options{PipelineID: 1})
	c.Reload(chainUnits(), layout.Overrides{2: geom.Pt(0, 0)})
	c.MeasureAll(map[uint]geom.Size{1: nodeSize, 2: nodeSize})

	id, ok := c.HitNode(geom.Pt(10, 10))
	require.True(t, ok)
	assert.Equal(t, uint(2), id)

	_, ok = c.HitNode(geom.Pt(490, 10))
	assert.False(t, ok, "unmeasured nodes cannot be hit")
}

func TestHover(t *testing.T) {
	c := newController(t, chainUnits(), nil, Hooks{})

	frame := c.Dispatch(PointerMove{Screen: geom.Pt(250, 10)})
	assert.True(t, frame.Redraw)

	var hovered []uint
	for _, n := range c.Scene().Nodes {
		if n.Hovered {
			hovered = append(hovered, n.ID)
		}
	}
	assert.Equal(t, []uint{2}, hovered)

	frame = c.Dispatch(PointerMove{Screen: geom.Pt(260, 12)})
	assert.False(t, frame.Redraw)
}

func TestMeasure_ReroutesIncidentEdges(t *testing.T) {
	c := newController(t, chainUnits(), nil, Hooks{})

	frame := c.Dispatch(Measure{NodeID: 2, Size: geom.Size{Width: 100, Height: 200}})

	assert.Equal(t, Step{Op: StepResize, NodeID: 2}, frame.Steps[0])
	assert.Equal(t, []graph.EdgeID{"1-2", "2-3"}, frame.Routed)
	e, _ := c.Graph().Edge("1-2")
	assert.Equal(t, geom.Pt(240, 100), e.Geometry.End)

	frame = c.Dispatch(Measure{NodeID: 42, Size: nodeSize})
	assert.Empty(t, frame.Steps)
}

func TestReload_AbortsGestureAndKeepsSelection(t *testing.T) {
	c := newController(t, chainUnits(), nil, Hooks{})
	click(c, geom.Pt(10, 10))

	frame := c.Reload(chainUnits(), nil)
	assert.Equal(t, State{Kind: Selected, NodeID: 1}, frame.State)

	c.Dispatch(PointerDown{Screen: geom.Pt(250, 10)})
	c.Dispatch(PointerMove{Screen: geom.Pt(260, 40)})
	frame = c.Reload(chainUnits()[:1], nil)

	assert.Equal(t, Idle, frame.State.Kind)
	_, active := c.Session()
	assert.False(t, active)
	assert.Equal(t, 1, c.Graph().Len())
}

func TestStateChangedHook(t *testing.T) {
	var transitions []string
	c := newController(t, chainUnits(), nil, Hooks{
		StateChanged: func(from, to State) { transitions = append(transitions, from.String()+">"+to.String()) },
	})

	click(c, geom.Pt(250, 10))
	c.Dispatch(Key{Key: KeyEscape})

	assert.Equal(t, []string{"idle>dragging(2)", "dragging(2)>selected(2)", "selected(2)>idle"}, transitions)
}

func TestDispatch_UnknownSaverErrorIsNotFatal(t *testing.T) {
	saver := &recordingSaver{err: errors.New("queue full")}
	c := newController(t, chainUnits(), saver, Hooks{})

	c.Dispatch(PointerDown{Screen: geom.Pt(730, 10)})
	c.Dispatch(PointerMove{Screen: geom.Pt(740, 10)})

	assert.NotPanics(t, func() { c.Dispatch(PointerUp{Screen: geom.Pt(740, 10)}) })
	assert.Equal(t, geom.Pt(730, 0), nodePosition(t, c, 4))
}

func TestMoveNode_AppliesRemotePosition(t *testing.T) {
	saver := &recordingSaver{}
	c := newController(t, chainUnits(), saver, Hooks{})

	frame := c.MoveNode(2, geom.Pt(240, 200))

	assert.Equal(t, geom.Pt(240, 200), nodePosition(t, c, 2))
	assert.Equal(t, []uint{2}, frame.Moved)
	assert.ElementsMatch(t, []graph.EdgeID{"1-2", "2-3"}, frame.Routed)
	assert.True(t, frame.Redraw)
	assert.Empty(t, saver.saves, "remote moves are never saved again")

	assert.Empty(t, c.MoveNode(2, geom.Pt(240, 200)).Moved)
	assert.Empty(t, c.MoveNode(99, geom.Pt(1, 1)).Moved)
}

func TestMoveNode_LocalDragWins(t *testing.T) {
	c := newController(t, chainUnits(), &recordingSaver{}, Hooks{})
	c.Dispatch(PointerDown{Screen: geom.Pt(250, 10)})
	c.Dispatch(PointerMove{Screen: geom.Pt(260, 20)})

	frame := c.MoveNode(2, geom.Pt(0, 500))

	assert.Empty(t, frame.Moved)
	assert.Equal(t, geom.Pt(250, 10), nodePosition(t, c, 2))

	c.MoveNode(3, geom.Pt(480, 300))
	assert.Equal(t, geom.Pt(480, 300), nodePosition(t, c, 3))
}

func TestResetLayout(t *testing.T) {
	c := newController(t, chainUnits(), &recordingSaver{}, Hooks{})
	c.MoveNode(2, geom.Pt(0, 500))
	c.MoveNode(3, geom.Pt(10, 10))

	frame := c.ResetLayout(layout.Overrides{3: geom.Pt(10, 10)})

	assert.Equal(t, geom.Pt(240, 0), nodePosition(t, c, 2))
	assert.Equal(t, geom.Pt(10, 10), nodePosition(t, c, 3))
	assert.Equal(t, []uint{2}, frame.Moved)
}

func TestResetLayout_AbortsDrag(t *testing.T) {
	saver := &recordingSaver{}
	c := newController(t, chainUnits(), saver, Hooks{})
	c.Dispatch(PointerDown{Screen: geom.Pt(250, 10)})
	c.Dispatch(PointerMove{Screen: geom.Pt(400, 300)})

	frame := c.ResetLayout(nil)

	assert.Equal(t, State{Kind: Selected, NodeID: 2}, frame.State)
	assert.Equal(t, geom.Pt(240, 0), nodePosition(t, c, 2))
	assert.Empty(t, saver.saves)
	_, active := c.Session()
	assert.False(t, active)
}
