package graph

import (
	"dashboard/internal/api/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain() *Graph {
	return Build([]models.Unit{
		command(1, nil),
		command(2, ptr(uint(1))),
		command(3, ptr(uint(2))),
		command(4, nil),
	}, BuildOptions{})
}

func TestAddEdge_Noops(t *testing.T) {
	tests := []struct {
		name   string
		parent uint
		child  uint
		want   ConnectResult
	}{
		{"self", 2, 2, NoopSelf},
		{"missing parent", 42, 2, NoopMissingNode},
		{"missing child", 2, 42, NoopMissingNode},
		{"existing edge", 1, 2, NoopDuplicate},
		{"closes a cycle", 3, 1, NoopCycle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := chain()
			before := g.EdgeCount()

			result, created, replaced := g.AddEdge(tt.parent, tt.child)

			assert.Equal(t, tt.want, result)
			assert.False(t, result.Changed())
			assert.Nil(t, created)
			assert.Nil(t, replaced)
			assert.Equal(t, before, g.EdgeCount())
		})
	}
}

func TestAddEdge_ConnectsRoot(t *testing.T) {
	g := chain()

	result, created, replaced := g.AddEdge(3, 4)

	require.Equal(t, Connected, result)
	assert.Equal(t, EdgeID("3-4"), created.ID)
	assert.Nil(t, replaced)
	assert.Equal(t, 3, g.EdgeCount())
	assert.Equal(t, []uint{1, 2, 3, 4}, g.Order())
	assert.Equal(t, 3, g.Levels()[4])
	assert.Equal(t, []uint{1}, g.Roots())
}

func TestAddEdge_Reparents(t *testing.T) {
	g := chain()

	result, created, replaced := g.AddEdge(1, 3)

	require.Equal(t, Reparented, result)
	assert.Equal(t, EdgeID("1-3"), created.ID)
	require.NotNil(t, replaced)
	assert.Equal(t, EdgeID("2-3"), replaced.ID)
	assert.False(t, g.HasEdge(2, 3))
	assert.Equal(t, []uint{2, 3}, g.Children(1))
	assert.Equal(t, 1, g.Levels()[3])
}

func TestRemoveNode_DropsIncidentEdges(t *testing.T) {
	g := chain()

	removed, ok := g.RemoveNode(2)

	require.True(t, ok)
	require.Len(t, removed, 2)
	assert.Equal(t, EdgeID("1-2"), removed[0].ID)
	assert.Equal(t, EdgeID("2-3"), removed[1].ID)

	assert.Equal(t, 3, g.Len())
	assert.Equal(t, 0, g.EdgeCount())
	assert.False(t, g.HasEdge(1, 3))
	assert.Empty(t, g.IncidentEdges(1))
	assert.Empty(t, g.IncidentEdges(3))
	assert.Equal(t, []uint{1, 3, 4}, g.Order())
	assert.Equal(t, 0, g.Levels()[3])

	_, again := g.RemoveNode(2)
	assert.False(t, again)
}

func TestRemoveEdge(t *testing.T) {
	g := chain()

	e, ok := g.RemoveEdge("1-2")

	require.True(t, ok)
	assert.Equal(t, uint(1), e.ParentID)
	assert.Equal(t, []uint{1, 2, 4}, g.Roots())
	assert.Equal(t, 1, g.Levels()[3])

	_, ok = g.RemoveEdge("1-2")
	assert.False(t, ok)
}

func TestEdges_EveryEdgeReferencesExistingNodes(t *testing.T) {
	g := chain()
	g.AddEdge(4, 1)
	g.RemoveNode(3)

	for _, e := range g.Edges() {
		_, okParent := g.Node(e.ParentID)
		_, okChild := g.Node(e.ChildID)
		assert.True(t, okParent, "edge %s parent", e.ID)
		assert.True(t, okChild, "edge %s child", e.ID)
	}
}
