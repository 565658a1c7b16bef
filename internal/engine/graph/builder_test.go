package graph

import (
	"dashboard/internal/api/models"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func command(id uint, parent *uint) models.Unit {
	return models.Unit{ID: id, PipelineID: 1, ParentID: parent, CommandID: ptr(id)}
}

func TestBuild_ChainWithOrphans(t *testing.T) {
	// A -> B -> C plus two units without parent
	units := []models.Unit{
		command(1, nil),
		command(2, ptr(uint(1))),
		command(3, ptr(uint(2))),
		command(4, nil),
		command(5, nil),
	}

	g := Build(units, BuildOptions{})

	assert.Equal(t, []uint{1, 2, 3, 4, 5}, g.Order())
	assert.Equal(t, map[uint]int{1: 0, 2: 1, 3: 2, 4: 0, 5: 0}, g.Levels())
	assert.Equal(t, []uint{1, 4, 5}, g.Roots())
	assert.False(t, g.Degraded())
	assert.Empty(t, g.Diagnostics())

	assert.Equal(t, 2, g.EdgeCount())
	assert.True(t, g.HasEdge(1, 2))
	assert.True(t, g.HasEdge(2, 3))
	assert.Equal(t, []EdgeID{"1-2", "2-3"}, g.IncidentEdges(2))
}

func TestBuild_MalformedRecords(t *testing.T) {
	units := []models.Unit{
		command(1, ptr(uint(2))),
		command(2, ptr(uint(1))),
		command(3, ptr(uint(99))),
		command(4, ptr(uint(4))),
		command(1, nil), // duplicate, dropped
	}

	g := Build(units, BuildOptions{})

	require.Equal(t, 4, g.Len())
	assert.Equal(t, []uint{3, 4, 1, 2}, g.Order())
	assert.True(t, g.Degraded())

	levels := g.Levels()
	assert.Equal(t, 0, levels[3])
	assert.Equal(t, 0, levels[4])
	assert.Equal(t, 0, levels[1])
	assert.Equal(t, 1, levels[2])

	n1, _ := g.Node(1)
	assert.True(t, n1.Orphan)
	parent, ok := g.Parent(1)
	require.True(t, ok, "first record wins for duplicated ids")
	assert.Equal(t, uint(2), parent)

	codes := map[DiagnosticCode]int{}
	for _, d := range g.Diagnostics() {
		codes[d.Code]++
	}
	assert.Equal(t, 1, codes[DiagDuplicateID])
	assert.Equal(t, 1, codes[DiagDanglingParent])
	assert.Equal(t, 1, codes[DiagSelfParent])
	assert.Equal(t, 1, codes[DiagOrphan])
}

func TestBuild_PureCycleHasNoRoot(t *testing.T) {
	units := []models.Unit{
		command(2, ptr(uint(1))),
		command(1, ptr(uint(2))),
	}

	g := Build(units, BuildOptions{})

	assert.Equal(t, []uint{1, 2}, g.Order())
	assert.Empty(t, g.Roots())
	assert.True(t, g.Degraded())

	found := false
	for _, d := range g.Diagnostics() {
		if d.Code == DiagNoRoot {
			found = true
		}
	}
	assert.True(t, found, "expected a no-root diagnostic")
}

func TestBuild_TerminatesOnLargeCyclicInput(t *testing.T) {
	const count = 300
	units := make([]models.Unit, 0, count)
	for i := uint(1); i <= count; i++ {
		parent := (i*7)%count + 1
		units = append(units, command(i, ptr(parent)))
	}

	g := Build(units, BuildOptions{MaxLevelPasses: 3})

	order := g.Order()
	require.Len(t, order, count)
	seen := make(map[uint]bool, count)
	for _, id := range order {
		assert.False(t, seen[id], "node %d appears twice", id)
		seen[id] = true
	}
	for id, level := range g.Levels() {
		assert.GreaterOrEqual(t, level, 0, "node %d", id)
	}
}

func TestBuild_SiblingsFollowPositions(t *testing.T) {
	units := []models.Unit{
		command(1, nil),
		{ID: 2, ParentID: ptr(uint(1)), ZipID: ptr(uint(1)), Xpos: ptr(100.0), Ypos: ptr(0.0)},
		{ID: 3, ParentID: ptr(uint(1)), ZipID: ptr(uint(2)), Xpos: ptr(0.0), Ypos: ptr(0.0)},
		{ID: 4, ParentID: ptr(uint(1)), ZipID: ptr(uint(3))},
		{ID: 5, UnzipID: ptr(uint(1)), Xpos: ptr(0.0), Ypos: ptr(-10.0)},
	}

	g := Build(units, BuildOptions{})

	assert.Equal(t, []uint{3, 2, 4}, g.Children(1))
	assert.Equal(t, []uint{5, 1, 3, 2, 4}, g.Order())
}

func TestGraph_EdgesFollowChildOrder(t *testing.T) {
	units := []models.Unit{
		command(1, nil),
		command(6, ptr(uint(1))),
		{ID: 2, CommandID: ptr(uint(2)), Xpos: ptr(0.0), Ypos: ptr(0.0)},
		command(5, ptr(uint(2))),
	}

	g := Build(units, BuildOptions{})

	require.Equal(t, []uint{2, 5, 1, 6}, g.Order())
	var ids []EdgeID
	for _, e := range g.Edges() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []EdgeID{"2-5", "1-6"}, ids, "render order, not id order")
}

func TestBuild_IsDeterministic(t *testing.T) {
	units := []models.Unit{
		command(5, ptr(uint(3))),
		command(3, nil),
		command(4, ptr(uint(3))),
		command(1, ptr(uint(9))),
		command(2, nil),
	}
	reversed := make([]models.Unit, len(units))
	for i, u := range units {
		reversed[len(units)-1-i] = u
	}

	a := Build(units, BuildOptions{})
	b := Build(reversed, BuildOptions{})

	assert.Equal(t, a.Order(), b.Order())
	assert.Equal(t, a.Levels(), b.Levels())
}

func TestResolveKind(t *testing.T) {
	tests := []struct {
		name string
		unit models.Unit
		want KindName
		ok   bool
	}{
		{"command", models.Unit{ID: 1, CommandID: ptr(uint(7))}, KindCommand, true},
		{"query queue", models.Unit{ID: 1, QueryQueueID: ptr(uint(7))}, KindQueryQueue, true},
		{"sftp download", models.Unit{ID: 1, SftpDownloadID: ptr(uint(7))}, KindSftpDownload, true},
		{"sftp upload", models.Unit{ID: 1, SftpUploadID: ptr(uint(7))}, KindSftpUpload, true},
		{"zip", models.Unit{ID: 1, ZipID: ptr(uint(7))}, KindZip, true},
		{"unzip", models.Unit{ID: 1, UnzipID: ptr(uint(7))}, KindUnzip, true},
		{"pipeline call", models.Unit{ID: 1, CallPipelineID: ptr(uint(7))}, KindPipelineCall, true},
		{"none", models.Unit{ID: 1}, KindUnknown, false},
		{"two selectors", models.Unit{ID: 1, ZipID: ptr(uint(1)), UnzipID: ptr(uint(2))}, KindUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := ResolveKind(tt.unit)
			assert.Equal(t, tt.want, kind.Name())
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, uint(7), kind.RefID())
			}
		})
	}
}

func TestBuild_Labels(t *testing.T) {
	units := []models.Unit{
		{ID: 1, Name: "  Fetch files ", SftpDownloadID: ptr(uint(3))},
		{ID: 2, CallPipelineID: ptr(uint(8))},
		{ID: 3, ZipID: ptr(uint(1)), UnzipID: ptr(uint(1))},
	}

	g := Build(units, BuildOptions{})

	labels := map[uint]string{}
	for _, n := range g.Nodes() {
		labels[n.ID] = n.Label
	}
	assert.Equal(t, "Fetch files", labels[1])
	assert.Equal(t, "Pipeline call #2", labels[2])
	assert.Equal(t, "Unknown #3", labels[3])

	var codes []DiagnosticCode
	for _, d := range g.Diagnostics() {
		codes = append(codes, d.Code)
	}
	assert.Equal(t, []DiagnosticCode{DiagAmbiguousKind}, codes)
}

func TestMakeEdgeID(t *testing.T) {
	assert.Equal(t, EdgeID("12-40"), MakeEdgeID(12, 40))
	assert.NotEqual(t, MakeEdgeID(1, 2), MakeEdgeID(2, 1))
	assert.Equal(t, EdgeID(fmt.Sprintf("%d-%d", 3, 3)), MakeEdgeID(3, 3))
}
