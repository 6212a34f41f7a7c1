package forcegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
	"github.com/dd0wney/cluso-forcegraph/pkg/layout"
)

func dragGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	require.NoError(t, g.AddNode("a", graph.Attributes{layout.PinX: 1.0, layout.PinY: 2.0, layout.PinZ: 3.0}))
	require.NoError(t, g.AddNode("b", graph.Attributes{layout.PinX: 5.0}))
	require.NoError(t, g.AddNode("c", nil))
	require.NoError(t, g.AddEdgeWithKey("ab", "a", "b", nil))
	require.NoError(t, g.AddEdgeWithKey("bc", "b", "c", nil))
	return g
}

func hasPin(g *graph.Graph, key, name string) bool {
	v, ok := g.NodeAttribute(key, name)
	return ok && v != nil
}

func TestDragPinsAndReleases(t *testing.T) {
	g := dragGraph(t)
	fg, _ := newEngine(t, WithGraph(g))
	d := fg.DragControls()
	require.NotNil(t, d)

	require.NoError(t, d.Begin("c"))
	for _, name := range pinAttributes {
		assert.True(t, hasPin(g, "c", name), "%s pinned during drag", name)
	}
	require.NoError(t, d.End("c"))
	for _, name := range pinAttributes {
		assert.False(t, hasPin(g, "c", name), "%s released after drag", name)
	}

	require.NoError(t, d.Begin("b"))
	require.NoError(t, d.Move("b", layout.Position{X: 20, Y: 1, Z: 1}))
	require.NoError(t, d.End("b"))
	x, _ := g.NodeAttribute("b", layout.PinX)
	assert.Equal(t, 20.0, x, "pins set before the drag stay at the dropped position")
	assert.False(t, hasPin(g, "b", layout.PinY))
	assert.False(t, hasPin(g, "b", layout.PinZ))
}

func TestDragMovesNodeAndReportsTranslation(t *testing.T) {
	var moves, ends []layout.Position
	var endedKey string
	fg, _ := newEngine(t,
		WithGraph(dragGraph(t)),
		WithCooldownTicks(1),
		OnNodeDrag(func(_ graph.Node, translate layout.Position) { moves = append(moves, translate) }),
		OnNodeDragEnd(func(n graph.Node, translate layout.Position) {
			endedKey = n.Key
			ends = append(ends, translate)
		}),
	)
	fg.TickFrame()
	fg.TickFrame()
	require.False(t, fg.Running())

	d := fg.DragControls()
	require.NoError(t, d.Begin("a"))
	require.NoError(t, d.Move("a", layout.Position{X: 6, Y: 2, Z: 3}))
	require.NoError(t, d.Move("a", layout.Position{X: 11, Y: 2, Z: -3}))
	assert.True(t, fg.Running(), "dragging reheats the simulation")
	assertVec(t, r3.Vec{X: 11, Y: 2, Z: -3}, nodeMesh(t, fg, "a").Pose.Position)

	require.NoError(t, d.End("a"))
	assert.Equal(t, []layout.Position{{X: 5}, {X: 10, Z: -6}}, moves)
	assert.Equal(t, []layout.Position{{X: 10, Z: -6}}, ends)
	assert.Equal(t, "a", endedKey)
}

func TestDragEndWithoutMoveIsSilent(t *testing.T) {
	ends := 0
	fg, _ := newEngine(t,
		WithGraph(dragGraph(t)),
		OnNodeDragEnd(func(graph.Node, layout.Position) { ends++ }),
	)
	d := fg.DragControls()
	require.NoError(t, d.Begin("a"))
	require.NoError(t, d.End("a"))
	assert.Zero(t, ends)
}

func TestDragErrors(t *testing.T) {
	fg, _ := newEngine(t, WithGraph(dragGraph(t)))
	d := fg.DragControls()

	assert.ErrorIs(t, d.Move("a", layout.Position{}), ErrNotDragging)
	assert.ErrorIs(t, d.End("a"), ErrNotDragging)
	assert.ErrorIs(t, d.Begin("missing"), graph.ErrNodeNotFound)

	require.NoError(t, fg.Close())
	assert.ErrorIs(t, d.Begin("a"), ErrClosed)
}

func TestDragDisabled(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"option off", WithNodeDrag(false)},
		{"circular layout", WithForceEngine(layout.KindCircular)},
		{"eades layout", WithForceEngine(layout.KindEades)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fg, _ := newEngine(t, WithGraph(dragGraph(t)), tt.opt)
			assert.Nil(t, fg.DragControls())
			assert.ErrorIs(t, fg.DragNode("a", layout.Position{}), ErrDragDisabled)
		})
	}

	fg, _ := newEngine(t, WithGraph(dragGraph(t)), WithNodeDrag(false))
	require.NoError(t, fg.Set(WithNodeDrag(true)))
	assert.Nil(t, fg.DragControls())
	fg.Update()
	assert.NotNil(t, fg.DragControls(), "re-enabling drag takes effect on the next update")
}

func TestDragControlsReplacedOnUpdate(t *testing.T) {
	fg, _ := newEngine(t, WithGraph(dragGraph(t)))

	idle := fg.DragControls()
	fg.Update()
	assert.True(t, idle.Disposed())
	assert.ErrorIs(t, idle.Begin("a"), ErrControlsDisposed)

	busy := fg.DragControls()
	require.NotSame(t, idle, busy)
	require.NoError(t, busy.Begin("a"))
	fg.Update()

	assert.False(t, busy.Disposed(), "disposal waits for the drag in flight")
	assert.ErrorIs(t, busy.Begin("b"), ErrControlsDisposed)
	require.NoError(t, busy.Move("a", layout.Position{X: 9}))
	require.NoError(t, busy.End("a"))
	assert.True(t, busy.Disposed())

	require.NoError(t, fg.DragControls().Begin("b"))
}

func TestDragNode(t *testing.T) {
	g := dragGraph(t)
	var end layout.Position
	fg, _ := newEngine(t, WithGraph(g),
		OnNodeDragEnd(func(_ graph.Node, translate layout.Position) { end = translate }),
	)

	require.NoError(t, fg.DragNode("a", layout.Position{X: 4, Y: 2, Z: 3}))
	assert.Equal(t, layout.Position{X: 3}, end)

	// the layout picks the pins up on its next step
	fg.TickFrame()
	pos := fg.NodePositions()["a"]
	assert.Equal(t, layout.Position{X: 4, Y: 2, Z: 3}, pos)
}
