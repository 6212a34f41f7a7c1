package layout

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
)

func chain(t *testing.T, keys ...string) *graph.Graph {
	t.Helper()
	g := graph.New()
	for _, k := range keys {
		require.NoError(t, g.AddNode(k, nil))
	}
	for i := 1; i < len(keys); i++ {
		require.NoError(t, g.AddEdgeWithKey(keys[i-1]+"-"+keys[i], keys[i-1], keys[i], nil))
	}
	return g
}

func distance(a, b Position) float64 {
	return math.Sqrt((a.X-b.X)*(a.X-b.X) + (a.Y-b.Y)*(a.Y-b.Y) + (a.Z-b.Z)*(a.Z-b.Z))
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"", KindForce},
		{"ngraph", KindForce},
		{"D3", KindForce},
		{"eades", KindEades},
		{" circular ", KindCircular},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseKind("spiral")
	assert.True(t, errors.Is(err, ErrUnknownKind))

	_, err = New("spiral", graph.New(), 3, DefaultPhysics())
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestForceLayoutPositionsEveryNode(t *testing.T) {
	g := chain(t, "a", "b", "c")
	fl := NewForceLayout(g, 3, DefaultPhysics())

	for i := 0; i < 50; i++ {
		fl.Step()
	}
	for _, k := range []string{"a", "b", "c"} {
		p, ok := fl.NodePosition(k)
		require.True(t, ok, k)
		assert.True(t, p.Valid(), k)
	}

	from, to, ok := fl.EdgePosition("a-b")
	require.True(t, ok)
	a, _ := fl.NodePosition("a")
	b, _ := fl.NodePosition("b")
	assert.Equal(t, a, from)
	assert.Equal(t, b, to)

	_, ok = fl.NodePosition("missing")
	assert.False(t, ok)
	_, _, ok = fl.EdgePosition("missing")
	assert.False(t, ok)
}

func TestForceLayoutSeparatesNodes(t *testing.T) {
	g := chain(t, "a", "b")
	fl := NewForceLayout(g, 2, DefaultPhysics())
	for i := 0; i < 300; i++ {
		fl.Step()
	}
	a, _ := fl.NodePosition("a")
	b, _ := fl.NodePosition("b")
	assert.Greater(t, distance(a, b), 1.0)
	assert.Zero(t, a.Z, "2D layout keeps z at zero")
}

func TestForceLayoutDeterministicWithSeed(t *testing.T) {
	run := func() Position {
		g := chain(t, "a", "b", "c", "d")
		fl := NewForceLayout(g, 3, DefaultPhysics())
		for i := 0; i < 20; i++ {
			fl.Step()
		}
		p, _ := fl.NodePosition("c")
		return p
	}
	assert.Equal(t, run(), run())
}

func TestForceLayoutResyncsOnTopologyChange(t *testing.T) {
	g := chain(t, "a", "b")
	fl := NewForceLayout(g, 3, DefaultPhysics())
	fl.Step()
	before, _ := fl.NodePosition("a")

	require.NoError(t, g.AddNode("c", nil))
	_, ok := fl.NodePosition("c")
	assert.True(t, ok, "new node is picked up without a listener")

	after, _ := fl.NodePosition("a")
	assert.Equal(t, before, after, "existing bodies keep their state")

	require.NoError(t, g.DropNode("a"))
	_, ok = fl.NodePosition("a")
	assert.False(t, ok)
}

func TestForceLayoutPinnedNode(t *testing.T) {
	g := chain(t, "a", "b", "c")
	require.NoError(t, g.SetNodeAttribute("b", PinX, 5))
	require.NoError(t, g.SetNodeAttribute("b", PinY, -7.5))
	require.NoError(t, g.SetNodeAttribute("b", PinZ, 0))

	fl := NewForceLayout(g, 3, DefaultPhysics())
	for i := 0; i < 30; i++ {
		fl.Step()
	}
	p, _ := fl.NodePosition("b")
	assert.Equal(t, Position{X: 5, Y: -7.5, Z: 0}, p)
}

func TestForceLayoutSetDimensions(t *testing.T) {
	g := chain(t, "a", "b", "c")
	fl := NewForceLayout(g, 3, DefaultPhysics())
	fl.Step()

	fl.SetDimensions(1)
	assert.Equal(t, 1, fl.Dimensions())
	for i := 0; i < 10; i++ {
		fl.Step()
	}
	p, _ := fl.NodePosition("a")
	assert.Zero(t, p.Y)
	assert.Zero(t, p.Z)

	fl.SetDimensions(7)
	assert.Equal(t, 3, fl.Dimensions())
}

func TestForceLayoutEmptyAndDisposed(t *testing.T) {
	g := graph.New()
	fl := NewForceLayout(g, 3, DefaultPhysics())
	assert.True(t, fl.Step(), "empty graph is converged")

	require.NoError(t, g.AddNode("a", nil))
	fl.Step()
	fl.Dispose()
	assert.True(t, fl.Step())
	_, ok := fl.NodePosition("a")
	assert.False(t, ok)
}

func TestForceLayoutSelfLoop(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddNode("a", nil))
	require.NoError(t, g.AddEdgeWithKey("loop", "a", "a", nil))

	fl := NewForceLayout(g, 3, DefaultPhysics())
	for i := 0; i < 5; i++ {
		fl.Step()
	}
	from, to, ok := fl.EdgePosition("loop")
	require.True(t, ok)
	assert.Equal(t, from, to)
	assert.True(t, from.Valid())
}

func TestEadesLayout(t *testing.T) {
	g := chain(t, "a", "b", "c")
	require.NoError(t, g.AddEdgeWithKey("loop", "c", "c", nil))

	physics := DefaultPhysics()
	physics.EadesUpdates = 25
	engine, err := New(KindEades, g, 3, physics)
	require.NoError(t, err)

	steps := 0
	for !engine.Step() {
		steps++
		require.Less(t, steps, 100, "eades must converge within its update budget")
	}

	a, ok := engine.NodePosition("a")
	require.True(t, ok)
	assert.Zero(t, a.Z)
	assert.Equal(t, 2, engine.Dimensions())
	assert.True(t, a.Valid())
}

func TestCircularLayout(t *testing.T) {
	g := chain(t, "a", "b", "c", "d")
	engine, err := New(KindCircular, g, 2, DefaultPhysics())
	require.NoError(t, err)
	assert.True(t, engine.Step())

	a, _ := engine.NodePosition("a")
	c, _ := engine.NodePosition("c")
	assert.InDelta(t, -a.X, c.X, 1e-9, "opposite on the ring")
	assert.InDelta(t, distance(a, Position{}), distance(c, Position{}), 1e-9)

	engine.SetDimensions(1)
	a, _ = engine.NodePosition("a")
	d, _ := engine.NodePosition("d")
	assert.Zero(t, a.Y)
	assert.InDelta(t, 3*DefaultPhysics().SpringLength, d.X-a.X, 1e-9)
}

func TestPositionValid(t *testing.T) {
	assert.True(t, Position{X: 1}.Valid())
	assert.False(t, Position{X: math.NaN()}.Valid())
	assert.False(t, Position{Z: math.Inf(1)}.Valid())
}
