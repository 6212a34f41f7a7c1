package forcegraph

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-forcegraph/pkg/accessor"
	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
	"github.com/dd0wney/cluso-forcegraph/pkg/layout"
	"github.com/dd0wney/cluso-forcegraph/pkg/metrics"
	"github.com/dd0wney/cluso-forcegraph/pkg/scene"
)

// fakeClock is a manually advanced Clock
type fakeClock struct {
	now time.Time
	mu  sync.Mutex
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// triangle builds a graph a->b->c->a
func triangle(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, g.AddNode(k, graph.Attributes{"val": 1.0}))
	}
	require.NoError(t, g.AddEdgeWithKey("ab", "a", "b", nil))
	require.NoError(t, g.AddEdgeWithKey("bc", "b", "c", nil))
	require.NoError(t, g.AddEdgeWithKey("ca", "c", "a", nil))
	return g
}

func newEngine(t *testing.T, opts ...Option) (*ForceGraph, *scene.Tracker) {
	t.Helper()
	tracker := scene.NewTracker()
	fg, err := New(nil, append([]Option{WithTracker(tracker), WithClock(newFakeClock())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fg.Close() })
	return fg, tracker
}

func counterVecValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	c, err := vec.GetMetricWithLabelValues(labels...)
	require.NoError(t, err)
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func nodeMesh(t *testing.T, fg *ForceGraph, key string) *scene.Mesh {
	t.Helper()
	fg.mu.Lock()
	defer fg.mu.Unlock()
	b, ok := fg.nodes[key]
	require.True(t, ok, "node %q is not bound", key)
	m, ok := b.primitive().(*scene.Mesh)
	require.True(t, ok, "node %q has no default mesh", key)
	return m
}

func edgeBindingOf(t *testing.T, fg *ForceGraph, key string) *edgeBinding {
	t.Helper()
	fg.mu.Lock()
	defer fg.mu.Unlock()
	b, ok := fg.edges[key]
	require.True(t, ok, "edge %q is not bound", key)
	return b
}

func TestNewBindsEveryElement(t *testing.T) {
	fg, _ := newEngine(t, WithGraph(triangle(t)))

	stats := fg.Stats()
	assert.Equal(t, 3, stats.Nodes)
	assert.Equal(t, 3, stats.Edges)
	assert.Equal(t, 3, stats.BoundNodes)
	assert.Equal(t, 3, stats.BoundLinks)
	assert.True(t, stats.Running)
	assert.Equal(t, 3, fg.Scene().Count(scene.RoleNode))
	assert.Equal(t, 3, fg.Scene().Count(scene.RoleLink))
	assert.Equal(t, 0, fg.Scene().Count(scene.RoleArrow))
}

func TestNewWithoutGraph(t *testing.T) {
	fg, _ := newEngine(t)
	assert.NotNil(t, fg.Graph())
	assert.Equal(t, 0, fg.Stats().Nodes)
	assert.Nil(t, fg.GraphBBox(nil))
	assert.False(t, fg.ZoomToFit(10, nil))
}

func TestNodesShareCachedResources(t *testing.T) {
	fg, _ := newEngine(t, WithGraph(triangle(t)), WithNodeColor(accessor.Const("#336699")))

	a, b := nodeMesh(t, fg, "a"), nodeMesh(t, fg, "b")
	assert.Same(t, a.Geometry(), b.Geometry())
	assert.Same(t, a.Material(), b.Material())
	assert.Equal(t, 1, fg.Cache().Len(TierNodeGeometry))
	assert.Equal(t, 1, fg.Cache().Len(TierNodeMaterial))
}

func TestNodeRadiusFollowsValue(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddNode("small", graph.Attributes{"val": 1.0}))
	require.NoError(t, g.AddNode("big", graph.Attributes{"val": 8.0}))
	require.NoError(t, g.AddNode("none", nil))
	require.NoError(t, g.AddNode("negative", graph.Attributes{"val": -5.0}))

	fg, _ := newEngine(t, WithGraph(g), WithNodeRelSize(4))

	radius := func(key string) float64 {
		return nodeMesh(t, fg, key).Geometry().(*scene.SphereGeometry).Radius
	}
	assert.InDelta(t, 4, radius("small"), 1e-9)
	assert.InDelta(t, 8, radius("big"), 1e-9)
	assert.InDelta(t, 4, radius("none"), 1e-9, "missing values count as one")
	assert.InDelta(t, 0, radius("negative"), 1e-9)
}

func TestGraphEventsUpdateScene(t *testing.T) {
	g := triangle(t)
	fg, _ := newEngine(t, WithGraph(g))

	require.NoError(t, g.AddNode("d", nil))
	_, err := g.AddEdge("c", "d", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, fg.Scene().Count(scene.RoleNode))
	assert.Equal(t, 4, fg.Scene().Count(scene.RoleLink))

	require.NoError(t, g.DropNode("a"))
	assert.Equal(t, 3, fg.Scene().Count(scene.RoleNode))
	assert.Equal(t, 2, fg.Scene().Count(scene.RoleLink), "incident edges are dropped first")

	g.Clear()
	assert.Equal(t, 0, fg.Scene().Count(scene.RoleNode))
	assert.Equal(t, 0, fg.Scene().Count(scene.RoleLink))
}

func TestSyncWaitsForEventsQueuedByOtherGoroutines(t *testing.T) {
	g := triangle(t)
	fg, _ := newEngine(t, WithGraph(g))

	entered := make(chan struct{})
	release := make(chan struct{})
	g.On(graph.EventNodeAdded, func(msg any) {
		if msg.(graph.Node).Key == "slow" {
			close(entered)
			<-release
		}
	})

	go func() { _ = g.AddNode("slow", nil) }()
	<-entered

	require.NoError(t, g.AddNode("queued", nil))
	assert.Equal(t, 4, fg.Scene().Count(scene.RoleNode), "the event waits behind the running dispatch")

	time.AfterFunc(20*time.Millisecond, func() { close(release) })
	fg.Sync()
	assert.Equal(t, 5, fg.Scene().Count(scene.RoleNode))
}

func TestAttributeEventsPatchInPlace(t *testing.T) {
	g := triangle(t)
	fg, _ := newEngine(t, WithGraph(g))

	before := nodeMesh(t, fg, "a")
	require.NoError(t, g.SetNodeAttribute("a", "val", 27.0))
	after := nodeMesh(t, fg, "a")
	assert.Same(t, before, after, "geometry change keeps the object")
	assert.InDelta(t, 12, after.Geometry().(*scene.SphereGeometry).Radius, 1e-9)

	require.NoError(t, g.SetNodeAttribute("a", "color", "#00ff00"))
	assert.Same(t, before, nodeMesh(t, fg, "a"))
	assert.Equal(t, "#00ff00", after.Material().Color.Hex())

	tag, ok := fg.GraphObject(after)
	require.True(t, ok)
	assert.Equal(t, "a", tag.Key)
	assert.Equal(t, "#00ff00", tag.Attributes["color"])
}

func TestVisibilityAttributeAddsAndRemoves(t *testing.T) {
	g := triangle(t)
	require.NoError(t, g.SetNodeAttribute("a", "shown", true))
	require.NoError(t, g.SetNodeAttribute("b", "shown", true))

	fg, _ := newEngine(t, WithGraph(g), WithNodeVisibility("shown"))
	assert.Equal(t, 2, fg.Stats().BoundNodes)

	require.NoError(t, g.SetNodeAttribute("c", "shown", true))
	assert.Equal(t, 3, fg.Stats().BoundNodes)

	require.NoError(t, g.RemoveNodeAttribute("a", "shown"))
	assert.Equal(t, 2, fg.Stats().BoundNodes)
	assert.Equal(t, 2, fg.Scene().Count(scene.RoleNode))
}

func TestHiddenEdgeAttributeUpdateIsIgnored(t *testing.T) {
	g := triangle(t)
	fg, _ := newEngine(t, WithGraph(g), WithLinkVisibility(accessor.Const(false)))
	assert.Equal(t, 0, fg.Stats().BoundLinks)

	require.NoError(t, g.SetEdgeAttribute("ab", "color", "#ff0000"))
	assert.Equal(t, 0, fg.Stats().BoundLinks)
}

func TestReplacingGraphMovesListeners(t *testing.T) {
	first := triangle(t)
	fg, tracker := newEngine(t, WithGraph(first))

	for _, event := range graph.Events {
		assert.Equal(t, 1, first.ListenerCount(event), event)
	}

	second := graph.New()
	require.NoError(t, second.AddNode("solo", nil))
	require.NoError(t, fg.Set(WithGraph(second)))

	for _, event := range graph.Events {
		assert.Equal(t, 0, first.ListenerCount(event), event)
		assert.Equal(t, 1, second.ListenerCount(event), event)
	}
	assert.Equal(t, 1, fg.Stats().BoundNodes)
	assert.Equal(t, 0, fg.Stats().BoundLinks)

	// events from the old graph no longer reach the scene
	require.NoError(t, first.AddNode("ghost", nil))
	assert.Equal(t, 1, fg.Scene().Count(scene.RoleNode))

	require.NoError(t, fg.Set(WithGraph(second)))
	for _, event := range graph.Events {
		assert.Equal(t, 1, second.ListenerCount(event), event)
	}
	assert.Empty(t, tracker.DoubleDisposed())
}

func TestSetOnClosedEngine(t *testing.T) {
	fg, _ := newEngine(t, WithGraph(triangle(t)))
	require.NoError(t, fg.Close())
	require.NoError(t, fg.Close())

	assert.ErrorIs(t, fg.Set(WithNodeRelSize(2)), ErrClosed)
	assert.ErrorIs(t, fg.Frame(), ErrClosed)
	fg.Update()
	fg.Refresh()
	fg.TickFrame()
	fg.EmitParticle("ab")
}

func TestCloseReleasesEverything(t *testing.T) {
	g := triangle(t)
	fg, tracker := newEngine(t,
		WithGraph(g),
		WithLinkWidth(accessor.Const(2.0)),
		WithLinkDirectionalArrowLength(accessor.Const(3.0)),
		WithLinkDirectionalParticles(accessor.Const(2.0)),
	)
	fg.EmitParticle("ab")
	for i := 0; i < 5; i++ {
		require.NoError(t, fg.Frame())
	}
	require.NoError(t, fg.Close())

	assert.NotZero(t, tracker.Tracked())
	assert.Empty(t, tracker.Live(), "every resource is freed")
	assert.Empty(t, tracker.DoubleDisposed())
	assert.Equal(t, 0, fg.Scene().Root.ChildCount())

	for _, event := range graph.Events {
		assert.Equal(t, 0, g.ListenerCount(event), event)
	}
	require.NoError(t, g.AddNode("late", nil))
	assert.Equal(t, 0, fg.Scene().Count(scene.RoleNode))
}

func TestRefreshRebuildsAndFlushesCache(t *testing.T) {
	fg, tracker := newEngine(t, WithGraph(triangle(t)))

	before := nodeMesh(t, fg, "a")
	oldGeometry := before.Geometry()
	fg.Refresh()

	after := nodeMesh(t, fg, "a")
	assert.NotSame(t, before, after)
	assert.NotSame(t, oldGeometry, after.Geometry(), "cache was flushed")
	assert.True(t, oldGeometry.Disposed())
	assert.Empty(t, tracker.DoubleDisposed())
}

func TestEmitParticle(t *testing.T) {
	fg, _ := newEngine(t, WithGraph(triangle(t)), WithLinkDirectionalParticleSpeed(accessor.Const(0.25)))

	fg.EmitParticle("ab")
	fg.EmitParticle("ab")
	fg.EmitParticle("missing")
	assert.Equal(t, 1, fg.Scene().Count(scene.RoleSingleHopPhotons), "particles share one group")
	assert.Equal(t, 2, fg.Stats().Particles)

	for i := 0; i < 3; i++ {
		fg.TickFrame()
	}
	assert.Equal(t, 2, fg.Stats().Particles)

	fg.TickFrame()
	assert.Equal(t, 0, fg.Stats().Particles, "particles are destroyed on arrival")
}

func TestGraphBBoxAndZoomToFit(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddNode("left", graph.Attributes{layout.PinX: -100.0, layout.PinY: 0.0, layout.PinZ: 0.0}))
	require.NoError(t, g.AddNode("right", graph.Attributes{layout.PinX: 100.0, layout.PinY: 0.0, layout.PinZ: 0.0}))

	fg, _ := newEngine(t, WithGraph(g), WithNodeRelSize(4))
	fg.TickFrame()

	box := fg.GraphBBox(nil)
	require.NotNil(t, box)
	assert.InDelta(t, -104, box.Min.X, 1e-6)
	assert.InDelta(t, 104, box.Max.X, 1e-6)

	onlyRight := func(n graph.Node) bool { return n.Key == "right" }
	box = fg.GraphBBox(onlyRight)
	require.NotNil(t, box)
	assert.InDelta(t, 96, box.Min.X, 1e-6)

	require.True(t, fg.ZoomToFit(10, onlyRight))
	cam := fg.Renderer().Camera()
	assert.InDelta(t, 100, cam.Target.X, 1e-6)
	assert.Greater(t, cam.Position.Z, 0.0)

	assert.False(t, fg.ZoomToFit(10, func(graph.Node) bool { return false }))
}

func TestCameraBacksOffWithGraphSize(t *testing.T) {
	fg, _ := newEngine(t, WithGraph(triangle(t)))
	cam := fg.Renderer().Camera()
	assert.InDelta(t, 170*1.4422495703074083, cam.Position.Z, 1e-6)

	// a moved camera is left alone
	cam.Position.X = 5
	require.NoError(t, fg.Set(WithGraph(graph.New())))
	assert.InDelta(t, 5, cam.Position.X, 1e-9)
}

func TestFrameRendersScene(t *testing.T) {
	headless := scene.NewHeadless()
	fg, err := New(headless, WithGraph(triangle(t)), WithClock(newFakeClock()))
	require.NoError(t, err)
	defer fg.Close()

	require.NoError(t, fg.Frame())
	require.NoError(t, fg.Frame())
	assert.Equal(t, 2, headless.Frames())

	summary := headless.Summary()
	assert.Equal(t, 3, summary.Meshes)
	assert.Equal(t, 3, summary.Lines)
	// one shared sphere plus a buffer per line
	assert.Equal(t, 4, summary.Geometries)
	assert.Equal(t, 2, summary.Materials)
}

func TestEngineMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	g := triangle(t)
	fg, _ := newEngine(t, WithMetrics(reg), WithGraph(g))

	assert.Equal(t, 3.0, gaugeValue(t, reg.GraphNodesTotal))
	assert.Equal(t, 3.0, gaugeValue(t, reg.GraphEdgesTotal))
	assert.Equal(t, 3.0, counterVecValue(t, reg.ObjectsCreatedTotal, "node"))
	assert.Equal(t, 3.0, counterVecValue(t, reg.ReconcileActionsTotal, "node", actionRebuild))
	assert.Equal(t, 1.0, gaugeValue(t, reg.EngineRunning))

	require.NoError(t, g.DropNode("a"))
	assert.Equal(t, 1.0, counterVecValue(t, reg.ObjectsDestroyedTotal, "node"))
	assert.Equal(t, 2.0, counterVecValue(t, reg.ObjectsDestroyedTotal, "link"))

	fg.TickFrame()
	var m dto.Metric
	require.NoError(t, reg.TicksTotal.Write(&m))
	assert.Equal(t, 1.0, m.GetCounter().GetValue())
}

func TestRunStopsOnClose(t *testing.T) {
	fg, err := New(nil, WithGraph(triangle(t)), WithFrameInterval(time.Millisecond))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- fg.Run(t.Context()) }()

	assert.Eventually(t, func() bool { return fg.Stats().Ticks > 2 }, time.Second, time.Millisecond)
	require.NoError(t, fg.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestPauseAnimation(t *testing.T) {
	fg, _ := newEngine(t, WithGraph(triangle(t)))
	assert.False(t, fg.Paused())
	fg.PauseAnimation()
	assert.True(t, fg.Paused())
	fg.ResumeAnimation()
	assert.False(t, fg.Paused())
}

func TestNodePositions(t *testing.T) {
	fg, _ := newEngine(t, WithGraph(triangle(t)), WithNumDimensions(2))
	positions := fg.NodePositions()
	require.Len(t, positions, 3)
	for key, pos := range positions {
		assert.True(t, pos.Valid(), key)
		assert.Zero(t, pos.Z, key)
	}
}
