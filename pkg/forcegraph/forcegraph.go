// Package forcegraph keeps a mutable graph mirrored onto a 3D scene while a
// force layout moves its nodes. It listens to graph events, rebuilds only
// what changed options affect, shares geometries and materials through a
// resource cache and advances positions, arrows and particles every frame.
package forcegraph

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
	"github.com/dd0wney/cluso-forcegraph/pkg/layout"
	"github.com/dd0wney/cluso-forcegraph/pkg/logging"
	"github.com/dd0wney/cluso-forcegraph/pkg/scene"
)

// cameraDistanceFactor sets how far the camera backs off per cube root of
// the node count
const cameraDistanceFactor = 170

// ErrClosed is returned by operations on a closed ForceGraph
var ErrClosed = errors.New("force graph is closed")

// ForceGraph renders a graph into a scene and animates it.
//
// Every method is safe for concurrent use. Position callbacks run while the
// engine is locked and must not call back into the ForceGraph; the other
// callbacks run after the lock is released.
//
// Graph mutations reach the scene through graph events. A mutation made
// while another goroutine is delivering events returns before its own event
// is applied; call Sync before reading the scene when that matters.
type ForceGraph struct {
	settings

	renderer scene.Renderer
	scene    *scene.Scene
	layout   layout.Engine
	cache    *ResourceCache
	factory  *factory
	bridge   *bridge
	drag     *DragControls
	log      logging.Logger

	nodes map[string]*nodeBinding
	edges map[string]*edgeBinding

	changed     map[OptionName]struct{}
	flush       bool
	running     bool
	paused      bool
	closed      bool
	loading     bool
	ticks       int
	started     time.Time
	lastCameraZ float64

	// pending holds notifications fired once the lock is released
	pending []func()
	mu      sync.Mutex
}

// New creates an engine drawing into renderer (a headless renderer when
// nil) and runs the first update cycle
func New(renderer scene.Renderer, opts ...Option) (*ForceGraph, error) {
	if renderer == nil {
		renderer = scene.NewHeadless()
	}

	f := &ForceGraph{
		settings: defaultSettings(),
		renderer: renderer,
		scene:    scene.NewScene(),
		nodes:    make(map[string]*nodeBinding),
		edges:    make(map[string]*edgeBinding),
		changed:  make(map[OptionName]struct{}),
	}
	f.applyOptions(opts)
	if f.graph == nil {
		f.graph = graph.New()
	}

	f.log = f.logger.With(logging.Component("forcegraph"))
	f.cache = NewResourceCache(f.tracker, f.metrics)
	f.factory = newFactory(&f.settings, f.cache)
	f.bridge = newBridge(f)
	if cam := renderer.Camera(); cam != nil {
		f.lastCameraZ = cam.Position.Z
	}

	f.mu.Lock()
	if err := f.attachGraph(); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.changed[OptGraph] = struct{}{}
	f.update()
	f.unlock()

	return f, nil
}

func (f *ForceGraph) applyOptions(opts []Option) bool {
	trigger := false
	for _, o := range opts {
		if o.apply == nil {
			continue
		}
		o.apply(&f.settings)
		if o.trigger {
			f.changed[o.name] = struct{}{}
			trigger = true
		}
	}
	return trigger
}

// unlock releases the engine and fires queued notifications
func (f *ForceGraph) unlock() {
	pending := f.pending
	f.pending = nil
	f.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

// notify queues fn for delivery after the lock is released
func (f *ForceGraph) notify(fn func()) {
	if fn != nil {
		f.pending = append(f.pending, fn)
	}
}

// Set applies opts. Replacing the graph moves the listeners and rebuilds
// the layout; when any option affects the scene an update cycle runs.
func (f *ForceGraph) Set(opts ...Option) error {
	f.mu.Lock()
	defer f.unlock()

	if f.closed {
		return ErrClosed
	}

	prevGraph := f.graph
	prevEngine, prevPhysics, prevDims := f.forceEngine, f.physics, f.numDimensions
	prevLogger := f.logger

	trigger := f.applyOptions(opts)
	if f.logger != prevLogger {
		f.log = f.logger.With(logging.Component("forcegraph"))
	}
	f.cache.instrument(f.tracker, f.metrics)

	var err error
	switch {
	case f.graph != prevGraph:
		if f.graph == nil {
			f.graph = graph.New()
		}
		err = f.attachGraph()
	case f.forceEngine != prevEngine || f.physics != prevPhysics:
		err = f.rebuildLayout()
	case f.numDimensions != prevDims:
		f.layout.SetDimensions(f.numDimensions)
	}
	if err != nil {
		return err
	}

	if trigger {
		f.update()
	}
	return nil
}

// attachGraph tears down everything bound to the previous graph, subscribes
// to the current one and builds a fresh layout over it
func (f *ForceGraph) attachGraph() error {
	f.running = false
	f.teardownBindings()
	f.bridge.subscribe(f.graph)

	if err := f.rebuildLayout(); err != nil {
		return err
	}
	f.flush = true
	f.log.Debug("graph attached",
		logging.Count(f.graph.Order()),
		logging.Int("edges", f.graph.Size()))
	return nil
}

func (f *ForceGraph) rebuildLayout() error {
	engine, err := layout.New(f.forceEngine, f.graph, f.numDimensions, f.physics)
	if err != nil {
		return fmt.Errorf("create layout: %w", err)
	}
	if f.layout != nil {
		f.layout.Dispose()
	}
	f.layout = engine
	f.running = false
	return nil
}

// teardownBindings destroys every bound renderable
func (f *ForceGraph) teardownBindings() {
	for key := range f.edges {
		f.dropEdge(key)
	}
	for key := range f.nodes {
		f.dropNode(key)
	}
}

// Update runs one update cycle for the options changed since the last one
func (f *ForceGraph) Update() {
	f.mu.Lock()
	defer f.unlock()
	if !f.closed {
		f.update()
	}
}

// Refresh rebuilds every visible object and resets the resource cache
func (f *ForceGraph) Refresh() {
	f.mu.Lock()
	defer f.unlock()
	if !f.closed {
		f.flush = true
		f.update()
	}
}

func (f *ForceGraph) update() {
	f.running = false
	f.aimCamera()

	changed := make([]OptionName, 0, len(f.changed))
	for name := range f.changed {
		changed = append(changed, name)
	}
	f.changed = make(map[OptionName]struct{})

	// held resources survive the flush; rebuilt objects get fresh ones
	if f.flush {
		f.cache.InvalidateAll()
	}
	f.reconcile(changed)
	f.flush = false

	if layoutChanged(changed) {
		for i := 0; i < f.warmupTicks; i++ {
			if f.layout.Step() {
				break
			}
		}
		f.resetCountdown()
	}

	f.running = true
	f.setupDrag()

	if f.metrics != nil {
		f.metrics.UpdateGraphMetrics(f.graph.Order(), f.graph.Size())
		f.metrics.SetEngineRunning(true)
	}
}

func layoutChanged(changed []OptionName) bool {
	for _, name := range changed {
		switch name {
		case OptGraph, OptNumDimensions, OptForceEngine, OptPhysics:
			return true
		}
	}
	return false
}

// aimCamera backs the camera off to fit the graph while it has not been
// moved from where the engine last put it
func (f *ForceGraph) aimCamera() {
	cam := f.renderer.Camera()
	order := f.graph.Order()
	if cam == nil || order == 0 {
		return
	}
	if cam.Position.X != 0 || cam.Position.Y != 0 || cam.Position.Z != f.lastCameraZ {
		return
	}
	cam.Target = r3.Vec{}
	cam.Position.Z = math.Cbrt(float64(order)) * cameraDistanceFactor
	f.lastCameraZ = cam.Position.Z
}

// ResetCountdown restarts the cooldown and the simulation
func (f *ForceGraph) ResetCountdown() {
	f.mu.Lock()
	defer f.unlock()
	f.resetCountdown()
}

func (f *ForceGraph) resetCountdown() {
	f.ticks = 0
	f.started = f.clock.Now()
	f.running = true
	if f.metrics != nil {
		f.metrics.SetEngineRunning(true)
	}
}

// PauseAnimation stops frame scheduling in Run
func (f *ForceGraph) PauseAnimation() {
	f.mu.Lock()
	defer f.unlock()
	f.paused = true
}

// ResumeAnimation restarts frame scheduling in Run
func (f *ForceGraph) ResumeAnimation() {
	f.mu.Lock()
	defer f.unlock()
	f.paused = false
}

// Paused reports whether frame scheduling is paused
func (f *ForceGraph) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

// Running reports whether the simulation is still cooling down
func (f *ForceGraph) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Frame advances one frame and renders the scene
func (f *ForceGraph) Frame() error {
	f.mu.Lock()
	defer f.unlock()

	if f.closed {
		return ErrClosed
	}
	f.tickFrame()
	if err := f.renderer.Render(f.scene); err != nil {
		return fmt.Errorf("render frame: %w", err)
	}
	return nil
}

// Run drives frames until ctx is done or the engine is closed. Frames are
// skipped while the animation is paused.
func (f *ForceGraph) Run(ctx context.Context) error {
	f.mu.Lock()
	interval := f.frameInterval
	f.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f.mu.Lock()
			closed, paused := f.closed, f.paused
			f.mu.Unlock()
			if closed {
				return nil
			}
			if paused {
				continue
			}
			if err := f.Frame(); err != nil {
				if errors.Is(err, ErrClosed) {
					return nil
				}
				return err
			}
		}
	}
}

// EmitParticle sends a single particle along a rendered edge. Unknown or
// hidden edges are ignored.
func (f *ForceGraph) EmitParticle(edgeKey string) {
	f.mu.Lock()
	defer f.unlock()

	b, ok := f.edges[edgeKey]
	if !ok || f.closed {
		return
	}
	if b.singleHop == nil {
		b.singleHop = scene.NewGroup()
		b.singleHop.Tag = &scene.Tag{Role: scene.RoleSingleHopPhotons, Key: edgeKey, Attributes: b.el.Attributes, Default: true}
		f.scene.Root.Add(b.singleHop)
		f.recordCreated(scene.RoleSingleHopPhotons)
	}
	b.singleHop.Add(f.factory.newParticle(b.el, f.factory.photonGeometry(b.el), f.factory.photonMaterial(b.el)))
}

// GraphBBox returns the world bounding box of the rendered nodes accepted
// by filter (all when nil) plus arrows and particles. It returns nil when
// there is nothing to bound.
func (f *ForceGraph) GraphBBox(filter func(graph.Node) bool) *r3.Box {
	f.mu.Lock()
	defer f.unlock()

	var (
		box   r3.Box
		found bool
	)
	for _, child := range f.scene.Root.Children() {
		tag := child.Base().Tag
		if tag != nil && tag.Role == scene.RoleLink {
			continue
		}
		if tag != nil && tag.Role == scene.RoleNode && filter != nil {
			if !filter(graph.Node{Key: tag.Key, Attributes: tag.Attributes}) {
				continue
			}
		}
		b, ok := scene.WorldBox(child)
		if !ok {
			continue
		}
		if !found {
			box, found = b, true
			continue
		}
		box = scene.UnionBox(box, b)
	}
	if !found {
		return nil
	}
	return &box
}

// ZoomToFit points the camera at the bounding box of the nodes accepted by
// filter. It reports false when there is nothing to fit.
func (f *ForceGraph) ZoomToFit(padding float64, filter func(graph.Node) bool) bool {
	box := f.GraphBBox(filter)
	if box == nil {
		return false
	}

	f.mu.Lock()
	defer f.unlock()
	cam := f.renderer.Camera()
	if cam == nil {
		return false
	}
	cam.FitToBox(*box, padding)
	f.lastCameraZ = math.NaN()
	return true
}

// GraphObject returns the tag of the node or link that obj belongs to
func (f *ForceGraph) GraphObject(obj scene.Object) (*scene.Tag, bool) {
	f.mu.Lock()
	defer f.unlock()
	return scene.OwnerOf(obj)
}

// Sync waits until graph events published so far have been applied to the
// scene. It must not be called from a graph event handler or callback.
func (f *ForceGraph) Sync() {
	if g := f.Graph(); g != nil {
		g.Sync()
	}
}

// Graph returns the rendered graph
func (f *ForceGraph) Graph() *graph.Graph {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.graph
}

// Scene returns the scene the engine draws into
func (f *ForceGraph) Scene() *scene.Scene {
	return f.scene
}

// Renderer returns the rendering backend
func (f *ForceGraph) Renderer() scene.Renderer {
	return f.renderer
}

// Camera returns a snapshot of the renderer's camera
func (f *ForceGraph) Camera() (scene.Camera, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cam := f.renderer.Camera()
	if cam == nil {
		return scene.Camera{}, false
	}
	return *cam, true
}

// Cache returns the engine's resource cache
func (f *ForceGraph) Cache() *ResourceCache {
	return f.cache
}

// NodePositions returns the current layout position of every node
func (f *ForceGraph) NodePositions() map[string]layout.Position {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]layout.Position, f.graph.Order())
	f.graph.ForEachNode(func(n graph.Node) {
		if pos, ok := f.layout.NodePosition(n.Key); ok {
			out[n.Key] = pos
		}
	})
	return out
}

// Stats describes the engine state
type Stats struct {
	Nodes      int  `json:"nodes" yaml:"nodes"`
	Edges      int  `json:"edges" yaml:"edges"`
	BoundNodes int  `json:"boundNodes" yaml:"boundNodes"`
	BoundLinks int  `json:"boundLinks" yaml:"boundLinks"`
	Arrows     int  `json:"arrows" yaml:"arrows"`
	Particles  int  `json:"particles" yaml:"particles"`
	Ticks      int  `json:"ticks" yaml:"ticks"`
	Running    bool `json:"running" yaml:"running"`
	Paused     bool `json:"paused" yaml:"paused"`
	Loading    bool `json:"loading" yaml:"loading"`
	Closed     bool `json:"closed" yaml:"closed"`
}

// Stats returns a snapshot of the engine state
func (f *ForceGraph) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := Stats{
		Nodes:      f.graph.Order(),
		Edges:      f.graph.Size(),
		BoundNodes: len(f.nodes),
		BoundLinks: len(f.edges),
		Ticks:      f.ticks,
		Running:    f.running,
		Paused:     f.paused,
		Loading:    f.loading,
		Closed:     f.closed,
	}
	for _, b := range f.edges {
		if b.arrow != nil {
			s.Arrows++
		}
		if b.photons != nil {
			s.Particles += b.photons.ChildCount()
		}
		if b.singleHop != nil {
			s.Particles += b.singleHop.ChildCount()
		}
	}
	return s
}

// Close unsubscribes from the graph and releases every renderable. The
// engine cannot be used afterwards.
func (f *ForceGraph) Close() error {
	f.mu.Lock()
	defer f.unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	f.running = false
	f.paused = true
	f.bridge.unsubscribe()
	if f.drag != nil {
		f.drag.dispose()
		f.drag = nil
	}
	f.teardownBindings()
	f.layout.Dispose()
	f.cache.InvalidateAll()
	if f.metrics != nil {
		f.metrics.SetEngineRunning(false)
	}
	f.log.Debug("closed")
	return nil
}

func (f *ForceGraph) recordCreated(role scene.Role) {
	if f.metrics != nil {
		f.metrics.RecordObjectCreated(string(role))
	}
}

func (f *ForceGraph) recordDestroyed(role scene.Role) {
	if f.metrics != nil {
		f.metrics.RecordObjectDestroyed(string(role))
	}
}
