package forcegraph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
	"github.com/dd0wney/cluso-forcegraph/pkg/layout"
	"github.com/dd0wney/cluso-forcegraph/pkg/logging"
)

var (
	// ErrControlsDisposed is returned when a drag starts on replaced controls
	ErrControlsDisposed = errors.New("drag controls disposed")
	// ErrNotDragging is returned by Move and End for a node not being dragged
	ErrNotDragging = errors.New("node is not being dragged")
	// ErrDragDisabled is returned when node drag is off or unsupported by
	// the layout engine
	ErrDragDisabled = errors.New("node drag is disabled")
)

var pinAttributes = [3]string{layout.PinX, layout.PinY, layout.PinZ}

// dragState remembers a node's pins and position from before the drag
type dragState struct {
	fixed   [3]bool
	initial layout.Position
	current layout.Position
	dragged bool
}

// DragControls pins nodes while they are dragged. Controls are replaced on
// every update cycle; controls replaced mid-drag keep serving that drag and
// are disposed when it ends.
type DragControls struct {
	f        *ForceGraph
	graph    *graph.Graph
	active   map[string]*dragState
	disposed bool
	// deferred is set when the controls were replaced mid-drag
	deferred bool
	mu       sync.Mutex
}

func newDragControls(f *ForceGraph, g *graph.Graph) *DragControls {
	return &DragControls{f: f, graph: g, active: make(map[string]*dragState)}
}

// setupDrag replaces the drag controls after an update cycle
func (f *ForceGraph) setupDrag() {
	if f.drag != nil {
		f.drag.dispose()
		f.drag = nil
	}
	if f.enableNodeDrag && f.forceEngine == layout.KindForce {
		f.drag = newDragControls(f, f.graph)
	}
}

// DragControls returns the current drag controls, or nil when drag is off
func (f *ForceGraph) DragControls() *DragControls {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drag
}

// DragNode is a convenience wrapper that drags key to pos in one gesture
func (f *ForceGraph) DragNode(key string, pos layout.Position) error {
	d := f.DragControls()
	if d == nil {
		return ErrDragDisabled
	}
	if err := d.Begin(key); err != nil {
		return err
	}
	if err := d.Move(key, pos); err != nil {
		return err
	}
	return d.End(key)
}

// dispose releases the controls, or defers that to the end of the drag in
// flight
func (d *DragControls) dispose() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.active) > 0 {
		d.deferred = true
		return
	}
	d.disposed = true
}

// Disposed reports whether the controls stopped accepting drags
func (d *DragControls) Disposed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disposed
}

// Begin starts dragging key. The node is pinned where it currently is.
func (d *DragControls) Begin(key string) error {
	d.f.mu.Lock()
	if d.f.closed {
		d.f.unlock()
		return ErrClosed
	}
	pos, ok := d.f.layout.NodePosition(key)
	d.f.unlock()
	if !ok {
		return fmt.Errorf("begin drag %q: %w", key, graph.ErrNodeNotFound)
	}

	d.mu.Lock()
	if d.disposed || d.deferred {
		d.mu.Unlock()
		return ErrControlsDisposed
	}
	if _, dragging := d.active[key]; !dragging {
		st := &dragState{initial: pos, current: pos}
		for i, name := range pinAttributes {
			v, set := d.graph.NodeAttribute(key, name)
			st.fixed[i] = set && v != nil
		}
		d.active[key] = st
	}
	d.mu.Unlock()

	return d.pin(key, pos)
}

// Move drags key to pos, restarting the simulation
func (d *DragControls) Move(key string, pos layout.Position) error {
	var translate layout.Position
	d.mu.Lock()
	st, ok := d.active[key]
	if ok {
		st.current = pos
		st.dragged = true
		translate = st.translate()
	}
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("move %q: %w", key, ErrNotDragging)
	}

	if err := d.pin(key, pos); err != nil {
		return err
	}

	d.f.mu.Lock()
	defer d.f.unlock()
	if b, bound := d.f.nodes[key]; bound {
		b.obj.Base().Pose.Position = vec(pos)
	}
	d.f.resetCountdown()
	if fn := d.f.onNodeDrag; fn != nil {
		node := d.snapshot(key)
		d.f.notify(func() { fn(node, translate) })
	}
	return nil
}

// End releases key. Pins the node did not have before the drag are removed.
func (d *DragControls) End(key string) error {
	d.mu.Lock()
	st, ok := d.active[key]
	delete(d.active, key)
	if d.deferred && len(d.active) == 0 {
		d.disposed = true
	}
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("end drag %q: %w", key, ErrNotDragging)
	}

	for i, name := range pinAttributes {
		if st.fixed[i] {
			continue
		}
		if err := d.graph.RemoveNodeAttribute(key, name); err != nil && !errors.Is(err, graph.ErrNodeNotFound) {
			return fmt.Errorf("end drag %q: %w", key, err)
		}
	}

	d.f.mu.Lock()
	defer d.f.unlock()
	if fn := d.f.onNodeDragEnd; fn != nil && st.dragged {
		node, translate := d.snapshot(key), st.translate()
		d.f.notify(func() { fn(node, translate) })
	}
	d.f.resetCountdown()
	d.f.log.Debug("drag ended", logging.NodeKey(key), logging.Bool("dragged", st.dragged))
	return nil
}

// pin fixes every coordinate of key to pos
func (d *DragControls) pin(key string, pos layout.Position) error {
	for i, v := range []float64{pos.X, pos.Y, pos.Z} {
		if err := d.graph.SetNodeAttribute(key, pinAttributes[i], v); err != nil {
			return fmt.Errorf("pin %q: %w", key, err)
		}
	}
	return nil
}

func (d *DragControls) snapshot(key string) graph.Node {
	n, err := d.graph.Node(key)
	if err != nil {
		return graph.Node{Key: key}
	}
	return n
}

func (st *dragState) translate() layout.Position {
	return layout.Position{
		X: st.current.X - st.initial.X,
		Y: st.current.Y - st.initial.Y,
		Z: st.current.Z - st.initial.Z,
	}
}
