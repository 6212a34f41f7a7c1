package forcegraph

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/dd0wney/cluso-forcegraph/pkg/accessor"
	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
	"github.com/dd0wney/cluso-forcegraph/pkg/scene"
)

// TickFrame advances the layout by one step without rendering
func (f *ForceGraph) TickFrame() {
	f.mu.Lock()
	defer f.unlock()
	if !f.closed {
		f.tickFrame()
	}
}

// tickFrame steps the layout while it is cooling down, then moves nodes,
// links, arrows and particles. Positions are written on the stopping tick
// too; arrows and particles keep moving after the layout stopped.
func (f *ForceGraph) tickFrame() {
	start := f.clock.Now()

	if f.running {
		f.ticks++
		if f.ticks > f.cooldownTicks || f.clock.Now().Sub(f.started) > f.cooldownTime {
			f.running = false
			f.notify(f.onEngineStop)
			if f.metrics != nil {
				f.metrics.RecordEngineStop()
				f.metrics.SetEngineRunning(false)
			}
			f.log.Debug("engine stopped")
		} else {
			f.layout.Step()
			f.notify(f.onEngineTick)
		}
		f.updateNodes()
		f.updateLinks()
	}

	f.updateArrows()
	f.updatePhotons()

	if f.metrics != nil {
		f.metrics.RecordTick(f.clock.Now().Sub(start))
	}
}

func (f *ForceGraph) updateNodes() {
	for key, b := range f.nodes {
		pos, ok := f.layout.NodePosition(key)
		if !ok || !pos.Valid() {
			continue
		}
		if f.nodePositionUpdate != nil {
			target := b.obj
			if b.extended {
				target = b.custom()
			}
			node := graph.Node{Key: key, Attributes: b.el.Attributes}
			if f.nodePositionUpdate(target, pos, node) && !b.extended {
				continue
			}
		}
		b.obj.Base().Pose.Position = vec(pos)
	}
}

func (f *ForceGraph) updateLinks() {
	for key, b := range f.edges {
		from, to, ok := f.layout.EdgePosition(key)
		if !ok || !from.Valid() || !to.Valid() {
			continue
		}
		start, end := vec(from), vec(to)
		b.curve = f.factory.linkCurve(b.el, start, end)

		if f.linkPositionUpdate != nil {
			target := b.obj
			if b.extended {
				target = b.custom()
			}
			edge := graph.Edge{Key: key, Source: b.el.Source, Target: b.el.Target, Attributes: b.el.Attributes}
			if f.linkPositionUpdate(target, from, to, edge) && !b.extended {
				continue
			}
		}

		switch p := b.primitive().(type) {
		case *scene.Line:
			placeLine(p, b.curve, start, end)
		case *scene.Mesh:
			f.placeTube(p, b, start, end)
		}
	}
}

// placeLine writes a thin link's vertices
func placeLine(l *scene.Line, curve scene.Curve, start, end r3.Vec) {
	buf := l.Buffer()
	if buf == nil {
		return
	}
	if curve != nil {
		buf.SetFromPoints(curve.Points(curveSegments))
	} else {
		buf.SetFromPoints([]r3.Vec{start, end})
	}
	buf.ComputeBoundingSphere()
}

// placeTube poses a wide link. Straight links stretch the shared unit
// cylinder; curved links get a tube swept along the curve each frame.
func (f *ForceGraph) placeTube(m *scene.Mesh, b *edgeBinding, start, end r3.Vec) {
	if b.curve != nil {
		if _, tube := m.Geometry().(*scene.TubeGeometry); !tube {
			m.Pose = scene.NewPose()
		}
		m.SetGeometry(f.factory.linkGeometry(b.el, b.curve))
		return
	}

	width := f.factory.linkWidth(b.el)
	if cyl, ok := m.Geometry().(*scene.CylinderGeometry); !ok || cyl.Radius != width/2 || cyl.RadialSegments != f.linkResolution {
		m.SetGeometry(f.factory.linkGeometry(b.el, nil))
	}
	m.Pose.Position = start
	m.Pose.Scale.Z = r3.Norm(r3.Sub(end, start))
	scene.LookAt(m, scene.LocalToWorld(m.Parent(), end))
}

// updateArrows places each arrow head so it stops at the target node's
// surface when relPos is 1 and leaves the source node's surface at 0
func (f *ForceGraph) updateArrows() {
	for key, b := range f.edges {
		if b.arrow == nil {
			continue
		}
		from, to, ok := f.layout.EdgePosition(key)
		if !ok || !from.Valid() || !to.Valid() {
			continue
		}
		start, end := vec(from), vec(to)

		lineLen := lengthOf(b.curve, start, end)
		if lineLen <= 0 {
			continue
		}
		length := f.factory.arrowLength(b.el)
		relPos := f.arrowRelPos.Float(b.el)
		startR := f.endpointRadius(b.el.Source)
		endR := f.endpointRadius(b.el.Target)

		along := startR + length + (lineLen-startR-endR-length)*relPos
		head := pointAlong(b.curve, start, end, along/lineLen)
		tail := pointAlong(b.curve, start, end, (along-length)/lineLen)

		b.arrow.Pose.Position = tail
		scene.LookAt(b.arrow, head)
	}
}

// endpointRadius is the sphere radius of a node, hidden or not
func (f *ForceGraph) endpointRadius(key string) float64 {
	var el accessor.Element
	if nb, ok := f.nodes[key]; ok {
		el = nb.el
	} else if n, err := f.graph.Node(key); err == nil {
		el = nodeElement(n)
	} else {
		return 0
	}
	return nodeRadius(f.nodeVal.Float(el), f.nodeRelSize)
}

// updatePhotons moves cyclic particles around their link and single-hop
// particles toward the target, destroying them on arrival
func (f *ForceGraph) updatePhotons() {
	for key, b := range f.edges {
		if b.photons == nil && b.singleHop == nil {
			continue
		}
		from, to, ok := f.layout.EdgePosition(key)
		if !ok || !from.Valid() || !to.Valid() {
			continue
		}
		start, end := vec(from), vec(to)
		speed := f.particleSpeed.Float(b.el)

		if b.photons != nil {
			for _, child := range b.photons.Children() {
				p, ok := child.(*scene.Mesh)
				if !ok {
					continue
				}
				p.Progress += speed
				p.Progress -= math.Floor(p.Progress)
				p.Pose.Position = pointAlong(b.curve, start, end, p.Progress)
			}
		}

		if b.singleHop != nil {
			for _, child := range b.singleHop.Children() {
				p, ok := child.(*scene.Mesh)
				if !ok {
					continue
				}
				p.Progress += speed
				if p.Progress >= 1 {
					scene.Destroy(p)
					continue
				}
				p.Pose.Position = pointAlong(b.curve, start, end, p.Progress)
			}
		}
	}
}
