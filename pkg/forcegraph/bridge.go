package forcegraph

import (
	"github.com/dd0wney/cluso-forcegraph/pkg/accessor"
	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
	"github.com/dd0wney/cluso-forcegraph/pkg/logging"
	"github.com/dd0wney/cluso-forcegraph/pkg/pubsub"
	"github.com/dd0wney/cluso-forcegraph/pkg/scene"
)

// bridge keeps one subscription per graph event and translates events into
// incremental scene changes
type bridge struct {
	f    *ForceGraph
	subs []*pubsub.Subscription
}

func newBridge(f *ForceGraph) *bridge {
	return &bridge{f: f}
}

// subscribe moves the bridge to g. Existing subscriptions are removed first
// so each event has exactly one engine listener.
func (b *bridge) subscribe(g *graph.Graph) {
	b.unsubscribe()

	handlers := map[string]func(any){
		graph.EventNodeAdded:             b.f.onNodeAdded,
		graph.EventEdgeAdded:             b.f.onEdgeAdded,
		graph.EventNodeAttributesUpdated: b.f.onNodeAttributesUpdated,
		graph.EventEdgeAttributesUpdated: b.f.onEdgeAttributesUpdated,
		graph.EventNodeDropped:           b.f.onNodeDropped,
		graph.EventEdgeDropped:           b.f.onEdgeDropped,
		graph.EventCleared:               b.f.onCleared,
	}
	for _, event := range graph.Events {
		b.subs = append(b.subs, g.On(event, b.handle(event, handlers[event])))
	}
	b.f.log.Debug("subscribed to graph events", logging.Count(len(b.subs)))
}

// unsubscribe removes every subscription held by the bridge
func (b *bridge) unsubscribe() {
	for _, sub := range b.subs {
		sub.Unsubscribe()
	}
	b.subs = nil
}

// handle serializes a handler with the rest of the engine
func (b *bridge) handle(event string, fn func(any)) pubsub.Handler {
	return func(msg any) {
		f := b.f
		f.mu.Lock()
		defer f.unlock()
		if f.closed {
			return
		}
		f.log.Debug("graph event", eventFields(event, msg)...)
		fn(msg)
	}
}

func eventFields(event string, msg any) []logging.Field {
	switch m := msg.(type) {
	case graph.Node:
		return []logging.Field{logging.Event(event), logging.NodeKey(m.Key)}
	case graph.Edge:
		return []logging.Field{logging.Event(event), logging.EdgeKey(m.Key)}
	case graph.AttributesUpdate:
		if m.Source != "" || m.Target != "" {
			return []logging.Field{logging.Event(event), logging.EdgeKey(m.Key), logging.String("update", string(m.Type))}
		}
		return []logging.Field{logging.Event(event), logging.NodeKey(m.Key), logging.String("update", string(m.Type))}
	}
	return []logging.Field{logging.Event(event)}
}

func (f *ForceGraph) onNodeAdded(msg any) {
	if n, ok := msg.(graph.Node); ok {
		f.addNode(nodeElement(n))
	}
}

func (f *ForceGraph) onEdgeAdded(msg any) {
	if e, ok := msg.(graph.Edge); ok {
		f.addEdge(edgeElement(e))
	}
}

func (f *ForceGraph) onNodeDropped(msg any) {
	if n, ok := msg.(graph.Node); ok {
		f.dropNode(n.Key)
	}
}

func (f *ForceGraph) onEdgeDropped(msg any) {
	if e, ok := msg.(graph.Edge); ok {
		f.dropEdge(e.Key)
	}
}

func (f *ForceGraph) onCleared(any) {
	f.cache.InvalidateAll()
}

func (f *ForceGraph) onNodeAttributesUpdated(msg any) {
	u, ok := msg.(graph.AttributesUpdate)
	if !ok {
		return
	}
	el := accessor.Element{Key: u.Key, Attributes: u.Attributes}
	b := f.nodes[u.Key]
	if b != nil {
		b.el = el
		b.obj.Base().Tag.Attributes = u.Attributes
	}
	if u.Type != graph.UpdateSet && u.Type != graph.UpdateRemove {
		return
	}

	switch {
	case f.nodeVisibility.Matches(u.Name):
		f.dropNode(u.Key)
		f.addNode(el)
	case b == nil:
	case f.nodeVal.Matches(u.Name):
		if p := b.primitive(); p != nil {
			p.SetGeometry(f.factory.nodeGeometry(el))
		}
	case f.nodeColor.Matches(u.Name):
		if p := b.primitive(); p != nil {
			p.SetMaterial(f.factory.nodeMaterial(el))
		}
	}
}

func (f *ForceGraph) onEdgeAttributesUpdated(msg any) {
	u, ok := msg.(graph.AttributesUpdate)
	if !ok {
		return
	}
	el := accessor.Element{Key: u.Key, Source: u.Source, Target: u.Target, Attributes: u.Attributes}
	b := f.edges[u.Key]
	if b != nil {
		b.el = el
		b.obj.Base().Tag.Attributes = u.Attributes
	}
	if u.Type != graph.UpdateSet && u.Type != graph.UpdateRemove {
		return
	}

	switch {
	case f.linkVisibility.Matches(u.Name):
		f.dropEdge(u.Key)
		f.addEdge(el)
	case b == nil:
	case f.linkWidth.Matches(u.Name):
		p := b.primitive()
		if p == nil {
			return
		}
		if f.shapeChanged(b) {
			f.dropEdge(u.Key)
			f.addEdge(el)
			return
		}
		if _, tube := p.(*scene.Mesh); tube {
			p.SetGeometry(f.factory.linkGeometry(el, b.curve))
		}
	case f.linkColor.Matches(u.Name):
		if p := b.primitive(); p != nil {
			p.SetMaterial(f.factory.linkMaterial(el))
		}
		if b.arrow != nil {
			f.factory.applyArrowMaterial(b.arrow, el)
		}
		f.patchParticles(b, false, true)
	}
}

// shapeChanged reports whether a link's width moved it between a thin line
// and a tube, which needs a new primitive
func (f *ForceGraph) shapeChanged(b *edgeBinding) bool {
	p := b.primitive()
	if p == nil {
		return false
	}
	_, tube := p.(*scene.Mesh)
	return tube != (f.factory.linkWidth(b.el) != 0)
}

// addNode renders a node when it is visible
func (f *ForceGraph) addNode(el accessor.Element) bool {
	if !f.nodeVisibility.Truthy(el) {
		return false
	}
	f.dropNode(el.Key)
	f.nodes[el.Key] = f.factory.completeNode(el, f.scene.Root)
	f.recordCreated(scene.RoleNode)
	return true
}

// dropNode destroys a node's renderable. It reports whether one existed.
func (f *ForceGraph) dropNode(key string) bool {
	b, ok := f.nodes[key]
	if !ok {
		return false
	}
	scene.Destroy(b.obj)
	delete(f.nodes, key)
	f.recordDestroyed(scene.RoleNode)
	return true
}

// addEdge renders an edge, its arrow and its particles when visible
func (f *ForceGraph) addEdge(el accessor.Element) bool {
	if !f.linkVisibility.Truthy(el) {
		return false
	}
	f.dropEdge(el.Key)

	b := f.factory.completeLink(el, f.scene.Root)
	f.recordCreated(scene.RoleLink)
	if f.factory.arrowLength(el) > 0 {
		b.arrow = f.factory.completeArrow(el, f.scene.Root)
		f.recordCreated(scene.RoleArrow)
	}
	if f.factory.particleCount(el) > 0 {
		b.photons = f.factory.completePhotons(el, f.scene.Root)
		f.recordCreated(scene.RolePhotons)
	}
	f.edges[el.Key] = b
	return true
}

// dropEdge destroys an edge's line, arrow and particle groups
func (f *ForceGraph) dropEdge(key string) bool {
	b, ok := f.edges[key]
	if !ok {
		return false
	}
	scene.Destroy(b.obj)
	f.recordDestroyed(scene.RoleLink)
	if b.arrow != nil {
		scene.Destroy(b.arrow)
		f.recordDestroyed(scene.RoleArrow)
	}
	if b.photons != nil {
		scene.Destroy(b.photons)
		f.recordDestroyed(scene.RolePhotons)
	}
	if b.singleHop != nil {
		scene.Destroy(b.singleHop)
		f.recordDestroyed(scene.RoleSingleHopPhotons)
	}
	delete(f.edges, key)
	return true
}

// patchParticles reassigns the shared particle geometry and material to
// every particle of an edge, cyclic and single-hop
func (f *ForceGraph) patchParticles(b *edgeBinding, geometry, material bool) {
	if (!geometry && !material) || (b.photons == nil && b.singleHop == nil) {
		return
	}
	geo, mat := f.factory.photonGeometry(b.el), f.factory.photonMaterial(b.el)
	for _, group := range []*scene.Group{b.photons, b.singleHop} {
		if group == nil {
			continue
		}
		for _, child := range group.Children() {
			p, ok := child.(*scene.Mesh)
			if !ok {
				continue
			}
			if geometry {
				p.SetGeometry(geo)
			}
			if material {
				p.SetMaterial(mat)
			}
		}
	}
}
