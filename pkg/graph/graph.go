package graph

import (
	"cmp"
	"slices"

	"gonum.org/v1/gonum/graph/multi"

	"github.com/dd0wney/cluso-forcegraph/pkg/pubsub"
)

// New creates an empty graph
func New() *Graph {
	return &Graph{
		topo:       multi.NewDirectedGraph(),
		nodes:      make(map[string]*nodeRecord),
		edges:      make(map[string]*edgeRecord),
		ids:        make(map[int64]string),
		attributes: make(Attributes),
		events:     pubsub.NewPubSub(),
	}
}

// AddNode adds a node with a copy of attrs
func (g *Graph) AddNode(key string, attrs Attributes) error {
	if key == "" {
		return nodeError("AddNode", key, ErrInvalidKey)
	}

	g.mu.Lock()
	if _, exists := g.nodes[key]; exists {
		g.mu.Unlock()
		return nodeError("AddNode", key, ErrNodeExists)
	}

	n := g.topo.NewNode()
	g.topo.AddNode(n)

	rec := &nodeRecord{node: n, attrs: attrs.Clone(), seq: g.nextSeq()}
	if rec.attrs == nil {
		rec.attrs = make(Attributes)
	}
	g.nodes[key] = rec
	g.ids[n.ID()] = key
	g.revision++
	snapshot := Node{Key: key, Attributes: rec.attrs.Clone()}
	g.mu.Unlock()

	g.events.Publish(EventNodeAdded, snapshot)
	return nil
}

// MergeNode adds the node if missing, otherwise merges attrs into it
func (g *Graph) MergeNode(key string, attrs Attributes) error {
	if g.HasNode(key) {
		return g.MergeNodeAttributes(key, attrs)
	}
	return g.AddNode(key, attrs)
}

// DropNode removes a node. Incident edges are dropped first, each emitting
// its own edgeDropped event.
func (g *Graph) DropNode(key string) error {
	for {
		incident, exists := g.incidentEdges(key)
		if !exists {
			return nodeError("DropNode", key, ErrNodeNotFound)
		}
		if len(incident) == 0 {
			break
		}
		for _, ek := range incident {
			// Already gone if a handler dropped it first
			_ = g.DropEdge(ek)
		}
	}

	g.mu.Lock()
	rec, exists := g.nodes[key]
	if !exists {
		g.mu.Unlock()
		return nodeError("DropNode", key, ErrNodeNotFound)
	}
	for _, e := range g.edges {
		if e.source == key || e.target == key {
			// An edge was attached while the others were being dropped
			g.mu.Unlock()
			return g.DropNode(key)
		}
	}
	g.topo.RemoveNode(rec.node.ID())
	delete(g.ids, rec.node.ID())
	delete(g.nodes, key)
	g.revision++
	snapshot := Node{Key: key, Attributes: rec.attrs.Clone()}
	g.mu.Unlock()

	g.events.Publish(EventNodeDropped, snapshot)
	return nil
}

// incidentEdges returns the keys of edges touching key in insertion order
func (g *Graph) incidentEdges(key string) ([]string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, exists := g.nodes[key]; !exists {
		return nil, false
	}
	var incident []string
	for ek, e := range g.edges {
		if e.source == key || e.target == key {
			incident = append(incident, ek)
		}
	}
	slices.SortFunc(incident, func(a, b string) int {
		return cmp.Compare(g.edges[a].seq, g.edges[b].seq)
	})
	return incident, true
}

// Node returns a snapshot of the node
func (g *Graph) Node(key string) (Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rec, exists := g.nodes[key]
	if !exists {
		return Node{}, nodeError("Node", key, ErrNodeNotFound)
	}
	return Node{Key: key, Attributes: rec.attrs.Clone()}, nil
}

// HasNode reports whether key is a node of the graph
func (g *Graph) HasNode(key string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, exists := g.nodes[key]
	return exists
}

// NodeAttribute returns a single node attribute
func (g *Graph) NodeAttribute(key, name string) (any, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rec, exists := g.nodes[key]
	if !exists {
		return nil, false
	}
	v, ok := rec.attrs[name]
	return v, ok
}

// SetNodeAttribute sets one attribute and emits a "set" update
func (g *Graph) SetNodeAttribute(key, name string, value any) error {
	return g.updateNode("SetNodeAttribute", key, name, UpdateSet, func(a Attributes) Attributes {
		a[name] = value
		return a
	})
}

// RemoveNodeAttribute deletes one attribute and emits a "remove" update
func (g *Graph) RemoveNodeAttribute(key, name string) error {
	return g.updateNode("RemoveNodeAttribute", key, name, UpdateRemove, func(a Attributes) Attributes {
		delete(a, name)
		return a
	})
}

// ReplaceNodeAttributes swaps the whole attribute map
func (g *Graph) ReplaceNodeAttributes(key string, attrs Attributes) error {
	return g.updateNode("ReplaceNodeAttributes", key, "", UpdateReplace, func(Attributes) Attributes {
		if attrs == nil {
			return make(Attributes)
		}
		return attrs.Clone()
	})
}

// MergeNodeAttributes shallow-merges attrs into the node's attributes
func (g *Graph) MergeNodeAttributes(key string, attrs Attributes) error {
	return g.updateNode("MergeNodeAttributes", key, "", UpdateMerge, func(a Attributes) Attributes {
		for k, v := range attrs {
			a[k] = v
		}
		return a
	})
}

func (g *Graph) updateNode(op, key, name string, typ UpdateType, mutate func(Attributes) Attributes) error {
	g.mu.Lock()
	rec, exists := g.nodes[key]
	if !exists {
		g.mu.Unlock()
		if name != "" {
			return attributeError(op, "node", key, name, ErrNodeNotFound)
		}
		return nodeError(op, key, ErrNodeNotFound)
	}
	rec.attrs = mutate(rec.attrs)
	update := AttributesUpdate{
		Type:       typ,
		Key:        key,
		Name:       name,
		Attributes: rec.attrs.Clone(),
	}
	g.mu.Unlock()

	g.events.Publish(EventNodeAttributesUpdated, update)
	return nil
}

// Order returns the number of nodes
func (g *Graph) Order() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Size returns the number of edges
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// Revision increases on every topology change (node or edge added or
// dropped). Layout engines compare it to decide when to resync.
func (g *Graph) Revision() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.revision
}

// Attribute returns a graph-level attribute
func (g *Graph) Attribute(name string) (any, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.attributes[name]
	return v, ok
}

// SetAttribute sets a graph-level attribute. Graph attributes emit no events.
func (g *Graph) SetAttribute(name string, value any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attributes[name] = value
}

// Clear drops every edge and node, emitting the individual drop events,
// then emits "cleared".
func (g *Graph) Clear() {
	for _, e := range g.Edges() {
		_ = g.DropEdge(e.Key)
	}
	for _, n := range g.Nodes() {
		_ = g.DropNode(n.Key)
	}
	g.events.Publish(EventCleared, nil)
}

func (g *Graph) nextSeq() uint64 {
	g.seq++
	return g.seq
}
