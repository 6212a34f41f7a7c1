package graph

import (
	"github.com/google/uuid"
)

// AddEdge adds an edge with a generated key and returns the key
func (g *Graph) AddEdge(source, target string, attrs Attributes) (string, error) {
	key := uuid.NewString()
	if err := g.addEdge("AddEdge", key, source, target, attrs); err != nil {
		return "", err
	}
	return key, nil
}

// AddEdgeWithKey adds an edge under an explicit key
func (g *Graph) AddEdgeWithKey(key, source, target string, attrs Attributes) error {
	return g.addEdge("AddEdgeWithKey", key, source, target, attrs)
}

func (g *Graph) addEdge(op, key, source, target string, attrs Attributes) error {
	if key == "" {
		return edgeError(op, key, ErrInvalidKey)
	}

	g.mu.Lock()
	if _, exists := g.edges[key]; exists {
		g.mu.Unlock()
		return edgeError(op, key, ErrEdgeExists)
	}
	from, ok := g.nodes[source]
	if !ok {
		g.mu.Unlock()
		return &GraphError{Op: op, Entity: "edge", Key: key, Field: "source", Cause: ErrNodeNotFound}
	}
	to, ok := g.nodes[target]
	if !ok {
		g.mu.Unlock()
		return &GraphError{Op: op, Entity: "edge", Key: key, Field: "target", Cause: ErrNodeNotFound}
	}

	line := g.topo.NewLine(from.node, to.node)
	g.topo.SetLine(line)

	rec := &edgeRecord{
		line:   line,
		source: source,
		target: target,
		attrs:  attrs.Clone(),
		seq:    g.nextSeq(),
	}
	if rec.attrs == nil {
		rec.attrs = make(Attributes)
	}
	g.edges[key] = rec
	g.revision++
	snapshot := rec.snapshot(key)
	g.mu.Unlock()

	g.events.Publish(EventEdgeAdded, snapshot)
	return nil
}

// DropEdge removes an edge
func (g *Graph) DropEdge(key string) error {
	g.mu.Lock()
	rec, exists := g.edges[key]
	if !exists {
		g.mu.Unlock()
		return edgeError("DropEdge", key, ErrEdgeNotFound)
	}
	g.topo.RemoveLine(rec.line.From().ID(), rec.line.To().ID(), rec.line.ID())
	delete(g.edges, key)
	g.revision++
	snapshot := rec.snapshot(key)
	g.mu.Unlock()

	g.events.Publish(EventEdgeDropped, snapshot)
	return nil
}

// Edge returns a snapshot of the edge
func (g *Graph) Edge(key string) (Edge, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rec, exists := g.edges[key]
	if !exists {
		return Edge{}, edgeError("Edge", key, ErrEdgeNotFound)
	}
	return rec.snapshot(key), nil
}

// HasEdge reports whether key is an edge of the graph
func (g *Graph) HasEdge(key string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, exists := g.edges[key]
	return exists
}

// Extremities returns the source and target node keys of an edge
func (g *Graph) Extremities(key string) (string, string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rec, exists := g.edges[key]
	if !exists {
		return "", "", edgeError("Extremities", key, ErrEdgeNotFound)
	}
	return rec.source, rec.target, nil
}

// EdgeAttribute returns a single edge attribute
func (g *Graph) EdgeAttribute(key, name string) (any, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rec, exists := g.edges[key]
	if !exists {
		return nil, false
	}
	v, ok := rec.attrs[name]
	return v, ok
}

// SetEdgeAttribute sets one attribute and emits a "set" update
func (g *Graph) SetEdgeAttribute(key, name string, value any) error {
	return g.updateEdge("SetEdgeAttribute", key, name, UpdateSet, func(a Attributes) Attributes {
		a[name] = value
		return a
	})
}

// RemoveEdgeAttribute deletes one attribute and emits a "remove" update
func (g *Graph) RemoveEdgeAttribute(key, name string) error {
	return g.updateEdge("RemoveEdgeAttribute", key, name, UpdateRemove, func(a Attributes) Attributes {
		delete(a, name)
		return a
	})
}

// MergeEdgeAttributes shallow-merges attrs into the edge's attributes
func (g *Graph) MergeEdgeAttributes(key string, attrs Attributes) error {
	return g.updateEdge("MergeEdgeAttributes", key, "", UpdateMerge, func(a Attributes) Attributes {
		for k, v := range attrs {
			a[k] = v
		}
		return a
	})
}

func (g *Graph) updateEdge(op, key, name string, typ UpdateType, mutate func(Attributes) Attributes) error {
	g.mu.Lock()
	rec, exists := g.edges[key]
	if !exists {
		g.mu.Unlock()
		if name != "" {
			return attributeError(op, "edge", key, name, ErrEdgeNotFound)
		}
		return edgeError(op, key, ErrEdgeNotFound)
	}
	rec.attrs = mutate(rec.attrs)
	update := AttributesUpdate{
		Type:       typ,
		Key:        key,
		Name:       name,
		Attributes: rec.attrs.Clone(),
		Source:     rec.source,
		Target:     rec.target,
	}
	g.mu.Unlock()

	g.events.Publish(EventEdgeAttributesUpdated, update)
	return nil
}

func (rec *edgeRecord) snapshot(key string) Edge {
	return Edge{
		Key:        key,
		Source:     rec.source,
		Target:     rec.target,
		Attributes: rec.attrs.Clone(),
	}
}
