package graph

import (
	"cmp"
	"slices"
)

// Nodes returns snapshots of every node in insertion order
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	recs := make([]*nodeRecord, 0, len(g.nodes))
	keys := make(map[*nodeRecord]string, len(g.nodes))
	for k, rec := range g.nodes {
		recs = append(recs, rec)
		keys[rec] = k
	}
	slices.SortFunc(recs, func(a, b *nodeRecord) int { return cmp.Compare(a.seq, b.seq) })

	out := make([]Node, len(recs))
	for i, rec := range recs {
		out[i] = Node{Key: keys[rec], Attributes: rec.attrs.Clone()}
	}
	return out
}

// Edges returns snapshots of every edge in insertion order
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	type keyed struct {
		key string
		rec *edgeRecord
	}
	recs := make([]keyed, 0, len(g.edges))
	for k, rec := range g.edges {
		recs = append(recs, keyed{k, rec})
	}
	slices.SortFunc(recs, func(a, b keyed) int { return cmp.Compare(a.rec.seq, b.rec.seq) })

	out := make([]Edge, len(recs))
	for i, r := range recs {
		out[i] = r.rec.snapshot(r.key)
	}
	return out
}

// ForEachNode calls fn for a snapshot of every node. The graph is not locked
// while fn runs, so fn may mutate the graph.
func (g *Graph) ForEachNode(fn func(Node)) {
	for _, n := range g.Nodes() {
		fn(n)
	}
}

// ForEachEdge calls fn for a snapshot of every edge. The graph is not locked
// while fn runs.
func (g *Graph) ForEachEdge(fn func(Edge)) {
	for _, e := range g.Edges() {
		fn(e)
	}
}

// FindNode returns the first node (in insertion order) matching pred
func (g *Graph) FindNode(pred func(Node) bool) (Node, bool) {
	for _, n := range g.Nodes() {
		if pred(n) {
			return n, true
		}
	}
	return Node{}, false
}

// Neighbors returns the keys of nodes adjacent to key in either direction,
// sorted and without duplicates
func (g *Graph) Neighbors(key string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rec, exists := g.nodes[key]
	if !exists {
		return nil, nodeError("Neighbors", key, ErrNodeNotFound)
	}

	seen := make(map[string]struct{})
	id := rec.node.ID()
	from := g.topo.From(id)
	for from.Next() {
		seen[g.ids[from.Node().ID()]] = struct{}{}
	}
	to := g.topo.To(id)
	for to.Next() {
		seen[g.ids[to.Node().ID()]] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	slices.Sort(out)
	return out, nil
}

// Degree returns the number of edges touching key; self-loops count twice
func (g *Graph) Degree(key string) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, exists := g.nodes[key]; !exists {
		return 0, nodeError("Degree", key, ErrNodeNotFound)
	}
	degree := 0
	for _, e := range g.edges {
		if e.source == key {
			degree++
		}
		if e.target == key {
			degree++
		}
	}
	return degree, nil
}
