package colors

import (
	"fmt"
	"sync"

	"github.com/dd0wney/cluso-forcegraph/pkg/accessor"
	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
)

// Paired is the 12-color categorical scheme used for auto-coloring
var Paired = []string{
	"#a6cee3", "#1f78b4", "#b2df8a", "#33a02c",
	"#fb9a99", "#e31a1c", "#fdbf6f", "#ff7f00",
	"#cab2d6", "#6a3d9a", "#ffff99", "#b15928",
}

// Ordinal maps group keys to palette entries in order of first appearance.
// The same key always gets the same color; the palette wraps after its last
// entry.
type Ordinal struct {
	palette []string
	index   map[any]int
	mu      sync.Mutex
}

// NewOrdinal creates a scale over palette (Paired when empty)
func NewOrdinal(palette ...string) *Ordinal {
	if len(palette) == 0 {
		palette = Paired
	}
	return &Ordinal{
		palette: palette,
		index:   make(map[any]int),
	}
}

// Color returns the color assigned to key. nil is a valid key.
func (o *Ordinal) Color(key any) string {
	k := normalizeKey(key)

	o.mu.Lock()
	defer o.mu.Unlock()

	i, ok := o.index[k]
	if !ok {
		i = len(o.index)
		o.index[k] = i
	}
	return o.palette[i%len(o.palette)]
}

// Len returns how many distinct keys have been seen
func (o *Ordinal) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.index)
}

// Reset forgets every assignment
func (o *Ordinal) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.index = make(map[any]int)
}

// normalizeKey makes map-unsafe values usable as keys
func normalizeKey(key any) any {
	switch key.(type) {
	case nil, string, bool, float64, float32, int, int64, int32, uint, uint64, uint32:
		return key
	default:
		return fmt.Sprintf("%T:%v", key, key)
	}
}

// AutoColorNodes sets field on every node that lacks a truthy value for it,
// using scale keyed by the by accessor
func AutoColorNodes(g *graph.Graph, by accessor.Accessor, field string, scale *Ordinal) error {
	if !by.IsSet() || field == "" {
		return nil
	}
	for _, n := range g.Nodes() {
		if accessor.Truthy(n.Attributes[field]) {
			continue
		}
		el := accessor.Element{Key: n.Key, Attributes: n.Attributes}
		if err := g.SetNodeAttribute(n.Key, field, scale.Color(by.Value(el))); err != nil {
			return err
		}
	}
	return nil
}

// AutoColorEdges is AutoColorNodes for edges
func AutoColorEdges(g *graph.Graph, by accessor.Accessor, field string, scale *Ordinal) error {
	if !by.IsSet() || field == "" {
		return nil
	}
	for _, e := range g.Edges() {
		if accessor.Truthy(e.Attributes[field]) {
			continue
		}
		el := accessor.Element{Key: e.Key, Source: e.Source, Target: e.Target, Attributes: e.Attributes}
		if err := g.SetEdgeAttribute(e.Key, field, scale.Color(by.Value(el))); err != nil {
			return err
		}
	}
	return nil
}
