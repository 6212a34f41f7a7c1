package graph

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialized is the exchange format of a graph. It reads and writes the
// graphology layout ({attributes, options, nodes:[{key, attributes}],
// edges:[{key, source, target, attributes}]}) and also accepts the flat
// force-graph layout where nodes carry an "id" and edges are listed under
// "links" with their attributes inline.
type Serialized struct {
	Attributes Attributes         `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Options    *SerializedOptions `json:"options,omitempty" yaml:"options,omitempty"`
	Nodes      []SerializedNode   `json:"nodes" yaml:"nodes"`
	Edges      []SerializedEdge   `json:"edges" yaml:"edges"`
}

// SerializedOptions mirrors the graphology options block
type SerializedOptions struct {
	Type           string `json:"type" yaml:"type"`
	Multi          bool   `json:"multi" yaml:"multi"`
	AllowSelfLoops bool   `json:"allowSelfLoops" yaml:"allowSelfLoops"`
}

// SerializedNode is one node entry
type SerializedNode struct {
	Key        string     `json:"key" yaml:"key"`
	Attributes Attributes `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// SerializedEdge is one edge entry. An empty key gets a generated one.
type SerializedEdge struct {
	Key        string     `json:"key,omitempty" yaml:"key,omitempty"`
	Source     string     `json:"source" yaml:"source"`
	Target     string     `json:"target" yaml:"target"`
	Attributes Attributes `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Undirected bool       `json:"undirected,omitempty" yaml:"undirected,omitempty"`
}

// FromRaw normalizes a decoded document (JSON or YAML) in either layout
func FromRaw(doc map[string]any) (Serialized, error) {
	var s Serialized

	if attrs, ok := doc["attributes"].(map[string]any); ok {
		s.Attributes = attrs
	}

	rawNodes, err := asList(doc["nodes"], "nodes")
	if err != nil {
		return s, err
	}
	for i, raw := range rawNodes {
		m, ok := raw.(map[string]any)
		if !ok {
			return s, fmt.Errorf("%w: nodes[%d] is not an object", ErrInvalidData, i)
		}
		n, err := decodeNode(m)
		if err != nil {
			return s, fmt.Errorf("%w: nodes[%d]: %v", ErrInvalidData, i, err)
		}
		s.Nodes = append(s.Nodes, n)
	}

	edgeField := "edges"
	if _, ok := doc["edges"]; !ok {
		edgeField = "links"
	}
	rawEdges, err := asList(doc[edgeField], edgeField)
	if err != nil {
		return s, err
	}
	for i, raw := range rawEdges {
		m, ok := raw.(map[string]any)
		if !ok {
			return s, fmt.Errorf("%w: %s[%d] is not an object", ErrInvalidData, edgeField, i)
		}
		e, err := decodeEdge(m)
		if err != nil {
			return s, fmt.Errorf("%w: %s[%d]: %v", ErrInvalidData, edgeField, i, err)
		}
		s.Edges = append(s.Edges, e)
	}

	return s, nil
}

// UnmarshalJSON accepts both supported layouts
func (s *Serialized) UnmarshalJSON(data []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	out, err := FromRaw(doc)
	if err != nil {
		return err
	}
	*s = out
	return nil
}

func asList(v any, field string) ([]any, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a list", ErrInvalidData, field)
	}
	return list, nil
}

func decodeNode(m map[string]any) (SerializedNode, error) {
	if key, ok := m["key"]; ok {
		attrs, _ := m["attributes"].(map[string]any)
		return SerializedNode{Key: keyString(key), Attributes: attrs}, nil
	}
	if id, ok := m["id"]; ok {
		attrs := make(Attributes, len(m))
		for k, v := range m {
			attrs[k] = v
		}
		return SerializedNode{Key: keyString(id), Attributes: attrs}, nil
	}
	return SerializedNode{}, fmt.Errorf("missing key or id")
}

func decodeEdge(m map[string]any) (SerializedEdge, error) {
	e := SerializedEdge{
		Source: keyString(m["source"]),
		Target: keyString(m["target"]),
	}
	if e.Source == "" || e.Target == "" {
		return e, fmt.Errorf("missing source or target")
	}
	if undirected, ok := m["undirected"].(bool); ok {
		e.Undirected = undirected
	}

	if attrs, ok := m["attributes"].(map[string]any); ok {
		e.Attributes = attrs
		e.Key = keyString(m["key"])
		return e, nil
	}

	// Flat layout: everything except the endpoints is an attribute
	e.Key = keyString(m["key"])
	if e.Key == "" {
		e.Key = keyString(m["id"])
	}
	attrs := make(Attributes)
	for k, v := range m {
		switch k {
		case "source", "target", "key":
			continue
		}
		attrs[k] = v
	}
	if len(attrs) > 0 {
		e.Attributes = attrs
	}
	return e, nil
}

func keyString(v any) string {
	switch k := v.(type) {
	case nil:
		return ""
	case string:
		return k
	case float64:
		return strconv.FormatFloat(k, 'f', -1, 64)
	case int:
		return strconv.Itoa(k)
	case int64:
		return strconv.FormatInt(k, 10)
	default:
		return fmt.Sprint(k)
	}
}

// Import adds the serialized nodes and edges to g. Existing nodes are
// merged, edges with an existing key are skipped.
func (g *Graph) Import(s Serialized) error {
	for k, v := range s.Attributes {
		g.SetAttribute(k, v)
	}
	for _, n := range s.Nodes {
		if err := g.MergeNode(n.Key, n.Attributes); err != nil {
			return err
		}
	}
	for _, e := range s.Edges {
		if e.Key != "" && g.HasEdge(e.Key) {
			continue
		}
		var err error
		if e.Key == "" {
			_, err = g.AddEdge(e.Source, e.Target, e.Attributes)
		} else {
			err = g.AddEdgeWithKey(e.Key, e.Source, e.Target, e.Attributes)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Export returns the graphology serialization of g
func (g *Graph) Export() Serialized {
	g.mu.RLock()
	attrs := g.attributes.Clone()
	g.mu.RUnlock()

	s := Serialized{
		Attributes: attrs,
		Options:    &SerializedOptions{Type: "directed", Multi: true, AllowSelfLoops: true},
		Nodes:      make([]SerializedNode, 0),
		Edges:      make([]SerializedEdge, 0),
	}
	for _, n := range g.Nodes() {
		s.Nodes = append(s.Nodes, SerializedNode{Key: n.Key, Attributes: n.Attributes})
	}
	for _, e := range g.Edges() {
		s.Edges = append(s.Edges, SerializedEdge{
			Key:        e.Key,
			Source:     e.Source,
			Target:     e.Target,
			Attributes: e.Attributes,
		})
	}
	return s
}

// FromSerialized builds a new graph from s
func FromSerialized(s Serialized) (*Graph, error) {
	g := New()
	if err := g.Import(s); err != nil {
		return nil, err
	}
	return g, nil
}
