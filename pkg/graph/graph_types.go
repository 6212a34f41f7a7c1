package graph

import (
	"maps"
	"sync"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/multi"

	"github.com/dd0wney/cluso-forcegraph/pkg/pubsub"
)

// Attributes is the open attribute map carried by nodes and edges
type Attributes map[string]any

// Clone returns a shallow copy of the attribute map. Nil stays nil.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	return maps.Clone(a)
}

// Node is a snapshot of a graph node
type Node struct {
	Key        string
	Attributes Attributes
}

// Edge is a snapshot of a graph edge
type Edge struct {
	Key        string
	Source     string
	Target     string
	Attributes Attributes
}

// Event names emitted by Graph
const (
	EventNodeAdded             = "nodeAdded"
	EventEdgeAdded             = "edgeAdded"
	EventNodeAttributesUpdated = "nodeAttributesUpdated"
	EventEdgeAttributesUpdated = "edgeAttributesUpdated"
	EventNodeDropped           = "nodeDropped"
	EventEdgeDropped           = "edgeDropped"
	EventCleared               = "cleared"
)

// Events lists every event name in emission-independent order
var Events = []string{
	EventNodeAdded,
	EventEdgeAdded,
	EventNodeAttributesUpdated,
	EventEdgeAttributesUpdated,
	EventNodeDropped,
	EventEdgeDropped,
	EventCleared,
}

// UpdateType describes how an attribute map changed
type UpdateType string

const (
	UpdateSet     UpdateType = "set"
	UpdateRemove  UpdateType = "remove"
	UpdateReplace UpdateType = "replace"
	UpdateMerge   UpdateType = "merge"
)

// AttributesUpdate is the payload of the *AttributesUpdated events.
// Name is only set for UpdateSet and UpdateRemove.
type AttributesUpdate struct {
	Type       UpdateType
	Key        string
	Name       string
	Attributes Attributes
	// Source and Target are set for edge updates
	Source string
	Target string
}

// Graph is a mutable directed multigraph keyed by strings.
//
// Every mutation emits exactly one event (DropNode emits one per incident
// edge first). Events are published after the graph lock is released, so
// handlers may read from and mutate the graph.
type Graph struct {
	topo  *multi.DirectedGraph
	nodes map[string]*nodeRecord
	edges map[string]*edgeRecord
	ids   map[int64]string

	attributes Attributes
	seq        uint64
	revision   uint64

	events *pubsub.PubSub
	mu     sync.RWMutex
}

type nodeRecord struct {
	node  gonum.Node
	attrs Attributes
	seq   uint64
}

type edgeRecord struct {
	line   gonum.Line
	source string
	target string
	attrs  Attributes
	seq    uint64
}
