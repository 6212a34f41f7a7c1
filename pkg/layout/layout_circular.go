package layout

import (
	"math"

	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
)

// CircularLayout arranges nodes in a circle, in insertion order. In one
// dimension the nodes are spread along X instead.
type CircularLayout struct {
	graph     *graph.Graph
	physics   Physics
	dims      int
	revision  uint64
	synced    bool
	positions map[string]Position
	disposed  bool
}

// NewCircularLayout creates a circular layout over g
func NewCircularLayout(g *graph.Graph, dims int, physics Physics) *CircularLayout {
	return &CircularLayout{
		graph:     g,
		physics:   physics,
		dims:      clampDimensions(dims),
		positions: make(map[string]Position),
	}
}

func (cl *CircularLayout) sync() {
	if cl.disposed {
		return
	}
	rev := cl.graph.Revision()
	if cl.synced && rev == cl.revision {
		return
	}
	cl.synced, cl.revision = true, rev
	cl.compute()
}

func (cl *CircularLayout) compute() {
	nodes := cl.graph.Nodes()
	positions := make(map[string]Position, len(nodes))
	if len(nodes) == 0 {
		cl.positions = positions
		return
	}

	step := cl.physics.SpringLength
	if cl.dims == 1 {
		offset := step * float64(len(nodes)-1) / 2
		for i, n := range nodes {
			positions[n.Key] = Position{X: float64(i)*step - offset}
		}
		cl.positions = positions
		return
	}

	// Circumference gives each node one spring length of arc
	radius := math.Max(step, step*float64(len(nodes))/(2*math.Pi))
	angleStep := 2 * math.Pi / float64(len(nodes))
	for i, n := range nodes {
		angle := float64(i) * angleStep
		positions[n.Key] = Position{
			X: radius * math.Cos(angle),
			Y: radius * math.Sin(angle),
		}
	}
	cl.positions = positions
}

// Step recomputes after topology changes and always reports convergence
func (cl *CircularLayout) Step() bool {
	cl.sync()
	return true
}

// NodePosition returns the node's place on the ring
func (cl *CircularLayout) NodePosition(key string) (Position, bool) {
	cl.sync()
	p, ok := cl.positions[key]
	return p, ok
}

// EdgePosition returns the coordinates of an edge's endpoints
func (cl *CircularLayout) EdgePosition(key string) (Position, Position, bool) {
	return edgeEndpoints(cl.graph, key, cl.NodePosition)
}

// SetDimensions switches between the ring and the line
func (cl *CircularLayout) SetDimensions(n int) {
	cl.dims = clampDimensions(n)
	cl.synced = false
}

// Dimensions returns the current dimensionality
func (cl *CircularLayout) Dimensions() int { return cl.dims }

// Dispose drops the computed positions
func (cl *CircularLayout) Dispose() {
	cl.disposed = true
	cl.positions = make(map[string]Position)
}
