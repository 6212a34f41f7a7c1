package layout

import (
	"gonum.org/v1/gonum/graph/layout"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
)

// EadesLayout wraps gonum's Eades spring embedder. It is planar: Z is
// always zero and SetDimensions is ignored. A topology change restarts the
// embedding from scratch.
type EadesLayout struct {
	graph    *graph.Graph
	physics  Physics
	revision uint64
	synced   bool
	ids      map[string]int64
	opt      layout.OptimizerR2
	done     bool
	disposed bool
}

// NewEadesLayout creates an Eades embedder over g
func NewEadesLayout(g *graph.Graph, physics Physics) *EadesLayout {
	return &EadesLayout{graph: g, physics: physics, ids: make(map[string]int64)}
}

func (el *EadesLayout) sync() {
	if el.disposed {
		return
	}
	rev := el.graph.Revision()
	if el.synced && rev == el.revision {
		return
	}
	el.synced, el.revision, el.done = true, rev, false

	ug := simple.NewUndirectedGraph()
	ids := make(map[string]int64)
	for i, n := range el.graph.Nodes() {
		ids[n.Key] = int64(i)
		ug.AddNode(simple.Node(i))
	}
	for _, e := range el.graph.Edges() {
		from, to := ids[e.Source], ids[e.Target]
		if from == to {
			continue
		}
		ug.SetEdge(ug.NewEdge(simple.Node(from), simple.Node(to)))
	}

	eades := layout.EadesR2{
		Updates:   el.physics.EadesUpdates,
		Repulsion: 1,
		Rate:      0.05,
		Theta:     0.2,
	}
	el.ids = ids
	el.opt = layout.NewOptimizerR2(ug, eades.Update)
}

// Step runs one Eades update. It reports convergence once the update budget
// is spent.
func (el *EadesLayout) Step() bool {
	if el.disposed {
		return true
	}
	el.sync()
	if el.done || len(el.ids) == 0 {
		return true
	}
	el.done = !el.opt.Update()
	return el.done
}

// NodePosition returns the embedded coordinate scaled to spring length
func (el *EadesLayout) NodePosition(key string) (Position, bool) {
	el.sync()
	id, ok := el.ids[key]
	if !ok {
		return Position{}, false
	}
	c := el.opt.Coord2(id)
	scale := el.physics.SpringLength
	return Position{X: c.X * scale, Y: c.Y * scale}, true
}

// EdgePosition returns the coordinates of an edge's endpoints
func (el *EadesLayout) EdgePosition(key string) (Position, Position, bool) {
	return edgeEndpoints(el.graph, key, el.NodePosition)
}

// SetDimensions is a no-op; the embedding is always planar
func (el *EadesLayout) SetDimensions(int) {}

// Dimensions returns 2
func (el *EadesLayout) Dimensions() int { return 2 }

// Dispose drops the embedding
func (el *EadesLayout) Dispose() {
	el.disposed = true
	el.ids = make(map[string]int64)
}
