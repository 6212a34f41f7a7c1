package layout

import (
	"math"
	"math/rand/v2"

	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
)

// body is a simulated node
type body struct {
	key      string
	pos      [3]float64
	velocity [3]float64
	force    [3]float64
	mass     float64
	placed   bool
}

// spring is a simulated edge
type spring struct {
	key    string
	from   *body
	to     *body
	weight float64
}

// ForceLayout is a velocity-integrated spring and charge simulation. Edges
// pull their endpoints toward SpringLength apart, every node pair repels
// with GravitationalConstant and DragCoefficient damps motion.
//
// Nodes carrying numeric fx/fy/fz attributes are held at those coordinates.
// ForceLayout is not safe for concurrent use.
type ForceLayout struct {
	graph    *graph.Graph
	physics  Physics
	dims     int
	rnd      *rand.Rand
	revision uint64
	synced   bool
	bodies   map[string]*body
	order    []*body
	springs  []*spring
	disposed bool
}

// NewForceLayout creates a force simulation over g
func NewForceLayout(g *graph.Graph, dims int, physics Physics) *ForceLayout {
	return &ForceLayout{
		graph:   g,
		physics: physics,
		dims:    clampDimensions(dims),
		rnd:     rand.New(rand.NewPCG(physics.Seed, physics.Seed^0x9e3779b97f4a7c15)),
		bodies:  make(map[string]*body),
	}
}

// Step runs one iteration. It returns true once the mean movement per node
// drops to the stable threshold, or when there is nothing to move.
func (fl *ForceLayout) Step() bool {
	if fl.disposed {
		return true
	}
	fl.sync()
	if len(fl.order) == 0 {
		return true
	}

	fl.accumulate()
	movement := fl.integrate()
	return movement/float64(len(fl.order)) <= fl.physics.StableThreshold
}

// sync rebuilds bodies and springs when the graph topology changed.
// Existing bodies keep their state; new ones are placed near a positioned
// neighbor.
func (fl *ForceLayout) sync() {
	if fl.disposed {
		return
	}
	rev := fl.graph.Revision()
	if fl.synced && rev == fl.revision {
		return
	}
	fl.synced, fl.revision = true, rev

	nodes := fl.graph.Nodes()
	edges := fl.graph.Edges()

	bodies := make(map[string]*body, len(nodes))
	order := make([]*body, 0, len(nodes))
	var fresh []*body
	for _, n := range nodes {
		b, ok := fl.bodies[n.Key]
		if !ok {
			b = &body{key: n.Key}
			fresh = append(fresh, b)
		}
		b.mass = 1
		bodies[n.Key] = b
		order = append(order, b)
	}

	springs := make([]*spring, 0, len(edges))
	for _, e := range edges {
		from, to := bodies[e.Source], bodies[e.Target]
		if from == nil || to == nil {
			continue
		}
		springs = append(springs, &spring{key: e.Key, from: from, to: to, weight: 1})
		from.mass += 1.0 / 3
		to.mass += 1.0 / 3
	}

	fl.bodies, fl.order, fl.springs = bodies, order, springs
	for _, b := range fresh {
		fl.place(b)
	}
}

// place puts a new body near the centroid of its already placed neighbors,
// or at a random spot near the origin
func (fl *ForceLayout) place(b *body) {
	var center [3]float64
	count := 0
	for _, s := range fl.springs {
		var other *body
		switch b {
		case s.from:
			other = s.to
		case s.to:
			other = s.from
		}
		if other == nil || other == b || !other.placed {
			continue
		}
		for d := 0; d < 3; d++ {
			center[d] += other.pos[d]
		}
		count++
	}
	if count > 0 {
		for d := 0; d < 3; d++ {
			center[d] /= float64(count)
		}
	}

	spread := fl.physics.SpringLength
	for d := 0; d < fl.dims; d++ {
		b.pos[d] = center[d] + (fl.rnd.Float64()-0.5)*spread
	}
	b.velocity = [3]float64{}
	b.placed = true
	fl.applyPins(b)
}

func (fl *ForceLayout) accumulate() {
	p := fl.physics
	for _, b := range fl.order {
		b.force = [3]float64{}
	}

	// Pairwise charge
	for i, a := range fl.order {
		for _, b := range fl.order[i+1:] {
			var delta [3]float64
			r2 := 0.0
			for d := 0; d < fl.dims; d++ {
				delta[d] = b.pos[d] - a.pos[d]
				r2 += delta[d] * delta[d]
			}
			if r2 == 0 {
				for d := 0; d < fl.dims; d++ {
					delta[d] = (fl.rnd.Float64() - 0.5) / 50
					r2 += delta[d] * delta[d]
				}
			}
			r := math.Sqrt(r2)
			v := p.GravitationalConstant * a.mass * b.mass / (r2 * r)
			for d := 0; d < fl.dims; d++ {
				a.force[d] += v * delta[d]
				b.force[d] -= v * delta[d]
			}
		}
	}

	// Springs
	for _, s := range fl.springs {
		if s.from == s.to {
			continue
		}
		var delta [3]float64
		r2 := 0.0
		for d := 0; d < fl.dims; d++ {
			delta[d] = s.to.pos[d] - s.from.pos[d]
			r2 += delta[d] * delta[d]
		}
		r := math.Sqrt(r2)
		if r == 0 {
			for d := 0; d < fl.dims; d++ {
				delta[d] = (fl.rnd.Float64() - 0.5) / 50
			}
			r = 0.01
		}
		c := p.SpringCoefficient * s.weight * (r - p.SpringLength) / r
		for d := 0; d < fl.dims; d++ {
			s.from.force[d] += c * delta[d]
			s.to.force[d] -= c * delta[d]
		}
	}

	// Drag
	for _, b := range fl.order {
		for d := 0; d < fl.dims; d++ {
			b.force[d] -= p.DragCoefficient * b.velocity[d]
		}
	}
}

// integrate applies forces with forward Euler and returns total movement
func (fl *ForceLayout) integrate() float64 {
	dt := fl.physics.TimeStep
	total := 0.0
	for _, b := range fl.order {
		coeff := dt / b.mass
		speed := 0.0
		for d := 0; d < fl.dims; d++ {
			b.velocity[d] += coeff * b.force[d]
			speed += b.velocity[d] * b.velocity[d]
		}
		if speed = math.Sqrt(speed); speed > 1 {
			for d := 0; d < fl.dims; d++ {
				b.velocity[d] /= speed
			}
		}
		before := b.pos
		for d := 0; d < fl.dims; d++ {
			b.pos[d] += dt * b.velocity[d]
		}
		fl.applyPins(b)
		for d := 0; d < fl.dims; d++ {
			total += math.Abs(b.pos[d] - before[d])
		}
	}
	return total
}

func (fl *ForceLayout) applyPins(b *body) {
	for d, pin := range pins(fl.graph, b.key) {
		if pin == nil || d >= fl.dims {
			continue
		}
		b.pos[d] = *pin
		b.velocity[d] = 0
	}
}

// NodePosition returns the node's current coordinate
func (fl *ForceLayout) NodePosition(key string) (Position, bool) {
	fl.sync()
	b, ok := fl.bodies[key]
	if !ok {
		return Position{}, false
	}
	return fromComponents(b.pos), true
}

// EdgePosition returns the coordinates of an edge's endpoints
func (fl *ForceLayout) EdgePosition(key string) (Position, Position, bool) {
	return edgeEndpoints(fl.graph, key, fl.NodePosition)
}

// SetDimensions changes the simulated dimensionality. Dropped axes are
// flattened to zero; added axes are seeded with a small random offset.
func (fl *ForceLayout) SetDimensions(n int) {
	n = clampDimensions(n)
	if n == fl.dims {
		return
	}
	for _, b := range fl.order {
		for d := 0; d < 3; d++ {
			switch {
			case d >= n:
				b.pos[d], b.velocity[d] = 0, 0
			case d >= fl.dims:
				b.pos[d] = (fl.rnd.Float64() - 0.5) * fl.physics.SpringLength
			}
		}
	}
	fl.dims = n
}

// Dimensions returns the current dimensionality
func (fl *ForceLayout) Dimensions() int {
	return fl.dims
}

// Dispose drops all simulation state
func (fl *ForceLayout) Dispose() {
	fl.disposed = true
	fl.bodies = make(map[string]*body)
	fl.order, fl.springs = nil, nil
}
