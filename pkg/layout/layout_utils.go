package layout

import (
	"github.com/dd0wney/cluso-forcegraph/pkg/accessor"
	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
)

// Attributes that pin a node coordinate
const (
	PinX = "fx"
	PinY = "fy"
	PinZ = "fz"
)

func clampDimensions(n int) int {
	switch {
	case n < 1:
		return 1
	case n > 3:
		return 3
	default:
		return n
	}
}

// pins reads the fx/fy/fz attributes of a node. A nil entry means free.
func pins(g *graph.Graph, key string) [3]*float64 {
	var out [3]*float64
	for i, name := range []string{PinX, PinY, PinZ} {
		v, ok := g.NodeAttribute(key, name)
		if !ok || v == nil {
			continue
		}
		if f, ok := accessor.Number(v); ok {
			out[i] = &f
		}
	}
	return out
}

// edgeEndpoints resolves an edge to the positions of its two nodes
func edgeEndpoints(g *graph.Graph, key string, node func(string) (Position, bool)) (Position, Position, bool) {
	source, target, err := g.Extremities(key)
	if err != nil {
		return Position{}, Position{}, false
	}
	from, ok := node(source)
	if !ok {
		return Position{}, Position{}, false
	}
	to, ok := node(target)
	if !ok {
		return Position{}, Position{}, false
	}
	return from, to, true
}

func fromComponents(v [3]float64) Position {
	return Position{X: v[0], Y: v[1], Z: v[2]}
}
