// Package layout provides the physics engines that position graph nodes.
// Engines read the graph directly and resync whenever its topology changes;
// they are driven one step at a time by the caller.
package layout

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
)

// ErrUnknownKind is returned by New for an unsupported engine kind
var ErrUnknownKind = errors.New("unknown layout engine")

// Position is a node coordinate. Unused dimensions are zero.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Valid reports whether every coordinate is a finite number
func (p Position) Valid() bool {
	for _, v := range []float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Kind names a layout engine
type Kind string

const (
	// KindForce is a spring and charge simulation in up to three dimensions
	KindForce Kind = "force"
	// KindEades is gonum's Eades spring embedder, planar only
	KindEades Kind = "eades"
	// KindCircular places nodes on a ring and converges immediately
	KindCircular Kind = "circular"
)

// ParseKind maps an engine name to a Kind. The names used by other force
// graph front ends ("ngraph", "d3") select the force engine.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "force", "ngraph", "d3":
		return KindForce, nil
	case "eades":
		return KindEades, nil
	case "circular":
		return KindCircular, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Physics is the parameter bag handed to the engine
type Physics struct {
	SpringLength          float64 `json:"springLength" yaml:"springLength" validate:"gt=0"`
	SpringCoefficient     float64 `json:"springCoefficient" yaml:"springCoefficient" validate:"gte=0"`
	GravitationalConstant float64 `json:"gravity" yaml:"gravity"`
	DragCoefficient       float64 `json:"dragCoefficient" yaml:"dragCoefficient" validate:"gte=0,lte=1"`
	TimeStep              float64 `json:"timeStep" yaml:"timeStep" validate:"gt=0"`
	// StableThreshold is the mean movement per step below which the force
	// engine reports convergence
	StableThreshold float64 `json:"stableThreshold" yaml:"stableThreshold" validate:"gte=0"`
	// EadesUpdates bounds the number of Eades iterations
	EadesUpdates int `json:"eadesUpdates" yaml:"eadesUpdates" validate:"gte=0"`
	// Seed makes initial placement reproducible
	Seed uint64 `json:"seed" yaml:"seed"`
}

// DefaultPhysics returns the ngraph force layout defaults
func DefaultPhysics() Physics {
	return Physics{
		SpringLength:          30,
		SpringCoefficient:     0.0008,
		GravitationalConstant: -1.2,
		DragCoefficient:       0.02,
		TimeStep:              20,
		StableThreshold:       0.01,
		EadesUpdates:          1000,
		Seed:                  1,
	}
}

// Engine advances a layout and reports positions by graph key
type Engine interface {
	// Step advances one iteration and reports whether the layout converged
	Step() bool
	NodePosition(key string) (Position, bool)
	EdgePosition(key string) (from, to Position, ok bool)
	SetDimensions(n int)
	Dimensions() int
	Dispose()
}

// New creates an engine of the given kind over g. dims is clamped to [1,3].
func New(kind Kind, g *graph.Graph, dims int, physics Physics) (Engine, error) {
	dims = clampDimensions(dims)
	switch kind {
	case KindForce, "":
		return NewForceLayout(g, dims, physics), nil
	case KindEades:
		return NewEadesLayout(g, physics), nil
	case KindCircular:
		return NewCircularLayout(g, dims, physics), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
