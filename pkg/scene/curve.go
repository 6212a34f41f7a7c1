package scene

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// lengthDivisions is the sampling density used to approximate arc length
const lengthDivisions = 200

// Curve is a parametric path over t in [0,1]
type Curve interface {
	Point(t float64) r3.Vec
	// Points samples divisions+1 evenly spaced parameters, ends included
	Points(divisions int) []r3.Vec
	Length() float64
}

// QuadraticBezier is a Bézier curve with one control point
type QuadraticBezier struct {
	Start, Control, End r3.Vec
}

// Point evaluates the curve at t
func (c QuadraticBezier) Point(t float64) r3.Vec {
	k := 1 - t
	return r3.Add(r3.Add(
		r3.Scale(k*k, c.Start),
		r3.Scale(2*k*t, c.Control)),
		r3.Scale(t*t, c.End))
}

func (c QuadraticBezier) Points(divisions int) []r3.Vec { return samplePoints(c, divisions) }
func (c QuadraticBezier) Length() float64               { return arcLength(c) }

// CubicBezier is a Bézier curve with two control points
type CubicBezier struct {
	Start, Control1, Control2, End r3.Vec
}

// Point evaluates the curve at t
func (c CubicBezier) Point(t float64) r3.Vec {
	k := 1 - t
	return r3.Add(r3.Add(
		r3.Scale(k*k*k, c.Start),
		r3.Scale(3*k*k*t, c.Control1)), r3.Add(
		r3.Scale(3*k*t*t, c.Control2),
		r3.Scale(t*t*t, c.End)))
}

func (c CubicBezier) Points(divisions int) []r3.Vec { return samplePoints(c, divisions) }
func (c CubicBezier) Length() float64               { return arcLength(c) }

func samplePoints(c Curve, divisions int) []r3.Vec {
	if divisions < 1 {
		divisions = 1
	}
	points := make([]r3.Vec, divisions+1)
	for i := range points {
		points[i] = c.Point(float64(i) / float64(divisions))
	}
	return points
}

func arcLength(c Curve) float64 {
	total := 0.0
	prev := c.Point(0)
	for i := 1; i <= lengthDivisions; i++ {
		p := c.Point(float64(i) / lengthDivisions)
		total += r3.Norm(r3.Sub(p, prev))
		prev = p
	}
	return total
}
