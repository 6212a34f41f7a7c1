package forcegraph

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/dd0wney/cluso-forcegraph/pkg/accessor"
	"github.com/dd0wney/cluso-forcegraph/pkg/layout"
	"github.com/dd0wney/cluso-forcegraph/pkg/scene"
)

const (
	// curveSegments is how many segments approximate a curved link
	curveSegments = 30
	// loopScale sizes self-loops per unit of curvature
	loopScale = 70
)

func vec(p layout.Position) r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// linkCurve returns the curve a link follows between start and end, or nil
// for a straight link
func (fa *factory) linkCurve(el accessor.Element, start, end r3.Vec) scene.Curve {
	curvature := fa.s.linkCurvature.Float(el)
	if curvature == 0 {
		return nil
	}
	rotation := fa.s.linkCurveRotation.Float(el)
	return bendLink(start, end, curvature, rotation)
}

// bendLink bends a straight segment into a quadratic Bézier whose control
// point sits off the midpoint, perpendicular to the segment. A zero-length
// segment becomes a cubic loop in the XY plane.
func bendLink(start, end r3.Vec, curvature, rotation float64) scene.Curve {
	line := r3.Sub(end, start)
	if r3.Norm(line) > 0 {
		axis := r3.Vec{Z: 1}
		if line.X == 0 && line.Y == 0 {
			axis = r3.Vec{Y: 1}
		}
		control := r3.Cross(r3.Scale(curvature, line), axis)
		if rotation != 0 {
			control = r3.NewRotation(rotation, r3.Unit(line)).Rotate(control)
		}
		control = r3.Add(control, r3.Scale(0.5, r3.Add(start, end)))
		return scene.QuadraticBezier{Start: start, Control: control, End: end}
	}

	d := curvature * loopScale
	endAngle := -rotation
	startAngle := endAngle + math.Pi/2
	return scene.CubicBezier{
		Start:    start,
		Control1: r3.Add(start, r3.Vec{X: d * math.Cos(startAngle), Y: d * math.Sin(startAngle)}),
		Control2: r3.Add(start, r3.Vec{X: d * math.Cos(endAngle), Y: d * math.Sin(endAngle)}),
		End:      end,
	}
}

// pointAlong returns the point at ratio t of a link, following curve when set
func pointAlong(curve scene.Curve, start, end r3.Vec, t float64) r3.Vec {
	if curve != nil {
		return curve.Point(t)
	}
	return r3.Add(start, r3.Scale(t, r3.Sub(end, start)))
}

// lengthOf returns the length of a link, following curve when set
func lengthOf(curve scene.Curve, start, end r3.Vec) float64 {
	if curve != nil {
		return curve.Length()
	}
	return r3.Norm(r3.Sub(end, start))
}
