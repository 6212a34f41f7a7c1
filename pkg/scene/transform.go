package scene

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const epsilon = 1e-9

var (
	unitX = r3.Vec{X: 1}
	unitZ = r3.Vec{Z: 1}
	one   = r3.Vec{X: 1, Y: 1, Z: 1}
)

// Pose is an object's local transform. Rotation is stored as an axis and an
// angle; a zero axis or a zero angle is the identity.
type Pose struct {
	Position r3.Vec
	Scale    r3.Vec
	Axis     r3.Vec
	Angle    float64
}

// NewPose returns the identity pose
func NewPose() Pose {
	return Pose{Scale: one}
}

// Rotated reports whether the pose carries a rotation
func (p Pose) Rotated() bool {
	return p.Angle != 0 && r3.Norm(p.Axis) > epsilon
}

// Apply maps a point from local space into the parent's space
func (p Pose) Apply(v r3.Vec) r3.Vec {
	v = r3.Vec{X: v.X * p.Scale.X, Y: v.Y * p.Scale.Y, Z: v.Z * p.Scale.Z}
	if p.Rotated() {
		v = r3.NewRotation(p.Angle, p.Axis).Rotate(v)
	}
	return r3.Add(v, p.Position)
}

// Direction rotates v without scaling or translating it
func (p Pose) Direction(v r3.Vec) r3.Vec {
	if !p.Rotated() {
		return v
	}
	return r3.NewRotation(p.Angle, p.Axis).Rotate(v)
}

// SetRotation orients the local +Z axis along dir. A zero dir resets the
// rotation.
func (p *Pose) SetRotation(dir r3.Vec) {
	if r3.Norm(dir) < epsilon {
		p.Axis, p.Angle = r3.Vec{}, 0
		return
	}
	d := r3.Unit(dir)
	axis := r3.Cross(unitZ, d)
	cos := math.Max(-1, math.Min(1, r3.Dot(unitZ, d)))

	switch {
	case r3.Norm(axis) > epsilon:
		p.Axis, p.Angle = r3.Unit(axis), math.Acos(cos)
	case cos > 0:
		p.Axis, p.Angle = r3.Vec{}, 0
	default:
		p.Axis, p.Angle = unitX, math.Pi
	}
}

// LocalToWorld maps a point in obj's local space to world space
func LocalToWorld(obj Object, v r3.Vec) r3.Vec {
	for depth := 0; obj != nil && depth < maxDepth; depth++ {
		base := obj.Base()
		v = base.Pose.Apply(v)
		obj = base.parent
	}
	return v
}

// WorldPosition returns obj's origin in world space
func WorldPosition(obj Object) r3.Vec {
	return LocalToWorld(obj, r3.Vec{})
}

// LookAt rotates obj so its local +Z axis points at target, given in world
// space. Parents are assumed unrotated, as in the graph scene.
func LookAt(obj Object, target r3.Vec) {
	base := obj.Base()
	base.Pose.SetRotation(r3.Sub(target, WorldPosition(obj)))
}

// WorldBox returns the world-space bounding box of obj and its descendants.
// ok is false when nothing under obj has geometry.
func WorldBox(obj Object) (box r3.Box, ok bool) {
	Walk(obj, func(o Object) bool {
		r, isRenderable := o.(Renderable)
		if !isRenderable || r.Geometry() == nil {
			return true
		}
		for _, corner := range corners(r.Geometry().BoundingBox()) {
			p := LocalToWorld(o, corner)
			if !ok {
				box, ok = r3.Box{Min: p, Max: p}, true
				continue
			}
			box = expand(box, p)
		}
		return true
	})
	return box, ok
}

func corners(b r3.Box) []r3.Vec {
	out := make([]r3.Vec, 0, 8)
	for _, x := range []float64{b.Min.X, b.Max.X} {
		for _, y := range []float64{b.Min.Y, b.Max.Y} {
			for _, z := range []float64{b.Min.Z, b.Max.Z} {
				out = append(out, r3.Vec{X: x, Y: y, Z: z})
			}
		}
	}
	return out
}
