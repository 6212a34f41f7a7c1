package scene

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultCameraDistance is the camera's initial distance along +Z
const DefaultCameraDistance = 1000

// Camera is a perspective camera looking at Target
type Camera struct {
	Position r3.Vec
	Target   r3.Vec
	// FOV is the vertical field of view in degrees
	FOV float64
}

// NewCamera creates a camera on the +Z axis looking at the origin
func NewCamera() *Camera {
	return &Camera{Position: r3.Vec{Z: DefaultCameraDistance}, FOV: 40}
}

// FitToBox moves the camera back along its view direction until box fits
// in the field of view with padding added around it
func (c *Camera) FitToBox(box r3.Box, padding float64) {
	center := r3.Scale(0.5, r3.Add(box.Min, box.Max))
	size := r3.Sub(box.Max, box.Min)
	radius := 0.5*math.Max(size.X, math.Max(size.Y, size.Z)) + padding

	dir := r3.Sub(c.Position, c.Target)
	if r3.Norm(dir) < epsilon {
		dir = unitZ
	}
	distance := radius / math.Tan(c.FOV*math.Pi/360)

	c.Target = center
	c.Position = r3.Add(center, r3.Scale(distance, r3.Unit(dir)))
}
