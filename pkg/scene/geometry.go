package scene

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// GeometryKind identifies a geometry type
type GeometryKind int

const (
	GeometrySphere GeometryKind = iota
	GeometryCylinder
	GeometryCone
	GeometryBuffer
	GeometryTube
)

func (k GeometryKind) String() string {
	switch k {
	case GeometrySphere:
		return "sphere"
	case GeometryCylinder:
		return "cylinder"
	case GeometryCone:
		return "cone"
	case GeometryBuffer:
		return "buffer"
	case GeometryTube:
		return "tube"
	default:
		return "unknown"
	}
}

// Geometry is the shape of a mesh or line
type Geometry interface {
	Disposable
	Kind() GeometryKind
	// BoundingBox is expressed in the geometry's local space
	BoundingBox() r3.Box
	VertexCount() int
}

// SphereGeometry is a UV sphere centered on the origin
type SphereGeometry struct {
	Resource
	Radius         float64
	WidthSegments  int
	HeightSegments int
}

// NewSphereGeometry creates a sphere
func NewSphereGeometry(radius float64, widthSegments, heightSegments int) *SphereGeometry {
	return &SphereGeometry{Radius: radius, WidthSegments: widthSegments, HeightSegments: heightSegments}
}

func (g *SphereGeometry) Kind() GeometryKind { return GeometrySphere }

func (g *SphereGeometry) BoundingBox() r3.Box {
	r := g.Radius
	return r3.Box{Min: r3.Vec{X: -r, Y: -r, Z: -r}, Max: r3.Vec{X: r, Y: r, Z: r}}
}

func (g *SphereGeometry) VertexCount() int {
	return (g.WidthSegments + 1) * (g.HeightSegments + 1)
}

// CylinderGeometry is a unit-length tube along +Z starting at the origin,
// so that scaling Z by a distance and looking at a target spans a segment
type CylinderGeometry struct {
	Resource
	Radius         float64
	RadialSegments int
}

// NewCylinderGeometry creates a link cylinder
func NewCylinderGeometry(radius float64, radialSegments int) *CylinderGeometry {
	return &CylinderGeometry{Radius: radius, RadialSegments: radialSegments}
}

func (g *CylinderGeometry) Kind() GeometryKind { return GeometryCylinder }

func (g *CylinderGeometry) BoundingBox() r3.Box {
	r := g.Radius
	return r3.Box{Min: r3.Vec{X: -r, Y: -r, Z: 0}, Max: r3.Vec{X: r, Y: r, Z: 1}}
}

func (g *CylinderGeometry) VertexCount() int {
	return (g.RadialSegments + 1) * 2
}

// ConeGeometry is a cone with its base at the origin and its tip at +Z
type ConeGeometry struct {
	Resource
	Radius         float64
	Height         float64
	RadialSegments int
}

// NewConeGeometry creates an arrow head
func NewConeGeometry(radius, height float64, radialSegments int) *ConeGeometry {
	return &ConeGeometry{Radius: radius, Height: height, RadialSegments: radialSegments}
}

func (g *ConeGeometry) Kind() GeometryKind { return GeometryCone }

func (g *ConeGeometry) BoundingBox() r3.Box {
	r := g.Radius
	return r3.Box{Min: r3.Vec{X: -r, Y: -r, Z: 0}, Max: r3.Vec{X: r, Y: r, Z: g.Height}}
}

func (g *ConeGeometry) VertexCount() int {
	return g.RadialSegments + 2
}

// BufferGeometry holds a flat xyz position buffer, as used by lines
type BufferGeometry struct {
	Resource
	Positions      []float32
	BoundingSphere Sphere
}

// Sphere is a bounding sphere
type Sphere struct {
	Center r3.Vec
	Radius float64
}

// NewBufferGeometry creates a buffer with room for n points, all at origin
func NewBufferGeometry(n int) *BufferGeometry {
	return &BufferGeometry{Positions: make([]float32, n*3)}
}

func (g *BufferGeometry) Kind() GeometryKind { return GeometryBuffer }

func (g *BufferGeometry) VertexCount() int { return len(g.Positions) / 3 }

// Point returns the i-th point of the buffer
func (g *BufferGeometry) Point(i int) r3.Vec {
	return r3.Vec{
		X: float64(g.Positions[i*3]),
		Y: float64(g.Positions[i*3+1]),
		Z: float64(g.Positions[i*3+2]),
	}
}

// SetFromPoints replaces the buffer contents
func (g *BufferGeometry) SetFromPoints(points []r3.Vec) {
	if cap(g.Positions) >= len(points)*3 {
		g.Positions = g.Positions[:len(points)*3]
	} else {
		g.Positions = make([]float32, len(points)*3)
	}
	for i, p := range points {
		g.Positions[i*3] = float32(p.X)
		g.Positions[i*3+1] = float32(p.Y)
		g.Positions[i*3+2] = float32(p.Z)
	}
}

func (g *BufferGeometry) BoundingBox() r3.Box {
	n := g.VertexCount()
	if n == 0 {
		return r3.Box{}
	}
	box := r3.Box{Min: g.Point(0), Max: g.Point(0)}
	for i := 1; i < n; i++ {
		box = expand(box, g.Point(i))
	}
	return box
}

// ComputeBoundingSphere centers the sphere on the bounding box and sizes it
// to the farthest point
func (g *BufferGeometry) ComputeBoundingSphere() {
	n := g.VertexCount()
	if n == 0 {
		g.BoundingSphere = Sphere{}
		return
	}
	box := g.BoundingBox()
	center := r3.Scale(0.5, r3.Add(box.Min, box.Max))
	maxSq := 0.0
	for i := 0; i < n; i++ {
		d := r3.Sub(g.Point(i), center)
		maxSq = math.Max(maxSq, r3.Dot(d, d))
	}
	g.BoundingSphere = Sphere{Center: center, Radius: math.Sqrt(maxSq)}
}

// TubeGeometry is a tube of constant radius swept along a curve
type TubeGeometry struct {
	Resource
	Path            Curve
	TubularSegments int
	Radius          float64
	RadialSegments  int
}

// NewTubeGeometry creates a tube along path
func NewTubeGeometry(path Curve, tubularSegments int, radius float64, radialSegments int) *TubeGeometry {
	return &TubeGeometry{
		Path:            path,
		TubularSegments: tubularSegments,
		Radius:          radius,
		RadialSegments:  radialSegments,
	}
}

func (g *TubeGeometry) Kind() GeometryKind { return GeometryTube }

func (g *TubeGeometry) BoundingBox() r3.Box {
	points := g.Path.Points(g.TubularSegments)
	box := r3.Box{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		box = expand(box, p)
	}
	pad := r3.Vec{X: g.Radius, Y: g.Radius, Z: g.Radius}
	return r3.Box{Min: r3.Sub(box.Min, pad), Max: r3.Add(box.Max, pad)}
}

func (g *TubeGeometry) VertexCount() int {
	return (g.TubularSegments + 1) * (g.RadialSegments + 1)
}

func expand(b r3.Box, p r3.Vec) r3.Box {
	return r3.Box{
		Min: r3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)},
		Max: r3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)},
	}
}

// UnionBox returns the smallest box containing a and b
func UnionBox(a, b r3.Box) r3.Box {
	return expand(expand(a, b.Min), b.Max)
}
