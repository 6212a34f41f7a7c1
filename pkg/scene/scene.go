// Package scene is a headless 3D scene graph: groups, meshes and lines with
// reference-counted geometries and materials. It carries enough state for the
// force graph engine to be driven and inspected without a GPU.
package scene

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// maxDepth bounds parent walks
const maxDepth = 64

// Role identifies what a tagged object represents
type Role string

const (
	RoleNode             Role = "node"
	RoleLink             Role = "link"
	RoleArrow            Role = "arrow"
	RolePhotons          Role = "photons"
	RoleSingleHopPhotons Role = "single-hop-photons"
	RoleParticle         Role = "particle"
)

// Tag links an object back to the graph element it renders. It is used for
// lookup only.
type Tag struct {
	Role       Role
	Key        string
	Attributes map[string]any
	// Default is true when the engine owns the object's geometry and material
	Default bool
}

// Object is anything that can be placed in the scene
type Object interface {
	Base() *Node
	Clone() Object
}

// Renderable is an object that draws a geometry with a material
type Renderable interface {
	Object
	Geometry() Geometry
	Material() *Material
	SetGeometry(Geometry)
	SetMaterial(*Material)
}

// Node holds the state shared by every object: transform, tag and tree links
type Node struct {
	Name        string
	Pose        Pose
	RenderOrder int
	Visible     bool
	Tag         *Tag

	self     Object
	parent   Object
	children []Object
}

func newNode(self Object) Node {
	return Node{Pose: NewPose(), Visible: true, self: self}
}

// Base returns n
func (n *Node) Base() *Node { return n }

// Parent returns the containing object, or nil
func (n *Node) Parent() Object { return n.parent }

// Children returns a copy of the child list
func (n *Node) Children() []Object {
	out := make([]Object, len(n.children))
	copy(out, n.children)
	return out
}

// ChildCount returns the number of direct children
func (n *Node) ChildCount() int { return len(n.children) }

// Child returns the i-th child, or nil when out of range
func (n *Node) Child(i int) Object {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// Add attaches children, detaching them from any previous parent
func (n *Node) Add(children ...Object) {
	for _, child := range children {
		if child == nil || child == n.self {
			continue
		}
		cb := child.Base()
		if cb.parent != nil {
			cb.parent.Base().Remove(child)
		}
		cb.parent = n.self
		n.children = append(n.children, child)
	}
}

// Remove detaches a child. Unknown objects are ignored.
func (n *Node) Remove(child Object) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.Base().parent = nil
			return
		}
	}
}

// cloneInto copies n's state into dst and clones the children under it
func (n *Node) cloneInto(dst *Node) {
	dst.Name = n.Name
	dst.Pose = n.Pose
	dst.RenderOrder = n.RenderOrder
	dst.Visible = n.Visible
	if n.Tag != nil {
		tag := *n.Tag
		dst.Tag = &tag
	}
	for _, c := range n.children {
		dst.Add(c.Clone())
	}
}

// Group is a container with no geometry of its own
type Group struct {
	Node
}

// NewGroup creates an empty group
func NewGroup() *Group {
	g := &Group{}
	g.Node = newNode(g)
	return g
}

// Clone deep-copies the group and its children
func (g *Group) Clone() Object {
	out := NewGroup()
	g.cloneInto(&out.Node)
	return out
}

// shape holds the geometry and material of a renderable. Assigning retains
// the new resource and releases the previous one.
type shape struct {
	geometry Geometry
	material *Material
}

func (s *shape) Geometry() Geometry  { return s.geometry }
func (s *shape) Material() *Material { return s.material }

func (s *shape) SetGeometry(g Geometry) {
	if isNilGeometry(g) {
		g = nil
	}
	if g == s.geometry {
		return
	}
	if g != nil {
		g.Retain()
	}
	if s.geometry != nil {
		s.geometry.Release()
	}
	s.geometry = g
}

func (s *shape) SetMaterial(m *Material) {
	if m == s.material {
		return
	}
	if m != nil {
		m.Retain()
	}
	if s.material != nil {
		s.material.Release()
	}
	s.material = m
}

func (s *shape) release() {
	s.SetGeometry(nil)
	s.SetMaterial(nil)
}

func isNilGeometry(g Geometry) bool {
	if g == nil {
		return true
	}
	switch v := g.(type) {
	case *SphereGeometry:
		return v == nil
	case *CylinderGeometry:
		return v == nil
	case *ConeGeometry:
		return v == nil
	case *BufferGeometry:
		return v == nil
	case *TubeGeometry:
		return v == nil
	}
	return false
}

// Mesh draws a solid geometry. Progress is used by particles to track their
// position along a link.
type Mesh struct {
	Node
	shape
	Progress float64
}

// NewMesh creates a mesh holding a reference to geometry and material
func NewMesh(geometry Geometry, material *Material) *Mesh {
	m := &Mesh{}
	m.Node = newNode(m)
	m.SetGeometry(geometry)
	m.SetMaterial(material)
	return m
}

// Clone copies the mesh; geometry and material are shared
func (m *Mesh) Clone() Object {
	out := NewMesh(m.geometry, m.material)
	out.Progress = m.Progress
	m.cloneInto(&out.Node)
	return out
}

// Line draws a polyline through a buffer geometry
type Line struct {
	Node
	shape
}

// NewLine creates a line
func NewLine(geometry Geometry, material *Material) *Line {
	l := &Line{}
	l.Node = newNode(l)
	l.SetGeometry(geometry)
	l.SetMaterial(material)
	return l
}

// Clone copies the line; geometry and material are shared
func (l *Line) Clone() Object {
	out := NewLine(l.geometry, l.material)
	l.cloneInto(&out.Node)
	return out
}

// Buffer returns the line's buffer geometry, or nil
func (l *Line) Buffer() *BufferGeometry {
	b, _ := l.geometry.(*BufferGeometry)
	return b
}

// Walk visits obj and its descendants depth first until fn returns false
func Walk(obj Object, fn func(Object) bool) bool {
	if obj == nil {
		return true
	}
	if !fn(obj) {
		return false
	}
	for _, c := range obj.Base().Children() {
		if !Walk(c, fn) {
			return false
		}
	}
	return true
}

// Destroy detaches obj from its parent and releases every geometry and
// material held by it and its descendants. Destroying twice is harmless.
func Destroy(obj Object) {
	if obj == nil {
		return
	}
	base := obj.Base()
	if base.parent != nil {
		base.parent.Base().Remove(obj)
	}
	release(obj)
}

func release(obj Object) {
	base := obj.Base()
	for _, c := range base.children {
		c.Base().parent = nil
		release(c)
	}
	base.children = nil

	switch o := obj.(type) {
	case *Mesh:
		o.release()
	case *Line:
		o.release()
	}
}

// OwnerOf walks up from obj to the nearest ancestor tagged as a node or link
// and returns its tag. The walk is bounded by the scene depth limit.
func OwnerOf(obj Object) (*Tag, bool) {
	for depth := 0; obj != nil && depth < maxDepth; depth++ {
		base := obj.Base()
		if base.Tag != nil && (base.Tag.Role == RoleNode || base.Tag.Role == RoleLink) {
			return base.Tag, true
		}
		obj = base.parent
	}
	return nil, false
}

// LightKind selects the light type
type LightKind int

const (
	AmbientLight LightKind = iota
	DirectionalLight
)

// Light illuminates the scene
type Light struct {
	Kind      LightKind
	Color     colorful.Color
	Intensity float64
}

// Scene is the root of everything rendered
type Scene struct {
	Root   *Group
	Lights []Light
}

// NewScene creates a scene with an ambient and a directional light
func NewScene() *Scene {
	return &Scene{
		Root: NewGroup(),
		Lights: []Light{
			{Kind: AmbientLight, Color: colorful.Color{R: 0.8, G: 0.8, B: 0.8}, Intensity: math.Pi},
			{Kind: DirectionalLight, Color: colorful.Color{R: 1, G: 1, B: 1}, Intensity: 0.6 * math.Pi},
		},
	}
}

// Count returns how many objects under the root carry role
func (s *Scene) Count(role Role) int {
	n := 0
	Walk(s.Root, func(o Object) bool {
		if t := o.Base().Tag; t != nil && t.Role == role {
			n++
		}
		return true
	})
	return n
}
