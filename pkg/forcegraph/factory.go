package forcegraph

import (
	"math"

	"github.com/dd0wney/cluso-forcegraph/pkg/accessor"
	"github.com/dd0wney/cluso-forcegraph/pkg/colors"
	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
	"github.com/dd0wney/cluso-forcegraph/pkg/scene"
)

const (
	defaultNodeColor = "#ffffaa"
	defaultLinkColor = "#f0f0f0"
	lineRenderOrder  = 10
)

// nodeBinding is the scene state of one visible node
type nodeBinding struct {
	el       accessor.Element
	obj      scene.Object
	extended bool
}

// edgeBinding is the scene state of one visible edge and its auxiliaries
type edgeBinding struct {
	el        accessor.Element
	obj       scene.Object
	extended  bool
	arrow     *scene.Mesh
	photons   *scene.Group
	singleHop *scene.Group
	// curve is nil for straight links
	curve scene.Curve
}

func (b *nodeBinding) primitive() scene.Renderable { return primitiveOf(b.obj, b.extended) }
func (b *nodeBinding) custom() scene.Object        { return customOf(b.obj, b.extended) }
func (b *edgeBinding) primitive() scene.Renderable { return primitiveOf(b.obj, b.extended) }
func (b *edgeBinding) custom() scene.Object        { return customOf(b.obj, b.extended) }

// primitiveOf returns the engine-owned renderable of obj, nil for custom objects
func primitiveOf(obj scene.Object, extended bool) scene.Renderable {
	if obj == nil || obj.Base().Tag == nil || !obj.Base().Tag.Default {
		return nil
	}
	if extended {
		r, _ := obj.Base().Child(0).(scene.Renderable)
		return r
	}
	r, _ := obj.(scene.Renderable)
	return r
}

// customOf returns the user-supplied object of obj, nil for default objects
func customOf(obj scene.Object, extended bool) scene.Object {
	if obj == nil || obj.Base().Tag == nil {
		return nil
	}
	if extended {
		return obj.Base().Child(1)
	}
	if !obj.Base().Tag.Default {
		return obj
	}
	return nil
}

func nodeElement(n graph.Node) accessor.Element {
	return accessor.Element{Key: n.Key, Attributes: n.Attributes}
}

func edgeElement(e graph.Edge) accessor.Element {
	return accessor.Element{Key: e.Key, Source: e.Source, Target: e.Target, Attributes: e.Attributes}
}

// factory builds renderables from graph elements and the current settings
type factory struct {
	s        *settings
	cache    *ResourceCache
	autoNode *colors.Ordinal
	autoLink *colors.Ordinal
}

func newFactory(s *settings, cache *ResourceCache) *factory {
	return &factory{
		s:        s,
		cache:    cache,
		autoNode: colors.NewOrdinal(),
		autoLink: colors.NewOrdinal(),
	}
}

// customObject evaluates a custom object accessor. The configured template
// itself is never placed in the scene; each element gets a clone.
func (fa *factory) customObject(acc accessor.Accessor, el accessor.Element) scene.Object {
	obj, ok := acc.Value(el).(scene.Object)
	if !ok || obj == nil {
		return nil
	}
	if tmpl, isConst := acc.Const(); isConst && tmpl == obj {
		return obj.Clone()
	}
	return obj
}

// compose combines a default primitive with an optional custom object
func compose(base, custom scene.Object, extend bool) (obj scene.Object, extended, isDefault bool) {
	switch {
	case custom != nil && !extend:
		return custom, false, false
	case custom != nil:
		group := scene.NewGroup()
		group.Add(base, custom)
		return group, true, true
	default:
		return base, false, true
	}
}

func (fa *factory) createBaseNode(el accessor.Element) (scene.Object, bool, bool) {
	custom := fa.customObject(fa.s.nodeThreeObject, el)
	extend := fa.s.nodeThreeObjectExtend.Truthy(el)
	var base scene.Object
	if custom == nil || extend {
		base = scene.NewMesh(nil, nil)
	}
	return compose(base, custom, extend)
}

// completeNode builds, tags and attaches the node's renderable
func (fa *factory) completeNode(el accessor.Element, container *scene.Group) *nodeBinding {
	obj, extended, isDefault := fa.createBaseNode(el)
	obj.Base().Tag = &scene.Tag{Role: scene.RoleNode, Key: el.Key, Attributes: el.Attributes, Default: isDefault}

	b := &nodeBinding{el: el, obj: obj, extended: extended}
	if p := b.primitive(); p != nil {
		p.SetGeometry(fa.nodeGeometry(el))
		p.SetMaterial(fa.nodeMaterial(el))
	}
	container.Add(obj)
	return b
}

func (fa *factory) nodeGeometry(el accessor.Element) scene.Geometry {
	radius := nodeRadius(fa.s.nodeVal.Float(el), fa.s.nodeRelSize)
	return fa.cache.SphereGeometry(radius, fa.s.nodeResolution)
}

func (fa *factory) nodeColor(el accessor.Element) string {
	if c := fa.s.nodeColor.String(el); c != "" {
		return c
	}
	if fa.s.nodeAutoColorBy.IsSet() {
		return fa.autoNode.Color(fa.s.nodeAutoColorBy.Value(el))
	}
	return defaultNodeColor
}

func (fa *factory) nodeMaterial(el accessor.Element) *scene.Material {
	color := fa.nodeColor(el)
	return fa.cache.NodeMaterial(color, fa.s.nodeOpacity*colors.Alpha(color))
}

// linkWidth rounds the width accessor up to one decimal
func (fa *factory) linkWidth(el accessor.Element) float64 {
	return math.Ceil(fa.s.linkWidth.Float(el)*10) / 10
}

func (fa *factory) createBaseLink(el accessor.Element) (scene.Object, bool, bool) {
	custom := fa.customObject(fa.s.linkThreeObject, el)
	extend := fa.s.linkThreeObjectExtend.Truthy(el)
	var base scene.Object
	if custom == nil || extend {
		if fa.linkWidth(el) != 0 {
			base = scene.NewMesh(nil, nil)
		} else {
			buf := scene.NewBufferGeometry(2)
			fa.cache.track(buf)
			base = scene.NewLine(buf, nil)
		}
	}
	obj, extended, isDefault := compose(base, custom, extend)
	obj.Base().RenderOrder = lineRenderOrder
	return obj, extended, isDefault
}

// completeLink builds, tags and attaches the edge's line
func (fa *factory) completeLink(el accessor.Element, container *scene.Group) *edgeBinding {
	obj, extended, isDefault := fa.createBaseLink(el)
	obj.Base().Tag = &scene.Tag{Role: scene.RoleLink, Key: el.Key, Attributes: el.Attributes, Default: isDefault}

	b := &edgeBinding{el: el, obj: obj, extended: extended}
	if p := b.primitive(); p != nil {
		if _, tube := p.(*scene.Mesh); tube {
			p.SetGeometry(fa.linkGeometry(el, nil))
		}
		p.SetMaterial(fa.linkMaterial(el))
	}
	container.Add(obj)
	return b
}

// linkGeometry returns the tube geometry for a wide link: a shared unit
// cylinder when straight, a dedicated tube along curve otherwise
func (fa *factory) linkGeometry(el accessor.Element, curve scene.Curve) scene.Geometry {
	width := fa.linkWidth(el)
	if curve != nil {
		tube := scene.NewTubeGeometry(curve, curveSegments, width/2, fa.s.linkResolution)
		fa.cache.track(tube)
		return tube
	}
	return fa.cache.CylinderGeometry(width, fa.s.linkResolution)
}

func (fa *factory) linkColor(el accessor.Element) string {
	if c := fa.s.linkColor.String(el); c != "" {
		return c
	}
	if fa.s.linkAutoColorBy.IsSet() {
		return fa.autoLink.Color(fa.s.linkAutoColorBy.Value(el))
	}
	return defaultLinkColor
}

func (fa *factory) linkMaterial(el accessor.Element) *scene.Material {
	if m, ok := fa.s.linkMaterial.Value(el).(*scene.Material); ok && m != nil {
		return m
	}
	color := fa.linkColor(el)
	kind := scene.MaterialLineBasic
	if fa.linkWidth(el) != 0 {
		kind = scene.MaterialLambert
	}
	return fa.cache.LinkMaterial(kind, color, fa.s.linkOpacity*colors.Alpha(color))
}

// auxColor picks the first non-empty of an auxiliary color, the link color
// and the default link color
func (fa *factory) auxColor(acc accessor.Accessor, el accessor.Element) string {
	if c := acc.String(el); c != "" {
		return c
	}
	if c := fa.s.linkColor.String(el); c != "" {
		return c
	}
	return defaultLinkColor
}

func (fa *factory) arrowLength(el accessor.Element) float64 {
	return fa.s.arrowLength.Float(el)
}

func (fa *factory) arrowGeometry(el accessor.Element) scene.Geometry {
	return fa.cache.ArrowGeometry(fa.arrowLength(el), fa.s.arrowResolution)
}

// applyArrowMaterial updates the arrow's own material in place, creating it
// on first use
func (fa *factory) applyArrowMaterial(arrow *scene.Mesh, el accessor.Element) {
	color := fa.auxColor(fa.s.arrowColor, el)
	parsed := colors.MustParse(color)
	opacity := fa.s.linkOpacity * 3 * parsed.A

	if m := arrow.Material(); m != nil {
		m.Color = parsed.Color
		m.Opacity = opacity
		return
	}
	m := scene.NewLambertMaterial(parsed.Color, opacity, true)
	fa.cache.track(m)
	arrow.SetMaterial(m)
}

// completeArrow builds and attaches the arrow cone of an edge
func (fa *factory) completeArrow(el accessor.Element, container *scene.Group) *scene.Mesh {
	arrow := scene.NewMesh(fa.arrowGeometry(el), nil)
	fa.applyArrowMaterial(arrow, el)
	arrow.Tag = &scene.Tag{Role: scene.RoleArrow, Key: el.Key, Attributes: el.Attributes, Default: true}
	container.Add(arrow)
	return arrow
}

func (fa *factory) particleCount(el accessor.Element) int {
	return int(math.Round(math.Abs(fa.s.particles.Float(el))))
}

func (fa *factory) photonGeometry(el accessor.Element) scene.Geometry {
	radius := math.Ceil(fa.s.particleWidth.Float(el)*10) / 10 / 2
	return fa.cache.ParticleGeometry(radius, fa.s.particleResolution)
}

func (fa *factory) photonMaterial(el accessor.Element) *scene.Material {
	color := fa.auxColor(fa.s.particleColor, el)
	return fa.cache.ParticleMaterial(color, fa.s.linkOpacity*3*colors.Alpha(color))
}

func (fa *factory) newParticle(el accessor.Element, geometry scene.Geometry, material *scene.Material) *scene.Mesh {
	p := scene.NewMesh(geometry, material)
	p.Tag = &scene.Tag{Role: scene.RoleParticle, Key: el.Key, Default: true}
	return p
}

// completePhotons builds the cyclic particle group of an edge. Particles
// start evenly spread along the link.
func (fa *factory) completePhotons(el accessor.Element, container *scene.Group) *scene.Group {
	group := scene.NewGroup()
	group.Tag = &scene.Tag{Role: scene.RolePhotons, Key: el.Key, Attributes: el.Attributes, Default: true}

	n := fa.particleCount(el)
	geometry, material := fa.photonGeometry(el), fa.photonMaterial(el)
	for i := 0; i < n; i++ {
		p := fa.newParticle(el, geometry, material)
		p.Progress = float64(i) / float64(n)
		group.Add(p)
	}
	container.Add(group)
	return group
}

// orOne treats zero and NaN as one
func orOne(v float64) float64 {
	if v == 0 || math.IsNaN(v) {
		return 1
	}
	return v
}

// nodeRadius is the sphere radius for a node value
func nodeRadius(val, relSize float64) float64 {
	return math.Cbrt(math.Max(0, orOne(val))) * relSize
}
