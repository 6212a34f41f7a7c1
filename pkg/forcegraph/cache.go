package forcegraph

import (
	"sync"

	"github.com/dd0wney/cluso-forcegraph/pkg/colors"
	"github.com/dd0wney/cluso-forcegraph/pkg/metrics"
	"github.com/dd0wney/cluso-forcegraph/pkg/scene"
)

// Tier is one family of cached resources
type Tier int

const (
	TierNodeGeometry Tier = iota
	TierNodeMaterial
	TierCylinderGeometry
	TierLambertLinkMaterial
	TierBasicLinkMaterial
	TierArrowGeometry
	TierParticleGeometry
	TierParticleMaterial
	tierCount
)

var tierNames = [...]string{
	TierNodeGeometry:        "node_geometry",
	TierNodeMaterial:        "node_material",
	TierCylinderGeometry:    "cylinder_geometry",
	TierLambertLinkMaterial: "lambert_link_material",
	TierBasicLinkMaterial:   "basic_link_material",
	TierArrowGeometry:       "arrow_geometry",
	TierParticleGeometry:    "particle_geometry",
	TierParticleMaterial:    "particle_material",
}

func (t Tier) String() string {
	if t < 0 || t >= tierCount {
		return "unknown"
	}
	return tierNames[t]
}

type segmentsKey struct {
	size     float64
	segments int
}

type materialKey struct {
	color   string
	opacity float64
}

// ResourceCache shares geometries and materials between renderables with
// identical parameters. The cache holds one reference to every entry, so
// invalidating it never frees a resource that is still in use.
type ResourceCache struct {
	tiers   [tierCount]map[any]scene.Disposable
	tracker *scene.Tracker
	metrics *metrics.Registry
	mu      sync.Mutex
}

// NewResourceCache creates an empty cache. tracker and reg may be nil.
func NewResourceCache(tracker *scene.Tracker, reg *metrics.Registry) *ResourceCache {
	c := &ResourceCache{tracker: tracker, metrics: reg}
	c.reset()
	return c
}

// instrument replaces the tracker and metrics registry
func (c *ResourceCache) instrument(tracker *scene.Tracker, reg *metrics.Registry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracker, c.metrics = tracker, reg
}

// track records a resource created outside the cache
func (c *ResourceCache) track(r scene.Disposable) {
	c.mu.Lock()
	tracker := c.tracker
	c.mu.Unlock()
	tracker.Track(r)
}

func (c *ResourceCache) reset() {
	for i := range c.tiers {
		c.tiers[i] = make(map[any]scene.Disposable)
	}
}

// GetOrCreate returns the entry for key in tier, building it with create on
// a miss. key must be comparable.
func (c *ResourceCache) GetOrCreate(tier Tier, key any, create func() scene.Disposable) scene.Disposable {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.tiers[tier][key]; ok {
		c.record(tier, true)
		return r
	}
	c.record(tier, false)

	r := create()
	r.Retain()
	c.tracker.Track(r)
	c.tiers[tier][key] = r
	return r
}

func (c *ResourceCache) record(tier Tier, hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(tier.String(), hit)
	}
}

// InvalidateAll drops every tier. Entries not referenced by any renderable
// are disposed; the rest live until their holders release them.
func (c *ResourceCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, tier := range c.tiers {
		for _, r := range tier {
			r.Release()
		}
	}
	c.reset()
}

// Len returns the number of entries in tier
func (c *ResourceCache) Len(tier Tier) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tiers[tier])
}

// SphereGeometry returns the node sphere for radius and segment count
func (c *ResourceCache) SphereGeometry(radius float64, segments int) *scene.SphereGeometry {
	r := c.GetOrCreate(TierNodeGeometry, segmentsKey{radius, segments}, func() scene.Disposable {
		return scene.NewSphereGeometry(radius, segments, segments)
	})
	return r.(*scene.SphereGeometry)
}

// NodeMaterial returns the translucent node material for color and opacity
func (c *ResourceCache) NodeMaterial(color string, opacity float64) *scene.Material {
	key := materialKey{colors.Hex(color), opacity}
	r := c.GetOrCreate(TierNodeMaterial, key, func() scene.Disposable {
		return scene.NewLambertMaterial(colors.MustParse(color).Color, opacity, true)
	})
	return r.(*scene.Material)
}

// CylinderGeometry returns the unit-length link tube for width
func (c *ResourceCache) CylinderGeometry(width float64, segments int) *scene.CylinderGeometry {
	r := c.GetOrCreate(TierCylinderGeometry, segmentsKey{width, segments}, func() scene.Disposable {
		return scene.NewCylinderGeometry(width/2, segments)
	})
	return r.(*scene.CylinderGeometry)
}

// LinkMaterial returns a Lambert material for tubes or a basic material for
// thin lines
func (c *ResourceCache) LinkMaterial(kind scene.MaterialKind, color string, opacity float64) *scene.Material {
	key := materialKey{colors.Hex(color), opacity}
	if kind == scene.MaterialLambert {
		r := c.GetOrCreate(TierLambertLinkMaterial, key, func() scene.Disposable {
			m := scene.NewLambertMaterial(colors.MustParse(color).Color, opacity, opacity < 1)
			m.DepthWrite = opacity >= 1
			return m
		})
		return r.(*scene.Material)
	}
	r := c.GetOrCreate(TierBasicLinkMaterial, key, func() scene.Disposable {
		m := scene.NewLineBasicMaterial(colors.MustParse(color).Color, opacity)
		m.DepthWrite = opacity >= 1
		return m
	})
	return r.(*scene.Material)
}

// ArrowGeometry returns the cone drawn for arrows of length
func (c *ResourceCache) ArrowGeometry(length float64, segments int) *scene.ConeGeometry {
	r := c.GetOrCreate(TierArrowGeometry, segmentsKey{length, segments}, func() scene.Disposable {
		return scene.NewConeGeometry(length/4, length, segments)
	})
	return r.(*scene.ConeGeometry)
}

// ParticleGeometry returns the particle sphere for radius
func (c *ResourceCache) ParticleGeometry(radius float64, segments int) *scene.SphereGeometry {
	r := c.GetOrCreate(TierParticleGeometry, segmentsKey{radius, segments}, func() scene.Disposable {
		return scene.NewSphereGeometry(radius, segments, segments)
	})
	return r.(*scene.SphereGeometry)
}

// ParticleMaterial returns the particle material for color and opacity
func (c *ResourceCache) ParticleMaterial(color string, opacity float64) *scene.Material {
	key := materialKey{colors.Hex(color), opacity}
	r := c.GetOrCreate(TierParticleMaterial, key, func() scene.Disposable {
		return scene.NewLambertMaterial(colors.MustParse(color).Color, opacity, true)
	})
	return r.(*scene.Material)
}
