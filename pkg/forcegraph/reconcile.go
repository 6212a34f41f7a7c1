package forcegraph

import (
	"maps"
	"slices"

	"github.com/dd0wney/cluso-forcegraph/pkg/accessor"
	"github.com/dd0wney/cluso-forcegraph/pkg/logging"
	"github.com/dd0wney/cluso-forcegraph/pkg/scene"
)

// Effect is what an option change requires of existing renderables
type Effect uint8

const (
	// EffectVisibility re-evaluates whether the object should exist
	EffectVisibility Effect = 1 << iota
	// EffectRebuild destroys and recreates the object
	EffectRebuild
	// EffectMaterial reassigns the material
	EffectMaterial
	// EffectGeometry reassigns the geometry
	EffectGeometry
)

// Has reports whether e includes every bit of x
func (e Effect) Has(x Effect) bool { return e&x == x }

var nodeEffects = map[OptionName]Effect{
	OptNodeVisibility:        EffectVisibility,
	OptGraph:                 EffectRebuild,
	OptNodeThreeObject:       EffectRebuild,
	OptNodeThreeObjectExtend: EffectRebuild,
	OptNodeAutoColorBy:       EffectMaterial,
	OptNodeColor:             EffectMaterial,
	OptNodeOpacity:           EffectMaterial,
	OptNodeVal:               EffectGeometry,
	OptNodeRelSize:           EffectGeometry,
	OptNodeResolution:        EffectGeometry,
}

var linkEffects = map[OptionName]Effect{
	OptLinkVisibility:        EffectVisibility,
	OptGraph:                 EffectRebuild,
	OptLinkThreeObject:       EffectRebuild,
	OptLinkThreeObjectExtend: EffectRebuild,
	OptLinkAutoColorBy:       EffectMaterial,
	OptLinkColor:             EffectMaterial,
	OptLinkOpacity:           EffectMaterial,
	OptLinkMaterial:          EffectMaterial,
	OptLinkWidth:             EffectGeometry,
	OptLinkResolution:        EffectGeometry,
}

var arrowEffects = map[OptionName]Effect{
	OptLinkDirectionalArrowLength:     EffectVisibility | EffectGeometry,
	OptLinkColor:                      EffectMaterial,
	OptLinkDirectionalArrowColor:      EffectMaterial,
	OptLinkOpacity:                    EffectMaterial,
	OptLinkDirectionalArrowResolution: EffectGeometry,
}

var photonEffects = map[OptionName]Effect{
	OptLinkDirectionalParticles:          EffectVisibility,
	OptLinkColor:                         EffectMaterial,
	OptLinkDirectionalParticleColor:      EffectMaterial,
	OptLinkOpacity:                       EffectMaterial,
	OptLinkDirectionalParticleWidth:      EffectGeometry,
	OptLinkDirectionalParticleResolution: EffectGeometry,
}

// Plan is the folded effect of a set of option changes per object kind
type Plan struct {
	Node    Effect
	Link    Effect
	Arrow   Effect
	Photons Effect
}

// NewPlan folds the effect tables over the changed option names
func NewPlan(changed ...OptionName) Plan {
	var p Plan
	for _, name := range changed {
		p.Node |= nodeEffects[name]
		p.Link |= linkEffects[name]
		p.Arrow |= arrowEffects[name]
		p.Photons |= photonEffects[name]
	}
	return p
}

// Reconciler actions, as recorded in metrics
const (
	actionAdd     = "add"
	actionDrop    = "drop"
	actionRebuild = "rebuild"
	actionPatch   = "patch"
	actionKeep    = "keep"
	actionSkip    = "skip"
)

// reconcile walks every element once and applies the plan for changed
func (f *ForceGraph) reconcile(changed []OptionName) {
	plan := NewPlan(changed...)
	counts := make(map[string]int)

	for _, n := range f.graph.Nodes() {
		action := f.refreshNode(plan.Node, nodeElement(n))
		f.recordAction(scene.RoleNode, action)
		counts["node_"+action]++
	}
	for _, e := range f.graph.Edges() {
		action := f.refreshEdge(plan, edgeElement(e))
		f.recordAction(scene.RoleLink, action)
		counts["link_"+action]++
	}

	if len(changed) > 0 || f.flush {
		fields := []logging.Field{logging.Int("changed", len(changed)), logging.Bool("flush", f.flush)}
		for _, k := range slices.Sorted(maps.Keys(counts)) {
			fields = append(fields, logging.Int(k, counts[k]))
		}
		f.log.Debug("reconciled", fields...)
	}
}

func (f *ForceGraph) refreshNode(eff Effect, el accessor.Element) string {
	if b := f.nodes[el.Key]; b != nil {
		b.el = el
		b.obj.Base().Tag.Attributes = el.Attributes
	}

	switch {
	case eff.Has(EffectVisibility):
		dropped := f.dropNode(el.Key)
		if f.addNode(el) {
			return actionAdd
		}
		if dropped {
			return actionDrop
		}
		return actionSkip
	case !f.nodeVisibility.Truthy(el):
		return actionSkip
	case eff.Has(EffectRebuild) || f.flush:
		f.dropNode(el.Key)
		f.addNode(el)
		return actionRebuild
	}

	b := f.nodes[el.Key]
	if b == nil {
		return actionSkip
	}
	p := b.primitive()
	if p == nil || eff&(EffectMaterial|EffectGeometry) == 0 {
		return actionKeep
	}
	if eff.Has(EffectMaterial) {
		p.SetMaterial(f.factory.nodeMaterial(el))
	}
	if eff.Has(EffectGeometry) {
		p.SetGeometry(f.factory.nodeGeometry(el))
	}
	return actionPatch
}

func (f *ForceGraph) refreshEdge(plan Plan, el accessor.Element) string {
	if b := f.edges[el.Key]; b != nil {
		b.el = el
		b.obj.Base().Tag.Attributes = el.Attributes
	}

	switch {
	case plan.Link.Has(EffectVisibility):
		dropped := f.dropEdge(el.Key)
		if f.addEdge(el) {
			return actionAdd
		}
		if dropped {
			return actionDrop
		}
		return actionSkip
	case !f.linkVisibility.Truthy(el):
		return actionSkip
	case plan.Link.Has(EffectRebuild) || f.flush:
		f.dropEdge(el.Key)
		f.addEdge(el)
		return actionRebuild
	}

	b := f.edges[el.Key]
	if b == nil {
		return actionSkip
	}

	action := actionKeep
	if p := b.primitive(); p != nil && plan.Link&(EffectMaterial|EffectGeometry) != 0 {
		if f.shapeChanged(b) {
			f.dropEdge(el.Key)
			f.addEdge(el)
			return actionRebuild
		}
		if plan.Link.Has(EffectMaterial) {
			p.SetMaterial(f.factory.linkMaterial(el))
		}
		if _, tube := p.(*scene.Mesh); tube && plan.Link.Has(EffectGeometry) {
			p.SetGeometry(f.factory.linkGeometry(el, b.curve))
		}
		action = actionPatch
	}

	arrow := f.refreshArrow(plan.Arrow, b)
	photons := f.refreshPhotons(plan.Photons, b)
	if arrow || photons {
		action = actionPatch
	}
	return action
}

// refreshArrow creates, removes or patches an edge's arrow. It reports
// whether anything changed.
func (f *ForceGraph) refreshArrow(eff Effect, b *edgeBinding) bool {
	if eff == 0 {
		return false
	}
	want := f.factory.arrowLength(b.el) > 0

	switch {
	case !want:
		if b.arrow == nil {
			return false
		}
		scene.Destroy(b.arrow)
		b.arrow = nil
		f.recordDestroyed(scene.RoleArrow)
	case b.arrow == nil:
		b.arrow = f.factory.completeArrow(b.el, f.scene.Root)
		f.recordCreated(scene.RoleArrow)
	default:
		if eff.Has(EffectMaterial) {
			f.factory.applyArrowMaterial(b.arrow, b.el)
		}
		if eff.Has(EffectGeometry) {
			b.arrow.SetGeometry(f.factory.arrowGeometry(b.el))
		}
	}
	return true
}

// refreshPhotons creates, removes, resizes or patches an edge's particles.
// Single-hop particles are patched alongside. It reports whether anything
// changed.
func (f *ForceGraph) refreshPhotons(eff Effect, b *edgeBinding) bool {
	if eff == 0 {
		return false
	}
	n := f.factory.particleCount(b.el)

	switch {
	case n == 0:
		if b.photons != nil {
			scene.Destroy(b.photons)
			b.photons = nil
			f.recordDestroyed(scene.RolePhotons)
		}
	case b.photons == nil || b.photons.ChildCount() != n:
		if b.photons != nil {
			scene.Destroy(b.photons)
			f.recordDestroyed(scene.RolePhotons)
		}
		b.photons = f.factory.completePhotons(b.el, f.scene.Root)
		f.recordCreated(scene.RolePhotons)
	}
	f.patchParticles(b, eff.Has(EffectGeometry), eff.Has(EffectMaterial))
	return true
}

func (f *ForceGraph) recordAction(role scene.Role, action string) {
	if f.metrics != nil {
		f.metrics.RecordReconcileAction(string(role), action)
	}
}
