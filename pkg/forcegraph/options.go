package forcegraph

import (
	"context"
	"math"
	"time"

	"github.com/dd0wney/cluso-forcegraph/pkg/accessor"
	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
	"github.com/dd0wney/cluso-forcegraph/pkg/layout"
	"github.com/dd0wney/cluso-forcegraph/pkg/logging"
	"github.com/dd0wney/cluso-forcegraph/pkg/metrics"
	"github.com/dd0wney/cluso-forcegraph/pkg/scene"
)

// OptionName identifies a configurable property. The reconciler decides
// what to rebuild from the set of names changed since the last update.
type OptionName string

const (
	OptGraph                             OptionName = "graph"
	OptNumDimensions                     OptionName = "numDimensions"
	OptNodeRelSize                       OptionName = "nodeRelSize"
	OptNodeVal                           OptionName = "nodeVal"
	OptNodeResolution                    OptionName = "nodeResolution"
	OptNodeColor                         OptionName = "nodeColor"
	OptNodeAutoColorBy                   OptionName = "nodeAutoColorBy"
	OptNodeOpacity                       OptionName = "nodeOpacity"
	OptNodeVisibility                    OptionName = "nodeVisibility"
	OptNodeThreeObject                   OptionName = "nodeThreeObject"
	OptNodeThreeObjectExtend             OptionName = "nodeThreeObjectExtend"
	OptNodePositionUpdate                OptionName = "nodePositionUpdate"
	OptLinkVisibility                    OptionName = "linkVisibility"
	OptLinkColor                         OptionName = "linkColor"
	OptLinkAutoColorBy                   OptionName = "linkAutoColorBy"
	OptLinkOpacity                       OptionName = "linkOpacity"
	OptLinkWidth                         OptionName = "linkWidth"
	OptLinkResolution                    OptionName = "linkResolution"
	OptLinkCurvature                     OptionName = "linkCurvature"
	OptLinkCurveRotation                 OptionName = "linkCurveRotation"
	OptLinkMaterial                      OptionName = "linkMaterial"
	OptLinkThreeObject                   OptionName = "linkThreeObject"
	OptLinkThreeObjectExtend             OptionName = "linkThreeObjectExtend"
	OptLinkPositionUpdate                OptionName = "linkPositionUpdate"
	OptLinkDirectionalArrowLength        OptionName = "linkDirectionalArrowLength"
	OptLinkDirectionalArrowColor         OptionName = "linkDirectionalArrowColor"
	OptLinkDirectionalArrowRelPos        OptionName = "linkDirectionalArrowRelPos"
	OptLinkDirectionalArrowResolution    OptionName = "linkDirectionalArrowResolution"
	OptLinkDirectionalParticles          OptionName = "linkDirectionalParticles"
	OptLinkDirectionalParticleSpeed      OptionName = "linkDirectionalParticleSpeed"
	OptLinkDirectionalParticleWidth      OptionName = "linkDirectionalParticleWidth"
	OptLinkDirectionalParticleColor      OptionName = "linkDirectionalParticleColor"
	OptLinkDirectionalParticleResolution OptionName = "linkDirectionalParticleResolution"
	OptForceEngine                       OptionName = "forceEngine"
	OptPhysics                           OptionName = "ngraphPhysics"
	OptWarmupTicks                       OptionName = "warmupTicks"
	OptCooldownTicks                     OptionName = "cooldownTicks"
	OptCooldownTime                      OptionName = "cooldownTime"
	OptEnableNodeDrag                    OptionName = "enableNodeDrag"
	optInternal                          OptionName = ""
)

// NodePositionFunc replaces the default position write for a node object.
// Returning true skips the default write unless the object is extended.
type NodePositionFunc func(obj scene.Object, pos layout.Position, node graph.Node) bool

// LinkPositionFunc replaces the default geometry update for a link object.
// Returning true skips the default update unless the object is extended.
type LinkPositionFunc func(obj scene.Object, start, end layout.Position, edge graph.Edge) bool

// DragFunc receives a node and the translation applied by a drag
type DragFunc func(node graph.Node, translate layout.Position)

// SourceLoader fetches and decodes a graph from a URL
type SourceLoader func(ctx context.Context, url string) (*graph.Graph, error)

// Clock abstracts wall time so cooldowns can be tested
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Option configures a ForceGraph
type Option struct {
	name OptionName
	// trigger is false for options that take effect without an update cycle
	trigger bool
	apply   func(*settings)
}

// Name returns the property the option sets
func (o Option) Name() OptionName { return o.name }

func option(name OptionName, trigger bool, apply func(*settings)) Option {
	return Option{name: name, trigger: trigger, apply: apply}
}

type settings struct {
	graph         *graph.Graph
	numDimensions int

	nodeRelSize           float64
	nodeVal               accessor.Accessor
	nodeResolution        int
	nodeColor             accessor.Accessor
	nodeAutoColorBy       accessor.Accessor
	nodeOpacity           float64
	nodeVisibility        accessor.Accessor
	nodeThreeObject       accessor.Accessor
	nodeThreeObjectExtend accessor.Accessor
	nodePositionUpdate    NodePositionFunc

	linkVisibility        accessor.Accessor
	linkColor             accessor.Accessor
	linkAutoColorBy       accessor.Accessor
	linkOpacity           float64
	linkWidth             accessor.Accessor
	linkResolution        int
	linkCurvature         accessor.Accessor
	linkCurveRotation     accessor.Accessor
	linkMaterial          accessor.Accessor
	linkThreeObject       accessor.Accessor
	linkThreeObjectExtend accessor.Accessor
	linkPositionUpdate    LinkPositionFunc

	arrowLength     accessor.Accessor
	arrowColor      accessor.Accessor
	arrowRelPos     accessor.Accessor
	arrowResolution int

	particles          accessor.Accessor
	particleSpeed      accessor.Accessor
	particleWidth      accessor.Accessor
	particleColor      accessor.Accessor
	particleResolution int

	forceEngine    layout.Kind
	physics        layout.Physics
	warmupTicks    int
	cooldownTicks  int
	cooldownTime   time.Duration
	enableNodeDrag bool
	frameInterval  time.Duration

	onEngineTick    func()
	onEngineStop    func()
	onLoading       func()
	onFinishLoading func()
	onLoadError     func(error)
	onNodeDrag      DragFunc
	onNodeDragEnd   DragFunc

	logger  logging.Logger
	metrics *metrics.Registry
	clock   Clock
	tracker *scene.Tracker
	loader  SourceLoader
}

func defaultSettings() settings {
	return settings{
		numDimensions: 3,

		nodeRelSize:           4,
		nodeVal:               accessor.Field("val"),
		nodeResolution:        8,
		nodeColor:             accessor.Field("color"),
		nodeOpacity:           0.75,
		nodeVisibility:        accessor.Const(true),
		nodeThreeObjectExtend: accessor.Const(false),

		linkVisibility:        accessor.Const(true),
		linkColor:             accessor.Field("color"),
		linkOpacity:           0.2,
		linkResolution:        6,
		linkCurvature:         accessor.Const(0.0),
		linkCurveRotation:     accessor.Const(0.0),
		linkThreeObjectExtend: accessor.Const(false),

		arrowLength:     accessor.Const(0.0),
		arrowRelPos:     accessor.Const(0.5),
		arrowResolution: 8,

		particles:          accessor.Const(0.0),
		particleSpeed:      accessor.Const(0.01),
		particleWidth:      accessor.Const(0.5),
		particleResolution: 4,

		forceEngine:    layout.KindForce,
		physics:        layout.DefaultPhysics(),
		cooldownTicks:  math.MaxInt,
		cooldownTime:   15 * time.Second,
		enableNodeDrag: true,
		frameInterval:  time.Second / 60,

		logger: logging.NewNopLogger(),
		clock:  realClock{},
	}
}

// WithGraph replaces the rendered graph. Listeners move to the new graph, the
// layout is rebuilt and every object is recreated on the next update.
func WithGraph(g *graph.Graph) Option {
	return option(OptGraph, true, func(s *settings) { s.graph = g })
}

// WithNumDimensions sets the layout dimensionality (1 to 3)
func WithNumDimensions(n int) Option {
	return option(OptNumDimensions, true, func(s *settings) { s.numDimensions = n })
}

// WithNodeRelSize sets the sphere radius per cube root of node value
func WithNodeRelSize(size float64) Option {
	return option(OptNodeRelSize, true, func(s *settings) { s.nodeRelSize = size })
}

// WithNodeVal sets the node value accessor; strings name an attribute
func WithNodeVal(v any) Option {
	return option(OptNodeVal, true, func(s *settings) { s.nodeVal = accessor.From(v) })
}

// WithNodeResolution sets the sphere segment count
func WithNodeResolution(n int) Option {
	return option(OptNodeResolution, true, func(s *settings) { s.nodeResolution = n })
}

// WithNodeColor sets the node color accessor. A string names an attribute;
// use accessor.Const for a fixed color.
func WithNodeColor(v any) Option {
	return option(OptNodeColor, true, func(s *settings) { s.nodeColor = accessor.From(v) })
}

// WithNodeAutoColorBy groups nodes for categorical coloring when they have
// no color of their own
func WithNodeAutoColorBy(v any) Option {
	return option(OptNodeAutoColorBy, true, func(s *settings) { s.nodeAutoColorBy = accessor.From(v) })
}

// WithNodeOpacity sets the node material opacity
func WithNodeOpacity(opacity float64) Option {
	return option(OptNodeOpacity, true, func(s *settings) { s.nodeOpacity = opacity })
}

// WithNodeVisibility sets the node visibility accessor
func WithNodeVisibility(v any) Option {
	return option(OptNodeVisibility, true, func(s *settings) { s.nodeVisibility = accessor.From(v) })
}

// WithNodeThreeObject sets a custom node object. A scene.Object is a shared
// template that is cloned per node; a func(accessor.Element) scene.Object
// builds one per node.
func WithNodeThreeObject(v any) Option {
	return option(OptNodeThreeObject, true, func(s *settings) { s.nodeThreeObject = objectAccessor(v) })
}

// WithNodeThreeObjectExtend keeps the default sphere alongside the custom object
func WithNodeThreeObjectExtend(v any) Option {
	return option(OptNodeThreeObjectExtend, true, func(s *settings) { s.nodeThreeObjectExtend = accessor.From(v) })
}

// WithNodePositionUpdate installs a custom node position writer
func WithNodePositionUpdate(fn NodePositionFunc) Option {
	return option(OptNodePositionUpdate, false, func(s *settings) { s.nodePositionUpdate = fn })
}

// WithLinkVisibility sets the link visibility accessor
func WithLinkVisibility(v any) Option {
	return option(OptLinkVisibility, true, func(s *settings) { s.linkVisibility = accessor.From(v) })
}

// WithLinkColor sets the link color accessor
func WithLinkColor(v any) Option {
	return option(OptLinkColor, true, func(s *settings) { s.linkColor = accessor.From(v) })
}

// WithLinkAutoColorBy groups links for categorical coloring
func WithLinkAutoColorBy(v any) Option {
	return option(OptLinkAutoColorBy, true, func(s *settings) { s.linkAutoColorBy = accessor.From(v) })
}

// WithLinkOpacity sets the link material opacity
func WithLinkOpacity(opacity float64) Option {
	return option(OptLinkOpacity, true, func(s *settings) { s.linkOpacity = opacity })
}

// WithLinkWidth sets the link width accessor. Zero width draws a thin line,
// anything else a cylinder.
func WithLinkWidth(v any) Option {
	return option(OptLinkWidth, true, func(s *settings) { s.linkWidth = accessor.From(v) })
}

// WithLinkResolution sets the cylinder radial segment count
func WithLinkResolution(n int) Option {
	return option(OptLinkResolution, true, func(s *settings) { s.linkResolution = n })
}

// WithLinkCurvature sets the curvature accessor (0 is straight, 1 a semicircle)
func WithLinkCurvature(v any) Option {
	return option(OptLinkCurvature, false, func(s *settings) { s.linkCurvature = accessor.From(v) })
}

// WithLinkCurveRotation sets the rotation of curved links about their axis
func WithLinkCurveRotation(v any) Option {
	return option(OptLinkCurveRotation, false, func(s *settings) { s.linkCurveRotation = accessor.From(v) })
}

// WithLinkMaterial sets a custom link material accessor. A non-nil
// *scene.Material result replaces the computed material; the engine retains
// it for each link that uses it.
func WithLinkMaterial(v any) Option {
	return option(OptLinkMaterial, true, func(s *settings) { s.linkMaterial = materialAccessor(v) })
}

// WithLinkThreeObject sets a custom link object, see WithNodeThreeObject
func WithLinkThreeObject(v any) Option {
	return option(OptLinkThreeObject, true, func(s *settings) { s.linkThreeObject = objectAccessor(v) })
}

// WithLinkThreeObjectExtend keeps the default line alongside the custom object
func WithLinkThreeObjectExtend(v any) Option {
	return option(OptLinkThreeObjectExtend, true, func(s *settings) { s.linkThreeObjectExtend = accessor.From(v) })
}

// WithLinkPositionUpdate installs a custom link position writer
func WithLinkPositionUpdate(fn LinkPositionFunc) Option {
	return option(OptLinkPositionUpdate, false, func(s *settings) { s.linkPositionUpdate = fn })
}

// WithLinkDirectionalArrowLength sets the arrow length accessor; 0 draws no arrow
func WithLinkDirectionalArrowLength(v any) Option {
	return option(OptLinkDirectionalArrowLength, true, func(s *settings) { s.arrowLength = accessor.From(v) })
}

// WithLinkDirectionalArrowColor sets the arrow color accessor
func WithLinkDirectionalArrowColor(v any) Option {
	return option(OptLinkDirectionalArrowColor, true, func(s *settings) { s.arrowColor = accessor.From(v) })
}

// WithLinkDirectionalArrowRelPos sets where along the visible line the arrow sits
func WithLinkDirectionalArrowRelPos(v any) Option {
	return option(OptLinkDirectionalArrowRelPos, false, func(s *settings) { s.arrowRelPos = accessor.From(v) })
}

// WithLinkDirectionalArrowResolution sets the cone segment count
func WithLinkDirectionalArrowResolution(n int) Option {
	return option(OptLinkDirectionalArrowResolution, true, func(s *settings) { s.arrowResolution = n })
}

// WithLinkDirectionalParticles sets how many particles travel along each link
func WithLinkDirectionalParticles(v any) Option {
	return option(OptLinkDirectionalParticles, true, func(s *settings) { s.particles = accessor.From(v) })
}

// WithLinkDirectionalParticleSpeed sets particle speed in link lengths per frame
func WithLinkDirectionalParticleSpeed(v any) Option {
	return option(OptLinkDirectionalParticleSpeed, false, func(s *settings) { s.particleSpeed = accessor.From(v) })
}

// WithLinkDirectionalParticleWidth sets the particle diameter accessor
func WithLinkDirectionalParticleWidth(v any) Option {
	return option(OptLinkDirectionalParticleWidth, true, func(s *settings) { s.particleWidth = accessor.From(v) })
}

// WithLinkDirectionalParticleColor sets the particle color accessor
func WithLinkDirectionalParticleColor(v any) Option {
	return option(OptLinkDirectionalParticleColor, true, func(s *settings) { s.particleColor = accessor.From(v) })
}

// WithLinkDirectionalParticleResolution sets the particle sphere segment count
func WithLinkDirectionalParticleResolution(n int) Option {
	return option(OptLinkDirectionalParticleResolution, true, func(s *settings) { s.particleResolution = n })
}

// WithForceEngine selects the layout engine
func WithForceEngine(kind layout.Kind) Option {
	return option(OptForceEngine, true, func(s *settings) { s.forceEngine = kind })
}

// WithPhysics sets the layout parameters
func WithPhysics(p layout.Physics) Option {
	return option(OptPhysics, true, func(s *settings) { s.physics = p })
}

// WithWarmupTicks sets how many layout steps run before the first frame
func WithWarmupTicks(n int) Option {
	return option(OptWarmupTicks, false, func(s *settings) { s.warmupTicks = n })
}

// WithCooldownTicks stops the engine after n frames. n <= 0 means no limit.
func WithCooldownTicks(n int) Option {
	return option(OptCooldownTicks, false, func(s *settings) {
		if n <= 0 {
			n = math.MaxInt
		}
		s.cooldownTicks = n
	})
}

// WithCooldownTime stops the engine after d of simulation
func WithCooldownTime(d time.Duration) Option {
	return option(OptCooldownTime, false, func(s *settings) { s.cooldownTime = d })
}

// WithNodeDrag enables drag controls; they are rebuilt on the next update
func WithNodeDrag(enabled bool) Option {
	return option(OptEnableNodeDrag, false, func(s *settings) { s.enableNodeDrag = enabled })
}

// WithFrameInterval sets the frame period used by Run
func WithFrameInterval(d time.Duration) Option {
	return option(optInternal, false, func(s *settings) {
		if d > 0 {
			s.frameInterval = d
		}
	})
}

// OnEngineTick is called after every layout step
func OnEngineTick(fn func()) Option {
	return option(optInternal, false, func(s *settings) { s.onEngineTick = fn })
}

// OnEngineStop is called once when the layout cools down
func OnEngineStop(fn func()) Option {
	return option(optInternal, false, func(s *settings) { s.onEngineStop = fn })
}

// OnLoading is called when LoadGraph starts
func OnLoading(fn func()) Option {
	return option(optInternal, false, func(s *settings) { s.onLoading = fn })
}

// OnFinishLoading is called when LoadGraph succeeds, once the new graph is in place
func OnFinishLoading(fn func()) Option {
	return option(optInternal, false, func(s *settings) { s.onFinishLoading = fn })
}

// OnLoadError is called with a *LoadError when LoadGraph fails
func OnLoadError(fn func(error)) Option {
	return option(optInternal, false, func(s *settings) { s.onLoadError = fn })
}

// OnNodeDrag is called on every drag move
func OnNodeDrag(fn DragFunc) Option {
	return option(optInternal, false, func(s *settings) { s.onNodeDrag = fn })
}

// OnNodeDragEnd is called when a drag that moved its node ends
func OnNodeDragEnd(fn DragFunc) Option {
	return option(optInternal, false, func(s *settings) { s.onNodeDragEnd = fn })
}

// WithLogger sets the engine logger
func WithLogger(l logging.Logger) Option {
	return option(optInternal, false, func(s *settings) {
		if l != nil {
			s.logger = l
		}
	})
}

// WithMetrics records engine activity in reg
func WithMetrics(reg *metrics.Registry) Option {
	return option(optInternal, false, func(s *settings) { s.metrics = reg })
}

// WithClock replaces the wall clock
func WithClock(c Clock) Option {
	return option(optInternal, false, func(s *settings) {
		if c != nil {
			s.clock = c
		}
	})
}

// WithTracker records every geometry and material the engine creates
func WithTracker(t *scene.Tracker) Option {
	return option(optInternal, false, func(s *settings) { s.tracker = t })
}

// WithSourceLoader replaces the loader used by LoadGraph
func WithSourceLoader(fn SourceLoader) Option {
	return option(optInternal, false, func(s *settings) { s.loader = fn })
}

// objectAccessor normalizes custom object values. Objects are constants;
// builder functions become accessor functions.
func objectAccessor(v any) accessor.Accessor {
	switch o := v.(type) {
	case scene.Object:
		return accessor.Const(o)
	case func(accessor.Element) scene.Object:
		return accessor.Fn(func(e accessor.Element) any {
			if obj := o(e); obj != nil {
				return obj
			}
			return nil
		})
	default:
		return accessor.From(v)
	}
}

// materialAccessor normalizes custom material values the same way
func materialAccessor(v any) accessor.Accessor {
	switch m := v.(type) {
	case *scene.Material:
		if m == nil {
			return accessor.None()
		}
		return accessor.Const(m)
	case func(accessor.Element) *scene.Material:
		return accessor.Fn(func(e accessor.Element) any {
			if mat := m(e); mat != nil {
				return mat
			}
			return nil
		})
	default:
		return accessor.From(v)
	}
}
