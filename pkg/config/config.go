// Package config loads force graph settings from YAML files and turns them
// into engine options.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-forcegraph/pkg/accessor"
	"github.com/dd0wney/cluso-forcegraph/pkg/colors"
	"github.com/dd0wney/cluso-forcegraph/pkg/forcegraph"
	"github.com/dd0wney/cluso-forcegraph/pkg/layout"
	"github.com/dd0wney/cluso-forcegraph/pkg/logging"
	"github.com/dd0wney/cluso-forcegraph/pkg/validation"
)

// Config is the file representation of a force graph
type Config struct {
	// Source is the graph to load: a path, an http(s) URL or s3://bucket/key
	Source    string         `yaml:"source,omitempty"`
	Engine    EngineConfig   `yaml:"engine"`
	Node      NodeConfig     `yaml:"node"`
	Link      LinkConfig     `yaml:"link"`
	Arrows    ArrowConfig    `yaml:"arrows"`
	Particles ParticleConfig `yaml:"particles"`
	Physics   layout.Physics `yaml:"physics"`
	Metrics   MetricsConfig  `yaml:"metrics"`
	Logging   LoggingConfig  `yaml:"logging"`
	TLS       TLSConfig      `yaml:"tls,omitempty"`
	// TrustedProxies lists the CIDR ranges or addresses whose forwarding
	// headers name the real client
	TrustedProxies []string `yaml:"trustedProxies,omitempty" validate:"dive,cidr|ip"`
}

// EngineConfig selects the layout engine and its cooldown
type EngineConfig struct {
	Kind          string        `yaml:"kind" validate:"omitempty,oneof=force ngraph d3 eades circular"`
	Dimensions    int           `yaml:"dimensions" validate:"min=1,max=3"`
	WarmupTicks   int           `yaml:"warmupTicks" validate:"gte=0"`
	CooldownTicks int           `yaml:"cooldownTicks" validate:"gte=0"`
	CooldownTime  time.Duration `yaml:"cooldownTime" validate:"gte=0"`
	FrameRate     int           `yaml:"frameRate" validate:"min=1,max=240"`
	NodeDrag      bool          `yaml:"nodeDrag"`
}

// NodeConfig styles nodes
type NodeConfig struct {
	RelSize     float64      `yaml:"relSize" validate:"gt=0"`
	Resolution  int          `yaml:"resolution" validate:"min=1,max=128"`
	Opacity     float64      `yaml:"opacity"`
	Val         AccessorSpec `yaml:"val,omitempty"`
	Color       AccessorSpec `yaml:"color,omitempty"`
	AutoColorBy AccessorSpec `yaml:"autoColorBy,omitempty"`
	Visibility  AccessorSpec `yaml:"visibility,omitempty"`
}

// LinkConfig styles links
type LinkConfig struct {
	Resolution    int          `yaml:"resolution" validate:"min=1,max=128"`
	Opacity       float64      `yaml:"opacity"`
	Width         AccessorSpec `yaml:"width,omitempty"`
	Color         AccessorSpec `yaml:"color,omitempty"`
	AutoColorBy   AccessorSpec `yaml:"autoColorBy,omitempty"`
	Visibility    AccessorSpec `yaml:"visibility,omitempty"`
	Curvature     AccessorSpec `yaml:"curvature,omitempty"`
	CurveRotation AccessorSpec `yaml:"curveRotation,omitempty"`
}

// ArrowConfig styles directional arrows
type ArrowConfig struct {
	Resolution int          `yaml:"resolution" validate:"min=1,max=128"`
	Length     AccessorSpec `yaml:"length,omitempty"`
	Color      AccessorSpec `yaml:"color,omitempty"`
	RelPos     AccessorSpec `yaml:"relPos,omitempty"`
}

// ParticleConfig styles directional particles
type ParticleConfig struct {
	Resolution int          `yaml:"resolution" validate:"min=1,max=128"`
	Count      AccessorSpec `yaml:"count,omitempty"`
	Speed      AccessorSpec `yaml:"speed,omitempty"`
	Width      AccessorSpec `yaml:"width,omitempty"`
	Color      AccessorSpec `yaml:"color,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint of the server
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig controls the structured logger
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// TLSConfig serves the API over HTTPS when a certificate is configured
type TLSConfig struct {
	CertFile   string   `yaml:"certFile,omitempty"`
	KeyFile    string   `yaml:"keyFile,omitempty"`
	SelfSigned bool     `yaml:"selfSigned,omitempty"`
	Hosts      []string `yaml:"hosts,omitempty"`
}

// Enabled reports whether the server should speak HTTPS
func (c TLSConfig) Enabled() bool {
	return c.CertFile != "" || c.KeyFile != "" || c.SelfSigned
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Kind:         string(layout.KindForce),
			Dimensions:   3,
			CooldownTime: 15 * time.Second,
			FrameRate:    60,
			NodeDrag:     true,
		},
		Node: NodeConfig{
			RelSize:    4,
			Resolution: 8,
			Opacity:    0.75,
			Val:        Field("val"),
			Color:      Field("color"),
			Visibility: Const(true),
		},
		Link: LinkConfig{
			Resolution: 6,
			Opacity:    0.2,
			Color:      Field("color"),
			Visibility: Const(true),
		},
		Arrows: ArrowConfig{
			Resolution: 8,
			RelPos:     Const(0.5),
		},
		Particles: ParticleConfig{
			Resolution: 4,
			Speed:      Const(0.01),
			Width:      Const(0.5),
		},
		Physics: layout.DefaultPhysics(),
		Metrics: MetricsConfig{Path: "/metrics"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path on top of the defaults and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks struct tags and the constraints tags cannot express
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config cannot be nil")
	}
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	cv := validation.NewConfigValidator("config")
	cv.RangeFloat("node.opacity", c.Node.Opacity, 0, 1).
		RangeFloat("link.opacity", c.Link.Opacity, 0, 1).
		Finite("physics.gravity", c.Physics.GravitationalConstant).
		OneOf("logging.level", c.Logging.Level, []string{"debug", "info", "warn", "error"}).
		Custom("engine.kind", func() error {
			_, err := layout.ParseKind(c.Engine.Kind)
			return err
		}).
		When(c.Metrics.Enabled, func(cv *validation.ConfigValidator) {
			cv.Required("metrics.path", c.Metrics.Path)
		}).
		When(c.TLS.CertFile != "" || c.TLS.KeyFile != "", func(cv *validation.ConfigValidator) {
			cv.Required("tls.certFile", c.TLS.CertFile).
				Required("tls.keyFile", c.TLS.KeyFile)
		})

	for field, spec := range map[string]AccessorSpec{
		"node.color":      c.Node.Color,
		"link.color":      c.Link.Color,
		"arrows.color":    c.Arrows.Color,
		"particles.color": c.Particles.Color,
	} {
		cv.Custom(field, func() error { return constColor(spec) })
	}

	if err := cv.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// constColor rejects constant colors that do not parse
func constColor(spec AccessorSpec) error {
	v, ok := spec.acc.Const()
	if !ok {
		return nil
	}
	s, isString := v.(string)
	if !isString {
		return fmt.Errorf("constant color must be a string, got %T", v)
	}
	_, err := colors.Parse(s)
	return err
}

// Level returns the configured log level
func (c *Config) Level() logging.Level {
	return logging.ParseLevel(c.Logging.Level)
}

// Options converts the configuration into engine options
func (c *Config) Options() ([]forcegraph.Option, error) {
	kind, err := layout.ParseKind(c.Engine.Kind)
	if err != nil {
		return nil, err
	}

	opts := []forcegraph.Option{
		forcegraph.WithForceEngine(kind),
		forcegraph.WithNumDimensions(c.Engine.Dimensions),
		forcegraph.WithPhysics(c.Physics),
		forcegraph.WithWarmupTicks(c.Engine.WarmupTicks),
		forcegraph.WithCooldownTicks(c.Engine.CooldownTicks),
		forcegraph.WithCooldownTime(c.Engine.CooldownTime),
		forcegraph.WithNodeDrag(c.Engine.NodeDrag),
		forcegraph.WithFrameInterval(time.Second / time.Duration(validation.DefaultOrInt(c.Engine.FrameRate, 60))),

		forcegraph.WithNodeRelSize(c.Node.RelSize),
		forcegraph.WithNodeResolution(c.Node.Resolution),
		forcegraph.WithNodeOpacity(c.Node.Opacity),
		forcegraph.WithLinkResolution(c.Link.Resolution),
		forcegraph.WithLinkOpacity(c.Link.Opacity),
		forcegraph.WithLinkDirectionalArrowResolution(c.Arrows.Resolution),
		forcegraph.WithLinkDirectionalParticleResolution(c.Particles.Resolution),
	}

	accessors := []struct {
		spec AccessorSpec
		opt  func(any) forcegraph.Option
	}{
		{c.Node.Val, forcegraph.WithNodeVal},
		{c.Node.Color, forcegraph.WithNodeColor},
		{c.Node.AutoColorBy, forcegraph.WithNodeAutoColorBy},
		{c.Node.Visibility, forcegraph.WithNodeVisibility},
		{c.Link.Width, forcegraph.WithLinkWidth},
		{c.Link.Color, forcegraph.WithLinkColor},
		{c.Link.AutoColorBy, forcegraph.WithLinkAutoColorBy},
		{c.Link.Visibility, forcegraph.WithLinkVisibility},
		{c.Link.Curvature, forcegraph.WithLinkCurvature},
		{c.Link.CurveRotation, forcegraph.WithLinkCurveRotation},
		{c.Arrows.Length, forcegraph.WithLinkDirectionalArrowLength},
		{c.Arrows.Color, forcegraph.WithLinkDirectionalArrowColor},
		{c.Arrows.RelPos, forcegraph.WithLinkDirectionalArrowRelPos},
		{c.Particles.Count, forcegraph.WithLinkDirectionalParticles},
		{c.Particles.Speed, forcegraph.WithLinkDirectionalParticleSpeed},
		{c.Particles.Width, forcegraph.WithLinkDirectionalParticleWidth},
		{c.Particles.Color, forcegraph.WithLinkDirectionalParticleColor},
	}
	for _, a := range accessors {
		if a.spec.IsSet() {
			opts = append(opts, a.opt(a.spec.acc))
		}
	}
	return opts, nil
}

// NodeAutoColor returns the node auto-color accessor, for tools that write
// colors into the graph
func (c *Config) NodeAutoColor() accessor.Accessor {
	return c.Node.AutoColorBy.acc
}
