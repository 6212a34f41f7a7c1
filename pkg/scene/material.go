package scene

import (
	"github.com/lucasb-eyer/go-colorful"
)

// MaterialKind selects the shading model
type MaterialKind int

const (
	// MaterialLambert is a diffuse-lit surface material
	MaterialLambert MaterialKind = iota
	// MaterialLineBasic is an unlit line material
	MaterialLineBasic
)

func (k MaterialKind) String() string {
	switch k {
	case MaterialLambert:
		return "lambert"
	case MaterialLineBasic:
		return "line-basic"
	default:
		return "unknown"
	}
}

// Material describes the surface of a mesh or line
type Material struct {
	Resource

	Kind        MaterialKind
	Color       colorful.Color
	Opacity     float64
	Transparent bool
	DepthWrite  bool
}

// NewLambertMaterial creates a lit material
func NewLambertMaterial(color colorful.Color, opacity float64, transparent bool) *Material {
	return &Material{
		Kind:        MaterialLambert,
		Color:       color,
		Opacity:     opacity,
		Transparent: transparent,
		DepthWrite:  true,
	}
}

// NewLineBasicMaterial creates a line material
func NewLineBasicMaterial(color colorful.Color, opacity float64) *Material {
	return &Material{
		Kind:        MaterialLineBasic,
		Color:       color,
		Opacity:     opacity,
		Transparent: opacity < 1,
		DepthWrite:  opacity >= 1,
	}
}
