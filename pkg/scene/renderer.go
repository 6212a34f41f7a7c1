package scene

import (
	"sync"
)

// Renderer draws a scene through a camera
type Renderer interface {
	Render(s *Scene) error
	Camera() *Camera
}

// FrameStats summarizes the scene at one rendered frame
type FrameStats struct {
	Frame      int `json:"frame" yaml:"frame"`
	Objects    int `json:"objects" yaml:"objects"`
	Meshes     int `json:"meshes" yaml:"meshes"`
	Lines      int `json:"lines" yaml:"lines"`
	Vertices   int `json:"vertices" yaml:"vertices"`
	Geometries int `json:"geometries" yaml:"geometries"`
	Materials  int `json:"materials" yaml:"materials"`
}

// Headless is a Renderer that records frame statistics instead of drawing
type Headless struct {
	camera *Camera
	frames int
	last   FrameStats
	mu     sync.RWMutex
}

// NewHeadless creates a headless renderer with a default camera
func NewHeadless() *Headless {
	return &Headless{camera: NewCamera()}
}

// Render walks the scene and records what a real renderer would submit
func (h *Headless) Render(s *Scene) error {
	stats := FrameStats{}
	geometries := make(map[Geometry]struct{})
	materials := make(map[*Material]struct{})

	var visit func(o Object)
	visit = func(o Object) {
		if !o.Base().Visible {
			return
		}
		stats.Objects++
		switch o.(type) {
		case *Mesh:
			stats.Meshes++
		case *Line:
			stats.Lines++
		}
		if r, ok := o.(Renderable); ok {
			if g := r.Geometry(); g != nil {
				stats.Vertices += g.VertexCount()
				geometries[g] = struct{}{}
			}
			if m := r.Material(); m != nil {
				materials[m] = struct{}{}
			}
		}
		for _, c := range o.Base().children {
			visit(c)
		}
	}
	visit(s.Root)
	stats.Geometries = len(geometries)
	stats.Materials = len(materials)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames++
	stats.Frame = h.frames
	h.last = stats
	return nil
}

// Camera returns the renderer's camera
func (h *Headless) Camera() *Camera {
	return h.camera
}

// Frames returns the number of rendered frames
func (h *Headless) Frames() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.frames
}

// Summary returns the statistics of the last rendered frame
func (h *Headless) Summary() FrameStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last
}
