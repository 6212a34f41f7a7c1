package api

import (
	"time"

	"github.com/dd0wney/cluso-forcegraph/pkg/forcegraph"
	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
	"github.com/dd0wney/cluso-forcegraph/pkg/layout"
	"github.com/dd0wney/cluso-forcegraph/pkg/scene"
	"github.com/dd0wney/cluso-forcegraph/pkg/validation"
)

// API Request/Response Types

// NodeResponse represents a node in API responses
type NodeResponse struct {
	Key        string           `json:"key"`
	Attributes graph.Attributes `json:"attributes,omitempty"`
	Position   *layout.Position `json:"position,omitempty"`
}

// EdgeResponse represents an edge in API responses
type EdgeResponse struct {
	Key        string           `json:"key"`
	Source     string           `json:"source"`
	Target     string           `json:"target"`
	Attributes graph.Attributes `json:"attributes,omitempty"`
}

// BatchNodeRequest adds several nodes at once
type BatchNodeRequest struct {
	Nodes []validation.NodeRequest `json:"nodes"`
}

// BatchNodeResponse lists the nodes a batch added. Invalid entries and
// existing keys are skipped.
type BatchNodeResponse struct {
	Nodes   []*NodeResponse `json:"nodes"`
	Created int             `json:"created"`
	Time    string          `json:"time"`
}

// BatchEdgeRequest adds several edges at once
type BatchEdgeRequest struct {
	Edges []validation.EdgeRequest `json:"edges"`
}

// BatchEdgeResponse lists the edges a batch added
type BatchEdgeResponse struct {
	Edges   []*EdgeResponse `json:"edges"`
	Created int             `json:"created"`
	Time    string          `json:"time"`
}

// DragResponse reports where a dragged node ended up
type DragResponse struct {
	Key      string          `json:"key"`
	Position layout.Position `json:"position"`
}

// LoadResponse acknowledges a graph load. Error is set when the load was
// awaited and failed.
type LoadResponse struct {
	URL    string `json:"url"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// PositionRequest moves a node to a coordinate
type PositionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// LoadRequest asks the engine to replace its graph with the one at URL
type LoadRequest struct {
	URL string `json:"url" validate:"required,max=2048"`
}

// ZoomRequest fits the camera around the rendered nodes
type ZoomRequest struct {
	Padding float64 `json:"padding" validate:"gte=0"`
}

// CameraResponse is a camera snapshot
type CameraResponse struct {
	Position [3]float64 `json:"position"`
	Target   [3]float64 `json:"target"`
	FOV      float64    `json:"fov"`
}

// SceneResponse summarizes the engine and the last rendered frame
type SceneResponse struct {
	Engine    forcegraph.Stats           `json:"engine"`
	Frame     *scene.FrameStats          `json:"frame,omitempty"`
	Camera    *CameraResponse            `json:"camera,omitempty"`
	Positions map[string]layout.Position `json:"positions"`
	BBox      *BoxResponse               `json:"bbox,omitempty"`
}

// BoxResponse is an axis aligned box
type BoxResponse struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

// VersionResponse identifies the running server
type VersionResponse struct {
	Version string    `json:"version"`
	Started time.Time `json:"started"`
	Uptime  string    `json:"uptime"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
