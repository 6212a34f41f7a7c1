package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dd0wney/cluso-forcegraph/pkg/forcegraph"
	"github.com/dd0wney/cluso-forcegraph/pkg/logging"
	"github.com/dd0wney/cluso-forcegraph/pkg/scene"
	"github.com/dd0wney/cluso-forcegraph/pkg/source"
)

// documentName picks the payload format for /graph from the query or the
// content type. Only the extension matters to the source codecs.
func documentName(r *http.Request, contentType string) string {
	format := r.URL.Query().Get("format")
	if format == "" {
		switch {
		case strings.Contains(contentType, "yaml"):
			format = "yaml"
		case strings.Contains(contentType, "snappy"):
			format = "json.sz"
		default:
			format = "json"
		}
	}
	return "graph." + format
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	s.NewMethodRouter(w, r).
		Get(func() { s.exportGraph(w, r) }).
		Put(func() { s.replaceGraph(w, r) }).
		NotAllowed()
}

func (s *Server) exportGraph(w http.ResponseWriter, r *http.Request) {
	name := documentName(r, r.Header.Get("Accept"))
	data, err := source.Encode(s.fg.Graph(), name)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, s.sanitizeError(err, "export graph"))
		return
	}

	contentType := "application/json"
	switch {
	case strings.HasSuffix(name, ".sz"):
		contentType = "application/x-snappy-framed"
	case strings.HasSuffix(name, ".yaml"), strings.HasSuffix(name, ".yml"):
		contentType = "application/yaml"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// replaceGraph swaps the rendered graph for the uploaded document. Every
// binding of the previous graph is torn down.
func (s *Server) replaceGraph(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	g, err := source.Decode(data, documentName(r, r.Header.Get("Content-Type")))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.fg.Set(forcegraph.WithGraph(g)); err != nil {
		s.respondGraphError(w, err, "replace graph")
		return
	}
	s.recordLoad("upload", nil)
	s.respondJSON(w, http.StatusOK, s.fg.Stats())
}

// handleLoad starts loading a graph from a URL. With ?wait=true the request
// blocks until the load finished and reports its outcome.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req LoadRequest
	decoder := s.NewRequestDecoder(w, r)
	decoder.DecodeJSON(&req).Validate(&req)
	if decoder.RespondError() {
		return
	}

	wait := r.URL.Query().Get("wait") == "true"
	ctx := s.baseCtx
	if wait {
		ctx = r.Context()
	}

	done, err := s.fg.LoadGraph(ctx, req.URL)
	if err != nil {
		s.respondGraphError(w, err, "load graph")
		return
	}

	if !wait {
		go s.awaitLoad(req.URL, done)
		s.respondJSON(w, http.StatusAccepted, LoadResponse{URL: req.URL, Status: "loading"})
		return
	}

	err = <-done
	s.recordLoad(req.URL, err)
	switch {
	case err == nil:
		s.respondJSON(w, http.StatusOK, LoadResponse{URL: req.URL, Status: "ok"})
	case errors.Is(err, context.Canceled):
		s.respondError(w, http.StatusRequestTimeout, err.Error())
	default:
		s.respondJSON(w, http.StatusBadGateway, LoadResponse{URL: req.URL, Status: "error", Error: err.Error()})
	}
}

func (s *Server) awaitLoad(url string, done <-chan error) {
	err := <-done
	s.recordLoad(url, err)
	if err != nil {
		s.log.Warn("graph load failed", logging.Source(url), logging.Error(err))
		return
	}
	s.log.Info("graph loaded", logging.Source(url))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.NewMethodRouter(w, r).
		Get(func() { s.respondJSON(w, http.StatusOK, s.fg.Stats()) }).
		NotAllowed()
}

func cameraResponse(cam scene.Camera) *CameraResponse {
	return &CameraResponse{
		Position: [3]float64{cam.Position.X, cam.Position.Y, cam.Position.Z},
		Target:   [3]float64{cam.Target.X, cam.Target.Y, cam.Target.Z},
		FOV:      cam.FOV,
	}
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	resp := SceneResponse{
		Engine:    s.fg.Stats(),
		Positions: s.fg.NodePositions(),
	}
	if h, ok := s.fg.Renderer().(*scene.Headless); ok && h.Frames() > 0 {
		frame := h.Summary()
		resp.Frame = &frame
	}
	if cam, ok := s.fg.Camera(); ok {
		resp.Camera = cameraResponse(cam)
	}
	if box := s.fg.GraphBBox(nil); box != nil {
		resp.BBox = &BoxResponse{
			Min: [3]float64{box.Min.X, box.Min.Y, box.Min.Z},
			Max: [3]float64{box.Max.X, box.Max.Y, box.Max.Z},
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// engineControl answers a POST by running fn and reporting the new state
func (s *Server) engineControl(fn func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.NewMethodRouter(w, r).
			Post(func() {
				if s.fg.Stats().Closed {
					s.respondGraphError(w, forcegraph.ErrClosed, "engine control")
					return
				}
				fn()
				s.respondJSON(w, http.StatusOK, s.fg.Stats())
			}).
			NotAllowed()
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.engineControl(s.fg.Refresh)(w, r)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.engineControl(s.fg.PauseAnimation)(w, r)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.engineControl(s.fg.ResumeAnimation)(w, r)
}

// handleZoomToFit points the camera at the rendered nodes. The body is
// optional; an empty one means no padding.
func (s *Server) handleZoomToFit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ZoomRequest
	if r.ContentLength != 0 {
		decoder := s.NewRequestDecoder(w, r)
		decoder.DecodeJSON(&req).Validate(&req)
		if decoder.RespondError() {
			return
		}
	}

	if !s.fg.ZoomToFit(req.Padding, nil) {
		s.respondError(w, http.StatusConflict, "Nothing to fit")
		return
	}
	cam, _ := s.fg.Camera()
	s.respondJSON(w, http.StatusOK, cameraResponse(cam))
}
