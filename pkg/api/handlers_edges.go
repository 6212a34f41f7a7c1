package api

import (
	"net/http"
	"time"

	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
	"github.com/dd0wney/cluso-forcegraph/pkg/validation"
)

func (s *Server) handleEdges(w http.ResponseWriter, r *http.Request) {
	s.NewMethodRouter(w, r).
		Get(func() { s.listEdges(w) }).
		Post(func() { s.createEdge(w, r) }).
		NotAllowed()
}

func edgeToResponse(e graph.Edge) *EdgeResponse {
	return &EdgeResponse{
		Key:        e.Key,
		Source:     e.Source,
		Target:     e.Target,
		Attributes: e.Attributes,
	}
}

func (s *Server) listEdges(w http.ResponseWriter) {
	all := s.fg.Graph().Edges()
	edges := make([]*EdgeResponse, 0, len(all))
	for _, e := range all {
		edges = append(edges, edgeToResponse(e))
	}
	s.respondJSON(w, http.StatusOK, edges)
}

// addEdge adds req, generating a key when the request has none
func addEdge(g *graph.Graph, req *validation.EdgeRequest) (string, error) {
	attrs := graph.Attributes(req.Attributes)
	if req.Key == "" {
		return g.AddEdge(req.Source, req.Target, attrs)
	}
	return req.Key, g.AddEdgeWithKey(req.Key, req.Source, req.Target, attrs)
}

func (s *Server) createEdge(w http.ResponseWriter, r *http.Request) {
	var req validation.EdgeRequest
	decoder := s.NewRequestDecoder(w, r)
	decoder.DecodeJSON(&req).ValidateEdge(&req)
	if decoder.RespondError() {
		return
	}

	g := s.fg.Graph()
	key, err := addEdge(g, &req)
	if err != nil {
		s.respondGraphError(w, err, "add edge")
		return
	}
	s.fg.Sync()
	s.respondEdge(w, http.StatusCreated, g, key)
}

func (s *Server) respondEdge(w http.ResponseWriter, status int, g *graph.Graph, key string) {
	e, err := g.Edge(key)
	if err != nil {
		s.respondGraphError(w, err, "get edge")
		return
	}
	s.respondJSON(w, status, edgeToResponse(e))
}

func (s *Server) handleEdge(w http.ResponseWriter, r *http.Request) {
	extractor := s.NewPathExtractor(w, r)
	key, action, ok := extractor.ExtractKey("/edges/")
	if !ok {
		return
	}

	switch action {
	case "":
	case "emit":
		s.NewMethodRouter(w, r).
			Post(func() { s.emitParticle(w, key) }).
			NotAllowed()
		return
	default:
		s.respondError(w, http.StatusNotFound, "Unknown edge action")
		return
	}

	s.NewMethodRouter(w, r).
		Get(func() { s.respondEdge(w, http.StatusOK, s.fg.Graph(), key) }).
		Patch(func() { s.patchEdge(w, r, key) }).
		Delete(func() { s.deleteEdge(w, key) }).
		NotAllowed()
}

func (s *Server) patchEdge(w http.ResponseWriter, r *http.Request, key string) {
	var req validation.AttributesRequest
	decoder := s.NewRequestDecoder(w, r)
	decoder.DecodeJSON(&req).ValidateAttributes(&req)
	if decoder.RespondError() {
		return
	}

	g := s.fg.Graph()
	remove := func(name string) error { return g.RemoveEdgeAttribute(key, name) }
	merge := func(attrs graph.Attributes) error { return g.MergeEdgeAttributes(key, attrs) }
	if err := applyAttributes(&req, merge, remove); err != nil {
		s.respondGraphError(w, err, "update edge")
		return
	}
	s.fg.Sync()
	s.respondEdge(w, http.StatusOK, g, key)
}

func (s *Server) deleteEdge(w http.ResponseWriter, key string) {
	if err := s.fg.Graph().DropEdge(key); err != nil {
		s.respondGraphError(w, err, "delete edge")
		return
	}
	s.fg.Sync()
	s.respondJSON(w, http.StatusOK, map[string]any{"deleted": key})
}

// emitParticle sends one particle along the edge. Hidden edges accept the
// request without showing anything.
func (s *Server) emitParticle(w http.ResponseWriter, key string) {
	if !s.fg.Graph().HasEdge(key) {
		s.respondError(w, http.StatusNotFound, "Edge not found")
		return
	}
	s.fg.EmitParticle(key)
	s.respondJSON(w, http.StatusAccepted, map[string]any{"emitted": key})
}

func (s *Server) handleBatchEdges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req BatchEdgeRequest
	decoder := s.NewRequestDecoder(w, r)
	decoder.DecodeJSON(&req)
	if decoder.RespondError() {
		return
	}

	if err := validation.ValidateBatchSize(len(req.Edges)); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	g := s.fg.Graph()
	edges := make([]*EdgeResponse, 0, len(req.Edges))
	for i := range req.Edges {
		edgeReq := &req.Edges[i]
		if err := validation.ValidateEdgeRequest(edgeReq); err != nil {
			continue // Skip invalid edges
		}
		key, err := addEdge(g, edgeReq)
		if err != nil {
			continue
		}
		edges = append(edges, &EdgeResponse{
			Key:        key,
			Source:     edgeReq.Source,
			Target:     edgeReq.Target,
			Attributes: edgeReq.Attributes,
		})
	}

	response := BatchEdgeResponse{
		Edges:   edges,
		Created: len(edges),
		Time:    time.Since(start).String(),
	}

	s.fg.Sync()
	s.respondJSON(w, http.StatusCreated, response)
}
