package api

import (
	"net/http"
	"time"

	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
	"github.com/dd0wney/cluso-forcegraph/pkg/layout"
	"github.com/dd0wney/cluso-forcegraph/pkg/validation"
)

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	s.NewMethodRouter(w, r).
		Get(func() { s.listNodes(w, r) }).
		Post(func() { s.createNode(w, r) }).
		NotAllowed()
}

func (s *Server) nodeToResponse(n graph.Node, positions map[string]layout.Position) *NodeResponse {
	resp := &NodeResponse{Key: n.Key, Attributes: n.Attributes}
	if pos, ok := positions[n.Key]; ok {
		resp.Position = &pos
	}
	return resp
}

func (s *Server) listNodes(w http.ResponseWriter, r *http.Request) {
	positions := s.fg.NodePositions()
	all := s.fg.Graph().Nodes()
	nodes := make([]*NodeResponse, 0, len(all))
	for _, n := range all {
		nodes = append(nodes, s.nodeToResponse(n, positions))
	}
	s.respondJSON(w, http.StatusOK, nodes)
}

func (s *Server) createNode(w http.ResponseWriter, r *http.Request) {
	var req validation.NodeRequest
	decoder := s.NewRequestDecoder(w, r)
	decoder.DecodeJSON(&req).ValidateNode(&req)
	if decoder.RespondError() {
		return
	}

	g := s.fg.Graph()
	if err := g.AddNode(req.Key, graph.Attributes(req.Attributes)); err != nil {
		s.respondGraphError(w, err, "add node")
		return
	}
	s.fg.Sync()
	s.respondNode(w, http.StatusCreated, g, req.Key)
}

func (s *Server) respondNode(w http.ResponseWriter, status int, g *graph.Graph, key string) {
	n, err := g.Node(key)
	if err != nil {
		s.respondGraphError(w, err, "get node")
		return
	}
	s.respondJSON(w, status, s.nodeToResponse(n, s.fg.NodePositions()))
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	extractor := s.NewPathExtractor(w, r)
	key, action, ok := extractor.ExtractKey("/nodes/")
	if !ok {
		return
	}

	switch action {
	case "":
	case "drag":
		s.NewMethodRouter(w, r).
			Post(func() { s.dragNode(w, r, key) }).
			NotAllowed()
		return
	default:
		s.respondError(w, http.StatusNotFound, "Unknown node action")
		return
	}

	s.NewMethodRouter(w, r).
		Get(func() { s.respondNode(w, http.StatusOK, s.fg.Graph(), key) }).
		Put(func() { s.replaceNode(w, r, key) }).
		Patch(func() { s.patchNode(w, r, key) }).
		Delete(func() { s.deleteNode(w, key) }).
		NotAllowed()
}

// replaceNode swaps the node's attributes, adding the node when missing
func (s *Server) replaceNode(w http.ResponseWriter, r *http.Request, key string) {
	var req validation.NodeRequest
	decoder := s.NewRequestDecoder(w, r)
	decoder.DecodeJSON(&req)
	if req.Key == "" {
		req.Key = key
	}
	decoder.ValidateNode(&req)
	if decoder.RespondError() {
		return
	}
	if req.Key != key {
		s.respondError(w, http.StatusBadRequest, "Key in body does not match path")
		return
	}

	g := s.fg.Graph()
	status := http.StatusOK
	var err error
	if g.HasNode(key) {
		err = g.ReplaceNodeAttributes(key, graph.Attributes(req.Attributes))
	} else {
		status = http.StatusCreated
		err = g.AddNode(key, graph.Attributes(req.Attributes))
	}
	if err != nil {
		s.respondGraphError(w, err, "replace node")
		return
	}
	s.fg.Sync()
	s.respondNode(w, status, g, key)
}

func (s *Server) patchNode(w http.ResponseWriter, r *http.Request, key string) {
	var req validation.AttributesRequest
	decoder := s.NewRequestDecoder(w, r)
	decoder.DecodeJSON(&req).ValidateAttributes(&req)
	if decoder.RespondError() {
		return
	}

	g := s.fg.Graph()
	remove := func(name string) error { return g.RemoveNodeAttribute(key, name) }
	merge := func(attrs graph.Attributes) error { return g.MergeNodeAttributes(key, attrs) }
	if err := applyAttributes(&req, merge, remove); err != nil {
		s.respondGraphError(w, err, "update node")
		return
	}
	s.fg.Sync()
	s.respondNode(w, http.StatusOK, g, key)
}

func (s *Server) deleteNode(w http.ResponseWriter, key string) {
	if err := s.fg.Graph().DropNode(key); err != nil {
		s.respondGraphError(w, err, "delete node")
		return
	}
	s.fg.Sync()
	s.respondJSON(w, http.StatusOK, map[string]any{"deleted": key})
}

// dragNode pins the node at the requested position in one drag gesture
func (s *Server) dragNode(w http.ResponseWriter, r *http.Request, key string) {
	var req PositionRequest
	decoder := s.NewRequestDecoder(w, r)
	decoder.DecodeJSON(&req)
	if decoder.RespondError() {
		return
	}
	pos := layout.Position{X: req.X, Y: req.Y, Z: req.Z}
	if !pos.Valid() {
		s.respondError(w, http.StatusBadRequest, "Position must be finite")
		return
	}

	if err := s.fg.DragNode(key, pos); err != nil {
		s.respondGraphError(w, err, "drag node")
		return
	}
	s.respondJSON(w, http.StatusOK, DragResponse{Key: key, Position: pos})
}

func (s *Server) handleBatchNodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req BatchNodeRequest
	decoder := s.NewRequestDecoder(w, r)
	decoder.DecodeJSON(&req)
	if decoder.RespondError() {
		return
	}

	if err := validation.ValidateBatchSize(len(req.Nodes)); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	g := s.fg.Graph()
	nodes := make([]*NodeResponse, 0, len(req.Nodes))
	for i := range req.Nodes {
		nodeReq := &req.Nodes[i]
		if err := validation.ValidateNodeRequest(nodeReq); err != nil {
			continue // Skip invalid nodes
		}
		if err := g.AddNode(nodeReq.Key, graph.Attributes(nodeReq.Attributes)); err != nil {
			continue
		}
		nodes = append(nodes, &NodeResponse{Key: nodeReq.Key, Attributes: nodeReq.Attributes})
	}

	response := BatchNodeResponse{
		Nodes:   nodes,
		Created: len(nodes),
		Time:    time.Since(start).String(),
	}

	s.fg.Sync()
	s.respondJSON(w, http.StatusCreated, response)
}
