package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dd0wney/cluso-forcegraph/pkg/forcegraph"
	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
	"github.com/dd0wney/cluso-forcegraph/pkg/logging"
	"github.com/dd0wney/cluso-forcegraph/pkg/validation"
)

// sanitizeError converts an internal error to a user-safe message.
// The full error is logged but not exposed.
func (s *Server) sanitizeError(err error, operation string) string {
	if err == nil {
		return ""
	}
	s.log.Error("request failed", logging.String("operation", operation), logging.Error(err))
	return fmt.Sprintf("%s failed", operation)
}

// statusFor maps engine and graph errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, graph.ErrNodeNotFound), errors.Is(err, graph.ErrEdgeNotFound):
		return http.StatusNotFound
	case errors.Is(err, graph.ErrNodeExists), errors.Is(err, graph.ErrEdgeExists),
		errors.Is(err, forcegraph.ErrLoadInProgress), errors.Is(err, forcegraph.ErrDragDisabled),
		errors.Is(err, forcegraph.ErrControlsDisposed), errors.Is(err, forcegraph.ErrNotDragging):
		return http.StatusConflict
	case errors.Is(err, graph.ErrInvalidKey), errors.Is(err, graph.ErrInvalidData):
		return http.StatusBadRequest
	case errors.Is(err, forcegraph.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondGraphError answers with the status err maps to. Only unexpected
// errors are sanitized; the rest are safe to show.
func (s *Server) respondGraphError(w http.ResponseWriter, err error, operation string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.respondError(w, status, s.sanitizeError(err, operation))
		return
	}
	s.respondError(w, status, err.Error())
}

// requestDecoder decodes and validates request bodies.
// It provides a fluent interface for common request handling patterns.
type requestDecoder struct {
	r          *http.Request
	w          http.ResponseWriter
	server     *Server
	err        error
	statusCode int
}

// NewRequestDecoder creates a new request decoder for the given request.
func (s *Server) NewRequestDecoder(w http.ResponseWriter, r *http.Request) *requestDecoder {
	return &requestDecoder{
		r:      r,
		w:      w,
		server: s,
	}
}

// DecodeJSON decodes the request body into the provided struct.
// Returns the decoder for chaining. Check HasError() after calling.
func (rd *requestDecoder) DecodeJSON(v any) *requestDecoder {
	if rd.err != nil {
		return rd
	}
	if err := json.NewDecoder(rd.r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rd.err = fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
			rd.statusCode = http.StatusRequestEntityTooLarge
			return rd
		}
		rd.err = fmt.Errorf("invalid request body: %w", err)
		rd.statusCode = http.StatusBadRequest
	}
	return rd
}

// ValidateNode validates a node request.
func (rd *requestDecoder) ValidateNode(req *validation.NodeRequest) *requestDecoder {
	return rd.check(validation.ValidateNodeRequest(req))
}

// ValidateEdge validates an edge request.
func (rd *requestDecoder) ValidateEdge(req *validation.EdgeRequest) *requestDecoder {
	return rd.check(validation.ValidateEdgeRequest(req))
}

// ValidateAttributes validates an attribute update.
func (rd *requestDecoder) ValidateAttributes(req *validation.AttributesRequest) *requestDecoder {
	return rd.check(validation.ValidateAttributesRequest(req))
}

// Validate checks v against its struct tags.
func (rd *requestDecoder) Validate(v any) *requestDecoder {
	return rd.check(validation.Struct(v))
}

func (rd *requestDecoder) check(err error) *requestDecoder {
	if rd.err != nil || err == nil {
		return rd
	}
	rd.err = err
	rd.statusCode = http.StatusBadRequest
	return rd
}

// HasError returns true if any error occurred during decoding/validation.
func (rd *requestDecoder) HasError() bool {
	return rd.err != nil
}

// Error returns the error if any occurred.
func (rd *requestDecoder) Error() error {
	return rd.err
}

// RespondError sends the error response and returns true if there was an error.
// Returns false if no error occurred.
func (rd *requestDecoder) RespondError() bool {
	if rd.err == nil {
		return false
	}
	rd.server.respondError(rd.w, rd.statusCode, rd.err.Error())
	return true
}

// pathKeyExtractor extracts element keys from URL paths.
type pathKeyExtractor struct {
	w      http.ResponseWriter
	server *Server
	path   string
}

// NewPathExtractor creates a new path extractor. It works on the escaped
// path so keys may contain an encoded slash.
func (s *Server) NewPathExtractor(w http.ResponseWriter, r *http.Request) *pathKeyExtractor {
	return &pathKeyExtractor{
		w:      w,
		server: s,
		path:   r.URL.EscapedPath(),
	}
}

// ExtractKey returns the key after prefix and an optional action segment
// after it (/nodes/{key}/{action}). It sends a 400 and returns false when
// the path holds no key.
func (pe *pathKeyExtractor) ExtractKey(prefix string) (key, action string, ok bool) {
	if !strings.HasPrefix(pe.path, prefix) {
		pe.server.respondError(pe.w, http.StatusBadRequest, "Invalid path")
		return "", "", false
	}
	rest := strings.TrimSuffix(pe.path[len(prefix):], "/")
	raw, action, _ := strings.Cut(rest, "/")

	key, err := url.PathUnescape(raw)
	if err != nil || key == "" {
		pe.server.respondError(pe.w, http.StatusBadRequest, "Invalid key")
		return "", "", false
	}
	if len(key) > validation.MaxKeyLength {
		pe.server.respondError(pe.w, http.StatusBadRequest, fmt.Sprintf("Key exceeds %d characters", validation.MaxKeyLength))
		return "", "", false
	}
	return key, action, true
}

// methodRouter routes requests based on HTTP method.
// Provides a cleaner alternative to switch statements for method routing.
type methodRouter struct {
	w       http.ResponseWriter
	r       *http.Request
	server  *Server
	handled bool
}

// NewMethodRouter creates a new method router.
func (s *Server) NewMethodRouter(w http.ResponseWriter, r *http.Request) *methodRouter {
	return &methodRouter{
		w:      w,
		r:      r,
		server: s,
	}
}

func (mr *methodRouter) on(method string, handler func()) *methodRouter {
	if !mr.handled && mr.r.Method == method {
		handler()
		mr.handled = true
	}
	return mr
}

// Get handles GET requests with the provided handler.
func (mr *methodRouter) Get(handler func()) *methodRouter {
	return mr.on(http.MethodGet, handler)
}

// Post handles POST requests with the provided handler.
func (mr *methodRouter) Post(handler func()) *methodRouter {
	return mr.on(http.MethodPost, handler)
}

// Put handles PUT requests with the provided handler.
func (mr *methodRouter) Put(handler func()) *methodRouter {
	return mr.on(http.MethodPut, handler)
}

// Patch handles PATCH requests with the provided handler.
func (mr *methodRouter) Patch(handler func()) *methodRouter {
	return mr.on(http.MethodPatch, handler)
}

// Delete handles DELETE requests with the provided handler.
func (mr *methodRouter) Delete(handler func()) *methodRouter {
	return mr.on(http.MethodDelete, handler)
}

// NotAllowed sends a 405 response if no method matched.
func (mr *methodRouter) NotAllowed() {
	if !mr.handled {
		mr.server.respondError(mr.w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// applyAttributes merges set and then removes names through the given
// graph calls, stopping at the first error
func applyAttributes(req *validation.AttributesRequest, merge func(graph.Attributes) error, remove func(string) error) error {
	if len(req.Set) > 0 {
		if err := merge(graph.Attributes(req.Set)); err != nil {
			return err
		}
	}
	for _, name := range req.Remove {
		if err := remove(name); err != nil {
			return err
		}
	}
	return nil
}
