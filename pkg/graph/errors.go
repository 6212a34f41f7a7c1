package graph

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	ErrNodeNotFound = errors.New("node not found")
	ErrEdgeNotFound = errors.New("edge not found")
	ErrNodeExists   = errors.New("node already exists")
	ErrEdgeExists   = errors.New("edge already exists")
	ErrInvalidKey   = errors.New("invalid key")
	ErrInvalidData  = errors.New("invalid serialized graph")
)

// GraphError provides structured error information for graph operations.
type GraphError struct {
	Op     string // Operation that failed (e.g., "AddEdge", "SetNodeAttribute")
	Entity string // "node" or "edge"
	Key    string // Element key (if applicable)
	Field  string // Attribute name (for attribute operations)
	Cause  error  // Underlying error
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	if e.Key != "" {
		if e.Field != "" {
			return fmt.Sprintf("%s %s %q (attribute %s): %v", e.Op, e.Entity, e.Key, e.Field, e.Cause)
		}
		return fmt.Sprintf("%s %s %q: %v", e.Op, e.Entity, e.Key, e.Cause)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *GraphError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target error matches this error's cause.
func (e *GraphError) Is(target error) bool {
	if target == nil {
		return false
	}
	return errors.Is(e.Cause, target)
}

func nodeError(op, key string, cause error) error {
	return &GraphError{Op: op, Entity: "node", Key: key, Cause: cause}
}

func edgeError(op, key string, cause error) error {
	return &GraphError{Op: op, Entity: "edge", Key: key, Cause: cause}
}

func attributeError(op, entity, key, field string, cause error) error {
	return &GraphError{Op: op, Entity: entity, Key: key, Field: field, Cause: cause}
}
