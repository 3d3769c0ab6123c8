package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) orNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// ValidateNode checks a fully defaulted node before insertion.
func ValidateNode(n *Node) error {
	var ve ValidationError
	if n.ID == "" {
		ve.add("id", "is required")
	}
	if n.SessionID == "" {
		ve.add("sessionId", "is required")
	}
	if !n.Status.IsValid() {
		ve.add("status", "invalid value %q", n.Status)
	}
	if n.ParentID != "" && n.ParentID == n.ID {
		ve.add("parentId", "cannot reference the node itself")
	}
	return ve.orNil()
}

// ValidateEdge checks a fully defaulted edge before insertion.
func ValidateEdge(e *Edge) error {
	var ve ValidationError
	if e.Source == "" {
		ve.add("source", "is required")
	}
	if e.Target == "" {
		ve.add("target", "is required")
	}
	if e.Source != "" && e.Source == e.Target {
		ve.add("target", "cannot equal source")
	}
	if !e.Type.IsValid() {
		ve.add("type", "invalid value %q", e.Type)
	}
	return ve.orNil()
}

// ValidateExport checks an import payload. Failures wrap ErrInvalidImport.
func ValidateExport(x *Export) error {
	if x == nil {
		return InvalidImportf("payload is empty")
	}
	var ve ValidationError
	if strings.TrimSpace(x.Version) == "" {
		ve.add("version", "is required")
	}
	if x.Graph == nil {
		ve.add("graph", "is required")
	} else {
		seen := make(map[string]bool, len(x.Graph.Nodes))
		for i, n := range x.Graph.Nodes {
			if n == nil {
				ve.add(fmt.Sprintf("graph.nodes[%d]", i), "is null")
				continue
			}
			if n.ID == "" {
				ve.add(fmt.Sprintf("graph.nodes[%d].id", i), "is required")
				continue
			}
			if seen[n.ID] {
				ve.add(fmt.Sprintf("graph.nodes[%d].id", i), "duplicate id %q", n.ID)
			}
			seen[n.ID] = true
		}
		for i, e := range x.Graph.Edges {
			if e == nil {
				ve.add(fmt.Sprintf("graph.edges[%d]", i), "is null")
				continue
			}
			if e.Source == "" || e.Target == "" {
				ve.add(fmt.Sprintf("graph.edges[%d]", i), "source and target are required")
			}
		}
	}
	if ve.HasErrors() {
		return fmt.Errorf("%w: %v", ErrInvalidImport, &ve)
	}
	return nil
}
