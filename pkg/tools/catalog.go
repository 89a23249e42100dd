package tools

import (
	"context"
)

type ParamType string

const ParamNumber ParamType = "number"

// ParamSpec describes one positional tool argument.
type ParamSpec struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description,omitempty"`
}

// ToolSpec is the model-facing description of a tool.
type ToolSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []ParamSpec `json:"parameters"`
}

// Catalog lists and invokes tools by name. Implementations must resolve the
// tool set on every List call so new tools become visible without a restart.
type Catalog interface {
	List(ctx context.Context) ([]ToolSpec, error)

	// Invoke runs the named tool. Guard violations, unknown names and bad
	// arguments come back as an "Error: ..." result string, not as an error.
	// A non-nil error means the catalog itself could not be reached.
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
}

// JSONSchema renders the parameter list as a JSON schema object, the shape
// function-calling model APIs expect.
func (s ToolSpec) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Parameters))
	required := make([]string, 0, len(s.Parameters))
	for _, p := range s.Parameters {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[p.Name] = prop
		required = append(required, p.Name)
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
