package fnreg

import "context"

// Handler executes a registered function. The returned value must be
// JSON-representable; the invoker rejects anything else.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// ParamSpec declares a single parameter of a function.
type ParamSpec struct {
	Type        string
	Required    bool
	Default     any
	Description string
}

// FunctionSpec describes one invocable function: its name, parameter
// schema and handler.
type FunctionSpec struct {
	Name        string
	Description string
	Params      map[string]ParamSpec
	Handler     Handler
}

// JSONSchema renders the parameter schema in the object/properties shape
// model backends expect in a function catalog.
func (s FunctionSpec) JSONSchema() map[string]any {
	properties := map[string]any{}
	var required []string
	for name, p := range s.Params {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[name] = prop
		if p.Required {
			required = append(required, name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
