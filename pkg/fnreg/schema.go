package fnreg

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/robit-man/gemma3-evaluation-app/pkg/errorsx"
)

// ValidateArgs checks supplied arguments against the spec's parameter
// schema and returns the effective argument map: unknown parameters are
// rejected, required parameters must be present, defaults are applied for
// omitted optionals, and each value is coerced to its declared type.
//
// The coercion table is mapstructure's weakly-typed decoding and is fixed:
//   - number/integer accept numeric strings ("42" -> 42) and other numeric
//     kinds; floats truncate when the target is integer
//   - boolean accepts "true"/"false"/"1"/"0"
//   - string accepts numbers and booleans (rendered as text)
//   - object requires a string-keyed map, array requires a sequence
func ValidateArgs(spec FunctionSpec, args map[string]any) (map[string]any, error) {
	for name := range args {
		if _, declared := spec.Params[name]; !declared {
			return nil, errorsx.Wrap(fmt.Errorf("unknown parameter %q for %s", name, spec.Name), errorsx.ReasonValidation)
		}
	}

	out := make(map[string]any, len(spec.Params))
	for name, p := range spec.Params {
		value, supplied := args[name]
		if !supplied {
			if p.Required {
				return nil, errorsx.Wrap(fmt.Errorf("missing required parameter %q for %s", name, spec.Name), errorsx.ReasonValidation)
			}
			if p.Default != nil {
				out[name] = p.Default
			}
			continue
		}
		coerced, err := coerce(value, p.Type)
		if err != nil {
			return nil, errorsx.Wrap(fmt.Errorf("parameter %q for %s: %w", name, spec.Name, err), errorsx.ReasonValidation)
		}
		out[name] = coerced
	}
	return out, nil
}

func coerce(value any, typ string) (any, error) {
	switch typ {
	case "", "any":
		return value, nil
	case "string":
		var out string
		if err := weakDecode(value, &out); err != nil {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		return out, nil
	case "number":
		var out float64
		if err := weakDecode(value, &out); err != nil {
			return nil, fmt.Errorf("expected number, got %T", value)
		}
		return out, nil
	case "integer":
		var out int64
		if err := weakDecode(value, &out); err != nil {
			return nil, fmt.Errorf("expected integer, got %T", value)
		}
		return out, nil
	case "boolean":
		var out bool
		if err := weakDecode(value, &out); err != nil {
			return nil, fmt.Errorf("expected boolean, got %T", value)
		}
		return out, nil
	case "object":
		if m, ok := value.(map[string]any); ok {
			return m, nil
		}
		return nil, fmt.Errorf("expected object, got %T", value)
	case "array":
		if s, ok := value.([]any); ok {
			return s, nil
		}
		return nil, fmt.Errorf("expected array, got %T", value)
	default:
		return nil, fmt.Errorf("unsupported schema type %q", typ)
	}
}

func weakDecode(value, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(value)
}
