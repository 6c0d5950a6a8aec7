package module

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/dexit-framework/dexit/pkg/document"
)

// compiledValidator wraps a compiled JSON Schema, or is the zero value when
// the command declared no schema for that slot (anything validates).
type compiledValidator struct {
	schema *jsonschema.Schema
}

// compile compiles a raw JSON-Schema-shaped map under a synthetic resource
// URL unique to the command/slot, so repeated registrations don't collide.
func compile(resourceURL string, raw map[string]any) (compiledValidator, error) {
	if raw == nil {
		return compiledValidator{}, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return compiledValidator{}, fmt.Errorf("marshal schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return compiledValidator{}, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(resourceURL, doc); err != nil {
		return compiledValidator{}, fmt.Errorf("add schema resource %s: %w", resourceURL, err)
	}
	sch, err := c.Compile(resourceURL)
	if err != nil {
		return compiledValidator{}, fmt.Errorf("compile schema %s: %w", resourceURL, err)
	}
	return compiledValidator{schema: sch}, nil
}

// Validate checks data (already decoded into plain map[string]any/[]any/
// scalar form) against the compiled schema. A nil validator always passes.
func (v compiledValidator) Validate(data any) []*document.AssertionError {
	if v.schema == nil {
		return nil
	}
	// jsonschema/v6 wants JSON-native types; round-trip through encoding/json
	// so numeric types and nested maps match what it expects.
	normalized, err := normalize(data)
	if err != nil {
		return []*document.AssertionError{{Message: fmt.Sprintf("normalize for validation: %v", err)}}
	}
	if err := v.schema.Validate(normalized); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			var out []*document.AssertionError
			for _, leaf := range flatten(ve) {
				path := strings.Join(leaf.InstanceLocation, "/")
				out = append(out, &document.AssertionError{
					Message: fmt.Sprintf("%s: %v", path, leaf.ErrorKind),
				})
			}
			return out
		}
		return []*document.AssertionError{{Message: err.Error()}}
	}
	return nil
}

func normalize(data any) (any, error) {
	if data == nil {
		data = map[string]any{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func flatten(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, cause := range ve.Causes {
		out = append(out, flatten(cause)...)
	}
	return out
}
