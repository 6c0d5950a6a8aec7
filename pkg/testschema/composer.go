// Package testschema implements the dexit Schema Composer: it produces a
// single JSON Schema for a full test document by reflecting the fixed
// TestSet/Test/Task skeleton from Go types and augmenting it with every
// loaded module's command schemas.
package testschema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/dexit-framework/dexit/pkg/document"
	"github.com/dexit-framework/dexit/pkg/module"
)

// Composer builds the composed document schema from a module registry.
type Composer struct {
	registry *module.Registry
}

// New returns a Composer backed by the given registry. The registry may
// still gain modules after construction — Compose always reflects its
// current contents.
func New(registry *module.Registry) *Composer {
	return &Composer{registry: registry}
}

// Compose returns the composed JSON Schema document as a generic
// map[string]any, ready to hand to a JSON-Schema compiler or to serialize
// for editor tooling.
func (c *Composer) Compose() (map[string]any, error) {
	reflector := &jsonschema.Reflector{DoNotReference: false, ExpandedStruct: false}
	base := reflector.Reflect(&document.TestSet{})
	base.ID = "https://dexit.dev/schemas/testset.json"
	base.Title = "dexit test document"
	base.Description = "Composed schema for a dexit TestSet YAML document, including every loaded module's task grammar."

	data, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("marshal base schema: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal base schema: %w", err)
	}

	defs := defsOf(doc)
	if err := c.augmentTaskSchema(defs); err != nil {
		return nil, fmt.Errorf("augment task schema: %w", err)
	}
	if err := c.augmentDefaultsSchema(defs); err != nil {
		return nil, fmt.Errorf("augment defaults schema: %w", err)
	}

	return doc, nil
}

// defsOf returns the top-level $defs map, tolerating either key spelling
// invopop's reflector has used across versions ("$defs" is current).
func defsOf(doc map[string]any) map[string]any {
	if d, ok := doc["$defs"].(map[string]any); ok {
		return d
	}
	if d, ok := doc["definitions"].(map[string]any); ok {
		return d
	}
	d := map[string]any{}
	doc["$defs"] = d
	return d
}

// augmentTaskSchema rewrites $defs.Task so that "do" is constrained to
// registered command identifiers, and "anyOf" carries one branch per
// (module, command) pair discriminating on "do" and validating "args" /
// "expect" against that command's schemas.
func (c *Composer) augmentTaskSchema(defs map[string]any) error {
	taskDef, ok := defs["Task"].(map[string]any)
	if !ok {
		return fmt.Errorf("base schema has no Task definition")
	}

	var anyOf []any
	var doEnum []any
	for _, m := range c.registry.GetAllModules() {
		for cmdName, cmd := range m.Commands {
			id := m.QualifiedName(cmdName)
			doEnum = append(doEnum, id)

			branch := map[string]any{
				"properties": map[string]any{
					"do": map[string]any{"enum": []any{id}},
				},
			}
			if cmd.ArgsSchema != nil {
				branch["properties"].(map[string]any)["args"] = cmd.ArgsSchema
			}
			if cmd.ExpectSchema != nil {
				branch["properties"].(map[string]any)["expect"] = cmd.ExpectSchema
			}
			anyOf = append(anyOf, branch)
		}
	}

	if len(doEnum) > 0 {
		properties, _ := taskDef["properties"].(map[string]any)
		if properties == nil {
			properties = map[string]any{}
			taskDef["properties"] = properties
		}
		doSchema, _ := properties["do"].(map[string]any)
		if doSchema == nil {
			doSchema = map[string]any{"type": "string"}
		}
		doSchema["enum"] = doEnum
		properties["do"] = doSchema
	}
	if len(anyOf) > 0 {
		taskDef["anyOf"] = anyOf
	}
	return nil
}

// augmentDefaultsSchema rewrites $defs.TestSet's "defaults" property so
// each module with a declared DefaultsSchema gets a named sub-property,
// plus a catch-all pattern property accepting any other module's
// generic defaults mapping.
func (c *Composer) augmentDefaultsSchema(defs map[string]any) error {
	setDef, ok := defs["TestSet"].(map[string]any)
	if !ok {
		return fmt.Errorf("base schema has no TestSet definition")
	}
	properties, _ := setDef["properties"].(map[string]any)
	if properties == nil {
		return fmt.Errorf("TestSet definition has no properties")
	}

	moduleProps := map[string]any{}
	for _, m := range c.registry.GetAllModules() {
		if m.DefaultsSchema != nil {
			moduleProps[m.Name] = m.DefaultsSchema
		}
	}

	properties["defaults"] = map[string]any{
		"type":                 "object",
		"properties":           moduleProps,
		"additionalProperties": false,
		"patternProperties": map[string]any{
			".*": map[string]any{"type": "object"},
		},
	}
	return nil
}
