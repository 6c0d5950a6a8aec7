package document

// RunContext carries the parameter and per-module-defaults scope threaded
// through execution. Copied (deep) on descent into each test set and each
// test; mutated only by a task's `set` step, within that copy's scope.
type RunContext struct {
	Params   map[string]any
	Defaults map[string]map[string]any
}

// NewRunContext returns an empty root context.
func NewRunContext() *RunContext {
	return &RunContext{Params: map[string]any{}, Defaults: map[string]map[string]any{}}
}

// Clone returns a deep copy of the context.
func (c *RunContext) Clone() *RunContext {
	out := &RunContext{
		Params:   deepCopyMap(c.Params),
		Defaults: make(map[string]map[string]any, len(c.Defaults)),
	}
	for k, v := range c.Defaults {
		out.Defaults[k] = deepCopyMap(v)
	}
	return out
}

// WithOverrides returns a clone with defaults/params deep-merged on top
// (right-biased — the overrides win on scalar conflicts).
func (c *RunContext) WithOverrides(defaults map[string]any, params map[string]any) *RunContext {
	out := c.Clone()
	if params != nil {
		out.Params = DeepMerge(out.Params, params).(map[string]any)
	}
	if defaults != nil {
		for moduleName, moduleDefaults := range defaults {
			md, _ := moduleDefaults.(map[string]any)
			if md == nil {
				continue
			}
			if existing, ok := out.Defaults[moduleName]; ok {
				out.Defaults[moduleName] = DeepMerge(existing, md).(map[string]any)
			} else {
				out.Defaults[moduleName] = deepCopyMap(md)
			}
		}
	}
	return out
}

// SetParams merges the given values into ctx.Params in place (right-biased).
func (c *RunContext) SetParams(values map[string]any) {
	if len(values) == 0 {
		return
	}
	c.Params = DeepMerge(c.Params, values).(map[string]any)
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return t
	}
}

// DeepMerge merges b onto a. Mappings merge recursively key-by-key;
// sequences concatenate (a ⧺ b); anything else is right-biased (b wins).
func DeepMerge(a, b any) any {
	am, aIsMap := a.(map[string]any)
	bm, bIsMap := b.(map[string]any)
	if aIsMap && bIsMap {
		out := make(map[string]any, len(am)+len(bm))
		for k, v := range am {
			out[k] = deepCopyValue(v)
		}
		for k, v := range bm {
			if existing, ok := out[k]; ok {
				out[k] = DeepMerge(existing, v)
			} else {
				out[k] = deepCopyValue(v)
			}
		}
		return out
	}

	aSeq, aIsSeq := a.([]any)
	bSeq, bIsSeq := b.([]any)
	if aIsSeq && bIsSeq {
		out := make([]any, 0, len(aSeq)+len(bSeq))
		out = append(out, aSeq...)
		out = append(out, bSeq...)
		return out
	}

	return b
}
