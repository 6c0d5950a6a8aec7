package module

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds loaded module definitions and resolves "module.command"
// identifiers to compiled Commands.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*Module
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*Module)}
}

// Register adds a module, compiling each command's ArgsSchema/ExpectSchema
// into cached validators. Fails if a module with the same name is already
// registered, or if any command carries a reserved "_"-prefixed Extra key.
func (r *Registry) Register(m *Module) error {
	if m == nil || m.Name == "" {
		return fmt.Errorf("module: name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[m.Name]; exists {
		return fmt.Errorf("module %q is already registered", m.Name)
	}

	for cmdName, cmd := range m.Commands {
		if cmd == nil {
			return fmt.Errorf("module %q: command %q is nil", m.Name, cmdName)
		}
		for key := range cmd.Extra {
			if len(key) > 0 && key[0] == ReservedFieldPrefix[0] {
				return fmt.Errorf("module %q: command %q: field %q uses reserved prefix %q",
					m.Name, cmdName, key, ReservedFieldPrefix)
			}
		}
		if cmd.Run == nil {
			return fmt.Errorf("module %q: command %q: Run is required", m.Name, cmdName)
		}

		argsValidator, err := compile(resourceURL(m.Name, cmdName, "args"), cmd.ArgsSchema)
		if err != nil {
			return fmt.Errorf("module %q: command %q: args schema: %w", m.Name, cmdName, err)
		}
		expectValidator, err := compile(resourceURL(m.Name, cmdName, "expect"), cmd.ExpectSchema)
		if err != nil {
			return fmt.Errorf("module %q: command %q: expect schema: %w", m.Name, cmdName, err)
		}
		cmd.argsValidator = argsValidator
		cmd.expectValidator = expectValidator
	}

	r.modules[m.Name] = m
	return nil
}

func resourceURL(moduleName, cmdName, slot string) string {
	return fmt.Sprintf("dexit://modules/%s/%s/%s.json", moduleName, cmdName, slot)
}

// GetCommand splits id at its first "." and returns the registered command,
// or (nil, nil, false) if either half doesn't resolve.
func (r *Registry) GetCommand(id string) (*Module, *Command, bool) {
	moduleName, cmdName := ParseCommand(id)
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[moduleName]
	if !ok {
		return nil, nil, false
	}
	cmd, ok := m.Commands[cmdName]
	if !ok {
		return nil, nil, false
	}
	return m, cmd, true
}

// ValidateArgsAgainstSchema runs both the compiled JSON-Schema validator
// and the command's optional ValidateArgs hook against raw, pre-merge
// args. This is a load-time concern only: it runs once against a task's
// declared args, before per-run defaults merging.
func (c *Command) ValidateArgsAgainstSchema(args map[string]any) []error {
	var out []error
	for _, e := range c.argsValidator.Validate(args) {
		out = append(out, e)
	}
	for _, e := range c.ValidateArgsHook(args) {
		out = append(out, e)
	}
	return out
}

// ValidateExpectAgainstSchema runs both the compiled expect-schema
// validator and the command's optional ValidateExpect hook against raw,
// pre-merge expect args. Load-time only, mirroring ValidateArgsAgainstSchema.
func (c *Command) ValidateExpectAgainstSchema(expect map[string]any) []error {
	var out []error
	for _, e := range c.expectValidator.Validate(expect) {
		out = append(out, e)
	}
	for _, e := range c.ValidateExpectHook(expect) {
		out = append(out, e)
	}
	return out
}

// ValidateArgsHook runs only the command's optional ValidateArgs hook,
// without the compiled JSON-Schema validator. Used at run time against
// resolved, defaults-merged args, where schema re-validation would
// spuriously reject any additionalProperties:false schema extended by a
// TestSet's defaults.
func (c *Command) ValidateArgsHook(args map[string]any) []error {
	var out []error
	if c.ValidateArgs != nil {
		for _, e := range c.ValidateArgs(args) {
			out = append(out, e)
		}
	}
	return out
}

// ValidateExpectHook runs only the command's optional ValidateExpect
// hook, mirroring ValidateArgsHook.
func (c *Command) ValidateExpectHook(expect map[string]any) []error {
	var out []error
	if c.ValidateExpect != nil {
		for _, e := range c.ValidateExpect(expect) {
			out = append(out, e)
		}
	}
	return out
}

// GetAllModules returns every registered module, sorted by name for
// deterministic schema composition.
func (r *Registry) GetAllModules() []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Module, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Label returns command.getLabel(...) when it yields a non-empty string,
// otherwise do. A task's description is not consulted here; callers check
// it before calling Label.
func (c *Command) Label(do string, runArgs, expectArgs map[string]any) string {
	if c.GetLabel != nil {
		if l := c.GetLabel(runArgs, expectArgs); l != "" {
			return l
		}
	}
	return do
}
