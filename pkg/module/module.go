// Package module implements the dexit Module Registry: it holds loaded
// module definitions, resolves "module.command" identifiers, and compiles
// per-command JSON-schema validators.
package module

import (
	"context"
	"strings"

	"github.com/dexit-framework/dexit/pkg/document"
)

// ReservedFieldPrefix is disallowed on any extension field a module
// declares — it is set aside for dexit's own internal bookkeeping.
const ReservedFieldPrefix = "_"

// ReadyFunc is invoked by a Command's Run implementation once it has
// reached a point where subsequent tasks in the same list may proceed.
type ReadyFunc func()

// RunFunc executes a command's action and produces a result (or error).
type RunFunc func(ctx context.Context, args map[string]any, notifyReady ReadyFunc) (any, error)

// ExpectFunc evaluates a command's domain-specific expectations against a
// run result, returning zero or more assertion errors.
type ExpectFunc func(expectArgs map[string]any, result any) []*document.AssertionError

// ValidateFunc is a synchronous pre-run structural check beyond what JSON
// Schema can express (e.g. cross-field constraints).
type ValidateFunc func(args map[string]any) []*document.AssertionError

// LabelFunc derives a human-readable label for a task from its resolved
// args/expect, used when the task declares no description.
type LabelFunc func(runArgs, expectArgs map[string]any) string

// Command is a single registered module.command handler.
type Command struct {
	Description    string
	ArgsSchema     map[string]any
	ExpectSchema   map[string]any
	ValidateArgs   ValidateFunc
	ValidateExpect ValidateFunc
	Run            RunFunc
	Expect         ExpectFunc
	GetLabel       LabelFunc

	// Extra carries forward-compatible manifest metadata. Keys beginning
	// with ReservedFieldPrefix are rejected at Register time.
	Extra map[string]any

	// compiled validators, populated by Register.
	argsValidator   compiledValidator
	expectValidator compiledValidator
}

// Module groups related Commands under a dotted namespace prefix.
type Module struct {
	Name           string
	Description    string
	DefaultsSchema map[string]any
	Commands       map[string]*Command
}

// QualifiedName returns the "module.command" identifier for a command
// declared on m.
func (m *Module) QualifiedName(cmdName string) string {
	return m.Name + "." + cmdName
}

// ParseCommand splits an identifier at its first "." into module and
// command name. It does not require the identifier to be registered.
func ParseCommand(id string) (moduleName, commandName string) {
	i := strings.IndexByte(id, '.')
	if i < 0 {
		return id, ""
	}
	return id[:i], id[i+1:]
}
