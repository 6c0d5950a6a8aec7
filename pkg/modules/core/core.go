// Package core registers the "core" module: core.echo and core.sleep, a
// minimal in-memory command set with no external side effects, used to
// exercise the Runner and Schema Composer without a network-calling
// module, and available to test authors who just need a no-op step.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/dexit-framework/dexit/pkg/document"
	"github.com/dexit-framework/dexit/pkg/module"
)

func init() {
	module.RegisterFactory("core", New)
}

// New returns the core module definition.
func New() *module.Module {
	return &module.Module{
		Name:        "core",
		Description: "built-in no-op commands for authoring and testing test sets",
		Commands: map[string]*module.Command{
			"echo": {
				Description: "returns its message argument unchanged",
				ArgsSchema: map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"message"},
					"properties": map[string]any{
						"message": map[string]any{"type": "string"},
					},
				},
				ExpectSchema: map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"message": map[string]any{"type": "string"},
					},
				},
				Run: func(ctx context.Context, args map[string]any, notifyReady module.ReadyFunc) (any, error) {
					notifyReady()
					return args["message"], nil
				},
				Expect: func(expectArgs map[string]any, result any) []*document.AssertionError {
					want, ok := expectArgs["message"]
					if !ok {
						return nil
					}
					if want != result {
						return []*document.AssertionError{{Message: "message did not match", Expected: want, Actual: result}}
					}
					return nil
				},
				GetLabel: func(runArgs, expectArgs map[string]any) string {
					return fmt.Sprintf("echo %v", runArgs["message"])
				},
			},
			"sleep": {
				Description: "sleeps for the given number of milliseconds, then completes",
				ArgsSchema: map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"ms"},
					"properties": map[string]any{
						"ms": map[string]any{"type": "integer", "minimum": 0},
					},
				},
				Run: func(ctx context.Context, args map[string]any, notifyReady module.ReadyFunc) (any, error) {
					notifyReady()
					ms, _ := toInt(args["ms"])
					select {
					case <-time.After(time.Duration(ms) * time.Millisecond):
					case <-ctx.Done():
						return nil, ctx.Err()
					}
					return nil, nil
				},
				GetLabel: func(runArgs, expectArgs map[string]any) string {
					return fmt.Sprintf("sleep %vms", runArgs["ms"])
				},
			},
		},
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
