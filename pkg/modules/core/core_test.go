package core

import (
	"context"
	"testing"

	"github.com/dexit-framework/dexit/pkg/module"
)

func TestEcho_ReturnsMessage(t *testing.T) {
	mod := New()
	cmd := mod.Commands["echo"]
	result, err := cmd.Run(context.Background(), map[string]any{"message": "hi"}, func() {})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result != "hi" {
		t.Fatalf("result = %#v, want \"hi\"", result)
	}
}

func TestEcho_ExpectMismatchProducesAssertionError(t *testing.T) {
	mod := New()
	cmd := mod.Commands["echo"]
	errs := cmd.Expect(map[string]any{"message": "want"}, "got")
	if len(errs) != 1 {
		t.Fatalf("errs = %d, want 1", len(errs))
	}
}

func TestRegistry_RegistersCoreCommands(t *testing.T) {
	reg := module.NewRegistry()
	if err := reg.Register(New()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, ok := reg.GetCommand("core.echo"); !ok {
		t.Fatal("core.echo not resolvable after registration")
	}
	if _, _, ok := reg.GetCommand("core.sleep"); !ok {
		t.Fatal("core.sleep not resolvable after registration")
	}
}
