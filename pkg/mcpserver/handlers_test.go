package mcpserver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dexit-framework/dexit/pkg/module"
)

func emptyRegistry() *module.Registry {
	return module.NewRegistry()
}

func TestHandleSchema_ReturnsComposedSchema(t *testing.T) {
	h := &handlers{registry: emptyRegistry()}
	req := mcp.CallToolRequest{}

	result, err := h.HandleSchema(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleSchema: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, content: %v", result.Content)
	}
	if len(result.Content) == 0 {
		t.Fatal("expected schema content")
	}
}

func TestHandleValidate_MissingPathIsError(t *testing.T) {
	h := &handlers{registry: emptyRegistry()}
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{}

	result, err := h.HandleValidate(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleValidate: %v", err)
	}
	if !result.IsError {
		t.Error("expected error for missing path")
	}
}

func TestHandleValidate_ValidDirectoryReportsNoErrors(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "set.yaml"), []byte(`
name: smoke
tests:
  - name: ping
    description: checks the service responds
    tasks: []
`), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	h := &handlers{registry: emptyRegistry()}
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"path": dir}

	result, err := h.HandleValidate(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleValidate: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, content: %v", result.Content)
	}
}

func TestHandleNamespace_MissingPathIsError(t *testing.T) {
	h := &handlers{registry: emptyRegistry()}
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{}

	result, err := h.HandleNamespace(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleNamespace: %v", err)
	}
	if !result.IsError {
		t.Error("expected error for missing path")
	}
}

func TestHandleNamespace_ReturnsTree(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "set.yaml"), []byte(`
name: smoke
tests:
  - name: ping
    description: checks the service responds
    tasks: []
`), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	h := &handlers{registry: emptyRegistry()}
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"path": dir}

	result, err := h.HandleNamespace(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleNamespace: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, content: %v", result.Content)
	}
	if len(result.Content) == 0 {
		t.Fatal("expected namespace content")
	}
}
