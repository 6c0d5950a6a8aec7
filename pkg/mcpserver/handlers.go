package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dexit-framework/dexit/pkg/loader"
	"github.com/dexit-framework/dexit/pkg/module"
	"github.com/dexit-framework/dexit/pkg/repository"
	"github.com/dexit-framework/dexit/pkg/testschema"
)

type handlers struct {
	registry *module.Registry
}

// HandleSchema implements the dexit/schema tool.
func (h *handlers) HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	composed, err := testschema.New(h.registry).Compose()
	if err != nil {
		return errorResult(fmt.Sprintf("compose schema: %s", err)), nil
	}
	data, err := json.MarshalIndent(composed, "", "  ")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleValidate implements the dexit/validate tool.
func (h *handlers) HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	docs, err := loader.Load(path, nil)
	if err != nil {
		return errorResult(fmt.Sprintf("load %s: %s", path, err)), nil
	}

	repo, err := repository.New(h.registry)
	if err != nil {
		return errorResult(fmt.Sprintf("build schema: %s", err)), nil
	}

	loadErr := repo.LoadDocuments(docs, true)
	if loadErr != nil {
		return errorResult(loadErr.Error()), nil
	}

	data, _ := json.MarshalIndent(repo.Errors(), "", "  ")
	isErr := len(repo.Errors()) > 0
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: isErr,
	}, nil
}

// HandleNamespace implements the dexit/namespace tool.
func (h *handlers) HandleNamespace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	docs, err := loader.Load(path, nil)
	if err != nil {
		return errorResult(fmt.Sprintf("load %s: %s", path, err)), nil
	}

	repo, err := repository.New(h.registry)
	if err != nil {
		return errorResult(fmt.Sprintf("build schema: %s", err)), nil
	}
	if err := repo.LoadDocuments(docs, true); err != nil {
		return errorResult(err.Error()), nil
	}
	repo.Build()

	data, err := json.MarshalIndent(repo.Root, "", "  ")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(text)},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(msg)},
		IsError: true,
	}
}
