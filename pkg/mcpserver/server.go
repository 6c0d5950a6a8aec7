// Package mcpserver exposes dexit's schema, validation, and namespace
// tooling over the Model Context Protocol, for editor integrations:
// dexit/schema for autocomplete, dexit/validate for inline diagnostics,
// dexit/namespace for a tree-view extension.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dexit-framework/dexit/pkg/module"
)

// NewServer creates an MCP server with dexit's tools registered against
// registry (the module set currently loaded, autoload plus builtins).
func NewServer(version string, registry *module.Registry) *server.MCPServer {
	s := server.NewMCPServer(
		"dexit",
		version,
		server.WithToolCapabilities(true),
	)

	h := &handlers{registry: registry}

	s.AddTool(
		mcp.NewTool("dexit/schema",
			mcp.WithDescription("Return the composed JSON Schema for the currently loaded module set"),
		),
		h.HandleSchema,
	)

	s.AddTool(
		mcp.NewTool("dexit/validate",
			mcp.WithDescription("Load and validate a tests directory, returning structured validation errors"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the tests directory")),
		),
		h.HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("dexit/namespace",
			mcp.WithDescription("Return the resolved test-set namespace tree as JSON"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the tests directory")),
		),
		h.HandleNamespace,
	)

	return s
}
