// Package main provides the dexit-mcp binary — an MCP server exposing
// dexit's schema, validation, and namespace tooling to editor agents.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dexit-framework/dexit/pkg/mcpserver"
	"github.com/dexit-framework/dexit/pkg/module"
	coremodule "github.com/dexit-framework/dexit/pkg/modules/core"
)

var version = "dev"

func main() {
	modulesPath := flag.String("modules-path", "./modules", "directory to autoload modules from")
	noBuiltin := flag.Bool("no-builtin", false, "skip registering the built-in core module")
	flag.Parse()

	registry := module.NewRegistry()
	if !*noBuiltin {
		if err := registry.Register(coremodule.New()); err != nil {
			fmt.Fprintf(os.Stderr, "register builtin module: %v\n", err)
			os.Exit(2)
		}
	}

	abs, err := filepath.Abs(*modulesPath)
	if err == nil {
		if err := registry.LoadFromPath(abs); err != nil {
			fmt.Fprintf(os.Stderr, "autoload modules: %v\n", err)
			os.Exit(2)
		}
	}

	s := mcpserver.NewServer(version, registry)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
