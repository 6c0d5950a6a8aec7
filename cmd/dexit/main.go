// Package main provides the dexit CLI: load a tests directory, build the
// namespace tree, and either run it, validate it, export its schema, or
// walk it in the interactive debugger. MCP serving lives in the separate
// dexit-mcp binary (cmd/dexit-mcp), mirroring how the teacher split its
// kernel CLI and MCP server into separate binaries.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dexit-framework/dexit/pkg/config"
	"github.com/dexit-framework/dexit/pkg/debugger"
	"github.com/dexit-framework/dexit/pkg/loader"
	"github.com/dexit-framework/dexit/pkg/module"
	coremodule "github.com/dexit-framework/dexit/pkg/modules/core"
	"github.com/dexit-framework/dexit/pkg/report"
	_ "github.com/dexit-framework/dexit/pkg/report/console"
	_ "github.com/dexit-framework/dexit/pkg/report/jsonreport"
	_ "github.com/dexit-framework/dexit/pkg/report/tui"
	"github.com/dexit-framework/dexit/pkg/repository"
	"github.com/dexit-framework/dexit/pkg/runner"
	"github.com/dexit-framework/dexit/pkg/testschema"
)

var version = "dev"

var (
	flagBasePath      string
	flagModulesPath   string
	flagNoAutoload    bool
	flagNoBuiltin     bool
	flagIgnoreInvalid bool
	flagReporters     []string
	flagDebug         bool
	flagGenSchema     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a returned error to the CLI's contract: 0 handled by
// cobra on nil error, 1 for a reported test-failure count, 2 for anything
// that prevented a run (validation, bootstrap, or flag errors).
func exitCodeFor(err error) int {
	if _, ok := err.(*testFailureError); ok {
		return 1
	}
	return 2
}

// testFailureError signals that dexit ran to completion but reported one
// or more failing tests, as opposed to failing to run at all.
type testFailureError struct {
	count int
}

func (e *testFailureError) Error() string {
	return fmt.Sprintf("test run reported %d error(s)", e.count)
}

var rootCmd = &cobra.Command{
	Use:          "dexit [testsPath]",
	Short:        "dexit — declarative integration test engine",
	Version:      version,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runDexit,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&flagBasePath, "base-path", "", "project root dexit.yaml/package.yaml is resolved against (default: current directory)")
	flags.StringVar(&flagModulesPath, "modules-path", "", "directory to autoload modules from (default: <basePath>/modules)")
	flags.BoolVar(&flagNoAutoload, "no-autoload", false, "skip autoloading modules from modules-path")
	flags.BoolVar(&flagNoBuiltin, "no-builtin", false, "skip registering the built-in core module")
	flags.BoolVar(&flagIgnoreInvalid, "ignore-invalid", false, "skip invalid documents instead of aborting the load")
	flags.StringArrayVar(&flagReporters, "reporter", nil, "reporter to use (repeatable): console, json, tui")
	flags.BoolVar(&flagDebug, "debug", false, "open the interactive namespace debugger instead of running")
	flags.StringVar(&flagGenSchema, "generate-schema", "", "write the composed JSON Schema to this file and exit")
}

func runDexit(cmd *cobra.Command, args []string) error {
	var testsPathArg string
	if len(args) == 1 {
		testsPathArg = args[0]
	}

	basePath := flagBasePath
	if basePath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getwd: %w", err)
		}
		basePath = wd
	}

	var noAutoload, noBuiltin, ignoreInvalid, debugFlag *bool
	if cmd.Flags().Changed("no-autoload") {
		noAutoload = &flagNoAutoload
	}
	if cmd.Flags().Changed("no-builtin") {
		noBuiltin = &flagNoBuiltin
	}
	if cmd.Flags().Changed("ignore-invalid") {
		ignoreInvalid = &flagIgnoreInvalid
	}
	if cmd.Flags().Changed("debug") {
		debugFlag = &flagDebug
	}

	cfg, err := config.Resolve(basePath, config.Flags{
		TestsPath:     testsPathArg,
		BasePath:      basePath,
		ModulesPath:   flagModulesPath,
		NoAutoload:    noAutoload,
		NoBuiltin:     noBuiltin,
		IgnoreInvalid: ignoreInvalid,
		Reporters:     flagReporters,
		Debug:         debugFlag,
	})
	if err != nil {
		return fmt.Errorf("resolve configuration: %w", err)
	}

	registry := module.NewRegistry()
	if !cfg.NoBuiltin {
		if err := registry.Register(coremodule.New()); err != nil {
			return fmt.Errorf("register builtin module: %w", err)
		}
	}
	if !cfg.NoAutoload {
		modulesPath := cfg.ModulesPath
		if !filepath.IsAbs(modulesPath) {
			modulesPath = filepath.Join(cfg.BasePath, modulesPath)
		}
		if err := registry.LoadFromPath(modulesPath); err != nil {
			return fmt.Errorf("autoload modules: %w", err)
		}
	}

	if flagGenSchema != "" {
		return generateSchema(registry, flagGenSchema)
	}

	docs, err := loader.Load(cfg.TestsPath, nil)
	if err != nil {
		return fmt.Errorf("load tests: %w", err)
	}

	repo, err := repository.New(registry)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if loadErr := repo.LoadDocuments(docs, cfg.IgnoreInvalid); loadErr != nil {
		return fmt.Errorf("%s\n%s", loadErr, formatValidationErrors(repo.Errors()))
	}
	repo.Build()

	if cfg.Debug {
		return debugger.New(repo).Run()
	}

	reporters, err := buildReporters(cfg.Reporters)
	if err != nil {
		return err
	}
	broadcast, err := report.NewBroadcast(reporters...)
	if err != nil {
		return fmt.Errorf("build reporters: %w", err)
	}

	if len(repo.Errors()) > 0 {
		broadcast.LogValidationErrors(repo.Errors())
	}

	run := runner.New(repo, registry, broadcast)
	complete := run.Run(context.Background())

	if complete.ErrorCount > 0 {
		return &testFailureError{count: complete.ErrorCount}
	}
	return nil
}

func buildReporters(names []string) ([]report.Reporter, error) {
	if len(names) == 0 {
		names = []string{"console"}
	}
	reporters := make([]report.Reporter, 0, len(names))
	for _, name := range names {
		factory, ok := report.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown reporter %q", name)
		}
		r, err := factory(nil)
		if err != nil {
			return nil, fmt.Errorf("build reporter %q: %w", name, err)
		}
		reporters = append(reporters, r)
	}
	return reporters, nil
}

func generateSchema(registry *module.Registry, outPath string) error {
	composed, err := testschema.New(registry).Compose()
	if err != nil {
		return fmt.Errorf("compose schema: %w", err)
	}
	data, err := json.MarshalIndent(composed, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	return os.WriteFile(outPath, data, 0o644)
}

func formatValidationErrors(errs []*repository.ValidationError) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += "\n"
		}
		out += "  " + e.Error()
	}
	return out
}
