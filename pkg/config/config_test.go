package config

import (
	"os"
	"path/filepath"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func TestResolve_DefaultsWhenNoManifest(t *testing.T) {
	root := t.TempDir()
	cfg, err := Resolve(root, Flags{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.TestsPath != "./tests" {
		t.Fatalf("TestsPath = %q, want %q", cfg.TestsPath, "./tests")
	}
	if cfg.ModulesPath != "./modules" {
		t.Fatalf("ModulesPath = %q, want %q", cfg.ModulesPath, "./modules")
	}
	if cfg.NoAutoload || cfg.NoBuiltin || cfg.IgnoreInvalid || cfg.Debug {
		t.Fatalf("expected all bool fields false by default, got %+v", cfg)
	}
}

func TestResolve_ReadsManifestDexitKey(t *testing.T) {
	root := t.TempDir()
	manifest := `
dexit:
  testsPath: ./acceptance
  reporters:
    - json
  noBuiltin: true
`
	if err := os.WriteFile(filepath.Join(root, "dexit.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	cfg, err := Resolve(root, Flags{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.TestsPath != "./acceptance" {
		t.Fatalf("TestsPath = %q, want %q", cfg.TestsPath, "./acceptance")
	}
	if len(cfg.Reporters) != 1 || cfg.Reporters[0] != "json" {
		t.Fatalf("Reporters = %v, want [json]", cfg.Reporters)
	}
	if !cfg.NoBuiltin {
		t.Fatal("NoBuiltin = false, want true from manifest")
	}
}

func TestResolve_CLIFlagsOverrideManifest(t *testing.T) {
	root := t.TempDir()
	manifest := `
dexit:
  testsPath: ./acceptance
  noBuiltin: true
`
	if err := os.WriteFile(filepath.Join(root, "dexit.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	cfg, err := Resolve(root, Flags{
		TestsPath: "./smoke",
		NoBuiltin: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.TestsPath != "./smoke" {
		t.Fatalf("TestsPath = %q, want %q (CLI should win)", cfg.TestsPath, "./smoke")
	}
	if cfg.NoBuiltin {
		t.Fatal("NoBuiltin = true, want false (CLI should win over manifest)")
	}
}

func TestResolve_PackageYAMLFallback(t *testing.T) {
	root := t.TempDir()
	manifest := `
dexit:
  testsPath: ./pkg-tests
`
	if err := os.WriteFile(filepath.Join(root, "package.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	cfg, err := Resolve(root, Flags{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.TestsPath != "./pkg-tests" {
		t.Fatalf("TestsPath = %q, want %q", cfg.TestsPath, "./pkg-tests")
	}
}
