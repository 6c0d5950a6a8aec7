package module

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the name of the per-package descriptor LoadFromPath
// looks for in each immediate subdirectory of the modules path.
const ManifestFile = "dexit.module.yaml"

// Manifest is the on-disk descriptor identifying a module package.
type Manifest struct {
	Name        string `yaml:"name"`
	DexitModule bool   `yaml:"dexitModule"`
	Entry       string `yaml:"entry"`
}

// Factory builds a Module value. Concrete module packages register a
// Factory under their manifest's "entry" name via RegisterFactory in an
// init function — this is dexit's equivalent of database/sql driver
// registration, used because Go has no stable cross-toolchain dynamic
// loading story (plugin.Open is Linux-only and toolchain-pinned).
type Factory func() *Module

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// RegisterFactory makes a module factory available to LoadFromPath under
// the given entry name. Intended to be called from package init.
func RegisterFactory(entry string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[entry] = f
}

// LoadFromPath enumerates immediate subdirectories of path, reads each
// one's dexit.module.yaml manifest, and registers those with a truthy
// dexitModule flag by looking up their declared entry in the factory
// table. A missing manifest is not an error (the directory is simply not
// a dexit module); a present-but-invalid manifest, or a registration
// failure, is fatal per spec — it aborts the whole load.
func (r *Registry) LoadFromPath(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read modules path %q: %w", path, err)
	}

	// Sorted for deterministic registration order (and hence error messages).
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		manifestPath := filepath.Join(path, name, ManifestFile)
		data, err := os.ReadFile(manifestPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("read manifest %q: %w", manifestPath, err)
		}

		var m Manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("parse manifest %q: %w", manifestPath, err)
		}
		if !m.DexitModule {
			continue
		}

		factoriesMu.RLock()
		factory, ok := factories[m.Entry]
		factoriesMu.RUnlock()
		if !ok {
			return fmt.Errorf("package %q declares entry %q with no registered factory", name, m.Entry)
		}

		mod := factory()
		if err := r.Register(mod); err != nil {
			return fmt.Errorf("package %q: %w", name, err)
		}
	}
	return nil
}
