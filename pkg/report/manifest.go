package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the descriptor LoadFromPath looks for in each immediate
// subdirectory of a reporters path.
const ManifestFile = "dexit.reporter.yaml"

// Manifest is the on-disk descriptor identifying a reporter package.
type Manifest struct {
	Name          string `yaml:"name"`
	DexitReporter bool   `yaml:"dexitReporter"`
	Entry         string `yaml:"entry"`
}

// Factory builds a Reporter from a configuration mapping. The CLI's
// --reporter flag and LoadFromPath both pass a nil mapping, so factories
// must treat a nil config as "use defaults".
type Factory func(config map[string]any) (Reporter, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// RegisterFactory makes a reporter factory available to LoadFromPath and
// to the built-in reporter names under the given entry name. Intended to
// be called from package init.
func RegisterFactory(entry string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[entry] = f
}

// Lookup resolves an entry name to its registered factory, for callers
// (the CLI's --reporter flag) that build reporters directly by name
// without going through a manifest directory.
func Lookup(entry string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[entry]
	return f, ok
}

// LoadFromPath enumerates immediate subdirectories of path, reads each
// one's dexit.reporter.yaml manifest, and for those with a truthy
// dexitReporter flag, builds and returns a Reporter via the declared
// entry's factory with an empty configuration mapping. A missing
// manifest is not an error; a malformed manifest, unregistered entry, or
// factory error aborts the whole call.
func LoadFromPath(path string) ([]Reporter, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reporters path %q: %w", path, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []Reporter
	for _, name := range names {
		manifestPath := filepath.Join(path, name, ManifestFile)
		data, err := os.ReadFile(manifestPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read manifest %q: %w", manifestPath, err)
		}

		var m Manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse manifest %q: %w", manifestPath, err)
		}
		if !m.DexitReporter {
			continue
		}

		factory, ok := Lookup(m.Entry)
		if !ok {
			return nil, fmt.Errorf("package %q declares entry %q with no registered factory", name, m.Entry)
		}
		r, err := factory(nil)
		if err != nil {
			return nil, fmt.Errorf("package %q: %w", name, err)
		}
		out = append(out, r)
	}
	return out, nil
}
