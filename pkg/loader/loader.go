// Package loader walks a directory tree for YAML test documents and
// decodes them into document.TestDocument values ready for the
// Repository to load.
package loader

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dexit-framework/dexit/pkg/document"
)

// DefaultIgnore lists exact file and directory names skipped regardless of
// an explicit ignore list (the usual VCS/tooling directories). Dotfiles are
// skipped separately by Load.
var DefaultIgnore = []string{".git", "node_modules"}

// Load walks root for *.yaml/*.yml files, skipping dotfiles, names
// appearing in DefaultIgnore, and names appearing in extraIgnore, and
// decodes each file as one or more YAML documents (multi-document
// streams separated by "---" each become a separate TestDocument).
func Load(root string, extraIgnore []string) ([]document.TestDocument, error) {
	ignore := make(map[string]bool, len(DefaultIgnore)+len(extraIgnore))
	for _, n := range DefaultIgnore {
		ignore[n] = true
	}
	for _, n := range extraIgnore {
		ignore[n] = true
	}

	var docs []document.TestDocument
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || ignore[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || ignore[name] {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = name
		}
		rel = filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
		rel = strings.ReplaceAll(rel, "/", ".")

		fileDocs, err := decodeFile(path, rel)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		docs = append(docs, fileDocs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func decodeFile(path, name string) ([]document.TestDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []document.TestDocument
	dec := yaml.NewDecoder(f)
	for i := 0; ; i++ {
		var value map[string]any
		if err := dec.Decode(&value); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if value == nil {
			continue
		}

		var set document.TestSet
		raw, err := yaml.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, &set); err != nil {
			return nil, err
		}

		docName := name
		if i > 0 {
			docName = fmt.Sprintf("%s.%d", name, i)
		}
		out = append(out, document.TestDocument{
			Name:    docName,
			Path:    path,
			Value:   value,
			TestSet: set,
		})
	}
	return out, nil
}
