// Package interp implements the dexit Interpolator: expansion of
// "${path}" references in strings and nested structures against a
// parameter map, using kubectl-style JSONPath.
package interp

import (
	"bytes"
	"fmt"
	"regexp"

	"k8s.io/client-go/util/jsonpath"
)

// tokenPattern matches a single ${...} reference. The character class
// mirrors the grammar: dots/brackets for path segments, "*" for
// wildcards, and "@?><=!" for JSONPath bracket-filter predicates
// (e.g. "${items[?(@.price<10)]}").
var tokenPattern = regexp.MustCompile(`\$\{([A-Za-z0-9._\[\]*@?><=!]+)\}`)

// Resolve expands every ${...} token in value against data. Strings are
// scanned for tokens; sequences and mappings are walked element/value-wise
// preserving shape; any other scalar is returned unchanged.
//
// If a string consists of exactly one token with no surrounding text, the
// raw resolved value is returned (preserving its original type, including
// nil when the path does not resolve). Otherwise each token is replaced by
// its string form and unresolved tokens become the empty string.
func Resolve(data any, value any) any {
	switch v := value.(type) {
	case string:
		return resolveString(data, v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Resolve(data, item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = Resolve(data, item)
		}
		return out
	default:
		return v
	}
}

func resolveString(data any, s string) any {
	matches := tokenPattern.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s
	}

	// Exact-token form: the whole string is one "${...}" reference.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		path := s[matches[0][2]:matches[0][3]]
		v, ok := evalPath(data, path)
		if !ok {
			return nil
		}
		return v
	}

	var buf bytes.Buffer
	last := 0
	for _, m := range matches {
		start, end, pathStart, pathEnd := m[0], m[1], m[2], m[3]
		buf.WriteString(s[last:start])
		path := s[pathStart:pathEnd]
		if v, ok := evalPath(data, path); ok {
			fmt.Fprint(&buf, v)
		}
		last = end
	}
	buf.WriteString(s[last:])
	return buf.String()
}

// evalPath evaluates JSONPath "$." + path against data, returning the
// first match and whether one was found.
func evalPath(data any, path string) (any, bool) {
	jp := jsonpath.New("dexit").AllowMissingKeys(true)
	if err := jp.Parse("{$." + path + "}"); err != nil {
		return nil, false
	}
	results, err := jp.FindResults(data)
	if err != nil {
		return nil, false
	}
	for _, set := range results {
		for _, rv := range set {
			if !rv.IsValid() {
				continue
			}
			return rv.Interface(), true
		}
	}
	return nil, false
}
