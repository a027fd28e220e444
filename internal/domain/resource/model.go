package resource

import "strings"

// Resource is one structured unit of parsed infrastructure configuration:
// a type name (cloud-provider resource kind), an instance name, a nested
// key-value configuration tree, and the source location it was parsed from.
// Resources are supplied by a configuration parser and are immutable from
// the engine's perspective.
type Resource struct {
	Type       string                 `json:"type"`
	Name       string                 `json:"name"`
	Config     map[string]interface{} `json:"config"`
	FilePath   string                 `json:"file_path"`
	LineNumber int                    `json:"line_number"`
}

// Lookup walks the configuration tree following dot-separated path segments.
// Nested blocks are maps; the walk stops with ok=false as soon as a segment
// is missing or the current node is not a map.
func (r *Resource) Lookup(path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}
	var current interface{} = r.Config
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Has reports whether the dot-separated path resolves to a non-nil value
func (r *Resource) Has(path string) bool {
	v, ok := r.Lookup(path)
	return ok && v != nil
}
