// Package flatten converts nested JSON documents into flat maps keyed by
// dot-joined paths, the form rule expressions are evaluated against.
package flatten

import "strconv"

// Flat is a flattened JSON document. Each key is the dot-joined path from
// the root to a leaf value, with array positions as numeric segments.
type Flat map[string]any

// Flatten walks a decoded JSON document depth-first and returns its flat
// form: {"a": [{"b": 1}, 2]} becomes {"a.0.b": 1, "a.1": 2}. Keys are
// unique by construction since every leaf has a distinct path. Empty maps
// and arrays contribute nothing.
func Flatten(doc map[string]any) Flat {
	out := make(Flat)
	walk(doc, "", out)
	return out
}

func walk(v any, prefix string, out Flat) {
	switch val := v.(type) {
	case map[string]any:
		for key, child := range val {
			walk(child, prefix+key+".", out)
		}
	case []any:
		for i, child := range val {
			walk(child, prefix+strconv.Itoa(i)+".", out)
		}
	default:
		out[prefix[:len(prefix)-1]] = v
	}
}
