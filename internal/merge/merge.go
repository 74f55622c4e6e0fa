// Package merge implements the smart deep-merge used to combine built-in target
// defaults with caller-supplied configuration.
//
// Maps merge key by key, slices concatenate (base first) and scalars are replaced
// by the override. Inputs are never mutated and the result shares no mutable
// containers with them.
package merge

import "reflect"

// Smart merges override onto base and returns a fresh tree.
func Smart(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = Clone(v)
	}
	for k, v := range override {
		existing, ok := out[k]
		if !ok {
			out[k] = Clone(v)
			continue
		}
		out[k] = value(existing, v)
	}
	return out
}

func value(base, override any) any {
	if bm, ok := asMap(base); ok {
		if om, ok := asMap(override); ok {
			return Smart(bm, om)
		}
	}
	if bs, ok := base.([]any); ok {
		if ov, ok := asSlice(override); ok {
			out := make([]any, 0, len(bs)+len(ov))
			for _, v := range bs {
				out = append(out, Clone(v))
			}
			for _, v := range ov {
				out = append(out, Clone(v))
			}
			return out
		}
	}
	return Clone(override)
}

// Clone deep-copies maps and slices; other values are returned as is.
func Clone(v any) any {
	if m, ok := asMap(v); ok {
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = Clone(val)
		}
		return out
	}
	if s, ok := asSlice(v); ok {
		out := make([]any, len(s))
		for i, val := range s {
			out[i] = Clone(val)
		}
		return out
	}
	return v
}

// CloneMap deep-copies a configuration tree.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return Clone(m).(map[string]any)
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		// Emitted by some decoders for nested mappings.
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	// Named map types such as target.Config.
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, val := range s {
			out[i] = val
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(s))
		for i, val := range s {
			out[i] = val
		}
		return out, true
	}
	return nil, false
}
