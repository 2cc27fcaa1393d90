package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

type arrayUnion struct{ elems []any }

type arrayRemove struct{ elems []any }

type serverTimestamp struct{}

// ArrayUnion adds each element to an array field unless an equal element
// is already present. A missing or non-array field becomes an array of the
// given elements.
func ArrayUnion(elems ...any) any {
	return arrayUnion{elems: elems}
}

// ArrayRemove removes every element equal to one of elems from an array
// field. A missing or non-array field becomes an empty array.
func ArrayRemove(elems ...any) any {
	return arrayRemove{elems: elems}
}

// ServerTimestamp is replaced by the commit time, as an RFC 3339 string.
func ServerTimestamp() any {
	return serverTimestamp{}
}

// ApplyFields returns base with update merged in, resolving transforms
// against now. Neither argument is modified.
func ApplyFields(base, update Fields, now time.Time) (Fields, error) {
	out := make(Fields, len(base)+len(update))
	for k, v := range base {
		out[k] = cloneValue(v)
	}

	for k, v := range update {
		if k == "" {
			return nil, fmt.Errorf("%w: empty field name", ErrInvalidDocument)
		}

		switch t := v.(type) {
		case serverTimestamp:
			out[k] = now.UTC().Format(time.RFC3339Nano)

		case arrayUnion:
			current := arrayValue(out[k])
			for _, e := range t.elems {
				ne, err := normalize(e)
				if err != nil {
					return nil, fmt.Errorf("field %q: %w", k, err)
				}
				if !containsValue(current, ne) {
					current = append(current, ne)
				}
			}
			out[k] = current

		case arrayRemove:
			removals := make([]any, 0, len(t.elems))
			for _, e := range t.elems {
				ne, err := normalize(e)
				if err != nil {
					return nil, fmt.Errorf("field %q: %w", k, err)
				}
				removals = append(removals, ne)
			}
			kept := make([]any, 0)
			for _, e := range arrayValue(out[k]) {
				if !containsValue(removals, e) {
					kept = append(kept, e)
				}
			}
			out[k] = kept

		default:
			nv, err := normalize(v)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			out[k] = nv
		}
	}
	return out, nil
}

func arrayValue(v any) []any {
	arr, ok := v.([]any)
	if !ok {
		return make([]any, 0)
	}
	return arr
}

func containsValue(arr []any, v any) bool {
	for _, e := range arr {
		if reflect.DeepEqual(e, v) {
			return true
		}
	}
	return false
}

// normalize converts v to the shape encoding/json produces when decoding
// into an interface: nil, bool, float64, string, []any, map[string]any.
// Both stores keep data in that shape so equality means the same thing
// everywhere.
func normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool, float64, string:
		return t, nil
	case arrayUnion, arrayRemove, serverTimestamp:
		return nil, fmt.Errorf("%w: transform nested inside a value", ErrInvalidDocument)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return out, nil
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// CloneFields deep-copies a normalized document body.
func CloneFields(f Fields) Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}
