package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParseContext decodes raw JSON text into the tagged value representation
// used by Entry.Context: nil, bool, float64, string, []any or map[string]any.
func ParseContext(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, WrapError("parse_context", fmt.Errorf("%w: %v", ErrSerialization, err))
	}
	return value, nil
}

// EvalPointer resolves a slash-delimited JSON pointer (RFC 6901) against a
// decoded JSON value by explicit recursive descent. It returns the value at
// the pointer and whether it was found. A malformed pointer yields
// ErrInvalidQuery; a missing path is not an error.
func EvalPointer(value any, pointer string) (any, bool, error) {
	if pointer == "" {
		return value, true, nil
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil, false, WrapError("eval_pointer",
			fmt.Errorf("%w: pointer %q must start with '/'", ErrInvalidQuery, pointer))
	}

	current := value
	for _, token := range strings.Split(pointer[1:], "/") {
		key := unescapePointerToken(token)

		switch node := current.(type) {
		case map[string]any:
			next, ok := node[key]
			if !ok {
				return nil, false, nil
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 {
				return nil, false, nil
			}
			if idx >= len(node) {
				return nil, false, nil
			}
			current = node[idx]
		default:
			// Scalars have no children
			return nil, false, nil
		}
	}

	return current, true, nil
}

// unescapePointerToken applies the RFC 6901 escapes: ~1 is '/', ~0 is '~'.
// Order matters, ~1 first.
func unescapePointerToken(token string) string {
	token = strings.ReplaceAll(token, "~1", "/")
	return strings.ReplaceAll(token, "~0", "~")
}

// JSONEqual reports deep equality between two decoded JSON values, with
// numeric types normalized so that 1, int64(1) and 1.0 compare equal.
func JSONEqual(a, b any) bool {
	na, aNum := asFloat(a)
	nb, bNum := asFloat(b)
	if aNum || bNum {
		return aNum && bNum && na == nb
	}

	switch va := a.(type) {
	case nil:
		return b == nil
	case bool:
		vb, ok := b.(bool)
		return ok && va == vb
	case string:
		vb, ok := b.(string)
		return ok && va == vb
	case []any:
		vb, ok := b.([]any)
		if !ok || len(va) != len(vb) {
			return false
		}
		for i := range va {
			if !JSONEqual(va[i], vb[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		vb, ok := b.(map[string]any)
		if !ok || len(va) != len(vb) {
			return false
		}
		for k, v := range va {
			other, present := vb[k]
			if !present || !JSONEqual(v, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// asFloat normalizes the numeric types that can show up in a context value,
// whether it was decoded from JSON or built in Go code.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
