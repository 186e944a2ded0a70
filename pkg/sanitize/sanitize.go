// Package sanitize strips structurally dangerous object keys from
// untrusted parsed JSON before any other layer touches it.
//
// The formulation documents this system consumes originate from
// tooling that splices user-controlled template values into JSON, so a
// hostile plan can smuggle prototype-pollution-style keys into what
// will become a security document. Sanitization rebuilds every object
// as an explicit map containing only the input's own non-dangerous
// keys; a stripped key cannot resurrect itself through inherited
// members because Go maps have none.
package sanitize

import (
	"errors"
	"fmt"
)

// MaxDepth is the nesting ceiling for recursive walks. Input deeper
// than this is treated as adversarial and rejected outright instead of
// risking stack exhaustion.
const MaxDepth = 64

// ErrMaxDepth is returned when input nests past MaxDepth levels.
var ErrMaxDepth = errors.New("sanitize: maximum nesting depth exceeded")

// dangerousKeys are object keys that must never survive into a rebuilt
// document.
var dangerousKeys = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

// IsDangerousKey reports whether key is on the deny-list. The resolver
// applies the same test to keys produced by template substitution.
func IsDangerousKey(key string) bool {
	_, ok := dangerousKeys[key]
	return ok
}

// Clean recursively rebuilds v, omitting deny-listed keys from every
// object at any depth. Arrays and primitives pass through untouched
// (arrays are rebuilt so their elements can be cleaned). Returns
// ErrMaxDepth if the input nests too deep.
func Clean(v any) (any, error) {
	return clean(v, 0)
}

func clean(v any, depth int) (any, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w (limit %d)", ErrMaxDepth, MaxDepth)
	}
	switch value := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for key, entry := range value {
			if IsDangerousKey(key) {
				continue
			}
			cleaned, err := clean(entry, depth+1)
			if err != nil {
				return nil, err
			}
			out[key] = cleaned
		}
		return out, nil
	case []any:
		out := make([]any, len(value))
		for i, entry := range value {
			cleaned, err := clean(entry, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = cleaned
		}
		return out, nil
	default:
		return v, nil
	}
}
