package resolve

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zpratt/lousy-iam/pkg/policy"
	"github.com/zpratt/lousy-iam/pkg/sanitize"
)

// Fatal structural resolution failures. Unlike missing variables these
// abort the walk immediately: the input is malformed or hostile, not
// merely incomplete.
var (
	// ErrUnsafeKey means a template variable resolved to a deny-listed
	// object key.
	ErrUnsafeKey = errors.New("resolve: resolved key is dangerous")

	// ErrKeyCollision means two distinct original keys resolved to the
	// same destination key within one object.
	ErrKeyCollision = errors.New("resolve: resolved key collision")
)

// Structural resolves template placeholders across a parsed object
// graph, in values and in object keys. It enforces three guards the
// string variant cannot: resolved keys must not be dangerous, two
// distinct source keys must not collide on one destination key, and
// the walk refuses to descend past sanitize.MaxDepth levels.
//
// Missing variables are collected across the whole walk and reported
// together as a *MissingVariablesError; no partial output is returned.
func Structural(value any, declared map[string]string, cfg *Config) (any, error) {
	w := &walker{declared: declared, cfg: cfg, seen: make(map[string]bool)}
	out, err := w.walk(value, 0)
	if err != nil {
		return nil, err
	}
	if len(w.missing) > 0 {
		return nil, &MissingVariablesError{Names: w.missing}
	}
	return out, nil
}

type walker struct {
	declared map[string]string
	cfg      *Config
	missing  []string
	seen     map[string]bool
}

func (w *walker) walk(value any, depth int) (any, error) {
	if depth > sanitize.MaxDepth {
		return nil, fmt.Errorf("%w (limit %d)", sanitize.ErrMaxDepth, sanitize.MaxDepth)
	}
	switch v := value.(type) {
	case string:
		return w.resolveString(v), nil
	case map[string]any:
		out := make(map[string]any, len(v))
		origin := make(map[string]string, len(v))
		for key, entry := range v {
			resolvedKey := w.resolveString(key)
			if sanitize.IsDangerousKey(resolvedKey) {
				return nil, fmt.Errorf("%w: %q", ErrUnsafeKey, resolvedKey)
			}
			if prior, exists := origin[resolvedKey]; exists && prior != key {
				return nil, fmt.Errorf("%w: %q and %q both resolve to %q", ErrKeyCollision, prior, key, resolvedKey)
			}
			origin[resolvedKey] = key
			walked, err := w.walk(entry, depth+1)
			if err != nil {
				return nil, err
			}
			out[resolvedKey] = walked
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, entry := range v {
			walked, err := w.walk(entry, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = walked
		}
		return out, nil
	default:
		return value, nil
	}
}

// resolveString substitutes what it can and records what it cannot.
// When a name is missing the original string is returned unchanged;
// the walk fails as a whole afterwards, so no partial text escapes.
func (w *walker) resolveString(s string) string {
	matches := placeholderRE.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return s
	}
	values := make(map[string]string, len(matches))
	complete := true
	for _, match := range matches {
		name := match[1]
		if v, ok := lookup(name, w.declared, w.cfg); ok {
			values[name] = v
			continue
		}
		complete = false
		if !w.seen[name] {
			w.seen[name] = true
			w.missing = append(w.missing, name)
		}
	}
	if !complete {
		return s
	}
	return placeholderRE.ReplaceAllStringFunc(s, func(token string) string {
		return values[token[2:len(token)-1]]
	})
}

// Formulation resolves a fixed formulation tree into the object graph
// downstream payload synthesis consumes: the typed tree is serialized,
// sanitized, then structurally resolved against its own declared
// variables plus cfg.
func Formulation(f *policy.Formulation, cfg *Config) (map[string]any, error) {
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("resolve: marshal formulation: %w", err)
	}
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("resolve: reparse formulation: %w", err)
	}
	cleaned, err := sanitize.Clean(parsed)
	if err != nil {
		return nil, err
	}
	resolved, err := Structural(cleaned, f.TemplateVariables, cfg)
	if err != nil {
		return nil, err
	}
	out, ok := resolved.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("resolve: formulation did not resolve to an object")
	}
	return out, nil
}
