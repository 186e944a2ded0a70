// Package resolve substitutes ${name} template placeholders in fixed
// policy documents using a layered variable lookup, either over a
// serialized document or structurally over a parsed object graph.
// Resolution is all-or-nothing: partial substitution is never
// returned.
package resolve

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderRE matches ${name} tokens. Substitution is a single pass:
// a resolved value that itself contains placeholder-looking text is
// not re-scanned, so expansion cannot loop.
var placeholderRE = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Config supplies variable values from deployment configuration. The
// named fields are the strongly-typed lookups and take precedence over
// everything else; Variables is the free-form map consulted second.
type Config struct {
	AccountID  string
	Region     string
	RoleName   string
	ProjectTag string
	Variables  map[string]string
}

// typedValue returns the strongly-typed config field for a placeholder
// name, if one exists and is set.
func (c *Config) typedValue(name string) (string, bool) {
	if c == nil {
		return "", false
	}
	var v string
	switch name {
	case "account_id":
		v = c.AccountID
	case "region":
		v = c.Region
	case "role_name":
		v = c.RoleName
	case "project_tag":
		v = c.ProjectTag
	default:
		return "", false
	}
	return v, v != ""
}

// placeholderDescriptions are the human-readable texts the formulation
// stage stores for declared-but-unset variables. A declared value
// equal to its description signals "this name exists" rather than
// "this name has a value".
var placeholderDescriptions = map[string]string{
	"account_id":  "The AWS account ID the roles deploy into",
	"region":      "The AWS region the plan targets",
	"role_name":   "The name of the deploying role",
	"project_tag": "The project tag applied to created resources",
}

// DescribePlaceholder returns the description the formulation stage
// writes for a declared-but-unset variable.
func DescribePlaceholder(name string) string {
	if d, ok := placeholderDescriptions[name]; ok {
		return d
	}
	return ""
}

// lookup resolves one placeholder name. Precedence: typed config
// field, then the free-form config map, then the document's declared
// map — where a value equal to the name's placeholder description
// counts as unset.
func lookup(name string, declared map[string]string, cfg *Config) (string, bool) {
	if v, ok := cfg.typedValue(name); ok {
		return v, true
	}
	if cfg != nil {
		if v, ok := cfg.Variables[name]; ok && v != "" {
			return v, true
		}
	}
	if v, ok := declared[name]; ok && v != "" && v != placeholderDescriptions[name] {
		return v, true
	}
	return "", false
}

// Result is the outcome of a whole-document string resolution.
type Result struct {
	Resolved         bool     `json:"resolved"`
	Output           string   `json:"output,omitempty"`
	MissingVariables []string `json:"missing_variables,omitempty"`
}

// String substitutes every ${name} occurrence in input. If any
// referenced name has no resolvable source the whole resolution fails,
// naming each missing variable exactly once in first-reference order.
func String(input string, declared map[string]string, cfg *Config) Result {
	values := make(map[string]string)
	var missing []string
	seen := make(map[string]bool)

	for _, match := range placeholderRE.FindAllStringSubmatch(input, -1) {
		name := match[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		if v, ok := lookup(name, declared, cfg); ok {
			values[name] = v
		} else {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return Result{Resolved: false, MissingVariables: missing}
	}

	output := placeholderRE.ReplaceAllStringFunc(input, func(token string) string {
		name := token[2 : len(token)-1]
		return values[name]
	})
	return Result{Resolved: true, Output: output}
}

// MissingVariablesError reports every placeholder name a structural
// resolution could not satisfy.
type MissingVariablesError struct {
	Names []string
}

func (e *MissingVariablesError) Error() string {
	return fmt.Sprintf("resolve: missing template variables: %s", strings.Join(e.Names, ", "))
}
