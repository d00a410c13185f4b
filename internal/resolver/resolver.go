// Package resolver substitutes variable references inside step parameters.
//
// A reference is ${name} or {name}. Names that are not defined are left in
// place so literal braces in prompts survive resolution.
package resolver

import (
	"regexp"
	"strings"

	"github.com/rahul/casepilot/internal/variables"
)

// refPattern matches ${name} and {name}; the name cannot contain '}'.
var refPattern = regexp.MustCompile(`\$?\{([^}]+)\}`)

// Lookup returns the current value of a variable.
type Lookup interface {
	Lookup(name string) (variables.Value, bool)
}

// Resolve replaces every known reference in text with the variable's value.
// Substituted text is not scanned again.
func Resolve(text string, vars Lookup) string {
	// Fast path: nothing that could be a reference
	if !strings.Contains(text, "{") {
		return text
	}

	return refPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := refPattern.FindStringSubmatch(match)[1]
		if val, ok := vars.Lookup(name); ok {
			return variables.Text(val)
		}
		return match
	})
}

// ResolveParams returns a copy of params with references resolved in every
// string, recursing into nested maps and sequences.
func ResolveParams(params map[string]any, vars Lookup) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = resolveValue(v, vars)
	}
	return out
}

func resolveValue(v any, vars Lookup) any {
	switch val := v.(type) {
	case string:
		return Resolve(val, vars)
	case map[string]any:
		return ResolveParams(val, vars)
	case map[any]any:
		out := make(map[any]any, len(val))
		for k, item := range val {
			out[k] = resolveValue(item, vars)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			if s, ok := item.(string); ok {
				out[i] = Resolve(s, vars)
			} else {
				out[i] = item
			}
		}
		return out
	case []string:
		out := make([]string, len(val))
		for i, s := range val {
			out[i] = Resolve(s, vars)
		}
		return out
	default:
		return v
	}
}
