// Package validate checks the shape of values returned by AI queries.
// A failed check is reported as a warning on the step; it never fails it.
package validate

import (
	"fmt"
	"strings"

	"github.com/rahul/casepilot/internal/variables"
)

// Func checks a returned value. demand is the query text.
type Func func(value variables.Value, demand string) (bool, string)

// Structured accepts any non-null value; objects and arrays must not be empty.
func Structured(value variables.Value, demand string) (bool, string) {
	if variables.IsNull(value) {
		return false, fmt.Sprintf("aiQuery returned null for %q", demand)
	}
	switch v := value.(type) {
	case variables.Object:
		if len(v) == 0 {
			return false, fmt.Sprintf("aiQuery returned an empty object for %q", demand)
		}
	case variables.Array:
		if len(v) == 0 {
			return false, fmt.Sprintf("aiQuery returned an empty array for %q", demand)
		}
	}
	return true, ""
}

func String(value variables.Value, _ string) (bool, string) {
	s, ok := value.(variables.String)
	if !ok {
		return false, fmt.Sprintf("expected string, got %s", kindOf(value))
	}
	if strings.TrimSpace(string(s)) == "" {
		return false, "string result is empty"
	}
	return true, ""
}

func Number(value variables.Value, _ string) (bool, string) {
	n, ok := value.(variables.Number)
	if !ok {
		return false, fmt.Sprintf("expected number, got %s", kindOf(value))
	}
	if !n.Finite() {
		return false, fmt.Sprintf("number result is not finite: %s", variables.Text(n))
	}
	return true, ""
}

func Boolean(value variables.Value, _ string) (bool, string) {
	if _, ok := value.(variables.Bool); !ok {
		return false, fmt.Sprintf("expected boolean, got %s", kindOf(value))
	}
	return true, ""
}

func kindOf(v variables.Value) variables.Kind {
	if v == nil {
		return variables.KindNull
	}
	return v.Kind()
}
