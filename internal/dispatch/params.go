package dispatch

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/rahul/casepilot/internal/variables"
)

// bindingAliases are the params keys that name an output variable when the
// step has no output_variable, in priority order.
var bindingAliases = []string{"store_as", "save_to", "assign_to", "var_name"}

const defaultWaitTimeout = 10000 * time.Millisecond

func outputBinding(explicit string, params map[string]any) string {
	if name := strings.TrimSpace(explicit); name != "" {
		return name
	}
	for _, key := range bindingAliases {
		if s, ok := params[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// requireString returns params[key] as text, failing when it is missing or
// blank. Non-string values are rendered the way references are.
func requireString(action Action, params map[string]any, key string) (string, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return "", fmt.Errorf("%w: %s requires %q", ErrInvalidParameters, action, key)
	}
	val, err := variables.FromAny(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s param %q: %v", ErrInvalidParameters, action, key, err)
	}
	switch v := val.(type) {
	case variables.Object:
		if len(v) == 0 {
			return "", fmt.Errorf("%w: %s param %q must not be empty", ErrInvalidParameters, action, key)
		}
	case variables.Array:
		if len(v) == 0 {
			return "", fmt.Errorf("%w: %s param %q must not be empty", ErrInvalidParameters, action, key)
		}
	}
	text := variables.Text(val)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s param %q must not be empty", ErrInvalidParameters, action, key)
	}
	return text, nil
}

func optionalString(params map[string]any, key, def string) string {
	raw, ok := params[key]
	if !ok || raw == nil {
		return def
	}
	if s, ok := raw.(string); ok {
		if strings.TrimSpace(s) == "" {
			return def
		}
		return s
	}
	return fmt.Sprint(raw)
}

func optionalMap(action Action, params map[string]any, key string) (map[string]any, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch m := raw.(type) {
	case map[string]any:
		return m, nil
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s param %q must be a mapping, got %T", ErrInvalidParameters, action, key, raw)
}

// optionalMillis reads a duration given in milliseconds.
func optionalMillis(action Action, params map[string]any, key string, def time.Duration) (time.Duration, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return def, nil
	}
	var ms float64
	switch v := raw.(type) {
	case int:
		ms = float64(v)
	case int64:
		ms = float64(v)
	case float64:
		ms = v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s param %q is not a number: %q", ErrInvalidParameters, action, key, v)
		}
		ms = f
	default:
		return 0, fmt.Errorf("%w: %s param %q is not a number: %v", ErrInvalidParameters, action, key, raw)
	}
	if ms <= 0 {
		return 0, fmt.Errorf("%w: %s param %q must be positive", ErrInvalidParameters, action, key)
	}
	return time.Duration(ms * float64(time.Millisecond)), nil
}

// canonicalJSON renders params with sorted keys so equal params always
// produce equal text.
func canonicalJSON(params map[string]any) string {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprint(params)
	}
	return string(data)
}

// confidence is a placeholder trust signal: 0.85 plus a stable value in
// [0, 0.15) derived from the resolved params.
func confidence(params map[string]any) float64 {
	h := fnv.New64a()
	h.Write([]byte(canonicalJSON(params)))
	return 0.85 + float64(h.Sum64()%15)/100
}
