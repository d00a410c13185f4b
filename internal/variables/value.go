package variables

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind names the shape of a Value. It doubles as the type tag recorded
// alongside every stored variable.
type Kind string

const (
	KindNull   Kind = "null"
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindBool   Kind = "boolean"
	KindObject Kind = "object"
	KindArray  Kind = "array"
)

// Value is a variable value. The only implementations are String, Number,
// Bool, Object, Array and Null.
type Value interface {
	Kind() Kind
	// Any converts the value back to plain Go values (string, float64,
	// bool, map[string]any, []any, nil).
	Any() any
	isValue()
}

type (
	String string
	Number float64
	Bool   bool
	Object map[string]Value
	Array  []Value
	Null   struct{}
)

func (String) Kind() Kind { return KindString }
func (Number) Kind() Kind { return KindNumber }
func (Bool) Kind() Kind   { return KindBool }
func (Object) Kind() Kind { return KindObject }
func (Array) Kind() Kind  { return KindArray }
func (Null) Kind() Kind   { return KindNull }

func (String) isValue() {}
func (Number) isValue() {}
func (Bool) isValue()   {}
func (Object) isValue() {}
func (Array) isValue()  {}
func (Null) isValue()   {}

func (s String) Any() any { return string(s) }
func (n Number) Any() any { return float64(n) }
func (b Bool) Any() any   { return bool(b) }
func (Null) Any() any     { return nil }

func (o Object) Any() any {
	out := make(map[string]any, len(o))
	for k, v := range o {
		out[k] = v.Any()
	}
	return out
}

func (a Array) Any() any {
	out := make([]any, len(a))
	for i, v := range a {
		out[i] = v.Any()
	}
	return out
}

// Finite reports whether n is neither NaN nor infinite.
func (n Number) Finite() bool {
	f := float64(n)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Finite() {
		// JSON has no literal for these; keep them readable.
		return json.Marshal(strconv.FormatFloat(float64(n), 'f', -1, 64))
	}
	return json.Marshal(float64(n))
}

func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IsNull reports whether v is absent or the null value.
func IsNull(v Value) bool {
	return v == nil || v.Kind() == KindNull
}

// FromAny converts a decoded JSON or YAML value into a Value.
func FromAny(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(t), nil
	case int:
		return Number(t), nil
	case int8:
		return Number(t), nil
	case int16:
		return Number(t), nil
	case int32:
		return Number(t), nil
	case int64:
		return Number(t), nil
	case uint:
		return Number(t), nil
	case uint8:
		return Number(t), nil
	case uint16:
		return Number(t), nil
	case uint32:
		return Number(t), nil
	case uint64:
		return Number(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", t, err)
		}
		return Number(f), nil
	case map[string]any:
		obj := make(Object, len(t))
		for k, item := range t {
			val, err := FromAny(item)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			obj[k] = val
		}
		return obj, nil
	case map[any]any:
		obj := make(Object, len(t))
		for k, item := range t {
			val, err := FromAny(item)
			if err != nil {
				return nil, fmt.Errorf("key %v: %w", k, err)
			}
			obj[fmt.Sprint(k)] = val
		}
		return obj, nil
	case []any:
		arr := make(Array, len(t))
		for i, item := range t {
			val, err := FromAny(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			arr[i] = val
		}
		return arr, nil
	case []string:
		arr := make(Array, len(t))
		for i, item := range t {
			arr[i] = String(item)
		}
		return arr, nil
	}

	// Anything else (structs, typed slices) goes through its JSON form.
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("unsupported value of type %T: %w", v, err)
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("unsupported value of type %T: %w", v, err)
	}
	return FromAny(decoded)
}

// Text renders v the way it is substituted into step parameters: strings
// verbatim, everything else as compact JSON.
func Text(v Value) string {
	if v == nil {
		return "null"
	}
	switch t := v.(type) {
	case String:
		return string(t)
	case Number:
		return strconv.FormatFloat(float64(t), 'f', -1, 64)
	case Bool:
		return strconv.FormatBool(bool(t))
	case Null:
		return "null"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v.Any())
	}
	return string(data)
}
