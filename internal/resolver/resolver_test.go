package resolver

import (
	"reflect"
	"testing"

	"github.com/rahul/casepilot/internal/variables"
)

func TestResolve_MissLeavesTextUnchanged(t *testing.T) {
	vars := variables.NewStore()

	for _, text := range []string{"hello ${x}", "hello {x}", "no refs", "{}", "json {\"a\": 1}"} {
		if got := Resolve(text, vars); got != text {
			t.Errorf("Resolve(%q) = %q, want unchanged", text, got)
		}
	}
}

func TestResolve_Hit(t *testing.T) {
	vars := variables.NewStore()
	vars.Store("city", variables.String("Paris"), variables.Metadata{})

	if got := Resolve("Go to ${city}", vars); got != "Go to Paris" {
		t.Errorf("expected 'Go to Paris', got %q", got)
	}
	if got := Resolve("Go to {city}", vars); got != "Go to Paris" {
		t.Errorf("expected 'Go to Paris', got %q", got)
	}
}

func TestResolve_NonStringValues(t *testing.T) {
	vars := variables.NewStore()
	vars.Store("n", variables.Number(42), variables.Metadata{})
	vars.Store("ok", variables.Bool(true), variables.Metadata{})
	vars.Store("user", variables.Object{"name": variables.String("bob")}, variables.Metadata{})

	tests := map[string]string{
		"{n}":              "42",
		"count=${n}":       "count=42",
		"flag {ok}":        "flag true",
		"user: ${user}":    `user: {"name":"bob"}`,
		"${n} and ${miss}": "42 and ${miss}",
	}
	for in, want := range tests {
		if got := Resolve(in, vars); got != want {
			t.Errorf("Resolve(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolve_NoRecursiveResolution(t *testing.T) {
	vars := variables.NewStore()
	vars.Store("a", variables.String("${b}"), variables.Metadata{})
	vars.Store("b", variables.String("deep"), variables.Metadata{})

	if got := Resolve("${a}", vars); got != "${b}" {
		t.Errorf("expected substituted text to stay literal, got %q", got)
	}
}

func TestResolveParams_Recursive(t *testing.T) {
	vars := variables.NewStore()
	vars.Store("x", variables.String("Y"), variables.Metadata{})

	params := map[string]any{
		"a":     map[string]any{"b": "${x}"},
		"list":  []any{"{x}", 3, true},
		"names": []string{"${x}", "z"},
		"n":     7,
	}
	got := ResolveParams(params, vars)
	want := map[string]any{
		"a":     map[string]any{"b": "Y"},
		"list":  []any{"Y", 3, true},
		"names": []string{"Y", "z"},
		"n":     7,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %#v, got %#v", want, got)
	}

	// The input is never mutated.
	if params["a"].(map[string]any)["b"] != "${x}" {
		t.Error("ResolveParams mutated its input")
	}
}

func TestResolveParams_Nil(t *testing.T) {
	if got := ResolveParams(nil, variables.NewStore()); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
