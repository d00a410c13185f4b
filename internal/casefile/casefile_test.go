package casefile

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const loginCase = `
name: login flow
description: signs in and reads the greeting
steps:
  - action: goto
    params:
      url: https://example.com/login
  - action: set_variable
    params:
      name: user
      value: alice
  - action: ai_input
    params:
      text: ${user}
      locate: username field
  - action: aiString
    description: read greeting
    output_variable: greeting
    params:
      query: the greeting shown in the header
`

func TestParse_YAML(t *testing.T) {
	tc, err := Parse([]byte(loginCase))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if tc.Name != "login flow" {
		t.Errorf("unexpected name %q", tc.Name)
	}
	if len(tc.Steps) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(tc.Steps))
	}
	if tc.Steps[2].Params["text"] != "${user}" {
		t.Errorf("params should be kept verbatim, got %v", tc.Steps[2].Params)
	}
	if tc.Steps[3].OutputVariable != "greeting" || tc.Steps[3].Label() != "read greeting" {
		t.Errorf("unexpected step %+v", tc.Steps[3])
	}
	if !tc.ClearVariables() {
		t.Error("clear_variables_before_execution should default to true")
	}
}

func TestParse_JSON(t *testing.T) {
	doc := `{"name": "json case", "clear_variables_before_execution": false,
		"steps": [{"action": "aiNumber", "params": {"query": "price", "store_as": "price"}}]}`
	tc, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if tc.ClearVariables() {
		t.Error("expected clear_variables_before_execution=false")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"syntax", "name: [unclosed", "syntax"},
		{"empty", "", "syntax"},
		{"missing steps", "name: x", "schema"},
		{"no steps", "name: x\nsteps: []", "schema"},
		{"unknown action", "name: x\nsteps:\n  - action: ai_hover", "schema"},
		{"unknown field", "name: x\nsteps:\n  - action: goto\n    retries: 3", "schema"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate([]byte(tt.doc))
			if len(errs) == 0 {
				t.Fatal("expected validation errors")
			}
			if errs[0].Phase != tt.want {
				t.Errorf("expected phase %q, got %v", tt.want, errs[0])
			}
		})
	}

	if _, err := Parse([]byte("name: x")); !errors.Is(err, ErrInvalidCase) {
		t.Errorf("expected ErrInvalidCase, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "login.yaml")
	if err := os.WriteFile(path, []byte(loginCase), 0644); err != nil {
		t.Fatal(err)
	}

	tc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if tc.Name != "login flow" {
		t.Errorf("unexpected name %q", tc.Name)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	tc, err := Parse([]byte(loginCase))
	if err != nil {
		t.Fatal(err)
	}
	data, err := Marshal(tc)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	again, err := Parse(data)
	if err != nil {
		t.Fatalf("re-Parse failed: %v\n%s", err, data)
	}
	if len(again.Steps) != len(tc.Steps) {
		t.Errorf("expected %d steps, got %d", len(tc.Steps), len(again.Steps))
	}
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	if err != nil {
		t.Fatalf("Schema failed: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if !strings.Contains(string(data), "ai_wait_for") {
		t.Error("schema should enumerate actions")
	}
}
