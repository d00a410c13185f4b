// Package casefile loads test cases from YAML or JSON documents.
package casefile

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rahul/casepilot/internal/dispatch"
	"gopkg.in/yaml.v3"
)

// TestCase is an ordered list of steps that make up one scenario.
type TestCase struct {
	Name        string `json:"name" yaml:"name" jsonschema:"minLength=1"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// ClearVariablesBeforeExecution defaults to true.
	ClearVariablesBeforeExecution *bool           `json:"clear_variables_before_execution,omitempty" yaml:"clear_variables_before_execution,omitempty"`
	Steps                         []dispatch.Step `json:"steps" yaml:"steps" jsonschema:"minItems=1"`
}

// ClearVariables reports whether the variable store is emptied before a run.
func (tc *TestCase) ClearVariables() bool {
	if tc.ClearVariablesBeforeExecution == nil {
		return true
	}
	return *tc.ClearVariablesBeforeExecution
}

// ValidationError is one problem found in a test case document.
type ValidationError struct {
	Phase   string `json:"phase"` // "syntax", "schema", "semantic"
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %s", e.Phase, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// ErrInvalidCase wraps every validation failure returned by Parse.
var ErrInvalidCase = errors.New("invalid test case")

// LoadFile reads and validates a test case from path.
func LoadFile(path string) (*TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read test case: %w", err)
	}
	tc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tc, nil
}

// Parse validates data and decodes it. JSON documents are accepted because
// they are valid YAML.
func Parse(data []byte) (*TestCase, error) {
	if errs := Validate(data); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidCase, strings.Join(msgs, "; "))
	}

	var tc TestCase
	if err := yaml.Unmarshal(data, &tc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCase, err)
	}
	return &tc, nil
}

// Validate runs the schema and semantic checks and returns every problem.
func Validate(data []byte) []*ValidationError {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return []*ValidationError{{Phase: "syntax", Message: err.Error()}}
	}
	if doc == nil {
		return []*ValidationError{{Phase: "syntax", Message: "document is empty"}}
	}

	if errs := validateSchema(doc); len(errs) > 0 {
		return errs
	}

	var tc TestCase
	if err := yaml.Unmarshal(data, &tc); err != nil {
		return []*ValidationError{{Phase: "syntax", Message: err.Error()}}
	}
	return validateSemantics(&tc)
}

func validateSemantics(tc *TestCase) []*ValidationError {
	var errs []*ValidationError
	if strings.TrimSpace(tc.Name) == "" {
		errs = append(errs, &ValidationError{Phase: "semantic", Path: "name", Message: "name must not be blank"})
	}
	if len(tc.Steps) == 0 {
		errs = append(errs, &ValidationError{Phase: "semantic", Path: "steps", Message: "test case has no steps"})
	}
	for i, step := range tc.Steps {
		if _, err := dispatch.ParseAction(step.Action); err != nil {
			errs = append(errs, &ValidationError{
				Phase:   "semantic",
				Path:    fmt.Sprintf("steps/%d/action", i),
				Message: err.Error(),
			})
		}
	}
	return errs
}

// Marshal renders tc as YAML.
func Marshal(tc *TestCase) ([]byte, error) {
	return yaml.Marshal(tc)
}
