package dispatch

import (
	"time"

	"github.com/rahul/casepilot/internal/variables"
)

// Step is one action of a test case as written by its author.
type Step struct {
	Action         string         `json:"action" yaml:"action" jsonschema:"enum=goto,enum=ai_input,enum=ai_tap,enum=aiQuery,enum=aiString,enum=aiNumber,enum=aiBoolean,enum=ai_assert,enum=ai_wait_for,enum=ai_scroll,enum=set_variable,enum=get_variable"`
	Params         map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	OutputVariable string         `json:"output_variable,omitempty" yaml:"output_variable,omitempty"`
	Description    string         `json:"description,omitempty" yaml:"description,omitempty"`
}

// Label is the human name of the step.
func (s Step) Label() string {
	if s.Description != "" {
		return s.Description
	}
	return s.Action
}

// Screenshot describes an image captured after a step.
type Screenshot struct {
	Path      string    `json:"path"`
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	StepIndex int       `json:"step_index"`
	StepName  string    `json:"step_name"`
}

// Result is the outcome of dispatching one step.
type Result struct {
	StepIndex         int             `json:"step_index"`
	StepName          string          `json:"step_name"`
	Action            string          `json:"action"`
	Success           bool            `json:"success"`
	AIDecision        map[string]any  `json:"ai_decision"`
	Confidence        float64         `json:"confidence"`
	ExecutionDetails  map[string]any  `json:"execution_details"`
	ReturnValue       variables.Value `json:"return_value"`
	VariableAssigned  string          `json:"variable_assigned,omitempty"`
	ValidationWarning string          `json:"validation_warning,omitempty"`
	Screenshot        *Screenshot     `json:"screenshot"`
	Error             string          `json:"error,omitempty"`
	DurationMS        int64           `json:"duration_ms"`
}
