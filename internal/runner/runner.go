// Package runner executes whole test cases step by step, stopping at the
// first failed step.
package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/rahul/casepilot/internal/casefile"
	"github.com/rahul/casepilot/internal/dispatch"
	"github.com/rahul/casepilot/internal/driver"
	"github.com/rahul/casepilot/internal/governance"
	"github.com/rahul/casepilot/internal/observability"
	"github.com/rahul/casepilot/internal/variables"
)

// recordTimeout bounds how long a finished run may take to persist.
const recordTimeout = 10 * time.Second

// Summary is the outcome of one run.
type Summary struct {
	ExecutionID     string             `json:"execution_id"`
	TestCaseName    string             `json:"test_case_name"`
	TotalSteps      int                `json:"total_steps"`
	SuccessfulSteps int                `json:"successful_steps"`
	FailedSteps     int                `json:"failed_steps"`
	Success         bool               `json:"success"`
	Steps           []*dispatch.Result `json:"steps"`
	Variables       variables.Snapshot `json:"variables"`
	ExecutionTime   float64            `json:"execution_time"` // seconds
	StartedAt       time.Time          `json:"started_at"`
	FinishedAt      time.Time          `json:"finished_at"`
}

// FailedStep returns the step that stopped the run, or nil.
func (s *Summary) FailedStep() *dispatch.Result {
	for _, r := range s.Steps {
		if !r.Success {
			return r
		}
	}
	return nil
}

// Recorder persists finished runs.
type Recorder interface {
	RecordExecution(ctx context.Context, tc *casefile.TestCase, s *Summary) error
}

// Options tune a single run.
type Options struct {
	// Vars is the store the run reads and writes. A fresh store is used
	// when nil.
	Vars *variables.Store
	// ClearVariables overrides the case's clear_variables_before_execution.
	ClearVariables *bool
}

// Runner drives the dispatcher over a test case.
type Runner struct {
	Driver   driver.Driver
	Capture  dispatch.CaptureFunc    // optional, defaults to driver screenshots
	Policy   governance.PolicyEngine // optional
	Logger   *observability.Logger   // optional
	Recorder Recorder                // optional

	newID func() string
}

func New(drv driver.Driver) *Runner {
	return &Runner{Driver: drv}
}

// Run executes tc and returns its summary. Failures are reported inside the
// summary; Run itself does not fail.
func (r *Runner) Run(ctx context.Context, tc *casefile.TestCase, opts Options) *Summary {
	vars := opts.Vars
	if vars == nil {
		vars = variables.NewStore()
	}
	reset := tc.ClearVariables()
	if opts.ClearVariables != nil {
		reset = *opts.ClearVariables
	}
	if reset {
		vars.Clear()
	}

	execID := r.executionID()
	summary := &Summary{
		ExecutionID:  execID,
		TestCaseName: tc.Name,
		Steps:        make([]*dispatch.Result, 0, len(tc.Steps)),
		StartedAt:    time.Now(),
	}
	vars.SetContext("execution_id", execID)
	vars.SetContext("test_case", tc.Name)

	d := dispatch.New(vars, r.Driver)
	if r.Capture != nil {
		d.Capture = r.Capture
	}
	d.Policy = r.Policy
	d.Logger = r.Logger

	r.Logger.LogRunStart(execID, tc.Name, len(tc.Steps))
	observability.SetStatus(observability.RoleRunning, tc.Name)
	defer observability.SetStatus(observability.RoleIdle, "")

	for i, step := range tc.Steps {
		idx := i + 1
		observability.SetProgress(idx, len(tc.Steps))

		var res *dispatch.Result
		if err := ctx.Err(); err != nil {
			res = failedStep(step, idx, fmt.Errorf("run cancelled: %w", err))
		} else {
			res = dispatchSafe(ctx, d, step, execID, idx)
		}

		summary.Steps = append(summary.Steps, res)
		if !res.Success {
			summary.FailedSteps++
			log.Printf("[Runner] %s stopped at step %d (%s): %s", tc.Name, idx, res.StepName, res.Error)
			break
		}
		summary.SuccessfulSteps++
	}

	summary.TotalSteps = len(summary.Steps)
	summary.Success = summary.FailedSteps == 0 && summary.TotalSteps == len(tc.Steps)
	summary.Variables = vars.Export()
	summary.FinishedAt = time.Now()
	summary.ExecutionTime = summary.FinishedAt.Sub(summary.StartedAt).Seconds()

	observability.RecordRun(summary.Success)
	r.Logger.LogRunComplete(execID, summary.Success, summary.TotalSteps, summary.FailedSteps, summary.FinishedAt.Sub(summary.StartedAt))

	if r.Recorder != nil {
		// A cancelled run is still recorded, with its stopping step.
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		defer cancel()
		if err := r.Recorder.RecordExecution(recCtx, tc, summary); err != nil {
			log.Printf("[Runner] Warning: could not record execution %s: %v", execID, err)
		}
	}
	return summary
}

func (r *Runner) executionID() string {
	if r.newID != nil {
		return r.newID()
	}
	return uuid.NewString()
}

// dispatchSafe turns a panic in the dispatcher or driver into a failed step.
func dispatchSafe(ctx context.Context, d *dispatch.Dispatcher, step dispatch.Step, execID string, idx int) (res *dispatch.Result) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("[Runner] Recovered panic in step %d: %v", idx, p)
			res = failedStep(step, idx, fmt.Errorf("unexpected error: %v", p))
		}
	}()
	return d.Dispatch(ctx, step, execID, idx)
}

func failedStep(step dispatch.Step, idx int, err error) *dispatch.Result {
	return &dispatch.Result{
		StepIndex: idx,
		StepName:  step.Label(),
		Action:    step.Action,
		Success:   false,
		AIDecision: map[string]any{
			"action": step.Action,
			"params": step.Params,
			"error":  err.Error(),
		},
		ExecutionDetails: map[string]any{},
		Error:            err.Error(),
	}
}
