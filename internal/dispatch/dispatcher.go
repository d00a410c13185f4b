// Package dispatch executes single test steps: it resolves variable
// references, calls the browser driver, checks the result shape and binds
// the returned value to a variable.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/rahul/casepilot/internal/driver"
	"github.com/rahul/casepilot/internal/governance"
	"github.com/rahul/casepilot/internal/observability"
	"github.com/rahul/casepilot/internal/resolver"
	"github.com/rahul/casepilot/internal/validate"
	"github.com/rahul/casepilot/internal/variables"
)

// CaptureFunc stores a screenshot for a finished step.
type CaptureFunc func(ctx context.Context, executionID string, stepIndex int, stepName string) (*Screenshot, error)

// DriverCapture captures screenshots through the driver, naming them
// {execution_id}_step_{step_index}_{unix_timestamp}.
func DriverCapture(d driver.Driver) CaptureFunc {
	return func(ctx context.Context, executionID string, stepIndex int, stepName string) (*Screenshot, error) {
		now := time.Now()
		stem := fmt.Sprintf("%s_step_%d_%d", executionID, stepIndex, now.Unix())
		path, err := d.Screenshot(ctx, stem)
		if err != nil {
			return nil, err
		}
		return &Screenshot{
			Path:      path,
			Filename:  filepath.Base(path),
			Timestamp: now,
			StepIndex: stepIndex,
			StepName:  stepName,
		}, nil
	}
}

// Dispatcher runs steps against one variable store.
type Dispatcher struct {
	Vars    *variables.Store
	Driver  driver.Driver
	Capture CaptureFunc             // optional
	Policy  governance.PolicyEngine // optional
	Logger  *observability.Logger   // optional
}

func New(vars *variables.Store, drv driver.Driver) *Dispatcher {
	d := &Dispatcher{Vars: vars, Driver: drv}
	if drv != nil {
		d.Capture = DriverCapture(drv)
	}
	return d
}

// call carries one step through its handler.
type call struct {
	action      Action
	step        Step
	params      map[string]any
	details     map[string]any
	demand      string // query text handed to the result validator
	assigned    string // variable written by the handler itself
	executionID string
	stepIndex   int
}

// Dispatch runs step and always returns a result; failures are reported in
// the result, never as a panic or error.
func (d *Dispatcher) Dispatch(ctx context.Context, step Step, executionID string, stepIndex int) *Result {
	start := time.Now()
	res := &Result{
		StepIndex:        stepIndex,
		StepName:         step.Label(),
		Action:           step.Action,
		ExecutionDetails: map[string]any{},
	}

	params := resolver.ResolveParams(step.Params, d.Vars)
	if params == nil {
		params = map[string]any{}
	}
	res.AIDecision = map[string]any{"action": step.Action, "params": params}
	res.Confidence = confidence(params)

	value, err := d.execute(ctx, step, params, executionID, stepIndex, res)
	res.DurationMS = time.Since(start).Milliseconds()

	if err != nil {
		res.Success = false
		res.Error = err.Error()
		res.ReturnValue = nil
		res.AIDecision["error"] = err.Error()
		d.Logger.LogStep(executionID, stepIndex, step.Action, false, res.Error)
		return res
	}

	res.Success = true
	res.ReturnValue = value

	if d.Capture != nil {
		shot, err := d.Capture(ctx, executionID, stepIndex, res.StepName)
		if err != nil {
			log.Printf("[Dispatch] Warning: screenshot for step %d failed: %v", stepIndex, err)
		} else {
			res.Screenshot = shot
			d.Logger.LogScreenshot(executionID, stepIndex, shot.Path)
		}
	}

	d.Logger.LogStep(executionID, stepIndex, step.Action, true, "")
	return res
}

func (d *Dispatcher) execute(ctx context.Context, step Step, params map[string]any, executionID string, stepIndex int, res *Result) (variables.Value, error) {
	action, err := ParseAction(step.Action)
	if err != nil {
		return nil, err
	}

	if err := d.checkPolicy(ctx, action, params, executionID, stepIndex); err != nil {
		return nil, err
	}

	c := &call{
		action:      action,
		step:        step,
		params:      params,
		details:     res.ExecutionDetails,
		executionID: executionID,
		stepIndex:   stepIndex,
	}

	raw, err := d.handle(ctx, c)
	if err != nil {
		return nil, err
	}
	value, err := variables.FromAny(raw)
	if err != nil {
		return nil, fmt.Errorf("%s returned an unusable value: %w", action, err)
	}

	if check := validatorFor(action); check != nil {
		if ok, msg := check(value, c.demand); !ok {
			res.ValidationWarning = msg
		}
	}
	res.VariableAssigned = c.assigned

	if name := outputBinding(step.OutputVariable, params); name != "" && !variables.IsNull(value) {
		d.Vars.Store(name, value, variables.Metadata{
			StepIndex:   stepIndex,
			ExecutionID: executionID,
			Action:      string(action),
			Description: step.Label(),
		})
		res.VariableAssigned = name
		d.Logger.LogVariable(executionID, stepIndex, name, string(value.Kind()))
	}
	return value, nil
}

func (d *Dispatcher) checkPolicy(ctx context.Context, action Action, params map[string]any, executionID string, stepIndex int) error {
	if d.Policy == nil {
		return nil
	}
	req := governance.Request{
		Action:      string(action),
		Arguments:   canonicalJSON(params),
		ExecutionID: executionID,
	}
	if action == ActionGoto {
		req.URL = optionalString(params, "url", "")
	}
	verdict, err := d.Policy.Evaluate(ctx, req)
	if err != nil {
		return fmt.Errorf("policy evaluation: %w", err)
	}
	d.Logger.LogPolicyCheck(executionID, stepIndex, string(action), string(verdict.Effect), verdict.Reason)
	if verdict.Effect == governance.EffectDeny {
		return fmt.Errorf("%w: %s", ErrPolicyDenied, verdict.Reason)
	}
	return nil
}

func validatorFor(action Action) validate.Func {
	switch action {
	case ActionQuery:
		return validate.Structured
	case ActionString:
		return validate.String
	case ActionNumber:
		return validate.Number
	case ActionBoolean:
		return validate.Boolean
	}
	return nil
}
