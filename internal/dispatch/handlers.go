package dispatch

import (
	"context"
	"fmt"

	"github.com/rahul/casepilot/internal/driver"
	"github.com/rahul/casepilot/internal/variables"
)

// handle runs the handler for c.action and returns the raw value it produced.
func (d *Dispatcher) handle(ctx context.Context, c *call) (any, error) {
	if c.action.UsesDriver() && d.Driver == nil {
		return nil, fmt.Errorf("%s: %w", c.action, ErrNoDriver)
	}

	switch c.action {
	case ActionGoto:
		return d.gotoURL(ctx, c)
	case ActionInput:
		return d.input(ctx, c)
	case ActionTap:
		return d.tap(ctx, c)
	case ActionQuery:
		return d.query(ctx, c)
	case ActionString, ActionNumber, ActionBoolean:
		return d.typedQuery(ctx, c)
	case ActionAssert:
		return d.assert(ctx, c)
	case ActionWaitFor:
		return d.waitFor(ctx, c)
	case ActionScroll:
		return d.scroll(ctx, c)
	case ActionSetVariable:
		return d.setVariable(c)
	case ActionGetVariable:
		return d.getVariable(c)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, c.action)
}

func (d *Dispatcher) gotoURL(ctx context.Context, c *call) (any, error) {
	url, err := requireString(c.action, c.params, "url")
	if err != nil {
		return nil, err
	}
	c.details["url"] = url
	return d.Driver.Goto(ctx, url)
}

func (d *Dispatcher) input(ctx context.Context, c *call) (any, error) {
	text, err := requireString(c.action, c.params, "text")
	if err != nil {
		return nil, err
	}
	locate, err := requireString(c.action, c.params, "locate")
	if err != nil {
		return nil, err
	}
	c.details["text"] = text
	c.details["locate"] = locate
	return d.Driver.Input(ctx, text, locate)
}

func (d *Dispatcher) tap(ctx context.Context, c *call) (any, error) {
	prompt, err := requireString(c.action, c.params, "prompt")
	if err != nil {
		return nil, err
	}
	c.details["prompt"] = prompt
	return d.Driver.Tap(ctx, prompt)
}

func (d *Dispatcher) query(ctx context.Context, c *call) (any, error) {
	demand, err := requireString(c.action, c.params, "dataDemand")
	if err != nil {
		return nil, err
	}
	opts, err := optionalMap(c.action, c.params, "options")
	if err != nil {
		return nil, err
	}
	c.demand = demand
	c.details["dataDemand"] = demand
	if opts != nil {
		c.details["options"] = opts
	}
	return d.Driver.Query(ctx, demand, opts)
}

func (d *Dispatcher) typedQuery(ctx context.Context, c *call) (any, error) {
	query, err := requireString(c.action, c.params, "query")
	if err != nil {
		return nil, err
	}
	opts, err := optionalMap(c.action, c.params, "options")
	if err != nil {
		return nil, err
	}
	c.demand = query
	c.details["query"] = query
	if opts != nil {
		c.details["options"] = opts
	}

	switch c.action {
	case ActionString:
		return d.Driver.String(ctx, query, opts)
	case ActionNumber:
		return d.Driver.Number(ctx, query, opts)
	default:
		return d.Driver.Boolean(ctx, query, opts)
	}
}

func (d *Dispatcher) assert(ctx context.Context, c *call) (any, error) {
	prompt, err := requireString(c.action, c.params, "prompt")
	if err != nil {
		return nil, err
	}
	c.details["prompt"] = prompt
	return d.Driver.Assert(ctx, prompt)
}

func (d *Dispatcher) waitFor(ctx context.Context, c *call) (any, error) {
	prompt, err := requireString(c.action, c.params, "prompt")
	if err != nil {
		return nil, err
	}
	timeout, err := optionalMillis(c.action, c.params, "timeout", defaultWaitTimeout)
	if err != nil {
		return nil, err
	}
	c.details["prompt"] = prompt
	c.details["timeout"] = timeout.Milliseconds()
	return d.Driver.WaitFor(ctx, prompt, timeout)
}

func (d *Dispatcher) scroll(ctx context.Context, c *call) (any, error) {
	opts := driver.ScrollOptions{
		Direction:    optionalString(c.params, "direction", "down"),
		ScrollType:   optionalString(c.params, "scroll_type", "once"),
		LocatePrompt: optionalString(c.params, "locate_prompt", ""),
	}
	c.details["direction"] = opts.Direction
	c.details["scroll_type"] = opts.ScrollType
	if opts.LocatePrompt != "" {
		c.details["locate_prompt"] = opts.LocatePrompt
	}
	return d.Driver.Scroll(ctx, opts)
}

func (d *Dispatcher) setVariable(c *call) (any, error) {
	name, err := requireString(c.action, c.params, "name")
	if err != nil {
		return nil, err
	}
	value, err := variables.FromAny(c.params["value"])
	if err != nil {
		return nil, fmt.Errorf("%w: set_variable value: %v", ErrInvalidParameters, err)
	}
	d.Vars.Store(name, value, variables.Metadata{
		StepIndex:   c.stepIndex,
		ExecutionID: c.executionID,
		Action:      string(c.action),
		Description: c.step.Label(),
	})
	c.assigned = name
	c.details["name"] = name
	c.details["value"] = value.Any()
	return value, nil
}

func (d *Dispatcher) getVariable(c *call) (any, error) {
	name, err := requireString(c.action, c.params, "name")
	if err != nil {
		return nil, err
	}
	value, err := d.Vars.Get(name)
	if err != nil {
		return nil, err
	}
	c.details["name"] = name
	return value, nil
}
