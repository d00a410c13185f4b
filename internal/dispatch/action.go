package dispatch

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrUnsupportedAction = errors.New("unsupported action")
	ErrPolicyDenied      = errors.New("denied by policy")
	ErrNoDriver          = errors.New("no browser driver configured")
)

// Action is one of the fixed set of step kinds.
type Action string

const (
	ActionGoto        Action = "goto"
	ActionInput       Action = "ai_input"
	ActionTap         Action = "ai_tap"
	ActionQuery       Action = "aiQuery"
	ActionString      Action = "aiString"
	ActionNumber      Action = "aiNumber"
	ActionBoolean     Action = "aiBoolean"
	ActionAssert      Action = "ai_assert"
	ActionWaitFor     Action = "ai_wait_for"
	ActionScroll      Action = "ai_scroll"
	ActionSetVariable Action = "set_variable"
	ActionGetVariable Action = "get_variable"
)

var allActions = []Action{
	ActionGoto,
	ActionInput,
	ActionTap,
	ActionQuery,
	ActionString,
	ActionNumber,
	ActionBoolean,
	ActionAssert,
	ActionWaitFor,
	ActionScroll,
	ActionSetVariable,
	ActionGetVariable,
}

// Actions lists every supported action.
func Actions() []Action {
	return slices.Clone(allActions)
}

func ParseAction(name string) (Action, error) {
	a := Action(name)
	if slices.Contains(allActions, a) {
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedAction, name)
}

// IsQuery reports whether the action returns a value that is shape-checked.
func (a Action) IsQuery() bool {
	switch a {
	case ActionQuery, ActionString, ActionNumber, ActionBoolean:
		return true
	}
	return false
}

// UsesDriver reports whether the action reaches the browser driver.
func (a Action) UsesDriver() bool {
	return a != ActionSetVariable && a != ActionGetVariable
}
