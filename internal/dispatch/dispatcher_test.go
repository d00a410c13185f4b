package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rahul/casepilot/internal/driver"
	"github.com/rahul/casepilot/internal/governance"
	"github.com/rahul/casepilot/internal/variables"
)

// fakeDriver records calls and returns canned values per method.
type fakeDriver struct {
	calls   []string
	lastArg string
	returns map[string]any
	errs    map[string]error
	timeout time.Duration
	scroll  driver.ScrollOptions
	shotErr error
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{returns: map[string]any{}, errs: map[string]error{}}
}

func (f *fakeDriver) result(method, arg string) (any, error) {
	f.calls = append(f.calls, method)
	f.lastArg = arg
	return f.returns[method], f.errs[method]
}

func (f *fakeDriver) Goto(ctx context.Context, url string) (any, error) {
	return f.result("goto", url)
}

func (f *fakeDriver) Input(ctx context.Context, text, locate string) (any, error) {
	return f.result("input", text+"|"+locate)
}

func (f *fakeDriver) Tap(ctx context.Context, prompt string) (any, error) {
	return f.result("tap", prompt)
}

func (f *fakeDriver) Query(ctx context.Context, demand string, opts map[string]any) (any, error) {
	return f.result("query", demand)
}

func (f *fakeDriver) String(ctx context.Context, query string, opts map[string]any) (any, error) {
	return f.result("string", query)
}

func (f *fakeDriver) Number(ctx context.Context, query string, opts map[string]any) (any, error) {
	return f.result("number", query)
}

func (f *fakeDriver) Boolean(ctx context.Context, query string, opts map[string]any) (any, error) {
	return f.result("boolean", query)
}

func (f *fakeDriver) Assert(ctx context.Context, prompt string) (any, error) {
	return f.result("assert", prompt)
}

func (f *fakeDriver) WaitFor(ctx context.Context, prompt string, timeout time.Duration) (any, error) {
	f.timeout = timeout
	return f.result("wait_for", prompt)
}

func (f *fakeDriver) Scroll(ctx context.Context, opts driver.ScrollOptions) (any, error) {
	f.scroll = opts
	return f.result("scroll", opts.Direction)
}

func (f *fakeDriver) Screenshot(ctx context.Context, stem string) (string, error) {
	if f.shotErr != nil {
		return "", f.shotErr
	}
	return "/tmp/shots/" + stem + ".png", nil
}

func newTestDispatcher() (*Dispatcher, *fakeDriver, *variables.Store) {
	drv := newFakeDriver()
	vars := variables.NewStore()
	return New(vars, drv), drv, vars
}

func TestDispatch_GotoCapturesScreenshot(t *testing.T) {
	d, drv, _ := newTestDispatcher()

	res := d.Dispatch(context.Background(), Step{
		Action: "goto",
		Params: map[string]any{"url": "https://example.com"},
	}, "exec1", 1)

	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	if drv.lastArg != "https://example.com" {
		t.Errorf("driver got %q", drv.lastArg)
	}
	if res.ExecutionDetails["url"] != "https://example.com" {
		t.Errorf("unexpected details: %v", res.ExecutionDetails)
	}
	if res.StepName != "goto" {
		t.Errorf("expected step name to default to the action, got %q", res.StepName)
	}
	if res.Screenshot == nil {
		t.Fatal("expected a screenshot")
	}
	if !strings.HasPrefix(res.Screenshot.Filename, "exec1_step_1_") {
		t.Errorf("unexpected screenshot filename %q", res.Screenshot.Filename)
	}
	if res.Screenshot.StepIndex != 1 || res.Screenshot.StepName != "goto" {
		t.Errorf("unexpected screenshot metadata: %+v", res.Screenshot)
	}
}

func TestDispatch_ScreenshotFailureIsNotFatal(t *testing.T) {
	d, drv, _ := newTestDispatcher()
	drv.shotErr = errors.New("browser gone")

	res := d.Dispatch(context.Background(), Step{Action: "ai_tap", Params: map[string]any{"prompt": "Login button"}}, "e", 1)
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	if res.Screenshot != nil {
		t.Errorf("expected nil screenshot, got %+v", res.Screenshot)
	}
}

func TestDispatch_ResolvesReferencesBeforeDriverCall(t *testing.T) {
	d, drv, vars := newTestDispatcher()
	vars.Store("city", variables.String("paris"), variables.Metadata{})

	res := d.Dispatch(context.Background(), Step{
		Action: "ai_input",
		Params: map[string]any{"text": "Weather in ${city}", "locate": "search box"},
	}, "e", 2)

	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	if drv.lastArg != "Weather in paris|search box" {
		t.Errorf("driver got %q", drv.lastArg)
	}
	params := res.AIDecision["params"].(map[string]any)
	if params["text"] != "Weather in paris" {
		t.Errorf("ai_decision should echo resolved params, got %v", params)
	}
}

func TestDispatch_InvalidParameters(t *testing.T) {
	tests := []struct {
		name string
		step Step
	}{
		{"goto missing url", Step{Action: "goto"}},
		{"goto blank url", Step{Action: "goto", Params: map[string]any{"url": "  "}}},
		{"input missing locate", Step{Action: "ai_input", Params: map[string]any{"text": "x"}}},
		{"query empty demand", Step{Action: "aiQuery", Params: map[string]any{"dataDemand": map[string]any{}}}},
		{"query bad options", Step{Action: "aiQuery", Params: map[string]any{"dataDemand": "items", "options": "fast"}}},
		{"wait bad timeout", Step{Action: "ai_wait_for", Params: map[string]any{"prompt": "x", "timeout": "soon"}}},
		{"set_variable missing name", Step{Action: "set_variable", Params: map[string]any{"value": 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, drv, _ := newTestDispatcher()
			res := d.Dispatch(context.Background(), tt.step, "e", 1)
			if res.Success {
				t.Fatal("expected failure")
			}
			if !strings.Contains(res.Error, ErrInvalidParameters.Error()) {
				t.Errorf("expected invalid parameters error, got %q", res.Error)
			}
			if res.ReturnValue != nil {
				t.Errorf("expected nil return value, got %v", res.ReturnValue)
			}
			if res.AIDecision["error"] == nil || res.AIDecision["action"] != tt.step.Action {
				t.Errorf("ai_decision should carry action and error: %v", res.AIDecision)
			}
			if len(drv.calls) != 0 {
				t.Errorf("driver should not be called, got %v", drv.calls)
			}
			if res.Screenshot != nil {
				t.Error("failed steps do not capture screenshots")
			}
		})
	}
}

func TestDispatch_UnsupportedAction(t *testing.T) {
	d, _, _ := newTestDispatcher()
	res := d.Dispatch(context.Background(), Step{Action: "ai_hover"}, "e", 1)
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, ErrUnsupportedAction.Error()) {
		t.Errorf("expected unsupported action error, got %q", res.Error)
	}
}

func TestDispatch_OutputBindingPriority(t *testing.T) {
	d, drv, vars := newTestDispatcher()
	drv.returns["string"] = "Alice"

	res := d.Dispatch(context.Background(), Step{
		Action:         "aiString",
		Params:         map[string]any{"query": "user name", "store_as": "b"},
		OutputVariable: "a",
	}, "e", 1)

	if res.VariableAssigned != "a" {
		t.Errorf("expected binding to 'a', got %q", res.VariableAssigned)
	}
	if _, err := vars.Get("a"); err != nil {
		t.Errorf("expected variable a: %v", err)
	}
	if _, err := vars.Get("b"); !errors.Is(err, variables.ErrNotFound) {
		t.Errorf("alias should be ignored when output_variable is set, got %v", err)
	}
}

func TestDispatch_AliasOrder(t *testing.T) {
	d, drv, vars := newTestDispatcher()
	drv.returns["number"] = 3

	res := d.Dispatch(context.Background(), Step{
		Action: "aiNumber",
		Params: map[string]any{"query": "count", "var_name": "last", "save_to": "first"},
	}, "e", 4)

	if res.VariableAssigned != "first" {
		t.Errorf("expected save_to to win over var_name, got %q", res.VariableAssigned)
	}
	rec, err := vars.Info("first")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Value != variables.Number(3) {
		t.Errorf("unexpected value %v", rec.Value)
	}
	if rec.Metadata.StepIndex != 4 || rec.Metadata.ExecutionID != "e" || rec.Metadata.Action != "aiNumber" {
		t.Errorf("unexpected metadata %+v", rec.Metadata)
	}
}

func TestDispatch_NullReturnIsNotBound(t *testing.T) {
	d, _, vars := newTestDispatcher()
	res := d.Dispatch(context.Background(), Step{
		Action:         "ai_tap",
		Params:         map[string]any{"prompt": "Submit"},
		OutputVariable: "clicked",
	}, "e", 1)

	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	if res.VariableAssigned != "" {
		t.Errorf("expected no binding, got %q", res.VariableAssigned)
	}
	if vars.Len() != 0 {
		t.Errorf("expected empty store, got %v", vars.List())
	}
}

func TestDispatch_ValidationWarningIsNonFatal(t *testing.T) {
	d, drv, _ := newTestDispatcher()
	drv.returns["number"] = "twelve"

	res := d.Dispatch(context.Background(), Step{Action: "aiNumber", Params: map[string]any{"query": "items in cart"}}, "e", 1)
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	if res.ValidationWarning == "" {
		t.Error("expected a validation warning")
	}
	if res.ReturnValue != variables.String("twelve") {
		t.Errorf("expected raw return value, got %v", res.ReturnValue)
	}
}

func TestDispatch_QueryValidation(t *testing.T) {
	d, drv, _ := newTestDispatcher()
	drv.returns["query"] = []any{}

	res := d.Dispatch(context.Background(), Step{Action: "aiQuery", Params: map[string]any{"dataDemand": "{name: string}[]"}}, "e", 1)
	if !res.Success || res.ValidationWarning == "" {
		t.Errorf("expected success with warning, got success=%v warning=%q", res.Success, res.ValidationWarning)
	}
	if drv.lastArg != "{name: string}[]" {
		t.Errorf("demand should pass through unresolved, got %q", drv.lastArg)
	}
}

func TestDispatch_SetAndGetVariable(t *testing.T) {
	d, drv, vars := newTestDispatcher()

	res := d.Dispatch(context.Background(), Step{
		Action: "set_variable",
		Params: map[string]any{"name": "user", "value": map[string]any{"id": 7}},
	}, "e", 1)
	if !res.Success {
		t.Fatalf("set_variable failed: %s", res.Error)
	}
	if res.VariableAssigned != "user" {
		t.Errorf("expected variable_assigned=user, got %q", res.VariableAssigned)
	}

	res = d.Dispatch(context.Background(), Step{
		Action:         "get_variable",
		Params:         map[string]any{"name": "user"},
		OutputVariable: "copy",
	}, "e", 2)
	if !res.Success {
		t.Fatalf("get_variable failed: %s", res.Error)
	}
	copied, err := vars.Get("copy")
	if err != nil {
		t.Fatal(err)
	}
	if variables.Text(copied) != `{"id":7}` {
		t.Errorf("unexpected copy %s", variables.Text(copied))
	}
	if len(drv.calls) != 0 {
		t.Errorf("variable steps must not reach the driver: %v", drv.calls)
	}
}

func TestDispatch_GetMissingVariable(t *testing.T) {
	d, _, _ := newTestDispatcher()
	res := d.Dispatch(context.Background(), Step{Action: "get_variable", Params: map[string]any{"name": "ghost"}}, "e", 1)
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, variables.ErrNotFound.Error()) {
		t.Errorf("expected not found error, got %q", res.Error)
	}
}

func TestDispatch_DriverError(t *testing.T) {
	d, drv, _ := newTestDispatcher()
	drv.errs["assert"] = errors.New("assertion failed: cart is empty")

	res := d.Dispatch(context.Background(), Step{Action: "ai_assert", Params: map[string]any{"prompt": "cart has items"}}, "e", 3)
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error != "assertion failed: cart is empty" {
		t.Errorf("unexpected error %q", res.Error)
	}
	if res.StepIndex != 3 {
		t.Errorf("expected step index 3, got %d", res.StepIndex)
	}
}

func TestDispatch_WaitForTimeout(t *testing.T) {
	d, drv, _ := newTestDispatcher()

	d.Dispatch(context.Background(), Step{Action: "ai_wait_for", Params: map[string]any{"prompt": "spinner gone"}}, "e", 1)
	if drv.timeout != 10*time.Second {
		t.Errorf("expected default timeout 10s, got %v", drv.timeout)
	}

	d.Dispatch(context.Background(), Step{Action: "ai_wait_for", Params: map[string]any{"prompt": "spinner gone", "timeout": 2500}}, "e", 2)
	if drv.timeout != 2500*time.Millisecond {
		t.Errorf("expected 2.5s, got %v", drv.timeout)
	}
}

func TestDispatch_ScrollDefaults(t *testing.T) {
	d, drv, _ := newTestDispatcher()
	res := d.Dispatch(context.Background(), Step{Action: "ai_scroll"}, "e", 1)
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	if drv.scroll.Direction != "down" || drv.scroll.ScrollType != "once" || drv.scroll.LocatePrompt != "" {
		t.Errorf("unexpected scroll options %+v", drv.scroll)
	}
}

func TestDispatch_Confidence(t *testing.T) {
	d, _, _ := newTestDispatcher()
	step := Step{Action: "goto", Params: map[string]any{"url": "https://example.com"}}

	first := d.Dispatch(context.Background(), step, "e", 1)
	second := d.Dispatch(context.Background(), step, "other", 9)
	if first.Confidence < 0.85 || first.Confidence >= 1.0 {
		t.Errorf("confidence out of range: %v", first.Confidence)
	}
	if first.Confidence != second.Confidence {
		t.Errorf("confidence should depend only on params: %v vs %v", first.Confidence, second.Confidence)
	}
}

func TestDispatch_PolicyDenied(t *testing.T) {
	d, drv, _ := newTestDispatcher()
	policy := governance.NewDefaultPolicyEngine()
	if err := policy.DenyArguments(`file://`); err != nil {
		t.Fatal(err)
	}
	d.Policy = policy

	res := d.Dispatch(context.Background(), Step{Action: "goto", Params: map[string]any{"url": "file:///etc/passwd"}}, "e", 1)
	if res.Success {
		t.Fatal("expected policy denial")
	}
	if !strings.Contains(res.Error, ErrPolicyDenied.Error()) {
		t.Errorf("unexpected error %q", res.Error)
	}
	if len(drv.calls) != 0 {
		t.Errorf("driver should not be called, got %v", drv.calls)
	}
}

func TestDispatch_NoDriver(t *testing.T) {
	d := New(variables.NewStore(), nil)

	res := d.Dispatch(context.Background(), Step{Action: "goto", Params: map[string]any{"url": "https://example.com"}}, "e", 1)
	if res.Success || !strings.Contains(res.Error, ErrNoDriver.Error()) {
		t.Errorf("expected no-driver failure, got success=%v error=%q", res.Success, res.Error)
	}

	res = d.Dispatch(context.Background(), Step{Action: "set_variable", Params: map[string]any{"name": "x", "value": "y"}}, "e", 2)
	if !res.Success {
		t.Errorf("variable steps work without a driver, got %q", res.Error)
	}
}

func TestParseAction(t *testing.T) {
	for _, a := range Actions() {
		got, err := ParseAction(string(a))
		if err != nil || got != a {
			t.Errorf("ParseAction(%q) = %q, %v", a, got, err)
		}
	}
	if _, err := ParseAction("aiquery"); !errors.Is(err, ErrUnsupportedAction) {
		t.Errorf("expected ErrUnsupportedAction, got %v", err)
	}
}
