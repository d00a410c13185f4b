package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rahul/casepilot/internal/casefile"
	"github.com/rahul/casepilot/internal/dispatch"
	"github.com/rahul/casepilot/internal/runner"
	"github.com/rahul/casepilot/internal/store"
	"github.com/rahul/casepilot/pkg/config"
)

const sampleCase = `name: sample
steps:
  - action: set_variable
    params: {name: n, value: 1}
`

func TestPrintValidation(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := printValidation(&out, &errOut, []byte(sampleCase)); err != nil {
		t.Fatalf("expected valid case, got %v", err)
	}
	if !strings.Contains(out.String(), "sample is valid (1 steps)") {
		t.Errorf("unexpected output %q", out.String())
	}

	out.Reset()
	err := printValidation(&out, &errOut, []byte("name: broken\nsteps: []\n"))
	if !errors.Is(err, casefile.ErrInvalidCase) {
		t.Fatalf("expected ErrInvalidCase, got %v", err)
	}
	if !strings.Contains(errOut.String(), "Validation failed") {
		t.Errorf("expected a failure listing, got %q", errOut.String())
	}
}

func TestResolveCase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st, err := store.Open(ctx, "sqlite", filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	path := filepath.Join(dir, "sample.yaml")
	if err := os.WriteFile(path, []byte(sampleCase), 0644); err != nil {
		t.Fatal(err)
	}

	tc, fromFile, err := resolveCase(ctx, st, path)
	if err != nil || !fromFile || tc.Name != "sample" {
		t.Fatalf("file lookup: %v %v %+v", err, fromFile, tc)
	}

	if err := st.SaveTestCase(ctx, tc); err != nil {
		t.Fatal(err)
	}
	tc, fromFile, err = resolveCase(ctx, st, "sample")
	if err != nil || fromFile || len(tc.Steps) != 1 {
		t.Fatalf("stored lookup: %v %v %+v", err, fromFile, tc)
	}

	if _, _, err := resolveCase(ctx, st, "nothing"); err == nil || !strings.Contains(err.Error(), "neither a file") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestReportOf(t *testing.T) {
	s := runner.New(nil).Run(context.Background(), &casefile.TestCase{Name: "report", Steps: []dispatch.Step{
		{Action: "set_variable", Params: map[string]any{"name": "n", "value": 1}},
		{Action: "get_variable", Params: map[string]any{"name": "missing"}},
	}}, runner.Options{})

	r := reportOf(s)
	if r.Passed || len(r.Rows) != 2 {
		t.Fatalf("unexpected report %+v", r)
	}
	if !r.Rows[0].Success || r.Rows[1].Success {
		t.Errorf("unexpected row status %+v", r.Rows)
	}
	if r.Rows[1].Note == "" {
		t.Error("failed row should carry the error")
	}
	if !strings.Contains(r.Footer, s.ExecutionID) {
		t.Errorf("footer should name the execution: %q", r.Footer)
	}
}

func TestNewPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.Policy.DenyActions = []string{"ai_tap"}
	gov, err := newPolicy(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !gov.DeniedActions["ai_tap"] || len(gov.DeniedRegex) != 2 {
		t.Errorf("unexpected policy %+v", gov)
	}

	cfg.Policy.DenyPatterns = []string{"("}
	if _, err := newPolicy(cfg); err == nil {
		t.Error("expected an error for a bad pattern")
	}
}

func TestNewLimiter(t *testing.T) {
	cfg := config.Default()
	if l := newLimiter(cfg); l == nil || l.Burst() != 5 {
		t.Errorf("unexpected limiter %+v", l)
	}
	cfg.LLMRateLimit.RequestsPerMinute = 0
	if newLimiter(cfg) != nil {
		t.Error("zero rate should disable the limiter")
	}
}
