package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rahul/casepilot/internal/casefile"
	"github.com/rahul/casepilot/internal/dispatch"
	"github.com/rahul/casepilot/internal/runner"
	"github.com/rahul/casepilot/internal/variables"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "data", "casepilot.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleCase(name string) *casefile.TestCase {
	return &casefile.TestCase{
		Name:        name,
		Description: "stores a token",
		Steps: []dispatch.Step{
			{Action: "set_variable", Params: map[string]any{"name": "token", "value": "abc"}},
			{Action: "get_variable", Params: map[string]any{"name": "token"}, OutputVariable: "copy"},
		},
	}
}

func TestTestCases(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveTestCase(ctx, sampleCase("login")); err != nil {
		t.Fatalf("SaveTestCase failed: %v", err)
	}
	updated := sampleCase("login")
	updated.Description = "updated"
	if err := s.SaveTestCase(ctx, updated); err != nil {
		t.Fatalf("SaveTestCase (update) failed: %v", err)
	}

	tc, err := s.GetTestCase(ctx, "login")
	if err != nil {
		t.Fatalf("GetTestCase failed: %v", err)
	}
	if tc.Description != "updated" || len(tc.Steps) != 2 || tc.Steps[1].OutputVariable != "copy" {
		t.Errorf("unexpected case %+v", tc)
	}

	list, err := s.ListTestCases(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].StepCount != 2 {
		t.Errorf("unexpected list %+v", list)
	}

	if err := s.DeleteTestCase(ctx, "login"); err != nil {
		t.Fatalf("DeleteTestCase failed: %v", err)
	}
	if _, err := s.GetTestCase(ctx, "login"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteTestCase(ctx, "login"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestRecordExecution(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := runner.New(nil)
	r.Recorder = s
	tc := sampleCase("tokens")
	tc.Steps = append(tc.Steps, dispatch.Step{Action: "get_variable", Params: map[string]any{"name": "missing"}})

	sum := r.Run(ctx, tc, runner.Options{})
	if sum.Success {
		t.Fatal("expected the run to fail on the missing variable")
	}

	execs, err := s.ListExecutions(ctx, "tokens", 0)
	if err != nil {
		t.Fatalf("ListExecutions failed: %v", err)
	}
	if len(execs) != 1 || execs[0].ID != sum.ExecutionID {
		t.Fatalf("unexpected executions %+v", execs)
	}
	if execs[0].Success || execs[0].TotalSteps != 3 || execs[0].FailedSteps != 1 || execs[0].Error == "" {
		t.Errorf("unexpected execution record %+v", execs[0])
	}

	detail, err := s.GetExecution(ctx, sum.ExecutionID)
	if err != nil {
		t.Fatalf("GetExecution failed: %v", err)
	}
	if len(detail.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(detail.Steps))
	}
	if detail.Steps[1].ReturnValue != `"abc"` || detail.Steps[1].VariableAssigned != "copy" {
		t.Errorf("unexpected step %+v", detail.Steps[1])
	}
	if detail.Steps[2].Success || detail.Steps[2].Error == "" {
		t.Errorf("expected failed last step, got %+v", detail.Steps[2])
	}
	if len(detail.Variables) != 2 || detail.Variables[0].Name != "copy" || detail.Variables[1].TypeTag != string(variables.KindString) {
		t.Errorf("unexpected variables %+v", detail.Variables)
	}

	if _, err := s.GetExecution(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if other, _ := s.ListExecutions(ctx, "other", 10); len(other) != 0 {
		t.Errorf("expected no executions for another case, got %d", len(other))
	}
}

func TestRecordExecution_CancelledRun(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := runner.New(nil)
	r.Recorder = s
	sum := r.Run(ctx, sampleCase("interrupted"), runner.Options{})
	if sum.Success || sum.TotalSteps != 1 {
		t.Fatalf("expected the run to stop at step 1, got %+v", sum)
	}

	detail, err := s.GetExecution(context.Background(), sum.ExecutionID)
	if err != nil {
		t.Fatalf("cancelled run was not recorded: %v", err)
	}
	if detail.Success || len(detail.Steps) != 1 || detail.Steps[0].Error == "" {
		t.Errorf("unexpected record %+v", detail)
	}
}

func TestSchedules(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	hourly, err := s.AddSchedule(ctx, "login", "chat-1", time.Hour, base)
	if err != nil {
		t.Fatalf("AddSchedule failed: %v", err)
	}
	if _, err := s.AddSchedule(ctx, "checkout", "", 0, base.Add(2*time.Hour)); err != nil {
		t.Fatal(err)
	}

	for _, bad := range []time.Duration{-time.Second, 500 * time.Millisecond, 1500 * time.Millisecond} {
		if _, err := s.AddSchedule(ctx, "login", "", bad, base); err == nil {
			t.Errorf("expected interval %s to be rejected", bad)
		}
	}

	due, err := s.DueSchedules(ctx, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("DueSchedules failed: %v", err)
	}
	if len(due) != 1 || due[0].ID != hourly.ID || due[0].Interval != time.Hour || due[0].ChatID != "chat-1" {
		t.Fatalf("unexpected due schedules %+v", due)
	}

	if err := s.MarkScheduleRun(ctx, hourly.ID, base.Add(time.Minute)); err != nil {
		t.Fatalf("MarkScheduleRun failed: %v", err)
	}
	due, _ = s.DueSchedules(ctx, base.Add(30*time.Minute))
	if len(due) != 0 {
		t.Errorf("schedule should have moved to its next slot, got %+v", due)
	}

	all, err := s.ListSchedules(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("unexpected schedules %+v (%v)", all, err)
	}
	if all[0].LastRunAt == nil || !all[0].NextRunAt.Equal(base.Add(61*time.Minute)) {
		t.Errorf("unexpected schedule state %+v", all[0])
	}

	if err := s.DeleteSchedule(ctx, hourly.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkScheduleRun(ctx, hourly.ID, base); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRebind(t *testing.T) {
	s := &Store{dialect: DialectPostgres}
	if got := s.rebind("SELECT a FROM t WHERE b = ? AND c = ?"); got != "SELECT a FROM t WHERE b = $1 AND c = $2" {
		t.Errorf("unexpected rebind %q", got)
	}
	s.dialect = DialectSQLite
	if got := s.rebind("x = ?"); got != "x = ?" {
		t.Errorf("sqlite queries should be unchanged, got %q", got)
	}
	if _, err := parseDialect("mysql"); err == nil {
		t.Error("expected unsupported driver error")
	}
}
