package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rahul/casepilot/internal/casefile"
	"github.com/rahul/casepilot/internal/runner"
	"github.com/rahul/casepilot/internal/store"
)

// Messenger defines the interface for communication gateways (Telegram, Discord, etc.)
type Messenger interface {
	// Start begins the message listening loop
	Start() error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

// CaseStore is the part of the store chat commands read.
type CaseStore interface {
	GetTestCase(ctx context.Context, name string) (*casefile.TestCase, error)
	ListTestCases(ctx context.Context) ([]store.CaseInfo, error)
	ListExecutions(ctx context.Context, caseName string, limit int) ([]store.ExecutionRecord, error)
}

type CaseRunner interface {
	Run(ctx context.Context, tc *casefile.TestCase, opts runner.Options) *runner.Summary
}

// Commands answers chat messages. Every gateway routes text through it.
type Commands struct {
	Cases  CaseStore
	Runner CaseRunner
}

const helpText = `Commands:
/run <case> - run a stored test case
/cases - list stored test cases
/last [case] - show the latest execution`

// Handle runs one command and returns the reply.
func (c *Commands) Handle(ctx context.Context, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return helpText
	}
	// Telegram appends @botname to commands in groups.
	cmd, _, _ := strings.Cut(fields[0], "@")
	arg := strings.TrimSpace(strings.TrimPrefix(text, fields[0]))

	switch cmd {
	case "/run":
		return c.run(ctx, arg)
	case "/cases":
		return c.cases(ctx)
	case "/last":
		return c.last(ctx, arg)
	}
	return helpText
}

func (c *Commands) run(ctx context.Context, name string) string {
	if name == "" {
		return "Usage: /run <case>"
	}
	tc, err := c.Cases.GetTestCase(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Sprintf("No test case named %q. Try /cases.", name)
	}
	if err != nil {
		return "Could not load test case: " + err.Error()
	}
	return c.Runner.Run(ctx, tc, runner.Options{}).Report()
}

func (c *Commands) cases(ctx context.Context) string {
	list, err := c.Cases.ListTestCases(ctx)
	if err != nil {
		return "Could not list test cases: " + err.Error()
	}
	if len(list) == 0 {
		return "No test cases stored yet."
	}
	var sb strings.Builder
	for _, tc := range list {
		fmt.Fprintf(&sb, "- %s (%d steps)", tc.Name, tc.StepCount)
		if tc.Description != "" {
			sb.WriteString(": " + tc.Description)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (c *Commands) last(ctx context.Context, name string) string {
	execs, err := c.Cases.ListExecutions(ctx, name, 1)
	if err != nil {
		return "Could not load executions: " + err.Error()
	}
	if len(execs) == 0 {
		return "No executions yet."
	}
	e := execs[0]
	status := "PASSED"
	if !e.Success {
		status = "FAILED"
	}
	msg := fmt.Sprintf("%s: %s\nsteps %d/%d ok, %.1fs\nstarted %s\nexecution %s",
		status, e.TestCaseName, e.SuccessfulSteps, e.TotalSteps, e.ExecutionTime,
		e.StartedAt.Format("2006-01-02 15:04:05 MST"), e.ID)
	if e.Error != "" {
		msg += "\n" + e.Error
	}
	return msg
}
