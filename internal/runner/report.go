package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rahul/casepilot/internal/casefile"
)

// Report renders the summary as short plain text for chat messages.
func (s *Summary) Report() string {
	var sb strings.Builder
	status := "PASSED"
	if !s.Success {
		status = "FAILED"
	}
	fmt.Fprintf(&sb, "%s: %s\n", status, s.TestCaseName)
	fmt.Fprintf(&sb, "steps %d/%d ok, %.1fs\n", s.SuccessfulSteps, s.TotalSteps, s.ExecutionTime)
	if f := s.FailedStep(); f != nil {
		fmt.Fprintf(&sb, "stopped at step %d (%s): %s\n", f.StepIndex, f.StepName, f.Error)
	}
	for _, r := range s.Steps {
		if r.ValidationWarning != "" {
			fmt.Fprintf(&sb, "warning at step %d: %s\n", r.StepIndex, r.ValidationWarning)
		}
	}
	fmt.Fprintf(&sb, "execution %s", s.ExecutionID)
	return sb.String()
}

// Serialized lets several callers share one Runner, and so one browser,
// by running their cases one at a time.
type Serialized struct {
	mu     sync.Mutex
	Runner *Runner
}

func (s *Serialized) Run(ctx context.Context, tc *casefile.TestCase, opts Options) *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Runner.Run(ctx, tc, opts)
}
