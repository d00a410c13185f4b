package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/rahul/casepilot/internal/casefile"
	"github.com/rahul/casepilot/internal/observability"
	"github.com/rahul/casepilot/internal/runner"
	"github.com/rahul/casepilot/internal/store"
	"github.com/spf13/cobra"
)

// --- run ---

var (
	runKeepVariables bool
	runJSON          bool
	runSave          bool
)

var runCmd = &cobra.Command{
	Use:   "run <file|name>",
	Short: "Run a test case file or a stored test case",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	tc, fromFile, err := resolveCase(ctx, st, args[0])
	if err != nil {
		return err
	}
	if runSave && fromFile {
		if err := st.SaveTestCase(ctx, tc); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "saved test case %q\n", tc.Name)
	}

	r, drv, err := newRunner(cfg, newLogger(cfg, nil))
	if err != nil {
		return err
	}
	defer drv.Close()
	r.Recorder = st

	var opts runner.Options
	if runKeepVariables {
		keep := false
		opts.ClearVariables = &keep
	}
	summary := r.Run(ctx, tc, opts)

	out := cmd.OutOrStdout()
	if runJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
	} else {
		observability.PrintReport(out, reportOf(summary))
	}

	if !summary.Success {
		return errRunFailed
	}
	return nil
}

// resolveCase loads arg as a file when one exists, otherwise as the name of
// a stored case.
func resolveCase(ctx context.Context, st *store.Store, arg string) (*casefile.TestCase, bool, error) {
	if _, err := os.Stat(arg); err == nil {
		tc, err := casefile.LoadFile(arg)
		return tc, true, err
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}

	tc, err := st.GetTestCase(ctx, arg)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("%q is neither a file nor a stored test case", arg)
	}
	return tc, false, err
}

func reportOf(s *runner.Summary) observability.Report {
	rows := make([]observability.ReportRow, 0, len(s.Steps))
	for _, step := range s.Steps {
		row := observability.ReportRow{
			Index:    step.StepIndex,
			Name:     step.StepName,
			Action:   step.Action,
			Success:  step.Success,
			Warning:  step.ValidationWarning != "",
			Duration: time.Duration(step.DurationMS) * time.Millisecond,
		}
		switch {
		case !step.Success:
			row.Note = step.Error
		case row.Warning:
			row.Note = step.ValidationWarning
		case step.VariableAssigned != "":
			row.Note = "→ " + step.VariableAssigned
		}
		rows = append(rows, row)
	}
	return observability.Report{
		Title:  "casepilot · " + s.TestCaseName,
		Passed: s.Success,
		Rows:   rows,
		Footer: fmt.Sprintf("%d/%d steps ok in %.1fs · execution %s", s.SuccessfulSteps, s.TotalSteps, s.ExecutionTime, s.ExecutionID),
	}
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a test case file against the schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	return printValidation(cmd.OutOrStdout(), cmd.ErrOrStderr(), data)
}

func printValidation(out, errOut io.Writer, data []byte) error {
	if errs := casefile.Validate(data); len(errs) > 0 {
		fmt.Fprintf(errOut, "Validation failed: %d error(s)\n\n", len(errs))
		for i, e := range errs {
			fmt.Fprintf(errOut, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(errOut, "     at: %s\n", e.Path)
			}
		}
		return fmt.Errorf("%w: %d error(s)", casefile.ErrInvalidCase, len(errs))
	}

	tc, err := casefile.Parse(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ %s is valid (%d steps)\n", tc.Name, len(tc.Steps))
	return nil
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema for test case files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := casefile.Schema()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

func init() {
	runCmd.Flags().BoolVar(&runKeepVariables, "keep-variables", false, "Do not clear variables before the run")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the execution summary as JSON")
	runCmd.Flags().BoolVar(&runSave, "save", false, "Store the test case file before running it")
}
