package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rahul/casepilot/internal/casefile"
	"github.com/spf13/cobra"
)

// --- cases ---

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "Manage stored test cases",
}

var casesImportCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Validate and store test case files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		for _, path := range args {
			tc, err := casefile.LoadFile(path)
			if err != nil {
				return err
			}
			if err := st.SaveTestCase(ctx, tc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%d steps) from %s\n", tc.Name, len(tc.Steps), path)
		}
		return nil
	},
}

var casesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored test cases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		cases, err := st.ListTestCases(ctx)
		if err != nil {
			return err
		}
		if len(cases) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no stored test cases")
			return nil
		}
		for _, c := range cases {
			fmt.Fprintf(cmd.OutOrStdout(), "%-32s %3d steps  %s  %s\n",
				c.Name, c.StepCount, c.UpdatedAt.Local().Format("2006-01-02 15:04"), c.Description)
		}
		return nil
	},
}

var casesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored test case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		if err := st.DeleteTestCase(ctx, args[0]); err != nil {
			return fmt.Errorf("delete %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

// --- executions ---

var (
	execCase  string
	execLimit int
	execJSON  bool
)

var executionsCmd = &cobra.Command{
	Use:     "executions",
	Aliases: []string{"exec"},
	Short:   "Inspect recorded executions",
}

var executionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent executions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		execs, err := st.ListExecutions(ctx, execCase, execLimit)
		if err != nil {
			return err
		}
		if execJSON {
			return writeJSON(cmd, execs)
		}
		for _, e := range execs {
			status := "PASS"
			if !e.Success {
				status = "FAIL"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s  %-28s %d/%d  %6.1fs  %s\n",
				e.ID, e.StartedAt.Local().Format("2006-01-02 15:04:05"), status,
				e.TestCaseName, e.SuccessfulSteps, e.TotalSteps, e.ExecutionTime, e.Error)
		}
		return nil
	},
}

var executionsShowCmd = &cobra.Command{
	Use:   "show <execution-id>",
	Short: "Show the steps and variables of one execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		detail, err := st.GetExecution(ctx, args[0])
		if err != nil {
			return fmt.Errorf("execution %s: %w", args[0], err)
		}
		if execJSON {
			return writeJSON(cmd, detail)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s  %s  success=%t  %.1fs\n", detail.ID, detail.TestCaseName, detail.Success, detail.ExecutionTime)
		for _, s := range detail.Steps {
			mark := "✔"
			if !s.Success {
				mark = "✘"
			}
			fmt.Fprintf(out, "  %s %2d %-12s %s\n", mark, s.StepIndex, s.Action, s.StepName)
			if s.ReturnValue != "" && s.ReturnValue != "null" {
				fmt.Fprintf(out, "       value: %s\n", s.ReturnValue)
			}
			if s.Error != "" {
				fmt.Fprintf(out, "       error: %s\n", s.Error)
			}
			if s.ScreenshotPath != "" {
				fmt.Fprintf(out, "       screenshot: %s\n", s.ScreenshotPath)
			}
		}
		if len(detail.Variables) > 0 {
			names := make([]string, 0, len(detail.Variables))
			for _, v := range detail.Variables {
				names = append(names, fmt.Sprintf("%s(%s)=%s", v.Name, v.TypeTag, v.Value))
			}
			fmt.Fprintf(out, "variables: %s\n", strings.Join(names, ", "))
		}
		return nil
	},
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	casesCmd.AddCommand(casesImportCmd)
	casesCmd.AddCommand(casesListCmd)
	casesCmd.AddCommand(casesDeleteCmd)

	executionsListCmd.Flags().StringVar(&execCase, "case", "", "Only executions of this test case")
	executionsListCmd.Flags().IntVar(&execLimit, "limit", 20, "Maximum number of executions")
	executionsListCmd.Flags().BoolVar(&execJSON, "json", false, "Output as JSON")
	executionsShowCmd.Flags().BoolVar(&execJSON, "json", false, "Output as JSON")
	executionsCmd.AddCommand(executionsListCmd)
	executionsCmd.AddCommand(executionsShowCmd)
}
