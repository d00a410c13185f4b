package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/rahul/casepilot/internal/store"
	"github.com/spf13/cobra"
)

// --- schedule ---

var (
	scheduleEvery time.Duration
	scheduleAt    string
	scheduleChat  string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run stored test cases on a schedule (executed by serve)",
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add <case>",
	Short: "Schedule a stored test case",
	Long:  "Schedule a stored test case. Without --every it runs once. --chat names the chat that receives the summary, optionally prefixed with the gateway (discord:1234).",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if scheduleEvery < 0 {
			return errors.New("--every must not be negative")
		}
		first := time.Now()
		if scheduleAt != "" {
			t, err := time.Parse(time.RFC3339, scheduleAt)
			if err != nil {
				return fmt.Errorf("--at must be RFC 3339 (2006-01-02T15:04:05Z07:00): %w", err)
			}
			first = t
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		if _, err := st.GetTestCase(ctx, args[0]); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no stored test case %q (import it with: casepilot cases import <file>)", args[0])
			}
			return err
		}
		sched, err := st.AddSchedule(ctx, args[0], scheduleChat, scheduleEvery, first)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "scheduled %s as %s, first run %s\n",
			sched.CaseName, sched.ID, sched.NextRunAt.Local().Format(time.RFC3339))
		return nil
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedules",
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

		schedules, err := st.ListSchedules(ctx)
		if err != nil {
			return err
		}
		for _, s := range schedules {
			every := "once"
			if s.Interval > 0 {
				every = "every " + s.Interval.String()
			}
			last := "never"
			if s.LastRunAt != nil {
				last = s.LastRunAt.Local().Format(time.RFC3339)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-28s %-14s next %s  last %s  %s\n",
				s.ID, s.CaseName, every, s.NextRunAt.Local().Format(time.RFC3339), last, s.ChatID)
		}
		return nil
	},
}

var scheduleDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a schedule",
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

		if err := st.DeleteSchedule(ctx, args[0]); err != nil {
			return fmt.Errorf("delete schedule %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted schedule %s\n", args[0])
		return nil
	},
}

func init() {
	scheduleAddCmd.Flags().DurationVar(&scheduleEvery, "every", 0, "Repeat interval (e.g. 30m, 24h); omit to run once")
	scheduleAddCmd.Flags().StringVar(&scheduleAt, "at", "", "First run time in RFC 3339; defaults to now")
	scheduleAddCmd.Flags().StringVar(&scheduleChat, "chat", "", "Chat that receives the run summary")
	scheduleCmd.AddCommand(scheduleAddCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleDeleteCmd)
}
