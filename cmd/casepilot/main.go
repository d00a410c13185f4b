package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rahul/casepilot/pkg/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
	verbose    bool
)

// errRunFailed makes the process exit non-zero after a failed test case
// without printing usage.
var errRunFailed = errors.New("test case failed")

var rootCmd = &cobra.Command{
	Use:           "casepilot",
	Short:         "AI driven browser test runner",
	Long:          "casepilot runs browser test cases written as natural-language steps, records every execution, and runs stored cases on a schedule.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnv(cmd)
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "Path to the JSON config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Path to a .env file with secrets")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print structured events to stderr")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(casesCmd)
	rootCmd.AddCommand(executionsCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadEnv loads the .env file. A missing default file is fine; a missing
// file named on the command line is not.
func loadEnv(cmd *cobra.Command) error {
	err := godotenv.Load(envFile)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("env") {
		return nil
	}
	return fmt.Errorf("load %s: %w", envFile, err)
}

// loadConfig reads --config. Without the flag a missing config.json falls
// back to the defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	return config.Load(path)
}
