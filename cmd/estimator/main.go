package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgPath      string
	outputFormat string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "estimator",
		Short:         "Aggregate smart-meter telemetry and predict the monthly electricity bill",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "",
		"Path to a YAML config file overriding environment settings")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, scheduler and Kafka listener",
		RunE:  runServe,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and print the result",
		RunE:  runOnce,
	}
	runCmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json or yaml")

	rootCmd.AddCommand(serveCmd, runCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
