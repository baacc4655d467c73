package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "celplay",
	Short: "celplay is a playground for CEL expressions",
	Long: `celplay evaluates CEL expressions, Kubernetes validating admission policies and
webhook match conditions against YAML or JSON input, and encodes playground
state into shareable links.`,
	SilenceUsage: true,
}

// Main runs the command line and returns the process exit code.
func Main() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle(err.Error()))
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
}
