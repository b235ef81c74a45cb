// Copyright Contributors to the Orchestrator project

// orchestrator is the controller binary: it drives DocsRun and CodeRun custom resources by
// running AI coding agents as batch Jobs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "orchestrator - runs AI coding agents as Kubernetes batch workloads",
	Long: `orchestrator is a Kubernetes operator that drives two custom resources,
DocsRun and CodeRun, by running an AI coding agent as a batch Job against a target
repository.

Available commands:
  controller    Start the Kubernetes controller manager`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
