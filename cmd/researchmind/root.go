package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/researchmind/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "researchmind",
	Short: "Multi-agent research task orchestrator",
	Long: `researchmind routes research requests to specialised worker agents
and runs them as sequential, parallel, hybrid or pipeline plans.

A request names the capabilities it needs (literature search, database
lookup, simulation, analysis and so on). The router picks a topology and
ranks the agents able to serve each step; the execution engine runs the
stages with retries, failover, timeouts and cancellation, and aggregates
the results per capability.

Run 'researchmind serve' to expose the orchestrator over HTTP, or
'researchmind run' to execute a single request from the terminal.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: user config plus .researchmind.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(capabilitiesCmd)
	rootCmd.AddCommand(pipelinesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads the --config file when given, the layered config otherwise.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

// printStatus prints a status line with color.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
