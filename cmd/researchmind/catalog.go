package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "List capabilities and the agents serving them",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, reg, err := loadRegistry()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CAPABILITY\tAGENTS")
		for _, c := range reg.Capabilities() {
			fmt.Fprintf(w, "%s\t%s\n", c, strings.Join(reg.AgentIDs(c), ", "))
		}
		return w.Flush()
	},
}

var pipelinesCmd = &cobra.Command{
	Use:   "pipelines",
	Short: "List the named pipelines in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, reg, err := loadRegistry()
		if err != nil {
			return err
		}
		names := reg.Pipelines()
		if len(names) == 0 {
			fmt.Println("No pipelines defined.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PIPELINE\tSTAGES")
		for _, name := range names {
			stages, err := reg.Pipeline(name)
			if err != nil {
				return err
			}
			parts := make([]string, len(stages))
			for i, c := range stages {
				parts[i] = string(c)
			}
			fmt.Fprintf(w, "%s\t%s\n", name, strings.Join(parts, " -> "))
		}
		return w.Flush()
	},
}
