package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	planFlags requestFlags
	planJSON  bool
)

var planCmd = &cobra.Command{
	Use:   "plan [description]",
	Short: "Show the execution plan for a request without running it",
	Long: `Route a request and print the plan the execution engine would run:
the topology, the continuation policy, and each stage with the ranked
agents for every step.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	addRequestFlags(planCmd, &planFlags)
	planCmd.Flags().BoolVar(&planJSON, "json", false, "Print the plan as JSON")
}

func runPlan(cmd *cobra.Command, args []string) error {
	description := ""
	if len(args) > 0 {
		description = args[0]
	}
	req, err := planFlags.build(description)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a, err := newApp(cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()
	go drainEvents(a.orch.Events(), nil)

	plan, err := a.orch.Plan(req)
	if err != nil {
		return err
	}

	if planJSON {
		return printJSON(plan)
	}

	bold := color.New(color.Bold)
	fmt.Printf("%s %s\n", bold.Sprint("Topology:"), plan.Topology)
	fmt.Printf("%s %s\n", bold.Sprint("Policy:  "), plan.Policy)
	if plan.Pipeline != "" {
		fmt.Printf("%s %s\n", bold.Sprint("Pipeline:"), plan.Pipeline)
	}
	for i, stage := range plan.Stages {
		fmt.Printf("\nStage %d\n", i+1)
		for _, step := range stage.Steps {
			candidates := color.HiBlackString("(no eligible agent)")
			if len(step.Candidates) > 0 {
				candidates = color.CyanString(step.Candidates[0])
				if len(step.Candidates) > 1 {
					candidates += color.HiBlackString(" then " + strings.Join(step.Candidates[1:], ", "))
				}
			}
			prior := ""
			if step.UsePriorResults {
				prior = color.HiBlackString(" [uses prior results]")
			}
			fmt.Printf("  %-16s %s%s\n", step.Capability, candidates, prior)
		}
	}
	return nil
}
