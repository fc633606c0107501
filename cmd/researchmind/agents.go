package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/researchmind/internal/agent"
	"github.com/ShayCichocki/researchmind/internal/config"
	"github.com/ShayCichocki/researchmind/internal/health"
	"github.com/ShayCichocki/researchmind/internal/registry"
	"github.com/ShayCichocki/researchmind/pkg/models"
)

var agentsCategory string

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List and manage worker agents",
	Long: `List the worker agents in the registry, check that they answer,
and reset or take offline the agents of a running 'researchmind serve'.`,
	RunE: runAgentsList,
}

var agentsResetCmd = &cobra.Command{
	Use:   "reset <agent-id>",
	Short: "Return an agent in the error or offline state to service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendSignal(health.ActionReset, args[0])
	},
}

var agentsOfflineCmd = &cobra.Command{
	Use:   "offline <agent-id>",
	Short: "Take an agent out of service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendSignal(health.ActionOffline, args[0])
	},
}

var agentsPingCmd = &cobra.Command{
	Use:   "ping [agent-id...]",
	Short: "Check that agents are reachable",
	RunE:  runAgentsPing,
}

func init() {
	agentsCmd.Flags().StringVar(&agentsCategory, "category", "", "Only list agents of this category")
	agentsCmd.AddCommand(agentsResetCmd)
	agentsCmd.AddCommand(agentsOfflineCmd)
	agentsCmd.AddCommand(agentsPingCmd)
}

func loadRegistry() (*config.Config, *registry.Registry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	reg, err := cfg.BuildRegistry()
	if err != nil {
		return nil, nil, fmt.Errorf("build registry: %w", err)
	}
	return cfg, reg, nil
}

func runAgentsList(cmd *cobra.Command, args []string) error {
	_, reg, err := loadRegistry()
	if err != nil {
		return err
	}

	agents := reg.Agents()
	if agentsCategory != "" {
		agents = reg.ByCategory(models.AgentCategory(agentsCategory))
	}
	if len(agents) == 0 {
		fmt.Println("No agents registered.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCATEGORY\tTRANSPORT\tCAPABILITIES\tDESCRIPTION")
	for _, a := range agents {
		caps := make([]string, len(a.Capabilities))
		for i, c := range a.Capabilities {
			caps[i] = string(c)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.Category, a.Transport.Kind, strings.Join(caps, ","), a.Description)
	}
	return w.Flush()
}

// sendSignal drops a signal file for a running server's health watcher.
func sendSignal(action, agentID string) error {
	cfg, reg, err := loadRegistry()
	if err != nil {
		return err
	}
	if _, ok := reg.Agent(agentID); !ok {
		return fmt.Errorf("unknown agent %q", agentID)
	}
	dir := cfg.SignalsDir()
	if err := health.WriteSignal(dir, action, agentID); err != nil {
		return err
	}
	printStatus("✓", fmt.Sprintf("Sent %s to %s (%s)", action, agentID, dir), color.FgGreen)
	return nil
}

func runAgentsPing(cmd *cobra.Command, args []string) error {
	cfg, reg, err := loadRegistry()
	if err != nil {
		return err
	}

	ids := args
	if len(ids) == 0 {
		for _, a := range reg.Agents() {
			ids = append(ids, a.ID)
		}
	}

	deps := agent.Deps{Anthropic: cfg.AnthropicDeps()}
	failed := 0
	for _, id := range ids {
		d, ok := reg.Agent(id)
		if !ok {
			printStatus("✗", fmt.Sprintf("%s: unknown agent", id), color.FgRed)
			failed++
			continue
		}
		t, err := agent.NewTransport(d, deps)
		if err != nil {
			printStatus("✗", fmt.Sprintf("%s: %v", id, err), color.FgRed)
			failed++
			continue
		}
		p, ok := t.(agent.Pinger)
		if !ok {
			printStatus("⚠", fmt.Sprintf("%s: %s transport cannot be pinged", id, d.Transport.Kind), color.FgYellow)
			continue
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), health.DefaultPingTimeout)
		start := time.Now()
		err = p.Ping(ctx)
		cancel()
		if err != nil {
			printStatus("✗", fmt.Sprintf("%s: %v", id, err), color.FgRed)
			failed++
			continue
		}
		printStatus("✓", fmt.Sprintf("%s reachable in %s", id, time.Since(start).Round(time.Millisecond)), color.FgGreen)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d agents unreachable", failed, len(ids))
	}
	return nil
}
