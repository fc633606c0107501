package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/researchmind/internal/orchestrator"
	"github.com/ShayCichocki/researchmind/internal/tui"
	"github.com/ShayCichocki/researchmind/pkg/models"
)

var (
	runFlags   requestFlags
	runWatch   bool
	runJSON    bool
	runVerbose bool
)

var runCmd = &cobra.Command{
	Use:   "run [description]",
	Short: "Execute a research request",
	Long: `Route a research request to the worker agents and wait for the result.

Name the capabilities in exactly one way:
  --capability literature               a single capability
  --need literature --need simulation:literature
                                        several capabilities, with dependencies
  --pipeline materials-discovery        a pipeline from the catalog
  --stages literature,simulation        an explicit ordered pipeline

Examples:
  researchmind run "perovskite band gaps" --need literature --need database
  researchmind run --pipeline materials-discovery --payload @query.json --watch
  researchmind run --capability simulation --payload '{"lattice":"fcc"}' --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	addRequestFlags(runCmd, &runFlags)
	runCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "Follow the run in a live terminal view")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the aggregated result as JSON")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print run events as they happen")
}

// addRequestFlags registers the request flags shared by run and plan.
func addRequestFlags(cmd *cobra.Command, f *requestFlags) {
	cmd.Flags().StringVarP(&f.capability, "capability", "c", "", "Single capability to invoke")
	cmd.Flags().StringArrayVarP(&f.needs, "need", "n", nil, "Capability the request needs, as cap or cap:dep,dep (repeatable)")
	cmd.Flags().StringVarP(&f.pipeline, "pipeline", "p", "", "Named pipeline from the catalog")
	cmd.Flags().StringSliceVar(&f.stages, "stages", nil, "Explicit ordered pipeline of capabilities")
	cmd.Flags().StringVar(&f.payload, "payload", "", "JSON payload, or @file")
	cmd.Flags().StringVar(&f.complexity, "complexity", "", "Request complexity: low, medium or high")
	cmd.Flags().StringVar(&f.urgency, "urgency", "", "Request urgency: normal or urgent")
	cmd.Flags().StringVar(&f.policy, "policy", "", "Continuation policy: all-must-succeed or best-effort")
	cmd.Flags().IntVar(&f.priority, "priority", 0, "Queue priority; higher runs start first")
	cmd.Flags().StringVar(&f.agent, "agent", "", "Preferred agent ID, tried first where it serves a step")
}

func runRun(cmd *cobra.Command, args []string) error {
	description := ""
	if len(args) > 0 {
		description = args[0]
	}
	req, err := runFlags.build(description)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a, err := newApp(cfg, appOptions{history: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var res *models.AggregatedResult
	if runWatch {
		res, err = watchRun(ctx, a, req)
	} else {
		var onEvent func(orchestrator.OrchestratorEvent)
		if runVerbose && !runJSON {
			onEvent = func(ev orchestrator.OrchestratorEvent) { printEvent(os.Stderr, ev) }
		}
		go drainEvents(a.orch.Events(), onEvent)
		res, err = a.orch.Execute(ctx, req)
	}
	if err != nil {
		return err
	}

	if runJSON {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		printResult(os.Stdout, res)
	}

	if res.State == models.RunFailed || res.State == models.RunCancelled {
		return fmt.Errorf("run %s %s", res.RunID, res.State)
	}
	return nil
}

// watchRun submits the request and follows it in the terminal view. When the
// view is closed before the run finishes the run is cancelled.
func watchRun(ctx context.Context, a *app, req models.Request) (*models.AggregatedResult, error) {
	plan, err := a.orch.Plan(req)
	if err != nil {
		return nil, err
	}
	id, err := a.orch.Submit(ctx, req)
	if err != nil {
		return nil, err
	}

	_, viewErr := tui.Run(tui.Config{
		RunID:  id,
		Plan:   plan,
		Status: func() (*models.AggregatedResult, error) { return a.orch.Status(id) },
		Agents: a.mgr.Snapshots,
		Cancel: func() error { return a.orch.Cancel(id) },
		Events: a.orch.Events(),
	}, tea.WithAltScreen())
	go drainEvents(a.orch.Events(), nil)

	if viewErr != nil {
		_ = a.orch.Cancel(id)
	}
	if res, err := a.orch.Status(id); err == nil && !res.State.Terminal() {
		_ = a.orch.Cancel(id)
	}
	return a.orch.Wait(context.Background(), id)
}

// printResult writes a human-readable run summary.
func printResult(w io.Writer, res *models.AggregatedResult) {
	stateColor := color.New(color.FgGreen, color.Bold)
	switch res.State {
	case models.RunPartial, models.RunCancelled:
		stateColor = color.New(color.FgYellow, color.Bold)
	case models.RunFailed:
		stateColor = color.New(color.FgRed, color.Bold)
	}

	fmt.Fprintf(w, "Run %s %s in %s\n", res.RunID, stateColor.Sprint(res.State), res.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "  topology: %s, policy: %s, stages: %d\n", res.Topology, res.Policy, res.Stages)
	if res.Cause != "" {
		fmt.Fprintf(w, "  cause: %s", res.Cause)
		if res.Error != "" {
			fmt.Fprintf(w, " (%s)", res.Error)
		}
		fmt.Fprintln(w)
	}

	caps := make([]string, 0, len(res.Slots))
	for c := range res.Slots {
		caps = append(caps, string(c))
	}
	sort.Strings(caps)

	fmt.Fprintln(w)
	for _, c := range caps {
		slot := res.Slots[models.Capability(c)]
		switch slot.State {
		case models.SlotSucceeded:
			fmt.Fprintf(w, "  %s %-16s %s\n", color.GreenString("✓"), c, abbreviate(string(slot.Result), 100))
		case models.SlotFailed:
			fmt.Fprintf(w, "  %s %-16s %s: %s\n", color.RedString("✗"), c, slot.ErrorKind, slot.Error)
		default:
			fmt.Fprintf(w, "  %s %-16s %s %s\n", color.YellowString("-"), c, slot.State, slot.Error)
		}
	}
}

// printEvent writes one event line for --verbose.
func printEvent(w io.Writer, ev orchestrator.OrchestratorEvent) {
	e := tui.EntryFromEvent(ev)
	level := string(e.Level)
	switch e.Level {
	case tui.LogLevelWarn:
		level = color.YellowString(level)
	case tui.LogLevelError:
		level = color.RedString(level)
	}
	agentID := ""
	if e.AgentID != "" {
		agentID = color.CyanString("[" + e.AgentID + "] ")
	}
	fmt.Fprintf(w, "%s %-5s %s%s\n", e.Timestamp.Format("15:04:05"), level, agentID, e.Message)
}

// abbreviate collapses whitespace and cuts s to n runes.
func abbreviate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
