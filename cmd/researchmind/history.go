package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/researchmind/internal/state"
	"github.com/ShayCichocki/researchmind/pkg/models"
)

var (
	historyState string
	historyLimit int
	historyJSON  bool
	purgeOlder   time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	Long: `List the runs recorded in the history database, newest first.

Use 'researchmind history show <run-id>' for the tasks of one run and
'researchmind history purge' to delete old runs.`,
	RunE: runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a recorded run and its tasks",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete runs older than --older-than",
	RunE:  runHistoryPurge,
}

func init() {
	historyCmd.Flags().StringVar(&historyState, "state", "", "Only list runs in this state")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to list")
	historyCmd.PersistentFlags().BoolVar(&historyJSON, "json", false, "Print JSON")
	historyPurgeCmd.Flags().DurationVar(&purgeOlder, "older-than", 30*24*time.Hour, "Age of the runs to delete")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPurgeCmd)
}

// openHistory opens the history database named by the config.
func openHistory() (*state.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	path := cfg.StatePath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no run history at %s", path)
	}
	return state.OpenMigrated(path)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	filter := state.RunFilter{State: models.RunState(historyState), Limit: historyLimit}
	if filter.State != "" && !filter.State.Valid() {
		return fmt.Errorf("invalid run state %q", historyState)
	}

	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(filter)
	if err != nil {
		return err
	}
	if historyJSON {
		return printJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTATE\tTOPOLOGY\tTASKS\tSTARTED\tDURATION\tDESCRIPTION")
	for _, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.ID, r.State, r.Topology, r.TaskCount,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), duration, r.Description)
	}
	return w.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := db.GetRun(args[0])
	if errors.Is(err, state.ErrNotFound) {
		return fmt.Errorf("run %s is not in the history", args[0])
	}
	if err != nil {
		return err
	}
	if historyJSON {
		return printJSON(run)
	}

	printResult(os.Stdout, run.Result)
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tSTAGE\tCAPABILITY\tSTATE\tAGENT\tSERVED BY\tATTEMPTS\tERROR")
	for _, t := range run.Result.Tasks {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			t.ID, t.Stage+1, t.Capability, t.State, t.AgentID, t.ServedBy, len(t.Attempts), t.Error)
	}
	return w.Flush()
}

func runHistoryPurge(cmd *cobra.Command, args []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.PurgeOldRuns(purgeOlder)
	if err != nil {
		return err
	}
	printStatus("✓", fmt.Sprintf("Deleted %d runs older than %s", n, purgeOlder), color.FgGreen)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
