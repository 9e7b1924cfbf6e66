package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/YuminosukeSato/adpipe/workflow/runstore"
	"github.com/spf13/cobra"
)

var (
	runsLimit int
	runsDAG   string
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List recent DAG runs, or show the tasks of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs to list")
	runsCmd.Flags().StringVar(&runsDAG, "dag", "", "only list runs of this DAG (defaults to dag.id)")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	store, err := runstore.Open(ctx, cfg.RunStore.Driver, cfg.RunStore.URL, cfg.RunStore.MaxOpenConns)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	defer func() { _ = w.Flush() }()

	if len(args) == 1 {
		run, err := store.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(w, "RUN %s\t%s\t%s\n", run.ID, run.DAGID, run.State)
		_, _ = fmt.Fprintln(w, "TASK\tSTATE\tATTEMPTS\tERROR")
		for _, t := range run.Tasks {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", t.TaskID, t.State, t.Attempts, t.Error)
		}
		return nil
	}

	dagID := runsDAG
	if dagID == "" {
		dagID = cfg.DAG.ID
	}
	runs, err := store.ListRuns(ctx, dagID, runsLimit)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, "RUN\tDAG\tSTATE\tSTARTED\tDURATION")
	for _, r := range runs {
		dur := "-"
		if r.EndedAt != nil {
			dur = r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.DAGID, r.State, r.StartedAt.Format(time.RFC3339), dur)
	}
	return nil
}
