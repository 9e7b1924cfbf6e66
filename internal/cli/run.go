package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/YuminosukeSato/adpipe/pipeline"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the training DAG once",
	RunE:  runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.Close(shutdownCtx)
	}()

	d, err := a.dag()
	if err != nil {
		return err
	}
	run, runErr := a.runner().Run(ctx, d)
	if run != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "run %s: %s\n", run.ID, run.State)
		for _, id := range run.Order {
			ti := run.Tasks[id]
			fmt.Fprintf(cmd.OutOrStdout(), "  %-28s %-16s attempts=%d\n", id, ti.State, ti.Attempts)
		}
		if ev, ok := run.Tasks[pipeline.TaskEvaluate].Output.(*pipeline.Evaluation); ok && ev != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "accuracy=%.4f first_prediction=%d\n", ev.Accuracy, ev.FirstPrediction)
		}
	}
	return runErr
}
