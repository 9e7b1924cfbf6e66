package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/YuminosukeSato/adpipe/artifact"
	"github.com/YuminosukeSato/adpipe/pipeline"
	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	stageSource  string
	stageModelID string
)

var stageCmd = &cobra.Command{
	Use:   "stage <load|preprocess|separate|train|evaluate> [handle]",
	Short: "Run a single pipeline stage",
	Long: `Run one stage outside the DAG. Each stage reads the artifact handle given
as the second argument (or the stage's default artifact) and prints the handle
it produced.`,
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"load", "preprocess", "separate", "train", "evaluate"},
	RunE:      runStage,
}

func init() {
	stageCmd.Flags().StringVar(&stageSource, "source", "", "source CSV for the load stage (defaults to data.source)")
	stageCmd.Flags().StringVar(&stageModelID, "model-id", "", "model identifier (defaults to data.model_id)")
	rootCmd.AddCommand(stageCmd)
}

func unknownStage(cmd *cobra.Command, name string) error {
	return errors.NewValidationError("stage", "must be one of "+strings.Join(cmd.ValidArgs, ", "), name)
}

func runStage(cmd *cobra.Command, args []string) error {
	if !slices.Contains(cmd.ValidArgs, args[0]) {
		return unknownStage(cmd, args[0])
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	store, err := artifact.NewStore(cfg.Data.WorkingDir, cfg.Data.ModelDir)
	if err != nil {
		return err
	}
	stages, err := pipeline.NewStages(cfg, store, nil)
	if err != nil {
		return err
	}

	modelID := cfg.Data.ModelID
	if stageModelID != "" {
		modelID = stageModelID
	}
	input := func(def string) artifact.Handle {
		if len(args) == 2 {
			return artifact.Handle(args[1])
		}
		return store.Working(def)
	}

	var out artifact.Handle
	switch args[0] {
	case "load":
		source := cfg.Data.Source
		if stageSource != "" {
			source = stageSource
		}
		out, err = stages.Loader.Load(ctx, source)
	case "preprocess":
		out, err = stages.Preprocessor.Process(ctx, input(artifact.RawName))
	case "separate":
		out, err = stages.Splitter.Separate(ctx, input(artifact.PreprocessedName))
	case "train":
		out, err = stages.Trainer.Train(ctx, input(artifact.PreprocessedName), modelID)
	case "evaluate":
		ev, err := stages.Evaluator.Evaluate(ctx, input(artifact.PreprocessedName), modelID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "accuracy=%.4f auc=%.4f first_prediction=%d test_samples=%d\n",
			ev.Accuracy, ev.AUC, ev.FirstPrediction, ev.TestSamples)
		return nil
	default:
		return unknownStage(cmd, args[0])
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
