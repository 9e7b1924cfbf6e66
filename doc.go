// Package adpipe is a batch pipeline that trains and evaluates an ad-click
// classifier.
//
// The pipeline loads the advertising CSV, preprocesses it, trains an RBF
// C-SVC, scores it on a held-out split and notifies downstream systems. It runs
// as a DAG of dependent tasks with retries.
//
// # Quick Start
//
// Run the whole DAG once with the default configuration:
//
//	adpipe run --config config.yaml
//
// Or drive the stages yourself:
//
//	cfg := config.Default()
//	store, _ := artifact.NewStore(cfg.Data.WorkingDir, cfg.Data.ModelDir)
//	stages, _ := pipeline.NewStages(cfg, store, nil)
//
//	raw, _ := stages.Loader.Load(ctx, cfg.Data.Source)
//	split, _ := stages.Preprocessor.Process(ctx, raw)
//	_, _ = stages.Trainer.Train(ctx, split, cfg.Data.ModelID)
//	ev, _ := stages.Evaluator.Evaluate(ctx, split, cfg.Data.ModelID)
//	fmt.Printf("accuracy %.4f\n", ev.Accuracy)
//
// # Packages
//
//   - dataset: CSV loading into a named-column Frame
//   - preprocessing: MinMax and Standard scalers, ColumnTransformer, seeded train/test split
//   - sklearn/svm: kernelized C-SVC trained with SMO
//   - metrics: accuracy, ROC AUC and the binary confusion matrix
//   - artifact: atomic gob artifacts with BLAKE2b digest sidecars
//   - pipeline: the five stages and the training DAG
//   - workflow: DAG runner with retries, trigger rules and a run cap, plus a scheduler
//   - workflow/runstore: run history in memory or PostgreSQL
//   - notify, trigger: completion email and downstream DAG trigger
//   - report: decision-function histogram
//   - config: YAML configuration
//   - pkg/errors, pkg/log: structured errors and logging
//
// # Error Handling
//
// Stage failures carry typed errors from pkg/errors (DataNotFoundError,
// SchemaMismatchError, ModelLoadError) with stack traces attached by
// cockroachdb/errors. Use errors.As to inspect them.
package adpipe
