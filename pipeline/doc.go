// Package pipeline implements the five stages of the ad-click training
// pipeline and the DAG that orders them.
//
// Each stage takes an artifact handle and returns one:
//
//	Loader.Load            source CSV        -> raw.gob
//	Preprocessor.Process   raw.gob           -> preprocessed.gob
//	Splitter.Separate      preprocessed.gob  -> preprocessed.gob
//	Trainer.Train          preprocessed.gob  -> <model_dir>/<model_id>
//	Evaluator.Evaluate     preprocessed.gob  -> Evaluation
//
// Stages never share memory. Everything passes through artifact.Store so a
// stage can be re-run on its own from the CLI.
package pipeline
