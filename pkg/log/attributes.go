// Standard attribute keys for pipeline and machine learning operations.
//
// These keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples", "pipeline.stage") so logs from every stage can be filtered
// the same way.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of machine learning model.
	// Examples: "SVC", "MinMaxScaler", "ColumnTransformer"
	ModelNameKey = "model.name"

	// OperationKey specifies the machine learning operation being performed.
	// Standard values: "fit", "predict", "transform", "fit_transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component or package is performing the operation.
	ComponentKey = "ml.component"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// TrainSamplesKey and TestSamplesKey describe the two sides of a split.
	TrainSamplesKey = "data.train_samples"
	TestSamplesKey  = "data.test_samples"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records model accuracy for evaluation operations.
	AccuracyKey = "metrics.accuracy"

	// IterationKey records the number of solver iterations.
	IterationKey = "training.iteration"

	// SupportVectorsKey records how many support vectors a kernel model kept.
	SupportVectorsKey = "training.support_vectors"
)

// Prediction Context
const (
	// PredictionKey records a single predicted label.
	PredictionKey = "preds.first"

	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Pipeline and Workflow Context
const (
	// StageKey names the pipeline stage ("load", "preprocess", "separate", "train", "evaluate").
	StageKey = "pipeline.stage"

	// DAGKey names the workflow a task belongs to.
	DAGKey = "pipeline.dag"

	// TaskKey names a workflow task.
	TaskKey = "pipeline.task"

	// RunIDKey identifies a single workflow run.
	RunIDKey = "pipeline.run_id"

	// AttemptKey records the 1-based attempt number of a task.
	AttemptKey = "pipeline.attempt"

	// TaskStateKey records a task's terminal state.
	TaskStateKey = "pipeline.task_state"

	// ArtifactPathKey records the path of an artifact written or read.
	ArtifactPathKey = "artifact.path"
)

// Standard attribute value constants for common operations.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"
)
