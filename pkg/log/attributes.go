// Standard attribute keys for pipeline log records. Keys follow a
// hierarchical "group.name" convention so log files can be filtered.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the model type, e.g. "LogisticRegression".
	ModelNameKey = "model.name"

	// OperationKey is the operation being performed: "fit", "predict", "transform", ...
	OperationKey = "ml.operation"

	// ComponentKey identifies the package performing the operation.
	ComponentKey = "ml.component"

	// StepKey names a verification step of the harness.
	StepKey = "harness.step"

	// StateKey is the furthest harness state reached.
	StateKey = "harness.state"

	// RunIDKey identifies one pipeline run.
	RunIDKey = "run.id"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ColumnKey   = "data.column"
	PathKey     = "data.path"
)

// Metrics and timing.
const (
	DurationMsKey = "perf.duration_ms"
	AccuracyKey   = "metrics.accuracy"
	AUCKey        = "metrics.auc"
	LossKey       = "metrics.loss"
	IterationKey  = "training.iteration"
	ScoreKey      = "metrics.cv_score"
)

// Hyperparameters.
const (
	HyperParamsKey = "model.hyperparams"
	RandomSeedKey  = "config.random_seed"
)

// Standard operation values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationSplit     = "split"
	OperationRender    = "render"
	OperationSave      = "save"
)
