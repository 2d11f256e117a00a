// Standard attribute keys for error generation and sweeps. The keys follow
// a hierarchical naming convention ("tree.node", "filter.name") so logs
// can be filtered by concern.

package log

// Tree context
const (
	// NodeKey is the path of the node being processed, e.g. "root/series[3]/leaf".
	NodeKey = "tree.node"

	// NodeKindKey is the structural variant of a node: "leaf", "series",
	// "tuple" or "tuple_series".
	NodeKindKey = "tree.node_kind"

	// FilterKey is the name of the filter being applied.
	FilterKey = "filter.name"

	// FilterCountKey is the number of filters attached to a leaf.
	FilterCountKey = "filter.count"

	// GateFiredKey records whether a probability gate fired.
	GateFiredKey = "filter.gate_fired"

	// ComponentKey identifies which package is emitting the record.
	ComponentKey = "dpemu.component"

	// OperationKey specifies the operation being performed.
	OperationKey = "dpemu.operation"
)

// Data shape
const (
	// ShapeKey is the shape of the array being processed.
	ShapeKey = "data.shape"

	// DTypeKey is the dtype of the array being processed.
	DTypeKey = "data.dtype"

	// SamplesKey is the number of primary-axis elements in a dataset.
	SamplesKey = "data.samples"
)

// Configuration and reproducibility
const (
	// RandomSeedKey records the seed of the random source used by a run.
	RandomSeedKey = "config.random_seed"

	// ParamsKey records the parameter dictionary of a sweep point.
	ParamsKey = "config.params"
)

// Sweeps and models
const (
	// SweepPointKey identifies one error-parameter combination of a sweep.
	SweepPointKey = "sweep.point_id"

	// SweepSizeKey is the number of sweep points.
	SweepSizeKey = "sweep.size"

	// ModelNameKey identifies the model evaluated on corrupted data.
	ModelNameKey = "model.name"

	// ScoresKey records the scores a model returned.
	ScoresKey = "model.scores"

	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"
)

// Error context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// SuggestionKey provides helpful suggestions for resolving issues.
	SuggestionKey = "error.suggestion"
)

// Standard values for OperationKey.
const (
	OperationGenerate = "generate_error"
	OperationApply    = "apply"
	OperationSweep    = "sweep"
	OperationModelRun = "model_run"
)
