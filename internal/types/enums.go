package types

// Season selects the seasonal demand factor.
type Season string

const (
	SeasonDry Season = "dry"
	SeasonWet Season = "wet"
)

// RunKind identifies which engine produced a stored run.
type RunKind string

const (
	RunKindOptimize RunKind = "optimize"
	RunKindEvaluate RunKind = "evaluate"
	RunKindPareto   RunKind = "pareto"
	RunKindAnomaly  RunKind = "anomaly"
	RunKindForecast RunKind = "forecast"
	RunKindPlan     RunKind = "plan"
	RunKindAccuracy RunKind = "accuracy"
)

// RunStatus represents the lifecycle of a stored run.
// Synchronous runs are written directly as complete; queued jobs move
// queued -> complete | failed.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Feature names a sensor channel used by the anomaly detector.
type Feature string

const (
	FeatureEnergyPerVolume Feature = "energy_per_volume"
	FeatureFlow            Feature = "flow"
	FeatureReservoirLevel  Feature = "reservoir_level"
)
