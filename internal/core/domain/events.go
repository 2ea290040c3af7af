package domain

// ProgressStage identifies a pipeline stage boundary.
type ProgressStage string

const (
	StageDecomposition ProgressStage = "decomposition"
	StageRetrieval     ProgressStage = "retrieval"
	StageAggregation   ProgressStage = "aggregation"
	StageComplete      ProgressStage = "complete"
)

// ProgressEvent is emitted at each stage boundary of a pipeline run.
type ProgressEvent struct {
	Stage   ProgressStage  `json:"stage"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// ProgressFunc receives pipeline progress events. Delivery is best-effort:
// events a slow consumer cannot keep up with are dropped, never queued
// against the running pipeline.
type ProgressFunc func(event ProgressEvent)
