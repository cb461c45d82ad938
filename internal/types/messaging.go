package types

import "encoding/json"

// OptimizationJobMessage is the SQS payload consumed by the optimizer worker.
// Tariffs are resolved before enqueueing so the worker never calls the feed.
type OptimizationJobMessage struct {
	RunID        string               `json:"run_id"`
	TraceID      string               `json:"trace_id"`
	Seed         uint64               `json:"seed"`
	Demand       Hourly               `json:"demand"`
	Tariffs      Hourly               `json:"tariffs"`
	InitialLevel float64              `json:"initial_level"`
	Pumps        []Pump               `json:"pumps"`
	Constraints  OperatingConstraints `json:"constraints"`
	// Options is the fully merged optimizer options object.
	Options json.RawMessage `json:"options"`
	// RetryCount is filled in by the worker from the SQS receive count;
	// producers send 0.
	RetryCount int `json:"retry_count"`
}
