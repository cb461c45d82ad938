package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"
	"time"

	"aquaplan/internal/anomaly"
	"aquaplan/internal/demand"
	"aquaplan/internal/optimizer"
	"aquaplan/internal/types"
)

// DefaultParetoSamples is used when a Pareto request omits samples.
const DefaultParetoSamples = 20

// ScheduleRequest is the input to schedule optimization. Tariffs may be
// omitted when a tariff feed is configured; Date then selects the feed day.
type ScheduleRequest struct {
	Demand       *types.Hourly               `json:"demand" validate:"required"`
	Tariffs      *types.Hourly               `json:"tariffs,omitempty"`
	Date         string                      `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	InitialLevel float64                     `json:"initial_level" validate:"gte=0,lte=100"`
	Pumps        []types.Pump                `json:"pumps" validate:"required,min=1,max=32,dive"`
	Constraints  *types.OperatingConstraints `json:"constraints,omitempty"`
	Seed         *uint64                     `json:"seed,omitempty"`
	// Options overrides individual optimizer defaults.
	Options json.RawMessage `json:"options,omitempty"`
}

// EvaluateRequest scores a caller-supplied schedule.
type EvaluateRequest struct {
	ScheduleRequest
	Schedule *optimizer.Schedule `json:"schedule" validate:"required"`
}

// ParetoRequest samples heuristic schedules for trade-off display.
type ParetoRequest struct {
	ScheduleRequest
	Samples int `json:"samples,omitempty" validate:"omitempty,min=1,max=1000"`
}

// AnomalyRequest is a batch of sensor readings to score.
type AnomalyRequest struct {
	Readings []types.SensorReading `json:"readings" validate:"required"`
	Seed     *uint64               `json:"seed,omitempty"`
	Options  json.RawMessage       `json:"options,omitempty"`
}

// ForecastRequest is the prediction context for the next day. DayOfWeek
// defaults to the weekday of tomorrow (UTC).
type ForecastRequest struct {
	History     []float64       `json:"history"`
	DayOfWeek   *time.Weekday   `json:"day_of_week,omitempty" validate:"omitempty,min=0,max=6"`
	Holiday     bool            `json:"holiday"`
	Temperature float64         `json:"temperature" validate:"finite"`
	Season      types.Season    `json:"season,omitempty" validate:"omitempty,oneof=dry wet"`
	Seed        *uint64         `json:"seed,omitempty"`
	Options     json.RawMessage `json:"options,omitempty"`
}

// AccuracyRequest compares a forecast with observed demand.
type AccuracyRequest struct {
	Predicted []float64 `json:"predicted" validate:"required"`
	Actual    []float64 `json:"actual" validate:"required"`
}

// PlanRequest drives the full day-ahead pipeline: forecast demand from
// history, then optimize against that forecast and score readings.
type PlanRequest struct {
	History      []float64                   `json:"history"`
	Date         string                      `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Holiday      bool                        `json:"holiday"`
	Temperature  float64                     `json:"temperature" validate:"finite"`
	Season       types.Season                `json:"season,omitempty" validate:"omitempty,oneof=dry wet"`
	Tariffs      *types.Hourly               `json:"tariffs,omitempty"`
	InitialLevel float64                     `json:"initial_level" validate:"gte=0,lte=100"`
	Pumps        []types.Pump                `json:"pumps" validate:"required,min=1,max=32,dive"`
	Constraints  *types.OperatingConstraints `json:"constraints,omitempty"`
	Readings     []types.SensorReading       `json:"readings,omitempty"`
	Seed         *uint64                     `json:"seed,omitempty"`

	OptimizerOptions json.RawMessage `json:"optimizer_options,omitempty"`
	AnomalyOptions   json.RawMessage `json:"anomaly_options,omitempty"`
	DemandOptions    json.RawMessage `json:"demand_options,omitempty"`
}

// mergeOptions decodes raw over base. Fields absent from raw keep the base
// value; unknown fields are rejected.
func mergeOptions[T any](base T, raw json.RawMessage) (T, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return base, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&base); err != nil {
		return base, types.NewAppError(types.ErrCodeValidationOptions, "options could not be decoded: "+err.Error(), err)
	}
	return base, nil
}

func (s *Service) optimizerOptions(raw json.RawMessage) (optimizer.Options, error) {
	opts, err := mergeOptions(s.defaults.Optimizer, raw)
	if err != nil {
		return opts, err
	}
	return opts, opts.Validate()
}

func (s *Service) anomalyOptions(raw json.RawMessage) (anomaly.Options, error) {
	opts, err := mergeOptions(s.defaults.Anomaly, raw)
	if err != nil {
		return opts, err
	}
	return opts, opts.Validate()
}

// demandOptions clones the default slices first; json decoding into an
// existing slice reuses its backing array.
func (s *Service) demandOptions(raw json.RawMessage) (demand.Options, error) {
	base := s.defaults.Demand
	base.MorningPeakHours = slices.Clone(base.MorningPeakHours)
	base.EveningPeakHours = slices.Clone(base.EveningPeakHours)
	base.NightHours = slices.Clone(base.NightHours)
	base.HotBands = slices.Clone(base.HotBands)

	opts, err := mergeOptions(base, raw)
	if err != nil {
		return opts, err
	}
	return opts, opts.Validate()
}

// optimizerRequest resolves tariffs and constraints for r.
func (s *Service) optimizerRequest(ctx context.Context, r ScheduleRequest) (optimizer.Request, error) {
	if r.Demand == nil {
		return optimizer.Request{}, missingField("demand")
	}
	day, err := s.targetDay(r.Date)
	if err != nil {
		return optimizer.Request{}, err
	}
	tariffs, err := s.resolveTariffs(ctx, r.Tariffs, day)
	if err != nil {
		return optimizer.Request{}, err
	}
	return optimizer.Request{
		Demand:       *r.Demand,
		Tariffs:      tariffs,
		InitialLevel: r.InitialLevel,
		Pumps:        r.Pumps,
		Constraints:  constraintsOrDefault(r.Constraints),
	}, nil
}

func constraintsOrDefault(c *types.OperatingConstraints) types.OperatingConstraints {
	if c == nil {
		return types.DefaultOperatingConstraints()
	}
	return *c
}

func missingField(name string) error {
	return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
		name+" is required", nil, map[string]any{"field": name})
}
