package planner

import (
	"context"

	"aquaplan/internal/anomaly"
	"aquaplan/internal/demand"
	"aquaplan/internal/optimizer"
	"aquaplan/internal/rng"
	"aquaplan/internal/types"
)

// Optimize runs the evolutionary search. The stored request carries the
// resolved tariffs and seed so the run can be replayed.
func (s *Service) Optimize(ctx context.Context, r ScheduleRequest) (*optimizer.Result, RunInfo, error) {
	seed := s.resolveSeed(r.Seed)
	r.Seed = &seed
	return execute(ctx, s, types.RunKindOptimize, &seed, &r, func() (*optimizer.Result, error) {
		req, err := s.optimizerRequest(ctx, r)
		if err != nil {
			return nil, err
		}
		r.Tariffs = &req.Tariffs
		opts, err := s.optimizerOptions(r.Options)
		if err != nil {
			return nil, err
		}
		return optimizer.Optimize(req, opts, rng.New(seed))
	})
}

// Evaluate scores r.Schedule with the optimizer's cost model. It is
// deterministic and carries no seed.
func (s *Service) Evaluate(ctx context.Context, r EvaluateRequest) (*optimizer.Result, RunInfo, error) {
	return execute(ctx, s, types.RunKindEvaluate, nil, &r, func() (*optimizer.Result, error) {
		if r.Schedule == nil {
			return nil, missingField("schedule")
		}
		req, err := s.optimizerRequest(ctx, r.ScheduleRequest)
		if err != nil {
			return nil, err
		}
		r.Tariffs = &req.Tariffs
		opts, err := s.optimizerOptions(r.Options)
		if err != nil {
			return nil, err
		}
		return optimizer.Evaluate(req, *r.Schedule, opts)
	})
}

// ParetoFront samples heuristic schedules across the off-peak bias range.
func (s *Service) ParetoFront(ctx context.Context, r ParetoRequest) ([]optimizer.ParetoSample, RunInfo, error) {
	seed := s.resolveSeed(r.Seed)
	r.Seed = &seed
	if r.Samples == 0 {
		r.Samples = DefaultParetoSamples
	}
	return execute(ctx, s, types.RunKindPareto, &seed, &r, func() ([]optimizer.ParetoSample, error) {
		req, err := s.optimizerRequest(ctx, r.ScheduleRequest)
		if err != nil {
			return nil, err
		}
		r.Tariffs = &req.Tariffs
		opts, err := s.optimizerOptions(r.Options)
		if err != nil {
			return nil, err
		}
		return optimizer.ParetoFront(req, r.Samples, opts, rng.New(seed))
	})
}

// Detect scores a batch of sensor readings.
func (s *Service) Detect(ctx context.Context, r AnomalyRequest) (*anomaly.Report, RunInfo, error) {
	seed := s.resolveSeed(r.Seed)
	r.Seed = &seed
	return execute(ctx, s, types.RunKindAnomaly, &seed, &r, func() (*anomaly.Report, error) {
		opts, err := s.anomalyOptions(r.Options)
		if err != nil {
			return nil, err
		}
		return anomaly.Detect(r.Readings, opts, rng.New(seed))
	})
}

// Forecast projects the next day's hourly demand.
func (s *Service) Forecast(ctx context.Context, r ForecastRequest) (*demand.HourlyForecast, RunInfo, error) {
	seed := s.resolveSeed(r.Seed)
	r.Seed = &seed
	if r.DayOfWeek == nil {
		day := s.now().UTC().AddDate(0, 0, 1).Weekday()
		r.DayOfWeek = &day
	}
	return execute(ctx, s, types.RunKindForecast, &seed, &r, func() (*demand.HourlyForecast, error) {
		opts, err := s.demandOptions(r.Options)
		if err != nil {
			return nil, err
		}
		in := demand.Input{
			History:     r.History,
			DayOfWeek:   *r.DayOfWeek,
			Holiday:     r.Holiday,
			Temperature: r.Temperature,
			Season:      r.Season,
		}
		return demand.Forecast(in, opts, rng.New(seed))
	})
}

// Accuracy compares predicted and actual demand. Mismatched or empty series
// yield zero metrics and a warning rather than an error.
func (s *Service) Accuracy(ctx context.Context, r AccuracyRequest) (demand.Accuracy, RunInfo, error) {
	acc, info, err := execute(ctx, s, types.RunKindAccuracy, nil, &r, func() (demand.Accuracy, error) {
		return demand.CalculateAccuracy(r.Predicted, r.Actual), nil
	})
	if err == nil && (len(r.Actual) == 0 || len(r.Predicted) != len(r.Actual)) {
		info.Warnings = append(info.Warnings, "predicted and actual must be non-empty and of equal length; metrics are zero")
	}
	return acc, info, err
}
