package planner

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"aquaplan/internal/anomaly"
	"aquaplan/internal/demand"
	"aquaplan/internal/optimizer"
	"aquaplan/internal/rng"
	"aquaplan/internal/types"
)

// Stream ids for deriving per-engine seeds from a plan seed.
const (
	streamForecast uint64 = iota + 1
	streamOptimize
	streamAnomaly
)

// PlanResult is the day-ahead plan.
type PlanResult struct {
	Date      string                 `json:"date"`
	Forecast  *demand.HourlyForecast `json:"forecast"`
	Tariffs   types.Hourly           `json:"tariffs"`
	Schedule  *optimizer.Result      `json:"schedule"`
	Anomalies *anomaly.Report        `json:"anomalies,omitempty"`
}

// Plan forecasts demand for the target day, then optimizes the pump schedule
// against that forecast while scoring any supplied readings in parallel.
func (s *Service) Plan(ctx context.Context, r PlanRequest) (*PlanResult, RunInfo, error) {
	seed := s.resolveSeed(r.Seed)
	r.Seed = &seed
	return execute(ctx, s, types.RunKindPlan, &seed, &r, func() (*PlanResult, error) {
		return s.plan(ctx, &r, seed)
	})
}

func (s *Service) plan(ctx context.Context, r *PlanRequest, seed uint64) (*PlanResult, error) {
	day, err := s.targetDay(r.Date)
	if err != nil {
		return nil, err
	}
	demandOpts, err := s.demandOptions(r.DemandOptions)
	if err != nil {
		return nil, err
	}
	optOpts, err := s.optimizerOptions(r.OptimizerOptions)
	if err != nil {
		return nil, err
	}
	anomalyOpts, err := s.anomalyOptions(r.AnomalyOptions)
	if err != nil {
		return nil, err
	}

	forecast, err := demand.Forecast(demand.Input{
		History:     r.History,
		DayOfWeek:   day.Weekday(),
		Holiday:     r.Holiday,
		Temperature: r.Temperature,
		Season:      r.Season,
	}, demandOpts, rng.New(rng.Derive(seed, streamForecast)))
	if err != nil {
		return nil, err
	}

	tariffs, err := s.resolveTariffs(ctx, r.Tariffs, day)
	if err != nil {
		return nil, err
	}
	r.Tariffs = &tariffs

	req := optimizer.Request{
		Demand:       forecast.Hourly,
		Tariffs:      tariffs,
		InitialLevel: r.InitialLevel,
		Pumps:        r.Pumps,
		Constraints:  constraintsOrDefault(r.Constraints),
	}

	var (
		schedule *optimizer.Result
		report   *anomaly.Report
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		res, err := optimizer.Optimize(req, optOpts, rng.New(rng.Derive(seed, streamOptimize)))
		schedule = res
		return err
	})
	if len(r.Readings) > 0 {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rep, err := anomaly.Detect(r.Readings, anomalyOpts, rng.New(rng.Derive(seed, streamAnomaly)))
			report = rep
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &PlanResult{
		Date:      day.Format(time.DateOnly),
		Forecast:  forecast,
		Tariffs:   tariffs,
		Schedule:  schedule,
		Anomalies: report,
	}, nil
}
