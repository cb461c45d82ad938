package optimizer

import (
	"fmt"
	"math"

	"aquaplan/internal/types"
)

// Schedule is a chromosome: active pump count per hour.
type Schedule [types.HoursPerDay]int

// Trajectory is the reservoir level at the start and after each hour.
type Trajectory [types.HoursPerDay + 1]float64

// PumpHours returns the sum of active pump counts.
func (s Schedule) PumpHours() int {
	n := 0
	for _, g := range s {
		n += g
	}
	return n
}

func (s Schedule) validate(maxActive int) error {
	for h, g := range s {
		if g < 0 || g > maxActive {
			return types.NewAppErrorWithDetails(types.ErrCodeValidationSchedule,
				fmt.Sprintf("hour %d has %d active pumps, allowed range is [0, %d]", h, g, maxActive),
				ErrInvalidSchedule, map[string]any{"hour": h, "value": g})
		}
	}
	return nil
}

type evaluation struct {
	cost        float64
	violation   float64
	powerFactor float64
	fitness     float64
}

// evaluator holds per-request constants so the hot loop only touches genes.
type evaluator struct {
	req      Request
	opts     Options
	meanEff  float64
	unitFlow float64
}

func newEvaluator(req Request, opts Options) *evaluator {
	var eff float64
	for _, p := range req.Pumps {
		eff += p.Efficiency
	}
	return &evaluator{
		req:      req,
		opts:     opts,
		meanEff:  eff / float64(len(req.Pumps)),
		unitFlow: req.Pumps[0].MaxFlow,
	}
}

func (e *evaluator) production(h, active int) float64 {
	return math.Min(float64(active)*e.unitFlow, e.req.Demand[h]*e.opts.DemandCoverage)
}

// levelDelta is the change in reservoir percentage for one hour.
func (e *evaluator) levelDelta(h, active int) float64 {
	return (e.production(h, active) - e.req.Demand[h]) / e.opts.ReservoirCapacity * 100
}

func (e *evaluator) evaluate(s Schedule) evaluation {
	c := e.req.Constraints
	level := e.req.InitialLevel
	var ev evaluation
	for h, g := range s {
		ev.cost += e.production(h, g) * e.meanEff * e.req.Tariffs[h]
		// Unclamped so overshoot keeps accumulating as violation.
		level += e.levelDelta(h, g)
		switch {
		case level < c.MinReservoirLevel:
			ev.violation += c.MinReservoirLevel - level
		case level > c.MaxReservoirLevel:
			ev.violation += level - c.MaxReservoirLevel
		}
	}

	pumpHours := s.PumpHours()
	avgActive := float64(pumpHours) / float64(types.HoursPerDay)
	ev.powerFactor = basePowerFactor + (avgActive/float64(len(e.req.Pumps)))*powerFactorSpan

	var phiPenalty float64
	if ev.powerFactor < c.MinPowerFactor {
		phiPenalty = (c.MinPowerFactor - ev.powerFactor) * phiPenaltyWeight
	}
	ev.fitness = ev.cost + violationWeight*ev.violation + phiPenalty + pumpHourWeight*float64(pumpHours)
	return ev
}

// trajectory returns the reported levels, clamped to [0, 100].
func (e *evaluator) trajectory(s Schedule) Trajectory {
	var t Trajectory
	level := e.req.InitialLevel
	t[0] = clampLevel(level)
	for h, g := range s {
		level += e.levelDelta(h, g)
		t[h+1] = clampLevel(level)
	}
	return t
}

// stability is the sum of absolute hour-to-hour level changes, unclamped.
func (e *evaluator) stability(s Schedule) float64 {
	var total float64
	for h, g := range s {
		total += math.Abs(e.levelDelta(h, g))
	}
	return total
}

// baseline is the cost of serving each hour's raw demand at its own tariff.
func (e *evaluator) baseline() float64 {
	var total float64
	for h, d := range e.req.Demand {
		total += d * e.meanEff * e.req.Tariffs[h]
	}
	return total
}

func clampLevel(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
