package optimizer

import (
	"cmp"
	"fmt"
	"math/rand/v2"
	"slices"

	"aquaplan/internal/rng"
	"aquaplan/internal/types"
)

// ParetoSample is one heuristic schedule scored on cost and reservoir
// stability.
type ParetoSample struct {
	Cost        float64  `json:"cost"`
	Stability   float64  `json:"stability"`
	OffPeakBias float64  `json:"off_peak_bias"`
	Schedule    Schedule `json:"schedule"`
}

// ParetoFront samples schedules along a sweeping off-peak bias and returns
// them sorted by ascending cost. Off-peak hours always run every allowed
// pump; other hours drop one pump with probability equal to the bias. A
// single sample uses bias 0. The result does not feed the search.
func ParetoFront(req Request, samples int, opts Options, r *rand.Rand) ([]ParetoSample, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if samples < 1 {
		return nil, types.NewAppError(types.ErrCodeValidationOptions,
			fmt.Sprintf("samples must be at least 1, got %d", samples), ErrInvalidSampleCount)
	}
	r = rng.OrDefault(r)
	e := newEvaluator(req, opts)
	maxActive := req.Constraints.MaxActivePumps
	reduced := max(maxActive-1, 0)

	out := make([]ParetoSample, 0, samples)
	for i := 0; i < samples; i++ {
		var bias float64
		if samples > 1 {
			bias = float64(i) / float64(samples-1)
		}
		var s Schedule
		for h := range s {
			s[h] = maxActive
			if req.Tariffs[h] >= opts.OffPeakTariffThreshold && r.Float64() < bias {
				s[h] = reduced
			}
		}
		out = append(out, ParetoSample{
			Cost:        e.evaluate(s).cost,
			Stability:   e.stability(s),
			OffPeakBias: bias,
			Schedule:    s,
		})
	}

	slices.SortStableFunc(out, func(a, b ParetoSample) int {
		return cmp.Compare(a.Cost, b.Cost)
	})
	return out, nil
}
