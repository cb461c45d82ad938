// Package optimizer searches for a 24-hour pump activation schedule that
// minimizes energy cost under reservoir and power-factor constraints.
package optimizer

import (
	"errors"
	"fmt"

	"aquaplan/internal/types"
)

var (
	ErrNoPumps             = errors.New("optimizer: at least one pump is required")
	ErrInvalidOptions      = errors.New("optimizer: invalid options")
	ErrInvalidSchedule     = errors.New("optimizer: schedule gene out of range")
	ErrInvalidInitialLevel = errors.New("optimizer: initial reservoir level must be within [0, 100]")
	ErrInvalidSampleCount  = errors.New("optimizer: pareto sample count must be positive")
)

// Fitness weights.
const (
	violationWeight  = 1000.0
	phiPenaltyWeight = 100000.0
	pumpHourWeight   = 10.0

	basePowerFactor = 0.85
	powerFactorSpan = 0.15
)

// Search size limits. They bound the CPU a single call can consume; the
// search never checks for cancellation.
const (
	MaxPopulationSize = 5000
	MaxGenerations    = 5000
)

// Options configures the evolutionary search. Zero values are not defaults;
// start from DefaultOptions and override.
type Options struct {
	PopulationSize int     `json:"population_size"`
	Generations    int     `json:"generations"`
	CrossoverRate  float64 `json:"crossover_rate"`
	MutationRate   float64 `json:"mutation_rate"`
	EliteCount     int     `json:"elite_count"`

	// ReservoirCapacity converts net volume into percentage points of level.
	ReservoirCapacity float64 `json:"reservoir_capacity"`
	// DemandCoverage caps hourly production at demand times this factor.
	DemandCoverage float64 `json:"demand_coverage"`
	// OffPeakTariffThreshold marks hours whose tariff is below it as off-peak
	// for Pareto sampling.
	OffPeakTariffThreshold float64 `json:"off_peak_tariff_threshold"`
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		PopulationSize:         50,
		Generations:            20,
		CrossoverRate:          0.9,
		MutationRate:           0.1,
		EliteCount:             5,
		ReservoirCapacity:      1000,
		DemandCoverage:         1.2,
		OffPeakTariffThreshold: 0.5,
	}
}

// Validate checks that the options describe a runnable search.
func (o Options) Validate() error {
	var reason string
	switch {
	case o.PopulationSize < 2 || o.PopulationSize > MaxPopulationSize:
		reason = fmt.Sprintf("population_size must be within [2, %d]", MaxPopulationSize)
	case o.Generations < 0 || o.Generations > MaxGenerations:
		reason = fmt.Sprintf("generations must be within [0, %d]", MaxGenerations)
	case !(o.CrossoverRate >= 0 && o.CrossoverRate <= 1):
		reason = "crossover_rate must be within [0, 1]"
	case !(o.MutationRate >= 0 && o.MutationRate <= 1):
		reason = "mutation_rate must be within [0, 1]"
	case o.EliteCount < 0 || o.EliteCount > o.PopulationSize:
		reason = "elite_count must be within [0, population_size]"
	case !(o.ReservoirCapacity > 0):
		reason = "reservoir_capacity must be positive"
	case !(o.DemandCoverage > 0):
		reason = "demand_coverage must be positive"
	case !(o.OffPeakTariffThreshold >= 0):
		reason = "off_peak_tariff_threshold must be non-negative"
	default:
		return nil
	}
	return types.NewAppError(types.ErrCodeValidationOptions, reason, ErrInvalidOptions)
}

// Request carries the inputs of one optimization.
type Request struct {
	Demand       types.Hourly
	Tariffs      types.Hourly
	InitialLevel float64
	Pumps        []types.Pump
	Constraints  types.OperatingConstraints
}

// Validate fails fast on anything the fitness model cannot evaluate.
func (r Request) Validate() error {
	if err := r.Demand.Validate(); err != nil {
		return err
	}
	if err := r.Tariffs.Validate(); err != nil {
		return err
	}
	if !(r.InitialLevel >= 0 && r.InitialLevel <= 100) {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidRequest,
			fmt.Sprintf("initial reservoir level %g is outside [0, 100]", r.InitialLevel),
			ErrInvalidInitialLevel, map[string]any{"initial_level": r.InitialLevel})
	}
	if len(r.Pumps) == 0 {
		return types.NewAppError(types.ErrCodeValidationNoPumps, "at least one pump is required", ErrNoPumps)
	}
	for _, p := range r.Pumps {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return r.Constraints.Validate()
}
