package optimizer

import (
	"cmp"
	"math/rand/v2"
	"slices"

	"aquaplan/internal/rng"
	"aquaplan/internal/types"
)

const tournamentSize = 3

// Result is the best schedule found and its derived figures.
type Result struct {
	Schedule       Schedule   `json:"schedule"`
	Cost           float64    `json:"cost"`
	BaselineCost   float64    `json:"baseline_cost"`
	Savings        float64    `json:"savings"`
	SavingsPercent float64    `json:"savings_percent"`
	PowerFactor    float64    `json:"power_factor"`
	Violation      float64    `json:"reservoir_violation"`
	Fitness        float64    `json:"fitness"`
	PumpHours      int        `json:"pump_hours"`
	Trajectory     Trajectory `json:"reservoir_trajectory"`
	// History holds the best fitness after each generation.
	History []float64 `json:"history,omitempty"`
}

type candidate struct {
	genes Schedule
	eval  evaluation
}

// Optimize runs the evolutionary search. A nil r uses the default seed.
func Optimize(req Request, opts Options, r *rand.Rand) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	r = rng.OrDefault(r)
	e := newEvaluator(req, opts)
	maxActive := req.Constraints.MaxActivePumps
	size := opts.PopulationSize

	pop := make([]candidate, size)
	for i := range pop {
		pop[i].genes = randomSchedule(r, maxActive)
		pop[i].eval = e.evaluate(pop[i].genes)
	}
	sortByFitness(pop)

	history := make([]float64, 0, opts.Generations)
	merged := make([]candidate, 0, 2*size)
	for gen := 0; gen < opts.Generations; gen++ {
		offspring := breed(pop, opts, r)
		mutate(offspring, opts, maxActive, r)
		for i := range offspring {
			offspring[i].eval = e.evaluate(offspring[i].genes)
		}

		merged = append(merged[:0], pop...)
		merged = append(merged, offspring...)
		sortByFitness(merged)
		pop = append(pop[:0], merged[:size]...)
		history = append(history, pop[0].eval.fitness)
	}

	res := e.result(pop[0])
	res.History = history
	return res, nil
}

// Evaluate scores a caller-supplied schedule with the same model the search
// uses.
func Evaluate(req Request, s Schedule, opts Options) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := s.validate(req.Constraints.MaxActivePumps); err != nil {
		return nil, err
	}
	e := newEvaluator(req, opts)
	return e.result(candidate{genes: s, eval: e.evaluate(s)}), nil
}

func (e *evaluator) result(best candidate) *Result {
	baseline := e.baseline()
	savings := baseline - best.eval.cost
	var pct float64
	if baseline > 0 {
		pct = savings / baseline * 100
	}
	return &Result{
		Schedule:       best.genes,
		Cost:           best.eval.cost,
		BaselineCost:   baseline,
		Savings:        savings,
		SavingsPercent: pct,
		PowerFactor:    best.eval.powerFactor,
		Violation:      best.eval.violation,
		Fitness:        best.eval.fitness,
		PumpHours:      best.genes.PumpHours(),
		Trajectory:     e.trajectory(best.genes),
	}
}

// breed fills an offspring pool of population size by tournament selection
// and single-point crossover.
func breed(pop []candidate, opts Options, r *rand.Rand) []candidate {
	size := len(pop)
	offspring := make([]candidate, 0, size)
	for len(offspring) < size {
		p1 := tournament(pop, r)
		p2 := tournament(pop, r)
		c1, c2 := p1.genes, p2.genes
		if r.Float64() < opts.CrossoverRate {
			point := 1 + r.IntN(types.HoursPerDay-1)
			for h := point; h < types.HoursPerDay; h++ {
				c1[h], c2[h] = p2.genes[h], p1.genes[h]
			}
		}
		offspring = append(offspring, candidate{genes: c1})
		if len(offspring) < size {
			offspring = append(offspring, candidate{genes: c2})
		}
	}
	return offspring
}

// mutate resets one random gene of each offspring from index EliteCount on,
// with probability MutationRate. Lower indices are left untouched.
func mutate(offspring []candidate, opts Options, maxActive int, r *rand.Rand) {
	for i := opts.EliteCount; i < len(offspring); i++ {
		if r.Float64() < opts.MutationRate {
			offspring[i].genes[r.IntN(types.HoursPerDay)] = r.IntN(maxActive + 1)
		}
	}
}

// tournament draws tournamentSize entrants with replacement; lowest fitness wins.
func tournament(pop []candidate, r *rand.Rand) *candidate {
	best := &pop[r.IntN(len(pop))]
	for i := 1; i < tournamentSize; i++ {
		c := &pop[r.IntN(len(pop))]
		if c.eval.fitness < best.eval.fitness {
			best = c
		}
	}
	return best
}

func randomSchedule(r *rand.Rand, maxActive int) Schedule {
	var s Schedule
	for h := range s {
		s[h] = r.IntN(maxActive + 1)
	}
	return s
}

func sortByFitness(pop []candidate) {
	slices.SortStableFunc(pop, func(a, b candidate) int {
		return cmp.Compare(a.eval.fitness, b.eval.fitness)
	})
}
