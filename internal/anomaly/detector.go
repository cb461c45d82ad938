package anomaly

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"aquaplan/internal/rng"
	"aquaplan/internal/types"
)

// Result is the verdict for one reading.
type Result struct {
	Index         int        `json:"index"`
	Timestamp     time.Time  `json:"timestamp"`
	Score         float64    `json:"score"`
	IsAnomaly     bool       `json:"is_anomaly"`
	ProbableCause string     `json:"probable_cause,omitempty"`
	Causes        []string   `json:"causes,omitempty"`
	Confidence    float64    `json:"confidence"`
	Deviations    Deviations `json:"deviations"`
}

// Summary aggregates a batch.
type Summary struct {
	Total             int  `json:"total"`
	Flagged           int  `json:"flagged"`
	ExpectedAnomalies int  `json:"expected_anomalies"`
	InsufficientData  bool `json:"insufficient_data"`
	Trees             int  `json:"trees"`
	SampleSize        int  `json:"sample_size"`
}

// Report holds one Result per reading, in input order.
type Report struct {
	Results  []Result `json:"results"`
	Baseline Baseline `json:"baseline"`
	Summary  Summary  `json:"summary"`
}

// Detect scores readings. Batches smaller than opts.MinReadings are not an
// error: every reading scores 0 with cause "insufficient data". A nil r uses
// the default seed.
func Detect(readings []types.SensorReading, opts Options, r *rand.Rand) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	for i, rd := range readings {
		if err := rd.Validate(); err != nil {
			var appErr *types.AppError
			if errors.As(err, &appErr) {
				return nil, appErr.WithDetails(map[string]any{"index": i})
			}
			return nil, fmt.Errorf("reading %d: %w", i, err)
		}
	}

	n := len(readings)
	report := &Report{
		Results: make([]Result, n),
		Summary: Summary{
			Total:             n,
			ExpectedAnomalies: int(math.Ceil(opts.Contamination * float64(n))),
		},
	}

	if n < opts.MinReadings {
		report.Summary.InsufficientData = true
		for i, rd := range readings {
			report.Results[i] = Result{
				Index:         i,
				Timestamp:     rd.Timestamp,
				ProbableCause: CauseInsufficientData,
			}
		}
		return report, nil
	}

	r = rng.OrDefault(r)
	baseline := ComputeBaseline(readings)
	report.Baseline = baseline

	points := make([]point, n)
	for i, rd := range readings {
		points[i] = point{rd.EnergyPerVolume, rd.Flow, rd.ReservoirLevel}
	}

	// Every tree sees the same leading readings rather than a random subsample.
	sampleSize := min(opts.MaxSamples, n)
	f := newForest(points[:sampleSize], opts.NEstimators, r)
	report.Summary.Trees = opts.NEstimators
	report.Summary.SampleSize = sampleSize

	norm := math.Ceil(math.Log2(float64(opts.MaxSamples)))
	for i, rd := range readings {
		dev := baseline.deviations(rd)
		structural := 1 - f.averagePathLength(points[i])/norm
		statistical := math.Min(1, dev.EnergyPerVolume/3)
		score := round3(clamp01(0.6*structural + 0.4*statistical))

		res := Result{
			Index:      i,
			Timestamp:  rd.Timestamp,
			Score:      score,
			IsAnomaly:  score > opts.AnomalyThreshold,
			Confidence: math.Min(1, score*5),
			Deviations: dev,
		}
		if res.IsAnomaly {
			res.Causes = explain(dev, rd.ReservoirLevel, baseline, opts)
			res.ProbableCause = joinCauses(res.Causes)
			report.Summary.Flagged++
		}
		report.Results[i] = res
	}
	return report, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
