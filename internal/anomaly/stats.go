package anomaly

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"aquaplan/internal/types"
)

// FeatureStats is the batch-wide population mean and standard deviation of
// one channel.
type FeatureStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// ZScore returns |v-mean|/std, or 0 when the channel is constant.
func (s FeatureStats) ZScore(v float64) float64 {
	if s.StdDev == 0 || math.IsNaN(s.StdDev) {
		return 0
	}
	return math.Abs(v-s.Mean) / s.StdDev
}

// Baseline holds the statistics of the three scored channels.
type Baseline struct {
	EnergyPerVolume FeatureStats `json:"energy_per_volume"`
	Flow            FeatureStats `json:"flow"`
	ReservoirLevel  FeatureStats `json:"reservoir_level"`
}

// Deviations are absolute z-scores of one reading against the baseline.
type Deviations struct {
	EnergyPerVolume float64 `json:"energy_per_volume"`
	Flow            float64 `json:"flow"`
	ReservoirLevel  float64 `json:"reservoir_level"`
}

// ComputeBaseline computes statistics over the whole batch, not a window.
func ComputeBaseline(readings []types.SensorReading) Baseline {
	if len(readings) == 0 {
		return Baseline{}
	}
	energy := make([]float64, len(readings))
	flow := make([]float64, len(readings))
	level := make([]float64, len(readings))
	for i, r := range readings {
		energy[i] = r.EnergyPerVolume
		flow[i] = r.Flow
		level[i] = r.ReservoirLevel
	}
	return Baseline{
		EnergyPerVolume: featureStats(energy),
		Flow:            featureStats(flow),
		ReservoirLevel:  featureStats(level),
	}
}

func featureStats(x []float64) FeatureStats {
	mean, std := stat.PopMeanStdDev(x, nil)
	return FeatureStats{Mean: mean, StdDev: std}
}

func (b Baseline) deviations(r types.SensorReading) Deviations {
	return Deviations{
		EnergyPerVolume: b.EnergyPerVolume.ZScore(r.EnergyPerVolume),
		Flow:            b.Flow.ZScore(r.Flow),
		ReservoirLevel:  b.ReservoirLevel.ZScore(r.ReservoirLevel),
	}
}
