package demand

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const withinTolerance = 0.05

// Accuracy compares a forecast with observed demand. MAPE and Within5Percent
// are percentages.
type Accuracy struct {
	MAPE           float64 `json:"mape"`
	RMSE           float64 `json:"rmse"`
	Within5Percent float64 `json:"within_5_percent"`
}

// CalculateAccuracy returns the zero Accuracy when the series are empty or of
// different lengths. Points with actual 0 add nothing to MAPE and count as
// within tolerance only when the prediction is also 0.
func CalculateAccuracy(predicted, actual []float64) Accuracy {
	n := len(actual)
	if n == 0 || len(predicted) != n {
		return Accuracy{}
	}

	var ape float64
	within := 0
	for i, a := range actual {
		diff := math.Abs(a - predicted[i])
		if a == 0 {
			if predicted[i] == 0 {
				within++
			}
			continue
		}
		rel := diff / math.Abs(a)
		ape += rel
		if rel <= withinTolerance {
			within++
		}
	}

	fn := float64(n)
	return Accuracy{
		MAPE:           ape / fn * 100,
		RMSE:           floats.Distance(predicted, actual, 2) / math.Sqrt(fn),
		Within5Percent: float64(within) / fn * 100,
	}
}
