// Package anomaly scores pump sensor readings with a small isolation forest
// blended with a z-score signal and explains probable causes.
package anomaly

import (
	"errors"
	"fmt"

	"aquaplan/internal/types"
)

var ErrInvalidOptions = errors.New("anomaly: invalid options")

// Forest size limits per call.
const (
	MaxEstimators = 1000
	MaxSampleSize = 65536
)

// Options configures one detection batch.
type Options struct {
	NEstimators      int     `json:"n_estimators"`
	MaxSamples       int     `json:"max_samples"`
	AnomalyThreshold float64 `json:"anomaly_threshold"`
	// Contamination is the expected anomaly share; it only feeds the report
	// summary.
	Contamination float64 `json:"contamination"`
	// MinReadings below which the batch takes the insufficient-data path.
	MinReadings int `json:"min_readings"`
	// CriticalReservoirLevel is an absolute percentage, not a z-score.
	CriticalReservoirLevel float64 `json:"critical_reservoir_level"`
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		NEstimators:            50,
		MaxSamples:             256,
		AnomalyThreshold:       0.15,
		Contamination:          0.1,
		MinReadings:            10,
		CriticalReservoirLevel: 30,
	}
}

// Validate checks the options before any tree is built.
func (o Options) Validate() error {
	var reason string
	switch {
	case o.NEstimators < 1 || o.NEstimators > MaxEstimators:
		reason = fmt.Sprintf("n_estimators must be within [1, %d]", MaxEstimators)
	case o.MaxSamples < 2 || o.MaxSamples > MaxSampleSize:
		reason = fmt.Sprintf("max_samples must be within [2, %d]", MaxSampleSize)
	case !(o.AnomalyThreshold >= 0 && o.AnomalyThreshold <= 1):
		reason = "anomaly_threshold must be within [0, 1]"
	case !(o.Contamination >= 0 && o.Contamination <= 0.5):
		reason = "contamination must be within [0, 0.5]"
	case o.MinReadings < 2:
		reason = "min_readings must be at least 2"
	case !(o.CriticalReservoirLevel >= 0 && o.CriticalReservoirLevel <= 100):
		reason = "critical_reservoir_level must be within [0, 100]"
	default:
		return nil
	}
	return types.NewAppError(types.ErrCodeValidationOptions, reason, ErrInvalidOptions)
}
