package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// HoursPerDay is the fixed length of every hourly series handled by the engines.
const HoursPerDay = 24

// Sentinel errors for malformed hourly series. They are wrapped in *AppError by
// NewHourly so callers can match with errors.Is.
var (
	ErrHourlyLength  = errors.New("types: hourly series must contain exactly 24 values")
	ErrNegativeValue = errors.New("types: hourly value must be non-negative")
	ErrNonFinite     = errors.New("types: hourly value must be finite")
)

// Hourly is a 24-slot series indexed by hour of day (0..23). Tariff schedules
// and demand profiles both use it.
type Hourly [HoursPerDay]float64

// NewHourly copies values into an Hourly. Any length other than 24 is
// rejected; nothing is truncated or padded.
func NewHourly(values []float64) (Hourly, error) {
	var h Hourly
	if len(values) != HoursPerDay {
		return h, NewAppErrorWithDetails(
			ErrCodeValidationHourlyLength,
			fmt.Sprintf("expected %d hourly values, got %d", HoursPerDay, len(values)),
			ErrHourlyLength,
			map[string]any{"length": len(values)},
		)
	}
	copy(h[:], values)
	if err := h.Validate(); err != nil {
		return Hourly{}, err
	}
	return h, nil
}

// Validate checks that every slot is finite and non-negative.
func (h Hourly) Validate() error {
	for i, v := range h {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewAppErrorWithDetails(ErrCodeValidationNonFinite,
				fmt.Sprintf("hour %d is not a finite number", i), ErrNonFinite,
				map[string]any{"hour": i})
		}
		if v < 0 {
			return NewAppErrorWithDetails(ErrCodeValidationNegativeValue,
				fmt.Sprintf("hour %d is negative (%g)", i, v), ErrNegativeValue,
				map[string]any{"hour": i, "value": v})
		}
	}
	return nil
}

// Sum returns the total over all 24 hours.
func (h Hourly) Sum() float64 {
	var s float64
	for _, v := range h {
		s += v
	}
	return s
}

// Slice returns a copy of the series as a slice.
func (h Hourly) Slice() []float64 {
	out := make([]float64, HoursPerDay)
	copy(out, h[:])
	return out
}

// UnmarshalJSON decodes a JSON array through NewHourly. encoding/json would
// otherwise zero-fill short arrays and drop extra elements silently.
func (h *Hourly) UnmarshalJSON(data []byte) error {
	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return NewAppError(ErrCodeValidationInvalidRequest, "hourly series must be an array of numbers", err)
	}
	parsed, err := NewHourly(values)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
