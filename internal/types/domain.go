package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInvalidPump          = errors.New("types: pump efficiency and max flow must be positive")
	ErrInvalidConstraints   = errors.New("types: operating constraints are inconsistent")
	ErrInvalidSensorReading = errors.New("types: sensor reading contains a non-finite value")
)

// Pump describes one pump in the station.
type Pump struct {
	ID           string  `json:"id" validate:"required,max=64"`
	RatedPowerKW float64 `json:"rated_power_kw" validate:"gte=0"`
	// Efficiency is energy per unit volume (kWh/m3).
	Efficiency float64 `json:"efficiency" validate:"gt=0"`
	// MaxFlow is volume per hour (m3/h).
	MaxFlow float64 `json:"max_flow" validate:"gt=0"`
}

// Validate checks the divisor/multiplier fields used by the optimizer.
func (p Pump) Validate() error {
	if !(p.Efficiency > 0) || !(p.MaxFlow > 0) || math.IsInf(p.Efficiency, 0) || math.IsInf(p.MaxFlow, 0) {
		return NewAppErrorWithDetails(ErrCodeValidationInvalidPump,
			fmt.Sprintf("pump %q must have positive efficiency and max flow", p.ID),
			ErrInvalidPump,
			map[string]any{"pump_id": p.ID, "efficiency": p.Efficiency, "max_flow": p.MaxFlow})
	}
	return nil
}

// OperatingConstraints bound an acceptable schedule.
type OperatingConstraints struct {
	MinReservoirLevel float64 `json:"min_reservoir_level"`
	MaxReservoirLevel float64 `json:"max_reservoir_level"`
	MinPowerFactor    float64 `json:"min_power_factor"`
	MaxActivePumps    int     `json:"max_active_pumps"`
}

// DefaultOperatingConstraints returns the constraints used when a caller
// supplies none.
func DefaultOperatingConstraints() OperatingConstraints {
	return OperatingConstraints{
		MinReservoirLevel: 20,
		MaxReservoirLevel: 95,
		MinPowerFactor:    0.92,
		MaxActivePumps:    3,
	}
}

// Validate enforces 0 <= min < max <= 100, 0 < minPowerFactor <= 1 and
// maxActivePumps >= 1.
func (c OperatingConstraints) Validate() error {
	var reason string
	switch {
	case !(c.MinReservoirLevel >= 0):
		reason = "min_reservoir_level must be >= 0"
	case !(c.MinReservoirLevel < c.MaxReservoirLevel):
		reason = "min_reservoir_level must be below max_reservoir_level"
	case !(c.MaxReservoirLevel <= 100):
		reason = "max_reservoir_level must be <= 100"
	case !(c.MinPowerFactor > 0 && c.MinPowerFactor <= 1):
		reason = "min_power_factor must be in (0, 1]"
	case c.MaxActivePumps < 1:
		reason = "max_active_pumps must be >= 1"
	default:
		return nil
	}
	return NewAppError(ErrCodeValidationConstraints, reason, ErrInvalidConstraints)
}

// SensorReading is one pump telemetry sample. Optional channels are nil when
// the sensor was not fitted.
type SensorReading struct {
	Timestamp       time.Time `json:"timestamp"`
	EnergyPerVolume float64   `json:"energy_per_volume"`
	Flow            float64   `json:"flow"`
	ReservoirLevel  float64   `json:"reservoir_level"`
	Vibration       *float64  `json:"vibration,omitempty"`
	Temperature     *float64  `json:"temperature,omitempty"`
	Pressure        *float64  `json:"pressure,omitempty"`
}

// Feature returns the value of one of the three scored channels.
func (r SensorReading) Feature(f Feature) float64 {
	switch f {
	case FeatureFlow:
		return r.Flow
	case FeatureReservoirLevel:
		return r.ReservoirLevel
	default:
		return r.EnergyPerVolume
	}
}

// Validate rejects NaN and infinite channel values.
func (r SensorReading) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"energy_per_volume", r.EnergyPerVolume},
		{"flow", r.Flow},
		{"reservoir_level", r.ReservoirLevel},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return NewAppErrorWithDetails(ErrCodeValidationSensorReading,
				fmt.Sprintf("%s is not a finite number", f.name), ErrInvalidSensorReading,
				map[string]any{"field": f.name})
		}
	}
	return nil
}

// Run is a persisted engine invocation. Request and Result hold the JSON
// payloads exactly as served over the API.
type Run struct {
	ID          string          `json:"id" db:"id"`
	Kind        RunKind         `json:"kind" db:"kind"`
	Status      RunStatus       `json:"status" db:"status"`
	Seed        uint64          `json:"seed" db:"seed"`
	Request     json.RawMessage `json:"request,omitempty" db:"request"`
	Result      json.RawMessage `json:"result,omitempty" db:"result"`
	Error       string          `json:"error,omitempty" db:"error"`
	DurationMS  int64           `json:"duration_ms" db:"duration_ms"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}
