// Package demand projects the next 24 hours of water demand from hourly
// history and calendar/weather adjustment factors.
package demand

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"aquaplan/internal/types"
)

var (
	ErrInvalidOptions = errors.New("demand: invalid options")
	ErrInvalidContext = errors.New("demand: invalid forecast context")
)

// TemperatureBand applies Factor when the temperature is strictly above Above.
type TemperatureBand struct {
	Above  float64 `json:"above"`
	Factor float64 `json:"factor"`
}

// WeekdayFactors is indexed by time.Weekday (Sunday first). It decodes only
// from a JSON array of exactly seven numbers so a partial override cannot
// leave weekdays at zero.
type WeekdayFactors [7]float64

// UnmarshalJSON implements json.Unmarshaler.
func (w *WeekdayFactors) UnmarshalJSON(data []byte) error {
	var factors []float64
	if err := json.Unmarshal(data, &factors); err != nil {
		return err
	}
	if len(factors) != len(w) {
		return fmt.Errorf("day_of_week_factors needs %d values (Sunday first), got %d", len(w), len(factors))
	}
	copy(w[:], factors)
	return nil
}

// Options holds every constant the forecaster uses.
type Options struct {
	// DefaultBaseDemand seeds the built-in pattern when history is shorter
	// than one day.
	DefaultBaseDemand float64 `json:"default_base_demand"`

	MorningPeakHours  []int   `json:"morning_peak_hours"`
	MorningPeakFactor float64 `json:"morning_peak_factor"`
	EveningPeakHours  []int   `json:"evening_peak_hours"`
	EveningPeakFactor float64 `json:"evening_peak_factor"`
	NightHours        []int   `json:"night_hours"`
	NightFactor       float64 `json:"night_factor"`

	DayOfWeekFactors WeekdayFactors `json:"day_of_week_factors"`
	HolidayFactor    float64        `json:"holiday_factor"`
	DrySeasonFactor  float64        `json:"dry_season_factor"`

	// HotBands are checked in order; the first match wins.
	HotBands      []TemperatureBand `json:"hot_bands"`
	ColdThreshold float64           `json:"cold_threshold"`
	ColdFactor    float64           `json:"cold_factor"`

	// JitterAmplitude is the half-width of the uniform per-hour noise.
	JitterAmplitude float64 `json:"jitter_amplitude"`
	PeakHourCount   int     `json:"peak_hour_count"`
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		DefaultBaseDemand: 100,
		MorningPeakHours:  []int{6, 7, 8},
		MorningPeakFactor: 1.3,
		EveningPeakHours:  []int{18, 19, 20},
		EveningPeakFactor: 1.4,
		NightHours:        []int{0, 1, 2, 3, 4, 5},
		NightFactor:       0.6,
		DayOfWeekFactors:  WeekdayFactors{0.90, 1.02, 1.03, 1.03, 1.02, 1.00, 0.92},
		HolidayFactor:     0.85,
		DrySeasonFactor:   1.15,
		HotBands: []TemperatureBand{
			{Above: 38, Factor: 1.25},
			{Above: 35, Factor: 1.15},
			{Above: 30, Factor: 1.08},
		},
		ColdThreshold:   20,
		ColdFactor:      0.92,
		JitterAmplitude: 0.05,
		PeakHourCount:   6,
	}
}

// namedFactor pairs an option name with its value so validation reports the
// first bad field in a stable order.
type namedFactor struct {
	name  string
	value float64
}

// Validate checks that every factor is usable. Multiplicative factors must
// be positive; a zero would silently flatten the forecast.
func (o Options) Validate() error {
	if !(o.DefaultBaseDemand >= 0) || math.IsInf(o.DefaultBaseDemand, 0) {
		return invalidOptions("default_base_demand must be a non-negative number")
	}

	factors := []namedFactor{
		{"morning_peak_factor", o.MorningPeakFactor},
		{"evening_peak_factor", o.EveningPeakFactor},
		{"night_factor", o.NightFactor},
	}
	for i, f := range o.DayOfWeekFactors {
		factors = append(factors, namedFactor{fmt.Sprintf("day_of_week_factors[%d]", i), f})
	}
	factors = append(factors,
		namedFactor{"holiday_factor", o.HolidayFactor},
		namedFactor{"dry_season_factor", o.DrySeasonFactor},
	)
	for i, b := range o.HotBands {
		factors = append(factors, namedFactor{fmt.Sprintf("hot_bands[%d].factor", i), b.Factor})
	}
	factors = append(factors, namedFactor{"cold_factor", o.ColdFactor})

	for _, f := range factors {
		if !(f.value > 0) || math.IsInf(f.value, 0) {
			return invalidOptions(f.name + " must be a positive number")
		}
	}
	for _, hours := range [][]int{o.MorningPeakHours, o.EveningPeakHours, o.NightHours} {
		for _, h := range hours {
			if h < 0 || h >= types.HoursPerDay {
				return invalidOptions(fmt.Sprintf("hour %d is outside [0, 23]", h))
			}
		}
	}
	if !(o.JitterAmplitude >= 0 && o.JitterAmplitude < 1) {
		return invalidOptions("jitter_amplitude must be within [0, 1)")
	}
	if o.PeakHourCount < 1 || o.PeakHourCount > types.HoursPerDay {
		return invalidOptions("peak_hour_count must be within [1, 24]")
	}
	return nil
}

func invalidOptions(reason string) error {
	return types.NewAppError(types.ErrCodeValidationOptions, reason, ErrInvalidOptions)
}

// hourBucketFactor returns the peak/night multiplier for hour h.
func (o Options) hourBucketFactor(h int) float64 {
	switch {
	case containsHour(o.MorningPeakHours, h):
		return o.MorningPeakFactor
	case containsHour(o.EveningPeakHours, h):
		return o.EveningPeakFactor
	case containsHour(o.NightHours, h):
		return o.NightFactor
	default:
		return 1
	}
}

func containsHour(hours []int, h int) bool {
	for _, x := range hours {
		if x == h {
			return true
		}
	}
	return false
}
