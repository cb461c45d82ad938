package demand

import (
	"time"

	"aquaplan/internal/types"
)

// Factors are the multiplicative adjustments applied to the daily pattern.
type Factors struct {
	DayOfWeek   float64 `json:"day_of_week"`
	Holiday     float64 `json:"holiday"`
	Temperature float64 `json:"temperature"`
	Seasonal    float64 `json:"seasonal"`
}

// Combined returns the product of all factors.
func (f Factors) Combined() float64 {
	return f.DayOfWeek * f.Holiday * f.Temperature * f.Seasonal
}

func computeFactors(day time.Weekday, holiday bool, temperature float64, season types.Season, opts Options) Factors {
	f := Factors{
		DayOfWeek:   opts.DayOfWeekFactors[day],
		Holiday:     1,
		Temperature: temperatureFactor(temperature, opts),
		Seasonal:    1,
	}
	if holiday {
		f.Holiday = opts.HolidayFactor
	}
	if season == types.SeasonDry {
		f.Seasonal = opts.DrySeasonFactor
	}
	return f
}

func temperatureFactor(t float64, opts Options) float64 {
	for _, b := range opts.HotBands {
		if t > b.Above {
			return b.Factor
		}
	}
	if t < opts.ColdThreshold {
		return opts.ColdFactor
	}
	return 1
}
