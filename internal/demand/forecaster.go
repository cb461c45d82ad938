package demand

import (
	"cmp"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"aquaplan/internal/rng"
	"aquaplan/internal/types"
)

// Confidence rule: a base value plus a bonus for long history, minus a
// holiday penalty.
const (
	fullWeekPoints = 168
	threeDayPoints = 72
	baseConfidence = 0.70
	weekBonus      = 0.15
	threeDayBonus  = 0.08
	holidayPenalty = 0.10
	minConfidence  = 0.5
	maxConfidence  = 0.95
)

// Input is the prediction context.
type Input struct {
	// History is hourly consumption, oldest first. A week (168 points) gives
	// the best confidence.
	History     []float64
	DayOfWeek   time.Weekday
	Holiday     bool
	Temperature float64
	Season      types.Season
}

// Validate rejects values the pattern and factors cannot use.
func (in Input) Validate() error {
	for i, v := range in.History {
		if !(v >= 0) || math.IsInf(v, 0) {
			return types.NewAppErrorWithDetails(types.ErrCodeValidationForecastContext,
				fmt.Sprintf("history[%d] must be a finite non-negative number", i),
				ErrInvalidContext, map[string]any{"index": i})
		}
	}
	if in.DayOfWeek < time.Sunday || in.DayOfWeek > time.Saturday {
		return types.NewAppError(types.ErrCodeValidationForecastContext,
			fmt.Sprintf("day of week %d is outside [0, 6]", in.DayOfWeek), ErrInvalidContext)
	}
	if math.IsNaN(in.Temperature) || math.IsInf(in.Temperature, 0) {
		return types.NewAppError(types.ErrCodeValidationForecastContext,
			"temperature must be a finite number", ErrInvalidContext)
	}
	switch in.Season {
	case "", types.SeasonDry, types.SeasonWet:
	default:
		return types.NewAppError(types.ErrCodeValidationForecastContext,
			fmt.Sprintf("unknown season %q", in.Season), ErrInvalidContext)
	}
	return nil
}

// HourlyForecast is the projected next day.
type HourlyForecast struct {
	Hourly     types.Hourly `json:"hourly"`
	DailyTotal float64      `json:"daily_total"`
	Confidence float64      `json:"confidence"`
	PeakHours  []int        `json:"peak_hours"`
	Factors    Factors      `json:"factors"`
	// Pattern is the daily pattern before any adjustment.
	Pattern     types.Hourly `json:"pattern"`
	HistoryDays int          `json:"history_days"`
}

// Forecast projects the next 24 hours. The hour-bucket multipliers are
// applied on top of the extracted pattern even though that pattern already
// carries the daily shape. A nil r uses the default seed.
func Forecast(in Input, opts Options, r *rand.Rand) (*HourlyForecast, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	r = rng.OrDefault(r)

	pattern := ExtractDailyPattern(in.History, opts)
	factors := computeFactors(in.DayOfWeek, in.Holiday, in.Temperature, in.Season, opts)
	combined := factors.Combined()

	var hourly types.Hourly
	for h := range hourly {
		jitter := 1 + (r.Float64()*2-1)*opts.JitterAmplitude
		hourly[h] = round2(pattern[h] * combined * opts.hourBucketFactor(h) * jitter)
	}

	return &HourlyForecast{
		Hourly:      hourly,
		DailyTotal:  hourly.Sum(),
		Confidence:  confidence(len(in.History), in.Holiday),
		PeakHours:   peakHours(hourly, opts.PeakHourCount),
		Factors:     factors,
		Pattern:     pattern,
		HistoryDays: len(in.History) / types.HoursPerDay,
	}, nil
}

func confidence(historyLen int, holiday bool) float64 {
	c := baseConfidence
	switch {
	case historyLen >= fullWeekPoints:
		c += weekBonus
	case historyLen >= threeDayPoints:
		c += threeDayBonus
	}
	if holiday {
		c -= holidayPenalty
	}
	return round2(math.Max(minConfidence, math.Min(maxConfidence, c)))
}

// peakHours returns the n highest hours, ascending by hour. Ties prefer the
// earlier hour.
func peakHours(hourly types.Hourly, n int) []int {
	idx := make([]int, types.HoursPerDay)
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(hourly[b], hourly[a])
	})
	top := idx[:n]
	slices.Sort(top)
	return top
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
