package demand

import (
	"gonum.org/v1/gonum/stat"

	"aquaplan/internal/types"
)

// ExtractDailyPattern averages each hour of day over the complete leading
// days of history. Less than one day of history yields the built-in pattern.
func ExtractDailyPattern(history []float64, opts Options) types.Hourly {
	days := len(history) / types.HoursPerDay
	if days == 0 {
		return defaultPattern(opts)
	}

	var pattern types.Hourly
	column := make([]float64, days)
	for h := range pattern {
		for d := 0; d < days; d++ {
			column[d] = history[d*types.HoursPerDay+h]
		}
		pattern[h] = stat.Mean(column, nil)
	}
	return pattern
}

// defaultPattern is a flat base shaped by the hour buckets.
func defaultPattern(opts Options) types.Hourly {
	var pattern types.Hourly
	for h := range pattern {
		pattern[h] = opts.DefaultBaseDemand * opts.hourBucketFactor(h)
	}
	return pattern
}
