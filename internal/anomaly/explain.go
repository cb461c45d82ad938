package anomaly

import "strings"

// Probable causes, in the order they are checked.
const (
	CauseEnergyOverConsumption = "energy over-consumption"
	CauseProbableLeak          = "probable leak"
	CausePumpWear              = "pump wear/fouling"
	CauseCriticalReservoir     = "critical reservoir level"
	CauseUnidentified          = "unidentified anomaly"
	CauseInsufficientData      = "insufficient data"
)

const (
	energyOverConsumptionZ = 2.0
	leakFlowZ              = 1.5
	wearEnergyZ            = 1.5
	wearFlowZ              = 0.5
)

// explain returns every matching cause for a flagged reading.
func explain(dev Deviations, reservoirLevel float64, b Baseline, opts Options) []string {
	var causes []string
	if dev.EnergyPerVolume > energyOverConsumptionZ {
		causes = append(causes, CauseEnergyOverConsumption)
	}
	if dev.Flow > leakFlowZ && reservoirLevel < b.ReservoirLevel.Mean {
		causes = append(causes, CauseProbableLeak)
	}
	if dev.EnergyPerVolume > wearEnergyZ && dev.Flow < wearFlowZ {
		causes = append(causes, CausePumpWear)
	}
	if reservoirLevel < opts.CriticalReservoirLevel {
		causes = append(causes, CauseCriticalReservoir)
	}
	if len(causes) == 0 {
		causes = append(causes, CauseUnidentified)
	}
	return causes
}

func joinCauses(causes []string) string {
	return strings.Join(causes, "; ")
}
