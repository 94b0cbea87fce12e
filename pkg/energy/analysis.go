package energy

import (
	"fmt"
	"math"

	"github.com/grovetools/homed/pkg/models"
)

// Reference points of the efficiency analysis.
const (
	OptimalBrightness  = 60   // percent
	OptimalTemperature = 72.0 // °F
	OptimalRange       = 2.0  // °F of differential or target offset tolerated
	EcoSavings         = 0.3  // fraction of thermostat draw eco mode saves

	multiRoomPenalty    = 15
	ecoPenalty          = 30
	differentialPenalty = 20

	// LowEfficiency is the overall score below which a warning is raised.
	LowEfficiency = 70
)

// Budget thresholds, as a percentage of the monthly budget.
const (
	BudgetWarningPercent  = 80.0
	BudgetExceededPercent = 100.0
)

// hourly converts a draw in watts to dollars per hour.
func (c *Calculator) hourly(watts float64) float64 {
	return watts / 1000 * c.Tariff.RatePerKWh
}

// Analyze scores the lighting and the primary thermostat of s, and lists
// the warnings and recommendations that follow from them.
//
// Lights above OptimalBrightness count the draw above that level as extra.
// More than one lit device costs lighting efficiency. A running thermostat
// without eco mode, or with a differential above OptimalRange, costs HVAC
// efficiency and adds the avoidable draw to the extra consumption.
func (c *Calculator) Analyze(s models.State) models.EnergyAnalysis {
	a := models.EnergyAnalysis{
		Efficiency:      models.Efficiency{Lighting: 100, HVAC: 100},
		Warnings:        []string{},
		Recommendations: []string{},
	}
	extra := 0.0

	lit, litWatts := 0, 0.0
	for _, id := range s.DeviceIDs() {
		d := s.Devices[id]
		if !d.IsLight() || !d.On {
			continue
		}
		lit++
		actual := c.DeviceUsage(d)
		litWatts += actual
		if d.Brightness > OptimalBrightness {
			baseline := float64(OptimalBrightness) / 100 * c.Tariff.BulbWatts * float64(d.Count)
			extra += actual - baseline
			a.Recommendations = append(a.Recommendations, fmt.Sprintf(
				"Reduce %s brightness from %d%% to %d%% to save $%.4f/hour",
				d.Name, d.Brightness, OptimalBrightness, c.hourly(actual-baseline)))
		}
	}
	if lit > 1 {
		a.Efficiency.Lighting -= multiRoomPenalty
		a.Warnings = append(a.Warnings, fmt.Sprintf(
			"Multiple rooms (%d) have lights on - potential savings of $%.4f/hour by using one room at a time",
			lit, c.hourly(litWatts)))
	}

	if t, ok := s.PrimaryThermostat(); ok && t.On {
		diff := math.Abs(t.Current - t.Target)
		actual := diff * c.Tariff.ThermostatWattsPerDegree

		if !t.EcoMode {
			a.Efficiency.HVAC -= ecoPenalty
			saved := actual * EcoSavings
			extra += saved
			a.Recommendations = append(a.Recommendations, fmt.Sprintf(
				"Enable eco mode on %s to save about $%.4f/hour", t.Name, c.hourly(saved)))
		}
		if diff > OptimalRange {
			a.Efficiency.HVAC -= differentialPenalty
			over := (diff - OptimalRange) * c.Tariff.ThermostatWattsPerDegree
			extra += over
			a.Warnings = append(a.Warnings, fmt.Sprintf(
				"Temperature differential of %.1f°F is costing an extra $%.4f/hour", diff, c.hourly(over)))
		}
		if offset := math.Abs(t.Target - OptimalTemperature); offset > OptimalRange {
			saved := (offset - OptimalRange) * c.Tariff.ThermostatWattsPerDegree
			a.Recommendations = append(a.Recommendations, fmt.Sprintf(
				"Set %s closer to %.0f°F to save up to $%.4f/hour", t.Name, OptimalTemperature, c.hourly(saved)))
		}
	}

	a.Efficiency.Overall = int(math.Round(float64(a.Efficiency.Lighting+a.Efficiency.HVAC) / 2))

	current := c.Usage(s)
	a.Consumption = models.Consumption{
		Current:  current,
		Baseline: math.Max(0, current-extra),
		Extra:    extra,
	}
	a.PotentialSavings = c.hourly(extra)

	if a.Efficiency.Overall < LowEfficiency {
		a.Warnings = append(a.Warnings, fmt.Sprintf(
			"System efficiency is %d%%; potential savings of $%.4f/hour", a.Efficiency.Overall, a.PotentialSavings))
	}
	return a
}

// CheckBudget grades a projected monthly cost against monthlyBudget. A
// budget of zero or less is unset.
func CheckBudget(monthlyBudget, projected float64) models.BudgetStatus {
	b := models.BudgetStatus{MonthlyBudget: monthlyBudget, Projected: projected}
	if monthlyBudget <= 0 {
		b.MonthlyBudget = 0
		b.Level = models.BudgetUnset
		b.Message = "Set a monthly budget to monitor your energy spending"
		return b
	}

	b.Percent = projected / monthlyBudget * 100
	switch {
	case b.Percent >= BudgetExceededPercent:
		b.Level = models.BudgetExceeded
		b.Message = fmt.Sprintf("Budget exceeded! Current projection: $%.2f", projected)
	case b.Percent >= BudgetWarningPercent:
		b.Level = models.BudgetWarning
		b.Message = fmt.Sprintf("Approaching budget limit. Current projection: $%.2f", projected)
	default:
		b.Level = models.BudgetOK
		b.Message = fmt.Sprintf("Current monthly projection: $%.2f", projected)
	}
	return b
}
