// Package energy derives power draw and cost projections from device state.
package energy

import (
	"math"

	"github.com/grovetools/homed/pkg/models"
)

// Tariff holds the constants the calculations are based on.
type Tariff struct {
	RatePerKWh               float64 `json:"rate_per_kwh"`
	BulbWatts                float64 `json:"bulb_watts"`
	ThermostatWattsPerDegree float64 `json:"thermostat_watts_per_degree"`
	WorstCaseDifferential    float64 `json:"worst_case_differential"`
}

// DefaultTariff is $0.12/kWh, 60W bulbs, and 100W per °F of thermostat
// differential with a 5°F worst case.
func DefaultTariff() Tariff {
	return Tariff{
		RatePerKWh:               0.12,
		BulbWatts:                60,
		ThermostatWattsPerDegree: 100,
		WorstCaseDifferential:    5,
	}
}

// Calculator computes derived energy fields for a tariff.
type Calculator struct {
	Tariff Tariff
}

// New returns a Calculator for the given tariff.
func New(t Tariff) *Calculator {
	return &Calculator{Tariff: t}
}

// DeviceUsage returns the current draw of a single device in watts.
func (c *Calculator) DeviceUsage(d models.Device) float64 {
	if !d.On {
		return 0
	}
	switch d.Kind {
	case models.KindLight:
		return float64(d.Brightness) / 100 * c.Tariff.BulbWatts * float64(d.Count)
	case models.KindThermostat:
		return math.Abs(d.Current-d.Target) * c.Tariff.ThermostatWattsPerDegree
	}
	return 0
}

// Usage returns the total current draw in watts.
func (c *Calculator) Usage(s models.State) float64 {
	total := 0.0
	for _, id := range s.DeviceIDs() {
		total += c.DeviceUsage(s.Devices[id])
	}
	return total
}

// MaxUsage returns the draw with every light on at full brightness and each
// thermostat at the worst-case differential. It is only used as the ceiling
// for the savings figure.
func (c *Calculator) MaxUsage(s models.State) float64 {
	total := 0.0
	for _, id := range s.DeviceIDs() {
		d := s.Devices[id]
		switch d.Kind {
		case models.KindLight:
			total += float64(d.Count) * c.Tariff.BulbWatts
		case models.KindThermostat:
			total += c.Tariff.WorstCaseDifferential * c.Tariff.ThermostatWattsPerDegree
		}
	}
	return total
}

// Costs projects hourly, daily and monthly cost from a draw in watts, and
// the savings relative to maxWatts.
func (c *Calculator) Costs(currentWatts, maxWatts float64) models.Costs {
	hourly := currentWatts / 1000 * c.Tariff.RatePerKWh
	daily := hourly * 24
	maxHourly := maxWatts / 1000 * c.Tariff.RatePerKWh
	return models.Costs{
		Hourly:  hourly,
		Daily:   daily,
		Monthly: daily * 30,
		Savings: maxHourly - hourly,
	}
}

// Recompute refreshes s.Environment.Energy from the device states.
func (c *Calculator) Recompute(s *models.State) {
	current := c.Usage(*s)
	s.Environment.Energy = models.Energy{
		Current: current,
		Costs:   c.Costs(current, c.MaxUsage(*s)),
	}
}
