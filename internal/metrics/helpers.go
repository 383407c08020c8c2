package metrics

import (
	"sort"

	"github.com/GoSim-25-26J-441/doc-simulation/internal/engine"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

// Per-step series names
const (
	MetricAvailablePowerKW = "available_power_kw"
	MetricConsumedPowerKW  = "power_consumed_kw"
	MetricCurtailedPowerKW = "curtailed_power_kw"
	MetricCO2CapturedKg    = "co2_captured_kg"
	MetricCO2CaptureRate   = "co2_capture_rate_kg_per_h"
	MetricActiveUnits      = "active_units"
	MetricModeRank         = "mode_rank"
	MetricPH               = "ph"
	MetricDIC              = "dic_mol_per_kg"
	MetricTankLevelHours   = "tank_level_hours"
)

// RecordStep records every standard series for one committed step
func RecordStep(c *Collector, ev engine.StepEvent) {
	r := ev.Result
	s := ev.State
	c.Record(MetricAvailablePowerKW, r.Step, r.AvailablePowerKW, ev.Time, nil)
	c.Record(MetricConsumedPowerKW, r.Step, r.PowerConsumedKW, ev.Time, nil)
	c.Record(MetricCurtailedPowerKW, r.Step, r.CurtailedPowerKW, ev.Time, nil)
	c.Record(MetricCO2CapturedKg, r.Step, r.CO2CapturedKg, ev.Time, nil)
	c.Record(MetricCO2CaptureRate, r.Step, r.CO2CaptureRateKgH, ev.Time, nil)
	c.Record(MetricActiveUnits, r.Step, float64(r.ActiveUnits), ev.Time, nil)
	c.Record(MetricModeRank, r.Step, float64(r.Mode.Rank()), ev.Time, ModeLabels(r.Mode))
	c.Record(MetricPH, r.Step, s.Chemistry.PH, ev.Time, nil)
	c.Record(MetricDIC, r.Step, s.Chemistry.DICMolPerKg, ev.Time, nil)
	c.Record(MetricTankLevelHours, r.Step, s.TankLevelHours, ev.Time, nil)
}

// ModeLabels creates a labels map for an operating mode
func ModeLabels(mode models.Mode) map[string]string {
	return map[string]string{
		"mode": string(mode),
	}
}

// ModeSeries returns the mode-rank points of every mode merged in step order
func ModeSeries(c *Collector) []models.MetricPoint {
	var out []models.MetricPoint
	for _, labels := range c.GetLabelsForMetric(MetricModeRank) {
		out = append(out, c.GetTimeSeries(MetricModeRank, labels)...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out
}
