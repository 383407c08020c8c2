package config

import (
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

// SimulationConfig is the immutable description of one DOC horizon.
// It is validated once by the parse/load functions and must not be mutated afterwards.
type SimulationConfig struct {
	LogLevel    string           `yaml:"log_level"`
	Name        string           `yaml:"name"`
	Timestep    string           `yaml:"timestep"`             // e.g. "1h"
	StartTime   string           `yaml:"start_time,omitempty"` // RFC3339, used for time-series stamps
	EDUnit      EDUnit           `yaml:"ed_unit"`
	Seawater    models.Chemistry `yaml:"seawater"`
	InitialMode string           `yaml:"initial_mode"`
	Policy      PolicyConfig     `yaml:"policy"`
	Power       PowerInput       `yaml:"power"`
	Simulator   SimulatorConfig  `yaml:"simulator"`
	Cost        *CostConfig      `yaml:"cost,omitempty"`

	timestep time.Duration
	start    time.Time
	series   []float64
}

// EDUnit describes the electrodialysis stacks of the plant
type EDUnit struct {
	PowerSingleEDW      float64 `yaml:"power_single_ed_w"`
	FlowRateSingleEDM3s float64 `yaml:"flow_rate_single_ed_m3s"`
	NumberEDMin         int     `yaml:"number_ed_min"`
	NumberEDMax         int     `yaml:"number_ed_max"`
	UseStorageTanks     bool    `yaml:"use_storage_tanks"`
	StoreHours          float64 `yaml:"store_hours"`
}

// UnitPowerKW is the draw of a single ED stack in kW
func (e EDUnit) UnitPowerKW() float64 {
	return e.PowerSingleEDW / 1000
}

// CapacityKW is the draw with every stack engaged
func (e EDUnit) CapacityKW() float64 {
	return e.UnitPowerKW() * float64(e.NumberEDMax)
}

// PolicyConfig configures the control strategy selector.
// Unset thresholds fall back to values derived from the ED unit.
type PolicyConfig struct {
	Name               string   `yaml:"name"` // threshold or passthrough
	PartialThresholdKW *float64 `yaml:"partial_threshold_kw,omitempty"`
	FullThresholdKW    *float64 `yaml:"full_threshold_kw,omitempty"`
	MinDICMolPerKg     float64  `yaml:"min_dic_mol_per_kg,omitempty"`
}

// Thresholds resolves the mode boundaries in kW
func (p PolicyConfig) Thresholds(ed EDUnit) (partial, full, capacity float64) {
	unit := ed.UnitPowerKW()
	capacity = ed.CapacityKW()

	partial = unit * float64(ed.NumberEDMin)
	if p.PartialThresholdKW != nil {
		partial = *p.PartialThresholdKW
	}

	full = unit * float64(ed.NumberEDMax-1)
	if full < partial {
		full = partial
	}
	if p.FullThresholdKW != nil {
		full = *p.FullThresholdKW
	}
	return partial, full, capacity
}

// MaxSteps bounds the horizon length: ten years of hourly steps
const MaxSteps = 87600

// DefaultCaptureKgPerKWh is the linear model's capture yield when capture_kg_per_kwh is unset
const DefaultCaptureKgPerKWh = 0.1

// PowerInput selects where the available-power series comes from.
// Exactly one of series_kw, file or constant_kw must be set.
type PowerInput struct {
	SeriesKW   []float64 `yaml:"series_kw,omitempty"`
	File       string    `yaml:"file,omitempty"`   // CSV, one row per timestep
	Column     string    `yaml:"column,omitempty"` // CSV header; defaults to the last column
	ConstantKW *float64  `yaml:"constant_kw,omitempty"`
	Steps      int       `yaml:"steps,omitempty"` // length of a constant series
	Units      string    `yaml:"units,omitempty"` // W, kW (default) or MW
}

// SimulatorConfig selects the external chemistry/power simulator
type SimulatorConfig struct {
	Type              string  `yaml:"type"` // linear (default) or remote
	RemoteAddr        string  `yaml:"remote_addr,omitempty"`
	Cache             bool    `yaml:"cache,omitempty"`
	CaptureKgPerKWh   float64 `yaml:"capture_kg_per_kwh,omitempty"` // linear only; 0 takes DefaultCaptureKgPerKWh
	DICDrawdownPerKWh float64 `yaml:"dic_drawdown_per_kwh,omitempty"`
	PHShiftPerKWh     float64 `yaml:"ph_shift_per_kwh,omitempty"`
	Relaxation        float64 `yaml:"relaxation,omitempty"`
}

// CostConfig holds the coefficients of the capture cost roll-up
type CostConfig struct {
	CapexPerEDUnitUSD        string  `yaml:"capex_per_ed_unit_usd"`
	TankCapexPerStoreHourUSD string  `yaml:"tank_capex_per_store_hour_usd,omitempty"`
	FixedOMFraction          string  `yaml:"fixed_om_fraction"`
	ElectricityUSDPerKWh     string  `yaml:"electricity_usd_per_kwh"`
	StackReplacementHours    float64 `yaml:"stack_replacement_hours,omitempty"`
	StackReplacementUSD      string  `yaml:"stack_replacement_usd,omitempty"`
	PlantLifeYears           int     `yaml:"plant_life_years,omitempty"`
}

// GetTimestep returns the resolved timestep length
func (c *SimulationConfig) GetTimestep() time.Duration {
	return c.timestep
}

// TimestepHours returns the timestep length in hours
func (c *SimulationConfig) TimestepHours() float64 {
	return c.timestep.Hours()
}

// StartAt returns the wall-clock stamp of step 0
func (c *SimulationConfig) StartAt() time.Time {
	return c.start
}

// InitialOperatingMode returns the validated initial mode
func (c *SimulationConfig) InitialOperatingMode() models.Mode {
	m, _ := models.ParseMode(c.InitialMode)
	return m
}

// Series returns a copy of the resolved available-power series in kW
func (c *SimulationConfig) Series() []float64 {
	out := make([]float64, len(c.series))
	copy(out, c.series)
	return out
}

// Steps is the horizon length in timesteps
func (c *SimulationConfig) Steps() int {
	return len(c.series)
}

// Clone returns a deep copy that can be modified and checked with Revalidate.
// The resolved power series is shared; it is never written after load.
func (c *SimulationConfig) Clone() *SimulationConfig {
	out := *c
	if c.Policy.PartialThresholdKW != nil {
		v := *c.Policy.PartialThresholdKW
		out.Policy.PartialThresholdKW = &v
	}
	if c.Policy.FullThresholdKW != nil {
		v := *c.Policy.FullThresholdKW
		out.Policy.FullThresholdKW = &v
	}
	if c.Cost != nil {
		cost := *c.Cost
		out.Cost = &cost
	}
	return &out
}

// Revalidate checks a modified clone against the same rules as loading
func (c *SimulationConfig) Revalidate() error {
	if err := validateConfig(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
