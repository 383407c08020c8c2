package models

import (
	"math"
	"time"
)

// Mode is a discrete dispatch state of the electrodialysis plant
type Mode string

const (
	ModeIdle           Mode = "idle"
	ModePartialCapture Mode = "partial_capture"
	ModeFullCapture    Mode = "full_capture"
	ModeCurtailed      Mode = "curtailed"
)

// Modes lists every operating mode ordered by power draw
var Modes = []Mode{ModeIdle, ModePartialCapture, ModeFullCapture, ModeCurtailed}

// Valid reports whether m is one of the known operating modes
func (m Mode) Valid() bool {
	switch m {
	case ModeIdle, ModePartialCapture, ModeFullCapture, ModeCurtailed:
		return true
	}
	return false
}

// Rank orders modes by power draw; unknown modes rank below Idle
func (m Mode) Rank() int {
	for i, mode := range Modes {
		if mode == m {
			return i
		}
	}
	return -1
}

// ParseMode converts a config string into a Mode
func ParseMode(s string) (Mode, bool) {
	m := Mode(s)
	if s == "" {
		return ModeIdle, true
	}
	return m, m.Valid()
}

// Chemistry is the tracked seawater chemistry state
type Chemistry struct {
	PH                 float64 `json:"ph" yaml:"ph"`
	AlkalinityMolPerKg float64 `json:"alkalinity_mol_per_kg" yaml:"alkalinity_mol_per_kg"`
	DICMolPerKg        float64 `json:"dic_mol_per_kg" yaml:"dic_mol_per_kg"`
	SalinityPSU        float64 `json:"salinity_psu" yaml:"salinity_psu"`
	TemperatureC       float64 `json:"temperature_c" yaml:"temperature_c"`
}

// Add applies a chemistry delta
func (c Chemistry) Add(d Chemistry) Chemistry {
	return Chemistry{
		PH:                 c.PH + d.PH,
		AlkalinityMolPerKg: c.AlkalinityMolPerKg + d.AlkalinityMolPerKg,
		DICMolPerKg:        c.DICMolPerKg + d.DICMolPerKg,
		SalinityPSU:        c.SalinityPSU + d.SalinityPSU,
		TemperatureC:       c.TemperatureC + d.TemperatureC,
	}
}

// OperatingState is the per-timestep snapshot of the plant.
// It is a value type; transitions produce a new value.
type OperatingState struct {
	Step           int       `json:"step"`
	ElapsedHours   float64   `json:"elapsed_hours"`
	Mode           Mode      `json:"mode"`
	Chemistry      Chemistry `json:"chemistry"`
	ActiveUnits    int       `json:"active_units"`
	StackHours     float64   `json:"stack_hours"`
	ModeSwitches   int       `json:"mode_switches"`
	TankLevelHours float64   `json:"tank_level_hours"`
}

// DispatchDecision is the selector output for one timestep
type DispatchDecision struct {
	Step        int     `json:"step"`
	Mode        Mode    `json:"mode"`
	SetpointKW  float64 `json:"setpoint_kw"`
	CurtailedKW float64 `json:"curtailed_kw"`
	ActiveUnits int     `json:"active_units"`
	Reason      string  `json:"reason,omitempty"`
}

// TimestepResult is the validated outcome of one simulator call
type TimestepResult struct {
	Step               int       `json:"step"`
	Mode               Mode      `json:"mode"`
	ActiveUnits        int       `json:"active_units"`
	AvailablePowerKW   float64   `json:"available_power_kw"`
	PowerConsumedKW    float64   `json:"power_consumed_kw"`
	CurtailedPowerKW   float64   `json:"curtailed_power_kw"`
	CO2CapturedKg      float64   `json:"co2_captured_kg"`
	CO2CaptureRateKgH  float64   `json:"co2_capture_rate_kg_per_h"`
	EnergyConsumedKWh  float64   `json:"energy_consumed_kwh"`
	EnergyAvailableKWh float64   `json:"energy_available_kwh"`
	EnergyCurtailedKWh float64   `json:"energy_curtailed_kwh"`
	ChemistryDelta     Chemistry `json:"chemistry_delta"`
	TankDeltaHours     float64   `json:"tank_delta_hours"`
}

// HorizonStatus is the lifecycle state of a simulation horizon
type HorizonStatus string

const (
	HorizonNotStarted HorizonStatus = "not_started"
	HorizonRunning    HorizonStatus = "running"
	HorizonCompleted  HorizonStatus = "completed"
	HorizonFailed     HorizonStatus = "failed"
	HorizonCancelled  HorizonStatus = "cancelled"
)

// Terminal reports whether no further transition is possible
func (s HorizonStatus) Terminal() bool {
	return s == HorizonCompleted || s == HorizonFailed || s == HorizonCancelled
}

// HorizonSummary is the folded output of a horizon
type HorizonSummary struct {
	Status                  HorizonStatus   `json:"status"`
	Steps                   int             `json:"steps"`
	TimestepHours           float64         `json:"timestep_hours"`
	TotalCO2CapturedKg      float64         `json:"total_co2_captured_kg"`
	TotalEnergyConsumedKWh  float64         `json:"total_energy_consumed_kwh"`
	TotalEnergyAvailableKWh float64         `json:"total_energy_available_kwh"`
	TotalEnergyCurtailedKWh float64         `json:"total_energy_curtailed_kwh"`
	PeakPowerKW             float64         `json:"peak_power_kw"`
	ModeOccupancy           map[Mode]int    `json:"mode_occupancy"`
	ModeSequence            []Mode          `json:"mode_sequence"`
	ModeSwitches            int             `json:"mode_switches"`
	Warnings                []string        `json:"warnings,omitempty"`
	FinalState              *OperatingState `json:"final_state,omitempty"`
}

// NewHorizonSummary returns an empty summary for the given timestep length
func NewHorizonSummary(timestepHours float64) HorizonSummary {
	return HorizonSummary{
		Status:        HorizonNotStarted,
		TimestepHours: timestepHours,
		ModeOccupancy: make(map[Mode]int),
		ModeSequence:  make([]Mode, 0),
	}
}

// Clone returns a copy that shares no maps, slices or pointers with s
func (s HorizonSummary) Clone() HorizonSummary {
	out := s
	out.ModeOccupancy = make(map[Mode]int, len(s.ModeOccupancy))
	for m, n := range s.ModeOccupancy {
		out.ModeOccupancy[m] = n
	}
	out.ModeSequence = append(make([]Mode, 0, len(s.ModeSequence)+1), s.ModeSequence...)
	if s.Warnings != nil {
		out.Warnings = append([]string(nil), s.Warnings...)
	}
	if s.FinalState != nil {
		fs := *s.FinalState
		out.FinalState = &fs
	}
	return out
}

// ModeHours returns the time spent in each mode
func (s HorizonSummary) ModeHours() map[Mode]float64 {
	out := make(map[Mode]float64, len(s.ModeOccupancy))
	for m, n := range s.ModeOccupancy {
		out[m] = float64(n) * s.TimestepHours
	}
	return out
}

// DurationHours is the simulated span covered by the summary
func (s HorizonSummary) DurationHours() float64 {
	return float64(s.Steps) * s.TimestepHours
}

// TotalCO2CapturedTonnes converts the captured mass to metric tonnes
func (s HorizonSummary) TotalCO2CapturedTonnes() float64 {
	return s.TotalCO2CapturedKg / 1000
}

// AnnualCO2CaptureTonnes scales the horizon capture to a 8760 h year
func (s HorizonSummary) AnnualCO2CaptureTonnes() float64 {
	hours := s.DurationHours()
	if hours <= 0 {
		return 0
	}
	return s.TotalCO2CapturedTonnes() * 8760 / hours
}

// CapacityFactor is consumed energy over the rated energy for the horizon
func (s HorizonSummary) CapacityFactor(ratedKW float64) float64 {
	denom := ratedKW * s.DurationHours()
	if denom <= 0 {
		return 0
	}
	return s.TotalEnergyConsumedKWh / denom
}

// SpecificEnergyKWhPerTonne is consumed energy per captured tonne; NaN when nothing was captured
func (s HorizonSummary) SpecificEnergyKWhPerTonne() float64 {
	t := s.TotalCO2CapturedTonnes()
	if t <= 0 {
		return math.NaN()
	}
	return s.TotalEnergyConsumedKWh / t
}

// RunStatus represents the status of a service-level run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the run can no longer be started
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// Run represents a simulation run tracked by the service
type Run struct {
	ID          string            `json:"id"`
	Status      RunStatus         `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   time.Time         `json:"started_at,omitempty"`
	EndedAt     time.Time         `json:"ended_at,omitempty"`
	Error       string            `json:"error,omitempty"`
	FailedStep  *int              `json:"failed_step,omitempty"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// MetricPoint represents a single time-series data point
type MetricPoint struct {
	Timestamp time.Time         `json:"timestamp"`
	Step      int               `json:"step"`
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
}
