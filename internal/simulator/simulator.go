// Package simulator defines the boundary to the electrodialysis chemistry/power model
// and the implementations the orchestrator can be wired to.
package simulator

import (
	"context"

	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

// StepRequest is everything a simulator sees for one timestep
type StepRequest struct {
	Step           int              `json:"step"`
	TimestepHours  float64          `json:"timestep_hours"`
	Mode           models.Mode      `json:"mode"`
	SetpointKW     float64          `json:"setpoint_kw"`
	AvailableKW    float64          `json:"available_kw"`
	CurtailedKW    float64          `json:"curtailed_kw"`
	ActiveUnits    int              `json:"active_units"`
	Chemistry      models.Chemistry `json:"chemistry"`
	TankLevelHours float64          `json:"tank_level_hours"`
}

// StepResponse is the raw simulator output before validation
type StepResponse struct {
	Step             int              `json:"step"`
	PowerConsumedKW  float64          `json:"power_consumed_kw"`
	CurtailedPowerKW float64          `json:"curtailed_power_kw"`
	CO2CapturedKg    float64          `json:"co2_captured_kg"`
	ChemistryDelta   models.Chemistry `json:"chemistry_delta"`
	TankDeltaHours   float64          `json:"tank_delta_hours"`
}

// Simulator computes one timestep of the ED plant. Calls may block for a long time.
type Simulator interface {
	SimulateStep(ctx context.Context, req StepRequest) (StepResponse, error)
}

// Func adapts a plain function to the Simulator interface
type Func func(ctx context.Context, req StepRequest) (StepResponse, error)

func (f Func) SimulateStep(ctx context.Context, req StepRequest) (StepResponse, error) {
	return f(ctx, req)
}

// NewRequest builds the request for a decision taken in state
func NewRequest(decision models.DispatchDecision, state models.OperatingState, availableKW, timestepHours float64) StepRequest {
	return StepRequest{
		Step:           decision.Step,
		TimestepHours:  timestepHours,
		Mode:           decision.Mode,
		SetpointKW:     decision.SetpointKW,
		AvailableKW:    availableKW,
		CurtailedKW:    decision.CurtailedKW,
		ActiveUnits:    decision.ActiveUnits,
		Chemistry:      state.Chemistry,
		TankLevelHours: state.TankLevelHours,
	}
}
