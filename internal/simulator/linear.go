package simulator

import (
	"context"
	"math"

	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

// LinearModel is a deterministic reference plant.
//
// Captured CO2 is proportional to the energy sent to the stacks. DIC falls and pH rises
// per kWh, and both relax toward the intake seawater at a fixed fraction per step.
// With storage tanks, curtailed energy is stored as product (in hours at capacity) and
// released during idle steps.
type LinearModel struct {
	CaptureKgPerKWh   float64
	DICDrawdownPerKWh float64
	PHShiftPerKWh     float64
	Relaxation        float64
	Baseline          models.Chemistry
	CapacityKW        float64
	StoreHours        float64
}

// NewLinearModel creates the reference model from config
func NewLinearModel(cfg *config.SimulationConfig) *LinearModel {
	m := &LinearModel{
		CaptureKgPerKWh:   cfg.Simulator.CaptureKgPerKWh,
		DICDrawdownPerKWh: cfg.Simulator.DICDrawdownPerKWh,
		PHShiftPerKWh:     cfg.Simulator.PHShiftPerKWh,
		Relaxation:        cfg.Simulator.Relaxation,
		Baseline:          cfg.Seawater,
		CapacityKW:        cfg.EDUnit.CapacityKW(),
	}
	if cfg.EDUnit.UseStorageTanks {
		m.StoreHours = cfg.EDUnit.StoreHours
	}
	return m
}

func (m *LinearModel) SimulateStep(_ context.Context, req StepRequest) (StepResponse, error) {
	dt := req.TimestepHours
	resp := StepResponse{
		Step:             req.Step,
		PowerConsumedKW:  req.SetpointKW,
		CurtailedPowerKW: req.CurtailedKW,
	}
	energy := req.SetpointKW * dt
	resp.CO2CapturedKg = m.CaptureKgPerKWh * energy

	if m.StoreHours > 0 && m.CapacityKW > 0 && dt > 0 {
		switch {
		case req.CurtailedKW > 0:
			room := m.StoreHours - req.TankLevelHours
			fill := math.Min(req.CurtailedKW*dt/m.CapacityKW, math.Max(room, 0))
			storedKW := fill * m.CapacityKW / dt
			resp.TankDeltaHours = fill
			resp.PowerConsumedKW += storedKW
			resp.CurtailedPowerKW -= storedKW
		case req.Mode == models.ModeIdle && req.TankLevelHours > 0:
			drain := math.Min(req.TankLevelHours, dt)
			resp.TankDeltaHours = -drain
			resp.CO2CapturedKg += m.CaptureKgPerKWh * drain * m.CapacityKW
		}
	}

	c := req.Chemistry
	resp.ChemistryDelta = models.Chemistry{
		PH:                 m.PHShiftPerKWh*energy + m.Relaxation*(m.Baseline.PH-c.PH),
		AlkalinityMolPerKg: m.Relaxation * (m.Baseline.AlkalinityMolPerKg - c.AlkalinityMolPerKg),
		DICMolPerKg:        -m.DICDrawdownPerKWh*energy + m.Relaxation*(m.Baseline.DICMolPerKg-c.DICMolPerKg),
	}
	return resp, nil
}
