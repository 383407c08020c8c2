package policy

import (
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

// ThresholdPolicy is the heuristic dispatch policy.
//
//	P <= partial            Idle
//	partial < P <= full     PartialCapture
//	full < P <= capacity    FullCapture
//	P > capacity            Curtailed
//
// Every boundary belongs to the lower-power mode.
type ThresholdPolicy struct {
	plant
	minDIC float64
}

// NewThresholdPolicyFromConfig creates a threshold policy from config
func NewThresholdPolicyFromConfig(cfg *config.SimulationConfig) *ThresholdPolicy {
	return &ThresholdPolicy{
		plant:  newPlant(cfg.Policy, cfg.EDUnit),
		minDIC: cfg.Policy.MinDICMolPerKg,
	}
}

// NewThresholdPolicy creates a threshold policy with explicit parameters
func NewThresholdPolicy(partialKW, fullKW, unitKW float64, minUnits, maxUnits int, minDIC float64) *ThresholdPolicy {
	return &ThresholdPolicy{
		plant: plant{
			partialKW:  partialKW,
			fullKW:     fullKW,
			capacityKW: unitKW * float64(maxUnits),
			unitKW:     unitKW,
			minUnits:   minUnits,
			maxUnits:   maxUnits,
		},
		minDIC: minDIC,
	}
}

func (p *ThresholdPolicy) Name() string {
	return "threshold"
}

func (p *ThresholdPolicy) Select(state models.OperatingState, availableKW float64) (models.DispatchDecision, error) {
	d := models.DispatchDecision{Step: state.Step}
	if err := checkPower(state.Step, availableKW); err != nil {
		return d, err
	}

	switch {
	case availableKW <= p.partialKW:
		d.Mode = models.ModeIdle
		d.Reason = "available power at or below partial threshold"
	case availableKW <= p.fullKW:
		d.Mode = models.ModePartialCapture
		d.SetpointKW = availableKW
		d.Reason = "available power within partial band"
	case availableKW <= p.capacityKW:
		d.Mode = models.ModeFullCapture
		d.SetpointKW = availableKW
		d.Reason = "available power within full band"
	default:
		d.Mode = models.ModeCurtailed
		d.SetpointKW = p.capacityKW
		d.CurtailedKW = availableKW - p.capacityKW
		d.Reason = "available power above plant capacity"
	}

	// Depleted feed water caps the plant at partial capture
	if p.minDIC > 0 && state.Chemistry.DICMolPerKg <= p.minDIC && d.Mode.Rank() > models.ModePartialCapture.Rank() {
		d.Mode = models.ModePartialCapture
		d.SetpointKW = p.fullKW
		d.CurtailedKW = availableKW - p.fullKW
		d.Reason = "dic at or below minimum, capped at partial capture"
	}

	switch d.Mode {
	case models.ModeIdle:
		d.ActiveUnits = 0
	case models.ModeFullCapture, models.ModeCurtailed:
		d.ActiveUnits = p.maxUnits
	default:
		d.ActiveUnits = p.unitsFor(d.SetpointKW)
	}
	return d, nil
}
