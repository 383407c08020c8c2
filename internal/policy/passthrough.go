package policy

import (
	"math"

	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

// PassThroughPolicy is an open-loop policy: every positive kW is sent to the plant up to capacity.
// It only idles on zero power. Modes are labelled by the configured full threshold.
type PassThroughPolicy struct {
	plant
}

// NewPassThroughPolicyFromConfig creates a pass-through policy from config
func NewPassThroughPolicyFromConfig(cfg *config.SimulationConfig) *PassThroughPolicy {
	return &PassThroughPolicy{plant: newPlant(cfg.Policy, cfg.EDUnit)}
}

func (p *PassThroughPolicy) Name() string {
	return "passthrough"
}

func (p *PassThroughPolicy) Select(state models.OperatingState, availableKW float64) (models.DispatchDecision, error) {
	d := models.DispatchDecision{Step: state.Step}
	if err := checkPower(state.Step, availableKW); err != nil {
		return d, err
	}
	if availableKW == 0 {
		d.Mode = models.ModeIdle
		d.Reason = "no power available"
		return d, nil
	}

	d.SetpointKW = math.Min(availableKW, p.capacityKW)
	d.CurtailedKW = availableKW - d.SetpointKW
	if availableKW <= p.fullKW {
		d.Mode = models.ModePartialCapture
		d.ActiveUnits = p.unitsFor(d.SetpointKW)
	} else {
		d.Mode = models.ModeFullCapture
		d.ActiveUnits = p.maxUnits
	}
	d.Reason = "pass-through"
	return d, nil
}
