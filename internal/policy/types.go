package policy

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

// Selector picks the operating mode for one timestep.
// Implementations must be pure functions of (state, availableKW) and keep no history between calls.
type Selector interface {
	// Name returns the policy name for identification
	Name() string
	// Select maps the current state and available power to a dispatch decision
	Select(state models.OperatingState, availableKW float64) (models.DispatchDecision, error)
}

// unitEpsilon keeps exact multiples of the stack power from rounding up to an extra unit
const unitEpsilon = 1e-9

// plant holds the ED limits shared by every selector
type plant struct {
	partialKW  float64
	fullKW     float64
	capacityKW float64
	unitKW     float64
	minUnits   int
	maxUnits   int
}

func newPlant(p config.PolicyConfig, ed config.EDUnit) plant {
	partial, full, capacity := p.Thresholds(ed)
	return plant{
		partialKW:  partial,
		fullKW:     full,
		capacityKW: capacity,
		unitKW:     ed.UnitPowerKW(),
		minUnits:   ed.NumberEDMin,
		maxUnits:   ed.NumberEDMax,
	}
}

// unitsFor returns the number of stacks needed to absorb setpointKW
func (p plant) unitsFor(setpointKW float64) int {
	if setpointKW <= 0 || p.unitKW <= 0 {
		return 0
	}
	n := int(math.Ceil(setpointKW/p.unitKW - unitEpsilon))
	if n < p.minUnits {
		n = p.minUnits
	}
	if n > p.maxUnits {
		n = p.maxUnits
	}
	return n
}

// checkPower rejects power values no mode can be selected for
func checkPower(step int, availableKW float64) error {
	if math.IsNaN(availableKW) || math.IsInf(availableKW, 0) || availableKW < 0 {
		return &models.InvalidInputError{
			Field:  fmt.Sprintf("available_power_kw[%d]", step),
			Value:  availableKW,
			Reason: "must be a finite non-negative value",
		}
	}
	return nil
}

// NewSelector creates the selector named by the config policy section
func NewSelector(cfg *config.SimulationConfig) (Selector, error) {
	switch cfg.Policy.Name {
	case "threshold", "":
		return NewThresholdPolicyFromConfig(cfg), nil
	case "passthrough":
		return NewPassThroughPolicyFromConfig(cfg), nil
	default:
		return nil, &models.InvalidInputError{Field: "policy.name", Value: cfg.Policy.Name, Reason: "unknown policy"}
	}
}
