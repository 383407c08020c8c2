// Package tracker owns the evolving seawater chemistry and equipment state of a horizon.
//
// Transitions are pure: Advance never reads clocks or random sources, and the same
// (state, result) pair always yields the same next state. Out-of-range chemistry is
// reported as a StateViolationError instead of being clamped.
package tracker

import (
	"math"

	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

// tankTolerance absorbs float rounding when a tank is filled or drained exactly to a limit
const tankTolerance = 1e-9

// Tracker holds the fixed parameters of state transitions for one config
type Tracker struct {
	timestepHours float64
	storeHours    float64
	minUnits      int
	initial       models.OperatingState
}

// New creates a tracker for a validated config
func New(cfg *config.SimulationConfig) *Tracker {
	t := &Tracker{
		timestepHours: cfg.TimestepHours(),
		minUnits:      cfg.EDUnit.NumberEDMin,
		initial:       Initialize(cfg),
	}
	if cfg.EDUnit.UseStorageTanks {
		t.storeHours = cfg.EDUnit.StoreHours
	}
	return t
}

// Initialize seeds the operating state at horizon start
func Initialize(cfg *config.SimulationConfig) models.OperatingState {
	mode := cfg.InitialOperatingMode()
	units := 0
	if mode != models.ModeIdle {
		units = cfg.EDUnit.NumberEDMin
	}
	return models.OperatingState{
		Step:        0,
		Mode:        mode,
		Chemistry:   cfg.Seawater,
		ActiveUnits: units,
	}
}

// Initial returns the state the tracker was seeded with
func (t *Tracker) Initial() models.OperatingState {
	return t.initial
}

// Advance applies one timestep result to the state.
// On error the returned state is the unchanged prior state and the error is a
// *models.StateViolationError carrying it.
func (t *Tracker) Advance(state models.OperatingState, result models.TimestepResult) (models.OperatingState, error) {
	if result.Step != state.Step {
		return state, &models.StateViolationError{
			Step:  state.Step,
			Field: "step",
			Value: float64(result.Step),
			Min:   float64(state.Step),
			Max:   float64(state.Step),
			State: state,
		}
	}

	next := state
	next.Step = state.Step + 1
	next.ElapsedHours = state.ElapsedHours + t.timestepHours
	next.Mode = result.Mode
	next.ActiveUnits = result.ActiveUnits
	next.Chemistry = state.Chemistry.Add(result.ChemistryDelta)
	next.StackHours = state.StackHours + float64(result.ActiveUnits)*t.timestepHours
	next.TankLevelHours = state.TankLevelHours + result.TankDeltaHours
	if result.Mode != state.Mode {
		next.ModeSwitches = state.ModeSwitches + 1
	}

	if sv := t.check(next); sv != nil {
		sv.Step = state.Step
		sv.State = state
		return state, sv
	}
	return next, nil
}

// Check verifies every bounded quantity of a state
func (t *Tracker) Check(state models.OperatingState) error {
	if sv := t.check(state); sv != nil {
		return sv
	}
	return nil
}

func (t *Tracker) check(state models.OperatingState) *models.StateViolationError {
	if b, v, bad := state.Chemistry.FirstViolation(); bad {
		return &models.StateViolationError{
			Step:  state.Step,
			Field: b.Field,
			Value: v,
			Min:   b.Min,
			Max:   b.Max,
			State: state,
		}
	}

	tank := models.Bound{Field: "tank_level_hours", Min: -tankTolerance, Max: t.storeHours + tankTolerance}
	if !tank.Contains(state.TankLevelHours) {
		return &models.StateViolationError{
			Step:  state.Step,
			Field: tank.Field,
			Value: state.TankLevelHours,
			Min:   0,
			Max:   t.storeHours,
			State: state,
		}
	}

	if state.ActiveUnits < 0 || (state.Mode != models.ModeIdle && state.ActiveUnits < t.minUnits) {
		return &models.StateViolationError{
			Step:  state.Step,
			Field: "active_units",
			Value: float64(state.ActiveUnits),
			Min:   float64(t.minUnits),
			Max:   math.Inf(1),
			State: state,
		}
	}
	return nil
}
