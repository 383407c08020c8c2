// Package aggregator runs single timesteps against the simulator and folds their results
// into horizon totals.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/doc-simulation/internal/simulator"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

// powerTolerance is the relative slack allowed when comparing power balances
const powerTolerance = 1e-9

var (
	errStepMismatch   = errors.New("response step does not match request")
	errNonFinite      = errors.New("non-finite value in response")
	errNegativeCO2    = errors.New("negative CO2 captured")
	errNegativePower  = errors.New("negative power in response")
	errOverConsumed   = errors.New("power consumed exceeds available power")
	errPowerImbalance = errors.New("consumed plus curtailed power exceeds available power")
)

func tolerance(availableKW float64) float64 {
	return powerTolerance * math.Max(1, availableKW)
}

// Step calls the simulator once for decision and validates the response.
// Any failure is returned as *models.ExternalModelError; the call is never retried.
func Step(ctx context.Context, sim simulator.Simulator, decision models.DispatchDecision, state models.OperatingState, availableKW, timestepHours float64) (models.TimestepResult, error) {
	req := simulator.NewRequest(decision, state, availableKW, timestepHours)
	resp, err := sim.SimulateStep(ctx, req)
	if err != nil {
		return models.TimestepResult{}, &models.ExternalModelError{Step: decision.Step, Err: err}
	}
	if err := validate(req, resp); err != nil {
		return models.TimestepResult{}, &models.ExternalModelError{Step: decision.Step, Err: err}
	}

	r := models.TimestepResult{
		Step:               decision.Step,
		Mode:               decision.Mode,
		ActiveUnits:        decision.ActiveUnits,
		AvailablePowerKW:   availableKW,
		PowerConsumedKW:    resp.PowerConsumedKW,
		CurtailedPowerKW:   resp.CurtailedPowerKW,
		CO2CapturedKg:      resp.CO2CapturedKg,
		EnergyConsumedKWh:  resp.PowerConsumedKW * timestepHours,
		EnergyAvailableKWh: availableKW * timestepHours,
		EnergyCurtailedKWh: resp.CurtailedPowerKW * timestepHours,
		ChemistryDelta:     resp.ChemistryDelta,
		TankDeltaHours:     resp.TankDeltaHours,
	}
	if timestepHours > 0 {
		r.CO2CaptureRateKgH = resp.CO2CapturedKg / timestepHours
	}
	return r, nil
}

func validate(req simulator.StepRequest, resp simulator.StepResponse) error {
	if resp.Step != req.Step {
		return fmt.Errorf("%w: got %d, want %d", errStepMismatch, resp.Step, req.Step)
	}
	values := map[string]float64{
		"power_consumed_kw":        resp.PowerConsumedKW,
		"curtailed_power_kw":       resp.CurtailedPowerKW,
		"co2_captured_kg":          resp.CO2CapturedKg,
		"tank_delta_hours":         resp.TankDeltaHours,
		"chemistry_delta.ph":       resp.ChemistryDelta.PH,
		"chemistry_delta.alk":      resp.ChemistryDelta.AlkalinityMolPerKg,
		"chemistry_delta.dic":      resp.ChemistryDelta.DICMolPerKg,
		"chemistry_delta.salinity": resp.ChemistryDelta.SalinityPSU,
		"chemistry_delta.temp":     resp.ChemistryDelta.TemperatureC,
	}
	for name, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s=%v", errNonFinite, name, v)
		}
	}
	if resp.CO2CapturedKg < 0 {
		return fmt.Errorf("%w: %g kg", errNegativeCO2, resp.CO2CapturedKg)
	}
	if resp.PowerConsumedKW < 0 || resp.CurtailedPowerKW < 0 {
		return fmt.Errorf("%w: consumed=%g curtailed=%g", errNegativePower, resp.PowerConsumedKW, resp.CurtailedPowerKW)
	}
	tol := tolerance(req.AvailableKW)
	if resp.PowerConsumedKW > req.AvailableKW+tol {
		return fmt.Errorf("%w: %g kW > %g kW", errOverConsumed, resp.PowerConsumedKW, req.AvailableKW)
	}
	if resp.PowerConsumedKW+resp.CurtailedPowerKW > req.AvailableKW+tol {
		return fmt.Errorf("%w: %g + %g kW > %g kW", errPowerImbalance, resp.PowerConsumedKW, resp.CurtailedPowerKW, req.AvailableKW)
	}
	return nil
}

// Fold adds one result to a summary. The input summary is not modified.
// Totals and occupancy do not depend on order; the mode sequence and switch count do.
func Fold(summary models.HorizonSummary, result models.TimestepResult) models.HorizonSummary {
	out := summary.Clone()

	out.Steps++
	out.TotalCO2CapturedKg += result.CO2CapturedKg
	out.TotalEnergyConsumedKWh += result.EnergyConsumedKWh
	out.TotalEnergyAvailableKWh += result.EnergyAvailableKWh
	out.TotalEnergyCurtailedKWh += result.EnergyCurtailedKWh
	if result.PowerConsumedKW > out.PeakPowerKW {
		out.PeakPowerKW = result.PowerConsumedKW
	}

	out.ModeOccupancy[result.Mode]++
	if n := len(out.ModeSequence); n > 0 && out.ModeSequence[n-1] != result.Mode {
		out.ModeSwitches++
	}
	out.ModeSequence = append(out.ModeSequence, result.Mode)

	if result.Mode != models.ModeIdle {
		gap := result.AvailablePowerKW - result.PowerConsumedKW - result.CurtailedPowerKW
		if gap > tolerance(result.AvailablePowerKW) {
			out.Warnings = append(out.Warnings, fmt.Sprintf("step %d: %.3f kW available power unaccounted in %s", result.Step, gap, result.Mode))
		}
	}
	return out
}

// FoldAll folds results in order starting from an empty summary
func FoldAll(timestepHours float64, results []models.TimestepResult) models.HorizonSummary {
	s := models.NewHorizonSummary(timestepHours)
	for _, r := range results {
		s = Fold(s, r)
	}
	return s
}

// Combine joins two summaries of consecutive segments, a before b
func Combine(a, b models.HorizonSummary) models.HorizonSummary {
	out := a.Clone()
	if out.TimestepHours == 0 {
		out.TimestepHours = b.TimestepHours
	}

	out.Steps += b.Steps
	out.TotalCO2CapturedKg += b.TotalCO2CapturedKg
	out.TotalEnergyConsumedKWh += b.TotalEnergyConsumedKWh
	out.TotalEnergyAvailableKWh += b.TotalEnergyAvailableKWh
	out.TotalEnergyCurtailedKWh += b.TotalEnergyCurtailedKWh
	out.PeakPowerKW = math.Max(out.PeakPowerKW, b.PeakPowerKW)

	for m, n := range b.ModeOccupancy {
		out.ModeOccupancy[m] += n
	}
	out.ModeSwitches += b.ModeSwitches
	if len(out.ModeSequence) > 0 && len(b.ModeSequence) > 0 && out.ModeSequence[len(out.ModeSequence)-1] != b.ModeSequence[0] {
		out.ModeSwitches++
	}
	out.ModeSequence = append(out.ModeSequence, b.ModeSequence...)
	out.Warnings = append(out.Warnings, b.Warnings...)

	if b.Steps > 0 {
		out.Status = b.Status
	}
	if b.FinalState != nil {
		fs := *b.FinalState
		out.FinalState = &fs
	}
	return out
}
