// Package improvement tunes a plant config by hill climbing over dispatch thresholds
// and plant sizing, scoring each candidate by running its horizon.
package improvement

import (
	"fmt"

	"github.com/GoSim-25-26J-441/doc-simulation/internal/cost"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

// noCapturePenalty scores candidates that captured nothing on per-tonne objectives
const noCapturePenalty = 1e9

// Evaluation is what an objective sees of one finished candidate horizon
type Evaluation struct {
	Summary    models.HorizonSummary
	Cost       *cost.Report
	CapacityKW float64
}

// ObjectiveFunction evaluates a candidate and returns a score.
// Lower scores are always better; maximizing objectives negate their value.
type ObjectiveFunction interface {
	Evaluate(ev Evaluation) (float64, error)
	Name() string
	// Direction returns whether we're minimizing (true) or maximizing (false).
	Direction() bool
}

// ObjectiveType represents the type of objective function
type ObjectiveType string

const (
	ObjectiveMaximizeCapture        ObjectiveType = "co2_captured"
	ObjectiveMinimizeCostPerTonne   ObjectiveType = "cost_per_tonne"
	ObjectiveMinimizeSpecificEnergy ObjectiveType = "specific_energy"
	ObjectiveMinimizeCurtailment    ObjectiveType = "curtailed_energy"
	ObjectiveMaximizeCapacityFactor ObjectiveType = "capacity_factor"
)

// NewObjectiveFunction creates an objective function from a type string
func NewObjectiveFunction(objType string) (ObjectiveFunction, error) {
	switch ObjectiveType(objType) {
	case ObjectiveMaximizeCapture:
		return &CaptureObjective{}, nil
	case ObjectiveMinimizeCostPerTonne:
		return &CostPerTonneObjective{}, nil
	case ObjectiveMinimizeSpecificEnergy:
		return &SpecificEnergyObjective{}, nil
	case ObjectiveMinimizeCurtailment:
		return &CurtailmentObjective{}, nil
	case ObjectiveMaximizeCapacityFactor:
		return &CapacityFactorObjective{}, nil
	default:
		return nil, &UnknownObjectiveError{ObjectiveType: objType}
	}
}

// CaptureObjective maximizes captured CO2
type CaptureObjective struct{}

func (o *CaptureObjective) Name() string    { return string(ObjectiveMaximizeCapture) }
func (o *CaptureObjective) Direction() bool { return false }

func (o *CaptureObjective) Evaluate(ev Evaluation) (float64, error) {
	return -ev.Summary.TotalCO2CapturedKg, nil
}

// CostPerTonneObjective minimizes the levelized cost of capture; needs a cost section
type CostPerTonneObjective struct{}

func (o *CostPerTonneObjective) Name() string    { return string(ObjectiveMinimizeCostPerTonne) }
func (o *CostPerTonneObjective) Direction() bool { return true }

func (o *CostPerTonneObjective) Evaluate(ev Evaluation) (float64, error) {
	if ev.Cost == nil {
		return 0, &InvalidMetricsError{Reason: "cost report is required (config has no cost section)"}
	}
	if !ev.Cost.CaptureRecorded {
		return noCapturePenalty, nil
	}
	return ev.Cost.CostPerTonneUSD.InexactFloat64(), nil
}

// SpecificEnergyObjective minimizes kWh spent per tonne captured
type SpecificEnergyObjective struct{}

func (o *SpecificEnergyObjective) Name() string    { return string(ObjectiveMinimizeSpecificEnergy) }
func (o *SpecificEnergyObjective) Direction() bool { return true }

func (o *SpecificEnergyObjective) Evaluate(ev Evaluation) (float64, error) {
	if ev.Summary.TotalCO2CapturedKg <= 0 {
		return noCapturePenalty, nil
	}
	return ev.Summary.SpecificEnergyKWhPerTonne(), nil
}

// CurtailmentObjective minimizes energy that was available but not used
type CurtailmentObjective struct{}

func (o *CurtailmentObjective) Name() string    { return string(ObjectiveMinimizeCurtailment) }
func (o *CurtailmentObjective) Direction() bool { return true }

func (o *CurtailmentObjective) Evaluate(ev Evaluation) (float64, error) {
	return ev.Summary.TotalEnergyCurtailedKWh, nil
}

// CapacityFactorObjective maximizes plant utilization
type CapacityFactorObjective struct{}

func (o *CapacityFactorObjective) Name() string    { return string(ObjectiveMaximizeCapacityFactor) }
func (o *CapacityFactorObjective) Direction() bool { return false }

func (o *CapacityFactorObjective) Evaluate(ev Evaluation) (float64, error) {
	if ev.CapacityKW <= 0 {
		return 0, &InvalidMetricsError{Reason: "plant capacity must be positive"}
	}
	return -ev.Summary.CapacityFactor(ev.CapacityKW), nil
}

// UnknownObjectiveError is returned for an unsupported objective name
type UnknownObjectiveError struct {
	ObjectiveType string
}

func (e *UnknownObjectiveError) Error() string {
	return fmt.Sprintf("unknown objective type: %s", e.ObjectiveType)
}

// Is makes unknown objectives match models.ErrInvalidInput
func (e *UnknownObjectiveError) Is(target error) bool {
	return target == models.ErrInvalidInput
}

// InvalidMetricsError is returned when a candidate cannot be scored
type InvalidMetricsError struct {
	Reason string
}

func (e *InvalidMetricsError) Error() string {
	return fmt.Sprintf("invalid metrics: %s", e.Reason)
}

func (e *InvalidMetricsError) Is(target error) bool {
	return target == models.ErrInvalidInput
}
