package simd

import (
	"context"

	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
)

// OptimizationParams configures a tuning run (objective, iterations, step size, search space).
type OptimizationParams struct {
	Objective      string  `json:"objective"`      // e.g. "co2_captured", "cost_per_tonne"
	MaxIterations  int     `json:"max_iterations"` // default 20
	StepSize       float64 `json:"step_size"`      // default 1.0
	MaxUnits       int     `json:"max_units,omitempty"`
	ThresholdsOnly bool    `json:"thresholds_only,omitempty"`
	Limit          int     `json:"limit,omitempty"` // candidate horizons in flight
}

// OptimizationOutcome is the result of a tuning run
type OptimizationOutcome struct {
	Objective         string  `json:"objective"`
	InitialScore      float64 `json:"initial_score"`
	BestScore         float64 `json:"best_score"`
	Iterations        int     `json:"iterations"`
	Converged         bool    `json:"converged"`
	ConvergenceReason string  `json:"convergence_reason"`
	BestConfigYAML    string  `json:"best_config_yaml"`
}

// OptimizationRunner tunes a plant config by running candidate horizons.
// Implementations (e.g. improvement.Runner) are injected at startup.
type OptimizationRunner interface {
	RunOptimization(ctx context.Context, cfg *config.SimulationConfig, params OptimizationParams) (*OptimizationOutcome, error)
}
