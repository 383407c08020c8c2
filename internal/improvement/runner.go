package improvement

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/GoSim-25-26J-441/doc-simulation/internal/simd"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/logger"
)

const (
	defaultMaxIterations = 20
	defaultLimit         = 4
)

// Runner serves tuning requests for the run service
type Runner struct {
	log *slog.Logger
}

// NewRunner creates a runner logging to log (nil: logger.Default)
func NewRunner(log *slog.Logger) *Runner {
	if log == nil {
		log = logger.Default
	}
	return &Runner{log: log}
}

// RunOptimization implements simd.OptimizationRunner
func (r *Runner) RunOptimization(ctx context.Context, cfg *config.SimulationConfig, params simd.OptimizationParams) (*simd.OptimizationOutcome, error) {
	objective, err := NewObjectiveFunction(params.Objective)
	if err != nil {
		return nil, err
	}
	maxIter := params.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	maxUnits := params.MaxUnits
	if maxUnits <= 0 {
		maxUnits = 2 * cfg.EDUnit.NumberEDMax
	}

	optimizer := NewOptimizer(objective, maxIter, params.StepSize).
		WithExplorer(NewDefaultExplorer().WithMaxUnits(maxUnits).WithDesign(!params.ThresholdsOnly))

	r.log.Info("optimization started", "objective", objective.Name(), "max_iterations", maxIter)
	result, err := optimizer.Optimize(ctx, cfg, NewHorizonEvaluator(limit))
	if err != nil {
		return nil, err
	}
	r.log.Info("optimization finished",
		"objective", result.Objective,
		"initial_score", result.InitialScore,
		"best_score", result.BestScore,
		"iterations", result.Iterations,
		"reason", result.ConvergenceReason)

	data, err := yaml.Marshal(result.BestConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to encode best config: %w", err)
	}
	return &simd.OptimizationOutcome{
		Objective:         result.Objective,
		InitialScore:      result.InitialScore,
		BestScore:         result.BestScore,
		Iterations:        result.Iterations,
		Converged:         result.Converged,
		ConvergenceReason: result.ConvergenceReason,
		BestConfigYAML:    string(data),
	}, nil
}
