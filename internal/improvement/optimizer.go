package improvement

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/GoSim-25-26J-441/doc-simulation/internal/cost"
	"github.com/GoSim-25-26J-441/doc-simulation/internal/engine"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/logger"
)

// Outcome is the evaluation of one candidate config
type Outcome struct {
	Evaluation Evaluation
	Err        error
}

// Evaluator runs candidate configs; results share the index of their config
type Evaluator interface {
	Evaluate(ctx context.Context, cfgs []*config.SimulationConfig) []Outcome
}

// EvaluatorFunc adapts a function to Evaluator
type EvaluatorFunc func(ctx context.Context, cfgs []*config.SimulationConfig) []Outcome

func (f EvaluatorFunc) Evaluate(ctx context.Context, cfgs []*config.SimulationConfig) []Outcome {
	return f(ctx, cfgs)
}

// HorizonEvaluator runs each candidate as a full horizon through engine.RunBatch
type HorizonEvaluator struct {
	limit int
	costs *cost.Model
	log   *slog.Logger
}

// NewHorizonEvaluator runs at most limit horizons at once (limit <= 0: unbounded)
func NewHorizonEvaluator(limit int) *HorizonEvaluator {
	return &HorizonEvaluator{
		limit: limit,
		costs: cost.NewModel(),
		log:   logger.Discard(),
	}
}

// WithLogger sets the logger handed to every candidate horizon
func (e *HorizonEvaluator) WithLogger(l *slog.Logger) *HorizonEvaluator {
	e.log = l
	return e
}

func (e *HorizonEvaluator) Evaluate(ctx context.Context, cfgs []*config.SimulationConfig) []Outcome {
	jobs := make([]engine.Job, len(cfgs))
	for i, cfg := range cfgs {
		jobs[i] = engine.Job{Config: cfg, Options: []engine.Option{engine.WithLogger(e.log)}}
	}

	results := engine.RunBatch(ctx, jobs, e.limit)
	out := make([]Outcome, len(cfgs))
	for i, r := range results {
		if r.Err != nil {
			out[i].Err = r.Err
			continue
		}
		ev := Evaluation{Summary: *r.Summary, CapacityKW: cfgs[i].EDUnit.CapacityKW()}
		if cfgs[i].Cost != nil {
			report, err := e.costs.Evaluate(cfgs[i], *r.Summary)
			if err != nil {
				out[i].Err = err
				continue
			}
			ev.Cost = &report
		}
		out[i].Evaluation = ev
	}
	return out
}

// Optimizer implements a hill-climbing optimization algorithm.
// When no neighbor improves, the step size is halved before the next iteration.
type Optimizer struct {
	objective     ObjectiveFunction
	maxIterations int
	stepSize      float64
	explorer      ParameterExplorer
	convergence   ConvergenceStrategy
	mu            sync.RWMutex
	bestScore     float64
	bestConfig    *config.SimulationConfig
	iteration     int
	history       []OptimizationStep
}

// OptimizationStep represents a single optimization step
type OptimizationStep struct {
	Iteration int                      `json:"iteration"`
	Score     float64                  `json:"score"`
	StepSize  float64                  `json:"step_size"`
	Config    *config.SimulationConfig `json:"-"`
}

// OptimizationResult contains the final optimization result
type OptimizationResult struct {
	Objective         string                   `json:"objective"`
	BestConfig        *config.SimulationConfig `json:"-"`
	BestScore         float64                  `json:"best_score"`
	InitialScore      float64                  `json:"initial_score"`
	Iterations        int                      `json:"iterations"`
	History           []OptimizationStep       `json:"history"`
	Converged         bool                     `json:"converged"`
	ConvergenceReason string                   `json:"convergence_reason"`
}

// NewOptimizer creates a new hill-climbing optimizer
func NewOptimizer(objective ObjectiveFunction, maxIterations int, stepSize float64) *Optimizer {
	if stepSize <= 0 {
		stepSize = 1.0
	}
	return &Optimizer{
		objective:     objective,
		maxIterations: maxIterations,
		stepSize:      stepSize,
		explorer:      NewDefaultExplorer(),
		convergence:   NewCombinedStrategy(nil),
		bestScore:     math.MaxFloat64,
		history:       make([]OptimizationStep, 0),
	}
}

// WithExplorer sets a custom parameter exploration strategy
func (o *Optimizer) WithExplorer(explorer ParameterExplorer) *Optimizer {
	o.explorer = explorer
	return o
}

// WithConvergence sets a custom convergence strategy
func (o *Optimizer) WithConvergence(strategy ConvergenceStrategy) *Optimizer {
	o.convergence = strategy
	return o
}

// Optimize climbs from initial until convergence, maxIterations or ctx cancellation.
// On cancellation the best result so far is returned along with ctx.Err().
func (o *Optimizer) Optimize(ctx context.Context, initial *config.SimulationConfig, eval Evaluator) (*OptimizationResult, error) {
	if initial == nil {
		return nil, fmt.Errorf("initial configuration is required")
	}
	if eval == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if o.objective == nil {
		return nil, fmt.Errorf("objective is required")
	}

	initialScore, err := o.score(eval.Evaluate(ctx, []*config.SimulationConfig{initial})[0])
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate initial configuration: %w", err)
	}

	o.mu.Lock()
	o.iteration = 0
	o.bestScore = initialScore
	o.bestConfig = initial.Clone()
	o.history = []OptimizationStep{{Iteration: 0, Score: initialScore, StepSize: o.stepSize, Config: initial.Clone()}}
	o.mu.Unlock()

	current, currentScore := initial, initialScore
	step := o.stepSize

	for iteration := 1; iteration <= o.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return o.buildResult(initialScore, false, "cancelled"), err
		}
		o.mu.Lock()
		o.iteration = iteration
		o.mu.Unlock()

		neighbors := o.explorer.GenerateNeighbors(current, step)
		if len(neighbors) == 0 {
			return o.buildResult(initialScore, true, "no valid neighbors"), nil
		}

		bestNeighbor, bestNeighborScore := -1, math.MaxFloat64
		for i, outcome := range eval.Evaluate(ctx, neighbors) {
			score, err := o.score(outcome)
			if err != nil {
				// failed candidates are skipped
				continue
			}
			if score < bestNeighborScore {
				bestNeighbor, bestNeighborScore = i, score
			}
		}
		if err := ctx.Err(); err != nil {
			return o.buildResult(initialScore, false, "cancelled"), err
		}

		if bestNeighbor >= 0 && bestNeighborScore < currentScore {
			current, currentScore = neighbors[bestNeighbor], bestNeighborScore
		} else {
			step /= 2
		}

		o.mu.Lock()
		if currentScore < o.bestScore {
			o.bestScore = currentScore
			o.bestConfig = current.Clone()
		}
		o.history = append(o.history, OptimizationStep{
			Iteration: iteration,
			Score:     currentScore,
			StepSize:  step,
			Config:    current.Clone(),
		})
		history := o.history
		o.mu.Unlock()

		if converged, reason := o.convergence.CheckConvergence(history); converged {
			return o.buildResult(initialScore, true, reason), nil
		}
	}

	return o.buildResult(initialScore, false, "max iterations reached"), nil
}

func (o *Optimizer) score(outcome Outcome) (float64, error) {
	if outcome.Err != nil {
		return 0, outcome.Err
	}
	score, err := o.objective.Evaluate(outcome.Evaluation)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(score) {
		return 0, &InvalidMetricsError{Reason: "objective returned NaN"}
	}
	return score, nil
}

// buildResult constructs the optimization result
func (o *Optimizer) buildResult(initialScore float64, converged bool, reason string) *OptimizationResult {
	o.mu.RLock()
	defer o.mu.RUnlock()

	history := make([]OptimizationStep, len(o.history))
	copy(history, o.history)
	return &OptimizationResult{
		Objective:         o.objective.Name(),
		BestConfig:        o.bestConfig.Clone(),
		BestScore:         o.bestScore,
		InitialScore:      initialScore,
		Iterations:        o.iteration,
		History:           history,
		Converged:         converged,
		ConvergenceReason: reason,
	}
}
