package improvement

import (
	"fmt"
	"math"
)

// ConvergenceStrategy decides from the climb history whether tuning should stop
type ConvergenceStrategy interface {
	CheckConvergence(history []OptimizationStep) (bool, string)
	Name() string
}

// ConvergenceConfig holds the stopping rules of a climb
type ConvergenceConfig struct {
	// NoImprovementIterations is how many iterations may pass without a better score
	NoImprovementIterations int
	// ImprovementThreshold is the smallest relative gain that still counts as progress
	ImprovementThreshold float64
	// MinIterations is the history length (excluding the initial score) before any rule applies
	MinIterations int
	// MinStepSize stops refinement once failed climbs have halved the step below it
	MinStepSize float64
}

// DefaultConvergenceConfig stops after three failed climbs or a gain under 0.1%
func DefaultConvergenceConfig() *ConvergenceConfig {
	return &ConvergenceConfig{
		NoImprovementIterations: 3,
		ImprovementThreshold:    0.001,
		MinIterations:           2,
		MinStepSize:             1.0 / 64,
	}
}

func configOrDefault(config *ConvergenceConfig) *ConvergenceConfig {
	if config == nil {
		return DefaultConvergenceConfig()
	}
	return config
}

// NoImprovementStrategy stops when the best score is NoImprovementIterations entries old
type NoImprovementStrategy struct {
	config *ConvergenceConfig
}

func NewNoImprovementStrategy(config *ConvergenceConfig) *NoImprovementStrategy {
	return &NoImprovementStrategy{config: configOrDefault(config)}
}

func (s *NoImprovementStrategy) Name() string {
	return "no_improvement"
}

func (s *NoImprovementStrategy) CheckConvergence(history []OptimizationStep) (bool, string) {
	if len(history) == 0 || len(history) < s.config.MinIterations {
		return false, ""
	}

	// first occurrence of the lowest score; ties do not count as progress
	best := 0
	for i := range history {
		if history[i].Score < history[best].Score {
			best = i
		}
	}

	stale := len(history) - 1 - best
	if stale < s.config.NoImprovementIterations {
		return false, ""
	}
	return true, fmt.Sprintf("no improvement for %d iterations (best score %.4f at iteration %d)",
		stale, history[best].Score, history[best].Iteration)
}

// ThresholdStrategy stops when the latest move gained less than ImprovementThreshold,
// relative to the magnitude of the previous score
type ThresholdStrategy struct {
	config *ConvergenceConfig
}

func NewThresholdStrategy(config *ConvergenceConfig) *ThresholdStrategy {
	return &ThresholdStrategy{config: configOrDefault(config)}
}

func (s *ThresholdStrategy) Name() string {
	return "improvement_threshold"
}

func (s *ThresholdStrategy) CheckConvergence(history []OptimizationStep) (bool, string) {
	n := len(history)
	if n < 2 || n < s.config.MinIterations+1 {
		return false, ""
	}
	prev, cur := history[n-2].Score, history[n-1].Score
	// a failed climb is left to NoImprovementStrategy
	if cur >= prev || prev == 0 {
		return false, ""
	}

	gain := (prev - cur) / math.Abs(prev)
	if gain >= s.config.ImprovementThreshold {
		return false, ""
	}
	return true, fmt.Sprintf("improvement below threshold (%.4f%% < %.4f%%)", gain*100, s.config.ImprovementThreshold*100)
}

// StepSizeStrategy stops when the step size recorded in the latest entry is below MinStepSize
type StepSizeStrategy struct {
	config *ConvergenceConfig
}

func NewStepSizeStrategy(config *ConvergenceConfig) *StepSizeStrategy {
	return &StepSizeStrategy{config: configOrDefault(config)}
}

func (s *StepSizeStrategy) Name() string {
	return "step_size"
}

func (s *StepSizeStrategy) CheckConvergence(history []OptimizationStep) (bool, string) {
	if len(history) == 0 || s.config.MinStepSize <= 0 {
		return false, ""
	}
	step := history[len(history)-1].StepSize
	if step >= s.config.MinStepSize {
		return false, ""
	}
	return true, fmt.Sprintf("step size %g below minimum %g", step, s.config.MinStepSize)
}

// CombinedStrategy stops as soon as one of its strategies does, checked in order
type CombinedStrategy struct {
	strategies []ConvergenceStrategy
}

// NewCombinedStrategy checks no-improvement, then the improvement threshold, then the step size
func NewCombinedStrategy(config *ConvergenceConfig) *CombinedStrategy {
	config = configOrDefault(config)
	return &CombinedStrategy{
		strategies: []ConvergenceStrategy{
			NewNoImprovementStrategy(config),
			NewThresholdStrategy(config),
			NewStepSizeStrategy(config),
		},
	}
}

func (s *CombinedStrategy) Name() string {
	return "combined"
}

func (s *CombinedStrategy) CheckConvergence(history []OptimizationStep) (bool, string) {
	for _, strategy := range s.strategies {
		if ok, reason := strategy.CheckConvergence(history); ok {
			return true, strategy.Name() + ": " + reason
		}
	}
	return false, ""
}

// AddStrategy appends a strategy, checked after the existing ones
func (s *CombinedStrategy) AddStrategy(strategy ConvergenceStrategy) {
	s.strategies = append(s.strategies, strategy)
}
