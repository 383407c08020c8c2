package improvement

import (
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
)

// ParameterExplorer defines strategies for exploring the parameter space
type ParameterExplorer interface {
	// GenerateNeighbors returns valid configs one step away from base
	GenerateNeighbors(base *config.SimulationConfig, stepSize float64) []*config.SimulationConfig
	Name() string
}

// DefaultExplorer moves the mode thresholds and, unless disabled, the stack count and tank size
type DefaultExplorer struct {
	maxUnits        int     // 0: no upper bound
	thresholdStepKW float64 // 0: the power of one stack
	storeHoursStep  float64
	tuneDesign      bool
}

// NewDefaultExplorer creates a new default parameter explorer
func NewDefaultExplorer() *DefaultExplorer {
	return &DefaultExplorer{
		storeHoursStep: 1,
		tuneDesign:     true,
	}
}

// WithMaxUnits bounds number_ed_max
func (e *DefaultExplorer) WithMaxUnits(n int) *DefaultExplorer {
	e.maxUnits = n
	return e
}

// WithThresholdStep sets the threshold move in kW at step size 1
func (e *DefaultExplorer) WithThresholdStep(kw float64) *DefaultExplorer {
	e.thresholdStepKW = kw
	return e
}

// WithStoreHoursStep sets the tank size move in hours at step size 1
func (e *DefaultExplorer) WithStoreHoursStep(h float64) *DefaultExplorer {
	e.storeHoursStep = h
	return e
}

// WithDesign enables or disables sizing moves (stack count and tank size)
func (e *DefaultExplorer) WithDesign(enabled bool) *DefaultExplorer {
	e.tuneDesign = enabled
	return e
}

func (e *DefaultExplorer) Name() string {
	return "default"
}

func (e *DefaultExplorer) GenerateNeighbors(base *config.SimulationConfig, stepSize float64) []*config.SimulationConfig {
	if stepSize <= 0 {
		stepSize = 1
	}
	neighbors := make([]*config.SimulationConfig, 0)
	add := func(c *config.SimulationConfig) {
		if c.Revalidate() == nil {
			neighbors = append(neighbors, c)
		}
	}

	for _, c := range e.exploreThresholds(base, stepSize) {
		add(c)
	}
	if e.tuneDesign {
		for _, c := range e.exploreUnits(base) {
			add(c)
		}
		for _, c := range e.exploreStorage(base, stepSize) {
			add(c)
		}
	}
	return neighbors
}

// withThresholds clones base with both thresholds pinned, so sizing moves do not shift derived defaults
func withThresholds(base *config.SimulationConfig, partial, full float64) *config.SimulationConfig {
	c := base.Clone()
	c.Policy.PartialThresholdKW = &partial
	c.Policy.FullThresholdKW = &full
	return c
}

func (e *DefaultExplorer) exploreThresholds(base *config.SimulationConfig, stepSize float64) []*config.SimulationConfig {
	step := e.thresholdStepKW
	if step <= 0 {
		step = base.EDUnit.UnitPowerKW()
	}
	step *= stepSize

	partial, full, _ := base.Policy.Thresholds(base.EDUnit)
	out := make([]*config.SimulationConfig, 0, 4)
	for _, delta := range []float64{-step, step} {
		out = append(out, withThresholds(base, partial+delta, full))
		out = append(out, withThresholds(base, partial, full+delta))
	}
	return out
}

func (e *DefaultExplorer) exploreUnits(base *config.SimulationConfig) []*config.SimulationConfig {
	partial, full, _ := base.Policy.Thresholds(base.EDUnit)

	out := make([]*config.SimulationConfig, 0, 2)
	for _, delta := range []int{-1, 1} {
		n := base.EDUnit.NumberEDMax + delta
		if n < base.EDUnit.NumberEDMin || (e.maxUnits > 0 && n > e.maxUnits) {
			continue
		}
		c := withThresholds(base, partial, full)
		c.EDUnit.NumberEDMax = n
		out = append(out, c)
	}
	return out
}

func (e *DefaultExplorer) exploreStorage(base *config.SimulationConfig, stepSize float64) []*config.SimulationConfig {
	if !base.EDUnit.UseStorageTanks || e.storeHoursStep <= 0 {
		return nil
	}
	step := e.storeHoursStep * stepSize

	out := make([]*config.SimulationConfig, 0, 2)
	for _, delta := range []float64{-step, step} {
		h := base.EDUnit.StoreHours + delta
		if h <= 0 {
			continue
		}
		c := base.Clone()
		c.EDUnit.StoreHours = h
		out = append(out, c)
	}
	return out
}
