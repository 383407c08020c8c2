// Package workload generates synthetic available-power series for plants without
// a measured wind or solar record.
package workload

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/utils"
)

// maxSteps matches the longest horizon a config accepts
const maxSteps = config.MaxSteps

// Spec describes a synthetic power profile. Power values are in kW.
type Spec struct {
	Type          string  `json:"type" yaml:"type"` // constant, uniform, normal, bursty, diurnal, wind
	Steps         int     `json:"steps" yaml:"steps"`
	TimestepHours float64 `json:"timestep_hours" yaml:"timestep_hours"` // default 1
	MeanKW        float64 `json:"mean_kw" yaml:"mean_kw"`
	MinKW         float64 `json:"min_kw,omitempty" yaml:"min_kw,omitempty"`
	MaxKW         float64 `json:"max_kw,omitempty" yaml:"max_kw,omitempty"`
	StdDevKW      float64 `json:"stddev_kw,omitempty" yaml:"stddev_kw,omitempty"`
	PeakKW        float64 `json:"peak_kw,omitempty" yaml:"peak_kw,omitempty"`
	BurstKW       float64 `json:"burst_kw,omitempty" yaml:"burst_kw,omitempty"`
	BurstSteps    int     `json:"burst_steps,omitempty" yaml:"burst_steps,omitempty"`
	QuietSteps    int     `json:"quiet_steps,omitempty" yaml:"quiet_steps,omitempty"`
	Seed          int64   `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// Generator generates power series based on profile specifications
type Generator struct {
	rng *utils.RandSource
}

// NewGenerator creates a new generator; a zero seed is time based
func NewGenerator(seed int64) *Generator {
	return &Generator{
		rng: utils.NewRandSource(seed),
	}
}

// Generate builds a series with a generator seeded from spec.Seed
func Generate(spec Spec) ([]float64, error) {
	return NewGenerator(spec.Seed).Generate(spec)
}

// Generate builds the series for spec. Every value is non-negative.
func (g *Generator) Generate(spec Spec) ([]float64, error) {
	if spec.Steps <= 0 || spec.Steps > maxSteps {
		return nil, fmt.Errorf("steps must be in [1, %d], got %d", maxSteps, spec.Steps)
	}
	if spec.TimestepHours == 0 {
		spec.TimestepHours = 1
	}
	if spec.TimestepHours < 0 {
		return nil, fmt.Errorf("timestep_hours must be positive, got %f", spec.TimestepHours)
	}

	switch spec.Type {
	case "constant", "":
		return g.constant(spec)
	case "uniform":
		return g.uniform(spec)
	case "normal", "gaussian":
		return g.normal(spec)
	case "bursty":
		return g.bursty(spec)
	case "diurnal", "solar":
		return g.diurnal(spec)
	case "wind":
		return g.wind(spec)
	default:
		return nil, fmt.Errorf("unknown profile type %q", spec.Type)
	}
}

func (g *Generator) constant(spec Spec) ([]float64, error) {
	if spec.MeanKW < 0 {
		return nil, fmt.Errorf("mean_kw cannot be negative, got %f", spec.MeanKW)
	}
	out := make([]float64, spec.Steps)
	for i := range out {
		out[i] = spec.MeanKW
	}
	return out, nil
}

func (g *Generator) uniform(spec Spec) ([]float64, error) {
	if spec.MinKW < 0 || spec.MaxKW <= spec.MinKW {
		return nil, fmt.Errorf("uniform profile needs 0 <= min_kw < max_kw, got [%f, %f)", spec.MinKW, spec.MaxKW)
	}
	out := make([]float64, spec.Steps)
	for i := range out {
		out[i] = g.rng.UniformFloat64(spec.MinKW, spec.MaxKW)
	}
	return out, nil
}

func (g *Generator) normal(spec Spec) ([]float64, error) {
	if spec.MeanKW <= 0 {
		return nil, fmt.Errorf("mean_kw must be positive, got %f", spec.MeanKW)
	}
	stddev := spec.MeanKW * 0.1 // 10% when not given
	if spec.StdDevKW > 0 {
		stddev = spec.StdDevKW
	}
	out := make([]float64, spec.Steps)
	for i := range out {
		out[i] = math.Max(0, g.rng.NormFloat64(spec.MeanKW, stddev))
	}
	return out, nil
}

// bursty alternates quiet periods at mean_kw with bursts at burst_kw (gusts)
func (g *Generator) bursty(spec Spec) ([]float64, error) {
	if spec.MeanKW < 0 {
		return nil, fmt.Errorf("mean_kw cannot be negative, got %f", spec.MeanKW)
	}
	burstKW := spec.MeanKW * 5
	if spec.BurstKW > 0 {
		burstKW = spec.BurstKW
	}
	burst, quiet := spec.BurstSteps, spec.QuietSteps
	if burst <= 0 {
		burst = 1
	}
	if quiet <= 0 {
		quiet = 3
	}

	out := make([]float64, spec.Steps)
	cycle := burst + quiet
	for i := range out {
		if i%cycle < burst {
			out[i] = burstKW
		} else {
			out[i] = spec.MeanKW
		}
	}
	return out, nil
}

// diurnal is a solar day: a half sine between 06:00 and 18:00 with optional noise
func (g *Generator) diurnal(spec Spec) ([]float64, error) {
	if spec.PeakKW <= 0 {
		return nil, fmt.Errorf("peak_kw must be positive, got %f", spec.PeakKW)
	}
	out := make([]float64, spec.Steps)
	for i := range out {
		hour := math.Mod(float64(i)*spec.TimestepHours, 24)
		v := 0.0
		if hour > 6 && hour < 18 {
			v = spec.PeakKW * math.Sin(math.Pi*(hour-6)/12)
			if spec.StdDevKW > 0 {
				v = g.rng.NormFloat64(v, spec.StdDevKW)
			}
		}
		out[i] = utils.ClampFloat64(v, 0, spec.PeakKW)
	}
	return out, nil
}

// wind is a bounded random walk starting at mean_kw
func (g *Generator) wind(spec Spec) ([]float64, error) {
	if spec.PeakKW <= 0 {
		return nil, fmt.Errorf("peak_kw must be positive, got %f", spec.PeakKW)
	}
	stddev := spec.PeakKW * 0.1
	if spec.StdDevKW > 0 {
		stddev = spec.StdDevKW
	}
	p := utils.ClampFloat64(spec.MeanKW, 0, spec.PeakKW)

	out := make([]float64, spec.Steps)
	for i := range out {
		out[i] = p
		p = utils.ClampFloat64(p+g.rng.NormFloat64(0, stddev), 0, spec.PeakKW)
	}
	return out, nil
}
