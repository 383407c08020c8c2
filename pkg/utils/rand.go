package utils

import (
	"math/rand/v2"
	"time"
)

// RandSource draws reproducible samples for synthetic profiles. It is not safe for concurrent use.
type RandSource struct {
	rng *rand.Rand
}

// NewRandSource seeds a PCG stream; seed 0 takes the wall clock
func NewRandSource(seed int64) *RandSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := uint64(seed)
	return &RandSource{rng: rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))}
}

// Float64 is uniform in [0, 1)
func (r *RandSource) Float64() float64 { return r.rng.Float64() }

// NormFloat64 draws from N(mean, stddev²)
func (r *RandSource) NormFloat64(mean, stddev float64) float64 {
	return mean + stddev*r.rng.NormFloat64()
}

// UniformFloat64 is uniform in [lo, hi)
func (r *RandSource) UniformFloat64(lo, hi float64) float64 {
	return lo + (hi-lo)*r.rng.Float64()
}

// ClampFloat64 limits v to [lo, hi]
func ClampFloat64(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
