package planner

import "math/rand"

// Rng is a seeded uniform sampler. It is an explicit parameter of the
// planner so that a run is reproducible from (config, seed, inputs).
type Rng struct {
	src *rand.Rand
}

// NewRng creates a sampler from a seed.
func NewRng(seed int64) *Rng {
	return &Rng{src: rand.New(rand.NewSource(seed))}
}

// Uniform draws from U(lo, hi).
func (r *Rng) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*r.src.Float64()
}
