// Package rng centralizes the seeded random sources handed to the engines.
//
// math/rand/v2 generators are not goroutine-safe; callers running engines in
// parallel derive one stream per goroutine with Derive.
package rng

import "math/rand/v2"

// DefaultSeed is used when a caller passes seed 0.
const DefaultSeed uint64 = 1

// New returns a deterministic PCG-backed generator. Seed 0 maps to DefaultSeed.
func New(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = DefaultSeed
	}
	return rand.New(rand.NewPCG(seed, mix(seed, 0)))
}

// OrDefault returns r, or a fresh DefaultSeed generator when r is nil.
func OrDefault(r *rand.Rand) *rand.Rand {
	if r != nil {
		return r
	}
	return New(DefaultSeed)
}

// Derive mixes a parent seed and a stream identifier into an independent
// child seed.
func Derive(parent, stream uint64) uint64 {
	if parent == 0 {
		parent = DefaultSeed
	}
	return mix(parent, stream)
}

// mix is the SplitMix64 finalizer.
func mix(parent, stream uint64) uint64 {
	x := parent ^ (stream + 0x9e3779b97f4a7c15)
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
