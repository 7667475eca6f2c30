// Package randsrc provides the single pseudo-random stream shared by network
// construction and per-step neuron updates.
//
// Every draw, uniform or Bernoulli, consumes exactly one value from the
// underlying PCG generator, so a run is reproducible from its seed as long as
// the call order is unchanged.
package randsrc

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
)

// pcgIncrement is mixed into the second PCG word so that seed 0 still
// produces a well-distributed stream.
const pcgIncrement = 0xda3e39cb94b95bdb

// Source is the contract every stochastic component draws from.
type Source interface {
	// Uniform returns a real in [0, 1).
	Uniform() float64
	// Bernoulli returns true with probability p.
	Bernoulli(p float64) bool
}

// Rand is a seeded Source over a PCG stream. Every Uniform or Bernoulli
// call consumes exactly one 64-bit draw. It is not safe for concurrent use.
type Rand struct {
	seed uint64
	rng  *rand.Rand
}

// New returns a deterministic Rand for the given seed.
func New(seed uint64) *Rand {
	return &Rand{
		seed: seed,
		rng:  rand.New(rand.NewPCG(seed, seed^pcgIncrement)),
	}
}

// NewEntropy seeds a Rand from the operating system's entropy source and
// returns the seed so the run can be recorded and replayed.
func NewEntropy() (*Rand, uint64, error) {
	seed, err := EntropySeed()
	if err != nil {
		return nil, 0, err
	}
	return New(seed), seed, nil
}

// EntropySeed reads a fresh 64-bit seed from crypto/rand.
func EntropySeed() (uint64, error) {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("reading entropy: %w", err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// Seed returns the seed this stream was created with.
func (r *Rand) Seed() uint64 {
	return r.seed
}

// Uniform returns a real in [0, 1).
func (r *Rand) Uniform() float64 {
	return r.rng.Float64()
}

// Bernoulli returns true with probability p. Probabilities at or above 1
// always succeed and at or below 0 never do.
func (r *Rand) Bernoulli(p float64) bool {
	return r.rng.Float64() < p
}
