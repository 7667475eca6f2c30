// Package connectivity builds the directed random graph that wires a neuron
// population together.
package connectivity

import (
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/lifnet/internal/randsrc"
)

var (
	// ErrInvalidProbability is returned when p is outside [0, 1].
	ErrInvalidProbability = errors.New("connection probability must be in [0, 1]")

	// ErrInvalidSize is returned for a negative population size.
	ErrInvalidSize = errors.New("population size must be non-negative")
)

// Topology holds the outgoing target list of every neuron, by index.
// Lists are in ascending target order and never contain their own index.
type Topology [][]int

// Generate draws an Erdős–Rényi style graph over n neurons. Every ordered
// pair (i, j) with i != j gets exactly one Bernoulli(p) draw, in row-major
// order; self pairs are never drawn.
func Generate(n int, p float64, src randsrc.Source) (Topology, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, n)
	}
	if p < 0 || p > 1 || math.IsNaN(p) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidProbability, p)
	}

	topo := make(Topology, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if src.Bernoulli(p) {
				topo[i] = append(topo[i], j)
			}
		}
	}
	return topo, nil
}

// N returns the number of neurons in the topology.
func (t Topology) N() int {
	return len(t)
}

// OutDegree returns the number of targets of neuron i.
func (t Topology) OutDegree(i int) int {
	return len(t[i])
}

// InDegrees returns, for every neuron, how many sources project to it.
func (t Topology) InDegrees() []int {
	in := make([]int, len(t))
	for _, targets := range t {
		for _, j := range targets {
			in[j]++
		}
	}
	return in
}

// Edges returns the total number of directed connections.
func (t Topology) Edges() int {
	total := 0
	for _, targets := range t {
		total += len(targets)
	}
	return total
}

// Density returns the fraction of possible (non-self) edges present.
func (t Topology) Density() float64 {
	n := len(t)
	if n < 2 {
		return 0
	}
	return float64(t.Edges()) / float64(n*(n-1))
}

// Validate checks that every target index is in range and no neuron
// targets itself.
func (t Topology) Validate() error {
	n := len(t)
	for i, targets := range t {
		for _, j := range targets {
			if j < 0 || j >= n {
				return fmt.Errorf("neuron %d: target %d out of range [0, %d)", i, j, n)
			}
			if j == i {
				return fmt.Errorf("neuron %d: self connection", i)
			}
		}
	}
	return nil
}
