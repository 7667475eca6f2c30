package simulation

import (
	"errors"
	"fmt"

	"github.com/nvandessel/lifnet/internal/connectivity"
	"github.com/nvandessel/lifnet/internal/randsrc"
	"github.com/nvandessel/lifnet/internal/store"
)

// ErrTopologyMismatch is returned when a stored run's seed does not
// regenerate a network with the recorded number of connections, e.g. because
// the run used a hand-built topology.
var ErrTopologyMismatch = errors.New("topology cannot be reproduced from the run seed")

// ReplayTopology regenerates the connectivity of a stored run from its seed.
// Topologies are never stored; the connectivity draws come first from the
// seeded source, so the seed alone determines them.
func ReplayTopology(run store.Run) (connectivity.Topology, error) {
	topo, err := connectivity.Generate(run.Neurons, run.ConnectionProb, randsrc.New(run.Seed))
	if err != nil {
		return nil, err
	}
	if topo.Edges() != run.Edges {
		return nil, fmt.Errorf("%w: got %d connections, run recorded %d",
			ErrTopologyMismatch, topo.Edges(), run.Edges)
	}
	return topo, nil
}
