// Package simulation orchestrates a complete lifnet run: seeding, network
// construction, the stepped simulation, raster export and persistence.
//
// Runner is used by both the CLI and the MCP server. Scenario and the
// Assert helpers build small hand-wired networks for dynamics tests.
//
// Usage:
//
//	r := simulation.Runner{Store: s, Logger: logger}
//	out, err := r.Run(ctx, simulation.Request{
//	    Config: engine.DefaultConfig(),
//	    Output: "spikes.csv",
//	})
package simulation
