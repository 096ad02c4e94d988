package sim_test

// Blank import triggers sim/grid's init(), which registers NewEngineFunc.
// This allows package sim's internal test files to create the reference
// engine without directly importing sim/grid (which would create an import cycle).
import _ "github.com/droplet-sim/droplet-sim/sim/grid"
