// register.go wires the grid engine into the sim package's registration
// variable (NewEngineFunc). This init() runs when any package imports
// sim/grid, breaking the import cycle between sim/ (interface owner) and
// sim/grid/ (implementation). Test code in package sim uses
// grid_import_test.go for the blank import.
package grid

import (
	"github.com/go-git/go-billy/v5"

	"github.com/droplet-sim/droplet-sim/sim"
)

var _ sim.Engine = (*Grid)(nil)

func init() {
	sim.NewEngineFunc = func(fs billy.Filesystem) sim.Engine {
		return New(fs)
	}
}
