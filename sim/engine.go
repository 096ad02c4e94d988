package sim

import (
	"context"
	"io"

	"github.com/go-git/go-billy/v5"
)

// Vec3 is a Cartesian vector (x, y, z).
type Vec3 [3]float64

// Cell is the engine's view of one active mesh cell. Pointers handed out by
// ForEachCell are only valid for the duration of the callback.
type Cell struct {
	X, Y, Z float64 // cell centre
	Delta   float64 // cell edge length
	F       float64 // volume fraction of phase 1
	P       float64 // pressure
	U       Vec3    // velocity
}

// Step is the engine's clock: iteration counter, simulation time and the last
// timestep taken.
type Step struct {
	I  int
	T  float64
	Dt float64
}

// EngineParams is the constant configuration handed to the engine at startup.
type EngineParams struct {
	Properties FluidPairProperties
	Boundary   BoundaryTable
	Tolerance  float64 // convergence tolerance for the engine's linear solvers
}

// Engine is the external two-phase flow solver. It owns the mesh, the fields
// and the clock; the driver only reads them, except for the velocity
// overwrite during initialization.
type Engine interface {
	// Name identifies the engine in logs.
	Name() string
	// Configure installs fluid properties, boundary conditions and tolerance.
	Configure(p EngineParams) error
	// InitGrid builds a cubic mesh of side size with cellsPerSide cells per
	// edge. cellsPerSide must be a power of two.
	InitGrid(size float64, cellsPerSide int) error
	// Mask deactivates every cell whose centre satisfies exclude and returns
	// the number of cells removed.
	Mask(exclude func(x, y, z float64) bool) int
	// Restore loads a checkpoint. Any error means no state was loaded.
	Restore(name string) error
	// Dump writes a checkpoint of the full state.
	Dump(name string) error
	// Fraction sets the volume fraction from an implicit function that is
	// positive inside phase 1.
	Fraction(phi func(x, y, z float64) float64)
	// ForEachCell visits every active cell.
	ForEachCell(fn func(c *Cell))
	// SyncBoundary re-applies boundary conditions after a direct field write.
	SyncBoundary()
	// SetCFL bounds the advective timestep.
	SetCFL(cfl float64)
	// Advance takes one timestep without stepping past tStop.
	Advance(ctx context.Context, tStop float64) error
	// Step reports the current clock.
	Step() Step
	// WriteSnapshot serializes f, p and u over the active mesh.
	WriteSnapshot(w io.Writer, t float64) error
}

// NewEngineFunc builds the default engine over an artifact filesystem.
// Set by sim/grid's init(); nil until that package is imported.
var NewEngineFunc func(fs billy.Filesystem) Engine
