// Package grid is a uniform-grid reference implementation of sim.Engine.
//
// It meshes a cube of 2^level cells per side, transports the volume fraction
// with first-order upwind fluxes, applies explicit viscosity and a
// balanced-force surface-tension term, and projects the velocity with a
// variable-density pressure solve. Momentum advection is not modelled: the
// benchmark's reference solution is uniform translation.
package grid

import (
	"errors"
	"fmt"

	"github.com/go-git/go-billy/v5"

	"github.com/droplet-sim/droplet-sim/sim"
)

const (
	maxCellsPerSide = 256
	samplesPerAxis  = 4
)

var (
	// ErrUnstable reports a timestep that collapsed or a field that went non-finite.
	ErrUnstable = errors.New("numerical instability")
	// ErrNotConverged reports a pressure solve that exceeded its iteration cap.
	ErrNotConverged = errors.New("pressure projection did not converge")
	// ErrNoCheckpoint reports a missing checkpoint file.
	ErrNoCheckpoint = errors.New("no checkpoint")
	// ErrNoGrid is returned by operations that need InitGrid first.
	ErrNoGrid = errors.New("grid not initialized")
)

// Grid implements sim.Engine on a uniform Cartesian mesh.
type Grid struct {
	fs billy.Filesystem

	size   float64
	n      int
	delta  float64
	cells  []sim.Cell
	active []bool

	params sim.EngineParams
	cfl    float64
	step   sim.Step
	umax   float64

	// MaxIterations caps the pressure solve.
	MaxIterations int
	// Omega is the over-relaxation factor of the pressure solve.
	Omega float64
	// LastIterations is the iteration count of the latest pressure solve.
	LastIterations int
}

// New returns an engine that reads and writes checkpoints on fs.
func New(fs billy.Filesystem) *Grid {
	return &Grid{
		fs:            fs,
		cfl:           0.5,
		MaxIterations: 20000,
		Omega:         1.7,
	}
}

// Name implements sim.Engine.
func (g *Grid) Name() string { return "grid" }

// Configure implements sim.Engine.
func (g *Grid) Configure(p sim.EngineParams) error {
	if err := p.Boundary.Validate(); err != nil {
		return err
	}
	if p.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be > 0, got %g", p.Tolerance)
	}
	props := p.Properties
	if props.Rho1 <= 0 || props.Rho2 <= 0 || props.Mu1 < 0 || props.Mu2 < 0 || props.Sigma < 0 {
		return fmt.Errorf("non-physical fluid properties %+v", props)
	}
	g.params = p
	return nil
}

// InitGrid implements sim.Engine. The clock is reset.
func (g *Grid) InitGrid(size float64, cellsPerSide int) error {
	if size <= 0 {
		return fmt.Errorf("grid size must be > 0, got %g", size)
	}
	if cellsPerSide <= 0 || cellsPerSide&(cellsPerSide-1) != 0 {
		return fmt.Errorf("cells per side must be a power of two, got %d", cellsPerSide)
	}
	if cellsPerSide > maxCellsPerSide {
		return fmt.Errorf("cells per side %d exceeds %d", cellsPerSide, maxCellsPerSide)
	}
	g.allocate(size, cellsPerSide)
	g.step = sim.Step{}
	g.umax = 0
	return nil
}

func (g *Grid) allocate(size float64, n int) {
	g.size = size
	g.n = n
	g.delta = size / float64(n)
	g.cells = make([]sim.Cell, n*n*n)
	g.active = make([]bool, n*n*n)
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				id := g.idx(i, j, k)
				g.cells[id] = sim.Cell{
					X:     (float64(i) + 0.5) * g.delta,
					Y:     (float64(j) + 0.5) * g.delta,
					Z:     (float64(k) + 0.5) * g.delta,
					Delta: g.delta,
				}
				g.active[id] = true
			}
		}
	}
}

// CellsPerSide returns the cube's resolution.
func (g *Grid) CellsPerSide() int { return g.n }

// ActiveCells returns the number of cells that survived masking.
func (g *Grid) ActiveCells() int {
	count := 0
	for _, a := range g.active {
		if a {
			count++
		}
	}
	return count
}

// Mask implements sim.Engine.
func (g *Grid) Mask(exclude func(x, y, z float64) bool) int {
	removed := 0
	for id := range g.cells {
		if !g.active[id] {
			continue
		}
		c := &g.cells[id]
		if exclude(c.X, c.Y, c.Z) {
			g.active[id] = false
			removed++
		}
	}
	return removed
}

// ForEachCell implements sim.Engine.
func (g *Grid) ForEachCell(fn func(c *sim.Cell)) {
	for id := range g.cells {
		if g.active[id] {
			fn(&g.cells[id])
		}
	}
}

// Fraction implements sim.Engine by sub-sampling phi on a regular lattice
// inside each cell.
func (g *Grid) Fraction(phi func(x, y, z float64) float64) {
	const total = samplesPerAxis * samplesPerAxis * samplesPerAxis
	h := g.delta / samplesPerAxis
	g.ForEachCell(func(c *sim.Cell) {
		x0, y0, z0 := c.X-g.delta/2, c.Y-g.delta/2, c.Z-g.delta/2
		inside := 0
		for a := 0; a < samplesPerAxis; a++ {
			for b := 0; b < samplesPerAxis; b++ {
				for d := 0; d < samplesPerAxis; d++ {
					if phi(x0+(float64(a)+0.5)*h, y0+(float64(b)+0.5)*h, z0+(float64(d)+0.5)*h) > 0 {
						inside++
					}
				}
			}
		}
		c.F = float64(inside) / total
	})
}

// SyncBoundary implements sim.Engine. Ghost values are derived from the
// boundary table on demand, so only cached quantities need refreshing.
func (g *Grid) SyncBoundary() {
	g.refreshMaxVelocity()
}

// SetCFL implements sim.Engine.
func (g *Grid) SetCFL(cfl float64) { g.cfl = cfl }

// Step implements sim.Engine.
func (g *Grid) Step() sim.Step { return g.step }

func (g *Grid) idx(i, j, k int) int { return i + g.n*(j+g.n*k) }

func (g *Grid) coords(id int) [3]int {
	return [3]int{id % g.n, (id / g.n) % g.n, id / (g.n * g.n)}
}

// neighbor returns the active cell next to id along axis in direction dir
// (±1), or -1 when that side is a domain boundary.
func (g *Grid) neighbor(id, axis, dir int) int {
	c := g.coords(id)
	c[axis] += dir
	if c[axis] < 0 || c[axis] >= g.n {
		return -1
	}
	nb := g.idx(c[0], c[1], c[2])
	if !g.active[nb] {
		return -1
	}
	return nb
}

// face maps (axis, dir) to the domain face crossed in that direction.
func face(axis, dir int) sim.Face {
	f := sim.Face(2 * axis)
	if dir > 0 {
		f++
	}
	return f
}

func (g *Grid) condition(f sim.Face, field sim.Field) sim.Condition {
	if c, ok := g.params.Boundary.Lookup(f, field); ok {
		return c
	}
	return sim.Neumann(0)
}

func (g *Grid) velocityCondition(f sim.Face, comp int) sim.Condition {
	if comp == f.Axis() {
		return g.condition(f, sim.NormalVelocity)
	}
	return g.condition(f, sim.TangentialVelocity)
}

// fractionAt returns f in the neighbor of id, or its zero-gradient ghost.
func (g *Grid) fractionAt(id, axis, dir int) float64 {
	if nb := g.neighbor(id, axis, dir); nb >= 0 {
		return g.cells[nb].F
	}
	return g.cells[id].F
}

// velocityAt returns component comp of u in the neighbor of id, or its ghost.
func (g *Grid) velocityAt(id, axis, dir, comp int) float64 {
	if nb := g.neighbor(id, axis, dir); nb >= 0 {
		return g.cells[nb].U[comp]
	}
	return g.velocityCondition(face(axis, dir), comp).Ghost(g.cells[id].U[comp], g.delta)
}

func (g *Grid) density(f float64) float64 {
	p := g.params.Properties
	return f*p.Rho1 + (1-f)*p.Rho2
}

func (g *Grid) viscosity(f float64) float64 {
	p := g.params.Properties
	return f*p.Mu1 + (1-f)*p.Mu2
}
