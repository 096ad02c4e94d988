package grid

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/droplet-sim/droplet-sim/sim"
)

// checkpoint is the on-disk state. Only active-cell data is meaningful but the
// full cube is stored to keep indices stable.
type checkpoint struct {
	Size   float64
	N      int
	Active []bool
	F      []float64
	P      []float64
	U      []sim.Vec3
	Step   sim.Step
}

// Dump implements sim.Engine.
func (g *Grid) Dump(name string) (err error) {
	if g.n == 0 {
		return ErrNoGrid
	}
	cp := checkpoint{
		Size:   g.size,
		N:      g.n,
		Active: g.active,
		F:      make([]float64, len(g.cells)),
		P:      make([]float64, len(g.cells)),
		U:      make([]sim.Vec3, len(g.cells)),
		Step:   g.step,
	}
	for id := range g.cells {
		cp.F[id] = g.cells[id].F
		cp.P[id] = g.cells[id].P
		cp.U[id] = g.cells[id].U
	}

	if dir := path.Dir(name); dir != "." {
		if err := g.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint directory %s: %w", dir, err)
		}
	}
	f, err := g.fs.Create(name)
	if err != nil {
		return fmt.Errorf("create checkpoint %s: %w", name, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close checkpoint %s: %w", name, cerr))
		}
	}()
	if err := gob.NewEncoder(f).Encode(cp); err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", name, err)
	}
	return nil
}

// Restore implements sim.Engine. The checkpoint's mesh replaces the current one.
func (g *Grid) Restore(name string) error {
	f, err := g.fs.Open(name)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNoCheckpoint, name)
	}
	if err != nil {
		return fmt.Errorf("open checkpoint %s: %w", name, err)
	}
	defer f.Close()

	var cp checkpoint
	if err := gob.NewDecoder(f).Decode(&cp); err != nil {
		return fmt.Errorf("decode checkpoint %s: %w", name, err)
	}
	total := cp.N * cp.N * cp.N
	if cp.N <= 0 || cp.N&(cp.N-1) != 0 || cp.N > maxCellsPerSide || cp.Size <= 0 {
		return fmt.Errorf("checkpoint %s: invalid mesh %d cells of size %g", name, cp.N, cp.Size)
	}
	if len(cp.Active) != total || len(cp.F) != total || len(cp.P) != total || len(cp.U) != total {
		return fmt.Errorf("checkpoint %s: field lengths do not match %d^3 cells", name, cp.N)
	}

	g.allocate(cp.Size, cp.N)
	copy(g.active, cp.Active)
	for id := range g.cells {
		g.cells[id].F = cp.F[id]
		g.cells[id].P = cp.P[id]
		g.cells[id].U = cp.U[id]
	}
	g.step = cp.Step
	g.refreshMaxVelocity()
	return nil
}
