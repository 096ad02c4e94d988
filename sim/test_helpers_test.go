package sim

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
)

// fakeEngine is a deterministic Engine double: a uniform lattice whose clock
// advances by a fixed dt clipped to the stop time. Velocities are left
// untouched unless drift is set.
type fakeEngine struct {
	n      int
	size   float64
	cells  []Cell
	active []bool
	step   Step
	dt     float64
	drift  Vec3 // added to every velocity on each advance

	params   EngineParams
	cfl      float64
	restored *Step // when non-nil, Restore succeeds and installs this clock

	advanceErr error
	calls      map[string]int
}

func newFakeEngine(dt float64) *fakeEngine {
	return &fakeEngine{dt: dt, calls: map[string]int{}}
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Configure(p EngineParams) error {
	e.calls["Configure"]++
	e.params = p
	return nil
}

func (e *fakeEngine) InitGrid(size float64, n int) error {
	e.calls["InitGrid"]++
	if n <= 0 || n&(n-1) != 0 {
		return fmt.Errorf("not a power of two: %d", n)
	}
	e.n, e.size = n, size
	h := size / float64(n)
	e.cells = make([]Cell, 0, n*n*n)
	e.active = make([]bool, 0, n*n*n)
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				e.cells = append(e.cells, Cell{
					X: (float64(i) + 0.5) * h, Y: (float64(j) + 0.5) * h, Z: (float64(k) + 0.5) * h, Delta: h,
				})
				e.active = append(e.active, true)
			}
		}
	}
	return nil
}

func (e *fakeEngine) Mask(exclude func(x, y, z float64) bool) int {
	e.calls["Mask"]++
	removed := 0
	for i := range e.cells {
		c := e.cells[i]
		if e.active[i] && exclude(c.X, c.Y, c.Z) {
			e.active[i] = false
			removed++
		}
	}
	return removed
}

func (e *fakeEngine) Restore(name string) error {
	e.calls["Restore"]++
	if e.restored == nil {
		return errors.New("no such checkpoint: " + name)
	}
	e.step = *e.restored
	for i := range e.cells {
		e.cells[i].F = 0.25
	}
	return nil
}

func (e *fakeEngine) Dump(string) error {
	e.calls["Dump"]++
	return nil
}

func (e *fakeEngine) Fraction(phi func(x, y, z float64) float64) {
	e.calls["Fraction"]++
	e.ForEachCell(func(c *Cell) {
		c.F = 0
		if phi(c.X, c.Y, c.Z) > 0 {
			c.F = 1
		}
	})
}

func (e *fakeEngine) ForEachCell(fn func(c *Cell)) {
	for i := range e.cells {
		if e.active[i] {
			fn(&e.cells[i])
		}
	}
}

func (e *fakeEngine) SyncBoundary() { e.calls["SyncBoundary"]++ }

func (e *fakeEngine) SetCFL(cfl float64) { e.cfl = cfl }

func (e *fakeEngine) Advance(ctx context.Context, tStop float64) error {
	e.calls["Advance"]++
	if e.advanceErr != nil {
		return e.advanceErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dt := e.dt
	e.step.I++
	if remaining := tStop - e.step.T; dt >= remaining {
		dt = remaining
		e.step.T = tStop
	} else {
		e.step.T += dt
	}
	e.step.Dt = dt
	e.ForEachCell(func(c *Cell) {
		for k := range c.U {
			c.U[k] += e.drift[k]
		}
	})
	return nil
}

func (e *fakeEngine) Step() Step { return e.step }

func (e *fakeEngine) WriteSnapshot(w io.Writer, t float64) error {
	e.calls["WriteSnapshot"]++
	_, err := fmt.Fprintf(w, "t=%g cells=%d\n", t, len(e.cells))
	return err
}

// countingFS wraps a memfs and counts Create and Close per file name.
type countingFS struct {
	billy.Filesystem
	creates map[string]int
	closes  map[string]int
	failOn  string // Create returns an error for this name
}

func newCountingFS() *countingFS {
	return &countingFS{Filesystem: memfs.New(), creates: map[string]int{}, closes: map[string]int{}}
}

func (fs *countingFS) Create(name string) (billy.File, error) {
	if name == fs.failOn {
		return nil, fmt.Errorf("create %s: permission denied", name)
	}
	f, err := fs.Filesystem.Create(name)
	if err != nil {
		return nil, err
	}
	fs.creates[name]++
	return &countingFile{File: f, name: name, fs: fs}, nil
}

type countingFile struct {
	billy.File
	name string
	fs   *countingFS
}

func (f *countingFile) Close() error {
	f.fs.closes[f.name]++
	return f.File.Close()
}

// smallConfig is the benchmark geometry on a coarse grid.
func smallConfig() ExperimentConfig {
	cfg := DefaultExperimentConfig()
	cfg.GridResolution = 4
	return cfg
}
