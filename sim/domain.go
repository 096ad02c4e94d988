package sim

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Domain is the rectangular prism [0,W]×[0,H]×[0,H]. The engine only meshes
// power-of-two cubes, so the prism is carved out of a cube of side W.
type Domain struct {
	Width      float64
	Height     float64
	Resolution float64 // cells across Height
}

// Level returns the tree depth whose 2^Level cells per side first reach
// Resolution·Width/Height.
func (d Domain) Level() int {
	n := d.Resolution * d.Width / d.Height
	if n <= 1 {
		return 0
	}
	return int(math.Ceil(math.Log2(n) - 1e-12))
}

// CellsPerSide is the cube's cell count along one edge.
func (d Domain) CellsPerSide() int {
	return 1 << d.Level()
}

// Center returns the centre of the active prism.
func (d Domain) Center() Vec3 {
	return Vec3{d.Width / 2, d.Height / 2, d.Height / 2}
}

// Contains reports whether a point lies inside the active prism.
func (d Domain) Contains(x, y, z float64) bool {
	return x >= 0 && x <= d.Width && y >= 0 && y <= d.Height && z >= 0 && z <= d.Height
}

// BuildGrid meshes the enclosing cube.
func (d Domain) BuildGrid(e Engine) error {
	if d.Height <= 0 || d.Height >= d.Width {
		return fmt.Errorf("domain height %g must be in (0, width=%g)", d.Height, d.Width)
	}
	n := d.CellsPerSide()
	if err := e.InitGrid(d.Width, n); err != nil {
		return fmt.Errorf("init grid %d^3: %w", n, err)
	}
	logrus.WithFields(logrus.Fields{
		"size":  d.Width,
		"level": d.Level(),
		"cells": n,
	}).Info("grid initialized")
	return nil
}

// ApplyMask removes the cells above y = H and behind z = H. Applying it again
// removes nothing.
func (d Domain) ApplyMask(e Engine) int {
	removed := e.Mask(func(_, y, _ float64) bool { return y > d.Height })
	removed += e.Mask(func(_, _, z float64) bool { return z > d.Height })
	logrus.WithField("removed", removed).Debug("domain masked")
	return removed
}
