package grid

import (
	"context"
	"fmt"
	"math"

	"github.com/droplet-sim/droplet-sim/sim"
)

// Advance implements sim.Engine. The step is clipped so that t never passes
// tStop; when the remaining interval needs several steps they are made equal.
func (g *Grid) Advance(ctx context.Context, tStop float64) error {
	if g.n == 0 {
		return ErrNoGrid
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dt, last, err := g.timestep(tStop)
	if err != nil {
		return err
	}

	g.transportFraction(dt)
	g.applyViscosity(dt)
	if err := g.project(ctx, dt); err != nil {
		return err
	}
	g.refreshMaxVelocity()
	if math.IsNaN(g.umax) || math.IsInf(g.umax, 0) {
		return fmt.Errorf("%w: non-finite velocity at t=%g", ErrUnstable, g.step.T+dt)
	}

	g.step.I++
	if last {
		g.step.T = tStop
	} else {
		g.step.T += dt
	}
	g.step.Dt = dt
	return nil
}

func (g *Grid) timestep(tStop float64) (dt float64, last bool, err error) {
	remaining := tStop - g.step.T
	if !(remaining > 0) {
		return 0, false, fmt.Errorf("stop time %g is not after t=%g", tStop, g.step.T)
	}
	dt = math.Inf(1)
	if g.umax > 0 {
		dt = g.cfl * g.delta / g.umax
	}
	dt = math.Min(dt, g.viscousLimit())
	dt = math.Min(dt, g.capillaryLimit())
	if math.IsNaN(dt) || dt <= 0 {
		return 0, false, fmt.Errorf("%w: dt=%g at t=%g", ErrUnstable, dt, g.step.T)
	}
	if math.IsInf(remaining, 1) {
		if math.IsInf(dt, 1) {
			return 0, false, fmt.Errorf("%w: unbounded timestep", ErrUnstable)
		}
		return dt, false, nil
	}
	if dt >= remaining {
		return remaining, true, nil
	}
	steps := math.Ceil(remaining / dt)
	if steps > 1e9 {
		return 0, false, fmt.Errorf("%w: dt=%g too small to reach t=%g", ErrUnstable, dt, tStop)
	}
	return remaining / steps, false, nil
}

// viscousLimit bounds the explicit viscous step per phase.
func (g *Grid) viscousLimit() float64 {
	p := g.params.Properties
	lim := math.Inf(1)
	for _, ph := range [][2]float64{{p.Rho1, p.Mu1}, {p.Rho2, p.Mu2}} {
		if ph[1] > 0 {
			lim = math.Min(lim, ph[0]/ph[1]*g.delta*g.delta/6)
		}
	}
	return lim
}

// capillaryLimit is the Brackbill capillary-wave condition.
func (g *Grid) capillaryLimit() float64 {
	p := g.params.Properties
	if p.Sigma <= 0 {
		return math.Inf(1)
	}
	rhoMean := (p.Rho1 + p.Rho2) / 2
	return math.Sqrt(rhoMean * g.delta * g.delta * g.delta / (math.Pi * p.Sigma))
}

func (g *Grid) refreshMaxVelocity() {
	umax := 0.0
	for id := range g.cells {
		if !g.active[id] {
			continue
		}
		for _, v := range g.cells[id].U {
			if math.IsNaN(v) {
				g.umax = math.NaN()
				return
			}
			umax = math.Max(umax, math.Abs(v))
		}
	}
	g.umax = umax
}

func (g *Grid) activeIDs() []int {
	ids := make([]int, 0, len(g.cells))
	for id, a := range g.active {
		if a {
			ids = append(ids, id)
		}
	}
	return ids
}

// transportFraction moves f with first-order upwind fluxes through the six
// faces of every cell.
func (g *Grid) transportFraction(dt float64) {
	next := make([]float64, len(g.cells))
	for id := range g.cells {
		if !g.active[id] {
			continue
		}
		c := &g.cells[id]
		outflow := 0.0
		for axis := 0; axis < 3; axis++ {
			for _, dir := range []int{-1, 1} {
				un := 0.5 * (c.U[axis] + g.velocityAt(id, axis, dir, axis))
				out := un * float64(dir)
				if out > 0 {
					outflow += out * c.F
				} else {
					outflow += out * g.fractionAt(id, axis, dir)
				}
			}
		}
		next[id] = clamp01(c.F - dt/g.delta*outflow)
	}
	for id := range g.cells {
		if g.active[id] {
			g.cells[id].F = next[id]
		}
	}
}

func (g *Grid) applyViscosity(dt float64) {
	p := g.params.Properties
	if p.Mu1 == 0 && p.Mu2 == 0 {
		return
	}
	h2 := g.delta * g.delta
	acc := make([]sim.Vec3, len(g.cells))
	for id := range g.cells {
		if !g.active[id] {
			continue
		}
		c := &g.cells[id]
		nu := g.viscosity(c.F) / g.density(c.F)
		for comp := 0; comp < 3; comp++ {
			lap := 0.0
			for axis := 0; axis < 3; axis++ {
				lap += g.velocityAt(id, axis, 1, comp) - 2*c.U[comp] + g.velocityAt(id, axis, -1, comp)
			}
			acc[id][comp] = nu * lap / h2
		}
	}
	for id := range g.cells {
		if !g.active[id] {
			continue
		}
		for comp := 0; comp < 3; comp++ {
			g.cells[id].U[comp] += dt * acc[id][comp]
		}
	}
}

// curvature returns κ = −∇·(∇f/|∇f|) on interfacial cells, flagged by has.
func (g *Grid) curvature() (kappa []float64, has []bool) {
	normals := make([]sim.Vec3, len(g.cells))
	has = make([]bool, len(g.cells))
	for id := range g.cells {
		if !g.active[id] {
			continue
		}
		var n sim.Vec3
		for axis := 0; axis < 3; axis++ {
			n[axis] = (g.fractionAt(id, axis, 1) - g.fractionAt(id, axis, -1)) / (2 * g.delta)
		}
		mag := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
		if mag*g.delta > 1e-6 {
			has[id] = true
			for axis := range n {
				normals[id][axis] = n[axis] / mag
			}
		}
	}
	kappa = make([]float64, len(g.cells))
	for id := range g.cells {
		if !has[id] {
			continue
		}
		div := 0.0
		for axis := 0; axis < 3; axis++ {
			up, down := normals[id][axis], normals[id][axis]
			if nb := g.neighbor(id, axis, 1); nb >= 0 && has[nb] {
				up = normals[nb][axis]
			}
			if nb := g.neighbor(id, axis, -1); nb >= 0 && has[nb] {
				down = normals[nb][axis]
			}
			div += (up - down) / (2 * g.delta)
		}
		kappa[id] = -div
	}
	return kappa, has
}

// faceCoef describes one face of an active cell for the projection.
type faceCoef struct {
	nb    int           // neighbor id, or -1 on the domain boundary
	fixed bool          // normal velocity pinned by the boundary table
	beta  float64       // 1/ρ on the face
	uf    float64       // predicted normal face velocity (along +axis)
	acc   float64       // surface-tension acceleration (along +axis)
	pbc   sim.Condition // pressure condition on boundary faces
}

// project makes the face velocities discretely divergence-free and corrects
// the cell velocities with the averaged face accelerations. Surface tension
// enters on faces, alongside the pressure gradient.
func (g *Grid) project(ctx context.Context, dt float64) error {
	ids := g.activeIDs()
	faces := make([][6]faceCoef, len(ids))
	rhs := make([]float64, len(ids))
	sigma := g.params.Properties.Sigma
	var kappa []float64
	var has []bool
	if sigma > 0 {
		kappa, has = g.curvature()
	}

	for a, id := range ids {
		c := &g.cells[id]
		div := 0.0
		for axis := 0; axis < 3; axis++ {
			for s, dir := range []int{-1, 1} {
				fc := faceCoef{nb: g.neighbor(id, axis, dir)}
				if fc.nb >= 0 {
					nbc := &g.cells[fc.nb]
					fc.beta = 1 / g.density(0.5*(c.F+nbc.F))
					fc.uf = 0.5 * (c.U[axis] + nbc.U[axis])
					if sigma > 0 {
						gradF := float64(dir) * (nbc.F - c.F) / g.delta
						fc.acc = sigma * faceCurvature(kappa, has, id, fc.nb) * fc.beta * gradF
						fc.uf += dt * fc.acc
					}
				} else {
					f := face(axis, dir)
					un := g.velocityCondition(f, axis)
					if un.Kind == sim.FixedValue {
						fc.fixed = true
						fc.uf = un.Value
					} else {
						fc.beta = 1 / g.density(c.F)
						fc.uf = 0.5 * (c.U[axis] + un.Ghost(c.U[axis], g.delta))
						fc.pbc = g.condition(f, sim.Pressure)
					}
				}
				faces[a][2*axis+s] = fc
				div += float64(dir) * fc.uf
			}
		}
		rhs[a] = div / g.delta / dt
	}

	if err := g.solvePressure(ctx, ids, faces, rhs, dt); err != nil {
		return err
	}

	for a, id := range ids {
		c := &g.cells[id]
		for axis := 0; axis < 3; axis++ {
			total := 0.0
			for s, dir := range []int{-1, 1} {
				fc := faces[a][2*axis+s]
				if fc.fixed {
					continue
				}
				var dp float64
				if fc.nb >= 0 {
					dp = g.cells[fc.nb].P - c.P
				} else {
					dp = fc.pbc.Ghost(c.P, g.delta) - c.P
				}
				gradP := float64(dir) * dp / g.delta
				total += fc.acc - fc.beta*gradP
			}
			c.U[axis] += dt * total / 2
		}
	}
	return nil
}

func faceCurvature(kappa []float64, has []bool, a, b int) float64 {
	switch {
	case has[a] && has[b]:
		return (kappa[a] + kappa[b]) / 2
	case has[a]:
		return kappa[a]
	case has[b]:
		return kappa[b]
	}
	return 0
}

// solvePressure runs SOR sweeps on ∇·(β∇p) = rhs until max|residual|·dt is
// within the configured tolerance. p is warm-started from the previous step.
func (g *Grid) solvePressure(ctx context.Context, ids []int, faces [][6]faceCoef, rhs []float64, dt float64) error {
	h2 := g.delta * g.delta
	tol := g.params.Tolerance
	maxRes := 0.0
	for iter := 1; iter <= g.MaxIterations; iter++ {
		if iter%64 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		maxRes = 0
		for a, id := range ids {
			pc := g.cells[id].P
			diag, off := 0.0, 0.0
			for _, fc := range faces[a] {
				switch {
				case fc.fixed:
				case fc.nb >= 0:
					diag += fc.beta
					off += fc.beta * g.cells[fc.nb].P
				case fc.pbc.Kind == sim.FixedValue:
					diag += 2 * fc.beta
					off += 2 * fc.beta * fc.pbc.Value
				default:
					off += fc.beta * fc.pbc.Value * g.delta
				}
			}
			if diag == 0 {
				continue
			}
			res := (off-diag*pc)/h2 - rhs[a]
			maxRes = math.Max(maxRes, math.Abs(res))
			g.cells[id].P = pc + g.Omega*(off-rhs[a]*h2-diag*pc)/diag
		}
		if math.IsNaN(maxRes) {
			return fmt.Errorf("%w: pressure residual is NaN", ErrUnstable)
		}
		if maxRes*dt <= tol {
			g.LastIterations = iter
			return nil
		}
	}
	g.LastIterations = g.MaxIterations
	return fmt.Errorf("%w: residual %g after %d iterations (tolerance %g)", ErrNotConverged, maxRes*dt, g.MaxIterations, tol)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
