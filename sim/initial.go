package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// InitialCondition seeds the fields at the Init trigger.
type InitialCondition struct {
	Checkpoint string  // restored if present
	Diameter   float64 // droplet diameter
	Center     Vec3    // droplet centre
	Velocity   float64 // uniform x-velocity of the reference frame
	CFL        float64
}

// NewInitialCondition places the droplet at x = cfg.DropletX on the prism's
// y-z centreline.
func NewInitialCondition(cfg ExperimentConfig) InitialCondition {
	return InitialCondition{
		Checkpoint: cfg.Checkpoint,
		Diameter:   cfg.Diameter,
		Center:     Vec3{cfg.DropletX, cfg.Height / 2, cfg.Height / 2},
		Velocity:   1.0,
		CFL:        cfg.CFL,
	}
}

// Droplet is the implicit function of the droplet: positive inside.
func (ic InitialCondition) Droplet(x, y, z float64) float64 {
	r := ic.Diameter / 2
	dx, dy, dz := x-ic.Center[0], y-ic.Center[1], z-ic.Center[2]
	return r*r - dx*dx - dy*dy - dz*dz
}

// Apply restores the checkpoint or, failing that, seeds the droplet. In both
// cases u.x is then set to the reference velocity everywhere and the CFL bound
// is installed. A failed restore is not an error.
func (ic InitialCondition) Apply(e Engine) (restored bool, err error) {
	if ic.Checkpoint != "" {
		if rerr := e.Restore(ic.Checkpoint); rerr == nil {
			restored = true
			logrus.WithFields(logrus.Fields{"checkpoint": ic.Checkpoint, "t": e.Step().T}).Info("restored checkpoint")
		} else {
			logrus.WithField("checkpoint", ic.Checkpoint).Infof("no usable checkpoint, seeding droplet: %v", rerr)
		}
	}
	if !restored {
		if ic.Diameter <= 0 {
			return false, fmt.Errorf("droplet diameter must be > 0, got %g", ic.Diameter)
		}
		e.Fraction(ic.Droplet)
	}

	e.ForEachCell(func(c *Cell) {
		c.U[0] = ic.Velocity
	})
	e.SyncBoundary()
	e.SetCFL(ic.CFL)
	return restored, nil
}
