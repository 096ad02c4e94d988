package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMeshedFake(t *testing.T, cfg ExperimentConfig) *fakeEngine {
	t.Helper()
	e := newFakeEngine(1e-3)
	d := cfg.Domain()
	require.NoError(t, d.BuildGrid(e))
	d.ApplyMask(e)
	return e
}

func TestNewInitialCondition_DropletPlacement(t *testing.T) {
	ic := NewInitialCondition(DefaultExperimentConfig())
	assert.Equal(t, Vec3{0.002, 0.005, 0.005}, ic.Center)
	assert.Equal(t, 0.002, ic.Diameter)
	assert.Equal(t, 1.0, ic.Velocity)

	assert.Greater(t, ic.Droplet(0.002, 0.005, 0.005), 0.0)
	assert.InDelta(t, 0, ic.Droplet(0.003, 0.005, 0.005), 1e-18)
	assert.Less(t, ic.Droplet(0.0031, 0.005, 0.005), 0.0)
}

func TestInitialCondition_Apply_NoCheckpoint_SeedsDroplet(t *testing.T) {
	// GIVEN a fresh engine and a checkpoint name that does not exist
	cfg := DefaultExperimentConfig()
	e := newMeshedFake(t, cfg)
	ic := NewInitialCondition(cfg)

	// WHEN the initial condition is applied
	restored, err := ic.Apply(e)

	// THEN the droplet is seeded and the reference velocity set everywhere
	require.NoError(t, err)
	assert.False(t, restored)
	assert.Equal(t, 1, e.calls["Restore"])
	assert.Equal(t, 1, e.calls["Fraction"])
	assert.Equal(t, 1, e.calls["SyncBoundary"])
	assert.Equal(t, 0.2, e.cfl)

	r := cfg.Diameter / 2
	inside := 0
	e.ForEachCell(func(c *Cell) {
		d := math.Sqrt(math.Pow(c.X-0.002, 2) + math.Pow(c.Y-0.005, 2) + math.Pow(c.Z-0.005, 2))
		if d < r {
			inside++
			assert.Equal(t, 1.0, c.F)
		} else {
			assert.Equal(t, 0.0, c.F)
		}
		assert.Equal(t, Vec3{1, 0, 0}, c.U)
	})
	assert.Positive(t, inside)
}

func TestInitialCondition_Apply_CheckpointPresent_SkipsSeeding(t *testing.T) {
	cfg := DefaultExperimentConfig()
	e := newMeshedFake(t, cfg)
	e.restored = &Step{I: 7, T: 0.003, Dt: 4e-4}

	restored, err := NewInitialCondition(cfg).Apply(e)

	require.NoError(t, err)
	assert.True(t, restored)
	assert.Zero(t, e.calls["Fraction"])
	assert.Equal(t, 0.003, e.Step().T)
	e.ForEachCell(func(c *Cell) {
		assert.Equal(t, 0.25, c.F, "restored fractions are kept")
		assert.Equal(t, 1.0, c.U[0], "u.x is reset after restore")
	})
}

func TestInitialCondition_Apply_EmptyCheckpointName_DoesNotRestore(t *testing.T) {
	cfg := DefaultExperimentConfig()
	cfg.Checkpoint = ""
	e := newMeshedFake(t, cfg)
	e.restored = &Step{I: 1, T: 1}

	restored, err := NewInitialCondition(cfg).Apply(e)
	require.NoError(t, err)
	assert.False(t, restored)
	assert.Zero(t, e.calls["Restore"])
	assert.Equal(t, 1, e.calls["Fraction"])
}
