package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droplet-sim/droplet-sim/sim/internal/testutil"
)

func TestSnapshotName(t *testing.T) {
	assert.Equal(t, "VTK-Data/translatingDrop_0.vtu", SnapshotName("VTK-Data", "translatingDrop", "vtu", 0))
	assert.Equal(t, "VTK-Data/translatingDrop_3.vtu", SnapshotName("VTK-Data", "translatingDrop", "vtu", 0.003))
	assert.Equal(t, "VTK-Data/translatingDrop_15.vtu", SnapshotName("VTK-Data", "translatingDrop", "vtu", 0.015))
	assert.Equal(t, "drop_1.vtk", SnapshotName("", "drop", "vtk", 0.0012))
}

func TestSnapshotName_BenchmarkTimesAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for k := 0; k <= 10; k++ {
		name := SnapshotName("VTK-Data", "translatingDrop", "vtu", float64(k)*0.0015)
		assert.False(t, seen[name], "duplicate %s", name)
		seen[name] = true
	}
	assert.Len(t, seen, 11)
}

func TestExporter_Export_OneFilePerCall(t *testing.T) {
	// GIVEN an engine at t=0.003
	fs := newCountingFS()
	e := newFakeEngine(1e-3)
	require.NoError(t, e.InitGrid(1, 2))
	e.step = Step{I: 3, T: 0.003}
	x := NewExporter(fs, DefaultExperimentConfig())

	// WHEN a snapshot is exported
	name, err := x.Export(e)

	// THEN the file exists with the engine payload and was closed once
	require.NoError(t, err)
	assert.Equal(t, "VTK-Data/translatingDrop_3.vtu", name)
	assert.Equal(t, 1, fs.closes[name])
	assert.Equal(t, []string{"t=0.003 cells=8"}, testutil.ReadLines(t, fs, name))
	assert.Equal(t, []string{name}, x.Written())
}

func TestExporter_Export_CreateFailure(t *testing.T) {
	fs := newCountingFS()
	fs.failOn = "VTK-Data/translatingDrop_0.vtu"
	e := newFakeEngine(1e-3)
	x := NewExporter(fs, DefaultExperimentConfig())

	_, err := x.Export(e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "translatingDrop_0.vtu")
	assert.Empty(t, x.Written())
	assert.Zero(t, e.calls["WriteSnapshot"])
}
