package sim

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droplet-sim/droplet-sim/sim/internal/testutil"
)

func TestNewSimulator_UnknownFluidPair_FailsBeforeEngine(t *testing.T) {
	cfg := smallConfig()
	cfg.FluidPair = "mercury-air"
	e := newFakeEngine(4e-4)

	_, err := NewSimulator(cfg, e, newCountingFS(), &bytes.Buffer{})

	assert.ErrorIs(t, err, ErrUnknownFluidPair)
	assert.Zero(t, e.calls["Configure"])
	assert.Zero(t, e.calls["InitGrid"])
}

func TestNewSimulator_ConfiguresEngine(t *testing.T) {
	cfg := smallConfig()
	cfg.FluidPair = "gearoil-air"
	e := newFakeEngine(4e-4)

	s, err := NewSimulator(cfg, e, newCountingFS(), &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, GearoilAir, s.Pair)
	assert.Equal(t, 0.240648, e.params.Properties.Mu1)
	assert.Equal(t, 1e-6, e.params.Tolerance)
	assert.NoError(t, e.params.Boundary.Validate())
	assert.Equal(t, 8, e.n)
	assert.NotEmpty(t, s.RunID)
	assert.Equal(t, PhaseInit, s.Phase())
	assert.Zero(t, e.calls["Fraction"], "fields are seeded by the init trigger, not the constructor")
}

func TestSimulator_Run_FullBenchmark(t *testing.T) {
	// GIVEN the default schedule (tEnd=0.015, snapshots every 0.0015) and dt=4e-4
	cfg := smallConfig()
	fs := newCountingFS()
	var diag bytes.Buffer
	e := newFakeEngine(4e-4)
	s, err := NewSimulator(cfg, e, fs, &diag)
	require.NoError(t, err)

	// WHEN the run completes
	sum, err := s.Run(context.Background())
	require.NoError(t, err)

	// THEN every snapshot interval takes four steps and the run ends on tEnd
	assert.Equal(t, 40, sum.Iterations)
	assert.InDelta(t, 0.015, sum.FinalTime, 1e-15)
	assert.Equal(t, sum.Iterations, sum.Records)
	assert.False(t, sum.Restored)
	assert.Equal(t, PhaseTerminated, s.Phase())
	assert.Nil(t, s.Session)

	// The log is opened and closed exactly once.
	logName := cfg.LogFileName()
	assert.Equal(t, "translatingDrop3D_res4_water-air.dat", logName)
	assert.Equal(t, logName, sum.MetricsLog)
	assert.Equal(t, 1, fs.creates[logName])
	assert.Equal(t, 1, fs.closes[logName])

	lines := testutil.ReadLines(t, fs, logName)
	require.Len(t, lines, sum.Records+1)
	assert.Equal(t, strings.Join(LogHeader, ","), lines[0])
	prev := -1.0
	for _, line := range lines[1:] {
		cols := strings.Split(line, ",")
		require.Len(t, cols, 7)
		assert.Equal(t, []string{"ENGINE", "water-air", "4"}, cols[:3])
		tm, err := strconv.ParseFloat(cols[3], 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, tm, prev)
		prev = tm
	}

	// Eleven snapshots, t=0 included, each under its own name.
	require.Len(t, sum.Snapshots, 11)
	assert.Equal(t, "VTK-Data/translatingDrop_0.vtu", sum.Snapshots[0])
	assert.Equal(t, "VTK-Data/translatingDrop_15.vtu", sum.Snapshots[10])
	seen := map[string]bool{}
	for _, name := range sum.Snapshots {
		assert.False(t, seen[name], "duplicate snapshot %s", name)
		seen[name] = true
		assert.Equal(t, 1, fs.closes[name])
	}

	// One progress line per iteration.
	progress := strings.Split(strings.TrimSpace(diag.String()), "\n")
	require.Len(t, progress, 40)
	assert.Equal(t, "i = 1 t = 0.0004 dt = 0.0004", progress[0])
	assert.True(t, strings.HasPrefix(progress[39], "i = 40 t = "))
}

func TestSimulator_Run_RestoredCheckpoint_ResumesClock(t *testing.T) {
	// GIVEN a checkpoint at i=5 t=0.006
	fs := newCountingFS()
	e := newFakeEngine(4e-4)
	e.restored = &Step{I: 5, T: 0.006, Dt: 4e-4}
	s, err := NewSimulator(smallConfig(), e, fs, &bytes.Buffer{})
	require.NoError(t, err)

	// WHEN the run completes
	sum, err := s.Run(context.Background())
	require.NoError(t, err)

	// THEN only the remaining six intervals are simulated
	assert.True(t, sum.Restored)
	assert.Zero(t, e.calls["Fraction"])
	assert.Equal(t, 24, sum.Records)
	assert.Equal(t, 29, sum.Iterations)
	require.Len(t, sum.Snapshots, 7)
	assert.Equal(t, "VTK-Data/translatingDrop_6.vtu", sum.Snapshots[0])
	assert.Greater(t, s.Recorder.History.Records()[0].Time, 0.006)
}

func TestSimulator_Run_LogOpenFailure(t *testing.T) {
	cfg := smallConfig()
	fs := newCountingFS()
	fs.failOn = cfg.LogFileName()
	e := newFakeEngine(4e-4)
	s, err := NewSimulator(cfg, e, fs, &bytes.Buffer{})
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), TriggerInit)
	assert.Contains(t, err.Error(), cfg.LogFileName())
	assert.Zero(t, e.calls["Advance"])
}

func TestSimulator_Run_EngineFailure_Aborts(t *testing.T) {
	cfg := smallConfig()
	fs := newCountingFS()
	e := newFakeEngine(4e-4)
	errDiverged := errors.New("diverged")
	e.advanceErr = errDiverged
	s, err := NewSimulator(cfg, e, fs, &bytes.Buffer{})
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	assert.ErrorIs(t, err, errDiverged)
	assert.NotEqual(t, PhaseTerminated, s.Phase())
	assert.Zero(t, fs.closes[cfg.LogFileName()])
}

func TestSimulator_Run_DriftShowsInErrors(t *testing.T) {
	cfg := smallConfig()
	cfg.TEnd = 0.002
	cfg.SnapshotIntervals = 1
	e := newFakeEngine(1e-3)
	e.drift = Vec3{0, 0.01, 0}
	s, err := NewSimulator(cfg, e, newCountingFS(), &bytes.Buffer{})
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.NoError(t, err)

	recs := s.Recorder.History.Records()
	require.Len(t, recs, 2)
	testutil.AssertFloat64Equal(t, "max@1", 0.01, recs[0].Max, 1e-12)
	testutil.AssertFloat64Equal(t, "rms@2", 0.02, recs[1].RMS, 1e-12)
}

func TestSimulator_Run_ReferenceEngine(t *testing.T) {
	// GIVEN the registered engine on the coarsest prism
	require.NotNil(t, NewEngineFunc, "grid_import_test.go registers the engine")
	cfg := DefaultExperimentConfig()
	cfg.GridResolution = 2
	cfg.TEnd = 0.003
	cfg.SnapshotIntervals = 2
	fs := memfs.New()
	e := NewEngineFunc(fs)
	s, err := NewSimulator(cfg, e, fs, &bytes.Buffer{})
	require.NoError(t, err)

	// WHEN the run completes
	sum, err := s.Run(context.Background())

	// THEN the schedule is honored with real physics
	require.NoError(t, err)
	assert.InDelta(t, 0.003, sum.FinalTime, 1e-12)
	assert.Equal(t, sum.Iterations, sum.Records)
	assert.Len(t, sum.Snapshots, 3)
	for _, r := range s.Recorder.History.Records() {
		assert.False(t, math.IsNaN(r.Max), "NaN deviation at t=%g", r.Time)
	}
	lines := testutil.ReadLines(t, fs, cfg.LogFileName())
	assert.Len(t, lines, sum.Records+1)
}
