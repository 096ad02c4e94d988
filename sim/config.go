package sim

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ExperimentConfig groups every startup input of a run.
type ExperimentConfig struct {
	CaseName  string `yaml:"case_name"`  // snapshot file prefix
	LogName   string `yaml:"log_name"`   // metrics log prefix
	LogExt    string `yaml:"log_ext"`    // metrics log extension
	FluidPair string `yaml:"fluid_pair"` // one of FluidPairs()

	GridResolution float64 `yaml:"grid_resolution"` // cells across the domain height
	Width          float64 `yaml:"width"`           // domain length along x [m]
	Height         float64 `yaml:"height"`          // domain height along y and z [m]
	Diameter       float64 `yaml:"diameter"`        // droplet diameter [m]
	DropletX       float64 `yaml:"droplet_x"`       // droplet centre along x [m]

	TEnd              float64 `yaml:"t_end"`
	CFL               float64 `yaml:"cfl"`
	Tolerance         float64 `yaml:"tolerance"`
	SnapshotIntervals int     `yaml:"snapshot_intervals"` // snapshots every TEnd/SnapshotIntervals
	SnapshotDir       string  `yaml:"snapshot_dir"`
	SnapshotExt       string  `yaml:"snapshot_ext"`
	Checkpoint        string  `yaml:"checkpoint"`
}

// DefaultExperimentConfig returns the benchmark's reference configuration.
func DefaultExperimentConfig() ExperimentConfig {
	return ExperimentConfig{
		CaseName:          "translatingDrop",
		LogName:           "translatingDrop3D",
		LogExt:            "dat",
		FluidPair:         WaterAir.String(),
		GridResolution:    16,
		Width:             0.02,
		Height:            0.01,
		Diameter:          0.002,
		DropletX:          0.002,
		TEnd:              0.015,
		CFL:               0.2,
		Tolerance:         1e-6,
		SnapshotIntervals: 10,
		SnapshotDir:       "VTK-Data",
		SnapshotExt:       "vtu",
		Checkpoint:        "dump-000",
	}
}

// Validate rejects inconsistent or out-of-range inputs.
func (c ExperimentConfig) Validate() error {
	var errs []error
	if _, err := ParseFluidPair(c.FluidPair); err != nil {
		errs = append(errs, err)
	}
	if c.GridResolution <= 0 {
		errs = append(errs, fmt.Errorf("grid resolution must be > 0, got %g", c.GridResolution))
	}
	if c.Width <= 0 || c.Height <= 0 || c.Height >= c.Width {
		errs = append(errs, fmt.Errorf("domain must satisfy 0 < height < width, got width=%g height=%g", c.Width, c.Height))
	}
	if c.Diameter <= 0 || c.Diameter > c.Height {
		errs = append(errs, fmt.Errorf("droplet diameter must be in (0, height], got %g", c.Diameter))
	}
	if c.DropletX < 0 || c.DropletX > c.Width {
		errs = append(errs, fmt.Errorf("droplet centre x must be within [0, width], got %g", c.DropletX))
	}
	if c.TEnd <= 0 || math.IsInf(c.TEnd, 0) || math.IsNaN(c.TEnd) {
		errs = append(errs, fmt.Errorf("t_end must be a finite positive time, got %g", c.TEnd))
	}
	if c.CFL <= 0 || c.CFL > 1 {
		errs = append(errs, fmt.Errorf("cfl must be in (0, 1], got %g", c.CFL))
	}
	if c.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("tolerance must be > 0, got %g", c.Tolerance))
	}
	if c.SnapshotIntervals <= 0 {
		errs = append(errs, fmt.Errorf("snapshot_intervals must be > 0, got %d", c.SnapshotIntervals))
	}
	if c.CaseName == "" || c.LogName == "" {
		errs = append(errs, errors.New("case_name and log_name must be set"))
	}
	return errors.Join(errs...)
}

// Domain returns the geometry described by the config.
func (c ExperimentConfig) Domain() Domain {
	return Domain{Width: c.Width, Height: c.Height, Resolution: c.GridResolution}
}

// SnapshotEvery is the simulated time between snapshots.
func (c ExperimentConfig) SnapshotEvery() float64 {
	return c.TEnd / float64(c.SnapshotIntervals)
}

// LogFileName returns <name>_res<R>_<fluidPair>.<ext>, with R as an integer.
func (c ExperimentConfig) LogFileName() string {
	return fmt.Sprintf("%s.%s", c.runStem(), c.LogExt)
}

// ManifestFileName returns the run manifest path next to the metrics log.
func (c ExperimentConfig) ManifestFileName() string {
	return c.runStem() + ".manifest.yaml"
}

// PlotFileName returns the error-history chart path next to the metrics log.
func (c ExperimentConfig) PlotFileName() string {
	return c.runStem() + ".png"
}

func (c ExperimentConfig) runStem() string {
	return fmt.Sprintf("%s_res%s_%s", c.LogName, strconv.FormatFloat(c.GridResolution, 'f', 0, 64), c.FluidPair)
}

// SnapshotFileName returns <dir>/<caseName>_<ms>.<ext> for time t.
func (c ExperimentConfig) SnapshotFileName(t float64) string {
	return SnapshotName(c.SnapshotDir, c.CaseName, c.SnapshotExt, t)
}
