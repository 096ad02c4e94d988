package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/droplet-sim/droplet-sim/sim"
	"github.com/droplet-sim/droplet-sim/sim/archive"
	_ "github.com/droplet-sim/droplet-sim/sim/grid" // registers sim.NewEngineFunc
	"github.com/droplet-sim/droplet-sim/sim/report"
)

var (
	// CLI flags for the experiment
	configPath  string  // Optional experiment YAML
	fluidPair   string  // Fluid-pair identifier
	gridRes     float64 // Cells across the domain height
	tEnd        float64 // End time of the run [s]
	cfl         float64 // CFL bound
	tolerance   float64 // Engine solver tolerance
	snapshotDir string  // Snapshot directory, relative to --out
	checkpoint  string  // Checkpoint restored at init

	// CLI flags for outputs
	outDir      string // Working directory for every artifact
	dumpName    string // Checkpoint written after the run ("" = none)
	plotHistory bool   // Render the error history as PNG
	logLevel    string // Log verbosity level

	// CLI flags for archiving
	archiveEndpoint string
	archiveBucket   string
	archivePrefix   string
	archiveInsecure bool
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "droplet-sim",
	Short: "Translating-droplet benchmark driver for two-phase flow engines",
}

// runCmd executes the experiment using parameters from the config file and CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the translating-droplet experiment",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg, err := resolveConfig(cmd, configPath)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		if err := runExperiment(cmd.Context(), cfg, os.Stderr); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// runExperiment performs one full run in outDir and writes its side artifacts.
func runExperiment(ctx context.Context, cfg sim.ExperimentConfig, diag io.Writer) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", outDir, err)
	}
	fs := osfs.New(outDir)
	if sim.NewEngineFunc == nil {
		return fmt.Errorf("no engine registered")
	}
	engine := sim.NewEngineFunc(fs)

	s, err := sim.NewSimulator(cfg, engine, fs, diag)
	if err != nil {
		return err
	}
	logrus.Infof("Starting run %s: pair=%s res=%g tEnd=%g cfl=%g", s.RunID, cfg.FluidPair, cfg.GridResolution, cfg.TEnd, cfg.CFL)

	summary, err := s.Run(ctx)
	if err != nil {
		return err
	}

	manifest := sim.NewManifest(s, summary)
	if dumpName != "" {
		if err := engine.Dump(dumpName); err != nil {
			return fmt.Errorf("dump checkpoint: %w", err)
		}
		manifest.Extra = append(manifest.Extra, dumpName)
	}
	if plotHistory {
		p, err := report.ErrorHistoryPlot(s.Recorder.History.Records(), fmt.Sprintf("%s, res %g", cfg.FluidPair, cfg.GridResolution))
		if err != nil {
			return err
		}
		if err := report.WritePNG(fs, cfg.PlotFileName(), p); err != nil {
			return err
		}
		manifest.Extra = append(manifest.Extra, cfg.PlotFileName())
	}
	if err := sim.WriteManifest(fs, cfg.ManifestFileName(), manifest); err != nil {
		return err
	}

	if archiveBucket != "" {
		up, err := archive.New(archive.Config{
			Endpoint: archiveEndpoint,
			Bucket:   archiveBucket,
			Prefix:   archive.ObjectKey(archivePrefix, s.RunID),
			Secure:   !archiveInsecure,
		}, fs)
		if err != nil {
			return err
		}
		if _, err := up.Upload(ctx, append(manifest.Artifacts(), cfg.ManifestFileName())); err != nil {
			return err
		}
	}

	logrus.WithFields(logrus.Fields{
		"iterations": summary.Iterations,
		"t":          summary.FinalTime,
		"records":    summary.Records,
		"snapshots":  len(summary.Snapshots),
		"wall":       summary.WallTime,
	}).Info("run finished")
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// registerRunFlags binds the run flags of c to the package-level variables,
// resetting them to their defaults.
func registerRunFlags(c *cobra.Command) {
	def := sim.DefaultExperimentConfig()
	flags := c.Flags()

	flags.StringVar(&configPath, "config", "", "Experiment YAML file (flags override its values)")
	flags.StringVar(&fluidPair, "fluid-pair", def.FluidPair, "Fluid pair (water-air, gearoil-air, oil_novec7500-water)")
	flags.Float64Var(&gridRes, "grid", def.GridResolution, "Grid resolution: cells across the domain height")
	flags.Float64Var(&tEnd, "t-end", def.TEnd, "Simulated end time in seconds")
	flags.Float64Var(&cfl, "cfl", def.CFL, "CFL bound on the timestep")
	flags.Float64Var(&tolerance, "tolerance", def.Tolerance, "Solver convergence tolerance")
	flags.StringVar(&snapshotDir, "snapshot-dir", def.SnapshotDir, "Snapshot directory (relative to --out)")
	flags.StringVar(&checkpoint, "checkpoint", def.Checkpoint, "Checkpoint restored at init when present")

	flags.StringVar(&outDir, "out", ".", "Working directory for all artifacts")
	flags.StringVar(&dumpName, "dump", "", "Write a checkpoint with this name after the run")
	flags.BoolVar(&plotHistory, "plot", false, "Render the error history as PNG")
	flags.StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	flags.StringVar(&archiveEndpoint, "archive-endpoint", "", "S3-compatible endpoint (host:port) for artifact upload")
	flags.StringVar(&archiveBucket, "archive-bucket", "", "Bucket for artifact upload (empty = no upload)")
	flags.StringVar(&archivePrefix, "archive-prefix", "", "Object key prefix; the run id is appended")
	flags.BoolVar(&archiveInsecure, "archive-insecure", false, "Use plain HTTP for the archive endpoint")
}

// init sets up CLI flags and subcommands
func init() {
	registerRunFlags(runCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(fluidsCmd)
}
