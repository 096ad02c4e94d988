package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/droplet-sim/droplet-sim/sim"
)

// loadExperimentConfig overlays the YAML file at path onto cfg.
// Uses strict field checking: unknown keys are errors.
func loadExperimentConfig(path string, cfg *sim.ExperimentConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// resolveConfig layers defaults, the optional config file and explicitly set
// flags, in that order, then validates the result.
func resolveConfig(cmd *cobra.Command, path string) (sim.ExperimentConfig, error) {
	cfg := sim.DefaultExperimentConfig()
	if path != "" {
		if err := loadExperimentConfig(path, &cfg); err != nil {
			return cfg, err
		}
	}
	applyFlagOverrides(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyFlagOverrides(cmd *cobra.Command, cfg *sim.ExperimentConfig) {
	flags := cmd.Flags()
	if flags.Changed("fluid-pair") {
		cfg.FluidPair = fluidPair
	}
	if flags.Changed("grid") {
		cfg.GridResolution = gridRes
	}
	if flags.Changed("t-end") {
		cfg.TEnd = tEnd
	}
	if flags.Changed("cfl") {
		cfg.CFL = cfl
	}
	if flags.Changed("tolerance") {
		cfg.Tolerance = tolerance
	}
	if flags.Changed("snapshot-dir") {
		cfg.SnapshotDir = snapshotDir
	}
	if flags.Changed("checkpoint") {
		cfg.Checkpoint = checkpoint
	}
}
