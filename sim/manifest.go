package sim

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"
)

// Manifest records what a run produced, next to the metrics log.
type Manifest struct {
	RunID       string           `yaml:"run_id"`
	Engine      string           `yaml:"engine"`
	Started     time.Time        `yaml:"started"`
	WallSeconds float64          `yaml:"wall_seconds"`
	Iterations  int              `yaml:"iterations"`
	FinalTime   float64          `yaml:"final_time"`
	Restored    bool             `yaml:"restored"`
	MetricsLog  string           `yaml:"metrics_log"`
	Records     int              `yaml:"records"`
	Snapshots   []string         `yaml:"snapshots"`
	Extra       []string         `yaml:"extra_artifacts,omitempty"`
	Config      ExperimentConfig `yaml:"config"`
}

// NewManifest builds the manifest of a finished run.
func NewManifest(s *Simulator, sum RunSummary) Manifest {
	return Manifest{
		RunID:       sum.RunID,
		Engine:      s.Engine.Name(),
		Started:     sum.Started.UTC(),
		WallSeconds: sum.WallTime.Seconds(),
		Iterations:  sum.Iterations,
		FinalTime:   sum.FinalTime,
		Restored:    sum.Restored,
		MetricsLog:  sum.MetricsLog,
		Records:     sum.Records,
		Snapshots:   sum.Snapshots,
		Config:      s.Config,
	}
}

// Artifacts lists every file the manifest refers to, itself excluded.
func (m Manifest) Artifacts() []string {
	out := []string{m.MetricsLog}
	out = append(out, m.Snapshots...)
	return append(out, m.Extra...)
}

// WriteManifest stores m as YAML at name.
func WriteManifest(fs billy.Filesystem, name string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := util.WriteFile(fs, name, data, 0o644); err != nil {
		return fmt.Errorf("write manifest %s: %w", name, err)
	}
	return nil
}

// ReadManifest loads a manifest with strict field checking.
func ReadManifest(fs billy.Filesystem, name string) (Manifest, error) {
	f, err := fs.Open(name)
	if err != nil {
		return Manifest{}, fmt.Errorf("open manifest %s: %w", name, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest %s: %w", name, err)
	}
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest %s: %w", name, err)
	}
	return m, nil
}
