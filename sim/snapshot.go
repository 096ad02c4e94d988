package sim

import (
	"errors"
	"fmt"
	"math"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/sirupsen/logrus"
)

// SnapshotName encodes round(1000·t) into the artifact name. Identical rounded
// times map to the same name and the later export overwrites the earlier one.
func SnapshotName(dir, caseName, ext string, t float64) string {
	ms := int64(math.Round(1000 * t))
	return path.Join(dir, fmt.Sprintf("%s_%d.%s", caseName, ms, ext))
}

// Exporter writes visualization snapshots. Each export opens and closes its
// own file.
type Exporter struct {
	FS       billy.Filesystem
	Dir      string
	CaseName string
	Ext      string

	written []string
}

// NewExporter builds an exporter from the snapshot settings of cfg.
func NewExporter(fs billy.Filesystem, cfg ExperimentConfig) *Exporter {
	return &Exporter{FS: fs, Dir: cfg.SnapshotDir, CaseName: cfg.CaseName, Ext: cfg.SnapshotExt}
}

// Export serializes the engine's current fields, tagged with its time.
func (x *Exporter) Export(e Engine) (name string, err error) {
	t := e.Step().T
	name = SnapshotName(x.Dir, x.CaseName, x.Ext, t)
	if x.Dir != "" {
		if err := x.FS.MkdirAll(x.Dir, 0o755); err != nil {
			return "", fmt.Errorf("create snapshot directory %s: %w", x.Dir, err)
		}
	}
	f, err := x.FS.Create(name)
	if err != nil {
		return "", fmt.Errorf("open snapshot %s: %w", name, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close snapshot %s: %w", name, cerr))
		}
	}()
	if err := e.WriteSnapshot(f, t); err != nil {
		return "", fmt.Errorf("write snapshot %s: %w", name, err)
	}
	x.written = append(x.written, name)
	logrus.WithFields(logrus.Fields{"snapshot": name, "t": t}).Debug("snapshot written")
	return name, nil
}

// Written lists the artifacts exported so far, in order.
func (x *Exporter) Written() []string {
	out := make([]string, len(x.written))
	copy(out, x.written)
	return out
}
