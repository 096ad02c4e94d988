// Tracks the deviation of the simulated velocity from uniform translation.

package sim

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SolverTag fills the SOLVER column of every record.
const SolverTag = "ENGINE"

// ErrNonMonotonicTime is returned when a record would move time backwards.
var ErrNonMonotonicTime = errors.New("record time decreased")

// ErrorStats aggregates |u − (1,0,0)| over the active cells.
type ErrorStats struct {
	Max  float64
	Mean float64
	RMS  float64
}

// ErrorRecord is one row of the metrics log.
type ErrorRecord struct {
	SolverTag  string
	FluidPair  string
	Resolution float64
	Time       float64
	ErrorStats
}

// Fields renders the record in LogHeader column order.
func (r ErrorRecord) Fields() []string {
	return []string{
		r.SolverTag,
		r.FluidPair,
		formatFloat(r.Resolution),
		formatFloat(r.Time),
		formatFloat(r.Max),
		formatFloat(r.Mean),
		formatFloat(r.RMS),
	}
}

// ComputeDeviation reduces the per-cell deviation norm from the reference
// velocity ref to its maximum, mean and root-mean-square. An empty mesh
// yields zeros.
func ComputeDeviation(e Engine, ref Vec3) ErrorStats {
	var norms []float64
	e.ForEachCell(func(c *Cell) {
		dx, dy, dz := c.U[0]-ref[0], c.U[1]-ref[1], c.U[2]-ref[2]
		norms = append(norms, math.Sqrt(dx*dx+dy*dy+dz*dz))
	})
	return reduceNorms(norms)
}

func reduceNorms(norms []float64) ErrorStats {
	if len(norms) == 0 {
		return ErrorStats{}
	}
	return ErrorStats{
		Max:  floats.Max(norms),
		Mean: stat.Mean(norms, nil),
		RMS:  math.Sqrt(floats.Dot(norms, norms) / float64(len(norms))),
	}
}

// ErrorHistory is the append-only sequence of records for a run.
type ErrorHistory struct {
	records []ErrorRecord
}

// Append adds r. Records are never modified or removed once appended.
func (h *ErrorHistory) Append(r ErrorRecord) error {
	if n := len(h.records); n > 0 && r.Time < h.records[n-1].Time {
		return fmt.Errorf("%w: %g after %g", ErrNonMonotonicTime, r.Time, h.records[n-1].Time)
	}
	h.records = append(h.records, r)
	return nil
}

// Len returns the number of records.
func (h *ErrorHistory) Len() int { return len(h.records) }

// Records returns a copy of the sequence.
func (h *ErrorHistory) Records() []ErrorRecord {
	out := make([]ErrorRecord, len(h.records))
	copy(out, h.records)
	return out
}

// Recorder measures and logs one record per completed iteration.
type Recorder struct {
	FluidPair  string
	Resolution float64
	Reference  Vec3
	History    *ErrorHistory
}

// NewRecorder builds a recorder against the unit x-velocity reference.
func NewRecorder(cfg ExperimentConfig) *Recorder {
	return &Recorder{
		FluidPair:  cfg.FluidPair,
		Resolution: cfg.GridResolution,
		Reference:  Vec3{1, 0, 0},
		History:    &ErrorHistory{},
	}
}

// Record computes the statistics for the current state, appends them to the
// history and writes them to the session log.
func (rec *Recorder) Record(e Engine, s *Session) (ErrorRecord, error) {
	r := ErrorRecord{
		SolverTag:  SolverTag,
		FluidPair:  rec.FluidPair,
		Resolution: rec.Resolution,
		Time:       e.Step().T,
		ErrorStats: ComputeDeviation(e, rec.Reference),
	}
	if err := rec.History.Append(r); err != nil {
		return r, err
	}
	if err := s.WriteRecord(r); err != nil {
		return r, err
	}
	return r, nil
}
