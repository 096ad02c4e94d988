// sim/simulator.go
package sim

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Trigger names, in evaluation order.
const (
	TriggerInit     = "init"
	TriggerMetrics  = "logfile"
	TriggerSnapshot = "snapshot"
	TriggerProgress = "progress"
	TriggerEnd      = "end"
)

// Simulator is the per-run context: constant tables, the engine, the artifact
// filesystem and the session that exists between Init and termination.
type Simulator struct {
	Config     ExperimentConfig
	RunID      string
	Pair       FluidPair
	Properties FluidPairProperties
	Boundary   BoundaryTable
	Domain     Domain

	Engine Engine
	FS     billy.Filesystem
	// Diag receives the per-iteration progress line.
	Diag io.Writer

	Initial  InitialCondition
	Recorder *Recorder
	Exporter *Exporter

	// Session is non-nil only between the init and end triggers.
	Session  *Session
	Restored bool

	scheduler *Scheduler
}

// RunSummary describes a finished run.
type RunSummary struct {
	RunID      string
	Iterations int
	FinalTime  float64
	Restored   bool
	MetricsLog string
	Records    int
	Snapshots  []string
	Started    time.Time
	WallTime   time.Duration
}

// NewSimulator resolves the fluid pair, validates the boundary table, hands
// both to the engine and meshes the enclosing cube. Fields are not seeded
// until Run.
func NewSimulator(cfg ExperimentConfig, e Engine, fs billy.Filesystem, diag io.Writer) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("no engine configured")
	}
	pair, props, err := ResolveFluidPair(cfg.FluidPair)
	if err != nil {
		return nil, err
	}
	bt := DefaultBoundaryTable()
	if err := bt.Validate(); err != nil {
		return nil, err
	}
	if err := e.Configure(EngineParams{Properties: props, Boundary: bt, Tolerance: cfg.Tolerance}); err != nil {
		return nil, fmt.Errorf("configure %s: %w", e.Name(), err)
	}

	s := &Simulator{
		Config:     cfg,
		RunID:      uuid.NewString(),
		Pair:       pair,
		Properties: props,
		Boundary:   bt,
		Domain:     cfg.Domain(),
		Engine:     e,
		FS:         fs,
		Diag:       diag,
		Initial:    NewInitialCondition(cfg),
		Recorder:   NewRecorder(cfg),
		Exporter:   NewExporter(fs, cfg),
	}
	if err := s.Domain.BuildGrid(e); err != nil {
		return nil, err
	}
	s.scheduler = &Scheduler{
		Engine:   e,
		Triggers: s.triggers(),
		Stop:     s.nextStop,
	}

	logrus.WithFields(logrus.Fields{
		"run":    s.RunID,
		"engine": e.Name(),
		"pair":   pair.String(),
		"rho1":   props.Rho1,
		"rho2":   props.Rho2,
		"mu1":    props.Mu1,
		"mu2":    props.Mu2,
		"sigma":  props.Sigma,
	}).Info("simulator configured")
	return s, nil
}

// triggers returns the ordered trigger list. Order matters: metrics before
// snapshot before progress, and end last so it sees every other action.
func (s *Simulator) triggers() []Trigger {
	return []Trigger{
		{Name: TriggerInit, When: Once(AtStart), Do: s.initialize},
		{Name: TriggerMetrics, When: EveryIteration, Do: s.logMetrics},
		{Name: TriggerSnapshot, When: Interval(s.Config.SnapshotEvery()), Do: s.exportSnapshot},
		{Name: TriggerProgress, When: EveryIteration, Do: s.reportProgress},
		{Name: TriggerEnd, When: Once(AtOrAfter(s.Config.TEnd)), Do: s.finish, Terminal: true},
	}
}

// nextStop keeps each step from overshooting the next snapshot or tEnd.
func (s *Simulator) nextStop(st Step) float64 {
	return math.Min(NextBoundary(st.T, s.Config.SnapshotEvery()), s.Config.TEnd)
}

// Phase reports the scheduler state.
func (s *Simulator) Phase() Phase { return s.scheduler.Phase() }

// Run drives the experiment from Init to termination.
func (s *Simulator) Run(ctx context.Context) (RunSummary, error) {
	start := time.Now()
	if err := s.scheduler.Run(ctx); err != nil {
		return RunSummary{}, err
	}
	st := s.Engine.Step()
	return RunSummary{
		RunID:      s.RunID,
		Iterations: st.I,
		FinalTime:  st.T,
		Restored:   s.Restored,
		MetricsLog: s.Config.LogFileName(),
		Records:    s.Recorder.History.Len(),
		Snapshots:  s.Exporter.Written(),
		Started:    start,
		WallTime:   time.Since(start),
	}, nil
}

func (s *Simulator) initialize(context.Context) error {
	s.Domain.ApplyMask(s.Engine)
	restored, err := s.Initial.Apply(s.Engine)
	if err != nil {
		return err
	}
	s.Restored = restored

	sess, err := OpenSession(s.FS, s.Config.LogFileName())
	if err != nil {
		return err
	}
	s.Session = sess
	return sess.WriteHeader()
}

func (s *Simulator) logMetrics(context.Context) error {
	_, err := s.Recorder.Record(s.Engine, s.Session)
	return err
}

func (s *Simulator) exportSnapshot(context.Context) error {
	_, err := s.Exporter.Export(s.Engine)
	return err
}

func (s *Simulator) reportProgress(context.Context) error {
	st := s.Engine.Step()
	_, err := fmt.Fprintf(s.Diag, "i = %d t = %g dt = %g\n", st.I, st.T, st.Dt)
	return err
}

func (s *Simulator) finish(context.Context) error {
	if s.Session == nil {
		return ErrSessionClosed
	}
	err := s.Session.Close()
	s.Session = nil
	return err
}
