package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Phase is the scheduler's lifecycle state.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseRunning
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseRunning:
		return "running"
	case PhaseTerminated:
		return "terminated"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Tick is what predicates see: the scheduler pass number (0 before the first
// advance) and the engine clock at evaluation time.
type Tick struct {
	Pass int
	Step
}

// Predicate decides whether a trigger fires on the current tick.
type Predicate func(tk Tick) bool

// Trigger pairs a predicate with the action it guards.
type Trigger struct {
	Name string
	When Predicate
	Do   func(ctx context.Context) error
	// Terminal moves the scheduler to PhaseTerminated after the action runs.
	Terminal bool
}

// Once latches p: the returned predicate fires the first time p holds and
// never again.
func Once(p Predicate) Predicate {
	fired := false
	return func(tk Tick) bool {
		if fired || !p(tk) {
			return false
		}
		fired = true
		return true
	}
}

// AtStart holds on the pass before the first iteration.
func AtStart(tk Tick) bool { return tk.Pass == 0 }

// EveryIteration holds after every completed iteration.
func EveryIteration(tk Tick) bool { return tk.Pass > 0 }

// AtOrAfter holds once simulation time reaches t.
func AtOrAfter(t float64) Predicate {
	eps := timeEpsilon(t)
	return func(tk Tick) bool { return tk.T >= t-eps }
}

// Interval holds whenever the step ending at tk.T crossed a multiple of every.
// On pass 0 it holds if the start time sits on a multiple, t = 0 included.
func Interval(every float64) Predicate {
	return func(tk Tick) bool {
		if tk.Pass == 0 {
			return IntervalCrossed(tk.T, 0, every)
		}
		return IntervalCrossed(tk.T, tk.Dt, every)
	}
}

// IntervalCrossed reports whether the step (t−dt, t] contains a multiple of
// every. With dt = 0 it reports whether t sits on a multiple.
func IntervalCrossed(t, dt, every float64) bool {
	eps := timeEpsilon(every)
	cur := math.Floor((t + eps) / every)
	if dt <= 0 {
		return math.Abs(t-cur*every) <= eps
	}
	prev := math.Floor((t - dt + eps) / every)
	return cur > prev
}

// NextBoundary returns the first multiple of every strictly after t.
func NextBoundary(t, every float64) float64 {
	eps := timeEpsilon(every)
	return (math.Floor((t+eps)/every) + 1) * every
}

func timeEpsilon(scale float64) float64 {
	return math.Abs(scale) * 1e-9
}

// Scheduler advances the engine and evaluates its triggers in declaration
// order after every iteration. Pass 0 runs before the first advance.
// A trigger that fails aborts the run; no later trigger runs on that pass.
type Scheduler struct {
	Engine   Engine
	Triggers []Trigger
	// Stop returns the latest time the next advance may reach.
	Stop func(s Step) float64

	phase Phase
	pass  int
}

// Phase reports the current lifecycle state.
func (sc *Scheduler) Phase() Phase { return sc.phase }

// Run loops until a terminal trigger fires. Any action or engine error aborts
// the loop and is returned unchanged in its chain.
func (sc *Scheduler) Run(ctx context.Context) error {
	sc.phase = PhaseInit
	sc.pass = 0
	if err := sc.evaluate(ctx); err != nil {
		return err
	}
	if sc.phase != PhaseTerminated {
		sc.phase = PhaseRunning
	}
	for sc.phase == PhaseRunning {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("interrupted at t=%g: %w", sc.Engine.Step().T, err)
		}
		before := sc.Engine.Step()
		stop := math.Inf(1)
		if sc.Stop != nil {
			stop = sc.Stop(before)
		}
		if err := sc.Engine.Advance(ctx, stop); err != nil {
			return fmt.Errorf("advance at i=%d t=%g: %w", before.I, before.T, err)
		}
		after := sc.Engine.Step()
		if after.I <= before.I || after.T < before.T {
			return fmt.Errorf("engine clock did not advance: i %d→%d, t %g→%g", before.I, after.I, before.T, after.T)
		}
		sc.pass++
		if err := sc.evaluate(ctx); err != nil {
			return err
		}
	}
	logrus.WithField("t", sc.Engine.Step().T).Info("simulation ended")
	return nil
}

func (sc *Scheduler) evaluate(ctx context.Context) error {
	for _, tr := range sc.Triggers {
		// Earlier actions may change the clock (Init restores a checkpoint).
		step := sc.Engine.Step()
		if !tr.When(Tick{Pass: sc.pass, Step: step}) {
			continue
		}
		if err := tr.Do(ctx); err != nil {
			return fmt.Errorf("%s at i=%d t=%g: %w", tr.Name, step.I, step.T, err)
		}
		if tr.Terminal {
			sc.phase = PhaseTerminated
		}
	}
	return nil
}
