package sim

import (
	"errors"
	"fmt"
)

// ErrIncompleteBoundaryTable is returned by Validate when a required
// (face, field) entry is missing.
var ErrIncompleteBoundaryTable = errors.New("incomplete boundary table")

// Face identifies one side of the rectangular domain.
type Face int

const (
	Left Face = iota
	Right
	Bottom
	Top
	Front
	Back
)

// Faces lists all six faces in a stable order.
var Faces = []Face{Left, Right, Bottom, Top, Front, Back}

func (f Face) String() string {
	switch f {
	case Left:
		return "left"
	case Right:
		return "right"
	case Bottom:
		return "bottom"
	case Top:
		return "top"
	case Front:
		return "front"
	case Back:
		return "back"
	}
	return fmt.Sprintf("Face(%d)", int(f))
}

// Axis returns the coordinate index normal to the face (0=x, 1=y, 2=z).
func (f Face) Axis() int {
	return int(f) / 2
}

// Field identifies the quantity a boundary condition constrains.
type Field int

const (
	NormalVelocity Field = iota
	TangentialVelocity
	Pressure
)

func (fd Field) String() string {
	switch fd {
	case NormalVelocity:
		return "u.n"
	case TangentialVelocity:
		return "u.t"
	case Pressure:
		return "p"
	}
	return fmt.Sprintf("Field(%d)", int(fd))
}

// ConditionKind distinguishes pinned values from pinned normal gradients.
type ConditionKind int

const (
	FixedValue ConditionKind = iota + 1
	FixedGradient
)

func (k ConditionKind) String() string {
	switch k {
	case FixedValue:
		return "fixed-value"
	case FixedGradient:
		return "fixed-gradient"
	}
	return "unset"
}

// Condition is a single boundary constraint.
type Condition struct {
	Kind  ConditionKind
	Value float64
}

// Dirichlet pins the field value at the face.
func Dirichlet(v float64) Condition { return Condition{Kind: FixedValue, Value: v} }

// Neumann pins the outward normal gradient at the face.
func Neumann(g float64) Condition { return Condition{Kind: FixedGradient, Value: g} }

// Ghost returns the ghost-cell value that realizes the condition given the
// adjacent interior value and the cell size.
func (c Condition) Ghost(inside, delta float64) float64 {
	if c.Kind == FixedValue {
		return 2*c.Value - inside
	}
	return inside + c.Value*delta
}

// BoundaryKey addresses one entry of a BoundaryTable.
type BoundaryKey struct {
	Face  Face
	Field Field
}

// BoundaryTable is a static lookup of per-face, per-field conditions.
// It is built once before the run and never mutated afterwards.
type BoundaryTable map[BoundaryKey]Condition

// requiredFields lists the fields every face must constrain. The left and
// right faces are inflow/outflow and leave the tangential velocity to the engine.
var requiredFields = map[Face][]Field{
	Left:   {NormalVelocity, Pressure},
	Right:  {NormalVelocity, Pressure},
	Bottom: {NormalVelocity, TangentialVelocity, Pressure},
	Top:    {NormalVelocity, TangentialVelocity, Pressure},
	Front:  {NormalVelocity, TangentialVelocity, Pressure},
	Back:   {NormalVelocity, TangentialVelocity, Pressure},
}

// DefaultBoundaryTable returns the translating-drop boundary conditions:
// unit inflow on the left, pressure outlet on the right, slip walls elsewhere.
func DefaultBoundaryTable() BoundaryTable {
	bt := BoundaryTable{
		{Left, NormalVelocity}: Dirichlet(1),
		{Left, Pressure}:       Neumann(0),

		{Right, NormalVelocity}: Neumann(0),
		{Right, Pressure}:       Dirichlet(0),
	}
	for _, f := range []Face{Bottom, Top, Front, Back} {
		bt[BoundaryKey{f, NormalVelocity}] = Dirichlet(0)
		bt[BoundaryKey{f, TangentialVelocity}] = Neumann(0)
		bt[BoundaryKey{f, Pressure}] = Neumann(0)
	}
	return bt
}

// Lookup returns the condition for (face, field).
func (bt BoundaryTable) Lookup(face Face, field Field) (Condition, bool) {
	c, ok := bt[BoundaryKey{face, field}]
	return c, ok
}

// Validate checks that all six faces carry every required field and that
// each entry has a known kind.
func (bt BoundaryTable) Validate() error {
	var missing []error
	for _, face := range Faces {
		for _, field := range requiredFields[face] {
			c, ok := bt.Lookup(face, field)
			if !ok {
				missing = append(missing, fmt.Errorf("%w: %s[%s] not set", ErrIncompleteBoundaryTable, field, face))
				continue
			}
			if c.Kind != FixedValue && c.Kind != FixedGradient {
				missing = append(missing, fmt.Errorf("%w: %s[%s] has kind %s", ErrIncompleteBoundaryTable, field, face, c.Kind))
			}
		}
	}
	return errors.Join(missing...)
}
