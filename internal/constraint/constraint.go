package constraint

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies which parameter of a peak a constraint applies to.
type Kind string

const (
	KindPosition Kind = "position"
	KindArea     Kind = "area"
	KindFWHM     Kind = "fwhm"
	KindFraction Kind = "fraction" // mixing fraction or asymmetry, depending on shape
)

// Kinds returns all parameter kinds in display order.
func Kinds() []Kind {
	return []Kind{KindPosition, KindArea, KindFWHM, KindFraction}
}

// Ref identifies one parameter of one peak by (label, kind).
// Refs are non-owning: the workspace that owns the peaks decides
// whether a ref is still valid.
type Ref struct {
	Peak string
	Kind Kind
}

func (r Ref) String() string {
	return fmt.Sprintf("%s.%s", r.Peak, r.Kind)
}

// State describes how a parameter participates in a fit.
type State string

const (
	// StateFree parameters are adjusted directly by the solver.
	StateFree State = "free"
	// StateFixed parameters are held at a constant value.
	StateFixed State = "fixed"
	// StateBounded parameters are adjusted by the solver within an interval.
	StateBounded State = "bounded"
	// StateFormula parameters are computed from other parameters.
	StateFormula State = "formula"
	// StateInvalid marks a formula whose referenced peak no longer exists.
	// The parameter is excluded from fitting until the user corrects it.
	StateInvalid State = "invalid"
)

// Constraint is the parsed form of a parameter's constraint text.
type Constraint struct {
	State State
	// Value is the fixed value for StateFixed.
	Value float64
	// Min and Max bound the parameter for StateBounded. Absent bounds
	// are ±Inf.
	Min, Max float64
	// Expr is the formula for StateFormula and StateInvalid.
	Expr Expr
}

// Free returns the unconstrained state.
func Free() Constraint {
	return Constraint{State: StateFree, Min: math.Inf(-1), Max: math.Inf(1)}
}

// Fixed returns a constant-value constraint.
func Fixed(v float64) Constraint {
	return Constraint{State: StateFixed, Value: v}
}

// Bounded returns an interval constraint. Pass ±Inf for an open side.
func Bounded(min, max float64) Constraint {
	return Constraint{State: StateBounded, Min: min, Max: max}
}

// Formula returns a constraint computed from other parameters.
func Formula(expr Expr) Constraint {
	return Constraint{State: StateFormula, Expr: expr}
}

// Invalidate marks a formula constraint as broken. The expression is
// kept so the text survives serialization and can be corrected.
func (c Constraint) Invalidate() Constraint {
	c.State = StateInvalid
	return c
}

// Refs returns the parameters a formula constraint references.
func (c Constraint) Refs() []Ref {
	if c.Expr == nil {
		return nil
	}
	return c.Expr.Refs()
}

// String renders the constraint in its canonical text form. Parsing
// the result yields an equivalent constraint.
func (c Constraint) String() string {
	switch c.State {
	case StateFixed:
		return formatNumber(c.Value)
	case StateBounded:
		var parts []string
		if !math.IsInf(c.Min, -1) {
			parts = append(parts, "> "+formatNumber(c.Min))
		}
		if !math.IsInf(c.Max, 1) {
			parts = append(parts, "< "+formatNumber(c.Max))
		}
		return strings.Join(parts, " ")
	case StateFormula, StateInvalid:
		if c.Expr == nil {
			return ""
		}
		return c.Expr.String()
	default:
		return ""
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
