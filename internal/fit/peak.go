// Package fit assembles peaks, background regions and constraint
// state into a composite model and drives the nonlinear solver.
package fit

import (
	"github.com/cwbudde/xpsfit/internal/constraint"
	"github.com/cwbudde/xpsfit/internal/model"
)

// Peak is one parametric spectral line in a workspace. Its label is
// unique within the workspace and is how constraint formulas refer to
// it.
type Peak struct {
	Label string
	Shape model.Shape

	// Params holds the current resolved values. Updated after every
	// successful fit and whenever a fixed or formula constraint is
	// applied.
	Params model.Params

	constraints map[constraint.Kind]constraint.Constraint
}

func newPeak(label string, shape model.Shape, p model.Params) *Peak {
	return &Peak{
		Label:       label,
		Shape:       shape,
		Params:      p,
		constraints: make(map[constraint.Kind]constraint.Constraint),
	}
}

// Kinds lists the parameter kinds this peak's shape exposes.
func (p *Peak) Kinds() []constraint.Kind {
	if p.Shape == model.ShapeVoigt {
		return []constraint.Kind{constraint.KindPosition, constraint.KindArea, constraint.KindFWHM}
	}
	return []constraint.Kind{constraint.KindPosition, constraint.KindArea, constraint.KindFWHM, constraint.KindFraction}
}

// HasKind reports whether kind applies to this peak's shape.
func (p *Peak) HasKind(kind constraint.Kind) bool {
	for _, k := range p.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// Constraint returns the constraint on one parameter kind. Parameters
// without an explicit constraint are free.
func (p *Peak) Constraint(kind constraint.Kind) constraint.Constraint {
	if c, ok := p.constraints[kind]; ok {
		return c
	}
	return constraint.Free()
}

func (p *Peak) setConstraint(kind constraint.Kind, c constraint.Constraint) {
	p.constraints[kind] = c
}

// Value returns the current value of one parameter kind.
func (p *Peak) Value(kind constraint.Kind) float64 {
	switch kind {
	case constraint.KindPosition:
		return p.Params.Position
	case constraint.KindArea:
		return p.Params.Area
	case constraint.KindFWHM:
		return p.Params.FWHM
	case constraint.KindFraction:
		return p.Params.Fraction
	}
	return 0
}

// SetValue writes one parameter kind's value.
func (p *Peak) SetValue(kind constraint.Kind, v float64) {
	switch kind {
	case constraint.KindPosition:
		p.Params.Position = v
	case constraint.KindArea:
		p.Params.Area = v
	case constraint.KindFWHM:
		p.Params.FWHM = v
	case constraint.KindFraction:
		p.Params.Fraction = v
	}
}

// Eval adds the peak's profile over the energy grid to dst.
func (p *Peak) Eval(energy []float64, dst []float64) {
	p.Shape.EvalInto(energy, p.Params, dst)
}
