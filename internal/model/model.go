// Package model provides the parametric peak line shapes used by the
// fit engine and helpers for deriving initial parameters from a
// plot gesture.
package model

import (
	"fmt"
	"math"
)

// Shape selects a peak line shape.
type Shape string

const (
	ShapePseudoVoigt   Shape = "PseudoVoigt"
	ShapeVoigt         Shape = "Voigt"
	ShapeDoniachSunjic Shape = "DoniachSunjic"
	ShapeTailedDS      Shape = "TailedDoniachSunjic"
)

// Shapes lists the supported shapes in display order.
func Shapes() []Shape {
	return []Shape{ShapePseudoVoigt, ShapeVoigt, ShapeDoniachSunjic, ShapeTailedDS}
}

// Valid reports whether s names a supported shape.
func (s Shape) Valid() bool {
	switch s {
	case ShapePseudoVoigt, ShapeVoigt, ShapeDoniachSunjic, ShapeTailedDS:
		return true
	}
	return false
}

// Params holds the resolved numeric parameters of one peak.
// Fraction is shape-specific: the lorentzian mixing fraction for
// PseudoVoigt, the asymmetry for the Doniach-Sunjic shapes, and
// unused for Voigt.
type Params struct {
	Position float64
	Area     float64
	FWHM     float64
	Fraction float64
}

// tailDefault is the fixed exponential damping used by the tailed
// Doniach-Sunjic shape.
const tailDefault = 1.0

// Eval computes the shape's contribution at a single energy.
func (s Shape) Eval(x float64, p Params) float64 {
	switch s {
	case ShapePseudoVoigt:
		return GLSum(x, p.Area, p.Position, p.FWHM, p.Fraction)
	case ShapeVoigt:
		return VoigtDefinedFWHM(x, p.Area, p.Position, p.FWHM, 0)
	case ShapeDoniachSunjic:
		return CenteredDS(x, p.Area, p.Position, p.FWHM, p.Fraction)
	case ShapeTailedDS:
		return TailedDS(x, p.Area, p.Position, p.FWHM, p.Fraction, tailDefault)
	}
	return math.NaN()
}

// EvalInto adds the shape's contribution over the energy grid to dst.
// dst and energy must have equal length.
func (s Shape) EvalInto(energy []float64, p Params, dst []float64) {
	for i, x := range energy {
		dst[i] += s.Eval(x, p)
	}
}

// FWHMFromGesture derives a fwhm from the position/angle/height wedge
// drawn when creating a peak.
func FWHMFromGesture(_position, angle, height float64, shape Shape) (float64, error) {
	switch shape {
	case ShapePseudoVoigt, ShapeVoigt, ShapeDoniachSunjic, ShapeTailedDS:
		return math.Tan(angle) * height, nil
	}
	return 0, fmt.Errorf("no fwhm rule for shape %q", shape)
}

// AreaFromGesture derives an area from the position/angle/height wedge
// drawn when creating a peak.
func AreaFromGesture(_position, angle, height float64, shape Shape) (float64, error) {
	fwhm := math.Tan(angle) * height
	switch shape {
	case ShapePseudoVoigt:
		area := height * (fwhm * math.Sqrt(math.Pi/ln2)) /
			(1 + math.Sqrt(1/(math.Pi*ln2)))
		return area, nil
	case ShapeDoniachSunjic, ShapeTailedDS:
		return height / pureDS(0, 1, 0, fwhm, 0.5), nil
	case ShapeVoigt:
		return height / Voigt(0, 1, 0, fwhm, 0.5), nil
	}
	return 0, fmt.Errorf("no area rule for shape %q", shape)
}

// MeasureFWHM searches from the peak maximum in both directions for
// the half-maximum crossings. Used for reporting the effective width
// of asymmetric shapes, where the fwhm parameter is only nominal.
func (s Shape) MeasureFWHM(p Params) float64 {
	const res = 0.01
	hm := s.Eval(p.Position, p) / 2
	xMin, xMax := p.Position, p.Position
	for s.Eval(xMax, p) >= hm {
		xMax += res
		if xMax > p.Position+5*p.FWHM {
			break
		}
	}
	for s.Eval(xMin, p) >= hm {
		xMin -= res
		if xMin < p.Position-5*p.FWHM {
			break
		}
	}
	return xMax - xMin
}

// MeasureArea integrates the profile over a window around the peak.
// The window spans areaRange centered on the position.
func (s Shape) MeasureArea(p Params) float64 {
	const (
		areaRange = 20.0
		areaRes   = 0.1
	)
	n := int(areaRange / areaRes)
	var sum float64
	for i := 0; i < n; i++ {
		x := p.Position - areaRange/2 + float64(i)*areaRes
		sum += s.Eval(x, p)
	}
	return sum * areaRes
}
