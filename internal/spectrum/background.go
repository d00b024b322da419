package spectrum

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
)

// BackgroundType selects the background model of a region.
type BackgroundType string

const (
	BackgroundNone    BackgroundType = "none"
	BackgroundLinear  BackgroundType = "linear"
	BackgroundShirley BackgroundType = "shirley"
)

// Valid reports whether t names a supported background type.
func (t BackgroundType) Valid() bool {
	switch t {
	case BackgroundNone, BackgroundLinear, BackgroundShirley:
		return true
	}
	return false
}

// CalculateBackground evaluates the background over the interval
// [lo, hi] of the spectrum and writes it into dst, which must have
// one sample per spectrum sample. Samples outside the interval are
// left untouched. BackgroundNone writes the measured intensity, so
// subtracting the background flattens the region.
func CalculateBackground(t BackgroundType, lo, hi float64, s *Spectrum, dst []float64) error {
	if len(dst) != s.Len() {
		return fmt.Errorf("background buffer length %d does not match spectrum length %d", len(dst), s.Len())
	}
	i1 := sort.SearchFloat64s(s.Energy, lo)
	i2 := sort.SearchFloat64s(s.Energy, hi)
	if i1 > i2 {
		i1, i2 = i2, i1
	}
	if i1 == i2 {
		return nil
	}

	switch t {
	case BackgroundNone:
		copy(dst[i1:i2], s.Intensity[i1:i2])
		return nil
	case BackgroundLinear:
		linearBackground(s.Intensity[i1:i2], dst[i1:i2])
		return nil
	case BackgroundShirley:
		bg, err := Shirley(s.Energy[i1:i2], s.Intensity[i1:i2])
		if err != nil {
			return err
		}
		copy(dst[i1:i2], bg)
		return nil
	}
	return fmt.Errorf("unknown background type %q", t)
}

// Shirley computes the iterative Shirley background. The energy axis
// must be increasing and evenly spaced.
func Shirley(energy, intensity []float64) ([]float64, error) {
	const (
		tol   = 1e-5
		maxit = 20
	)
	n := len(energy)
	if n < 2 {
		return nil, fmt.Errorf("shirley needs at least two samples, got %d", n)
	}
	if energy[n-1] < energy[0] {
		return nil, fmt.Errorf("shirley: energy not increasing")
	}
	if !IsEquidistant(energy) {
		return nil, fmt.Errorf("shirley: energy not evenly spaced")
	}
	if intensity[n-1] == 0 {
		return nil, fmt.Errorf("shirley: zero intensity at interval end")
	}

	// Work on reversed arrays (descending kinetic energy), as the
	// classic formulation does, and flip back at the end.
	rev := func(src []float64) []float64 {
		out := make([]float64, n)
		for i, v := range src {
			out[n-1-i] = v
		}
		return out
	}
	e := rev(energy)
	y := rev(intensity)

	spacing := (e[n-1] - e[0]) / float64(n-1)
	background := make([]float64, n)
	for i := range background {
		background[i] = y[n-1]
	}

	integral := make([]float64, n)
	next := make([]float64, n)
	converged := false

	for it := 0; it < maxit; it++ {
		// integral[i] = spacing * sum of (y - background) above i.
		var total float64
		rest := make([]float64, n)
		for i := range y {
			rest[i] = y[i] - background[i]
			total += rest[i]
		}
		var cum float64
		for i := range rest {
			cum += rest[i]
			integral[i] = spacing * (total - cum)
		}
		if integral[0] == 0 {
			return nil, fmt.Errorf("shirley: division by zero")
		}

		for i := range next {
			next[i] = (y[0]-y[n-1])*integral[i]/integral[0] + y[n-1]
		}

		var norm float64
		for i := range next {
			d := (next[i] - background[i]) / y[0]
			norm += d * d
		}
		copy(background, next)
		if math.Sqrt(norm) < tol {
			converged = true
			break
		}
	}
	if !converged {
		slog.Warn("Shirley background did not converge", "maxit", maxit)
	}

	return rev(background), nil
}

// linearBackground writes a straight line between the first and last
// intensity sample.
func linearBackground(intensity, dst []float64) {
	n := len(intensity)
	if n == 0 {
		return
	}
	if n == 1 {
		dst[0] = intensity[0]
		return
	}
	first, last := intensity[0], intensity[n-1]
	for i := range dst {
		dst[i] = first + (last-first)*float64(i)/float64(n-1)
	}
}
