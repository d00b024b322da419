// Package spectrum holds measured spectra, import filters for
// spectrometer export files, and background calculation.
package spectrum

import (
	"fmt"
	"math"
	"sort"
)

// Spectrum holds one measured energy/intensity series. Energy is
// increasing and evenly spaced after construction.
type Spectrum struct {
	Name      string    `json:"name"`
	Filename  string    `json:"filename,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Energy    []float64 `json:"energy"`
	Intensity []float64 `json:"intensity"`

	// Omicron EIS metadata, zero for other formats.
	Sweeps     int     `json:"sweeps,omitempty"`
	DwellTime  float64 `json:"dwellTime,omitempty"`
	PassEnergy float64 `json:"passEnergy,omitempty"`
}

// New builds a spectrum from raw arrays. The energy axis is sorted
// increasing and resampled onto an even grid if needed.
func New(name string, energy, intensity []float64) (*Spectrum, error) {
	if len(energy) != len(intensity) {
		return nil, fmt.Errorf("energy and intensity length mismatch: %d vs %d", len(energy), len(intensity))
	}
	if len(energy) < 2 {
		return nil, fmt.Errorf("spectrum needs at least two samples, got %d", len(energy))
	}

	energy, intensity = MakeIncreasing(energy, intensity)
	energy, intensity = MakeEquidistant(energy, intensity)

	return &Spectrum{
		Name:      name,
		Energy:    energy,
		Intensity: intensity,
	}, nil
}

// Len returns the number of samples.
func (s *Spectrum) Len() int { return len(s.Energy) }

// EnergyRange returns the lowest and highest energy.
func (s *Spectrum) EnergyRange() (lo, hi float64) {
	return s.Energy[0], s.Energy[len(s.Energy)-1]
}

// MaxIntensity returns the largest intensity sample.
func (s *Spectrum) MaxIntensity() float64 {
	max := math.Inf(-1)
	for _, v := range s.Intensity {
		if v > max {
			max = v
		}
	}
	return max
}

// IntensityAt linearly interpolates the intensity at the given energy.
func (s *Spectrum) IntensityAt(energy float64) float64 {
	return interp(energy, s.Energy, s.Intensity)
}

// MakeIncreasing sorts energy ascending and reorders intensity to
// match.
func MakeIncreasing(energy, intensity []float64) ([]float64, []float64) {
	idx := make([]int, len(energy))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return energy[idx[a]] < energy[idx[b]] })

	outE := make([]float64, len(energy))
	outI := make([]float64, len(intensity))
	for i, j := range idx {
		outE[i] = energy[j]
		outI[i] = intensity[j]
	}
	return outE, outI
}

// IsEquidistant reports whether the energy axis is evenly spaced
// within tolerance.
func IsEquidistant(energy []float64) bool {
	const tol = 1e-8
	if len(energy) < 3 {
		return true
	}
	first := energy[1] - energy[0]
	for i := 2; i < len(energy); i++ {
		if math.Abs((energy[i]-energy[i-1])-first) > tol {
			return false
		}
	}
	return true
}

// MakeEquidistant resamples onto an even grid using linear
// interpolation. Already-even axes are returned unchanged. The grid
// step is the smallest spacing found, so no detail is dropped.
func MakeEquidistant(energy, intensity []float64) ([]float64, []float64) {
	if IsEquidistant(energy) {
		return energy, intensity
	}

	minSpacing := math.Inf(1)
	for i := 1; i < len(energy); i++ {
		if d := energy[i] - energy[i-1]; d > 0 && d < minSpacing {
			minSpacing = d
		}
	}

	lo, hi := energy[0], energy[len(energy)-1]
	samples := int((hi-lo)/minSpacing) + 1
	outE := make([]float64, samples)
	outI := make([]float64, samples)
	for i := range outE {
		x := lo + (hi-lo)*float64(i)/float64(samples-1)
		outE[i] = x
		outI[i] = interp(x, energy, intensity)
	}
	return outE, outI
}

// interp linearly interpolates y(x) over increasing xs, clamping at
// the ends.
func interp(x float64, xs, ys []float64) float64 {
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[len(xs)-1] {
		return ys[len(ys)-1]
	}
	i := sort.SearchFloat64s(xs, x)
	x0, x1 := xs[i-1], xs[i]
	y0, y1 := ys[i-1], ys[i]
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}
