package fit

import (
	"fmt"

	"github.com/cwbudde/xpsfit/internal/spectrum"
)

// Region is a background-subtraction interval over the energy axis.
type Region struct {
	Lo   float64
	Hi   float64
	Type spectrum.BackgroundType
}

// NewRegion orders the endpoints and validates the background type.
func NewRegion(lo, hi float64, t spectrum.BackgroundType) (Region, error) {
	if !t.Valid() {
		return Region{}, fmt.Errorf("unknown background type %q", t)
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return Region{Lo: lo, Hi: hi, Type: t}, nil
}

// Contains reports whether the energy falls inside the region.
func (r Region) Contains(energy float64) bool {
	return energy >= r.Lo && energy < r.Hi
}
