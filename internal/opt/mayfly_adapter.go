package opt

import (
	"context"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MayflyAdapter wraps the external Mayfly library to conform to the
// Solver interface. Mayfly is population based and derivative free,
// which makes it robust against the rough cost surfaces of strongly
// overlapping peaks, at the price of more evaluations.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a new Mayfly solver adapter.
func NewMayfly(maxIters, popSize int, seed int64) Solver {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Run executes the Mayfly optimization using the external library.
// The library initializes its own population, so init only serves as
// the fallback estimate. Cancellation is checked before the run
// starts: the library cannot be interrupted mid-flight.
func (m *MayflyAdapter) Run(ctx context.Context, eval func([]float64) float64, init, lower, upper []float64) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return &Result{X: append([]float64(nil), init...), Cost: eval(init)}, err
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = eval
	config.ProblemSize = len(init)
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize

	// The external library uses scalar bounds shared by all
	// dimensions; use the widest interval.
	config.LowerBound = minOf(lower)
	config.UpperBound = maxOf(upper)

	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		// Keep the starting point as the best estimate.
		return &Result{X: append([]float64(nil), init...), Cost: eval(init)}, err
	}

	return &Result{
		X:           result.GlobalBest.Position,
		Cost:        result.GlobalBest.Cost,
		Evaluations: m.maxIters * m.popSize,
		Converged:   true,
	}, ctx.Err()
}

func minOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
