package opt

import "context"

// Result holds the outcome of a solver run.
type Result struct {
	// X are the best parameters found.
	X []float64
	// Cost is the objective value at X.
	Cost float64
	// Evaluations counts objective function calls.
	Evaluations int
	// Converged reports whether the solver met its convergence
	// criterion rather than running into an iteration budget.
	Converged bool
}

// Solver defines a nonlinear minimization algorithm.
type Solver interface {
	// Run minimizes eval over the box [lower, upper], starting from
	// init. All slices share one length. Cancellation is cooperative:
	// implementations check ctx between iterations and return the best
	// result found so far together with the context error.
	Run(ctx context.Context, eval func([]float64) float64, init, lower, upper []float64) (*Result, error)
}
