package opt

import (
	"context"
	"errors"

	"gonum.org/v1/gonum/optimize"
)

// NelderMeadAdapter runs gonum's Nelder-Mead simplex method. It is
// the default solver: fast on smooth least-squares surfaces and able
// to start from the current parameter values. Box bounds are enforced
// through a quadratic penalty on the objective.
type NelderMeadAdapter struct {
	maxIters int
}

// NewNelderMead creates a Nelder-Mead solver with the given iteration
// budget.
func NewNelderMead(maxIters int) Solver {
	return &NelderMeadAdapter{maxIters: maxIters}
}

// penaltyScale weights bound violations against the objective. The
// objective is a sum of squared residuals, so violations must
// dominate it quickly.
const penaltyScale = 1e12

// Run minimizes eval starting from init. The context is checked after
// every major iteration via the recorder hook; on cancellation the
// best location found so far is returned with the context error.
func (n *NelderMeadAdapter) Run(ctx context.Context, eval func([]float64) float64, init, lower, upper []float64) (*Result, error) {
	evals := 0
	wrapped := func(x []float64) float64 {
		evals++
		penalty := 0.0
		for i, v := range x {
			if v < lower[i] {
				d := lower[i] - v
				penalty += d * d
			} else if v > upper[i] {
				d := v - upper[i]
				penalty += d * d
			}
		}
		return eval(clampToBounds(x, lower, upper)) + penaltyScale*penalty
	}

	problem := optimize.Problem{Func: wrapped}
	settings := &optimize.Settings{
		MajorIterations: n.maxIters,
		Recorder:        &ctxRecorder{ctx: ctx},
	}

	start := clampToBounds(init, lower, upper)
	result, err := optimize.Minimize(problem, start, settings, &optimize.NelderMead{})

	if result == nil {
		return &Result{X: append([]float64(nil), start...), Cost: wrapped(start), Evaluations: evals}, err
	}

	res := &Result{
		X:           clampToBounds(result.X, lower, upper),
		Cost:        result.F,
		Evaluations: evals,
		Converged:   err == nil && converged(result.Status),
	}
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		// The recorder aborted the run; the result holds the best
		// location reached before cancellation.
		return res, ctx.Err()
	}
	return res, err
}

// converged reports whether the solver terminated on a convergence
// criterion rather than a budget limit.
func converged(status optimize.Status) bool {
	switch status {
	case optimize.IterationLimit, optimize.RuntimeLimit,
		optimize.FunctionEvaluationLimit, optimize.Failure, optimize.NotTerminated:
		return false
	}
	return true
}

// clampToBounds returns a copy of x with every component moved inside
// [lower, upper].
func clampToBounds(x, lower, upper []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		switch {
		case v < lower[i]:
			out[i] = lower[i]
		case v > upper[i]:
			out[i] = upper[i]
		default:
			out[i] = v
		}
	}
	return out
}

// ctxRecorder aborts a gonum optimization when the context is done.
// Returning an error from Record stops Minimize after the current
// iteration, which gives the cooperative cancellation point between
// solver iterations.
type ctxRecorder struct {
	ctx context.Context
}

func (r *ctxRecorder) Init() error { return r.ctx.Err() }

func (r *ctxRecorder) Record(_ *optimize.Location, _ optimize.Operation, _ *optimize.Stats) error {
	select {
	case <-r.ctx.Done():
		return r.ctx.Err()
	default:
		return nil
	}
}
