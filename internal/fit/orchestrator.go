package fit

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/xpsfit/internal/constraint"
	"github.com/cwbudde/xpsfit/internal/opt"
	"github.com/cwbudde/xpsfit/internal/spectrum"
)

// ProgressFunc receives the running evaluation count and cost
// whenever the best cost improves during a fit. It is called from the
// solver's goroutine and must not touch the workspace.
type ProgressFunc func(evaluations int, cost float64)

// freeParam binds one solver dimension to a peak parameter.
type freeParam struct {
	peak   *Peak
	kind   constraint.Kind
	lo, hi float64
}

// Baseline computes the summed region backgrounds over the spectrum's
// energy grid. Positions outside every region stay zero.
func (w *Workspace) Baseline() ([]float64, error) {
	dst := make([]float64, w.Spectrum.Len())
	for _, r := range w.regions {
		if err := spectrum.CalculateBackground(r.Type, r.Lo, r.Hi, w.Spectrum, dst); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

// Model evaluates baseline plus all peaks at the current parameter
// values. Exposed for plotting and for residual inspection.
func (w *Workspace) Model() ([]float64, error) {
	predicted, err := w.Baseline()
	if err != nil {
		return nil, err
	}
	for _, p := range w.peaks {
		p.Eval(w.Spectrum.Energy, predicted)
	}
	return predicted, nil
}

// Fit resolves the constraint graph and minimizes the sum of squared
// residuals over the free parameters. See FitObserved.
func (w *Workspace) Fit(ctx context.Context, solver opt.Solver) (*FitResult, error) {
	return w.FitObserved(ctx, solver, nil)
}

// FitObserved runs a fit with an optional progress callback.
//
// Free and bounded parameters become solver dimensions; fixed
// parameters stay constant; formula parameters are recomputed in
// dependency order on every solver evaluation. On success the
// resolved values are written back to the peaks. On failure the last
// best estimate is written back and returned inside a FitFailure.
func (w *Workspace) FitObserved(ctx context.Context, solver opt.Solver, progress ProgressFunc) (*FitResult, error) {
	if inv := w.graph.Invalidated(); len(inv) > 0 {
		return nil, &constraint.InvalidReferenceError{Refs: inv}
	}
	// The graph is validated on every mutation; re-check anyway so a
	// cycle can never reach the evaluation loop.
	topo, err := w.graph.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	if len(w.peaks) == 0 {
		return nil, errors.New("no peaks to fit")
	}

	baseline, err := w.Baseline()
	if err != nil {
		return nil, err
	}

	params := w.freeParams()
	init := make([]float64, len(params))
	lower := make([]float64, len(params))
	upper := make([]float64, len(params))
	for i, fp := range params {
		init[i] = clamp(fp.peak.Value(fp.kind), fp.lo, fp.hi)
		lower[i] = fp.lo
		upper[i] = fp.hi
	}

	energy := w.Spectrum.Energy
	measured := w.Spectrum.Intensity
	predicted := make([]float64, len(energy))

	evaluations := 0
	best := math.Inf(1)
	eval := func(x []float64) float64 {
		for i, fp := range params {
			fp.peak.SetValue(fp.kind, x[i])
		}
		w.applyFormulas(topo)
		copy(predicted, baseline)
		for _, p := range w.peaks {
			p.Eval(energy, predicted)
		}
		d := floats.Distance(measured, predicted, 2)
		cost := d * d
		evaluations++
		if progress != nil && cost < best {
			best = cost
			progress(evaluations, cost)
		}
		return cost
	}

	slog.Info("starting fit",
		"peaks", len(w.peaks),
		"free_parameters", len(params),
		"regions", len(w.regions))

	res, runErr := solver.Run(ctx, eval, init, lower, upper)
	if res != nil {
		for i, fp := range params {
			fp.peak.SetValue(fp.kind, res.X[i])
		}
		w.applyFormulas(topo)
	}

	result := w.snapshot(res)
	if runErr != nil {
		return nil, &FitFailure{Reason: "solver error", Err: runErr, Best: result}
	}
	if !res.Converged {
		return nil, &FitFailure{Reason: "did not converge", Best: result}
	}

	slog.Info("fit complete", "cost", res.Cost, "evaluations", res.Evaluations)
	return result, nil
}

// freeParams collects the solver inputs in label order so the result
// does not depend on peak creation order.
func (w *Workspace) freeParams() []freeParam {
	peaks := make([]*Peak, len(w.peaks))
	copy(peaks, w.peaks)
	sort.Slice(peaks, func(i, j int) bool {
		return labelLess(peaks[i].Label, peaks[j].Label)
	})

	var params []freeParam
	for _, p := range peaks {
		for _, kind := range p.Kinds() {
			c := p.Constraint(kind)
			switch c.State {
			case constraint.StateFree:
				lo, hi := w.defaultBounds(kind)
				params = append(params, freeParam{peak: p, kind: kind, lo: lo, hi: hi})
			case constraint.StateBounded:
				lo, hi := w.defaultBounds(kind)
				if !math.IsInf(c.Min, -1) {
					lo = c.Min
				}
				if !math.IsInf(c.Max, 1) {
					hi = c.Max
				}
				params = append(params, freeParam{peak: p, kind: kind, lo: lo, hi: hi})
			}
		}
	}
	return params
}

// defaultBounds derives finite solver bounds for an unbounded
// parameter from the spectrum extent.
func (w *Workspace) defaultBounds(kind constraint.Kind) (lo, hi float64) {
	eLo, eHi := w.Spectrum.EnergyRange()
	span := eHi - eLo
	switch kind {
	case constraint.KindPosition:
		return eLo, eHi
	case constraint.KindFWHM:
		return 1e-3, span
	case constraint.KindArea:
		return 0, 10 * w.Spectrum.MaxIntensity() * span
	case constraint.KindFraction:
		return 0, 1
	}
	return 0, 1
}

// applyFormulas recomputes every formula parameter in dependency
// order from the current values. An evaluation error (runtime
// division by zero) leaves the previous value in place.
func (w *Workspace) applyFormulas(topo []constraint.Ref) {
	for _, node := range topo {
		p, ok := w.peak(node.Peak)
		if !ok {
			continue
		}
		c := p.Constraint(node.Kind)
		if c.State != constraint.StateFormula {
			continue
		}
		if v, err := c.Expr.Eval(w.resolveValue); err == nil {
			p.SetValue(node.Kind, v)
		}
	}
}

func (w *Workspace) snapshot(res *opt.Result) *FitResult {
	peaks := make([]PeakResult, len(w.peaks))
	for i, p := range w.peaks {
		peaks[i] = PeakResult{Label: p.Label, Shape: p.Shape, Params: p.Params}
	}
	r := &FitResult{Peaks: peaks}
	if res != nil {
		r.Converged = res.Converged
		r.Cost = res.Cost
		r.Evaluations = res.Evaluations
	}
	return r
}

// labelLess orders single-letter labels before double-letter ones.
func labelLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
