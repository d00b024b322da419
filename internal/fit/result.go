package fit

import (
	"fmt"

	"github.com/cwbudde/xpsfit/internal/model"
)

// PeakResult is the resolved state of one peak after a fit.
type PeakResult struct {
	Label  string       `json:"label"`
	Shape  model.Shape  `json:"shape"`
	Params model.Params `json:"params"`
}

// FitResult carries the resolved values of every parameter together
// with the solver outcome.
type FitResult struct {
	Converged   bool         `json:"converged"`
	Cost        float64      `json:"cost"`
	Evaluations int          `json:"evaluations"`
	Peaks       []PeakResult `json:"peaks"`
}

// FitFailure reports a fit that did not converge or a solver error.
// It is recoverable: Best holds the last best estimate, which has
// also been written back to the workspace so the user can adjust
// constraints and retry.
type FitFailure struct {
	Reason string
	Best   *FitResult
	Err    error
}

func (e *FitFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fit failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("fit failed: %s", e.Reason)
}

func (e *FitFailure) Unwrap() error { return e.Err }

// Is supports errors.Is(err, &FitFailure{}).
func (e *FitFailure) Is(target error) bool {
	_, ok := target.(*FitFailure)
	return ok
}
