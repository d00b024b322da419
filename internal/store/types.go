package store

import (
	"fmt"
	"time"
)

// Project is the persisted form of one fit workspace: the spectrum
// data, the peaks with their constraint texts, the background
// regions, and the most recent fit outcome.
//
// The document is self-contained: spectrum arrays are stored inline
// so a project can be reopened without the original export file.
// Constraint texts are stored verbatim, including formulas that were
// invalid at save time (a formula referencing a deleted peak), so
// nothing is lost on a save/load round trip. All fields use plain
// strings and numbers rather than engine types to keep the document
// format independent of engine internals.
type Project struct {
	// ID is the unique identifier for this project
	ID string `json:"id"`

	// Name is the user-facing project name
	Name string `json:"name"`

	// LabelPolicy records how peak labels behave on deletion
	// ("stable" or "compact")
	LabelPolicy string `json:"labelPolicy"`

	// CreatedAt and UpdatedAt track document lifetime
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Spectrum SpectrumDoc `json:"spectrum"`
	Peaks    []PeakDoc   `json:"peaks"`
	Regions  []RegionDoc `json:"regions"`

	// Result holds the most recent fit outcome, nil if the project
	// has never been fitted
	Result *ResultDoc `json:"result,omitempty"`
}

// SpectrumDoc stores the measured data and acquisition metadata.
type SpectrumDoc struct {
	Name       string    `json:"name"`
	Filename   string    `json:"filename,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	Energy     []float64 `json:"energy"`
	Intensity  []float64 `json:"intensity"`
	Sweeps     int       `json:"sweeps,omitempty"`
	DwellTime  float64   `json:"dwellTime,omitempty"`
	PassEnergy float64   `json:"passEnergy,omitempty"`
}

// PeakDoc stores one peak: its label, shape, current parameter values
// and the constraint text per parameter kind. Free parameters carry
// no entry in Constraints.
type PeakDoc struct {
	Label    string  `json:"label"`
	Shape    string  `json:"shape"`
	Position float64 `json:"position"`
	Area     float64 `json:"area"`
	FWHM     float64 `json:"fwhm"`
	Fraction float64 `json:"fraction"`

	// Constraints maps parameter kind ("position", "area", "fwhm",
	// "fraction") to the constraint text entered by the user.
	Constraints map[string]ConstraintDoc `json:"constraints,omitempty"`
}

// ConstraintDoc stores one parameter's constraint in its canonical
// text form. Invalid marks a formula whose referenced peak was
// deleted; the text is preserved so it can be corrected after reload.
type ConstraintDoc struct {
	Text    string `json:"text"`
	Invalid bool   `json:"invalid,omitempty"`
}

// RegionDoc stores one background-subtraction interval.
type RegionDoc struct {
	Lo   float64 `json:"lo"`
	Hi   float64 `json:"hi"`
	Type string  `json:"type"`
}

// ResultDoc stores the outcome of the most recent fit. Parameter
// values live on the peaks themselves; this records only the solver
// verdict.
type ResultDoc struct {
	Converged   bool      `json:"converged"`
	Cost        float64   `json:"cost"`
	Evaluations int       `json:"evaluations"`
	FittedAt    time.Time `json:"fittedAt"`
}

// ProjectInfo contains metadata about a project without the spectrum
// arrays. Used for listing projects efficiently.
type ProjectInfo struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SpectrumName string    `json:"spectrumName"`
	Samples      int       `json:"samples"`
	PeakCount    int       `json:"peakCount"`
	RegionCount  int       `json:"regionCount"`
	Fitted       bool      `json:"fitted"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ToInfo converts a full Project to ProjectInfo (metadata only).
func (p *Project) ToInfo() ProjectInfo {
	return ProjectInfo{
		ID:           p.ID,
		Name:         p.Name,
		SpectrumName: p.Spectrum.Name,
		Samples:      len(p.Spectrum.Energy),
		PeakCount:    len(p.Peaks),
		RegionCount:  len(p.Regions),
		Fitted:       p.Result != nil,
		UpdatedAt:    p.UpdatedAt,
	}
}

// Validate checks that the document is structurally sound.
// Returns an error if any required field is missing or inconsistent.
func (p *Project) Validate() error {
	if p.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if p.LabelPolicy != "stable" && p.LabelPolicy != "compact" {
		return &ValidationError{Field: "LabelPolicy", Reason: fmt.Sprintf("unknown policy %q", p.LabelPolicy)}
	}
	if len(p.Spectrum.Energy) < 2 {
		return &ValidationError{Field: "Spectrum.Energy", Reason: "needs at least two samples"}
	}
	if len(p.Spectrum.Energy) != len(p.Spectrum.Intensity) {
		return &ValidationError{
			Field:  "Spectrum",
			Reason: fmt.Sprintf("energy has %d samples, intensity %d", len(p.Spectrum.Energy), len(p.Spectrum.Intensity)),
		}
	}
	seen := make(map[string]bool, len(p.Peaks))
	for _, peak := range p.Peaks {
		if peak.Label == "" {
			return &ValidationError{Field: "Peaks", Reason: "peak with empty label"}
		}
		if seen[peak.Label] {
			return &ValidationError{Field: "Peaks", Reason: fmt.Sprintf("duplicate label %q", peak.Label)}
		}
		seen[peak.Label] = true
		if peak.Shape == "" {
			return &ValidationError{Field: "Peaks", Reason: fmt.Sprintf("peak %s has no shape", peak.Label)}
		}
	}
	for i, region := range p.Regions {
		if region.Lo > region.Hi {
			return &ValidationError{Field: "Regions", Reason: fmt.Sprintf("region %d has lo > hi", i)}
		}
		if region.Type == "" {
			return &ValidationError{Field: "Regions", Reason: fmt.Sprintf("region %d has no background type", i)}
		}
	}
	return nil
}

// ValidationError represents a project validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
