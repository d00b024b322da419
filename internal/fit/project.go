package fit

import (
	"fmt"
	"time"

	"github.com/cwbudde/xpsfit/internal/constraint"
	"github.com/cwbudde/xpsfit/internal/model"
	"github.com/cwbudde/xpsfit/internal/spectrum"
	"github.com/cwbudde/xpsfit/internal/store"
)

// ToProject serializes the workspace into a store document. The
// caller owns the document's timestamps beyond UpdatedAt and attaches
// a fit result if one exists.
func ToProject(w *Workspace, id, name string) *store.Project {
	s := w.Spectrum
	doc := &store.Project{
		ID:          id,
		Name:        name,
		LabelPolicy: string(w.Policy()),
		UpdatedAt:   time.Now(),
		Spectrum: store.SpectrumDoc{
			Name:       s.Name,
			Filename:   s.Filename,
			Notes:      s.Notes,
			Energy:     append([]float64(nil), s.Energy...),
			Intensity:  append([]float64(nil), s.Intensity...),
			Sweeps:     s.Sweeps,
			DwellTime:  s.DwellTime,
			PassEnergy: s.PassEnergy,
		},
	}

	for _, p := range w.Peaks() {
		peakDoc := store.PeakDoc{
			Label:    p.Label,
			Shape:    string(p.Shape),
			Position: p.Params.Position,
			Area:     p.Params.Area,
			FWHM:     p.Params.FWHM,
			Fraction: p.Params.Fraction,
		}
		for _, kind := range p.Kinds() {
			c := p.Constraint(kind)
			if c.State == constraint.StateFree {
				continue
			}
			if peakDoc.Constraints == nil {
				peakDoc.Constraints = make(map[string]store.ConstraintDoc)
			}
			peakDoc.Constraints[string(kind)] = store.ConstraintDoc{
				Text:    c.String(),
				Invalid: c.State == constraint.StateInvalid,
			}
		}
		doc.Peaks = append(doc.Peaks, peakDoc)
	}

	for _, r := range w.Regions() {
		doc.Regions = append(doc.Regions, store.RegionDoc{
			Lo:   r.Lo,
			Hi:   r.Hi,
			Type: string(r.Type),
		})
	}
	return doc
}

// ResultToDoc converts a fit result for persistence.
func ResultToDoc(r *FitResult) *store.ResultDoc {
	if r == nil {
		return nil
	}
	return &store.ResultDoc{
		Converged:   r.Converged,
		Cost:        r.Cost,
		Evaluations: r.Evaluations,
		FittedAt:    time.Now(),
	}
}

// FromProject rebuilds a workspace from a stored document. Peaks are
// restored before constraints so formulas can reference peaks in any
// order; formulas whose referenced peak no longer exists come back in
// the invalid state they were saved with.
func FromProject(doc *store.Project) (*Workspace, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	s, err := spectrum.New(doc.Spectrum.Name, doc.Spectrum.Energy, doc.Spectrum.Intensity)
	if err != nil {
		return nil, fmt.Errorf("restoring spectrum: %w", err)
	}
	s.Filename = doc.Spectrum.Filename
	s.Notes = doc.Spectrum.Notes
	s.Sweeps = doc.Spectrum.Sweeps
	s.DwellTime = doc.Spectrum.DwellTime
	s.PassEnergy = doc.Spectrum.PassEnergy

	w, err := NewWorkspace(s, LabelPolicy(doc.LabelPolicy))
	if err != nil {
		return nil, err
	}

	for _, peakDoc := range doc.Peaks {
		params := model.Params{
			Position: peakDoc.Position,
			Area:     peakDoc.Area,
			FWHM:     peakDoc.FWHM,
			Fraction: peakDoc.Fraction,
		}
		if _, err := w.RestorePeak(peakDoc.Label, model.Shape(peakDoc.Shape), params); err != nil {
			return nil, fmt.Errorf("restoring peak %s: %w", peakDoc.Label, err)
		}
	}

	for _, peakDoc := range doc.Peaks {
		for kindName, c := range peakDoc.Constraints {
			kind := constraint.Kind(kindName)
			if err := w.RestoreConstraint(peakDoc.Label, kind, c.Text, c.Invalid); err != nil {
				return nil, fmt.Errorf("restoring %s %s constraint %q: %w", peakDoc.Label, kind, c.Text, err)
			}
		}
	}

	for i, regionDoc := range doc.Regions {
		r, err := NewRegion(regionDoc.Lo, regionDoc.Hi, spectrum.BackgroundType(regionDoc.Type))
		if err != nil {
			return nil, fmt.Errorf("restoring region %d: %w", i, err)
		}
		w.AddRegion(r)
	}
	return w, nil
}
