package fit

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/xpsfit/internal/constraint"
	"github.com/cwbudde/xpsfit/internal/model"
	"github.com/cwbudde/xpsfit/internal/spectrum"
)

// LabelPolicy selects what happens to peak labels when a peak is
// deleted.
type LabelPolicy string

const (
	// LabelStable leaves gaps: surviving peaks keep their labels and
	// the lowest free label is reused on the next creation.
	LabelStable LabelPolicy = "stable"
	// LabelCompact relabels survivors to close the gap. Formula
	// references to renamed peaks are rewritten so their meaning is
	// preserved.
	LabelCompact LabelPolicy = "compact"
)

// Valid reports whether p names a supported policy.
func (p LabelPolicy) Valid() bool {
	return p == LabelStable || p == LabelCompact
}

// maxLabels caps peak labels at A..Z followed by AA..ZZ.
const maxLabels = 26 + 26*26

func labelAt(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	i -= 26
	return string(rune('A'+i/26)) + string(rune('A'+i%26))
}

// Workspace owns the peaks, regions and constraint graph for one
// spectrum. It is not safe for concurrent use; callers serialize
// access (the job server runs one fit per workspace at a time).
type Workspace struct {
	Spectrum *spectrum.Spectrum

	policy  LabelPolicy
	peaks   []*Peak // creation order
	regions []Region
	graph   *constraint.Graph
}

// NewWorkspace creates an empty workspace over a spectrum.
func NewWorkspace(s *spectrum.Spectrum, policy LabelPolicy) (*Workspace, error) {
	if s == nil {
		return nil, errors.New("workspace requires a spectrum")
	}
	if !policy.Valid() {
		return nil, fmt.Errorf("unknown label policy %q", policy)
	}
	return &Workspace{
		Spectrum: s,
		policy:   policy,
		graph:    constraint.NewGraph(),
	}, nil
}

// Policy returns the workspace's label policy.
func (w *Workspace) Policy() LabelPolicy { return w.policy }

// Peaks returns the peaks in creation order.
func (w *Workspace) Peaks() []*Peak {
	out := make([]*Peak, len(w.peaks))
	copy(out, w.peaks)
	return out
}

// Peak looks a peak up by label.
func (w *Workspace) Peak(label string) (*Peak, bool) {
	return w.peak(label)
}

func (w *Workspace) peak(label string) (*Peak, bool) {
	for _, p := range w.peaks {
		if p.Label == label {
			return p, true
		}
	}
	return nil, false
}

// AddPeak creates a peak with explicit parameters and assigns it the
// lowest free label.
func (w *Workspace) AddPeak(shape model.Shape, params model.Params) (*Peak, error) {
	if !shape.Valid() {
		return nil, fmt.Errorf("unknown peak shape %q", shape)
	}
	label, err := w.nextLabel()
	if err != nil {
		return nil, err
	}
	p := newPeak(label, shape, params)
	w.peaks = append(w.peaks, p)
	return p, nil
}

// AddPeakFromGesture creates a peak from the position/angle/height
// wedge drawn on the plot, deriving fwhm and area for the shape.
func (w *Workspace) AddPeakFromGesture(shape model.Shape, position, angle, height float64) (*Peak, error) {
	fwhm, err := model.FWHMFromGesture(position, angle, height, shape)
	if err != nil {
		return nil, err
	}
	area, err := model.AreaFromGesture(position, angle, height, shape)
	if err != nil {
		return nil, err
	}
	return w.AddPeak(shape, model.Params{
		Position: position,
		Area:     area,
		FWHM:     fwhm,
		Fraction: defaultFraction(shape),
	})
}

// RestorePeak re-creates a peak under its saved label during project
// load. Unlike AddPeak the label is taken as stored, so gaps left by
// the stable policy survive a save/load cycle.
func (w *Workspace) RestorePeak(label string, shape model.Shape, params model.Params) (*Peak, error) {
	if !shape.Valid() {
		return nil, fmt.Errorf("unknown peak shape %q", shape)
	}
	if !validLabel(label) {
		return nil, fmt.Errorf("malformed peak label %q", label)
	}
	if _, ok := w.peak(label); ok {
		return nil, fmt.Errorf("duplicate peak label %q", label)
	}
	p := newPeak(label, shape, params)
	w.peaks = append(w.peaks, p)
	return p, nil
}

func validLabel(s string) bool {
	if len(s) < 1 || len(s) > 2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

func defaultFraction(shape model.Shape) float64 {
	if shape == model.ShapePseudoVoigt {
		return 0.5
	}
	return 0.1
}

func (w *Workspace) nextLabel() (string, error) {
	used := make(map[string]bool, len(w.peaks))
	for _, p := range w.peaks {
		used[p.Label] = true
	}
	for i := 0; i < maxLabels; i++ {
		if l := labelAt(i); !used[l] {
			return l, nil
		}
	}
	return "", errors.New("no free peak labels")
}

// RemovePeak deletes a peak. Formula constraints elsewhere that
// referenced it become invalid; the affected nodes are returned so
// the caller can surface them. Under the compact policy surviving
// peaks are relabeled and their formulas rewritten to match.
func (w *Workspace) RemovePeak(label string) ([]constraint.Ref, error) {
	idx := -1
	for i, p := range w.peaks {
		if p.Label == label {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("no peak %q", label)
	}
	w.peaks = append(w.peaks[:idx], w.peaks[idx+1:]...)

	invalidated := w.graph.RemovePeak(label)
	for _, node := range invalidated {
		if p, ok := w.peak(node.Peak); ok {
			p.setConstraint(node.Kind, p.Constraint(node.Kind).Invalidate())
		}
	}

	if w.policy == LabelCompact {
		mapping := w.compact()
		for i, node := range invalidated {
			if to, ok := mapping[node.Peak]; ok {
				invalidated[i].Peak = to
			}
		}
	}
	return invalidated, nil
}

// compact relabels peaks to A, B, C, ... in creation order and
// rewrites graph nodes and formula expressions accordingly. Returns
// the old-to-new label mapping.
func (w *Workspace) compact() map[string]string {
	mapping := make(map[string]string)
	for i, p := range w.peaks {
		if want := labelAt(i); p.Label != want {
			mapping[p.Label] = want
		}
	}
	if len(mapping) == 0 {
		return nil
	}
	// Relabeling always shifts labels down, so renaming in creation
	// order never collides with a surviving label.
	for i, p := range w.peaks {
		want := labelAt(i)
		if p.Label == want {
			continue
		}
		w.graph.RenamePeak(p.Label, want)
		p.Label = want
	}
	for _, p := range w.peaks {
		for kind, c := range p.constraints {
			if c.Expr != nil {
				c.Expr = c.Expr.Rename(mapping)
				p.constraints[kind] = c
			}
		}
	}
	return mapping
}

// Regions returns the background regions.
func (w *Workspace) Regions() []Region {
	out := make([]Region, len(w.regions))
	copy(out, w.regions)
	return out
}

// AddRegion registers a background-subtraction interval.
func (w *Workspace) AddRegion(r Region) {
	w.regions = append(w.regions, r)
}

// RemoveRegion deletes the i-th region.
func (w *Workspace) RemoveRegion(i int) error {
	if i < 0 || i >= len(w.regions) {
		return fmt.Errorf("no region %d", i)
	}
	w.regions = append(w.regions[:i], w.regions[i+1:]...)
	return nil
}

// SetConstraint parses constraint text and applies it to one
// parameter. On any error the parameter keeps its previous
// constraint. Empty text clears the constraint back to free.
func (w *Workspace) SetConstraint(label string, kind constraint.Kind, text string) error {
	peak, ok := w.peak(label)
	if !ok {
		return fmt.Errorf("no peak %q", label)
	}
	if !peak.HasKind(kind) {
		return fmt.Errorf("peak %s (%s) has no %s parameter", label, peak.Shape, kind)
	}
	node := constraint.Ref{Peak: label, Kind: kind}

	if strings.TrimSpace(text) == "" {
		w.graph.Remove(node)
		peak.setConstraint(kind, constraint.Free())
		return nil
	}

	c, err := constraint.Parse(text, kind, label)
	if err != nil {
		return err
	}

	if c.State == constraint.StateFormula {
		for _, ref := range c.Refs() {
			target, ok := w.peak(ref.Peak)
			if !ok {
				return &constraint.ParseError{Text: text, Reason: fmt.Sprintf("unknown peak %s", ref.Peak)}
			}
			if !target.HasKind(ref.Kind) {
				return &constraint.ParseError{Text: text, Reason: fmt.Sprintf("peak %s has no %s parameter", ref.Peak, ref.Kind)}
			}
		}
		if err := w.graph.AddOrReplace(node, c.Refs()); err != nil {
			return err
		}
	} else {
		w.graph.Remove(node)
	}
	peak.setConstraint(kind, c)

	switch c.State {
	case constraint.StateFixed:
		peak.SetValue(kind, c.Value)
	case constraint.StateBounded:
		peak.SetValue(kind, clamp(peak.Value(kind), c.Min, c.Max))
	case constraint.StateFormula:
		if v, err := c.Expr.Eval(w.resolveValue); err == nil {
			peak.SetValue(kind, v)
		}
	}
	return nil
}

// RestoreConstraint applies stored constraint text during project
// load. Unlike SetConstraint it tolerates formulas whose references
// no longer exist: the text is kept and the parameter is marked
// invalid, matching how it was saved.
//
// A formula saved in the invalid state stays invalid even when its
// referenced label resolves again. Under the stable policy a deleted
// peak's label is reused by the next created peak, so re-binding by
// name would silently attach the formula to an unrelated peak.
func (w *Workspace) RestoreConstraint(label string, kind constraint.Kind, text string, invalid bool) error {
	if invalid {
		c, err := constraint.Parse(text, kind, label)
		if err != nil {
			return err
		}
		if c.State != constraint.StateFormula {
			return fmt.Errorf("constraint %q marked invalid but is not a formula", text)
		}
		peak, ok := w.peak(label)
		if !ok {
			return fmt.Errorf("no peak %q", label)
		}
		peak.setConstraint(kind, c.Invalidate())
		w.graph.MarkInvalid(constraint.Ref{Peak: label, Kind: kind})
		return nil
	}

	err := w.SetConstraint(label, kind, text)
	if err == nil {
		return nil
	}

	c, perr := constraint.Parse(text, kind, label)
	if perr != nil || c.State != constraint.StateFormula {
		return err
	}
	peak, ok := w.peak(label)
	if !ok {
		return err
	}
	node := constraint.Ref{Peak: label, Kind: kind}
	peak.setConstraint(kind, c.Invalidate())
	w.graph.MarkInvalid(node)
	return nil
}

// ConstraintText returns the canonical text of one parameter's
// constraint; empty for a free parameter.
func (w *Workspace) ConstraintText(label string, kind constraint.Kind) (string, error) {
	peak, ok := w.peak(label)
	if !ok {
		return "", fmt.Errorf("no peak %q", label)
	}
	c := peak.Constraint(kind)
	if c.State == constraint.StateFree {
		return "", nil
	}
	return c.String(), nil
}

// Invalidated returns the parameters whose formula references a peak
// that no longer exists. A fit refuses to start while this is
// non-empty.
func (w *Workspace) Invalidated() []constraint.Ref {
	return w.graph.Invalidated()
}

func (w *Workspace) resolveValue(ref constraint.Ref) (float64, error) {
	p, ok := w.peak(ref.Peak)
	if !ok {
		return 0, fmt.Errorf("no peak %s", ref.Peak)
	}
	return p.Value(ref.Kind), nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
