package fit

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/xpsfit/internal/constraint"
	"github.com/cwbudde/xpsfit/internal/model"
	"github.com/cwbudde/xpsfit/internal/spectrum"
)

func testSpectrum(t *testing.T) *spectrum.Spectrum {
	t.Helper()
	n := 201
	energy := make([]float64, n)
	intensity := make([]float64, n)
	for i := 0; i < n; i++ {
		energy[i] = float64(i) * 0.1
		intensity[i] = 1.0
	}
	s, err := spectrum.New("test", energy, intensity)
	if err != nil {
		t.Fatalf("spectrum.New failed: %v", err)
	}
	return s
}

func testWorkspace(t *testing.T, policy LabelPolicy) *Workspace {
	t.Helper()
	w, err := NewWorkspace(testSpectrum(t), policy)
	if err != nil {
		t.Fatalf("NewWorkspace failed: %v", err)
	}
	return w
}

func addTestPeak(t *testing.T, w *Workspace) *Peak {
	t.Helper()
	p, err := w.AddPeak(model.ShapePseudoVoigt, model.Params{Position: 10, Area: 5, FWHM: 1, Fraction: 0.5})
	if err != nil {
		t.Fatalf("AddPeak failed: %v", err)
	}
	return p
}

func TestLabelAssignmentOrder(t *testing.T) {
	w := testWorkspace(t, LabelStable)
	for i, want := range []string{"A", "B", "C"} {
		p := addTestPeak(t, w)
		if p.Label != want {
			t.Errorf("peak %d: label = %q, want %q", i, p.Label, want)
		}
	}
}

func TestStablePolicyLeavesGapAndReusesLabel(t *testing.T) {
	w := testWorkspace(t, LabelStable)
	addTestPeak(t, w) // A
	addTestPeak(t, w) // B
	addTestPeak(t, w) // C

	if _, err := w.RemovePeak("B"); err != nil {
		t.Fatalf("RemovePeak failed: %v", err)
	}
	if _, ok := w.Peak("C"); !ok {
		t.Error("peak C should keep its label under the stable policy")
	}

	p := addTestPeak(t, w)
	if p.Label != "B" {
		t.Errorf("new peak label = %q, want reuse of B", p.Label)
	}
}

func TestCompactPolicyRelabelsAndRemapsFormulas(t *testing.T) {
	w := testWorkspace(t, LabelCompact)
	addTestPeak(t, w) // A
	addTestPeak(t, w) // B
	addTestPeak(t, w) // C

	// C's area tracks B's.
	if err := w.SetConstraint("C", constraint.KindArea, "B*2"); err != nil {
		t.Fatalf("SetConstraint failed: %v", err)
	}

	if _, err := w.RemovePeak("A"); err != nil {
		t.Fatalf("RemovePeak failed: %v", err)
	}

	// B -> A, C -> B; the formula must now track the relabeled A.
	if _, ok := w.Peak("C"); ok {
		t.Error("peak C should have been relabeled to B")
	}
	text, err := w.ConstraintText("B", constraint.KindArea)
	if err != nil {
		t.Fatalf("ConstraintText failed: %v", err)
	}
	if text != "A * 2" {
		t.Errorf("remapped formula = %q, want A * 2", text)
	}
	if len(w.Invalidated()) != 0 {
		t.Errorf("no constraint should be invalidated, got %v", w.Invalidated())
	}
}

func TestCompactPolicyInvalidatesReferenceToDeletedPeak(t *testing.T) {
	w := testWorkspace(t, LabelCompact)
	addTestPeak(t, w) // A
	addTestPeak(t, w) // B

	if err := w.SetConstraint("B", constraint.KindArea, "A*2"); err != nil {
		t.Fatalf("SetConstraint failed: %v", err)
	}
	inv, err := w.RemovePeak("A")
	if err != nil {
		t.Fatalf("RemovePeak failed: %v", err)
	}
	// B is relabeled to A; its invalidated ref must use the new label.
	if len(inv) != 1 || inv[0].Peak != "A" || inv[0].Kind != constraint.KindArea {
		t.Errorf("invalidated = %v, want [A area]", inv)
	}
}

func TestSetConstraintFixedAppliesValue(t *testing.T) {
	w := testWorkspace(t, LabelStable)
	p := addTestPeak(t, w)

	if err := w.SetConstraint("A", constraint.KindArea, "7.5"); err != nil {
		t.Fatalf("SetConstraint failed: %v", err)
	}
	if p.Params.Area != 7.5 {
		t.Errorf("area = %f, want 7.5", p.Params.Area)
	}
}

func TestSetConstraintBoundedClampsCurrentValue(t *testing.T) {
	w := testWorkspace(t, LabelStable)
	p := addTestPeak(t, w) // area 5

	if err := w.SetConstraint("A", constraint.KindArea, ">10 <20"); err != nil {
		t.Fatalf("SetConstraint failed: %v", err)
	}
	if p.Params.Area != 10 {
		t.Errorf("area = %f, want clamped to 10", p.Params.Area)
	}
}

func TestSetConstraintFormulaEvaluatesImmediately(t *testing.T) {
	w := testWorkspace(t, LabelStable)
	a := addTestPeak(t, w)
	b := addTestPeak(t, w)
	a.Params.Area = 10

	if err := w.SetConstraint("B", constraint.KindArea, "A*2"); err != nil {
		t.Fatalf("SetConstraint failed: %v", err)
	}
	if b.Params.Area != 20 {
		t.Errorf("area = %f, want 20", b.Params.Area)
	}
}

func TestSetConstraintUnknownPeakIsParseError(t *testing.T) {
	w := testWorkspace(t, LabelStable)
	addTestPeak(t, w)

	err := w.SetConstraint("A", constraint.KindArea, "Z*2")
	if !errors.Is(err, &constraint.ParseError{}) {
		t.Errorf("expected ParseError for unknown peak, got %v", err)
	}
}

func TestSetConstraintKindMissingOnTarget(t *testing.T) {
	w := testWorkspace(t, LabelStable)
	addTestPeak(t, w)
	if _, err := w.AddPeak(model.ShapeVoigt, model.Params{Position: 5, Area: 2, FWHM: 1}); err != nil {
		t.Fatalf("AddPeak failed: %v", err)
	}

	// Voigt peaks carry no fraction parameter.
	err := w.SetConstraint("A", constraint.KindFraction, "B*0.5")
	if !errors.Is(err, &constraint.ParseError{}) {
		t.Errorf("expected ParseError for missing parameter kind, got %v", err)
	}
}

func TestSetConstraintCycleKeepsPriorState(t *testing.T) {
	w := testWorkspace(t, LabelStable)
	addTestPeak(t, w)
	addTestPeak(t, w)

	if err := w.SetConstraint("A", constraint.KindArea, "B*2"); err != nil {
		t.Fatalf("SetConstraint failed: %v", err)
	}
	err := w.SetConstraint("B", constraint.KindArea, "A/2")
	if !errors.Is(err, &constraint.CycleError{}) {
		t.Fatalf("expected CycleError, got %v", err)
	}

	// A keeps its formula, B stays free.
	text, err := w.ConstraintText("A", constraint.KindArea)
	if err != nil || text != "B * 2" {
		t.Errorf("A area constraint = %q (%v), want B * 2", text, err)
	}
	text, err = w.ConstraintText("B", constraint.KindArea)
	if err != nil || text != "" {
		t.Errorf("B area constraint = %q (%v), want free", text, err)
	}
}

func TestSetConstraintBadTextKeepsPriorConstraint(t *testing.T) {
	w := testWorkspace(t, LabelStable)
	addTestPeak(t, w)

	if err := w.SetConstraint("A", constraint.KindFWHM, ">0.5 <3"); err != nil {
		t.Fatalf("SetConstraint failed: %v", err)
	}
	if err := w.SetConstraint("A", constraint.KindFWHM, ">>1"); err == nil {
		t.Fatal("expected error for malformed text")
	}
	text, err := w.ConstraintText("A", constraint.KindFWHM)
	if err != nil || text != "> 0.5 < 3" {
		t.Errorf("constraint = %q (%v), want previous bounds kept", text, err)
	}
}

func TestClearConstraintWithEmptyText(t *testing.T) {
	w := testWorkspace(t, LabelStable)
	addTestPeak(t, w)
	addTestPeak(t, w)

	if err := w.SetConstraint("B", constraint.KindArea, "A*2"); err != nil {
		t.Fatalf("SetConstraint failed: %v", err)
	}
	if err := w.SetConstraint("B", constraint.KindArea, ""); err != nil {
		t.Fatalf("clearing constraint failed: %v", err)
	}
	text, err := w.ConstraintText("B", constraint.KindArea)
	if err != nil || text != "" {
		t.Errorf("constraint = %q (%v), want free", text, err)
	}

	// The dependency edge is gone, so the reverse formula is legal now.
	if err := w.SetConstraint("A", constraint.KindArea, "B*2"); err != nil {
		t.Errorf("reverse formula after clear failed: %v", err)
	}
}

func TestRemovePeakInvalidatesDependentOnly(t *testing.T) {
	w := testWorkspace(t, LabelStable)
	addTestPeak(t, w) // A
	addTestPeak(t, w) // B
	addTestPeak(t, w) // C
	addTestPeak(t, w) // D

	if err := w.SetConstraint("D", constraint.KindArea, "B*2"); err != nil {
		t.Fatalf("SetConstraint failed: %v", err)
	}
	if err := w.SetConstraint("C", constraint.KindFWHM, "A*1.5"); err != nil {
		t.Fatalf("SetConstraint failed: %v", err)
	}

	inv, err := w.RemovePeak("B")
	if err != nil {
		t.Fatalf("RemovePeak failed: %v", err)
	}
	if len(inv) != 1 || inv[0] != (constraint.Ref{Peak: "D", Kind: constraint.KindArea}) {
		t.Errorf("invalidated = %v, want [D area]", inv)
	}

	d, _ := w.Peak("D")
	if d.Constraint(constraint.KindArea).State != constraint.StateInvalid {
		t.Error("D's area constraint should be invalid")
	}
	c, _ := w.Peak("C")
	if c.Constraint(constraint.KindFWHM).State != constraint.StateFormula {
		t.Error("C's fwhm constraint should be untouched")
	}
}

func TestInvalidatedConstraintTextSurvives(t *testing.T) {
	w := testWorkspace(t, LabelStable)
	addTestPeak(t, w)
	addTestPeak(t, w)

	if err := w.SetConstraint("B", constraint.KindArea, "A*2"); err != nil {
		t.Fatalf("SetConstraint failed: %v", err)
	}
	if _, err := w.RemovePeak("A"); err != nil {
		t.Fatalf("RemovePeak failed: %v", err)
	}

	// The broken formula text stays visible for correction.
	text, err := w.ConstraintText("B", constraint.KindArea)
	if err != nil || text != "A * 2" {
		t.Errorf("constraint text = %q (%v), want A * 2", text, err)
	}
}

func TestRestoreConstraintWithMissingReference(t *testing.T) {
	w := testWorkspace(t, LabelStable)
	addTestPeak(t, w)

	if err := w.RestoreConstraint("A", constraint.KindArea, "Q*3", false); err != nil {
		t.Fatalf("RestoreConstraint failed: %v", err)
	}
	p, _ := w.Peak("A")
	if p.Constraint(constraint.KindArea).State != constraint.StateInvalid {
		t.Error("restored constraint with missing reference should be invalid")
	}
	if len(w.Invalidated()) != 1 {
		t.Errorf("Invalidated() = %v, want one entry", w.Invalidated())
	}
	text, err := w.ConstraintText("A", constraint.KindArea)
	if err != nil || text != "Q * 3" {
		t.Errorf("constraint text = %q (%v), want Q * 3", text, err)
	}
}

func TestRestoreConstraintRejectsMalformedText(t *testing.T) {
	w := testWorkspace(t, LabelStable)
	addTestPeak(t, w)

	if err := w.RestoreConstraint("A", constraint.KindArea, "*/", false); err == nil {
		t.Error("expected error for malformed stored text")
	}
}

func TestRestoreConstraintKeepsSavedInvalidState(t *testing.T) {
	w := testWorkspace(t, LabelStable)
	addTestPeak(t, w) // A
	addTestPeak(t, w) // B

	// B exists, but the flag records that the formula broke before the
	// save; it must not re-bind.
	if err := w.RestoreConstraint("A", constraint.KindArea, "B*2", true); err != nil {
		t.Fatalf("RestoreConstraint failed: %v", err)
	}
	p, _ := w.Peak("A")
	if p.Constraint(constraint.KindArea).State != constraint.StateInvalid {
		t.Error("constraint saved as invalid should restore as invalid")
	}
	if len(w.Invalidated()) != 1 {
		t.Errorf("Invalidated() = %v, want one entry", w.Invalidated())
	}
	text, err := w.ConstraintText("A", constraint.KindArea)
	if err != nil || text != "B * 2" {
		t.Errorf("constraint text = %q (%v), want B * 2", text, err)
	}
}

func TestConstraintTextRoundTrip(t *testing.T) {
	w := testWorkspace(t, LabelStable)
	addTestPeak(t, w)
	addTestPeak(t, w)

	for _, text := range []string{"3.5", "> 1 < 2", "A*2+1", "(A+1)/2"} {
		if err := w.SetConstraint("B", constraint.KindArea, text); err != nil {
			t.Fatalf("SetConstraint(%q) failed: %v", text, err)
		}
		got, err := w.ConstraintText("B", constraint.KindArea)
		if err != nil {
			t.Fatalf("ConstraintText failed: %v", err)
		}
		if err := w.SetConstraint("B", constraint.KindArea, got); err != nil {
			t.Errorf("serialized text %q does not re-parse: %v", got, err)
		}
		again, _ := w.ConstraintText("B", constraint.KindArea)
		if again != got {
			t.Errorf("round trip of %q: %q then %q", text, got, again)
		}
	}
}

func TestRegionManagement(t *testing.T) {
	w := testWorkspace(t, LabelStable)

	r, err := NewRegion(15, 5, spectrum.BackgroundShirley)
	if err != nil {
		t.Fatalf("NewRegion failed: %v", err)
	}
	if r.Lo != 5 || r.Hi != 15 {
		t.Errorf("endpoints not ordered: [%f, %f]", r.Lo, r.Hi)
	}
	w.AddRegion(r)
	if len(w.Regions()) != 1 {
		t.Fatalf("expected one region, got %d", len(w.Regions()))
	}
	if err := w.RemoveRegion(0); err != nil {
		t.Fatalf("RemoveRegion failed: %v", err)
	}
	if err := w.RemoveRegion(0); err == nil {
		t.Error("expected error removing a region that is gone")
	}

	if _, err := NewRegion(0, 1, spectrum.BackgroundType("tougaard")); err == nil {
		t.Error("expected error for unsupported background type")
	}
}

func TestGesturePeakCreation(t *testing.T) {
	w := testWorkspace(t, LabelStable)

	p, err := w.AddPeakFromGesture(model.ShapePseudoVoigt, 10, math.Pi/4, 2)
	if err != nil {
		t.Fatalf("AddPeakFromGesture failed: %v", err)
	}
	if p.Params.Position != 10 {
		t.Errorf("position = %f, want 10", p.Params.Position)
	}
	if math.Abs(p.Params.FWHM-2) > 1e-9 {
		t.Errorf("fwhm = %f, want tan(pi/4)*2 = 2", p.Params.FWHM)
	}
	if p.Params.Area <= 0 {
		t.Errorf("area = %f, want positive", p.Params.Area)
	}
}
