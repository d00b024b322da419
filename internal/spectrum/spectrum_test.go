package spectrum

import (
	"math"
	"testing"
)

func TestNewSortsEnergy(t *testing.T) {
	s, err := New("test", []float64{3, 1, 2}, []float64{30, 10, 20})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	wantE := []float64{1, 2, 3}
	wantI := []float64{10, 20, 30}
	for i := range wantE {
		if s.Energy[i] != wantE[i] {
			t.Errorf("Energy[%d] = %f, want %f", i, s.Energy[i], wantE[i])
		}
		if s.Intensity[i] != wantI[i] {
			t.Errorf("Intensity[%d] = %f, want %f", i, s.Intensity[i], wantI[i])
		}
	}
}

func TestNewRejectsMismatchedLengths(t *testing.T) {
	if _, err := New("bad", []float64{1, 2}, []float64{1}); err == nil {
		t.Error("Expected error for mismatched array lengths")
	}
	if _, err := New("short", []float64{1}, []float64{1}); err == nil {
		t.Error("Expected error for single-sample spectrum")
	}
}

func TestIsEquidistant(t *testing.T) {
	if !IsEquidistant([]float64{1, 2, 3, 4}) {
		t.Error("Even axis reported as uneven")
	}
	if IsEquidistant([]float64{1, 2, 4}) {
		t.Error("Uneven axis reported as even")
	}
	if !IsEquidistant([]float64{1, 2}) {
		t.Error("Two samples are trivially equidistant")
	}
}

func TestMakeEquidistantResamples(t *testing.T) {
	// y = 2x sampled unevenly; resampling must preserve the line.
	energy := []float64{0, 1, 3, 4}
	intensity := []float64{0, 2, 6, 8}

	outE, outI := MakeEquidistant(energy, intensity)

	if !IsEquidistant(outE) {
		t.Fatal("Resampled axis is not equidistant")
	}
	if outE[0] != 0 || outE[len(outE)-1] != 4 {
		t.Errorf("Resampled axis range [%f, %f], want [0, 4]", outE[0], outE[len(outE)-1])
	}
	for i, x := range outE {
		if math.Abs(outI[i]-2*x) > 1e-9 {
			t.Errorf("Resampled intensity at %f = %f, want %f", x, outI[i], 2*x)
		}
	}
}

func TestIntensityAtInterpolates(t *testing.T) {
	s, err := New("test", []float64{0, 1, 2}, []float64{0, 10, 20})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if got := s.IntensityAt(0.5); math.Abs(got-5) > 1e-12 {
		t.Errorf("IntensityAt(0.5) = %f, want 5", got)
	}
	// Clamped outside the range.
	if got := s.IntensityAt(-1); got != 0 {
		t.Errorf("IntensityAt(-1) = %f, want 0", got)
	}
	if got := s.IntensityAt(5); got != 20 {
		t.Errorf("IntensityAt(5) = %f, want 20", got)
	}
}

func TestLinearBackground(t *testing.T) {
	intensity := []float64{4, 9, 1, 8}
	dst := make([]float64, 4)
	linearBackground(intensity, dst)

	want := []float64{4, 4 + 4.0/3, 4 + 8.0/3, 8}
	for i := range want {
		if math.Abs(dst[i]-want[i]) > 1e-12 {
			t.Errorf("linear background[%d] = %f, want %f", i, dst[i], want[i])
		}
	}
}

func TestShirleyEndpoints(t *testing.T) {
	// Step-like spectrum: high plateau, edge, low plateau.
	n := 101
	energy := make([]float64, n)
	intensity := make([]float64, n)
	for i := range energy {
		energy[i] = float64(i) * 0.1
		switch {
		case i < 40:
			intensity[i] = 100
		case i < 60:
			intensity[i] = 100 + float64(60-i)*45 // falling edge
		default:
			intensity[i] = 1000
		}
	}

	bg, err := Shirley(energy, intensity)
	if err != nil {
		t.Fatalf("Shirley failed: %v", err)
	}

	// The Shirley background matches the measured intensity at both
	// interval ends.
	if math.Abs(bg[0]-intensity[0]) > 1e-6 {
		t.Errorf("Background start %f, want %f", bg[0], intensity[0])
	}
	if math.Abs(bg[n-1]-intensity[n-1]) > 1e-6 {
		t.Errorf("Background end %f, want %f", bg[n-1], intensity[n-1])
	}

	// The background stays within the measured intensity range.
	for i, v := range bg {
		if v < 99 || v > 1001 {
			t.Fatalf("Background %f at index %d outside intensity range", v, i)
		}
	}
}

func TestShirleyRejectsUnevenAxis(t *testing.T) {
	if _, err := Shirley([]float64{0, 1, 3}, []float64{1, 2, 3}); err == nil {
		t.Error("Expected error for uneven energy axis")
	}
}

func TestCalculateBackgroundInterval(t *testing.T) {
	s, err := New("test", []float64{0, 1, 2, 3, 4}, []float64{5, 6, 7, 8, 9})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	dst := make([]float64, s.Len())
	if err := CalculateBackground(BackgroundLinear, 1, 3, s, dst); err != nil {
		t.Fatalf("CalculateBackground failed: %v", err)
	}

	// Samples outside [1, 3) stay zero; the upper bound is exclusive.
	if dst[0] != 0 {
		t.Errorf("Sample outside region modified: dst[0] = %f", dst[0])
	}
	if dst[1] == 0 || dst[2] == 0 {
		t.Error("Samples inside region not written")
	}
}

func TestCalculateBackgroundUnknownType(t *testing.T) {
	s, _ := New("test", []float64{0, 1, 2}, []float64{1, 2, 3})
	dst := make([]float64, s.Len())
	if err := CalculateBackground(BackgroundType("tougaard"), 0, 2, s, dst); err == nil {
		t.Error("Expected error for unsupported background type")
	}
}
