package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// setupTestStore creates a temporary directory and returns an FSStore for testing.
func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()

	tempDir := t.TempDir() // Automatically cleaned up after test
	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}

	return store, tempDir
}

// createTestProject creates a project document with test data.
func createTestProject(id string) *Project {
	return &Project{
		ID:          id,
		Name:        "Survey scan",
		LabelPolicy: "stable",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Spectrum: SpectrumDoc{
			Name:      "Fe 2p",
			Filename:  "fe2p.txt",
			Energy:    []float64{700, 701, 702, 703},
			Intensity: []float64{120, 450, 380, 110},
			Sweeps:    10,
		},
		Peaks: []PeakDoc{
			{
				Label:    "A",
				Shape:    "PseudoVoigt",
				Position: 701.2,
				Area:     350,
				FWHM:     1.4,
				Fraction: 0.5,
				Constraints: map[string]ConstraintDoc{
					"position": {Text: "> 700 < 702"},
				},
			},
			{
				Label:    "B",
				Shape:    "PseudoVoigt",
				Position: 702.1,
				Area:     700,
				FWHM:     1.4,
				Constraints: map[string]ConstraintDoc{
					"area": {Text: "A*2"},
				},
			},
		},
		Regions: []RegionDoc{
			{Lo: 700, Hi: 703, Type: "shirley"},
		},
	}
}

func TestNewFSStore(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	if store == nil {
		t.Fatal("Expected non-nil store")
	}

	// Verify base directory was created
	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		t.Fatal("Base directory was not created")
	}
}

func TestSaveProject(t *testing.T) {
	store, tempDir := setupTestStore(t)

	project := createTestProject("test-project-123")
	if err := store.SaveProject(project); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}

	// Verify project file exists
	expectedPath := filepath.Join(tempDir, "projects", project.ID, "project.json")
	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Fatalf("Project file was not created at %s", expectedPath)
	}

	// Verify no temp file left behind
	if _, err := os.Stat(expectedPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temp file was not cleaned up after save")
	}
}

func TestSaveProjectRejectsNil(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.SaveProject(nil); err == nil {
		t.Error("Expected error saving nil project")
	}
}

func TestSaveProjectRejectsInvalid(t *testing.T) {
	store, _ := setupTestStore(t)

	project := createTestProject("bad")
	project.Spectrum.Intensity = project.Spectrum.Intensity[:2]

	if err := store.SaveProject(project); err == nil {
		t.Error("Expected error saving project with mismatched arrays")
	}
}

func TestLoadProject(t *testing.T) {
	store, _ := setupTestStore(t)

	original := createTestProject("test-project-123")
	if err := store.SaveProject(original); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}

	loaded, err := store.LoadProject(original.ID)
	if err != nil {
		t.Fatalf("LoadProject failed: %v", err)
	}

	if loaded.ID != original.ID {
		t.Errorf("ID = %q, want %q", loaded.ID, original.ID)
	}
	if loaded.LabelPolicy != "stable" {
		t.Errorf("LabelPolicy = %q, want stable", loaded.LabelPolicy)
	}
	if len(loaded.Spectrum.Energy) != 4 {
		t.Errorf("Energy samples = %d, want 4", len(loaded.Spectrum.Energy))
	}
	if len(loaded.Peaks) != 2 {
		t.Fatalf("Peaks = %d, want 2", len(loaded.Peaks))
	}
	if got := loaded.Peaks[1].Constraints["area"].Text; got != "A*2" {
		t.Errorf("B area constraint = %q, want A*2", got)
	}
	if len(loaded.Regions) != 1 || loaded.Regions[0].Type != "shirley" {
		t.Errorf("Regions = %+v, want one shirley region", loaded.Regions)
	}
}

func TestLoadProjectNotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.LoadProject("does-not-exist")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLoadProjectCorruptFile(t *testing.T) {
	store, tempDir := setupTestStore(t)

	dir := filepath.Join(tempDir, "projects", "corrupt")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "project.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := store.LoadProject("corrupt")
	if err == nil {
		t.Error("Expected error loading corrupt project")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("Corrupt file should not be reported as not found")
	}
}

func TestSaveOverwritesExisting(t *testing.T) {
	store, _ := setupTestStore(t)

	project := createTestProject("test-project-123")
	if err := store.SaveProject(project); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}

	project.Name = "Renamed"
	project.Result = &ResultDoc{Converged: true, Cost: 12.5, Evaluations: 800, FittedAt: time.Now()}
	if err := store.SaveProject(project); err != nil {
		t.Fatalf("Second SaveProject failed: %v", err)
	}

	loaded, err := store.LoadProject(project.ID)
	if err != nil {
		t.Fatalf("LoadProject failed: %v", err)
	}
	if loaded.Name != "Renamed" {
		t.Errorf("Name = %q, want Renamed", loaded.Name)
	}
	if loaded.Result == nil || !loaded.Result.Converged {
		t.Error("Fit result was not persisted")
	}
}

func TestInvalidConstraintSurvivesRoundTrip(t *testing.T) {
	store, _ := setupTestStore(t)

	project := createTestProject("test-project-123")
	project.Peaks[1].Constraints["area"] = ConstraintDoc{Text: "Q*2", Invalid: true}
	if err := store.SaveProject(project); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}

	loaded, err := store.LoadProject(project.ID)
	if err != nil {
		t.Fatalf("LoadProject failed: %v", err)
	}
	doc := loaded.Peaks[1].Constraints["area"]
	if doc.Text != "Q*2" || !doc.Invalid {
		t.Errorf("constraint doc = %+v, want invalid Q*2", doc)
	}
}

func TestListProjects(t *testing.T) {
	store, _ := setupTestStore(t)

	// Empty store lists no projects
	infos, err := store.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("Expected empty list, got %d entries", len(infos))
	}

	for _, id := range []string{"one", "two", "three"} {
		if err := store.SaveProject(createTestProject(id)); err != nil {
			t.Fatalf("SaveProject(%s) failed: %v", id, err)
		}
	}

	infos, err = store.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("Expected 3 projects, got %d", len(infos))
	}
	for _, info := range infos {
		if info.PeakCount != 2 || info.RegionCount != 1 {
			t.Errorf("info %s: peaks=%d regions=%d, want 2 and 1", info.ID, info.PeakCount, info.RegionCount)
		}
		if info.Fitted {
			t.Errorf("info %s: unfitted project reported as fitted", info.ID)
		}
	}
}

func TestListProjectsSkipsCorrupted(t *testing.T) {
	store, tempDir := setupTestStore(t)

	if err := store.SaveProject(createTestProject("good")); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}
	dir := filepath.Join(tempDir, "projects", "bad")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "project.json"), []byte("garbage"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	infos, err := store.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != "good" {
		t.Errorf("Expected only the good project, got %+v", infos)
	}
}

func TestDeleteProject(t *testing.T) {
	store, tempDir := setupTestStore(t)

	project := createTestProject("test-project-123")
	if err := store.SaveProject(project); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}

	if err := store.DeleteProject(project.ID); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tempDir, "projects", project.ID)); !os.IsNotExist(err) {
		t.Error("Project directory still exists after delete")
	}
	if _, err := store.LoadProject(project.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteProjectNotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	err := store.DeleteProject("does-not-exist")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentSaves(t *testing.T) {
	store, _ := setupTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			project := createTestProject("shared")
			if err := store.SaveProject(project); err != nil {
				t.Errorf("concurrent SaveProject failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if _, err := store.LoadProject("shared"); err != nil {
		t.Errorf("LoadProject after concurrent saves failed: %v", err)
	}
}
