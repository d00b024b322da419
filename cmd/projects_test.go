package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/xpsfit/internal/store"
)

func TestSelectProjectsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	infos := []store.ProjectInfo{
		{ID: "p1", UpdatedAt: now.AddDate(0, 0, -10)},
		{ID: "p2", UpdatedAt: now.AddDate(0, 0, -5)},
		{ID: "p3", UpdatedAt: now.AddDate(0, 0, -1)},
		{ID: "p4", UpdatedAt: now.AddDate(0, 0, -30)},
	}

	// Delete projects older than 7 days
	toDelete := selectProjectsForDeletion(infos, 0, 7)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 projects to delete, got %d", len(toDelete))
	}

	found := map[string]bool{}
	for _, info := range toDelete {
		found[info.ID] = true
	}
	if !found["p1"] || !found["p4"] {
		t.Errorf("Expected p1 and p4 selected, got %v", found)
	}
}

func TestSelectProjectsForDeletion_KeepLast(t *testing.T) {
	now := time.Now()
	infos := []store.ProjectInfo{
		{ID: "p1", UpdatedAt: now.AddDate(0, 0, -4)},
		{ID: "p2", UpdatedAt: now.AddDate(0, 0, -3)},
		{ID: "p3", UpdatedAt: now.AddDate(0, 0, -2)},
		{ID: "p4", UpdatedAt: now.AddDate(0, 0, -1)},
	}

	// Keep only the 2 most recently updated
	toDelete := selectProjectsForDeletion(infos, 2, 0)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 projects to delete, got %d", len(toDelete))
	}

	found := map[string]bool{}
	for _, info := range toDelete {
		found[info.ID] = true
	}
	if !found["p1"] || !found["p2"] {
		t.Errorf("Expected the two oldest (p1, p2) selected, got %v", found)
	}
}

func TestSelectProjectsForDeletion_Combined(t *testing.T) {
	now := time.Now()
	infos := []store.ProjectInfo{
		{ID: "p1", UpdatedAt: now.AddDate(0, 0, -20)},
		{ID: "p2", UpdatedAt: now.AddDate(0, 0, -2)},
		{ID: "p3", UpdatedAt: now.AddDate(0, 0, -1)},
	}

	// Both rules match p1; it must appear only once.
	toDelete := selectProjectsForDeletion(infos, 2, 7)

	if len(toDelete) != 1 {
		t.Fatalf("Expected 1 project to delete, got %d", len(toDelete))
	}
	if toDelete[0].ID != "p1" {
		t.Errorf("Expected p1 selected, got %s", toDelete[0].ID)
	}
}

func TestSelectProjectsForDeletion_NoCriteria(t *testing.T) {
	infos := []store.ProjectInfo{
		{ID: "p1", UpdatedAt: time.Now()},
	}

	toDelete := selectProjectsForDeletion(infos, 0, 0)
	if len(toDelete) != 0 {
		t.Errorf("Expected no projects selected, got %d", len(toDelete))
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.bytes); got != tt.want {
			t.Errorf("formatBytes(%d) = %s, want %s", tt.bytes, got, tt.want)
		}
	}
}

func TestGetDirSize(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "a.json"), make([]byte, 100), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "b.jsonl"), make([]byte, 50), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	size, err := getDirSize(dir)
	if err != nil {
		t.Fatalf("getDirSize failed: %v", err)
	}
	if size != 150 {
		t.Errorf("size = %d, want 150", size)
	}
}

func TestBuildSolver(t *testing.T) {
	defer func() { fitSolver, fitIters, fitPop, fitSeed = "", 0, 0, 0 }()

	fitSolver = "neldermead"
	fitIters = 100
	if _, err := buildSolver(); err != nil {
		t.Errorf("neldermead: unexpected error %v", err)
	}

	fitSolver = "mayfly"
	fitPop = 30
	fitSeed = 7
	if _, err := buildSolver(); err != nil {
		t.Errorf("mayfly: unexpected error %v", err)
	}

	fitSolver = "bogus"
	if _, err := buildSolver(); err == nil {
		t.Error("bogus solver: expected error")
	}
}
