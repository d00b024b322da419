package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FSStore implements the Store interface using filesystem-based
// persistence. Projects are stored in a directory structure:
// <baseDir>/projects/<id>/
//
// Thread-safety: This implementation uses atomic file operations
// (rename) and does not require locks. Multiple goroutines can safely
// call methods concurrently.
type FSStore struct {
	baseDir string // Root directory for all project data (e.g., "./data")
}

// NewFSStore creates a new filesystem-based store.
// The baseDir will be created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

// projectDir returns the directory path for a given project ID.
func (fs *FSStore) projectDir(id string) string {
	return filepath.Join(fs.baseDir, "projects", id)
}

// projectPath returns the path to the project.json file.
func (fs *FSStore) projectPath(id string) string {
	return filepath.Join(fs.projectDir(id), "project.json")
}

// SaveProject atomically saves a project document.
// Uses temp file + rename pattern to ensure atomicity.
func (fs *FSStore) SaveProject(project *Project) error {
	if project == nil {
		return fmt.Errorf("project cannot be nil")
	}
	if err := project.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid project: %w", err)
	}

	dir := fs.projectDir(project.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}

	data, err := json.MarshalIndent(project, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize project: %w", err)
	}

	// Write to temporary file first (atomic pattern)
	tempPath := fs.projectPath(project.ID) + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp project file: %w", err)
	}

	finalPath := fs.projectPath(project.ID)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename project file: %w", err)
	}

	slog.Debug("Project saved", "id", project.ID, "path", finalPath)
	return nil
}

// LoadProject retrieves the project with the given ID.
func (fs *FSStore) LoadProject(id string) (*Project, error) {
	if id == "" {
		return nil, fmt.Errorf("project ID cannot be empty")
	}

	path := fs.projectPath(id)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &NotFoundError{ProjectID: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat project file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}

	var project Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("failed to deserialize project: %w", err)
	}
	if err := project.Validate(); err != nil {
		return nil, fmt.Errorf("stored project is invalid: %w", err)
	}

	slog.Debug("Project loaded", "id", id, "path", path)
	return &project, nil
}

// ListProjects returns metadata for all stored projects.
func (fs *FSStore) ListProjects() ([]ProjectInfo, error) {
	projectsDir := filepath.Join(fs.baseDir, "projects")

	if _, err := os.Stat(projectsDir); os.IsNotExist(err) {
		// No projects exist yet, return empty slice
		return []ProjectInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat projects directory: %w", err)
	}

	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read projects directory: %w", err)
	}

	var infos []ProjectInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		if _, err := os.Stat(fs.projectPath(id)); os.IsNotExist(err) {
			continue // Skip directories without project.json
		}

		project, err := fs.LoadProject(id)
		if err != nil {
			slog.Warn("Failed to load project for listing", "id", id, "error", err)
			continue // Skip corrupted projects
		}
		infos = append(infos, project.ToInfo())
	}

	slog.Debug("Listed projects", "count", len(infos))
	return infos, nil
}

// DeleteProject removes the project and all associated artifacts.
func (fs *FSStore) DeleteProject(id string) error {
	if id == "" {
		return fmt.Errorf("project ID cannot be empty")
	}

	dir := fs.projectDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{ProjectID: id}
	} else if err != nil {
		return fmt.Errorf("failed to stat project directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove project directory: %w", err)
	}

	slog.Debug("Project deleted", "id", id, "path", dir)
	return nil
}
