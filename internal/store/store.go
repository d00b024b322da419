package store

// Store defines the interface for project persistence.
// Implementations must be thread-safe and handle concurrent access gracefully.
//
// Error handling conventions:
//   - Return nil error on success
//   - Return ErrNotFound if the project doesn't exist (for Load/Delete)
//   - Return descriptive errors for I/O, serialization, or validation failures
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveProject atomically saves a project document.
	// If a project already exists under this ID, it is overwritten.
	// The implementation should use atomic write strategies (e.g., temp
	// file + rename) so a crash never leaves a corrupt document behind.
	SaveProject(project *Project) error

	// LoadProject retrieves the project with the given ID.
	// Returns ErrNotFound if no such project exists.
	// Returns an error if the project exists but cannot be read or
	// deserialized.
	LoadProject(id string) (*Project, error)

	// ListProjects returns metadata for all stored projects.
	// The returned slice may be empty if no projects exist.
	ListProjects() ([]ProjectInfo, error)

	// DeleteProject removes the project and all associated artifacts:
	//   - project.json
	//   - trace.jsonl
	//
	// Returns ErrNotFound if no project exists under this ID.
	DeleteProject(id string) error
}

// ErrNotFound is returned when a requested project does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing project error.
type NotFoundError struct {
	ProjectID string
}

func (e *NotFoundError) Error() string {
	if e.ProjectID != "" {
		return "project not found: " + e.ProjectID
	}
	return "project not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
