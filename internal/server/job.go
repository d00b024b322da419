package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobState represents the current state of a fit job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// JobConfig holds the configuration of one fit job
type JobConfig struct {
	// ProjectID names the stored project to fit
	ProjectID string `json:"projectId"`

	// Solver is "neldermead" (default) or "mayfly"
	Solver string `json:"solver,omitempty"`

	// MaxIterations bounds the solver's iteration budget
	MaxIterations int `json:"maxIterations,omitempty"`

	// PopulationSize is the mayfly swarm size; ignored by neldermead
	PopulationSize int `json:"populationSize,omitempty"`

	// Seed seeds the mayfly solver
	Seed int64 `json:"seed,omitempty"`
}

// Job represents a fit job over one project
type Job struct {
	ID          string     `json:"id"`
	State       JobState   `json:"state"`
	Config      JobConfig  `json:"config"`
	BestCost    float64    `json:"bestCost"`
	Evaluations int        `json:"evaluations"`
	Converged   bool       `json:"converged"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Error       string     `json:"error,omitempty"`

	// cancel stops the in-flight fit; nil once the job has ended
	cancel context.CancelFunc
}

// JobManager manages the lifecycle of fit jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob creates a new job with the given configuration. The
// cancel function stops the job's fit goroutine.
func (jm *JobManager) CreateJob(config JobConfig, cancel context.CancelFunc) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    config,
		StartTime: time.Now(),
		cancel:    cancel,
	}

	jm.jobs[job.ID] = job
	return job
}

// CreateJobForProject creates a job unless the project already has one
// pending or running, in which case that job is returned instead. The
// check and the insert share one lock acquisition so two concurrent
// requests cannot both start a fit on the same project.
func (jm *JobManager) CreateJobForProject(config JobConfig, cancel context.CancelFunc) (*Job, bool) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	for _, job := range jm.jobs {
		if job.Config.ProjectID != config.ProjectID {
			continue
		}
		if job.State == StatePending || job.State == StateRunning {
			return job, false
		}
	}

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    config,
		StartTime: time.Now(),
		cancel:    cancel,
	}
	jm.jobs[job.ID] = job
	return job, true
}

// GetJob retrieves a job by ID
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	return job, exists
}

// ListJobs returns all jobs
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// RunningJobForProject returns the pending or running job for a
// project, if any. Only one fit may run per project at a time.
func (jm *JobManager) RunningJobForProject(projectID string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	for _, job := range jm.jobs {
		if job.Config.ProjectID != projectID {
			continue
		}
		if job.State == StatePending || job.State == StateRunning {
			return job, true
		}
	}
	return nil, false
}

// CancelJob requests cooperative cancellation of a job. The job moves
// to the cancelled state once its worker observes the context.
func (jm *JobManager) CancelJob(id string) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}
	if job.State != StatePending && job.State != StateRunning {
		return fmt.Errorf("job %s is %s, cannot cancel", id, job.State)
	}
	if job.cancel != nil {
		job.cancel()
	}
	return nil
}
