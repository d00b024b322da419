package server

import (
	"sync"
	"testing"
	"time"
)

func TestCreateJobAssignsUniqueIDs(t *testing.T) {
	jm := NewJobManager()

	a := jm.CreateJob(JobConfig{ProjectID: "p1"}, nil)
	b := jm.CreateJob(JobConfig{ProjectID: "p1"}, nil)

	if a.ID == "" || b.ID == "" {
		t.Fatal("Job IDs should not be empty")
	}
	if a.ID == b.ID {
		t.Error("Job IDs should be unique")
	}
	if a.State != StatePending {
		t.Errorf("New job state = %s, want pending", a.State)
	}
	if a.StartTime.IsZero() {
		t.Error("StartTime should be set")
	}
}

func TestGetJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{ProjectID: "p1"}, nil)

	got, exists := jm.GetJob(job.ID)
	if !exists {
		t.Fatal("Expected job to exist")
	}
	if got.ID != job.ID {
		t.Errorf("GetJob returned %s, want %s", got.ID, job.ID)
	}

	if _, exists := jm.GetJob("missing"); exists {
		t.Error("Expected missing job to not exist")
	}
}

func TestUpdateJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{ProjectID: "p1"}, nil)

	err := jm.UpdateJob(job.ID, func(j *Job) {
		j.State = StateRunning
		j.BestCost = 12.5
		j.Evaluations = 100
	})
	if err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateRunning || updated.BestCost != 12.5 || updated.Evaluations != 100 {
		t.Errorf("update not applied: %+v", updated)
	}

	if err := jm.UpdateJob("missing", func(j *Job) {}); err == nil {
		t.Error("Expected error updating missing job")
	}
}

func TestListJobs(t *testing.T) {
	jm := NewJobManager()
	if len(jm.ListJobs()) != 0 {
		t.Error("Expected no jobs initially")
	}

	jm.CreateJob(JobConfig{ProjectID: "p1"}, nil)
	jm.CreateJob(JobConfig{ProjectID: "p2"}, nil)

	if got := len(jm.ListJobs()); got != 2 {
		t.Errorf("ListJobs returned %d jobs, want 2", got)
	}
}

func TestRunningJobForProject(t *testing.T) {
	jm := NewJobManager()

	if _, ok := jm.RunningJobForProject("p1"); ok {
		t.Error("Expected no running job initially")
	}

	job := jm.CreateJob(JobConfig{ProjectID: "p1"}, nil)

	// Pending jobs count as in flight.
	running, ok := jm.RunningJobForProject("p1")
	if !ok || running.ID != job.ID {
		t.Errorf("RunningJobForProject = %v %v, want the pending job", running, ok)
	}
	if _, ok := jm.RunningJobForProject("p2"); ok {
		t.Error("Other projects should have no running job")
	}

	endTime := time.Now()
	jm.UpdateJob(job.ID, func(j *Job) {
		j.State = StateCompleted
		j.EndTime = &endTime
	})
	if _, ok := jm.RunningJobForProject("p1"); ok {
		t.Error("Completed job should not count as running")
	}
}

func TestCancelJob(t *testing.T) {
	jm := NewJobManager()

	cancelled := false
	job := jm.CreateJob(JobConfig{ProjectID: "p1"}, func() { cancelled = true })

	if err := jm.CancelJob(job.ID); err != nil {
		t.Fatalf("CancelJob failed: %v", err)
	}
	if !cancelled {
		t.Error("Cancel function was not invoked")
	}
}

func TestCancelJobErrors(t *testing.T) {
	jm := NewJobManager()

	if err := jm.CancelJob("missing"); err == nil {
		t.Error("Expected error cancelling missing job")
	}

	job := jm.CreateJob(JobConfig{ProjectID: "p1"}, nil)
	jm.UpdateJob(job.ID, func(j *Job) { j.State = StateCompleted })

	if err := jm.CancelJob(job.ID); err == nil {
		t.Error("Expected error cancelling completed job")
	}
}

func TestCreateJobForProject(t *testing.T) {
	jm := NewJobManager()

	first, created := jm.CreateJobForProject(JobConfig{ProjectID: "p1"}, nil)
	if !created {
		t.Fatal("First job for a project should be created")
	}

	second, created := jm.CreateJobForProject(JobConfig{ProjectID: "p1"}, nil)
	if created {
		t.Error("Second job for a busy project should be refused")
	}
	if second.ID != first.ID {
		t.Errorf("Refusal should name the in-flight job %s, got %s", first.ID, second.ID)
	}

	// Other projects are unaffected.
	if _, created := jm.CreateJobForProject(JobConfig{ProjectID: "p2"}, nil); !created {
		t.Error("Job for a different project should be created")
	}

	// A finished job no longer blocks its project.
	jm.UpdateJob(first.ID, func(j *Job) { j.State = StateCompleted })
	if _, created := jm.CreateJobForProject(JobConfig{ProjectID: "p1"}, nil); !created {
		t.Error("Job after the previous one finished should be created")
	}
}

func TestCreateJobForProjectConcurrent(t *testing.T) {
	jm := NewJobManager()

	const n = 16
	results := make(chan bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created := jm.CreateJobForProject(JobConfig{ProjectID: "p1"}, nil)
			results <- created
		}()
	}
	wg.Wait()
	close(results)

	createdCount := 0
	for created := range results {
		if created {
			createdCount++
		}
	}
	if createdCount != 1 {
		t.Errorf("Expected exactly one job created, got %d", createdCount)
	}
}
