package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/xpsfit/internal/fit"
	"github.com/cwbudde/xpsfit/internal/opt"
	"github.com/cwbudde/xpsfit/internal/store"
)

// solverFor builds the solver named by the job config, applying the
// server defaults for unset budgets.
func solverFor(config JobConfig) (opt.Solver, error) {
	iters := config.MaxIterations
	if iters <= 0 {
		iters = 2000
	}
	switch config.Solver {
	case "", "neldermead":
		return opt.NewNelderMead(iters), nil
	case "mayfly":
		pop := config.PopulationSize
		if pop <= 0 {
			pop = 40
		}
		return opt.NewMayfly(iters, pop, config.Seed), nil
	}
	return nil, fmt.Errorf("unknown solver: %s", config.Solver)
}

// runJob executes a fit job in the background: load the project,
// rebuild its workspace, run the fit, and persist the outcome. The
// best estimate is saved back even when the fit fails or is
// cancelled, so a retry continues from where the solver got to.
func runJob(ctx context.Context, jm *JobManager, projectStore store.Store, dataDir, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}
	projectID := job.Config.ProjectID

	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	}); err != nil {
		return err
	}

	slog.Info("Starting fit job", "job_id", jobID, "project_id", projectID)

	project, err := projectStore.LoadProject(projectID)
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to load project: %w", err))
		return err
	}

	workspace, err := fit.FromProject(project)
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to rebuild workspace: %w", err))
		return err
	}

	solver, err := solverFor(job.Config)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	// The trace records the cost history; a new run starts fresh.
	trace, err := store.NewTraceWriter(dataDir, projectID, false)
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to open trace: %w", err))
		return err
	}
	defer trace.Close()

	start := time.Now()

	// Broadcast throttled progress while the fit runs.
	progressDone := make(chan struct{})
	go monitorProgress(ctx, jm, jobID, start, progressDone)

	stall := fit.NewStallTracker(fit.DefaultStallConfig())
	stallLogged := false

	progress := func(evaluations int, cost float64) {
		jm.UpdateJob(jobID, func(j *Job) {
			j.BestCost = cost
			j.Evaluations = evaluations
		})
		if stall.Update(cost) && !stallLogged {
			stallLogged = true
			slog.Warn("Fit progress has stalled", "job_id", jobID, "best_cost", stall.BestCost(), "evaluations", evaluations)
		}
		if err := trace.Write(store.TraceEntry{
			Evaluation: evaluations,
			Cost:       cost,
			Timestamp:  time.Now(),
		}); err != nil {
			slog.Warn("Failed to write trace entry", "job_id", jobID, "error", err)
		}
	}

	result, fitErr := workspace.FitObserved(ctx, solver, progress)
	close(progressDone)
	elapsed := time.Since(start)

	// Persist the workspace as the fit left it. On failure this is
	// the last best estimate.
	var failure *fit.FitFailure
	if errors.As(fitErr, &failure) {
		result = failure.Best
	}
	if result != nil {
		updated := fit.ToProject(workspace, project.ID, project.Name)
		updated.CreatedAt = project.CreatedAt
		updated.Result = fit.ResultToDoc(result)
		if err := projectStore.SaveProject(updated); err != nil {
			slog.Error("Failed to save fitted project", "job_id", jobID, "error", err)
		}
	}

	if fitErr != nil {
		if ctx.Err() != nil && errors.Is(fitErr, ctx.Err()) {
			markJobCancelled(jm, jobID)
			return fitErr
		}
		markJobFailed(jm, jobID, fitErr)
		return fitErr
	}

	endTime := time.Now()
	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.BestCost = result.Cost
		j.Evaluations = result.Evaluations
		j.Converged = result.Converged
		j.EndTime = &endTime
		j.cancel = nil
	}); err != nil {
		return err
	}

	eps := float64(result.Evaluations) / elapsed.Seconds()
	slog.Info("Fit job completed",
		"job_id", jobID,
		"project_id", projectID,
		"elapsed", elapsed,
		"best_cost", result.Cost,
		"evaluations", result.Evaluations,
		"evals_per_second", eps,
	)

	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:       jobID,
		State:       StateCompleted,
		Evaluations: result.Evaluations,
		BestCost:    result.Cost,
		EPS:         eps,
		Timestamp:   time.Now(),
	})

	return nil
}

// monitorProgress periodically broadcasts progress events during a fit
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, startTime time.Time, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond) // Throttle to 2 updates per second
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, exists := jm.GetJob(jobID)
			if !exists {
				return
			}

			elapsed := time.Since(startTime).Seconds()
			var eps float64
			if elapsed > 0 {
				eps = float64(job.Evaluations) / elapsed
			}

			jm.broadcaster.Broadcast(ProgressEvent{
				JobID:       jobID,
				State:       job.State,
				Evaluations: job.Evaluations,
				BestCost:    job.BestCost,
				EPS:         eps,
				Timestamp:   time.Now(),
			})
		}
	}
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
		j.cancel = nil
	})
	slog.Error("Fit job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
		j.cancel = nil
	})
	slog.Info("Fit job cancelled", "job_id", jobID)
}
