package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/xpsfit/internal/fit"
	"github.com/cwbudde/xpsfit/internal/opt"
	"github.com/cwbudde/xpsfit/internal/store"
	"github.com/spf13/cobra"
)

var (
	fitDataDir string
	fitSolver  string
	fitIters   int
	fitPop     int
	fitSeed    int64
)

var fitCmd = &cobra.Command{
	Use:     "fit [project-id]",
	Aliases: []string{"refit"},
	Short:   "Run a fit on a stored project",
	Long: `Loads a project, restores its peaks and constraints, runs the solver
and writes the fitted parameter values back to the project. A fit that
fails to converge still records its best estimate, so constraints can
be adjusted and the fit rerun.`,
	Args: cobra.ExactArgs(1),
	RunE: runFit,
}

func init() {
	fitCmd.Flags().StringVar(&fitDataDir, "data-dir", "", "Base directory for project storage (default from config)")
	fitCmd.Flags().StringVar(&fitSolver, "solver", "", "Solver: neldermead or mayfly (default from config)")
	fitCmd.Flags().IntVar(&fitIters, "iters", 0, "Max iterations (default from config)")
	fitCmd.Flags().IntVar(&fitPop, "pop", 0, "Mayfly population size (default from config)")
	fitCmd.Flags().Int64Var(&fitSeed, "seed", 0, "Mayfly random seed (default from config)")
	rootCmd.AddCommand(fitCmd)
}

func buildSolver() (opt.Solver, error) {
	name := fitSolver
	if name == "" {
		name = cfg.Solver
	}
	iters := fitIters
	if iters <= 0 {
		iters = cfg.MaxIterations
	}
	pop := fitPop
	if pop <= 0 {
		pop = cfg.PopulationSize
	}
	seed := fitSeed
	if seed == 0 {
		seed = cfg.Seed
	}

	switch name {
	case "neldermead":
		return opt.NewNelderMead(iters), nil
	case "mayfly":
		return opt.NewMayfly(iters, pop, seed), nil
	default:
		return nil, fmt.Errorf("unknown solver: %s", name)
	}
}

func runFit(cmd *cobra.Command, args []string) error {
	projectID := args[0]

	dataDir := fitDataDir
	if dataDir == "" {
		dataDir = cfg.DataDir
	}

	projectStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open project store: %w", err)
	}

	project, err := projectStore.LoadProject(projectID)
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}

	workspace, err := fit.FromProject(project)
	if err != nil {
		return fmt.Errorf("failed to restore project: %w", err)
	}

	solver, err := buildSolver()
	if err != nil {
		return err
	}

	// Ctrl-C cancels the solver; the best estimate so far is still
	// written back.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trace, err := store.NewTraceWriter(dataDir, projectID, false)
	if err != nil {
		return fmt.Errorf("failed to open trace: %w", err)
	}
	defer trace.Close()

	progress := func(evaluations int, bestCost float64) {
		trace.Write(store.TraceEntry{
			Evaluation: evaluations,
			Cost:       bestCost,
			Timestamp:  time.Now(),
		})
	}

	slog.Info("Starting fit", "project", projectID, "peaks", len(workspace.Peaks()))
	start := time.Now()

	result, fitErr := workspace.FitObserved(ctx, solver, progress)
	elapsed := time.Since(start)

	var failure *fit.FitFailure
	if fitErr != nil {
		if !errors.As(fitErr, &failure) {
			return fitErr
		}
		result = failure.Best
	}

	// Persist the fitted values whether or not the solver converged.
	updated := fit.ToProject(workspace, project.ID, project.Name)
	updated.CreatedAt = project.CreatedAt
	updated.Result = fit.ResultToDoc(result)
	if err := projectStore.SaveProject(updated); err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}

	if failure != nil {
		printPeaks(workspace)
		return fmt.Errorf("fit did not succeed: %w", failure)
	}

	slog.Info("Fit complete",
		"elapsed", elapsed,
		"cost", result.Cost,
		"evaluations", result.Evaluations,
		"converged", result.Converged,
	)

	fmt.Printf("Fitted %d peak(s) in %s (cost %.6g, %d evaluations)\n\n",
		len(result.Peaks), elapsed.Round(time.Millisecond), result.Cost, result.Evaluations)
	printPeaks(workspace)
	return nil
}

func printPeaks(workspace *fit.Workspace) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PEAK\tSHAPE\tPOSITION\tAREA\tFWHM\tFRACTION")
	for _, p := range workspace.Peaks() {
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%.4f\t%.4f\t%.4f\n",
			p.Label, p.Shape, p.Params.Position, p.Params.Area, p.Params.FWHM, p.Params.Fraction)
	}
	w.Flush()
}
