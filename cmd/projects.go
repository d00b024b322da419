package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/xpsfit/internal/store"
	"github.com/spf13/cobra"
)

var (
	projectsDataDir string
	keepLast        int
	olderThanDays   int
	forceClean      bool
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage stored fit projects",
	Long: `Manage stored projects including listing, inspecting and cleaning
old projects.`,
}

var listProjectsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all projects",
	Long:  `Display all projects with spectrum name, peak count, fit state and file sizes.`,
	RunE:  runListProjects,
}

var showProjectCmd = &cobra.Command{
	Use:   "show [project-id]",
	Short: "Show a project's peaks and constraints",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowProject,
}

var deleteProjectCmd = &cobra.Command{
	Use:   "delete [project-id]",
	Short: "Delete a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteProject,
}

var cleanProjectsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean old projects",
	Long: `Delete old projects based on retention policy.
You can specify how many projects to keep or delete projects older than N days.`,
	RunE: runCleanProjects,
}

func init() {
	rootCmd.AddCommand(projectsCmd)

	projectsCmd.AddCommand(listProjectsCmd)
	projectsCmd.AddCommand(showProjectCmd)
	projectsCmd.AddCommand(deleteProjectCmd)
	projectsCmd.AddCommand(cleanProjectsCmd)

	projectsCmd.PersistentFlags().StringVar(&projectsDataDir, "data-dir", "", "Base directory for project storage (default from config)")

	cleanProjectsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the N most recently updated projects (0 = keep all)")
	cleanProjectsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete projects not updated for N days (0 = no age limit)")
	cleanProjectsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func openProjectStore() (*store.FSStore, string, error) {
	dataDir := projectsDataDir
	if dataDir == "" {
		dataDir = cfg.DataDir
	}
	s, err := store.NewFSStore(dataDir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open project store: %w", err)
	}
	return s, dataDir, nil
}

func runListProjects(cmd *cobra.Command, args []string) error {
	projectStore, dataDir, err := openProjectStore()
	if err != nil {
		return err
	}

	infos, err := projectStore.ListProjects()
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No projects found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROJECT ID\tNAME\tSAMPLES\tPEAKS\tFITTED\tUPDATED\tSIZE")
	fmt.Fprintln(w, "----------\t----\t-------\t-----\t------\t-------\t----")

	for _, info := range infos {
		projectDir := filepath.Join(dataDir, "projects", info.ID)
		size, err := getDirSize(projectDir)
		sizeStr := "unknown"
		if err == nil {
			sizeStr = formatBytes(size)
		}

		fitted := "no"
		if info.Fitted {
			fitted = "yes"
		}

		displayID := info.ID
		if len(displayID) > 12 {
			displayID = displayID[:12] + "..."
		}

		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			displayID,
			info.Name,
			info.Samples,
			info.PeakCount,
			fitted,
			info.UpdatedAt.Format("2006-01-02 15:04:05"),
			sizeStr,
		)
	}

	w.Flush()

	fmt.Printf("\nTotal projects: %d\n", len(infos))
	return nil
}

func runShowProject(cmd *cobra.Command, args []string) error {
	projectStore, _, err := openProjectStore()
	if err != nil {
		return err
	}

	project, err := projectStore.LoadProject(args[0])
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}

	fmt.Printf("Project: %s (%s)\n", project.Name, project.ID)
	fmt.Printf("Spectrum: %s, %d samples\n", project.Spectrum.Name, len(project.Spectrum.Energy))
	if project.Result != nil {
		fmt.Printf("Last fit: cost %.6g, %d evaluations, converged=%v (%s)\n",
			project.Result.Cost, project.Result.Evaluations, project.Result.Converged,
			project.Result.FittedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Println()

	if len(project.Peaks) == 0 {
		fmt.Println("No peaks.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PEAK\tSHAPE\tPOSITION\tAREA\tFWHM\tFRACTION")
	for _, p := range project.Peaks {
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%.4f\t%.4f\t%.4f\n",
			p.Label, p.Shape, p.Position, p.Area, p.FWHM, p.Fraction)
	}
	w.Flush()

	constrained := false
	for _, p := range project.Peaks {
		for kind, c := range p.Constraints {
			if !constrained {
				fmt.Println("\nConstraints:")
				constrained = true
			}
			marker := ""
			if c.Invalid {
				marker = "  (invalid)"
			}
			fmt.Printf("  %s.%s = %s%s\n", p.Label, kind, c.Text, marker)
		}
	}

	return nil
}

func runDeleteProject(cmd *cobra.Command, args []string) error {
	projectStore, _, err := openProjectStore()
	if err != nil {
		return err
	}

	if err := projectStore.DeleteProject(args[0]); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	fmt.Printf("Deleted project %s\n", args[0])
	return nil
}

func runCleanProjects(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	projectStore, _, err := openProjectStore()
	if err != nil {
		return err
	}

	infos, err := projectStore.ListProjects()
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No projects to clean.")
		return nil
	}

	toDelete := selectProjectsForDeletion(infos, keepLast, olderThanDays)

	if len(toDelete) == 0 {
		fmt.Println("No projects match deletion criteria.")
		return nil
	}

	fmt.Printf("Found %d project(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Printf("  - %s (%s, updated %s)\n",
			info.ID,
			info.Name,
			info.UpdatedAt.Format("2006-01-02 15:04:05"),
		)
	}

	if !forceClean {
		fmt.Print("\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	deleted := 0
	failed := 0
	for _, info := range toDelete {
		if err := projectStore.DeleteProject(info.ID); err != nil {
			slog.Error("Failed to delete project", "project_id", info.ID, "error", err)
			failed++
		} else {
			slog.Info("Deleted project", "project_id", info.ID)
			deleted++
		}
	}

	fmt.Printf("\nDeleted %d project(s), %d failed.\n", deleted, failed)
	return nil
}

// selectProjectsForDeletion applies the retention policy: projects not
// updated within olderThanDays, plus the oldest beyond keepLast. A
// project is listed once even when both rules match it.
func selectProjectsForDeletion(infos []store.ProjectInfo, keepLast int, olderThanDays int) []store.ProjectInfo {
	var toDelete []store.ProjectInfo

	if olderThanDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.UpdatedAt.Before(cutoff) {
				toDelete = append(toDelete, info)
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := make([]store.ProjectInfo, len(infos))
		copy(sorted, infos)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].UpdatedAt.Before(sorted[j].UpdatedAt)
		})

		numToDelete := len(sorted) - keepLast
		for i := 0; i < numToDelete; i++ {
			found := false
			for _, existing := range toDelete {
				if existing.ID == sorted[i].ID {
					found = true
					break
				}
			}
			if !found {
				toDelete = append(toDelete, sorted[i])
			}
		}
	}

	return toDelete
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(1024), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
