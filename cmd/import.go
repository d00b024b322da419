package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cwbudde/xpsfit/internal/spectrum"
	"github.com/cwbudde/xpsfit/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var importDataDir string

var importCmd = &cobra.Command{
	Use:   "import [file...]",
	Short: "Import spectrum files as new projects",
	Long: `Reads spectrum files (two-column xy or Omicron EIS text export) and
creates one project per spectrum found. EIS files may carry several
spectra; each becomes its own project.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importDataDir, "data-dir", "", "Base directory for project storage (default from config)")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	dataDir := importDataDir
	if dataDir == "" {
		dataDir = cfg.DataDir
	}

	projectStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open project store: %w", err)
	}

	imported := 0
	for _, fname := range args {
		spectra, err := spectrum.ParseFile(fname)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", fname, err)
		}

		for _, s := range spectra {
			name := s.Name
			if name == "" {
				name = filepath.Base(fname)
			}

			now := time.Now()
			project := &store.Project{
				ID:          uuid.New().String(),
				Name:        name,
				LabelPolicy: cfg.LabelPolicy,
				CreatedAt:   now,
				UpdatedAt:   now,
				Spectrum: store.SpectrumDoc{
					Name:       s.Name,
					Filename:   fname,
					Notes:      s.Notes,
					Energy:     s.Energy,
					Intensity:  s.Intensity,
					Sweeps:     s.Sweeps,
					DwellTime:  s.DwellTime,
					PassEnergy: s.PassEnergy,
				},
			}

			if err := projectStore.SaveProject(project); err != nil {
				return fmt.Errorf("failed to save project for %s: %w", fname, err)
			}

			slog.Info("Imported spectrum", "file", fname, "name", name, "samples", len(s.Energy), "project", project.ID)
			fmt.Printf("Imported %s (%d samples) as project %s\n", name, len(s.Energy), project.ID)
			imported++
		}
	}

	fmt.Printf("\n%d project(s) created.\n", imported)
	return nil
}
