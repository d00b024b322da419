package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var serverURL string

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or a specific fit job",
	Long: `Queries the fit server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listServerJobs(fmt.Sprintf("%s/api/v1/jobs", serverURL))
	}
	jobID := args[0]
	return getServerJobStatus(fmt.Sprintf("%s/api/v1/jobs/%s/status", serverURL, jobID), jobID)
}

func listServerJobs(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var jobs []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Printf("Job ID: %s\n", job["id"])
		fmt.Printf("  State: %s\n", job["state"])
		if config, ok := job["config"].(map[string]interface{}); ok {
			fmt.Printf("  Project: %s\n", config["projectId"])
		}
		if cost, ok := job["bestCost"].(float64); ok && cost > 0 {
			fmt.Printf("  Best Cost: %.6g\n", cost)
		}
		fmt.Println()
	}

	return nil
}

func getServerJobStatus(url, jobID string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Job: %s\n", status["id"])
	fmt.Printf("State: %s\n", status["state"])
	fmt.Println()

	if config, ok := status["config"].(map[string]interface{}); ok {
		fmt.Println("Configuration:")
		fmt.Printf("  Project: %s\n", config["projectId"])
		if solver, ok := config["solver"].(string); ok && solver != "" {
			fmt.Printf("  Solver: %s\n", solver)
		}
		if iters, ok := config["maxIterations"].(float64); ok && iters > 0 {
			fmt.Printf("  Iterations: %v\n", iters)
		}
		fmt.Println()
	}

	fmt.Println("Progress:")
	if cost, ok := status["bestCost"].(float64); ok && cost > 0 {
		fmt.Printf("  Best Cost: %.6g\n", cost)
	}
	if evals, ok := status["evaluations"].(float64); ok {
		fmt.Printf("  Evaluations: %.0f\n", evals)
	}
	if elapsed, ok := status["elapsed"].(float64); ok {
		d := time.Duration(elapsed * float64(time.Second))
		fmt.Printf("  Elapsed: %s\n", d.Round(time.Millisecond))
	}
	if eps, ok := status["eps"].(float64); ok && eps > 0 {
		fmt.Printf("  Throughput: %.0f evals/sec\n", eps)
	}
	if converged, ok := status["converged"].(bool); ok && converged {
		fmt.Println("  Converged: yes")
	}

	if errMsg, ok := status["error"].(string); ok && errMsg != "" {
		fmt.Printf("\nError: %s\n", errMsg)
	}

	return nil
}
