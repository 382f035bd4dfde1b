package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fillwise/fillwise/internal/core/domain"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage rewrite jobs",
	Long:  `Create, run, and inspect batch rewrite jobs.`,
}

var jobCreateCmd = &cobra.Command{
	Use:   "create [doc-id] [ruleset-id]",
	Short: "Create a rewrite job",
	Args:  cobra.ExactArgs(2),
	RunE:  runJobCreate,
}

var jobRunCmd = &cobra.Command{
	Use:   "run [job-id]",
	Short: "Run a pending job, streaming progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobRun,
}

var jobRestartCmd = &cobra.Command{
	Use:   "restart [job-id]",
	Short: "Reset a failed or stale job back to pending",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobRestart,
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rewrite jobs",
	Args:  cobra.NoArgs,
	RunE:  runJobList,
}

var jobRewritesCmd = &cobra.Command{
	Use:   "rewrites [job-id]",
	Short: "Show a job's per-section rewrites",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobRewrites,
}

var (
	// jobSections limits a new job to specific section IDs.
	jobSections []string
	// jobListDocument filters the job listing to one document.
	jobListDocument string
	// jobRunTokens echoes streamed tokens while a job runs.
	jobRunTokens bool
)

func init() {
	jobCreateCmd.Flags().StringSliceVar(&jobSections, "sections", nil, "Section IDs to rewrite (default: all sections)")
	jobListCmd.Flags().StringVar(&jobListDocument, "document", "", "Only list jobs for this document")
	jobRunCmd.Flags().BoolVar(&jobRunTokens, "tokens", false, "Echo streamed model tokens")

	jobCmd.AddCommand(jobCreateCmd)
	jobCmd.AddCommand(jobRunCmd)
	jobCmd.AddCommand(jobRestartCmd)
	jobCmd.AddCommand(jobListCmd)
	jobCmd.AddCommand(jobRewritesCmd)
	rootCmd.AddCommand(jobCmd)
}

func runJobCreate(cmd *cobra.Command, args []string) error {
	if jobService == nil {
		return errors.New("job service not configured")
	}

	job, err := jobService.Create(context.Background(), args[0], args[1], jobSections, currentActor())
	if err != nil {
		return fmt.Errorf("job creation failed: %w", err)
	}

	cmd.Printf("Created job %s covering %d section(s).\n", job.ID, job.TotalSections)
	cmd.Printf("Run 'fillwise job run %s' to start it.\n", job.ID)
	return nil
}

func runJobRun(cmd *cobra.Command, args []string) error {
	if jobService == nil {
		return errors.New("job service not configured")
	}

	ctx := context.Background()
	updates, err := jobService.Run(ctx, args[0], currentActor())
	if err != nil {
		return fmt.Errorf("failed to start job: %w", err)
	}

	cmd.Printf("Job %s running...\n", args[0])
	if err := renderProgress(cmd, updates); err != nil {
		return err
	}

	job, err := jobService.Get(ctx, args[0])
	if err != nil {
		return err
	}
	cmd.Printf("\nJob finished: %s\n", statusStyle(string(job.Status)).Render(string(job.Status)))
	if job.ErrorMessage != "" {
		cmd.Printf("  %s\n", failStyle.Render(job.ErrorMessage))
	}
	return nil
}

// renderProgress consumes the progress channel until the terminal frame.
func renderProgress(cmd *cobra.Command, updates <-chan domain.ProgressUpdate) error {
	var lastSection string
	for u := range updates {
		switch {
		case u.Done:
			cmd.Printf("\r%s\n", progressBar(u.CompletedSections, u.TotalSections))
			return nil
		case u.Token != "":
			if jobRunTokens {
				cmd.Print(u.Token)
			}
		case u.Error != "":
			cmd.Printf("\r  %s %s: %s\n", failStyle.Render("failed"), u.SectionID, u.Error)
		case u.SectionID != "" && u.SectionID != lastSection:
			lastSection = u.SectionID
			if jobRunTokens {
				cmd.Printf("\n%s %s [%s]\n", headerStyle.Render("section"), u.SectionID,
					statusStyle(string(u.Status)).Render(string(u.Status)))
			} else {
				cmd.Printf("\r%s %s", progressBar(u.CompletedSections, u.TotalSections),
					dimStyle.Render(u.SectionID))
			}
		}
	}
	return nil
}

// progressBar renders "[####....] 3/8" for the given counts.
func progressBar(done, total int) string {
	const width = 24
	if total <= 0 {
		total = 1
	}
	filled := done * width / total
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("#", filled) + strings.Repeat(".", width-filled)
	return fmt.Sprintf("[%s] %d/%d", bar, done, total)
}

func runJobRestart(cmd *cobra.Command, args []string) error {
	if jobService == nil {
		return errors.New("job service not configured")
	}

	job, err := jobService.Restart(context.Background(), args[0], currentActor())
	if err != nil {
		return fmt.Errorf("restart failed: %w", err)
	}

	cmd.Printf("Job %s reset to %s (%d/%d sections already completed).\n",
		job.ID, statusStyle(string(job.Status)).Render(string(job.Status)),
		job.CompletedSections, job.TotalSections)
	return nil
}

func runJobList(cmd *cobra.Command, _ []string) error {
	if jobService == nil {
		return errors.New("job service not configured")
	}

	jobs, err := jobService.List(context.Background(), jobListDocument)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	if len(jobs) == 0 {
		cmd.Println("No jobs found.")
		return nil
	}

	for i := range jobs {
		j := &jobs[i]
		cmd.Printf("  %s  %s  %d/%d  doc=%s\n", j.ID,
			statusStyle(string(j.Status)).Render(fmt.Sprintf("%-9s", j.Status)),
			j.CompletedSections, j.TotalSections, j.DocumentID)
	}
	cmd.Printf("\nTotal: %d jobs\n", len(jobs))
	return nil
}

func runJobRewrites(cmd *cobra.Command, args []string) error {
	if jobService == nil {
		return errors.New("job service not configured")
	}

	rewrites, err := jobService.Rewrites(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list rewrites: %w", err)
	}

	if len(rewrites) == 0 {
		cmd.Println("No rewrites scheduled for this job.")
		return nil
	}

	for i := range rewrites {
		rw := &rewrites[i]
		cmd.Printf("  %s  %s  section=%s", rw.ID,
			statusStyle(string(rw.Status)).Render(fmt.Sprintf("%-9s", rw.Status)), rw.SectionID)
		if rw.Status == domain.RewriteCompleted {
			cmd.Printf("  %s", dimStyle.Render(fmt.Sprintf("%d tokens, %dms", rw.TokensCompletion, rw.DurationMs)))
		}
		if rw.ErrorMessage != "" {
			cmd.Printf("  %s", failStyle.Render(truncateLine(rw.ErrorMessage, 60)))
		}
		cmd.Println()
	}
	return nil
}
