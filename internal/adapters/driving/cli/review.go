package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driving"
	"github.com/fillwise/fillwise/internal/diff"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review section rewrites",
	Long:  `Inspect rewrites, view word diffs and risk findings, and record decisions.`,
}

var reviewListCmd = &cobra.Command{
	Use:   "list [job-id]",
	Short: "List a job's rewrites awaiting review",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewList,
}

var reviewShowCmd = &cobra.Command{
	Use:   "show [rewrite-id]",
	Short: "Show the diff and risk findings for a rewrite",
	Long:  `Opens (or creates) the review for a rewrite and renders the word diff with its risk findings.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewShow,
}

var reviewDecideCmd = &cobra.Command{
	Use:   "decide [review-id]",
	Short: "Record a review decision",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewDecide,
}

var (
	// decideStatus is the verdict: approved, rejected, edited, rerun_requested.
	decideStatus string
	// decideEditFile points at a file whose contents replace the rewrite.
	decideEditFile string
	// decideOverride justifies approving over critical or high findings.
	decideOverride string
)

func init() {
	reviewDecideCmd.Flags().StringVar(&decideStatus, "status", "", "Decision: approved, rejected, edited, or rerun_requested")
	reviewDecideCmd.Flags().StringVar(&decideEditFile, "edited-file", "", "File containing the corrected text (required for edited)")
	reviewDecideCmd.Flags().StringVar(&decideOverride, "override-reason", "", "Justification for approving over critical or high risk findings")
	_ = reviewDecideCmd.MarkFlagRequired("status")

	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewShowCmd)
	reviewCmd.AddCommand(reviewDecideCmd)
	rootCmd.AddCommand(reviewCmd)
}

func runReviewList(cmd *cobra.Command, args []string) error {
	if jobService == nil || reviewService == nil {
		return errors.New("review service not configured")
	}

	ctx := context.Background()
	rewrites, err := jobService.Rewrites(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to list rewrites: %w", err)
	}

	if len(rewrites) == 0 {
		cmd.Println("No rewrites found for this job.")
		return nil
	}

	for i := range rewrites {
		rw := &rewrites[i]
		if rw.Status != domain.RewriteCompleted {
			cmd.Printf("  %s  %s\n", rw.ID,
				statusStyle(string(rw.Status)).Render(string(rw.Status)))
			continue
		}
		cmd.Printf("  %s  %s  %s\n", rw.ID,
			statusStyle(string(rw.Status)).Render(string(rw.Status)),
			dimStyle.Render("fillwise review show "+rw.ID))
	}
	return nil
}

func runReviewShow(cmd *cobra.Command, args []string) error {
	if reviewService == nil {
		return errors.New("review service not configured")
	}

	ctx := context.Background()
	review, err := reviewService.GetOrCreate(ctx, args[0], currentActor())
	if err != nil {
		return fmt.Errorf("failed to open review: %w", err)
	}

	cmd.Printf("%s %s [%s]\n", headerStyle.Render("Review"), review.ID,
		statusStyle(string(review.Status)).Render(string(review.Status)))

	hunks, err := diff.FromJSON(review.DiffJSON)
	if err != nil {
		return fmt.Errorf("stored diff is unreadable: %w", err)
	}
	cmd.Println()
	cmd.Println(renderDiff(hunks))

	findings, err := reviewService.Findings(ctx, args[0])
	if err != nil {
		return err
	}
	if len(findings) == 0 {
		cmd.Printf("\n%s\n", okStyle.Render("No risk findings."))
		return nil
	}

	cmd.Printf("\n%s\n", headerStyle.Render("Risk findings"))
	for i := range findings {
		f := &findings[i]
		cmd.Printf("  %s %s: %s %s\n",
			severityStyle(f.Severity).Render(strings.ToUpper(string(f.Severity))),
			f.Category, f.Description, dimStyle.Render(fmt.Sprintf("(%.2f)", f.Score)))
	}
	return nil
}

func runReviewDecide(cmd *cobra.Command, args []string) error {
	if reviewService == nil {
		return errors.New("review service not configured")
	}

	decision := driving.ReviewDecision{
		Status:             domain.ReviewStatus(strings.ToLower(decideStatus)),
		RiskOverrideReason: decideOverride,
	}
	if decideEditFile != "" {
		text, err := os.ReadFile(decideEditFile)
		if err != nil {
			return fmt.Errorf("cannot read edited text: %w", err)
		}
		decision.EditedText = string(text)
	}

	review, err := reviewService.Decide(context.Background(), args[0], decision, currentActor())
	if err != nil {
		return fmt.Errorf("decision failed: %w", err)
	}

	cmd.Printf("Review %s is now %s.\n", review.ID,
		statusStyle(string(review.Status)).Render(string(review.Status)))
	return nil
}

// renderDiff colors the word diff: deletions struck through in red,
// insertions in green.
func renderDiff(hunks []diff.Hunk) string {
	var b strings.Builder
	for _, h := range hunks {
		switch h.Operation {
		case diff.OpEqual:
			b.WriteString(h.Original)
		case diff.OpDelete:
			b.WriteString(deleteStyle.Render(h.Original))
		case diff.OpInsert:
			b.WriteString(insertStyle.Render(h.Rewritten))
		case diff.OpReplace:
			b.WriteString(deleteStyle.Render(h.Original))
			b.WriteString(" ")
			b.WriteString(insertStyle.Render(h.Rewritten))
		}
	}
	return b.String()
}

// severityStyle maps finding severities to colors.
func severityStyle(sev domain.RiskSeverity) lipgloss.Style {
	switch sev {
	case domain.RiskCritical, domain.RiskHigh:
		return failStyle
	case domain.RiskMedium:
		return warnStyle
	default:
		return dimStyle
	}
}
