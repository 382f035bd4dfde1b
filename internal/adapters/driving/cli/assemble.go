package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var assembleCmd = &cobra.Command{
	Use:   "assemble [job-id]",
	Short: "Build the final DOCX from approved rewrites",
	Long: `Assembles the export document for a completed job. Every rewrite must
carry an approved or edited review.`,
	Args: cobra.ExactArgs(1),
	RunE: runAssemble,
}

// assembleLatest prints the newest existing export instead of building one.
var assembleLatest bool

func init() {
	assembleCmd.Flags().BoolVar(&assembleLatest, "latest", false, "Print the most recent export for the job instead of assembling")
	rootCmd.AddCommand(assembleCmd)
}

func runAssemble(cmd *cobra.Command, args []string) error {
	if assemblyService == nil {
		return errors.New("assembly service not configured")
	}

	ctx := context.Background()
	if assembleLatest {
		path, err := assemblyService.LatestExport(ctx, args[0])
		if err != nil {
			return fmt.Errorf("no export found: %w", err)
		}
		cmd.Println(path)
		return nil
	}

	path, err := assemblyService.Assemble(ctx, args[0], currentActor())
	if err != nil {
		return fmt.Errorf("assembly failed: %w", err)
	}
	cmd.Printf("Assembled %s\n", okStyle.Render(path))
	return nil
}
