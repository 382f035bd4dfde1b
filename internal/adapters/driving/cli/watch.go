package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the inbox directory and auto-ingest new documents",
	Long: `Watches the configured inbox directory. New PDF and DOCX files are
uploaded and ingested automatically. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if inboxWatcher == nil {
		return errors.New("inbox watcher not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Printf("Watching %s for new documents (Ctrl-C to stop)...\n", cliConfig.InboxDir)
	if err := inboxWatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	cmd.Println("Watcher stopped.")
	return nil
}
