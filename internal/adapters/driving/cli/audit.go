package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fillwise/fillwise/internal/core/ports/driving"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit trail",
	Long:  `List audit events and verify the integrity of the hash chain.`,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit hash chain",
	Args:  cobra.NoArgs,
	RunE:  runAuditVerify,
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events, newest first",
	Args:  cobra.NoArgs,
	RunE:  runAuditList,
}

var (
	// auditEntity filters the listing to one entity ID.
	auditEntity string
	// auditLimit caps the number of events printed.
	auditLimit int
)

func init() {
	auditListCmd.Flags().StringVar(&auditEntity, "entity", "", "Only show events for this entity ID")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 50, "Maximum number of events to show")

	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditListCmd)
	rootCmd.AddCommand(auditCmd)
}

func runAuditVerify(cmd *cobra.Command, _ []string) error {
	if auditService == nil {
		return errors.New("audit service not configured")
	}

	ok, brokenID, err := auditService.Verify(context.Background())
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	if ok {
		cmd.Printf("%s\n", okStyle.Render("Audit chain intact."))
		return nil
	}
	return fmt.Errorf("audit chain broken at event %s", brokenID)
}

func runAuditList(cmd *cobra.Command, _ []string) error {
	if auditService == nil {
		return errors.New("audit service not configured")
	}

	events, err := auditService.List(context.Background(), driving.AuditQuery{
		EntityID: auditEntity,
		Limit:    auditLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

	if len(events) == 0 {
		cmd.Println("No audit events recorded.")
		return nil
	}

	for i := range events {
		e := &events[i]
		cmd.Printf("  %s  %-24s %s %s %s\n",
			dimStyle.Render(e.CreatedAt.Format("2006-01-02 15:04:05")),
			e.EventType, e.EntityType, e.EntityID, dimStyle.Render("by "+e.ActorUsername))
	}
	cmd.Printf("\nTotal: %d events\n", len(events))
	return nil
}
