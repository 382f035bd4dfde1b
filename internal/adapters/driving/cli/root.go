// Package cli implements the fillwise command line interface. Commands talk
// to the core through the driving port interfaces; services are injected by
// the composition root before Execute runs.
package cli

import (
	"context"
	"os"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driving"
)

// version is overridden at build time via -ldflags.
var version = "3.0.0"

var rootCmd = &cobra.Command{
	Use:   "fillwise",
	Short: "Legal document rewrite pipeline",
	Long: `FillWise rewrites legal documents clause by clause with a local LLM,
under versioned rule sets, with risk analysis, human review, and a
tamper-evident audit trail.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// InboxWatcher runs the auto-ingest loop until its context is cancelled.
type InboxWatcher interface {
	Run(ctx context.Context) error
}

// Injected service implementations. Commands guard against nil so the
// package stays testable without a full composition root.
var (
	documentService driving.DocumentService
	rulesetService  driving.RulesetService
	jobService      driving.JobService
	reviewService   driving.ReviewService
	assemblyService driving.AssemblyService
	auditService    driving.AuditService
	inboxWatcher    InboxWatcher
	cliConfig       domain.Config
)

// actorFlag carries the --actor value shared by all commands.
var actorFlag string

// Services bundles everything the CLI needs from the composition root.
type Services struct {
	Documents driving.DocumentService
	Rulesets  driving.RulesetService
	Jobs      driving.JobService
	Reviews   driving.ReviewService
	Assembly  driving.AssemblyService
	Audit     driving.AuditService
	Watcher   InboxWatcher
	Config    domain.Config
}

// Configure injects the service implementations.
func Configure(s Services) {
	documentService = s.Documents
	rulesetService = s.Rulesets
	jobService = s.Jobs
	reviewService = s.Reviews
	assemblyService = s.Assembly
	auditService = s.Audit
	inboxWatcher = s.Watcher
	cliConfig = s.Config
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "Actor recorded in the audit trail (default: OS username)")
}

// currentActor resolves the audit actor: --actor wins, then the OS user.
func currentActor() string {
	if actorFlag != "" {
		return actorFlag
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}
