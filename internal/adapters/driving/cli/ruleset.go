package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var rulesetCmd = &cobra.Command{
	Use:   "ruleset",
	Short: "Manage transformation rule sets",
	Long:  `Import, inspect, and activate versioned rewrite rule sets.`,
}

var rulesetImportCmd = &cobra.Command{
	Use:   "import [path]",
	Short: "Import a rule set YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesetImport,
}

var rulesetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rule sets",
	Args:  cobra.NoArgs,
	RunE:  runRulesetList,
}

var rulesetActivateCmd = &cobra.Command{
	Use:   "activate [ruleset-id]",
	Short: "Activate a rule set version",
	Long:  `Marks the rule set active and deactivates any prior active version of the same name.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesetActivate,
}

var rulesetConflictsCmd = &cobra.Command{
	Use:   "conflicts [ruleset-id]",
	Short: "Show detected rule conflicts",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesetConflicts,
}

func init() {
	rulesetCmd.AddCommand(rulesetImportCmd)
	rulesetCmd.AddCommand(rulesetListCmd)
	rulesetCmd.AddCommand(rulesetActivateCmd)
	rulesetCmd.AddCommand(rulesetConflictsCmd)
	rootCmd.AddCommand(rulesetCmd)
}

func runRulesetImport(cmd *cobra.Command, args []string) error {
	if rulesetService == nil {
		return errors.New("ruleset service not configured")
	}

	ctx := context.Background()
	rs, err := rulesetService.Import(ctx, args[0], currentActor())
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	cmd.Printf("Imported %s v%s (%d rules)\n", rs.Name, rs.Version, len(rs.Rules))
	cmd.Printf("  ID: %s\n", rs.ID)
	cmd.Printf("  Hash: %s\n", rs.ContentHash)

	conflicts, err := rulesetService.Conflicts(ctx, rs.ID)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		cmd.Printf("\n%s\n", warnStyle.Render(fmt.Sprintf("%d rule conflict(s) detected; activation is blocked until resolved:", len(conflicts))))
		for i := range conflicts {
			cmd.Printf("  %s <> %s: %s\n", conflicts[i].RuleA, conflicts[i].RuleB, conflicts[i].Description)
		}
	}
	return nil
}

func runRulesetList(cmd *cobra.Command, _ []string) error {
	if rulesetService == nil {
		return errors.New("ruleset service not configured")
	}

	rulesets, err := rulesetService.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list rule sets: %w", err)
	}

	if len(rulesets) == 0 {
		cmd.Println("No rule sets imported yet.")
		return nil
	}

	for i := range rulesets {
		rs := &rulesets[i]
		marker := " "
		if rs.Active {
			marker = okStyle.Render("*")
		}
		cmd.Printf("%s %s  %s v%s (%d rules)\n", marker, rs.ID, rs.Name, rs.Version, len(rs.Rules))
	}
	cmd.Printf("\nTotal: %d rule sets (* = active)\n", len(rulesets))
	return nil
}

func runRulesetActivate(cmd *cobra.Command, args []string) error {
	if rulesetService == nil {
		return errors.New("ruleset service not configured")
	}

	if err := rulesetService.Activate(context.Background(), args[0], currentActor()); err != nil {
		return fmt.Errorf("activation failed: %w", err)
	}
	cmd.Printf("Rule set %s is now %s.\n", args[0], okStyle.Render("active"))
	return nil
}

func runRulesetConflicts(cmd *cobra.Command, args []string) error {
	if rulesetService == nil {
		return errors.New("ruleset service not configured")
	}

	conflicts, err := rulesetService.Conflicts(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list conflicts: %w", err)
	}

	if len(conflicts) == 0 {
		cmd.Println("No conflicts detected.")
		return nil
	}

	for i := range conflicts {
		c := &conflicts[i]
		state := warnStyle.Render("unresolved")
		if c.Resolved {
			state = okStyle.Render("resolved")
		}
		cmd.Printf("  [%s] %s <> %s: %s\n", state, c.RuleA, c.RuleB, c.Description)
	}
	return nil
}
