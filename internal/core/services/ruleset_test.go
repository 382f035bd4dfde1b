package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillwise/fillwise/internal/adapters/driven/storage/memory"
	"github.com/fillwise/fillwise/internal/core/domain"
)

const tenancyRulesYAML = `name: UK Tenancy Rules
version: "1.0"
jurisdiction: England and Wales
rules:
  - id: plain-english
    name: Plain English
    instruction: Rewrite in plain English without changing legal meaning.
`

const conflictingRulesYAML = `name: Conflicted Rules
version: "1.0"
rules:
  - id: include-notice
    name: Include notice
    instruction: Include the statutory notice wording in every clause.
    scope: [clause]
  - id: remove-notice
    name: Remove notice
    instruction: Remove statutory notice wording from every clause.
    scope: [clause]
`

func writeRulesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testRulesetService() (*RulesetService, *memory.RulesetStore) {
	store := memory.NewRulesetStore()
	return NewRulesetService(store, NewAuditService(memory.NewAuditStore())), store
}

func TestImportValidRuleset(t *testing.T) {
	svc, _ := testRulesetService()

	rs, err := svc.Import(context.Background(), writeRulesFile(t, tenancyRulesYAML), "counsel")
	require.NoError(t, err)

	assert.Equal(t, "UK Tenancy Rules", rs.Name)
	assert.Equal(t, "1.0", rs.Version)
	assert.Len(t, rs.ContentHash, 64)
	assert.False(t, rs.Active)
	require.Len(t, rs.Rules, 1)
	assert.Equal(t, "plain-english", rs.Rules[0].ID)
}

func TestImportIdenticalContentIsIdempotent(t *testing.T) {
	svc, _ := testRulesetService()
	path := writeRulesFile(t, tenancyRulesYAML)

	first, err := svc.Import(context.Background(), path, "counsel")
	require.NoError(t, err)
	second, err := svc.Import(context.Background(), path, "counsel")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestImportSameVersionDifferentContentCollides(t *testing.T) {
	svc, _ := testRulesetService()

	_, err := svc.Import(context.Background(), writeRulesFile(t, tenancyRulesYAML), "counsel")
	require.NoError(t, err)

	changed := tenancyRulesYAML + `  - id: second-rule
    name: Second
    instruction: Another instruction that is long enough.
`
	_, err = svc.Import(context.Background(), writeRulesFile(t, changed), "counsel")
	assert.ErrorIs(t, err, domain.ErrVersionCollision)
}

func TestImportInvalidYAMLRejected(t *testing.T) {
	svc, _ := testRulesetService()
	_, err := svc.Import(context.Background(), writeRulesFile(t, "name: x\n"), "counsel")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestImportRecordsConflicts(t *testing.T) {
	svc, _ := testRulesetService()

	rs, err := svc.Import(context.Background(), writeRulesFile(t, conflictingRulesYAML), "counsel")
	require.NoError(t, err)

	conflicts, err := svc.Conflicts(context.Background(), rs.ID)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "include-notice", conflicts[0].RuleA)
	assert.Equal(t, "remove-notice", conflicts[0].RuleB)
	assert.False(t, conflicts[0].Resolved)
}

func TestActivateDeactivatesPriorVersion(t *testing.T) {
	svc, store := testRulesetService()
	ctx := context.Background()

	v1, err := svc.Import(ctx, writeRulesFile(t, tenancyRulesYAML), "counsel")
	require.NoError(t, err)

	v2YAML := `name: UK Tenancy Rules
version: "1.1"
rules:
  - id: plain-english
    name: Plain English
    instruction: Rewrite in plain English without changing legal meaning.
`
	v2, err := svc.Import(ctx, writeRulesFile(t, v2YAML), "counsel")
	require.NoError(t, err)

	require.NoError(t, svc.Activate(ctx, v1.ID, "counsel"))
	require.NoError(t, svc.Activate(ctx, v2.ID, "counsel"))

	v1After, err := store.GetRuleset(ctx, v1.ID)
	require.NoError(t, err)
	v2After, err := store.GetRuleset(ctx, v2.ID)
	require.NoError(t, err)

	assert.False(t, v1After.Active)
	assert.True(t, v2After.Active)
}

func TestActivateBlockedByUnresolvedConflicts(t *testing.T) {
	svc, _ := testRulesetService()
	ctx := context.Background()

	rs, err := svc.Import(ctx, writeRulesFile(t, conflictingRulesYAML), "counsel")
	require.NoError(t, err)

	err = svc.Activate(ctx, rs.ID, "counsel")
	assert.ErrorIs(t, err, domain.ErrRulesetConflicts)
}

func TestActivateAlreadyActiveIsNoop(t *testing.T) {
	svc, _ := testRulesetService()
	ctx := context.Background()

	rs, err := svc.Import(ctx, writeRulesFile(t, tenancyRulesYAML), "counsel")
	require.NoError(t, err)
	require.NoError(t, svc.Activate(ctx, rs.ID, "counsel"))
	require.NoError(t, svc.Activate(ctx, rs.ID, "counsel"))
}

func TestConflictsUnknownRuleset(t *testing.T) {
	svc, _ := testRulesetService()
	_, err := svc.Conflicts(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
