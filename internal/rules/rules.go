// Package rules parses and validates rule set YAML files.
//
// Validation is strict: unknown keys are rejected and every constraint
// failure is reported, not just the first. A parsed file also gets a
// deterministic content hash so re-imports of identical content can be
// detected, and a conflict scan so contradictory rules block activation.
package rules

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fillwise/fillwise/internal/core/domain"
)

var (
	versionRe = regexp.MustCompile(`^\d+\.\d+(\.\d+)?$`)
	ruleIDRe  = regexp.MustCompile(`^[a-z0-9\-_]+$`)
)

// negationPairs lists contradictory keyword sets. Two rules with overlapping
// scopes conflict when one instruction uses a keyword from the left set and
// the other from the right set.
var negationPairs = []struct {
	positive []string
	negative []string
}{
	{
		positive: []string{"use", "apply", "include"},
		negative: []string{"remove", "exclude", "delete", "avoid"},
	},
}

// File is the parsed form of a rule set YAML document.
type File struct {
	Name          string        `yaml:"name" json:"name"`
	Description   string        `yaml:"description" json:"description"`
	Version       string        `yaml:"version" json:"version"`
	Jurisdiction  string        `yaml:"jurisdiction" json:"jurisdiction"`
	SchemaVersion string        `yaml:"schema_version" json:"schema_version"`
	Rules         []domain.Rule `yaml:"rules" json:"rules"`
}

// Conflict pairs two rules whose instructions contradict within a shared scope.
type Conflict struct {
	RuleA       string
	RuleB       string
	Description string
}

// Parse decodes and validates rule set YAML. All validation failures are
// joined into a single ErrInvalidInput so the caller can surface the full
// list at once.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: invalid rule file YAML: %v", domain.ErrInvalidInput, err)
	}

	if errs := Validate(&f); len(errs) > 0 {
		return nil, fmt.Errorf("%w: rule file failed validation: %s",
			domain.ErrInvalidInput, strings.Join(errs, "; "))
	}
	return &f, nil
}

// Validate checks every schema constraint and returns the full list of
// violations. An empty slice means the file is valid.
func Validate(f *File) []string {
	var errs []string

	if len(f.Name) < 3 {
		errs = append(errs, "name: must be at least 3 characters")
	}
	if len(f.Name) > 255 {
		errs = append(errs, "name: must be at most 255 characters")
	}
	if len(f.Description) > 2000 {
		errs = append(errs, "description: must be at most 2000 characters")
	}
	if !versionRe.MatchString(f.Version) {
		errs = append(errs, fmt.Sprintf("version: %q does not match N.N or N.N.N", f.Version))
	}
	if len(f.Jurisdiction) > 100 {
		errs = append(errs, "jurisdiction: must be at most 100 characters")
	}
	if len(f.Rules) == 0 {
		errs = append(errs, "rules: at least one rule is required")
	}

	seen := make(map[string]struct{}, len(f.Rules))
	for i, r := range f.Rules {
		prefix := fmt.Sprintf("rules.%d", i)
		if !ruleIDRe.MatchString(r.ID) {
			errs = append(errs, fmt.Sprintf("%s.id: %q must match [a-z0-9-_]+", prefix, r.ID))
		}
		if len(r.ID) > 100 {
			errs = append(errs, prefix+".id: must be at most 100 characters")
		}
		if _, dup := seen[r.ID]; dup && r.ID != "" {
			errs = append(errs, fmt.Sprintf("%s.id: duplicate rule id %q", prefix, r.ID))
		}
		seen[r.ID] = struct{}{}
		if r.Name == "" {
			errs = append(errs, prefix+".name: is required")
		}
		if len(r.Name) > 255 {
			errs = append(errs, prefix+".name: must be at most 255 characters")
		}
		if len(r.Instruction) < 10 {
			errs = append(errs, prefix+".instruction: must be at least 10 characters")
		}
	}
	return errs
}

// ContentHash computes a SHA-256 over the canonical JSON form of the file.
// Keys are emitted in sorted order so the hash is stable across reordered
// YAML input with identical content.
func ContentHash(f *File) string {
	canonical := map[string]any{
		"name":           f.Name,
		"description":    f.Description,
		"version":        f.Version,
		"jurisdiction":   f.Jurisdiction,
		"schema_version": f.SchemaVersion,
		"rules":          canonicalRules(f.Rules),
	}
	raw, _ := json.Marshal(canonical)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func canonicalRules(rs []domain.Rule) []map[string]any {
	out := make([]map[string]any, len(rs))
	for i, r := range rs {
		scope := append([]string(nil), r.Scope...)
		sort.Strings(scope)
		out[i] = map[string]any{
			"id":          r.ID,
			"name":        r.Name,
			"instruction": r.Instruction,
			"scope":       scope,
		}
	}
	return out
}

// DetectConflicts scans rule pairs for contradictory instructions within
// overlapping scopes. Earlier rule in file order is reported as RuleA.
func DetectConflicts(rs []domain.Rule) []Conflict {
	var conflicts []Conflict

	for i, curr := range rs {
		currScope := stringSet(curr.Scope)
		currText := strings.ToLower(curr.Instruction)

		for _, prev := range rs[:i] {
			overlap := intersect(stringSet(prev.Scope), currScope)
			if len(overlap) == 0 {
				continue
			}
			prevText := strings.ToLower(prev.Instruction)

			for _, pair := range negationPairs {
				currPos := containsAny(currText, pair.positive)
				currNeg := containsAny(currText, pair.negative)
				prevPos := containsAny(prevText, pair.positive)
				prevNeg := containsAny(prevText, pair.negative)

				if (currPos && prevNeg) || (currNeg && prevPos) {
					conflicts = append(conflicts, Conflict{
						RuleA: prev.ID,
						RuleB: curr.ID,
						Description: fmt.Sprintf(
							"Rules %q and %q apply to overlapping scopes [%s] but appear to give contradictory instructions.",
							prev.ID, curr.ID, strings.Join(overlap, ", ")),
					})
					break
				}
			}
		}
	}
	return conflicts
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func stringSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

func intersect(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
