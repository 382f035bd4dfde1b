// Package prompt deterministically assembles system/user prompt pairs for
// section rewrites and splits model responses back into clean text plus
// audit metadata.
//
// Compilation is a pure function: identical inputs always yield an identical
// prompt hash. The hash is stored with every rewrite so a run can be
// reproduced and drift between runs detected.
package prompt

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fillwise/fillwise/internal/core/domain"
)

const baseSystemInstructions = `You are a legal document editor. Your task is to rewrite the provided section of a legal document according to the rules below.

Strict requirements:
- Preserve all legal obligations, rights, and defined terms.
- Do NOT alter party names, dates, monetary amounts, or reference numbers unless a rule explicitly requires it.
- Do NOT introduce new legal obligations that are not present in the original.
- Output ONLY the rewritten section text as PLAIN TEXT.
- ABSOLUTELY NO MARKDOWN FORMATTING: do NOT use ** (bold), * (italic), ### (headings), ` + "```" + ` (code fences), --- (horizontal rules), or any other Markdown syntax. The output is inserted directly into a Word document, so any such characters will appear literally.
- Do NOT output bullet lists with - or *. Write items as flowing sentences or numbered clauses (1., 2., etc.).
- No commentary, no preamble, no section labels.
- If you cannot apply a rule without introducing legal risk, output the original text unchanged and prefix your response with [NO-CHANGE].
- Maintain the same structural level (heading/clause/definition/etc.) as the original.
`

const auditInstruction = `At the very end of your response, on ONE new line, output exactly this format (no code fences, no markdown, no extra whitespace, no --- separators):
AUDIT_JSON:{"rules_applied": ["<rule-id>", ...], "confidence": <0.0-1.0>}
The JSON must be on the SAME line as AUDIT_JSON: with no line break between them.
`

// CompiledPrompt is the output of Compile.
type CompiledPrompt struct {
	System         string   `json:"system_prompt"`
	User           string   `json:"user_prompt"`
	Hash           string   `json:"prompt_hash"`
	AppliedRuleIDs []string `json:"applied_rule_ids"`
}

// Compile assembles the full prompt pair for one section rewrite.
//
// heading and jurisdiction may be empty. The returned hash covers the system
// prompt, the user prompt, and the sorted applied rule IDs.
func Compile(rules []domain.Rule, sectionType domain.SectionType, originalText, heading, jurisdiction string) CompiledPrompt {
	ruleIDs := make([]string, 0, len(rules))
	var fragments []string
	for _, r := range rules {
		ruleIDs = append(ruleIDs, r.ID)
		fragments = append(fragments, fmt.Sprintf("[Rule %s] %s", r.ID, r.Instruction))
	}

	var system strings.Builder
	system.WriteString(baseSystemInstructions)
	if jurisdiction != "" {
		fmt.Fprintf(&system,
			"\nJurisdiction context: This document is governed under %s law. All rewrites must remain compliant with %s legal standards.\n",
			jurisdiction, jurisdiction)
	}
	if len(fragments) > 0 {
		fmt.Fprintf(&system, "\nApplicable transformation rules:\n%s\n", strings.Join(fragments, "\n"))
	} else {
		system.WriteString("\nNo specific transformation rules apply. Preserve original intent.\n")
	}
	system.WriteString(auditInstruction)

	var user strings.Builder
	if heading != "" {
		fmt.Fprintf(&user, "Section heading: %s\n", heading)
	}
	fmt.Fprintf(&user, "Section type: %s\n", sectionType)
	fmt.Fprintf(&user, "\nOriginal section text:\n%s\n", originalText)
	user.WriteString("\nRewritten section text:")

	return CompiledPrompt{
		System:         system.String(),
		User:           user.String(),
		Hash:           promptHash(system.String(), user.String(), ruleIDs),
		AppliedRuleIDs: ruleIDs,
	}
}

// promptHash computes SHA-256 over the canonical JSON of the prompt inputs.
// Map marshalling sorts keys, so the canonical form is stable.
func promptHash(system, user string, ruleIDs []string) string {
	ids := append([]string(nil), ruleIDs...)
	sort.Strings(ids)
	canonical, _ := json.Marshal(map[string]any{
		"system":   system,
		"user":     user,
		"rule_ids": ids,
	})
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
