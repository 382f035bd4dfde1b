package prompt

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	// Bare trailing JSON object mentioning a known audit key, preceded by a
	// --- line or a blank line.
	trailingMetaRe = regexp.MustCompile(
		`(?s)(?:\n---[ \t]*\n|\n\n)\{[^{}]*"(?:rules_applied|confidence)"[^{}]*\}\s*$`)

	// Fenced code block variant: a separator, an optional (possibly bolded)
	// AUDIT_JSON label line, then a json code fence holding the object.
	fencedAuditRe = regexp.MustCompile(
		`(?s)(?:\n---[ \t]*\n|\n\n)(?:\*{0,2}AUDIT_JSON:?\*{0,2}[ \t]*\n)?` +
			"```" + `(?:json)?[ \t]*\n(\{.*?\})\s*` + "```" + `\s*$`)

	// Same, but without the separator line before the label.
	fencedAuditNoSepRe = regexp.MustCompile(
		`(?s)\n\*{0,2}AUDIT_JSON:?\*{0,2}[ \t]*\n` +
			"```" + `(?:json)?[ \t]*\n(\{.*?\})\s*` + "```" + `\s*$`)
)

// The model is asked for a same-line AUDIT_JSON: suffix but sometimes emits a
// fenced code block or a bare trailing JSON object instead. The patterns
// below catch those variants so the visible text is always clean.

// SplitResponse splits a raw model response into (cleanText, audit).
//
// Three accepted audit forms: same-line JSON after the AUDIT_JSON: marker,
// JSON inside a fenced code block following the marker, and a bare trailing
// JSON object (after --- or a blank line) containing a rules_applied or
// confidence key. Unparseable JSON is discarded silently but the block is
// still stripped. Splitting is idempotent: SplitResponse(clean) returns the
// same clean text.
func SplitResponse(raw string) (string, map[string]any) {
	audit := map[string]any{}
	lines := strings.Split(strings.TrimRight(raw, " \t\n"), "\n")

	var textLines []string
	var fenced []string
	inFence := false

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		stripped := strings.TrimSpace(line)

		if inFence {
			if strings.HasPrefix(stripped, "```") {
				if parsed := parseJSONObject(strings.Join(fenced, "\n")); parsed != nil {
					audit = parsed
				}
				inFence = false
				fenced = nil
			} else {
				fenced = append(fenced, line)
			}
			continue
		}

		if isAuditMarker(stripped) {
			jsonPart := strings.TrimSpace(auditPayload(stripped))
			switch {
			case strings.HasPrefix(jsonPart, "{"):
				if parsed := parseJSONObject(jsonPart); parsed != nil {
					audit = parsed
				}
			case strings.HasPrefix(jsonPart, "```"):
				inFence = true
			case jsonPart == "":
				if i+1 < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[i+1]), "```") {
					i++ // skip the opening fence line
					inFence = true
				}
			}
			continue
		}

		textLines = append(textLines, line)
	}

	clean := strings.TrimSpace(strings.Join(textLines, "\n"))
	clean = StripTrailingMetadata(clean, audit)
	return clean, audit
}

// StripTrailingMetadata removes trailing audit metadata blocks from text:
// fenced code blocks (with or without an AUDIT_JSON label, possibly bolded)
// and bare JSON objects mentioning a known audit key. Parsed JSON is merged
// into audit. Stripping is idempotent.
func StripTrailingMetadata(text string, audit map[string]any) string {
	for _, re := range []*regexp.Regexp{fencedAuditRe, fencedAuditNoSepRe} {
		if m := re.FindStringSubmatchIndex(text); m != nil {
			jsonStr := strings.TrimSpace(text[m[2]:m[3]])
			mergeJSON(audit, jsonStr)
			text = strings.TrimRight(text[:m[0]], " \t\n")
		}
	}

	if m := trailingMetaRe.FindStringIndex(text); m != nil {
		block := text[m[0]:]
		if start := strings.Index(block, "{"); start >= 0 {
			mergeJSON(audit, strings.TrimSpace(block[start:]))
		}
		text = strings.TrimRight(text[:m[0]], " \t\n")
	}

	return text
}

func isAuditMarker(s string) bool {
	return strings.HasPrefix(s, "AUDIT_JSON:") ||
		strings.HasPrefix(s, "**AUDIT_JSON")
}

// auditPayload strips the AUDIT_JSON label, tolerating markdown bold
// wrappers, and returns whatever follows.
func auditPayload(s string) string {
	for _, wrapper := range []string{"**AUDIT_JSON:**", "**AUDIT_JSON**:", "**AUDIT_JSON:"} {
		s = strings.Replace(s, wrapper, "AUDIT_JSON:", 1)
	}
	return strings.TrimPrefix(s, "AUDIT_JSON:")
}

func parseJSONObject(s string) map[string]any {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &parsed); err != nil {
		return nil
	}
	return parsed
}

func mergeJSON(audit map[string]any, jsonStr string) {
	if parsed := parseJSONObject(jsonStr); parsed != nil {
		for k, v := range parsed {
			audit[k] = v
		}
	}
}
