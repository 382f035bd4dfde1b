// Package risk evaluates rewrites for compliance drift.
//
// Three detection layers: rule-based (numeric mutation, party name changes,
// date drift), semantic deviation (term-frequency cosine similarity), and
// structural (character count ratio anomaly). All checks are heuristic; a
// finding is a flag for human review, not a legal-correctness proof.
package risk

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/fillwise/fillwise/internal/core/domain"
)

var (
	numberRe = regexp.MustCompile(`\b\d[\d,]*\.?\d*\b`)
	dateRe   = regexp.MustCompile(`(?i)\b(\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}-\d{2}-\d{2}|\d{1,2}\s+(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{4})\b`)
	partyRe  = regexp.MustCompile(`"([A-Z][a-zA-Z\s]+)"`)
	wordRe   = regexp.MustCompile(`\b[a-z]+\b`)
)

// Deviation and length thresholds that trigger findings.
const (
	deviationHigh   = 0.6
	deviationMedium = 0.35
	ratioDropped    = 0.3
	ratioAdded      = 3.0
)

// Analyze runs every check against one (original, rewritten) pair and
// returns zero or more findings. It is stateless and never touches storage;
// the caller persists findings atomically with the triggering rewrite.
func Analyze(original, rewritten string) []domain.RiskFinding {
	var findings []domain.RiskFinding
	findings = append(findings, checkNumericDrift(original, rewritten)...)
	findings = append(findings, checkDateDrift(original, rewritten)...)
	findings = append(findings, checkPartyChanges(original, rewritten)...)
	findings = append(findings, checkSemanticDeviation(original, rewritten)...)
	findings = append(findings, checkLengthAnomaly(original, rewritten)...)
	return findings
}

func checkNumericDrift(original, rewritten string) []domain.RiskFinding {
	origNums := stringSet(numberRe.FindAllString(original, -1))
	newNums := stringSet(numberRe.FindAllString(rewritten, -1))
	removed := difference(origNums, newNums)
	added := difference(newNums, origNums)

	var findings []domain.RiskFinding
	if len(removed) > 0 {
		findings = append(findings, domain.RiskFinding{
			Severity:    domain.RiskCritical,
			Category:    "numeric_drift",
			Description: fmt.Sprintf("Numbers removed that were in original: %v", head(removed, 10)),
			Score:       1.0,
		})
	}
	if len(added) > 0 {
		findings = append(findings, domain.RiskFinding{
			Severity:    domain.RiskHigh,
			Category:    "numeric_drift",
			Description: fmt.Sprintf("New numbers introduced not in original: %v", head(added, 10)),
			Score:       0.8,
		})
	}
	return findings
}

func checkDateDrift(original, rewritten string) []domain.RiskFinding {
	origDates := stringSet(dateRe.FindAllString(original, -1))
	newDates := stringSet(dateRe.FindAllString(rewritten, -1))
	changed := append(difference(origDates, newDates), difference(newDates, origDates)...)
	if len(changed) == 0 {
		return nil
	}
	sort.Strings(changed)
	return []domain.RiskFinding{{
		Severity:    domain.RiskCritical,
		Category:    "date_drift",
		Description: fmt.Sprintf("Date values changed: %v", head(changed, 5)),
		Score:       1.0,
	}}
}

func checkPartyChanges(original, rewritten string) []domain.RiskFinding {
	origParties := stringSet(captures(partyRe, original))
	newParties := stringSet(captures(partyRe, rewritten))
	removed := difference(origParties, newParties)
	if len(removed) == 0 {
		return nil
	}
	return []domain.RiskFinding{{
		Severity:    domain.RiskCritical,
		Category:    "party_change",
		Description: fmt.Sprintf("Party names removed: %v", head(removed, 5)),
		Score:       1.0,
	}}
}

func checkSemanticDeviation(original, rewritten string) []domain.RiskFinding {
	similarity := cosineSimilarity(original, rewritten)
	deviation := 1.0 - similarity

	switch {
	case deviation > deviationHigh:
		return []domain.RiskFinding{{
			Severity: domain.RiskHigh,
			Category: "semantic_deviation",
			Description: fmt.Sprintf(
				"High semantic deviation from original (similarity=%.2f). Review carefully to ensure legal intent is preserved.",
				similarity),
			Score: deviation,
		}}
	case deviation > deviationMedium:
		return []domain.RiskFinding{{
			Severity:    domain.RiskMedium,
			Category:    "semantic_deviation",
			Description: fmt.Sprintf("Moderate semantic deviation (similarity=%.2f).", similarity),
			Score:       deviation,
		}}
	default:
		return nil
	}
}

func checkLengthAnomaly(original, rewritten string) []domain.RiskFinding {
	if len(original) == 0 {
		return nil
	}
	ratio := float64(len(rewritten)) / float64(len(original))
	if ratio < ratioDropped {
		return []domain.RiskFinding{{
			Severity: domain.RiskHigh,
			Category: "length_anomaly",
			Description: fmt.Sprintf(
				"Rewrite is %.0f%% of original length. Significant content may have been dropped.", ratio*100),
			Score: 1.0 - ratio,
		}}
	}
	if ratio > ratioAdded {
		return []domain.RiskFinding{{
			Severity: domain.RiskMedium,
			Category: "length_anomaly",
			Description: fmt.Sprintf(
				"Rewrite is %.0f%% of original length. Significant content may have been added.", ratio*100),
			Score: math.Min(1.0, (ratio-1.0)/3.0),
		}}
	}
	return nil
}

// cosineSimilarity approximates similarity with a term-frequency bag of
// lowercased alphabetic words. Returns a value in [0, 1]; 1 means identical
// term distributions.
func cosineSimilarity(a, b string) float64 {
	tokensA := wordRe.FindAllString(strings.ToLower(a), -1)
	tokensB := wordRe.FindAllString(strings.ToLower(b), -1)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	freqA := termFrequencies(tokensA)
	freqB := termFrequencies(tokensB)

	var dot, magA, magB float64
	for w, fa := range freqA {
		dot += fa * freqB[w]
		magA += fa * fa
	}
	for _, fb := range freqB {
		magB += fb * fb
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	return math.Round(math.Min(1.0, sim)*10000) / 10000
}

func termFrequencies(tokens []string) map[string]float64 {
	freq := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}
	n := float64(len(tokens))
	for t := range freq {
		freq[t] /= n
	}
	return freq
}

func captures(re *regexp.Regexp, s string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		out = append(out, m[1])
	}
	return out
}

func stringSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

// difference returns a-b, sorted.
func difference(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
