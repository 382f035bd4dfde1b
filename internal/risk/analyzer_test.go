package risk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillwise/fillwise/internal/core/domain"
)

func findByCategory(findings []domain.RiskFinding, category string) []domain.RiskFinding {
	var out []domain.RiskFinding
	for _, f := range findings {
		if f.Category == category {
			out = append(out, f)
		}
	}
	return out
}

func TestAnalyzeIdenticalTextProducesNoFindings(t *testing.T) {
	text := "The Tenant shall pay rent of $1,500.00 on the 1st day of each month."
	assert.Empty(t, Analyze(text, text))
}

func TestNumericDriftRemovedIsCritical(t *testing.T) {
	original := "Payment of 1,500.00 is due within 30 days."
	rewritten := "Payment is due within 30 days."

	findings := findByCategory(Analyze(original, rewritten), "numeric_drift")
	require.Len(t, findings, 1)
	assert.Equal(t, domain.RiskCritical, findings[0].Severity)
	assert.Contains(t, findings[0].Description, "1,500.00")
	assert.Equal(t, 1.0, findings[0].Score)
}

func TestNumericDriftIntroducedIsHigh(t *testing.T) {
	original := "Payment is due promptly."
	rewritten := "Payment of 2,000 is due within 45 days."

	findings := findByCategory(Analyze(original, rewritten), "numeric_drift")
	require.Len(t, findings, 1)
	assert.Equal(t, domain.RiskHigh, findings[0].Severity)
	assert.Contains(t, findings[0].Description, "45")
}

func TestNumericDriftBothDirections(t *testing.T) {
	original := "Pay 100 within 10 days."
	rewritten := "Pay 200 within 10 days."

	findings := findByCategory(Analyze(original, rewritten), "numeric_drift")
	require.Len(t, findings, 2)
}

func TestDateDriftDetectsChangedDates(t *testing.T) {
	original := "This agreement commences on 2024-01-15."
	rewritten := "This agreement commences on 2024-02-15."

	findings := findByCategory(Analyze(original, rewritten), "date_drift")
	require.Len(t, findings, 1)
	assert.Equal(t, domain.RiskCritical, findings[0].Severity)
}

func TestDateDriftMatchesMonthNameFormat(t *testing.T) {
	original := "Effective 1 January 2024."
	rewritten := "Effective 1 March 2024."

	findings := findByCategory(Analyze(original, rewritten), "date_drift")
	require.Len(t, findings, 1)
}

func TestPartyChangeDetectsRemovedQuotedName(t *testing.T) {
	original := `"Acme Corporation" (the Landlord) agrees with "Jane Smith".`
	rewritten := `"Acme Corporation" agrees with the other party.`

	findings := findByCategory(Analyze(original, rewritten), "party_change")
	require.Len(t, findings, 1)
	assert.Equal(t, domain.RiskCritical, findings[0].Severity)
	assert.Contains(t, findings[0].Description, "Jane Smith")
}

func TestPartyChangeIgnoresAddedNames(t *testing.T) {
	original := `"Acme Corporation" is a party.`
	rewritten := `"Acme Corporation" and "New Entity" are parties.`

	assert.Empty(t, findByCategory(Analyze(original, rewritten), "party_change"))
}

func TestSemanticDeviationHighForUnrelatedText(t *testing.T) {
	original := "The tenant shall maintain the premises in good repair at all times."
	rewritten := "Bananas are yellow and grow in tropical climates around the world."

	findings := findByCategory(Analyze(original, rewritten), "semantic_deviation")
	require.Len(t, findings, 1)
	assert.Equal(t, domain.RiskHigh, findings[0].Severity)
	assert.Greater(t, findings[0].Score, deviationHigh)
}

func TestSemanticDeviationAbsentForParaphrase(t *testing.T) {
	original := "The tenant shall pay the rent to the landlord each month."
	rewritten := "The tenant shall pay the monthly rent to the landlord."

	assert.Empty(t, findByCategory(Analyze(original, rewritten), "semantic_deviation"))
}

func TestLengthAnomalyDroppedContent(t *testing.T) {
	original := strings.Repeat("The parties agree to the following terms and conditions. ", 10)
	rewritten := "Terms agreed."

	findings := findByCategory(Analyze(original, rewritten), "length_anomaly")
	require.Len(t, findings, 1)
	assert.Equal(t, domain.RiskHigh, findings[0].Severity)
	assert.Contains(t, findings[0].Description, "dropped")
}

func TestLengthAnomalyAddedContent(t *testing.T) {
	original := "Rent is due monthly."
	rewritten := strings.Repeat("Rent is due monthly and the tenant shall remit payment. ", 5)

	findings := findByCategory(Analyze(original, rewritten), "length_anomaly")
	require.Len(t, findings, 1)
	assert.Equal(t, domain.RiskMedium, findings[0].Severity)
	assert.LessOrEqual(t, findings[0].Score, 1.0)
}

func TestCosineSimilarityBounds(t *testing.T) {
	assert.Equal(t, 0.0, cosineSimilarity("", "anything"))
	assert.Equal(t, 1.0, cosineSimilarity("alpha beta", "alpha beta"))
	assert.Equal(t, 0.0, cosineSimilarity("alpha beta", "gamma delta"))
}

func TestEmptyOriginalSkipsLengthCheck(t *testing.T) {
	assert.Empty(t, findByCategory(Analyze("", "some text"), "length_anomaly"))
}
