package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillwise/fillwise/internal/core/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		para    domain.Paragraph
		isFirst bool
		want    domain.SectionType
	}{
		{"heading style", domain.Paragraph{Text: "Definitions", StyleHint: "Heading 1"}, false, domain.SectionHeading},
		{"heading style case insensitive", domain.Paragraph{Text: "Term", StyleHint: "HEADING2"}, false, domain.SectionHeading},
		{"table style", domain.Paragraph{Text: "Rent | Amount", StyleHint: "Table Grid"}, false, domain.SectionTable},
		{"preamble first paragraph", domain.Paragraph{Text: "THIS AGREEMENT is made on 1 March 2026"}, true, domain.SectionPreamble},
		{"whereas first paragraph", domain.Paragraph{Text: "WHEREAS the parties wish to agree terms"}, true, domain.SectionPreamble},
		{"preamble marker mid-document", domain.Paragraph{Text: "WHEREAS the parties wish to agree terms"}, false, domain.SectionClause},
		{"appendix", domain.Paragraph{Text: "Appendix A: Fee Schedule"}, false, domain.SectionAppendix},
		{"schedule", domain.Paragraph{Text: "Schedule 2 Payment Terms"}, false, domain.SectionAppendix},
		{"short bold heading", domain.Paragraph{Text: "TENANCY AGREEMENT", IsBold: true}, false, domain.SectionHeading},
		{"numbered clause", domain.Paragraph{Text: "3.1 The Tenant shall pay the rent monthly."}, false, domain.SectionClause},
		{"article clause", domain.Paragraph{Text: "Article 7 applies to renewals."}, false, domain.SectionClause},
		{"definition", domain.Paragraph{Text: `"Premises" means the property at 14 Marina Walk.`}, false, domain.SectionDefinition},
		{"bullet list", domain.Paragraph{Text: "- keep the garden tidy"}, false, domain.SectionList},
		{"lettered list", domain.Paragraph{Text: "(a) pay the deposit"}, false, domain.SectionList},
		{"plain prose defaults to clause", domain.Paragraph{Text: "The parties agree to act in good faith."}, false, domain.SectionClause},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.para, tt.isFirst))
		})
	}
}

func TestClassifyLongBoldIsNotHeading(t *testing.T) {
	long := make([]byte, maxBoldHeadingLen+1)
	for i := range long {
		long[i] = 'x'
	}
	got := Classify(domain.Paragraph{Text: string(long), IsBold: true}, false)
	assert.Equal(t, domain.SectionClause, got)
}

func TestClassifyNumberedWinsOverDefinition(t *testing.T) {
	// Priority order: a numbered clause containing a definition keyword is
	// still a clause.
	got := Classify(domain.Paragraph{Text: `2.1 "Term" means the period of tenancy.`}, false)
	assert.Equal(t, domain.SectionClause, got)
}

func TestDetectEmptyInput(t *testing.T) {
	assert.Nil(t, Detect(nil))
	assert.Nil(t, Detect([]domain.Paragraph{}))
}

func TestDetectAssignsHeadingContext(t *testing.T) {
	paras := []domain.Paragraph{
		{Text: "THIS AGREEMENT is made between the parties.", Index: 0},
		{Text: "1. TERM", StyleHint: "Heading 1", Index: 1},
		{Text: "1.1 The term is one year.", Index: 2},
		{Text: "2. RENT", StyleHint: "Heading 1", Index: 3},
		{Text: "2.1 Rent is AED 90,000 per year.", Index: 4},
	}

	sections := Detect(paras)
	require.Len(t, sections, 5)

	assert.Equal(t, domain.SectionPreamble, sections[0].Type)
	assert.Empty(t, sections[0].Heading)

	assert.Equal(t, domain.SectionHeading, sections[1].Type)
	assert.Equal(t, "1. TERM", sections[1].Heading)

	assert.Equal(t, domain.SectionClause, sections[2].Type)
	assert.Equal(t, "1. TERM", sections[2].Heading)

	assert.Equal(t, "2. RENT", sections[4].Heading)
}

func TestDetectMergesAdjacentSameType(t *testing.T) {
	paras := []domain.Paragraph{
		{Text: "The Landlord lets the Premises.", Index: 0},
		{Text: "The Tenant accepts the letting.", Index: 1},
		{Text: "(a) first obligation", Index: 2},
		{Text: "(b) second obligation", Index: 3},
	}

	sections := Detect(paras)
	require.Len(t, sections, 2)

	assert.Equal(t, domain.SectionClause, sections[0].Type)
	assert.Equal(t, "The Landlord lets the Premises.\nThe Tenant accepts the letting.", sections[0].Text)
	assert.Equal(t, []int{0, 1}, sections[0].ParagraphIndices)

	assert.Equal(t, domain.SectionList, sections[1].Type)
	assert.Equal(t, []int{2, 3}, sections[1].ParagraphIndices)
}

func TestDetectHeadingsNeverMerge(t *testing.T) {
	paras := []domain.Paragraph{
		{Text: "1. TERM", StyleHint: "Heading 1", Index: 0},
		{Text: "2. RENT", StyleHint: "Heading 1", Index: 1},
	}

	sections := Detect(paras)
	require.Len(t, sections, 2)
	assert.Equal(t, "1. TERM", sections[0].Text)
	assert.Equal(t, "2. RENT", sections[1].Text)
}

func TestDetectAppendicesNeverMerge(t *testing.T) {
	paras := []domain.Paragraph{
		{Text: "Appendix A: Fee Schedule", Index: 0},
		{Text: "Appendix B: Inventory", Index: 1},
	}

	sections := Detect(paras)
	require.Len(t, sections, 2)
	assert.Equal(t, domain.SectionAppendix, sections[0].Type)
	assert.Equal(t, domain.SectionAppendix, sections[1].Type)
}

func TestDetectClauseDepth(t *testing.T) {
	paras := []domain.Paragraph{
		{Text: "1. The first clause.", Index: 0},
		{Text: "Appendix A: Fees", Index: 1},
		{Text: "1.2.3 A deeply nested clause.", Index: 2},
	}

	sections := Detect(paras)
	require.Len(t, sections, 3)
	assert.Equal(t, 1, sections[0].Depth)
	assert.Equal(t, 2, sections[2].Depth)
}
