// Package structure classifies raw extracted paragraphs into typed sections.
// Detection is purely pattern-based (no model calls) to keep ingestion fast
// and deterministic.
package structure

import (
	"regexp"
	"strings"

	"github.com/fillwise/fillwise/internal/core/domain"
)

// DetectedSection is the output of structure detection for one logical
// section.
type DetectedSection struct {
	Type    domain.SectionType
	Heading string
	Text    string

	// ParagraphIndices trace the section back to its source paragraphs.
	ParagraphIndices []int

	// Depth is the numbering depth for clauses ("1.2.3" has depth 2).
	Depth int
}

// maxBoldHeadingLen bounds how long a bold paragraph may be and still count
// as a heading.
const maxBoldHeadingLen = 200

var (
	headingStyleRe  = regexp.MustCompile(`(?i)^Heading\s*\d+$`)
	preambleRe      = regexp.MustCompile(`(?i)^(THIS AGREEMENT|WHEREAS|RECITALS|PREAMBLE|BACKGROUND)`)
	appendixRe      = regexp.MustCompile(`(?i)^(Appendix|Schedule|Annex|Exhibit)\s+[A-Z0-9]`)
	numberedRe      = regexp.MustCompile(`(?i)^(\d+\.(\d+\.)*\d*|Article\s+\d+|Section\s+[\d.]+)`)
	definitionRe    = regexp.MustCompile(`(?i)\b(means|shall mean|is defined as|hereinafter referred to as)\b`)
	listRe          = regexp.MustCompile(`^(\s*[-•◦▪‣●]|\s*\([a-zA-Z0-9]{1,3}\)\s|\s*[ivxlIVXL]+\.\s)`)
	tableStyleRe    = regexp.MustCompile(`(?i)^Table`)
)

// textRules are the priority-ordered text classifiers applied after the
// style/position checks. New patterns are added here, not as control flow.
var textRules = []struct {
	re  *regexp.Regexp
	typ domain.SectionType
}{
	{appendixRe, domain.SectionAppendix},
	{numberedRe, domain.SectionClause},
	{definitionRe, domain.SectionDefinition},
	{listRe, domain.SectionList},
}

// Classify determines a single paragraph's section type. Rules apply in
// priority order and stop at the first match; the default is CLAUSE.
func Classify(p domain.Paragraph, isFirst bool) domain.SectionType {
	text := strings.TrimSpace(p.Text)

	if headingStyleRe.MatchString(p.StyleHint) {
		return domain.SectionHeading
	}
	if tableStyleRe.MatchString(p.StyleHint) {
		return domain.SectionTable
	}
	if isFirst && preambleRe.MatchString(text) {
		return domain.SectionPreamble
	}
	if appendixRe.MatchString(text) {
		return domain.SectionAppendix
	}
	if p.IsBold && len(text) < maxBoldHeadingLen {
		return domain.SectionHeading
	}
	for _, r := range textRules {
		if r.re.MatchString(text) {
			return r.typ
		}
	}
	return domain.SectionClause
}

// clauseDepth estimates hierarchy depth from the numbering pattern:
// "1.2.3" has two dots, so depth 2.
func clauseDepth(text string) int {
	m := numberedRe.FindString(text)
	if m == "" {
		return 0
	}
	return strings.Count(m, ".")
}

// Detect converts a flat paragraph list into an ordered section list.
//
// Adjacent non-heading, non-appendix paragraphs of the same type merge into
// one newline-joined section to avoid fragmenting continuous prose. Headings
// always start a new section and reset the heading context assigned to the
// sections that follow them.
func Detect(paragraphs []domain.Paragraph) []DetectedSection {
	if len(paragraphs) == 0 {
		return nil
	}

	var sections []DetectedSection
	currentHeading := ""

	for i, para := range paragraphs {
		secType := Classify(para, i == 0)
		depth := 0
		if secType == domain.SectionClause {
			depth = clauseDepth(para.Text)
		}

		if secType == domain.SectionHeading {
			currentHeading = para.Text
			sections = append(sections, DetectedSection{
				Type:             domain.SectionHeading,
				Heading:          para.Text,
				Text:             para.Text,
				ParagraphIndices: []int{para.Index},
			})
			continue
		}

		mergeable := secType != domain.SectionHeading && secType != domain.SectionAppendix
		if len(sections) > 0 && sections[len(sections)-1].Type == secType && mergeable {
			last := &sections[len(sections)-1]
			last.Text += "\n" + para.Text
			last.ParagraphIndices = append(last.ParagraphIndices, para.Index)
			continue
		}

		heading := currentHeading
		if secType == domain.SectionPreamble {
			heading = ""
		}
		sections = append(sections, DetectedSection{
			Type:             secType,
			Heading:          heading,
			Text:             para.Text,
			ParagraphIndices: []int{para.Index},
			Depth:            depth,
		})
	}

	return sections
}
