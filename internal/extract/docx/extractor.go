// Package docx extracts paragraph text, style hints, and table content from
// DOCX byte streams. Block elements are walked in body order so detected
// sections keep the document's original sequence.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driven"
)

var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor handles DOCX documents.
type Extractor struct{}

// New creates a new DOCX extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract parses the DOCX archive and returns its paragraphs in body order.
// Tables become single paragraphs with a Table style hint, cells tab-joined
// and rows newline-joined. Page count is unknown for DOCX and left at zero.
func (e *Extractor) Extract(_ context.Context, data []byte) (*driven.ExtractedContent, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a valid DOCX archive: %v", domain.ErrExtractionFailed, err)
	}

	raw, err := readDocumentXML(reader)
	if err != nil {
		return nil, err
	}

	paragraphs, err := parseBody(raw)
	if err != nil {
		return nil, err
	}

	return &driven.ExtractedContent{Paragraphs: paragraphs}, nil
}

func readDocumentXML(reader *zip.Reader) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: cannot open document.xml: %v", domain.ErrExtractionFailed, err)
		}
		defer rc.Close()

		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot read document.xml: %v", domain.ErrExtractionFailed, err)
		}
		return content, nil
	}
	return nil, fmt.Errorf("%w: archive has no word/document.xml", domain.ErrExtractionFailed)
}

type paragraphXML struct {
	Style struct {
		Val string `xml:"val,attr"`
	} `xml:"pPr>pStyle"`
	Runs []runXML `xml:"r"`
}

type runXML struct {
	Bold   *struct{} `xml:"rPr>b"`
	Italic *struct{} `xml:"rPr>i"`
	Text   []struct {
		Content string `xml:",chardata"`
	} `xml:"t"`
}

type tableXML struct {
	Rows []struct {
		Cells []struct {
			Paragraphs []paragraphXML `xml:"p"`
		} `xml:"tc"`
	} `xml:"tr"`
}

// parseBody walks body-level elements with a token stream so paragraphs and
// tables interleave in their original order. Empty paragraphs are skipped but
// still consume an index, matching the numbering the structure pass expects.
func parseBody(content []byte) ([]domain.Paragraph, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))

	var (
		paragraphs []domain.Paragraph
		index      int
		inBody     bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: malformed document.xml: %v", domain.ErrExtractionFailed, err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "body":
				inBody = true
			case "p":
				if !inBody {
					continue
				}
				var p paragraphXML
				if err := dec.DecodeElement(&p, &el); err != nil {
					return nil, fmt.Errorf("%w: malformed paragraph: %v", domain.ErrExtractionFailed, err)
				}
				if dp, ok := toParagraph(p, index); ok {
					paragraphs = append(paragraphs, dp)
				}
				index++
			case "tbl":
				if !inBody {
					continue
				}
				var t tableXML
				if err := dec.DecodeElement(&t, &el); err != nil {
					return nil, fmt.Errorf("%w: malformed table: %v", domain.ErrExtractionFailed, err)
				}
				if text := flattenTable(t); text != "" {
					paragraphs = append(paragraphs, domain.Paragraph{
						Text:      text,
						StyleHint: "Table",
						Index:     index,
					})
				}
				index++
			}
		case xml.EndElement:
			if el.Name.Local == "body" {
				inBody = false
			}
		}
	}
	return paragraphs, nil
}

func toParagraph(p paragraphXML, index int) (domain.Paragraph, bool) {
	text := strings.TrimSpace(runText(p.Runs))
	if text == "" {
		return domain.Paragraph{}, false
	}

	style := p.Style.Val
	if style == "" {
		style = "Normal"
	}

	bold := false
	for _, r := range p.Runs {
		if r.Bold != nil && strings.TrimSpace(joinRunText(r)) != "" {
			bold = true
			break
		}
	}

	return domain.Paragraph{
		Text:      text,
		StyleHint: style,
		IsBold:    bold,
		Index:     index,
	}, true
}

func runText(runs []runXML) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(joinRunText(r))
	}
	return b.String()
}

func joinRunText(r runXML) string {
	var b strings.Builder
	for _, t := range r.Text {
		b.WriteString(t.Content)
	}
	return b.String()
}

// flattenTable joins cell text with tabs and rows with newlines.
func flattenTable(t tableXML) string {
	var rows []string
	for _, row := range t.Rows {
		var cells []string
		for _, cell := range row.Cells {
			var parts []string
			for _, p := range cell.Paragraphs {
				if text := strings.TrimSpace(runText(p.Runs)); text != "" {
					parts = append(parts, text)
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		if strings.TrimSpace(strings.Join(cells, "")) != "" {
			rows = append(rows, strings.Join(cells, "\t"))
		}
	}
	return strings.Join(rows, "\n")
}
