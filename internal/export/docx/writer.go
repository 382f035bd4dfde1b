// Package docx builds Word documents from scratch. It writes the minimal
// OOXML package directly (content types, relationships, styles, body) so
// assembly needs no external tooling.
//
// Rewritten text often carries residual Markdown from the model. AddMarkdown
// converts headings, lists, bold and italic spans into proper runs and
// strips fences, rules, and inline code markers.
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Run is a span of text with inline formatting.
type Run struct {
	Text   string
	Bold   bool
	Italic bool
}

// Builder accumulates paragraphs and serialises them to a DOCX package.
type Builder struct {
	body strings.Builder
}

// NewBuilder returns an empty document builder.
func NewBuilder() *Builder {
	return &Builder{}
}

var (
	headingRe    = regexp.MustCompile(`^(#{1,6})\s+(.*)`)
	bulletRe     = regexp.MustCompile(`^[-*]\s+(.*)`)
	numberedRe   = regexp.MustCompile(`^\d+\.\s+(.*)`)
	hrRe         = regexp.MustCompile(`^---+\s*$`)
	fenceRe      = regexp.MustCompile("^```")
	inlineCodeRe = regexp.MustCompile("`([^`]+)`")
	inlineSpanRe = regexp.MustCompile(`\*\*\*(.+?)\*\*\*|\*\*(.+?)\*\*|\*(.+?)\*`)
)

// AddHeading appends a heading paragraph. Levels above 4 clamp to 4.
func (b *Builder) AddHeading(level int, text string) {
	if level < 1 {
		level = 1
	}
	if level > 4 {
		level = 4
	}
	clean := strings.TrimSpace(strings.TrimLeft(strings.ReplaceAll(text, "**", ""), "# "))
	b.AddStyled(fmt.Sprintf("Heading%d", level), Run{Text: clean})
}

// AddParagraph appends a Normal-style paragraph.
func (b *Builder) AddParagraph(runs ...Run) {
	b.AddStyled("", runs...)
}

// AddStyled appends a paragraph with the given paragraph style id.
func (b *Builder) AddStyled(style string, runs ...Run) {
	b.body.WriteString("<w:p>")
	if style != "" {
		fmt.Fprintf(&b.body, `<w:pPr><w:pStyle w:val="%s"/></w:pPr>`, style)
	}
	for _, r := range runs {
		b.body.WriteString("<w:r>")
		if r.Bold || r.Italic {
			b.body.WriteString("<w:rPr>")
			if r.Bold {
				b.body.WriteString("<w:b/>")
			}
			if r.Italic {
				b.body.WriteString("<w:i/>")
			}
			b.body.WriteString("</w:rPr>")
		}
		fmt.Fprintf(&b.body, `<w:t xml:space="preserve">%s</w:t>`, escape(r.Text))
		b.body.WriteString("</w:r>")
	}
	b.body.WriteString("</w:p>")
}

// AddMarkdown renders a text block line by line, converting Markdown
// structure to paragraph styles and inline markers to formatted runs.
// Horizontal rules, blank lines, and fenced code blocks are dropped.
func (b *Builder) AddMarkdown(text string) {
	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if hrRe.MatchString(line) {
			continue
		}
		if fenceRe.MatchString(strings.TrimSpace(line)) {
			for i++; i < len(lines) && !fenceRe.MatchString(strings.TrimSpace(lines[i])); i++ {
			}
			continue
		}
		if m := headingRe.FindStringSubmatch(line); m != nil {
			b.AddHeading(len(m[1]), m[2])
			continue
		}
		if m := bulletRe.FindStringSubmatch(line); m != nil {
			b.AddStyled("ListBullet", inlineRuns(m[1])...)
			continue
		}
		if m := numberedRe.FindStringSubmatch(line); m != nil {
			b.AddStyled("ListNumber", inlineRuns(m[1])...)
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.AddParagraph(inlineRuns(line)...)
	}
}

// inlineRuns splits a line into runs, resolving ***bold italic***, **bold**,
// and *italic* spans. Inline code backticks are stripped first.
func inlineRuns(line string) []Run {
	line = inlineCodeRe.ReplaceAllString(line, "$1")

	var runs []Run
	last := 0
	for _, m := range inlineSpanRe.FindAllStringSubmatchIndex(line, -1) {
		if m[0] > last {
			runs = append(runs, Run{Text: line[last:m[0]]})
		}
		switch {
		case m[2] >= 0:
			runs = append(runs, Run{Text: line[m[2]:m[3]], Bold: true, Italic: true})
		case m[4] >= 0:
			runs = append(runs, Run{Text: line[m[4]:m[5]], Bold: true})
		case m[6] >= 0:
			runs = append(runs, Run{Text: line[m[6]:m[7]], Italic: true})
		}
		last = m[1]
	}
	if last < len(line) {
		runs = append(runs, Run{Text: line[last:]})
	}
	if len(runs) == 0 {
		runs = []Run{{}}
	}
	return runs
}

// Bytes serialises the accumulated document as a DOCX package.
func (b *Builder) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	files := []struct {
		name, content string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{"word/styles.xml", stylesXML},
		{"word/document.xml", documentHeader + b.body.String() + documentFooter},
	}
	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", f.name, err)
		}
		if _, err := w.Write([]byte(f.content)); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile serialises the document and writes it to path.
func (b *Builder) WriteFile(path string) error {
	data, err := b.Bytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escape(s string) string {
	return xmlEscaper.Replace(s)
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
  <Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
</Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const documentRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

const documentHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

const documentFooter = `</w:body></w:document>`

const stylesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:docDefaults>
    <w:rPrDefault><w:rPr><w:rFonts w:ascii="Times New Roman" w:hAnsi="Times New Roman"/><w:sz w:val="24"/></w:rPr></w:rPrDefault>
  </w:docDefaults>
  <w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>
  <w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:pPr><w:outlineLvl w:val="0"/></w:pPr><w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>
  <w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:pPr><w:outlineLvl w:val="1"/></w:pPr><w:rPr><w:b/><w:sz w:val="28"/></w:rPr></w:style>
  <w:style w:type="paragraph" w:styleId="Heading3"><w:name w:val="heading 3"/><w:basedOn w:val="Normal"/><w:pPr><w:outlineLvl w:val="2"/></w:pPr><w:rPr><w:b/><w:sz w:val="26"/></w:rPr></w:style>
  <w:style w:type="paragraph" w:styleId="Heading4"><w:name w:val="heading 4"/><w:basedOn w:val="Normal"/><w:pPr><w:outlineLvl w:val="3"/></w:pPr><w:rPr><w:b/></w:rPr></w:style>
  <w:style w:type="paragraph" w:styleId="ListBullet"><w:name w:val="List Bullet"/><w:basedOn w:val="Normal"/><w:pPr><w:ind w:left="360"/></w:pPr></w:style>
  <w:style w:type="paragraph" w:styleId="ListNumber"><w:name w:val="List Number"/><w:basedOn w:val="Normal"/><w:pPr><w:ind w:left="360"/></w:pPr></w:style>
</w:styles>`
