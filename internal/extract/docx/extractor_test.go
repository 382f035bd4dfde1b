package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillwise/fillwise/internal/core/domain"
)

const sampleDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p>
      <w:pPr><w:pStyle w:val="Heading1"/></w:pPr>
      <w:r><w:t>1. Definitions</w:t></w:r>
    </w:p>
    <w:p>
      <w:r><w:rPr><w:b/></w:rPr><w:t>Premises</w:t></w:r>
      <w:r><w:t xml:space="preserve"> means the property at 1 Main Street.</w:t></w:r>
    </w:p>
    <w:p></w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Item</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>Amount</w:t></w:r></w:p></w:tc>
      </w:tr>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Deposit</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>1500</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
    <w:p>
      <w:r><w:t>The tenant shall keep the premises in good repair.</w:t></w:r>
    </w:p>
  </w:body>
</w:document>`

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractParagraphsInBodyOrder(t *testing.T) {
	content, err := New().Extract(context.Background(), buildDocx(t, sampleDocumentXML))
	require.NoError(t, err)
	require.Len(t, content.Paragraphs, 4)

	heading := content.Paragraphs[0]
	assert.Equal(t, "1. Definitions", heading.Text)
	assert.Equal(t, "Heading1", heading.StyleHint)
	assert.Equal(t, 0, heading.Index)

	body := content.Paragraphs[1]
	assert.Equal(t, "Premises means the property at 1 Main Street.", body.Text)
	assert.Equal(t, "Normal", body.StyleHint)
	assert.True(t, body.IsBold)

	table := content.Paragraphs[2]
	assert.Equal(t, "Table", table.StyleHint)
	assert.Equal(t, "Item\tAmount\nDeposit\t1500", table.Text)

	last := content.Paragraphs[3]
	assert.Equal(t, "The tenant shall keep the premises in good repair.", last.Text)
}

func TestExtractSkipsEmptyParagraphsButKeepsIndexes(t *testing.T) {
	content, err := New().Extract(context.Background(), buildDocx(t, sampleDocumentXML))
	require.NoError(t, err)

	// The empty third paragraph consumes index 2; the table lands on 3.
	assert.Equal(t, 3, content.Paragraphs[2].Index)
	assert.Equal(t, 4, content.Paragraphs[3].Index)
}

func TestExtractPageCountIsZeroForDocx(t *testing.T) {
	content, err := New().Extract(context.Background(), buildDocx(t, sampleDocumentXML))
	require.NoError(t, err)
	assert.Zero(t, content.PageCount)
}

func TestExtractRejectsNonZipInput(t *testing.T) {
	_, err := New().Extract(context.Background(), []byte("plain text, not a zip"))
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}

func TestExtractRejectsArchiveWithoutDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<styles/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = New().Extract(context.Background(), buf.Bytes())
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}
