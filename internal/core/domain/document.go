package domain

import "time"

// DocumentStatus tracks the ingestion lifecycle of a document.
type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentExtracting DocumentStatus = "extracting"
	DocumentMapping    DocumentStatus = "mapping"
	DocumentMapped     DocumentStatus = "mapped"
	DocumentFailed     DocumentStatus = "failed"
)

// SectionType enumerates recognized structural elements.
type SectionType string

const (
	SectionPreamble   SectionType = "preamble"
	SectionHeading    SectionType = "heading"
	SectionClause     SectionType = "clause"
	SectionDefinition SectionType = "definition"
	SectionTable      SectionType = "table"
	SectionList       SectionType = "list"
	SectionAppendix   SectionType = "appendix"
	SectionUnknown    SectionType = "unknown"
)

// Document is an uploaded legal document. Created on upload, mutated only by
// ingestion, never physically deleted.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Filename is the generated name under the upload directory.
	Filename string

	// OriginalFilename is the name the file was uploaded with.
	OriginalFilename string

	// MimeType is the validated MIME type of the source file.
	MimeType string

	// FileSizeBytes is the raw byte size of the source file.
	FileSizeBytes int64

	// FileHash is the SHA-256 of the raw bytes, used as the dedup key.
	FileHash string

	// PageCount is the page count for PDFs; 0 when unknown (DOCX).
	PageCount int

	// Status is the ingestion lifecycle state.
	Status DocumentStatus

	// ErrorMessage holds the truncated failure detail when Status is failed.
	ErrorMessage string

	// CreatedBy identifies the uploading actor.
	CreatedBy string

	// Deleted is the soft-delete flag.
	Deleted bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Section is a single extracted structural unit of a document. Sections form
// a shallow two-level tree via ParentID, rooted at headings. Immutable once
// created.
type Section struct {
	// ID is the unique identifier for the section.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// ParentID points at the most recent heading section, if any.
	ParentID string

	// SequenceNo is the 1-based, document-scoped processing order.
	SequenceNo int

	// Depth is derived from clause numbering ("1.2.3" has depth 2).
	Depth int

	// Type is the detected structural classification.
	Type SectionType

	// Heading is the text of the heading this section falls under.
	Heading string

	// OriginalText is the verbatim extracted text.
	OriginalText string

	// ContentHash is the SHA-256 of OriginalText.
	ContentHash string

	// CharCount caches len(OriginalText).
	CharCount int

	CreatedAt time.Time
}

// Paragraph is a raw extracted paragraph prior to structure detection.
type Paragraph struct {
	// Text is the paragraph content, trimmed.
	Text string

	// StyleHint is the source style name ("Heading 1", "Normal", ...).
	StyleHint string

	// IsBold reports whether any non-empty run in the paragraph is bold.
	IsBold bool

	// Index is the 0-based position within the source body.
	Index int
}
