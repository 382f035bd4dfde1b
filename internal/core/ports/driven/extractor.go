package driven

import (
	"context"

	"github.com/fillwise/fillwise/internal/core/domain"
)

// TextExtractor converts raw document bytes into ordered paragraphs for
// structure detection. One implementation per supported MIME type.
type TextExtractor interface {
	// Extract returns the document's paragraphs in body order.
	Extract(ctx context.Context, data []byte) (*ExtractedContent, error)
}

// ExtractedContent is the output of text extraction.
type ExtractedContent struct {
	// Paragraphs are the non-empty paragraphs in body order.
	Paragraphs []domain.Paragraph

	// PageCount is the actual page count for PDFs; 0 when the format has no
	// native page notion (DOCX uses a paragraph-count heuristic instead).
	PageCount int
}

// CommandRunner executes an external command and returns its combined output.
// Used by the PDF fallback extractor; mockable in tests.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}
