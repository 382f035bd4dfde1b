package driving

import (
	"context"

	"github.com/fillwise/fillwise/internal/core/domain"
)

// DocumentService manages document upload and ingestion.
type DocumentService interface {
	// Upload validates and stores a new source file, creating a PENDING
	// document record. Rejects unsupported MIME types, oversized files,
	// and duplicates of an existing non-deleted document.
	Upload(ctx context.Context, path, actor string) (*domain.Document, error)

	// Ingest runs the extraction and structure mapping pipeline for an
	// uploaded document. Failures mark the document FAILED with a
	// truncated error message; a FAILED document may be re-ingested.
	Ingest(ctx context.Context, documentID string) error

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// List returns all non-deleted documents, newest first.
	List(ctx context.Context) ([]domain.Document, error)

	// Sections returns a document's detected sections in sequence order.
	Sections(ctx context.Context, documentID string) ([]domain.Section, error)
}
