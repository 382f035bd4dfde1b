package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driven"
	"github.com/fillwise/fillwise/internal/core/ports/driving"
	"github.com/fillwise/fillwise/internal/logger"
	"github.com/fillwise/fillwise/internal/structure"
)

// Ensure IngestService implements the interface.
var _ driving.DocumentService = (*IngestService)(nil)

// errorMessageLimit caps the stored failure message.
const errorMessageLimit = 1000

// paragraphsPerPage approximates DOCX page count for the page cap, since the
// format has no fixed pagination until rendering.
const paragraphsPerPage = 40

// IngestService handles document upload and the extraction pipeline.
type IngestService struct {
	docStore   driven.DocumentStore
	extractors map[string]driven.TextExtractor
	audit      driving.AuditService
	cfg        domain.Config
}

// NewIngestService creates a new ingest service. Extractors are keyed by the
// MIME type they handle.
func NewIngestService(
	docStore driven.DocumentStore,
	extractors map[string]driven.TextExtractor,
	audit driving.AuditService,
	cfg domain.Config,
) *IngestService {
	return &IngestService{
		docStore:   docStore,
		extractors: extractors,
		audit:      audit,
		cfg:        cfg,
	}
}

// Upload validates a source file and registers it as a PENDING document.
func (s *IngestService) Upload(ctx context.Context, path, actor string) (*domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read %s: %v", domain.ErrInvalidInput, path, err)
	}

	mimeType, err := s.resolveMIME(path, data)
	if err != nil {
		return nil, err
	}

	if maxBytes := int64(s.cfg.MaxUploadMB) * 1024 * 1024; int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: file is %d bytes, limit is %d MB",
			domain.ErrTooLarge, len(data), s.cfg.MaxUploadMB)
	}

	sum := sha256.Sum256(data)
	fileHash := hex.EncodeToString(sum[:])
	if existing, err := s.docStore.GetDocumentByHash(ctx, fileHash); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("%w: identical file already uploaded as document %s",
			domain.ErrDuplicateHash, existing.ID)
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	id := uuid.New().String()
	storedName := id + strings.ToLower(filepath.Ext(path))
	if err := os.WriteFile(filepath.Join(s.cfg.UploadDir, storedName), data, 0o644); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:               id,
		Filename:         storedName,
		OriginalFilename: filepath.Base(path),
		MimeType:         mimeType,
		FileSizeBytes:    int64(len(data)),
		FileHash:         fileHash,
		Status:           domain.DocumentPending,
		CreatedBy:        actor,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, err
	}

	s.auditLog(ctx, actor, "document.uploaded", doc.ID, map[string]any{
		"filename": doc.OriginalFilename,
		"mime":     doc.MimeType,
		"bytes":    doc.FileSizeBytes,
	})
	logger.Get().Info("document uploaded",
		"document_id", doc.ID, "filename", doc.OriginalFilename, "bytes", doc.FileSizeBytes)
	return doc, nil
}

// Ingest runs extraction and structure mapping for an uploaded document.
// On any failure the document is marked FAILED with a truncated message and
// the error is returned; a FAILED document may be ingested again.
func (s *IngestService) Ingest(ctx context.Context, documentID string) error {
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.Status != domain.DocumentPending && doc.Status != domain.DocumentFailed {
		return fmt.Errorf("%w: document is %s, ingestion requires %s or %s",
			domain.ErrInvalidInput, doc.Status, domain.DocumentPending, domain.DocumentFailed)
	}

	if err := s.pipeline(ctx, doc); err != nil {
		doc.Status = domain.DocumentFailed
		doc.ErrorMessage = truncate(err.Error(), errorMessageLimit)
		doc.UpdatedAt = time.Now().UTC()
		if saveErr := s.docStore.SaveDocument(ctx, doc); saveErr != nil {
			logger.Get().Error("cannot record ingestion failure",
				"document_id", doc.ID, "error", saveErr)
		}
		logger.Get().Error("ingestion failed", "document_id", doc.ID, "error", err)
		return err
	}
	return nil
}

func (s *IngestService) pipeline(ctx context.Context, doc *domain.Document) error {
	if err := s.setStatus(ctx, doc, domain.DocumentExtracting); err != nil {
		return err
	}
	logger.Get().Info("ingestion started", "document_id", doc.ID)

	data, err := os.ReadFile(filepath.Join(s.cfg.UploadDir, doc.Filename))
	if err != nil {
		return fmt.Errorf("%w: stored file unreadable: %v", domain.ErrExtractionFailed, err)
	}

	extractor, ok := s.extractors[doc.MimeType]
	if !ok {
		return fmt.Errorf("%w: no extractor for %s", domain.ErrMimeRejected, doc.MimeType)
	}
	content, err := extractor.Extract(ctx, data)
	if err != nil {
		return err
	}

	effectivePages := content.PageCount
	if effectivePages == 0 {
		effectivePages = max(1, len(content.Paragraphs)/paragraphsPerPage)
	}
	if effectivePages > s.cfg.MaxDocumentPages {
		return fmt.Errorf("%w: document has %d pages, limit is %d",
			domain.ErrTooManyPages, effectivePages, s.cfg.MaxDocumentPages)
	}
	doc.PageCount = content.PageCount

	if err := s.setStatus(ctx, doc, domain.DocumentMapping); err != nil {
		return err
	}

	detected := structure.Detect(content.Paragraphs)
	if err := s.persistSections(ctx, doc, detected); err != nil {
		return err
	}

	doc.ErrorMessage = ""
	if err := s.setStatus(ctx, doc, domain.DocumentMapped); err != nil {
		return err
	}

	s.auditLog(ctx, doc.CreatedBy, "document.ingested", doc.ID, map[string]any{
		"sections": len(detected),
		"pages":    effectivePages,
	})
	logger.Get().Info("ingestion complete", "document_id", doc.ID, "sections", len(detected))
	return nil
}

// persistSections stores detected sections with a two-level hierarchy:
// each non-heading section is parented to the most recent heading.
func (s *IngestService) persistSections(ctx context.Context, doc *domain.Document, detected []structure.DetectedSection) error {
	now := time.Now().UTC()
	sections := make([]domain.Section, len(detected))
	currentHeadingID := ""

	for i, d := range detected {
		id := uuid.New().String()
		sum := sha256.Sum256([]byte(d.Text))
		section := domain.Section{
			ID:           id,
			DocumentID:   doc.ID,
			SequenceNo:   i + 1,
			Depth:        d.Depth,
			Type:         d.Type,
			Heading:      d.Heading,
			OriginalText: d.Text,
			ContentHash:  hex.EncodeToString(sum[:]),
			CharCount:    len(d.Text),
			CreatedAt:    now,
		}
		if d.Type == domain.SectionHeading {
			currentHeadingID = id
		} else {
			section.ParentID = currentHeadingID
		}
		sections[i] = section
	}
	return s.docStore.SaveSections(ctx, sections)
}

// Get retrieves a document by ID.
func (s *IngestService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.docStore.GetDocument(ctx, documentID)
}

// List returns all non-deleted documents, newest first.
func (s *IngestService) List(ctx context.Context) ([]domain.Document, error) {
	return s.docStore.ListDocuments(ctx)
}

// Sections returns a document's sections in sequence order.
func (s *IngestService) Sections(ctx context.Context, documentID string) ([]domain.Section, error) {
	if _, err := s.docStore.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.docStore.ListSections(ctx, documentID)
}

func (s *IngestService) resolveMIME(path string, data []byte) (string, error) {
	var mimeType string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		if len(data) < 4 || string(data[:4]) != "%PDF" {
			return "", fmt.Errorf("%w: file does not look like a PDF", domain.ErrMimeRejected)
		}
		mimeType = domain.MimePDF
	case ".docx":
		if len(data) < 2 || string(data[:2]) != "PK" {
			return "", fmt.Errorf("%w: file does not look like a DOCX archive", domain.ErrMimeRejected)
		}
		mimeType = domain.MimeDOCX
	default:
		return "", fmt.Errorf("%w: unsupported file type %q", domain.ErrMimeRejected, filepath.Ext(path))
	}

	for _, allowed := range s.cfg.AllowedMimeTypes {
		if mimeType == allowed {
			return mimeType, nil
		}
	}
	return "", fmt.Errorf("%w: %s is not an accepted type", domain.ErrMimeRejected, mimeType)
}

func (s *IngestService) setStatus(ctx context.Context, doc *domain.Document, status domain.DocumentStatus) error {
	doc.Status = status
	doc.UpdatedAt = time.Now().UTC()
	return s.docStore.SaveDocument(ctx, doc)
}

func (s *IngestService) auditLog(ctx context.Context, actor, eventType, entityID string, payload map[string]any) {
	if s.audit == nil {
		return
	}
	_, err := s.audit.Log(ctx, domain.AuditEntry{
		EventType:     eventType,
		ActorUsername: actor,
		EntityType:    "Document",
		EntityID:      entityID,
		Payload:       payload,
	})
	if err != nil {
		logger.Get().Warn("audit write failed", "event_type", eventType, "error", err)
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
