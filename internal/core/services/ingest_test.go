package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillwise/fillwise/internal/adapters/driven/storage/memory"
	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driven"
)

type fakeExtractor struct {
	content *driven.ExtractedContent
	err     error
}

func (f *fakeExtractor) Extract(context.Context, []byte) (*driven.ExtractedContent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.content, nil
}

func leaseParagraphs() []domain.Paragraph {
	return []domain.Paragraph{
		{Text: "THIS AGREEMENT is made between the parties below.", StyleHint: "Normal", Index: 0},
		{Text: "1. Term", StyleHint: "Heading 1", Index: 1},
		{Text: "1.1 The tenancy runs for twelve months.", StyleHint: "Normal", Index: 2},
	}
}

func testIngestService(t *testing.T, extractor driven.TextExtractor) (*IngestService, *memory.DocumentStore, string) {
	t.Helper()
	cfg := domain.DefaultConfig()
	cfg.UploadDir = t.TempDir()
	cfg.MaxUploadMB = 1

	docStore := memory.NewDocumentStore()
	svc := NewIngestService(
		docStore,
		map[string]driven.TextExtractor{domain.MimeDOCX: extractor},
		NewAuditService(memory.NewAuditStore()),
		cfg,
	)
	return svc, docStore, cfg.UploadDir
}

func writeTempDocx(t *testing.T, name string, size int) string {
	t.Helper()
	data := append([]byte("PK"), make([]byte, size)...)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestUploadStoresFileAndCreatesPendingDocument(t *testing.T) {
	svc, _, uploadDir := testIngestService(t, &fakeExtractor{})
	path := writeTempDocx(t, "lease.docx", 128)

	doc, err := svc.Upload(context.Background(), path, "counsel")
	require.NoError(t, err)

	assert.Equal(t, domain.DocumentPending, doc.Status)
	assert.Equal(t, "lease.docx", doc.OriginalFilename)
	assert.Equal(t, domain.MimeDOCX, doc.MimeType)
	assert.Len(t, doc.FileHash, 64)
	assert.Equal(t, "counsel", doc.CreatedBy)

	stored, err := os.ReadFile(filepath.Join(uploadDir, doc.Filename))
	require.NoError(t, err)
	assert.Len(t, stored, 130)
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	svc, _, _ := testIngestService(t, &fakeExtractor{})
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	_, err := svc.Upload(context.Background(), path, "counsel")
	assert.ErrorIs(t, err, domain.ErrMimeRejected)
}

func TestUploadRejectsMismatchedMagicBytes(t *testing.T) {
	svc, _, _ := testIngestService(t, &fakeExtractor{})
	path := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf at all"), 0o644))

	_, err := svc.Upload(context.Background(), path, "counsel")
	assert.ErrorIs(t, err, domain.ErrMimeRejected)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	svc, _, _ := testIngestService(t, &fakeExtractor{})
	path := writeTempDocx(t, "huge.docx", 2*1024*1024)

	_, err := svc.Upload(context.Background(), path, "counsel")
	assert.ErrorIs(t, err, domain.ErrTooLarge)
}

func TestUploadRejectsDuplicateContent(t *testing.T) {
	svc, _, _ := testIngestService(t, &fakeExtractor{})
	path := writeTempDocx(t, "lease.docx", 64)

	_, err := svc.Upload(context.Background(), path, "counsel")
	require.NoError(t, err)

	copyPath := filepath.Join(t.TempDir(), "lease-copy.docx")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(copyPath, data, 0o644))

	_, err = svc.Upload(context.Background(), copyPath, "counsel")
	assert.ErrorIs(t, err, domain.ErrDuplicateHash)
}

func TestIngestHappyPathMapsSections(t *testing.T) {
	extractor := &fakeExtractor{content: &driven.ExtractedContent{Paragraphs: leaseParagraphs()}}
	svc, docStore, _ := testIngestService(t, extractor)
	path := writeTempDocx(t, "lease.docx", 64)

	doc, err := svc.Upload(context.Background(), path, "counsel")
	require.NoError(t, err)
	require.NoError(t, svc.Ingest(context.Background(), doc.ID))

	updated, err := docStore.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentMapped, updated.Status)
	assert.Empty(t, updated.ErrorMessage)

	sections, err := svc.Sections(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, sections, 3)

	assert.Equal(t, domain.SectionPreamble, sections[0].Type)
	assert.Equal(t, 1, sections[0].SequenceNo)
	assert.Empty(t, sections[0].ParentID)

	heading := sections[1]
	assert.Equal(t, domain.SectionHeading, heading.Type)

	clause := sections[2]
	assert.Equal(t, domain.SectionClause, clause.Type)
	assert.Equal(t, heading.ID, clause.ParentID)
	assert.Equal(t, len(clause.OriginalText), clause.CharCount)
	assert.Len(t, clause.ContentHash, 64)
}

func TestIngestFailureMarksDocumentFailedWithTruncatedMessage(t *testing.T) {
	extractor := &fakeExtractor{err: errors.New(strings.Repeat("x", 2000))}
	svc, docStore, _ := testIngestService(t, extractor)
	path := writeTempDocx(t, "lease.docx", 64)

	doc, err := svc.Upload(context.Background(), path, "counsel")
	require.NoError(t, err)

	err = svc.Ingest(context.Background(), doc.ID)
	require.Error(t, err)

	updated, err := docStore.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentFailed, updated.Status)
	assert.Len(t, updated.ErrorMessage, errorMessageLimit)
}

func TestIngestFailedDocumentCanBeRetried(t *testing.T) {
	extractor := &fakeExtractor{err: errors.New("flaky extractor")}
	svc, docStore, _ := testIngestService(t, extractor)
	path := writeTempDocx(t, "lease.docx", 64)

	doc, err := svc.Upload(context.Background(), path, "counsel")
	require.NoError(t, err)
	require.Error(t, svc.Ingest(context.Background(), doc.ID))

	extractor.err = nil
	extractor.content = &driven.ExtractedContent{Paragraphs: leaseParagraphs()}
	require.NoError(t, svc.Ingest(context.Background(), doc.ID))

	updated, err := docStore.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentMapped, updated.Status)
	assert.Empty(t, updated.ErrorMessage)
}

func TestIngestRejectsAlreadyMappedDocument(t *testing.T) {
	extractor := &fakeExtractor{content: &driven.ExtractedContent{Paragraphs: leaseParagraphs()}}
	svc, _, _ := testIngestService(t, extractor)
	path := writeTempDocx(t, "lease.docx", 64)

	doc, err := svc.Upload(context.Background(), path, "counsel")
	require.NoError(t, err)
	require.NoError(t, svc.Ingest(context.Background(), doc.ID))

	err = svc.Ingest(context.Background(), doc.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngestEnforcesPageCapForDocx(t *testing.T) {
	var many []domain.Paragraph
	for i := 0; i < 41*100; i++ {
		many = append(many, domain.Paragraph{Text: "Clause text.", StyleHint: "Normal", Index: i})
	}
	extractor := &fakeExtractor{content: &driven.ExtractedContent{Paragraphs: many}}
	svc, docStore, _ := testIngestService(t, extractor)
	path := writeTempDocx(t, "long.docx", 64)

	doc, err := svc.Upload(context.Background(), path, "counsel")
	require.NoError(t, err)

	err = svc.Ingest(context.Background(), doc.ID)
	assert.ErrorIs(t, err, domain.ErrTooManyPages)

	updated, err := docStore.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentFailed, updated.Status)
}

func TestIngestUnknownDocument(t *testing.T) {
	svc, _, _ := testIngestService(t, &fakeExtractor{})
	err := svc.Ingest(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
