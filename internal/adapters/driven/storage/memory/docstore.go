// Package memory provides in-memory store implementations, used by tests
// and as lightweight doubles wherever persistence is not required.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	sections  map[string][]domain.Section
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		sections:  make(map[string][]domain.Section),
	}
}

// SaveDocument stores or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// GetDocumentByHash retrieves the non-deleted document with the given hash.
func (s *DocumentStore) GetDocumentByHash(_ context.Context, hash string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id := range s.documents {
		doc := s.documents[id]
		if doc.FileHash == hash && !doc.Deleted {
			return &doc, nil
		}
	}
	return nil, nil
}

// ListDocuments returns all non-deleted documents, newest first.
func (s *DocumentStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Document
	for id := range s.documents {
		if doc := s.documents[id]; !doc.Deleted {
			result = append(result, doc)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// SaveSections persists a document's detected sections.
func (s *DocumentStore) SaveSections(_ context.Context, sections []domain.Section) error {
	if len(sections) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	docID := sections[0].DocumentID
	s.sections[docID] = append([]domain.Section(nil), sections...)
	return nil
}

// GetSection retrieves a section by ID.
func (s *DocumentStore) GetSection(_ context.Context, id string) (*domain.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sections := range s.sections {
		for _, section := range sections {
			if section.ID == id {
				return &section, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

// ListSections returns a document's sections ordered by sequence number.
func (s *DocumentStore) ListSections(_ context.Context, documentID string) ([]domain.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sections := append([]domain.Section(nil), s.sections[documentID]...)
	sort.Slice(sections, func(i, j int) bool {
		return sections[i].SequenceNo < sections[j].SequenceNo
	})
	return sections, nil
}
