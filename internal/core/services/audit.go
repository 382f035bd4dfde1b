package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driven"
	"github.com/fillwise/fillwise/internal/core/ports/driving"
	"github.com/fillwise/fillwise/internal/logger"
)

// Ensure AuditService implements the interface.
var _ driving.AuditService = (*AuditService)(nil)

// hashTimeLayout fixes the timestamp precision that enters the event hash,
// so a round trip through storage reproduces the identical canonical form.
const hashTimeLayout = "2006-01-02T15:04:05.000000Z"

// AuditService writes the append-only, hash-chained audit trail. Writes are
// serialised by a mutex so the previous hash is read and the new event
// written atomically.
type AuditService struct {
	store driven.AuditStore
	mu    sync.Mutex
}

// NewAuditService creates a new audit service.
func NewAuditService(store driven.AuditStore) *AuditService {
	return &AuditService{store: store}
}

// Log appends one event to the chain.
func (s *AuditService) Log(ctx context.Context, entry domain.AuditEntry) (*domain.AuditEvent, error) {
	if entry.EventType == "" {
		return nil, fmt.Errorf("%w: event type is required", domain.ErrInvalidInput)
	}

	payloadJSON := ""
	if len(entry.Payload) > 0 {
		raw, err := json.Marshal(entry.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: payload not serialisable: %v", domain.ErrInvalidInput, err)
		}
		payloadJSON = string(raw)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	last, err := s.store.LastEvent(ctx)
	if err != nil {
		return nil, err
	}
	prevHash := ""
	if last != nil {
		prevHash = last.EventHash
	}

	createdAt := time.Now().UTC().Truncate(time.Microsecond)
	event := domain.AuditEvent{
		ID:            uuid.New().String(),
		EventType:     entry.EventType,
		ActorID:       entry.ActorID,
		ActorUsername: entry.ActorUsername,
		EntityType:    entry.EntityType,
		EntityID:      entry.EntityID,
		PayloadJSON:   payloadJSON,
		PrevHash:      prevHash,
		CreatedAt:     createdAt,
	}
	event.EventHash = ComputeEventHash(event)

	if err := s.store.AppendEvent(ctx, &event); err != nil {
		return nil, err
	}

	logger.Get().Debug("audit event written",
		"event_type", event.EventType,
		"entity_id", event.EntityID,
		"event_hash", event.EventHash)
	return &event, nil
}

// Verify walks the chain oldest first, recomputing every hash against the
// previous event's stored hash. Returns the first event whose stored hash
// does not match, including breaks introduced by reordering or deletion.
func (s *AuditService) Verify(ctx context.Context) (bool, string, error) {
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return false, "", err
	}

	prevHash := ""
	for _, event := range events {
		check := event
		check.PrevHash = prevHash
		if expected := ComputeEventHash(check); expected != event.EventHash {
			logger.Get().Error("audit chain broken",
				"event_id", event.ID,
				"expected_hash", expected,
				"stored_hash", event.EventHash)
			return false, event.ID, nil
		}
		prevHash = event.EventHash
	}
	return true, "", nil
}

// List returns events newest first, optionally filtered to one entity.
func (s *AuditService) List(ctx context.Context, q driving.AuditQuery) ([]domain.AuditEvent, error) {
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, err
	}

	var out []domain.AuditEvent
	for i := len(events) - 1; i >= 0; i-- {
		if q.EntityID != "" && events[i].EntityID != q.EntityID {
			continue
		}
		out = append(out, events[i])
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

// ComputeEventHash returns the SHA-256 hex digest of the event's canonical
// form: a sorted-key JSON object over the chained fields, with the creation
// time fixed to microsecond precision in UTC.
func ComputeEventHash(event domain.AuditEvent) string {
	components := map[string]string{
		"event_type":   event.EventType,
		"actor_id":     event.ActorID,
		"entity_type":  event.EntityType,
		"entity_id":    event.EntityID,
		"payload_json": event.PayloadJSON,
		"created_at":   event.CreatedAt.UTC().Format(hashTimeLayout),
		"prev_hash":    event.PrevHash,
	}
	canonical, _ := json.Marshal(components)
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
