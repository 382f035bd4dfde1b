package domain

import "time"

// AuditEvent is one append-only record in the audit hash chain. EventHash is
// recomputable from the stored fields plus the previous event's EventHash;
// PrevHash of the first event is empty. The chain invariant
// events[n].PrevHash == events[n-1].EventHash is the tamper-detection
// contract.
type AuditEvent struct {
	// ID is the unique identifier for the event.
	ID string

	// EventType names the action ("document.uploaded", "job.created", ...).
	EventType string

	// ActorID and ActorUsername identify who performed the action.
	ActorID       string
	ActorUsername string

	// EntityType and EntityID identify what was acted on.
	EntityType string
	EntityID   string

	// PayloadJSON is the canonical JSON payload, empty when none.
	PayloadJSON string

	// EventHash is SHA-256 over the canonical form of this event's chained
	// fields (see services.ComputeEventHash).
	EventHash string

	// PrevHash is the previous event's EventHash, empty for the first event.
	PrevHash string

	CreatedAt time.Time
}

// AuditEntry is the caller-facing input for appending an audit event. The
// payload is canonicalised to sorted-key JSON before hashing.
type AuditEntry struct {
	EventType     string
	ActorID       string
	ActorUsername string
	EntityType    string
	EntityID      string
	Payload       map[string]any
}
