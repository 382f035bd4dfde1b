package driving

import (
	"context"

	"github.com/fillwise/fillwise/internal/core/domain"
)

// AssemblyService builds the final document from approved rewrites.
type AssemblyService interface {
	// Assemble writes a DOCX combining every section's final text for a
	// COMPLETED job whose rewrites have all been approved or edited.
	// Returns the path of the exported file; each call produces a fresh
	// file.
	Assemble(ctx context.Context, jobID, actor string) (string, error)

	// LatestExport returns the path of the most recent export for a job,
	// or ErrNotFound when none exists.
	LatestExport(ctx context.Context, jobID string) (string, error)
}

// AuditQuery filters audit event listings.
type AuditQuery struct {
	EntityID string
	Limit    int
}

// AuditService exposes the tamper-evident audit trail.
type AuditService interface {
	// Log appends one event to the hash chain.
	Log(ctx context.Context, entry domain.AuditEntry) (*domain.AuditEvent, error)

	// Verify walks the full chain and returns the ID of the first broken
	// event, or ok=true when intact.
	Verify(ctx context.Context) (ok bool, brokenEventID string, err error)

	// List returns events newest first.
	List(ctx context.Context, q AuditQuery) ([]domain.AuditEvent, error)
}
