package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driven"
	"github.com/fillwise/fillwise/internal/core/ports/driving"
	"github.com/fillwise/fillwise/internal/export/docx"
	"github.com/fillwise/fillwise/internal/logger"
	"github.com/fillwise/fillwise/internal/prompt"
)

// Ensure AssemblySvc implements the interface.
var _ driving.AssemblyService = (*AssemblySvc)(nil)

// assemblyVersion is stamped into every export manifest.
const assemblyVersion = "3.0.0"

// AssemblySvc reconstructs the final DOCX from a completed job's approved
// rewrites. Text precedence per section is edited > rewritten > original.
type AssemblySvc struct {
	jobStore    driven.JobStore
	docStore    driven.DocumentStore
	reviewStore driven.ReviewStore
	audit       driving.AuditService
	cfg         domain.Config
}

// NewAssemblySvc creates a new assembly service.
func NewAssemblySvc(
	jobStore driven.JobStore,
	docStore driven.DocumentStore,
	reviewStore driven.ReviewStore,
	audit driving.AuditService,
	cfg domain.Config,
) *AssemblySvc {
	return &AssemblySvc{
		jobStore:    jobStore,
		docStore:    docStore,
		reviewStore: reviewStore,
		audit:       audit,
		cfg:         cfg,
	}
}

// Assemble builds and writes the export for a job. Every rewrite must carry
// an APPROVED or EDITED review; each call produces a fresh file.
func (s *AssemblySvc) Assemble(ctx context.Context, jobID, actor string) (string, error) {
	job, err := s.jobStore.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.Status != domain.JobCompleted {
		return "", fmt.Errorf("%w: job is %s, assembly requires %s",
			domain.ErrJobNotCompleted, job.Status, domain.JobCompleted)
	}

	sections, err := s.docStore.ListSections(ctx, job.DocumentID)
	if err != nil {
		return "", err
	}

	rewrites, err := s.jobStore.ListRewrites(ctx, jobID)
	if err != nil {
		return "", err
	}
	rewriteBySection := make(map[string]domain.SectionRewrite, len(rewrites))
	for _, rw := range rewrites {
		rewriteBySection[rw.SectionID] = rw
	}

	reviewByRewrite := make(map[string]domain.Review, len(rewrites))
	unreviewed := 0
	notApproved := 0
	for _, rw := range rewrites {
		review, err := s.reviewStore.GetReviewByRewrite(ctx, rw.ID)
		if err != nil {
			return "", err
		}
		if review == nil {
			unreviewed++
			continue
		}
		reviewByRewrite[rw.ID] = *review
		if review.Status != domain.ReviewApproved && review.Status != domain.ReviewEdited {
			notApproved++
		}
	}
	if unreviewed > 0 {
		return "", fmt.Errorf("%w: %d section(s) have not been reviewed yet",
			domain.ErrPendingReviews, unreviewed)
	}
	if notApproved > 0 {
		return "", fmt.Errorf("%w: %d section(s) have not been approved",
			domain.ErrPendingReviews, notApproved)
	}

	builder := docx.NewBuilder()
	for _, section := range sections {
		text := s.resolveText(section, rewriteBySection, reviewByRewrite)

		if section.Heading != "" && section.Heading == section.OriginalText {
			builder.AddHeading(1, text)
		} else {
			builder.AddMarkdown(text)
		}
	}
	s.appendManifest(builder, jobID, actor)

	if err := os.MkdirAll(s.cfg.ExportDir, 0o755); err != nil {
		return "", fmt.Errorf("creating export dir: %w", err)
	}
	outPath := filepath.Join(s.cfg.ExportDir,
		fmt.Sprintf("%s_%s.docx", jobID, uuid.New().String()[:8]))
	if err := builder.WriteFile(outPath); err != nil {
		return "", fmt.Errorf("writing export: %w", err)
	}

	s.auditLog(ctx, actor, jobID, outPath, len(sections))
	logger.Get().Info("assembly complete", "job_id", jobID, "path", outPath)
	return outPath, nil
}

// LatestExport returns the newest export file written for a job.
func (s *AssemblySvc) LatestExport(ctx context.Context, jobID string) (string, error) {
	if _, err := s.jobStore.GetJob(ctx, jobID); err != nil {
		return "", err
	}

	entries, err := os.ReadDir(s.cfg.ExportDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: no exports for job %s", domain.ErrNotFound, jobID)
		}
		return "", err
	}

	var newest string
	var newestTime time.Time
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, jobID+"_") || !strings.HasSuffix(name, ".docx") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest = name
			newestTime = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("%w: no exports for job %s", domain.ErrNotFound, jobID)
	}
	return filepath.Join(s.cfg.ExportDir, newest), nil
}

// resolveText picks the final text for one section. Sections without a
// rewrite in this job (or whose rewrite produced nothing) keep their
// original text. Any residual model metadata that slipped past the stream
// splitter is stripped here as well.
func (s *AssemblySvc) resolveText(
	section domain.Section,
	rewrites map[string]domain.SectionRewrite,
	reviews map[string]domain.Review,
) string {
	rw, ok := rewrites[section.ID]
	if !ok {
		return section.OriginalText
	}
	review, ok := reviews[rw.ID]
	if !ok {
		return section.OriginalText
	}

	var text string
	switch {
	case review.EditedText != "":
		text = review.EditedText
	case rw.RewrittenText != "":
		text = rw.RewrittenText
	default:
		return section.OriginalText
	}
	return prompt.StripTrailingMetadata(text, map[string]any{})
}

func (s *AssemblySvc) appendManifest(builder *docx.Builder, jobID, actor string) {
	manifest, _ := json.MarshalIndent(map[string]string{
		"job_id":           jobID,
		"assembled_by":     actor,
		"assembled_at":     time.Now().UTC().Format(time.RFC3339),
		"fillwise_version": assemblyVersion,
	}, "", "  ")

	builder.AddParagraph()
	builder.AddParagraph(docx.Run{Text: "Document Assembly Manifest", Bold: true})
	builder.AddParagraph(docx.Run{Text: string(manifest)})
}

func (s *AssemblySvc) auditLog(ctx context.Context, actor, jobID, path string, sections int) {
	if s.audit == nil {
		return
	}
	_, err := s.audit.Log(ctx, domain.AuditEntry{
		EventType:     "job.assembled",
		ActorUsername: actor,
		EntityType:    "RewriteJob",
		EntityID:      jobID,
		Payload: map[string]any{
			"export_path": path,
			"sections":    sections,
		},
	})
	if err != nil {
		logger.Get().Warn("audit write failed", "event_type", "job.assembled", "error", err)
	}
}
