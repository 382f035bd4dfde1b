package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/fillwise/fillwise/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to
// all pipeline store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.fillwise/data/fillwise.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".fillwise", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "fillwise.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// RulesetStore returns a RulesetStore interface backed by this store.
func (s *Store) RulesetStore() driven.RulesetStore {
	return &rulesetStore{store: s}
}

// JobStore returns a JobStore interface backed by this store.
func (s *Store) JobStore() driven.JobStore {
	return &jobStore{store: s}
}

// ReviewStore returns a ReviewStore interface backed by this store.
func (s *Store) ReviewStore() driven.ReviewStore {
	return &reviewStore{store: s}
}

// FindingStore returns a FindingStore interface backed by this store.
func (s *Store) FindingStore() driven.FindingStore {
	return &findingStore{store: s}
}

// AuditStore returns an AuditStore interface backed by this store.
func (s *Store) AuditStore() driven.AuditStore {
	return &auditStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents
			(id, filename, original_filename, mime_type, file_size_bytes, file_hash,
			 page_count, status, error_message, created_by, deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			original_filename = excluded.original_filename,
			mime_type = excluded.mime_type,
			file_size_bytes = excluded.file_size_bytes,
			file_hash = excluded.file_hash,
			page_count = excluded.page_count,
			status = excluded.status,
			error_message = excluded.error_message,
			created_by = excluded.created_by,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at
	`, doc.ID, doc.Filename, doc.OriginalFilename, doc.MimeType, doc.FileSizeBytes,
		doc.FileHash, doc.PageCount, string(doc.Status), doc.ErrorMessage,
		doc.CreatedBy, doc.Deleted, doc.CreatedAt, doc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

const documentColumns = `id, filename, original_filename, mime_type, file_size_bytes,
	file_hash, page_count, status, error_message, created_by, deleted, created_at, updated_at`

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id)

	return scanDocument(row)
}

// GetDocumentByHash retrieves the non-deleted document with the given file
// hash, or nil when none exists.
func (s *documentStore) GetDocumentByHash(ctx context.Context, hash string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE file_hash = ? AND deleted = 0", hash)

	doc, err := scanDocument(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil // No duplicate is valid
	}
	return doc, err
}

// ListDocuments returns all non-deleted documents, newest first.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE deleted = 0 ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// SaveSections persists a document's detected sections.
func (s *documentStore) SaveSections(ctx context.Context, sections []domain.Section) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sections
			(id, document_id, parent_id, sequence_no, depth, type, heading,
			 original_text, content_hash, char_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			parent_id = excluded.parent_id,
			sequence_no = excluded.sequence_no,
			depth = excluded.depth,
			type = excluded.type,
			heading = excluded.heading,
			original_text = excluded.original_text,
			content_hash = excluded.content_hash,
			char_count = excluded.char_count
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, sec := range sections {
		if sec.CreatedAt.IsZero() {
			sec.CreatedAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, sec.ID, sec.DocumentID, nullString(sec.ParentID),
			sec.SequenceNo, sec.Depth, string(sec.Type), sec.Heading,
			sec.OriginalText, sec.ContentHash, sec.CharCount, sec.CreatedAt); err != nil {
			return fmt.Errorf("saving section: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const sectionColumns = `id, document_id, parent_id, sequence_no, depth, type,
	heading, original_text, content_hash, char_count, created_at`

// GetSection retrieves a section by ID.
func (s *documentStore) GetSection(ctx context.Context, id string) (*domain.Section, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+sectionColumns+" FROM sections WHERE id = ?", id)

	var sec domain.Section
	var parentID sql.NullString
	var secType string
	var createdAt sql.NullTime
	if err := row.Scan(&sec.ID, &sec.DocumentID, &parentID, &sec.SequenceNo, &sec.Depth,
		&secType, &sec.Heading, &sec.OriginalText, &sec.ContentHash, &sec.CharCount, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning section: %w", err)
	}

	sec.ParentID = parentID.String
	sec.Type = domain.SectionType(secType)
	if createdAt.Valid {
		sec.CreatedAt = createdAt.Time
	}

	return &sec, nil
}

// ListSections returns a document's sections ordered by sequence number.
func (s *documentStore) ListSections(ctx context.Context, documentID string) ([]domain.Section, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+sectionColumns+" FROM sections WHERE document_id = ? ORDER BY sequence_no",
		documentID)
	if err != nil {
		return nil, fmt.Errorf("querying sections: %w", err)
	}
	defer rows.Close()

	var sections []domain.Section //nolint:prealloc // size unknown from query
	for rows.Next() {
		var sec domain.Section
		var parentID sql.NullString
		var secType string
		var createdAt sql.NullTime
		if err := rows.Scan(&sec.ID, &sec.DocumentID, &parentID, &sec.SequenceNo, &sec.Depth,
			&secType, &sec.Heading, &sec.OriginalText, &sec.ContentHash, &sec.CharCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning section: %w", err)
		}

		sec.ParentID = parentID.String
		sec.Type = domain.SectionType(secType)
		if createdAt.Valid {
			sec.CreatedAt = createdAt.Time
		}
		sections = append(sections, sec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sections: %w", err)
	}

	return sections, nil
}

// ==================== Ruleset Store ====================

// rulesetStore implements driven.RulesetStore.
type rulesetStore struct {
	store *Store
}

var _ driven.RulesetStore = (*rulesetStore)(nil)

// SaveRuleset stores or updates a ruleset.
func (s *rulesetStore) SaveRuleset(ctx context.Context, rs *domain.Ruleset) error {
	rulesJSON, err := json.Marshal(rs.Rules)
	if err != nil {
		return fmt.Errorf("marshalling rules: %w", err)
	}

	if rs.CreatedAt.IsZero() {
		rs.CreatedAt = time.Now().UTC()
	}
	if rs.UpdatedAt.IsZero() {
		rs.UpdatedAt = rs.CreatedAt
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO rulesets
			(id, name, description, jurisdiction, version, content_hash, active,
			 rules, created_by, deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			jurisdiction = excluded.jurisdiction,
			version = excluded.version,
			content_hash = excluded.content_hash,
			active = excluded.active,
			rules = excluded.rules,
			created_by = excluded.created_by,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at
	`, rs.ID, rs.Name, rs.Description, rs.Jurisdiction, rs.Version, rs.ContentHash,
		rs.Active, string(rulesJSON), rs.CreatedBy, rs.Deleted, rs.CreatedAt, rs.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving ruleset: %w", err)
	}
	return nil
}

const rulesetColumns = `id, name, description, jurisdiction, version, content_hash,
	active, rules, created_by, deleted, created_at, updated_at`

// GetRuleset retrieves a ruleset by ID.
func (s *rulesetStore) GetRuleset(ctx context.Context, id string) (*domain.Ruleset, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+rulesetColumns+" FROM rulesets WHERE id = ?", id)

	return scanRuleset(row)
}

// FindRuleset returns the ruleset with the given name and version, or nil
// when none exists. Soft-deleted rows do not count.
func (s *rulesetStore) FindRuleset(ctx context.Context, name, version string) (*domain.Ruleset, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+rulesetColumns+" FROM rulesets WHERE name = ? AND version = ? AND deleted = 0",
		name, version)

	rs, err := scanRuleset(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil // No collision is valid
	}
	return rs, err
}

// ListRulesets returns all non-deleted rulesets.
func (s *rulesetStore) ListRulesets(ctx context.Context) ([]domain.Ruleset, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+rulesetColumns+" FROM rulesets WHERE deleted = 0 ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("querying rulesets: %w", err)
	}
	defer rows.Close()

	var rulesets []domain.Ruleset //nolint:prealloc // size unknown from query
	for rows.Next() {
		rs, err := scanRulesetRows(rows)
		if err != nil {
			return nil, err
		}
		rulesets = append(rulesets, *rs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rulesets: %w", err)
	}

	return rulesets, nil
}

// SaveConflicts persists detected rule conflicts.
func (s *rulesetStore) SaveConflicts(ctx context.Context, conflicts []domain.RuleConflict) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rule_conflicts (id, ruleset_id, rule_a, rule_b, description, resolved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			resolved = excluded.resolved
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range conflicts {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.RulesetID, c.RuleA, c.RuleB,
			c.Description, c.Resolved, c.CreatedAt); err != nil {
			return fmt.Errorf("saving conflict: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ListConflicts returns a ruleset's conflict records.
func (s *rulesetStore) ListConflicts(ctx context.Context, rulesetID string) ([]domain.RuleConflict, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, ruleset_id, rule_a, rule_b, description, resolved, created_at
		FROM rule_conflicts WHERE ruleset_id = ?
	`, rulesetID)
	if err != nil {
		return nil, fmt.Errorf("querying conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []domain.RuleConflict //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.RuleConflict
		var createdAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.RulesetID, &c.RuleA, &c.RuleB,
			&c.Description, &c.Resolved, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning conflict: %w", err)
		}
		if createdAt.Valid {
			c.CreatedAt = createdAt.Time
		}
		conflicts = append(conflicts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conflicts: %w", err)
	}

	return conflicts, nil
}

// ==================== Helper Functions ====================

// nullString returns a nullable string value, NULL when empty.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// scanDocument scans a single document row.
func scanDocument(row *sql.Row) (*domain.Document, error) {
	var doc domain.Document
	var status string
	var createdAt, updatedAt sql.NullTime

	if err := row.Scan(&doc.ID, &doc.Filename, &doc.OriginalFilename, &doc.MimeType,
		&doc.FileSizeBytes, &doc.FileHash, &doc.PageCount, &status, &doc.ErrorMessage,
		&doc.CreatedBy, &doc.Deleted, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	}

	return &doc, nil
}

// scanDocumentRows scans a document from *sql.Rows.
func scanDocumentRows(rows *sql.Rows) (*domain.Document, error) {
	var doc domain.Document
	var status string
	var createdAt, updatedAt sql.NullTime

	if err := rows.Scan(&doc.ID, &doc.Filename, &doc.OriginalFilename, &doc.MimeType,
		&doc.FileSizeBytes, &doc.FileHash, &doc.PageCount, &status, &doc.ErrorMessage,
		&doc.CreatedBy, &doc.Deleted, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	}

	return &doc, nil
}

// scanRuleset scans a single ruleset row.
func scanRuleset(row *sql.Row) (*domain.Ruleset, error) {
	var rs domain.Ruleset
	var rulesJSON string
	var createdAt, updatedAt sql.NullTime

	if err := row.Scan(&rs.ID, &rs.Name, &rs.Description, &rs.Jurisdiction, &rs.Version,
		&rs.ContentHash, &rs.Active, &rulesJSON, &rs.CreatedBy, &rs.Deleted,
		&createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning ruleset: %w", err)
	}

	if err := json.Unmarshal([]byte(rulesJSON), &rs.Rules); err != nil {
		return nil, fmt.Errorf("unmarshaling rules: %w", err)
	}

	if createdAt.Valid {
		rs.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		rs.UpdatedAt = updatedAt.Time
	}

	return &rs, nil
}

// scanRulesetRows scans a ruleset from *sql.Rows.
func scanRulesetRows(rows *sql.Rows) (*domain.Ruleset, error) {
	var rs domain.Ruleset
	var rulesJSON string
	var createdAt, updatedAt sql.NullTime

	if err := rows.Scan(&rs.ID, &rs.Name, &rs.Description, &rs.Jurisdiction, &rs.Version,
		&rs.ContentHash, &rs.Active, &rulesJSON, &rs.CreatedBy, &rs.Deleted,
		&createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scanning ruleset: %w", err)
	}

	if err := json.Unmarshal([]byte(rulesJSON), &rs.Rules); err != nil {
		return nil, fmt.Errorf("unmarshaling rules: %w", err)
	}

	if createdAt.Valid {
		rs.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		rs.UpdatedAt = updatedAt.Time
	}

	return &rs, nil
}
