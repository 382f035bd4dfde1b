// Package watch implements the inbox auto-ingest loop. New PDF and DOCX
// files dropped into the inbox directory are uploaded and ingested; failures
// are logged and the loop keeps running.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driving"
	"github.com/fillwise/fillwise/internal/logger"
)

// defaultSettleInterval is how often a new file's size is polled while
// waiting for the producer to finish writing it.
const defaultSettleInterval = 500 * time.Millisecond

// defaultSettlePolls is how many consecutive equal sizes count as stable.
const defaultSettlePolls = 2

// Watcher drives the inbox loop.
type Watcher struct {
	docs     driving.DocumentService
	inboxDir string

	settleInterval time.Duration
	settlePolls    int
}

// New creates a watcher over the configured inbox directory.
func New(docs driving.DocumentService, cfg domain.Config) *Watcher {
	return &Watcher{
		docs:           docs,
		inboxDir:       cfg.InboxDir,
		settleInterval: defaultSettleInterval,
		settlePolls:    defaultSettlePolls,
	}
}

// Run watches the inbox until ctx is cancelled. Files already present when
// the watcher starts are processed first.
func (w *Watcher) Run(ctx context.Context) error {
	log := logger.Get()

	if err := os.MkdirAll(w.inboxDir, 0o755); err != nil {
		return fmt.Errorf("creating inbox directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.inboxDir); err != nil {
		return fmt.Errorf("watching %s: %w", w.inboxDir, err)
	}

	// Catch up on files that arrived before the watch started.
	entries, err := os.ReadDir(w.inboxDir)
	if err != nil {
		return fmt.Errorf("reading inbox: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.process(ctx, filepath.Join(w.inboxDir, entry.Name()))
	}

	log.Info("inbox_watch_started", "dir", w.inboxDir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			w.process(ctx, event.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn("inbox_watch_error", "error", err)
		}
	}
}

// process uploads and ingests one candidate file. All failures are logged,
// never returned, so one bad file cannot stop the loop.
func (w *Watcher) process(ctx context.Context, path string) {
	log := logger.Get()

	if !supportedExtension(path) {
		return
	}

	if err := w.waitForStableSize(ctx, path); err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Warn("inbox_file_unstable", "path", path, "error", err)
		}
		return
	}

	doc, err := w.docs.Upload(ctx, path, "inbox-watcher")
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateHash) {
			log.Info("inbox_duplicate_skipped", "path", path)
		} else {
			log.Warn("inbox_upload_failed", "path", path, "error", err)
		}
		return
	}

	if err := w.docs.Ingest(ctx, doc.ID); err != nil {
		log.Warn("inbox_ingest_failed", "document_id", doc.ID, "error", err)
		return
	}

	log.Info("inbox_document_ingested", "document_id", doc.ID, "path", path)

	// The source file is consumed once safely stored in the upload dir.
	if err := os.Remove(path); err != nil {
		log.Warn("inbox_cleanup_failed", "path", path, "error", err)
	}
}

// waitForStableSize polls the file until its size stops changing, so that
// partially written files are not ingested.
func (w *Watcher) waitForStableSize(ctx context.Context, path string) error {
	var lastSize int64 = -1
	stable := 0

	ticker := time.NewTicker(w.settleInterval)
	defer ticker.Stop()

	for {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat: %w", err)
		}
		if info.Size() == lastSize {
			stable++
			if stable >= w.settlePolls {
				return nil
			}
		} else {
			stable = 0
			lastSize = info.Size()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// supportedExtension reports whether the path looks like an ingestable
// document.
func supportedExtension(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".docx":
		return true
	default:
		return false
	}
}
