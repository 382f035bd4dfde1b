// Package pdf extracts text from PDF byte streams.
//
// Page count and document validation come from pdfcpu. Text comes from
// poppler's pdftotext, invoked through a CommandRunner so tests can stub the
// binary. Layout mode is tried first because it preserves clause numbering
// best; raw mode is the fallback.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driven"
	"github.com/fillwise/fillwise/internal/logger"
)

var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor handles PDF documents.
type Extractor struct {
	runner driven.CommandRunner
}

// New creates a PDF extractor that shells out through the given runner.
func New(runner driven.CommandRunner) *Extractor {
	return &Extractor{runner: runner}
}

// Extract returns the PDF's text as line paragraphs plus the actual page
// count. Page boundaries arrive from pdftotext as form feeds; each non-empty
// line becomes one paragraph so structure detection can classify clause by
// clause.
func (e *Extractor) Extract(ctx context.Context, data []byte) (*driven.ExtractedContent, error) {
	pageCount, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: not a readable PDF: %v", domain.ErrExtractionFailed, err)
	}

	tmp, err := os.CreateTemp("", "fillwise-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}
	tmp.Close()

	text, err := e.extractText(ctx, tmp.Name())
	if err != nil {
		return nil, err
	}

	return &driven.ExtractedContent{
		Paragraphs: linesToParagraphs(text),
		PageCount:  pageCount,
	}, nil
}

func (e *Extractor) extractText(ctx context.Context, path string) (string, error) {
	out, layoutErr := e.runner.Run(ctx, "pdftotext", "-layout", path, "-")
	if layoutErr == nil {
		return string(out), nil
	}
	logger.Get().Warn("pdftotext layout mode failed, retrying raw",
		"path", filepath.Base(path), "error", layoutErr)

	out, rawErr := e.runner.Run(ctx, "pdftotext", "-raw", path, "-")
	if rawErr == nil {
		return string(out), nil
	}
	return "", fmt.Errorf("%w: text extraction failed in both modes: %v", domain.ErrExtractionFailed, rawErr)
}

// linesToParagraphs converts pdftotext output to paragraphs. Form feeds only
// mark page breaks; the paragraph index runs across the whole document.
func linesToParagraphs(text string) []domain.Paragraph {
	var paragraphs []domain.Paragraph
	idx := 0
	for _, page := range strings.Split(text, "\f") {
		for _, line := range strings.Split(page, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			paragraphs = append(paragraphs, domain.Paragraph{
				Text:      line,
				StyleHint: "Normal",
				Index:     idx,
			})
			idx++
		}
	}
	return paragraphs
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes the named command and returns its combined stdout.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
