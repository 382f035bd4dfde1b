// Command fillwise is the entry point for the rewrite pipeline CLI.
package main

import (
	"fmt"
	"os"

	"github.com/fillwise/fillwise/internal/adapters/driven/config/file"
	"github.com/fillwise/fillwise/internal/adapters/driven/llm/ollama"
	"github.com/fillwise/fillwise/internal/adapters/driven/storage/sqlite"
	"github.com/fillwise/fillwise/internal/adapters/driving/cli"
	"github.com/fillwise/fillwise/internal/adapters/driving/watch"
	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driven"
	"github.com/fillwise/fillwise/internal/core/services"
	docxextract "github.com/fillwise/fillwise/internal/extract/docx"
	pdfextract "github.com/fillwise/fillwise/internal/extract/pdf"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := file.Load("")
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	store, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	extractors := map[string]driven.TextExtractor{
		domain.MimePDF:  pdfextract.New(pdfextract.ExecRunner{}),
		domain.MimeDOCX: docxextract.New(),
	}

	llm := ollama.NewClient(cfg)
	audit := services.NewAuditService(store.AuditStore())
	documents := services.NewIngestService(store.DocumentStore(), extractors, audit, cfg)
	rulesets := services.NewRulesetService(store.RulesetStore(), audit)
	jobs := services.NewOrchestrator(store.JobStore(), store.DocumentStore(),
		store.RulesetStore(), store.FindingStore(), llm, audit, cfg)
	reviews := services.NewReviewSvc(store.ReviewStore(), store.JobStore(),
		store.DocumentStore(), store.FindingStore(), audit)
	assembly := services.NewAssemblySvc(store.JobStore(), store.DocumentStore(),
		store.ReviewStore(), audit, cfg)

	cli.Configure(cli.Services{
		Documents: documents,
		Rulesets:  rulesets,
		Jobs:      jobs,
		Reviews:   reviews,
		Assembly:  assembly,
		Audit:     audit,
		Watcher:   watch.New(documents, cfg),
		Config:    cfg,
	})

	return cli.Execute()
}
