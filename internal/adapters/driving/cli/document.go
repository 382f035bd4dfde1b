package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage uploaded documents",
	Long:  `Upload, ingest, and inspect legal documents.`,
}

var documentUploadCmd = &cobra.Command{
	Use:   "upload [path]",
	Short: "Upload a PDF or DOCX document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentUpload,
}

var documentIngestCmd = &cobra.Command{
	Use:   "ingest [doc-id]",
	Short: "Extract text and map the document structure",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentIngest,
}

// ingestCmd is a top-level shortcut for document ingest.
var ingestCmd = &cobra.Command{
	Use:   "ingest [doc-id]",
	Short: "Extract text and map a document's structure",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentIngest,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List uploaded documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentSectionsCmd = &cobra.Command{
	Use:   "sections [doc-id]",
	Short: "Show a document's detected sections",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentSections,
}

// uploadIngest triggers ingestion straight after a successful upload.
var uploadIngest bool

func init() {
	documentUploadCmd.Flags().BoolVar(&uploadIngest, "ingest", false, "Run ingestion immediately after upload")

	documentCmd.AddCommand(documentUploadCmd)
	documentCmd.AddCommand(documentIngestCmd)
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentSectionsCmd)
	rootCmd.AddCommand(documentCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runDocumentUpload(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	ctx := context.Background()
	doc, err := documentService.Upload(ctx, args[0], currentActor())
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	cmd.Printf("Uploaded %s\n", doc.OriginalFilename)
	cmd.Printf("  ID: %s\n", doc.ID)
	cmd.Printf("  Size: %d bytes\n", doc.FileSizeBytes)
	cmd.Printf("  Hash: %s\n", doc.FileHash)

	if !uploadIngest {
		cmd.Printf("\nRun 'fillwise document ingest %s' to map its structure.\n", doc.ID)
		return nil
	}

	if err := documentService.Ingest(ctx, doc.ID); err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	cmd.Println("Document ingested and mapped.")
	return nil
}

func runDocumentIngest(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	ctx := context.Background()
	if err := documentService.Ingest(ctx, args[0]); err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	doc, err := documentService.Get(ctx, args[0])
	if err != nil {
		return err
	}
	cmd.Printf("Document %s is %s", doc.ID, statusStyle(string(doc.Status)).Render(string(doc.Status)))
	if doc.PageCount > 0 {
		cmd.Printf(" (%d pages)", doc.PageCount)
	}
	cmd.Println()
	return nil
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	docs, err := documentService.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents uploaded yet.")
		return nil
	}

	for i := range docs {
		cmd.Printf("  %s  %s  %s\n", docs[i].ID,
			statusStyle(string(docs[i].Status)).Render(fmt.Sprintf("%-10s", docs[i].Status)),
			docs[i].OriginalFilename)
	}
	cmd.Printf("\nTotal: %d documents\n", len(docs))
	return nil
}

func runDocumentSections(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	sections, err := documentService.Sections(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list sections: %w", err)
	}

	if len(sections) == 0 {
		cmd.Println("No sections detected. Has the document been ingested?")
		return nil
	}

	for i := range sections {
		sec := &sections[i]
		cmd.Printf("%3d. %s %s\n", sec.SequenceNo, dimStyle.Render(fmt.Sprintf("[%s]", sec.Type)), sec.ID)
		cmd.Printf("     %s\n", truncateLine(sec.OriginalText, 96))
	}

	cmd.Printf("\nTotal: %d sections\n", len(sections))
	return nil
}

// truncateLine shortens text to a single display line.
func truncateLine(text string, max int) string {
	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			runes = runes[:i]
			break
		}
	}
	if len(runes) > max {
		return string(runes[:max-1]) + "…"
	}
	return string(runes)
}
