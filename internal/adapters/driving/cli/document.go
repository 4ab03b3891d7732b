package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aulalabs/knowledge-core/internal/core/domain"
)

var documentsJSON bool

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List the tenant's documents",
	RunE:  runDocuments,
}

var reprocessCmd = &cobra.Command{
	Use:   "reprocess [document-id]",
	Short: "Re-run chunking and embedding for a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runReprocess,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Delete a document, its chunks and its stored file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	documentsCmd.Flags().BoolVar(&documentsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(reprocessCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runDocuments(cmd *cobra.Command, _ []string) error {
	scope, err := tenantScope()
	if err != nil {
		return err
	}
	if documentStore == nil {
		return errors.New("document store not configured")
	}

	docs, err := documentStore.ListDocuments(context.Background(), scope)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}

	if documentsJSON {
		data, err := json.MarshalIndent(docs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal documents: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(docs) == 0 {
		cmd.Println("No documents.")
		return nil
	}

	for _, doc := range docs {
		cmd.Printf("  %s  %-11s  %q (%s, %d chunks)\n",
			doc.ID, doc.Status, doc.Title, doc.Category, len(doc.ChunkPreview))
		if doc.Status == domain.StatusError {
			cmd.Printf("      reason: %s\n", doc.Content)
		}
	}
	return nil
}

func runReprocess(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingestion service not configured")
	}

	if err := ingestService.Reprocess(context.Background(), args[0]); err != nil {
		return fmt.Errorf("reprocess failed: %w", err)
	}
	cmd.Printf("Reprocessing %s...\n", args[0])
	ingestService.Wait()

	doc, err := documentStore.GetDocument(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("checking result: %w", err)
	}
	cmd.Printf("Document %s is %s\n", doc.ID, doc.Status)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingestion service not configured")
	}

	if err := ingestService.Delete(context.Background(), args[0]); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	cmd.Printf("Deleted %s\n", args[0])
	return nil
}
