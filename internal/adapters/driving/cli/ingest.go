package cli

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aulalabs/knowledge-core/internal/core/ports/driving"
)

var (
	ingestTitle    string
	ingestCategory string
	ingestMIME     string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest a document into the knowledge base",
	Long: `Uploads a file, extracts its text, splits it into chunks and
embeds each chunk for semantic search. Processing runs in the
background; the command waits for it to finish before exiting.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestTitle, "title", "t", "", "document title (defaults to the file name)")
	ingestCmd.Flags().StringVarP(&ingestCategory, "category", "c", "", "document category")
	ingestCmd.Flags().StringVar(&ingestMIME, "mime", "", "content type (detected from the extension when empty)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	scope, err := tenantScope()
	if err != nil {
		return err
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	fileName := filepath.Base(path)
	title := ingestTitle
	if title == "" {
		title = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	}
	mimeType := ingestMIME
	if mimeType == "" {
		mimeType = detectMIME(fileName)
	}

	if ingestService == nil {
		return errors.New("ingestion service not configured")
	}

	doc, err := ingestService.Ingest(context.Background(), driving.UploadRequest{
		TeacherID: scope.TeacherID,
		SchoolID:  scope.SchoolID,
		Title:     title,
		Category:  ingestCategory,
		FileName:  fileName,
		MIMEType:  mimeType,
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	cmd.Printf("Accepted %s as document %s, processing...\n", fileName, doc.ID)
	ingestService.Wait()

	final, err := documentStore.GetDocument(context.Background(), doc.ID)
	if err != nil {
		return fmt.Errorf("checking result: %w", err)
	}
	cmd.Printf("Document %s is %s\n", final.ID, final.Status)
	return nil
}

// detectMIME maps a file name to a content type the extractors know.
func detectMIME(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	case ".csv":
		return "text/csv"
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	}
	if t := mime.TypeByExtension(filepath.Ext(fileName)); t != "" {
		return t
	}
	return "application/octet-stream"
}
