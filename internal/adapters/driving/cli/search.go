package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aulalabs/knowledge-core/internal/core/domain"
)

var (
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the knowledge base",
	Long: `Runs semantic similarity search over the tenant's documents,
falling back to keyword matching when no embedding provider is
available.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var contextCmd = &cobra.Command{
	Use:   "context [query]",
	Short: "Assemble retrieval context for a query",
	Long: `Runs retrieval and prints the structured context block that is
handed to the downstream analysis consumer.`,
	Args: cobra.ExactArgs(1),
	RunE: runContext,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	contextCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of chunks")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(contextCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	scope, err := tenantScope()
	if err != nil {
		return err
	}
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	results, err := retrievalService.SearchRelevantChunks(context.Background(), args[0], scope,
		domain.SearchOptions{Limit: searchLimit})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, result := range results {
		cmd.Printf("  [%d] %s (%.1f%%)\n", i+1, result.DocumentTitle, result.Similarity*100)
		snippet := result.Chunk.Content
		if len(snippet) > 120 {
			snippet = snippet[:120] + "..."
		}
		cmd.Printf("      %s\n", snippet)
		cmd.Println()
	}
	return nil
}

func runContext(cmd *cobra.Command, args []string) error {
	scope, err := tenantScope()
	if err != nil {
		return err
	}
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	rag, err := retrievalService.GenerateContext(context.Background(), args[0], scope,
		domain.SearchOptions{Limit: searchLimit})
	if err != nil {
		return fmt.Errorf("context assembly failed: %w", err)
	}

	cmd.Println(rag.ContextText)
	cmd.Printf("(%d chunks from %d documents, %d vectorized documents in total)\n",
		len(rag.RelevantChunks), len(rag.DocumentTitles), rag.TotalDocuments)
	return nil
}
