// Command knowledge is the CLI entry point. It wires the concrete
// adapters into the core services and hands control to the command
// tree.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/aulalabs/knowledge-core/internal/adapters/driven/blob/filesystem"
	"github.com/aulalabs/knowledge-core/internal/adapters/driven/config/file"
	"github.com/aulalabs/knowledge-core/internal/adapters/driven/embedding/openai"
	"github.com/aulalabs/knowledge-core/internal/adapters/driven/storage/sqlite"
	"github.com/aulalabs/knowledge-core/internal/adapters/driving/cli"
	"github.com/aulalabs/knowledge-core/internal/core/ports/driven"
	"github.com/aulalabs/knowledge-core/internal/core/services"
	"github.com/aulalabs/knowledge-core/internal/extractors"
	"github.com/aulalabs/knowledge-core/internal/extractors/pdf"
	"github.com/aulalabs/knowledge-core/internal/extractors/plaintext"
	"github.com/aulalabs/knowledge-core/internal/extractors/word"
	"github.com/aulalabs/knowledge-core/internal/logger"
	"github.com/aulalabs/knowledge-core/internal/pipeline/chunker"
)

func main() {
	cli.OnSetup(setup)
	cli.Execute()
}

// setup builds the adapter stack from configuration and injects the
// services into the command tree.
func setup(configPath string) error {
	cfg, err := file.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	dataDir := cfg.DataDir
	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	blobDir := ""
	if dataDir != "" {
		blobDir = dataDir + string(os.PathSeparator) + "blobs"
	}
	blobs, err := filesystem.NewBlobStore(blobDir)
	if err != nil {
		return fmt.Errorf("opening blob store: %w", err)
	}

	registry := extractors.NewRegistry(
		plaintext.New(),
		pdf.New(),
		word.New(),
	)

	var embedder driven.EmbeddingService
	if apiKey := cfg.Embedding.APIKey(); apiKey != "" {
		embedder, err = openai.NewEmbeddingService(openai.Config{
			APIKey:         apiKey,
			BaseURL:        cfg.Embedding.BaseURL,
			Model:          cfg.Embedding.Model,
			Dimensions:     cfg.Embedding.Dimensions,
			InterCallDelay: cfg.Embedding.Throttle(),
			Timeout:        60 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("configuring embeddings: %w", err)
		}
	} else {
		logger.Warn("%s is not set, running without embeddings (keyword search only)", cfg.Embedding.APIKeyEnv)
	}

	c := chunker.New(
		chunker.WithChunkSize(cfg.Chunking.Size),
		chunker.WithOverlap(cfg.Chunking.Overlap),
		chunker.WithMaxChunks(cfg.Chunking.MaxChunks),
	)

	ingest := services.NewIngestionOrchestrator(store, blobs, registry, embedder, c)
	retrieval := services.NewRetrieval(store, embedder, cfg.Search.MinSimilarity, cfg.Search.TopK)

	cli.SetServices(ingest, retrieval, store)
	return nil
}
