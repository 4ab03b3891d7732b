package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/aulalabs/knowledge-core/internal/core/domain"
	"github.com/aulalabs/knowledge-core/internal/core/ports/driven"
	"github.com/aulalabs/knowledge-core/internal/core/ports/driving"
	"github.com/aulalabs/knowledge-core/internal/logger"
	"github.com/aulalabs/knowledge-core/internal/pipeline/chunker"
)

var _ driving.IngestionService = (*IngestionOrchestrator)(nil)

// previewChars is how much of each chunk is kept on the document row
// for listing UIs.
const previewChars = 200

// IngestionOrchestrator runs the upload-to-searchable pipeline:
// blob storage, text extraction, chunking and per-chunk embedding.
// Processing happens in the background; callers get the document
// back immediately in PROCESSING state.
type IngestionOrchestrator struct {
	store      driven.DocumentStore
	blobs      driven.BlobStore
	extractors driven.ExtractorRegistry
	embedder   driven.EmbeddingService // nil means degraded keyword-only mode
	chunker    *chunker.Chunker
	runner     *TaskRunner
}

// NewIngestionOrchestrator wires the pipeline. embedder may be nil,
// in which case documents end up READY instead of VECTORIZED.
func NewIngestionOrchestrator(
	store driven.DocumentStore,
	blobs driven.BlobStore,
	extractors driven.ExtractorRegistry,
	embedder driven.EmbeddingService,
	c *chunker.Chunker,
) *IngestionOrchestrator {
	return &IngestionOrchestrator{
		store:      store,
		blobs:      blobs,
		extractors: extractors,
		embedder:   embedder,
		chunker:    c,
		runner:     NewTaskRunner(),
	}
}

// Ingest accepts an upload and kicks off background processing.
func (o *IngestionOrchestrator) Ingest(ctx context.Context, req driving.UploadRequest) (*domain.Document, error) {
	scope := domain.TenantScope{TeacherID: req.TeacherID, SchoolID: req.SchoolID}
	if scope.IsZero() {
		return nil, fmt.Errorf("%w: teacher and school ids are required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: upload payload is empty", domain.ErrInvalidInput)
	}

	category := req.Category
	if category == "" {
		category = "general"
	}

	upload, err := o.blobs.Upload(ctx, req.Data, req.TeacherID, category, req.FileName)
	if err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}

	doc := &domain.Document{
		ID:        uuid.NewString(),
		TeacherID: req.TeacherID,
		SchoolID:  req.SchoolID,
		Title:     req.Title,
		Category:  category,
		Status:    domain.StatusUploaded,
		FileName:  req.FileName,
		FileSize:  int64(len(req.Data)),
		MIMEType:  req.MIMEType,
		BlobKey:   upload.Key,
	}
	if err := o.store.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}
	if err := o.store.UpdateStatus(ctx, doc.ID, domain.StatusProcessing); err != nil {
		return nil, fmt.Errorf("starting processing: %w", err)
	}
	doc.Status = domain.StatusProcessing

	logger.Info("Document %s accepted (%s, %d bytes)", doc.ID, req.FileName, len(req.Data))

	data := req.Data
	mimeType := req.MIMEType
	if err := o.runner.Go(doc.ID, func() {
		// The request context dies with the caller; processing owns
		// its own lifetime.
		bg := context.Background()
		text, err := o.extractText(bg, data, mimeType)
		if err != nil {
			o.markError(bg, doc.ID, err)
			return
		}
		o.runPipeline(bg, doc.ID, text)
	}); err != nil {
		return nil, err
	}

	return doc, nil
}

// Reprocess re-runs chunking and embedding for a document. Extracted
// text is reused when cached; otherwise the stored blob is fetched
// and extracted again.
func (o *IngestionOrchestrator) Reprocess(ctx context.Context, documentID string) error {
	doc, err := o.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}

	// ERROR documents carry the failure reason in Content, and freshly
	// uploaded ones have no text yet. Only completed states cache it.
	cachedText := ""
	if doc.Status == domain.StatusReady || doc.Status == domain.StatusVectorized {
		cachedText = doc.Content
	}

	if err := o.store.UpdateStatus(ctx, documentID, domain.StatusProcessing); err != nil {
		return err
	}

	blobKey := doc.BlobKey
	mimeType := doc.MIMEType
	return o.runner.Go(documentID, func() {
		bg := context.Background()

		if err := o.store.DeleteChunks(bg, documentID); err != nil {
			o.markError(bg, documentID, fmt.Errorf("clearing chunks: %w", err))
			return
		}

		text := cachedText
		if text == "" {
			data, err := o.blobs.GetBytes(bg, blobKey)
			if err != nil {
				o.markError(bg, documentID, fmt.Errorf("fetching stored file: %w", err))
				return
			}
			text, err = o.extractText(bg, data, mimeType)
			if err != nil {
				o.markError(bg, documentID, err)
				return
			}
		}

		o.runPipeline(bg, documentID, text)
	})
}

// Delete removes a document, its chunks and its stored blob. A blob
// deletion failure is logged, not fatal: the metadata row is the
// source of truth.
func (o *IngestionOrchestrator) Delete(ctx context.Context, documentID string) error {
	doc, err := o.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}

	if doc.BlobKey != "" {
		if err := o.blobs.Delete(ctx, doc.BlobKey); err != nil {
			logger.Warn("Could not delete blob %s: %v", doc.BlobKey, err)
		}
	}

	return o.store.DeleteDocument(ctx, documentID)
}

// Wait blocks until all in-flight background processing finishes.
func (o *IngestionOrchestrator) Wait() {
	o.runner.Wait()
}

// extractText runs extraction and rejects empty results.
func (o *IngestionOrchestrator) extractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	text, err := o.extractors.Extract(ctx, data, mimeType)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: document contains no extractable text", domain.ErrExtractionFailed)
	}
	return text, nil
}

// runPipeline chunks the text, embeds each chunk and finalises the
// document. Individual chunk embedding failures are skipped; a
// dimension mismatch or a fully failed document becomes ERROR.
func (o *IngestionOrchestrator) runPipeline(ctx context.Context, documentID, text string) {
	chunks, err := o.chunker.Split(documentID, text)
	if err != nil {
		o.markError(ctx, documentID, err)
		return
	}
	if len(chunks) == 0 {
		o.markError(ctx, documentID, fmt.Errorf("%w: no chunks produced", domain.ErrExtractionFailed))
		return
	}

	logger.Debug("Document %s split into %d chunks", documentID, len(chunks))

	final := domain.StatusVectorized
	saved := make([]domain.Chunk, 0, len(chunks))
	for i := range chunks {
		if o.embedder != nil {
			embedding, err := o.embedder.Embed(ctx, chunks[i].Content)
			if err != nil {
				if errors.Is(err, domain.ErrDimensionMismatch) {
					o.markError(ctx, documentID, err)
					return
				}
				logger.Warn("Embedding chunk %d of %s failed, skipping: %v", chunks[i].Index, documentID, err)
				continue
			}
			chunks[i].Embedding = embedding
		}

		if err := o.store.SaveChunk(ctx, &chunks[i]); err != nil {
			o.markError(ctx, documentID, fmt.Errorf("saving chunk %d: %w", chunks[i].Index, err))
			return
		}
		saved = append(saved, chunks[i])
	}

	if o.embedder == nil {
		logger.Info("No embedding provider configured, document %s will be keyword-searchable only", documentID)
		final = domain.StatusReady
	} else if len(saved) == 0 {
		o.markError(ctx, documentID, fmt.Errorf("%w: no chunk could be embedded", domain.ErrEmbeddingProvider))
		return
	}

	doc, err := o.store.GetDocument(ctx, documentID)
	if err != nil {
		logger.Warn("Finalising %s: %v", documentID, err)
		return
	}
	doc.Content = text
	doc.ChunkPreview = buildPreviews(saved)
	if err := o.store.SaveDocument(ctx, doc); err != nil {
		o.markError(ctx, documentID, fmt.Errorf("storing extracted text: %w", err))
		return
	}

	if err := o.store.UpdateStatus(ctx, documentID, final); err != nil {
		logger.Warn("Finalising %s: %v", documentID, err)
		return
	}

	logger.Info("Document %s processed: %d/%d chunks stored, status %s", documentID, len(saved), len(chunks), final)
}

// markError moves the document to ERROR and stores the reason in its
// content field.
func (o *IngestionOrchestrator) markError(ctx context.Context, documentID string, cause error) {
	logger.Warn("Processing %s failed: %v", documentID, cause)

	doc, err := o.store.GetDocument(ctx, documentID)
	if err != nil {
		logger.Warn("Recording failure for %s: %v", documentID, err)
		return
	}
	doc.Content = cause.Error()
	doc.ChunkPreview = nil
	if err := o.store.SaveDocument(ctx, doc); err != nil {
		logger.Warn("Recording failure for %s: %v", documentID, err)
	}
	if err := o.store.UpdateStatus(ctx, documentID, domain.StatusError); err != nil {
		logger.Warn("Recording failure for %s: %v", documentID, err)
	}
}

// buildPreviews truncates each chunk for the document row, cutting on
// a rune boundary so previews stay valid UTF-8.
func buildPreviews(chunks []domain.Chunk) []domain.ChunkPreview {
	previews := make([]domain.ChunkPreview, len(chunks))
	for i, c := range chunks {
		text := c.Content
		if len(text) > previewChars {
			cut := previewChars
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut]
		}
		previews[i] = domain.ChunkPreview{Index: c.Index, Text: text}
	}
	return previews
}
