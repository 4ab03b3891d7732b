package extractors

import (
	"context"
	"fmt"
	"strings"

	"github.com/aulalabs/knowledge-core/internal/core/domain"
	"github.com/aulalabs/knowledge-core/internal/core/ports/driven"
	"github.com/aulalabs/knowledge-core/internal/logger"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry selects the highest-priority extractor for a MIME type.
type Registry struct {
	byMIME map[string][]driven.Extractor
}

// NewRegistry creates a registry over the given extractors.
func NewRegistry(extractors ...driven.Extractor) *Registry {
	r := &Registry{byMIME: make(map[string][]driven.Extractor)}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// Register adds an extractor for all its supported MIME types.
func (r *Registry) Register(e driven.Extractor) {
	for _, mime := range e.SupportedMIMETypes() {
		key := canonicalMIME(mime)
		r.byMIME[key] = insertByPriority(r.byMIME[key], e)
	}
}

// Extract dispatches to the best extractor for the MIME type.
func (r *Registry) Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	key := canonicalMIME(mimeType)

	candidates := r.byMIME[key]
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, mimeType)
	}

	logger.Debug("Extracting %s with %T", key, candidates[0])
	text, err := candidates[0].Extract(ctx, data)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", key, err)
	}
	return text, nil
}

// insertByPriority keeps the slice ordered highest priority first.
func insertByPriority(list []driven.Extractor, e driven.Extractor) []driven.Extractor {
	for i, existing := range list {
		if e.Priority() > existing.Priority() {
			list = append(list[:i], append([]driven.Extractor{e}, list[i:]...)...)
			return list
		}
	}
	return append(list, e)
}

// canonicalMIME lowercases the type and strips parameters
// ("text/plain; charset=utf-8" -> "text/plain").
func canonicalMIME(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return mime
}
