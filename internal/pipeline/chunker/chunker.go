// Package chunker splits extracted document text into overlapping
// fixed-size windows, preferring natural breaks.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/aulalabs/knowledge-core/internal/core/domain"
	"github.com/aulalabs/knowledge-core/internal/logger"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultOverlap is the default number of overlapping characters.
const DefaultOverlap = 200

// DefaultMaxChunks caps the chunk count per document to bound
// embedding cost. Longer documents are truncated with a warning.
const DefaultMaxChunks = 50

// Chunker splits document content into overlapping windows. When a
// window does not end at the text's end, it is shortened to the last
// paragraph break - or failing that, the last sentence end - found
// past the window's midpoint.
type Chunker struct {
	chunkSize int
	overlap   int
	maxChunks int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the window size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between windows in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithMaxChunks sets the per-document chunk cap.
func WithMaxChunks(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxChunks = n
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
		maxChunks: DefaultMaxChunks,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Split produces the ordered chunk sequence for a document's text.
// The union of chunk spans covers the source text with no gaps;
// adjacent chunk contents overlap by design. Empty text produces zero
// chunks; the caller treats that as an extraction failure.
//
// Overlap must be strictly less than chunk size or the window could
// never advance; that precondition surfaces as ErrInvalidInput.
func (c *Chunker) Split(documentID, text string) ([]domain.Chunk, error) {
	if c.overlap >= c.chunkSize {
		return nil, domain.ErrInvalidInput
	}
	if text == "" {
		return nil, nil
	}

	textLen := len(text)
	estimated := textLen/(c.chunkSize-c.overlap) + 1
	chunks := make([]domain.Chunk, 0, estimated)

	start := 0
	for start < textLen {
		if len(chunks) >= c.maxChunks {
			logger.Warn("Chunk cap reached for document %s: truncating at %d chunks (%d of %d chars covered)",
				documentID, c.maxChunks, start, textLen)
			break
		}

		end := start + c.chunkSize
		if end >= textLen {
			end = textLen
		} else {
			end = runeStart(text, end)

			// Prefer a natural break past the window's midpoint, but
			// only when the cut leaves a positive stride: a cut at or
			// before the overlap would stall or rewind the window.
			if cut := naturalBreak(text[start:end], c.chunkSize/2); cut > c.overlap {
				end = start + cut
			}
			if end <= start {
				// chunkSize smaller than one rune; emit it whole.
				_, n := utf8.DecodeRuneInString(text[start:])
				end = start + n
			}
		}

		chunks = append(chunks, domain.Chunk{
			ID:         uuid.New().String(),
			DocumentID: documentID,
			Index:      len(chunks),
			Content:    strings.TrimSpace(text[start:end]),
			StartChar:  start,
			EndChar:    end,
		})

		if end == textLen {
			break
		}

		next := runeStart(text, end-c.overlap)
		if next <= start {
			_, n := utf8.DecodeRuneInString(text[start:])
			next = start + n
		}
		start = next
	}

	return chunks, nil
}

// runeStart snaps a byte offset back to the start of the rune it
// falls inside, so window edges never split a multibyte character.
func runeStart(text string, pos int) int {
	for pos > 0 && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}

// naturalBreak returns the cut position within window, or 0 when no
// paragraph break or sentence end exists past mid.
func naturalBreak(window string, mid int) int {
	if p := strings.LastIndex(window, "\n\n"); p > mid {
		return p
	}
	if s := strings.LastIndex(window, ". "); s > mid {
		return s + 1 // keep the period
	}
	return 0
}
