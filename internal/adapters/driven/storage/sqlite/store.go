// Package sqlite implements the document store on SQLite using
// modernc.org/sqlite. Chunk embeddings are stored as little-endian
// float32 BLOBs and ranked natively in SQL through a registered
// vec_cosine scalar function, with an in-process fallback when the
// native path fails.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/aulalabs/knowledge-core/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/aulalabs/knowledge-core/internal/core/domain"
	"github.com/aulalabs/knowledge-core/internal/core/ports/driven"
	"github.com/aulalabs/knowledge-core/internal/logger"
)

var _ driven.DocumentStore = (*Store)(nil)

// keywordChunksPerDocument caps how many leading chunks a keyword
// match contributes per document.
const keywordChunksPerDocument = 3

// keywordSimilarity is the fixed score assigned to keyword fallback
// hits, below the semantic threshold but high enough to rank.
const keywordSimilarity = 0.5

// Store is the SQLite-backed document store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.knowledge/data/knowledge.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".knowledge", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	registerVectorFunctions()

	dbPath := filepath.Join(dataDir, "knowledge.db")

	// WAL mode for better concurrency between the ingestion worker
	// and retrieval queries.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// SaveDocument stores or updates a document. On conflict the status
// and created_at columns are left alone: status only moves through
// UpdateStatus so transition checks cannot be bypassed.
func (s *Store) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc.ID == "" || doc.Scope().IsZero() {
		return fmt.Errorf("%w: document needs id, teacher_id and school_id", domain.ErrInvalidInput)
	}
	if !doc.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, doc.Status)
	}

	previewJSON, err := json.Marshal(doc.ChunkPreview)
	if err != nil {
		return fmt.Errorf("marshalling chunk preview: %w", err)
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.Category == "" {
		doc.Category = "general"
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, teacher_id, school_id, title, category, content, status,
			file_name, file_size, mime_type, blob_key, chunk_preview, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			category = excluded.category,
			content = excluded.content,
			file_name = excluded.file_name,
			file_size = excluded.file_size,
			mime_type = excluded.mime_type,
			blob_key = excluded.blob_key,
			chunk_preview = excluded.chunk_preview,
			updated_at = excluded.updated_at
	`, doc.ID, doc.TeacherID, doc.SchoolID, doc.Title, doc.Category, doc.Content,
		string(doc.Status), doc.FileName, doc.FileSize, doc.MIMEType, doc.BlobKey,
		string(previewJSON), doc.CreatedAt, doc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, teacher_id, school_id, title, category, content, status,
			file_name, file_size, mime_type, blob_key, chunk_preview, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocument(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

// UpdateStatus advances a document's lifecycle state, rejecting
// transitions the domain forbids.
func (s *Store) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}

	var current string
	err := s.db.QueryRowContext(ctx, "SELECT status FROM documents WHERE id = ?", id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("reading current status: %w", err)
	}

	if !domain.DocumentStatus(current).CanTransition(status) {
		return fmt.Errorf("%w: cannot transition %s -> %s", domain.ErrInvalidInput, current, status)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	return nil
}

// SaveChunk persists a single chunk row. Each call commits on its own
// so ingestion progress survives a crash mid-document.
func (s *Store) SaveChunk(ctx context.Context, chunk *domain.Chunk) error {
	if chunk.ID == "" || chunk.DocumentID == "" {
		return fmt.Errorf("%w: chunk needs id and document_id", domain.ErrInvalidInput)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, content, embedding, start_char, end_char)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			embedding = excluded.embedding,
			start_char = excluded.start_char,
			end_char = excluded.end_char
	`, chunk.ID, chunk.DocumentID, chunk.Index, chunk.Content,
		float32SliceToBytes(chunk.Embedding), chunk.StartChar, chunk.EndChar)

	if err != nil {
		return fmt.Errorf("saving chunk: %w", err)
	}
	return nil
}

// GetChunks retrieves all chunks for a document ordered by index.
func (s *Store) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, embedding, start_char, end_char
		FROM chunks WHERE document_id = ?
		ORDER BY chunk_index
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		var embeddingBlob []byte
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Content,
			&embeddingBlob, &chunk.StartChar, &chunk.EndChar); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// DeleteChunks removes all chunks for a document.
func (s *Store) DeleteChunks(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// DeleteDocument removes a document; the schema cascades to chunks.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// ListDocuments returns a tenant's documents, newest first.
func (s *Store) ListDocuments(ctx context.Context, scope domain.TenantScope) ([]domain.Document, error) {
	if scope.IsZero() {
		return nil, fmt.Errorf("%w: tenant scope is required", domain.ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, teacher_id, school_id, title, category, content, status,
			file_name, file_size, mime_type, blob_key, chunk_preview, created_at, updated_at
		FROM documents
		WHERE teacher_id = ? AND school_id = ?
		ORDER BY created_at DESC
	`, scope.TeacherID, scope.SchoolID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// CountVectorized returns the tenant's number of VECTORIZED documents.
func (s *Store) CountVectorized(ctx context.Context, scope domain.TenantScope) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM documents
		WHERE teacher_id = ? AND school_id = ? AND status = ?
	`, scope.TeacherID, scope.SchoolID, string(domain.StatusVectorized)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting vectorized documents: %w", err)
	}
	return count, nil
}

// SearchSimilar ranks the tenant's chunks by cosine similarity to the
// query vector. The native SQL path ranks inside SQLite via the
// vec_cosine function; when it fails the search degrades to loading
// the tenant's chunks and scoring them in process.
func (s *Store) SearchSimilar(ctx context.Context, query []float32, scope domain.TenantScope, limit int, minSimilarity float64) ([]domain.SearchResult, error) {
	if scope.IsZero() {
		return nil, fmt.Errorf("%w: tenant scope is required", domain.ErrInvalidInput)
	}
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query vector is empty", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 10
	}

	results, err := s.searchSimilarNative(ctx, query, scope, limit, minSimilarity)
	if err == nil {
		return results, nil
	}

	logger.Warn("Native similarity search failed, using in-process scan: %v", err)

	results, err = s.searchSimilarFallback(ctx, query, scope, limit, minSimilarity)
	if err != nil {
		if errors.Is(err, domain.ErrDimensionMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchBackend, err)
	}
	return results, nil
}

// searchSimilarNative ranks chunks inside SQLite.
func (s *Store) searchSimilarNative(ctx context.Context, query []float32, scope domain.TenantScope, limit int, minSimilarity float64) ([]domain.SearchResult, error) {
	queryBlob := float32SliceToBytes(query)

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, c.chunk_index, c.content, c.start_char, c.end_char,
			d.title, d.category, vec_cosine(c.embedding, ?) AS similarity
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.teacher_id = ? AND d.school_id = ?
			AND d.status = ?
			AND c.embedding IS NOT NULL
			AND vec_cosine(c.embedding, ?) > ?
		ORDER BY similarity DESC
		LIMIT ?
	`, queryBlob, scope.TeacherID, scope.SchoolID, string(domain.StatusVectorized),
		queryBlob, minSimilarity, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.SearchResult
		if err := rows.Scan(&r.Chunk.ID, &r.Chunk.DocumentID, &r.Chunk.Index, &r.Chunk.Content,
			&r.Chunk.StartChar, &r.Chunk.EndChar, &r.DocumentTitle, &r.DocumentCategory,
			&r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		r.DocumentID = r.Chunk.DocumentID
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	return results, nil
}

// searchSimilarFallback loads the tenant's embedded chunks and scores
// them in Go.
func (s *Store) searchSimilarFallback(ctx context.Context, query []float32, scope domain.TenantScope, limit int, minSimilarity float64) ([]domain.SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, c.chunk_index, c.content, c.embedding, c.start_char, c.end_char,
			d.title, d.category
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.teacher_id = ? AND d.school_id = ?
			AND d.status = ?
			AND c.embedding IS NOT NULL
	`, scope.TeacherID, scope.SchoolID, string(domain.StatusVectorized))
	if err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.SearchResult
		var embeddingBlob []byte
		if err := rows.Scan(&r.Chunk.ID, &r.Chunk.DocumentID, &r.Chunk.Index, &r.Chunk.Content,
			&embeddingBlob, &r.Chunk.StartChar, &r.Chunk.EndChar,
			&r.DocumentTitle, &r.DocumentCategory); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}

		similarity, err := cosineSimilarity(query, bytesToFloat32Slice(embeddingBlob))
		if err != nil {
			return nil, err
		}
		if similarity <= minSimilarity {
			continue
		}

		r.DocumentID = r.Chunk.DocumentID
		r.Similarity = similarity
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// SearchKeyword is the degraded fallback when no embeddings are
// available: a case-insensitive substring match over title and content
// of processed documents, returning each match's leading chunks at a
// fixed similarity score.
func (s *Store) SearchKeyword(ctx context.Context, query string, scope domain.TenantScope, limit int) ([]domain.SearchResult, error) {
	if scope.IsZero() {
		return nil, fmt.Errorf("%w: tenant scope is required", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 10
	}

	pattern := "%" + strings.ToLower(query) + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, category
		FROM documents
		WHERE teacher_id = ? AND school_id = ?
			AND status IN (?, ?)
			AND (LOWER(title) LIKE ? OR LOWER(content) LIKE ?)
		ORDER BY created_at DESC
	`, scope.TeacherID, scope.SchoolID,
		string(domain.StatusReady), string(domain.StatusVectorized),
		pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: keyword query: %v", domain.ErrSearchBackend, err)
	}
	defer rows.Close()

	type docHit struct {
		id       string
		title    string
		category string
	}
	var hits []docHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var h docHit
		if err := rows.Scan(&h.id, &h.title, &h.category); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	var results []domain.SearchResult
	for _, h := range hits {
		if len(results) >= limit {
			break
		}

		chunkRows, err := s.db.QueryContext(ctx, `
			SELECT id, document_id, chunk_index, content, start_char, end_char
			FROM chunks WHERE document_id = ?
			ORDER BY chunk_index
			LIMIT ?
		`, h.id, keywordChunksPerDocument)
		if err != nil {
			return nil, fmt.Errorf("querying chunks: %w", err)
		}

		for chunkRows.Next() {
			var r domain.SearchResult
			if err := chunkRows.Scan(&r.Chunk.ID, &r.Chunk.DocumentID, &r.Chunk.Index,
				&r.Chunk.Content, &r.Chunk.StartChar, &r.Chunk.EndChar); err != nil {
				chunkRows.Close()
				return nil, fmt.Errorf("scanning chunk: %w", err)
			}
			r.DocumentID = h.id
			r.DocumentTitle = h.title
			r.DocumentCategory = h.category
			r.Similarity = keywordSimilarity
			results = append(results, r)
			if len(results) >= limit {
				break
			}
		}
		if err := chunkRows.Err(); err != nil {
			chunkRows.Close()
			return nil, fmt.Errorf("iterating chunks: %w", err)
		}
		chunkRows.Close()
	}

	return results, nil
}

// scanDocument scans a document from either a *sql.Row or *sql.Rows.
func scanDocument(scan func(dest ...any) error) (*domain.Document, error) {
	var doc domain.Document
	var status, previewJSON string
	var content, fileName, mimeType, blobKey sql.NullString

	if err := scan(&doc.ID, &doc.TeacherID, &doc.SchoolID, &doc.Title, &doc.Category,
		&content, &status, &fileName, &doc.FileSize, &mimeType, &blobKey,
		&previewJSON, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Content = content.String
	doc.FileName = fileName.String
	doc.MIMEType = mimeType.String
	doc.BlobKey = blobKey.String
	doc.Status = domain.DocumentStatus(status)

	if previewJSON != "" && previewJSON != "null" {
		if err := json.Unmarshal([]byte(previewJSON), &doc.ChunkPreview); err != nil {
			return nil, fmt.Errorf("unmarshaling chunk preview: %w", err)
		}
	}

	return &doc, nil
}
