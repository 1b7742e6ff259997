package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cognolabs/studyrag/internal/domain"
)

// SaveDocument inserts or updates a document. A missing ID is generated.
// Updates bump updated_at; content_version is the caller's responsibility.
func (s *Store) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidInput)
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.ContentVersion == 0 {
		doc.ContentVersion = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, content, file_path, is_processed, content_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			file_path = excluded.file_path,
			is_processed = excluded.is_processed,
			content_version = excluded.content_version,
			updated_at = excluded.updated_at
	`, doc.ID, doc.Title, doc.Content, doc.FilePath, doc.IsProcessed, doc.ContentVersion, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument fetches a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, file_path, is_processed, content_version, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)
	err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.FilePath,
		&doc.IsProcessed, &doc.ContentVersion, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return &doc, nil
}

// SetDocumentProcessed flags processing state after an index build or failure.
func (s *Store) SetDocumentProcessed(ctx context.Context, id string, processed bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET is_processed = ?, updated_at = ? WHERE id = ?
	`, processed, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating document state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteDocument removes a document; chunks cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListChunks returns a document's chunks ordered by ordinal.
func (s *Store) ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, ord, content, start_char, end_char, vector_ref
		FROM chunks WHERE document_id = ? ORDER BY ord
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.Content,
			&c.StartChar, &c.EndChar, &c.VectorRef); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// GetChunk fetches one chunk by id.
func (s *Store) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	var c domain.Chunk
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, ord, content, start_char, end_char, vector_ref
		FROM chunks WHERE id = ?
	`, id)
	err := row.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.Content, &c.StartChar, &c.EndChar, &c.VectorRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting chunk: %w", err)
	}
	return &c, nil
}

// ReplaceChunks atomically swaps a document's chunks: delete-then-insert in
// one transaction, never a merge. Missing chunk IDs are generated.
func (s *Store) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("deleting old chunks: %w", err)
	}

	for i := range chunks {
		c := &chunks[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.DocumentID = documentID
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (id, document_id, ord, content, start_char, end_char, vector_ref)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.DocumentID, c.Ordinal, c.Content, c.StartChar, c.EndChar, c.VectorRef); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", c.Ordinal, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunk replacement: %w", err)
	}
	return nil
}
