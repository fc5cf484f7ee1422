package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Insert persists a new document. An empty ID is filled with a fresh UUID and
// an empty status defaults to queued.
func (s *Store) Insert(ctx context.Context, doc *Document) error {
	if doc == nil {
		return errors.New("document is nil")
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = StatusQueued
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO documents (
            id, original_filename, stored_path, content_hash, mime_type, size_bytes,
            status, title, extracted_text, extraction_method, page_count, embedding_json,
            correspondent_id, document_type_id, custom_fields_json, thumbnail_path,
            error_message, attempts_json, created_at, updated_at,
            progress_stage, progress_percent, progress_message, last_heartbeat,
            needs_review, review_reason, reprocess_requested
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID,
		doc.OriginalFilename,
		doc.StoredPath,
		doc.ContentHash,
		nullableString(doc.MimeType),
		doc.SizeBytes,
		doc.Status,
		nullableString(doc.Title),
		nullableString(doc.ExtractedText),
		nullableString(string(doc.ExtractionMethod)),
		doc.PageCount,
		nullableString(doc.EmbeddingJSON),
		nullableID(doc.CorrespondentID),
		nullableID(doc.DocumentTypeID),
		nullableString(doc.CustomFieldsJSON),
		nullableString(doc.ThumbnailPath),
		nullableString(doc.ErrorMessage),
		nullableString(doc.AttemptsJSON),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		nullableString(doc.ProgressStage),
		doc.ProgressPercent,
		nullableString(doc.ProgressMessage),
		nullableTime(doc.LastHeartbeat),
		boolToInt(doc.NeedsReview),
		nullableString(doc.ReviewReason),
		boolToInt(doc.ReprocessRequested),
	); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetByID fetches a document by identifier.
func (s *Store) GetByID(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// FindByHash returns the earliest document matching a content hash.
func (s *Store) FindByHash(ctx context.Context, hash string) (*Document, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+documentColumns+` FROM documents WHERE content_hash = ? ORDER BY created_at LIMIT 1`,
		hash,
	)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by hash: %w", err)
	}
	return doc, nil
}

// Update persists changes to an existing document. The reprocess_requested
// column is deliberately left out: it is owned by MarkReprocessRequested and
// ResetForReprocess, and writing it here would let a worker's stale in-memory
// snapshot erase a request that arrived mid-stage.
func (s *Store) Update(ctx context.Context, doc *Document) error {
	if doc == nil {
		return errors.New("document is nil")
	}
	doc.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE documents
         SET original_filename = ?, stored_path = ?, content_hash = ?, mime_type = ?,
             size_bytes = ?, status = ?, title = ?, extracted_text = ?, extraction_method = ?,
             page_count = ?, embedding_json = ?, correspondent_id = ?, document_type_id = ?,
             custom_fields_json = ?, thumbnail_path = ?, error_message = ?, attempts_json = ?,
             updated_at = ?, progress_stage = ?, progress_percent = ?, progress_message = ?,
             last_heartbeat = ?, needs_review = ?, review_reason = ?
         WHERE id = ?`,
		doc.OriginalFilename,
		doc.StoredPath,
		doc.ContentHash,
		nullableString(doc.MimeType),
		doc.SizeBytes,
		doc.Status,
		nullableString(doc.Title),
		nullableString(doc.ExtractedText),
		nullableString(string(doc.ExtractionMethod)),
		doc.PageCount,
		nullableString(doc.EmbeddingJSON),
		nullableID(doc.CorrespondentID),
		nullableID(doc.DocumentTypeID),
		nullableString(doc.CustomFieldsJSON),
		nullableString(doc.ThumbnailPath),
		nullableString(doc.ErrorMessage),
		nullableString(doc.AttemptsJSON),
		doc.UpdatedAt.Format(time.RFC3339Nano),
		nullableString(doc.ProgressStage),
		doc.ProgressPercent,
		nullableString(doc.ProgressMessage),
		nullableTime(doc.LastHeartbeat),
		boolToInt(doc.NeedsReview),
		nullableString(doc.ReviewReason),
		doc.ID,
	); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

// DocumentsByStatus returns documents matching a status ordered by creation time.
func (s *Store) DocumentsByStatus(ctx context.Context, status Status) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE status = ? ORDER BY created_at`, status)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// List returns documents filtered by status set (or all documents when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Document, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + documentColumns + ` FROM documents`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// NextForStatuses returns the oldest document matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Document, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + documentColumns + ` FROM documents WHERE status IN (` + placeholders + `) ORDER BY created_at LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Remove deletes a document by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed documents.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM documents WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed documents.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM documents WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all documents.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM documents`)
	if err != nil {
		return 0, fmt.Errorf("clear documents: %w", err)
	}
	return res.RowsAffected()
}

func collectDocuments(rows *sql.Rows) ([]*Document, error) {
	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
