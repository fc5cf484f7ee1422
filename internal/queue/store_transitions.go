package queue

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// rollbackCase builds the CASE expression (and its arguments) that maps each
// in-flight status back to its stage start, from stageRollbackTransitions.
func rollbackCase() (string, []any) {
	var sb strings.Builder
	args := make([]any, 0, len(stageRollbackTransitions)*2)
	sb.WriteString("CASE status")
	for _, tr := range stageRollbackTransitions {
		sb.WriteString(" WHEN ? THEN ?")
		args = append(args, tr.from, tr.to)
	}
	sb.WriteString(" ELSE status END")
	return sb.String(), args
}

// rollbackStatusFilter builds the IN placeholder list (and its arguments)
// covering every status the rollback table knows how to undo.
func rollbackStatusFilter() (string, []any) {
	args := make([]any, 0, len(stageRollbackTransitions))
	for _, tr := range stageRollbackTransitions {
		args = append(args, tr.from)
	}
	return makePlaceholders(len(stageRollbackTransitions)), args
}

// ResetStuckProcessing returns documents in processing states back to the start
// of their current stage, used once at daemon startup.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	caseExpr, caseArgs := rollbackCase()
	filter, filterArgs := rollbackStatusFilter()

	args := make([]any, 0, len(caseArgs)+len(filterArgs)+1)
	args = append(args, caseArgs...)
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	args = append(args, filterArgs...)

	res, err := s.execWithRetry(
		ctx,
		`UPDATE documents
         SET status = `+caseExpr+`,
             progress_stage = 'Reset from stuck processing',
             progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (`+filter+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck documents: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight document.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	now := time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE documents SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing rolls documents stuck in processing back to the start
// of their current stage when heartbeats expire.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	caseExpr, caseArgs := rollbackCase()
	filter, filterArgs := rollbackStatusFilter()

	args := make([]any, 0, len(caseArgs)+len(filterArgs)+2)
	args = append(args, caseArgs...)
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	args = append(args, filterArgs...)
	args = append(args, cutoff.UTC().Format(time.RFC3339Nano))

	res, err := s.execWithRetry(
		ctx,
		`UPDATE documents
        SET status = `+caseExpr+`,
            progress_stage = 'Reclaimed from stale processing',
            progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (`+filter+`) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale documents: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed documents back to queued. With no IDs all failed
// documents are retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE documents
            SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
                progress_message = NULL, error_message = NULL, attempts_json = NULL, updated_at = ?
            WHERE status = ?`,
			StatusQueued,
			time.Now().UTC().Format(time.RFC3339Nano),
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed documents: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusQueued, time.Now().UTC().Format(time.RFC3339Nano))
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, StatusFailed)
	query := `UPDATE documents
        SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
            progress_message = NULL, error_message = NULL, attempts_json = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = ?`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected documents: %w", err)
	}
	return res.RowsAffected()
}

// ResetForReprocess returns a document to the front of the pipeline. Stored
// originals and labels survive; extraction output, attempt counters, and error
// state are cleared so every stage runs again.
func (s *Store) ResetForReprocess(ctx context.Context, id string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE documents
        SET status = ?, extracted_text = NULL, extraction_method = NULL,
            embedding_json = NULL, error_message = NULL, attempts_json = NULL,
            progress_stage = 'Reprocess requested', progress_percent = 0,
            progress_message = NULL, last_heartbeat = NULL, reprocess_requested = 0,
            updated_at = ?
        WHERE id = ?`,
		StatusQueued,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("reset for reprocess: %w", err)
	}
	return nil
}

// MarkReprocessRequested flags an in-flight document so the workflow manager
// resets it once the current stage releases it.
func (s *Store) MarkReprocessRequested(ctx context.Context, id string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE documents SET reprocess_requested = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("mark reprocess requested: %w", err)
	}
	return nil
}
