package queue

import (
	"context"
	"fmt"
	"time"
)

// AppendHistory records a stage outcome for a document.
func (s *Store) AppendHistory(ctx context.Context, documentID, stage string, outcome HistoryOutcome, message string, attempt int) error {
	if attempt <= 0 {
		attempt = 1
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO stage_history (document_id, stage, outcome, message, attempt, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		documentID,
		stage,
		outcome,
		nullableString(message),
		attempt,
		time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("append stage history: %w", err)
	}
	return nil
}

// HistoryForDocument returns the stage history for a document in chronological order.
func (s *Store) HistoryForDocument(ctx context.Context, documentID string) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, document_id, stage, outcome, COALESCE(message, ''), attempt, created_at
         FROM stage_history WHERE document_id = ? ORDER BY id`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query stage history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			entry      HistoryEntry
			outcome    string
			createdRaw string
		)
		if err := rows.Scan(&entry.ID, &entry.DocumentID, &entry.Stage, &outcome, &entry.Message, &entry.Attempt, &createdRaw); err != nil {
			return nil, err
		}
		entry.Outcome = HistoryOutcome(outcome)
		if created, err := parseTimeString(createdRaw); err == nil {
			entry.CreatedAt = created
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
