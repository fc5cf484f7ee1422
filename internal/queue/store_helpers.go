package queue

import (
	"database/sql"
	"errors"
	"time"
)

const documentColumns = "id, original_filename, stored_path, content_hash, mime_type, size_bytes, status, title, extracted_text, extraction_method, page_count, embedding_json, correspondent_id, document_type_id, custom_fields_json, thumbnail_path, error_message, attempts_json, created_at, updated_at, progress_stage, progress_percent, progress_message, last_heartbeat, needs_review, review_reason, reprocess_requested"

func scanDocument(scanner interface{ Scan(dest ...any) error }) (*Document, error) {
	var (
		id                 string
		originalFilename   string
		storedPath         string
		contentHash        string
		mimeType           sql.NullString
		sizeBytes          sql.NullInt64
		statusStr          string
		title              sql.NullString
		extractedText      sql.NullString
		extractionMethod   sql.NullString
		pageCount          sql.NullInt64
		embeddingJSON      sql.NullString
		correspondentID    sql.NullInt64
		documentTypeID     sql.NullInt64
		customFieldsJSON   sql.NullString
		thumbnailPath      sql.NullString
		errorMessage       sql.NullString
		attemptsJSON       sql.NullString
		createdRaw         sql.NullString
		updatedRaw         sql.NullString
		progressStage      sql.NullString
		progressPercent    sql.NullFloat64
		progressMessage    sql.NullString
		lastHeartbeatRaw   sql.NullString
		needsReview        sql.NullInt64
		reviewReason       sql.NullString
		reprocessRequested sql.NullInt64
	)

	if err := scanner.Scan(
		&id,
		&originalFilename,
		&storedPath,
		&contentHash,
		&mimeType,
		&sizeBytes,
		&statusStr,
		&title,
		&extractedText,
		&extractionMethod,
		&pageCount,
		&embeddingJSON,
		&correspondentID,
		&documentTypeID,
		&customFieldsJSON,
		&thumbnailPath,
		&errorMessage,
		&attemptsJSON,
		&createdRaw,
		&updatedRaw,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&lastHeartbeatRaw,
		&needsReview,
		&reviewReason,
		&reprocessRequested,
	); err != nil {
		return nil, err
	}

	doc := &Document{
		ID:               id,
		OriginalFilename: originalFilename,
		StoredPath:       storedPath,
		ContentHash:      contentHash,
		MimeType:         mimeType.String,
		SizeBytes:        sizeBytes.Int64,
		Status:           Status(statusStr),
		Title:            title.String,
		ExtractedText:    extractedText.String,
		ExtractionMethod: ExtractionMethod(extractionMethod.String),
		PageCount:        int(pageCount.Int64),
		EmbeddingJSON:    embeddingJSON.String,
		CorrespondentID:  correspondentID.Int64,
		DocumentTypeID:   documentTypeID.Int64,
		CustomFieldsJSON: customFieldsJSON.String,
		ThumbnailPath:    thumbnailPath.String,
		ErrorMessage:     errorMessage.String,
		AttemptsJSON:     attemptsJSON.String,
		ProgressStage:    progressStage.String,
		ProgressPercent:  progressPercent.Float64,
		ProgressMessage:  progressMessage.String,
		ReviewReason:     reviewReason.String,
	}
	if needsReview.Valid {
		doc.NeedsReview = needsReview.Int64 != 0
	}
	if reprocessRequested.Valid {
		doc.ReprocessRequested = reprocessRequested.Int64 != 0
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		doc.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		doc.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			doc.LastHeartbeat = &heartbeat
		}
	}
	return doc, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableID(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
