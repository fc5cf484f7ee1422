package ipc

import (
	"time"

	"docket/internal/queue"
)

// DocumentSummary is the wire representation of a document for IPC callers.
type DocumentSummary struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	Title            string    `json:"title"`
	Status           string    `json:"status"`
	MimeType         string    `json:"mime_type"`
	SizeBytes        int64     `json:"size_bytes"`
	PageCount        int       `json:"page_count"`
	ExtractionMethod string    `json:"extraction_method"`
	ProgressStage    string    `json:"progress_stage"`
	ProgressPercent  float64   `json:"progress_percent"`
	ProgressMessage  string    `json:"progress_message"`
	ErrorMessage     string    `json:"error_message"`
	NeedsReview      bool      `json:"needs_review"`
	ReviewReason     string    `json:"review_reason"`
	ThumbnailPath    string    `json:"thumbnail_path"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// FromDocument converts a store document into its IPC representation.
func FromDocument(doc *queue.Document) DocumentSummary {
	if doc == nil {
		return DocumentSummary{}
	}
	return DocumentSummary{
		ID:               doc.ID,
		OriginalFilename: doc.OriginalFilename,
		Title:            doc.Title,
		Status:           string(doc.Status),
		MimeType:         doc.MimeType,
		SizeBytes:        doc.SizeBytes,
		PageCount:        doc.PageCount,
		ExtractionMethod: string(doc.ExtractionMethod),
		ProgressStage:    doc.ProgressStage,
		ProgressPercent:  doc.ProgressPercent,
		ProgressMessage:  doc.ProgressMessage,
		ErrorMessage:     doc.ErrorMessage,
		NeedsReview:      doc.NeedsReview,
		ReviewReason:     doc.ReviewReason,
		ThumbnailPath:    doc.ThumbnailPath,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
}

// HistoryEntry is one stage outcome in a document's processing history.
type HistoryEntry struct {
	Stage     string    `json:"stage"`
	Outcome   string    `json:"outcome"`
	Message   string    `json:"message"`
	Attempt   int       `json:"attempt"`
	CreatedAt time.Time `json:"created_at"`
}

// LabelSummary is the wire representation of a tag, correspondent, or type.
type LabelSummary struct {
	ID    int64  `json:"id"`
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// StageHealth describes readiness of a workflow stage.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail"`
}

// DependencyStatus describes availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail"`
}

// StartRequest triggers daemon workflow startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops daemon workflow.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/workflow status information.
type StatusResponse struct {
	Running      bool               `json:"running"`
	QueueStats   map[string]int     `json:"queue_stats"`
	LastError    string             `json:"last_error"`
	LastDocument *DocumentSummary   `json:"last_document"`
	LockPath     string             `json:"lock_path"`
	DatabasePath string             `json:"database_path"`
	StageHealth  []StageHealth      `json:"stage_health"`
	Dependencies []DependencyStatus `json:"dependencies"`
	PID          int                `json:"pid"`
}

// QueueListRequest filters document listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains document entries.
type QueueListResponse struct {
	Documents []DocumentSummary `json:"documents"`
}

// QueueDescribeRequest fetches a single document by id.
type QueueDescribeRequest struct {
	ID string `json:"id"`
}

// QueueDescribeResponse contains a document with its history and tags.
type QueueDescribeResponse struct {
	Document DocumentSummary `json:"document"`
	History  []HistoryEntry  `json:"history"`
	Tags     []LabelSummary  `json:"tags"`
}

// QueueClearRequest removes all documents.
type QueueClearRequest struct{}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearFailedRequest removes failed documents.
type QueueClearFailedRequest struct{}

// QueueClearFailedResponse reports number of removed entries.
type QueueClearFailedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearCompletedRequest removes completed documents.
type QueueClearCompletedRequest struct{}

// QueueClearCompletedResponse reports number of removed entries.
type QueueClearCompletedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueResetRequest rolls in-flight documents back to their previous status.
type QueueResetRequest struct{}

// QueueResetResponse reports number of documents reset.
type QueueResetResponse struct {
	Updated int64 `json:"updated"`
}

// QueueRetryRequest retries failed documents. Empty list means all failed documents.
type QueueRetryRequest struct {
	IDs []string `json:"ids"`
}

// QueueRetryResponse reports number of retried documents.
type QueueRetryResponse struct {
	Updated int64 `json:"updated"`
}

// QueueReprocessRequest sends a document back through the whole pipeline.
type QueueReprocessRequest struct {
	ID string `json:"id"`
}

// QueueReprocessResponse reports reprocess outcome.
type QueueReprocessResponse struct {
	Accepted bool `json:"accepted"`
}

// QueueRemoveRequest removes specific documents by ID.
type QueueRemoveRequest struct {
	IDs []string `json:"ids"`
}

// QueueRemoveResponse reports number of removed entries.
type QueueRemoveResponse struct {
	Removed int64 `json:"removed"`
}

// QueueHealthRequest fetches aggregate diagnostics.
type QueueHealthRequest struct{}

// QueueHealthResponse reports document queue health information.
type QueueHealthResponse struct {
	Total      int `json:"total"`
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Completed  int `json:"completed"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    string   `json:"schema_version"`
	TableExists      bool     `json:"table_exists"`
	ColumnsPresent   []string `json:"columns_present"`
	MissingColumns   []string `json:"missing_columns"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalDocuments   int      `json:"total_documents"`
	Error            string   `json:"error"`
}

// AddFileRequest ingests a file from an arbitrary path.
type AddFileRequest struct {
	Path string `json:"path"`
}

// AddFileResponse returns the ingested document.
type AddFileResponse struct {
	Document DocumentSummary `json:"document"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
