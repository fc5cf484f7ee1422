package queue

import (
	"encoding/json"
	"strings"
	"time"
)

// Status represents the lifecycle of a document.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusExtracting   Status = "extracting"
	StatusExtracted    Status = "extracted"
	StatusEmbedding    Status = "embedding"
	StatusEmbedded     Status = "embedded"
	StatusClassifying  Status = "classifying"
	StatusClassified   Status = "classified"
	StatusThumbnailing Status = "thumbnailing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

var allStatuses = []Status{
	StatusQueued,
	StatusExtracting,
	StatusExtracted,
	StatusEmbedding,
	StatusEmbedded,
	StatusClassifying,
	StatusClassified,
	StatusThumbnailing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusExtracting:   {},
	StatusEmbedding:    {},
	StatusClassifying:  {},
	StatusThumbnailing: {},
}

type statusTransition struct {
	from Status
	to   Status
}

// stageRollbackTransitions map each in-flight status back to the status a
// document held before the stage started, used when reclaiming stale work.
var stageRollbackTransitions = []statusTransition{
	{from: StatusExtracting, to: StatusQueued},
	{from: StatusEmbedding, to: StatusExtracted},
	{from: StatusClassifying, to: StatusEmbedded},
	{from: StatusThumbnailing, to: StatusClassified},
}

// ExtractionMethod records how text was obtained from a document.
type ExtractionMethod string

const (
	ExtractionNative ExtractionMethod = "native"
	ExtractionOCR    ExtractionMethod = "ocr"
)

// HistoryOutcome is the result recorded for a stage in the history log.
type HistoryOutcome string

const (
	OutcomeSuccess  HistoryOutcome = "success"
	OutcomeDegraded HistoryOutcome = "degraded"
	OutcomeFailure  HistoryOutcome = "failure"
)

// DatabaseHealth captures diagnostic information about the document database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalDocuments   int
	Error            string
}

// HealthSummary describes aggregated document counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Queued     int
	Processing int
	Failed     int
	Completed  int
}

// Document represents an ingested document persisted in SQLite.
type Document struct {
	ID                 string
	OriginalFilename   string
	StoredPath         string
	ContentHash        string
	MimeType           string
	SizeBytes          int64
	Status             Status
	Title              string
	ExtractedText      string
	ExtractionMethod   ExtractionMethod
	PageCount          int
	EmbeddingJSON      string
	CorrespondentID    int64
	DocumentTypeID     int64
	CustomFieldsJSON   string
	ThumbnailPath      string
	ErrorMessage       string
	AttemptsJSON       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ProgressStage      string
	ProgressPercent    float64
	ProgressMessage    string
	LastHeartbeat      *time.Time
	NeedsReview        bool
	ReviewReason       string
	ReprocessRequested bool
}

// HistoryEntry is one record in a document's stage history.
type HistoryEntry struct {
	ID         int64
	DocumentID string
	Stage      string
	Outcome    HistoryOutcome
	Message    string
	Attempt    int
	CreatedAt  time.Time
}

// Label is a tag, correspondent, or document type row.
type Label struct {
	ID        int64
	Slug      string
	Name      string
	Color     string
	CreatedAt time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (d Document) IsProcessing() bool {
	_, ok := processingStatuses[d.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether a status ends the pipeline for a document.
func IsTerminal(status Status) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Attempts decodes the per-stage attempt counters.
func (d Document) Attempts() map[string]int {
	if strings.TrimSpace(d.AttemptsJSON) == "" {
		return map[string]int{}
	}
	attempts := map[string]int{}
	if err := json.Unmarshal([]byte(d.AttemptsJSON), &attempts); err != nil {
		return map[string]int{}
	}
	return attempts
}

// StageAttempts returns the attempt counter for a single stage.
func (d Document) StageAttempts(stage string) int {
	return d.Attempts()[stage]
}

// RecordAttempt increments the attempt counter for a stage and returns the new count.
func (d *Document) RecordAttempt(stage string) int {
	attempts := d.Attempts()
	attempts[stage]++
	encoded, err := json.Marshal(attempts)
	if err == nil {
		d.AttemptsJSON = string(encoded)
	}
	return attempts[stage]
}

// ResetAttempts clears all per-stage attempt counters.
func (d *Document) ResetAttempts() {
	d.AttemptsJSON = ""
}

// Embedding decodes the stored embedding vector, returning nil when absent.
func (d Document) Embedding() []float64 {
	if strings.TrimSpace(d.EmbeddingJSON) == "" {
		return nil
	}
	var vector []float64
	if err := json.Unmarshal([]byte(d.EmbeddingJSON), &vector); err != nil {
		return nil
	}
	return vector
}

// SetEmbedding stores an embedding vector on the document.
func (d *Document) SetEmbedding(vector []float64) error {
	encoded, err := json.Marshal(vector)
	if err != nil {
		return err
	}
	d.EmbeddingJSON = string(encoded)
	return nil
}

// CustomFields decodes the extracted custom field values.
func (d Document) CustomFields() map[string]string {
	if strings.TrimSpace(d.CustomFieldsJSON) == "" {
		return map[string]string{}
	}
	fields := map[string]string{}
	if err := json.Unmarshal([]byte(d.CustomFieldsJSON), &fields); err != nil {
		return map[string]string{}
	}
	return fields
}

// InitProgress resets progress fields for a new stage. If ProgressStage is
// currently empty it is set to the provided stage value; otherwise the existing
// stage is preserved to support resume scenarios.
func (d *Document) InitProgress(stage, message string) {
	if d.ProgressStage == "" {
		d.ProgressStage = stage
	}
	d.ProgressMessage = message
	d.ProgressPercent = 0
	d.ErrorMessage = ""
}

// SetProgress updates all three progress fields atomically.
func (d *Document) SetProgress(stage, message string, percent float64) {
	d.ProgressStage = stage
	d.ProgressMessage = message
	d.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
func (d *Document) SetProgressComplete(stage, message string) {
	d.SetProgress(stage, message, 100)
}

// SetFailed marks the document as failed with the given error message.
func (d *Document) SetFailed(message string) {
	d.Status = StatusFailed
	d.ErrorMessage = message
	d.ProgressPercent = 0
	d.ProgressMessage = message
	d.LastHeartbeat = nil
	d.ProgressStage = "Failed"
}

// DisplayTitle prefers the derived title, falling back to the original filename.
func (d Document) DisplayTitle() string {
	if title := strings.TrimSpace(d.Title); title != "" {
		return title
	}
	return d.OriginalFilename
}
