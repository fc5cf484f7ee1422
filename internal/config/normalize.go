package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeIngest()
	c.normalizeOllama()
	c.normalizeOCR()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.InboxDir, err = expandPath(c.Paths.InboxDir); err != nil {
		return fmt.Errorf("paths.inbox_dir: %w", err)
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ThumbnailDir) == "" {
		c.Paths.ThumbnailDir = defaultThumbnailDir
	}
	if c.Paths.ThumbnailDir, err = expandPath(c.Paths.ThumbnailDir); err != nil {
		return fmt.Errorf("paths.thumbnail_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeIngest() {
	if c.Ingest.PollInterval <= 0 {
		c.Ingest.PollInterval = defaultIngestPollInterval
	}
	if c.Ingest.StabilityDelay <= 0 {
		c.Ingest.StabilityDelay = defaultIngestStabilityDelay
	}
	if len(c.Ingest.AllowedExtensions) == 0 {
		c.Ingest.AllowedExtensions = append([]string(nil), defaultAllowedExtensions...)
	}
	normalized := c.Ingest.AllowedExtensions[:0]
	for _, ext := range c.Ingest.AllowedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			normalized = append(normalized, ext)
		}
	}
	c.Ingest.AllowedExtensions = normalized
	if c.Ingest.MaxFileSizeMB <= 0 {
		c.Ingest.MaxFileSizeMB = defaultMaxFileSizeMB
	}
}

func (c *Config) normalizeOllama() {
	c.Ollama.BaseURL = strings.TrimRight(strings.TrimSpace(c.Ollama.BaseURL), "/")
	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = defaultOllamaBaseURL
	}
	if strings.TrimSpace(c.Ollama.Model) == "" {
		c.Ollama.Model = defaultOllamaModel
	}
	if strings.TrimSpace(c.Ollama.VisionModel) == "" {
		c.Ollama.VisionModel = c.Ollama.Model
	}
	if strings.TrimSpace(c.Ollama.EmbeddingModel) == "" {
		c.Ollama.EmbeddingModel = defaultEmbeddingModel
	}
	if c.Ollama.EmbeddingDimensions <= 0 {
		c.Ollama.EmbeddingDimensions = defaultEmbeddingDimensions
	}
	if c.Ollama.TimeoutSeconds <= 0 {
		c.Ollama.TimeoutSeconds = defaultOllamaTimeoutSeconds
	}
}

func (c *Config) normalizeOCR() {
	if len(c.OCR.Languages) == 0 {
		c.OCR.Languages = append([]string(nil), defaultOCRLanguages...)
	}
	languages := c.OCR.Languages[:0]
	for _, lang := range c.OCR.Languages {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang != "" {
			languages = append(languages, lang)
		}
	}
	c.OCR.Languages = languages
	if c.OCR.DPI <= 0 {
		c.OCR.DPI = defaultOCRDPI
	}
	if c.OCR.NativeTextThreshold <= 0 {
		c.OCR.NativeTextThreshold = defaultNativeTextThreshold
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkflowWorkers
	}
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.Workflow.StageTimeoutSeconds <= 0 {
		c.Workflow.StageTimeoutSeconds = defaultStageTimeoutSeconds
	}
	if c.Workflow.MaxStageAttempts <= 0 {
		c.Workflow.MaxStageAttempts = defaultMaxStageAttempts
	}
	if c.Workflow.RetryBaseDelay <= 0 {
		c.Workflow.RetryBaseDelay = defaultRetryBaseDelay
	}
	if c.Workflow.RetryMaxDelay <= 0 {
		c.Workflow.RetryMaxDelay = defaultRetryMaxDelay
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}
}
