package config

import (
	"errors"
	"fmt"

	"docket/internal/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateOllama(); err != nil {
		return err
	}
	if err := c.validateOCR(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.InboxDir == "" {
		return errors.New("paths.inbox_dir must be set")
	}
	if c.Paths.LibraryDir == "" {
		return errors.New("paths.library_dir must be set")
	}
	if c.Paths.InboxDir == c.Paths.LibraryDir {
		return errors.New("paths.inbox_dir and paths.library_dir must differ")
	}
	return nil
}

func (c *Config) validateOllama() error {
	if c.Ollama.Model == "" {
		return errors.New("ollama.model must be set")
	}
	if c.Ollama.EmbeddingModel == "" {
		return errors.New("ollama.embedding_model must be set")
	}
	if c.Ollama.EmbeddingDimensions <= 0 {
		return errors.New("ollama.embedding_dimensions must be positive")
	}
	return nil
}

func (c *Config) validateOCR() error {
	if len(c.OCR.Languages) == 0 {
		return errors.New("ocr.languages must list at least one language")
	}
	for _, lang := range c.OCR.Languages {
		if !language.IsValidCode(lang) {
			return fmt.Errorf("ocr.languages: unrecognized language code %q", lang)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"ingest.poll_interval":           c.Ingest.PollInterval,
		"ingest.stability_delay":         c.Ingest.StabilityDelay,
		"notifications.request_timeout":  c.Notifications.RequestTimeout,
		"workflow.queue_poll_interval":   c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval":  c.Workflow.ErrorRetryInterval,
		"workflow.stage_timeout_seconds": c.Workflow.StageTimeoutSeconds,
		"workflow.max_stage_attempts":    c.Workflow.MaxStageAttempts,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	if c.Workflow.RetryMaxDelay < c.Workflow.RetryBaseDelay {
		return errors.New("workflow.retry_max_delay must be at least workflow.retry_base_delay")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
