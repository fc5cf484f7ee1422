package config

const (
	defaultInboxDir     = "~/.local/share/docket/inbox"
	defaultLibraryDir   = "~/.local/share/docket/library"
	defaultThumbnailDir = "~/.local/share/docket/thumbnails"
	defaultLogDir       = "~/.local/share/docket/logs"

	defaultIngestPollInterval   = 5
	defaultIngestStabilityDelay = 2
	defaultMaxFileSizeMB        = 200
	defaultMinFreeSpaceGiB      = 1

	defaultOllamaBaseURL        = "http://127.0.0.1:11434"
	defaultOllamaModel          = "llama3.1"
	defaultOllamaVisionModel    = "llava"
	defaultEmbeddingModel       = "nomic-embed-text"
	defaultEmbeddingDimensions  = 768
	defaultOllamaTimeoutSeconds = 120

	defaultOCRDPI              = 300
	defaultNativeTextThreshold = 50

	defaultWorkflowWorkers      = 2
	defaultQueuePollInterval    = 5
	defaultErrorRetryInterval   = 10
	defaultHeartbeatInterval    = 15
	defaultHeartbeatTimeout     = 120
	defaultStageTimeoutSeconds  = 600
	defaultMaxStageAttempts     = 3
	defaultRetryBaseDelay       = 2
	defaultRetryMaxDelay        = 60
	defaultNotifyRequestTimeout = 10

	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 60
)

var defaultAllowedExtensions = []string{"pdf", "png", "jpg", "jpeg", "tiff", "tif", "webp", "bmp", "gif"}

var defaultOCRLanguages = []string{"eng"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InboxDir:     defaultInboxDir,
			LibraryDir:   defaultLibraryDir,
			ThumbnailDir: defaultThumbnailDir,
			LogDir:       defaultLogDir,
		},
		Ingest: Ingest{
			PollInterval:      defaultIngestPollInterval,
			StabilityDelay:    defaultIngestStabilityDelay,
			AllowedExtensions: append([]string(nil), defaultAllowedExtensions...),
			MaxFileSizeMB:     defaultMaxFileSizeMB,
			MinFreeSpaceGiB:   defaultMinFreeSpaceGiB,
		},
		Ollama: Ollama{
			BaseURL:             defaultOllamaBaseURL,
			Model:               defaultOllamaModel,
			VisionModel:         defaultOllamaVisionModel,
			EmbeddingModel:      defaultEmbeddingModel,
			EmbeddingDimensions: defaultEmbeddingDimensions,
			TimeoutSeconds:      defaultOllamaTimeoutSeconds,
		},
		OCR: OCR{
			Languages:           append([]string(nil), defaultOCRLanguages...),
			DPI:                 defaultOCRDPI,
			NativeTextThreshold: defaultNativeTextThreshold,
		},
		Workflow: Workflow{
			Workers:             defaultWorkflowWorkers,
			QueuePollInterval:   defaultQueuePollInterval,
			ErrorRetryInterval:  defaultErrorRetryInterval,
			HeartbeatInterval:   defaultHeartbeatInterval,
			HeartbeatTimeout:    defaultHeartbeatTimeout,
			StageTimeoutSeconds: defaultStageTimeoutSeconds,
			MaxStageAttempts:    defaultMaxStageAttempts,
			RetryBaseDelay:      defaultRetryBaseDelay,
			RetryMaxDelay:       defaultRetryMaxDelay,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Ingest:         true,
			Completion:     true,
			Errors:         true,
			StatusChanges:  false,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
