package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for the daemon and CLI.
type Paths struct {
	InboxDir     string `toml:"inbox_dir"`
	LibraryDir   string `toml:"library_dir"`
	ThumbnailDir string `toml:"thumbnail_dir"`
	LogDir       string `toml:"log_dir"`
}

// Ingest contains configuration for the inbox watcher and file intake.
type Ingest struct {
	PollInterval      int      `toml:"poll_interval"`
	StabilityDelay    int      `toml:"stability_delay"`
	AllowedExtensions []string `toml:"allowed_extensions"`
	MaxFileSizeMB     int      `toml:"max_file_size_mb"`
	MinFreeSpaceGiB   int      `toml:"min_free_space_gib"`
}

// Ollama contains connection settings for the local AI backend.
type Ollama struct {
	BaseURL             string `toml:"base_url"`
	Model               string `toml:"model"`
	VisionModel         string `toml:"vision_model"`
	EmbeddingModel      string `toml:"embedding_model"`
	EmbeddingDimensions int    `toml:"embedding_dimensions"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
}

// OCR contains configuration for text extraction and optical recognition.
type OCR struct {
	// Languages lists tesseract language codes requested in a single combined
	// recognition pass (eng, deu, ...), never as per-language retries.
	Languages []string `toml:"languages"`
	DPI       int      `toml:"dpi"`
	// NativeTextThreshold is the minimum number of characters native PDF text
	// extraction must produce before OCR fallback is skipped.
	NativeTextThreshold int `toml:"native_text_threshold"`
}

// Workflow contains daemon scheduling, retry, and timeout settings.
type Workflow struct {
	Workers             int `toml:"workers"`
	QueuePollInterval   int `toml:"queue_poll_interval"`
	ErrorRetryInterval  int `toml:"error_retry_interval"`
	HeartbeatInterval   int `toml:"heartbeat_interval"`
	HeartbeatTimeout    int `toml:"heartbeat_timeout"`
	StageTimeoutSeconds int `toml:"stage_timeout_seconds"`
	MaxStageAttempts    int `toml:"max_stage_attempts"`
	RetryBaseDelay      int `toml:"retry_base_delay"`
	RetryMaxDelay       int `toml:"retry_max_delay"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Ingest         bool   `toml:"ingest"`
	Completion     bool   `toml:"completion"`
	Errors         bool   `toml:"errors"`
	StatusChanges  bool   `toml:"status_changes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Docket.
//
// Configuration sections by subsystem:
//   - Paths: inbox, library, thumbnail, and log directories
//   - Ingest: inbox polling, write-stability debounce, intake limits
//   - Ollama: local AI backend for classification and embeddings
//   - OCR: recognition languages, render DPI, native-text threshold
//   - Workflow: worker pool size, retry policy, heartbeats, stage timeouts
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Ingest        Ingest        `toml:"ingest"`
	Ollama        Ollama        `toml:"ollama"`
	OCR           OCR           `toml:"ocr"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/docket/config.toml")
}

// Load locates, parses, normalizes, and validates a configuration file. When no
// file exists at the resolved path, defaults are returned. The second return
// value is the resolved path, the third reports whether a file was found.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("docket.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories required for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.InboxDir, c.Paths.LogDir, c.Paths.ThumbnailDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LibraryDir) != "" {
		if err := os.MkdirAll(filepath.Join(c.Paths.LibraryDir, "documents"), 0o755); err != nil {
			return fmt.Errorf("create library directory %q: %w", c.Paths.LibraryDir, err)
		}
	}
	return nil
}

// DocumentsDir returns the directory holding ingested original files.
func (c *Config) DocumentsDir() string {
	return filepath.Join(c.Paths.LibraryDir, "documents")
}

// SocketPath returns the daemon IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "docket.sock")
}

// LockPath returns the daemon singleton lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "docket.lock")
}

// PDFToTextBinary returns the poppler text extraction executable name.
func (c *Config) PDFToTextBinary() string {
	return "pdftotext"
}

// PDFToPPMBinary returns the poppler page rendering executable name.
func (c *Config) PDFToPPMBinary() string {
	return "pdftoppm"
}

// TesseractBinary returns the OCR engine executable name.
func (c *Config) TesseractBinary() string {
	return "tesseract"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) (string, error) {
	expanded, err := expandPath(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return expanded, fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("stat config: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return "", fmt.Errorf("write sample config: %w", err)
	}
	return expanded, nil
}
