package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docket/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	if cfg.Ollama.Model == "" || cfg.Ollama.EmbeddingDimensions <= 0 {
		t.Fatalf("expected default ollama settings, got %+v", cfg.Ollama)
	}
	if cfg.Workflow.Workers <= 0 {
		t.Fatalf("expected default worker count, got %d", cfg.Workflow.Workers)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
inbox_dir = "` + filepath.Join(dir, "inbox") + `"
library_dir = "` + filepath.Join(dir, "library") + `"

[ingest]
allowed_extensions = [".PDF", "png"]

[ollama]
base_url = "http://localhost:11434/"

[logging]
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	for _, ext := range cfg.Ingest.AllowedExtensions {
		if strings.HasPrefix(ext, ".") || ext != strings.ToLower(ext) {
			t.Fatalf("expected normalized extensions, got %v", cfg.Ingest.AllowedExtensions)
		}
	}
	if strings.HasSuffix(cfg.Ollama.BaseURL, "/") {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Ollama.BaseURL)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected lowered log level, got %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
inbox_dir = "` + filepath.Join(dir, "same") + `"
library_dir = "` + filepath.Join(dir, "same") + `"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for identical inbox and library dirs")
	}
}

func TestValidateCatchesBadValues(t *testing.T) {
	mutations := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"missing inbox", func(c *config.Config) { c.Paths.InboxDir = "" }, "inbox_dir"},
		{"missing model", func(c *config.Config) { c.Ollama.Model = "" }, "ollama.model"},
		{"bad dimensions", func(c *config.Config) { c.Ollama.EmbeddingDimensions = 0 }, "embedding_dimensions"},
		{"no ocr languages", func(c *config.Config) { c.OCR.Languages = nil }, "ocr.languages"},
		{"unknown ocr language", func(c *config.Config) { c.OCR.Languages = []string{"zz"} }, "unrecognized"},
		{"bad heartbeat", func(c *config.Config) { c.Workflow.HeartbeatTimeout = 1 }, "heartbeat_timeout"},
		{"bad retry delays", func(c *config.Config) { c.Workflow.RetryMaxDelay = 1; c.Workflow.RetryBaseDelay = 5 }, "retry_max_delay"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad log level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tc := range mutations {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestEnsureDirectoriesCreatesLayout(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.InboxDir = filepath.Join(dir, "inbox")
	cfg.Paths.LibraryDir = filepath.Join(dir, "library")
	cfg.Paths.ThumbnailDir = filepath.Join(dir, "thumbs")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, created := range []string{
		cfg.Paths.InboxDir,
		cfg.Paths.ThumbnailDir,
		cfg.Paths.LogDir,
		cfg.DocumentsDir(),
	} {
		info, err := os.Stat(created)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s, err=%v", created, err)
		}
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = "/var/lib/docket/logs"
	cfg.Paths.LibraryDir = "/var/lib/docket/library"

	if got := cfg.SocketPath(); got != filepath.Join("/var/lib/docket/logs", "docket.sock") {
		t.Fatalf("unexpected socket path %q", got)
	}
	if got := cfg.LockPath(); got != filepath.Join("/var/lib/docket/logs", "docket.lock") {
		t.Fatalf("unexpected lock path %q", got)
	}
	if got := cfg.DocumentsDir(); got != filepath.Join("/var/lib/docket/library", "documents") {
		t.Fatalf("unexpected documents dir %q", got)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	written, err := config.CreateSample(path)
	if err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if written != path {
		t.Fatalf("expected sample at %q, got %q", path, written)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[paths]") {
		t.Fatalf("expected sample to include paths section:\n%s", data)
	}

	if _, err := config.CreateSample(path); err == nil {
		t.Fatal("expected error when sample already exists")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}

	expanded, err := config.ExpandPath("~/docket/inbox")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if expanded != filepath.Join(home, "docket", "inbox") {
		t.Fatalf("unexpected expansion %q", expanded)
	}

	absolute, err := config.ExpandPath("/tmp/docket")
	if err != nil {
		t.Fatalf("ExpandPath absolute: %v", err)
	}
	if absolute != "/tmp/docket" {
		t.Fatalf("expected absolute path unchanged, got %q", absolute)
	}
}
