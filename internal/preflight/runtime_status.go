package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"docket/internal/config"
)

// CheckOllamaFromConfig evaluates Ollama status from config and connectivity.
func CheckOllamaFromConfig(cfg *config.Config) Result {
	const name = "Ollama"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Ollama.BaseURL) == "" {
		return Result{Name: name, Detail: "Missing base URL"}
	}
	check := CheckOllama(context.Background(), cfg)
	if check.Passed {
		return Result{Name: name, Passed: true, Detail: check.Detail}
	}
	return Result{Name: name, Detail: check.Detail}
}

// InboxProbe reports the current inbox snapshot.
type InboxProbe struct {
	Accessible bool
	Path       string
	FileCount  int
}

// ProbeInbox counts documents waiting in the inbox. Hidden files and
// subdirectories are ignored, matching the watcher's own rules.
func ProbeInbox(dir string) InboxProbe {
	dir = strings.TrimSpace(dir)
	probe := InboxProbe{Path: dir}
	if dir == "" {
		return probe
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return probe
	}
	probe.Accessible = true
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		probe.FileCount++
	}
	return probe
}

// InboxDetail renders a display-friendly summary for status UIs.
func (p InboxProbe) InboxDetail() string {
	if !p.Accessible {
		return "Inbox unavailable"
	}
	switch p.FileCount {
	case 0:
		return "Empty"
	case 1:
		return "1 file waiting"
	default:
		return fmt.Sprintf("%d files waiting", p.FileCount)
	}
}
