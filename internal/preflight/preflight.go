package preflight

import (
	"context"

	"docket/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Inbox directory", cfg.Paths.InboxDir))
	if cfg.Paths.LibraryDir != "" {
		results = append(results, CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir))
	}
	if cfg.Paths.ThumbnailDir != "" {
		results = append(results, CheckDirectoryAccess("Thumbnail directory", cfg.Paths.ThumbnailDir))
	}

	results = append(results, CheckOllama(ctx, cfg))

	return results
}
