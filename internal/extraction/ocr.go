package extraction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"log/slog"

	"golang.org/x/sync/errgroup"

	"docket/internal/language"
	"docket/internal/logging"
	"docket/internal/services"
)

// ocrPDF renders every page to PNG and recognizes them concurrently. Pages are
// joined with form feeds so downstream consumers can still find boundaries.
func (e *Extractor) ocrPDF(ctx context.Context, path string, logger *slog.Logger) (string, int, error) {
	tempDir, err := os.MkdirTemp("", "docket-ocr-*")
	if err != nil {
		return "", 0, services.Wrap(services.ErrTransient, "extraction", "render pages",
			"Unable to create OCR scratch directory", err)
	}
	defer os.RemoveAll(tempDir)

	dpi := e.cfg.OCR.DPI
	if dpi <= 0 {
		dpi = 300
	}

	prefix := filepath.Join(tempDir, "page")
	if _, err := e.runner.Output(ctx, e.cfg.PDFToPPMBinary(), "-png", "-r", strconv.Itoa(dpi), path, prefix); err != nil {
		return "", 0, services.Wrap(toolFailureMarker(err), "extraction", "pdftoppm",
			"Rendering PDF pages for OCR failed", err)
	}

	pages, err := renderedPages(prefix)
	if err != nil {
		return "", 0, services.Wrap(services.ErrExternalTool, "extraction", "render pages",
			"PDF rendering produced no pages", err)
	}

	texts := make([]string, len(pages))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(ocrConcurrency())
	for i, page := range pages {
		group.Go(func() error {
			text, err := e.recognizeImage(groupCtx, page)
			if err != nil {
				return err
			}
			texts[i] = text
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return "", 0, err
	}

	logger.Debug("OCR pass completed",
		logging.Int("pages", len(pages)),
		logging.Int("dpi", dpi))
	return strings.Join(texts, "\f"), len(pages), nil
}

func (e *Extractor) recognizeImage(ctx context.Context, path string) (string, error) {
	langArg := language.CombinedTesseract(e.cfg.OCR.Languages)
	output, err := e.runner.Output(ctx, e.cfg.TesseractBinary(), path, "stdout", "-l", langArg)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "extraction", "tesseract",
			fmt.Sprintf("OCR failed for %s", filepath.Base(path)), err)
	}
	return string(output), nil
}

// renderedPages lists the pdftoppm output in page order. pdftoppm zero-pads
// page numbers within a run, but the padding width depends on the page count,
// so sorting compares the numeric suffix.
func renderedPages(prefix string) ([]string, error) {
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, errNoPagesRendered
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageNumber(matches[i]) < pageNumber(matches[j])
	})
	return matches, nil
}

func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	idx := strings.LastIndexByte(base, '-')
	if idx < 0 {
		return 0
	}
	number, err := strconv.Atoi(base[idx+1:])
	if err != nil {
		return 0
	}
	return number
}

func ocrConcurrency() int {
	limit := runtime.NumCPU()
	if limit > 4 {
		limit = 4
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}
