package ingest

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"docket/internal/config"
	"docket/internal/fileutil"
	"docket/internal/logging"
	"docket/internal/notifications"
	"docket/internal/queue"
	"docket/internal/services"
)

// ErrFileRejected marks files that fail intake validation and should not be
// retried on later polls.
var ErrFileRejected = errors.New("file rejected")

// Intake validates inbox files and registers them as queued documents.
type Intake struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service

	statfs func(path string, stat *unix.Statfs_t) error
}

// NewIntake builds the intake step used by the inbox watcher.
func NewIntake(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Intake {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Intake{
		cfg:      cfg,
		store:    store,
		logger:   logger.With(logging.String(logging.FieldComponent, "ingest")),
		notifier: notifier,
		statfs:   unix.Statfs,
	}
}

// Ingest hashes, validates, and moves a stable inbox file into the document
// library, then inserts a queued document for it. Duplicate content is still
// ingested but flagged for review against the existing document.
func (i *Intake) Ingest(ctx context.Context, path string) (*queue.Document, error) {
	filename := filepath.Base(path)
	logger := i.logger.With(logging.String(logging.FieldFilename, filename))

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat inbox file: %w", err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrFileRejected)
	}
	if maxBytes := int64(i.cfg.Ingest.MaxFileSizeMB) * 1024 * 1024; maxBytes > 0 && info.Size() > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d MB", ErrFileRejected, info.Size(), i.cfg.Ingest.MaxFileSizeMB)
	}

	if err := i.checkFreeSpace(); err != nil {
		return nil, err
	}

	hash, err := fileutil.HashFile(path)
	if err != nil {
		return nil, fmt.Errorf("hash inbox file: %w", err)
	}

	existing, err := i.store.FindByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("duplicate lookup: %w", err)
	}

	doc := &queue.Document{
		ID:               uuid.NewString(),
		OriginalFilename: filename,
		ContentHash:      hash,
		MimeType:         detectMIME(path),
		SizeBytes:        info.Size(),
		Status:           queue.StatusQueued,
	}
	if existing != nil {
		doc.NeedsReview = true
		doc.ReviewReason = fmt.Sprintf("duplicate content of document %s (%s)", existing.ID, existing.OriginalFilename)
	}

	dst := filepath.Join(i.cfg.DocumentsDir(), doc.ID+strings.ToLower(filepath.Ext(filename)))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, fmt.Errorf("create documents directory: %w", err)
	}
	if err := fileutil.MoveFile(path, dst); err != nil {
		return nil, fmt.Errorf("move into library: %w", err)
	}
	doc.StoredPath = dst

	if err := i.store.Insert(ctx, doc); err != nil {
		// The file already moved; put it back so the next poll retries.
		if restoreErr := fileutil.MoveFile(dst, path); restoreErr != nil {
			logger.Error("failed to restore inbox file after insert error",
				logging.Error(restoreErr),
				logging.String("stored_path", dst))
		}
		return nil, fmt.Errorf("insert document: %w", err)
	}

	logger.Info("document ingested",
		logging.String(logging.FieldDocumentID, doc.ID),
		logging.String("content_hash", hash),
		logging.String("mime_type", doc.MimeType),
		logging.Int64("size_bytes", doc.SizeBytes),
		logging.Bool("duplicate", existing != nil))

	if i.notifier != nil {
		if existing != nil {
			if err := i.notifier.NotifyDuplicateDetected(ctx, filename, existing.ID); err != nil && !errors.Is(err, context.Canceled) {
				logger.Debug("duplicate notification failed", logging.Error(err))
			}
		} else if err := i.notifier.NotifyDocumentIngested(ctx, filename); err != nil && !errors.Is(err, context.Canceled) {
			logger.Debug("ingest notification failed", logging.Error(err))
		}
	}

	return doc, nil
}

func (i *Intake) checkFreeSpace() error {
	minGiB := i.cfg.Ingest.MinFreeSpaceGiB
	if minGiB <= 0 || i.statfs == nil {
		return nil
	}

	target := i.cfg.Paths.LibraryDir
	if strings.TrimSpace(target) == "" {
		return nil
	}

	var stat unix.Statfs_t
	if err := i.statfs(target, &stat); err != nil {
		// Free space is advisory; never block intake on statfs problems.
		i.logger.Warn("free space check unavailable", logging.Error(err))
		return nil
	}

	available := stat.Bavail * uint64(stat.Bsize)
	required := uint64(minGiB) * 1024 * 1024 * 1024
	if available < required {
		return services.Wrap(services.ErrTransient, "ingest", "free space",
			fmt.Sprintf("%.1f GiB available, %d GiB required", float64(available)/(1024*1024*1024), minGiB), nil)
	}
	return nil
}

func detectMIME(path string) string {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		if base, _, err := mime.ParseMediaType(byExt); err == nil {
			return base
		}
		return byExt
	}

	file, err := os.Open(path)
	if err != nil {
		return "application/octet-stream"
	}
	defer file.Close()

	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && n == 0 {
		return "application/octet-stream"
	}
	detected := http.DetectContentType(buf[:n])
	if base, _, err := mime.ParseMediaType(detected); err == nil {
		return base
	}
	return detected
}
