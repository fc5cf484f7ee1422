package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks failures that are expected to clear on retry, such as
	// an unreachable model server or a busy external tool.
	ErrTransient = errors.New("transient failure")
	// ErrPermanent marks failures that will not succeed no matter how often
	// the stage is retried, such as an unreadable or corrupt source file.
	ErrPermanent = errors.New("permanent failure")
	// ErrDegraded marks partial results: the stage produced usable output but
	// some enrichment was skipped.
	ErrDegraded = errors.New("degraded result")
	// ErrValidation marks malformed input discovered before any work started.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks operator mistakes that require a config change.
	ErrConfiguration = errors.New("configuration error")
	// ErrExternalTool marks subprocess failures (pdftotext, tesseract, ...).
	ErrExternalTool = errors.New("external tool error")
	// ErrNotFound marks missing documents or files.
	ErrNotFound = errors.New("not found")
	// ErrTimeout marks deadline expiry on an external call.
	ErrTimeout = errors.New("timeout")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Class is the retry-relevant classification of a stage error.
type Class int

const (
	// ClassTransient errors are retried with backoff until attempts run out.
	ClassTransient Class = iota
	// ClassPermanent errors fail the document immediately.
	ClassPermanent
	// ClassDegraded errors let the document continue with partial results.
	ClassDegraded
)

func (c Class) String() string {
	switch c {
	case ClassPermanent:
		return "permanent"
	case ClassDegraded:
		return "degraded"
	default:
		return "transient"
	}
}

// Classify maps an error to its retry class. Unknown errors default to
// transient so a bug in error tagging cannot silently discard documents.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassTransient
	case errors.Is(err, ErrDegraded):
		return ClassDegraded
	case errors.Is(err, ErrPermanent),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrNotFound):
		return ClassPermanent
	case errors.Is(err, context.Canceled):
		return ClassTransient
	default:
		return ClassTransient
	}
}

// IsTransient reports whether the error should be retried.
func IsTransient(err error) bool { return err != nil && Classify(err) == ClassTransient }

// IsPermanent reports whether the error fails the document outright.
func IsPermanent(err error) bool { return err != nil && Classify(err) == ClassPermanent }

// IsDegraded reports whether the error represents a partial result.
func IsDegraded(err error) bool { return err != nil && Classify(err) == ClassDegraded }

// Details strips the sentinel prefix from a wrapped error, returning the
// human-readable remainder for status lines and history entries.
func Details(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []error{
		ErrTransient, ErrPermanent, ErrDegraded, ErrValidation,
		ErrConfiguration, ErrExternalTool, ErrNotFound, ErrTimeout,
	} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			msg = strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
