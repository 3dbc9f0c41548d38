package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks a malformed queue record.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a record that references an item the store does not track.
	ErrNotFound = errors.New("not found")
	// ErrPlacement marks an item the organizer could not relocate.
	ErrPlacement = errors.New("placement failure")
	// ErrConfiguration marks unusable settings.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks a failure worth retrying on the next run.
	ErrTransient = errors.New("transient failure")
	// ErrFatal marks an unreadable or unwritable store or queue file.
	ErrFatal = errors.New("fatal error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
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

// IsRecoverable reports whether err is handled locally (logged and counted)
// rather than aborting the run. Unmarked errors are treated as fatal.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, ErrFatal) {
		return false
	}
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound), errors.Is(err, ErrPlacement), errors.Is(err, ErrTransient):
		return true
	default:
		return false
	}
}

// ErrorKind returns a short classification label used in structured logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFatal):
		return "fatal"
	case errors.Is(err, ErrValidation):
		return "malformed_record"
	case errors.Is(err, ErrNotFound):
		return "missing_identity"
	case errors.Is(err, ErrPlacement):
		return "placement"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "fatal"
	}
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
